package lambdafn

import (
	"context"

	"github.com/aws/aws-lambda-go/events"

	"s3gate/auth"
	"s3gate/logger"
)

// Gatekeeper - то, что нужно функции-авторизатору от модуля auth
type Gatekeeper interface {
	Authorize(ctx context.Context, headers map[string]string) (*auth.Decision, error)
}

// AuthorizerHandler - Lambda-авторизатор API Gateway (REQUEST authorizer)
type AuthorizerHandler struct {
	gatekeeper Gatekeeper
}

// NewAuthorizerHandler создает обработчик поверх Gatekeeper
func NewAuthorizerHandler(gatekeeper Gatekeeper) *AuthorizerHandler {
	return &AuthorizerHandler{gatekeeper: gatekeeper}
}

// Handle обрабатывает событие REQUEST-авторизатора REST API.
// Сбой хранилища секрета возвращается как ошибка вызова, и API Gateway отвечает 500.
func (h *AuthorizerHandler) Handle(ctx context.Context, event events.APIGatewayCustomAuthorizerRequestTypeRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	headers := mergeHeaders(event.Headers, event.MultiValueHeaders)
	return h.authorize(ctx, headers, event.RequestContext.RequestID)
}

// HandleV2 обрабатывает событие авторизатора HTTP API (payload 2.0)
func (h *AuthorizerHandler) HandleV2(ctx context.Context, event events.APIGatewayV2CustomAuthorizerV2Request) (events.APIGatewayCustomAuthorizerResponse, error) {
	return h.authorize(ctx, event.Headers, event.RequestContext.RequestID)
}

func (h *AuthorizerHandler) authorize(ctx context.Context, headers map[string]string, requestID string) (events.APIGatewayCustomAuthorizerResponse, error) {
	decision, err := h.gatekeeper.Authorize(ctx, headers)
	if err != nil {
		logger.Error("Authorizer failed (request %s): %v", requestID, err)
		return events.APIGatewayCustomAuthorizerResponse{}, err
	}

	logger.Info("Authorizer decision %s (request %s): %s", decision.Effect, requestID, decision.Reason)
	return toAuthorizerResponse(decision), nil
}

// toAuthorizerResponse переводит решение в формат ответа авторизатора
func toAuthorizerResponse(d *auth.Decision) events.APIGatewayCustomAuthorizerResponse {
	statements := make([]events.IAMPolicyStatement, 0, len(d.Policy.Statement))
	for _, s := range d.Policy.Statement {
		statements = append(statements, events.IAMPolicyStatement{
			Action:   []string{s.Action},
			Effect:   string(s.Effect),
			Resource: []string{s.Resource},
		})
	}

	return events.APIGatewayCustomAuthorizerResponse{
		PrincipalID: d.PrincipalID,
		PolicyDocument: events.APIGatewayCustomAuthorizerPolicy{
			Version:   d.Policy.Version,
			Statement: statements,
		},
	}
}

// mergeHeaders дополняет плоскую карту первыми значениями из multi-value заголовков
func mergeHeaders(single map[string]string, multi map[string][]string) map[string]string {
	merged := make(map[string]string, len(single)+len(multi))
	for name, values := range multi {
		if len(values) > 0 {
			merged[name] = values[0]
		}
	}
	for name, value := range single {
		merged[name] = value
	}
	return merged
}
