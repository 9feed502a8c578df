package auth

import (
	"context"
	"crypto/subtle"
	"fmt"
	"time"

	"s3gate/apigw"
	"s3gate/logger"
)

// Gatekeeper сверяет значение заголовка с секретом из доверенного хранилища.
// Состояния между вызовами не хранит: каждое решение считается заново.
type Gatekeeper struct {
	headerName    string
	parameterName string
	store         SecretStore
	metrics       *Metrics
}

// NewGatekeeper создает новый экземпляр. При metrics == nil используются DefaultMetrics.
func NewGatekeeper(headerName, parameterName string, store SecretStore, metrics *Metrics) (*Gatekeeper, error) {
	if headerName == "" {
		return nil, fmt.Errorf("%w: header name cannot be empty", ErrInvalidConfig)
	}
	if parameterName == "" {
		return nil, fmt.Errorf("%w: parameter name cannot be empty", ErrInvalidConfig)
	}
	if store == nil {
		return nil, fmt.Errorf("%w: secret store cannot be nil", ErrInvalidConfig)
	}
	if metrics == nil {
		metrics = DefaultMetrics()
	}

	return &Gatekeeper{
		headerName:    headerName,
		parameterName: parameterName,
		store:         store,
		metrics:       metrics,
	}, nil
}

// HeaderName возвращает имя заголовка с учетными данными
func (g *Gatekeeper) HeaderName() string {
	return g.headerName
}

// Authorize возвращает решение Allow/Deny для заголовков запроса.
// Отсутствие заголовка - это Deny без обращения к хранилищу.
// Ошибка хранилища возвращается как ошибка и не превращается ни в Allow, ни в Deny.
func (g *Gatekeeper) Authorize(ctx context.Context, headers map[string]string) (*Decision, error) {
	start := time.Now()

	credential, ok := apigw.LookupHeader(headers, g.headerName)
	if !ok {
		logger.Debug("Gatekeeper: header %q is absent, denying", g.headerName)
		g.observe("deny", start)
		return newDecision(Deny, "missing credential header"), nil
	}

	secret, err := g.store.Fetch(ctx, g.parameterName)
	if err != nil {
		logger.Error("Gatekeeper: failed to fetch secret %q: %v", g.parameterName, err)
		g.observe("error", start)
		return nil, fmt.Errorf("fetch secret %q: %w", g.parameterName, err)
	}

	if subtle.ConstantTimeCompare([]byte(credential), []byte(secret)) != 1 {
		logger.Debug("Gatekeeper: credential mismatch, denying")
		g.observe("deny", start)
		return newDecision(Deny, "credential mismatch"), nil
	}

	logger.Debug("Gatekeeper: credential accepted")
	g.observe("allow", start)
	return newDecision(Allow, "credential accepted"), nil
}

func (g *Gatekeeper) observe(result string, start time.Time) {
	g.metrics.DecisionsTotal.WithLabelValues(result).Inc()
	g.metrics.Latency.WithLabelValues(result).Observe(time.Since(start).Seconds())
}
