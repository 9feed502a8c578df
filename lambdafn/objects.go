package lambdafn

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/aws/aws-lambda-go/events"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"s3gate/apigw"
	"s3gate/logger"
)

// ObjectsHandler - Lambda-функция за прокси-интеграцией API Gateway.
// Авторизатор уже отработал на стороне шлюза, поэтому handler обычно собран
// с движком без проверки ключа.
type ObjectsHandler struct {
	parser  *apigw.RequestParser
	handler apigw.RequestHandler
	tracer  trace.Tracer
}

// NewObjectsHandler создает обработчик событий прокси-интеграции
func NewObjectsHandler(parser *apigw.RequestParser, handler apigw.RequestHandler) *ObjectsHandler {
	return &ObjectsHandler{
		parser:  parser,
		handler: handler,
		tracer:  otel.Tracer(apigw.TracerName),
	}
}

// invocation - событие прокси-интеграции в общем для REST API и HTTP API виде
type invocation struct {
	method          string
	path            string
	headers         map[string]string
	body            string
	isBase64Encoded bool
	requestID       string
}

// Handle обрабатывает событие REST API (payload 1.0).
// Клиентские ошибки (4xx) отдаются ответом, инфраструктурные возвращаются как ошибка вызова.
func (h *ObjectsHandler) Handle(ctx context.Context, event events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	path := event.Path
	if path == "" {
		path = event.RequestContext.Path
	}

	resp, err := h.invoke(ctx, invocation{
		method:          event.HTTPMethod,
		path:            path,
		headers:         mergeHeaders(event.Headers, event.MultiValueHeaders),
		body:            event.Body,
		isBase64Encoded: event.IsBase64Encoded,
		requestID:       event.RequestContext.RequestID,
	})
	if err != nil {
		return events.APIGatewayProxyResponse{}, err
	}

	return events.APIGatewayProxyResponse{
		StatusCode:      resp.StatusCode,
		Headers:         firstValues(resp.Headers),
		Body:            resp.Body,
		IsBase64Encoded: resp.IsBase64Encoded,
	}, nil
}

// HandleV2 обрабатывает событие HTTP API (payload 2.0)
func (h *ObjectsHandler) HandleV2(ctx context.Context, event events.APIGatewayV2HTTPRequest) (events.APIGatewayV2HTTPResponse, error) {
	path := event.RawPath
	if path == "" {
		path = event.RequestContext.HTTP.Path
	}

	headers := make(map[string]string, len(event.Headers))
	for name, value := range event.Headers {
		headers[name] = value
	}

	resp, err := h.invoke(ctx, invocation{
		method:          event.RequestContext.HTTP.Method,
		path:            path,
		headers:         headers,
		body:            event.Body,
		isBase64Encoded: event.IsBase64Encoded,
		requestID:       event.RequestContext.RequestID,
	})
	if err != nil {
		return events.APIGatewayV2HTTPResponse{}, err
	}

	return events.APIGatewayV2HTTPResponse{
		StatusCode:      resp.StatusCode,
		Headers:         firstValues(resp.Headers),
		Body:            resp.Body,
		IsBase64Encoded: resp.IsBase64Encoded,
	}, nil
}

// invoke переводит событие в Request, выполняет его в спане запроса и возвращает Response
func (h *ObjectsHandler) invoke(ctx context.Context, inv invocation) (*apigw.Response, error) {
	if _, ok := apigw.LookupHeader(inv.headers, apigw.RequestIDHeader); !ok && inv.requestID != "" {
		inv.headers[apigw.RequestIDHeader] = inv.requestID
	}

	ctx = otel.GetTextMapPropagator().Extract(ctx, traceCarrier(inv.headers))
	ctx, span := apigw.StartRequestSpan(ctx, h.tracer, inv.method, inv.path, inv.requestID)
	defer span.End()

	req, err := h.parser.NewRequest(ctx, inv.method, inv.path, inv.headers, inv.body, inv.isBase64Encoded)
	if err != nil {
		return h.fail(span, err, inv)
	}

	resp := h.handler.Handle(req)
	if resp.Error != nil {
		return h.fail(span, resp.Error, inv)
	}

	apigw.EndRequestSpan(span, resp.StatusCode, nil)
	logger.Info("%s %s -> %d (request %s)", inv.method, inv.path, resp.StatusCode, req.RequestID)
	return resp, nil
}

func (h *ObjectsHandler) fail(span trace.Span, err error, inv invocation) (*apigw.Response, error) {
	if apigw.IsClientError(err) {
		logger.Info("%s %s rejected: %v", inv.method, inv.path, err)
		resp := apigw.RenderError(err)
		apigw.EndRequestSpan(span, resp.StatusCode, err)
		return resp, nil
	}

	apigw.EndRequestSpan(span, http.StatusInternalServerError, err)
	logger.Error("%s %s failed (request %s): %v", inv.method, inv.path, inv.requestID, err)
	return nil, fmt.Errorf("%s %s: %w", inv.method, inv.path, err)
}

// traceCarrier приводит имена заголовков к нижнему регистру: MapCarrier ищет ключи точно
func traceCarrier(headers map[string]string) propagation.MapCarrier {
	carrier := make(propagation.MapCarrier, len(headers))
	for name, value := range headers {
		carrier[strings.ToLower(name)] = value
	}
	return carrier
}

// firstValues сводит http.Header к первому значению каждого заголовка
func firstValues(header http.Header) map[string]string {
	headers := make(map[string]string, len(header))
	for name, values := range header {
		if len(values) > 0 {
			headers[name] = values[0]
		}
	}
	return headers
}
