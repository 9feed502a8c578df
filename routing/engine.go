package routing

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"s3gate/apigw"
	"s3gate/logger"
)

// forbiddenBody - тело отказа в том виде, в каком его отдает API Gateway
var forbiddenBody = mustJSON(map[string]string{"message": "Forbidden"})

// Engine - это реализация Policy & Routing Engine
type Engine struct {
	// Зависимости, внедряемые при создании
	gatekeeper Authorizer       // Модуль проверки ключа. nil - проверка отключена
	fetcher    FetchingExecutor // Модуль для чтения
	uploader   UploadExecutor   // Модуль для записи

	config *Config
}

// NewEngine создает новый экземпляр Engine
func NewEngine(
	gatekeeper Authorizer,
	fetcher FetchingExecutor,
	uploader UploadExecutor,
	config *Config,
) *Engine {
	if config == nil {
		config = DefaultConfig()
	}

	return &Engine{
		gatekeeper: gatekeeper,
		fetcher:    fetcher,
		uploader:   uploader,
		config:     config,
	}
}

// Handle - реализация интерфейса RequestHandler. Это точка входа в модуль
func (e *Engine) Handle(req *apigw.Request) *apigw.Response {
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}

	logger.Debug("Policy & Routing Engine: handling request - Operation: %s, Key: %s", req.Operation, req.Key)

	// Шаг 1: проверка ключа доступа
	policy := e.config.policyFor(req.Operation)
	if policy.RequireAuth && req.Operation != apigw.UnsupportedOperation {
		if e.gatekeeper == nil {
			return internalError(fmt.Errorf("route requires auth but no gatekeeper is configured"))
		}

		decision, err := e.gatekeeper.Authorize(ctx, req.Headers)
		if err != nil {
			logger.Error("Authorization failed for %s %s: %v", req.Method, req.Path, err)
			return internalError(err)
		}
		if !decision.Allowed() {
			logger.Info("Access denied for %s %s: %s", req.Method, req.Path, decision.Reason)
			return forbiddenResponse()
		}
	}

	// Шаг 2: маршрутизация на основе типа операции
	switch req.Operation {
	case apigw.ListObjects:
		logger.Debug("Routing to fetcher.ListObjects")
		return e.fetcher.ListObjects(ctx, req)

	case apigw.GetObject:
		logger.Debug("Routing to fetcher.GetObject")
		return e.fetcher.GetObject(ctx, req)

	case apigw.PutObject:
		logger.Debug("Routing to uploader.PutObject")
		return e.uploader.PutObject(ctx, req)

	default:
		logger.Warn("Unsupported operation: %s", req.Operation)
		return &apigw.Response{
			StatusCode: http.StatusMethodNotAllowed,
			Headers:    make(http.Header),
			Error:      fmt.Errorf("%w: %s", apigw.ErrUnsupportedMethod, req.Method),
		}
	}
}

// forbiddenResponse создает ответ на отказ в доступе
func forbiddenResponse() *apigw.Response {
	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")

	return &apigw.Response{
		StatusCode: http.StatusForbidden,
		Headers:    headers,
		Body:       forbiddenBody,
		// Не устанавливаем Error, так как у нас уже есть правильно сформированный ответ
	}
}

func internalError(err error) *apigw.Response {
	return &apigw.Response{
		StatusCode: http.StatusInternalServerError,
		Headers:    make(http.Header),
		Error:      err,
	}
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return string(data)
}
