package handlers

import (
	"encoding/base64"
	"fmt"
	"net/http"

	"s3gate/apigw"
	"s3gate/logger"
)

// MockHandler - тестовая реализация RequestHandler для smoke-запусков (serve --mock).
// Не обращается ни к хранилищу, ни к хранилищу секрета.
type MockHandler struct{}

// NewMockHandler создает новый экземпляр тестового обработчика
func NewMockHandler() *MockHandler {
	return &MockHandler{}
}

// Handle реализует интерфейс RequestHandler
func (h *MockHandler) Handle(req *apigw.Request) *apigw.Response {
	logger.Debug("MockHandler: handling request - Operation: %s, Key: %s", req.Operation.String(), req.Key)

	switch req.Operation {
	case apigw.ListObjects:
		return h.handleListObjects(req)
	case apigw.GetObject:
		return h.handleGetObject(req)
	case apigw.PutObject:
		return h.handlePutObject(req)
	default:
		return &apigw.Response{
			StatusCode: http.StatusMethodNotAllowed,
			Headers:    make(http.Header),
			Error:      fmt.Errorf("%w: %s", apigw.ErrUnsupportedMethod, req.Method),
		}
	}
}

func (h *MockHandler) handleListObjects(req *apigw.Request) *apigw.Response {
	// Симулируем листинг из двух объектов под запрошенным префиксом
	body := fmt.Sprintf(`["%smock-1.jpg","%smock-2.jpg"]`, req.Key, req.Key)

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set("Access-Control-Allow-Origin", "*")

	return &apigw.Response{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       body,
	}
}

func (h *MockHandler) handleGetObject(req *apigw.Request) *apigw.Response {
	// Симулируем получение объекта
	content := fmt.Sprintf("Mock content for object %s", req.Key)

	headers := make(http.Header)
	headers.Set("Content-Type", "text/plain")

	return &apigw.Response{
		StatusCode:      http.StatusOK,
		Headers:         headers,
		Body:            base64.StdEncoding.EncodeToString([]byte(content)),
		IsBase64Encoded: true,
	}
}

func (h *MockHandler) handlePutObject(req *apigw.Request) *apigw.Response {
	// Симулируем загрузку объекта
	return &apigw.Response{
		StatusCode: http.StatusOK,
		Headers:    make(http.Header),
		Body:       fmt.Sprintf("new %s is uploaded", req.Key),
	}
}
