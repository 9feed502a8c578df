package routing

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"s3gate/apigw"
	"s3gate/logger"
)

// MockFetchingExecutor - mock реализация FetchingExecutor для тестирования.
// Запоминает вызовы и отвечает фиксированными данными.
type MockFetchingExecutor struct {
	mu    sync.Mutex
	calls []string
}

// NewMockFetchingExecutor создает новый mock fetching executor
func NewMockFetchingExecutor() *MockFetchingExecutor {
	return &MockFetchingExecutor{}
}

func (m *MockFetchingExecutor) record(call string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, call)
}

// Calls возвращает список выполненных вызовов в формате "Operation key"
func (m *MockFetchingExecutor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockFetchingExecutor) ListObjects(ctx context.Context, req *apigw.Request) *apigw.Response {
	logger.Debug("MockFetchingExecutor.ListObjects called for prefix '%s'", req.Key)
	m.record("ListObjects " + req.Key)

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	return &apigw.Response{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       fmt.Sprintf(`["%smock.jpg"]`, req.Key),
	}
}

func (m *MockFetchingExecutor) GetObject(ctx context.Context, req *apigw.Request) *apigw.Response {
	logger.Debug("MockFetchingExecutor.GetObject called for '%s'", req.Key)
	m.record("GetObject " + req.Key)

	headers := make(http.Header)
	headers.Set("Content-Type", "image/jpeg")
	return &apigw.Response{
		StatusCode:      http.StatusOK,
		Headers:         headers,
		Body:            "bW9jaw==",
		IsBase64Encoded: true,
	}
}

// MockUploadExecutor - mock реализация UploadExecutor для тестирования
type MockUploadExecutor struct {
	mu    sync.Mutex
	calls []string
}

// NewMockUploadExecutor создает новый mock upload executor
func NewMockUploadExecutor() *MockUploadExecutor {
	return &MockUploadExecutor{}
}

// Calls возвращает список выполненных вызовов
func (m *MockUploadExecutor) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

func (m *MockUploadExecutor) PutObject(ctx context.Context, req *apigw.Request) *apigw.Response {
	logger.Debug("MockUploadExecutor.PutObject called for '%s'", req.Key)

	m.mu.Lock()
	m.calls = append(m.calls, "PutObject "+req.Key)
	m.mu.Unlock()

	return &apigw.Response{
		StatusCode: http.StatusOK,
		Headers:    make(http.Header),
		Body:       fmt.Sprintf("new %s is uploaded", req.Key),
	}
}
