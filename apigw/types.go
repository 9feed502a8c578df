package apigw

import (
	"context"
	"errors"
	"net/http"
)

// Operation определяет тип операции над объектами.
type Operation int

const (
	UnsupportedOperation Operation = iota
	ListObjects
	GetObject
	PutObject
)

// String возвращает строковое представление операции
func (op Operation) String() string {
	switch op {
	case ListObjects:
		return "LIST_OBJECTS"
	case GetObject:
		return "GET_OBJECT"
	case PutObject:
		return "PUT_OBJECT"
	default:
		return "UNSUPPORTED_OPERATION"
	}
}

// IsWrite возвращает true для операций записи
func (op Operation) IsWrite() bool {
	return op == PutObject
}

// Request - стандартизированное внутреннее представление запроса.
// Создается из http.Request (режим serve) или из события API Gateway (режим lambda).
type Request struct {
	// Тип операции, определенный парсером.
	Operation Operation

	// HTTP метод исходного запроса.
	Method string

	// Путь запроса, всегда начинается с "/".
	Path string

	// Ключ объекта: путь без первого символа.
	Key string

	// Заголовки запроса. В событиях API Gateway это плоская карта,
	// поэтому и HTTP-заголовки сводятся к первому значению.
	Headers map[string]string

	// Тело запроса в том виде, в каком его передал транспорт.
	// Для PUT это base64-текст.
	Body string

	// Флаг API Gateway: тело было закодировано в base64 самим шлюзом.
	IsBase64Encoded bool

	// Идентификатор запроса для логов.
	RequestID string

	// Контекст запроса для поддержки таймаутов и отмены.
	Context context.Context
}

// Response - стандартизированное внутреннее представление ответа.
type Response struct {
	// HTTP код состояния.
	StatusCode int

	// Заголовки для отправки клиенту.
	Headers http.Header

	// Тело ответа. Для GetObject это base64 содержимого объекта.
	Body string

	// Признак того, что Body закодировано в base64.
	IsBase64Encoded bool

	// Ошибка, возникшая при обработке. Если не nil, Body игнорируется
	// и ответ формируется через RenderError.
	Error error
}

// RequestHandler - интерфейс следующего по цепочке модуля (Policy & Routing Engine).
type RequestHandler interface {
	// Handle принимает распарсенный Request и возвращает готовый Response.
	Handle(req *Request) *Response
}

// Ошибки уровня запроса. Все они клиентские (4xx).
var (
	// ErrInvalidPath - путь пустой или не начинается с "/".
	ErrInvalidPath = errors.New("invalid request path")
	// ErrInvalidKey - ключ объекта пустой или содержит запрещенные сегменты.
	ErrInvalidKey = errors.New("invalid object key")
	// ErrUnsupportedMethod - HTTP метод не соответствует ни одной операции.
	ErrUnsupportedMethod = errors.New("unsupported HTTP method")
	// ErrBodyTooLarge - тело запроса превышает MaxBodyBytes.
	ErrBodyTooLarge = errors.New("request body too large")
)
