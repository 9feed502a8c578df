package apigw

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"s3gate/logger"
)

// ErrNotFound - запрошенный объект отсутствует в хранилище.
// Модули чтения оборачивают им ошибку бэкенда.
var ErrNotFound = errors.New("object not found")

// ErrorBody - JSON тело ответа об ошибке
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// mapError сопоставляет ошибку с кодом и HTTP статусом
func mapError(err error) (string, int) {
	switch {
	case errors.Is(err, ErrNotFound):
		return "NoSuchKey", http.StatusNotFound
	case errors.Is(err, ErrInvalidKey):
		return "InvalidKey", http.StatusBadRequest
	case errors.Is(err, ErrInvalidPath):
		return "InvalidPath", http.StatusBadRequest
	case errors.Is(err, ErrBodyTooLarge):
		return "EntityTooLarge", http.StatusRequestEntityTooLarge
	case errors.Is(err, ErrUnsupportedMethod):
		return "MethodNotAllowed", http.StatusMethodNotAllowed
	default:
		return "InternalError", http.StatusInternalServerError
	}
}

// IsClientError сообщает, относится ли ошибка к классу 4xx
func IsClientError(err error) bool {
	_, status := mapError(err)
	return status >= 400 && status < 500
}

// RenderError превращает ошибку в Response с JSON телом
func RenderError(err error) *Response {
	code, status := mapError(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		// детали инфраструктурных ошибок остаются в логах
		message = "internal error"
	}

	body, _ := json.Marshal(ErrorBody{Code: code, Message: message})
	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")

	return &Response{
		StatusCode: status,
		Headers:    headers,
		Body:       string(body),
	}
}

// ResponseWriter отвечает за запись Response в http.ResponseWriter
type ResponseWriter struct {
	// decodeBase64 - раскодировать base64 тела перед отправкой,
	// как это делает API Gateway для бинарных типов
	decodeBase64 bool
}

// NewResponseWriter создает новый экземпляр writer'а ответов
func NewResponseWriter(decodeBase64 bool) *ResponseWriter {
	return &ResponseWriter{decodeBase64: decodeBase64}
}

// WriteResponse записывает Response в http.ResponseWriter
func (rw *ResponseWriter) WriteResponse(w http.ResponseWriter, resp *Response) error {
	if resp.Error != nil {
		if IsClientError(resp.Error) {
			logger.Debug("Writing client error response: %v", resp.Error)
		} else {
			logger.Error("Request failed: %v", resp.Error)
		}
		resp = RenderError(resp.Error)
	}

	body := []byte(resp.Body)
	if resp.IsBase64Encoded && rw.decodeBase64 {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			logger.Error("Failed to decode base64 response body: %v", err)
			return rw.WriteResponse(w, &Response{Error: err})
		}
		body = decoded
	}

	for key, values := range resp.Headers {
		for _, value := range values {
			w.Header().Add(key, value)
		}
	}
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))

	w.WriteHeader(resp.StatusCode)
	if len(body) == 0 {
		return nil
	}
	_, err := w.Write(body)
	return err
}
