package apigw

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"s3gate/logger"
)

// RequestParser отвечает за построение Request из HTTP запроса или события API Gateway
type RequestParser struct {
	// RejectParentSegments включает проверку ключа через ValidateKey
	RejectParentSegments bool
}

// NewRequestParser создает новый экземпляр парсера
func NewRequestParser(rejectParentSegments bool) *RequestParser {
	return &RequestParser{RejectParentSegments: rejectParentSegments}
}

// Classify определяет операцию по методу и пути
func Classify(method, path string) (Operation, error) {
	switch strings.ToUpper(method) {
	case http.MethodGet, http.MethodHead:
		if IsListing(path) {
			return ListObjects, nil
		}
		return GetObject, nil
	case http.MethodPut, http.MethodPost:
		return PutObject, nil
	default:
		return UnsupportedOperation, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
	}
}

// NewRequest строит Request из уже нормализованных частей запроса
func (p *RequestParser) NewRequest(ctx context.Context, method, path string, headers map[string]string, body string, isBase64Encoded bool) (*Request, error) {
	if path == "" || !strings.HasPrefix(path, Separator) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidPath, path)
	}

	op, err := Classify(method, path)
	if err != nil {
		return nil, err
	}

	key := ObjectKey(path)
	if op == PutObject && key == "" {
		return nil, fmt.Errorf("%w: empty key for write", ErrInvalidKey)
	}
	if p.RejectParentSegments {
		if err := ValidateKey(key); err != nil {
			return nil, err
		}
	}

	if headers == nil {
		headers = map[string]string{}
	}
	if ctx == nil {
		ctx = context.Background()
	}

	requestID, _ := LookupHeader(headers, RequestIDHeader)

	req := &Request{
		Operation:       op,
		Method:          strings.ToUpper(method),
		Path:            path,
		Key:             key,
		Headers:         headers,
		Body:            body,
		IsBase64Encoded: isBase64Encoded,
		RequestID:       requestID,
		Context:         ctx,
	}
	logger.Debug("Parsed request: operation=%s key=%q", op, key)
	return req, nil
}

// Parse анализирует HTTP запрос и создает Request
func (p *RequestParser) Parse(r *http.Request) (*Request, error) {
	logger.Debug("Parsing HTTP request: %s %s", r.Method, r.URL.Path)

	var body string
	if r.Body != nil {
		data, err := io.ReadAll(r.Body)
		if err != nil {
			var maxErr *http.MaxBytesError
			if errors.As(err, &maxErr) {
				return nil, fmt.Errorf("%w: limit %d bytes", ErrBodyTooLarge, maxErr.Limit)
			}
			return nil, fmt.Errorf("failed to read request body: %w", err)
		}
		body = string(data)
	}

	req, err := p.NewRequest(r.Context(), r.Method, r.URL.Path, FlattenHeaders(r.Header), body, false)
	if err != nil {
		return nil, err
	}
	return req, nil
}

// FlattenHeaders сводит http.Header к плоской карте, как это делает API Gateway
func FlattenHeaders(h http.Header) map[string]string {
	flat := make(map[string]string, len(h))
	for name, values := range h {
		if len(values) > 0 {
			flat[name] = values[0]
		}
	}
	return flat
}

// LookupHeader ищет заголовок без учета регистра имени
func LookupHeader(headers map[string]string, name string) (string, bool) {
	if v, ok := headers[name]; ok {
		return v, true
	}
	for k, v := range headers {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return "", false
}
