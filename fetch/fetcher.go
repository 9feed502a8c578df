package fetch

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"s3gate/apigw"
	"s3gate/backend"
	"s3gate/logger"
)

// Fetcher выполняет операции чтения: листинг и получение объекта
type Fetcher struct {
	store        backend.Store
	contentTypes apigw.ContentTypes
}

// NewFetcher создает новый экземпляр Fetcher
func NewFetcher(store backend.Store, contentTypes apigw.ContentTypes) *Fetcher {
	return &Fetcher{
		store:        store,
		contentTypes: contentTypes,
	}
}

// ListObjects возвращает JSON-массив ключей с префиксом req.Key.
// Ключи-"папки" (оканчиваются на "/") отбрасываются, порядок хранилища сохраняется.
func (f *Fetcher) ListObjects(ctx context.Context, req *apigw.Request) *apigw.Response {
	keys, err := f.store.List(ctx, req.Key)
	if err != nil {
		logger.Error("Failed to list objects with prefix '%s': %v", req.Key, err)
		return errorResponse(err)
	}

	files := make([]string, 0, len(keys))
	for _, key := range keys {
		if strings.HasSuffix(key, apigw.Separator) {
			continue
		}
		files = append(files, key)
	}

	body, err := json.Marshal(files)
	if err != nil {
		return errorResponse(fmt.Errorf("failed to encode listing: %w", err))
	}

	logger.Debug("Listed %d objects (%d keys total) with prefix '%s'", len(files), len(keys), req.Key)

	headers := make(http.Header)
	headers.Set("Content-Type", "application/json")
	headers.Set("Access-Control-Allow-Origin", "*")

	return &apigw.Response{
		StatusCode: http.StatusOK,
		Headers:    headers,
		Body:       string(body),
	}
}

// GetObject возвращает содержимое объекта в base64
func (f *Fetcher) GetObject(ctx context.Context, req *apigw.Request) *apigw.Response {
	obj, err := f.store.Get(ctx, req.Key)
	if err != nil {
		if errors.Is(err, backend.ErrNotFound) {
			logger.Debug("Object '%s' not found", req.Key)
		} else {
			logger.Error("Failed to get object '%s': %v", req.Key, err)
		}
		return errorResponse(err)
	}

	headers := make(http.Header)
	headers.Set("Content-Type", f.contentTypes.Resolve(req.Key, obj.ContentType))
	if !obj.LastModified.IsZero() {
		headers.Set("Last-Modified", obj.LastModified.UTC().Format(http.TimeFormat))
	}

	return &apigw.Response{
		StatusCode:      http.StatusOK,
		Headers:         headers,
		Body:            base64.StdEncoding.EncodeToString(obj.Body),
		IsBase64Encoded: true,
	}
}

// errorResponse переводит ошибку хранилища в ошибку ответа.
// Отсутствие объекта - клиентская ошибка, остальное - 500.
func errorResponse(err error) *apigw.Response {
	status := http.StatusInternalServerError
	if errors.Is(err, backend.ErrNotFound) {
		err = notFoundError{err}
		status = http.StatusNotFound
	}
	return &apigw.Response{
		StatusCode: status,
		Headers:    make(http.Header),
		Error:      err,
	}
}

// notFoundError помечает ошибку бэкенда как apigw.ErrNotFound, не повторяя текст:
// "object not found: cats/a.jpg", а не "object not found: object not found: cats/a.jpg".
type notFoundError struct {
	err error
}

func (e notFoundError) Error() string {
	return e.err.Error()
}

func (e notFoundError) Unwrap() []error {
	return []error{apigw.ErrNotFound, e.err}
}
