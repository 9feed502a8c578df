package upload

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"time"

	"s3gate/apigw"
	"s3gate/backend"
	"s3gate/logger"
)

// ErrMalformedBody - тело PUT не является корректным base64.
// Считается ошибкой сервера, как и любая другая ошибка записи.
var ErrMalformedBody = errors.New("malformed base64 body")

// Uploader выполняет запись объектов
type Uploader struct {
	store        backend.Store
	contentTypes apigw.ContentTypes
	config       *Config
}

// NewUploader создает новый экземпляр Uploader
func NewUploader(store backend.Store, contentTypes apigw.ContentTypes, config *Config) *Uploader {
	if config == nil {
		config = DefaultConfig()
	}
	return &Uploader{
		store:        store,
		contentTypes: contentTypes,
		config:       config,
	}
}

// PutObject декодирует base64 тело и сохраняет байты под ключом req.Key, перезаписывая объект
func (u *Uploader) PutObject(ctx context.Context, req *apigw.Request) *apigw.Response {
	data, err := decodeBody(req)
	if err != nil {
		logger.Error("Failed to decode body for '%s': %v", req.Key, err)
		return errorResponse(fmt.Errorf("%w: %w", ErrMalformedBody, err))
	}

	contentType := u.contentTypes.ForKey(req.Key)
	if err := u.putWithRetry(ctx, req.Key, data, contentType); err != nil {
		logger.Error("Failed to upload '%s' (%d bytes): %v", req.Key, len(data), err)
		return errorResponse(err)
	}

	logger.Info("Uploaded '%s' (%d bytes)", req.Key, len(data))

	return &apigw.Response{
		StatusCode: http.StatusOK,
		Headers:    make(http.Header),
		Body:       fmt.Sprintf("new %s is uploaded", req.Key),
	}
}

// decodeBody снимает кодирование тела. Клиент всегда присылает base64 текст;
// если шлюз пометил тело как IsBase64Encoded, сверху лежит еще один слой base64.
func decodeBody(req *apigw.Request) ([]byte, error) {
	body := req.Body
	if req.IsBase64Encoded {
		outer, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return nil, fmt.Errorf("gateway encoding: %w", err)
		}
		body = string(outer)
	}
	return base64.StdEncoding.DecodeString(body)
}

func (u *Uploader) putWithRetry(ctx context.Context, key string, data []byte, contentType string) error {
	var err error
	for attempt := 0; attempt <= u.config.RetryAttempts; attempt++ {
		if attempt > 0 {
			logger.Warn("Retrying upload of '%s' (attempt %d/%d): %v", key, attempt, u.config.RetryAttempts, err)
			select {
			case <-time.After(u.config.RetryDelay):
			case <-ctx.Done():
				return fmt.Errorf("upload of %s cancelled: %w", key, ctx.Err())
			}
		}

		err = u.put(ctx, key, data, contentType)
		if err == nil || ctx.Err() != nil {
			return err
		}
	}
	return err
}

func (u *Uploader) put(ctx context.Context, key string, data []byte, contentType string) error {
	if u.config.OperationTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.config.OperationTimeout)
		defer cancel()
	}
	return u.store.Put(ctx, key, data, contentType)
}

func errorResponse(err error) *apigw.Response {
	return &apigw.Response{
		StatusCode: http.StatusInternalServerError,
		Headers:    make(http.Header),
		Error:      err,
	}
}
