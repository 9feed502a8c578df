package routing

import (
	"context"

	"s3gate/apigw"
	"s3gate/auth"
)

// Authorizer - модуль, принимающий решение по заголовкам запроса
type Authorizer interface {
	// Authorize возвращает решение Allow/Deny. Ошибка означает сбой хранилища секрета.
	Authorize(ctx context.Context, headers map[string]string) (*auth.Decision, error)
}

// FetchingExecutor - интерфейс для модуля, выполняющего чтение из хранилища
type FetchingExecutor interface {
	// ListObjects возвращает JSON-массив ключей с префиксом req.Key
	ListObjects(ctx context.Context, req *apigw.Request) *apigw.Response

	// GetObject возвращает содержимое объекта в base64
	GetObject(ctx context.Context, req *apigw.Request) *apigw.Response
}

// UploadExecutor - интерфейс для модуля, выполняющего запись в хранилище
type UploadExecutor interface {
	// PutObject сохраняет раскодированное тело под ключом req.Key
	PutObject(ctx context.Context, req *apigw.Request) *apigw.Response
}

// RoutePolicy определяет политику для группы операций
type RoutePolicy struct {
	// RequireAuth - проверять ли ключ доступа перед выполнением операции
	RequireAuth bool `yaml:"require_auth"`
}

// Routes содержит политики для операций чтения и записи
type Routes struct {
	Read  RoutePolicy `yaml:"read"`
	Write RoutePolicy `yaml:"write"`
}

// Config содержит конфигурацию для Policy & Routing Engine
type Config struct {
	Routes Routes `yaml:"routes"`
}

// DefaultConfig возвращает конфигурацию по умолчанию: все операции требуют ключа
func DefaultConfig() *Config {
	return &Config{
		Routes: Routes{
			Read:  RoutePolicy{RequireAuth: true},
			Write: RoutePolicy{RequireAuth: true},
		},
	}
}

// policyFor возвращает политику для операции
func (c *Config) policyFor(op apigw.Operation) RoutePolicy {
	if op.IsWrite() {
		return c.Routes.Write
	}
	return c.Routes.Read
}
