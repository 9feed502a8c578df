package auth

import (
	"context"
	"errors"
)

// Effect - результат проверки: Allow или Deny
type Effect string

const (
	Allow Effect = "Allow"
	Deny  Effect = "Deny"
)

const (
	// PolicyVersion - версия языка IAM политик
	PolicyVersion = "2012-10-17"
	// InvokeAction - действие, которое разрешает или запрещает политика
	InvokeAction = "execute-api:Invoke"
	// AnyResource - политика применяется ко всем ресурсам
	AnyResource = "*"
	// AnyPrincipal - идентичность пользователя не моделируется
	AnyPrincipal = "*"
)

// Statement - единственное утверждение политики
type Statement struct {
	Action   string `json:"Action"`
	Effect   Effect `json:"Effect"`
	Resource string `json:"Resource"`
}

// PolicyDocument - документ политики, понятный вызывающему шлюзу
type PolicyDocument struct {
	Version   string      `json:"Version"`
	Statement []Statement `json:"Statement"`
}

// Decision - решение авторизации вместе с документом политики.
type Decision struct {
	Effect      Effect         `json:"-"`
	PrincipalID string         `json:"principalId"`
	Policy      PolicyDocument `json:"policyDocument"`

	// Reason - короткое пояснение для логов, клиенту не отдается
	Reason string `json:"-"`
}

// Allowed возвращает true для решения Allow
func (d *Decision) Allowed() bool {
	return d != nil && d.Effect == Allow
}

// newDecision строит решение с фиксированным документом политики
func newDecision(effect Effect, reason string) *Decision {
	return &Decision{
		Effect:      effect,
		PrincipalID: AnyPrincipal,
		Policy: PolicyDocument{
			Version: PolicyVersion,
			Statement: []Statement{
				{
					Action:   InvokeAction,
					Effect:   effect,
					Resource: AnyResource,
				},
			},
		},
		Reason: reason,
	}
}

// SecretStore - доверенное хранилище секрета.
type SecretStore interface {
	// Fetch возвращает текущее значение секрета по имени.
	// Ошибка хранилища всегда возвращается вызывающему, без подмены значения.
	Fetch(ctx context.Context, name string) (string, error)
}

// Пользовательские ошибки для точной диагностики
var (
	// ErrSecretNotFound - параметр с таким именем отсутствует в хранилище.
	ErrSecretNotFound = errors.New("secret parameter not found")
	// ErrSecretStore - хранилище секрета недоступно или вернуло ошибку.
	ErrSecretStore = errors.New("secret store failure")
	// ErrInvalidConfig - некорректная конфигурация модуля аутентификации.
	ErrInvalidConfig = errors.New("invalid auth config")
)
