package backend

import (
	"context"
	"errors"
	"time"
)

// BackendState представляет состояние хранилища по результатам проверок здоровья
type BackendState string

const (
	StateUp      BackendState = "UP"      // Хранилище полностью работоспособно
	StateDown    BackendState = "DOWN"    // Хранилище недоступно
	StateProbing BackendState = "PROBING" // Промежуточное состояние - проверка восстановления
)

// String возвращает строковое представление состояния
func (s BackendState) String() string {
	return string(s)
}

// ToFloat64 возвращает числовое представление состояния для метрик Prometheus
func (s BackendState) ToFloat64() float64 {
	switch s {
	case StateUp:
		return 1.0
	case StateProbing:
		return 0.5
	default:
		return 0.0
	}
}

// Object - содержимое объекта и его метаданные
type Object struct {
	Key          string
	Body         []byte
	ContentType  string
	Size         int64
	LastModified time.Time
}

// Store - хранилище объектов в одном бакете
type Store interface {
	// List возвращает ключи с заданным префиксом в порядке перечисления хранилища.
	List(ctx context.Context, prefix string) ([]string, error)

	// Get возвращает объект целиком. Отсутствующий ключ - ErrNotFound.
	Get(ctx context.Context, key string) (*Object, error)

	// Put сохраняет объект, перезаписывая существующий.
	// Пустой contentType оставляет тип на усмотрение хранилища.
	Put(ctx context.Context, key string, data []byte, contentType string) error

	// Ping - легковесная проверка доступности бакета.
	Ping(ctx context.Context) error
}

var (
	// ErrNotFound - объект с таким ключом отсутствует.
	ErrNotFound = errors.New("object not found")
	// ErrBucketNotFound - бакет отсутствует. Это ошибка инфраструктуры, а не клиента.
	ErrBucketNotFound = errors.New("bucket not found")
)
