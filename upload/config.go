package upload

import (
	"fmt"
	"time"
)

// Config содержит конфигурацию модуля записи
type Config struct {
	// OperationTimeout - таймаут одной записи в хранилище. 0 - без отдельного таймаута.
	OperationTimeout time.Duration `yaml:"operation_timeout" validate:"min=0"`

	// RetryAttempts - количество повторов при ошибках хранилища
	RetryAttempts int `yaml:"retry_attempts" validate:"min=0"`

	// RetryDelay - задержка между попытками повтора
	RetryDelay time.Duration `yaml:"retry_delay" validate:"min=0"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		OperationTimeout: 30 * time.Second,
		RetryAttempts:    0,
		RetryDelay:       200 * time.Millisecond,
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if c.OperationTimeout < 0 {
		return fmt.Errorf("operation_timeout must be non-negative")
	}

	if c.RetryAttempts < 0 {
		return fmt.Errorf("retry_attempts must be non-negative")
	}

	if c.RetryDelay < 0 {
		return fmt.Errorf("retry_delay must be non-negative")
	}

	return nil
}
