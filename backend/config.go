package backend

import (
	"fmt"
	"time"
)

const (
	ProviderS3     = "s3"
	ProviderMemory = "memory"
)

// HealthConfig содержит конфигурацию активных проверок здоровья
type HealthConfig struct {
	// Enabled - запускать ли фоновые проверки (в режиме lambda не используются)
	Enabled bool `yaml:"enabled"`

	// Interval - интервал между активными проверками здоровья
	Interval time.Duration `yaml:"interval" validate:"min=0"`

	// Timeout - таймаут для одной проверки здоровья
	Timeout time.Duration `yaml:"timeout" validate:"min=0"`

	// FailureThreshold - количество последовательных неудач для перехода в DOWN
	FailureThreshold int `yaml:"failure_threshold" validate:"min=0"`

	// SuccessThreshold - количество последовательных успехов для перехода из PROBING в UP
	SuccessThreshold int `yaml:"success_threshold" validate:"min=0"`

	// InitialState - начальное состояние при запуске
	InitialState BackendState `yaml:"initial_state"`
}

// Config содержит конфигурацию хранилища объектов
type Config struct {
	// Provider - "s3" или "memory"
	Provider string `yaml:"provider" validate:"required,oneof=s3 memory"`

	// Endpoint - URL S3-совместимого хранилища. Пусто - AWS S3.
	Endpoint string `yaml:"endpoint" validate:"omitempty,url"`

	// Region - регион AWS (например, us-east-1). Пусто - из окружения.
	Region string `yaml:"region"`

	// Bucket - имя бакета (env BUCKET_NAME)
	Bucket string `yaml:"bucket" validate:"required_if=Provider s3"`

	// AccessKey/SecretKey - статические ключи. Пусто - стандартная цепочка AWS (роль Lambda).
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`

	// UsePathStyle - path-style адресация (MinIO и т.п.)
	UsePathStyle bool `yaml:"use_path_style"`

	// Tracing - оборачивать хранилище в спаны OpenTelemetry
	Tracing bool `yaml:"tracing"`

	Health HealthConfig `yaml:"health"`
}

// DefaultHealthConfig возвращает конфигурацию проверок по умолчанию
func DefaultHealthConfig() HealthConfig {
	return HealthConfig{
		Enabled:          true,
		Interval:         15 * time.Second,
		Timeout:          5 * time.Second,
		FailureThreshold: 3,
		SuccessThreshold: 2,
		InitialState:     StateProbing, // Начинаем с проверки
	}
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Provider: ProviderS3,
		Health:   DefaultHealthConfig(),
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderS3:
		if c.Bucket == "" {
			return fmt.Errorf("bucket cannot be empty")
		}
		if (c.AccessKey == "") != (c.SecretKey == "") {
			return fmt.Errorf("access_key and secret_key must be set together")
		}
	case ProviderMemory:
	default:
		return fmt.Errorf("unknown backend provider %q", c.Provider)
	}

	if err := c.Health.Validate(); err != nil {
		return fmt.Errorf("invalid health config: %w", err)
	}

	return nil
}

// Validate проверяет корректность конфигурации проверок здоровья
func (hc *HealthConfig) Validate() error {
	if !hc.Enabled {
		return nil
	}

	if hc.Interval <= 0 {
		return fmt.Errorf("interval must be positive")
	}

	if hc.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}

	if hc.Timeout >= hc.Interval {
		return fmt.Errorf("timeout must be less than interval")
	}

	if hc.FailureThreshold <= 0 {
		return fmt.Errorf("failure_threshold must be positive")
	}

	if hc.SuccessThreshold <= 0 {
		return fmt.Errorf("success_threshold must be positive")
	}

	if hc.InitialState != StateUp && hc.InitialState != StateDown && hc.InitialState != StateProbing {
		return fmt.Errorf("initial_state must be one of: UP, DOWN, PROBING")
	}

	return nil
}
