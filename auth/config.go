package auth

import (
	"context"
	"fmt"
	"time"
)

const (
	ProviderSSM    = "ssm"
	ProviderStatic = "static"

	// DefaultHeaderName - заголовок с учетными данными
	DefaultHeaderName = "api-key"
)

// Config содержит конфигурацию для модуля аутентификации
type Config struct {
	// Provider определяет хранилище секрета ("ssm", "static")
	Provider string `yaml:"provider" json:"provider" validate:"required,oneof=ssm static"`

	// HeaderName - имя заголовка с учетными данными (env API_KEY_HEADER)
	HeaderName string `yaml:"header_name" json:"header_name" validate:"required"`

	// ParameterName - имя параметра с секретом (env PARAMETER_STORE_NAME)
	ParameterName string `yaml:"parameter_name" json:"parameter_name" validate:"required"`

	// Region и Endpoint для клиента SSM. Пустые значения - стандартная цепочка AWS.
	Region   string `yaml:"region" json:"region"`
	Endpoint string `yaml:"endpoint" json:"endpoint" validate:"omitempty,url"`

	// CacheTTL - время жизни кэша секрета. 0 - читать секрет на каждый запрос.
	CacheTTL time.Duration `yaml:"cache_ttl" json:"cache_ttl" validate:"min=0"`

	// Static содержит секреты для провайдера "static"
	Static *StaticConfig `yaml:"static,omitempty" json:"static,omitempty"`
}

// StaticConfig содержит секреты для статического хранилища
type StaticConfig struct {
	// Secrets - карта имя параметра -> значение
	Secrets map[string]string `yaml:"secrets" json:"secrets"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Provider:   ProviderSSM,
		HeaderName: DefaultHeaderName,
	}
}

// Validate проверяет корректность конфигурации аутентификации
func (c *Config) Validate() error {
	if c.Provider == "" {
		return fmt.Errorf("%w: provider cannot be empty", ErrInvalidConfig)
	}
	if c.HeaderName == "" {
		return fmt.Errorf("%w: header_name cannot be empty", ErrInvalidConfig)
	}
	if c.ParameterName == "" {
		return fmt.Errorf("%w: parameter_name cannot be empty", ErrInvalidConfig)
	}
	if c.CacheTTL < 0 {
		return fmt.Errorf("%w: cache_ttl cannot be negative", ErrInvalidConfig)
	}

	switch c.Provider {
	case ProviderSSM:
	case ProviderStatic:
		if c.Static == nil || len(c.Static.Secrets) == 0 {
			return fmt.Errorf("%w: static provider requires secrets", ErrInvalidConfig)
		}
		if _, ok := c.Static.Secrets[c.ParameterName]; !ok {
			return fmt.Errorf("%w: static secrets do not contain %q", ErrInvalidConfig, c.ParameterName)
		}
	default:
		return fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, c.Provider)
	}

	return nil
}

// NewSecretStoreFromConfig создает хранилище секрета, с кэшем, если он включен
func NewSecretStoreFromConfig(ctx context.Context, config *Config, metrics *Metrics) (SecretStore, error) {
	var store SecretStore
	switch config.Provider {
	case ProviderSSM:
		client, err := NewSSMClient(ctx, config.Region, config.Endpoint)
		if err != nil {
			return nil, err
		}
		store = NewSSMSecretStore(client)
	case ProviderStatic:
		if config.Static == nil {
			return nil, fmt.Errorf("%w: static provider requires secrets", ErrInvalidConfig)
		}
		store = NewStaticSecretStore(config.Static.Secrets)
	default:
		return nil, fmt.Errorf("%w: unknown provider %q", ErrInvalidConfig, config.Provider)
	}

	return NewCachingSecretStore(store, config.CacheTTL, metrics), nil
}

// NewGatekeeperFromConfig создает Gatekeeper на основе конфигурации
func NewGatekeeperFromConfig(ctx context.Context, config *Config, metrics *Metrics) (*Gatekeeper, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}

	store, err := NewSecretStoreFromConfig(ctx, config, metrics)
	if err != nil {
		return nil, err
	}

	return NewGatekeeper(config.HeaderName, config.ParameterName, store, metrics)
}
