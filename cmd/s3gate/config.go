package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"s3gate/apigw"
	"s3gate/auth"
	"s3gate/backend"
	"s3gate/monitoring"
	"s3gate/routing"
	"s3gate/telemetry"
	"s3gate/upload"
)

// envPrefix - префикс переменных окружения вида S3GATE_SERVER_LISTEN_ADDRESS
const envPrefix = "S3GATE"

// AppConfig содержит полную конфигурацию приложения
type AppConfig struct {
	// Конфигурация HTTP фронта (serve)
	Server ServerConfig `yaml:"server"`

	// Конфигурация логирования
	Logging LoggingConfig `yaml:"logging"`

	// Конфигурация аутентификации
	Auth auth.Config `yaml:"auth"`

	// Конфигурация хранилища объектов
	Backend backend.Config `yaml:"backend"`

	// Правила формирования ответов и ключей
	Objects ObjectsConfig `yaml:"objects"`

	// Конфигурация записи
	Upload upload.Config `yaml:"upload"`

	// Конфигурация политик маршрутизации
	Routing routing.Config `yaml:"routing"`

	// Конфигурация мониторинга
	Monitoring monitoring.Config `yaml:"monitoring"`

	// Конфигурация трассировки
	Telemetry telemetry.Config `yaml:"telemetry"`
}

// ServerConfig содержит конфигурацию HTTP сервера
type ServerConfig struct {
	ListenAddress         string        `yaml:"listen_address" validate:"required"`
	TLSCertFile           string        `yaml:"tls_cert_file" validate:"required_with=TLSKeyFile"`
	TLSKeyFile            string        `yaml:"tls_key_file" validate:"required_with=TLSCertFile"`
	ReadTimeout           time.Duration `yaml:"read_timeout" validate:"gt=0"`
	WriteTimeout          time.Duration `yaml:"write_timeout" validate:"gt=0"`
	MaxBodyBytes          int64         `yaml:"max_body_bytes" validate:"min=0"`
	CORSAllowedOrigins    []string      `yaml:"cors_allowed_origins"`
	DecodeBase64Responses bool          `yaml:"decode_base64_responses"`
	UseMock               bool          `yaml:"use_mock"`
}

// LoggingConfig содержит конфигурацию логирования
type LoggingConfig struct {
	Level string `yaml:"level" validate:"oneof=debug info warn error"`

	// Format - "text" или "json". Пусто - json внутри Lambda, text в остальных случаях.
	Format string `yaml:"format" validate:"omitempty,oneof=text json"`
}

// ObjectsConfig содержит правила работы с ключами и типами содержимого
type ObjectsConfig struct {
	apigw.ContentTypes `yaml:",inline"`

	// RejectParentSegments - отклонять ключи с сегментом ".." (400)
	RejectParentSegments bool `yaml:"reject_parent_segments"`
}

// DefaultAppConfig возвращает конфигурацию по умолчанию
func DefaultAppConfig() *AppConfig {
	server := apigw.DefaultConfig()
	return &AppConfig{
		Server: ServerConfig{
			ListenAddress: server.ListenAddress,
			ReadTimeout:   server.ReadTimeout,
			WriteTimeout:  server.WriteTimeout,
			MaxBodyBytes:  server.MaxBodyBytes,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
		Auth:    *auth.DefaultConfig(),
		Backend: *backend.DefaultConfig(),
		Objects: ObjectsConfig{
			ContentTypes:         apigw.DefaultContentTypes(),
			RejectParentSegments: server.RejectParentSegments,
		},
		Upload:     *upload.DefaultConfig(),
		Routing:    *routing.DefaultConfig(),
		Monitoring: *monitoring.DefaultConfig(),
		Telemetry:  *telemetry.DefaultConfig(),
	}
}

// LoadConfig загружает конфигурацию: значения по умолчанию, затем файл (если указан),
// затем переменные окружения и явно заданные флаги.
func LoadConfig(filename string, flags *pflag.FlagSet) (*AppConfig, error) {
	config := DefaultAppConfig()

	if filename != "" {
		data, err := os.ReadFile(filename)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", filename, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", filename, err)
		}
	}

	applyOverrides(config, newOverrideSource(flags))
	config.Logging.Level = strings.ToLower(config.Logging.Level)

	return config, nil
}

// flagToKey сопоставляет флаги командной строки ключам конфигурации
var flagToKey = map[string]string{
	"listen":          "server.listen_address",
	"tls-cert":        "server.tls_cert_file",
	"tls-key":         "server.tls_key_file",
	"read-timeout":    "server.read_timeout",
	"write-timeout":   "server.write_timeout",
	"mock":            "server.use_mock",
	"log-level":       "logging.level",
	"log-format":      "logging.format",
	"metrics-listen":  "monitoring.listen_address",
	"disable-metrics": "monitoring.disabled",
	"bucket":          "backend.bucket",
	"parameter-name":  "auth.parameter_name",
	"api-key-header":  "auth.header_name",
}

// legacyEnv - переменные окружения, под которыми функции разворачиваются в Lambda
var legacyEnv = map[string]string{
	"backend.bucket":      "BUCKET_NAME",
	"auth.parameter_name": "PARAMETER_STORE_NAME",
	"auth.header_name":    "API_KEY_HEADER",
	"logging.level":       "LOG_LEVEL",
}

// newOverrideSource собирает viper из окружения и явно заданных флагов.
// Файл конфигурации в viper не читается: его разбирает yaml.v3 поверх значений по умолчанию.
func newOverrideSource(flags *pflag.FlagSet) *viper.Viper {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, env := range legacyEnv {
		prefixed := envPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		_ = v.BindEnv(key, prefixed, env)
	}

	if flags != nil {
		flags.VisitAll(func(f *pflag.Flag) {
			key, ok := flagToKey[f.Name]
			if !ok || !f.Changed {
				return
			}
			_ = v.BindPFlag(key, f)
		})
	}

	return v
}

// override применяет одно значение из viper к конфигурации
type override struct {
	key   string
	apply func(c *AppConfig, v *viper.Viper)
}

func stringOverride(key string, field func(c *AppConfig) *string) override {
	return override{key, func(c *AppConfig, v *viper.Viper) { *field(c) = v.GetString(key) }}
}

func durationOverride(key string, field func(c *AppConfig) *time.Duration) override {
	return override{key, func(c *AppConfig, v *viper.Viper) { *field(c) = v.GetDuration(key) }}
}

func boolOverride(key string, field func(c *AppConfig) *bool) override {
	return override{key, func(c *AppConfig, v *viper.Viper) { *field(c) = v.GetBool(key) }}
}

func intOverride(key string, field func(c *AppConfig) *int) override {
	return override{key, func(c *AppConfig, v *viper.Viper) { *field(c) = v.GetInt(key) }}
}

func int64Override(key string, field func(c *AppConfig) *int64) override {
	return override{key, func(c *AppConfig, v *viper.Viper) { *field(c) = v.GetInt64(key) }}
}

// stringSliceOverride принимает список через запятую: "https://a.example,https://b.example"
func stringSliceOverride(key string, field func(c *AppConfig) *[]string) override {
	return override{key, func(c *AppConfig, v *viper.Viper) {
		var items []string
		for _, item := range strings.Split(v.GetString(key), ",") {
			if item = strings.TrimSpace(item); item != "" {
				items = append(items, item)
			}
		}
		*field(c) = items
	}}
}

var overrides = []override{
	stringOverride("server.listen_address", func(c *AppConfig) *string { return &c.Server.ListenAddress }),
	stringOverride("server.tls_cert_file", func(c *AppConfig) *string { return &c.Server.TLSCertFile }),
	stringOverride("server.tls_key_file", func(c *AppConfig) *string { return &c.Server.TLSKeyFile }),
	durationOverride("server.read_timeout", func(c *AppConfig) *time.Duration { return &c.Server.ReadTimeout }),
	durationOverride("server.write_timeout", func(c *AppConfig) *time.Duration { return &c.Server.WriteTimeout }),
	int64Override("server.max_body_bytes", func(c *AppConfig) *int64 { return &c.Server.MaxBodyBytes }),
	stringSliceOverride("server.cors_allowed_origins", func(c *AppConfig) *[]string { return &c.Server.CORSAllowedOrigins }),
	boolOverride("server.decode_base64_responses", func(c *AppConfig) *bool { return &c.Server.DecodeBase64Responses }),
	boolOverride("server.use_mock", func(c *AppConfig) *bool { return &c.Server.UseMock }),

	stringOverride("logging.level", func(c *AppConfig) *string { return &c.Logging.Level }),
	stringOverride("logging.format", func(c *AppConfig) *string { return &c.Logging.Format }),

	stringOverride("auth.provider", func(c *AppConfig) *string { return &c.Auth.Provider }),
	stringOverride("auth.header_name", func(c *AppConfig) *string { return &c.Auth.HeaderName }),
	stringOverride("auth.parameter_name", func(c *AppConfig) *string { return &c.Auth.ParameterName }),
	stringOverride("auth.region", func(c *AppConfig) *string { return &c.Auth.Region }),
	stringOverride("auth.endpoint", func(c *AppConfig) *string { return &c.Auth.Endpoint }),
	durationOverride("auth.cache_ttl", func(c *AppConfig) *time.Duration { return &c.Auth.CacheTTL }),
	// Секреты из окружения задаются JSON-объектом: {"/s3gate/api-key":"secret"}
	{"auth.static.secrets", func(c *AppConfig, v *viper.Viper) {
		c.Auth.Static = &auth.StaticConfig{Secrets: v.GetStringMapString("auth.static.secrets")}
	}},

	stringOverride("backend.provider", func(c *AppConfig) *string { return &c.Backend.Provider }),
	stringOverride("backend.endpoint", func(c *AppConfig) *string { return &c.Backend.Endpoint }),
	stringOverride("backend.region", func(c *AppConfig) *string { return &c.Backend.Region }),
	stringOverride("backend.bucket", func(c *AppConfig) *string { return &c.Backend.Bucket }),
	stringOverride("backend.access_key", func(c *AppConfig) *string { return &c.Backend.AccessKey }),
	stringOverride("backend.secret_key", func(c *AppConfig) *string { return &c.Backend.SecretKey }),
	boolOverride("backend.use_path_style", func(c *AppConfig) *bool { return &c.Backend.UsePathStyle }),
	boolOverride("backend.tracing", func(c *AppConfig) *bool { return &c.Backend.Tracing }),
	boolOverride("backend.health.enabled", func(c *AppConfig) *bool { return &c.Backend.Health.Enabled }),
	durationOverride("backend.health.interval", func(c *AppConfig) *time.Duration { return &c.Backend.Health.Interval }),
	durationOverride("backend.health.timeout", func(c *AppConfig) *time.Duration { return &c.Backend.Health.Timeout }),
	intOverride("backend.health.failure_threshold", func(c *AppConfig) *int { return &c.Backend.Health.FailureThreshold }),
	intOverride("backend.health.success_threshold", func(c *AppConfig) *int { return &c.Backend.Health.SuccessThreshold }),
	{"backend.health.initial_state", func(c *AppConfig, v *viper.Viper) {
		c.Backend.Health.InitialState = backend.BackendState(strings.ToUpper(v.GetString("backend.health.initial_state")))
	}},

	stringOverride("objects.default_content_type", func(c *AppConfig) *string { return &c.Objects.Default }),
	boolOverride("objects.detect_content_type", func(c *AppConfig) *bool { return &c.Objects.Detect }),
	boolOverride("objects.reject_parent_segments", func(c *AppConfig) *bool { return &c.Objects.RejectParentSegments }),

	durationOverride("upload.operation_timeout", func(c *AppConfig) *time.Duration { return &c.Upload.OperationTimeout }),
	intOverride("upload.retry_attempts", func(c *AppConfig) *int { return &c.Upload.RetryAttempts }),
	durationOverride("upload.retry_delay", func(c *AppConfig) *time.Duration { return &c.Upload.RetryDelay }),

	boolOverride("routing.routes.read.require_auth", func(c *AppConfig) *bool { return &c.Routing.Routes.Read.RequireAuth }),
	boolOverride("routing.routes.write.require_auth", func(c *AppConfig) *bool { return &c.Routing.Routes.Write.RequireAuth }),

	boolOverride("monitoring.enabled", func(c *AppConfig) *bool { return &c.Monitoring.Enabled }),
	stringOverride("monitoring.listen_address", func(c *AppConfig) *string { return &c.Monitoring.ListenAddress }),
	stringOverride("monitoring.metrics_path", func(c *AppConfig) *string { return &c.Monitoring.MetricsPath }),
	durationOverride("monitoring.read_timeout", func(c *AppConfig) *time.Duration { return &c.Monitoring.ReadTimeout }),
	durationOverride("monitoring.write_timeout", func(c *AppConfig) *time.Duration { return &c.Monitoring.WriteTimeout }),
	{"monitoring.disabled", func(c *AppConfig, v *viper.Viper) {
		if v.GetBool("monitoring.disabled") {
			c.Monitoring.Enabled = false
		}
	}},

	boolOverride("telemetry.enabled", func(c *AppConfig) *bool { return &c.Telemetry.Enabled }),
	stringOverride("telemetry.exporter", func(c *AppConfig) *string { return &c.Telemetry.Exporter }),
	stringOverride("telemetry.endpoint", func(c *AppConfig) *string { return &c.Telemetry.Endpoint }),
	boolOverride("telemetry.insecure", func(c *AppConfig) *bool { return &c.Telemetry.Insecure }),
	stringOverride("telemetry.service_name", func(c *AppConfig) *string { return &c.Telemetry.ServiceName }),
}

// applyOverrides переносит в конфигурацию только явно заданные значения
func applyOverrides(config *AppConfig, v *viper.Viper) {
	for _, o := range overrides {
		if v.IsSet(o.key) {
			o.apply(config, v)
		}
	}
}

// ToAPIGatewayConfig преобразует в конфигурацию API Gateway
func (c *AppConfig) ToAPIGatewayConfig() apigw.Config {
	return apigw.Config{
		ListenAddress:         c.Server.ListenAddress,
		TLSCertFile:           c.Server.TLSCertFile,
		TLSKeyFile:            c.Server.TLSKeyFile,
		ReadTimeout:           c.Server.ReadTimeout,
		WriteTimeout:          c.Server.WriteTimeout,
		MaxBodyBytes:          c.Server.MaxBodyBytes,
		CORSAllowedOrigins:    c.Server.CORSAllowedOrigins,
		DecodeBase64Responses: c.Server.DecodeBase64Responses,
		RejectParentSegments:  c.Objects.RejectParentSegments,
	}
}

// section - раздел конфигурации с собственными правилами проверки
type section struct {
	name  string
	value any
	check func() error
}

func (c *AppConfig) serverSection() section {
	return section{"server", &c.Server, nil}
}

func (c *AppConfig) loggingSection() section {
	return section{"logging", &c.Logging, nil}
}

func (c *AppConfig) authSection() section {
	return section{"auth", &c.Auth, c.Auth.Validate}
}

func (c *AppConfig) backendSection() section {
	return section{"backend", &c.Backend, c.Backend.Validate}
}

func (c *AppConfig) uploadSection() section {
	return section{"upload", &c.Upload, c.Upload.Validate}
}

func (c *AppConfig) monitoringSection() section {
	return section{"monitoring", &c.Monitoring, c.Monitoring.Validate}
}

func (c *AppConfig) telemetrySection() section {
	return section{"telemetry", &c.Telemetry, c.Telemetry.Validate}
}

// validateSections проверяет теги validate и правила пакетов для перечисленных разделов
func validateSections(sections ...section) error {
	validate := validator.New()
	for _, s := range sections {
		if err := validate.Struct(s.value); err != nil {
			return fmt.Errorf("%s config: %w", s.name, err)
		}
		if s.check != nil {
			if err := s.check(); err != nil {
				return fmt.Errorf("%s config: %w", s.name, err)
			}
		}
	}
	return nil
}

// requiresAuth - нужен ли ключ доступа хотя бы для одной группы операций
func (c *AppConfig) requiresAuth() bool {
	return c.Routing.Routes.Read.RequireAuth || c.Routing.Routes.Write.RequireAuth
}

// ValidateServe проверяет разделы, которые использует режим serve.
// С --mock хранилище и аутентификация не создаются и не проверяются.
func (c *AppConfig) ValidateServe() error {
	sections := []section{
		c.serverSection(),
		c.loggingSection(),
		c.monitoringSection(),
		c.telemetrySection(),
	}
	if !c.Server.UseMock {
		sections = append(sections, c.backendSection(), c.uploadSection())
		if c.requiresAuth() {
			sections = append(sections, c.authSection())
		}
	}
	return validateSections(sections...)
}

// ValidateAuthorizer проверяет разделы функции-авторизатора
func (c *AppConfig) ValidateAuthorizer() error {
	return validateSections(c.loggingSection(), c.telemetrySection(), c.authSection())
}

// ValidateObjects проверяет разделы функции чтения и записи объектов
func (c *AppConfig) ValidateObjects() error {
	return validateSections(
		c.loggingSection(),
		c.telemetrySection(),
		c.backendSection(),
		c.uploadSection(),
	)
}
