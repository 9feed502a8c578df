package main

import (
	"os"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"s3gate/auth"
	"s3gate/backend"
)

const testConfigYAML = `
server:
  listen_address: ":7070"
  read_timeout: 10s
  write_timeout: 10s
logging:
  level: warn
auth:
  provider: static
  header_name: x-api-key
  parameter_name: /s3gate/api-key
  static:
    secrets:
      /s3gate/api-key: secret
backend:
  provider: memory
  health:
    enabled: false
objects:
  default_content_type: application/octet-stream
  detect_content_type: false
  reject_parent_segments: false
routing:
  routes:
    read:
      require_auth: false
    write:
      require_auth: true
upload:
  retry_attempts: 2
monitoring:
  enabled: false
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

// serveFlags повторяет набор флагов команды serve
func serveFlags(t *testing.T, args ...string) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("serve", pflag.ContinueOnError)
	flags.String("listen", "", "")
	flags.Duration("read-timeout", 0, "")
	flags.Bool("disable-metrics", false, "")
	flags.String("bucket", "", "")
	flags.String("log-level", "", "")
	require.NoError(t, flags.Parse(args))
	return flags
}

func TestDefaultAppConfig(t *testing.T) {
	config := DefaultAppConfig()

	assert.Equal(t, ":8080", config.Server.ListenAddress)
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, auth.DefaultHeaderName, config.Auth.HeaderName)
	assert.Equal(t, backend.ProviderS3, config.Backend.Provider)
	assert.Equal(t, "image/jpeg", config.Objects.Default)
	assert.True(t, config.Objects.Detect)
	assert.True(t, config.Objects.RejectParentSegments)
	assert.True(t, config.Routing.Routes.Read.RequireAuth)
	assert.True(t, config.Routing.Routes.Write.RequireAuth)
	assert.False(t, config.Telemetry.Enabled)

	// Без бакета и параметра серверный режим не проходит проверку
	assert.Error(t, config.ValidateServe())

	// С --mock хранилище и ключ не нужны
	config.Server.UseMock = true
	assert.NoError(t, config.ValidateServe())
}

func TestLoadConfig_File(t *testing.T) {
	config, err := LoadConfig(writeConfig(t, testConfigYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, ":7070", config.Server.ListenAddress)
	assert.Equal(t, 10*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, "warn", config.Logging.Level)
	assert.Equal(t, "x-api-key", config.Auth.HeaderName)
	assert.Equal(t, "secret", config.Auth.Static.Secrets["/s3gate/api-key"])
	assert.Equal(t, backend.ProviderMemory, config.Backend.Provider)
	assert.False(t, config.Backend.Health.Enabled)
	assert.Equal(t, "application/octet-stream", config.Objects.Default)
	assert.False(t, config.Objects.Detect)
	assert.False(t, config.Objects.RejectParentSegments)
	assert.False(t, config.Routing.Routes.Read.RequireAuth)
	assert.True(t, config.Routing.Routes.Write.RequireAuth)
	assert.Equal(t, 2, config.Upload.RetryAttempts)
	assert.False(t, config.Monitoring.Enabled)

	// Значения, которых нет в файле, остаются по умолчанию
	assert.Equal(t, 30*time.Second, config.Upload.OperationTimeout)
	assert.Equal(t, int64(10<<20), config.Server.MaxBodyBytes)

	require.NoError(t, config.ValidateServe())
	require.NoError(t, config.ValidateAuthorizer())
	require.NoError(t, config.ValidateObjects())

	gw := config.ToAPIGatewayConfig()
	assert.Equal(t, ":7070", gw.ListenAddress)
	assert.False(t, gw.RejectParentSegments)
}

func TestLoadConfig_Errors(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"), nil)
	assert.Error(t, err)

	_, err = LoadConfig(writeConfig(t, "server: [not, a, map]"), nil)
	assert.Error(t, err)
}

func TestLoadConfig_LegacyEnvironment(t *testing.T) {
	t.Setenv("BUCKET_NAME", "images")
	t.Setenv("PARAMETER_STORE_NAME", "/prod/api-key")
	t.Setenv("API_KEY_HEADER", "x-key")
	t.Setenv("LOG_LEVEL", "DEBUG")

	config, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, "images", config.Backend.Bucket)
	assert.Equal(t, "/prod/api-key", config.Auth.ParameterName)
	assert.Equal(t, "x-key", config.Auth.HeaderName)
	assert.Equal(t, "debug", config.Logging.Level)

	require.NoError(t, config.ValidateAuthorizer())
	require.NoError(t, config.ValidateObjects())
}

func TestLoadConfig_PrefixedEnvironment(t *testing.T) {
	t.Setenv("BUCKET_NAME", "legacy")
	t.Setenv("S3GATE_BACKEND_BUCKET", "prefixed")
	t.Setenv("S3GATE_SERVER_LISTEN_ADDRESS", ":6060")
	t.Setenv("S3GATE_SERVER_READ_TIMEOUT", "3s")
	t.Setenv("S3GATE_OBJECTS_DETECT_CONTENT_TYPE", "false")
	t.Setenv("S3GATE_TELEMETRY_ENABLED", "true")
	t.Setenv("S3GATE_TELEMETRY_EXPORTER", "stdout")

	config, err := LoadConfig(writeConfig(t, testConfigYAML), nil)
	require.NoError(t, err)

	assert.Equal(t, "prefixed", config.Backend.Bucket)
	assert.Equal(t, ":6060", config.Server.ListenAddress)
	assert.Equal(t, 3*time.Second, config.Server.ReadTimeout)
	assert.False(t, config.Objects.Detect)
	assert.True(t, config.Telemetry.Enabled)
	assert.Equal(t, "stdout", config.Telemetry.Exporter)
}

func TestLoadConfig_EnvironmentPerKey(t *testing.T) {
	testCases := []struct {
		env   string
		value string
		check func(t *testing.T, c *AppConfig)
	}{
		{"S3GATE_SERVER_TLS_CERT_FILE", "cert.pem", func(t *testing.T, c *AppConfig) { assert.Equal(t, "cert.pem", c.Server.TLSCertFile) }},
		{"S3GATE_SERVER_TLS_KEY_FILE", "key.pem", func(t *testing.T, c *AppConfig) { assert.Equal(t, "key.pem", c.Server.TLSKeyFile) }},
		{"S3GATE_SERVER_WRITE_TIMEOUT", "4s", func(t *testing.T, c *AppConfig) { assert.Equal(t, 4*time.Second, c.Server.WriteTimeout) }},
		{"S3GATE_SERVER_MAX_BODY_BYTES", "42", func(t *testing.T, c *AppConfig) { assert.Equal(t, int64(42), c.Server.MaxBodyBytes) }},
		{"S3GATE_SERVER_CORS_ALLOWED_ORIGINS", "https://a.example, https://b.example", func(t *testing.T, c *AppConfig) {
			assert.Equal(t, []string{"https://a.example", "https://b.example"}, c.Server.CORSAllowedOrigins)
		}},
		{"S3GATE_SERVER_DECODE_BASE64_RESPONSES", "true", func(t *testing.T, c *AppConfig) { assert.True(t, c.Server.DecodeBase64Responses) }},
		{"S3GATE_SERVER_USE_MOCK", "true", func(t *testing.T, c *AppConfig) { assert.True(t, c.Server.UseMock) }},
		{"S3GATE_LOGGING_FORMAT", "json", func(t *testing.T, c *AppConfig) { assert.Equal(t, "json", c.Logging.Format) }},
		{"S3GATE_AUTH_PROVIDER", "static", func(t *testing.T, c *AppConfig) { assert.Equal(t, auth.ProviderStatic, c.Auth.Provider) }},
		{"S3GATE_AUTH_REGION", "eu-west-1", func(t *testing.T, c *AppConfig) { assert.Equal(t, "eu-west-1", c.Auth.Region) }},
		{"S3GATE_AUTH_ENDPOINT", "http://localhost:4566", func(t *testing.T, c *AppConfig) { assert.Equal(t, "http://localhost:4566", c.Auth.Endpoint) }},
		{"S3GATE_AUTH_CACHE_TTL", "1m", func(t *testing.T, c *AppConfig) { assert.Equal(t, time.Minute, c.Auth.CacheTTL) }},
		{"S3GATE_AUTH_STATIC_SECRETS", `{"/prod/api-key":"s3cr3t"}`, func(t *testing.T, c *AppConfig) {
			require.NotNil(t, c.Auth.Static)
			assert.Equal(t, "s3cr3t", c.Auth.Static.Secrets["/prod/api-key"])
		}},
		{"S3GATE_BACKEND_PROVIDER", "memory", func(t *testing.T, c *AppConfig) { assert.Equal(t, backend.ProviderMemory, c.Backend.Provider) }},
		{"S3GATE_BACKEND_ENDPOINT", "http://minio:9000", func(t *testing.T, c *AppConfig) { assert.Equal(t, "http://minio:9000", c.Backend.Endpoint) }},
		{"S3GATE_BACKEND_REGION", "eu-central-1", func(t *testing.T, c *AppConfig) { assert.Equal(t, "eu-central-1", c.Backend.Region) }},
		{"S3GATE_BACKEND_ACCESS_KEY", "AK", func(t *testing.T, c *AppConfig) { assert.Equal(t, "AK", c.Backend.AccessKey) }},
		{"S3GATE_BACKEND_SECRET_KEY", "SK", func(t *testing.T, c *AppConfig) { assert.Equal(t, "SK", c.Backend.SecretKey) }},
		{"S3GATE_BACKEND_USE_PATH_STYLE", "true", func(t *testing.T, c *AppConfig) { assert.True(t, c.Backend.UsePathStyle) }},
		{"S3GATE_BACKEND_TRACING", "true", func(t *testing.T, c *AppConfig) { assert.True(t, c.Backend.Tracing) }},
		{"S3GATE_BACKEND_HEALTH_ENABLED", "false", func(t *testing.T, c *AppConfig) { assert.False(t, c.Backend.Health.Enabled) }},
		{"S3GATE_BACKEND_HEALTH_INTERVAL", "9s", func(t *testing.T, c *AppConfig) { assert.Equal(t, 9*time.Second, c.Backend.Health.Interval) }},
		{"S3GATE_BACKEND_HEALTH_TIMEOUT", "2s", func(t *testing.T, c *AppConfig) { assert.Equal(t, 2*time.Second, c.Backend.Health.Timeout) }},
		{"S3GATE_BACKEND_HEALTH_FAILURE_THRESHOLD", "7", func(t *testing.T, c *AppConfig) { assert.Equal(t, 7, c.Backend.Health.FailureThreshold) }},
		{"S3GATE_BACKEND_HEALTH_SUCCESS_THRESHOLD", "5", func(t *testing.T, c *AppConfig) { assert.Equal(t, 5, c.Backend.Health.SuccessThreshold) }},
		{"S3GATE_BACKEND_HEALTH_INITIAL_STATE", "down", func(t *testing.T, c *AppConfig) { assert.Equal(t, backend.StateDown, c.Backend.Health.InitialState) }},
		{"S3GATE_OBJECTS_DEFAULT_CONTENT_TYPE", "text/plain", func(t *testing.T, c *AppConfig) { assert.Equal(t, "text/plain", c.Objects.Default) }},
		{"S3GATE_OBJECTS_REJECT_PARENT_SEGMENTS", "false", func(t *testing.T, c *AppConfig) { assert.False(t, c.Objects.RejectParentSegments) }},
		{"S3GATE_UPLOAD_OPERATION_TIMEOUT", "5s", func(t *testing.T, c *AppConfig) { assert.Equal(t, 5*time.Second, c.Upload.OperationTimeout) }},
		{"S3GATE_UPLOAD_RETRY_ATTEMPTS", "3", func(t *testing.T, c *AppConfig) { assert.Equal(t, 3, c.Upload.RetryAttempts) }},
		{"S3GATE_UPLOAD_RETRY_DELAY", "250ms", func(t *testing.T, c *AppConfig) { assert.Equal(t, 250*time.Millisecond, c.Upload.RetryDelay) }},
		{"S3GATE_ROUTING_ROUTES_READ_REQUIRE_AUTH", "false", func(t *testing.T, c *AppConfig) { assert.False(t, c.Routing.Routes.Read.RequireAuth) }},
		{"S3GATE_ROUTING_ROUTES_WRITE_REQUIRE_AUTH", "false", func(t *testing.T, c *AppConfig) { assert.False(t, c.Routing.Routes.Write.RequireAuth) }},
		{"S3GATE_MONITORING_ENABLED", "false", func(t *testing.T, c *AppConfig) { assert.False(t, c.Monitoring.Enabled) }},
		{"S3GATE_MONITORING_LISTEN_ADDRESS", ":9191", func(t *testing.T, c *AppConfig) { assert.Equal(t, ":9191", c.Monitoring.ListenAddress) }},
		{"S3GATE_MONITORING_METRICS_PATH", "/stats", func(t *testing.T, c *AppConfig) { assert.Equal(t, "/stats", c.Monitoring.MetricsPath) }},
		{"S3GATE_MONITORING_READ_TIMEOUT", "6s", func(t *testing.T, c *AppConfig) { assert.Equal(t, 6*time.Second, c.Monitoring.ReadTimeout) }},
		{"S3GATE_MONITORING_WRITE_TIMEOUT", "8s", func(t *testing.T, c *AppConfig) { assert.Equal(t, 8*time.Second, c.Monitoring.WriteTimeout) }},
		{"S3GATE_TELEMETRY_ENDPOINT", "collector:4318", func(t *testing.T, c *AppConfig) { assert.Equal(t, "collector:4318", c.Telemetry.Endpoint) }},
		{"S3GATE_TELEMETRY_INSECURE", "false", func(t *testing.T, c *AppConfig) { assert.False(t, c.Telemetry.Insecure) }},
		{"S3GATE_TELEMETRY_SERVICE_NAME", "images-gateway", func(t *testing.T, c *AppConfig) { assert.Equal(t, "images-gateway", c.Telemetry.ServiceName) }},
	}

	for _, tc := range testCases {
		t.Run(tc.env, func(t *testing.T) {
			t.Setenv(tc.env, tc.value)

			config, err := LoadConfig("", nil)
			require.NoError(t, err)
			tc.check(t, config)
		})
	}
}

// yamlLeafKeys собирает ключи всех конечных полей конфигурации по тегам yaml
func yamlLeafKeys(prefix string, typ reflect.Type) []string {
	var keys []string
	for i := 0; i < typ.NumField(); i++ {
		field := typ.Field(i)
		name, opts, _ := strings.Cut(field.Tag.Get("yaml"), ",")
		fieldType := field.Type
		if fieldType.Kind() == reflect.Pointer {
			fieldType = fieldType.Elem()
		}

		if strings.Contains(opts, "inline") {
			keys = append(keys, yamlLeafKeys(prefix, fieldType)...)
			continue
		}

		key := prefix + name
		if fieldType.Kind() == reflect.Struct {
			keys = append(keys, yamlLeafKeys(key+".", fieldType)...)
			continue
		}
		keys = append(keys, key)
	}
	return keys
}

func TestOverrides_CoverEveryKey(t *testing.T) {
	covered := make(map[string]bool, len(overrides))
	for _, o := range overrides {
		covered[o.key] = true
	}

	var missing []string
	for _, key := range yamlLeafKeys("", reflect.TypeOf(AppConfig{})) {
		if !covered[key] {
			missing = append(missing, key)
		}
	}
	sort.Strings(missing)
	assert.Empty(t, missing, "keys without environment override")
}

func TestLoadConfig_Flags(t *testing.T) {
	t.Setenv("BUCKET_NAME", "from-env")

	flags := serveFlags(t, "--listen", ":9999", "--read-timeout", "7s", "--disable-metrics", "--bucket", "from-flag")
	config, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, ":9999", config.Server.ListenAddress)
	assert.Equal(t, 7*time.Second, config.Server.ReadTimeout)
	assert.False(t, config.Monitoring.Enabled)
	assert.Equal(t, "from-flag", config.Backend.Bucket)

	// Флаги, которые не были заданы, ничего не переопределяют
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, 30*time.Second, config.Server.WriteTimeout)
}

func TestValidateSections(t *testing.T) {
	testCases := []struct {
		name    string
		mutate  func(c *AppConfig)
		check   func(c *AppConfig) error
		wantErr bool
	}{
		{
			name:   "serve with s3 backend",
			mutate: func(c *AppConfig) { c.Backend.Bucket = "images"; c.Auth.ParameterName = "/key" },
			check:  (*AppConfig).ValidateServe,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *AppConfig) { c.Server.UseMock = true; c.Logging.Level = "verbose" },
			check:   (*AppConfig).ValidateServe,
			wantErr: true,
		},
		{
			name:    "tls cert without key",
			mutate:  func(c *AppConfig) { c.Server.UseMock = true; c.Server.TLSCertFile = "cert.pem" },
			check:   (*AppConfig).ValidateServe,
			wantErr: true,
		},
		{
			name:    "zero read timeout",
			mutate:  func(c *AppConfig) { c.Server.UseMock = true; c.Server.ReadTimeout = 0 },
			check:   (*AppConfig).ValidateServe,
			wantErr: true,
		},
		{
			name: "serve without auth skips auth section",
			mutate: func(c *AppConfig) {
				c.Backend.Bucket = "images"
				c.Routing.Routes.Read.RequireAuth = false
				c.Routing.Routes.Write.RequireAuth = false
			},
			check: (*AppConfig).ValidateServe,
		},
		{
			name:    "serve with auth needs parameter name",
			mutate:  func(c *AppConfig) { c.Backend.Bucket = "images" },
			check:   (*AppConfig).ValidateServe,
			wantErr: true,
		},
		{
			name:   "authorizer ignores backend",
			mutate: func(c *AppConfig) { c.Auth.ParameterName = "/key" },
			check:  (*AppConfig).ValidateAuthorizer,
		},
		{
			name:   "objects ignores auth",
			mutate: func(c *AppConfig) { c.Backend.Bucket = "images" },
			check:  (*AppConfig).ValidateObjects,
		},
		{
			name:    "objects needs bucket",
			mutate:  func(c *AppConfig) {},
			check:   (*AppConfig).ValidateObjects,
			wantErr: true,
		},
		{
			name: "objects rejects negative upload retries",
			mutate: func(c *AppConfig) {
				c.Backend.Bucket = "images"
				c.Upload.RetryAttempts = -1
			},
			check:   (*AppConfig).ValidateObjects,
			wantErr: true,
		},
		{
			name: "unknown telemetry exporter",
			mutate: func(c *AppConfig) {
				c.Auth.ParameterName = "/key"
				c.Telemetry.Enabled = true
				c.Telemetry.Exporter = "zipkin"
			},
			check:   (*AppConfig).ValidateAuthorizer,
			wantErr: true,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultAppConfig()
			tc.mutate(config)

			err := tc.check(config)
			if tc.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}
