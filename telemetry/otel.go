package telemetry

import (
	"context"
	"errors"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracehttp"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/sdk/resource"
	"go.opentelemetry.io/otel/sdk/trace"

	"s3gate/logger"
)

const (
	ExporterOTLP   = "otlp"
	ExporterStdout = "stdout"
)

// Config содержит конфигурацию трассировки
type Config struct {
	// Enabled - включить трассировку. По умолчанию выключена.
	Enabled bool `yaml:"enabled"`

	// Exporter - "otlp" (OTLP/HTTP) или "stdout"
	Exporter string `yaml:"exporter" validate:"omitempty,oneof=otlp stdout"`

	// Endpoint - host:port коллектора для otlp
	Endpoint string `yaml:"endpoint"`

	// Insecure - отправлять OTLP без TLS
	Insecure bool `yaml:"insecure"`

	// ServiceName - значение service.name в ресурсе
	ServiceName string `yaml:"service_name"`
}

// DefaultConfig возвращает конфигурацию по умолчанию
func DefaultConfig() *Config {
	return &Config{
		Enabled:     false,
		Exporter:    ExporterOTLP,
		Endpoint:    "localhost:4318",
		Insecure:    true,
		ServiceName: "s3gate",
	}
}

// Validate проверяет корректность конфигурации
func (c *Config) Validate() error {
	if !c.Enabled {
		return nil
	}

	switch c.Exporter {
	case ExporterOTLP:
		if c.Endpoint == "" {
			return fmt.Errorf("endpoint cannot be empty for the otlp exporter")
		}
	case ExporterStdout:
	default:
		return fmt.Errorf("unknown otel exporter: %q", c.Exporter)
	}

	return nil
}

// Setup настраивает глобальные TracerProvider и propagator.
// Возвращает функцию shutdown, которую нужно вызвать при остановке.
// При выключенной трассировке shutdown ничего не делает.
func Setup(ctx context.Context, cfg *Config) (func(context.Context) error, error) {
	return setup(ctx, cfg, nil)
}

// setup позволяет тестам подменить вывод stdout-экспортера
func setup(ctx context.Context, cfg *Config, stdout io.Writer) (func(context.Context) error, error) {
	var shutdownFuncs []func(context.Context) error

	// shutdown вызывает все зарегистрированные функции ровно один раз и объединяет ошибки
	shutdown := func(ctx context.Context) error {
		var err error
		for _, fn := range shutdownFuncs {
			err = errors.Join(err, fn(ctx))
		}
		shutdownFuncs = nil
		return err
	}

	if cfg == nil || !cfg.Enabled {
		logger.Debug("Tracing is disabled")
		return shutdown, nil
	}
	if err := cfg.Validate(); err != nil {
		return shutdown, fmt.Errorf("invalid telemetry config: %w", err)
	}

	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(
		propagation.TraceContext{},
		propagation.Baggage{},
	))

	tracerProvider, err := newTracerProvider(ctx, cfg, stdout)
	if err != nil {
		return shutdown, err
	}
	shutdownFuncs = append(shutdownFuncs, tracerProvider.Shutdown)
	otel.SetTracerProvider(tracerProvider)

	logger.Info("Tracing enabled (exporter: %s, endpoint: %s)", cfg.Exporter, cfg.Endpoint)
	return shutdown, nil
}

func newTracerProvider(ctx context.Context, cfg *Config, stdout io.Writer) (*trace.TracerProvider, error) {
	var exporter trace.SpanExporter
	var err error

	switch cfg.Exporter {
	case ExporterOTLP:
		opts := []otlptracehttp.Option{otlptracehttp.WithEndpoint(cfg.Endpoint)}
		if cfg.Insecure {
			opts = append(opts, otlptracehttp.WithInsecure())
		}
		exporter, err = otlptracehttp.New(ctx, opts...)
	case ExporterStdout:
		opts := []stdouttrace.Option{stdouttrace.WithPrettyPrint()}
		if stdout != nil {
			opts = append(opts, stdouttrace.WithWriter(stdout))
		}
		exporter, err = stdouttrace.New(opts...)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s exporter: %w", cfg.Exporter, err)
	}

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = DefaultConfig().ServiceName
	}

	res, err := resource.New(ctx,
		resource.WithHost(),
		resource.WithProcess(),
		resource.WithTelemetrySDK(),
		resource.WithAttributes(
			attribute.String("service.name", serviceName),
		),
		resource.WithFromEnv(),
	)
	if errors.Is(err, resource.ErrPartialResource) || errors.Is(err, resource.ErrSchemaURLConflict) {
		logger.Warn("Could not create complete resource for OpenTelemetry: %v", err)
	} else if err != nil {
		return nil, err
	}

	return trace.NewTracerProvider(
		trace.WithBatcher(exporter),
		trace.WithResource(res),
	), nil
}
