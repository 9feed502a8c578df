package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"s3gate/apigw"
	"s3gate/auth"
	"s3gate/backend"
	"s3gate/fetch"
	"s3gate/handlers"
	"s3gate/logger"
	"s3gate/monitoring"
	"s3gate/routing"
	"s3gate/telemetry"
	"s3gate/upload"
)

// shutdownTimeout - время на graceful shutdown после сигнала
const shutdownTimeout = 30 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the gateway as a standalone HTTP server",
	Args:  cobra.NoArgs,
	RunE:  runServe,
}

func init() {
	flags := serveCmd.Flags()
	flags.String("listen", "", "Listen address (overrides config)")
	flags.String("tls-cert", "", "TLS certificate file (overrides config)")
	flags.String("tls-key", "", "TLS key file (overrides config)")
	flags.Duration("read-timeout", 0, "Read timeout (overrides config)")
	flags.Duration("write-timeout", 0, "Write timeout (overrides config)")
	flags.Bool("mock", false, "Use mock handler instead of policy routing engine (overrides config)")
	flags.String("metrics-listen", "", "Metrics server listen address (overrides config)")
	flags.Bool("disable-metrics", false, "Disable metrics server (overrides config)")
	flags.String("bucket", "", "Bucket name (overrides config, env BUCKET_NAME)")
	flags.String("parameter-name", "", "SSM parameter holding the API key (overrides config, env PARAMETER_STORE_NAME)")
	flags.String("api-key-header", "", "Header carrying the API key (overrides config, env API_KEY_HEADER)")

	rootCmd.AddCommand(serveCmd)
}

// components - собранные модули режима serve
type components struct {
	handler apigw.RequestHandler
	health  *backend.HealthChecker
}

// buildComponents создает хранилище, Gatekeeper и движок маршрутизации.
// Метрики модулей регистрируются в reg.
func buildComponents(ctx context.Context, config *AppConfig, reg prometheus.Registerer) (*components, error) {
	if config.Server.UseMock {
		logger.Info("Using Mock Handler (for testing)")
		return &components{handler: handlers.NewMockHandler()}, nil
	}

	logger.Info("Using Policy & Routing Engine")

	backendMetrics := backend.NewMetrics(reg)
	store, err := backend.NewStoreFromConfig(ctx, &config.Backend, backendMetrics)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}
	logger.Info("Store: provider=%s bucket=%s endpoint=%s", config.Backend.Provider, config.Backend.Bucket, config.Backend.Endpoint)

	var health *backend.HealthChecker
	if config.Backend.Health.Enabled {
		health, err = backend.NewHealthChecker(store, config.Backend.Health, backendMetrics)
		if err != nil {
			return nil, fmt.Errorf("failed to create health checker: %w", err)
		}
	}

	// Интерфейс остается nil, если ни один маршрут не требует ключа
	var gatekeeper routing.Authorizer
	if config.requiresAuth() {
		gk, err := auth.NewGatekeeperFromConfig(ctx, &config.Auth, auth.NewMetrics(reg))
		if err != nil {
			return nil, fmt.Errorf("failed to create gatekeeper: %w", err)
		}
		gatekeeper = gk
		logger.Info("Authentication: header=%s parameter=%s provider=%s", config.Auth.HeaderName, config.Auth.ParameterName, config.Auth.Provider)
	}

	logger.Info("Routing policies configured:")
	logger.Info("  read operations: require_auth=%v", config.Routing.Routes.Read.RequireAuth)
	logger.Info("  write operations: require_auth=%v", config.Routing.Routes.Write.RequireAuth)

	fetcher := fetch.NewFetcher(store, config.Objects.ContentTypes)
	uploader := upload.NewUploader(store, config.Objects.ContentTypes, &config.Upload)
	engine := routing.NewEngine(gatekeeper, fetcher, uploader, &config.Routing)

	return &components{handler: engine, health: health}, nil
}

func runServe(cmd *cobra.Command, _ []string) error {
	config, err := loadCommandConfig(cmd)
	if err != nil {
		return err
	}
	if err := config.ValidateServe(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(config.Logging)
	logger.Info("s3gate %s starting in serve mode...", version)
	logger.Info("Log level: %s", logger.GetGlobalLevel().String())

	ctx := cmd.Context()

	shutdownTelemetry, err := telemetry.Setup(ctx, &config.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}

	// Собственный реестр: только метрики s3gate и рантайма
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	monitoring.NewMetrics(registry, version, "serve")

	built, err := buildComponents(ctx, config, registry)
	if err != nil {
		return err
	}

	// Интерфейс readiness остается nil без проверок здоровья
	var readiness monitoring.ReadinessChecker
	if built.health != nil {
		if err := built.health.Start(); err != nil {
			return fmt.Errorf("failed to start health checker: %w", err)
		}
		readiness = built.health
	}

	monitor, err := monitoring.New(&config.Monitoring, registry, readiness)
	if err != nil {
		return fmt.Errorf("failed to create monitoring module: %w", err)
	}
	if err := monitor.Start(); err != nil {
		return fmt.Errorf("failed to start monitoring module: %w", err)
	}
	if monitor.IsEnabled() {
		logger.Info("Metrics available at: %s%s", monitor.Server().Addr(), config.Monitoring.MetricsPath)
	}

	gatewayConfig := config.ToAPIGatewayConfig()
	gateway := apigw.New(gatewayConfig, built.handler, apigw.NewMetrics(registry))

	logger.Info("Configuration:")
	logger.Info("  Listen Address: %s", gatewayConfig.ListenAddress)
	logger.Info("  Read Timeout: %v", gatewayConfig.ReadTimeout)
	logger.Info("  Write Timeout: %v", gatewayConfig.WriteTimeout)
	if gatewayConfig.TLSCertFile != "" {
		logger.Info("  TLS Enabled: Yes (cert: %s)", gatewayConfig.TLSCertFile)
	} else {
		logger.Info("  TLS Enabled: No")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- gateway.Start()
	}()

	logger.Info("s3gate started successfully")

	var runErr error
	select {
	case sig := <-sigChan:
		logger.Info("Received signal %v, shutting down...", sig)
	case err := <-serveErr:
		if err != nil {
			logger.Error("API Gateway failed: %v", err)
			runErr = fmt.Errorf("failed to serve: %w", err)
		}
	}

	monitor.BeginShutdown()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := gateway.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping API Gateway: %v", err)
	}

	if built.health != nil {
		if err := built.health.Stop(); err != nil {
			logger.Error("Error stopping health checker: %v", err)
		}
	}

	if err := monitor.Stop(shutdownCtx); err != nil {
		logger.Error("Error stopping monitoring: %v", err)
	}

	if err := shutdownTelemetry(shutdownCtx); err != nil {
		logger.Error("Error flushing telemetry: %v", err)
	}

	logger.Info("s3gate stopped")
	return runErr
}
