package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"s3gate/logger"
)

// version подставляется при сборке через -ldflags "-X main.version=..."
var version = "dev"

var rootCmd = &cobra.Command{
	Use:   "s3gate",
	Short: "Key-protected gateway for reading and writing objects in one S3 bucket",
	Long: `s3gate exposes a single S3 bucket over HTTP: GET lists or fetches objects,
PUT stores them. Every request is checked against an API key kept in SSM Parameter Store.

The same binary runs as a standalone HTTP server (serve) or as the two AWS Lambda
functions behind API Gateway (lambda authorizer, lambda objects).`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().String("config", "", "Configuration file path (YAML, env S3GATE_CONFIG)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: debug, info, warn, error (overrides config)")
	rootCmd.PersistentFlags().String("log-format", "", "Log format: text, json (overrides config)")
}

// loadCommandConfig загружает конфигурацию с учетом флагов команды
func loadCommandConfig(cmd *cobra.Command) (*AppConfig, error) {
	configFile, _ := cmd.Flags().GetString("config")
	if configFile == "" {
		configFile = os.Getenv(envPrefix + "_CONFIG")
	}

	config, err := LoadConfig(configFile, cmd.Flags())
	if err != nil {
		return nil, err
	}
	if configFile != "" {
		logger.Debug("Configuration loaded from %s", configFile)
	}
	return config, nil
}

// setupLogging настраивает глобальный логгер по разделу logging
func setupLogging(config LoggingConfig) {
	format := logger.Format(config.Format)
	if format == "" {
		format = logger.FormatText
		if runningInLambda() {
			format = logger.FormatJSON
		}
	}
	logger.Setup(logger.ParseLogLevel(config.Level), format)
}

// runningInLambda - процесс запущен средой выполнения AWS Lambda
func runningInLambda() bool {
	return os.Getenv("AWS_LAMBDA_RUNTIME_API") != ""
}

// lambdaBootstrapArgs возвращает аргументы для запуска бинаря как bootstrap
// кастомной среды Lambda. Функция выбирается по _HANDLER ("authorizer", "objects").
func lambdaBootstrapArgs(args []string) []string {
	if !runningInLambda() || len(args) > 0 {
		return args
	}
	handler := strings.TrimSpace(os.Getenv("_HANDLER"))
	return []string{"lambda", handler}
}

func main() {
	rootCmd.SetArgs(lambdaBootstrapArgs(os.Args[1:]))
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
