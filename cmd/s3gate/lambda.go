package main

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/aws/aws-lambda-go/lambda"
	"github.com/spf13/cobra"

	"s3gate/apigw"
	"s3gate/auth"
	"s3gate/backend"
	"s3gate/fetch"
	"s3gate/lambdafn"
	"s3gate/logger"
	"s3gate/routing"
	"s3gate/telemetry"
	"s3gate/upload"
)

const (
	functionAuthorizer = "authorizer"
	functionObjects    = "objects"
)

var lambdaCmd = &cobra.Command{
	Use:       "lambda {authorizer|objects}",
	Short:     "Run one of the AWS Lambda functions",
	Long:      "Runs the selected function under the AWS Lambda runtime API. As a custom runtime bootstrap the function is taken from _HANDLER.",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{functionAuthorizer, functionObjects},
	RunE:      runLambda,
}

func init() {
	lambdaCmd.Flags().Bool("http-api", false, "Functions receive HTTP API (payload 2.0) events instead of REST API events (env S3GATE_HTTP_API)")
	rootCmd.AddCommand(lambdaCmd)
}

func runLambda(cmd *cobra.Command, args []string) error {
	config, err := loadCommandConfig(cmd)
	if err != nil {
		return err
	}

	function := args[0]
	switch function {
	case functionAuthorizer:
		err = config.ValidateAuthorizer()
	case functionObjects:
		err = config.ValidateObjects()
	}
	if err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	setupLogging(config.Logging)
	logger.Info("s3gate %s starting lambda function %q", version, function)

	ctx := cmd.Context()
	shutdownTelemetry, err := telemetry.Setup(ctx, &config.Telemetry)
	if err != nil {
		return fmt.Errorf("failed to set up telemetry: %w", err)
	}
	// На SIGTERM среда выполнения дает время сбросить спаны
	onSigterm := lambda.WithEnableSIGTERM(func() {
		if err := shutdownTelemetry(context.Background()); err != nil {
			logger.Error("Error flushing telemetry: %v", err)
		}
	})

	httpAPI := httpAPIPayload(cmd)

	var handler any
	switch function {
	case functionAuthorizer:
		handler, err = newAuthorizerFunction(ctx, config, httpAPI)
	case functionObjects:
		handler, err = newObjectsFunction(ctx, config, httpAPI)
	}
	if err != nil {
		return err
	}

	lambda.StartWithOptions(handler, onSigterm)
	return nil
}

// httpAPIPayload - формат событий обеих функций. В режиме bootstrap флагов нет, поэтому читается и окружение.
func httpAPIPayload(cmd *cobra.Command) bool {
	if cmd.Flags().Changed("http-api") {
		enabled, _ := cmd.Flags().GetBool("http-api")
		return enabled
	}
	enabled, _ := strconv.ParseBool(os.Getenv(envPrefix + "_HTTP_API"))
	return enabled
}

// newAuthorizerFunction собирает функцию-авторизатор
func newAuthorizerFunction(ctx context.Context, config *AppConfig, httpAPI bool) (any, error) {
	gatekeeper, err := auth.NewGatekeeperFromConfig(ctx, &config.Auth, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create gatekeeper: %w", err)
	}

	authorizer := lambdafn.NewAuthorizerHandler(gatekeeper)
	if httpAPI {
		return authorizer.HandleV2, nil
	}
	return authorizer.Handle, nil
}

// newObjectsFunction собирает функцию чтения и записи объектов.
// Ключ уже проверен авторизатором на стороне API Gateway, поэтому движок собирается без Gatekeeper.
func newObjectsFunction(ctx context.Context, config *AppConfig, httpAPI bool) (any, error) {
	// Фоновые проверки в Lambda не запускаются
	config.Backend.Health.Enabled = false

	store, err := backend.NewStoreFromConfig(ctx, &config.Backend, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create store: %w", err)
	}

	fetcher := fetch.NewFetcher(store, config.Objects.ContentTypes)
	uploader := upload.NewUploader(store, config.Objects.ContentTypes, &config.Upload)
	engine := routing.NewEngine(nil, fetcher, uploader, &routing.Config{})

	objects := lambdafn.NewObjectsHandler(apigw.NewRequestParser(config.Objects.RejectParentSegments), engine)
	if httpAPI {
		return objects.HandleV2, nil
	}
	return objects.Handle, nil
}
