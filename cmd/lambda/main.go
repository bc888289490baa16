package main

import (
	"context"
	"log"
	"net/http"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/stefando/s3router/internal/config"
	"github.com/stefando/s3router/internal/lambdahttp"
	"github.com/stefando/s3router/internal/server"
	"github.com/stefando/s3router/internal/tracing"
)

// Built once per execution environment and reused across invocations
var (
	handler http.Handler
	logger  *zap.Logger
	flush   func()
)

func init() {
	cfg, err := config.Load(os.Getenv("S3ROUTER_CONFIG"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger, err = server.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}

	if _, err := tracing.Init(context.Background(), cfg.TracingOptions(), logger); err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}

	var report func(context.Context, error)
	report, flush = server.NewErrorReporter(cfg.RollbarToken, cfg.Environment)

	srv, err := server.New(context.Background(), cfg, server.Options{Logger: logger, ReportError: report})
	if err != nil {
		logger.Fatal("Failed to initialize server", zap.Error(err))
	}
	handler = srv.Handler
}

// lambdaHandler adapts API Gateway events to the router
func lambdaHandler(ctx context.Context, req events.APIGatewayProxyRequest) (events.APIGatewayProxyResponse, error) {
	resp := lambdahttp.Serve(ctx, handler, req)
	if err := tracing.ForceFlush(ctx); err != nil {
		logger.Warn("Failed to flush traces", zap.Error(err))
	}
	flush()
	return resp, nil
}

func main() {
	lambda.Start(lambdaHandler)
}
