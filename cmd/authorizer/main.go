package main

import (
	"context"
	"log"
	"os"

	"github.com/aws/aws-lambda-go/events"
	"github.com/aws/aws-lambda-go/lambda"
	"go.uber.org/zap"

	"github.com/stefando/s3router/internal/auth"
	"github.com/stefando/s3router/internal/config"
	"github.com/stefando/s3router/internal/lambdahttp"
	"github.com/stefando/s3router/internal/server"
)

var (
	verifier *auth.Verifier
	logger   *zap.Logger
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

	if !cfg.AuthConfig().Enabled() {
		logger.Fatal("OIDC_ISSUER or OIDC_JWKS_URL must be set for the authorizer")
	}
	verifier, err = auth.NewVerifier(context.Background(), cfg.AuthConfig())
	if err != nil {
		logger.Fatal("Failed to create token verifier", zap.Error(err))
	}
}

func handler(ctx context.Context, event events.APIGatewayCustomAuthorizerRequestTypeRequest) (events.APIGatewayCustomAuthorizerResponse, error) {
	return lambdahttp.Authorize(ctx, verifier, logger, event), nil
}

func main() {
	lambda.Start(handler)
}
