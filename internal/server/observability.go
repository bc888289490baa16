package server

import (
	"context"
	"errors"
	"fmt"

	"github.com/rollbar/rollbar-go"
	"go.uber.org/zap"
)

// NewLogger returns a development logger for the "development" environment
// and a JSON production logger otherwise.
func NewLogger(level, environment string) (*zap.Logger, error) {
	var cfg zap.Config
	if environment == "development" {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
	}

	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}

	return cfg.Build()
}

// NewErrorReporter forwards signing failures to Rollbar. Without a token the
// reporter does nothing. The returned flush func waits for queued items.
func NewErrorReporter(token, environment string) (report func(ctx context.Context, err error), flush func()) {
	if token == "" {
		return func(context.Context, error) {}, func() {}
	}

	rollbar.SetToken(token)
	rollbar.SetEnvironment(environment)
	rollbar.SetServerRoot("github.com/stefando/s3router")

	report = func(ctx context.Context, err error) {
		// canceled requests are not failures of the service
		if errors.Is(err, context.Canceled) {
			return
		}
		rollbar.Error(err)
	}
	return report, rollbar.Wait
}
