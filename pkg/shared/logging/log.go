package logging

import (
	"context"
	"os"

	"go.uber.org/zap"
)

// NewLogger builds the process wide logger. MANTIS_DEBUG=true switches the
// config to development.
func NewLogger() *zap.SugaredLogger {
	var config zap.Config
	debugMode, ok := os.LookupEnv("MANTIS_DEBUG")
	if ok && debugMode == "true" {
		config = zap.NewDevelopmentConfig()
	} else {
		config = zap.NewProductionConfig()
		// sampling would swallow repeated late-token warnings at high rates
		config.Sampling = nil
	}
	config.OutputPaths = []string{"stdout"}
	logger, err := config.Build()
	if err != nil {
		panic(err)
	}
	return logger.Named("mantis").Sugar()
}

type loggerKey struct{}

// WithLogger returns a copy of the parent context carrying the logger.
func WithLogger(ctx context.Context, logger *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// FromContext returns the logger carried in the context, or a fresh one.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if logger, ok := ctx.Value(loggerKey{}).(*zap.SugaredLogger); ok {
		return logger
	}
	return NewLogger()
}
