package logger

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

const EnvVar = "TRADER_ENV"

func New() *zap.SugaredLogger {
	var (
		logger *zap.Logger
		err    error
	)
	opts := []zap.Option{
		zap.AddStacktrace(zap.ErrorLevel),
	}

	if strings.ToLower(os.Getenv(EnvVar)) == "dev" {
		logger, err = zap.NewDevelopment(opts...)
	} else {
		opts = append(opts, zap.Fields(zap.String(EnvVar, os.Getenv(EnvVar))))
		logger, err = zap.NewProduction(opts...)
	}

	if err != nil {
		panic(fmt.Errorf("failed to initialize logger: %w", err))
	}

	return logger.Sugar()
}

// NewObserved returns a logger that records entries in memory, for tests.
func NewObserved(level zapcore.Level) (*zap.SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return zap.New(core).Sugar(), logs
}

type contextKey string

const ContextKey contextKey = "LOGGER"

func NewContext(ctx context.Context, log *zap.SugaredLogger) context.Context {
	return context.WithValue(ctx, ContextKey, log)
}

var (
	fallbackOnce sync.Once
	fallback     *zap.SugaredLogger
)

// FromContext returns the context logger, or a shared New() logger when ctx
// carries none.
func FromContext(ctx context.Context) *zap.SugaredLogger {
	if log, ok := ctx.Value(ContextKey).(*zap.SugaredLogger); ok {
		return log
	}
	fallbackOnce.Do(func() {
		fallback = New()
		fallback.Warn("no logger found in ctx, using a new one")
	})
	return fallback
}

// With attaches fields to the context logger.
func With(ctx context.Context, args ...interface{}) (context.Context, *zap.SugaredLogger) {
	log := FromContext(ctx).With(args...)
	return NewContext(ctx, log), log
}
