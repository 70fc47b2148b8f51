// Package logger provides structured logging for the driver builder
package logger

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	globalLogger *zap.Logger
	mu           sync.Mutex
)

type contextKey string

const (
	// BuildIDKey is the context key for the build ID
	BuildIDKey contextKey = "build_id"
	// SourceKey is the context key for the source name
	SourceKey contextKey = "source"

	loggerKey contextKey = "logger"
)

// Config represents logger configuration
type Config struct {
	// Level is debug, info, warn or error
	Level string
	// Encoding is console (default) or json
	Encoding    string
	Development bool
	// OutputPaths defaults to stderr so command output stays clean
	OutputPaths []string
}

// Init builds the global logger. Calling it again replaces the previous one.
func Init(cfg Config) error {
	l, err := New(cfg)
	if err != nil {
		return err
	}
	mu.Lock()
	globalLogger = l
	mu.Unlock()
	return nil
}

// New builds a logger from cfg without touching the global one.
func New(cfg Config) (*zap.Logger, error) {
	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level: %w", err)
	}

	zc := zap.NewProductionConfig()
	if cfg.Development {
		zc = zap.NewDevelopmentConfig()
	}
	zc.Level = zap.NewAtomicLevelAt(level)
	zc.Sampling = nil
	zc.Encoding = "console"
	if cfg.Encoding != "" {
		zc.Encoding = cfg.Encoding
	}
	zc.EncoderConfig.TimeKey = "timestamp"
	zc.EncoderConfig.MessageKey = "message"
	zc.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	zc.EncoderConfig.EncodeDuration = zapcore.StringDurationEncoder
	zc.OutputPaths = []string{"stderr"}
	if len(cfg.OutputPaths) > 0 {
		zc.OutputPaths = cfg.OutputPaths
	}
	zc.ErrorOutputPaths = []string{"stderr"}

	l, err := zc.Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build logger: %w", err)
	}
	return l, nil
}

// Get returns the global logger, creating an info-level console logger on
// first use.
func Get() *zap.Logger {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger == nil {
		l, err := New(Config{Level: "info"})
		if err != nil {
			l = zap.NewNop()
		}
		globalLogger = l
	}
	return globalLogger
}

// IntoContext returns a context carrying the given logger.
func IntoContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// WithContext returns the context's logger, or the global one, annotated
// with the build ID and source when the context has them.
func WithContext(ctx context.Context) *zap.Logger {
	l, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok || l == nil {
		l = Get()
	}

	var fields []zap.Field
	if buildID, ok := ctx.Value(BuildIDKey).(string); ok {
		fields = append(fields, zap.String("build_id", buildID))
	}
	if source, ok := ctx.Value(SourceKey).(string); ok {
		fields = append(fields, zap.String("source", source))
	}
	if len(fields) == 0 {
		return l
	}
	return l.With(fields...)
}

// Sync flushes any buffered log entries
func Sync() error {
	mu.Lock()
	defer mu.Unlock()
	if globalLogger != nil {
		return globalLogger.Sync()
	}
	return nil
}
