package logger

import (
	"context"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Logger wraps zerolog.Logger
type Logger struct {
	zerolog.Logger
}

// New creates a logger tagged with the service name. Development output is
// human readable; every other environment writes JSON lines. An empty or
// unknown level falls back to debug in development and info elsewhere.
func New(serviceName, environment, level string) *Logger {
	dev := strings.EqualFold(environment, "development")

	var output io.Writer = os.Stdout
	if dev {
		output = zerolog.ConsoleWriter{
			Out:        os.Stdout,
			TimeFormat: time.RFC3339,
		}
	}

	return &Logger{
		Logger: zerolog.New(output).
			Level(parseLevel(level, dev)).
			With().
			Timestamp().
			Str("service", serviceName).
			Logger(),
	}
}

func parseLevel(level string, dev bool) zerolog.Level {
	if lvl, err := zerolog.ParseLevel(strings.ToLower(level)); err == nil && level != "" {
		return lvl
	}
	if dev {
		return zerolog.DebugLevel
	}
	return zerolog.InfoLevel
}

// Nop returns a logger that discards everything
func Nop() *Logger {
	return &Logger{Logger: zerolog.Nop()}
}

// With returns a logger carrying one extra string field
func (l *Logger) With(key, value string) *Logger {
	return &Logger{Logger: l.Logger.With().Str(key, value).Logger()}
}

// WithComponent returns a logger with the component name attached
func (l *Logger) WithComponent(component string) *Logger {
	return l.With("component", component)
}

// WithProductID returns a logger with the product ID attached
func (l *Logger) WithProductID(productID string) *Logger {
	return l.With("product_id", productID)
}

// WithRequestID returns a logger with the request ID attached
func (l *Logger) WithRequestID(requestID string) *Logger {
	return l.With("request_id", requestID)
}

// WithUserID returns a logger with the user ID attached
func (l *Logger) WithUserID(userID string) *Logger {
	return l.With("user_id", userID)
}

// WithError returns a logger carrying err in the error field
func (l *Logger) WithError(err error) *Logger {
	return &Logger{Logger: l.Logger.With().Err(err).Logger()}
}

type ctxKey struct{}

// IntoContext stores l in ctx
func IntoContext(ctx context.Context, l *Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// FromContext returns the logger stored in ctx, or fallback when there is none.
func FromContext(ctx context.Context, fallback *Logger) *Logger {
	if l, ok := ctx.Value(ctxKey{}).(*Logger); ok {
		return l
	}
	return fallback
}
