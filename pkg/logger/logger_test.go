package logger_test

import (
	"bytes"
	"context"
	"encoding/json"
	stderrors "errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stockflow/stockflow-backend/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func capture(buf *bytes.Buffer) *logger.Logger {
	return &logger.Logger{Logger: zerolog.New(buf)}
}

func lastEntry(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

// --- Field Helper Tests ---

func TestFieldHelpers(t *testing.T) {
	var buf bytes.Buffer
	log := capture(&buf).
		WithComponent("scan").
		WithProductID("p-1").
		WithRequestID("req-1").
		WithUserID("emp-1").
		WithError(stderrors.New("user cache unavailable"))

	log.Error().Msg("failed to list violation recipients")

	entry := lastEntry(t, &buf)
	assert.Equal(t, "scan", entry["component"])
	assert.Equal(t, "p-1", entry["product_id"])
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "emp-1", entry["user_id"])
	assert.Equal(t, "user cache unavailable", entry["error"])
	assert.Equal(t, "error", entry["level"])
}

func TestWith_DoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := capture(&buf)
	_ = parent.WithUserID("emp-1")

	parent.Info().Msg("plain")

	entry := lastEntry(t, &buf)
	assert.NotContains(t, entry, "user_id")
}

// --- Level Tests ---

func TestNew_Level(t *testing.T) {
	tests := []struct {
		name        string
		environment string
		level       string
		want        zerolog.Level
	}{
		{name: "explicit level", environment: "production", level: "warn", want: zerolog.WarnLevel},
		{name: "upper case level", environment: "production", level: "ERROR", want: zerolog.ErrorLevel},
		{name: "development default", environment: "development", level: "", want: zerolog.DebugLevel},
		{name: "production default", environment: "production", level: "", want: zerolog.InfoLevel},
		{name: "unknown level falls back", environment: "staging", level: "loud", want: zerolog.InfoLevel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			log := logger.New("inventory-service", tt.environment, tt.level)
			assert.Equal(t, tt.want, log.GetLevel())
		})
	}
}

// --- Context Tests ---

func TestFromContext(t *testing.T) {
	fallback := logger.Nop()
	stored := logger.Nop().WithRequestID("req-1")

	assert.Same(t, fallback, logger.FromContext(context.Background(), fallback))

	ctx := logger.IntoContext(context.Background(), stored)
	assert.Same(t, stored, logger.FromContext(ctx, fallback))
}
