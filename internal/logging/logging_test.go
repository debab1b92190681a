package logging

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/funvibe/metakernel/internal/config"
)

func TestNewDisabledByDefault(t *testing.T) {
	logger, err := New(config.LogOptions{})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.ErrorLevel))
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(config.LogOptions{Level: "loud"})
	assert.ErrorContains(t, err, "log level")
}

func TestSessionID(t *testing.T) {
	id := SessionID()
	_, err := uuid.Parse(id)
	require.NoError(t, err)
	assert.NotEqual(t, id, SessionID())
}

func TestTracerOnlyEmitsEnabledClasses(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	tr := NewTracer(zap.New(core), []string{config.TraceIsClass})

	calls := 0
	tr.Trace(config.TraceTelescope, "skipped", func() []zap.Field {
		calls++
		return nil
	})
	tr.Trace(config.TraceIsClass, "checked", func() []zap.Field {
		calls++
		return []zap.Field{zap.String("type", "Monad m")}
	})

	assert.Equal(t, 1, calls, "fields are built lazily")
	entries := logs.All()
	require.Len(t, entries, 1)
	assert.Equal(t, "checked", entries[0].Message)
	assert.Equal(t, config.TraceIsClass, entries[0].ContextMap()["class"])
	assert.Equal(t, "Monad m", entries[0].ContextMap()["type"])
}

func TestTracerRespectsLevel(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	tr := NewTracer(zap.New(core), []string{config.TraceIsClass})
	assert.False(t, tr.Enabled(config.TraceIsClass))
	tr.Trace(config.TraceIsClass, "hidden", nil)
	assert.Empty(t, logs.All())
}
