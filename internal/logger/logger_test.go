package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"topicmon/pkg/logging"
)

func observed(level zapcore.Level) (*SugaredLogger, *observer.ObservedLogs) {
	core, logs := observer.New(level)
	return &SugaredLogger{
		SugaredLogger: zap.New(core).Sugar(),
		level:         zap.NewAtomicLevelAt(level),
	}, logs
}

func TestNew(t *testing.T) {
	for _, format := range []string{"json", "console", ""} {
		log, err := New("debug", format)
		require.NoError(t, err)
		assert.True(t, log.DebugEnabled())
	}

	log, err := New("warn", "json")
	require.NoError(t, err)
	assert.False(t, log.DebugEnabled())
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, parseLevel("debug"))
	assert.Equal(t, zapcore.WarnLevel, parseLevel("warn"))
	assert.Equal(t, zapcore.ErrorLevel, parseLevel("error"))
	assert.Equal(t, zapcore.InfoLevel, parseLevel("verbose"))
}

func TestContextFields(t *testing.T) {
	log, logs := observed(zapcore.DebugLevel)
	log.SetServiceName("topic-monitor")

	ctx := logging.WithSubscription(context.Background(), "orders-.*")
	ctx = logging.WithTopic(ctx, "orders")
	log.InfowCtx(ctx, "hello", "k", "v")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "orders-.*", fields["subscription"])
	assert.Equal(t, "orders", fields["topic"])
	assert.Equal(t, "topic-monitor", fields["service_name"])
	assert.Equal(t, "v", fields["k"])
}

func TestDebugwCtxSkippedAboveDebug(t *testing.T) {
	log, logs := observed(zapcore.InfoLevel)
	log.DebugwCtx(context.Background(), "hidden")
	assert.Zero(t, logs.Len())
}

func TestWith(t *testing.T) {
	log, logs := observed(zapcore.DebugLevel)
	child := log.With("component", "classifier")
	child.Warnw("careful")

	require.Equal(t, 1, logs.Len())
	assert.Equal(t, "classifier", logs.All()[0].ContextMap()["component"])
	assert.True(t, child.DebugEnabled())
}
