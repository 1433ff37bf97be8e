package logger

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLogDatabaseOperation(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)

	t.Run("成功操作记为调试日志", func(t *testing.T) {
		LogDatabaseOperation(l, "UPDATE", "device_sessions", 3*time.Millisecond, nil, zap.Int64("rows", 1))
		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.DebugLevel, entries[0].Level)
		assert.Equal(t, "database_operation", entries[0].Message)
		fields := entries[0].ContextMap()
		assert.Equal(t, "UPDATE", fields["operation"])
		assert.Equal(t, "device_sessions", fields["table"])
		assert.Equal(t, int64(1), fields["rows"])
	})

	t.Run("失败操作记为错误日志", func(t *testing.T) {
		LogDatabaseOperation(l, "INSERT", "payments", time.Millisecond, errors.New("UNIQUE constraint failed"))
		entries := logs.TakeAll()
		require.Len(t, entries, 1)
		assert.Equal(t, zapcore.ErrorLevel, entries[0].Level)
		assert.Equal(t, "UNIQUE constraint failed", entries[0].ContextMap()["error"])
	})
}

func TestSetLevel(t *testing.T) {
	prev := Level()
	t.Cleanup(func() { SetLevel(prev) })

	SetLevel("warn")
	assert.Equal(t, "warn", Level())
	SetLevel("unknown")
	assert.Equal(t, "info", Level())
}
