package logger

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLevelMapping(t *testing.T) {
	assert.Equal(t, zapcore.DebugLevel, LogLevel("DEBUG").zapLevel())
	assert.Equal(t, zapcore.WarnLevel, WarnLevel.zapLevel())
	assert.Equal(t, zapcore.ErrorLevel, ErrorLevel.zapLevel())
	assert.Equal(t, zapcore.InfoLevel, LogLevel("verbose").zapLevel())
}

func TestHelpersWithoutInit(t *testing.T) {
	SetLogger(nil)
	assert.NotPanics(t, func() {
		Info("ignored", String("k", "v"))
		Warn("ignored")
		Sync()
	})
}

func TestSetLoggerRoutesHelpers(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	SetLogger(zap.New(core))
	t.Cleanup(func() { SetLogger(nil) })

	Warn("send failed", String("playListId", "p1"), Int("queued", 3))

	entries := logs.FilterMessage("send failed").All()
	require.Len(t, entries, 1)
	assert.Equal(t, zapcore.WarnLevel, entries[0].Level)
	assert.Equal(t, "p1", entries[0].ContextMap()["playListId"])
}
