package observability

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/spec-kit/storefront-chat/internal/config"
)

func TestLoggerConfig(t *testing.T) {
	cfg := loggerConfig(config.LoggerConfig{Level: "DEBUG", Format: "console", Development: true})
	assert.Equal(t, zapcore.DebugLevel, cfg.Level.Level())
	assert.Equal(t, "console", cfg.Encoding)
	assert.False(t, cfg.DisableStacktrace)

	fallback := loggerConfig(config.LoggerConfig{Level: "loud", Format: "xml"})
	assert.Equal(t, zapcore.InfoLevel, fallback.Level.Level())
	assert.Equal(t, "json", fallback.Encoding)
	assert.True(t, fallback.DisableStacktrace)

	logger, err := NewLogger(config.LoggerConfig{Level: "warn"})
	require.NoError(t, err)
	assert.False(t, logger.Core().Enabled(zapcore.InfoLevel))
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.RecordEvent("in", "new_message")
		}()
	}
	wg.Wait()

	m.RecordRequest("/sessions", "POST", 201, time.Millisecond)
	m.RecordError("/sessions/:id/messages", "POST", "NOT_CONNECTED")
	m.RecordReconnect("scheduled")
	m.RecordUpload("image", "ok")

	snap := m.Snapshot()
	assert.Equal(t, int64(10), snap["events"]["in|new_message"])
	assert.Equal(t, int64(1), snap["requests"]["/sessions|POST|201"])
	assert.Equal(t, int64(1), snap["errors"]["/sessions/:id/messages|POST|NOT_CONNECTED"])
	assert.Equal(t, int64(1), snap["reconnects"]["scheduled"])
	assert.Equal(t, int64(1), snap["uploads"]["image|ok"])

	snap["events"]["in|new_message"] = 0
	assert.Equal(t, int64(10), m.Snapshot()["events"]["in|new_message"])
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.RecordEvent("out", "identify")
	m.RecordUpload("file", "failed")
	assert.Nil(t, m.Snapshot())
}
