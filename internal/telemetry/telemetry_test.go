package telemetry

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	"github.com/vnmchuo/insight-gateway/config"
)

func TestMetrics_ObserveAttempt(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.ObserveAttempt("openai", "timeout", 2*time.Second)
	m.ObserveAttempt("openai", "timeout", time.Second)
	m.ObserveAttempt("gemini", "success", 300*time.Millisecond)
	m.ObserveResult("gemini")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.attempts.WithLabelValues("openai", "timeout")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.attempts.WithLabelValues("gemini", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.results.WithLabelValues("gemini")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.attemptDuration))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAttempt("openai", "success", time.Second)
		m.ObserveResult("rule")
	})
}

func TestNewLogger_Levels(t *testing.T) {
	cases := map[string]zapcore.Level{
		"debug": zapcore.DebugLevel,
		"info":  zapcore.InfoLevel,
		"warn":  zapcore.WarnLevel,
		"error": zapcore.ErrorLevel,
		"":      zapcore.InfoLevel,
	}
	for levelStr, want := range cases {
		logger, err := NewLogger(levelStr, "console")
		require.NoError(t, err)
		assert.True(t, logger.Core().Enabled(want), "level %q", levelStr)
		if want > zapcore.DebugLevel {
			assert.False(t, logger.Core().Enabled(want-1), "level %q", levelStr)
		}
	}
}

func TestInitTracer_None(t *testing.T) {
	shutdown, err := InitTracer("test", &config.Config{OTELExporterType: "none"}, nil)
	require.NoError(t, err)
	assert.NotPanics(t, shutdown)
}

func TestInitTracer_Unknown(t *testing.T) {
	_, err := InitTracer("test", &config.Config{OTELExporterType: "jaeger"}, nil)
	assert.Error(t, err)
}
