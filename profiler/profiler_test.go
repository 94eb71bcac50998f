package profiler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nvr-ai/go-ocr/log"
)

type staticCollector map[string]float64

func (c staticCollector) CollectMetrics() map[string]float64 { return c }

func TestStartOperationRecordsTimings(t *testing.T) {
	p := NewRuntimeProfiler(ProfilingOptions{Logger: log.Nop})

	done := p.StartOperation("ocr")
	time.Sleep(2 * time.Millisecond)
	done(nil)
	p.StartOperation("ocr")(errors.New("boom"))
	p.StartOperation("preprocess")(nil)

	stats := p.Stats()
	require.Len(t, stats.Operations, 2)
	assert.Equal(t, "ocr", stats.Operations[0].Name)

	op, ok := stats.Operation("ocr")
	require.True(t, ok)
	assert.Equal(t, int64(2), op.Count)
	assert.Equal(t, int64(1), op.Failures)
	assert.GreaterOrEqual(t, op.Max, 2*time.Millisecond)
	assert.LessOrEqual(t, op.Min, op.Avg)

	_, ok = stats.Operation("translate")
	assert.False(t, ok)
}

func TestRecordMetricWindow(t *testing.T) {
	p := NewRuntimeProfiler(ProfilingOptions{MaxSamples: 2, Logger: log.Nop})
	p.RecordMetric("queue", 1)
	p.RecordMetric("queue", 3)
	p.RecordMetric("queue", 5)

	stats := p.Stats()
	require.Len(t, stats.Metrics, 1)
	m := stats.Metrics[0]
	assert.Equal(t, 2, m.Samples)
	assert.InDelta(t, 4.0, m.Avg, 1e-9)
	assert.Equal(t, 1.0, m.Min)
	assert.Equal(t, 5.0, m.Max)
}

func TestStartStopSamplesCollectors(t *testing.T) {
	p := NewRuntimeProfiler(ProfilingOptions{
		SampleInterval: time.Millisecond,
		ReportInterval: 5 * time.Millisecond,
		Logger:         log.Nop,
	})
	p.AddMetricsCollector(staticCollector{"pool_running": 2})
	p.Start()
	p.Start()

	assert.Eventually(t, func() bool {
		for _, m := range p.Stats().Metrics {
			if m.Name == "pool_running" {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	p.Stop()
	p.Stop()
}
