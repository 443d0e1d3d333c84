package jobmetrics

import (
	"errors"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestTrackerRecordsOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	run := m.Track("dashboard:warmup")
	run.Processed(3)
	run.Processed(0)
	assert.NoError(t, run.End(nil))
	boom := errors.New("boom")
	assert.Equal(t, boom, m.Track("dashboard:warmup").End(boom))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("dashboard:warmup", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.runs.WithLabelValues("dashboard:warmup", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.failures.WithLabelValues("dashboard:warmup")))
	assert.Equal(t, 3.0, testutil.ToFloat64(m.items.WithLabelValues("dashboard:warmup")))
	assert.Greater(t, testutil.ToFloat64(m.lastSuccess.WithLabelValues("dashboard:warmup")), 0.0)
}

func TestNilMetricsTrackerIsNoop(t *testing.T) {
	var m *Metrics
	err := errors.New("x")
	tracker := m.Track("job")
	tracker.Processed(2)
	assert.Equal(t, err, tracker.End(err))
}
