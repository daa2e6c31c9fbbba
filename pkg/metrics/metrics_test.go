package metrics

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_CountersAndGauges(t *testing.T) {
	m := NewMetrics()

	m.RecordSessionEvent("created")
	m.RecordSessionEvent("created")
	m.RecordTrackEvent("render_error")
	m.SetActiveSessions(3)

	assert.Equal(t, int64(2), m.GetCounter("session_event_created"))
	assert.Equal(t, int64(1), m.GetCounter("track_event_render_error"))
	assert.Equal(t, float64(3), m.GetGauge("active_sessions"))
}

func TestMetrics_DisabledIgnoresWrites(t *testing.T) {
	m := NewMetrics()
	m.Disable()

	m.IncCounter("x")
	m.SetGauge("y", 1)

	assert.Zero(t, m.GetCounter("x"))
	assert.Zero(t, m.GetGauge("y"))

	m.Enable()
	m.IncCounter("x")
	assert.Equal(t, int64(1), m.GetCounter("x"))
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *Metrics

	m.RecordTrackEvent("started")
	m.SetActiveSessions(1)

	assert.False(t, m.IsEnabled())
	assert.Zero(t, m.GetCounter("track_event_started"))
	assert.Nil(t, m.GetHistogramStats("anything"))
	assert.Empty(t, m.Snapshot())
}

func TestMetrics_CommandHistogram(t *testing.T) {
	m := NewMetrics()

	m.RecordCommandExecution("play", true, 10*time.Millisecond)
	m.RecordCommandExecution("play", false, 30*time.Millisecond)

	assert.Equal(t, int64(2), m.GetCounter("command_total_play"))
	assert.Equal(t, int64(1), m.GetCounter("command_success_play"))
	assert.Equal(t, int64(1), m.GetCounter("command_error_play"))

	stats := m.GetHistogramStats("command_duration_play")
	require.NotNil(t, stats)
	assert.Equal(t, 2, stats.Count)
	assert.Equal(t, float64(20), stats.Mean)
	assert.Equal(t, float64(10), stats.Min)
	assert.Equal(t, float64(30), stats.Max)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap["counter_command_total_play"])
	assert.Contains(t, snap, "histogram_command_duration_play_mean")
}

func TestMonitoringCollector_StopsWithContext(t *testing.T) {
	m := NewMetrics()
	c := NewMonitoringCollector(m, 5*time.Millisecond)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		c.Start(ctx)
		close(done)
	}()

	assert.Eventually(t, func() bool {
		return m.GetGauge("system_goroutines") > 0
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("collector did not stop")
	}
}

func TestMetrics_QueueLengthClearedPerGuild(t *testing.T) {
	m := NewMetrics()

	m.RecordQueueLength("g1", 3)
	m.RecordQueueLength("g2", 1)
	m.ClearQueueLength("g1")

	snap := m.Snapshot()
	assert.NotContains(t, snap, "gauge_queue_length_g1")
	assert.Equal(t, float64(1), snap["gauge_queue_length_g2"])
	assert.Contains(t, snap, "uptime_seconds")

	var nilMetrics *Metrics
	nilMetrics.ClearQueueLength("g1")
	assert.Empty(t, nilMetrics.Snapshot())
}
