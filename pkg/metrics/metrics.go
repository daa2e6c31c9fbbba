package metrics

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"
)

// Metrics tracks in-process counters, gauges and histograms
type Metrics struct {
	mu         sync.RWMutex
	startTime  time.Time
	counters   map[string]int64
	gauges     map[string]float64
	histograms map[string][]float64
	enabled    bool
}

// HistogramStats contains histogram statistics
type HistogramStats struct {
	Count int
	Sum   float64
	Mean  float64
	Min   float64
	Max   float64
}

// NewMetrics creates a new metrics instance
func NewMetrics() *Metrics {
	return &Metrics{
		startTime:  time.Now(),
		counters:   make(map[string]int64),
		gauges:     make(map[string]float64),
		histograms: make(map[string][]float64),
		enabled:    true,
	}
}

// Enable enables metrics collection
func (m *Metrics) Enable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = true
}

// Disable disables metrics collection
func (m *Metrics) Disable() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.enabled = false
}

// IsEnabled reports whether collection is on. A nil Metrics is never enabled.
func (m *Metrics) IsEnabled() bool {
	if m == nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.enabled
}

// IncCounter increments a counter metric
func (m *Metrics) IncCounter(name string) {
	m.AddCounter(name, 1)
}

// AddCounter adds a value to a counter metric
func (m *Metrics) AddCounter(name string, value int64) {
	if !m.IsEnabled() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.counters[name] += value
}

// SetGauge sets a gauge metric
func (m *Metrics) SetGauge(name string, value float64) {
	if !m.IsEnabled() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gauges[name] = value
}

// DeleteGauge removes a gauge metric
func (m *Metrics) DeleteGauge(name string) {
	if m == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.gauges, name)
}

// AddToHistogram adds a value to a histogram
func (m *Metrics) AddToHistogram(name string, value float64) {
	if !m.IsEnabled() {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.histograms[name] = append(m.histograms[name], value)
}

// GetCounter returns a counter value
func (m *Metrics) GetCounter(name string) int64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.counters[name]
}

// GetGauge returns a gauge value
func (m *Metrics) GetGauge(name string) float64 {
	if m == nil {
		return 0
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.gauges[name]
}

// GetHistogramStats returns histogram statistics, nil when the histogram is unknown
func (m *Metrics) GetHistogramStats(name string) *HistogramStats {
	if m == nil {
		return nil
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return histogramStats(m.histograms[name])
}

func histogramStats(values []float64) *HistogramStats {
	if values == nil {
		return nil
	}
	if len(values) == 0 {
		return &HistogramStats{}
	}

	stats := &HistogramStats{Count: len(values), Min: values[0], Max: values[0]}
	for _, v := range values {
		stats.Sum += v
		if v < stats.Min {
			stats.Min = v
		}
		if v > stats.Max {
			stats.Max = v
		}
	}
	stats.Mean = stats.Sum / float64(len(values))
	return stats
}

// Snapshot returns all metrics flattened into one map
func (m *Metrics) Snapshot() map[string]interface{} {
	out := make(map[string]interface{})
	if m == nil {
		return out
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	for name, value := range m.counters {
		out["counter_"+name] = value
	}
	for name, value := range m.gauges {
		out["gauge_"+name] = value
	}
	for name, values := range m.histograms {
		stats := histogramStats(values)
		out[fmt.Sprintf("histogram_%s_count", name)] = stats.Count
		out[fmt.Sprintf("histogram_%s_mean", name)] = stats.Mean
		out[fmt.Sprintf("histogram_%s_max", name)] = stats.Max
	}
	out["uptime_seconds"] = time.Since(m.startTime).Seconds()
	return out
}

// RecordCommandExecution records command execution metrics
func (m *Metrics) RecordCommandExecution(command string, success bool, duration time.Duration) {
	m.IncCounter("command_total_" + command)
	if success {
		m.IncCounter("command_success_" + command)
	} else {
		m.IncCounter("command_error_" + command)
	}
	m.AddToHistogram("command_duration_"+command, float64(duration.Milliseconds()))
}

// RecordSessionEvent records session lifecycle events (created, destroyed, idle_timeout, ...)
func (m *Metrics) RecordSessionEvent(event string) {
	m.IncCounter("session_event_" + event)
}

// RecordTrackEvent records per-track playback events (started, finished, render_error, skipped, ...)
func (m *Metrics) RecordTrackEvent(event string) {
	m.IncCounter("track_event_" + event)
}

// RecordQueueLength records the queue length of a guild after a mutation
func (m *Metrics) RecordQueueLength(guildID string, length int) {
	m.SetGauge("queue_length_"+guildID, float64(length))
}

// ClearQueueLength drops the queue length gauge of a guild whose session ended
func (m *Metrics) ClearQueueLength(guildID string) {
	m.DeleteGauge("queue_length_" + guildID)
}

// SetActiveSessions records how many sessions are live
func (m *Metrics) SetActiveSessions(n int) {
	m.SetGauge("active_sessions", float64(n))
}

// RecordDiscordEvent records gateway events
func (m *Metrics) RecordDiscordEvent(event string) {
	m.IncCounter("discord_event_" + event)
}

// RecordError records error events by type
func (m *Metrics) RecordError(errorType string) {
	m.IncCounter("error_" + errorType)
}

// MonitoringCollector periodically samples runtime metrics
type MonitoringCollector struct {
	metrics  *Metrics
	interval time.Duration
}

// NewMonitoringCollector creates a new monitoring collector
func NewMonitoringCollector(metrics *Metrics, interval time.Duration) *MonitoringCollector {
	return &MonitoringCollector{metrics: metrics, interval: interval}
}

// Start blocks, sampling until ctx is done
func (c *MonitoringCollector) Start(ctx context.Context) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.collectSystemMetrics()
		}
	}
}

func (c *MonitoringCollector) collectSystemMetrics() {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	c.metrics.SetGauge("system_memory_alloc_mb", float64(memStats.Alloc)/1024/1024)
	c.metrics.SetGauge("system_memory_sys_mb", float64(memStats.Sys)/1024/1024)
	c.metrics.SetGauge("system_goroutines", float64(runtime.NumGoroutine()))
	c.metrics.SetGauge("system_gc_count", float64(memStats.NumGC))
}
