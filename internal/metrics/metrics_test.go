package metrics

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_IncrementCounter(t *testing.T) {
	registry := NewRegistry()

	registry.IncrementCounter("media_permanence_total", nil, "Permanence attempts")
	registry.IncrementCounter("media_permanence_total", map[string]string{"outcome": "permanent"}, "Permanence attempts")
	registry.IncrementCounter("media_permanence_total", map[string]string{"outcome": "permanent"}, "Permanence attempts")

	snapshot := registry.GetAllMetrics()
	require.Contains(t, snapshot.Counters, "media_permanence_total")
	assert.Equal(t, 1.0, snapshot.Counters["media_permanence_total"].Value)

	labeled := snapshot.Counters[`media_permanence_total{outcome="permanent"}`]
	assert.Equal(t, 2.0, labeled.Value)
	assert.Equal(t, Counter, labeled.Type)
	assert.Equal(t, "permanent", labeled.Labels["outcome"])

	assert.Equal(t, 2.0, registry.CounterValue("media_permanence_total", map[string]string{"outcome": "permanent"}))
	assert.Equal(t, 0.0, registry.CounterValue("missing", nil))
}

func TestRegistry_AddToCounter(t *testing.T) {
	registry := NewRegistry()

	registry.AddToCounter("media_bytes_stored_total", 2048, nil, "")
	registry.AddToCounter("media_bytes_stored_total", 1024, nil, "")

	assert.Equal(t, 3072.0, registry.CounterValue("media_bytes_stored_total", nil))
}

func TestRegistry_RecordTimer(t *testing.T) {
	registry := NewRegistry()

	registry.RecordTimer("media_fetch_duration", 100*time.Millisecond, nil, "")
	registry.RecordTimer("media_fetch_duration", 300*time.Millisecond, nil, "")
	registry.RecordTimer("media_fetch_duration", 50*time.Millisecond, nil, "")

	timer := registry.GetAllMetrics().Timers["media_fetch_duration"]
	assert.Equal(t, int64(3), timer.Count)
	assert.InDelta(t, 450.0, timer.Sum, 0.001)
	assert.InDelta(t, 50.0, timer.Min, 0.001)
	assert.InDelta(t, 300.0, timer.Max, 0.001)
	assert.InDelta(t, 150.0, timer.Average, 0.001)
	assert.Zero(t, timer.P95, "percentiles need at least 10 samples")
}

func TestRegistry_Percentiles(t *testing.T) {
	registry := NewRegistry()

	for i := 100; i >= 1; i-- {
		registry.RecordTimer("latency", time.Duration(i)*time.Millisecond, nil, "")
	}

	timer := registry.GetAllMetrics().Timers["latency"]
	assert.InDelta(t, 96.0, timer.P95, 0.001)
	assert.InDelta(t, 100.0, timer.P99, 0.001)
}

func TestRegistry_Gauges(t *testing.T) {
	registry := NewRegistry()

	registry.SetGauge("realtime_subscribers", 3, nil, "")
	registry.AddToGauge("realtime_subscribers", -1, nil, "")
	registry.AddToGauge("new_gauge", 2, nil, "")

	snapshot := registry.GetAllMetrics()
	assert.Equal(t, 2.0, snapshot.Gauges["realtime_subscribers"].Value)
	assert.Equal(t, 2.0, snapshot.Gauges["new_gauge"].Value)
}

func TestSeriesKey_SortedLabels(t *testing.T) {
	labels := map[string]string{"status": "200", "method": "GET", "path": "/health"}

	for i := 0; i < 20; i++ {
		assert.Equal(t, `http_requests{method="GET",path="/health",status="200"}`, SeriesKey("http_requests", labels))
	}
	assert.Equal(t, "plain", SeriesKey("plain", nil))
}

func TestRegistry_TimerWindowIsBounded(t *testing.T) {
	registry := NewRegistry()

	for i := 0; i < maxTimerSamples; i++ {
		registry.RecordTimer("fetch", 500*time.Millisecond, nil, "")
	}
	for i := 0; i < maxTimerSamples; i++ {
		registry.RecordTimer("fetch", time.Millisecond, nil, "")
	}

	timer := registry.GetAllMetrics().Timers["fetch"]
	assert.Equal(t, int64(2*maxTimerSamples), timer.Count)
	assert.InDelta(t, 500.0, timer.Max, 0.001)
	assert.InDelta(t, 1.0, timer.P99, 0.001, "old samples rotate out of the window")
}

func TestSnapshot_IsCopy(t *testing.T) {
	registry := NewRegistry()
	registry.IncrementCounter("c", map[string]string{"k": "v"}, "")

	snapshot := registry.GetAllMetrics()
	snapshot.Counters[`c{k="v"}`].Labels["k"] = "mutated"
	registry.IncrementCounter("c", map[string]string{"k": "v"}, "")

	assert.Equal(t, 1.0, snapshot.Counters[`c{k="v"}`].Value)
	assert.Equal(t, "v", registry.GetAllMetrics().Counters[`c{k="v"}`].Labels["k"])
}

func TestRegistry_Concurrent(t *testing.T) {
	registry := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				registry.IncrementCounter("hits", nil, "")
				registry.RecordTimer("t", time.Millisecond, nil, "")
				_ = registry.GetAllMetrics()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1000.0, registry.CounterValue("hits", nil))
}

func TestGetRegistry(t *testing.T) {
	assert.Same(t, GetRegistry(), GetRegistry())
	assert.NotNil(t, GetRegistry().GetAllMetrics().Counters)
}
