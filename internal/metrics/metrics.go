package metrics

import (
	"sort"
	"strings"
	"sync"
	"time"
)

type MetricType string

const (
	Counter MetricType = "counter"
	Timer   MetricType = "timer"
	Gauge   MetricType = "gauge"
)

const (
	// maxTimerSamples bounds the window percentiles are computed over
	maxTimerSamples = 1000
	// minPercentileSamples is the sample count below which percentiles stay zero
	minPercentileSamples = 10
)

// Metric is a counter or gauge series
type Metric struct {
	Name        string            `json:"name"`
	Type        MetricType        `json:"type"`
	Value       float64           `json:"value"`
	Labels      map[string]string `json:"labels,omitempty"`
	Description string            `json:"description,omitempty"`
	LastUpdate  time.Time         `json:"last_update"`
}

// TimerMetric summarizes recorded durations in milliseconds
type TimerMetric struct {
	Name        string            `json:"name"`
	Labels      map[string]string `json:"labels,omitempty"`
	Description string            `json:"description,omitempty"`
	Count       int64             `json:"count"`
	Sum         float64           `json:"sum_ms"`
	Min         float64           `json:"min_ms"`
	Max         float64           `json:"max_ms"`
	Average     float64           `json:"avg_ms"`
	P95         float64           `json:"p95_ms,omitempty"`
	P99         float64           `json:"p99_ms,omitempty"`
}

type timerSeries struct {
	summary TimerMetric
	samples []float64
	next    int
}

func (t *timerSeries) observe(ms float64) {
	s := &t.summary
	if s.Count == 0 || ms < s.Min {
		s.Min = ms
	}
	if ms > s.Max {
		s.Max = ms
	}
	s.Count++
	s.Sum += ms
	s.Average = s.Sum / float64(s.Count)

	if len(t.samples) < maxTimerSamples {
		t.samples = append(t.samples, ms)
		return
	}
	t.samples[t.next] = ms
	t.next = (t.next + 1) % maxTimerSamples
}

func (t *timerSeries) snapshot() TimerMetric {
	out := t.summary
	out.Labels = copyLabels(t.summary.Labels)
	if len(t.samples) >= minPercentileSamples {
		sorted := append([]float64(nil), t.samples...)
		sort.Float64s(sorted)
		out.P95 = nearestRank(sorted, 0.95)
		out.P99 = nearestRank(sorted, 0.99)
	}
	return out
}

// Snapshot is a point-in-time copy of a registry, keyed by series
type Snapshot struct {
	Counters  map[string]Metric      `json:"counters"`
	Timers    map[string]TimerMetric `json:"timers"`
	Gauges    map[string]Metric      `json:"gauges"`
	UptimeMs  int64                  `json:"uptime_ms"`
	Timestamp int64                  `json:"timestamp"`
}

// Registry keeps process metrics in memory for the /metrics endpoint
type Registry struct {
	mu        sync.RWMutex
	counters  map[string]*Metric
	gauges    map[string]*Metric
	timers    map[string]*timerSeries
	startTime time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		counters:  make(map[string]*Metric),
		gauges:    make(map[string]*Metric),
		timers:    make(map[string]*timerSeries),
		startTime: time.Now(),
	}
}

var globalRegistry = NewRegistry()

// GetRegistry returns the process-wide registry
func GetRegistry() *Registry {
	return globalRegistry
}

func (r *Registry) IncrementCounter(name string, labels map[string]string, description string) {
	r.AddToCounter(name, 1, labels, description)
}

func (r *Registry) AddToCounter(name string, value float64, labels map[string]string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	series(r.counters, Counter, name, labels, description).Value += value
}

func (r *Registry) SetGauge(name string, value float64, labels map[string]string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	series(r.gauges, Gauge, name, labels, description).Value = value
}

func (r *Registry) AddToGauge(name string, delta float64, labels map[string]string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	series(r.gauges, Gauge, name, labels, description).Value += delta
}

// series returns the stored metric for name and labels, creating it at zero.
// Caller holds the write lock.
func series(set map[string]*Metric, kind MetricType, name string, labels map[string]string, description string) *Metric {
	key := SeriesKey(name, labels)
	m, ok := set[key]
	if !ok {
		m = &Metric{Name: name, Type: kind, Labels: copyLabels(labels), Description: description}
		set[key] = m
	}
	m.LastUpdate = time.Now()
	return m
}

func (r *Registry) RecordTimer(name string, duration time.Duration, labels map[string]string, description string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := SeriesKey(name, labels)
	t, ok := r.timers[key]
	if !ok {
		t = &timerSeries{summary: TimerMetric{Name: name, Labels: copyLabels(labels), Description: description}}
		r.timers[key] = t
	}
	t.observe(float64(duration.Nanoseconds()) / 1e6)
}

// CounterValue returns a counter's value, zero when it was never incremented
func (r *Registry) CounterValue(name string, labels map[string]string) float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if m, ok := r.counters[SeriesKey(name, labels)]; ok {
		return m.Value
	}
	return 0
}

// GetAllMetrics returns a deep copy safe to encode after the lock is released
func (r *Registry) GetAllMetrics() Snapshot {
	r.mu.RLock()
	defer r.mu.RUnlock()

	snapshot := Snapshot{
		Counters:  copySeries(r.counters),
		Gauges:    copySeries(r.gauges),
		Timers:    make(map[string]TimerMetric, len(r.timers)),
		UptimeMs:  time.Since(r.startTime).Milliseconds(),
		Timestamp: time.Now().Unix(),
	}
	for key, t := range r.timers {
		snapshot.Timers[key] = t.snapshot()
	}
	return snapshot
}

func copySeries(set map[string]*Metric) map[string]Metric {
	out := make(map[string]Metric, len(set))
	for key, m := range set {
		c := *m
		c.Labels = copyLabels(m.Labels)
		out[key] = c
	}
	return out
}

// SeriesKey renders name{k="v",...} with labels sorted by key, or the bare
// name when there are no labels.
func SeriesKey(name string, labels map[string]string) string {
	if len(labels) == 0 {
		return name
	}

	keys := make([]string, 0, len(labels))
	for k := range labels {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	b.WriteString(name)
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(k)
		b.WriteString(`="`)
		b.WriteString(labels[k])
		b.WriteByte('"')
	}
	b.WriteByte('}')
	return b.String()
}

// nearestRank picks the p-th percentile from ascending samples
func nearestRank(sorted []float64, p float64) float64 {
	index := int(float64(len(sorted)) * p)
	if index >= len(sorted) {
		index = len(sorted) - 1
	}
	return sorted[index]
}

func copyLabels(labels map[string]string) map[string]string {
	if labels == nil {
		return nil
	}
	out := make(map[string]string, len(labels))
	for k, v := range labels {
		out[k] = v
	}
	return out
}
