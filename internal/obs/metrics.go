// Package obs provides the metrics surface the pipeline and worker runtime
// instrument stage timings and counters through, backed by the
// opentelemetry metric API.
package obs

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metrics is the instrumentation surface stage timing and counters are
// reported through.
type Metrics interface {
	IncCounter(name string, labels map[string]string)
	ObserveHistogram(name string, value float64, labels map[string]string)
}

// OtelMetrics lazily creates and caches counter/histogram instruments by
// name under a read-write mutex.
type OtelMetrics struct {
	meter metric.Meter

	mu          sync.RWMutex
	counters    map[string]metric.Int64Counter
	histograms  map[string]metric.Float64Histogram
}

func NewOtel(meterName string) *OtelMetrics {
	return &OtelMetrics{
		meter:      otel.Meter(meterName),
		counters:   map[string]metric.Int64Counter{},
		histograms: map[string]metric.Float64Histogram{},
	}
}

func (m *OtelMetrics) counter(name string) metric.Int64Counter {
	m.mu.RLock()
	c, ok := m.counters[name]
	m.mu.RUnlock()
	if ok {
		return c
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.counters[name]; ok {
		return c
	}
	c, _ = m.meter.Int64Counter(name)
	m.counters[name] = c
	return c
}

func (m *OtelMetrics) histogram(name string) metric.Float64Histogram {
	m.mu.RLock()
	h, ok := m.histograms[name]
	m.mu.RUnlock()
	if ok {
		return h
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if h, ok := m.histograms[name]; ok {
		return h
	}
	h, _ = m.meter.Float64Histogram(name)
	m.histograms[name] = h
	return h
}

func toAttrs(labels map[string]string) []attribute.KeyValue {
	attrs := make([]attribute.KeyValue, 0, len(labels))
	for k, v := range labels {
		attrs = append(attrs, attribute.String(k, v))
	}
	return attrs
}

func (m *OtelMetrics) IncCounter(name string, labels map[string]string) {
	m.counter(name).Add(context.Background(), 1, metric.WithAttributes(toAttrs(labels)...))
}

func (m *OtelMetrics) ObserveHistogram(name string, value float64, labels map[string]string) {
	m.histogram(name).Record(context.Background(), value, metric.WithAttributes(toAttrs(labels)...))
}

// MockMetrics is an in-memory Metrics for tests.
type MockMetrics struct {
	mu         sync.Mutex
	Counters   map[string]int
	Histograms map[string][]float64
}

func NewMock() *MockMetrics {
	return &MockMetrics{Counters: map[string]int{}, Histograms: map[string][]float64{}}
}

func (m *MockMetrics) IncCounter(name string, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Counters[name]++
}

func (m *MockMetrics) ObserveHistogram(name string, value float64, _ map[string]string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Histograms[name] = append(m.Histograms[name], value)
}
