// Package prommetrics records relay metrics on a Prometheus registry.
package prommetrics

import (
	"context"
	"net/http"
	"sort"
	"strings"
	"sync"

	glog "github.com/goliatone/go-logger/glog"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/railsonsantospb/unifi-relay/core"
)

// DefaultBuckets covers request durations in milliseconds.
var DefaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000}

// Recorder creates collectors on first use. A metric name keeps the label
// set it was first recorded with; later calls with other tag keys are
// dropped and logged.
type Recorder struct {
	registry   *prometheus.Registry
	logger     glog.Logger
	buckets    []float64
	mu         sync.Mutex
	counters   map[string]*vecEntry[*prometheus.CounterVec]
	histograms map[string]*vecEntry[*prometheus.HistogramVec]
}

type vecEntry[V any] struct {
	vec    V
	labels []string
}

type Option func(*Recorder)

func WithLogger(logger glog.Logger) Option {
	return func(r *Recorder) { r.logger = glog.Ensure(logger) }
}

func WithBuckets(buckets []float64) Option {
	return func(r *Recorder) {
		if len(buckets) > 0 {
			r.buckets = append([]float64(nil), buckets...)
		}
	}
}

func NewRecorder(registry *prometheus.Registry, opts ...Option) *Recorder {
	if registry == nil {
		registry = prometheus.NewRegistry()
	}
	r := &Recorder{
		registry:   registry,
		logger:     glog.Nop(),
		buckets:    DefaultBuckets,
		counters:   map[string]*vecEntry[*prometheus.CounterVec]{},
		histograms: map[string]*vecEntry[*prometheus.HistogramVec]{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(r)
		}
	}
	return r
}

func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) IncCounter(_ context.Context, name string, value int64, tags map[string]string) {
	if value < 0 {
		return
	}
	metric := MetricName(name)
	labels := labelNames(tags)

	r.mu.Lock()
	entry, ok := r.counters[metric]
	if !ok {
		vec := prometheus.NewCounterVec(prometheus.CounterOpts{Name: metric, Help: "Relay counter " + name + "."}, labels)
		if err := r.registry.Register(vec); err != nil {
			r.mu.Unlock()
			r.logger.Warn("metrics register failed", "metric", metric, "error", err.Error())
			return
		}
		entry = &vecEntry[*prometheus.CounterVec]{vec: vec, labels: labels}
		r.counters[metric] = entry
	}
	r.mu.Unlock()

	if !sameLabels(entry.labels, labels) {
		r.logger.Warn("metrics label mismatch", "metric", metric)
		return
	}
	entry.vec.With(prometheus.Labels(tags)).Add(float64(value))
}

func (r *Recorder) ObserveHistogram(_ context.Context, name string, value float64, tags map[string]string) {
	metric := MetricName(name)
	labels := labelNames(tags)

	r.mu.Lock()
	entry, ok := r.histograms[metric]
	if !ok {
		vec := prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    metric,
			Help:    "Relay histogram " + name + ".",
			Buckets: r.buckets,
		}, labels)
		if err := r.registry.Register(vec); err != nil {
			r.mu.Unlock()
			r.logger.Warn("metrics register failed", "metric", metric, "error", err.Error())
			return
		}
		entry = &vecEntry[*prometheus.HistogramVec]{vec: vec, labels: labels}
		r.histograms[metric] = entry
	}
	r.mu.Unlock()

	if !sameLabels(entry.labels, labels) {
		r.logger.Warn("metrics label mismatch", "metric", metric)
		return
	}
	entry.vec.With(prometheus.Labels(tags)).Observe(value)
}

// MetricName maps dotted names to Prometheus names, e.g.
// relay.ingest.total -> relay_ingest_total.
func MetricName(name string) string {
	replacer := strings.NewReplacer(".", "_", "-", "_", " ", "_")
	return replacer.Replace(strings.TrimSpace(name))
}

func labelNames(tags map[string]string) []string {
	names := make([]string, 0, len(tags))
	for key := range tags {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

func sameLabels(a []string, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

var _ core.MetricsRecorder = (*Recorder)(nil)
