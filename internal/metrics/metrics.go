// Package metrics exposes uploader counters in Prometheus format.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "media_uploader"

// Upload outcomes.
const (
	OutcomeStored       = "stored"
	OutcomeRejected     = "rejected"
	OutcomeTooLarge     = "too_large"
	OutcomeUnsupported  = "unsupported"
	OutcomeInternalFail = "error"
)

// Metrics owns a private registry so tests and multiple servers in one
// process do not collide on the default one. A nil *Metrics is a no-op.
type Metrics struct {
	registry    *prometheus.Registry
	uploads     *prometheus.CounterVec
	uploadBytes *prometheus.HistogramVec
	rateLimited *prometheus.CounterVec
	swept       prometheus.Counter
	pruned      prometheus.Counter
}

// New registers the uploader collectors plus the Go runtime and process
// collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,
		uploads: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "uploads_total",
			Help:      "Upload requests by media kind and outcome",
		}, []string{"kind", "outcome"}),
		uploadBytes: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upload_bytes",
			Help:      "Size of stored uploads in bytes",
			Buckets:   []float64{64 << 10, 256 << 10, 1 << 20, 2 << 20, 5 << 20, 10 << 20, 20 << 20},
		}, []string{"kind"}),
		rateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limited_total",
			Help:      "Requests rejected with 429 by limiter",
		}, []string{"limiter"}),
		swept: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "staged_files_swept_total",
			Help:      "Abandoned staging files removed by the sweeper",
		}),
		pruned: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rate_limit_windows_pruned_total",
			Help:      "Expired rate limit windows dropped from the counter store",
		}),
	}
}

// ObserveUpload records one upload attempt. size is only observed for
// stored uploads.
func (m *Metrics) ObserveUpload(kind, outcome string, size int64) {
	if m == nil {
		return
	}
	if kind == "" {
		kind = "unknown"
	}
	m.uploads.WithLabelValues(kind, outcome).Inc()
	if outcome == OutcomeStored {
		m.uploadBytes.WithLabelValues(kind).Observe(float64(size))
	}
}

// RateLimited implements ratelimit.Recorder.
func (m *Metrics) RateLimited(limiter string) {
	if m == nil {
		return
	}
	m.rateLimited.WithLabelValues(limiter).Inc()
}

func (m *Metrics) StagedSwept(n int) {
	if m == nil || n <= 0 {
		return
	}
	m.swept.Add(float64(n))
}

func (m *Metrics) WindowsPruned(n int64) {
	if m == nil || n <= 0 {
		return
	}
	m.pruned.Add(float64(n))
}

// Registry returns the underlying registry.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
