package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/xidis/fabdeploy/pkg/store"
)

// Metrics collects per-phase apply observations. It satisfies the
// engine's MetricsRecorder.
type Metrics struct {
	applies   *prometheus.CounterVec
	retries   *prometheus.CounterVec
	durations *prometheus.HistogramVec
}

// NewMetrics registers the pipeline metrics on a fresh registry and
// returns both.
func NewMetrics() (*Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()

	m := &Metrics{
		applies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fabdeploy",
			Name:      "phase_applies_total",
			Help:      "Resource applies by phase and resulting status.",
		}, []string{"phase", "status"}),
		retries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "fabdeploy",
			Name:      "phase_retries_total",
			Help:      "Apply retries by phase.",
		}, []string{"phase"}),
		durations: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "fabdeploy",
			Name:      "phase_apply_duration_seconds",
			Help:      "Apply duration by phase.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, []string{"phase"}),
	}
	reg.MustRegister(m.applies, m.retries, m.durations)
	return m, reg
}

// ObserveApply records one resource apply outcome.
func (m *Metrics) ObserveApply(phase string, status store.Status, d time.Duration) {
	m.applies.WithLabelValues(phase, string(status)).Inc()
	m.durations.WithLabelValues(phase).Observe(d.Seconds())
}

// IncRetry records one retry attempt.
func (m *Metrics) IncRetry(phase string) {
	m.retries.WithLabelValues(phase).Inc()
}

// ServeMetrics exposes the registry on addr for the duration of the
// run. Errors are logged, not fatal: a busy metrics port must not
// block a deployment.
func ServeMetrics(addr string, reg *prometheus.Registry) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	go func() {
		if err := http.ListenAndServe(addr, mux); err != nil {
			log.Warn().Err(err).Str("addr", addr).Msg("metrics listener stopped")
		}
	}()
}
