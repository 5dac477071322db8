package auth

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "tallerpinturas"
	metricsSubsystem = "auth"
	outcomeOK        = "ok"
)

// Metrics holds the Prometheus collectors for token validation. A nil
// *Metrics is valid and records nothing.
type Metrics struct {
	validations   *prometheus.CounterVec
	duration      prometheus.Histogram
	fetches       *prometheus.CounterVec
	fetchDuration prometheus.Histogram
	refreshes     *prometheus.CounterVec
	keys          prometheus.Gauge
}

// NewMetrics registers the auth collectors on reg. Passing
// prometheus.DefaultRegisterer exposes them on the default /metrics
// handler; tests pass a fresh prometheus.NewRegistry().
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		validations: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "validations_total",
			Help:      "Bearer token validations by outcome (ok or the rejection kind)",
		}, []string{"outcome"}),
		duration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "validation_duration_seconds",
			Help:      "Bearer token validation latency in seconds",
			Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1, .5, 1, 5},
		}),
		fetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "jwks_fetches_total",
			Help:      "JWKS fetches by outcome (ok or the failure kind)",
		}, []string{"outcome"}),
		fetchDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "jwks_fetch_duration_seconds",
			Help:      "JWKS fetch latency in seconds",
			Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5},
		}),
		refreshes: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "jwks_refreshes_total",
			Help:      "Forced key set refreshes after an unknown key-id, by result",
		}, []string{"result"}),
		keys: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: metricsSubsystem,
			Name:      "jwks_keys",
			Help:      "Number of usable keys in the cached key set",
		}),
	}
}

func (m *Metrics) observeValidation(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.validations.WithLabelValues(outcome).Inc()
	m.duration.Observe(d.Seconds())
}

func (m *Metrics) observeFetch(outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.fetches.WithLabelValues(outcome).Inc()
	m.fetchDuration.Observe(d.Seconds())
}

func (m *Metrics) observeRefresh(result string) {
	if m == nil {
		return
	}
	m.refreshes.WithLabelValues(result).Inc()
}

func (m *Metrics) setKeys(n int) {
	if m == nil {
		return
	}
	m.keys.Set(float64(n))
}
