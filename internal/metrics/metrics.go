// Package metrics exposes Prometheus instrumentation for the sync engine and
// the real-time channel.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome label values.
const (
	OutcomeOK    = "ok"
	OutcomeError = "error"
)

// Metrics holds the collectors for one engine. Each instance owns its
// registry so several engines (and tests) can coexist in one process.
type Metrics struct {
	registry *prometheus.Registry

	Requests         *prometheus.CounterVec
	RequestDuration  *prometheus.HistogramVec
	RegistrySize     prometheus.Gauge
	ChannelState     *prometheus.GaugeVec
	CommentsReceived prometheus.Counter
	StaleResponses   prometheus.Counter
}

func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		Requests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "huddle_backend_requests_total",
				Help: "Backend calls by operation and outcome",
			},
			[]string{"op", "outcome"},
		),
		RequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "huddle_backend_request_duration_seconds",
				Help:    "Backend call latency by operation",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"op"},
		),
		RegistrySize: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "huddle_registry_activities",
				Help: "Number of activities held in the registry",
			},
		),
		ChannelState: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "huddle_channel_state",
				Help: "Real-time channel state (1 for the current state, 0 otherwise)",
			},
			[]string{"state"},
		),
		CommentsReceived: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "huddle_channel_comments_received_total",
				Help: "Comments pushed by the real-time channel and applied to the registry",
			},
		),
		StaleResponses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "huddle_stale_responses_total",
				Help: "Backend responses discarded because the filter changed while they were in flight",
			},
		),
	}

	m.registry.MustRegister(
		m.Requests,
		m.RequestDuration,
		m.RegistrySize,
		m.ChannelState,
		m.CommentsReceived,
		m.StaleResponses,
	)

	return m
}

// Registry returns the underlying Prometheus registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler for this instance.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveRequest records one backend call.
func (m *Metrics) ObserveRequest(op string, d time.Duration, err error) {
	outcome := OutcomeOK
	if err != nil {
		outcome = OutcomeError
	}
	m.Requests.WithLabelValues(op, outcome).Inc()
	m.RequestDuration.WithLabelValues(op).Observe(d.Seconds())
}

// SetChannelState marks state as the current channel state. states lists
// every known state name so the others can be reset to zero.
func (m *Metrics) SetChannelState(state string, states []string) {
	for _, s := range states {
		v := 0.0
		if s == state {
			v = 1
		}
		m.ChannelState.WithLabelValues(s).Set(v)
	}
}

// Timer measures the duration of an operation.
type Timer struct {
	start time.Time
}

func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// Duration returns the time elapsed since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}

// ObserveDuration records the elapsed time on h.
func (t *Timer) ObserveDuration(h prometheus.Observer) {
	h.Observe(t.Duration().Seconds())
}
