package telemetry

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Outcome labels.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Persistence operation labels.
const (
	OpHistory = "fetch_history"
	OpLog     = "append_execution"
	OpSession = "upsert_session"
	OpOwner   = "get_session"
)

// Metrics holds the service's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	turns           *prometheus.CounterVec
	providerLatency *prometheus.HistogramVec
	tokens          *prometheus.CounterVec
	storeFailures   *prometheus.CounterVec
}

// NewMetrics creates the collectors on a fresh registry, together with the Go
// runtime and process collectors.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	m := &Metrics{
		registry: reg,
		turns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentdesk",
			Name:      "turns_total",
			Help:      "Chat turns handled, by agent and outcome.",
		}, []string{"agent", "outcome"}),
		providerLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "agentdesk",
			Name:      "provider_request_duration_seconds",
			Help:      "Latency of model provider calls.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16, 32, 64, 120},
		}, []string{"provider", "model", "outcome"}),
		tokens: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentdesk",
			Name:      "tokens_total",
			Help:      "Tokens consumed, by provider and kind.",
		}, []string{"provider", "kind"}),
		storeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "agentdesk",
			Name:      "store_failures_total",
			Help:      "Best-effort store operations that failed.",
		}, []string{"op"}),
	}
	reg.MustRegister(
		m.turns, m.providerLatency, m.tokens, m.storeFailures,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry exposes the underlying registry (tests, extra collectors).
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func outcome(ok bool) string {
	if ok {
		return OutcomeSuccess
	}
	return OutcomeFailure
}

// TurnCompleted counts one finished turn.
func (m *Metrics) TurnCompleted(agentID string, ok bool) {
	if m == nil {
		return
	}
	m.turns.WithLabelValues(agentID, outcome(ok)).Inc()
}

// ProviderCall records the latency and token usage of one provider call.
func (m *Metrics) ProviderCall(provider, model string, d time.Duration, ok bool, promptTokens, completionTokens int64) {
	if m == nil {
		return
	}
	m.providerLatency.WithLabelValues(provider, model, outcome(ok)).Observe(d.Seconds())
	if promptTokens > 0 {
		m.tokens.WithLabelValues(provider, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.tokens.WithLabelValues(provider, "completion").Add(float64(completionTokens))
	}
}

// StoreFailed counts one failed store operation.
func (m *Metrics) StoreFailed(op string) {
	if m == nil {
		return
	}
	m.storeFailures.WithLabelValues(op).Inc()
}
