// Package metrics holds the Prometheus collectors for the mediation pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics is one set of collectors bound to a registry. Each pipeline owns
// its own so tests never share global state.
type Metrics struct {
	registry *prometheus.Registry

	// netmon_queries_total{class=result|rejected|error}
	Queries *prometheus.CounterVec
	// netmon_intents_total{action,source}
	Intents *prometheus.CounterVec
	// netmon_rejections_total{stage=validation|sanitize|policy|authorization}
	Rejections *prometheus.CounterVec
	// netmon_decisions_total{state}
	Decisions *prometheus.CounterVec
	// netmon_guardian_signals_total{signal}
	GuardianSignals *prometheus.CounterVec
	ProviderErrors  prometheus.Counter
	AuditFailures   prometheus.Counter
	ProviderLatency prometheus.Histogram
}

func New() *Metrics {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		Queries: f.NewCounterVec(prometheus.CounterOpts{
			Name: "netmon_queries_total",
			Help: "Queries processed, by terminal message class",
		}, []string{"class"}),
		Intents: f.NewCounterVec(prometheus.CounterOpts{
			Name: "netmon_intents_total",
			Help: "Intents produced, by action and extraction source",
		}, []string{"action", "source"}),
		Rejections: f.NewCounterVec(prometheus.CounterOpts{
			Name: "netmon_rejections_total",
			Help: "Rejected intents, by the stage that rejected them",
		}, []string{"stage"}),
		Decisions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "netmon_decisions_total",
			Help: "Authorization gate terminal states",
		}, []string{"state"}),
		GuardianSignals: f.NewCounterVec(prometheus.CounterOpts{
			Name: "netmon_guardian_signals_total",
			Help: "Prompt-injection signals raised by the guardian",
		}, []string{"signal"}),
		ProviderErrors: f.NewCounter(prometheus.CounterOpts{
			Name: "netmon_provider_errors_total",
			Help: "Completion provider failures, including timeouts",
		}),
		AuditFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "netmon_audit_write_failures_total",
			Help: "Audit records that could not be persisted",
		}),
		ProviderLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "netmon_provider_latency_seconds",
			Help:    "Completion provider round-trip latency",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
