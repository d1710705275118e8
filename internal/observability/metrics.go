// Package observability exposes Prometheus metrics for the bot pipeline.
package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics aggregates the pipeline's Prometheus collectors.
type Metrics struct {
	// MessagesProcessed counts inbound items by kind (message|command)
	// and outcome (replied|dropped|rejected|failed).
	MessagesProcessed *prometheus.CounterVec

	// LLMRequests counts provider calls by provider, model, and status
	// (success|error).
	LLMRequests *prometheus.CounterVec

	// LLMRequestDuration measures provider call latency in seconds.
	LLMRequestDuration *prometheus.HistogramVec

	// ToolExecutions counts enrichment tool runs by tool and status.
	ToolExecutions *prometheus.CounterVec

	// GuardRejections counts inputs rejected by the safety gate.
	GuardRejections prometheus.Counter
}

// New registers and returns the pipeline metrics on the given registerer.
// Passing nil uses the default registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		MessagesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_messages_processed_total",
			Help: "Inbound items by kind and outcome.",
		}, []string{"kind", "outcome"}),
		LLMRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_llm_requests_total",
			Help: "LLM provider calls by provider, model, and status.",
		}, []string{"provider", "model", "status"}),
		LLMRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "kestrel_llm_request_duration_seconds",
			Help:    "LLM provider call latency.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		}, []string{"provider", "model"}),
		ToolExecutions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kestrel_tool_executions_total",
			Help: "Enrichment tool runs by tool and status.",
		}, []string{"tool", "status"}),
		GuardRejections: factory.NewCounter(prometheus.CounterOpts{
			Name: "kestrel_guard_rejections_total",
			Help: "Inputs rejected by the prompt-injection gate.",
		}),
	}
}
