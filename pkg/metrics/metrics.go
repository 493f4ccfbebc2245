package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "voicebot"

var (
	// Turns counts finished dialogue phases by phase (utterance|resume) and outcome.
	Turns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "turns_total",
		Help:      "Dialogue phases handled, by phase and outcome.",
	}, []string{"phase", "outcome"})

	// ToolDispatches counts tool executions by tool name and result (ok|failed).
	ToolDispatches = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "tool_dispatches_total",
		Help:      "Tool executions, by tool and result.",
	}, []string{"tool", "result"})

	ModelLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "model_latency_seconds",
		Help:      "Latency of chat model calls.",
		Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 16},
	}, []string{"phase"})

	ModelCostUSD = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "model_cost_usd_total",
		Help:      "Accumulated chat model cost in USD.",
	}, []string{"model"})

	Webhooks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "webhooks_total",
		Help:      "Telephony webhooks received, by route and status code.",
	}, []string{"route", "code"})
)

// Handler exposes the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
