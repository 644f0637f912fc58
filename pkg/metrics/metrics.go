package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	GuardrailVerdicts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockdesk_guardrail_verdicts_total",
			Help: "Guardrail verdicts by stage and outcome",
		},
		[]string{"stage", "outcome"}, // stage: input|output|tool, outcome: passed|rejected|sanitized|blocked
	)

	AgentTurns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockdesk_agent_turns_total",
			Help: "Completed orchestration turns",
		},
		[]string{"agent", "status"},
	)

	AgentTurnDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "stockdesk_agent_turn_duration_seconds",
			Help:    "Orchestration turn duration in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60, 120},
		},
		[]string{"agent"},
	)

	RouterDecisions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stockdesk_router_decisions_total",
			Help: "Supervisor routing decisions",
		},
		[]string{"choice", "coerced"},
	)
)

func init() {
	prometheus.MustRegister(GuardrailVerdicts)
	prometheus.MustRegister(AgentTurns)
	prometheus.MustRegister(AgentTurnDuration)
	prometheus.MustRegister(RouterDecisions)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

func RecordGuardrail(stage, outcome string) {
	GuardrailVerdicts.WithLabelValues(stage, outcome).Inc()
}

// RecordTurn records one orchestration turn.
func RecordTurn(agent string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	if agent == "" {
		agent = "none"
	}
	AgentTurns.WithLabelValues(agent, status).Inc()
	AgentTurnDuration.WithLabelValues(agent).Observe(duration.Seconds())
}

func RecordRoute(choice string, coerced bool) {
	c := "false"
	if coerced {
		c = "true"
	}
	RouterDecisions.WithLabelValues(choice, c).Inc()
}
