package telemetry

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// ── Turn metrics ─────────────────────────────────────────────

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_turns_total",
			Help: "Total number of chat turns processed",
		},
		[]string{"outcome"}, // outcome: complete, probe, max_iterations, tool_error
	)

	turnDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "concierge_turn_duration_seconds",
			Help:    "End-to-end turn duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)
)

// ── Tool & planner metrics ───────────────────────────────────

var (
	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_tool_calls_total",
			Help: "Tool dispatches by tool and status",
		},
		[]string{"tool", "status"}, // status: ok, error, rejected
	)

	plannerDecisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_planner_decisions_total",
			Help: "Planner decisions by path and action",
		},
		[]string{"path", "action"},
	)
)

// ── Backend metrics ──────────────────────────────────────────

var (
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_llm_calls_total",
			Help: "LLM chat completions by provider and status",
		},
		[]string{"provider", "status"},
	)

	llmDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "concierge_llm_duration_seconds",
			Help:    "LLM call duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"provider"},
	)

	refinementOpsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "concierge_refinement_ops_total",
			Help: "Refinement store operations by op and status",
		},
		[]string{"op", "status"}, // op: load, save
	)
)

// RecordTurn records one completed turn.
func RecordTurn(outcome string, d time.Duration) {
	turnsTotal.WithLabelValues(outcome).Inc()
	turnDurationSeconds.Observe(d.Seconds())
}

func RecordToolCall(tool, status string) {
	toolCallsTotal.WithLabelValues(tool, status).Inc()
}

func RecordPlannerDecision(path, action string) {
	plannerDecisionsTotal.WithLabelValues(path, action).Inc()
}

// RecordLLMCall records one chat completion attempt against a provider.
func RecordLLMCall(provider, status string, d time.Duration) {
	llmCallsTotal.WithLabelValues(provider, status).Inc()
	llmDurationSeconds.WithLabelValues(provider).Observe(d.Seconds())
}

func RecordRefinementOp(op string, err error) {
	status := "ok"
	if err != nil {
		status = "error"
	}
	refinementOpsTotal.WithLabelValues(op, status).Inc()
}
