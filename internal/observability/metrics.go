package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides a centralized interface for collecting runtime metrics.
//
// The metrics system is built on Prometheus and tracks:
//   - Agent run lifecycle and attempt counts
//   - Model request performance, token usage, and estimated cost
//   - Tool execution patterns and latencies
//   - Error rates categorized by type and component
//   - Active session counts per backend, for capacity planning
//
// Usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RunStarted()
//	defer metrics.RecordModelRequest("anthropic", "claude-sonnet-4-5", "success", time.Since(start).Seconds(), promptTokens, completionTokens)
type Metrics struct {
	// RunCounter tracks agent runs by outcome (success|error).
	RunCounter *prometheus.CounterVec

	// ActiveRuns is a gauge of agent invocations currently executing.
	ActiveRuns prometheus.Gauge

	// ModelRequestDuration measures model API call latency in seconds.
	// Labels: provider, model
	ModelRequestDuration *prometheus.HistogramVec

	// ModelRequestCounter counts model requests by provider, model, and status.
	ModelRequestCounter *prometheus.CounterVec

	// ModelTokensUsed tracks token consumption by provider, model, and type
	// (prompt|completion).
	ModelTokensUsed *prometheus.CounterVec

	// ModelCostUSD tracks estimated model request cost in USD.
	// Labels: provider, model
	ModelCostUSD *prometheus.CounterVec

	// ToolExecutionCounter counts tool invocations by tool name and status.
	ToolExecutionCounter *prometheus.CounterVec

	// ToolExecutionDuration measures tool execution time in seconds.
	// Labels: tool_name
	ToolExecutionDuration *prometheus.HistogramVec

	// ErrorCounter tracks errors by component and error type.
	// Labels: component (agent|model|tool|session), error_type
	ErrorCounter *prometheus.CounterVec

	// ActiveSessions is a gauge tracking current active sessions, by store
	// backend (memory|file|sql).
	ActiveSessions *prometheus.GaugeVec

	// ContextWindowUsed tracks context window utilization.
	// Labels: provider, model
	ContextWindowUsed *prometheus.HistogramVec

	// RunAttempts counts run attempts by status (success|retry|failed), for
	// retry and compaction-triggered-retry tracking.
	RunAttempts *prometheus.CounterVec

	// CompactionCounter counts conversation compactions triggered by
	// context-overflow errors.
	CompactionCounter prometheus.Counter
}

// NewMetrics creates and registers all Prometheus metrics.
// This should be called once at process startup.
func NewMetrics() *Metrics {
	return &Metrics{
		RunCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_runs_total",
				Help: "Total number of agent runs by outcome",
			},
			[]string{"status"},
		),

		ActiveRuns: promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "agentcore_active_runs",
				Help: "Current number of agent invocations in progress",
			},
		),

		ModelRequestDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_model_request_duration_seconds",
				Help:    "Duration of model API requests in seconds",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"provider", "model"},
		),

		ModelRequestCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_model_requests_total",
				Help: "Total number of model requests by provider, model, and status",
			},
			[]string{"provider", "model", "status"},
		),

		ModelTokensUsed: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_model_tokens_total",
				Help: "Total number of tokens used by provider, model, and type",
			},
			[]string{"provider", "model", "type"},
		),

		ModelCostUSD: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_model_cost_usd_total",
				Help: "Estimated model request cost in USD",
			},
			[]string{"provider", "model"},
		),

		ToolExecutionCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_tool_executions_total",
				Help: "Total number of tool executions by tool name and status",
			},
			[]string{"tool_name", "status"},
		),

		ToolExecutionDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_tool_execution_duration_seconds",
				Help:    "Duration of tool executions in seconds",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30, 60},
			},
			[]string{"tool_name"},
		),

		ErrorCounter: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_errors_total",
				Help: "Total number of errors by component and error type",
			},
			[]string{"component", "error_type"},
		),

		ActiveSessions: promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "agentcore_active_sessions",
				Help: "Current number of active sessions by store backend",
			},
			[]string{"backend"},
		),

		ContextWindowUsed: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "agentcore_context_window_tokens",
				Help:    "Context window tokens used",
				Buckets: []float64{1000, 4000, 8000, 16000, 32000, 64000, 128000},
			},
			[]string{"provider", "model"},
		),

		RunAttempts: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "agentcore_run_attempts_total",
				Help: "Total number of run attempts by status",
			},
			[]string{"status"},
		),

		CompactionCounter: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "agentcore_compactions_total",
				Help: "Total number of conversation compactions triggered by context overflow",
			},
		),
	}
}

// RunStarted increments the active-runs gauge and should be paired with a
// later RunCompleted call.
func (m *Metrics) RunStarted() {
	m.ActiveRuns.Inc()
}

// RunCompleted decrements the active-runs gauge and records the run outcome.
func (m *Metrics) RunCompleted(err error) {
	m.ActiveRuns.Dec()
	status := "success"
	if err != nil {
		status = "error"
	}
	m.RunCounter.WithLabelValues(status).Inc()
}

// RecordModelRequest records metrics for a model API request.
func (m *Metrics) RecordModelRequest(provider, model, status string, durationSeconds float64, promptTokens, completionTokens int) {
	m.ModelRequestCounter.WithLabelValues(provider, model, status).Inc()
	m.ModelRequestDuration.WithLabelValues(provider, model).Observe(durationSeconds)
	if promptTokens > 0 {
		m.ModelTokensUsed.WithLabelValues(provider, model, "prompt").Add(float64(promptTokens))
	}
	if completionTokens > 0 {
		m.ModelTokensUsed.WithLabelValues(provider, model, "completion").Add(float64(completionTokens))
	}
}

// RecordToolExecution records metrics for a tool execution.
func (m *Metrics) RecordToolExecution(toolName, status string, durationSeconds float64) {
	m.ToolExecutionCounter.WithLabelValues(toolName, status).Inc()
	m.ToolExecutionDuration.WithLabelValues(toolName).Observe(durationSeconds)
}

// RecordError increments the error counter for a given component and error type.
func (m *Metrics) RecordError(component, errorType string) {
	m.ErrorCounter.WithLabelValues(component, errorType).Inc()
}

// SessionStarted increments the active sessions gauge for a store backend.
func (m *Metrics) SessionStarted(backend string) {
	m.ActiveSessions.WithLabelValues(backend).Inc()
}

// SessionEnded decrements the active sessions gauge for a store backend.
func (m *Metrics) SessionEnded(backend string) {
	m.ActiveSessions.WithLabelValues(backend).Dec()
}

// RecordModelCost records estimated API cost.
func (m *Metrics) RecordModelCost(provider, model string, costUSD float64) {
	m.ModelCostUSD.WithLabelValues(provider, model).Add(costUSD)
}

// RecordContextWindow records context window utilization.
func (m *Metrics) RecordContextWindow(provider, model string, tokensUsed int) {
	m.ContextWindowUsed.WithLabelValues(provider, model).Observe(float64(tokensUsed))
}

// RecordRunAttempt records a run attempt outcome.
func (m *Metrics) RecordRunAttempt(status string) {
	m.RunAttempts.WithLabelValues(status).Inc()
}

// RecordCompaction records a conversation compaction.
func (m *Metrics) RecordCompaction() {
	m.CompactionCounter.Inc()
}
