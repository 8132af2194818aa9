// Package observability provides comprehensive monitoring and debugging
// capabilities for the agent runtime through metrics, structured logging,
// distributed tracing, and a replayable event timeline.
//
// # Overview
//
// The observability package implements the three pillars of observability,
// plus a fourth for this runtime specifically: an in-process event
// timeline used to replay and debug a single agent run turn by turn.
//
//  1. Metrics - Quantitative measurements using Prometheus
//  2. Logging - Structured logs with sensitive data redaction
//  3. Tracing - Distributed request tracing with OpenTelemetry
//  4. Events - A per-run timeline of model calls, tool calls, and errors
//
// # Architecture
//
// The package is designed to be:
//   - Low-overhead: minimal performance impact in the hot path of a turn
//   - Type-safe: strongly-typed APIs reduce configuration errors
//   - Production-ready: built-in redaction and reliability features
//   - Standards-based: uses Prometheus, OpenTelemetry, and slog
//
// None of the four pillars are wired into internal/loop.Agent directly.
// Instead, RunRecorder (run_recorder.go) implements hooks.HookProvider and
// drives all of them from the same before/after invocation, model-call,
// and tool-call events the loop already emits, so the loop itself stays
// unaware that metrics, traces, or an event timeline exist.
//
// # Metrics
//
// Metrics are implemented using the Prometheus client libraries and track:
//   - Agent run lifecycle and attempt counts
//   - Model request latency, token usage, and estimated cost
//   - Tool execution performance
//   - Error rates by component and error kind
//   - Active sessions by store backend
//   - Conversation compactions triggered by context overflow
//
// Example usage:
//
//	metrics := observability.NewMetrics()
//	metrics.RunStarted()
//	defer metrics.RunCompleted(runErr)
//
//	start := time.Now()
//	// ... make model request ...
//	metrics.RecordModelRequest("anthropic", "claude-sonnet-4-5", "success",
//	    time.Since(start).Seconds(), promptTokens, completionTokens)
//
// # Logging
//
// Logging is built on Go's slog package with enhancements for:
//   - Automatic request ID correlation from context
//   - Sensitive data redaction (API keys, passwords, tokens)
//   - JSON output for production, text for development
//   - Configurable log levels
//
// Example usage:
//
//	logger := observability.NewLogger(observability.LogConfig{
//	    Level:     "info",
//	    Format:    "json",
//	    AddSource: true,
//	})
//
//	ctx := observability.AddRunID(ctx, runID)
//	ctx = observability.AddSessionID(ctx, sessionID)
//
//	logger.Info(ctx, "invoking model",
//	    "agent_id", agentID,
//	    "message_count", len(history),
//	)
//
//	logger.Error(ctx, "model request failed",
//	    "error", err,
//	    "api_key", apiKey, // automatically redacted
//	)
//
// # Tracing
//
// Distributed tracing uses OpenTelemetry to track a run across its model
// and tool calls:
//   - End-to-end run visualization
//   - Latency bottleneck identification (which tool call is slow?)
//   - Error correlation across a run
//
// Example usage:
//
//	tracer, shutdown := observability.NewTracer(observability.TraceConfig{
//	    ServiceName:    "agentcore-runtime",
//	    ServiceVersion: "1.0.0",
//	    Environment:    "production",
//	    Endpoint:       "localhost:4317", // OTLP collector
//	    SamplingRate:   0.1,              // sample 10% of runs
//	})
//	defer shutdown(context.Background())
//
//	ctx, span := tracer.Start(ctx, "agent.run")
//	defer span.End()
//
//	ctx, toolSpan := tracer.TraceToolExecution(ctx, "web_search")
//	defer toolSpan.End()
//	if err != nil {
//	    tracer.RecordError(toolSpan, err)
//	}
//
// # Event Timeline
//
// Every agent run emits a sequence of Events (events.go) to an EventStore,
// keyed by run ID and session ID. This is the runtime's own replay log,
// distinct from metrics and traces: it is meant to answer "what exactly
// happened during this one run" after the fact, including full tool
// input/output payloads that would be too high-cardinality for a metric
// label or too large for a span attribute.
//
// Example usage:
//
//	store := observability.NewMemoryEventStore(10000)
//	recorder := observability.NewEventRecorder(store, logger)
//	recorder.RecordRunStart(ctx, runID, nil)
//	// ... run the agent ...
//	events, _ := store.GetByRunID(runID)
//	fmt.Println(observability.FormatTimeline(observability.BuildTimeline(events)))
//
// # Context Propagation
//
// All components integrate with Go's context for automatic correlation:
//
//	ctx = observability.AddRunID(ctx, "run-123")
//	ctx = observability.AddSessionID(ctx, "sess-456")
//	ctx = observability.AddAgentID(ctx, "agent-789")
//
//	logger.Info(ctx, "processing") // includes run_id, session_id, agent_id
//
//	ctx, span := tracer.Start(ctx, "operation")
//	// trace context propagates to child spans
//
// # Security Considerations
//
// The logging component automatically redacts:
//   - API keys (Anthropic, OpenAI, generic)
//   - Passwords and secrets
//   - JWT tokens
//   - Bearer tokens
//   - Custom patterns via configuration
//
// Sensitive fields in maps are also redacted:
//   - password, passwd, pwd
//   - secret, api_key, apikey
//   - token, auth, authorization
//   - private_key, privatekey
//
// # Performance
//
// The observability system is designed for minimal overhead:
//   - Metrics use lock-free counters where possible
//   - Logging with slog is efficient
//   - Tracing supports sampling to reduce overhead
//   - RunRecorder only does work the hook registry would invoke anyway
//
// # Testing
//
//   - Metrics can be verified using prometheus/testutil
//   - Logging can write to a bytes.Buffer for assertions
//   - Tracing works with a no-op tracer when config.Endpoint is empty
//   - RunRecorder can be exercised directly against hooks.Registry
//
// # Best Practices
//
//  1. Always propagate context to enable correlation
//  2. Use defer for span.End() to ensure spans are closed
//  3. Record errors on both metrics and traces
//  4. Use structured logging with key-value pairs
//  5. Set appropriate sampling rates for high-volume deployments
//  6. Use typed metric labels (avoid high-cardinality values)
//  7. Call shutdown() on the tracer during graceful shutdown
//
// # Further Reading
//
//   - Prometheus best practices: https://prometheus.io/docs/practices/naming/
//   - OpenTelemetry specification: https://opentelemetry.io/docs/specs/otel/
//   - slog documentation: https://pkg.go.dev/log/slog
package observability
