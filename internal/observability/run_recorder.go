package observability

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/trace"

	"github.com/agentcore/runtime/internal/hooks"
	"github.com/agentcore/runtime/internal/model"
	"github.com/agentcore/runtime/pkg/models"
)

// RunRecorder bridges an EventRecorder into the hook registry, so every
// agent invocation's model calls and tool calls land on the event timeline
// without the loop itself knowing observability exists. When metrics and a
// tracer are supplied, the same lifecycle also drives Prometheus counters
// and OpenTelemetry spans, so one hook provider covers all three
// observability pillars for a given agent.
type RunRecorder struct {
	recorder  *EventRecorder
	metrics   *Metrics
	tracer    *Tracer
	agentID   string
	modelName string

	modelCallStart time.Time
	toolCallStart  map[string]time.Time
	runSpan        trace.Span
	modelSpan      trace.Span
	toolSpan       map[string]trace.Span
}

// NewRunRecorder returns a hooks.HookProvider that records run/model/tool
// lifecycle events for agentID through recorder. metrics and tracer are
// optional; either may be nil to skip that pillar.
func NewRunRecorder(recorder *EventRecorder, agentID string) *RunRecorder {
	return &RunRecorder{
		recorder:      recorder,
		agentID:       agentID,
		modelName:     "default",
		toolCallStart: make(map[string]time.Time),
		toolSpan:      make(map[string]trace.Span),
	}
}

// WithMetrics attaches a Metrics recorder, returning r for chaining.
func (r *RunRecorder) WithMetrics(metrics *Metrics) *RunRecorder {
	r.metrics = metrics
	return r
}

// WithTracer attaches a Tracer, returning r for chaining.
func (r *RunRecorder) WithTracer(tracer *Tracer) *RunRecorder {
	r.tracer = tracer
	return r
}

// WithModelName labels model-request metrics with modelName instead of the
// "default" placeholder, returning r for chaining.
func (r *RunRecorder) WithModelName(modelName string) *RunRecorder {
	if modelName != "" {
		r.modelName = modelName
	}
	return r
}

// Hooks implements hooks.HookProvider.
func (r *RunRecorder) Hooks() []hooks.HookRegistration {
	return []hooks.HookRegistration{
		{Event: hooks.EventBeforeInvocation, Callback: r.onBeforeInvocation},
		{Event: hooks.EventAfterInvocation, Callback: r.onAfterInvocation},
		{Event: hooks.EventBeforeModelCall, Callback: r.onBeforeModelCall},
		{Event: hooks.EventAfterModelCall, Callback: r.onAfterModelCall},
		{Event: hooks.EventBeforeToolCall, Callback: r.onBeforeToolCall},
		{Event: hooks.EventAfterToolCall, Callback: r.onAfterToolCall},
	}
}

func (r *RunRecorder) onBeforeInvocation(ctx context.Context, event hooks.Event) error {
	ev := event.(hooks.BeforeInvocationEvent)
	if r.metrics != nil {
		r.metrics.RunStarted()
	}
	if r.tracer != nil {
		_, span := r.tracer.Start(ctx, "agent.run", SpanOptions{Kind: trace.SpanKindInternal})
		r.tracer.SetAttributes(span, "agent_id", ev.AgentID)
		r.runSpan = span
	}
	_ = r.recorder.RecordRunStart(ctx, ev.AgentID, map[string]interface{}{"agent_id": ev.AgentID})
	return nil
}

func (r *RunRecorder) onAfterInvocation(ctx context.Context, event hooks.Event) error {
	ev := event.(hooks.AfterInvocationEvent)
	if r.metrics != nil {
		r.metrics.RunCompleted(ev.Err)
	}
	if r.runSpan != nil {
		if ev.Err != nil {
			r.tracer.RecordError(r.runSpan, ev.Err)
		}
		r.runSpan.End()
		r.runSpan = nil
	}
	_ = r.recorder.RecordRunEnd(ctx, 0, ev.Err)
	return nil
}

func (r *RunRecorder) onBeforeModelCall(ctx context.Context, event hooks.Event) error {
	r.modelCallStart = time.Now()
	ev := event.(hooks.BeforeModelCallEvent)
	if r.tracer != nil {
		_, span := r.tracer.Start(ctx, "model.call", SpanOptions{Kind: trace.SpanKindClient})
		r.tracer.SetAttributes(span, "agent_id", ev.AgentID, "message_count", len(ev.Messages))
		r.modelSpan = span
	}
	_ = r.recorder.Record(ctx, EventTypeLLMRequest, "model_call", map[string]interface{}{
		"agent_id":      ev.AgentID,
		"message_count": len(ev.Messages),
	})
	return nil
}

func (r *RunRecorder) onAfterModelCall(ctx context.Context, event hooks.Event) error {
	ev := event.(*hooks.AfterModelCallEvent)
	duration := time.Since(r.modelCallStart)
	status := "success"
	if ev.Err != nil {
		status = "error"
	}
	if r.metrics != nil {
		r.metrics.RecordModelRequest("anthropic", r.modelName, status, duration.Seconds(), 0, 0)
	}
	if r.modelSpan != nil {
		if ev.Err != nil {
			r.tracer.RecordError(r.modelSpan, ev.Err)
		}
		r.tracer.SetAttributes(r.modelSpan, "stop_reason", string(ev.StopReason))
		r.modelSpan.End()
		r.modelSpan = nil
	}
	data := map[string]interface{}{
		"agent_id":    ev.AgentID,
		"stop_reason": string(ev.StopReason),
		"duration_ms": duration.Milliseconds(),
	}
	if ev.Err != nil {
		if r.metrics != nil {
			r.metrics.RecordError("model", errorKind(ev.Err))
		}
		return r.recorder.RecordError(ctx, EventTypeLLMError, "model_error", ev.Err, data)
	}
	return r.recorder.Record(ctx, EventTypeLLMResponse, "model_response", data)
}

func (r *RunRecorder) onBeforeToolCall(ctx context.Context, event hooks.Event) error {
	ev := event.(*hooks.BeforeToolCallEvent)
	id := toolUseID(ev.ToolUse)
	r.toolCallStart[id] = time.Now()
	if r.tracer != nil {
		_, span := r.tracer.TraceToolExecution(ctx, ev.ResolvedTool)
		r.toolSpan[id] = span
	}
	return r.recorder.RecordToolStart(ctx, ev.ResolvedTool, ev.ToolUse)
}

func (r *RunRecorder) onAfterToolCall(ctx context.Context, event hooks.Event) error {
	ev := event.(hooks.AfterToolCallEvent)
	id := toolUseID(ev.ToolUse)
	start, ok := r.toolCallStart[id]
	if !ok {
		start = time.Now()
	}
	delete(r.toolCallStart, id)
	duration := time.Since(start)

	name := toolName(ev.ToolUse)
	status := "success"
	if ev.Err != nil {
		status = "error"
	}
	if r.metrics != nil {
		r.metrics.RecordToolExecution(name, status, duration.Seconds())
		if ev.Err != nil {
			r.metrics.RecordError("tool", errorKind(ev.Err))
		}
	}
	if span, ok := r.toolSpan[id]; ok {
		if ev.Err != nil {
			r.tracer.RecordError(span, ev.Err)
		}
		span.End()
		delete(r.toolSpan, id)
	}
	return r.recorder.RecordToolEnd(ctx, name, duration, ev.ToolResult, ev.Err)
}

// errorKind reduces an error to a coarse label suitable for a Prometheus
// label value, avoiding the high-cardinality mistake of using err.Error().
func errorKind(err error) string {
	if err == nil {
		return ""
	}
	if model.IsContextOverflow(err) {
		return "context_overflow"
	}
	return "request_failed"
}

func toolUseID(block models.ContentBlock) string {
	if block.ToolUse != nil {
		return block.ToolUse.ToolUseID
	}
	return ""
}

func toolName(block models.ContentBlock) string {
	if block.ToolUse != nil {
		return block.ToolUse.Name
	}
	return ""
}
