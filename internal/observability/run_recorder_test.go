package observability

import (
	"context"
	"testing"

	"github.com/agentcore/runtime/internal/hooks"
	"github.com/agentcore/runtime/pkg/models"
)

func TestRunRecorderRecordsModelAndToolLifecycle(t *testing.T) {
	store := NewMemoryEventStore(100)
	recorder := NewEventRecorder(store, nil)
	registry := hooks.NewRegistry(nil)
	remove := registry.AddHook(NewRunRecorder(recorder, "agent-1"))
	defer remove()

	ctx := context.Background()
	ctx = AddRunID(ctx, "agent-1")

	if _, err := registry.InvokeCallbacks(ctx, hooks.BeforeInvocationEvent{AgentID: "agent-1"}); err != nil {
		t.Fatalf("BeforeInvocation callback error = %v", err)
	}
	if _, err := registry.InvokeCallbacks(ctx, hooks.BeforeModelCallEvent{AgentID: "agent-1", Messages: []models.Message{}}); err != nil {
		t.Fatalf("BeforeModelCall callback error = %v", err)
	}
	after := &hooks.AfterModelCallEvent{AgentID: "agent-1", StopReason: models.StopEndTurn}
	if _, err := registry.InvokeCallbacks(ctx, after); err != nil {
		t.Fatalf("AfterModelCall callback error = %v", err)
	}

	toolUse := models.NewToolUseBlock("lookup", "tc-1", nil)
	before := &hooks.BeforeToolCallEvent{AgentID: "agent-1", ToolUse: toolUse, ResolvedTool: "lookup"}
	if _, err := registry.InvokeCallbacks(ctx, before); err != nil {
		t.Fatalf("BeforeToolCall callback error = %v", err)
	}
	result := models.NewToolResultBlock("tc-1", models.ToolResultSuccess, nil)
	if _, err := registry.InvokeCallbacks(ctx, hooks.AfterToolCallEvent{AgentID: "agent-1", ToolUse: toolUse, ToolResult: result}); err != nil {
		t.Fatalf("AfterToolCall callback error = %v", err)
	}
	if _, err := registry.InvokeCallbacks(ctx, hooks.AfterInvocationEvent{AgentID: "agent-1"}); err != nil {
		t.Fatalf("AfterInvocation callback error = %v", err)
	}

	events, err := store.GetByRunID("agent-1")
	if err != nil {
		t.Fatalf("GetByRunID() error = %v", err)
	}
	var types []EventType
	for _, e := range events {
		types = append(types, e.Type)
	}
	wantAny := map[EventType]bool{
		EventTypeRunStart:    false,
		EventTypeLLMRequest:  false,
		EventTypeLLMResponse: false,
		EventTypeToolStart:   false,
		EventTypeToolEnd:     false,
		EventTypeRunEnd:      false,
	}
	for _, ty := range types {
		if _, ok := wantAny[ty]; ok {
			wantAny[ty] = true
		}
	}
	for ty, seen := range wantAny {
		if !seen {
			t.Errorf("expected an event of type %q, got %v", ty, types)
		}
	}
}
