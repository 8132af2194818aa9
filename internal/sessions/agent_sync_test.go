package sessions

import (
	"context"
	"testing"

	"github.com/agentcore/runtime/internal/agentstate"
	"github.com/agentcore/runtime/internal/hooks"
	"github.com/agentcore/runtime/pkg/models"
)

func TestAgentSyncInitializeCreatesSessionAndAgent(t *testing.T) {
	store := NewMemoryStore()
	state := agentstate.New()
	sync := NewAgentSync(store, "sess-1", "agent-1", state)

	registry := hooks.NewRegistry(nil)
	registry.AddHook(sync)

	if _, err := registry.InvokeCallbacks(context.Background(), hooks.BeforeInvocationEvent{AgentID: "agent-1"}); err != nil {
		t.Fatalf("BeforeInvocation: %v", err)
	}

	if _, err := store.ReadSession(context.Background(), "sess-1"); err != nil {
		t.Fatalf("expected session to exist, ReadSession() error = %v", err)
	}
	if _, err := store.ReadAgent(context.Background(), "sess-1", "agent-1"); err != nil {
		t.Fatalf("expected agent to exist, ReadAgent() error = %v", err)
	}
}

func TestAgentSyncMessageAddedAppendsAndSyncsState(t *testing.T) {
	store := NewMemoryStore()
	state := agentstate.New()
	sync := NewAgentSync(store, "sess-1", "agent-1", state)

	registry := hooks.NewRegistry(nil)
	registry.AddHook(sync)
	ctx := context.Background()

	if _, err := registry.InvokeCallbacks(ctx, hooks.BeforeInvocationEvent{AgentID: "agent-1"}); err != nil {
		t.Fatalf("BeforeInvocation: %v", err)
	}

	if err := state.Set("turns", 1); err != nil {
		t.Fatalf("Set: %v", err)
	}

	msg := models.NewUserMessage(models.NewTextBlock("hello"))
	if _, err := registry.InvokeCallbacks(ctx, hooks.MessageAddedEvent{AgentID: "agent-1", Message: msg}); err != nil {
		t.Fatalf("MessageAdded: %v", err)
	}

	stored, err := store.ListMessages(ctx, "sess-1", "agent-1", 10, 0)
	if err != nil {
		t.Fatalf("ListMessages: %v", err)
	}
	if len(stored) != 1 {
		t.Fatalf("ListMessages() len = %d, want 1", len(stored))
	}

	agent, err := store.ReadAgent(ctx, "sess-1", "agent-1")
	if err != nil {
		t.Fatalf("ReadAgent: %v", err)
	}
	var turns float64
	if v, ok := agent.State["turns"]; ok {
		turns = v.(float64)
	}
	if turns != 1 {
		t.Fatalf("agent.State[\"turns\"] = %v, want 1", agent.State["turns"])
	}
}

func TestAgentSyncInitializeRestoresExistingState(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	if err := store.CreateSession(ctx, &Session{ID: "sess-1"}); err != nil {
		t.Fatalf("CreateSession: %v", err)
	}
	if err := store.CreateAgent(ctx, &Agent{ID: "agent-1", SessionID: "sess-1", State: map[string]any{"turns": 3}}); err != nil {
		t.Fatalf("CreateAgent: %v", err)
	}

	state := agentstate.New()
	sync := NewAgentSync(store, "sess-1", "agent-1", state)
	registry := hooks.NewRegistry(nil)
	registry.AddHook(sync)

	if _, err := registry.InvokeCallbacks(ctx, hooks.BeforeInvocationEvent{AgentID: "agent-1"}); err != nil {
		t.Fatalf("BeforeInvocation: %v", err)
	}

	var turns float64
	if ok, err := state.Get("turns", &turns); err != nil || !ok {
		t.Fatalf("Get(\"turns\") = (%v, %v), want (3, nil)", ok, err)
	}
	if turns != 3 {
		t.Fatalf("turns = %v, want 3", turns)
	}
}
