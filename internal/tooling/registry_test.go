package tooling

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/agentcore/runtime/pkg/models"
)

type stubTool struct{ name string }

func (s stubTool) Name() string { return s.name }
func (s stubTool) ToolSpec() Spec {
	return Spec{Name: s.name, Description: "stub", InputSchema: json.RawMessage(`{}`)}
}
func (s stubTool) Stream(ctx context.Context, tc Context, input json.RawMessage) <-chan StreamEvent {
	out := make(chan StreamEvent, 1)
	r := models.NewToolResultBlock(toolUseID(tc), models.ToolResultSuccess, nil)
	out <- StreamEvent{Type: ToolStreamResult, Result: &r}
	close(out)
	return out
}

func TestRegistryRejectsDuplicateNames(t *testing.T) {
	_, err := NewRegistry([]Tool{stubTool{name: "a"}, stubTool{name: "a"}})
	if err == nil {
		t.Fatalf("expected error for duplicate tool name")
	}
}

func TestRegistryRejectsDuplicateAcrossGroups(t *testing.T) {
	_, err := NewRegistry([]Tool{stubTool{name: "a"}}, []Tool{stubTool{name: "a"}})
	if err == nil {
		t.Fatalf("expected error for duplicate tool name across groups")
	}
}

func TestRegistryGet(t *testing.T) {
	r, err := NewRegistry([]Tool{stubTool{name: "a"}, stubTool{name: "b"}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	if _, ok := r.Get("a"); !ok {
		t.Fatalf("expected to find tool a")
	}
	if _, ok := r.Get("missing"); ok {
		t.Fatalf("expected not to find missing tool")
	}
	if len(r.Specs()) != 2 {
		t.Fatalf("Specs() len = %d, want 2", len(r.Specs()))
	}
}
