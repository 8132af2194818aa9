package loop

import (
	"testing"

	"github.com/agentcore/runtime/pkg/models"
)

func strPtr(s string) *string { return &s }

func TestReassemblerOrdersInterleavedDeltas(t *testing.T) {
	r := newReassembler()

	events := []models.ModelStreamEvent{
		{Type: models.ModelMessageStart, MessageStart: &models.ModelMessageStartEvent{Role: models.RoleAssistant}},
		{Type: models.ModelContentBlockStart, ContentBlockStart: &models.ModelContentBlockStartEvent{ContentBlockIndex: 0}},
		{Type: models.ModelContentBlockStart, ContentBlockStart: &models.ModelContentBlockStartEvent{ContentBlockIndex: 1}},
		// Interleaved deltas for block 1 before block 0 finishes.
		{Type: models.ModelContentBlockDelta, ContentBlockDelta: &models.ModelContentBlockDeltaEvent{ContentBlockIndex: 1, TextDelta: strPtr("second ")}},
		{Type: models.ModelContentBlockDelta, ContentBlockDelta: &models.ModelContentBlockDeltaEvent{ContentBlockIndex: 0, TextDelta: strPtr("first ")}},
		{Type: models.ModelContentBlockDelta, ContentBlockDelta: &models.ModelContentBlockDeltaEvent{ContentBlockIndex: 1, TextDelta: strPtr("block")}},
		{Type: models.ModelContentBlockStop, ContentBlockStop: &models.ModelContentBlockStopEvent{ContentBlockIndex: 1}},
		{Type: models.ModelContentBlockDelta, ContentBlockDelta: &models.ModelContentBlockDeltaEvent{ContentBlockIndex: 0, TextDelta: strPtr("block")}},
		{Type: models.ModelContentBlockStop, ContentBlockStop: &models.ModelContentBlockStopEvent{ContentBlockIndex: 0}},
		{Type: models.ModelMessageStop, MessageStop: &models.ModelMessageStopEvent{StopReason: models.StopEndTurn}},
	}
	for _, ev := range events {
		r.Feed(ev)
	}

	msg := r.Message()
	if len(msg.Content) != 2 {
		t.Fatalf("len(Content) = %d, want 2", len(msg.Content))
	}
	if msg.Content[0].Text.Text != "first block" {
		t.Fatalf("block 0 text = %q", msg.Content[0].Text.Text)
	}
	if msg.Content[1].Text.Text != "second block" {
		t.Fatalf("block 1 text = %q", msg.Content[1].Text.Text)
	}

	stop, ok := r.StopReason()
	if !ok || stop != models.StopEndTurn {
		t.Fatalf("StopReason() = (%v, %v)", stop, ok)
	}
}

func TestReassemblerDropsUnclosedBlock(t *testing.T) {
	r := newReassembler()
	r.Feed(models.ModelStreamEvent{Type: models.ModelContentBlockStart, ContentBlockStart: &models.ModelContentBlockStartEvent{ContentBlockIndex: 0}})
	r.Feed(models.ModelStreamEvent{Type: models.ModelContentBlockDelta, ContentBlockDelta: &models.ModelContentBlockDeltaEvent{ContentBlockIndex: 0, TextDelta: strPtr("never closes")}})

	msg := r.Message()
	if len(msg.Content) != 0 {
		t.Fatalf("expected unclosed block to be dropped, got %d blocks", len(msg.Content))
	}
}

func TestReassemblerToolUseBlock(t *testing.T) {
	r := newReassembler()
	r.Feed(models.ModelStreamEvent{
		Type: models.ModelContentBlockStart,
		ContentBlockStart: &models.ModelContentBlockStartEvent{
			ContentBlockIndex: 0,
			ToolUseStart:      &models.ToolUseStart{Name: "search", ToolUseID: "tu_1"},
		},
	})
	r.Feed(models.ModelStreamEvent{Type: models.ModelContentBlockDelta, ContentBlockDelta: &models.ModelContentBlockDeltaEvent{ContentBlockIndex: 0, ToolUseInputDelta: strPtr(`{"q":`)}})
	r.Feed(models.ModelStreamEvent{Type: models.ModelContentBlockDelta, ContentBlockDelta: &models.ModelContentBlockDeltaEvent{ContentBlockIndex: 0, ToolUseInputDelta: strPtr(`"go"}`)}})
	r.Feed(models.ModelStreamEvent{Type: models.ModelContentBlockStop, ContentBlockStop: &models.ModelContentBlockStopEvent{ContentBlockIndex: 0}})

	msg := r.Message()
	if len(msg.Content) != 1 || msg.Content[0].Type != models.ContentToolUse {
		t.Fatalf("expected single tool_use block, got %+v", msg.Content)
	}
	if string(msg.Content[0].ToolUse.Input) != `{"q":"go"}` {
		t.Fatalf("tool input = %s", msg.Content[0].ToolUse.Input)
	}
}
