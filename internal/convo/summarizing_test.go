package convo

import (
	"context"
	"strings"
	"testing"

	"github.com/agentcore/runtime/internal/hooks"
	"github.com/agentcore/runtime/internal/model"
	"github.com/agentcore/runtime/pkg/models"
)

func textHistory(n int) []models.Message {
	history := make([]models.Message, 0, n)
	for i := 0; i < n; i++ {
		if i%2 == 0 {
			history = append(history, models.NewUserMessage(models.NewTextBlock("user turn")))
		} else {
			history = append(history, models.NewAssistantMessage(models.NewTextBlock("assistant turn")))
		}
	}
	return history
}

func TestSummarizingManagerCompactsOnOverflow(t *testing.T) {
	var calls int
	summarize := func(ctx context.Context, prefix []models.Message) (string, error) {
		calls++
		if len(prefix) == 0 {
			t.Fatalf("summarize called with an empty prefix")
		}
		return "summary of earlier turns", nil
	}
	mgr := NewSummarizingConversationManager(summarize, WithRatio(0.3), WithPreserveRecentMessages(10))

	history := textHistory(50)
	event := &hooks.AfterModelCallEvent{
		Messages: &history,
		Err:      model.NewError("anthropic", overflowErr{}),
	}

	reg := mgr.Hooks()
	if len(reg) != 2 {
		t.Fatalf("expected two hook registrations (before+after model call), got %d", len(reg))
	}
	afterCallback := hookCallbackFor(t, reg, hooks.EventAfterModelCall)
	if err := afterCallback(context.Background(), event); err != nil {
		t.Fatalf("callback: %v", err)
	}

	if !event.Retry {
		t.Fatalf("expected Retry=true after compaction")
	}
	if event.Err != nil {
		t.Fatalf("expected Err cleared after compaction, got %v", event.Err)
	}
	if calls == 0 {
		t.Fatalf("expected the compaction pipeline to call summarize at least once")
	}
	if len(history) != 1+(50-15) {
		t.Fatalf("history len = %d, want %d", len(history), 1+(50-15))
	}
	if history[0].TextContent() != "summary of earlier turns" {
		t.Fatalf("history[0] = %+v", history[0])
	}
}

func TestSummarizingManagerWalksSplitPastOrphanToolUse(t *testing.T) {
	summarize := func(ctx context.Context, prefix []models.Message) (string, error) { return "summary", nil }
	mgr := NewSummarizingConversationManager(summarize)

	history := make([]models.Message, 0, 20)
	for i := 0; i < 5; i++ {
		history = append(history, models.NewUserMessage(models.NewTextBlock("turn")))
	}
	// The naive floor(20*0.3)=6 split would land right after this
	// assistant tool call, separating it from its result at index 6.
	history = append(history, models.NewAssistantMessage(models.NewToolUseBlock("search", "tu_1", nil)))
	history = append(history, models.NewUserMessage(models.NewToolResultBlock("tu_1", models.ToolResultSuccess, nil)))
	for i := 0; i < 13; i++ {
		history = append(history, models.NewUserMessage(models.NewTextBlock("turn")))
	}

	split := mgr.splitPoint(history)
	if split != 7 {
		t.Fatalf("split = %d, want 7 (walked past the tool call/result pair)", split)
	}
	if prev := history[split-1]; prev.Role == models.RoleAssistant && len(prev.ToolUseBlocks()) > 0 {
		t.Fatalf("split point %d leaves an unresolved tool call at the boundary", split)
	}
}

func hookCallbackFor(t *testing.T, reg []hooks.HookRegistration, event hooks.EventType) hooks.Callback {
	t.Helper()
	for _, r := range reg {
		if r.Event == event {
			return r.Callback
		}
	}
	t.Fatalf("no hook registered for %q", event)
	return nil
}

func TestSummarizingManagerWarnsOnLikelyOverflow(t *testing.T) {
	summarize := func(ctx context.Context, prefix []models.Message) (string, error) { return "summary", nil }

	var history []models.Message
	for i := 0; i < 200; i++ {
		history = append(history, models.NewUserMessage(models.NewTextBlock(strings.Repeat("x", 500))))
	}

	mgr := NewSummarizingConversationManager(summarize, WithContextWindow(1000))
	beforeCallback := hookCallbackFor(t, mgr.Hooks(), hooks.EventBeforeModelCall)

	event := hooks.BeforeModelCallEvent{AgentID: "agent-1", Messages: history}
	if err := beforeCallback(context.Background(), event); err != nil {
		t.Fatalf("callback: %v", err)
	}
	if !likelyOverflow(history, mgr.contextWindow) {
		t.Fatalf("expected this history to be classified as likely overflowing a 1000-token window")
	}
}

func TestSummarizingManagerDoesNotWarnOnShortHistory(t *testing.T) {
	summarize := func(ctx context.Context, prefix []models.Message) (string, error) { return "summary", nil }
	history := textHistory(4)

	mgr := NewSummarizingConversationManager(summarize)
	if likelyOverflow(history, mgr.contextWindow) {
		t.Fatalf("expected a short history not to be classified as likely overflowing")
	}
}

func TestSummarizingManagerNotesOversizedMessages(t *testing.T) {
	summarize := func(ctx context.Context, prefix []models.Message) (string, error) {
		return "summary of the normal turns", nil
	}
	mgr := NewSummarizingConversationManager(summarize, WithRatio(0.5), WithPreserveRecentMessages(2), WithContextWindow(400))

	history := []models.Message{
		models.NewUserMessage(models.NewTextBlock(strings.Repeat("x", 4000))),
		models.NewUserMessage(models.NewTextBlock("turn 2")),
		models.NewAssistantMessage(models.NewTextBlock("turn 3")),
		models.NewUserMessage(models.NewTextBlock("turn 4")),
	}
	event := &hooks.AfterModelCallEvent{
		Messages: &history,
		Err:      model.NewError("anthropic", overflowErr{}),
	}

	afterCallback := hookCallbackFor(t, mgr.Hooks(), hooks.EventAfterModelCall)
	if err := afterCallback(context.Background(), event); err != nil {
		t.Fatalf("callback: %v", err)
	}

	if !strings.Contains(history[0].TextContent(), "Oversized") {
		t.Fatalf("expected the oversized message to be noted rather than summarized verbatim, got %q", history[0].TextContent())
	}
}

type overflowErr struct{}

func (overflowErr) Error() string { return "prompt is too long: maximum context length exceeded" }
