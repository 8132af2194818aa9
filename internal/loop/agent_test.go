package loop

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/agentcore/runtime/internal/convo"
	"github.com/agentcore/runtime/internal/hooks"
	"github.com/agentcore/runtime/internal/model"
	"github.com/agentcore/runtime/internal/tooling"
	"github.com/agentcore/runtime/pkg/models"
)

type fakeModel struct {
	turns [][]models.ModelStreamEvent
	calls int
}

func (m *fakeModel) Stream(ctx context.Context, messages []models.Message, opts model.StreamOptions) (<-chan models.ModelStreamEvent, error) {
	idx := m.calls
	m.calls++
	if idx >= len(m.turns) {
		return nil, fmt.Errorf("fakeModel: no scripted turn %d", idx)
	}
	out := make(chan models.ModelStreamEvent, len(m.turns[idx]))
	for _, ev := range m.turns[idx] {
		out <- ev
	}
	close(out)
	return out, nil
}

func textTurnEvents(text string, stop models.StopReason) []models.ModelStreamEvent {
	return []models.ModelStreamEvent{
		{Type: models.ModelMessageStart, MessageStart: &models.ModelMessageStartEvent{Role: models.RoleAssistant}},
		{Type: models.ModelContentBlockStart, ContentBlockStart: &models.ModelContentBlockStartEvent{ContentBlockIndex: 0}},
		{Type: models.ModelContentBlockDelta, ContentBlockDelta: &models.ModelContentBlockDeltaEvent{ContentBlockIndex: 0, TextDelta: &text}},
		{Type: models.ModelContentBlockStop, ContentBlockStop: &models.ModelContentBlockStopEvent{ContentBlockIndex: 0}},
		{Type: models.ModelMessageStop, MessageStop: &models.ModelMessageStopEvent{StopReason: stop}},
	}
}

func toolUseTurnEvents(name, id, inputJSON string) []models.ModelStreamEvent {
	return []models.ModelStreamEvent{
		{Type: models.ModelMessageStart, MessageStart: &models.ModelMessageStartEvent{Role: models.RoleAssistant}},
		{Type: models.ModelContentBlockStart, ContentBlockStart: &models.ModelContentBlockStartEvent{ContentBlockIndex: 0, ToolUseStart: &models.ToolUseStart{Name: name, ToolUseID: id}}},
		{Type: models.ModelContentBlockDelta, ContentBlockDelta: &models.ModelContentBlockDeltaEvent{ContentBlockIndex: 0, ToolUseInputDelta: &inputJSON}},
		{Type: models.ModelContentBlockStop, ContentBlockStop: &models.ModelContentBlockStopEvent{ContentBlockIndex: 0}},
		{Type: models.ModelMessageStop, MessageStop: &models.ModelMessageStopEvent{StopReason: models.StopToolUse}},
	}
}

type fakeTool struct {
	name       string
	resultText string
}

func (t *fakeTool) Name() string { return t.name }

func (t *fakeTool) ToolSpec() tooling.Spec {
	return tooling.Spec{Name: t.name, Description: "fake tool", InputSchema: json.RawMessage(`{}`)}
}

func (t *fakeTool) Stream(ctx context.Context, tc tooling.Context, input json.RawMessage) <-chan tooling.StreamEvent {
	out := make(chan tooling.StreamEvent, 1)
	result := models.NewToolResultBlock(tc.ToolUse.ToolUse.ToolUseID, models.ToolResultSuccess, []models.ContentBlock{models.NewTextBlock(t.resultText)})
	out <- tooling.StreamEvent{Type: tooling.ToolStreamResult, Result: &result}
	close(out)
	return out
}

func TestAgentInvokeSingleTextTurn(t *testing.T) {
	fm := &fakeModel{turns: [][]models.ModelStreamEvent{textTurnEvents("hello there", models.StopEndTurn)}}
	ag := New("a1", fm, nil, nil, Config{})

	result, err := ag.Invoke(context.Background(), NewPromptText("hi"))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.StopReason != models.StopEndTurn {
		t.Fatalf("StopReason = %v, want endTurn", result.StopReason)
	}
	if result.LastMessage.TextContent() != "hello there" {
		t.Fatalf("LastMessage = %+v", result.LastMessage)
	}
	if msgs := ag.Messages(); len(msgs) != 2 {
		t.Fatalf("len(Messages()) = %d, want 2 (prompt + reply)", len(msgs))
	}
}

func TestAgentInvokeWithToolCall(t *testing.T) {
	reg, err := tooling.NewRegistry([]tooling.Tool{&fakeTool{name: "search", resultText: "found it"}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	fm := &fakeModel{turns: [][]models.ModelStreamEvent{
		toolUseTurnEvents("search", "tu_1", `{"q":"go"}`),
		textTurnEvents("done", models.StopEndTurn),
	}}
	ag := New("a1", fm, reg, nil, Config{})

	result, err := ag.Invoke(context.Background(), NewPromptText("search for go"))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.StopReason != models.StopEndTurn {
		t.Fatalf("StopReason = %v, want endTurn", result.StopReason)
	}

	msgs := ag.Messages()
	if len(msgs) != 4 {
		t.Fatalf("len(Messages()) = %d, want 4 (prompt, toolUse, toolResult, reply): %+v", len(msgs), msgs)
	}
	toolResults := msgs[2].ToolResultBlocks()
	if len(toolResults) != 1 || toolResults[0].ToolResult.ToolUseID != "tu_1" {
		t.Fatalf("tool result message = %+v", msgs[2])
	}
	if toolResults[0].ToolResult.Status != models.ToolResultSuccess {
		t.Fatalf("expected successful tool result, got %+v", toolResults[0].ToolResult)
	}
}

func TestAgentInvokeToolNotFound(t *testing.T) {
	fm := &fakeModel{turns: [][]models.ModelStreamEvent{
		toolUseTurnEvents("missing", "tu_1", `{}`),
		textTurnEvents("done", models.StopEndTurn),
	}}
	ag := New("a1", fm, nil, nil, Config{})

	result, err := ag.Invoke(context.Background(), NewPromptText("try"))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.StopReason != models.StopEndTurn {
		t.Fatalf("StopReason = %v", result.StopReason)
	}
	msgs := ag.Messages()
	results := msgs[2].ToolResultBlocks()
	if len(results) != 1 || results[0].ToolResult.Status != models.ToolResultError {
		t.Fatalf("expected a synthesized error result, got %+v", msgs[2])
	}
}

type blockingModel struct {
	release chan struct{}
}

func (m *blockingModel) Stream(ctx context.Context, messages []models.Message, opts model.StreamOptions) (<-chan models.ModelStreamEvent, error) {
	<-m.release
	out := make(chan models.ModelStreamEvent)
	close(out)
	return out, nil
}

func TestAgentConcurrentInvocationRejected(t *testing.T) {
	bm := &blockingModel{release: make(chan struct{})}
	ag := New("a1", bm, nil, nil, Config{})

	events, err := ag.Stream(context.Background(), NewPromptText("hi"))
	if err != nil {
		t.Fatalf("Stream: %v", err)
	}

	_, err2 := ag.Stream(context.Background(), NewPromptText("hi again"))
	var concErr *ConcurrentInvocationError
	if !errors.As(err2, &concErr) {
		t.Fatalf("err2 = %v, want *ConcurrentInvocationError", err2)
	}

	close(bm.release)
	for range events {
	}
}

func TestAgentInterruptThenResume(t *testing.T) {
	fm := &fakeModel{turns: [][]models.ModelStreamEvent{
		toolUseTurnEvents("danger", "tu_1", `{}`),
		textTurnEvents("resumed", models.StopEndTurn),
	}}
	reg, _ := tooling.NewRegistry([]tooling.Tool{&fakeTool{name: "danger", resultText: "done anyway"}})

	hookRegistry := hooks.NewRegistry(nil)
	hookRegistry.AddCallback(hooks.EventBeforeToolCall, func(ctx context.Context, event hooks.Event) error {
		ev := event.(*hooks.BeforeToolCallEvent)
		if ev.ResolvedTool != "danger" {
			return nil
		}
		return ev.Interrupt("confirm", "needs human confirmation")
	})

	ag := New("a1", fm, reg, hookRegistry, Config{})

	result, err := ag.Invoke(context.Background(), NewPromptText("do the dangerous thing"))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if result.StopReason != models.StopInterrupt {
		t.Fatalf("StopReason = %v, want interrupt", result.StopReason)
	}
	if len(result.Interrupts) != 1 || result.Interrupts[0].Name != "confirm" {
		t.Fatalf("Interrupts = %+v", result.Interrupts)
	}

	resumeResult, err := ag.Invoke(context.Background(), NewInterruptResume([]models.InterruptResponse{
		{InterruptID: result.Interrupts[0].ID, Response: "yes"},
	}))
	if err != nil {
		t.Fatalf("resume Invoke: %v", err)
	}
	if resumeResult.StopReason != models.StopEndTurn {
		t.Fatalf("resume StopReason = %v, want endTurn", resumeResult.StopReason)
	}
	if resumeResult.LastMessage.TextContent() != "resumed" {
		t.Fatalf("resume LastMessage = %+v", resumeResult.LastMessage)
	}
}

func TestAgentRecoversFromContextOverflowViaSummarization(t *testing.T) {
	overflowErr := fmt.Errorf("prompt is too long: maximum context length exceeded")
	fm := &fakeModel{turns: [][]models.ModelStreamEvent{
		{{Type: models.ModelMetadata, Metadata: &models.ModelMetadataEvent{Err: model.NewError("anthropic", overflowErr)}}},
		textTurnEvents("recovered", models.StopEndTurn),
	}}

	summarizeCalls := 0
	summarize := func(ctx context.Context, prefix []models.Message) (string, error) {
		summarizeCalls++
		return "summary text", nil
	}
	mgr := convo.NewSummarizingConversationManager(summarize, convo.WithRatio(0.5), convo.WithPreserveRecentMessages(1))

	hookRegistry := hooks.NewRegistry(nil)
	hookRegistry.AddHook(mgr)

	ag := New("a1", fm, nil, hookRegistry, Config{})
	ag.SetMessages([]models.Message{
		models.NewUserMessage(models.NewTextBlock("turn1")),
		models.NewAssistantMessage(models.NewTextBlock("turn2")),
		models.NewUserMessage(models.NewTextBlock("turn3")),
		models.NewAssistantMessage(models.NewTextBlock("turn4")),
	})

	result, err := ag.Invoke(context.Background(), NewPromptText("turn5"))
	if err != nil {
		t.Fatalf("Invoke: %v", err)
	}
	if summarizeCalls != 1 {
		t.Fatalf("summarizeCalls = %d, want 1", summarizeCalls)
	}
	if result.StopReason != models.StopEndTurn {
		t.Fatalf("StopReason = %v, want endTurn", result.StopReason)
	}
	if result.LastMessage.TextContent() != "recovered" {
		t.Fatalf("LastMessage = %+v", result.LastMessage)
	}

	msgs := ag.Messages()
	if len(msgs) != 5 {
		t.Fatalf("len(Messages()) = %d, want 5: %+v", len(msgs), msgs)
	}
	if msgs[0].TextContent() != "summary text" {
		t.Fatalf("msgs[0] = %+v, want the summary message", msgs[0])
	}
}
