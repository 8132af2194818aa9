// Package tooling defines the tool protocol agents invoke and a registry
// for resolving toolUse blocks to concrete implementations.
package tooling

import (
	"context"
	"encoding/json"

	"github.com/agentcore/runtime/internal/agentstate"
	"github.com/agentcore/runtime/pkg/models"
)

// Spec describes a tool's name, natural-language purpose, and JSON Schema
// input shape, as sent to a model so it can decide when and how to call it.
type Spec struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// StreamEventType discriminates the variant carried by a ToolStreamEvent.
type StreamEventType string

const (
	ToolStreamProgress StreamEventType = "progress"
	ToolStreamLog      StreamEventType = "log"
	ToolStreamResult   StreamEventType = "result"
)

// StreamEvent is yielded while a tool runs. The final event on the channel
// always has Type ToolStreamResult and a populated Result.
type StreamEvent struct {
	Type     StreamEventType
	Message  string
	Result   *models.ContentBlock
}

// Context carries per-invocation data a tool's Stream method needs beyond
// its raw input: the originating toolUse block, and the shared agent state
// store for passing data between tools and hooks within one turn.
type Context struct {
	AgentID   string
	ToolUse   models.ContentBlock
	State     *agentstate.State
}

// Tool is the protocol every invocable capability implements. Stream must
// terminate its returned channel with exactly one ToolStreamResult event
// carrying a toolResultBlock whose ToolUseID matches the invoking toolUse
// block; it must never leave the channel open past cancellation of ctx.
type Tool interface {
	Name() string
	ToolSpec() Spec
	Stream(ctx context.Context, tc Context, input json.RawMessage) <-chan StreamEvent
}

// Run drives a Tool's Stream to completion and returns only its terminal
// result, discarding intermediate progress/log events. Convenience for
// callers that do not need to observe streaming events, such as tests.
func Run(ctx context.Context, t Tool, tc Context, input json.RawMessage) models.ContentBlock {
	var last models.ContentBlock
	for ev := range t.Stream(ctx, tc, input) {
		if ev.Type == ToolStreamResult && ev.Result != nil {
			last = *ev.Result
		}
	}
	return last
}
