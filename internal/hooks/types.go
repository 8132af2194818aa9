// Package hooks implements the lifecycle hook registry that lets external
// code observe and steer an agent invocation: logging, metrics, context
// injection, tool gating, and interrupt-driven human-in-the-loop approval.
package hooks

import (
	"github.com/agentcore/runtime/pkg/models"
)

// EventType identifies one point in the agent invocation lifecycle.
type EventType string

const (
	EventBeforeInvocation EventType = "before_invocation"
	EventAfterInvocation  EventType = "after_invocation"
	EventBeforeModelCall  EventType = "before_model_call"
	EventAfterModelCall   EventType = "after_model_call"
	EventBeforeToolCall   EventType = "before_tool_call"
	EventAfterToolCall    EventType = "after_tool_call"
	EventBeforeTools      EventType = "before_tools"
	EventAfterTools       EventType = "after_tools"
	EventMessageAdded     EventType = "message_added"
	EventModelStream      EventType = "model_stream"
)

// Event is the common interface implemented by every concrete event struct.
// Handlers type-assert to the concrete type they care about.
type Event interface {
	EventType() EventType
}

// InterruptFunc is called by a handler to register a new Interrupt on the
// owning agent and obtain the *InterruptException the handler must then
// return as its own error, so the registry can catch it and add it to the
// dispatch's interrupt list rather than letting it abort the chain. Only
// meaningful from within a BeforeToolCallEvent handler.
type InterruptFunc func(name, reason string) error

// BeforeInvocationEvent fires once at the start of Agent.Invoke, before the
// first model call of the turn.
type BeforeInvocationEvent struct {
	AgentID string
}

func (BeforeInvocationEvent) EventType() EventType { return EventBeforeInvocation }

// AfterInvocationEvent fires once when Invoke returns, successfully or not.
type AfterInvocationEvent struct {
	AgentID string
	Err     error
}

func (AfterInvocationEvent) EventType() EventType { return EventAfterInvocation }

// BeforeModelCallEvent fires immediately before each call to the model.
type BeforeModelCallEvent struct {
	AgentID  string
	Messages []models.Message
}

func (BeforeModelCallEvent) EventType() EventType { return EventBeforeModelCall }

// AfterModelCallEvent fires after a model call completes or fails. Messages
// points at the loop's working history; a handler may replace its contents
// in place (the summarizing conversation manager does this to compact on
// context overflow). Handlers may mutate Retry to request that the loop
// replay the call, and may set Err to nil to mark a recovered error as
// handled.
type AfterModelCallEvent struct {
	AgentID    string
	Messages   *[]models.Message
	Message    *models.Message
	StopReason models.StopReason
	Err        error
	Retry      bool
}

func (*AfterModelCallEvent) EventType() EventType { return EventAfterModelCall }

// BeforeToolCallEvent fires before each individual tool invocation, in
// toolUse-block array order. A handler may set CancelTool with a reason to
// skip execution and synthesize an error result instead, or call Interrupt
// to suspend the loop and request external input.
type BeforeToolCallEvent struct {
	AgentID      string
	ToolUse      models.ContentBlock
	ResolvedTool string
	CancelTool   string
	Interrupt    InterruptFunc
}

func (*BeforeToolCallEvent) EventType() EventType { return EventBeforeToolCall }

// AfterToolCallEvent fires after a tool invocation produces its terminal
// ToolResultBlock.
type AfterToolCallEvent struct {
	AgentID    string
	ToolUse    models.ContentBlock
	ToolResult models.ContentBlock
	Err        error
}

func (AfterToolCallEvent) EventType() EventType { return EventAfterToolCall }

// BeforeToolsEvent fires once before the sequential execution of all
// toolUse blocks contained in a single assistant message.
type BeforeToolsEvent struct {
	AgentID string
	Message models.Message
}

func (BeforeToolsEvent) EventType() EventType { return EventBeforeTools }

// AfterToolsEvent fires once after every toolUse block in a message has
// produced a result (or been cancelled/interrupted).
type AfterToolsEvent struct {
	AgentID string
	Message models.Message
}

func (AfterToolsEvent) EventType() EventType { return EventAfterTools }

// MessageAddedEvent fires whenever a message is appended to the working
// conversation, whether produced by the model, synthesized by tool
// execution, or inserted by the conversation manager.
type MessageAddedEvent struct {
	AgentID string
	Message models.Message
}

func (MessageAddedEvent) EventType() EventType { return EventMessageAdded }

// ModelStreamEventHook fires for every raw ModelStreamEvent a provider
// yields, before reassembly. Useful for token-by-token consumers.
type ModelStreamEventHook struct {
	AgentID string
	Event   models.ModelStreamEvent
}

func (ModelStreamEventHook) EventType() EventType { return EventModelStream }
