package loop

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/agentcore/runtime/internal/agentstate"
	"github.com/agentcore/runtime/internal/hooks"
	"github.com/agentcore/runtime/internal/interrupt"
	"github.com/agentcore/runtime/internal/model"
	"github.com/agentcore/runtime/internal/tooling"
	"github.com/agentcore/runtime/pkg/models"
)

// Config configures one Agent's turn behavior.
type Config struct {
	SystemPrompt string
	ToolChoice   model.ToolChoice
	MaxTokens    int
}

// Result is what Invoke or a drained Stream produces once a turn reaches a
// terminal stop reason.
type Result struct {
	StopReason       models.StopReason
	LastMessage      models.Message
	Interrupts       []*models.Interrupt
	StructuredOutput any
}

// Input is either a fresh prompt or a set of responses resuming interrupts
// raised during a previous turn. Exactly one of Prompt or
// InterruptResponses should be set; constructing via NewPrompt /
// NewPromptText / NewInterruptResume enforces this.
type Input struct {
	Prompt             []models.ContentBlock
	InterruptResponses []models.InterruptResponse
}

// NewPrompt builds a fresh-prompt Input from content blocks.
func NewPrompt(blocks ...models.ContentBlock) Input { return Input{Prompt: blocks} }

// NewPromptText builds a fresh-prompt Input from plain text.
func NewPromptText(text string) Input {
	return Input{Prompt: []models.ContentBlock{models.NewTextBlock(text)}}
}

// NewInterruptResume builds an Input that resumes interrupts raised during
// the previous turn rather than starting a new one.
func NewInterruptResume(responses []models.InterruptResponse) Input {
	return Input{InterruptResponses: responses}
}

func (in Input) isResume() bool { return len(in.InterruptResponses) > 0 }

// AgentStreamEventType discriminates the variant carried by an
// AgentStreamEvent.
type AgentStreamEventType string

const (
	AgentStreamModelEvent   AgentStreamEventType = "model_event"
	AgentStreamBlock        AgentStreamEventType = "content_block"
	AgentStreamToolProgress AgentStreamEventType = "tool_progress"
	AgentStreamDone         AgentStreamEventType = "done"
)

// AgentStreamEvent is one item of the lazy sequence Agent.Stream produces.
// Exactly one payload field is populated per Type. A terminal
// AgentStreamDone event carries the Result; any event may instead carry
// Err, in which case the stream ends without a Result.
type AgentStreamEvent struct {
	Type         AgentStreamEventType
	ModelEvent   *models.ModelStreamEvent
	Block        *models.ContentBlock
	ToolProgress *tooling.StreamEvent
	Result       *Result
	Err          error
}

// Agent is the suspendable state machine that drives a single model/tool
// conversation to completion. Messages, AgentState, and InterruptState all
// live for the Agent's lifetime, not just one invocation.
type Agent struct {
	id    string
	model model.Model
	tools *tooling.Registry
	hooks *hooks.Registry
	cfg   Config

	structured *tooling.StructuredOutputTool

	invokeLock sync.Mutex

	mu         sync.Mutex // guards messages and interrupts below
	messages   []models.Message
	state      *agentstate.State
	interrupts *interrupt.State
}

// New builds an Agent. tools and hookRegistry may be nil: a nil tools
// registry rejects every tool call as not-found, and a nil hookRegistry
// behaves as if no hooks were ever registered.
func New(id string, m model.Model, tools *tooling.Registry, hookRegistry *hooks.Registry, cfg Config) *Agent {
	if tools == nil {
		tools, _ = tooling.NewRegistry()
	}
	if hookRegistry == nil {
		hookRegistry = hooks.NewRegistry(nil)
	}
	return &Agent{
		id:         id,
		model:      m,
		tools:      tools,
		hooks:      hookRegistry,
		cfg:        cfg,
		state:      agentstate.New(),
		interrupts: interrupt.New(),
	}
}

// UseStructuredOutput registers t as this agent's structured-output tool.
// The caller is responsible for steering tool-choice (e.g. via
// model.ForceTool(t.Name())) if the schema should be mandatory.
func (a *Agent) UseStructuredOutput(t *tooling.StructuredOutputTool) error {
	if err := a.tools.Register(t); err != nil {
		return err
	}
	a.structured = t
	return nil
}

// State returns the agent-scoped key/value store tools and hooks share
// across invocations.
func (a *Agent) State() *agentstate.State { return a.state }

// Messages returns a snapshot of the working conversation.
func (a *Agent) Messages() []models.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]models.Message(nil), a.messages...)
}

// SetMessages replaces the working conversation, e.g. after a session
// restore. Callers should run RepairTranscript first if the history may
// have been persisted mid-turn.
func (a *Agent) SetMessages(history []models.Message) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.messages = append([]models.Message(nil), history...)
}

// Invoke drives one full turn to completion and returns only its terminal
// Result, discarding intermediate stream events.
func (a *Agent) Invoke(ctx context.Context, in Input) (*Result, error) {
	events, err := a.Stream(ctx, in)
	if err != nil {
		return nil, err
	}
	var result *Result
	for ev := range events {
		if ev.Err != nil {
			return nil, ev.Err
		}
		if ev.Type == AgentStreamDone {
			result = ev.Result
		}
	}
	if result == nil {
		return nil, fmt.Errorf("loop: agent stream closed without a terminal result")
	}
	return result, nil
}

// Stream drives one full turn, yielding every ModelStreamEvent, reassembled
// ContentBlock, and tool-progress event as it happens, followed by one
// terminal AgentStreamDone event. Exactly one invocation may be in flight
// per Agent; a concurrent call fails fast with ConcurrentInvocationError
// before any work begins.
func (a *Agent) Stream(ctx context.Context, in Input) (<-chan AgentStreamEvent, error) {
	if !a.invokeLock.TryLock() {
		return nil, &ConcurrentInvocationError{AgentID: a.id}
	}

	out := make(chan AgentStreamEvent, 16)
	go func() {
		defer close(out)
		defer a.invokeLock.Unlock()

		result, err := a.run(ctx, in, out)
		if err != nil {
			out <- AgentStreamEvent{Err: err}
			return
		}
		out <- AgentStreamEvent{Type: AgentStreamDone, Result: result}
	}()
	return out, nil
}

func (a *Agent) run(ctx context.Context, in Input, out chan<- AgentStreamEvent) (*Result, error) {
	if a.model == nil {
		return nil, ErrNoModel
	}

	var promptMsg *models.Message
	if in.isResume() {
		a.mu.Lock()
		activated := a.interrupts.Activated()
		a.mu.Unlock()
		if !activated {
			return nil, &InvalidInterruptResumeError{Message: "loop: no activated interrupt state to resume"}
		}
		a.mu.Lock()
		err := a.interrupts.Resume(in.InterruptResponses)
		a.mu.Unlock()
		if err != nil {
			return nil, translateInterruptError(err)
		}
	} else {
		msg := models.NewUserMessage(in.Prompt...)
		a.appendMessage(msg)
		promptMsg = &msg
		a.mu.Lock()
		a.interrupts = interrupt.New()
		a.mu.Unlock()
	}

	if _, err := a.hooks.InvokeCallbacks(ctx, hooks.BeforeInvocationEvent{AgentID: a.id}); err != nil {
		return nil, err
	}
	if promptMsg != nil {
		if err := a.emitMessageAdded(ctx, *promptMsg); err != nil {
			return nil, err
		}
	}

	var result *Result
	var runErr error
	for {
		r, cont, err := a.turn(ctx, out)
		if err != nil {
			runErr = err
			break
		}
		if cont {
			continue
		}
		result = r
		break
	}

	if _, afterErr := a.hooks.InvokeCallbacks(ctx, hooks.AfterInvocationEvent{AgentID: a.id, Err: runErr}); afterErr != nil && runErr == nil {
		runErr = afterErr
	}

	if runErr != nil {
		return nil, runErr
	}
	return result, nil
}

// turn drives exactly one model call through to either a terminal Result or
// a signal to continue the outer loop (cont=true) after appending a round
// of tool results.
func (a *Agent) turn(ctx context.Context, out chan<- AgentStreamEvent) (result *Result, cont bool, err error) {
	msg, stopReason, err := a.callModel(ctx, out)
	if err != nil {
		return nil, false, err
	}

	a.appendMessage(msg)
	if err := a.emitMessageAdded(ctx, msg); err != nil {
		return nil, false, err
	}
	for i := range msg.Content {
		block := msg.Content[i]
		out <- AgentStreamEvent{Type: AgentStreamBlock, Block: &block}
	}

	effectiveStop := normalizeStopReason(stopReason, msg)
	if effectiveStop != models.StopToolUse {
		return &Result{
			StopReason:       effectiveStop,
			LastMessage:      msg,
			StructuredOutput: a.structuredOutputValue(),
		}, false, nil
	}

	results, newInterrupts, err := a.dispatchTools(ctx, msg, out)
	if err != nil {
		return nil, false, err
	}

	resultMsg := models.NewUserMessage(results...)
	a.appendMessage(resultMsg)
	if err := a.emitMessageAdded(ctx, resultMsg); err != nil {
		return nil, false, err
	}

	if len(newInterrupts) > 0 {
		a.mu.Lock()
		a.interrupts.Activate()
		a.mu.Unlock()
		return &Result{
			StopReason:  models.StopInterrupt,
			LastMessage: resultMsg,
			Interrupts:  newInterrupts,
		}, false, nil
	}

	return nil, true, nil
}

// callModel calls the model once, reassembling its stream into a message.
// When a hook sets Retry on the resulting AfterModelCallEvent (e.g. the
// summarizing conversation manager pruning history on context overflow),
// it loops and calls the model again against the now-mutated history
// rather than returning to the outer turn loop.
func (a *Agent) callModel(ctx context.Context, out chan<- AgentStreamEvent) (models.Message, models.StopReason, error) {
	for {
		a.mu.Lock()
		working := append([]models.Message(nil), a.messages...)
		a.mu.Unlock()

		if _, err := a.hooks.InvokeCallbacks(ctx, hooks.BeforeModelCallEvent{AgentID: a.id, Messages: working}); err != nil {
			return models.Message{}, "", err
		}

		opts := model.StreamOptions{
			SystemPrompt: a.cfg.SystemPrompt,
			ToolSpecs:    a.tools.Specs(),
			ToolChoice:   a.cfg.ToolChoice,
			MaxTokens:    a.cfg.MaxTokens,
		}
		events, err := a.model.Stream(ctx, working, opts)
		if err != nil {
			return models.Message{}, "", err
		}

		reasm := newReassembler()
		for ev := range events {
			ev := ev
			out <- AgentStreamEvent{Type: AgentStreamModelEvent, ModelEvent: &ev}
			if _, herr := a.hooks.InvokeCallbacks(ctx, hooks.ModelStreamEventHook{AgentID: a.id, Event: ev}); herr != nil {
				return models.Message{}, "", herr
			}
			reasm.Feed(ev)
		}

		msg := reasm.Message()
		stopReason, _ := reasm.StopReason()
		modelErr := reasm.Err()

		a.mu.Lock()
		afterEvent := &hooks.AfterModelCallEvent{
			AgentID:    a.id,
			Messages:   &a.messages,
			Message:    &msg,
			StopReason: stopReason,
			Err:        modelErr,
		}
		_, hookErr := a.hooks.InvokeCallbacks(ctx, afterEvent)
		retry := afterEvent.Retry
		finalErr := afterEvent.Err
		a.mu.Unlock()

		if hookErr != nil {
			return models.Message{}, "", hookErr
		}
		if retry {
			continue
		}
		if finalErr != nil {
			return models.Message{}, "", finalErr
		}
		if stopReason == models.StopMaxTokens {
			return models.Message{}, "", &MaxTokensError{
				Message: "model stopped due to max token budget",
				Partial: &msg,
			}
		}
		return msg, stopReason, nil
	}
}

// dispatchTools executes every toolUse block in msg strictly in array
// order. Raising an interrupt during a BeforeToolCallEvent does not itself
// cancel that call (only an explicit CancelTool does); it stops the batch
// after the current call finishes, and every tool use after it is finalized
// with a synthetic "Tool was interrupted." error result.
func (a *Agent) dispatchTools(ctx context.Context, msg models.Message, out chan<- AgentStreamEvent) ([]models.ContentBlock, []*models.Interrupt, error) {
	toolUses := msg.ToolUseBlocks()

	if _, err := a.hooks.InvokeCallbacks(ctx, hooks.BeforeToolsEvent{AgentID: a.id, Message: msg}); err != nil {
		return nil, nil, err
	}

	results := make([]models.ContentBlock, 0, len(toolUses))
	var newInterrupts []*models.Interrupt
	processed := 0

	for _, tu := range toolUses {
		toolUseID := tu.ToolUse.ToolUseID

		before := &hooks.BeforeToolCallEvent{
			AgentID:      a.id,
			ToolUse:      tu,
			ResolvedTool: tu.ToolUse.Name,
		}
		before.Interrupt = func(name, reason string) error {
			id := newID()
			a.mu.Lock()
			addErr := a.interrupts.Add(id, name, reason)
			ix, _ := a.interrupts.Get(id)
			a.mu.Unlock()
			if addErr != nil {
				return addErr
			}
			newInterrupts = append(newInterrupts, ix)
			return &hooks.InterruptException{Name: name, Reason: reason}
		}

		if _, err := a.hooks.InvokeCallbacks(ctx, before); err != nil {
			return nil, nil, err
		}

		var result models.ContentBlock
		var toolErr error
		if before.CancelTool != "" {
			result = models.NewErrorToolResult(toolUseID, before.CancelTool)
		} else {
			result, toolErr = a.runTool(ctx, before.ToolUse, out)
		}
		if err := a.emitAfterToolCall(ctx, before.ToolUse, result, toolErr); err != nil {
			return nil, nil, err
		}
		results = append(results, result)
		processed++

		if len(newInterrupts) > 0 {
			break
		}
	}

	for _, tu := range toolUses[processed:] {
		results = append(results, models.NewErrorToolResult(tu.ToolUse.ToolUseID, "Tool was interrupted."))
	}

	if _, err := a.hooks.InvokeCallbacks(ctx, hooks.AfterToolsEvent{AgentID: a.id, Message: models.NewUserMessage(results...)}); err != nil {
		return nil, nil, err
	}

	return results, newInterrupts, nil
}

// runTool resolves and drives a single tool call, converting a missing
// tool or a panic inside Stream into an error toolResultBlock rather than
// aborting the batch.
func (a *Agent) runTool(ctx context.Context, toolUse models.ContentBlock, out chan<- AgentStreamEvent) (models.ContentBlock, error) {
	toolUseID := toolUse.ToolUse.ToolUseID
	toolName := toolUse.ToolUse.Name

	t, ok := a.tools.Get(toolName)
	if !ok {
		return models.NewErrorToolResult(toolUseID, "tool not found"), fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}

	tc := tooling.Context{AgentID: a.id, ToolUse: toolUse, State: a.state}

	var result models.ContentBlock
	var toolErr error
	func() {
		defer func() {
			if p := recover(); p != nil {
				te := NewToolError(toolName, toolUseID, fmt.Errorf("panic: %v", p))
				te.Kind = ToolErrPanic
				toolErr = te
				result = models.NewErrorToolResult(toolUseID, te.Error())
			}
		}()
		for ev := range t.Stream(ctx, tc, toolUse.ToolUse.Input) {
			ev := ev
			if ev.Type == tooling.ToolStreamResult && ev.Result != nil {
				result = *ev.Result
			} else {
				out <- AgentStreamEvent{Type: AgentStreamToolProgress, ToolProgress: &ev}
			}
		}
	}()

	if result.Type == "" {
		result = models.NewErrorToolResult(toolUseID, "tool produced no result")
	}
	return result, toolErr
}

func (a *Agent) emitAfterToolCall(ctx context.Context, toolUse, result models.ContentBlock, toolErr error) error {
	_, err := a.hooks.InvokeCallbacks(ctx, hooks.AfterToolCallEvent{
		AgentID:    a.id,
		ToolUse:    toolUse,
		ToolResult: result,
		Err:        toolErr,
	})
	return err
}

func (a *Agent) appendMessage(msg models.Message) {
	a.mu.Lock()
	a.messages = append(a.messages, msg)
	a.mu.Unlock()
}

func (a *Agent) emitMessageAdded(ctx context.Context, msg models.Message) error {
	_, err := a.hooks.InvokeCallbacks(ctx, hooks.MessageAddedEvent{AgentID: a.id, Message: msg})
	return err
}

func (a *Agent) structuredOutputValue() any {
	if a.structured == nil {
		return nil
	}
	v, ok := a.structured.Value()
	if !ok {
		return nil
	}
	return v
}

// normalizeStopReason treats a toolUse stop reason with zero toolUse
// blocks as a plain end of turn, since there is nothing to dispatch.
func normalizeStopReason(stop models.StopReason, msg models.Message) models.StopReason {
	if stop == models.StopToolUse && len(msg.ToolUseBlocks()) == 0 {
		return models.StopEndTurn
	}
	return stop
}

func translateInterruptError(err error) error {
	switch e := err.(type) {
	case *interrupt.TypeError:
		return &InvalidInterruptResumeError{Message: e.Message}
	case *interrupt.UnknownInterruptIDError:
		return &UnknownInterruptIDError{ID: e.ID}
	case *interrupt.DuplicateInterruptNameError:
		return &DuplicateInterruptNameError{Name: e.Name}
	default:
		return err
	}
}

func newID() string { return uuid.New().String() }
