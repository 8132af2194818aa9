// Package loop implements the agent event loop: the suspendable state
// machine that streams a model turn, dispatches its tool calls in order,
// and feeds results back until the turn reaches a terminal stop reason.
package loop

import (
	"errors"
	"fmt"
	"strings"

	"github.com/agentcore/runtime/pkg/models"
)

// Phase names a point in one loop iteration, attached to LoopError for
// diagnostics.
type Phase string

const (
	PhaseInit         Phase = "init"
	PhaseModelCall    Phase = "model_call"
	PhaseExecuteTools Phase = "execute_tools"
	PhaseContinue     Phase = "continue"
	PhaseComplete     Phase = "complete"
)

var (
	// ErrConcurrentInvocation is returned when Invoke is called on an Agent
	// that already has an invocation in flight; exactly one invocation per
	// Agent may run at a time.
	ErrConcurrentInvocation = errors.New("loop: agent already has an invocation in progress")

	// ErrNoModel indicates the Agent was constructed without a Model.
	ErrNoModel = errors.New("loop: no model configured")

	// ErrToolNotFound indicates a toolUse block named a tool absent from
	// the agent's registry.
	ErrToolNotFound = errors.New("loop: tool not found")
)

// ConcurrentInvocationError reports which agent rejected a concurrent call.
type ConcurrentInvocationError struct {
	AgentID string
}

func (e *ConcurrentInvocationError) Error() string {
	return fmt.Sprintf("loop: agent %q already has an invocation in progress", e.AgentID)
}

func (e *ConcurrentInvocationError) Unwrap() error { return ErrConcurrentInvocation }

// InvalidInterruptResumeError wraps a malformed resume payload.
type InvalidInterruptResumeError struct {
	Message string
}

func (e *InvalidInterruptResumeError) Error() string { return e.Message }

// UnknownInterruptIDError is returned when a resume payload names an
// interrupt ID the suspended invocation does not recognize.
type UnknownInterruptIDError struct {
	ID string
}

func (e *UnknownInterruptIDError) Error() string {
	return fmt.Sprintf("loop: unknown interrupt id %q", e.ID)
}

// DuplicateInterruptNameError is returned when two interrupts raised within
// the same invocation share a name, making them impossible to disambiguate
// on resume.
type DuplicateInterruptNameError struct {
	Name string
}

func (e *DuplicateInterruptNameError) Error() string {
	return fmt.Sprintf("loop: duplicate interrupt name %q", e.Name)
}

// ToolErrorKind categorizes a tool execution failure for retry logic.
type ToolErrorKind string

const (
	ToolErrNotFound      ToolErrorKind = "not_found"
	ToolErrInvalidInput  ToolErrorKind = "invalid_input"
	ToolErrTimeout       ToolErrorKind = "timeout"
	ToolErrNetwork       ToolErrorKind = "network"
	ToolErrPermission    ToolErrorKind = "permission"
	ToolErrRateLimit     ToolErrorKind = "rate_limit"
	ToolErrExecution     ToolErrorKind = "execution"
	ToolErrPanic         ToolErrorKind = "panic"
	ToolErrUnknown       ToolErrorKind = "unknown"
)

// IsRetryable reports whether this kind of tool failure may succeed if
// retried unchanged.
func (k ToolErrorKind) IsRetryable() bool {
	switch k {
	case ToolErrTimeout, ToolErrNetwork, ToolErrRateLimit:
		return true
	default:
		return false
	}
}

// ToolError wraps a tool execution failure with its classified kind and the
// identity of the call that produced it. Tool errors are never surfaced to
// the caller of Invoke directly — the loop converts them into an error
// ToolResultBlock so the model can see and react to the failure.
type ToolError struct {
	Kind       ToolErrorKind
	ToolName   string
	ToolUseID  string
	Message    string
	Cause      error
}

func (e *ToolError) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[tool:%s]", e.Kind))
	if e.ToolName != "" {
		parts = append(parts, e.ToolName)
	}
	if e.Message != "" {
		parts = append(parts, e.Message)
	} else if e.Cause != nil {
		parts = append(parts, e.Cause.Error())
	}
	return strings.Join(parts, " ")
}

func (e *ToolError) Unwrap() error { return e.Cause }

// NewToolError classifies cause by pattern-matching its message, the same
// idiom used by the model package's provider error classification.
func NewToolError(toolName, toolUseID string, cause error) *ToolError {
	e := &ToolError{ToolName: toolName, ToolUseID: toolUseID, Cause: cause, Kind: ToolErrUnknown}
	if cause != nil {
		e.Message = cause.Error()
		e.Kind = classifyToolError(cause)
	}
	return e
}

func classifyToolError(err error) ToolErrorKind {
	if errors.Is(err, ErrToolNotFound) {
		return ToolErrNotFound
	}
	s := strings.ToLower(err.Error())
	switch {
	case strings.Contains(s, "timeout"), strings.Contains(s, "deadline exceeded"):
		return ToolErrTimeout
	case strings.Contains(s, "connection"), strings.Contains(s, "network"), strings.Contains(s, "dns"), strings.Contains(s, "refused"), strings.Contains(s, "unreachable"):
		return ToolErrNetwork
	case strings.Contains(s, "rate limit"), strings.Contains(s, "429"):
		return ToolErrRateLimit
	case strings.Contains(s, "permission"), strings.Contains(s, "forbidden"), strings.Contains(s, "unauthorized"):
		return ToolErrPermission
	case strings.Contains(s, "invalid"), strings.Contains(s, "validation"), strings.Contains(s, "required"), strings.Contains(s, "missing"):
		return ToolErrInvalidInput
	default:
		return ToolErrExecution
	}
}

// LoopError attaches phase/iteration context to a failure raised by the
// loop itself, as opposed to a tool or model error.
type LoopError struct {
	Phase     Phase
	Iteration int
	Message   string
	Cause     error
}

func (e *LoopError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("loop: %s (iteration %d): %s", e.Phase, e.Iteration, e.Message)
	}
	if e.Cause != nil {
		return fmt.Sprintf("loop: %s (iteration %d): %v", e.Phase, e.Iteration, e.Cause)
	}
	return fmt.Sprintf("loop: %s (iteration %d)", e.Phase, e.Iteration)
}

func (e *LoopError) Unwrap() error { return e.Cause }

// MaxTokensError is surfaced when the model stopped due to its output
// token budget; Partial carries whatever assistant message had been
// assembled before the budget was hit, since that content is otherwise
// lost once the call is treated as a failure rather than a normal turn.
type MaxTokensError struct {
	Message string
	Partial *models.Message
}

func (e *MaxTokensError) Error() string { return e.Message }
