// Package model defines the provider-agnostic contract the agent loop
// drives to stream a single turn from a language model.
package model

import (
	"context"

	"github.com/agentcore/runtime/internal/tooling"
	"github.com/agentcore/runtime/pkg/models"
)

// ToolChoice constrains which tool, if any, the model must call next.
type ToolChoice struct {
	// Mode is one of "auto", "any", "none", or "tool".
	Mode string
	// ToolName is set only when Mode is "tool".
	ToolName string
}

var (
	ToolChoiceAuto = ToolChoice{Mode: "auto"}
	ToolChoiceAny  = ToolChoice{Mode: "any"}
	ToolChoiceNone = ToolChoice{Mode: "none"}
)

// ForceTool constrains the model to call exactly the named tool next.
func ForceTool(name string) ToolChoice {
	return ToolChoice{Mode: "tool", ToolName: name}
}

// StreamOptions configures one streaming turn.
type StreamOptions struct {
	SystemPrompt string
	ToolSpecs    []tooling.Spec
	ToolChoice   ToolChoice
	MaxTokens    int
}

// Model streams a single assistant turn from a provider given the working
// conversation. The returned channel is closed once a modelMessageStopEvent
// has been yielded or the call fails; callers should drain it to
// completion or cancel ctx.
type Model interface {
	Stream(ctx context.Context, messages []models.Message, opts StreamOptions) (<-chan models.ModelStreamEvent, error)
}
