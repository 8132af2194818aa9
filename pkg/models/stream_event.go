package models

// ModelStreamEventType discriminates the variant carried by a ModelStreamEvent.
type ModelStreamEventType string

const (
	ModelMessageStart      ModelStreamEventType = "message_start"
	ModelContentBlockStart ModelStreamEventType = "content_block_start"
	ModelContentBlockDelta ModelStreamEventType = "content_block_delta"
	ModelContentBlockStop  ModelStreamEventType = "content_block_stop"
	ModelMessageStop       ModelStreamEventType = "message_stop"
	ModelMetadata          ModelStreamEventType = "metadata"
)

// ModelStreamEvent is the tagged union of events a Model adapter yields while
// streaming a single turn. Exactly one field matching Type is non-nil.
type ModelStreamEvent struct {
	Type ModelStreamEventType `json:"type"`

	MessageStart      *ModelMessageStartEvent      `json:"message_start,omitempty"`
	ContentBlockStart *ModelContentBlockStartEvent `json:"content_block_start,omitempty"`
	ContentBlockDelta *ModelContentBlockDeltaEvent `json:"content_block_delta,omitempty"`
	ContentBlockStop  *ModelContentBlockStopEvent  `json:"content_block_stop,omitempty"`
	MessageStop       *ModelMessageStopEvent       `json:"message_stop,omitempty"`
	Metadata          *ModelMetadataEvent          `json:"metadata,omitempty"`
}

// ModelMessageStartEvent opens a new assistant message.
type ModelMessageStartEvent struct {
	Role Role `json:"role"`
}

// ToolUseStart carries the identity of a toolUse block being opened.
type ToolUseStart struct {
	Name      string `json:"name"`
	ToolUseID string `json:"tool_use_id"`
}

// ModelContentBlockStartEvent opens a new content block at ContentBlockIndex.
// Start is non-nil only when the block is a toolUse block; text/reasoning
// blocks are identified by the first delta they receive.
type ModelContentBlockStartEvent struct {
	ContentBlockIndex int           `json:"content_block_index"`
	ToolUseStart      *ToolUseStart `json:"tool_use_start,omitempty"`
}

// ModelContentBlockDeltaEvent appends to the block at ContentBlockIndex.
// Exactly one of the three delta fields is non-nil.
type ModelContentBlockDeltaEvent struct {
	ContentBlockIndex int     `json:"content_block_index"`
	TextDelta         *string `json:"text_delta,omitempty"`
	ToolUseInputDelta *string `json:"tool_use_input_delta,omitempty"`
	ReasoningDelta    *string `json:"reasoning_delta,omitempty"`
}

// ModelContentBlockStopEvent closes the block at ContentBlockIndex.
type ModelContentBlockStopEvent struct {
	ContentBlockIndex int `json:"content_block_index"`
}

// ModelMessageStopEvent terminates the turn with the canonical StopReason.
type ModelMessageStopEvent struct {
	StopReason StopReason `json:"stop_reason"`
}

// Usage reports token accounting for a completed turn.
type Usage struct {
	InputTokens  int `json:"input_tokens"`
	OutputTokens int `json:"output_tokens"`
}

// ModelMetadataEvent carries out-of-band usage/metrics information. Err is
// set when the underlying provider stream failed after yielding at least
// one event; a model adapter emits this as its last event instead of
// closing the channel silently.
type ModelMetadataEvent struct {
	Usage   *Usage         `json:"usage,omitempty"`
	Metrics map[string]any `json:"metrics,omitempty"`
	Err     error          `json:"-"`
}
