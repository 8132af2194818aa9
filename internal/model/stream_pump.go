package model

import (
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/agentcore/runtime/pkg/models"
)

// maxEmptyStreamEvents bounds how many consecutive events may carry no
// translatable payload before the stream is treated as malformed and
// aborted, protecting against a runaway provider-side event flood.
const maxEmptyStreamEvents = 300

// pumpState carries the cursor state that must survive across events within
// a single stream, since content_block_delta events for a tool_use block
// arrive as a running accumulation of partial JSON.
type pumpState struct {
	emptyStreak    int
	toolBlockIndex int
	toolInput      []byte
}

// pump drains an Anthropic SSE stream, translating each event into zero or
// more ModelStreamEvent values on out, and closes out when the stream ends
// (on message_stop, a stream error, or malformed-stream detection).
//
// primed indicates the first event was already fetched and classified by
// connectWithRetry's connectivity check (stream.Current() holds it); pump
// processes it before resuming the normal stream.Next() loop so a retried
// connection attempt never drops the message_start event.
func (m *AnthropicModel) pump(stream *ssestream.Stream[anthropic.MessageStreamEventUnion], out chan<- models.ModelStreamEvent, primed bool) {
	defer close(out)

	state := &pumpState{toolBlockIndex: -1}

	if primed {
		if done := processStreamEvent(stream.Current(), out, state); done {
			return
		}
	}

	for stream.Next() {
		if done := processStreamEvent(stream.Current(), out, state); done {
			return
		}
	}

	if err := stream.Err(); err != nil {
		out <- models.ModelStreamEvent{
			Type:     models.ModelMetadata,
			Metadata: &models.ModelMetadataEvent{Err: NewError("anthropic", err)},
		}
	}
}

// processStreamEvent translates a single Anthropic SSE event into zero or
// more ModelStreamEvent values on out, and reports whether the stream has
// reached a terminal event (message_stop, or message_delta carrying a stop
// reason, or malformed-stream detection).
func processStreamEvent(event anthropic.MessageStreamEventUnion, out chan<- models.ModelStreamEvent, state *pumpState) bool {
	produced := false

	switch event.Type {
	case "message_start":
		out <- models.ModelStreamEvent{
			Type:         models.ModelMessageStart,
			MessageStart: &models.ModelMessageStartEvent{Role: models.RoleAssistant},
		}
		produced = true

	case "content_block_start":
		start := event.AsContentBlockStart()
		idx := int(start.Index)
		block := start.ContentBlock
		ev := models.ModelContentBlockStartEvent{ContentBlockIndex: idx}
		if block.Type == "tool_use" {
			toolUse := block.AsToolUse()
			ev.ToolUseStart = &models.ToolUseStart{Name: toolUse.Name, ToolUseID: toolUse.ID}
			state.toolBlockIndex = idx
			state.toolInput = state.toolInput[:0]
		}
		out <- models.ModelStreamEvent{Type: models.ModelContentBlockStart, ContentBlockStart: &ev}
		produced = true

	case "content_block_delta":
		delta := event.AsContentBlockDelta()
		idx := int(delta.Index)
		switch delta.Delta.Type {
		case "text_delta":
			text := delta.Delta.Text
			out <- models.ModelStreamEvent{
				Type:              models.ModelContentBlockDelta,
				ContentBlockDelta: &models.ModelContentBlockDeltaEvent{ContentBlockIndex: idx, TextDelta: &text},
			}
			produced = true
		case "thinking_delta":
			text := delta.Delta.Thinking
			out <- models.ModelStreamEvent{
				Type:              models.ModelContentBlockDelta,
				ContentBlockDelta: &models.ModelContentBlockDeltaEvent{ContentBlockIndex: idx, ReasoningDelta: &text},
			}
			produced = true
		case "input_json_delta":
			if delta.Delta.PartialJSON != "" {
				state.toolInput = append(state.toolInput, delta.Delta.PartialJSON...)
				partial := delta.Delta.PartialJSON
				out <- models.ModelStreamEvent{
					Type:              models.ModelContentBlockDelta,
					ContentBlockDelta: &models.ModelContentBlockDeltaEvent{ContentBlockIndex: idx, ToolUseInputDelta: &partial},
				}
				produced = true
			}
		}

	case "content_block_stop":
		stop := event.AsContentBlockStop()
		idx := int(stop.Index)
		out <- models.ModelStreamEvent{
			Type:             models.ModelContentBlockStop,
			ContentBlockStop: &models.ModelContentBlockStopEvent{ContentBlockIndex: idx},
		}
		if idx == state.toolBlockIndex {
			state.toolBlockIndex = -1
		}
		produced = true

	case "message_delta":
		delta := event.AsMessageDelta()
		if delta.Usage.OutputTokens > 0 {
			out <- models.ModelStreamEvent{
				Type: models.ModelMetadata,
				Metadata: &models.ModelMetadataEvent{
					Usage: &models.Usage{OutputTokens: int(delta.Usage.OutputTokens)},
				},
			}
		}
		if string(delta.Delta.StopReason) != "" {
			out <- models.ModelStreamEvent{
				Type:        models.ModelMessageStop,
				MessageStop: &models.ModelMessageStopEvent{StopReason: stopReasonFromAnthropic(string(delta.Delta.StopReason))},
			}
			return true
		}
		produced = true

	case "message_stop":
		return true
	}

	if produced {
		state.emptyStreak = 0
		return false
	}

	state.emptyStreak++
	if state.emptyStreak >= maxEmptyStreamEvents {
		out <- models.ModelStreamEvent{
			Type:     models.ModelMetadata,
			Metadata: &models.ModelMetadataEvent{Err: NewError("anthropic", errMalformedStream)},
		}
		return true
	}
	return false
}

var errMalformedStream = fmt.Errorf("model: stream appears malformed: %d consecutive empty events", maxEmptyStreamEvents)
