package loop

import (
	"encoding/json"
	"sort"

	"github.com/agentcore/runtime/pkg/models"
)

// pendingBlock accumulates one content block across possibly-interleaved
// delta events until its content_block_stop event arrives.
type pendingBlock struct {
	blockType models.ContentBlockType
	closed    bool

	text        []byte
	reasoning   []byte
	toolName    string
	toolUseID   string
	toolInput   []byte
}

// reassembler consumes a ModelStreamEvent stream and accumulates complete
// ContentBlocks plus the terminal StopReason, regardless of how deltas for
// different block indices interleave on the wire. Blocks are emitted in
// ascending contentBlockIndex order once finalized.
type reassembler struct {
	role    models.Role
	blocks  map[int]*pendingBlock
	order   []int
	usage   *models.Usage
	stop    models.StopReason
	gotStop bool
	err     error
}

func newReassembler() *reassembler {
	return &reassembler{blocks: make(map[int]*pendingBlock)}
}

// Feed applies one event to the accumulator.
func (r *reassembler) Feed(ev models.ModelStreamEvent) {
	switch ev.Type {
	case models.ModelMessageStart:
		if ev.MessageStart != nil {
			r.role = ev.MessageStart.Role
		}

	case models.ModelContentBlockStart:
		s := ev.ContentBlockStart
		pb := r.blockAt(s.ContentBlockIndex)
		if s.ToolUseStart != nil {
			pb.blockType = models.ContentToolUse
			pb.toolName = s.ToolUseStart.Name
			pb.toolUseID = s.ToolUseStart.ToolUseID
		}

	case models.ModelContentBlockDelta:
		d := ev.ContentBlockDelta
		pb := r.blockAt(d.ContentBlockIndex)
		switch {
		case d.TextDelta != nil:
			pb.blockType = models.ContentText
			pb.text = append(pb.text, *d.TextDelta...)
		case d.ReasoningDelta != nil:
			pb.blockType = models.ContentReasoning
			pb.reasoning = append(pb.reasoning, *d.ReasoningDelta...)
		case d.ToolUseInputDelta != nil:
			pb.toolInput = append(pb.toolInput, *d.ToolUseInputDelta...)
		}

	case models.ModelContentBlockStop:
		pb := r.blockAt(ev.ContentBlockStop.ContentBlockIndex)
		pb.closed = true

	case models.ModelMessageStop:
		if ev.MessageStop != nil {
			r.stop = ev.MessageStop.StopReason
			r.gotStop = true
		}

	case models.ModelMetadata:
		if ev.Metadata != nil {
			if ev.Metadata.Usage != nil {
				r.usage = ev.Metadata.Usage
			}
			if ev.Metadata.Err != nil {
				r.err = ev.Metadata.Err
			}
		}
	}
}

func (r *reassembler) blockAt(index int) *pendingBlock {
	pb, ok := r.blocks[index]
	if !ok {
		pb = &pendingBlock{}
		r.blocks[index] = pb
		r.order = append(r.order, index)
	}
	return pb
}

// Err returns the terminal stream error, if the provider reported one.
func (r *reassembler) Err() error { return r.err }

// StopReason returns the terminal stop reason once the stream has yielded a
// modelMessageStopEvent; callers should only read this after the event
// channel has been fully drained.
func (r *reassembler) StopReason() (models.StopReason, bool) { return r.stop, r.gotStop }

// Message assembles every finalized block, in ascending contentBlockIndex
// order, into a single assistant message. Blocks never closed (a stream
// that ended early) are dropped rather than emitted half-formed.
func (r *reassembler) Message() models.Message {
	indices := append([]int(nil), r.order...)
	sort.Ints(indices)

	role := r.role
	if role == "" {
		role = models.RoleAssistant
	}

	var content []models.ContentBlock
	for _, idx := range indices {
		pb := r.blocks[idx]
		if !pb.closed {
			continue
		}
		if block, ok := finalizeBlock(pb); ok {
			content = append(content, block)
		}
	}
	return models.Message{Role: role, Content: content}
}

func finalizeBlock(pb *pendingBlock) (models.ContentBlock, bool) {
	switch pb.blockType {
	case models.ContentToolUse:
		return models.NewToolUseBlock(pb.toolName, pb.toolUseID, json.RawMessage(pb.toolInput)), true
	case models.ContentReasoning:
		return models.NewReasoningBlock(string(pb.reasoning), nil), true
	case models.ContentText:
		return models.NewTextBlock(string(pb.text)), true
	default:
		return models.ContentBlock{}, false
	}
}
