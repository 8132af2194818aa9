package convo

import (
	"strings"

	"github.com/agentcore/runtime/internal/compaction"
	"github.com/agentcore/runtime/pkg/models"
)

// toCompactionMessage flattens a wire Message's content blocks into the flat
// text/toolCalls/toolResults shape internal/compaction's estimator expects.
func toCompactionMessage(msg models.Message) *compaction.Message {
	var text, toolCalls, toolResults strings.Builder
	for _, b := range msg.Content {
		switch b.Type {
		case models.ContentText:
			if b.Text != nil {
				text.WriteString(b.Text.Text)
			}
		case models.ContentToolUse:
			if b.ToolUse != nil {
				toolCalls.Write(b.ToolUse.Input)
			}
		case models.ContentToolResult:
			if b.ToolResult != nil {
				for _, rb := range b.ToolResult.Content {
					if rb.Type == models.ContentText && rb.Text != nil {
						toolResults.WriteString(rb.Text.Text)
					}
				}
			}
		}
	}
	return &compaction.Message{
		Role:        string(msg.Role),
		Content:     text.String(),
		ToolCalls:   toolCalls.String(),
		ToolResults: toolResults.String(),
	}
}

// fromCompactionMessage reconstructs a synthetic Message from the flattened
// shape produced by toCompactionMessage, for handing a chunk back to a
// SummarizeFunc after internal/compaction has grouped or pruned it. Tool
// call/result structure is not recovered byte-for-byte; it is folded into
// the text body, which is sufficient for producing a prose summary.
func fromCompactionMessage(msg *compaction.Message) models.Message {
	role := models.RoleUser
	if msg.Role == string(models.RoleAssistant) {
		role = models.RoleAssistant
	}
	text := msg.Content
	if msg.ToolCalls != "" {
		text += "\n[tool call]: " + msg.ToolCalls
	}
	if msg.ToolResults != "" {
		text += "\n[tool result]: " + msg.ToolResults
	}
	return models.Message{Role: role, Content: []models.ContentBlock{models.NewTextBlock(text)}}
}

// estimateHistoryTokens sums a rough per-message token estimate across
// history using compaction.EstimateTokens's character-per-token heuristic.
func estimateHistoryTokens(history []models.Message) int {
	total := 0
	for _, msg := range history {
		total += compaction.EstimateTokens(toCompactionMessage(msg))
	}
	return total
}

// likelyOverflow reports whether history's token estimate, padded by
// compaction.SafetyMargin, is likely to exceed contextWindow. This is an
// ambient soft pre-check only: a true result never blocks or rewrites the
// call, it only lets the caller log a warning before the model adapter
// itself reports (or fails to report) a context-overflow error. The exact
// post-overflow recovery still runs entirely through onAfterModelCall.
func likelyOverflow(history []models.Message, contextWindow int) bool {
	if contextWindow <= 0 {
		return false
	}
	estimated := float64(estimateHistoryTokens(history)) * compaction.SafetyMargin
	return estimated > float64(contextWindow)
}
