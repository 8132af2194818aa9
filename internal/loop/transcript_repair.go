package loop

import "github.com/agentcore/runtime/pkg/models"

// RepairTranscript walks a restored conversation history and synthesizes an
// error toolResultBlock for any toolUse block that never received a
// matching toolResult — the case when a session was persisted mid-turn,
// between the model producing a tool call and that tool finishing. Without
// this, replaying the history into a model would leave a dangling toolUse
// block, which every provider rejects.
//
// Only the final assistant message can have pending tool uses: any earlier
// assistant message's tool calls must already have been answered by the
// user message that follows it, or the history itself was truncated
// incorrectly upstream.
func RepairTranscript(history []models.Message) []models.Message {
	if len(history) == 0 {
		return history
	}

	last := history[len(history)-1]
	if last.Role != models.RoleAssistant {
		return history
	}

	pending := last.ToolUseBlocks()
	if len(pending) == 0 {
		return history
	}

	content := make([]models.ContentBlock, 0, len(pending))
	for _, b := range pending {
		content = append(content, models.NewErrorToolResult(
			b.ToolUse.ToolUseID,
			"tool call was interrupted before completion and was not retried",
		))
	}

	repaired := make([]models.Message, len(history)+1)
	copy(repaired, history)
	repaired[len(history)] = models.Message{Role: models.RoleUser, Content: content}
	return repaired
}
