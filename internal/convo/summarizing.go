package convo

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/agentcore/runtime/internal/compaction"
	"github.com/agentcore/runtime/internal/hooks"
	"github.com/agentcore/runtime/internal/model"
	"github.com/agentcore/runtime/internal/observability"
	"github.com/agentcore/runtime/pkg/models"
)

const (
	defaultRatio            = 0.3
	minRatio                = 0.1
	maxRatio                = 0.8
	defaultPreserveRecent   = 10
	summarizerSystemPrompt  = "Summarize the conversation so far concisely, preserving key facts, decisions, and the outcome of any tool calls. Write only the summary, with no preamble."
)

// SummarizeFunc produces a natural-language summary of a message prefix,
// either by calling a dedicated sub-agent or by issuing a direct call
// against the parent model with the fixed system prompt above. Exactly one
// of those two strategies backs any given SummarizeFunc.
type SummarizeFunc func(ctx context.Context, prefix []models.Message) (string, error)

// DirectModelSummarizer builds a SummarizeFunc that calls m directly with
// the fixed summarization system prompt, rather than delegating to a
// separate sub-agent.
func DirectModelSummarizer(m model.Model) SummarizeFunc {
	return func(ctx context.Context, prefix []models.Message) (string, error) {
		events, err := m.Stream(ctx, prefix, model.StreamOptions{SystemPrompt: summarizerSystemPrompt})
		if err != nil {
			return "", fmt.Errorf("convo: summarization call: %w", err)
		}
		var text string
		for ev := range events {
			if ev.Type == models.ModelContentBlockDelta && ev.ContentBlockDelta.TextDelta != nil {
				text += *ev.ContentBlockDelta.TextDelta
			}
			if ev.Type == models.ModelMetadata && ev.Metadata != nil && ev.Metadata.Err != nil {
				return "", ev.Metadata.Err
			}
		}
		return text, nil
	}
}

// SummarizingConversationManager compacts the oldest portion of a working
// conversation into a single summary message when a model call fails with
// a context-overflow error, then asks the loop to retry the call against
// the now-shorter history.
type SummarizingConversationManager struct {
	ratio          float64
	preserveRecent int
	summarize      SummarizeFunc
	lastSummaryAt  int
	lastSummary    string
	contextWindow  int
	logger         *slog.Logger
	metrics        *observability.Metrics
}

// Option configures a SummarizingConversationManager.
type Option func(*SummarizingConversationManager)

// WithRatio overrides the fraction of history summarized per compaction,
// clamped to [0.1, 0.8].
func WithRatio(ratio float64) Option {
	return func(m *SummarizingConversationManager) { m.ratio = clampRatio(ratio) }
}

// WithPreserveRecentMessages overrides how many of the most recent messages
// are always kept verbatim and never folded into a summary.
func WithPreserveRecentMessages(n int) Option {
	return func(m *SummarizingConversationManager) {
		if n > 0 {
			m.preserveRecent = n
		}
	}
}

// WithContextWindow overrides the token budget used by the ambient
// overflow pre-check (see token_estimate.go). Defaults to
// compaction.DefaultContextWindow.
func WithContextWindow(tokens int) Option {
	return func(m *SummarizingConversationManager) {
		if tokens > 0 {
			m.contextWindow = tokens
		}
	}
}

// WithLogger overrides the logger used for the ambient overflow pre-check.
// Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(m *SummarizingConversationManager) {
		if logger != nil {
			m.logger = logger
		}
	}
}

// WithMetrics attaches a Metrics recorder so every compaction increments
// its CompactionCounter. Optional; nil skips this pillar.
func WithMetrics(metrics *observability.Metrics) Option {
	return func(m *SummarizingConversationManager) { m.metrics = metrics }
}

// NewSummarizingConversationManager builds a manager that summarizes via
// summarize whenever the loop reports a context-overflow error.
func NewSummarizingConversationManager(summarize SummarizeFunc, opts ...Option) *SummarizingConversationManager {
	m := &SummarizingConversationManager{
		ratio:          defaultRatio,
		preserveRecent: defaultPreserveRecent,
		summarize:      summarize,
		contextWindow:  compaction.DefaultContextWindow,
		logger:         slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func clampRatio(r float64) float64 {
	if r < minRatio {
		return minRatio
	}
	if r > maxRatio {
		return maxRatio
	}
	return r
}

// Hooks implements hooks.HookProvider.
func (m *SummarizingConversationManager) Hooks() []hooks.HookRegistration {
	return []hooks.HookRegistration{
		{Event: hooks.EventBeforeModelCall, Callback: m.onBeforeModelCall},
		{Event: hooks.EventAfterModelCall, Callback: m.onAfterModelCall},
	}
}

// onBeforeModelCall is the ambient soft pre-check: it never mutates the
// call or blocks it, it only warns when history looks likely to overflow
// the context window before the adapter gets a chance to say so itself.
func (m *SummarizingConversationManager) onBeforeModelCall(ctx context.Context, event hooks.Event) error {
	ev, ok := event.(hooks.BeforeModelCallEvent)
	if !ok {
		return nil
	}
	if likelyOverflow(ev.Messages, m.contextWindow) {
		m.logger.WarnContext(ctx, "convo: history likely exceeds context window",
			"agent_id", ev.AgentID, "message_count", len(ev.Messages), "context_window", m.contextWindow)
	}
	return nil
}

func (m *SummarizingConversationManager) onAfterModelCall(ctx context.Context, event hooks.Event) error {
	ev, ok := event.(*hooks.AfterModelCallEvent)
	if !ok || ev.Err == nil || ev.Messages == nil {
		return nil
	}
	if !model.IsContextOverflow(ev.Err) {
		return nil
	}

	history := *ev.Messages
	split := m.splitPoint(history)
	if split <= 0 {
		return nil
	}

	prefix := make([]*compaction.Message, split)
	for i, msg := range history[:split] {
		prefix[i] = toCompactionMessage(msg)
	}
	cfg := compaction.DefaultSummarizationConfig()
	cfg.ContextWindow = m.contextWindow
	cfg.PreviousSummary = m.lastSummary
	summary, err := compaction.SummarizeInStages(ctx, prefix, &compactionSummarizer{summarize: m.summarize}, cfg)
	if err != nil {
		return fmt.Errorf("convo: summarizing prefix: %w", err)
	}

	compacted := make([]models.Message, 0, 1+len(history)-split)
	compacted = append(compacted, models.NewUserMessage(models.NewTextBlock(summary)))
	compacted = append(compacted, history[split:]...)
	compacted = m.pruneIfStillOverBudget(ctx, compacted)

	*ev.Messages = compacted
	m.lastSummaryAt = len(compacted)
	m.lastSummary = summary
	ev.Err = nil
	ev.Retry = true
	if m.metrics != nil {
		m.metrics.RecordCompaction()
	}
	return nil
}

// pruneIfStillOverBudget is the last-resort safety net for when a single
// summarization pass was not enough: if compacted (summary message plus
// the messages kept verbatim) still estimates over the context window, it
// drops the oldest of those kept messages, working forward, until the rest
// fits. The summary message itself (index 0) is never dropped.
func (m *SummarizingConversationManager) pruneIfStillOverBudget(ctx context.Context, compacted []models.Message) []models.Message {
	if len(compacted) < 2 {
		return compacted
	}
	if estimateHistoryTokens(compacted) <= m.contextWindow {
		return compacted
	}

	summaryTokens := compaction.EstimateTokens(toCompactionMessage(compacted[0]))
	budget := m.contextWindow - summaryTokens
	if budget <= 0 {
		return compacted
	}

	rest := make([]*compaction.Message, len(compacted)-1)
	for i, msg := range compacted[1:] {
		rest[i] = toCompactionMessage(msg)
	}
	pruned := compaction.PruneHistoryForContextShare(rest, budget, 1.0, compaction.DefaultParts)
	if pruned.DroppedMessages == 0 {
		return compacted
	}

	m.logger.WarnContext(ctx, "convo: compacted history still exceeds context window, dropping oldest remaining messages",
		"dropped_messages", pruned.DroppedMessages, "dropped_tokens", pruned.DroppedTokens)
	return append(compacted[:1:1], compacted[1+pruned.DroppedMessages:]...)
}

// compactionSummarizer adapts SummarizeFunc to compaction.Summarizer so the
// package's chunking, oversized-message handling, and multi-stage merge
// logic can drive the actual model-backed summarization call.
type compactionSummarizer struct {
	summarize SummarizeFunc
}

func (c *compactionSummarizer) GenerateSummary(ctx context.Context, msgs []*compaction.Message, _ *compaction.SummarizationConfig) (string, error) {
	prefix := make([]models.Message, len(msgs))
	for i, msg := range msgs {
		prefix[i] = fromCompactionMessage(msg)
	}
	return c.summarize(ctx, prefix)
}

// splitPoint computes how many leading messages to fold into the summary:
// floor(len*ratio), capped so at least preserveRecent messages always
// remain, then walked forward past any assistant message whose toolUse
// blocks are answered by the message immediately following the cut, so a
// tool call and its result are never separated by the summary boundary.
func (m *SummarizingConversationManager) splitPoint(history []models.Message) int {
	n := len(history)
	if n == 0 {
		return 0
	}

	target := int(math.Floor(float64(n) * m.ratio))
	maxSplit := n - m.preserveRecent
	if maxSplit < 0 {
		maxSplit = 0
	}
	if target > maxSplit {
		target = maxSplit
	}
	if target <= 0 {
		return 0
	}

	for target < n {
		prev := history[target-1]
		if prev.Role != models.RoleAssistant || len(prev.ToolUseBlocks()) == 0 {
			break
		}
		// prev has outstanding tool calls; keep it together with the
		// message answering them by moving the cut one message later.
		target++
	}
	if target > n {
		target = n
	}
	return target
}

// GetState returns the compaction bookkeeping needed to restore this
// manager's behavior across a session reload.
func (m *SummarizingConversationManager) GetState() map[string]any {
	return map[string]any{"last_summary_at": m.lastSummaryAt, "last_summary": m.lastSummary}
}

// RestoreState reapplies bookkeeping captured by GetState.
func (m *SummarizingConversationManager) RestoreState(state map[string]any) error {
	if v, ok := state["last_summary_at"].(float64); ok {
		m.lastSummaryAt = int(v)
	}
	if v, ok := state["last_summary"].(string); ok {
		m.lastSummary = v
	}
	return nil
}
