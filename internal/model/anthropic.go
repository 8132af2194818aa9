package model

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/anthropics/anthropic-sdk-go/packages/ssestream"

	"github.com/agentcore/runtime/internal/retry"
	"github.com/agentcore/runtime/internal/tooling"
	"github.com/agentcore/runtime/pkg/models"
)

// AnthropicConfig configures an AnthropicModel.
type AnthropicConfig struct {
	APIKey       string
	DefaultModel string
	BaseURL      string
	Timeout      time.Duration
	MaxRetries   int
	RetryDelay   time.Duration
}

func (c AnthropicConfig) withDefaults() AnthropicConfig {
	if c.DefaultModel == "" {
		c.DefaultModel = "claude-sonnet-4-20250514"
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
	if c.RetryDelay <= 0 {
		c.RetryDelay = time.Second
	}
	return c
}

// AnthropicModel adapts the Anthropic Messages API to the Model interface.
type AnthropicModel struct {
	client anthropic.Client
	cfg    AnthropicConfig
}

// NewAnthropicModel constructs a Model backed by Anthropic's Claude API.
func NewAnthropicModel(cfg AnthropicConfig) *AnthropicModel {
	cfg = cfg.withDefaults()
	opts := []option.RequestOption{}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}))
	}
	return &AnthropicModel{client: anthropic.NewClient(opts...), cfg: cfg}
}

func (m *AnthropicModel) Stream(ctx context.Context, messages []models.Message, opts StreamOptions) (<-chan models.ModelStreamEvent, error) {
	params, err := m.buildParams(messages, opts)
	if err != nil {
		return nil, NewError("anthropic", err)
	}

	stream, primed, err := m.connectWithRetry(ctx, params)
	if err != nil {
		return nil, err
	}

	out := make(chan models.ModelStreamEvent)
	go m.pump(stream, out, primed)
	return out, nil
}

// connectWithRetry opens the SSE stream and, if the provider fails before
// emitting a single event (a dropped connection, a transient 5xx), retries
// the connection attempt itself using the adapter's configured MaxRetries
// and RetryDelay. It never retries once the stream has started producing
// events, so a mid-stream failure still surfaces through pump as usual.
//
// primed reports whether the returned stream already has its first event
// buffered in stream.Current() (the connectivity check consumes one event
// to confirm the connection is live), so pump knows to process it before
// resuming its own stream.Next() loop.
func (m *AnthropicModel) connectWithRetry(ctx context.Context, params anthropic.MessageNewParams) (stream *ssestream.Stream[anthropic.MessageStreamEventUnion], primed bool, err error) {
	cfg := retry.Exponential(m.cfg.MaxRetries, m.cfg.RetryDelay, 30*time.Second)

	attempted, result := retry.DoWithValue(ctx, cfg, func() (*ssestream.Stream[anthropic.MessageStreamEventUnion], error) {
		s := m.client.Messages.NewStreaming(ctx, params)
		if !s.Next() {
			if err := s.Err(); err != nil {
				_ = s.Close()
				wrapped := NewError("anthropic", err)
				if !IsRetryable(wrapped) {
					return nil, retry.Permanent(wrapped)
				}
				return nil, wrapped
			}
		}
		return s, nil
	})
	if result.Err != nil {
		return nil, false, result.Err
	}
	return attempted, true, nil
}

func (m *AnthropicModel) buildParams(messages []models.Message, opts StreamOptions) (anthropic.MessageNewParams, error) {
	converted, err := convertMessages(messages)
	if err != nil {
		return anthropic.MessageNewParams{}, err
	}

	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 4096
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(m.cfg.DefaultModel),
		Messages:  converted,
		MaxTokens: int64(maxTokens),
	}

	if opts.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Type: "text", Text: opts.SystemPrompt}}
	}

	if len(opts.ToolSpecs) > 0 {
		tools, err := convertTools(opts.ToolSpecs)
		if err != nil {
			return anthropic.MessageNewParams{}, err
		}
		params.Tools = tools
	}

	switch opts.ToolChoice.Mode {
	case "any":
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfAny: &anthropic.ToolChoiceAnyParam{}}
	case "none":
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfNone: &anthropic.ToolChoiceNoneParam{}}
	case "tool":
		params.ToolChoice = anthropic.ToolChoiceUnionParam{OfTool: &anthropic.ToolChoiceToolParam{Name: opts.ToolChoice.ToolName}}
	}

	return params, nil
}

func convertMessages(messages []models.Message) ([]anthropic.MessageParam, error) {
	result := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		var content []anthropic.ContentBlockParamUnion
		for _, b := range msg.Content {
			block, err := convertBlock(b)
			if err != nil {
				return nil, err
			}
			if block != nil {
				content = append(content, *block)
			}
		}
		if msg.Role == models.RoleAssistant {
			result = append(result, anthropic.NewAssistantMessage(content...))
		} else {
			result = append(result, anthropic.NewUserMessage(content...))
		}
	}
	return result, nil
}

func convertBlock(b models.ContentBlock) (*anthropic.ContentBlockParamUnion, error) {
	switch b.Type {
	case models.ContentText:
		block := anthropic.NewTextBlock(b.Text.Text)
		return &block, nil
	case models.ContentToolUse:
		var input map[string]any
		if len(b.ToolUse.Input) > 0 {
			if err := json.Unmarshal(b.ToolUse.Input, &input); err != nil {
				return nil, fmt.Errorf("model: invalid tool_use input for %s: %w", b.ToolUse.Name, err)
			}
		}
		block := anthropic.NewToolUseBlock(b.ToolUse.ToolUseID, input, b.ToolUse.Name)
		return &block, nil
	case models.ContentToolResult:
		text := flattenToolResultText(b.ToolResult.Content)
		block := anthropic.NewToolResultBlock(b.ToolResult.ToolUseID, text, b.ToolResult.Status == models.ToolResultError)
		return &block, nil
	case models.ContentCachePoint:
		// No direct equivalent handled here; caching is applied by the caller
		// marking the preceding block rather than as its own wire entry.
		return nil, nil
	default:
		return nil, fmt.Errorf("model: unsupported content block type %q for anthropic", b.Type)
	}
}

func flattenToolResultText(blocks []models.ContentBlock) string {
	var sb strings.Builder
	for _, b := range blocks {
		if b.Type == models.ContentText && b.Text != nil {
			sb.WriteString(b.Text.Text)
		}
	}
	return sb.String()
}

func convertTools(specs []tooling.Spec) ([]anthropic.ToolUnionParam, error) {
	result := make([]anthropic.ToolUnionParam, 0, len(specs))
	for _, spec := range specs {
		var schema anthropic.ToolInputSchemaParam
		if err := json.Unmarshal(spec.InputSchema, &schema); err != nil {
			return nil, fmt.Errorf("model: invalid tool schema for %s: %w", spec.Name, err)
		}
		param := anthropic.ToolUnionParamOfTool(schema, spec.Name)
		if param.OfTool == nil {
			return nil, fmt.Errorf("model: invalid tool schema for %s: missing tool definition", spec.Name)
		}
		param.OfTool.Description = anthropic.String(spec.Description)
		result = append(result, param)
	}
	return result, nil
}

func stopReasonFromAnthropic(reason string) models.StopReason {
	switch reason {
	case "end_turn":
		return models.StopEndTurn
	case "max_tokens":
		return models.StopMaxTokens
	case "stop_sequence":
		return models.StopSequence
	case "tool_use":
		return models.StopToolUse
	default:
		return models.StopEndTurn
	}
}
