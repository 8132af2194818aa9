// Package models defines the immutable data types shared across the agent
// runtime: content blocks, messages, stream events, and interrupts.
package models

import (
	"encoding/json"
	"fmt"
)

// Role identifies the author of a Message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// StopReason is the terminal reason a model turn ended.
type StopReason string

const (
	StopEndTurn             StopReason = "end_turn"
	StopMaxTokens           StopReason = "max_tokens"
	StopSequence            StopReason = "stop_sequence"
	StopToolUse             StopReason = "tool_use"
	StopGuardrailIntervened StopReason = "guardrail_intervened"
	StopContentFiltered     StopReason = "content_filtered"
	// StopInterrupt is synthesized by the agent loop, never returned by a model.
	StopInterrupt StopReason = "interrupt"
)

// ToolResultStatus is the outcome of a tool invocation as recorded in a
// ToolResultBlock.
type ToolResultStatus string

const (
	ToolResultSuccess ToolResultStatus = "success"
	ToolResultError   ToolResultStatus = "error"
)

// ContentBlockType discriminates the variant stored in a ContentBlock.
type ContentBlockType string

const (
	ContentText       ContentBlockType = "text"
	ContentToolUse    ContentBlockType = "tool_use"
	ContentToolResult ContentBlockType = "tool_result"
	ContentReasoning  ContentBlockType = "reasoning"
	ContentCachePoint ContentBlockType = "cache_point"
	ContentJSON       ContentBlockType = "json"
	ContentImage      ContentBlockType = "image"
	ContentDocument   ContentBlockType = "document"
	ContentVideo      ContentBlockType = "video"
)

// ContentBlock is a tagged union over the nine block variants. Exactly one
// of the pointer fields matching Type is non-nil. Values are constructed via
// the NewXxxBlock helpers and treated as immutable thereafter; nothing in
// this package exposes a setter.
type ContentBlock struct {
	Type ContentBlockType `json:"type"`

	Text       *TextBlock       `json:"text,omitempty"`
	ToolUse    *ToolUseBlock    `json:"tool_use,omitempty"`
	ToolResult *ToolResultBlock `json:"tool_result,omitempty"`
	Reasoning  *ReasoningBlock  `json:"reasoning,omitempty"`
	CachePoint *CachePointBlock `json:"cache_point,omitempty"`
	JSON       *JSONBlock       `json:"json,omitempty"`
	Image      *MediaBlock      `json:"image,omitempty"`
	Document   *MediaBlock      `json:"document,omitempty"`
	Video      *MediaBlock      `json:"video,omitempty"`
}

// TextBlock carries plain text.
type TextBlock struct {
	Text string `json:"text"`
}

// ToolUseBlock is the model's request to invoke a tool.
type ToolUseBlock struct {
	Name      string          `json:"name"`
	ToolUseID string          `json:"tool_use_id"`
	Input     json.RawMessage `json:"input"`
}

// ToolResultBlock is the outcome of executing a ToolUseBlock. Content is
// restricted to text/json sub-blocks. It must always appear in a
// RoleUser-role Message and reference an earlier ToolUseBlock.ToolUseID.
type ToolResultBlock struct {
	ToolUseID string         `json:"tool_use_id"`
	Status    ToolResultStatus `json:"status"`
	Content   []ContentBlock `json:"content"`
}

// ReasoningBlock carries extended-thinking text, with an optional provider
// signature for verification.
type ReasoningBlock struct {
	Text      string  `json:"text"`
	Signature *string `json:"signature,omitempty"`
}

// CachePointBlock marks a prompt-caching boundary.
type CachePointBlock struct {
	CacheType string `json:"cache_type"`
}

// JSONBlock carries a raw JSON value.
type JSONBlock struct {
	JSON json.RawMessage `json:"json"`
}

// MediaBlock backs imageBlock, documentBlock, and videoBlock — all three
// variants share the same {mimeType, data|url, filename?} shape.
type MediaBlock struct {
	MimeType string `json:"mime_type"`
	Data     []byte `json:"data,omitempty"`
	URL      string `json:"url,omitempty"`
	Filename string `json:"filename,omitempty"`
}

// NewTextBlock constructs a textBlock.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: ContentText, Text: &TextBlock{Text: text}}
}

// NewToolUseBlock constructs a toolUseBlock.
func NewToolUseBlock(name, toolUseID string, input json.RawMessage) ContentBlock {
	return ContentBlock{Type: ContentToolUse, ToolUse: &ToolUseBlock{Name: name, ToolUseID: toolUseID, Input: input}}
}

// NewToolResultBlock constructs a toolResultBlock.
func NewToolResultBlock(toolUseID string, status ToolResultStatus, content []ContentBlock) ContentBlock {
	return ContentBlock{Type: ContentToolResult, ToolResult: &ToolResultBlock{ToolUseID: toolUseID, Status: status, Content: content}}
}

// NewErrorToolResult is a convenience for the common synthetic-error-result
// case (tool not found, cancelled, interrupted, execution failure).
func NewErrorToolResult(toolUseID, message string) ContentBlock {
	return NewToolResultBlock(toolUseID, ToolResultError, []ContentBlock{NewTextBlock(message)})
}

// NewReasoningBlock constructs a reasoningBlock.
func NewReasoningBlock(text string, signature *string) ContentBlock {
	return ContentBlock{Type: ContentReasoning, Reasoning: &ReasoningBlock{Text: text, Signature: signature}}
}

// NewCachePointBlock constructs a cachePointBlock.
func NewCachePointBlock(cacheType string) ContentBlock {
	return ContentBlock{Type: ContentCachePoint, CachePoint: &CachePointBlock{CacheType: cacheType}}
}

// NewJSONBlock constructs a jsonBlock.
func NewJSONBlock(raw json.RawMessage) ContentBlock {
	return ContentBlock{Type: ContentJSON, JSON: &JSONBlock{JSON: raw}}
}

// NewImageBlock constructs an imageBlock.
func NewImageBlock(m MediaBlock) ContentBlock { return ContentBlock{Type: ContentImage, Image: &m} }

// NewDocumentBlock constructs a documentBlock.
func NewDocumentBlock(m MediaBlock) ContentBlock {
	return ContentBlock{Type: ContentDocument, Document: &m}
}

// NewVideoBlock constructs a videoBlock.
func NewVideoBlock(m MediaBlock) ContentBlock { return ContentBlock{Type: ContentVideo, Video: &m} }

// Message is an ordered sequence of ContentBlocks authored by one role.
type Message struct {
	Role    Role           `json:"role"`
	Content []ContentBlock `json:"content"`
}

// NewUserMessage builds a user message from the given blocks.
func NewUserMessage(blocks ...ContentBlock) Message {
	return Message{Role: RoleUser, Content: blocks}
}

// NewAssistantMessage builds an assistant message from the given blocks.
func NewAssistantMessage(blocks ...ContentBlock) Message {
	return Message{Role: RoleAssistant, Content: blocks}
}

// ToolUseBlocks returns the toolUse blocks in this message, in order.
func (m Message) ToolUseBlocks() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Type == ContentToolUse {
			out = append(out, b)
		}
	}
	return out
}

// ToolResultBlocks returns the toolResult blocks in this message, in order.
func (m Message) ToolResultBlocks() []ContentBlock {
	var out []ContentBlock
	for _, b := range m.Content {
		if b.Type == ContentToolResult {
			out = append(out, b)
		}
	}
	return out
}

// TextContent concatenates every textBlock in this message.
func (m Message) TextContent() string {
	var out string
	for _, b := range m.Content {
		if b.Type == ContentText && b.Text != nil {
			out += b.Text.Text
		}
	}
	return out
}

// Validate checks that Type agrees with the single populated variant field.
// Used defensively when messages cross a serialization boundary (session
// restore, interrupt-resume payloads) rather than on every construction.
func (b ContentBlock) Validate() error {
	set := 0
	for _, present := range []bool{
		b.Text != nil, b.ToolUse != nil, b.ToolResult != nil, b.Reasoning != nil,
		b.CachePoint != nil, b.JSON != nil, b.Image != nil, b.Document != nil, b.Video != nil,
	} {
		if present {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("models: content block must have exactly one variant populated, got %d", set)
	}
	switch b.Type {
	case ContentText:
		if b.Text == nil {
			return fmt.Errorf("models: content block type %q missing payload", b.Type)
		}
	case ContentToolUse:
		if b.ToolUse == nil {
			return fmt.Errorf("models: content block type %q missing payload", b.Type)
		}
	case ContentToolResult:
		if b.ToolResult == nil {
			return fmt.Errorf("models: content block type %q missing payload", b.Type)
		}
	case ContentReasoning:
		if b.Reasoning == nil {
			return fmt.Errorf("models: content block type %q missing payload", b.Type)
		}
	case ContentCachePoint:
		if b.CachePoint == nil {
			return fmt.Errorf("models: content block type %q missing payload", b.Type)
		}
	case ContentJSON:
		if b.JSON == nil {
			return fmt.Errorf("models: content block type %q missing payload", b.Type)
		}
	case ContentImage:
		if b.Image == nil {
			return fmt.Errorf("models: content block type %q missing payload", b.Type)
		}
	case ContentDocument:
		if b.Document == nil {
			return fmt.Errorf("models: content block type %q missing payload", b.Type)
		}
	case ContentVideo:
		if b.Video == nil {
			return fmt.Errorf("models: content block type %q missing payload", b.Type)
		}
	default:
		return fmt.Errorf("models: unknown content block type %q", b.Type)
	}
	return nil
}
