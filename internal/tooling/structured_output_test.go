package tooling

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/agentcore/runtime/pkg/models"
)

const personSchema = `{
	"type": "object",
	"properties": {
		"name": {"type": "string"},
		"age": {"type": "integer", "minimum": 0}
	},
	"required": ["name", "age"]
}`

func newToolCtx(toolUseID string) Context {
	return Context{ToolUse: models.NewToolUseBlock("record_person", toolUseID, nil)}
}

func TestStructuredOutputToolAccepts(t *testing.T) {
	tool, err := NewStructuredOutputTool("record_person", "records a person", json.RawMessage(personSchema))
	if err != nil {
		t.Fatalf("NewStructuredOutputTool: %v", err)
	}

	result := Run(context.Background(), tool, newToolCtx("tu_1"), json.RawMessage(`{"name":"Ada","age":30}`))
	if result.ToolResult == nil || result.ToolResult.Status != models.ToolResultSuccess {
		t.Fatalf("expected success result, got %+v", result)
	}

	v, ok := tool.Value()
	if !ok {
		t.Fatalf("expected captured value")
	}
	m := v.(map[string]any)
	if m["name"] != "Ada" {
		t.Fatalf("value = %v", v)
	}
}

func TestStructuredOutputToolRejectsWithFieldMessage(t *testing.T) {
	tool, err := NewStructuredOutputTool("record_person", "records a person", json.RawMessage(personSchema))
	if err != nil {
		t.Fatalf("NewStructuredOutputTool: %v", err)
	}

	result := Run(context.Background(), tool, newToolCtx("tu_2"), json.RawMessage(`{"name":"Ada"}`))
	if result.ToolResult == nil || result.ToolResult.Status != models.ToolResultError {
		t.Fatalf("expected error result, got %+v", result)
	}
	text := result.ToolResult.Content[0].Text.Text
	if !strings.Contains(text, "Validation failed") || !strings.Contains(text, "Field") {
		t.Fatalf("message = %q", text)
	}

	if _, ok := tool.Value(); ok {
		t.Fatalf("expected no captured value after rejected input")
	}
}
