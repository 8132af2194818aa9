package tooling

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/agentcore/runtime/pkg/models"
)

// StructuredOutputTool is a schema-backed tool whose sole purpose is to
// capture and validate one structured value per invocation. The agent loop
// forces its selection via tool-choice when a caller wants a single typed
// result instead of free-form text. On validation failure it returns an
// error ToolResultBlock describing every violation, so the model can
// self-repair its next attempt.
type StructuredOutputTool struct {
	name        string
	description string
	rawSchema   json.RawMessage
	schema      *jsonschema.Schema

	mu    sync.Mutex
	value any
	ok    bool
}

// NewStructuredOutputTool compiles schema once at construction; a malformed
// schema is a programmer error and returned immediately rather than
// deferred to first use.
func NewStructuredOutputTool(name, description string, schema json.RawMessage) (*StructuredOutputTool, error) {
	compiled, err := jsonschema.CompileString(name+".schema.json", string(schema))
	if err != nil {
		return nil, fmt.Errorf("tooling: compiling schema for %s: %w", name, err)
	}
	return &StructuredOutputTool{
		name:        name,
		description: description,
		rawSchema:   schema,
		schema:      compiled,
	}, nil
}

func (t *StructuredOutputTool) Name() string { return t.name }

func (t *StructuredOutputTool) ToolSpec() Spec {
	return Spec{Name: t.name, Description: t.description, InputSchema: t.rawSchema}
}

// Value returns the last successfully validated value, or false if none has
// been captured yet.
func (t *StructuredOutputTool) Value() (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.value, t.ok
}

func (t *StructuredOutputTool) Stream(ctx context.Context, tc Context, input json.RawMessage) <-chan StreamEvent {
	out := make(chan StreamEvent, 1)

	var decoded any
	if err := json.Unmarshal(input, &decoded); err != nil {
		out <- StreamEvent{Type: ToolStreamResult, Result: errResult(tc, fmt.Sprintf("invalid JSON input: %v", err))}
		close(out)
		return out
	}

	if err := t.schema.Validate(decoded); err != nil {
		msg := formatValidationError(err)
		out <- StreamEvent{Type: ToolStreamResult, Result: errResult(tc, msg)}
		close(out)
		return out
	}

	t.mu.Lock()
	t.value = decoded
	t.ok = true
	t.mu.Unlock()

	result := models.NewToolResultBlock(toolUseID(tc), models.ToolResultSuccess, []models.ContentBlock{
		models.NewJSONBlock(input),
	})
	out <- StreamEvent{Type: ToolStreamResult, Result: &result}
	close(out)
	return out
}

func toolUseID(tc Context) string {
	if tc.ToolUse.ToolUse != nil {
		return tc.ToolUse.ToolUse.ToolUseID
	}
	return ""
}

func errResult(tc Context, msg string) *models.ContentBlock {
	r := models.NewErrorToolResult(toolUseID(tc), msg)
	return &r
}

// formatValidationError walks the jsonschema error tree into one message
// per violation, so a model can address every field in its next attempt.
func formatValidationError(err error) string {
	ve, ok := err.(*jsonschema.ValidationError)
	if !ok {
		return fmt.Sprintf("Validation failed: %v", err)
	}

	var lines []string
	var walk func(*jsonschema.ValidationError)
	walk = func(v *jsonschema.ValidationError) {
		if len(v.Causes) == 0 {
			field := v.InstanceLocation
			if field == "" {
				field = "(root)"
			}
			lines = append(lines, fmt.Sprintf("- Field '%s': %s", field, v.Message))
			return
		}
		for _, cause := range v.Causes {
			walk(cause)
		}
	}
	walk(ve)

	return "Validation failed:\n" + strings.Join(lines, "\n")
}
