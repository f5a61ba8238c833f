package tools

import (
	"context"
	"encoding/json"

	"github.com/sashabaranov/go-openai/jsonschema"
)

// ToolResult represents the result of a tool execution.
// IsError marks adapter failures that are still returned to the model as text.
type ToolResult struct {
	Content string `json:"content"`
	IsError bool   `json:"is_error,omitempty"`
}

// Tool defines the interface for tools that can be called by the agent
type Tool interface {
	// Name returns the unique name of the tool
	Name() string

	// Description returns a description of what the tool does
	Description() string

	// Parameters returns the JSON Schema for the tool's parameters
	Parameters() json.RawMessage

	// Execute runs the tool with the given arguments and returns the result.
	// Only context cancellation should surface as an error.
	Execute(ctx context.Context, args json.RawMessage) (ToolResult, error)
}

func mustSchema(def jsonschema.Definition) json.RawMessage {
	raw, err := json.Marshal(&def)
	if err != nil {
		panic(err)
	}
	return raw
}
