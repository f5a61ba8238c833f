package llm

import (
	"context"
	"encoding/json"
)

// Message roles
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleTool      = "tool"
)

// Kind tags the two shapes an assistant message can take.
type Kind int

const (
	// KindText is a plain natural-language message.
	KindText Kind = iota
	// KindToolRequest asks the caller to run one or more tools first.
	KindToolRequest
)

func (k Kind) String() string {
	switch k {
	case KindToolRequest:
		return "tool_request"
	default:
		return "text"
	}
}

// Message represents a chat message
//
// Role: "system", "user", "assistant" or "tool"
// Content: Text content of the message
// ToolCalls: Tool requests carried by an assistant message
// ToolCallID: Call identifier a tool message answers
// Name: Tool name on tool messages
type Message struct {
	Role       string     `json:"role"`
	Content    string     `json:"content"`
	ToolCalls  []ToolCall `json:"tool_calls,omitempty"`
	ToolCallID string     `json:"tool_call_id,omitempty"`
	Name       string     `json:"name,omitempty"`
}

// Kind reports whether the message is a tool request or plain text.
func (m Message) Kind() Kind {
	if len(m.ToolCalls) > 0 {
		return KindToolRequest
	}
	return KindText
}

// ToolCall is a single tool invocation requested by the model.
type ToolCall struct {
	ID        string         `json:"id"`
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments,omitempty"`
}

// StringArg returns the named argument when it is a string.
func (tc ToolCall) StringArg(name string) (string, bool) {
	v, ok := tc.Arguments[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// ToolDefinition represents a tool in OpenAI function-calling format
type ToolDefinition struct {
	Type     string   `json:"type"`
	Function Function `json:"function"`
}

// Function describes a callable function and its JSON Schema parameters
type Function struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// ResponseSchema constrains the model output to a JSON Schema.
type ResponseSchema struct {
	Name   string
	Schema json.Marshaler
	Strict bool
}

// ChatRequest is one chat completion call.
//
// Temperature overrides the configured temperature when non-nil.
// MaxTokens overrides the configured max tokens when positive.
type ChatRequest struct {
	Messages       []Message
	Tools          []ToolDefinition
	Temperature    *float64
	MaxTokens      int
	ResponseSchema *ResponseSchema
}

// ChatModel returns exactly one assistant message per call.
type ChatModel interface {
	Chat(ctx context.Context, req ChatRequest) (*Message, error)
}

// Temperature is a helper for ChatRequest.Temperature.
func Temperature(t float64) *float64 {
	return &t
}
