package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/lexiguard/lexiguard/internal/llm"
	"github.com/lexiguard/lexiguard/internal/tools"
	"github.com/lexiguard/lexiguard/pkg/log"
)

// Invocation is the outcome of one tool call.
type Invocation struct {
	Call    llm.ToolCall
	Content string
	IsError bool
}

// Message returns the tool message answering the call.
func (i Invocation) Message() llm.Message {
	return llm.Message{
		Role:       llm.RoleTool,
		Content:    i.Content,
		ToolCallID: i.Call.ID,
		Name:       i.Call.Name,
	}
}

// Invoker executes tool calls and returns one Invocation per call, in order.
// Tool failures are reported inside the Invocation; the error is reserved
// for cancellation.
type Invoker interface {
	Invoke(ctx context.Context, calls []llm.ToolCall) ([]Invocation, error)
}

// ToolInvoker runs calls against a tools.Registry.
type ToolInvoker struct {
	registry *tools.Registry
}

func NewToolInvoker(registry *tools.Registry) *ToolInvoker {
	if registry == nil {
		registry = tools.NewRegistry()
	}
	return &ToolInvoker{registry: registry}
}

func (t *ToolInvoker) Invoke(ctx context.Context, calls []llm.ToolCall) ([]Invocation, error) {
	ret := make([]Invocation, 0, len(calls))
	for _, call := range calls {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		inv, err := t.invoke(ctx, call)
		if err != nil {
			return nil, err
		}
		log.Info("Tool %s executed: error=%v", call.Name, inv.IsError)
		ret = append(ret, inv)
	}
	return ret, nil
}

func (t *ToolInvoker) invoke(ctx context.Context, call llm.ToolCall) (Invocation, error) {
	inv := Invocation{Call: call}

	tool, exists := t.registry.Get(call.Name)
	if !exists {
		inv.Content = fmt.Sprintf("Tool %q not found", call.Name)
		inv.IsError = true
		return inv, nil
	}

	args, err := normalizeArguments(call)
	if err != nil {
		inv.Content = fmt.Sprintf("Tool execution error: %v", err)
		inv.IsError = true
		return inv, nil
	}

	result, err := tool.Execute(ctx, args)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return Invocation{}, ctxErr
		}
		inv.Content = fmt.Sprintf("Tool execution error: %v", err)
		inv.IsError = true
		return inv, nil
	}

	inv.Content = result.Content
	inv.IsError = result.IsError
	return inv, nil
}

// normalizeArguments encodes the call arguments with "query" forced to a
// string, defaulting to "".
func normalizeArguments(call llm.ToolCall) (json.RawMessage, error) {
	args := make(map[string]any, len(call.Arguments)+1)
	for k, v := range call.Arguments {
		args[k] = v
	}
	if _, ok := call.StringArg("query"); !ok {
		args["query"] = ""
	}
	raw, err := json.Marshal(args)
	if err != nil {
		return nil, fmt.Errorf("encode arguments: %w", err)
	}
	return raw, nil
}
