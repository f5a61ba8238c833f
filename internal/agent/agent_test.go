package agent

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"github.com/lexiguard/lexiguard/internal/grader"
	"github.com/lexiguard/lexiguard/internal/llm"
	"github.com/lexiguard/lexiguard/internal/tools"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type echoAdapterTool struct{}

func (echoAdapterTool) Name() string { return "echo" }

func (echoAdapterTool) Description() string { return "Echo back input arguments." }

func (echoAdapterTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {"type": "string"}
		},
		"required": ["query"]
	}`)
}

func (echoAdapterTool) Execute(_ context.Context, args json.RawMessage) (tools.ToolResult, error) {
	return tools.ToolResult{Content: string(args)}, nil
}

type failingTool struct {
	err error
}

func (failingTool) Name() string                { return "failing" }
func (failingTool) Description() string         { return "Always fails." }
func (failingTool) Parameters() json.RawMessage { return json.RawMessage(`{"type":"object"}`) }
func (f failingTool) Execute(context.Context, json.RawMessage) (tools.ToolResult, error) {
	return tools.ToolResult{}, f.err
}

func TestNewLegalAgent_RequiresDeps(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: []llm.Message{text("x")}}
	gr := &scriptedGrader{verdicts: []grader.Verdict{grader.VerdictYes}}

	_, err := NewLegalAgent(Deps{Invoker: &echoInvoker{}, Grader: gr})
	assert.Error(t, err)
	_, err = NewLegalAgent(Deps{Generator: gen, Grader: gr})
	assert.Error(t, err)
	_, err = NewLegalAgent(Deps{Generator: gen, Invoker: &echoInvoker{}})
	assert.Error(t, err)
}

func TestLegalAgent_Ask(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: []llm.Message{text("Yes, within 30 days.")}}
	gr := &scriptedGrader{verdicts: []grader.Verdict{grader.VerdictYes}}
	a, err := NewLegalAgent(Deps{Generator: gen, Invoker: &echoInvoker{}, Grader: gr})
	require.NoError(t, err)

	history := []Turn{
		{Role: "user", Content: "What is a DPA?"},
		{Role: "assistant", Content: "A data processing agreement."},
		{Role: "system", Content: "ignored"},
		{Role: "tool", Content: "ignored"},
	}
	result, err := a.Ask(context.Background(), history, "Must breaches be reported?")
	require.NoError(t, err)
	assert.Equal(t, "Yes, within 30 days.", result.Answer)

	require.Len(t, gen.seen, 1)
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleUser, Content: "What is a DPA?"},
		{Role: llm.RoleAssistant, Content: "A data processing agreement."},
		{Role: llm.RoleUser, Content: "Must breaches be reported?"},
	}, gen.seen[0])
}

func TestLegalAgent_AskRejectsBlankQuery(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: []llm.Message{text("x")}}
	a, err := NewLegalAgent(Deps{Generator: gen, Invoker: &echoInvoker{}, Grader: &scriptedGrader{verdicts: []grader.Verdict{grader.VerdictYes}}})
	require.NoError(t, err)

	_, err = a.Ask(context.Background(), nil, "   ")
	assert.ErrorIs(t, err, ErrEmptyQuery)
	assert.Zero(t, gen.calls)
}

func TestLegalAgent_ConcurrentAsk(t *testing.T) {
	t.Parallel()

	gen := &scriptedGenerator{replies: []llm.Message{text("answer")}}
	gr := &scriptedGrader{verdicts: []grader.Verdict{grader.VerdictYes}}
	a, err := NewLegalAgent(Deps{Generator: gen, Invoker: &echoInvoker{}, Grader: gr})
	require.NoError(t, err)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			result, err := a.Ask(context.Background(), nil, "q")
			if err == nil && result.LoopCount != 0 {
				err = errors.New("state leaked between requests")
			}
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
	assert.Equal(t, 8, gen.calls)
}

func TestToolInvoker_InlineFailures(t *testing.T) {
	t.Parallel()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(echoAdapterTool{}))
	require.NoError(t, registry.Register(failingTool{err: errors.New("connection refused")}))

	inv := NewToolInvoker(registry)
	got, err := inv.Invoke(context.Background(), []llm.ToolCall{
		{ID: "1", Name: "missing", Arguments: map[string]any{"query": "x"}},
		{ID: "2", Name: "failing", Arguments: map[string]any{"query": "x"}},
		{ID: "3", Name: "echo", Arguments: map[string]any{"query": "gst"}},
	})
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, `Tool "missing" not found`, got[0].Content)
	assert.True(t, got[0].IsError)
	assert.Equal(t, "Tool execution error: connection refused", got[1].Content)
	assert.True(t, got[1].IsError)
	assert.JSONEq(t, `{"query":"gst"}`, got[2].Content)
	assert.False(t, got[2].IsError)

	msg := got[2].Message()
	assert.Equal(t, llm.RoleTool, msg.Role)
	assert.Equal(t, "3", msg.ToolCallID)
	assert.Equal(t, "echo", msg.Name)
}

func TestToolInvoker_NormalizesQuery(t *testing.T) {
	t.Parallel()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(echoAdapterTool{}))
	inv := NewToolInvoker(registry)

	got, err := inv.Invoke(context.Background(), []llm.ToolCall{
		{ID: "1", Name: "echo"},
		{ID: "2", Name: "echo", Arguments: map[string]any{"query": 42.0, "doctypes": "laws"}},
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"query":""}`, got[0].Content)
	assert.JSONEq(t, `{"query":"","doctypes":"laws"}`, got[1].Content)
}

func TestToolInvoker_Cancelled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(failingTool{err: context.Canceled}))

	_, err := NewToolInvoker(registry).Invoke(ctx, []llm.ToolCall{{ID: "1", Name: "failing"}})
	assert.ErrorIs(t, err, context.Canceled)
}

type recordingModel struct {
	reply *llm.Message
	err   error
	reqs  []llm.ChatRequest
}

func (m *recordingModel) Chat(_ context.Context, req llm.ChatRequest) (*llm.Message, error) {
	m.reqs = append(m.reqs, req)
	return m.reply, m.err
}

func TestModelGenerator_BindsToolsAndSystemPrompt(t *testing.T) {
	t.Parallel()

	registry := tools.NewRegistry()
	require.NoError(t, registry.Register(tools.NewLegalResearchTool(nil)))

	model := &recordingModel{reply: &llm.Message{Role: "", ToolCalls: []llm.ToolCall{researchCall("c1", "x")}}}
	gen := NewModelGenerator(model, registry)

	history := []llm.Message{{Role: llm.RoleUser, Content: "q"}}
	msg, err := gen.Generate(context.Background(), history)
	require.NoError(t, err)
	assert.Equal(t, llm.RoleAssistant, msg.Role)
	assert.Equal(t, llm.KindToolRequest, msg.Kind())

	require.Len(t, model.reqs, 1)
	req := model.reqs[0]
	require.Len(t, req.Messages, 2)
	assert.Equal(t, llm.RoleSystem, req.Messages[0].Role)
	assert.Equal(t, systemPrompt, req.Messages[0].Content)
	assert.Equal(t, history[0], req.Messages[1])
	require.Len(t, req.Tools, 1)
	assert.Equal(t, tools.LegalResearchToolName, req.Tools[0].Function.Name)

	assert.Len(t, history, 1, "history must not be modified")
}

func TestModelGenerator_PropagatesErrors(t *testing.T) {
	t.Parallel()

	gen := NewModelGenerator(&recordingModel{err: errors.New("timeout")}, nil)
	_, err := gen.Generate(context.Background(), nil)
	assert.EqualError(t, err, "timeout")

	gen = NewModelGenerator(&recordingModel{}, nil)
	_, err = gen.Generate(context.Background(), nil)
	assert.Error(t, err)
}

func TestModelGenerator_LanguageHint(t *testing.T) {
	t.Parallel()

	model := &recordingModel{reply: &llm.Message{Content: "ok"}}
	gen := NewModelGenerator(model, nil, WithLanguageHint(true))

	_, err := gen.Generate(context.Background(), []llm.Message{{
		Role:    llm.RoleUser,
		Content: "Welche Aufbewahrungsfristen gelten für Rechnungen nach dem deutschen Handelsgesetzbuch und der Abgabenordnung?",
	}})
	require.NoError(t, err)
	assert.Contains(t, model.reqs[0].Messages[0].Content, "Answer in German.")
}

func TestAnswerLanguage_NoUserMessage(t *testing.T) {
	_, ok := answerLanguage([]llm.Message{{Role: llm.RoleAssistant, Content: "hello there my friend"}})
	assert.False(t, ok)
}

func TestHistoryMessages(t *testing.T) {
	got := HistoryMessages([]Turn{
		{Role: "assistant", Content: "a"},
		{Role: "human", Content: "dropped"},
		{Role: "user", Content: "u"},
	})
	assert.Equal(t, []llm.Message{
		{Role: llm.RoleAssistant, Content: "a"},
		{Role: llm.RoleUser, Content: "u"},
	}, got)
	assert.Empty(t, HistoryMessages(nil))
}

func TestState_Helpers(t *testing.T) {
	s := NewState(nil)
	_, ok := s.Last()
	assert.False(t, ok)
	assert.Equal(t, "", s.JoinedDocuments())

	s.Documents = []string{"a", "b"}
	assert.Equal(t, "a\n\nb", s.JoinedDocuments())
}
