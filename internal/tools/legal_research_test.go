package tools

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/lexiguard/lexiguard/internal/retrieval"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeRetriever struct {
	passages []retrieval.Passage
	err      error
	queries  []string
}

func (f *fakeRetriever) Search(_ context.Context, query string) ([]retrieval.Passage, error) {
	f.queries = append(f.queries, query)
	return f.passages, f.err
}

func TestLegalResearchTool_Schema(t *testing.T) {
	tool := NewLegalResearchTool(nil)
	assert.Equal(t, "legal_research_tool", tool.Name())
	assert.Contains(t, tool.Description(), "compliance database")

	var schema map[string]any
	require.NoError(t, json.Unmarshal(tool.Parameters(), &schema))
	props := schema["properties"].(map[string]any)
	assert.Contains(t, props, "query")
	assert.Contains(t, schema["required"].([]any), "query")
}

func TestLegalResearchTool_Unavailable(t *testing.T) {
	for name, r := range map[string]retrieval.Retriever{
		"nil":         nil,
		"unavailable": retrieval.Unavailable{},
	} {
		t.Run(name, func(t *testing.T) {
			result, err := NewLegalResearchTool(r).Execute(context.Background(), json.RawMessage(`{"query":"penalty"}`))
			require.NoError(t, err)
			assert.Equal(t, "Legal database is currently unavailable.", result.Content)
			assert.False(t, result.IsError)
		})
	}
}

func TestLegalResearchTool_FormatsSourceMatches(t *testing.T) {
	r := &fakeRetriever{passages: []retrieval.Passage{
		{Content: "Late filing attracts a penalty of 50 per day."},
		{Content: "Returns are due on the 20th."},
	}}

	result, err := NewLegalResearchTool(r).Execute(context.Background(), json.RawMessage(`{"query":"late filing penalty"}`))
	require.NoError(t, err)
	assert.Equal(t,
		"Source Match 1:\nLate filing attracts a penalty of 50 per day.\n\nSource Match 2:\nReturns are due on the 20th.",
		result.Content)
	assert.Equal(t, []string{"late filing penalty"}, r.queries)
}

func TestLegalResearchTool_NoMatches(t *testing.T) {
	result, err := NewLegalResearchTool(&fakeRetriever{}).Execute(context.Background(), json.RawMessage(`{"query":"x"}`))
	require.NoError(t, err)
	assert.Equal(t, NoPassagesMessage, result.Content)
}

func TestLegalResearchTool_SearchErrorIsInline(t *testing.T) {
	r := &fakeRetriever{err: errors.New("disk I/O error")}
	result, err := NewLegalResearchTool(r).Execute(context.Background(), json.RawMessage(`{"query":"x"}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Equal(t, "Legal database search failed: disk I/O error", result.Content)
}

func TestLegalResearchTool_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	r := &fakeRetriever{err: context.Canceled}
	_, err := NewLegalResearchTool(r).Execute(ctx, json.RawMessage(`{"query":"x"}`))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestLegalResearchTool_BadArguments(t *testing.T) {
	r := &fakeRetriever{}
	result, err := NewLegalResearchTool(r).Execute(context.Background(), json.RawMessage(`{"query":42}`))
	require.NoError(t, err)
	assert.True(t, result.IsError)
	assert.Contains(t, result.Content, "Failed to parse search arguments")
	assert.Empty(t, r.queries)
}

func TestLegalResearchTool_EmptyArgumentsSearchEmptyQuery(t *testing.T) {
	r := &fakeRetriever{passages: []retrieval.Passage{{Content: "x"}}}
	_, err := NewLegalResearchTool(r).Execute(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, []string{""}, r.queries)
}
