package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lexiguard/lexiguard/internal/retrieval"
	"github.com/sashabaranov/go-openai/jsonschema"
)

const (
	// LegalResearchToolName is the name the model uses to call the compliance database.
	LegalResearchToolName = "legal_research_tool"

	// UnavailableMessage is returned when no index is configured.
	UnavailableMessage = "Legal database is currently unavailable."

	// NoPassagesMessage is returned when a configured index has no match.
	NoPassagesMessage = "No matching passages found for the given query."
)

// LegalResearchTool searches the ingested compliance database.
type LegalResearchTool struct {
	retriever retrieval.Retriever
}

// LegalResearchArgs represents the arguments for a database search
type LegalResearchArgs struct {
	Query string `json:"query"`
}

// NewLegalResearchTool wraps r. A nil r behaves like retrieval.Unavailable.
func NewLegalResearchTool(r retrieval.Retriever) *LegalResearchTool {
	if r == nil {
		r = retrieval.Unavailable{}
	}
	return &LegalResearchTool{retriever: r}
}

func (t *LegalResearchTool) Name() string {
	return LegalResearchToolName
}

func (t *LegalResearchTool) Description() string {
	return "Searches the compliance database for legal statutes, internal policies, and regulatory requirements."
}

func (t *LegalResearchTool) Parameters() json.RawMessage {
	return mustSchema(jsonschema.Definition{
		Type: jsonschema.Object,
		Properties: map[string]jsonschema.Definition{
			"query": {
				Type:        jsonschema.String,
				Description: "What to look up in the compliance database, phrased as a search query.",
			},
		},
		Required: []string{"query"},
	})
}

func (t *LegalResearchTool) Execute(ctx context.Context, args json.RawMessage) (ToolResult, error) {
	var searchArgs LegalResearchArgs
	if len(args) > 0 {
		if err := json.Unmarshal(args, &searchArgs); err != nil {
			return ToolResult{
				Content: fmt.Sprintf("Failed to parse search arguments: %v", err),
				IsError: true,
			}, nil
		}
	}

	if !retrieval.Available(t.retriever) {
		return ToolResult{Content: UnavailableMessage}, nil
	}

	passages, err := t.retriever.Search(ctx, searchArgs.Query)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ToolResult{}, ctxErr
		}
		return ToolResult{
			Content: fmt.Sprintf("Legal database search failed: %v", err),
			IsError: true,
		}, nil
	}
	if len(passages) == 0 {
		return ToolResult{Content: NoPassagesMessage}, nil
	}

	return ToolResult{Content: FormatPassages(passages)}, nil
}

// FormatPassages renders passages as numbered "Source Match" blocks.
func FormatPassages(passages []retrieval.Passage) string {
	blocks := make([]string, 0, len(passages))
	for i, p := range passages {
		blocks = append(blocks, fmt.Sprintf("Source Match %d:\n%s", i+1, p.Content))
	}
	return strings.Join(blocks, "\n\n")
}
