// Package grader decides whether a generated answer is supported by the
// retrieved documents.
package grader

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/lexiguard/lexiguard/internal/llm"
	"github.com/sashabaranov/go-openai/jsonschema"
)

// Verdict is the binary grounding score.
type Verdict string

const (
	VerdictYes Verdict = "yes"
	VerdictNo  Verdict = "no"
)

// Grounded reports whether v accepts the answer.
func (v Verdict) Grounded() bool {
	return v == VerdictYes
}

// ErrContractViolation is returned when the grading model answers with
// anything other than a valid binary score.
var ErrContractViolation = errors.New("grader output contract violation")

// Grader judges one generation against the joined documents.
type Grader interface {
	Grade(ctx context.Context, documents, generation string) (Verdict, error)
}

// Func adapts a plain function to Grader.
type Func func(ctx context.Context, documents, generation string) (Verdict, error)

func (f Func) Grade(ctx context.Context, documents, generation string) (Verdict, error) {
	return f(ctx, documents, generation)
}

const (
	systemPrompt = `You are a grader assessing whether an LLM generation is grounded in / supported by a set of retrieved facts. 
Give a binary score 'yes' or 'no'. 'Yes' means that the answer is grounded in / supported by the set of facts.
An empty set of facts supports no factual claim.`

	humanTemplate = "Set of facts: \n\n %s \n\n LLM generation: %s"

	schemaName = "grade_hallucination"
)

var verdictSchema = jsonschema.Definition{
	Type:        jsonschema.Object,
	Description: "Binary score for hallucination check in LLM generation.",
	Properties: map[string]jsonschema.Definition{
		"binary_score": {
			Type:        jsonschema.String,
			Description: "Answer is grounded in the facts, 'yes' or 'no'",
			Enum:        []string{string(VerdictYes), string(VerdictNo)},
		},
	},
	Required:             []string{"binary_score"},
	AdditionalProperties: false,
}

// LLMGrader grades with a chat model constrained to a JSON schema.
type LLMGrader struct {
	model llm.ChatModel
}

func NewLLMGrader(model llm.ChatModel) *LLMGrader {
	return &LLMGrader{model: model}
}

// Grade always runs at temperature 0. Model failures and contract
// violations are returned as errors.
func (g *LLMGrader) Grade(ctx context.Context, documents, generation string) (Verdict, error) {
	msg, err := g.model.Chat(ctx, BuildRequest(documents, generation))
	if err != nil {
		return "", fmt.Errorf("grading model call failed: %w", err)
	}
	return ParseVerdict(msg.Content)
}

// BuildRequest returns the grading request for documents and generation.
func BuildRequest(documents, generation string) llm.ChatRequest {
	return llm.ChatRequest{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: fmt.Sprintf(humanTemplate, documents, generation)},
		},
		Temperature: llm.Temperature(0),
		ResponseSchema: &llm.ResponseSchema{
			Name:   schemaName,
			Schema: &verdictSchema,
			Strict: true,
		},
	}
}

// ParseVerdict accepts only a JSON object whose binary_score is "yes" or
// "no", ignoring case and surrounding whitespace.
func ParseVerdict(content string) (Verdict, error) {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "", fmt.Errorf("%w: empty output", ErrContractViolation)
	}

	var out struct {
		BinaryScore *string `json:"binary_score"`
	}
	if err := json.Unmarshal([]byte(trimmed), &out); err != nil {
		return "", fmt.Errorf("%w: output is not a json object: %v", ErrContractViolation, err)
	}
	if out.BinaryScore == nil {
		return "", fmt.Errorf("%w: binary_score missing", ErrContractViolation)
	}

	switch Verdict(strings.ToLower(strings.TrimSpace(*out.BinaryScore))) {
	case VerdictYes:
		return VerdictYes, nil
	case VerdictNo:
		return VerdictNo, nil
	default:
		return "", fmt.Errorf("%w: binary_score %q", ErrContractViolation, *out.BinaryScore)
	}
}
