package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lexiguard/lexiguard/internal/grader"
	"github.com/lexiguard/lexiguard/internal/llm"
)

// ErrEmptyQuery is returned by Ask for a blank query.
var ErrEmptyQuery = errors.New("query is required")

// Agent answers one question in the context of prior turns.
type Agent interface {
	Ask(ctx context.Context, history []Turn, query string) (*Result, error)
}

// Deps are the collaborators of a LegalAgent.
type Deps struct {
	Generator Generator
	Invoker   Invoker
	Grader    grader.Grader
}

// LegalAgent runs the grounding loop for each question.
// Safe for concurrent use.
type LegalAgent struct {
	loop *Loop
}

// NewLegalAgent creates a new agent
func NewLegalAgent(deps Deps, opts ...LoopOption) (*LegalAgent, error) {
	if deps.Generator == nil {
		return nil, fmt.Errorf("generator is required")
	}
	if deps.Invoker == nil {
		return nil, fmt.Errorf("invoker is required")
	}
	if deps.Grader == nil {
		return nil, fmt.Errorf("grader is required")
	}
	return &LegalAgent{
		loop: NewLoop(deps.Generator, deps.Invoker, deps.Grader, opts...),
	}, nil
}

// Ask converts history, appends query as the newest user message and runs
// the loop on a fresh state.
func (a *LegalAgent) Ask(ctx context.Context, history []Turn, query string) (*Result, error) {
	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	messages := HistoryMessages(history)
	messages = append(messages, llm.Message{Role: llm.RoleUser, Content: query})
	return a.loop.Run(ctx, NewState(messages))
}

// HistoryMessages keeps user and assistant turns and drops the rest.
func HistoryMessages(history []Turn) []llm.Message {
	ret := make([]llm.Message, 0, len(history)+1)
	for _, turn := range history {
		switch turn.Role {
		case llm.RoleUser:
			ret = append(ret, llm.Message{Role: llm.RoleUser, Content: turn.Content})
		case llm.RoleAssistant:
			ret = append(ret, llm.Message{Role: llm.RoleAssistant, Content: turn.Content})
		}
	}
	return ret
}
