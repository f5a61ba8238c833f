package agent

import (
	"strings"

	"github.com/lexiguard/lexiguard/internal/llm"
)

// MaxGroundingAttempts is the number of answers generated for one
// question before the fallback answer is returned.
const MaxGroundingAttempts = 3

// DefaultMaxSteps bounds model invocations per question.
const DefaultMaxSteps = 25

// FallbackAnswer is returned when no answer passes the grounding check.
const FallbackAnswer = "I'm sorry, I could not find a grounded answer in the provided legal documents after multiple attempts."

// Stage is a node of the grounding loop.
type Stage int

const (
	StageAgent Stage = iota
	StageTools
	StageGrade
	StageIncrement
	StageFallback
	StageDone
)

func (s Stage) String() string {
	switch s {
	case StageAgent:
		return "agent"
	case StageTools:
		return "tools"
	case StageGrade:
		return "grade"
	case StageIncrement:
		return "increment"
	case StageFallback:
		return "fallback"
	case StageDone:
		return "done"
	default:
		return "unknown"
	}
}

// Outcome tells how a run ended.
type Outcome string

const (
	OutcomeGrounded Outcome = "grounded"
	OutcomeFallback Outcome = "fallback"
)

// State is the per-request conversation state.
//
// Messages is append-only during a run. Documents holds the raw text of
// every tool result in arrival order. LoopCount is the number of rejected
// answers that caused a retry.
type State struct {
	Messages  []llm.Message
	Documents []string
	LoopCount int
}

// NewState returns a fresh state seeded with a copy of history.
func NewState(history []llm.Message) *State {
	msgs := make([]llm.Message, len(history))
	copy(msgs, history)
	return &State{Messages: msgs}
}

// Last returns the most recent message.
func (s *State) Last() (llm.Message, bool) {
	if len(s.Messages) == 0 {
		return llm.Message{}, false
	}
	return s.Messages[len(s.Messages)-1], true
}

// JoinedDocuments returns the documents separated by blank lines.
func (s *State) JoinedDocuments() string {
	return strings.Join(s.Documents, "\n\n")
}

// Turn is one prior exchange supplied by the caller.
type Turn struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Result represents the result of one grounding run
type Result struct {
	// Answer is the content of the last message
	Answer string

	// Outcome is grounded unless the fallback answer was returned
	Outcome Outcome

	// LoopCount is the number of rejected answers that were retried
	LoopCount int

	// Steps is the number of model invocations
	Steps int

	// Trace lists every stage visited, ending with StageDone
	Trace []Stage

	// ToolCalls contains a record of all tool calls made during execution
	ToolCalls []ToolCallRecord
}

// ToolCallRecord records a single tool call
type ToolCallRecord struct {
	// ToolName is the name of the tool that was called
	ToolName string

	// CallID is the identifier of the request the result answers
	CallID string

	// IsError indicates if the tool execution resulted in an error
	IsError bool
}
