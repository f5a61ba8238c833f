package agent

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lexiguard/lexiguard/internal/grader"
	"github.com/lexiguard/lexiguard/internal/llm"
	"github.com/lexiguard/lexiguard/pkg/log"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

var (
	// ErrGeneration wraps failures of the generation model.
	ErrGeneration = errors.New("generation failed")
	// ErrGrading wraps failures of the grading model.
	ErrGrading = errors.New("grading failed")
	// ErrStepLimit is returned when a run exceeds its model invocation budget.
	ErrStepLimit = errors.New("step limit exceeded")
)

// Loop is the grounded-generation state machine. A Loop holds no
// per-request data and may run many States concurrently.
type Loop struct {
	generator Generator
	invoker   Invoker
	grader    grader.Grader
	maxSteps  int
	metrics   *Metrics
	tracer    trace.Tracer
}

// LoopOption configures a Loop.
type LoopOption func(*Loop)

// WithMaxSteps bounds model invocations per run. Values below
// MaxGroundingAttempts are raised to it.
func WithMaxSteps(n int) LoopOption {
	return func(l *Loop) {
		if n <= 0 {
			n = DefaultMaxSteps
		}
		l.maxSteps = max(n, MaxGroundingAttempts)
	}
}

func WithMetrics(m *Metrics) LoopOption {
	return func(l *Loop) {
		l.metrics = m
	}
}

func WithTracer(t trace.Tracer) LoopOption {
	return func(l *Loop) {
		if t != nil {
			l.tracer = t
		}
	}
}

func NewLoop(gen Generator, inv Invoker, gr grader.Grader, opts ...LoopOption) *Loop {
	l := &Loop{
		generator: gen,
		invoker:   inv,
		grader:    gr,
		maxSteps:  DefaultMaxSteps,
		tracer:    otel.Tracer("lexiguard/agent"),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// route picks the stage that follows a generated message.
func route(msg llm.Message) Stage {
	switch msg.Kind() {
	case llm.KindToolRequest:
		return StageTools
	case llm.KindText:
		return StageGrade
	default:
		return StageGrade
	}
}

// nextAfterGrade picks the stage that follows a verdict.
func nextAfterGrade(v grader.Verdict, loopCount int) Stage {
	if v.Grounded() {
		return StageDone
	}
	if loopCount >= MaxGroundingAttempts-1 {
		return StageFallback
	}
	return StageIncrement
}

// Run drives state from StageAgent to StageDone. The state is mutated in
// place; on error it holds everything appended before the failure.
func (l *Loop) Run(ctx context.Context, state *State) (*Result, error) {
	ctx, span := l.tracer.Start(ctx, "agent.Run")
	defer span.End()

	result := &Result{}
	stage := StageAgent

	for stage != StageDone {
		if err := ctx.Err(); err != nil {
			return nil, l.fail(span, fmt.Errorf("grounding loop cancelled before %s: %w", stage, err))
		}
		result.Trace = append(result.Trace, stage)

		var err error
		switch stage {
		case StageAgent:
			stage, err = l.generate(ctx, state, result)
		case StageTools:
			stage, err = l.runTools(ctx, state, result)
		case StageGrade:
			stage, err = l.grade(ctx, state, result)
		case StageIncrement:
			state.LoopCount++
			l.metrics.observeRetry()
			stage = StageAgent
		case StageFallback:
			state.Messages = append(state.Messages, llm.Message{Role: llm.RoleAssistant, Content: FallbackAnswer})
			result.Outcome = OutcomeFallback
			stage = StageDone
		default:
			err = fmt.Errorf("unknown stage %d", stage)
		}
		if err != nil {
			return nil, l.fail(span, err)
		}
	}
	result.Trace = append(result.Trace, StageDone)

	last, _ := state.Last()
	result.Answer = last.Content
	result.LoopCount = state.LoopCount

	l.metrics.observeRun(string(result.Outcome))
	span.SetAttributes(
		attribute.String("outcome", string(result.Outcome)),
		attribute.Int("loop_count", result.LoopCount),
		attribute.Int("steps", result.Steps),
	)
	return result, nil
}

func (l *Loop) fail(span trace.Span, err error) error {
	l.metrics.observeRun("error")
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

func (l *Loop) generate(ctx context.Context, state *State, result *Result) (Stage, error) {
	if result.Steps >= l.maxSteps {
		return StageDone, fmt.Errorf("%w: %d model invocations", ErrStepLimit, result.Steps)
	}
	result.Steps++

	ctx, span := l.tracer.Start(ctx, "agent.generate", trace.WithAttributes(
		attribute.Int("step", result.Steps),
		attribute.Int("loop_count", state.LoopCount),
	))
	defer span.End()

	start := time.Now()
	msg, err := l.generator.Generate(ctx, state.Messages)
	l.metrics.observeGeneration(time.Since(start))
	if err != nil {
		span.RecordError(err)
		return StageDone, fmt.Errorf("%w: %w", ErrGeneration, err)
	}

	state.Messages = append(state.Messages, msg)
	next := route(msg)
	span.SetAttributes(attribute.String("kind", msg.Kind().String()))
	log.Debug("Generation step %d produced %s, next stage %s", result.Steps, msg.Kind(), next)
	return next, nil
}

func (l *Loop) runTools(ctx context.Context, state *State, result *Result) (Stage, error) {
	last, _ := state.Last()
	calls := last.ToolCalls

	ctx, span := l.tracer.Start(ctx, "agent.tools", trace.WithAttributes(
		attribute.Int("calls", len(calls)),
	))
	defer span.End()

	invocations, err := l.invoker.Invoke(ctx, calls)
	if err != nil {
		span.RecordError(err)
		return StageDone, fmt.Errorf("tool invocation: %w", err)
	}
	if len(invocations) != len(calls) {
		return StageDone, fmt.Errorf("tool invocation returned %d results for %d calls", len(invocations), len(calls))
	}

	for i, inv := range invocations {
		// Results are paired with the requested call regardless of what the invoker echoed.
		inv.Call = calls[i]
		state.Messages = append(state.Messages, inv.Message())
		state.Documents = append(state.Documents, inv.Content)
		result.ToolCalls = append(result.ToolCalls, ToolCallRecord{
			ToolName: inv.Call.Name,
			CallID:   inv.Call.ID,
			IsError:  inv.IsError,
		})
		l.metrics.observeToolCall(inv.Call.Name, inv.IsError)
	}
	return StageAgent, nil
}

func (l *Loop) grade(ctx context.Context, state *State, result *Result) (Stage, error) {
	ctx, span := l.tracer.Start(ctx, "agent.grade", trace.WithAttributes(
		attribute.Int("loop_count", state.LoopCount),
		attribute.Int("documents", len(state.Documents)),
	))
	defer span.End()

	last, _ := state.Last()
	verdict, err := l.grader.Grade(ctx, state.JoinedDocuments(), last.Content)
	if err != nil {
		span.RecordError(err)
		return StageDone, fmt.Errorf("%w: %w", ErrGrading, err)
	}
	l.metrics.observeVerdict(string(verdict))
	span.SetAttributes(attribute.String("verdict", string(verdict)))

	next := nextAfterGrade(verdict, state.LoopCount)
	switch next {
	case StageDone:
		result.Outcome = OutcomeGrounded
		log.Info("Response validated as grounded in source material")
	case StageFallback:
		log.Warn("Maximum grounding attempts exceeded, returning fallback answer")
	case StageIncrement:
		log.Warn("Hallucination detected. Re-attempting grounding (Attempt %d/%d)", state.LoopCount+1, MaxGroundingAttempts)
	}
	return next, nil
}
