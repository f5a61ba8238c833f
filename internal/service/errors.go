package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/lexiguard/lexiguard/internal/agent"
	"github.com/lexiguard/lexiguard/internal/grader"
	"github.com/lexiguard/lexiguard/pkg/log"
)

type ErrorType int

const (
	ErrConfig ErrorType = iota
	ErrValidation
	ErrModel
	ErrGrading
	ErrAdapter
	ErrIndex
	ErrUnknown
)

// Error is a classified failure with optional context for logs.
type Error struct {
	Type    ErrorType
	Message string
	Context map[string]any
	Cause   error
}

func NewError(errorType ErrorType, message string) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
	}
}

func NewErrorWithCause(errorType ErrorType, message string, cause error) *Error {
	return &Error{
		Type:    errorType,
		Message: message,
		Context: make(map[string]any),
		Cause:   cause,
	}
}

func (e *Error) Error() string {
	var parts []string
	parts = append(parts, fmt.Sprintf("[%s] %s", e.Type.String(), e.Message))

	if len(e.Context) > 0 {
		keys := make([]string, 0, len(e.Context))
		for k := range e.Context {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		ctxParts := make([]string, 0, len(keys))
		for _, k := range keys {
			ctxParts = append(ctxParts, fmt.Sprintf("%s=%v", k, e.Context[k]))
		}
		parts = append(parts, fmt.Sprintf("context: %s", strings.Join(ctxParts, ", ")))
	}

	if e.Cause != nil {
		parts = append(parts, fmt.Sprintf("cause: %v", e.Cause))
	}

	return strings.Join(parts, " | ")
}

func (e *Error) Unwrap() error {
	return e.Cause
}

func (e *Error) WithContext(key string, value any) *Error {
	e.Context[key] = value
	return e
}

func (t ErrorType) String() string {
	switch t {
	case ErrConfig:
		return "Config"
	case ErrValidation:
		return "Validation"
	case ErrModel:
		return "Model"
	case ErrGrading:
		return "Grading"
	case ErrAdapter:
		return "Adapter"
	case ErrIndex:
		return "Index"
	default:
		return "Unknown"
	}
}

// GetAdvice returns error handling advice
func GetAdvice(err *Error) string {
	switch err.Type {
	case ErrConfig:
		return "Please check that configuration files or environment variables are set correctly"
	case ErrValidation:
		return "Please verify the request: the query must not be empty"
	case ErrModel:
		return "Please check the LLM API key, model name and network connectivity, or review the provider status"
	case ErrGrading:
		return "The grading model returned an unusable verdict; check that the grader model supports structured output"
	case ErrAdapter:
		return "An external legal source failed; the answer was produced without it"
	case ErrIndex:
		return "Please check the document index: run ingestion or verify the vector database is reachable"
	default:
		return "Please review detailed error information and check relevant configuration"
	}
}

// Handle logs err with advice when it is classified.
func Handle(err error) bool {
	var svcErr *Error
	if !errors.As(err, &svcErr) {
		log.Error("Unknown Error: %v", err)
		return false
	}
	log.Error("Error Detail: %v\n advice: %s", err, GetAdvice(svcErr))
	return true
}

func IsErrorType(err error, errorType ErrorType) bool {
	var svcErr *Error
	if errors.As(err, &svcErr) {
		return svcErr.Type == errorType
	}
	return false
}

func WrapError(err error, errorType ErrorType, message string) *Error {
	return NewErrorWithCause(errorType, message, err)
}

// Classify maps err to an ErrorType, recognizing the agent's sentinels.
func Classify(err error) ErrorType {
	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		return svcErr.Type
	case errors.Is(err, agent.ErrEmptyQuery):
		return ErrValidation
	case errors.Is(err, agent.ErrGrading), errors.Is(err, grader.ErrContractViolation):
		return ErrGrading
	case errors.Is(err, agent.ErrGeneration), errors.Is(err, agent.ErrStepLimit):
		return ErrModel
	default:
		return ErrUnknown
	}
}

// HTTPStatus returns the response status for err.
func HTTPStatus(err error) int {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout
	}
	switch Classify(err) {
	case ErrValidation:
		return http.StatusBadRequest
	case ErrModel, ErrGrading:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func SafeExecute(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewError(ErrUnknown, fmt.Sprintf("runtime error: %v", r))
		}
	}()

	return fn()
}
