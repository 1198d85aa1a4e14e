package errors

import (
	stderrors "errors"
	"fmt"
)

// Error codes
const (
	CodeParseFault = "PARSE_FAULT"
	CodeSink       = "SINK_ERROR"
	CodeAPIError   = "API_ERROR"
	CodeValidation = "VALIDATION_ERROR"
	CodeCache      = "CACHE_ERROR"
	CodeNotFound   = "NOT_FOUND"
)

type BotError struct {
	Message    string
	Code       string
	StatusCode int
	Context    map[string]any
	Cause      error
}

func (e *BotError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *BotError) Unwrap() error {
	return e.Cause
}

func (e *BotError) WithCause(cause error) *BotError {
	e.Cause = cause
	return e
}

// ParseError reports that linguistic analysis could not process an input.
// It is recovered at the dialogue boundary and never mutates conversation state.
type ParseError struct {
	*BotError
	Input string
}

func NewParseError(message, input string, cause error) *ParseError {
	return &ParseError{
		BotError: &BotError{
			Message:    message,
			Code:       CodeParseFault,
			StatusCode: 422,
			Context: map[string]any{
				"input": input,
			},
			Cause: cause,
		},
		Input: input,
	}
}

// SinkError reports a persistence failure from the order sink.
type SinkError struct {
	*BotError
	Operation string
}

func NewSinkError(message, operation string, cause error) *SinkError {
	return &SinkError{
		BotError: &BotError{
			Message:    message,
			Code:       CodeSink,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
			},
			Cause: cause,
		},
		Operation: operation,
	}
}

type APIError struct {
	*BotError
}

func NewAPIError(message string, statusCode int, context map[string]any) *APIError {
	return &APIError{
		BotError: &BotError{
			Message:    message,
			Code:       CodeAPIError,
			StatusCode: statusCode,
			Context:    context,
		},
	}
}

type ValidationError struct {
	*BotError
	Field string
	Value interface{}
}

func NewValidationError(message, field string, value interface{}) *ValidationError {
	return &ValidationError{
		BotError: &BotError{
			Message:    message,
			Code:       CodeValidation,
			StatusCode: 400,
			Context: map[string]any{
				"field": field,
				"value": value,
			},
		},
		Field: field,
		Value: value,
	}
}

type CacheError struct {
	*BotError
	Operation string
	Key       string
}

func NewCacheError(message, operation, key string, cause error) *CacheError {
	return &CacheError{
		BotError: &BotError{
			Message:    message,
			Code:       CodeCache,
			StatusCode: 500,
			Context: map[string]any{
				"operation": operation,
				"key":       key,
			},
			Cause: cause,
		},
		Operation: operation,
		Key:       key,
	}
}

// NotFoundError reports that a lookup produced no result. It is an expected
// outcome, rendered as a friendly reply rather than logged as a failure.
type NotFoundError struct {
	*BotError
	Resource string
	Query    string
}

func NewNotFoundError(resource, query string) *NotFoundError {
	return &NotFoundError{
		BotError: &BotError{
			Message:    fmt.Sprintf("%s not found", resource),
			Code:       CodeNotFound,
			StatusCode: 404,
			Context: map[string]any{
				"resource": resource,
				"query":    query,
			},
		},
		Resource: resource,
		Query:    query,
	}
}

// AsNotFound reports whether err is (or wraps) a NotFoundError.
func AsNotFound(err error) bool {
	var nf *NotFoundError
	return stderrors.As(err, &nf)
}
