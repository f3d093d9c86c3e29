package domain

import (
	"context"
	"errors"
	"fmt"
)

// ErrorKind classifies why a handler invocation failed. Handler failures are
// always converted into a failed DispatchResult, never propagated raw.
type ErrorKind string

const (
	ErrInvalidParameters ErrorKind = "invalid_parameters"
	ErrExecution         ErrorKind = "execution_error"
	ErrTimeout           ErrorKind = "timeout"
	ErrUnavailable       ErrorKind = "unavailable"
)

// HandlerError carries a structured failure kind out of a capability handler.
type HandlerError struct {
	Kind    ErrorKind
	Message string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func NewHandlerError(kind ErrorKind, format string, args ...any) *HandlerError {
	return &HandlerError{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// ClassifyError maps an arbitrary handler error to its kind. Deadline
// expiry becomes timeout; anything unstructured is an execution error.
func ClassifyError(err error) (ErrorKind, string) {
	var he *HandlerError
	if errors.As(err, &he) {
		return he.Kind, he.Message
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrTimeout, "handler did not return before the invocation deadline"
	}
	if errors.Is(err, context.Canceled) {
		return ErrTimeout, "handler invocation canceled"
	}
	return ErrExecution, err.Error()
}
