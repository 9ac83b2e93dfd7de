// ABOUTME: Error taxonomy for the recommendation pipeline
// ABOUTME: Sentinel kinds plus OpError so callers can match with errors.Is
package models

import (
	"context"
	"errors"
	"fmt"
)

// Error kinds. Every failure surfaced by the pipeline wraps exactly one of these.
var (
	ErrStoreUnavailable = errors.New("vector store unavailable")
	ErrEmbedding        = errors.New("embedding failed")
	ErrGeneration       = errors.New("generation failed")
	ErrTimeout          = errors.New("external call timed out")
	ErrInvalidInput     = errors.New("invalid input")
)

// OpError records the operation that failed, its kind, and the underlying cause
type OpError struct {
	Op   string
	Kind error
	Err  error
}

// NewOpError builds an OpError, promoting deadline errors to ErrTimeout
func NewOpError(op string, kind error, err error) *OpError {
	if errors.Is(err, context.DeadlineExceeded) {
		kind = ErrTimeout
	}
	return &OpError{Op: op, Kind: kind, Err: err}
}

func (e *OpError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is and errors.As
func (e *OpError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// HasKind reports whether err already carries one of the pipeline error kinds
func HasKind(err error) bool {
	return Kind(err) != "internal"
}

// Kind maps an error to a stable identifier for transports (HTTP, MCP, CLI)
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrTimeout):
		return "timeout"
	case errors.Is(err, ErrStoreUnavailable):
		return "store_unavailable"
	case errors.Is(err, ErrEmbedding):
		return "embedding_error"
	case errors.Is(err, ErrGeneration):
		return "generation_error"
	case errors.Is(err, ErrInvalidInput):
		return "invalid_input"
	default:
		return "internal"
	}
}
