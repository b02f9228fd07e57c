package traverse

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes traversal failures.
type ErrorCode string

const (
	// ErrCodeMalformedDocument indicates a missing start branch or a step
	// referencing a branch the document does not define.
	ErrCodeMalformedDocument ErrorCode = "MALFORMED_DOCUMENT"

	// ErrCodeTraversalOverflow indicates the visit ceiling was exceeded.
	ErrCodeTraversalOverflow ErrorCode = "TRAVERSAL_OVERFLOW"
)

// Error is a per-pipeline traversal failure.
//
// Both codes abort the walk of one pipeline only. Callers record the
// failure and continue with the remaining pipelines.
type Error struct {
	// Code identifies the failure category.
	Code ErrorCode

	// Message is a human-readable description.
	Message string

	// Pipeline identifies the affected pipeline (file name).
	Pipeline string

	// Branch is the branch that could not be resolved (malformed only).
	Branch string

	// Details contains additional context.
	Details map[string]string
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Pipeline != "" {
		return fmt.Sprintf("%s: %s (pipeline=%s)", e.Code, e.Message, e.Pipeline)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsMalformed reports whether err is a MALFORMED_DOCUMENT error.
func IsMalformed(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == ErrCodeMalformedDocument
	}
	return false
}

// IsOverflow reports whether err is a TRAVERSAL_OVERFLOW error.
func IsOverflow(err error) bool {
	var te *Error
	if errors.As(err, &te) {
		return te.Code == ErrCodeTraversalOverflow
	}
	return false
}

// NewMissingBranchError creates a MALFORMED_DOCUMENT error for a branch
// referenced by step (or the start branch when step is empty).
func NewMissingBranchError(pipeline, branch, step string) *Error {
	msg := fmt.Sprintf("branch %q is not defined", branch)
	details := map[string]string{"branch": branch}
	if step != "" {
		msg = fmt.Sprintf("branch %q referenced by step %q is not defined", branch, step)
		details["step"] = step
	}
	return &Error{
		Code:     ErrCodeMalformedDocument,
		Message:  msg,
		Pipeline: pipeline,
		Branch:   branch,
		Details:  details,
	}
}

// NewMalformedError creates a MALFORMED_DOCUMENT error with a free-form reason.
func NewMalformedError(pipeline, reason string) *Error {
	return &Error{
		Code:     ErrCodeMalformedDocument,
		Message:  reason,
		Pipeline: pipeline,
	}
}

// NewOverflowError creates a TRAVERSAL_OVERFLOW error. pending is the
// number of queued nodes counted against the ceiling, zero when the
// ceiling was passed by visits alone.
func NewOverflowError(pipeline string, visits, pending, maxVisits int) *Error {
	return &Error{
		Code:     ErrCodeTraversalOverflow,
		Message:  fmt.Sprintf("visited more than %d nodes", maxVisits),
		Pipeline: pipeline,
		Details: map[string]string{
			"visits":     fmt.Sprintf("%d", visits),
			"pending":    fmt.Sprintf("%d", pending),
			"max_visits": fmt.Sprintf("%d", maxVisits),
		},
	}
}
