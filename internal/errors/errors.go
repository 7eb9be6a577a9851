package errors

import (
	stderrors "errors"
	"fmt"
)

// ErrorCode represents a mapreview error code.
type ErrorCode string

const (
	ErrInvalidRequest     ErrorCode = "INVALID_REQUEST"      // 400
	ErrNotFound           ErrorCode = "NOT_FOUND"            // 404
	ErrFileNotFound       ErrorCode = "FILE_NOT_FOUND"       // 404
	ErrNoSession          ErrorCode = "NO_SESSION"           // 409
	ErrUndecidedItems     ErrorCode = "UNDECIDED_ITEMS"      // 409
	ErrDecisionNotAllowed ErrorCode = "DECISION_NOT_ALLOWED" // 422
	ErrLoopRunning        ErrorCode = "LOOP_RUNNING"         // 409
	ErrCancelled          ErrorCode = "CANCELLED"            // 499
	ErrUpstream           ErrorCode = "UPSTREAM"             // 502
	ErrInternal           ErrorCode = "INTERNAL"             // 500
)

// ReviewError represents a structured error with code, status, and details.
type ReviewError struct {
	Code    ErrorCode
	Status  int
	Message string
	Details map[string]any
}

// Error implements the error interface.
func (e *ReviewError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidRequest creates a 400 error for invalid request parameters.
func NewInvalidRequest(msg string) *ReviewError {
	return &ReviewError{
		Code:    ErrInvalidRequest,
		Status:  400,
		Message: msg,
	}
}

// NewNotFound creates a 404 error for a missing queue item.
func NewNotFound(identifier string) *ReviewError {
	return &ReviewError{
		Code:    ErrNotFound,
		Status:  404,
		Message: fmt.Sprintf("item not found: %s", identifier),
		Details: map[string]any{"identifier": identifier},
	}
}

// NewFileNotFound creates a 404 error for a missing import file.
func NewFileNotFound(path string) *ReviewError {
	return &ReviewError{
		Code:    ErrFileNotFound,
		Status:  404,
		Message: fmt.Sprintf("file not found: %s", path),
		Details: map[string]any{"path": path},
	}
}

// NewNoSession creates a 409 error for operations that need an active session.
func NewNoSession() *ReviewError {
	return &ReviewError{
		Code:    ErrNoSession,
		Status:  409,
		Message: "no active review session",
	}
}

// NewUndecidedItems creates a 409 error listing the items still waiting for a decision.
func NewUndecidedItems(mapcodes []string) *ReviewError {
	return &ReviewError{
		Code:    ErrUndecidedItems,
		Status:  409,
		Message: fmt.Sprintf("cannot finish review: %d item(s) without a decision", len(mapcodes)),
		Details: map[string]any{"remaining": len(mapcodes), "mapcodes": mapcodes},
	}
}

// NewDecisionNotAllowed creates a 422 error when a decision is outside the category policy.
func NewDecisionNotAllowed(decision, category string) *ReviewError {
	return &ReviewError{
		Code:    ErrDecisionNotAllowed,
		Status:  422,
		Message: fmt.Sprintf("decision %q is not allowed for category %s", decision, category),
		Details: map[string]any{"decision": decision, "category": category},
	}
}

// NewLoopRunning creates a 409 error for actions that require the mass-action loop to be paused.
func NewLoopRunning(action string) *ReviewError {
	return &ReviewError{
		Code:    ErrLoopRunning,
		Status:  409,
		Message: fmt.Sprintf("pause the mass action before: %s", action),
		Details: map[string]any{"action": action},
	}
}

// NewCancelled creates a 499 error when an operation is cancelled.
func NewCancelled(operation string) *ReviewError {
	return &ReviewError{
		Code:    ErrCancelled,
		Status:  499,
		Message: fmt.Sprintf("%s cancelled", operation),
	}
}

// NewUpstream creates a 502 error for failures reported by a remote service.
func NewUpstream(service string, err error) *ReviewError {
	msg := service + " failed"
	if err != nil {
		msg = fmt.Sprintf("%s failed: %v", service, err)
	}
	return &ReviewError{
		Code:    ErrUpstream,
		Status:  502,
		Message: msg,
		Details: map[string]any{"service": service},
	}
}

// NewInternal creates a 500 error for unexpected internal errors.
func NewInternal(err error) *ReviewError {
	msg := "internal error"
	if err != nil {
		msg = err.Error()
	}
	return &ReviewError{
		Code:    ErrInternal,
		Status:  500,
		Message: msg,
	}
}

// Is checks if an error is a ReviewError with the given code.
// Wrapped errors are unwrapped.
func Is(err error, code ErrorCode) bool {
	var rErr *ReviewError
	if stderrors.As(err, &rErr) {
		return rErr.Code == code
	}
	return false
}
