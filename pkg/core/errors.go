package core

import (
	"fmt"
)

// ExecutionError is a categorized failure. Copies made with the With*
// helpers keep the Code, so errors.Is against the predefined values still
// matches after a message or cause was attached.
type ExecutionError struct {
	Category ErrorCategory
	Code     string // element_not_found, wait_timeout, ...
	Message  string
	Details  map[string]interface{}
	Cause    error
}

func (e *ExecutionError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return fmt.Sprintf("%s: %v", e.Message, e.Cause)
}

func (e *ExecutionError) Unwrap() error { return e.Cause }

// Is matches by Code.
func (e *ExecutionError) Is(target error) bool {
	t, ok := target.(*ExecutionError)
	return ok && t.Code != "" && t.Code == e.Code
}

func (e *ExecutionError) clone() *ExecutionError {
	c := *e
	return &c
}

// WithCause returns a copy wrapping cause.
func (e *ExecutionError) WithCause(cause error) *ExecutionError {
	c := e.clone()
	c.Cause = cause
	return c
}

// WithMessage returns a copy with msg as its message.
func (e *ExecutionError) WithMessage(msg string) *ExecutionError {
	c := e.clone()
	c.Message = msg
	return c
}

// WithDetails returns a copy whose details are e's merged with details.
func (e *ExecutionError) WithDetails(details map[string]interface{}) *ExecutionError {
	c := e.clone()
	c.Details = make(map[string]interface{}, len(e.Details)+len(details))
	for k, v := range e.Details {
		c.Details[k] = v
	}
	for k, v := range details {
		c.Details[k] = v
	}
	return c
}

// NewExecutionError creates an ExecutionError.
func NewExecutionError(category ErrorCategory, code, message string) *ExecutionError {
	return &ExecutionError{Category: category, Code: code, Message: message}
}

var (
	ErrElementNotFound   = NewExecutionError(ErrCategoryAssertion, "element_not_found", "element not found")
	ErrAmountMismatch    = NewExecutionError(ErrCategoryAssertion, "amount_mismatch", "amount not found on screen")
	ErrWaitTimeout       = NewExecutionError(ErrCategoryTimeout, "wait_timeout", "wait condition timed out")
	ErrServerUnreachable = NewExecutionError(ErrCategoryConnection, "server_unreachable", "could not connect to automation server")
	ErrAppNotForeground  = NewExecutionError(ErrCategoryApp, "app_not_foreground", "application is not in the foreground")
	ErrInvalidConfig     = NewExecutionError(ErrCategoryConfig, "invalid_config", "invalid configuration")
	ErrMissingRequired   = NewExecutionError(ErrCategoryConfig, "missing_required", "missing required field")
)
