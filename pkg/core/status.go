package core

// TestStatus represents the execution status of a test
type TestStatus int

const (
	StatusPending TestStatus = iota // Not yet started
	StatusRunning                   // Currently executing
	StatusPassed                    // Completed successfully
	StatusFailed                    // Assertion or interaction failure
	StatusBroken                    // Unexpected error (infrastructure, session, device)
	StatusSkipped                   // Not run
)

// String returns the string representation of TestStatus
func (s TestStatus) String() string {
	switch s {
	case StatusPending:
		return "pending"
	case StatusRunning:
		return "running"
	case StatusPassed:
		return "passed"
	case StatusFailed:
		return "failed"
	case StatusBroken:
		return "broken"
	case StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

// IsTerminal returns true if the status is a final state
func (s TestStatus) IsTerminal() bool {
	switch s {
	case StatusPassed, StatusFailed, StatusBroken, StatusSkipped:
		return true
	default:
		return false
	}
}

// IsSuccess returns true if the status indicates success
func (s TestStatus) IsSuccess() bool {
	return s == StatusPassed
}

// ErrorCategory classifies the type of error for better debugging and reporting
type ErrorCategory int

const (
	ErrCategoryNone        ErrorCategory = iota // No error
	ErrCategoryAssertion                        // Amount mismatch, element not found, visibility check failed
	ErrCategoryTimeout                          // Wait exhausted its timeout
	ErrCategoryConnection                       // Device/server connection lost
	ErrCategoryApp                              // App crashed, not responding, not installed
	ErrCategoryConfig                           // Invalid configuration, missing required field
	ErrCategoryInteraction                      // Element was ready but the action failed
	ErrCategoryRecovery                         // Recovery strategy step failed
)

// String returns the string representation of ErrorCategory
func (c ErrorCategory) String() string {
	switch c {
	case ErrCategoryNone:
		return "none"
	case ErrCategoryAssertion:
		return "assertion"
	case ErrCategoryTimeout:
		return "timeout"
	case ErrCategoryConnection:
		return "connection"
	case ErrCategoryApp:
		return "app"
	case ErrCategoryConfig:
		return "config"
	case ErrCategoryInteraction:
		return "interaction"
	case ErrCategoryRecovery:
		return "recovery"
	default:
		return "unknown"
	}
}
