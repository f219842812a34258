package interact

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode"

	"github.com/whiteswan/mobile-e2e/pkg/core"
)

// Interaction methods recorded in InteractionError.Method.
const (
	MethodClick           = "click"
	MethodSetValue        = "setValue"
	MethodTypeDigits      = "typeDigits"
	MethodScrollAndClick  = "scrollAndClick"
	MethodScrollToElement = "scrollToElement"
)

// InteractionError is returned when an interaction on an element fails.
// It carries the selector, the operation and a best-effort snapshot of the
// element's state at failure time.
type InteractionError struct {
	Selector    string
	Method      string
	ElementInfo string
	Value       string
	HasValue    bool
	Direction   string
	NotFound    bool // Element never appeared during a scroll search
	Cause       error
}

func (e *InteractionError) Error() string {
	title := capitalize(e.Method)
	if e.NotFound {
		return fmt.Sprintf("%s failed: element %q not found after scrolling %s", title, e.Selector, e.Direction)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "%s failed for element %q in method %q", title, e.Selector, e.Method)
	if e.HasValue {
		fmt.Fprintf(&sb, "\nValue: %q", e.Value)
	}
	if e.Direction != "" {
		fmt.Fprintf(&sb, "\nDirection: %s", e.Direction)
	}
	if e.ElementInfo != "" {
		fmt.Fprintf(&sb, "\nElement info: %s", e.ElementInfo)
	}
	if e.Cause != nil {
		fmt.Fprintf(&sb, "\nOriginal error: %v", e.Cause)
	}
	return sb.String()
}

func (e *InteractionError) Unwrap() error {
	return e.Cause
}

// ReadinessError reports which readiness stage of WaitForElement timed out.
type ReadinessError struct {
	Selector string
	Stage    Stage
	Timeout  time.Duration
	Cause    error
}

func (e *ReadinessError) Error() string {
	msg := fmt.Sprintf("waitForElement: element %q did not %s within %s", e.Selector, e.Stage, e.Timeout)
	var timeout *core.ExecutionError
	switch {
	case e.Cause == nil:
	case errors.As(e.Cause, &timeout) && timeout.Cause != nil:
		msg += ": last error: " + timeout.Cause.Error()
	case timeout == nil:
		msg += ": " + e.Cause.Error()
	}
	return msg
}

func (e *ReadinessError) Unwrap() error {
	return e.Cause
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	r[0] = unicode.ToUpper(r[0])
	return string(r)
}
