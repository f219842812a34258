package interact

import (
	"context"
	"fmt"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

// Condition is polled by WaitUntil. An error counts as "not yet" and is
// reported as the cause if the wait times out.
type Condition func() (bool, error)

// Stage names a readiness check of WaitForElement.
type Stage string

const (
	StageExists    Stage = "exist"
	StageDisplayed Stage = "be displayed"
	StageEnabled   Stage = "be enabled"
)

// WaitUntil polls cond every interval until it reports true or timeout
// elapses. cond is evaluated at least once.
func (i *Interactor) WaitUntil(ctx context.Context, cond Condition, timeout, interval time.Duration, msg string) error {
	deadline := i.clock.Now().Add(timeout)
	var lastErr error
	for {
		ok, err := cond()
		if ok && err == nil {
			return nil
		}
		if err != nil {
			lastErr = err
		}

		remaining := deadline.Sub(i.clock.Now())
		if remaining <= 0 {
			e := core.ErrWaitTimeout.WithMessage(fmt.Sprintf("%s (waited %s)", msg, timeout))
			if lastErr != nil {
				e = e.WithCause(lastErr)
			}
			return e
		}
		wait := interval
		if wait > remaining {
			wait = remaining
		}
		if err := i.clock.Sleep(ctx, wait); err != nil {
			return err
		}
	}
}

// WaitForElement waits until the target exists, is displayed and is
// enabled, then lets the UI settle. The returned handle has been observed
// enabled.
func (i *Interactor) WaitForElement(ctx context.Context, t Target, timeout time.Duration) (core.Element, error) {
	timeout = i.timeoutOr(timeout)
	el := t.Resolve(i.session)
	if err := i.waitReady(ctx, el, t.Name(), timeout); err != nil {
		return nil, err
	}
	return el, nil
}

func (i *Interactor) waitReady(ctx context.Context, el core.Element, name string, timeout time.Duration) error {
	stages := []struct {
		stage    Stage
		cond     Condition
		timeout  time.Duration
		interval time.Duration
	}{
		{StageExists, el.Exists, timeout, i.settings.PresenceInterval},
		{StageDisplayed, el.Displayed, timeout, i.settings.PresenceInterval},
		{StageEnabled, el.Enabled, timeout / 2, i.settings.EnabledInterval},
	}
	for _, s := range stages {
		msg := fmt.Sprintf("waitForElement: element %q did not %s", name, s.stage)
		if err := i.WaitUntil(ctx, s.cond, s.timeout, s.interval, msg); err != nil {
			return &ReadinessError{Selector: name, Stage: s.stage, Timeout: s.timeout, Cause: err}
		}
	}
	return i.clock.Sleep(ctx, i.settings.SettleAfterReady)
}

// IsElementDisplayed reports whether selector becomes present and displayed
// within timeout (ProbeTimeout when zero). It never fails; errors read as
// false.
func (i *Interactor) IsElementDisplayed(ctx context.Context, selector string, timeout time.Duration) bool {
	if timeout <= 0 {
		timeout = i.settings.ProbeTimeout
	}
	el := i.session.Element(selector)
	msg := fmt.Sprintf("element %q not displayed", selector)
	if err := i.WaitUntil(ctx, el.Exists, timeout, i.settings.PresenceInterval, msg); err != nil {
		logger.Debug("[interact] %s not present: %v", selector, err)
		return false
	}
	if err := i.WaitUntil(ctx, el.Displayed, timeout, i.settings.PresenceInterval, msg); err != nil {
		logger.Debug("[interact] %s not displayed: %v", selector, err)
		return false
	}
	return true
}

// WaitForDisplayed polls until selector is displayed without requiring
// enabled, for probes that act on whatever becomes visible first.
func (i *Interactor) WaitForDisplayed(ctx context.Context, selector string, timeout, interval time.Duration) (core.Element, error) {
	el := i.session.Element(selector)
	msg := fmt.Sprintf("element %q not displayed", selector)
	if err := i.WaitUntil(ctx, el.Displayed, timeout, interval, msg); err != nil {
		return nil, err
	}
	return el, nil
}
