// Package interact wraps element queries and actions in readiness gates,
// bounded polling and settle delays, so tests tolerate the flaky timing of
// a React Native UI.
package interact

import (
	"context"
	"fmt"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
	"github.com/whiteswan/mobile-e2e/pkg/metrics"
)

// Settings holds the timing knobs of an Interactor.
type Settings struct {
	DefaultTimeout time.Duration // WaitForElement and action budget
	ProbeTimeout   time.Duration // IsElementDisplayed budget
	ClickPollCap   time.Duration // Upper bound of the pre-click clickable poll

	PresenceInterval time.Duration // exists/displayed poll interval
	EnabledInterval  time.Duration // enabled/clickable poll interval

	SettleAfterReady time.Duration
	SettleAfterClick time.Duration
	FocusPause       time.Duration // after focus click, value set and Enter
	DigitFocusPause  time.Duration
	KeyPause         time.Duration // between digits
}

// DefaultSettings returns the timings the app's screens were tuned against.
func DefaultSettings() Settings {
	return Settings{
		DefaultTimeout:   20 * time.Second,
		ProbeTimeout:     7 * time.Second,
		ClickPollCap:     7 * time.Second,
		PresenceInterval: 500 * time.Millisecond,
		EnabledInterval:  300 * time.Millisecond,
		SettleAfterReady: 150 * time.Millisecond,
		SettleAfterClick: 250 * time.Millisecond,
		FocusPause:       200 * time.Millisecond,
		DigitFocusPause:  150 * time.Millisecond,
		KeyPause:         120 * time.Millisecond,
	}
}

// Target identifies the element an operation acts on: either a selector
// resolved through the session or an existing handle.
type Target struct {
	selector string
	element  core.Element
}

// By targets the element matching selector.
func By(selector string) Target {
	return Target{selector: selector}
}

// Handle targets an element handle obtained elsewhere.
func Handle(el core.Element) Target {
	return Target{element: el}
}

// Name is the selector used in errors and logs. Handles without a selector
// are reported as "<element>".
func (t Target) Name() string {
	if t.selector != "" {
		return t.selector
	}
	if t.element != nil && t.element.Selector() != "" {
		return t.element.Selector()
	}
	return "<element>"
}

// Resolve returns the handle, looking the selector up through s when needed.
func (t Target) Resolve(s core.Session) core.Element {
	if t.element != nil {
		return t.element
	}
	return s.Element(t.selector)
}

// Interactor performs resilient element interactions against one session.
type Interactor struct {
	session  core.Session
	clock    core.Clock
	settings Settings
}

// New creates an Interactor. A nil clock means the system clock.
func New(session core.Session, clock core.Clock, settings Settings) *Interactor {
	if clock == nil {
		clock = core.SystemClock
	}
	return &Interactor{session: session, clock: clock, settings: settings}
}

// Session returns the underlying session.
func (i *Interactor) Session() core.Session { return i.session }

// Clock returns the clock used for polling and pauses.
func (i *Interactor) Clock() core.Clock { return i.clock }

// Settings returns the interactor's timings.
func (i *Interactor) Settings() Settings { return i.settings }

// Pause sleeps for d on the interactor's clock.
func (i *Interactor) Pause(ctx context.Context, d time.Duration) error {
	return i.clock.Sleep(ctx, d)
}

func (i *Interactor) timeoutOr(timeout time.Duration) time.Duration {
	if timeout <= 0 {
		return i.settings.DefaultTimeout
	}
	return timeout
}

// Click waits for the target to be ready, re-checks displayed and enabled
// right before tapping, clicks and lets the UI settle.
func (i *Interactor) Click(ctx context.Context, t Target, timeout time.Duration) (err error) {
	timeout = i.timeoutOr(timeout)
	el := t.Resolve(i.session)
	defer func() { metrics.RecordInteraction(MethodClick, err) }()

	logger.Debug("[interact] click %s", t.Name())
	if err := i.click(ctx, el, t.Name(), timeout); err != nil {
		return i.interactionError(MethodClick, t, el, err)
	}
	return nil
}

func (i *Interactor) click(ctx context.Context, el core.Element, name string, timeout time.Duration) error {
	if err := i.waitReady(ctx, el, name, timeout); err != nil {
		return err
	}
	poll := timeout / 2
	if poll > i.settings.ClickPollCap {
		poll = i.settings.ClickPollCap
	}
	if err := i.WaitUntil(ctx, displayedAndEnabled(el), poll, i.settings.EnabledInterval,
		"element is not displayed and enabled"); err != nil {
		return err
	}
	if err := el.Click(); err != nil {
		return err
	}
	return i.clock.Sleep(ctx, i.settings.SettleAfterClick)
}

// SetValue focuses the target, replaces its value and submits with Enter.
func (i *Interactor) SetValue(ctx context.Context, t Target, value string, timeout time.Duration) (err error) {
	timeout = i.timeoutOr(timeout)
	el := t.Resolve(i.session)
	defer func() { metrics.RecordInteraction(MethodSetValue, err) }()

	logger.Debug("[interact] setValue %s", t.Name())
	if err := i.setValue(ctx, el, t.Name(), value, timeout); err != nil {
		ie := i.interactionError(MethodSetValue, t, el, err)
		ie.Value = value
		ie.HasValue = true
		return ie
	}
	return nil
}

func (i *Interactor) setValue(ctx context.Context, el core.Element, name, value string, timeout time.Duration) error {
	if err := i.waitReady(ctx, el, name, timeout); err != nil {
		return err
	}
	if err := i.WaitUntil(ctx, displayedAndEnabled(el), timeout/2, i.settings.EnabledInterval,
		"element is not displayed and enabled"); err != nil {
		return err
	}
	steps := []func() error{
		el.Click,
		func() error { return i.clock.Sleep(ctx, i.settings.FocusPause) },
		func() error { return el.SetValue(value) },
		func() error { return i.clock.Sleep(ctx, i.settings.FocusPause) },
		func() error { return i.session.Keys("Enter") },
		func() error { return i.clock.Sleep(ctx, i.settings.FocusPause) },
	}
	return run(steps)
}

// TypeDigits focuses the target and sends value one character at a time as
// discrete key events, for inputs whose masks swallow a bulk set-value.
func (i *Interactor) TypeDigits(ctx context.Context, t Target, value string, timeout time.Duration) (err error) {
	timeout = i.timeoutOr(timeout)
	el := t.Resolve(i.session)
	defer func() { metrics.RecordInteraction(MethodTypeDigits, err) }()

	logger.Debug("[interact] typeDigits %s", t.Name())
	if err := i.typeDigits(ctx, el, t.Name(), value, timeout); err != nil {
		ie := i.interactionError(MethodTypeDigits, t, el, err)
		ie.Value = value
		ie.HasValue = true
		return ie
	}
	return nil
}

func (i *Interactor) typeDigits(ctx context.Context, el core.Element, name, value string, timeout time.Duration) error {
	if err := i.waitReady(ctx, el, name, timeout); err != nil {
		return err
	}
	if err := i.WaitUntil(ctx, displayedAndEnabled(el), timeout/2, i.settings.EnabledInterval,
		"element is not displayed and enabled"); err != nil {
		return err
	}
	if err := el.Click(); err != nil {
		return err
	}
	if err := i.clock.Sleep(ctx, i.settings.DigitFocusPause); err != nil {
		return err
	}
	for _, r := range value {
		if err := i.session.Keys(string(r)); err != nil {
			return err
		}
		if err := i.clock.Sleep(ctx, i.settings.KeyPause); err != nil {
			return err
		}
	}
	if err := i.session.Keys("Enter"); err != nil {
		return err
	}
	return i.clock.Sleep(ctx, i.settings.FocusPause)
}

// BlurActiveElement submits the focused field so the keyboard closes.
func (i *Interactor) BlurActiveElement(ctx context.Context) error {
	if err := i.session.Keys("Enter"); err != nil {
		return fmt.Errorf("blur active element: %w", err)
	}
	return i.clock.Sleep(ctx, i.settings.FocusPause)
}

func (i *Interactor) interactionError(method string, t Target, el core.Element, cause error) *InteractionError {
	ie := &InteractionError{
		Selector:    t.Name(),
		Method:      method,
		ElementInfo: ElementDebugInfo(el, t.Name()),
		Cause:       cause,
	}
	logger.Warn("[interact] %s", ie.Error())
	return ie
}

func displayedAndEnabled(el core.Element) Condition {
	return func() (bool, error) {
		displayed, err := el.Displayed()
		if err != nil || !displayed {
			return false, err
		}
		return el.Enabled()
	}
}

func run(steps []func() error) error {
	for _, step := range steps {
		if err := step(); err != nil {
			return err
		}
	}
	return nil
}
