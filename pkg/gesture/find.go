package gesture

import (
	"context"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

// ScrollUntilVisible checks the target and swipes until it exists and is
// displayed. It gives up after MaxSwipes swipes or Timeout, whichever comes
// first.
func (s *Scroller) ScrollUntilVisible(ctx context.Context, t interact.Target, dir Direction) bool {
	start := s.clock.Now()
	for i := 0; i < s.opts.MaxSwipes && s.clock.Now().Sub(start) < s.opts.Timeout; i++ {
		if visible(t.Resolve(s.session)) {
			return true
		}
		if err := s.Swipe(ctx, dir); err != nil {
			if ctx.Err() != nil {
				return false
			}
			logger.Debug("[scroll] until visible %s: %v", t.Name(), err)
		}
		if err := s.clock.Sleep(ctx, s.opts.PauseAfterSwipe); err != nil {
			return false
		}
	}
	return false
}

func visible(el core.Element) bool {
	ok, err := el.Exists()
	if err != nil || !ok {
		return false
	}
	ok, err = el.Displayed()
	return err == nil && ok
}

// ScrollAndTap scrolls selector into view and taps it when it is inside the
// viewport. It reports false instead of failing. An empty dir means Up.
func (s *Scroller) ScrollAndTap(ctx context.Context, selector string, dir Direction) bool {
	if dir == "" {
		dir = Up
	}
	if !s.ScrollUntilVisible(ctx, interact.By(selector), dir) {
		return false
	}
	el := s.session.Element(selector)
	inViewport, err := el.DisplayedInViewport()
	if err != nil || !inViewport {
		return false
	}
	if err := el.Click(); err != nil {
		logger.Debug("[scroll] scrollAndTap %s: click failed: %v", selector, err)
		return false
	}
	return true
}

// ScrollToElement swipes until selector is displayed. It fails with an
// InteractionError naming the selector and direction. An empty dir means
// Down.
func (s *Scroller) ScrollToElement(ctx context.Context, selector string, dir Direction) error {
	if dir == "" {
		dir = Down
	}
	if err := s.scrollTo(ctx, selector, dir); err != nil {
		return s.failure(interact.MethodScrollToElement, selector, dir, err)
	}
	return nil
}

// ScrollAndClick swipes until selector is displayed and clicks it. An
// empty dir means Down.
func (s *Scroller) ScrollAndClick(ctx context.Context, selector string, dir Direction) error {
	if dir == "" {
		dir = Down
	}
	if err := s.scrollTo(ctx, selector, dir); err != nil {
		return s.failure(interact.MethodScrollAndClick, selector, dir, err)
	}
	el, err := s.in.WaitForDisplayed(ctx, selector, s.opts.FoundTimeout, s.in.Settings().PresenceInterval)
	if err == nil {
		err = el.Click()
	}
	if err != nil {
		return s.failure(interact.MethodScrollAndClick, selector, dir, err)
	}
	return nil
}

// errNotFound marks a scroll search that ran out of swipes.
type errNotFound struct{}

func (errNotFound) Error() string { return "element not found" }

func (s *Scroller) scrollTo(ctx context.Context, selector string, dir Direction) error {
	if s.in.IsElementDisplayed(ctx, selector, s.opts.ProbeTimeout) {
		return nil
	}
	for i := 0; i < s.opts.MaxSwipes; i++ {
		if err := s.Swipe(ctx, dir); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			logger.Debug("[scroll] attempt %d for %s: %v", i+1, selector, err)
		}
		if err := s.clock.Sleep(ctx, s.opts.PauseAfterSwipe); err != nil {
			return err
		}
		if s.in.IsElementDisplayed(ctx, selector, s.opts.ProbeTimeout) {
			logger.Debug("[scroll] %s found after %d swipes", selector, i+1)
			return nil
		}
	}
	return errNotFound{}
}

func (s *Scroller) failure(method, selector string, dir Direction, err error) error {
	ie := &interact.InteractionError{
		Selector:  selector,
		Method:    method,
		Direction: string(dir),
	}
	if _, ok := err.(errNotFound); ok {
		ie.NotFound = true
	} else {
		ie.Cause = err
		ie.ElementInfo = interact.ElementDebugInfo(s.session.Element(selector), selector)
	}
	logger.Warn("[scroll] %s", ie.Error())
	return ie
}
