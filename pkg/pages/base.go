// Package pages provides typed page objects for the whiteswan app screens.
// Every locator is re-resolved through the session on each access.
package pages

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/gesture"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
)

// Locators maps logical element names to selectors.
type Locators struct {
	session core.Session
	byName  map[string]string
}

// NewLocators binds selectors to a session.
func NewLocators(session core.Session, selectors map[string]string) Locators {
	return Locators{session: session, byName: selectors}
}

// Selector returns the selector registered under name. Unknown names are a
// programming error and panic.
func (l Locators) Selector(name string) string {
	sel, ok := l.byName[name]
	if !ok {
		panic(fmt.Sprintf("pages: unknown locator %q", name))
	}
	return sel
}

// Get returns a fresh handle for name.
func (l Locators) Get(name string) core.Element {
	return l.session.Element(l.Selector(name))
}

// Target returns name as an interaction target.
func (l Locators) Target(name string) interact.Target {
	return interact.By(l.Selector(name))
}

// Names lists registered names in sorted order.
func (l Locators) Names() []string {
	names := make([]string, 0, len(l.byName))
	for n := range l.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Base holds what every page needs: the interactor, a scroller and the
// page's locators.
type Base struct {
	in       *interact.Interactor
	scroller *gesture.Scroller
	loc      Locators
}

func newBase(in *interact.Interactor, sc *gesture.Scroller, selectors map[string]string) Base {
	return Base{in: in, scroller: sc, loc: NewLocators(in.Session(), selectors)}
}

// Locators returns the page's locators.
func (b *Base) Locators() Locators { return b.loc }

func (b *Base) tap(ctx context.Context, name string) error {
	return b.in.Click(ctx, b.loc.Target(name), 0)
}

func (b *Base) set(ctx context.Context, name, value string) error {
	return b.in.SetValue(ctx, b.loc.Target(name), value, 0)
}

func (b *Base) typeDigits(ctx context.Context, name, value string) error {
	return b.in.TypeDigits(ctx, b.loc.Target(name), value, 0)
}

func (b *Base) waitVisible(ctx context.Context, name string, timeout time.Duration) error {
	_, err := b.in.WaitForDisplayed(ctx, b.loc.Selector(name), timeout, b.in.Settings().PresenceInterval)
	if err != nil {
		return fmt.Errorf("%s not displayed: %w", name, err)
	}
	return nil
}

// IsDisplayed probes name without failing.
func (b *Base) IsDisplayed(ctx context.Context, name string, timeout time.Duration) bool {
	return b.in.IsElementDisplayed(ctx, b.loc.Selector(name), timeout)
}

// ScrollToEdge scrolls to the top or bottom. Small budgets (up to five)
// swipe a fixed number of times instead of watching for the edge.
// maxSwipes <= 0 means ten.
func (b *Base) ScrollToEdge(ctx context.Context, dir gesture.Direction, maxSwipes int) error {
	if maxSwipes <= 0 {
		maxSwipes = 10
	}
	if maxSwipes <= 5 {
		return b.scroller.ScrollBySteps(ctx, dir, maxSwipes)
	}
	_, err := b.scroller.WithMaxSwipes(maxSwipes).ScrollToEdge(ctx, dir)
	return err
}

// ScrollBySteps swipes exactly steps times.
func (b *Base) ScrollBySteps(ctx context.Context, dir gesture.Direction, steps int) error {
	return b.scroller.ScrollBySteps(ctx, dir, steps)
}

// ScrollAndClick scrolls until selector is displayed and clicks it.
func (b *Base) ScrollAndClick(ctx context.Context, selector string, dir gesture.Direction) error {
	return b.scroller.ScrollAndClick(ctx, selector, dir)
}

// ScrollToElement scrolls until selector is displayed.
func (b *Base) ScrollToElement(ctx context.Context, selector string, dir gesture.Direction) error {
	return b.scroller.ScrollToElement(ctx, selector, dir)
}
