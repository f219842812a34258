// Package gesture makes off-screen elements reachable: native scroll
// gestures with a pointer-swipe fallback, page-source digests for edge
// detection and bounded scroll-until-visible loops.
package gesture

import (
	"context"
	"fmt"
	"math"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
	"github.com/whiteswan/mobile-e2e/pkg/metrics"
)

// Direction is the vertical scroll direction.
type Direction string

const (
	Up   Direction = "up"
	Down Direction = "down"
)

// ParseDirection accepts "up" or "down".
func ParseDirection(s string) (Direction, error) {
	switch Direction(s) {
	case Up, Down:
		return Direction(s), nil
	}
	return "", fmt.Errorf("invalid scroll direction %q (want up or down)", s)
}

// ScrollableSelector matches the first scrollable container on screen.
const ScrollableSelector = "-android uiautomator: new UiSelector().scrollable(true)"

// Options tunes scrolling.
type Options struct {
	MaxSwipes            int
	PauseAfterSwipe      time.Duration
	EdgeStabilityRepeats int
	Timeout              time.Duration // ScrollUntilVisible wall-clock budget

	// Pointer swipe start/end as ratios of screen height.
	UpStartRatio, UpEndRatio     float64
	DownStartRatio, DownEndRatio float64

	NativePercent   float64
	PointerHold     time.Duration
	PointerDuration time.Duration

	// Horizontal swipes (onboarding pages).
	HorizontalHold     time.Duration
	HorizontalDuration time.Duration

	// ScrollToElement/ScrollAndClick probes.
	ProbeTimeout time.Duration
	FoundTimeout time.Duration
}

// DefaultOptions returns the defaults tuned for the app's screens.
func DefaultOptions() Options {
	return Options{
		MaxSwipes:            12,
		PauseAfterSwipe:      550 * time.Millisecond,
		EdgeStabilityRepeats: 2,
		Timeout:              10 * time.Second,
		UpStartRatio:         0.75,
		UpEndRatio:           0.25,
		DownStartRatio:       0.25,
		DownEndRatio:         0.75,
		NativePercent:        0.85,
		PointerHold:          80 * time.Millisecond,
		PointerDuration:      600 * time.Millisecond,
		HorizontalHold:       100 * time.Millisecond,
		HorizontalDuration:   500 * time.Millisecond,
		ProbeTimeout:         time.Second,
		FoundTimeout:         5 * time.Second,
	}
}

// Scroller performs scroll gestures on the interactor's session.
type Scroller struct {
	in      *interact.Interactor
	session core.Session
	clock   core.Clock
	opts    Options
}

// New creates a Scroller.
func New(in *interact.Interactor, opts Options) *Scroller {
	return &Scroller{
		in:      in,
		session: in.Session(),
		clock:   in.Clock(),
		opts:    opts,
	}
}

// WithMaxSwipes returns a copy of s with a different swipe budget.
func (s *Scroller) WithMaxSwipes(n int) *Scroller {
	c := *s
	c.opts.MaxSwipes = n
	return &c
}

// Options returns the scroller's options.
func (s *Scroller) Options() Options { return s.opts }

// Rect is the gesture area passed to mobile: scrollGesture.
type Rect struct {
	Left, Top, Width, Height int
}

// NativeResult reports a native scroll attempt. Moved=false with
// Attempted=true means the container is already at its edge.
type NativeResult struct {
	Attempted bool
	Moved     bool
	Rect      Rect
	Err       error
}

// TryNativeScroll runs mobile: scrollGesture over the first scrollable
// container, or over the central area of the window when none is found.
func (s *Scroller) TryNativeScroll(dir Direction) NativeResult {
	rect, err := s.gestureArea()
	if err != nil {
		return NativeResult{Err: err}
	}
	res, err := s.session.ExecuteMobile("scrollGesture", map[string]interface{}{
		"left":      rect.Left,
		"top":       rect.Top,
		"width":     rect.Width,
		"height":    rect.Height,
		"direction": string(dir),
		"percent":   s.opts.NativePercent,
	})
	if err != nil {
		return NativeResult{Rect: rect, Err: err}
	}
	moved, _ := res.(bool)
	return NativeResult{Attempted: true, Moved: moved, Rect: rect}
}

func (s *Scroller) gestureArea() (Rect, error) {
	el := s.session.Element(ScrollableSelector)
	if ok, err := el.Exists(); err == nil && ok {
		if b, err := el.Rect(); err == nil && !b.Empty() {
			return Rect{Left: b.X, Top: b.Y, Width: b.Width, Height: b.Height}, nil
		}
	}
	w, h, err := s.session.WindowSize()
	if err != nil {
		return Rect{}, fmt.Errorf("window size: %w", err)
	}
	return Rect{
		Left:   round(float64(w) * 0.05),
		Top:    round(float64(h) * 0.12),
		Width:  round(float64(w) * 0.9),
		Height: round(float64(h) * 0.76),
	}, nil
}

// PointerSwipe drags a finger vertically through the middle of the screen.
func (s *Scroller) PointerSwipe(dir Direction) error {
	w, h, err := s.session.WindowSize()
	if err != nil {
		return fmt.Errorf("window size: %w", err)
	}
	start, end := s.opts.DownStartRatio, s.opts.DownEndRatio
	if dir == Up {
		start, end = s.opts.UpStartRatio, s.opts.UpEndRatio
	}
	x := round(float64(w) * 0.5)
	from := core.Point{X: x, Y: round(float64(h) * start)}
	to := core.Point{X: x, Y: round(float64(h) * end)}
	return s.session.Swipe(from, to, ms(s.opts.PointerHold), ms(s.opts.PointerDuration))
}

// Swipe scrolls once. The pointer fallback only runs when the native
// gesture could not be attempted; a native gesture reporting no movement is
// an edge and is not repeated with a pointer.
func (s *Scroller) Swipe(ctx context.Context, dir Direction) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	native := s.TryNativeScroll(dir)
	logger.Debug("[scroll] swipe %s native.attempted=%t native.moved=%t rect=%+v err=%v",
		dir, native.Attempted, native.Moved, native.Rect, native.Err)
	if native.Attempted {
		metrics.RecordScroll("native")
		return nil
	}
	metrics.RecordScroll("pointer")
	if err := s.PointerSwipe(dir); err != nil {
		return fmt.Errorf("swipe %s: %w", dir, err)
	}
	return nil
}

// SwipeHorizontal drags a finger across the middle of the screen from
// fromRatio to toRatio of its width.
func (s *Scroller) SwipeHorizontal(ctx context.Context, fromRatio, toRatio float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	w, h, err := s.session.WindowSize()
	if err != nil {
		return fmt.Errorf("window size: %w", err)
	}
	y := round(float64(h) * 0.5)
	from := core.Point{X: round(float64(w) * fromRatio), Y: y}
	to := core.Point{X: round(float64(w) * toRatio), Y: y}
	metrics.RecordScroll("pointer")
	return s.session.Swipe(from, to, ms(s.opts.HorizontalHold), ms(s.opts.HorizontalDuration))
}

// ScrollBySteps swipes exactly steps times.
func (s *Scroller) ScrollBySteps(ctx context.Context, dir Direction, steps int) error {
	for i := 0; i < steps; i++ {
		if err := s.Swipe(ctx, dir); err != nil {
			return fmt.Errorf("scroll step %d/%d: %w", i+1, steps, err)
		}
		if err := s.clock.Sleep(ctx, s.opts.PauseAfterSwipe); err != nil {
			return err
		}
	}
	return nil
}

func round(v float64) int {
	return int(math.Round(v))
}

func ms(d time.Duration) int {
	return int(d / time.Millisecond)
}
