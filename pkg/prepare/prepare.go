// Package prepare brings a freshly started app to its welcome screen: it
// dismisses onboarding and points the app at the test backend when either
// has not been done yet in this run, or the previous test failed.
package prepare

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/config"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
	"github.com/whiteswan/mobile-e2e/pkg/runstate"
)

// Screen is the welcome screen as seen by the preparer.
type Screen interface {
	FindStartButton(ctx context.Context, timeout time.Duration) bool
	TapStartButton(ctx context.Context) error
	ActionButtonDisplayed(ctx context.Context) bool

	OpenSettings(ctx context.Context) error
	ChooseEnvironmentTier(ctx context.Context) error
	ChooseTestServer(ctx context.Context) error
	ConfirmEnvironment(ctx context.Context) error
}

// StepFunc runs fn as a named report step.
type StepFunc func(name string, fn func() error) error

func runDirect(_ string, fn func() error) error { return fn() }

// Options configure a Preparer.
type Options struct {
	AppPackage string
	// StableActivity is the activity that marks a booted app.
	StableActivity string

	InitialPause      time.Duration
	StabilityTimeout  time.Duration
	StabilityPoll     time.Duration
	SettleAfterStable time.Duration

	StartButtonTimeout time.Duration
	AfterStartTap      time.Duration

	// WaitActionButton false treats the settings button as present.
	WaitActionButton    bool
	ActionButtonTimeout time.Duration
	ActionButtonPoll    time.Duration
}

// DefaultOptions returns the timings the app needs after a cold start.
func DefaultOptions() Options {
	return Options{
		AppPackage:          config.DefaultAppPackage,
		StableActivity:      ".MainActivity",
		InitialPause:        time.Second,
		StabilityTimeout:    15 * time.Second,
		StabilityPoll:       time.Second,
		SettleAfterStable:   3 * time.Second,
		StartButtonTimeout:  15 * time.Second,
		AfterStartTap:       3 * time.Second,
		WaitActionButton:    true,
		ActionButtonTimeout: 8 * time.Second,
		ActionButtonPoll:    400 * time.Millisecond,
	}
}

// OptionsFromConfig applies configuration to DefaultOptions.
func OptionsFromConfig(cfg *config.Config) Options {
	o := DefaultOptions()
	o.AppPackage = cfg.AppPackage
	o.InitialPause = time.Duration(cfg.Prepare.InitialPauseMs) * time.Millisecond
	o.WaitActionButton = cfg.Prepare.WaitActionButton
	if cfg.Prepare.ActionButtonTimeoutMs > 0 {
		o.ActionButtonTimeout = time.Duration(cfg.Prepare.ActionButtonTimeoutMs) * time.Millisecond
	}
	return o
}

// Result reports what Prepare did.
type Result struct {
	HandledOnboarding   bool
	StartButtonFound    bool
	ActionButtonFound   bool
	EnvironmentSelected bool
}

// Preparer runs the onboarding and environment sequence.
type Preparer struct {
	in     *interact.Interactor
	screen Screen
	flags  *runstate.Flags
	opts   Options

	// Step wraps each user-visible step. Defaults to running it directly.
	Step StepFunc
}

// New creates a Preparer.
func New(in *interact.Interactor, screen Screen, flags *runstate.Flags, opts Options) *Preparer {
	return &Preparer{in: in, screen: screen, flags: flags, opts: opts, Step: runDirect}
}

// Prepare runs the sequence once.
func (p *Preparer) Prepare(ctx context.Context) (Result, error) {
	var res Result
	if err := p.in.Pause(ctx, p.opts.InitialPause); err != nil {
		return res, err
	}

	previousFailed := p.flags.PreviousTestFailed()
	onboarded := p.flags.OnboardingCompleted()
	res.HandledOnboarding = !onboarded || previousFailed
	logger.Info("[prepare] onboarding completed=%t previous failed=%t handle=%t",
		onboarded, previousFailed, res.HandledOnboarding)

	if res.HandledOnboarding {
		found, err := p.onboarding(ctx)
		if err != nil {
			return res, err
		}
		res.StartButtonFound = found
	} else {
		logger.Info("[prepare] onboarding already done, skipping start button")
	}

	res.ActionButtonFound = p.waitActionButton(ctx)

	prepared := p.flags.EnvironmentPrepared()
	setup := res.ActionButtonFound && (!prepared || previousFailed)
	logger.Info("[prepare] environment action button=%t prepared=%t previous failed=%t setup=%t",
		res.ActionButtonFound, prepared, previousFailed, setup)

	switch {
	case setup:
		if err := p.selectEnvironment(ctx); err != nil {
			return res, err
		}
		p.flags.MarkEnvironmentPrepared()
		res.EnvironmentSelected = true
		logger.Info("[prepare] environment selected")
	case !res.ActionButtonFound:
		logger.Warn("[prepare] action button not found, skipping environment selection")
	default:
		logger.Info("[prepare] environment already selected")
	}
	return res, nil
}

func (p *Preparer) onboarding(ctx context.Context) (bool, error) {
	if err := p.waitStable(ctx); err != nil {
		return false, err
	}
	if err := p.in.Pause(ctx, p.opts.SettleAfterStable); err != nil {
		return false, err
	}

	if !p.screen.FindStartButton(ctx, p.opts.StartButtonTimeout) {
		logger.Info("[prepare] start button not found with any selector")
		return false, nil
	}
	err := p.Step("Skip onboarding", func() error {
		if err := p.screen.TapStartButton(ctx); err != nil {
			return err
		}
		return p.in.Pause(ctx, p.opts.AfterStartTap)
	})
	if err != nil {
		return true, fmt.Errorf("skip onboarding: %w", err)
	}
	p.flags.MarkOnboardingCompleted()
	logger.Info("[prepare] onboarding completed")
	return true, nil
}

// waitStable waits until the app's main activity is in front.
func (p *Preparer) waitStable(ctx context.Context) error {
	session := p.in.Session()
	return p.in.WaitUntil(ctx, func() (bool, error) {
		activity, err := session.CurrentActivity()
		if err != nil {
			return false, err
		}
		pkg, err := session.CurrentPackage()
		if err != nil {
			return false, err
		}
		logger.Debug("[prepare] foreground activity=%s package=%s", activity, pkg)
		return pkg == p.opts.AppPackage && p.isStableActivity(activity), nil
	}, p.opts.StabilityTimeout, p.opts.StabilityPoll, "app did not reach a stable state")
}

func (p *Preparer) isStableActivity(activity string) bool {
	return strings.TrimPrefix(activity, p.opts.AppPackage) == p.opts.StableActivity
}

func (p *Preparer) waitActionButton(ctx context.Context) bool {
	if !p.opts.WaitActionButton {
		return true
	}
	err := p.in.WaitUntil(ctx, func() (bool, error) {
		return p.screen.ActionButtonDisplayed(ctx), nil
	}, p.opts.ActionButtonTimeout, p.opts.ActionButtonPoll, "action button not displayed")
	if err != nil {
		logger.Warn("[prepare] %v; continuing without environment selection", err)
		return false
	}
	return true
}

func (p *Preparer) selectEnvironment(ctx context.Context) error {
	steps := []struct {
		name string
		run  func(context.Context) error
	}{
		{"Open settings", p.screen.OpenSettings},
		{"Choose production server", p.screen.ChooseEnvironmentTier},
		{"Choose test server", p.screen.ChooseTestServer},
		{"Go back", p.screen.ConfirmEnvironment},
	}
	for _, s := range steps {
		run := s.run
		if err := p.Step(s.name, func() error { return run(ctx) }); err != nil {
			return fmt.Errorf("%s: %w", strings.ToLower(s.name), err)
		}
	}
	return nil
}
