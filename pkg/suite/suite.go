// Package suite runs UI tests one after another with the hooks that keep a
// shared device usable between them: recovery before each test, artifacts
// and diagnostics after it, and a report entry for every test.
package suite

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/config"
	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/diagnostics"
	"github.com/whiteswan/mobile-e2e/pkg/gesture"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
	"github.com/whiteswan/mobile-e2e/pkg/metrics"
	"github.com/whiteswan/mobile-e2e/pkg/prepare"
	"github.com/whiteswan/mobile-e2e/pkg/recovery"
	"github.com/whiteswan/mobile-e2e/pkg/report"
	"github.com/whiteswan/mobile-e2e/pkg/runstate"
)

var errNoTests = errors.New("no tests to run")

// Test is one scenario.
type Test struct {
	Name    string
	Feature string
	Body    func(ctx context.Context, t *T) error
}

// Device is the adb surface the hooks use. It may be nil when no device is
// reachable over adb; device artifacts are then skipped.
type Device interface {
	diagnostics.Device
	ClearLogcat(ctx context.Context) error
}

// Recoverer brings the app back after a failed test.
type Recoverer interface {
	EnsureClean(ctx context.Context) recovery.Outcome
}

// Reporter records tests, steps and attachments.
type Reporter interface {
	core.AttachmentSink
	StartTest(name string, labels ...report.AllureLabel) string
	Step(name string, fn func() error) error
	EndTest(status core.TestStatus, testErr error) (report.AllureResult, error)
	Attachments() int
}

// Deps are the collaborators a Suite drives.
type Deps struct {
	Session   core.Session
	Device    Device
	Flags     *runstate.Flags
	Recoverer Recoverer
	Reporter  Reporter
	Index     *report.IndexWriter // optional
	Clock     core.Clock
}

// Options configure a Suite.
type Options struct {
	Config   *config.Config
	Interact interact.Settings
	Scroll   gesture.Options
	Prepare  prepare.Options

	// Injector forces chosen tests to fail. Nil injects nothing.
	Injector FailureInjector

	OnTestStart func(idx, total int, name string)
	OnTestEnd   func(result TestResult)
}

// DefaultOptions derives options from cfg.
func DefaultOptions(cfg *config.Config) Options {
	return Options{
		Config:   cfg,
		Interact: interact.DefaultSettings(),
		Scroll:   gesture.DefaultOptions(),
		Prepare:  prepare.OptionsFromConfig(cfg),
	}
}

// TestResult is the outcome of one test.
type TestResult struct {
	ID       string
	Name     string
	Status   core.TestStatus
	Duration time.Duration
	Error    string
	Recovery *recovery.Outcome
}

// RunResult is the outcome of a run.
type RunResult struct {
	Total, Passed, Failed, Broken, Skipped int
	Duration                               time.Duration
	Tests                                  []TestResult
}

// Success reports whether every test passed or was skipped.
func (r *RunResult) Success() bool {
	return r.Failed == 0 && r.Broken == 0
}

// Suite runs tests sequentially against one session.
type Suite struct {
	deps      Deps
	opts      Options
	in        *interact.Interactor
	scroller  *gesture.Scroller
	collector *diagnostics.Collector
	recording bool
}

// New creates a Suite.
func New(deps Deps, opts Options) *Suite {
	if deps.Clock == nil {
		deps.Clock = core.SystemClock
	}
	if deps.Flags == nil {
		deps.Flags = runstate.New()
	}
	if opts.Config == nil {
		opts.Config = config.Default()
	}
	in := interact.New(deps.Session, deps.Clock, opts.Interact)
	var dev diagnostics.Device
	if deps.Device != nil {
		dev = deps.Device
	}
	return &Suite{
		deps:      deps,
		opts:      opts,
		in:        in,
		scroller:  gesture.New(in, opts.Scroll),
		collector: diagnostics.NewCollector(deps.Session, dev, deps.Clock, opts.Config.AppPackage),
	}
}

// Run executes tests in order. Tests after a cancelled context are
// reported as skipped.
func (s *Suite) Run(ctx context.Context, tests []Test) (*RunResult, error) {
	if len(tests) == 0 {
		return nil, errNoTests
	}
	start := s.deps.Clock.Now()
	if s.deps.Index != nil {
		if err := s.deps.Index.Start(); err != nil {
			return nil, fmt.Errorf("start report index: %w", err)
		}
	}

	result := &RunResult{Total: len(tests)}
	for i, tc := range tests {
		if ctx.Err() != nil {
			result.Tests = append(result.Tests, TestResult{
				Name:   tc.Name,
				Status: core.StatusSkipped,
				Error:  "run cancelled",
			})
			continue
		}
		if s.opts.OnTestStart != nil {
			s.opts.OnTestStart(i, len(tests), tc.Name)
		}
		tr := s.runTest(ctx, tc)
		if s.opts.OnTestEnd != nil {
			s.opts.OnTestEnd(tr)
		}
		result.Tests = append(result.Tests, tr)
	}

	for _, tr := range result.Tests {
		switch tr.Status {
		case core.StatusPassed:
			result.Passed++
		case core.StatusFailed:
			result.Failed++
		case core.StatusBroken:
			result.Broken++
		default:
			result.Skipped++
		}
	}
	result.Duration = s.deps.Clock.Now().Sub(start)

	if s.deps.Index != nil {
		if err := s.deps.Index.End(); err != nil {
			logger.Warn("[suite] finish report index: %v", err)
		}
	}
	return result, nil
}

func (s *Suite) runTest(ctx context.Context, tc Test) TestResult {
	start := s.deps.Clock.Now()
	var labels []report.AllureLabel
	if tc.Feature != "" {
		labels = append(labels, report.AllureLabel{Name: "feature", Value: tc.Feature})
	}
	id := s.deps.Reporter.StartTest(tc.Name, labels...)
	if s.deps.Index != nil {
		if err := s.deps.Index.StartTest(id, tc.Name); err != nil {
			logger.Warn("[suite] report index: %v", err)
		}
	}
	logger.Info("[suite] start %q", tc.Name)

	outcome := s.beforeTest(ctx)
	err := s.runBody(ctx, tc)
	status := report.StatusFor(err)
	s.afterTest(ctx, tc.Name, status, err)

	attachments := s.deps.Reporter.Attachments()
	if _, werr := s.deps.Reporter.EndTest(status, err); werr != nil {
		logger.Warn("[suite] %v", werr)
	}
	if s.deps.Index != nil {
		if werr := s.deps.Index.EndTest(id, status, err, attachments); werr != nil {
			logger.Warn("[suite] report index: %v", werr)
		}
	}

	d := s.deps.Clock.Now().Sub(start)
	metrics.RecordTestResult(status.String(), d)
	logger.Info("[suite] end %q status=%s duration=%s", tc.Name, status, d)

	tr := TestResult{ID: id, Name: tc.Name, Status: status, Duration: d, Recovery: outcome}
	if err != nil {
		tr.Error = err.Error()
	}
	return tr
}

func (s *Suite) runBody(ctx context.Context, tc Test) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = core.NewExecutionError(core.ErrCategoryApp, "panic", fmt.Sprintf("test panicked: %v", r))
		}
	}()
	if s.opts.Injector != nil {
		if err := s.opts.Injector.Inject(tc.Name); err != nil {
			return err
		}
	}
	if tc.Body == nil {
		return nil
	}
	return tc.Body(ctx, s.newT(tc.Name))
}
