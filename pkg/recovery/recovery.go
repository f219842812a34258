// Package recovery returns the app to a known-good foreground state after
// a failed test: it runs a restart, clear-data or reinstall strategy and
// verifies the app's main screen is in front before the next test starts.
package recovery

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/config"
	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/device"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
	"github.com/whiteswan/mobile-e2e/pkg/metrics"
	"github.com/whiteswan/mobile-e2e/pkg/runstate"
)

// State of the recovery state machine.
type State string

const (
	Clean      State = "clean"
	Dirty      State = "dirty"
	Recovering State = "recovering"
	Verified   State = "verified"
	Unverified State = "unverified"
)

var launcherPattern = regexp.MustCompile(`(?i)launcher`)

// Shell is the part of the adb bridge recovery needs.
type Shell interface {
	ForceStop(ctx context.Context, pkg string) error
	ClearData(ctx context.Context, pkg string) error
	StartActivity(ctx context.Context, component string) error
}

var _ Shell = (*device.AndroidDevice)(nil)

// DeviceFunc resolves the device for one recovery attempt.
type DeviceFunc func(ctx context.Context) Shell

// ADBDevice resolves the serial through adb on every attempt: udid when
// set, else the first attached device.
func ADBDevice(adb device.ADB, udid string) DeviceFunc {
	return func(ctx context.Context) Shell {
		d := adb.Device(ctx, udid)
		logger.Info("[recovery] adb target serial=%q", d.Serial())
		return d
	}
}

// Options configure a Recoverer.
type Options struct {
	AppPackage string
	APKPath    string

	// ExplicitActivity is the configured start activity, empty when none.
	// MainActivity is what explicit starts use when it is empty.
	ExplicitActivity string
	MainActivity     string

	Strategy       Strategy
	Enabled        bool // false: a pending recovery is dropped
	ForceReinstall bool

	PostStartWait time.Duration
	RestartPause  time.Duration

	TransitionalActivities []string
	TransitionalWait       time.Duration
	TransitionalPoll       time.Duration
}

// OptionsFromConfig maps configuration to recovery options.
func OptionsFromConfig(cfg *config.Config) Options {
	return Options{
		AppPackage:             cfg.AppPackage,
		APKPath:                cfg.APKPath,
		ExplicitActivity:       cfg.MainActivity,
		MainActivity:           cfg.StartActivity(),
		Strategy:               ParseStrategy(cfg.Recovery.Strategy),
		Enabled:                cfg.Recovery.Enabled,
		ForceReinstall:         cfg.Recovery.ForceReinstall,
		PostStartWait:          time.Duration(cfg.Recovery.WaitMs) * time.Millisecond,
		RestartPause:           time.Second,
		TransitionalActivities: cfg.Recovery.TransitionalActivities,
		TransitionalWait:       time.Duration(cfg.Recovery.TransitionalWaitMs) * time.Millisecond,
		TransitionalPoll:       500 * time.Millisecond,
	}
}

// Outcome describes one EnsureClean call.
type Outcome struct {
	From         State
	To           State
	Strategy     Strategy
	Forced       bool
	Skipped      string // Why no strategy ran
	Activity     string
	Package      string
	RetryStarted bool
	Duration     time.Duration
}

// Recoverer runs recovery between tests.
type Recoverer struct {
	session core.Session
	flags   *runstate.Flags
	device  DeviceFunc
	clock   core.Clock
	opts    Options
}

// New creates a Recoverer. A nil clock means the system clock.
func New(session core.Session, flags *runstate.Flags, dev DeviceFunc, clock core.Clock, opts Options) *Recoverer {
	if clock == nil {
		clock = core.SystemClock
	}
	if opts.MainActivity == "" {
		opts.MainActivity = config.DefaultMainActivity
	}
	return &Recoverer{session: session, flags: flags, device: dev, clock: clock, opts: opts}
}

// State reports Dirty while a recovery is pending, else Clean.
func (r *Recoverer) State() State {
	if r.flags.PreviousTestFailed() {
		return Dirty
	}
	return Clean
}

// EnsureClean recovers the app when the previous test failed. It never
// fails: strategy and verification problems are logged, and an unverified
// recovery leaves the failure flag set so the next call retries.
func (r *Recoverer) EnsureClean(ctx context.Context) Outcome {
	start := r.clock.Now()
	out := Outcome{From: r.State()}

	if out.From == Clean {
		logger.Debug("[recovery] previous test passed, nothing to do")
		out.To = Clean
		out.Skipped = "previous test passed"
		return out
	}
	if !r.opts.Enabled {
		logger.Warn("[recovery] skipped (RECOVER_PREV_FAIL=false)")
		r.flags.ResetFailure()
		out.To = Clean
		out.Skipped = "recovery disabled"
		return out
	}

	out.Strategy = r.opts.Strategy
	if r.opts.ForceReinstall {
		out.Strategy = Reinstall
		out.Forced = true
		logger.Warn("[recovery] previous test failed, forcing reinstall")
	} else {
		logger.Warn("[recovery] previous test failed, strategy=%s", out.Strategy)
	}
	metrics.RecordRecoveryAttempt(string(out.Strategy))

	a := &attempt{Recoverer: r, ctx: ctx}
	switch out.Strategy {
	case ClearData:
		a.clearData()
	case Reinstall:
		a.reinstall()
	default:
		a.restart()
	}

	a.verify(&out)
	out.Duration = r.clock.Now().Sub(start)
	metrics.RecordRecoveryOutcome(string(out.To))
	return out
}

// attempt carries per-attempt state: the lazily resolved device.
type attempt struct {
	*Recoverer
	ctx context.Context
	dev Shell
}

func (a *attempt) shell() Shell {
	if a.dev == nil {
		a.dev = a.device(a.ctx)
	}
	return a.dev
}

func (a *attempt) component() string {
	return ComponentSpec(a.opts.AppPackage, a.opts.MainActivity)
}

func (a *attempt) pause(d time.Duration) {
	if err := a.clock.Sleep(a.ctx, d); err != nil {
		logger.Warn("[recovery] pause interrupted: %v", err)
	}
}

func (a *attempt) postStartWait(label string) {
	if a.opts.PostStartWait > 0 {
		logger.Info("[recovery] (%s) extra wait %s", label, a.opts.PostStartWait)
		a.pause(a.opts.PostStartWait)
	}
}

func (a *attempt) restart() {
	pkg := a.opts.AppPackage
	logger.Info("[recovery] restart")
	if err := a.session.TerminateApp(pkg); err != nil {
		logger.Warn("[recovery] terminate app failed (ignored): %v", err)
	}
	a.pause(a.opts.RestartPause)

	started := true
	if err := a.session.ActivateApp(pkg); err != nil {
		logger.Warn("[recovery] activate app failed, trying launch: %v", err)
		started = false
		if err := a.session.LaunchApp(); err != nil {
			logger.Warn("[recovery] launch app failed: %v", err)
		} else {
			started = true
		}
	}
	if !started && installable(a.opts.APKPath) {
		logger.Warn("[recovery] reinstalling %s", a.opts.APKPath)
		if err := a.session.InstallApp(a.opts.APKPath); err != nil {
			logger.Warn("[recovery] reinstall did not help: %v", err)
		} else if err := a.session.ActivateApp(pkg); err != nil {
			logger.Warn("[recovery] activate after reinstall failed: %v", err)
		} else {
			started = true
		}
	}
	a.postStartWait("restart")
	logger.Info("[recovery] restart finished started=%t", started)
}

func (a *attempt) clearData() {
	pkg := a.opts.AppPackage
	logger.Info("[recovery] clear-data (force-stop, pm clear, am start)")
	dev := a.shell()
	if err := dev.ForceStop(a.ctx, pkg); err != nil {
		logger.Warn("[recovery] force-stop failed (ignored): %v", err)
	}
	if err := dev.ClearData(a.ctx, pkg); err != nil {
		logger.Warn("[recovery] pm clear failed: %v", err)
	}
	if err := dev.StartActivity(a.ctx, a.component()); err != nil {
		logger.Warn("[recovery] am start failed, activating: %v", err)
		if err := a.session.ActivateApp(pkg); err != nil {
			logger.Warn("[recovery] activate after clear-data failed: %v", err)
		}
	}
	a.postStartWait("clear-data")
}

func (a *attempt) reinstall() {
	pkg := a.opts.AppPackage
	if !installable(a.opts.APKPath) {
		logger.Warn("[recovery] no .apk configured, falling back to restart")
		a.restart()
		return
	}
	logger.Info("[recovery] reinstall %s", a.opts.APKPath)
	if err := a.session.RemoveApp(pkg); err != nil {
		logger.Warn("[recovery] remove app failed (ignored): %v", err)
	}
	if err := a.session.InstallApp(a.opts.APKPath); err != nil {
		logger.Warn("[recovery] install app failed: %v", err)
	}
	if a.opts.ExplicitActivity != "" {
		spec := ComponentSpec(pkg, a.opts.ExplicitActivity)
		if err := a.shell().StartActivity(a.ctx, spec); err != nil {
			logger.Warn("[recovery] am start after reinstall failed: %v", err)
		}
	} else if err := a.session.ActivateApp(pkg); err != nil {
		logger.Warn("[recovery] activate after reinstall failed: %v", err)
	}
	a.postStartWait("reinstall")
}

// verify checks the foreground app, retries one explicit start when it
// looks wrong and updates the run flags.
func (a *attempt) verify(out *Outcome) {
	activity, pkg := a.foreground()
	if a.looksBad(activity, pkg) {
		logger.Warn("[recovery] app not in front after recovery (activity=%q package=%q), retrying start", activity, pkg)
		out.RetryStarted = true
		if err := a.shell().StartActivity(a.ctx, a.component()); err != nil {
			logger.Warn("[recovery] retry start failed: %v", err)
		}
		a.postStartWait("retry-start")
		activity, pkg = a.foreground()
		logger.Info("[recovery] after retry-start activity=%q package=%q", activity, pkg)
	}
	out.Activity = activity
	out.Package = pkg

	if a.looksBad(activity, pkg) {
		logger.Warn("[recovery] unverified; recovery will run again before the next test")
		out.To = Unverified
		return
	}
	a.flags.ResetFailure()
	a.flags.ResetAppState()
	logger.Info("[recovery] verified; onboarding state reset")
	out.To = Verified
}

func (a *attempt) looksBad(activity, pkg string) bool {
	return activity == "" || launcherPattern.MatchString(activity) || pkg != a.opts.AppPackage
}

// foreground queries the current activity and package, waiting out
// transitional activities such as a splash screen for a bounded time.
func (a *attempt) foreground() (string, string) {
	deadline := a.clock.Now().Add(a.opts.TransitionalWait)
	for {
		activity, pkg := a.query()
		if !a.transitional(activity) || !a.clock.Now().Before(deadline) {
			return activity, pkg
		}
		logger.Debug("[recovery] transitional activity %q, waiting", activity)
		if err := a.clock.Sleep(a.ctx, a.opts.TransitionalPoll); err != nil {
			return activity, pkg
		}
	}
}

func (a *attempt) query() (string, string) {
	activity, err := a.session.CurrentActivity()
	if err != nil {
		logger.Warn("[recovery] current activity: %v", err)
		activity = ""
	}
	pkg, err := a.session.CurrentPackage()
	if err != nil {
		logger.Warn("[recovery] current package: %v", err)
		pkg = ""
	}
	logger.Info("[recovery] foreground activity=%q package=%q", activity, pkg)
	return activity, pkg
}

func (a *attempt) transitional(activity string) bool {
	if activity == "" {
		return false
	}
	for _, t := range a.opts.TransitionalActivities {
		if activity == t || strings.HasSuffix(activity, t) {
			return true
		}
	}
	return false
}
