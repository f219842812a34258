// Package runstate holds the flags that coordinate consecutive tests of one
// run: whether the previous test failed and whether onboarding and the
// server environment are already taken care of.
package runstate

import (
	"sync"

	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

// Snapshot is a copy of the flags at one instant.
type Snapshot struct {
	PreviousTestFailed  bool `json:"previousTestFailed"`
	OnboardingCompleted bool `json:"onboardingCompleted"`
	EnvironmentPrepared bool `json:"environmentPrepared"`
}

// Flags is the run context created once per process and passed to the
// suite, recovery and preparation steps. Tests run one at a time; the mutex
// only guards against reads from the metrics or report goroutines.
type Flags struct {
	mu    sync.Mutex
	state Snapshot
}

// New returns flags for a fresh run: nothing failed, nothing prepared.
func New() *Flags {
	return &Flags{}
}

// MarkTestResult records the outcome of the test that just finished. A
// failure sets the pending-recovery flag; a pass leaves it as it is, since
// only a verified recovery clears it (ResetFailure).
func (f *Flags) MarkTestResult(passed bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !passed {
		f.state.PreviousTestFailed = true
	}
	logger.Debug("[state] passed=%t previousTestFailed=%t", passed, f.state.PreviousTestFailed)
}

// PreviousTestFailed reports whether recovery is pending.
func (f *Flags) PreviousTestFailed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.PreviousTestFailed
}

// OnboardingCompleted reports whether the onboarding screen was dismissed
// since the last device state reset.
func (f *Flags) OnboardingCompleted() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.OnboardingCompleted
}

// EnvironmentPrepared reports whether the test server was selected in-app.
func (f *Flags) EnvironmentPrepared() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state.EnvironmentPrepared
}

func (f *Flags) MarkOnboardingCompleted() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.OnboardingCompleted = true
}

func (f *Flags) MarkEnvironmentPrepared() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.EnvironmentPrepared = true
}

// ResetFailure clears the pending-recovery flag.
func (f *Flags) ResetFailure() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.PreviousTestFailed = false
}

// ResetAppState forgets onboarding and environment progress. Called after
// any device state reset.
func (f *Flags) ResetAppState() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state.OnboardingCompleted = false
	f.state.EnvironmentPrepared = false
	logger.Debug("[state] onboarding and environment flags reset")
}

// Reset clears every flag.
func (f *Flags) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.state = Snapshot{}
}

// Snapshot returns a copy of the current flags.
func (f *Flags) Snapshot() Snapshot {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}
