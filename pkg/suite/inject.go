package suite

import (
	"fmt"
	"sync"

	"github.com/whiteswan/mobile-e2e/pkg/core"
)

// ErrInjectedFailure is returned for tests chosen by FailOn.
var ErrInjectedFailure = core.NewExecutionError(core.ErrCategoryAssertion, "injected_failure", "injected failure")

// FailureInjector decides whether a test fails before its body runs. It
// exists to exercise recovery on purpose and is never installed by default.
type FailureInjector interface {
	Inject(testName string) error
}

// FailOn fails each named test the first times runs; times <= 0 means
// every run.
func FailOn(times int, names ...string) FailureInjector {
	set := make(map[string]int, len(names))
	for _, n := range names {
		set[n] = 0
	}
	return &failOn{times: times, names: set}
}

type failOn struct {
	mu    sync.Mutex
	times int
	names map[string]int
}

func (f *failOn) Inject(testName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	n, ok := f.names[testName]
	if !ok {
		return nil
	}
	if f.times > 0 && n >= f.times {
		return nil
	}
	f.names[testName] = n + 1
	return ErrInjectedFailure.WithMessage(fmt.Sprintf("injected failure in %q", testName))
}
