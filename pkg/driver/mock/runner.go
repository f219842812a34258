package mock

import (
	"context"
	"strings"
	"sync"
)

// Response is a canned command result.
type Response struct {
	Output string
	Err    error
}

// Runner records external commands and answers them from canned responses.
// It satisfies device.Runner.
type Runner struct {
	// Responses are matched by prefix against the joined command line
	// ("adb -s emulator-5554 shell pm clear ..."); the longest prefix wins.
	Responses map[string]Response

	mu       sync.Mutex
	commands []string
}

// NewRunner creates a runner with no canned responses. Unmatched commands
// succeed with empty output.
func NewRunner() *Runner {
	return &Runner{Responses: map[string]Response{}}
}

// On registers a response for commands starting with prefix.
func (r *Runner) On(prefix, output string, err error) *Runner {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.Responses[prefix] = Response{Output: output, Err: err}
	return r
}

// Run implements device.Runner.
func (r *Runner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	line := strings.Join(append([]string{name}, args...), " ")

	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, line)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	best := -1
	var resp Response
	for prefix, candidate := range r.Responses {
		if strings.HasPrefix(line, prefix) && len(prefix) > best {
			best = len(prefix)
			resp = candidate
		}
	}
	return []byte(resp.Output), resp.Err
}

// Commands returns every command line run so far.
func (r *Runner) Commands() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.commands...)
}

// Matching returns command lines containing substr.
func (r *Runner) Matching(substr string) []string {
	var out []string
	for _, c := range r.Commands() {
		if strings.Contains(c, substr) {
			out = append(out, c)
		}
	}
	return out
}
