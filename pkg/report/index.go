package report

import (
	"path/filepath"
	"sync"

	"github.com/whiteswan/mobile-e2e/pkg/core"
)

// IndexWriter keeps report.json current as tests start and finish.
type IndexWriter struct {
	mu    sync.Mutex
	path  string
	clock core.Clock
	index *Index
}

// NewIndexWriter creates an IndexWriter for outputDir. index carries the
// device and app metadata; its tests and summary are managed here.
func NewIndexWriter(outputDir string, index *Index, clock core.Clock) *IndexWriter {
	if clock == nil {
		clock = core.SystemClock
	}
	if index.Version == "" {
		index.Version = Version
	}
	return &IndexWriter{
		path:  filepath.Join(outputDir, "report.json"),
		clock: clock,
		index: index,
	}
}

// Path returns the location of report.json.
func (w *IndexWriter) Path() string { return w.path }

// Start marks the run as started.
func (w *IndexWriter) Start() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	w.index.Status = StatusRunning
	w.index.StartTime = now
	return w.flushLocked()
}

// StartTest adds a running entry for a test.
func (w *IndexWriter) StartTest(id, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	w.index.Tests = append(w.index.Tests, TestEntry{
		Index:     len(w.index.Tests),
		ID:        id,
		Name:      name,
		Status:    core.StatusRunning.String(),
		StartTime: &now,
	})
	return w.flushLocked()
}

// EndTest records a test's final status.
func (w *IndexWriter) EndTest(id string, status core.TestStatus, testErr error, attachments int) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for i := range w.index.Tests {
		t := &w.index.Tests[i]
		if t.ID != id {
			continue
		}
		now := w.clock.Now()
		t.Status = status.String()
		t.EndTime = &now
		t.Attachments = attachments
		if t.StartTime != nil {
			d := now.Sub(*t.StartTime).Milliseconds()
			t.Duration = &d
		}
		if testErr != nil {
			msg := testErr.Error()
			t.Error = &msg
		}
		break
	}
	return w.flushLocked()
}

// End marks the run as complete.
func (w *IndexWriter) End() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.clock.Now()
	w.index.EndTime = &now
	w.index.Status = w.computeRunStatus()
	return w.flushLocked()
}

// Snapshot returns a copy of the current index.
func (w *IndexWriter) Snapshot() Index {
	w.mu.Lock()
	defer w.mu.Unlock()
	c := *w.index
	c.Tests = append([]TestEntry(nil), w.index.Tests...)
	return c
}

func (w *IndexWriter) flushLocked() error {
	w.index.UpdateSeq++
	w.index.LastUpdated = w.clock.Now()
	w.index.Summary = w.computeSummary()
	return atomicWriteJSON(w.path, w.index)
}

// computeSummary calculates summary from test statuses.
func (w *IndexWriter) computeSummary() Summary {
	s := Summary{Total: len(w.index.Tests)}
	for _, t := range w.index.Tests {
		switch t.Status {
		case core.StatusPassed.String():
			s.Passed++
		case core.StatusFailed.String():
			s.Failed++
		case core.StatusBroken.String():
			s.Broken++
		case core.StatusSkipped.String():
			s.Skipped++
		case core.StatusRunning.String():
			s.Running++
		default:
			s.Pending++
		}
	}
	return s
}

// computeRunStatus determines overall run status from tests.
func (w *IndexWriter) computeRunStatus() string {
	for _, t := range w.index.Tests {
		if t.Status == core.StatusFailed.String() || t.Status == core.StatusBroken.String() {
			return StatusFailed
		}
	}
	return StatusPassed
}
