package report

import (
	"errors"
	"fmt"
	"hash/fnv"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

// ResultsDir is the Allure results directory under the output directory.
const ResultsDir = "allure-results"

// Environment is written to environment.properties.
type Environment map[string]string

// stepNode is an open or finished step; children are kept as pointers so
// nested steps can be appended while their parent is still open.
type stepNode struct {
	step     AllureStep
	children []*stepNode
}

func (n *stepNode) build() AllureStep {
	s := n.step
	s.Steps = make([]AllureStep, 0, len(n.children))
	for _, c := range n.children {
		s.Steps = append(s.Steps, c.build())
	}
	if s.Attachments == nil {
		s.Attachments = []AllureAttachment{}
	}
	return s
}

// Writer streams Allure results: one test at a time, steps and attachments
// recorded as they happen, the result file written when the test ends.
type Writer struct {
	mu    sync.Mutex
	dir   string
	clock core.Clock
	suite string

	current     *AllureResult
	steps       []*stepNode // top-level steps of the current test
	open        []*stepNode // stack of open steps
	attachments int
}

// NewWriter creates <outputDir>/allure-results and a writer into it.
func NewWriter(outputDir, suite string, clock core.Clock) (*Writer, error) {
	dir := filepath.Join(outputDir, ResultsDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create %s dir: %w", ResultsDir, err)
	}
	if clock == nil {
		clock = core.SystemClock
	}
	return &Writer{dir: dir, clock: clock, suite: suite}, nil
}

// Dir returns the results directory.
func (w *Writer) Dir() string { return w.dir }

// StartTest begins a result and returns its UUID. A test still open is
// ended as broken first.
func (w *Writer) StartTest(name string, labels ...AllureLabel) string {
	w.mu.Lock()
	stale := w.current != nil
	w.mu.Unlock()
	if stale {
		if _, err := w.EndTest(core.StatusBroken, errors.New("test did not finish")); err != nil {
			logger.Warn("[report] closing unfinished test: %v", err)
		}
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	all := []AllureLabel{
		{Name: "suite", Value: w.suite},
		{Name: "framework", Value: "appium"},
		{Name: "language", Value: "go"},
		{Name: "severity", Value: "normal"},
	}
	all = append(all, labels...)

	w.current = &AllureResult{
		UUID:      uuid.New().String(),
		HistoryID: fnv32aHash(w.suite + ":" + name),
		FullName:  w.suite + " " + name,
		Name:      name,
		Stage:     "running",
		Start:     w.clock.Now().UnixMilli(),
		Labels:    all,
	}
	w.steps = nil
	w.open = nil
	w.attachments = 0
	return w.current.UUID
}

// Step runs fn as a named step of the current test. Steps nest when fn
// opens further steps. Without a current test fn just runs.
func (w *Writer) Step(name string, fn func() error) error {
	w.mu.Lock()
	if w.current == nil {
		w.mu.Unlock()
		return fn()
	}
	node := &stepNode{step: AllureStep{
		Name:  name,
		Stage: "running",
		Start: w.clock.Now().UnixMilli(),
	}}
	if n := len(w.open); n > 0 {
		parent := w.open[n-1]
		parent.children = append(parent.children, node)
	} else {
		w.steps = append(w.steps, node)
	}
	w.open = append(w.open, node)
	w.mu.Unlock()

	err := fn()

	w.mu.Lock()
	defer w.mu.Unlock()
	node.step.Stop = w.clock.Now().UnixMilli()
	node.step.Stage = "finished"
	node.step.Status = "passed"
	if err != nil {
		node.step.Status = allureStatus(statusFor(err))
		node.step.StatusDetails.Message = err.Error()
	}
	for i := len(w.open) - 1; i >= 0; i-- {
		if w.open[i] == node {
			w.open = w.open[:i]
			break
		}
	}
	return err
}

// Attach implements core.AttachmentSink. The attachment goes to the
// innermost open step, else to the test.
func (w *Writer) Attach(name, contentType string, body []byte) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		logger.Warn("[report] attachment %q outside a test dropped", name)
		return
	}

	source := uuid.New().String() + "-attachment." + extension(contentType)
	if err := atomicWriteFile(filepath.Join(w.dir, source), body, 0o644); err != nil {
		logger.Warn("[report] write attachment %q: %v", name, err)
		return
	}
	a := AllureAttachment{Name: name, Source: source, Type: contentType}
	if n := len(w.open); n > 0 {
		top := w.open[n-1]
		top.step.Attachments = append(top.step.Attachments, a)
	} else {
		w.current.Attachments = append(w.current.Attachments, a)
	}
	w.attachments++
}

// Attachments returns how many attachments the current test has.
func (w *Writer) Attachments() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.attachments
}

// EndTest finishes the current test and writes its result file.
func (w *Writer) EndTest(status core.TestStatus, testErr error) (AllureResult, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.current == nil {
		return AllureResult{}, errors.New("no test in progress")
	}

	now := w.clock.Now().UnixMilli()
	for _, n := range w.open {
		n.step.Stop = now
		n.step.Stage = "finished"
		n.step.Status = "broken"
	}

	r := w.current
	r.Stop = now
	r.Stage = "finished"
	r.Status = allureStatus(status)
	if testErr != nil {
		r.StatusDetails = AllureStatusDetails{Message: testErr.Error(), Trace: errorChain(testErr)}
	}
	r.Steps = make([]AllureStep, 0, len(w.steps))
	for _, n := range w.steps {
		r.Steps = append(r.Steps, n.build())
	}
	if r.Attachments == nil {
		r.Attachments = []AllureAttachment{}
	}

	result := *r
	w.current = nil
	w.steps = nil
	w.open = nil

	path := filepath.Join(w.dir, result.UUID+"-result.json")
	if err := atomicWriteJSON(path, result); err != nil {
		return result, fmt.Errorf("write allure result %s: %w", result.UUID, err)
	}
	return result, nil
}

// WriteRunFiles writes categories.json, environment.properties and
// executor.json.
func (w *Writer) WriteRunFiles(env Environment) error {
	if err := atomicWriteJSON(filepath.Join(w.dir, "categories.json"), categories); err != nil {
		return fmt.Errorf("write categories.json: %w", err)
	}
	if err := atomicWriteFile(filepath.Join(w.dir, "environment.properties"), []byte(env.properties()), 0o644); err != nil {
		return fmt.Errorf("write environment.properties: %w", err)
	}
	executor := AllureExecutor{
		Name:       "ws-e2e",
		Type:       "local",
		BuildName:  w.suite,
		ReportName: "whiteswan mobile e2e",
	}
	if err := atomicWriteJSON(filepath.Join(w.dir, "executor.json"), executor); err != nil {
		return fmt.Errorf("write executor.json: %w", err)
	}
	return nil
}

func (e Environment) properties() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	var b strings.Builder
	for _, k := range keys {
		fmt.Fprintf(&b, "%s=%s\n", k, e[k])
	}
	return b.String()
}

var categories = []AllureCategory{
	{Name: "Amount Mismatch", MatchedStatuses: []string{"failed"}, MessageRegex: "(?is).*amount.*not found.*"},
	{Name: "Element Not Found", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?is).*not found.*"},
	{Name: "Element Not Displayed", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?is).*(not displayed|did not be displayed).*"},
	{Name: "Element Not Enabled", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?is).*did not be enabled.*"},
	{Name: "Timeout", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?is).*(timed out|waited).*"},
	{Name: "Input Error", MatchedStatuses: []string{"failed", "broken"}, MessageRegex: "(?is).*(setValue|typeDigits).*"},
	{Name: "Connection Error", MatchedStatuses: []string{"broken"}, MessageRegex: "(?is).*(connection|socket|unreachable).*"},
	{Name: "Forced Failure", MatchedStatuses: []string{"failed"}, MessageRegex: "(?is).*injected failure.*"},
}

// statusFor classifies an error the way Allure does: assertion and
// interaction problems fail a test, anything else breaks it.
func statusFor(err error) core.TestStatus {
	var execErr *core.ExecutionError
	if errors.As(err, &execErr) {
		switch execErr.Category {
		case core.ErrCategoryConnection, core.ErrCategoryConfig, core.ErrCategoryApp:
			return core.StatusBroken
		}
	}
	return core.StatusFailed
}

// StatusFor maps a test error to its final status.
func StatusFor(err error) core.TestStatus {
	if err == nil {
		return core.StatusPassed
	}
	return statusFor(err)
}

func allureStatus(s core.TestStatus) string {
	switch s {
	case core.StatusPassed:
		return "passed"
	case core.StatusFailed:
		return "failed"
	case core.StatusBroken:
		return "broken"
	case core.StatusSkipped:
		return "skipped"
	default:
		return "unknown"
	}
}

func extension(contentType string) string {
	switch contentType {
	case core.ContentTypePNG:
		return "png"
	case core.ContentTypeXML:
		return "xml"
	case core.ContentTypeJSON:
		return "json"
	case core.ContentTypeMP4:
		return "mp4"
	case core.ContentTypeText:
		return "txt"
	default:
		return "bin"
	}
}

// errorChain lists each wrapped error on its own line.
func errorChain(err error) string {
	var lines []string
	for e := err; e != nil; e = errors.Unwrap(e) {
		lines = append(lines, fmt.Sprintf("%T: %v", e, e))
	}
	return strings.Join(lines, "\n")
}

// fnv32aHash returns a hex-encoded FNV-32a hash of the input string.
func fnv32aHash(s string) string {
	h := fnv.New32a()
	h.Write([]byte(s))
	return fmt.Sprintf("%08x", h.Sum32())
}
