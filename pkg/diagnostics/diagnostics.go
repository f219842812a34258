// Package diagnostics collects the evidence attached to a failed test:
// UI hierarchy, foreground app, device facts, filtered logs and memory.
// Every fact is collected independently; one that cannot be read is
// recorded as a placeholder and never fails the collection.
package diagnostics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/device"
	"github.com/whiteswan/mobile-e2e/pkg/interact"
	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

// Placeholders for facts that could not be read.
const (
	Unknown  = "unknown"
	ADBError = "adb_error"
)

// logLines is how much logcat history the filtered log covers.
const logLines = 1000

// Device is the adb surface diagnostics reads from.
type Device interface {
	Getprop(ctx context.Context, name string) (string, error)
	SystemMeminfo(ctx context.Context) (string, error)
	BatteryLevel(ctx context.Context) (string, error)
	Logcat(ctx context.Context, n int, pid string) (string, error)
	Pidof(ctx context.Context, pkg string) (string, error)
	Meminfo(ctx context.Context, pkg string) (string, error)
}

var _ Device = (*device.AndroidDevice)(nil)

// DebugInfo is everything known about the app and device at failure time.
type DebugInfo struct {
	Timestamp time.Time `json:"timestamp"`
	TestName  string    `json:"testName"`
	Error     string    `json:"error"`

	UIHierarchy  string             `json:"uiHierarchy,omitempty"`
	App          AppContext         `json:"appContext"`
	System       SystemInfo         `json:"systemInfo"`
	FilteredLogs string             `json:"filteredLogs,omitempty"`
	Performance  PerformanceMetrics `json:"performanceMetrics"`
	Element      *ElementInfo       `json:"elementInfo,omitempty"`

	// HierarchyOK and LogsOK record whether the raw captures succeeded.
	HierarchyOK bool `json:"hierarchyOk"`
	LogsOK      bool `json:"logsOk"`
}

// AppContext is the foreground app state.
type AppContext struct {
	Activity string `json:"currentActivity"`
	Package  string `json:"currentPackage"`
	Network  string `json:"networkConnectivity"`
}

// SystemInfo describes the device.
type SystemInfo struct {
	Model          string `json:"deviceModel"`
	AndroidVersion string `json:"androidVersion"`
	MemoryUsage    string `json:"memoryUsage"`
	Battery        string `json:"batteryLevel,omitempty"`
}

// PerformanceMetrics holds the app's memory footprint. MemoryMB is -1 when
// it could not be read.
type PerformanceMetrics struct {
	MemoryKB int64 `json:"memoryKb"`
	MemoryMB int64 `json:"memoryMb"`
}

// ElementInfo identifies the element an interaction failed on.
type ElementInfo struct {
	Selector string `json:"selector,omitempty"`
	Method   string `json:"method,omitempty"`
	Details  string `json:"elementDetails,omitempty"`
}

// Collector gathers DebugInfo.
type Collector struct {
	session    core.Session
	dev        Device
	clock      core.Clock
	appPackage string
}

// NewCollector creates a collector. dev may be nil when adb is unavailable.
func NewCollector(session core.Session, dev Device, clock core.Clock, appPackage string) *Collector {
	if clock == nil {
		clock = core.SystemClock
	}
	return &Collector{session: session, dev: dev, clock: clock, appPackage: appPackage}
}

// Collect gathers all facts concurrently.
func (c *Collector) Collect(ctx context.Context, testName string, testErr error) DebugInfo {
	info := DebugInfo{
		Timestamp: c.clock.Now().UTC(),
		TestName:  testName,
		Element:   ExtractElementInfo(testErr),
	}
	if testErr != nil {
		info.Error = testErr.Error()
	}
	logger.Info("[diagnostics] collecting debug info for %q", testName)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		info.UIHierarchy, info.HierarchyOK = c.hierarchy()
		return nil
	})
	g.Go(func() error {
		info.App = c.appContext()
		return nil
	})
	g.Go(func() error {
		info.System = c.systemInfo(gctx)
		return nil
	})
	g.Go(func() error {
		info.FilteredLogs, info.LogsOK = c.filteredLogs(gctx)
		return nil
	})
	g.Go(func() error {
		info.Performance = c.performance(gctx)
		return nil
	})
	_ = g.Wait()

	logger.Info("[diagnostics] collection finished for %q", testName)
	return info
}

func (c *Collector) hierarchy() (string, bool) {
	src, err := c.session.Source()
	if err != nil {
		return fmt.Sprintf("failed to get UI hierarchy: %v", err), false
	}
	return src, true
}

func (c *Collector) appContext() AppContext {
	app := AppContext{Activity: Unknown, Package: Unknown, Network: Unknown}
	if activity, err := c.session.CurrentActivity(); err == nil {
		app.Activity = activity
	} else {
		logger.Warn("[diagnostics] current activity: %v", err)
	}
	if pkg, err := c.session.CurrentPackage(); err == nil {
		app.Package = pkg
	} else {
		logger.Warn("[diagnostics] current package: %v", err)
	}
	if state, err := c.session.NetworkConnection(); err == nil {
		app.Network = NetworkState(state)
	} else {
		logger.Warn("[diagnostics] network connection: %v", err)
	}
	return app
}

func (c *Collector) systemInfo(ctx context.Context) SystemInfo {
	info := SystemInfo{Model: ADBError, AndroidVersion: ADBError, MemoryUsage: ADBError}
	if c.dev == nil {
		return info
	}
	if v, err := c.dev.Getprop(ctx, "ro.product.model"); err == nil {
		info.Model = orUnknown(v)
	} else {
		logger.Warn("[diagnostics] device model: %v", err)
	}
	if v, err := c.dev.Getprop(ctx, "ro.build.version.release"); err == nil {
		info.AndroidVersion = orUnknown(v)
	} else {
		logger.Warn("[diagnostics] android version: %v", err)
	}
	if v, err := c.dev.SystemMeminfo(ctx); err == nil {
		info.MemoryUsage = orUnknown(v)
	} else {
		logger.Warn("[diagnostics] memory info: %v", err)
	}
	if v, err := c.dev.BatteryLevel(ctx); err == nil {
		info.Battery = v
	} else {
		logger.Warn("[diagnostics] battery level: %v", err)
	}
	return info
}

func (c *Collector) filteredLogs(ctx context.Context) (string, bool) {
	if c.dev == nil {
		return "failed to get logs: no device", false
	}
	raw, err := c.dev.Logcat(ctx, logLines, "")
	if err != nil {
		return fmt.Sprintf("failed to get logs: %v", err), false
	}
	filtered := FilterLogs(raw, c.appPackage)
	if filtered == "" {
		return "no relevant log lines found", true
	}
	return filtered, true
}

func (c *Collector) performance(ctx context.Context) PerformanceMetrics {
	failed := PerformanceMetrics{MemoryKB: -1, MemoryMB: -1}
	if c.dev == nil {
		return failed
	}
	raw, err := c.dev.Meminfo(ctx, c.appPackage)
	if err != nil {
		logger.Warn("[diagnostics] meminfo: %v", err)
		return failed
	}
	kb, ok := ParseMeminfoTotal(raw)
	if !ok {
		logger.Warn("[diagnostics] could not parse meminfo")
		return failed
	}
	return PerformanceMetrics{MemoryKB: kb, MemoryMB: int64(math.Round(float64(kb) / 1024))}
}

var (
	totalRow    = regexp.MustCompile(`TOTAL\s+(\d+)`)
	numericRow  = regexp.MustCompile(`(?m)^\s*(\d+)\s+(\d+)\s+(\d+)`)
	selectorRef = regexp.MustCompile(`element "([^"]+)"`)
	methodRef   = regexp.MustCompile(`method "([^"]+)"`)
)

// ParseMeminfoTotal returns the app's total PSS in KB from dumpsys
// meminfo output, falling back to the first all-numeric row.
func ParseMeminfoTotal(raw string) (int64, bool) {
	m := totalRow.FindStringSubmatch(raw)
	if m == nil {
		m = numericRow.FindStringSubmatch(raw)
	}
	if m == nil {
		return 0, false
	}
	kb, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}
	return kb, true
}

// ExtractElementInfo pulls the failing element out of err: from an
// interaction or readiness error when there is one, else from the
// `element "..."` and `method "..."` fragments of its message.
func ExtractElementInfo(err error) *ElementInfo {
	if err == nil {
		return nil
	}
	var ie *interact.InteractionError
	if errors.As(err, &ie) {
		return &ElementInfo{Selector: ie.Selector, Method: ie.Method, Details: ie.ElementInfo}
	}
	var re *interact.ReadinessError
	if errors.As(err, &re) {
		return &ElementInfo{Selector: re.Selector, Method: "waitForElement"}
	}

	info := &ElementInfo{}
	msg := err.Error()
	if m := selectorRef.FindStringSubmatch(msg); m != nil {
		info.Selector = m[1]
	}
	if m := methodRef.FindStringSubmatch(msg); m != nil {
		info.Method = m[1]
	}
	if info.Selector == "" && info.Method == "" {
		return nil
	}
	return info
}

var networkStates = map[int]string{
	0: "None",
	1: "Airplane Mode",
	2: "Wifi Only",
	4: "Data Only",
	6: "All Network On",
}

// NetworkState names an Appium network connection bitmask.
func NetworkState(state int) string {
	if s, ok := networkStates[state]; ok {
		return s
	}
	return fmt.Sprintf("Unknown (%d)", state)
}

func orUnknown(s string) string {
	if s == "" {
		return Unknown
	}
	return s
}
