package diagnostics

import (
	"context"
	"regexp"
	"strings"

	"github.com/whiteswan/mobile-e2e/pkg/logger"
)

// Log tail sizes.
const (
	FailureLogTail = 500
	PassLogTail    = 200
)

// DefaultMeminfoLines caps MeminfoSummary when no limit is given.
const DefaultMeminfoLines = 120

var logMarkers = []string{"reactnativejs", "fatal", "androidruntime"}

// FilterLogs keeps the lines mentioning the app package, the JS runtime,
// fatal errors or AndroidRuntime crashes. Matching ignores case.
func FilterLogs(raw, appPackage string) string {
	markers := append([]string{strings.ToLower(appPackage)}, logMarkers...)
	var kept []string
	for _, line := range strings.Split(raw, "\n") {
		lower := strings.ToLower(line)
		for _, m := range markers {
			if m != "" && strings.Contains(lower, m) {
				kept = append(kept, line)
				break
			}
		}
	}
	return strings.Join(kept, "\n")
}

// LogcatTail returns the last n log lines of the app's process, or of the
// whole device when the app is not running.
func LogcatTail(ctx context.Context, dev Device, appPackage string, n int) (string, error) {
	pid, err := dev.Pidof(ctx, appPackage)
	if err != nil {
		logger.Debug("[diagnostics] pidof %s: %v", appPackage, err)
		pid = ""
	}
	if pid == "" {
		logger.Debug("[diagnostics] no pid for %s, using the device log", appPackage)
	}
	return dev.Logcat(ctx, n, pid)
}

var meminfoSections = []string{
	"App Summary",
	"Dalvik Heap",
	"Native Heap",
	"TOTAL",
	"Objects",
	"Heap Alloc",
}

var sectionHeader = regexp.MustCompile(`^[A-Za-z].+:$`)

// MeminfoSummary trims dumpsys meminfo output to the interesting sections:
// each matching header with up to six following lines, stopping early at
// the next header. When fewer than five lines are selected it falls back
// to the first limit non-blank lines.
func MeminfoSummary(raw string, limit int) string {
	if limit <= 0 {
		limit = DefaultMeminfoLines
	}
	var lines []string
	for _, l := range strings.Split(strings.ReplaceAll(raw, "\r\n", "\n"), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}

	var selected []string
	for i, line := range lines {
		if containsAny(line, meminfoSections) {
			selected = append(selected, line)
			for j := 1; j <= 6 && i+j < len(lines); j++ {
				if sectionHeader.MatchString(lines[i+j]) {
					break
				}
				selected = append(selected, lines[i+j])
			}
		}
		if len(selected) > limit {
			break
		}
	}

	out := lines
	if len(selected) >= 5 {
		out = selected
	}
	if len(out) > limit {
		out = out[:limit]
	}
	text := strings.Join(out, "\n")
	if strings.TrimSpace(text) == "" {
		return "[meminfo] empty output, the package may be missing or permissions restricted"
	}
	return text
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
