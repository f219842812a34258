package diagnostics

import (
	"fmt"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// FormatReport renders info as the plain text debug report attached to a
// failed test.
func FormatReport(info DebugInfo) string {
	var b strings.Builder
	line := func(format string, args ...interface{}) {
		fmt.Fprintf(&b, format, args...)
		b.WriteByte('\n')
	}

	line("=== DEBUG INFORMATION ===")
	line("Time: %s", info.Timestamp.Format(time.RFC3339))
	line("Test: %s", info.TestName)
	line("Error: %s", info.Error)
	line("")

	if e := info.Element; e != nil {
		line("=== ELEMENT ===")
		if e.Selector != "" {
			line("Selector: %s", e.Selector)
		}
		if e.Method != "" {
			line("Method: %s", e.Method)
		}
		if e.Details != "" {
			line("Details: %s", e.Details)
		}
		line("")
	}

	line("=== APP CONTEXT ===")
	line("Activity: %s", display(info.App.Activity, "unavailable"))
	line("Package: %s", display(info.App.Package, "unavailable"))
	line("Network: %s", display(info.App.Network, "unavailable"))
	line("")

	line("=== SYSTEM ===")
	line("Device: %s", display(info.System.Model, "unavailable"))
	line("Android: %s", display(info.System.AndroidVersion, "unavailable"))
	line("Battery: %s", display(info.System.Battery, "unavailable"))
	line("App memory: %s", appMemory(info.Performance))
	line("")

	line("=== DEVICE MEMORY ===")
	line("%s", display(info.System.MemoryUsage, "memory information unavailable"))
	line("")

	line("=== COLLECTION STATUS ===")
	line("UI hierarchy: %s", status(info.HierarchyOK))
	line("App logs: %s", status(info.LogsOK))
	b.WriteString("System info: " + systemStatus(info.System))
	return b.String()
}

func display(v, fallback string) string {
	switch v {
	case "", Unknown:
		return fallback
	case ADBError:
		return "adb error"
	}
	return v
}

func appMemory(p PerformanceMetrics) string {
	if p.MemoryMB < 0 {
		return "failed to read"
	}
	return fmt.Sprintf("%dMB (%s)", p.MemoryMB, humanize.IBytes(uint64(p.MemoryKB)*1024))
}

func status(ok bool) string {
	if ok {
		return "collected"
	}
	return "error"
}

func systemStatus(s SystemInfo) string {
	if s.Model == ADBError && s.AndroidVersion == ADBError && s.MemoryUsage == ADBError {
		return "error"
	}
	return "partially collected"
}
