package cli

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/whiteswan/mobile-e2e/pkg/core"
	"github.com/whiteswan/mobile-e2e/pkg/suite"
)

// ANSI color codes
const (
	colorReset  = "\033[0m"
	colorBold   = "\033[1m"
	colorGreen  = "\033[32m"
	colorRed    = "\033[31m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorGray   = "\033[90m"
)

// colorsEnabled determines if ANSI colors should be used
var colorsEnabled = true

func init() {
	if os.Getenv("NO_COLOR") != "" {
		colorsEnabled = false
		return
	}
	if fileInfo, err := os.Stdout.Stat(); err == nil {
		if (fileInfo.Mode() & os.ModeCharDevice) == 0 {
			colorsEnabled = false
		}
	}
}

// color returns the color code if colors are enabled, empty string otherwise
func color(c string) string {
	if colorsEnabled {
		return c
	}
	return ""
}

func printBanner(w io.Writer) {
	fmt.Fprintln(w)
	fmt.Fprintf(w, "  %sws-e2e %s%s  %sWhiteSwan Android end-to-end suite%s\n",
		color(colorBold), Version, color(colorReset), color(colorGray), color(colorReset))
	fmt.Fprintln(w)
}

func printSetupStep(w io.Writer, msg string) {
	fmt.Fprintf(w, "  %s⏳%s %s\n", color(colorCyan), color(colorReset), msg)
}

func printSetupSuccess(w io.Writer, msg string) {
	fmt.Fprintf(w, "  %s✓%s %s\n", color(colorGreen), color(colorReset), msg)
}

// progress prints live test progress.
type progress struct {
	w io.Writer
}

func (p progress) onTestStart(idx, total int, name string) {
	fmt.Fprintf(p.w, "\n  %s[%d/%d]%s %s%s%s\n",
		color(colorCyan), idx+1, total, color(colorReset),
		color(colorBold), name, color(colorReset))
	fmt.Fprintln(p.w, strings.Repeat("─", 60))
}

func (p progress) onTestEnd(r suite.TestResult) {
	if r.Recovery != nil && r.Recovery.Strategy != "" {
		fmt.Fprintf(p.w, "  %s↺ recovery: %s -> %s%s\n",
			color(colorGray), r.Recovery.Strategy, r.Recovery.To, color(colorReset))
	}

	mark, c := "✓", colorGreen
	switch r.Status {
	case core.StatusFailed:
		mark, c = "✗", colorRed
	case core.StatusBroken:
		mark, c = "!", colorYellow
	case core.StatusSkipped:
		mark, c = "-", colorGray
	}
	fmt.Fprintf(p.w, "  %s%s %s%s %s(%s)%s\n",
		color(c), mark, r.Status, color(colorReset),
		color(colorGray), r.Duration.Round(100*time.Millisecond), color(colorReset))
	if r.Error != "" {
		fmt.Fprintf(p.w, "    %s%s%s\n", color(colorRed), r.Error, color(colorReset))
	}
}
