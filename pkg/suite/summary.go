package suite

import (
	"fmt"
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/whiteswan/mobile-e2e/pkg/core"
)

// PrintSummary renders the run as a table.
func PrintSummary(w io.Writer, r *RunResult) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle(fmt.Sprintf("WS mobile tests (%s)", formatDuration(r.Duration)))
	t.AppendHeader(table.Row{"#", "Test", "Duration", "Status", "Recovery", "Error"})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Name: "#", Align: text.AlignRight},
		{Name: "Test", WidthMax: 50, WidthMaxEnforcer: text.WrapSoft},
		{Name: "Duration", Align: text.AlignRight},
		{Name: "Error", WidthMax: 60, WidthMaxEnforcer: text.WrapSoft},
	})

	for i, tr := range r.Tests {
		t.AppendRow(table.Row{
			i + 1,
			tr.Name,
			formatDuration(tr.Duration),
			tr.Status.String(),
			recoveryCell(tr),
			tr.Error,
		})
	}

	switch {
	case r.Success() && r.Skipped == 0:
		t.SetStyle(table.StyleColoredBlackOnGreenWhite)
	case r.Success():
		t.SetStyle(table.StyleColoredBlackOnYellowWhite)
	default:
		t.SetStyle(table.StyleColoredBlackOnRedWhite)
	}

	t.AppendFooter(table.Row{
		"",
		fmt.Sprintf("TOTAL %d: %d passed, %d failed, %d broken, %d skipped",
			r.Total, r.Passed, r.Failed, r.Broken, r.Skipped),
		formatDuration(r.Duration),
		overall(r),
		"",
		"",
	})
	t.Render()
}

func recoveryCell(tr TestResult) string {
	if tr.Recovery == nil || tr.Recovery.Skipped != "" {
		return "-"
	}
	return fmt.Sprintf("%s -> %s", tr.Recovery.Strategy, tr.Recovery.To)
}

func overall(r *RunResult) string {
	if r.Success() {
		return core.StatusPassed.String()
	}
	return core.StatusFailed.String()
}

func formatDuration(d time.Duration) string {
	return fmt.Sprintf("%.1fs", d.Seconds())
}
