package app

import (
	"connectfill/internal/engine"
	"connectfill/internal/quota"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
)

func RenderDeficits(w io.Writer, deficits quota.Map) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Kind", "Deficit"})
	for _, kind := range deficits.Kinds() {
		t.AppendRow(table.Row{kind, deficits.Get(kind)})
	}
	if len(deficits) == 0 {
		t.AppendRow(table.Row{"-", 0})
	}
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func RenderReport(w io.Writer, report engine.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.AppendHeader(table.Row{"Kind", "Initial", "Done", "Failed", "Remaining"})
	t.AppendRow(table.Row{
		quota.KindRead,
		report.Initial.Get(quota.KindRead),
		report.ReadsOK,
		report.ReadsFailed,
		report.Remaining.Get(quota.KindRead),
	})
	t.AppendRow(table.Row{
		quota.KindLike,
		report.Initial.Get(quota.KindLike),
		report.LikesOK,
		report.LikesFailed,
		report.Remaining.Get(quota.KindLike),
	})
	t.AppendFooter(table.Row{"state", report.State, "items", fmt.Sprintf("%d/%d", report.Processed, report.Items), fmt.Sprintf("coolings %d", report.Coolings)})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

// Summary is the human readable status sent as the notification body.
func Summary(runID string, report engine.Report) string {
	var b strings.Builder
	switch report.State {
	case engine.StateSatisfied:
		if report.Initial.Satisfied() {
			b.WriteString("Nothing outstanding, all Connect requirements are met.")
		} else {
			b.WriteString("All Connect requirements are met.")
		}
	case engine.StateExhausted:
		b.WriteString("Ran out of topics before every requirement was met.")
	case engine.StateSessionLost:
		b.WriteString("The session expired during the run.")
	case engine.StateCancelled:
		b.WriteString("The run was cancelled.")
	default:
		fmt.Fprintf(&b, "Run ended in state %s.", report.State)
	}
	fmt.Fprintf(&b, "\nreads: %d ok, %d failed", report.ReadsOK, report.ReadsFailed)
	fmt.Fprintf(&b, "\nlikes: %d ok, %d failed", report.LikesOK, report.LikesFailed)
	fmt.Fprintf(&b, "\nremaining: %s", report.Remaining.String())
	if report.Coolings > 0 {
		fmt.Fprintf(&b, "\ncoolings: %d", report.Coolings)
	}
	fmt.Fprintf(&b, "\nrun: %s, elapsed %s", runID, report.Elapsed.Round(time.Second))
	return b.String()
}
