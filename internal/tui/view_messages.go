package tui

import (
	"fmt"
	"io"
	"strings"

	"inboxpurge/internal/model"
	"inboxpurge/internal/util"
)

// Column widths of the summary table. Sender and date are cut for display
// only; subject arrives already truncated.
const (
	tableWidth    = 120
	senderDisplay = 28
	dateDisplay   = 23
)

var rule = strings.Repeat("-", tableWidth)

func WriteTableHeader(w io.Writer) {
	fmt.Fprintln(w, "\nEmail Details:")
	fmt.Fprintln(w, ruleStyle.Render(rule))
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-3s %-62s %-30s %-25s", "#", "Subject", "Sender", "Date")))
	fmt.Fprintln(w, ruleStyle.Render(rule))
}

// WriteTableRow prints the n-th (1-based) summary.
func WriteTableRow(w io.Writer, n int, s model.MessageSummary) {
	fmt.Fprintf(w, "%-3d %-62s %-30s %-25s\n",
		n,
		s.Subject,
		util.Truncate(s.Sender, senderDisplay),
		util.Truncate(s.Date, dateDisplay),
	)
}

func WriteTableFooter(w io.Writer) {
	fmt.Fprintln(w, ruleStyle.Render(rule))
}

// WriteTally prints the end-of-run deletion counts.
func WriteTally(w io.Writer, r model.RunResult) {
	fmt.Fprintln(w, "\nDeletion Summary:")
	fmt.Fprintln(w, OK(fmt.Sprintf("Successfully deleted: %d", r.Successful)))
	fmt.Fprintln(w, Fail(fmt.Sprintf("Failed to delete: %d", r.Failed)))
}

// WriteRuns prints journal rows newest first, as returned by the store.
func WriteRuns(w io.Writer, runs []model.RunRecord) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-5s %-25s %-30s %7s %7s %7s  %s", "Run", "Started", "Query", "Total", "OK", "Failed", "Log")))
	for _, r := range runs {
		started := r.StartedAt
		if r.FinishedAt == "" {
			started += "*"
		}
		fmt.Fprintf(w, "%-5d %-25s %-30s %7d %7d %7d  %s\n",
			r.ID, started, util.Truncate(r.Query, 27), r.Total, r.Successful, r.Failed, r.LogPath)
	}
}

// WriteRunMessages prints the journaled messages of one run with their
// outcome.
func WriteRunMessages(w io.Writer, runID int64, msgs []model.RunMessage) {
	if len(msgs) == 0 {
		fmt.Fprintf(w, "No messages recorded for run %d.\n", runID)
		return
	}
	fmt.Fprintln(w, headerStyle.Render(fmt.Sprintf("%-3s %-9s %-45s %-30s %s", "#", "Status", "Subject", "Sender", "Error")))
	for i, m := range msgs {
		status := fmt.Sprintf("%-9s", m.Status)
		switch m.Status {
		case model.StatusTrashed:
			status = okStyle.Render(status)
		case model.StatusFailed:
			status = failStyle.Render(status)
		}
		fmt.Fprintf(w, "%-3d %s %-45s %-30s %s\n",
			i+1, status, util.Truncate(m.Subject, 42), util.Truncate(m.Sender, 27), m.Error)
	}
}
