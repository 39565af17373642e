package purge

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"inboxpurge/internal/model"
	"inboxpurge/internal/tui"
	"inboxpurge/internal/util"
)

// State is a step of a run.
type State int

const (
	StateAuthenticating State = iota
	StateSearching
	StateAwaitingConfirmation
	StateDeleting
	StateCancelled
	StateDone
)

func (s State) String() string {
	switch s {
	case StateAuthenticating:
		return "authenticating"
	case StateSearching:
		return "searching"
	case StateAwaitingConfirmation:
		return "awaiting-confirmation"
	case StateDeleting:
		return "deleting"
	case StateCancelled:
		return "cancelled"
	case StateDone:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

type Options struct {
	Query      string
	MaxResults int64
	AssumeYes  bool // skip the prompt
}

// Outcome describes where a run stopped and what it did.
type Outcome struct {
	State   State
	Matches []model.MessageSummary
	LogPath string // empty unless the deletion log was written
	RunID   int64  // journal id, 0 without a journal
	Result  model.RunResult
}

// Driver runs one purge. Connect is called once and the returned Mailbox is
// the only session handle for the rest of the run.
type Driver struct {
	Connect func(ctx context.Context) (Mailbox, error)
	Confirm Confirmer
	Logs    *LogWriter
	Journal Journal // optional
	Out     io.Writer
	Log     *slog.Logger
}

// Run drives Authenticating → Searching → AwaitingConfirmation →
// Deleting|Cancelled → Done. Only a failed Connect or a failed prompt is
// returned as an error; every other failure is reported and absorbed.
func (d *Driver) Run(ctx context.Context, opts Options) (Outcome, error) {
	rep := Reporter{Out: d.Out, Log: d.Log}
	w := rep.out()
	out := Outcome{State: StateAuthenticating}

	mb, err := d.Connect(ctx)
	if err != nil {
		return out, fmt.Errorf("%w: %w", ErrAuthentication, err)
	}

	out.State = StateSearching
	out.Matches = Search(ctx, mb, opts.Query, opts.MaxResults, rep)
	if len(out.Matches) == 0 {
		fmt.Fprintln(w, "No matching emails found.")
		out.State = StateDone
		return out, nil
	}

	out.State = StateAwaitingConfirmation
	confirmed := opts.AssumeYes
	if !confirmed {
		question := fmt.Sprintf("Delete %d emails matching %q? (y/n): ", len(out.Matches), opts.Query)
		confirmed, err = d.Confirm.Confirm(ctx, question)
		if err != nil {
			return out, fmt.Errorf("confirm deletion: %w", err)
		}
	}
	if !confirmed {
		fmt.Fprintln(w, "Cancelled.")
		out.State = StateCancelled
		return out, nil
	}

	out.State = StateDeleting
	fmt.Fprintf(w, "About to delete %d messages...\n", len(out.Matches))
	out.LogPath = d.writeLog(out.Matches, opts.Query, rep)
	// Journal writes outlive an interrupt so the outcome of a stopped run is
	// still recorded.
	jctx := context.WithoutCancel(ctx)
	out.RunID = d.beginJournal(jctx, opts.Query, out.LogPath, out.Matches, rep)

	var observe Observer
	if out.RunID != 0 {
		observe = func(position int, msg model.MessageSummary, err error) {
			if jerr := d.Journal.RecordOutcome(jctx, out.RunID, position, err); jerr != nil {
				rep.log().Warn("journal outcome not recorded", "run", out.RunID, "id", msg.ID, "error", jerr)
			}
		}
	}
	out.Result = TrashAll(ctx, mb, out.Matches, rep, observe)

	if out.RunID != 0 {
		if err := d.Journal.FinishRun(jctx, out.RunID, out.Result); err != nil {
			rep.log().Warn("journal run not finished", "run", out.RunID, "error", err)
		}
	}
	tui.WriteTally(w, out.Result)
	out.State = StateDone
	return out, nil
}

// writeLog never fails the run: a log that cannot be written is reported and
// deletion proceeds.
func (d *Driver) writeLog(msgs []model.MessageSummary, query string, rep Reporter) string {
	lw := d.Logs
	if lw == nil {
		lw = &LogWriter{}
	}
	path, err := lw.Write(msgs, query)
	if err != nil {
		fmt.Fprintf(rep.out(), "Error saving log file: %v\n", err)
		rep.log().Error("deletion log not saved", "query", query, "error", err)
		return ""
	}
	fmt.Fprintf(rep.out(), "Deleted emails log saved to: %s\n", path)
	return path
}

func (d *Driver) beginJournal(ctx context.Context, query, logPath string, msgs []model.MessageSummary, rep Reporter) int64 {
	if d.Journal == nil {
		return 0
	}
	rows := make([]model.RunMessage, len(msgs))
	for i, m := range msgs {
		rows[i] = model.RunMessage{
			MessageID:   m.ID,
			Subject:     m.Subject,
			Sender:      m.Sender,
			SenderEmail: util.SenderAddress(m.Sender),
			DateRFC3339: util.ParseDateRFC3339(m.Date),
		}
	}
	id, err := d.Journal.BeginRun(ctx, query, logPath, rows)
	if err != nil {
		rep.log().Warn("journal run not recorded", "query", query, "error", err)
		return 0
	}
	return id
}
