// Package purge runs the search, confirm, log and trash workflow against a
// mailbox.
package purge

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"inboxpurge/internal/model"
)

var (
	ErrAuthentication = errors.New("authentication failed")
	ErrEmptyQuery     = errors.New("query must not be empty")
	ErrInvalidLimit   = errors.New("max results must be positive")
)

// Mailbox is the narrow provider surface a run needs.
type Mailbox interface {
	Search(ctx context.Context, query string, limit int64) ([]model.MessageRef, error)
	GetMetadata(ctx context.Context, id string) (model.MessageMeta, error)
	Trash(ctx context.Context, id string) error
}

// Confirmer asks a single yes/no question.
type Confirmer interface {
	Confirm(ctx context.Context, question string) (bool, error)
}

// Journal records runs and per-message outcomes. It is optional and
// best-effort: errors are reported and never stop a run.
type Journal interface {
	BeginRun(ctx context.Context, query, logPath string, msgs []model.RunMessage) (int64, error)
	RecordOutcome(ctx context.Context, runID int64, position int, err error) error
	FinishRun(ctx context.Context, runID int64, r model.RunResult) error
}

// Reporter carries the two output channels: Out for the user-facing
// progress text, Log for structured diagnostics.
type Reporter struct {
	Out io.Writer
	Log *slog.Logger
}

func (r Reporter) out() io.Writer {
	if r.Out == nil {
		return io.Discard
	}
	return r.Out
}

func (r Reporter) log() *slog.Logger {
	if r.Log == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.Log
}
