package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	flag "github.com/spf13/pflag"

	"inboxpurge/internal/config"
	"inboxpurge/internal/gmail"
	"inboxpurge/internal/purge"
	"inboxpurge/internal/store"
	"inboxpurge/internal/tui"
)

func main() {
	cfg, err := config.Load(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}
	log := config.NewLogger(os.Stderr, cfg.LogLevel)
	if err := cfg.Validate(log); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(2)
	}

	if err := run(cfg, log); err != nil {
		log.Error("inboxpurge failed", "error", err)
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *slog.Logger) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var journal *store.SQLiteStore
	if cfg.JournalPath != "" {
		db, err := store.NewSQLiteStore(cfg.JournalPath)
		if err != nil {
			if cfg.History > 0 || cfg.ShowRun > 0 {
				return fmt.Errorf("open journal: %w", err)
			}
			log.Warn("run journal unavailable", "path", cfg.JournalPath, "error", err)
		} else {
			journal = db
			defer db.Close()
		}
	}

	if (cfg.History > 0 || cfg.ShowRun > 0) && journal == nil {
		return errors.New("--history and --run need the run journal; drop --no-journal")
	}
	if cfg.ShowRun > 0 {
		msgs, err := journal.RunMessages(ctx, cfg.ShowRun)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		tui.WriteRunMessages(os.Stdout, cfg.ShowRun, msgs)
		return nil
	}
	if cfg.History > 0 {
		runs, err := journal.RecentRuns(ctx, cfg.History)
		if err != nil {
			return fmt.Errorf("read journal: %w", err)
		}
		tui.WriteRuns(os.Stdout, runs)
		return nil
	}

	var confirm purge.Confirmer = tui.LinePrompter{In: os.Stdin, Out: os.Stdout}
	if isatty.IsTerminal(os.Stdin.Fd()) || isatty.IsCygwinTerminal(os.Stdin.Fd()) {
		confirm = tui.Prompter{}
	}

	d := &purge.Driver{
		Connect: func(ctx context.Context) (purge.Mailbox, error) {
			return gmail.Dial(ctx, cfg.ConfigDir, log)
		},
		Confirm: confirm,
		Logs:    &purge.LogWriter{Dir: cfg.LogDir},
		Out:     os.Stdout,
		Log:     log,
	}
	// A nil *SQLiteStore in the interface would not compare equal to nil.
	if journal != nil {
		d.Journal = journal
	}

	outcome, err := d.Run(ctx, purge.Options{
		Query:      cfg.Query,
		MaxResults: cfg.MaxResults,
		AssumeYes:  cfg.AssumeYes,
	})
	log.Debug("run finished", "state", outcome.State, "matches", len(outcome.Matches),
		"successful", outcome.Result.Successful, "failed", outcome.Result.Failed, "log", outcome.LogPath)
	return err
}
