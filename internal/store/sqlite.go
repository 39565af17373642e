package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"inboxpurge/internal/model"

	_ "modernc.org/sqlite"
)

// SQLiteStore is the run journal: one row per purge run and one row per
// matched message with its trash outcome.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens (or creates) the database at the given path and runs migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLiteStore{db: db, now: time.Now}, nil
}

func migrate(db *sql.DB) error {
	const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	query       TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT NOT NULL DEFAULT '',
	log_path    TEXT NOT NULL DEFAULT '',
	total       INTEGER NOT NULL DEFAULT 0,
	successful  INTEGER NOT NULL DEFAULT 0,
	failed      INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS run_messages (
	run_id       INTEGER NOT NULL REFERENCES runs(id),
	position     INTEGER NOT NULL,
	message_id   TEXT NOT NULL,
	subject      TEXT NOT NULL DEFAULT '',
	sender       TEXT NOT NULL DEFAULT '',
	sender_email TEXT NOT NULL DEFAULT '',
	date_rfc3339 TEXT NOT NULL DEFAULT '',
	status       TEXT NOT NULL DEFAULT 'pending',
	error        TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, position)
);
`
	if _, err := db.Exec(schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) timestamp() string {
	return s.now().UTC().Format(time.RFC3339)
}

// BeginRun records the run and every matched message as pending, in order.
func (s *SQLiteStore) BeginRun(ctx context.Context, query, logPath string, msgs []model.RunMessage) (int64, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO runs (query, started_at, log_path, total) VALUES (?, ?, ?, ?)",
		query, s.timestamp(), logPath, len(msgs))
	if err != nil {
		return 0, fmt.Errorf("insert run: %w", err)
	}
	runID, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO run_messages (run_id, position, message_id, subject, sender, sender_email, date_rfc3339, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	for i, m := range msgs {
		if _, err := stmt.ExecContext(ctx, runID, i, m.MessageID, m.Subject, m.Sender, m.SenderEmail, m.DateRFC3339, model.StatusPending); err != nil {
			return 0, fmt.Errorf("insert run message %s: %w", m.MessageID, err)
		}
	}
	return runID, tx.Commit()
}

// RecordOutcome marks the message at position (0-based) trashed, or failed
// with err's text.
func (s *SQLiteStore) RecordOutcome(ctx context.Context, runID int64, position int, err error) error {
	status, msg := model.StatusTrashed, ""
	if err != nil {
		status, msg = model.StatusFailed, err.Error()
	}
	_, execErr := s.db.ExecContext(ctx,
		"UPDATE run_messages SET status = ?, error = ? WHERE run_id = ? AND position = ?",
		status, msg, runID, position)
	return execErr
}

// FinishRun stores the final tally.
func (s *SQLiteStore) FinishRun(ctx context.Context, runID int64, r model.RunResult) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, successful = ?, failed = ? WHERE id = ?",
		s.timestamp(), r.Successful, r.Failed, runID)
	return err
}

// RecentRuns returns up to limit runs, newest first.
func (s *SQLiteStore) RecentRuns(ctx context.Context, limit int) ([]model.RunRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, query, started_at, finished_at, log_path, total, successful, failed
		FROM runs ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []model.RunRecord
	for rows.Next() {
		var r model.RunRecord
		if err := rows.Scan(&r.ID, &r.Query, &r.StartedAt, &r.FinishedAt, &r.LogPath, &r.Total, &r.Successful, &r.Failed); err != nil {
			return nil, err
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// RunMessages returns the messages of one run in their original order.
func (s *SQLiteStore) RunMessages(ctx context.Context, runID int64) ([]model.RunMessage, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, message_id, subject, sender, sender_email, date_rfc3339, status, error
		FROM run_messages WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var msgs []model.RunMessage
	for rows.Next() {
		var m model.RunMessage
		if err := rows.Scan(&m.RunID, &m.MessageID, &m.Subject, &m.Sender, &m.SenderEmail, &m.DateRFC3339, &m.Status, &m.Error); err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return msgs, rows.Err()
}
