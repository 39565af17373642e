package purge

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"inboxpurge/internal/model"
)

const (
	logPrefix     = "deleted_emails_"
	logNameLayout = "20060102_150405"
	logDateLayout = "2006-01-02T15:04:05.000000Z07:00"
	maxNameTries  = 100
)

// LogWriter writes one deletion log per run into Dir (the working directory
// when empty). File names carry the second the log was written.
type LogWriter struct {
	Dir string
	Now func() time.Time
}

// Write persists msgs and query and returns the file path. The file is
// created exclusively, so a second run within the same second gets a _N
// suffix instead of overwriting.
func (lw *LogWriter) Write(msgs []model.MessageSummary, query string) (string, error) {
	now := time.Now()
	if lw.Now != nil {
		now = lw.Now()
	}
	if msgs == nil {
		msgs = []model.MessageSummary{}
	}
	entry := model.DeletionLogEntry{
		DeletionDate: now.Format(logDateLayout),
		TotalDeleted: len(msgs),
		Emails:       msgs,
		Query:        query,
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(entry); err != nil {
		return "", fmt.Errorf("encode deletion log: %w", err)
	}

	if lw.Dir != "" {
		if err := os.MkdirAll(lw.Dir, 0o755); err != nil {
			return "", fmt.Errorf("create log directory: %w", err)
		}
	}
	f, path, err := createUnique(lw.Dir, logPrefix+now.Format(logNameLayout), ".json")
	if err != nil {
		return "", err
	}
	if err := writeLogFile(f, buf.Bytes()); err != nil {
		// A truncated log must not be left behind looking like a record.
		_ = os.Remove(path)
		return "", fmt.Errorf("write %s: %w", path, err)
	}
	return path, nil
}

// writeLogFile writes b and closes f.
var writeLogFile = func(f *os.File, b []byte) error {
	if _, err := f.Write(b); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func createUnique(dir, base, ext string) (*os.File, string, error) {
	for i := 0; i < maxNameTries; i++ {
		name := base + ext
		if i > 0 {
			name = fmt.Sprintf("%s_%d%s", base, i, ext)
		}
		path := filepath.Join(dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create %s: %w", path, err)
		}
		return f, path, nil
	}
	return nil, "", fmt.Errorf("no free log name for %s%s after %d tries", base, ext, maxNameTries)
}
