package purge

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inboxpurge/internal/model"
	"inboxpurge/internal/store"
)

type fakeMailbox struct {
	ids       []string
	meta      map[string]model.MessageMeta
	searchErr error
	metaErr   map[string]error
	trashErr  map[string]error

	beforeTrash func(id string)

	searches []string
	limits   []int64
	trashed  []string
	calls    []string
}

func (f *fakeMailbox) Search(ctx context.Context, query string, limit int64) ([]model.MessageRef, error) {
	f.searches = append(f.searches, query)
	f.limits = append(f.limits, limit)
	f.calls = append(f.calls, "search")
	if f.searchErr != nil {
		return nil, f.searchErr
	}
	refs := make([]model.MessageRef, len(f.ids))
	for i, id := range f.ids {
		refs[i] = model.MessageRef{ID: id}
	}
	return refs, nil
}

func (f *fakeMailbox) GetMetadata(ctx context.Context, id string) (model.MessageMeta, error) {
	f.calls = append(f.calls, "meta:"+id)
	if err := f.metaErr[id]; err != nil {
		return model.MessageMeta{}, err
	}
	if m, ok := f.meta[id]; ok {
		return m, nil
	}
	return model.MessageMeta{Subject: "subject " + id, From: id + "@example.com", Date: "Tue, 2 Jan 2024 15:04:05 +0000"}, nil
}

func (f *fakeMailbox) Trash(ctx context.Context, id string) error {
	if f.beforeTrash != nil {
		f.beforeTrash(id)
	}
	f.calls = append(f.calls, "trash:"+id)
	if err := f.trashErr[id]; err != nil {
		return err
	}
	f.trashed = append(f.trashed, id)
	return nil
}

func (f *fakeMailbox) trashCalls() int {
	n := 0
	for _, c := range f.calls {
		if strings.HasPrefix(c, "trash:") {
			n++
		}
	}
	return n
}

type confirmFunc func(ctx context.Context, question string) (bool, error)

func (f confirmFunc) Confirm(ctx context.Context, question string) (bool, error) {
	return f(ctx, question)
}

type fixture struct {
	mb       *fakeMailbox
	driver   *Driver
	out      *bytes.Buffer
	logDir   string
	prompted int
}

func newFixture(t *testing.T, mb *fakeMailbox, answer bool) *fixture {
	t.Helper()
	fx := &fixture{mb: mb, out: &bytes.Buffer{}, logDir: t.TempDir()}
	fx.driver = &Driver{
		Connect: func(context.Context) (Mailbox, error) { return mb, nil },
		Confirm: confirmFunc(func(ctx context.Context, q string) (bool, error) {
			fx.prompted++
			return answer, nil
		}),
		Logs: &LogWriter{
			Dir: fx.logDir,
			Now: func() time.Time { return time.Date(2024, 1, 2, 15, 4, 5, 0, time.UTC) },
		},
		Out: fx.out,
		Log: slogDiscard(),
	}
	return fx
}

func (fx *fixture) logFiles(t *testing.T) []string {
	t.Helper()
	files, err := filepath.Glob(filepath.Join(fx.logDir, "deleted_emails_*.json"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	return files
}

func defaultOptions() Options {
	return Options{Query: "is:unread", MaxResults: 500}
}

func TestRunPartialFailure(t *testing.T) {
	mb := &fakeMailbox{
		ids:      []string{"m1", "m2", "m3"},
		trashErr: map[string]error{"m2": errors.New("backend error")},
	}
	fx := newFixture(t, mb, true)

	// The log must already hold all three messages when the first trash
	// call is made.
	checked := false
	mb.beforeTrash = func(id string) {
		if checked {
			return
		}
		checked = true
		files := fx.logFiles(t)
		if len(files) != 1 {
			t.Fatalf("expected the log before trash(%s), found %v", id, files)
		}
		entry, err := readLog(files[0])
		if err != nil {
			t.Fatalf("readLog: %v", err)
		}
		if entry.TotalDeleted != 3 || len(entry.Emails) != 3 {
			t.Fatalf("log holds %d/%d entries", entry.TotalDeleted, len(entry.Emails))
		}
	}

	got, err := fx.driver.Run(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !checked {
		t.Fatal("trash was never called")
	}
	if got.State != StateDone {
		t.Fatalf("state %v", got.State)
	}
	if got.Result.Successful != 2 || got.Result.Failed != 1 {
		t.Fatalf("result %+v", got.Result)
	}
	if got.Result.Total() != len(mb.ids) {
		t.Fatalf("tally %d does not cover %d matches", got.Result.Total(), len(mb.ids))
	}
	if fx.prompted != 1 {
		t.Fatalf("prompted %d times", fx.prompted)
	}

	entry, err := readLog(got.LogPath)
	if err != nil {
		t.Fatalf("readLog: %v", err)
	}
	if entry.Query != "is:unread" {
		t.Fatalf("log query %q", entry.Query)
	}
	for i, id := range []string{"m1", "m2", "m3"} {
		if entry.Emails[i].ID != id {
			t.Fatalf("log email %d id %q, want %q", i, entry.Emails[i].ID, id)
		}
	}

	wantCalls := []string{"search", "meta:m1", "meta:m2", "meta:m3", "trash:m1", "trash:m2", "trash:m3"}
	if strings.Join(mb.calls, ",") != strings.Join(wantCalls, ",") {
		t.Fatalf("calls %v, want %v", mb.calls, wantCalls)
	}

	out := fx.out.String()
	for _, want := range []string{
		"Searching for: is:unread",
		"Found 3 messages",
		"About to delete 3 messages...",
		"Deleted emails log saved to: ",
		"✗ Error deleting message 2: backend error",
		"✓ Successfully deleted: 2",
		"✗ Failed to delete: 1",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestRunDeclinedIssuesNoMutation(t *testing.T) {
	mb := &fakeMailbox{ids: []string{"m1", "m2"}}
	fx := newFixture(t, mb, false)

	got, err := fx.driver.Run(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.State != StateCancelled {
		t.Fatalf("state %v", got.State)
	}
	if mb.trashCalls() != 0 {
		t.Fatalf("trash called %d times", mb.trashCalls())
	}
	if files := fx.logFiles(t); len(files) != 0 {
		t.Fatalf("log written on cancel: %v", files)
	}
	if !strings.Contains(fx.out.String(), "Cancelled.") {
		t.Fatalf("output: %s", fx.out.String())
	}
}

func TestRunNoMatches(t *testing.T) {
	mb := &fakeMailbox{}
	fx := newFixture(t, mb, true)

	got, err := fx.driver.Run(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.State != StateDone || len(got.Matches) != 0 {
		t.Fatalf("outcome %+v", got)
	}
	if fx.prompted != 0 {
		t.Fatalf("prompted on empty result")
	}
	if mb.trashCalls() != 0 || len(fx.logFiles(t)) != 0 {
		t.Fatalf("mutation or log on empty result")
	}
	out := fx.out.String()
	if !strings.Contains(out, "No messages found") || !strings.Contains(out, "No matching emails found.") {
		t.Fatalf("output: %s", out)
	}
}

func TestRunSearchFailureEndsWithoutPrompt(t *testing.T) {
	mb := &fakeMailbox{ids: []string{"m1"}, searchErr: errors.New("quota")}
	fx := newFixture(t, mb, true)

	got, err := fx.driver.Run(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("search failure must not escalate: %v", err)
	}
	if got.State != StateDone || fx.prompted != 0 || mb.trashCalls() != 0 {
		t.Fatalf("outcome %+v prompted=%d", got, fx.prompted)
	}
	if !strings.Contains(fx.out.String(), "Search error: quota") {
		t.Fatalf("output: %s", fx.out.String())
	}
}

func TestRunMetadataFailureKeepsMessage(t *testing.T) {
	mb := &fakeMailbox{
		ids:     []string{"m1", "m2"},
		metaErr: map[string]error{"m1": errors.New("not found")},
	}
	fx := newFixture(t, mb, true)
	var question string
	fx.driver.Confirm = confirmFunc(func(ctx context.Context, q string) (bool, error) {
		question = q
		return true, nil
	})

	got, err := fx.driver.Run(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	first := got.Matches[0]
	if first.ID != "m1" || first.Subject != "Error retrieving" || first.Sender != "Error retrieving" || first.Date != "Error retrieving" {
		t.Fatalf("placeholder summary %+v", first)
	}
	if !strings.HasPrefix(question, "Delete 2 emails") {
		t.Fatalf("question %q", question)
	}
	if mb.trashed[0] != "m1" {
		t.Fatalf("m1 not passed to trash: %v", mb.trashed)
	}
}

func TestRunAuthenticationFailure(t *testing.T) {
	fx := newFixture(t, &fakeMailbox{ids: []string{"m1"}}, true)
	boom := errors.New("no token")
	fx.driver.Connect = func(context.Context) (Mailbox, error) { return nil, boom }

	got, err := fx.driver.Run(context.Background(), defaultOptions())
	if !errors.Is(err, ErrAuthentication) || !errors.Is(err, boom) {
		t.Fatalf("expected wrapped auth error, got %v", err)
	}
	if got.State != StateAuthenticating {
		t.Fatalf("state %v", got.State)
	}
}

func TestRunConfirmError(t *testing.T) {
	mb := &fakeMailbox{ids: []string{"m1"}}
	fx := newFixture(t, mb, true)
	fx.driver.Confirm = confirmFunc(func(context.Context, string) (bool, error) {
		return false, context.Canceled
	})

	if _, err := fx.driver.Run(context.Background(), defaultOptions()); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected prompt error, got %v", err)
	}
	if mb.trashCalls() != 0 {
		t.Fatal("trash called after failed prompt")
	}
}

func TestRunAssumeYesSkipsPrompt(t *testing.T) {
	mb := &fakeMailbox{ids: []string{"m1"}}
	fx := newFixture(t, mb, false)
	opts := defaultOptions()
	opts.AssumeYes = true

	got, err := fx.driver.Run(context.Background(), opts)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if fx.prompted != 0 || got.Result.Successful != 1 {
		t.Fatalf("prompted=%d result=%+v", fx.prompted, got.Result)
	}
}

func TestRunLogFailureDoesNotBlockDeletion(t *testing.T) {
	mb := &fakeMailbox{ids: []string{"m1", "m2"}}
	fx := newFixture(t, mb, true)
	// A regular file where the log directory should be.
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	fx.driver.Logs.Dir = blocker

	got, err := fx.driver.Run(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.LogPath != "" {
		t.Fatalf("log path %q on failure", got.LogPath)
	}
	if got.Result.Successful != 2 {
		t.Fatalf("deletion blocked by log failure: %+v", got.Result)
	}
	if !strings.Contains(fx.out.String(), "Error saving log file:") {
		t.Fatalf("output: %s", fx.out.String())
	}
}

func TestRunRecordsJournal(t *testing.T) {
	mb := &fakeMailbox{
		ids:      []string{"m1", "m2", "m3"},
		meta:     map[string]model.MessageMeta{"m1": {Subject: "hi", From: "Alice <alice+news@Example.com>", Date: "Tue, 2 Jan 2024 15:04:05 +0000"}},
		trashErr: map[string]error{"m2": errors.New("backend error")},
	}
	fx := newFixture(t, mb, true)
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	fx.driver.Journal = db

	got, err := fx.driver.Run(context.Background(), defaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.RunID == 0 {
		t.Fatal("run not journaled")
	}

	msgs, err := db.RunMessages(context.Background(), got.RunID)
	if err != nil {
		t.Fatalf("RunMessages: %v", err)
	}
	want := []string{model.StatusTrashed, model.StatusFailed, model.StatusTrashed}
	for i, m := range msgs {
		if m.Status != want[i] {
			t.Fatalf("message %d status %q, want %q", i, m.Status, want[i])
		}
	}
	if msgs[0].SenderEmail != "alice@example.com" || msgs[0].DateRFC3339 != "2024-01-02T15:04:05Z" {
		t.Fatalf("normalized fields %+v", msgs[0])
	}

	runs, err := db.RecentRuns(context.Background(), 1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if runs[0].Successful != 2 || runs[0].Failed != 1 || runs[0].LogPath != got.LogPath {
		t.Fatalf("run record %+v", runs[0])
	}
}

func TestTrashAllSumsToInput(t *testing.T) {
	for failures := 0; failures <= 4; failures++ {
		mb := &fakeMailbox{trashErr: map[string]error{}}
		var msgs []model.MessageSummary
		for i := 0; i < 4; i++ {
			id := fmt.Sprintf("m%d", i)
			msgs = append(msgs, model.MessageSummary{ID: id})
			if i < failures {
				mb.trashErr[id] = errors.New("nope")
			}
		}
		var seen []int
		res := TrashAll(context.Background(), mb, msgs, Reporter{}, func(pos int, _ model.MessageSummary, _ error) {
			seen = append(seen, pos)
		})
		if res.Total() != 4 || res.Failed != failures {
			t.Fatalf("failures=%d: result %+v", failures, res)
		}
		if len(seen) != 4 || seen[0] != 0 || seen[3] != 3 {
			t.Fatalf("observer positions %v", seen)
		}
	}
}

func TestTrashAllStopsAfterCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mb := &fakeMailbox{beforeTrash: func(string) { cancel() }}
	msgs := []model.MessageSummary{{ID: "m1"}, {ID: "m2"}, {ID: "m3"}, {ID: "m4"}}
	var out bytes.Buffer
	var outcomes []error
	res := TrashAll(ctx, mb, msgs, Reporter{Out: &out}, func(_ int, _ model.MessageSummary, err error) {
		outcomes = append(outcomes, err)
	})

	if mb.trashCalls() != 1 {
		t.Fatalf("provider called %d times after cancel, want 1", mb.trashCalls())
	}
	if res.Successful != 1 || res.Failed != 3 || res.Total() != len(msgs) {
		t.Fatalf("result %+v", res)
	}
	if len(outcomes) != 4 || outcomes[0] != nil || !errors.Is(outcomes[3], context.Canceled) {
		t.Fatalf("observer outcomes %v", outcomes)
	}
	if !strings.Contains(out.String(), "3 messages not deleted") {
		t.Fatalf("missing stop line:\n%s", out.String())
	}
	if strings.Contains(out.String(), "Deleting message 2") {
		t.Fatalf("kept deleting after cancel:\n%s", out.String())
	}
}

func TestRunInterruptedStillJournals(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	mb := &fakeMailbox{ids: []string{"m1", "m2"}, beforeTrash: func(string) { cancel() }}
	fx := newFixture(t, mb, true)
	db, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	fx.driver.Journal = db

	got, err := fx.driver.Run(ctx, defaultOptions())
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got.Result.Successful != 1 || got.Result.Failed != 1 {
		t.Fatalf("result %+v", got.Result)
	}
	runs, err := db.RecentRuns(context.Background(), 1)
	if err != nil {
		t.Fatalf("RecentRuns: %v", err)
	}
	if runs[0].FinishedAt == "" || runs[0].Failed != 1 {
		t.Fatalf("interrupted run not finished in journal: %+v", runs[0])
	}
	msgs, err := db.RunMessages(context.Background(), got.RunID)
	if err != nil {
		t.Fatalf("RunMessages: %v", err)
	}
	if msgs[1].Status != model.StatusFailed {
		t.Fatalf("skipped message status %q", msgs[1].Status)
	}
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
