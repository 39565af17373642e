package model

// MessageRef is the opaque id Gmail returns from a search.
type MessageRef struct {
	ID string
}

// MessageMeta is the header subset we ask Gmail for.
type MessageMeta struct {
	Subject string
	From    string
	Date    string
}

// MessageSummary is the read-only view shown in the table and written to the
// deletion log. Subject is already truncated when the summary is built.
type MessageSummary struct {
	ID      string `json:"id"`
	Subject string `json:"subject"`
	Sender  string `json:"sender"`
	Date    string `json:"date"`
}

// DeletionLogEntry is the record written once per run, before any message is
// trashed. It reflects intended scope, not final outcomes.
type DeletionLogEntry struct {
	DeletionDate string           `json:"deletion_date"`
	TotalDeleted int              `json:"total_deleted"`
	Emails       []MessageSummary `json:"emails"`
	Query        string           `json:"query"`
}

// RunResult tallies trash calls for one run.
type RunResult struct {
	Successful int
	Failed     int
}

func (r RunResult) Total() int { return r.Successful + r.Failed }

// RunRecord is one row of the run journal.
type RunRecord struct {
	ID         int64
	Query      string
	StartedAt  string // RFC3339
	FinishedAt string // RFC3339, empty while the run is in progress or was interrupted
	LogPath    string
	Total      int
	Successful int
	Failed     int
}

// Outcome values stored per journal message.
const (
	StatusPending = "pending"
	StatusTrashed = "trashed"
	StatusFailed  = "failed"
)

// RunMessage is one matched message within a journaled run.
type RunMessage struct {
	RunID       int64
	MessageID   string
	Subject     string
	Sender      string
	SenderEmail string // normalized address, empty if unparsable
	DateRFC3339 string
	Status      string
	Error       string
}
