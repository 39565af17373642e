package purge

import (
	"context"
	"fmt"
	"strings"

	"inboxpurge/internal/model"
	"inboxpurge/internal/tui"
	"inboxpurge/internal/util"
)

const (
	// MaxPageSize is the largest page Gmail returns from a list call.
	MaxPageSize = 500

	subjectMax  = 60
	unavailable = "Error retrieving"

	noSubject = "No Subject"
	noSender  = "Unknown Sender"
	noDate    = "Unknown Date"
)

// Search lists messages matching query (one page, at most maxResults) and
// builds a summary for each, printing the table as it goes. A failed list
// call is reported and yields no messages. A failed metadata call keeps the
// message with placeholder fields, so every matched id is returned.
func Search(ctx context.Context, mb Mailbox, query string, maxResults int64, rep Reporter) []model.MessageSummary {
	w := rep.out()
	if strings.TrimSpace(query) == "" {
		fmt.Fprintf(w, "Search error: %v\n", ErrEmptyQuery)
		return nil
	}
	if maxResults <= 0 {
		fmt.Fprintf(w, "Search error: %v\n", ErrInvalidLimit)
		return nil
	}

	fmt.Fprintf(w, "Searching for: %s\n", query)
	refs, err := mb.Search(ctx, query, maxResults)
	if err != nil {
		fmt.Fprintf(w, "Search error: %v\n", err)
		rep.log().Error("search failed", "query", query, "error", err)
		return nil
	}
	if int64(len(refs)) > maxResults {
		refs = refs[:maxResults]
	}
	if len(refs) == 0 {
		fmt.Fprintln(w, "No messages found")
		return nil
	}

	fmt.Fprintf(w, "Found %d messages\n", len(refs))
	tui.WriteTableHeader(w)
	summaries := make([]model.MessageSummary, 0, len(refs))
	for i, ref := range refs {
		var s model.MessageSummary
		meta, err := mb.GetMetadata(ctx, ref.ID)
		if err != nil {
			fmt.Fprintf(w, "Error getting details for message %s: %v\n", ref.ID, err)
			rep.log().Warn("metadata fetch failed", "id", ref.ID, "error", err)
			s = unavailableSummary(ref.ID)
		} else {
			s = Summarize(ref.ID, meta)
		}
		summaries = append(summaries, s)
		tui.WriteTableRow(w, i+1, s)
	}
	tui.WriteTableFooter(w)
	return summaries
}

// Summarize builds the summary for one message. The subject is truncated
// here, once; sender and date are kept whole.
func Summarize(id string, meta model.MessageMeta) model.MessageSummary {
	s := model.MessageSummary{
		ID:      id,
		Subject: meta.Subject,
		Sender:  meta.From,
		Date:    meta.Date,
	}
	if s.Subject == "" {
		s.Subject = noSubject
	}
	if s.Sender == "" {
		s.Sender = noSender
	}
	if s.Date == "" {
		s.Date = noDate
	}
	s.Subject = util.Truncate(s.Subject, subjectMax)
	return s
}

func unavailableSummary(id string) model.MessageSummary {
	return model.MessageSummary{ID: id, Subject: unavailable, Sender: unavailable, Date: unavailable}
}
