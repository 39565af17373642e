package purge

import (
	"context"
	"fmt"

	"inboxpurge/internal/model"
	"inboxpurge/internal/tui"
)

// Observer is told the outcome of every trash call; err is nil on success.
type Observer func(position int, msg model.MessageSummary, err error)

// TrashAll trashes msgs one at a time in order. Failures are counted and
// reported and never stop the loop, so the result always sums to len(msgs).
// Once ctx is done the remaining messages are counted as failed without
// calling the provider.
func TrashAll(ctx context.Context, mb Mailbox, msgs []model.MessageSummary, rep Reporter, observe Observer) model.RunResult {
	w := rep.out()
	var res model.RunResult
	for i, m := range msgs {
		if err := ctx.Err(); err != nil {
			skipRemaining(msgs[i:], i, err, &res, rep, observe)
			break
		}
		n := i + 1
		fmt.Fprintf(w, "Deleting message %d: %s\n", n, m.ID)
		err := mb.Trash(ctx, m.ID)
		if err != nil {
			res.Failed++
			fmt.Fprintln(w, tui.Fail(fmt.Sprintf("Error deleting message %d: %v", n, err)))
			rep.log().Warn("trash failed", "id", m.ID, "error", err)
		} else {
			res.Successful++
			fmt.Fprintln(w, tui.OK(fmt.Sprintf("Successfully deleted message %d", n)))
		}
		if observe != nil {
			observe(i, m, err)
		}
	}
	return res
}

func skipRemaining(rest []model.MessageSummary, offset int, cause error, res *model.RunResult, rep Reporter, observe Observer) {
	res.Failed += len(rest)
	fmt.Fprintln(rep.out(), tui.Fail(fmt.Sprintf("Stopped: %d messages not deleted (%v)", len(rest), cause)))
	rep.log().Warn("trash interrupted", "remaining", len(rest), "error", cause)
	if observe == nil {
		return
	}
	for j, m := range rest {
		observe(offset+j, m, cause)
	}
}
