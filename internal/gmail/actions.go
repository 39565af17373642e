package gmail

import (
	"context"
	"fmt"
)

// Trash moves one message to Trash. Gmail keeps it recoverable for 30 days.
func (c *Client) Trash(ctx context.Context, id string) error {
	if _, err := c.svc.Users.Messages.Trash(user, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("trash message %s: %w", id, err)
	}
	return nil
}
