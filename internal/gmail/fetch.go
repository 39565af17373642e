package gmail

import (
	"context"
	"fmt"
	"strings"

	"inboxpurge/internal/model"

	gmailv1 "google.golang.org/api/gmail/v1"
)

const user = "me"

// summaryHeaders is the header subset requested with Format=metadata.
var summaryHeaders = []string{"Subject", "From", "Date"}

// Client adapts *gmailv1.Service to the three calls a purge run needs.
// It is created once after authentication and then only read.
type Client struct {
	svc *gmailv1.Service
}

func NewClient(svc *gmailv1.Service) *Client { return &Client{svc: svc} }

// Search lists message ids matching query. It reads a single page, so Gmail
// may return fewer than limit ids (and caps limit at 500).
func (c *Client) Search(ctx context.Context, query string, limit int64) ([]model.MessageRef, error) {
	resp, err := c.svc.Users.Messages.List(user).
		Q(query).
		MaxResults(limit).
		Context(ctx).
		Do()
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	refs := make([]model.MessageRef, 0, len(resp.Messages))
	for _, m := range resp.Messages {
		refs = append(refs, model.MessageRef{ID: m.Id})
	}
	return refs, nil
}

// GetMetadata reads the Subject, From and Date headers of one message. Headers
// that are absent come back empty.
func (c *Client) GetMetadata(ctx context.Context, id string) (model.MessageMeta, error) {
	msg, err := c.svc.Users.Messages.Get(user, id).
		Format("metadata").
		MetadataHeaders(summaryHeaders...).
		Context(ctx).
		Do()
	if err != nil {
		return model.MessageMeta{}, fmt.Errorf("get message %s: %w", id, err)
	}
	return metaFromPayload(msg.Payload), nil
}

func metaFromPayload(p *gmailv1.MessagePart) model.MessageMeta {
	var meta model.MessageMeta
	if p == nil {
		return meta
	}
	for _, h := range p.Headers {
		switch strings.ToLower(h.Name) {
		case "subject":
			meta.Subject = h.Value
		case "from":
			meta.From = h.Value
		case "date":
			meta.Date = h.Value
		}
	}
	return meta
}
