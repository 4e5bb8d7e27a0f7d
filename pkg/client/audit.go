package client

import (
	"context"

	"github.com/darmiel/badgebot/internal/api"
	"github.com/darmiel/badgebot/internal/core"
)

type ListAuditsOpts struct {
	Limit uint

	CorrelationID string
	Caller        string
	Action        string
}

// ListAudits retrieves the latest audit entries from the server. Requires an admin token.
func (c *Client) ListAudits(ctx context.Context, opts ListAuditsOpts) ([]core.AuditEntry, string, error) {
	ub := c.url().setPath(api.ListAuditsRoute)
	if opts.Limit > 0 {
		ub = ub.addQueryParam("limit", opts.Limit)
	}
	if opts.CorrelationID != "" {
		ub = ub.addQueryParam("correlation_id", opts.CorrelationID)
	}
	if opts.Caller != "" {
		ub = ub.addQueryParam("caller", opts.Caller)
	}
	if opts.Action != "" {
		ub = ub.addQueryParam("action", opts.Action)
	}
	var resp []core.AuditEntry
	correlation, err := c.get(ctx, ub.build(), &resp)
	return resp, correlation, err
}
