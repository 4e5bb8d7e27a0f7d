package client

import (
	"context"

	"github.com/darmiel/badgebot/internal/api"
	"github.com/darmiel/badgebot/internal/buildinfo"
)

func (c *Client) Info(ctx context.Context) (*buildinfo.Info, string, error) {
	var info buildinfo.Info
	correlation, err := c.get(ctx, c.url().
		setPath(api.AboutRoute).
		build(), &info)
	return &info, correlation, err
}

// ResourceStrings returns the UI string table served to the task module.
func (c *Client) ResourceStrings(ctx context.Context) (map[string]string, string, error) {
	var res map[string]string
	correlation, err := c.get(ctx, c.url().
		setPath(api.ResourceStringsRoute).
		build(), &res)
	return res, correlation, err
}
