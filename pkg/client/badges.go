package client

import (
	"context"

	"github.com/darmiel/badgebot/internal/api"
	"github.com/darmiel/badgebot/internal/badgr"
	"github.com/darmiel/badgebot/internal/service"
)

// TeamMembers lists the members of a team. Requires a caller token.
func (c *Client) TeamMembers(ctx context.Context, teamID string) ([]service.TeamMember, string, error) {
	var res []service.TeamMember
	correlation, err := c.get(ctx, c.url().
		setPath(api.TeamMembersRoute).
		addQueryParam("teamId", teamID).
		build(), &res)
	return res, correlation, err
}

// AllBadges lists the badge classes of the issuer and the role of email in it.
func (c *Client) AllBadges(ctx context.Context, email string) (*service.AllBadgesResponse, string, error) {
	var res service.AllBadgesResponse
	correlation, err := c.get(ctx, c.url().
		setPath(api.AllBadgesRoute).
		addQueryParam("email", email).
		build(), &res)
	return &res, correlation, err
}

func (c *Client) EarnedBadges(ctx context.Context) ([]badgr.EarnedBadgeView, string, error) {
	var res []badgr.EarnedBadgeView
	correlation, err := c.get(ctx, c.url().
		setPath(api.EarnedBadgesRoute).
		build(), &res)
	return res, correlation, err
}

// AwardBadge creates the assertions in detail on behalf of the caller.
func (c *Client) AwardBadge(ctx context.Context, detail *badgr.AssertionDetail) (string, error) {
	var ok bool
	return c.post(ctx, c.url().
		setPath(api.AwardBadgeRoute).
		build(), detail, &ok)
}
