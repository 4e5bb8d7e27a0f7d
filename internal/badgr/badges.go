package badgr

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// ListBadgeClasses returns the badge classes of an issuer, newest first.
func (c *Client) ListBadgeClasses(ctx context.Context, token, issuerID string) ([]BadgeClass, error) {
	if issuerID == "" {
		return nil, ConfigurationError("badgeclasses.list", "issuer id cannot be empty")
	}
	u := fmt.Sprintf("%s/v2/issuers/%s/badgeclasses", c.baseURL, url.PathEscape(issuerID))

	var resp envelope[BadgeClass]
	if err := c.call(ctx, "badgeclasses.list", MethodGet, u, nil, token, &resp); err != nil {
		return nil, err
	}
	classes := resp.Result
	sort.SliceStable(classes, func(i, j int) bool {
		return classes[i].CreatedAt.After(classes[j].CreatedAt)
	})
	return classes, nil
}

// ListEarnedBadges returns the badges in the caller's backpack that were issued by issuerID.
func (c *Client) ListEarnedBadges(ctx context.Context, token, issuerID string) ([]EarnedBadgeView, error) {
	if issuerID == "" {
		return nil, ConfigurationError("earner.badges", "issuer id cannot be empty")
	}

	// v1 returns a bare array, no envelope
	var raw []EarnedBadge
	if err := c.call(ctx, "earner.badges", MethodGet, c.baseURL+"/v1/earner/badges", nil, token, &raw); err != nil {
		return nil, err
	}
	return FilterEarned(raw, issuerID), nil
}

// FilterEarned keeps badges whose issuer id contains "/<issuerID>" (case-insensitive).
func FilterEarned(raw []EarnedBadge, issuerID string) []EarnedBadgeView {
	suffix := strings.ToLower("/" + issuerID)
	views := make([]EarnedBadgeView, 0, len(raw))
	for i := range raw {
		if !strings.Contains(strings.ToLower(raw[i].JSON.Badge.Issuer.ID), suffix) {
			continue
		}
		views = append(views, raw[i].View())
	}
	return views
}

// AwardBadge creates one assertion per recipient in detail.
func (c *Client) AwardBadge(ctx context.Context, token, issuerID string, detail AssertionDetail) error {
	if issuerID == "" {
		return ConfigurationError("assertions.batch", "issuer id cannot be empty")
	}
	if detail.BadgeClassID == "" {
		return ConfigurationError("assertions.batch", "badge class id cannot be empty")
	}
	if detail.IssuerID == "" {
		detail.IssuerID = issuerID
	}
	u := fmt.Sprintf("%s/v1/issuer/issuers/%s/badges/%s/batchAssertions",
		c.baseURL, url.PathEscape(issuerID), url.PathEscape(detail.BadgeClassID))
	return c.call(ctx, "assertions.batch", MethodPost, u, detail, token, nil)
}
