package badgr

import (
	"context"
	"fmt"
	"net/url"
)

// ListIssuers returns all issuers visible to token.
func (c *Client) ListIssuers(ctx context.Context, token string) ([]Issuer, error) {
	var resp envelope[Issuer]
	if err := c.call(ctx, "issuers.list", MethodGet, c.baseURL+"/v2/issuers", nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// GetIssuer returns a single issuer including its staff list.
func (c *Client) GetIssuer(ctx context.Context, token, issuerID string) (*Issuer, error) {
	if issuerID == "" {
		return nil, ConfigurationError("issuers.get", "issuer id cannot be empty")
	}
	u := fmt.Sprintf("%s/v2/issuers/%s", c.baseURL, url.PathEscape(issuerID))

	var resp envelope[Issuer]
	if err := c.call(ctx, "issuers.get", MethodGet, u, nil, token, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, &Error{Kind: KindNotFound, Op: "issuers.get", Msg: "issuer " + issuerID + " not found"}
	}
	return &resp.Result[0], nil
}

// AddStaff adds email to the issuer's staff with role.
func (c *Client) AddStaff(ctx context.Context, token, issuerID, email, role string) error {
	if issuerID == "" {
		return ConfigurationError("issuers.staff.add", "issuer id cannot be empty")
	}
	if email == "" {
		return ConfigurationError("issuers.staff.add", "email cannot be empty")
	}
	u := fmt.Sprintf("%s/v1/issuer/issuers/%s/staff", c.baseURL, url.PathEscape(issuerID))
	payload := addStaffRequest{
		Action: "add",
		Email:  email,
		Role:   role,
	}
	return c.call(ctx, "issuers.staff.add", MethodPost, u, payload, token, nil)
}
