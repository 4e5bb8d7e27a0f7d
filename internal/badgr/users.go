package badgr

import (
	"context"
	"errors"
	"fmt"
	"net/url"
)

// GetProfile returns the profile of the account token belongs to.
func (c *Client) GetProfile(ctx context.Context, token string) (*UserProfile, error) {
	var resp envelope[UserProfile]
	if err := c.call(ctx, "users.self", MethodGet, c.baseURL+"/v2/users/self", nil, token, &resp); err != nil {
		return nil, err
	}
	if len(resp.Result) == 0 {
		return nil, &Error{Kind: KindUnknown, Op: "users.self", Msg: "no user profile received"}
	}
	return &resp.Result[0], nil
}

// ListAccessTokens returns all access tokens of the account token belongs to.
func (c *Client) ListAccessTokens(ctx context.Context, token string) ([]AccessToken, error) {
	var resp envelope[AccessToken]
	if err := c.call(ctx, "tokens.list", MethodGet, c.baseURL+"/v2/auth/tokens", nil, token, &resp); err != nil {
		return nil, err
	}
	return resp.Result, nil
}

// RevokeAccessTokens deletes every token in tokens in order and returns how many were deleted.
// A failed deletion does not stop the remaining ones; all failures are joined into the returned error.
func (c *Client) RevokeAccessTokens(ctx context.Context, token string, tokens []AccessToken) (int, error) {
	if len(tokens) == 0 {
		return 0, &Error{Kind: KindUnknown, Op: "tokens.revoke", Msg: "no tokens received to revoke"}
	}
	var (
		revoked int
		errs    []error
	)
	for _, t := range tokens {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		u := fmt.Sprintf("%s/v2/auth/tokens/%s", c.baseURL, url.PathEscape(t.EntityID))
		if err := c.call(ctx, "tokens.revoke", MethodDelete, u, nil, token, nil); err != nil {
			errs = append(errs, fmt.Errorf("token %s: %w", t.EntityID, err))
			continue
		}
		revoked++
	}
	return revoked, errors.Join(errs...)
}
