package badgr

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"

	"github.com/darmiel/badgebot/internal/audit"
	"github.com/darmiel/badgebot/internal/core"
)

// Method is the closed set of HTTP verbs the credentialing API is called with.
type Method uint8

const (
	MethodGet Method = iota + 1
	MethodPost
	MethodDelete
)

func (m Method) String() string {
	switch m {
	case MethodGet:
		return http.MethodGet
	case MethodPost:
		return http.MethodPost
	case MethodDelete:
		return http.MethodDelete
	default:
		return ""
	}
}

type opKey struct{}

func withOp(ctx context.Context, op string) context.Context {
	return context.WithValue(ctx, opKey{}, op)
}

func opFromContext(ctx context.Context) string {
	if op, ok := ctx.Value(opKey{}).(string); ok {
		return op
	}
	return "unknown"
}

// BuildRequest creates a JSON request for the credentialing API.
// If token is non-empty, it is sent as bearer authorization.
// The URL is not validated, callers pass well-formed URLs.
func BuildRequest(ctx context.Context, method Method, url string, body []byte, token string) (*http.Request, error) {
	verb := method.String()
	if verb == "" {
		return nil, fmt.Errorf("unsupported method %d", method)
	}

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, verb, url, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	// inject audit user-agent
	req.Header.Set("User-Agent", audit.CreateUserAgent(core.CorrelationID(ctx), opFromContext(ctx)))
	return req, nil
}
