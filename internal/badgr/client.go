package badgr

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/darmiel/badgebot/internal/config"
	"github.com/darmiel/badgebot/internal/obs"
)

const DefaultAttempts = 3

// Client talks to the Badgr REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	attempts   int

	// backoff returns the wait before the next attempt, given the 1-based attempt that just failed.
	backoff func(attempt int) time.Duration
}

type Option func(*Client)

// WithHTTPClient overrides the http.Client (default http.DefaultClient).
func WithHTTPClient(c *http.Client) Option {
	return func(client *Client) {
		client.httpClient = c
	}
}

// WithRateLimit limits outbound requests to r per second with burst b.
func WithRateLimit(r float64, b int) Option {
	return func(client *Client) {
		if r <= 0 {
			client.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		if b < 1 {
			b = 1
		}
		client.limiter = rate.NewLimiter(rate.Limit(r), b)
	}
}

// WithAttempts sets the maximum number of attempts per request.
func WithAttempts(n int) Option {
	return func(client *Client) {
		if n > 0 {
			client.attempts = n
		}
	}
}

// WithBackoff replaces the exponential backoff.
func WithBackoff(fn func(attempt int) time.Duration) Option {
	return func(client *Client) {
		client.backoff = fn
	}
}

// ExponentialBackoff waits 2^attempt seconds.
func ExponentialBackoff(attempt int) time.Duration {
	return time.Duration(math.Pow(2, float64(attempt))) * time.Second
}

func New(baseURL string, opts ...Option) (*Client, error) {
	normalized := strings.TrimRight(baseURL, "/")
	if normalized == "" {
		return nil, ConfigurationError("badgr.new", "base URL cannot be empty")
	}
	c := &Client{
		baseURL:    normalized,
		httpClient: http.DefaultClient,
		limiter:    rate.NewLimiter(rate.Inf, 0),
		attempts:   DefaultAttempts,
		backoff:    ExponentialBackoff,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func NewFromConfig(cfg config.BadgrConfig) (*Client, error) {
	return New(cfg.BaseURL,
		WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
		WithRateLimit(cfg.RateLimit, cfg.RateBurst),
		WithAttempts(cfg.RetryAttempts),
	)
}

// BaseURL returns the normalized API base URL.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Execute sends req with retries. Transport errors and non-success responses are retried
// with backoff, except 401 and 404 which fail at once. The returned error is typed (see Classify).
func (c *Client) Execute(req *http.Request) ([]byte, int, error) {
	ctx := req.Context()
	op := opFromContext(ctx)
	logger := log.Ctx(ctx).With().Str("op", op).Logger()

	var (
		lastErr    error
		lastStatus int
		lastBody   []byte
	)
	for attempt := 1; attempt <= c.attempts; attempt++ {
		if attempt > 1 {
			obs.BadgrRetries.WithLabelValues(op).Inc()
		}
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, 0, fmt.Errorf("%s: waiting for rate limiter: %w", op, err)
		}

		r, err := rewind(req, attempt)
		if err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}

		body, status, err := c.roundTrip(r)
		switch {
		case err != nil:
			obs.BadgrRequests.WithLabelValues(op, "error").Inc()
			if ctx.Err() != nil {
				return nil, 0, fmt.Errorf("%s: %w", op, ctx.Err())
			}
			lastErr, lastStatus, lastBody = err, 0, nil
			logger.Warn().Err(err).Int("attempt", attempt).Msg("badgr request failed")
		default:
			obs.BadgrRequests.WithLabelValues(op, strconv.Itoa(status)).Inc()
			if status >= 200 && status < 300 {
				return body, status, nil
			}
			classified := Classify(op, status, body)
			if status == http.StatusUnauthorized || status == http.StatusNotFound {
				logger.Error().Int("status", status).Msg("badgr request failed")
				return body, status, classified
			}
			lastErr, lastStatus, lastBody = classified, status, body
			logger.Warn().Int("status", status).Int("attempt", attempt).Msg("badgr request failed")
		}

		if attempt == c.attempts {
			break
		}
		if err := sleep(ctx, c.backoff(attempt)); err != nil {
			return nil, 0, fmt.Errorf("%s: %w", op, err)
		}
	}

	logger.Error().Err(lastErr).Int("attempts", c.attempts).Msg("badgr request exhausted retries")
	var typed *Error
	if !errors.As(lastErr, &typed) {
		lastErr = &Error{Kind: KindUnknown, Op: op, Err: lastErr}
	}
	return lastBody, lastStatus, lastErr
}

func (c *Client) roundTrip(req *http.Request) ([]byte, int, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("performing request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading response: %w", err)
	}
	return body, resp.StatusCode, nil
}

// rewind returns a request with a fresh body for attempts after the first.
func rewind(req *http.Request, attempt int) (*http.Request, error) {
	if attempt == 1 {
		return req, nil
	}
	r := req.Clone(req.Context())
	if req.GetBody != nil {
		body, err := req.GetBody()
		if err != nil {
			return nil, fmt.Errorf("rewinding request body: %w", err)
		}
		r.Body = body
	}
	return r, nil
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// call builds, executes and decodes a single operation.
func (c *Client) call(ctx context.Context, op string, method Method, url string, payload any, token string, out any) error {
	var body []byte
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("%s: marshalling payload: %w", op, err)
		}
		body = data
	}

	req, err := BuildRequest(withOp(ctx, op), method, url, body, token)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	respBody, _, err := c.Execute(req)
	if err != nil {
		return err
	}
	if out == nil || len(respBody) == 0 {
		return nil
	}
	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("%s: decoding response: %w", op, err)
	}
	return nil
}
