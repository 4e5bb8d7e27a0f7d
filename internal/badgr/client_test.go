package badgr

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func noBackoff(int) time.Duration { return 0 }

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	c, err := New(srv.URL, WithBackoff(noBackoff))
	require.NoError(t, err)
	return c, srv
}

func TestClassify(t *testing.T) {
	tests := []struct {
		status int
		kind   ErrorKind
		is     error
	}{
		{http.StatusUnauthorized, KindUnauthorized, ErrUnauthorized},
		{http.StatusNotFound, KindNotFound, ErrNotFound},
		{http.StatusInternalServerError, KindUnknown, nil},
		{http.StatusBadRequest, KindUnknown, nil},
		{http.StatusForbidden, KindUnknown, nil},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			err := Classify("op", tt.status, []byte("body"))
			require.Error(t, err)
			assert.Equal(t, tt.kind, KindOf(err))
			if tt.is != nil {
				assert.ErrorIs(t, err, tt.is)
			}
			var e *Error
			require.ErrorAs(t, err, &e)
			assert.Equal(t, tt.status, e.StatusCode)
			assert.Equal(t, "body", e.Body)
		})
	}

	assert.NoError(t, Classify("op", http.StatusOK, nil))
	assert.NoError(t, Classify("op", http.StatusNoContent, nil))
}

func TestError_IsOnlyMatchesKind(t *testing.T) {
	err := Classify("op", http.StatusUnauthorized, nil)
	assert.ErrorIs(t, err, ErrUnauthorized)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.NotErrorIs(t, err, ErrConfiguration)

	cfg := ConfigurationError("owner.token", "username secret is empty")
	assert.ErrorIs(t, cfg, ErrConfiguration)
	assert.Contains(t, cfg.Error(), "username secret is empty")
}

func TestBuildRequest(t *testing.T) {
	ctx := context.Background()

	req, err := BuildRequest(ctx, MethodPost, "https://api.badgr.io/v2/issuers", []byte(`{"a":1}`), "tok")
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "Bearer tok", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Contains(t, req.Header.Get("User-Agent"), "BadgeBot/")
	body, _ := io.ReadAll(req.Body)
	assert.JSONEq(t, `{"a":1}`, string(body))

	req, err = BuildRequest(ctx, MethodGet, "https://api.badgr.io/v2/users/self", nil, "")
	require.NoError(t, err)
	assert.Empty(t, req.Header.Get("Authorization"))

	_, err = BuildRequest(ctx, Method(42), "https://api.badgr.io", nil, "")
	assert.Error(t, err)
}

func TestExecute_Retries(t *testing.T) {
	tests := []struct {
		name      string
		statuses  []int
		wantCalls int32
		wantKind  ErrorKind
		wantErr   bool
	}{
		{"success first try", []int{200}, 1, 0, false},
		{"success after 5xx", []int{500, 502, 200}, 3, 0, false},
		{"exhausted", []int{500, 500, 500, 200}, 3, KindUnknown, true},
		{"401 is not retried", []int{401, 200}, 1, KindUnauthorized, true},
		{"404 is not retried", []int{404, 200}, 1, KindNotFound, true},
		{"400 is retried", []int{400, 200}, 2, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var calls atomic.Int32
			c, srv := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
				n := calls.Add(1)
				body, _ := io.ReadAll(r.Body)
				assert.Equal(t, `{"x":1}`, string(body), "body must be replayed on every attempt")
				w.WriteHeader(tt.statuses[n-1])
				_, _ = w.Write([]byte(`{}`))
			})

			req, err := BuildRequest(context.Background(), MethodPost, srv.URL, []byte(`{"x":1}`), "tok")
			require.NoError(t, err)
			_, _, err = c.Execute(req)

			assert.Equal(t, tt.wantCalls, calls.Load())
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Equal(t, tt.wantKind, KindOf(err))
		})
	}
}

func TestExecute_BackoffSchedule(t *testing.T) {
	var waits []int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	c, err := New(srv.URL, WithBackoff(func(attempt int) time.Duration {
		waits = append(waits, attempt)
		return 0
	}))
	require.NoError(t, err)

	req, err := BuildRequest(context.Background(), MethodGet, srv.URL, nil, "")
	require.NoError(t, err)
	_, status, err := c.Execute(req)
	require.Error(t, err)
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, []int{1, 2}, waits)

	assert.Equal(t, 2*time.Second, ExponentialBackoff(1))
	assert.Equal(t, 4*time.Second, ExponentialBackoff(2))
}

func TestExecute_TransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c, err := New(url, WithBackoff(noBackoff))
	require.NoError(t, err)
	req, err := BuildRequest(context.Background(), MethodGet, url, nil, "")
	require.NoError(t, err)

	_, _, err = c.Execute(req)
	require.Error(t, err)
	assert.Equal(t, KindUnknown, KindOf(err))
}

func TestExecute_ContextCancelledDuringBackoff(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	c, err := New(srv.URL, WithBackoff(func(int) time.Duration {
		cancel()
		return time.Hour
	}))
	require.NoError(t, err)

	req, err := BuildRequest(ctx, MethodGet, srv.URL, nil, "")
	require.NoError(t, err)
	_, _, err = c.Execute(req)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, int32(1), calls.Load())
}

func TestNew_EmptyBaseURL(t *testing.T) {
	_, err := New("")
	assert.ErrorIs(t, err, ErrConfiguration)
}

func writeResult(t *testing.T, w http.ResponseWriter, result any) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	require.NoError(t, json.NewEncoder(w).Encode(map[string]any{
		"status": map[string]any{"success": true, "description": "ok"},
		"result": result,
	}))
}
