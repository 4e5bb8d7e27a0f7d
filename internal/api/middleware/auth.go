package middleware

import (
	"errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/badgebot/internal/api/presenter"
	"github.com/darmiel/badgebot/internal/apitoken"
	"github.com/darmiel/badgebot/internal/core"
)

type CallerValidator interface {
	Validate(token string) (*core.Caller, error)
}

type AdminValidator interface {
	ValidateAdmin(token string) (string, error)
}

func bearer(r *http.Request) string {
	auth := r.Header.Get("Authorization")
	return strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))
}

// CallerAuth requires an internal API token and attaches its caller to the request context.
func CallerAuth(validator CallerValidator) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearer(r)
			if tokenStr == "" {
				presenter.Error(w, r, "login required", http.StatusUnauthorized)
				return
			}

			caller, err := validator.Validate(tokenStr)
			if err != nil {
				log.Ctx(r.Context()).Warn().Err(err).Msg("rejected api token")
				presenter.Error(w, r, "invalid api token", http.StatusUnauthorized)
				return
			}

			logger := log.Ctx(r.Context())
			logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("from_id", caller.FromID)
			})
			next.ServeHTTP(w, r.WithContext(core.WithCaller(r.Context(), caller)))
		})
	}
}

// AdminAuth is a middleware that checks for admin privileges in the session token.
func AdminAuth(validator AdminValidator) func(handler http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			tokenStr := bearer(r)
			if tokenStr == "" {
				presenter.Error(w, r, "login required", http.StatusUnauthorized)
				return
			}

			subject, err := validator.ValidateAdmin(tokenStr)
			if errors.Is(err, apitoken.ErrInsufficientPrivileges) {
				presenter.Error(w, r, "insufficient privileges", http.StatusForbidden)
				return
			}
			if err != nil {
				presenter.Error(w, r, "invalid session token", http.StatusUnauthorized)
				return
			}

			logger := log.Ctx(r.Context())
			logger.UpdateContext(func(c zerolog.Context) zerolog.Context {
				return c.Str("admin", subject)
			})
			next.ServeHTTP(w, r)
		})
	}
}
