package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/darmiel/badgebot/internal/api/presenter"
	"github.com/darmiel/badgebot/internal/badgr"
	"github.com/darmiel/badgebot/internal/botframework"
	"github.com/darmiel/badgebot/internal/buildinfo"
	"github.com/darmiel/badgebot/internal/core"
)

const maxActivitySize = 1 << 20

// handleHealth responds with a simple OK status to indicate the server is healthy.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleAbout responds with service information including version and commit hash.
func (s *Server) handleAbout(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, buildinfo.GetBuildInfo(), http.StatusOK)
}

// handleResourceStrings returns the UI string table of the task module.
func (s *Server) handleResourceStrings(w http.ResponseWriter, r *http.Request) {
	presenter.JSON(w, r, s.strings.All(), http.StatusOK)
}

func DecodePayload(r *http.Request, dest any, allowEmpty bool) error {
	contentType := r.Header.Get("Content-Type")
	if contentType != "" {
		mediaType, _, err := mime.ParseMediaType(contentType)
		if err != nil {
			return fmt.Errorf("invalid content type: %w", err)
		}
		contentType = mediaType
	}
	switch contentType {
	case "application/json", "":
		// strict encoding for JSON
		dec := json.NewDecoder(r.Body)
		dec.DisallowUnknownFields()
		if err := dec.Decode(dest); err != nil {
			if !errors.Is(err, io.EOF) || !allowEmpty {
				return err
			}
		}
		// ensure there's no extra data
		if dec.More() {
			return errors.New("extra data in request body")
		}
		return nil
	default:
		return errors.New("unsupported content type")
	}
}

// handleMessages receives activities from the Bot Framework channel.
func (s *Server) handleMessages(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	if err := s.verifier.VerifyRequest(r); err != nil {
		logger.Warn().Err(err).Msg("rejected channel request")
		presenter.Error(w, r, "unauthorized", http.StatusUnauthorized)
		return
	}

	var activity botframework.Activity
	if err := json.NewDecoder(io.LimitReader(r.Body, maxActivitySize)).Decode(&activity); err != nil {
		logger.Warn().Err(err).Msg("failed to decode activity")
		presenter.Error(w, r, "invalid activity", http.StatusBadRequest)
		return
	}

	resp := s.bot.Handle(ctx, &activity)
	switch {
	case resp == nil:
		w.WriteHeader(http.StatusOK)
	case resp.Body == nil:
		w.WriteHeader(resp.Status)
	default:
		presenter.JSON(w, r, resp.Body, resp.Status)
	}
}

// handleTeamMembers lists the members of a team for the people picker.
func (s *Server) handleTeamMembers(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	members, err := s.badges.TeamMembers(ctx, core.CallerFromContext(ctx), r.URL.Query().Get("teamId"))
	if err != nil {
		presenter.Err(w, r, err, "failed to get team members")
		return
	}
	presenter.JSON(w, r, members, http.StatusOK)
}

// handleAllBadges lists the badge classes of the issuer and the caller's role.
func (s *Server) handleAllBadges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	email := r.URL.Query().Get("email")
	log.Ctx(ctx).UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str("email", email)
	})

	resp, err := s.badges.AllBadges(ctx, core.CallerFromContext(ctx), email)
	if err != nil {
		presenter.Err(w, r, err, "failed to get all badges")
		return
	}
	presenter.JSON(w, r, resp, http.StatusOK)
}

// handleEarnedBadges lists the caller's earned badges.
func (s *Server) handleEarnedBadges(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	earned, err := s.badges.EarnedBadges(ctx, core.CallerFromContext(ctx))
	if err != nil {
		presenter.Err(w, r, err, "failed to get earned badges")
		return
	}
	presenter.JSON(w, r, earned, http.StatusOK)
}

// handleAwardBadge awards a badge to the recipients in the request body.
func (s *Server) handleAwardBadge(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.Ctx(ctx)

	var detail *badgr.AssertionDetail
	if err := DecodePayload(r, &detail, true /* allow empty */); err != nil {
		logger.Warn().Err(err).Msg("failed to decode award payload")
		presenter.Error(w, r, "invalid request payload", http.StatusBadRequest)
		return
	}

	if err := s.badges.AwardBadge(ctx, core.CallerFromContext(ctx), detail); err != nil {
		presenter.Err(w, r, err, "failed to award badge")
		return
	}
	presenter.JSON(w, r, true, http.StatusOK)
}
