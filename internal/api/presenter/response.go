package presenter

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/darmiel/badgebot/internal/core"
	"github.com/darmiel/badgebot/internal/service"
)

type ErrorResponse struct {
	Code          string `json:"code,omitempty"`
	Message       string `json:"message"`
	CorrelationID string `json:"correlation_id,omitempty"`
}

func JSON(w http.ResponseWriter, r *http.Request, data any, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Ctx(r.Context()).Error().Err(err).Msg("failed to write json response")
	}
}

func Error(w http.ResponseWriter, r *http.Request, msg string, status int) {
	resp := ErrorResponse{
		Code:          service.CodeFor(status),
		Message:       msg,
		CorrelationID: core.CorrelationID(r.Context()),
	}
	JSON(w, r, resp, status)
}

// Err writes err as an error response. Service errors keep their status and code,
// anything else is an internal server error. short is only logged.
func Err(w http.ResponseWriter, r *http.Request, err error, short string) {
	status := http.StatusInternalServerError
	code := service.CodeInternalServerError
	var httpErr *service.HTTPError
	if errors.As(err, &httpErr) {
		status = httpErr.StatusCode
		code = httpErr.Code
	}

	logger := log.Ctx(r.Context())
	evt := logger.Warn()
	if status >= http.StatusInternalServerError {
		evt = logger.Error()
	}
	evt.Err(err).Int("status", status).Msg(short)

	JSON(w, r, ErrorResponse{
		Code:          code,
		Message:       err.Error(),
		CorrelationID: core.CorrelationID(r.Context()),
	}, status)
}
