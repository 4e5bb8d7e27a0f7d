package service

import (
	"errors"
	"net/http"

	"github.com/darmiel/badgebot/internal/badgr"
	"github.com/darmiel/badgebot/internal/reconcile"
)

// Error codes returned to the task module UI.
const (
	CodeSigninRequired      = "signinRequired"
	CodeBadRequest          = "badRequest"
	CodeForbidden           = "forbidden"
	CodeNotFound            = "notFound"
	CodeInternalServerError = "internalServerError"
)

const msgSigninRequired = "Badgr access token for user is found empty."

// HTTPError represents an error with an associated HTTP status code.
type HTTPError struct {
	StatusCode int
	Code       string

	// Message replaces the wrapped error's text in responses if set.
	Message string
	Wrapped error
}

func (e HTTPError) Error() string {
	if e.Message != "" {
		return e.Message
	}
	return e.Wrapped.Error()
}

func (e HTTPError) Unwrap() error {
	return e.Wrapped
}

func httpError(statusCode int, err error) *HTTPError {
	return &HTTPError{
		StatusCode: statusCode,
		Code:       CodeFor(statusCode),
		Wrapped:    err,
	}
}

func httpErrorMsg(statusCode int, msg string, err error) *HTTPError {
	e := httpError(statusCode, err)
	e.Message = msg
	return e
}

// CodeFor returns the error code for an HTTP status.
func CodeFor(statusCode int) string {
	switch statusCode {
	case http.StatusUnauthorized:
		return CodeSigninRequired
	case http.StatusBadRequest:
		return CodeBadRequest
	case http.StatusForbidden:
		return CodeForbidden
	case http.StatusNotFound:
		return CodeNotFound
	default:
		return CodeInternalServerError
	}
}

// upstreamError maps a credentialing error to the response the UI expects:
// an invalid or missing user credential asks for sign-in, everything else is an internal error.
// Rejected owner credentials arrive as configuration errors and answer 500.
func upstreamError(err error) *HTTPError {
	if errors.Is(err, badgr.ErrUnauthorized) || errors.Is(err, reconcile.ErrNotSignedIn) {
		return httpErrorMsg(http.StatusUnauthorized, msgSigninRequired, err)
	}
	return httpError(http.StatusInternalServerError, err)
}
