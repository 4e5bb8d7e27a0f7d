package badgr

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrorKind classifies a failed credentialing call.
type ErrorKind int

const (
	// KindUnknown wraps any other non-success response or transport failure.
	KindUnknown ErrorKind = iota
	// KindUnauthorized means the credential is invalid or expired and the user has to sign in again.
	KindUnauthorized
	// KindNotFound means the target entity does not exist.
	KindNotFound
	// KindConfiguration means a required secret, id or email is missing.
	KindConfiguration
)

func (k ErrorKind) String() string {
	switch k {
	case KindUnauthorized:
		return "unauthorized"
	case KindNotFound:
		return "not_found"
	case KindConfiguration:
		return "configuration"
	default:
		return "unknown"
	}
}

// sentinels for errors.Is; they only match on Kind
var (
	ErrUnauthorized  = &Error{Kind: KindUnauthorized}
	ErrNotFound      = &Error{Kind: KindNotFound}
	ErrConfiguration = &Error{Kind: KindConfiguration}
)

// Error is the typed failure of a credentialing operation.
type Error struct {
	Kind ErrorKind

	// Op is the operation that failed (e.g. "issuers.list")
	Op string

	// StatusCode and Body are set if the failure came from an HTTP response.
	StatusCode int
	Body       string

	// Msg is an optional human-readable detail.
	Msg string

	Err error
}

func (e *Error) Error() string {
	var detail string
	switch {
	case e.Msg != "":
		detail = e.Msg
	case e.Kind == KindUnauthorized:
		detail = "invalid badgr access token"
	case e.Kind == KindNotFound:
		detail = "badgr API call failed, url not found"
	case e.StatusCode != 0:
		detail = fmt.Sprintf("%s - %s", http.StatusText(e.StatusCode), e.Body)
	default:
		detail = "request failed"
	}
	if e.Op != "" {
		detail = e.Op + ": " + detail
	}
	if e.Err != nil {
		detail += ": " + e.Err.Error()
	}
	return detail
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Op == "" && t.StatusCode == 0 && t.Err == nil && t.Msg == "" && t.Kind == e.Kind
}

// KindOf returns the kind of the first *Error in err's chain, or KindUnknown.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// ConfigurationError creates a KindConfiguration error for op.
func ConfigurationError(op, format string, args ...any) *Error {
	return &Error{
		Kind: KindConfiguration,
		Op:   op,
		Msg:  fmt.Sprintf(format, args...),
	}
}

// Classify maps a response status to a typed error. It returns nil for 2xx statuses.
func Classify(op string, statusCode int, body []byte) error {
	if statusCode >= 200 && statusCode < 300 {
		return nil
	}
	e := &Error{
		Op:         op,
		StatusCode: statusCode,
		Body:       string(body),
	}
	switch statusCode {
	case http.StatusUnauthorized:
		e.Kind = KindUnauthorized
	case http.StatusNotFound:
		e.Kind = KindNotFound
	default:
		e.Kind = KindUnknown
	}
	return e
}
