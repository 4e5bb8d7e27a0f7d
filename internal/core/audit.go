package core

import "time"

type AuditEntry struct {
	// ID is the unique request ID (X-Correlation-ID)
	ID string `json:"id"`

	// Time is the timestamp of the event
	Time time.Time `json:"time"`

	// Action describing what happened (e.g. "badge.award", "identity.mismatch")
	Action string `json:"action"`

	// Caller identifies who made the request (bot user id), if known
	Caller string `json:"caller,omitempty"`

	// Email is the Teams email of the caller, if known
	Email string `json:"email,omitempty"`

	// IssuerID is the credentialing organization the action was performed against
	IssuerID string `json:"issuer_id,omitempty"`

	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`

	// Metadata contains action details (badge class, recipient count, revoked tokens, ...)
	Metadata map[string]any `json:"metadata,omitempty"`
}

type Auditor interface {
	Log(entry AuditEntry) error
	Close() error
}

// AuditReader is implemented by auditors whose log can be queried.
type AuditReader interface {
	// GetRecent returns up to limit of the latest entries, oldest first.
	GetRecent(limit int) ([]AuditEntry, error)

	// Find returns up to limit of the latest entries matching filter, oldest first.
	Find(filter func(entry AuditEntry) bool, limit int) ([]AuditEntry, error)
}
