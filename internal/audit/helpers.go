package audit

import (
	"fmt"
	"time"

	"github.com/darmiel/badgebot/internal/buildinfo"
	"github.com/darmiel/badgebot/internal/core"
)

// CreateUserAgent builds the User-Agent sent to the credentialing API so upstream
// logs can be correlated with our audit trail.
func CreateUserAgent(correlationID, op string) string {
	return fmt.Sprintf("BadgeBot/%s (correlation_id=%s; op=%s)",
		buildinfo.Version, correlationID, op)
}

// Entry creates an audit entry for action stamped with the current time.
func Entry(correlationID, action string) core.AuditEntry {
	return core.AuditEntry{
		ID:       correlationID,
		Time:     time.Now(),
		Action:   action,
		Metadata: map[string]any{},
	}
}
