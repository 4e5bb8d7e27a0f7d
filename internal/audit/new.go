package audit

import (
	"fmt"

	"github.com/darmiel/badgebot/internal/config"
	"github.com/darmiel/badgebot/internal/core"
)

// New creates the auditor configured in cfg.
func New(cfg config.AuditConfig) (core.Auditor, error) {
	if !cfg.Enabled {
		return NewNoopAuditor(), nil
	}
	switch cfg.Type {
	case "", "file":
		if cfg.Path == "" {
			return nil, fmt.Errorf("audit path is required for file auditor")
		}
		return NewFileAuditor(cfg.Path)
	case "memory":
		return NewInMemoryAuditor(), nil
	default:
		return nil, fmt.Errorf("unknown audit type: %s", cfg.Type)
	}
}
