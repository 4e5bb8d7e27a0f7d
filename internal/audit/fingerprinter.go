package audit

import (
	"crypto/sha256"
	"encoding/base64"
	"strings"
)

// Fingerprint returns a stable, non-reversible identifier for one or more secrets.
// It is safe to log and to use as a cache key.
func Fingerprint(parts ...string) string {
	hash := sha256.Sum256([]byte(strings.Join(parts, "\x00")))
	return base64.StdEncoding.EncodeToString(hash[:])
}
