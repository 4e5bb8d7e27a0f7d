package audit

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/badgebot/internal/config"
	"github.com/darmiel/badgebot/internal/core"
)

func TestReaders(t *testing.T) {
	file, err := NewFileAuditor(filepath.Join(t.TempDir(), "audit.jsonl"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = file.Close() })

	auditors := map[string]interface {
		core.Auditor
		core.AuditReader
	}{
		"memory": NewInMemoryAuditor(),
		"file":   file,
	}

	for name, a := range auditors {
		t.Run(name, func(t *testing.T) {
			for _, action := range []string{"badge.award", "identity.mismatch", "badge.award"} {
				e := Entry("req-"+action, action)
				e.Success = action == "badge.award"
				require.NoError(t, a.Log(e))
			}

			recent, err := a.GetRecent(2)
			require.NoError(t, err)
			require.Len(t, recent, 2)
			assert.Equal(t, "identity.mismatch", recent[0].Action)
			assert.Equal(t, "badge.award", recent[1].Action)

			awards, err := a.Find(func(e core.AuditEntry) bool { return e.Action == "badge.award" }, 10)
			require.NoError(t, err)
			assert.Len(t, awards, 2)

			none, err := a.Find(func(e core.AuditEntry) bool { return e.ID == "missing" }, 10)
			require.NoError(t, err)
			assert.Empty(t, none)
		})
	}
}

func TestFileAuditor_SkipsCorruptLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	require.NoError(t, os.WriteFile(path, []byte("not json\n"), 0o600))

	a, err := NewFileAuditor(path)
	require.NoError(t, err)
	t.Cleanup(func() { _ = a.Close() })
	require.NoError(t, a.Log(Entry("req-1", "badge.award")))

	entries, err := a.GetRecent(10)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, "req-1", entries[0].ID)
}

func TestNew(t *testing.T) {
	a, err := New(config.AuditConfig{})
	require.NoError(t, err)
	assert.IsType(t, &NoopAuditor{}, a)

	a, err = New(config.AuditConfig{Enabled: true, Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &InMemoryAuditor{}, a)

	_, err = New(config.AuditConfig{Enabled: true, Type: "file"})
	assert.Error(t, err)

	_, err = New(config.AuditConfig{Enabled: true, Type: "kafka"})
	assert.Error(t, err)
}

func TestFingerprint(t *testing.T) {
	assert.Equal(t, Fingerprint("a", "b"), Fingerprint("a", "b"))
	assert.NotEqual(t, Fingerprint("a", "b"), Fingerprint("ab"))
	assert.NotContains(t, Fingerprint("secret"), "secret")
}
