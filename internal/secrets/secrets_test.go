package secrets

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/darmiel/badgebot/internal/config"
	"github.com/darmiel/badgebot/internal/core"
)

func TestVault_GetSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, DefaultAPIVersion, r.URL.Query().Get("api-version"))
		switch r.URL.Path {
		case "/secrets/su-name":
			_, _ = w.Write([]byte(`{"value": "owner@contoso.com"}`))
		case "/secrets/broken":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	v, err := NewVault(context.Background(), VaultConfig{})
	require.NoError(t, err)

	value, err := v.GetSecret(context.Background(), srv.URL+"/secrets/su-name")
	require.NoError(t, err)
	assert.Equal(t, "owner@contoso.com", value)

	_, err = v.GetSecret(context.Background(), srv.URL+"/secrets/missing")
	assert.ErrorIs(t, err, core.ErrSecretNotFound)

	_, err = v.GetSecret(context.Background(), srv.URL+"/secrets/broken")
	require.Error(t, err)
	assert.NotErrorIs(t, err, core.ErrSecretNotFound)
}

func TestVault_ClientCredentials(t *testing.T) {
	var tokenCalls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/token":
			tokenCalls++
			require.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token": "aad", "token_type": "Bearer", "expires_in": 3600}`))
		default:
			assert.Equal(t, "Bearer aad", r.Header.Get("Authorization"))
			_, _ = w.Write([]byte(`{"value": "s3cr3t"}`))
		}
	}))
	defer srv.Close()

	v, err := NewVault(context.Background(), VaultConfig{
		TokenURL:     srv.URL + "/token",
		ClientID:     "id",
		ClientSecret: "secret",
	})
	require.NoError(t, err)

	for range 2 {
		value, err := v.GetSecret(context.Background(), srv.URL+"/secrets/su-pass")
		require.NoError(t, err)
		assert.Equal(t, "s3cr3t", value)
	}
	assert.Equal(t, 1, tokenCalls, "token should be reused")

	_, err = NewVault(context.Background(), VaultConfig{TokenURL: srv.URL + "/token"})
	assert.Error(t, err)
}

func TestEnv_GetSecret(t *testing.T) {
	t.Setenv("BADGEBOT_SECRET_SU_NAME", "owner@contoso.com")
	e := NewEnv("")

	assert.Equal(t, "BADGEBOT_SECRET_SU_NAME", e.VarName("https://kv.vault.azure.net/secrets/su-name"))

	value, err := e.GetSecret(context.Background(), "https://kv.vault.azure.net/secrets/su-name")
	require.NoError(t, err)
	assert.Equal(t, "owner@contoso.com", value)

	_, err = e.GetSecret(context.Background(), "https://kv.vault.azure.net/secrets/su-pass")
	assert.ErrorIs(t, err, core.ErrSecretNotFound)
}

func TestStatic_GetSecret(t *testing.T) {
	s := NewStatic(map[string]string{
		"su-name":                         "by-name",
		"https://kv.example/secrets/full": "by-uri",
	})
	ctx := context.Background()

	v, err := s.GetSecret(ctx, "https://kv.example/secrets/su-name")
	require.NoError(t, err)
	assert.Equal(t, "by-name", v)

	v, err = s.GetSecret(ctx, "https://kv.example/secrets/full")
	require.NoError(t, err)
	assert.Equal(t, "by-uri", v)

	_, err = s.GetSecret(ctx, "https://kv.example/secrets/none")
	assert.ErrorIs(t, err, core.ErrSecretNotFound)
}

func TestFile_GetSecret(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "su-pass"), []byte("hunter2\n"), 0600))

	f, err := NewFile(dir)
	require.NoError(t, err)

	v, err := f.GetSecret(context.Background(), "https://kv.example/secrets/su-pass")
	require.NoError(t, err)
	assert.Equal(t, "hunter2", v)

	_, err = f.GetSecret(context.Background(), "https://kv.example/secrets/missing")
	assert.ErrorIs(t, err, core.ErrSecretNotFound)

	_, err = NewFile("")
	assert.Error(t, err)
}

func TestNew(t *testing.T) {
	tests := []struct {
		name     string
		cfg      config.SecretsConfig
		wantName string
		wantErr  bool
	}{
		{"env", config.SecretsConfig{Type: "env", Config: map[string]any{"prefix": "X_"}}, EnvType, false},
		{"static", config.SecretsConfig{Type: "static", Config: map[string]any{"secrets": map[string]any{"a": "b"}}}, StaticType, false},
		{"file", config.SecretsConfig{Type: "file", Config: map[string]any{"dir": "/run/secrets"}}, FileType, false},
		{"vault", config.SecretsConfig{Type: "vault", Config: map[string]any{"api_version": "7.3"}}, VaultType, false},
		{"file without dir", config.SecretsConfig{Type: "file"}, "", true},
		{"unknown", config.SecretsConfig{Type: "gopass"}, "", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(context.Background(), tt.cfg)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}
