package secrets

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/darmiel/badgebot/internal/core"
)

const (
	EnvType    = "env"
	StaticType = "static"
	FileType   = "file"

	DefaultEnvPrefix = "BADGEBOT_SECRET_"
)

var (
	_ core.SecretProvider = (*Env)(nil)
	_ core.SecretProvider = (*Static)(nil)
	_ core.SecretProvider = (*File)(nil)
)

type EnvConfig struct {
	Prefix string `mapstructure:"prefix"`
}

// Env reads the secret `su-name` from $BADGEBOT_SECRET_SU_NAME.
type Env struct {
	prefix string
}

func NewEnv(prefix string) *Env {
	if prefix == "" {
		prefix = DefaultEnvPrefix
	}
	return &Env{prefix: prefix}
}

func (e *Env) Name() string {
	return EnvType
}

// VarName returns the environment variable name for uri.
func (e *Env) VarName(uri string) string {
	name := strings.ToUpper(strings.ReplaceAll(secretName(uri), "-", "_"))
	return e.prefix + name
}

func (e *Env) GetSecret(_ context.Context, uri string) (string, error) {
	value, ok := os.LookupEnv(e.VarName(uri))
	if !ok {
		return "", fmt.Errorf("%w: %s", core.ErrSecretNotFound, e.VarName(uri))
	}
	return value, nil
}

type StaticConfig struct {
	Secrets map[string]string `mapstructure:"secrets"`
}

// Static serves secrets from configuration. Meant for development.
type Static struct {
	secrets map[string]string
}

func NewStatic(secrets map[string]string) *Static {
	if secrets == nil {
		secrets = map[string]string{}
	}
	return &Static{secrets: secrets}
}

func (s *Static) Name() string {
	return StaticType
}

// GetSecret looks up the full uri first, then the secret name.
func (s *Static) GetSecret(_ context.Context, uri string) (string, error) {
	if v, ok := s.secrets[uri]; ok {
		return v, nil
	}
	if v, ok := s.secrets[secretName(uri)]; ok {
		return v, nil
	}
	return "", fmt.Errorf("%w: %s", core.ErrSecretNotFound, secretName(uri))
}

type FileConfig struct {
	Dir string `mapstructure:"dir"`
}

// File reads one file per secret, e.g. mounted Kubernetes secrets.
type File struct {
	dir string
}

func NewFile(dir string) (*File, error) {
	if dir == "" {
		return nil, fmt.Errorf("dir is required for %s secrets", FileType)
	}
	return &File{dir: dir}, nil
}

func (f *File) Name() string {
	return FileType
}

func (f *File) GetSecret(_ context.Context, uri string) (string, error) {
	name := secretName(uri)
	if name == "" || name == "." || name == ".." {
		return "", fmt.Errorf("invalid secret name %q", name)
	}
	data, err := os.ReadFile(filepath.Join(f.dir, name))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", core.ErrSecretNotFound, name)
		}
		return "", fmt.Errorf("reading secret file: %w", err)
	}
	return strings.TrimSpace(string(data)), nil
}
