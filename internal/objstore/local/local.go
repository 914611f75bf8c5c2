// Package local implements objstore.ReadWriter over the filesystem: each
// split key maps to one file rooted under a configured directory. Grounded
// on the teacher's friggdb local filesystem backend, generalized from
// tenant/block-scoped trace blobs to flat split keys.
package local

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"

	"github.com/moraxdb/morax/internal/objstore"
)

// Config is the local backend's configuration, registered under its own
// flag prefix by the owning component.
type Config struct {
	Path string `yaml:"path"`
}

// RegisterFlagsAndApplyDefaults registers this backend's flags under
// prefix.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	cfg.Path = "./data/splits"
	f.StringVar(&cfg.Path, prefix+".path", cfg.Path, "Directory root for locally stored split blobs.")
}

type readerWriter struct {
	cfg *Config
}

// New creates the local backend rooted at cfg.Path, creating the directory
// if it does not already exist.
func New(cfg *Config) (objstore.ReadWriter, error) {
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("local: create root %s: %w", cfg.Path, err)
	}
	return &readerWriter{cfg: cfg}, nil
}

func (rw *readerWriter) Write(_ context.Context, key string, data []byte) error {
	full := rw.path(key)
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("local: mkdir for %s: %w", key, err)
	}
	if err := os.WriteFile(full, data, 0o644); err != nil {
		return fmt.Errorf("local: write %s: %w", key, err)
	}
	return nil
}

func (rw *readerWriter) Read(_ context.Context, key string) ([]byte, error) {
	b, err := os.ReadFile(rw.path(key))
	if os.IsNotExist(err) {
		return nil, objstore.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("local: read %s: %w", key, err)
	}
	return b, nil
}

func (rw *readerWriter) path(key string) string {
	return filepath.Join(rw.cfg.Path, filepath.FromSlash(key))
}
