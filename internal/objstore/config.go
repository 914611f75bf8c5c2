package objstore

import (
	"context"
	"flag"
	"fmt"

	"github.com/moraxdb/morax/internal/objstore/gcs"
	"github.com/moraxdb/morax/internal/objstore/local"
	"github.com/moraxdb/morax/internal/objstore/s3"
)

// Backend names which concrete ReadWriter implementation Config.New builds.
type Backend string

const (
	BackendLocal Backend = "local"
	BackendS3    Backend = "s3"
	BackendGCS   Backend = "gcs"
)

// Config selects and configures one split storage backend, following the
// teacher's "one Config struct embedding every backend's Config, gated by a
// Backend string field" shape used for its trace storage backend selection.
type Config struct {
	Backend Backend     `yaml:"backend"`
	Local   local.Config `yaml:"local"`
	S3      s3.Config    `yaml:"s3"`
	GCS     gcs.Config   `yaml:"gcs"`
}

// RegisterFlagsAndApplyDefaults registers flags for every backend under its
// own sub-prefix; Backend itself defaults to local, the zero-configuration
// choice for local development and tests.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	cfg.Backend = BackendLocal
	f.StringVar((*string)(&cfg.Backend), prefix+".backend", string(BackendLocal), "Split storage backend: local, s3, or gcs.")
	cfg.Local.RegisterFlagsAndApplyDefaults(prefix+".local", f)
	cfg.S3.RegisterFlagsAndApplyDefaults(prefix+".s3", f)
	cfg.GCS.RegisterFlagsAndApplyDefaults(prefix+".gcs", f)
}

// New builds the configured backend.
func (cfg *Config) New(ctx context.Context) (ReadWriter, error) {
	switch cfg.Backend {
	case BackendLocal, "":
		return local.New(&cfg.Local)
	case BackendS3:
		return s3.New(&cfg.S3)
	case BackendGCS:
		return gcs.New(ctx, cfg.GCS)
	default:
		return nil, fmt.Errorf("objstore: unknown backend %q", cfg.Backend)
	}
}
