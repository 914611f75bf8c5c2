// Package gcs implements objstore.ReadWriter against Google Cloud Storage.
// Grounded directly on the teacher's friggdb GCS backend: same
// bucket-handle-plus-writerAll/readAll shape, adapted from per-tenant block
// files to flat split keys.
package gcs

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"

	"cloud.google.com/go/storage"

	"github.com/moraxdb/morax/internal/objstore"
)

// Config is the gcs backend's configuration.
type Config struct {
	BucketName      string `yaml:"bucket_name"`
	ChunkBufferSize int    `yaml:"chunk_buffer_size"`
}

// RegisterFlagsAndApplyDefaults registers this backend's flags under
// prefix.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	cfg.ChunkBufferSize = 1 << 20
	f.StringVar(&cfg.BucketName, prefix+".bucket-name", "", "GCS bucket that holds split blobs.")
	f.IntVar(&cfg.ChunkBufferSize, prefix+".chunk-buffer-size", cfg.ChunkBufferSize, "Upload chunk size in bytes.")
}

type readerWriter struct {
	cfg    Config
	client *storage.Client
	bucket *storage.BucketHandle
}

// New dials GCS using application-default credentials and returns a ready
// backend bound to cfg.BucketName.
func New(ctx context.Context, cfg Config) (objstore.ReadWriter, error) {
	client, err := storage.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("gcs: new client: %w", err)
	}
	return &readerWriter{
		cfg:    cfg,
		client: client,
		bucket: client.Bucket(cfg.BucketName),
	}, nil
}

func (rw *readerWriter) Write(ctx context.Context, key string, data []byte) error {
	w := rw.bucket.Object(key).NewWriter(ctx)
	w.ChunkSize = rw.cfg.ChunkBufferSize

	if _, err := w.Write(data); err != nil {
		w.Close()
		return fmt.Errorf("gcs: write %s: %w", key, err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("gcs: close writer for %s: %w", key, err)
	}
	return nil
}

func (rw *readerWriter) Read(ctx context.Context, key string) ([]byte, error) {
	r, err := rw.bucket.Object(key).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, objstore.ErrNotExist
	}
	if err != nil {
		return nil, fmt.Errorf("gcs: open reader for %s: %w", key, err)
	}
	defer r.Close()

	b, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("gcs: read %s: %w", key, err)
	}
	return b, nil
}
