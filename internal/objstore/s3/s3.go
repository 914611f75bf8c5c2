// Package s3 implements objstore.ReadWriter against an S3-compatible
// object store via minio-go, the same client library the teacher's
// tempodb/backend/s3 package builds on.
package s3

import (
	"bytes"
	"context"
	"flag"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/moraxdb/morax/internal/objstore"
)

// Config is the s3 backend's configuration.
type Config struct {
	Endpoint  string `yaml:"endpoint"`
	Bucket    string `yaml:"bucket"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Insecure  bool   `yaml:"insecure"`
}

// RegisterFlagsAndApplyDefaults registers this backend's flags under
// prefix.
func (cfg *Config) RegisterFlagsAndApplyDefaults(prefix string, f *flag.FlagSet) {
	f.StringVar(&cfg.Endpoint, prefix+".endpoint", "", "S3-compatible endpoint host:port.")
	f.StringVar(&cfg.Bucket, prefix+".bucket", "", "Bucket that holds split blobs.")
	f.StringVar(&cfg.AccessKey, prefix+".access-key", "", "Static access key; empty uses the default credential chain.")
	f.StringVar(&cfg.SecretKey, prefix+".secret-key", "", "Static secret key.")
	f.BoolVar(&cfg.Insecure, prefix+".insecure", false, "Use plain HTTP instead of HTTPS to reach the endpoint.")
}

type readerWriter struct {
	cfg    *Config
	client *minio.Client
}

// New dials an S3-compatible endpoint and returns a ready backend. It does
// not verify the bucket exists; a missing bucket surfaces as an error on
// the first Read or Write.
func New(cfg *Config) (objstore.ReadWriter, error) {
	var creds *credentials.Credentials
	if cfg.AccessKey != "" {
		creds = credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, "")
	} else {
		creds = credentials.NewChainCredentials([]credentials.Provider{
			&credentials.EnvAWS{},
			&credentials.IAM{},
		})
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  creds,
		Secure: !cfg.Insecure,
	})
	if err != nil {
		return nil, fmt.Errorf("s3: new client: %w", err)
	}
	return &readerWriter{cfg: cfg, client: client}, nil
}

func (rw *readerWriter) Write(ctx context.Context, key string, data []byte) error {
	_, err := rw.client.PutObject(ctx, rw.cfg.Bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{})
	if err != nil {
		return fmt.Errorf("s3: put %s: %w", key, err)
	}
	return nil
}

func (rw *readerWriter) Read(ctx context.Context, key string) ([]byte, error) {
	obj, err := rw.client.GetObject(ctx, rw.cfg.Bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("s3: get %s: %w", key, err)
	}
	defer obj.Close()

	b, err := io.ReadAll(obj)
	if err != nil {
		resp := minio.ToErrorResponse(err)
		if resp.Code == "NoSuchKey" {
			return nil, objstore.ErrNotExist
		}
		return nil, fmt.Errorf("s3: read %s: %w", key, err)
	}
	return b, nil
}
