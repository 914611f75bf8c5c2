// Package objstore defines the pluggable backend for opaque split blobs:
// immutable payload bytes keyed by a broker-chosen split id. Concrete
// backends (local, s3, gcs) live in subpackages; this package only holds
// the shared Reader/Writer contract and key-naming helpers. See spec §4.5,
// §6.3, and component H.
package objstore

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Writer persists split blobs. Implementations must make Write's effects
// visible to a subsequent Read once Write returns (spec §5: "the blob is
// already persisted before BEGIN").
type Writer interface {
	// Write stores data under key, overwriting any existing object at that
	// key (splits are append-only by construction — a key is never reused
	// by this broker — but backends must not assume that).
	Write(ctx context.Context, key string, data []byte) error
}

// Reader retrieves previously written split blobs.
type Reader interface {
	// Read returns the full contents of key, or ErrNotExist if no object
	// exists there.
	Read(ctx context.Context, key string) ([]byte, error)
}

// ReadWriter is the full contract a split storage backend must implement.
type ReadWriter interface {
	Reader
	Writer
}

// ErrNotExist is returned by Read for a missing key.
var ErrNotExist = fmt.Errorf("objstore: object does not exist")

// KafkaSplitKey names a split blob written by the Kafka produce path:
// {topic_name}/{partition_id}/{split_id}, per spec §6.3.
func KafkaSplitKey(topicName string, partitionID int32, splitID string) string {
	return fmt.Sprintf("%s/%d/%s", topicName, partitionID, splitID)
}

// PubsubSplitKey names a split blob written by the Pub/Sub publish path:
// topic_{topic_id}/{split_id}.split, per spec §6.3.
func PubsubSplitKey(topicID uuid.UUID, splitID string) string {
	return fmt.Sprintf("topic_%s/%s.split", topicID, splitID)
}

// NewSplitID generates a fresh split identifier. Splits are immutable and
// never reused, so a random id (rather than a sequence) avoids needing a
// coordinated counter across brokers.
func NewSplitID() string {
	return uuid.New().String()
}
