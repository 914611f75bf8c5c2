// Package metastore is the transactional metadata store backing every
// ordering and bookkeeping decision the broker makes: topic/partition
// registration, the offset/split commit transaction, consumer-group
// compare-and-swap, producer-id allocation, and Pub/Sub subscription +
// acknowledgement storage. See spec §4.6, §4.7, and §6.3 for the schema
// this package drives.
package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store wraps a pgx connection pool and exposes the metadata operations the
// broker handlers need. It holds no in-memory state of its own; the
// database is the single source of truth (spec §5, Shared resources).
type Store struct {
	pool *pgxpool.Pool
}

// Open connects to dsn and returns a ready Store. Callers are responsible
// for calling Close when done.
func Open(ctx context.Context, dsn string) (*Store, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("metastore: connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("metastore: ping: %w", err)
	}
	return &Store{pool: pool}, nil
}

// NewWithPool wraps an already-constructed pool, for tests that set up
// their own pgxpool.Pool (e.g. against a test container).
func NewWithPool(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying connection pool.
func (s *Store) Close() {
	s.pool.Close()
}

// Topic is one row of the topics relation.
type Topic struct {
	TopicID      uuid.UUID
	Name         string
	Partitions   int32
	StorageProps json.RawMessage
}

// StorageFormat names the wire shape a topic's splits are written in:
// FormatKafka for raw record-batch bytes (the Produce/Fetch path),
// FormatPubsub for JSON-encoded message arrays (the Pub/Sub publish/pull
// path). Produce rejects a non-Kafka topic with
// UNSUPPORTED_FOR_MESSAGE_FORMAT per spec §4.5.
type StorageFormat string

const (
	FormatKafka  StorageFormat = "kafka"
	FormatPubsub StorageFormat = "pubsub"
)

type storageProps struct {
	Format StorageFormat `json:"format"`
}

// Format parses the topic's storage descriptor, defaulting to
// FormatKafka when StorageProps is empty or names no format (a topic
// created via the Kafka CreateTopics path stores `{}`).
func (t Topic) Format() StorageFormat {
	if len(t.StorageProps) == 0 {
		return FormatKafka
	}
	var p storageProps
	if err := json.Unmarshal(t.StorageProps, &p); err != nil || p.Format == "" {
		return FormatKafka
	}
	return p.Format
}

// PubsubStorageProps builds the storage descriptor for a topic created
// through the Pub/Sub CreateTopic endpoint.
func PubsubStorageProps() json.RawMessage {
	b, _ := json.Marshal(storageProps{Format: FormatPubsub})
	return b
}

// ErrTopicAlreadyExists is returned by CreateTopic on a unique-constraint
// violation of topic_name, per spec §4.5 (CreateTopics maps this to
// TOPIC_ALREADY_EXISTS).
var ErrTopicAlreadyExists = errors.New("metastore: topic already exists")

// ErrNotFound is returned when a lookup by name or id finds nothing.
var ErrNotFound = errors.New("metastore: not found")

// CreateTopic inserts a new topic row. partitions is clamped to at least 1
// by the caller (spec §4.5: "num_partitions = max(requested, 1)").
func (s *Store) CreateTopic(ctx context.Context, name string, partitions int32, storageProps json.RawMessage) (Topic, error) {
	id := uuid.New()
	if storageProps == nil {
		storageProps = json.RawMessage(`{}`)
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO topics (topic_id, topic_name, partitions, properties)
		VALUES ($1, $2, $3, $4)
	`, id, name, partitions, storageProps)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return Topic{}, ErrTopicAlreadyExists
		}
		return Topic{}, fmt.Errorf("metastore: create topic: %w", err)
	}
	for p := int32(0); p < partitions; p++ {
		if _, err := s.pool.Exec(ctx, `
			INSERT INTO topic_partitions (topic_id, partition_id, last_offset)
			VALUES ($1, $2, 0)
		`, id, p); err != nil {
			return Topic{}, fmt.Errorf("metastore: create topic partition %d: %w", p, err)
		}
	}
	return Topic{TopicID: id, Name: name, Partitions: partitions, StorageProps: storageProps}, nil
}

// TopicByName looks up a topic by its unique name.
func (s *Store) TopicByName(ctx context.Context, name string) (Topic, error) {
	var t Topic
	err := s.pool.QueryRow(ctx, `
		SELECT topic_id, topic_name, partitions, properties
		FROM topics WHERE topic_name = $1
	`, name).Scan(&t.TopicID, &t.Name, &t.Partitions, &t.StorageProps)
	if errors.Is(err, pgx.ErrNoRows) {
		return Topic{}, ErrNotFound
	}
	if err != nil {
		return Topic{}, fmt.Errorf("metastore: topic by name: %w", err)
	}
	return t, nil
}

// TopicByID looks up a topic by its surrogate id.
func (s *Store) TopicByID(ctx context.Context, id uuid.UUID) (Topic, error) {
	var t Topic
	err := s.pool.QueryRow(ctx, `
		SELECT topic_id, topic_name, partitions, properties
		FROM topics WHERE topic_id = $1
	`, id).Scan(&t.TopicID, &t.Name, &t.Partitions, &t.StorageProps)
	if errors.Is(err, pgx.ErrNoRows) {
		return Topic{}, ErrNotFound
	}
	if err != nil {
		return Topic{}, fmt.Errorf("metastore: topic by id: %w", err)
	}
	return t, nil
}

// ListTopics returns every topic, for Metadata responses that request all
// topics.
func (s *Store) ListTopics(ctx context.Context) ([]Topic, error) {
	rows, err := s.pool.Query(ctx, `SELECT topic_id, topic_name, partitions, properties FROM topics`)
	if err != nil {
		return nil, fmt.Errorf("metastore: list topics: %w", err)
	}
	defer rows.Close()
	var out []Topic
	for rows.Next() {
		var t Topic
		if err := rows.Scan(&t.TopicID, &t.Name, &t.Partitions, &t.StorageProps); err != nil {
			return nil, fmt.Errorf("metastore: scan topic: %w", err)
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

// Split is one row of topic_partition_splits.
type Split struct {
	TopicID      uuid.UUID
	TopicName    string
	PartitionID  int32
	StartOffset  int64
	EndOffset    int64
	SplitID      string
}

// CommitRecordBatch is the transactional offset/split commit described in
// spec §4.6: it locks the partition's offset row, advances last_offset by
// recordLen, and inserts the split row pointing at the already-written
// blob. The FOR UPDATE lock on topic_partitions is the serialization point
// for concurrent commits on the same (topic_id, partition_id).
func (s *Store) CommitRecordBatch(ctx context.Context, topicName string, partitionID int32, recordLen int64, splitID string) (start, end int64, err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return 0, 0, fmt.Errorf("metastore: begin commit: %w", err)
	}
	defer tx.Rollback(ctx)

	var topicID uuid.UUID
	if err := tx.QueryRow(ctx, `SELECT topic_id FROM topics WHERE topic_name = $1`, topicName).Scan(&topicID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, 0, ErrNotFound
		}
		return 0, 0, fmt.Errorf("metastore: commit: topic lookup: %w", err)
	}

	if err := tx.QueryRow(ctx, `
		SELECT last_offset FROM topic_partitions
		WHERE topic_id = $1 AND partition_id = $2 FOR UPDATE
	`, topicID, partitionID).Scan(&start); err != nil {
		return 0, 0, fmt.Errorf("metastore: commit: lock offset row: %w", err)
	}

	end = start + recordLen

	if _, err := tx.Exec(ctx, `
		UPDATE topic_partitions SET last_offset = $3
		WHERE topic_id = $1 AND partition_id = $2
	`, topicID, partitionID, end); err != nil {
		return 0, 0, fmt.Errorf("metastore: commit: update offset: %w", err)
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO topic_partition_splits
			(topic_id, topic_name, partition_id, start_offset, end_offset, split_id)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, topicID, topicName, partitionID, start, end, splitID); err != nil {
		return 0, 0, fmt.Errorf("metastore: commit: insert split: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, 0, fmt.Errorf("metastore: commit: %w", err)
	}
	return start, end, nil
}

// SplitsAfter returns every split of (topicID, partitionID) whose
// end_offset exceeds fromOffset, ordered by end_offset ascending — the
// Fetch read path from spec §4.6.
func (s *Store) SplitsAfter(ctx context.Context, topicID uuid.UUID, partitionID int32, fromOffset int64) ([]Split, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT topic_id, topic_name, partition_id, start_offset, end_offset, split_id
		FROM topic_partition_splits
		WHERE topic_id = $1 AND partition_id = $2 AND end_offset > $3
		ORDER BY end_offset ASC
	`, topicID, partitionID, fromOffset)
	if err != nil {
		return nil, fmt.Errorf("metastore: splits after: %w", err)
	}
	defer rows.Close()
	var out []Split
	for rows.Next() {
		var sp Split
		if err := rows.Scan(&sp.TopicID, &sp.TopicName, &sp.PartitionID, &sp.StartOffset, &sp.EndOffset, &sp.SplitID); err != nil {
			return nil, fmt.Errorf("metastore: scan split: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// SplitsInRange returns every split of (topicID, partitionID) overlapping
// the half-open interval [start, end) — used by the Pub/Sub pull path to
// turn an unacked-ids window into concrete splits (spec §4.8).
func (s *Store) SplitsInRange(ctx context.Context, topicID uuid.UUID, partitionID int32, start, end int64) ([]Split, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT topic_id, topic_name, partition_id, start_offset, end_offset, split_id
		FROM topic_partition_splits
		WHERE topic_id = $1 AND partition_id = $2
		  AND start_offset < $4 AND end_offset > $3
		ORDER BY start_offset ASC
	`, topicID, partitionID, start, end)
	if err != nil {
		return nil, fmt.Errorf("metastore: splits in range: %w", err)
	}
	defer rows.Close()
	var out []Split
	for rows.Next() {
		var sp Split
		if err := rows.Scan(&sp.TopicID, &sp.TopicName, &sp.PartitionID, &sp.StartOffset, &sp.EndOffset, &sp.SplitID); err != nil {
			return nil, fmt.Errorf("metastore: scan split: %w", err)
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

// NextProducerID draws the next value from the process-wide producer-id
// sequence (spec §3, ProducerId).
func (s *Store) NextProducerID(ctx context.Context) (int64, error) {
	var id int64
	if err := s.pool.QueryRow(ctx, `SELECT nextval('producer_ids')`).Scan(&id); err != nil {
		return 0, fmt.Errorf("metastore: next producer id: %w", err)
	}
	return id, nil
}
