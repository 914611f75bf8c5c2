package metastore

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/moraxdb/morax/internal/ackrange"
)

// Subscription is one row of the subscriptions relation.
type Subscription struct {
	SubscriptionID uuid.UUID
	Name           string
	TopicID        uuid.UUID
}

// CreateSubscription inserts a new subscription bound to topicID, with an
// empty initial acknowledgements row.
func (s *Store) CreateSubscription(ctx context.Context, name string, topicID uuid.UUID) (Subscription, error) {
	id := uuid.New()
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return Subscription{}, fmt.Errorf("metastore: begin create subscription: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
		INSERT INTO subscriptions (subscription_id, subscription_name, topic_id)
		VALUES ($1, $2, $3)
	`, id, name, topicID); err != nil {
		return Subscription{}, fmt.Errorf("metastore: create subscription: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO acknowledgements (subscription_id, topic_id, acks)
		VALUES ($1, $2, '{}')
	`, id, topicID); err != nil {
		return Subscription{}, fmt.Errorf("metastore: init acknowledgements: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return Subscription{}, fmt.Errorf("metastore: commit create subscription: %w", err)
	}
	return Subscription{SubscriptionID: id, Name: name, TopicID: topicID}, nil
}

// SubscriptionByName looks up a subscription by its unique name.
func (s *Store) SubscriptionByName(ctx context.Context, name string) (Subscription, error) {
	var sub Subscription
	err := s.pool.QueryRow(ctx, `
		SELECT subscription_id, subscription_name, topic_id
		FROM subscriptions WHERE subscription_name = $1
	`, name).Scan(&sub.SubscriptionID, &sub.Name, &sub.TopicID)
	if errors.Is(err, pgx.ErrNoRows) {
		return Subscription{}, ErrNotFound
	}
	if err != nil {
		return Subscription{}, fmt.Errorf("metastore: subscription by name: %w", err)
	}
	return sub, nil
}

// AckRanges returns the subscription's currently stored, merged range set.
func (s *Store) AckRanges(ctx context.Context, subscriptionID uuid.UUID) ([]ackrange.Range, error) {
	rows, err := fetchAckRanges(ctx, s.pool, subscriptionID)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

// Acknowledge merges ids into the subscription's stored range set under a
// row lock, per the Ack operation in spec §4.8.
func (s *Store) Acknowledge(ctx context.Context, subscriptionID uuid.UUID, ids []int64) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("metastore: begin acknowledge: %w", err)
	}
	defer tx.Rollback(ctx)

	var ranges pgInt8RangeArray
	if err := tx.QueryRow(ctx, `
		SELECT acks FROM acknowledgements WHERE subscription_id = $1 FOR UPDATE
	`, subscriptionID).Scan(&ranges); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrNotFound
		}
		return fmt.Errorf("metastore: lock acknowledgements: %w", err)
	}

	merged := ackrange.Ack(ranges.toRanges(), ids)

	if _, err := tx.Exec(ctx, `
		UPDATE acknowledgements SET acks = $2 WHERE subscription_id = $1
	`, subscriptionID, fromRanges(merged)); err != nil {
		return fmt.Errorf("metastore: update acknowledgements: %w", err)
	}
	return tx.Commit(ctx)
}

func fetchAckRanges(ctx context.Context, q interface {
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
}, subscriptionID uuid.UUID) ([]ackrange.Range, error) {
	var ranges pgInt8RangeArray
	err := q.QueryRow(ctx, `SELECT acks FROM acknowledgements WHERE subscription_id = $1`, subscriptionID).Scan(&ranges)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("metastore: fetch acknowledgements: %w", err)
	}
	return ranges.toRanges(), nil
}
