package metastore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// MemberMeta is one consumer-group member's state, per spec §3.
type MemberMeta struct {
	GroupID            string            `json:"group_id"`
	MemberID           string            `json:"member_id"`
	ClientID           string            `json:"client_id"`
	ClientHost         string            `json:"client_host"`
	ProtocolType       string            `json:"protocol_type"`
	Protocols          map[string][]byte `json:"protocols"`
	ProtocolOrder      []string          `json:"protocol_order"`
	Assignment         []byte            `json:"assignment"`
	RebalanceTimeoutMs int32             `json:"rebalance_timeout_ms"`
	SessionTimeoutMs   int32             `json:"session_timeout_ms"`
}

// GroupMeta is the full per-group state stored as one opaque JSON blob, per
// spec §4.7.
type GroupMeta struct {
	GroupID      string                `json:"group_id"`
	GenerationID int32                 `json:"generation_id"`
	LeaderID     string                `json:"leader_id,omitempty"`
	Protocol     string                `json:"protocol,omitempty"`
	ProtocolType string                `json:"protocol_type,omitempty"`
	Members      map[string]MemberMeta `json:"members"`
}

func emptyGroupMeta(groupID string) GroupMeta {
	return GroupMeta{GroupID: groupID, GenerationID: 0, Members: map[string]MemberMeta{}}
}

// Mutator transforms a group's current state into its next state, or
// returns an error to abort the whole upsert (the transaction rolls back
// and the error is returned to the caller), per spec §4.7.
type Mutator func(current GroupMeta) (GroupMeta, error)

// UpsertGroup implements the shared JoinGroup/SyncGroup primitive: it
// optionally inserts a fresh empty group row, re-reads it FOR UPDATE, runs
// mutator, and writes the result back inside the same transaction.
func (s *Store) UpsertGroup(ctx context.Context, groupID string, insertIfMissing bool, mutator Mutator) (GroupMeta, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return GroupMeta{}, fmt.Errorf("metastore: begin group upsert: %w", err)
	}
	defer tx.Rollback(ctx)

	if insertIfMissing {
		blob, err := json.Marshal(emptyGroupMeta(groupID))
		if err != nil {
			return GroupMeta{}, fmt.Errorf("metastore: marshal empty group: %w", err)
		}
		if _, err := tx.Exec(ctx, `
			INSERT INTO consumer_groups (group_id, group_meta)
			VALUES ($1, $2)
			ON CONFLICT (group_id) DO NOTHING
		`, groupID, blob); err != nil {
			return GroupMeta{}, fmt.Errorf("metastore: insert empty group: %w", err)
		}
	}

	var raw []byte
	err = tx.QueryRow(ctx, `
		SELECT group_meta FROM consumer_groups WHERE group_id = $1 FOR UPDATE
	`, groupID).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return GroupMeta{}, ErrNotFound
	}
	if err != nil {
		return GroupMeta{}, fmt.Errorf("metastore: lock group row: %w", err)
	}

	var current GroupMeta
	if err := json.Unmarshal(raw, &current); err != nil {
		return GroupMeta{}, fmt.Errorf("metastore: unmarshal group meta: %w", err)
	}

	next, err := mutator(current)
	if err != nil {
		return GroupMeta{}, err
	}

	blob, err := json.Marshal(next)
	if err != nil {
		return GroupMeta{}, fmt.Errorf("metastore: marshal next group meta: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		UPDATE consumer_groups SET group_meta = $2 WHERE group_id = $1
	`, groupID, blob); err != nil {
		return GroupMeta{}, fmt.Errorf("metastore: write group meta: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return GroupMeta{}, fmt.Errorf("metastore: commit group upsert: %w", err)
	}
	return next, nil
}
