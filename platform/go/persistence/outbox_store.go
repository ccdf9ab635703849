package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// OutboxEventRecord is the row shape of the outbox_events table. Payloads are
// stored as raw JSON; the domain layer owns their schema.
type OutboxEventRecord struct {
	ID             uuid.UUID
	OrganizationID string
	EventType      string
	Source         string
	Before         []byte
	After          []byte
	RecordedAt     time.Time
}

// PendingOutboxRecord pairs an incomplete event with the consumer ids that
// still owe an acknowledgment.
type PendingOutboxRecord struct {
	OutboxEventRecord
	MissingConsumers []string
}

// OutboxStore provides PostgreSQL-backed access to the outbox_events and
// outbox_acknowledgments tables. Acknowledgments are written with
// INSERT ... ON CONFLICT DO NOTHING so concurrent deliveries of the same
// event settle on exactly one recorded acknowledgment per consumer.
type OutboxStore struct {
	pool *pgxpool.Pool
}

// NewOutboxStore returns a store bound to the given pool.
func NewOutboxStore(pool *pgxpool.Pool) (*OutboxStore, error) {
	if pool == nil {
		return nil, errors.New("pool is required")
	}
	return &OutboxStore{pool: pool}, nil
}

// InTransaction runs fn inside one transaction; appends issued through the
// callback commit or roll back together with the caller's work.
func (s *OutboxStore) InTransaction(ctx context.Context, fn func(ctx context.Context, append func(OutboxEventRecord) error) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) // nolint:errcheck

	appendFn := func(rec OutboxEventRecord) error {
		return appendOutboxEvent(ctx, tx, rec)
	}

	if err := fn(ctx, appendFn); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

func appendOutboxEvent(ctx context.Context, tx pgx.Tx, rec OutboxEventRecord) error {
	if rec.ID == uuid.Nil {
		return errors.New("event id is required")
	}
	if rec.OrganizationID == "" {
		return errors.New("organization id is required")
	}

	if _, err := tx.Exec(ctx, `
		INSERT INTO outbox_events (id, organization_id, event_type, source, before_state, after_state, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, rec.ID, rec.OrganizationID, rec.EventType, rec.Source, rec.Before, rec.After, rec.RecordedAt); err != nil {
		return fmt.Errorf("append outbox event: %w", err)
	}
	return nil
}

// MarkAcknowledged records the acknowledgment of one consumer for one event.
// Returns true only when this call inserted the acknowledgment.
func (s *OutboxStore) MarkAcknowledged(ctx context.Context, eventID uuid.UUID, consumerID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		INSERT INTO outbox_acknowledgments (event_id, consumer_id)
		VALUES ($1, $2)
		ON CONFLICT (event_id, consumer_id) DO NOTHING
	`, eventID, consumerID)
	if err != nil {
		return false, fmt.Errorf("mark acknowledged: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// CompleteFullyAcknowledged closes every open event that has acknowledgments
// from all the given consumers.
func (s *OutboxStore) CompleteFullyAcknowledged(ctx context.Context, consumerIDs []string) (int, error) {
	if len(consumerIDs) == 0 {
		return 0, nil
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE outbox_events e
		SET completed_at = NOW()
		WHERE e.completed_at IS NULL
		  AND NOT EXISTS (
			SELECT 1
			FROM unnest($1::text[]) AS c(name)
			LEFT JOIN outbox_acknowledgments a ON a.event_id = e.id AND a.consumer_id = c.name
			WHERE a.event_id IS NULL
		  )
	`, consumerIDs)
	if err != nil {
		return 0, fmt.Errorf("complete outbox events: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

// PendingOlderThan returns incomplete events recorded at or before the cutoff,
// oldest first, with the consumers that have not acknowledged them.
func (s *OutboxStore) PendingOlderThan(ctx context.Context, cutoff time.Time, consumerIDs []string) ([]PendingOutboxRecord, error) {
	if len(consumerIDs) == 0 {
		return nil, nil
	}

	rows, err := s.pool.Query(ctx, `
		SELECT e.id, e.organization_id, e.event_type, e.source, e.before_state, e.after_state, e.recorded_at,
		       array_agg(c.name ORDER BY c.name) AS missing
		FROM outbox_events e
		CROSS JOIN unnest($2::text[]) AS c(name)
		LEFT JOIN outbox_acknowledgments a ON a.event_id = e.id AND a.consumer_id = c.name
		WHERE e.completed_at IS NULL
		  AND a.event_id IS NULL
		  AND e.recorded_at <= $1
		GROUP BY e.id
		ORDER BY e.recorded_at, e.id
	`, cutoff, consumerIDs)
	if err != nil {
		return nil, fmt.Errorf("query pending outbox events: %w", err)
	}
	defer rows.Close()

	var pending []PendingOutboxRecord
	for rows.Next() {
		var rec PendingOutboxRecord
		if err := rows.Scan(&rec.ID, &rec.OrganizationID, &rec.EventType, &rec.Source, &rec.Before, &rec.After, &rec.RecordedAt, &rec.MissingConsumers); err != nil {
			return nil, fmt.Errorf("scan pending outbox event: %w", err)
		}
		pending = append(pending, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending outbox events: %w", err)
	}
	return pending, nil
}
