package outbox

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/zenGate-Global/orgsync/platform/go/persistence"
)

// PostgresStore implements Store on top of the shared persistence layer.
type PostgresStore struct {
	store *persistence.OutboxStore
}

// NewPostgresStore constructs a store backed by persistence.OutboxStore.
func NewPostgresStore(store *persistence.OutboxStore) *PostgresStore {
	if store == nil {
		panic("outbox store is required")
	}
	return &PostgresStore{store: store}
}

func (s *PostgresStore) InTransaction(ctx context.Context, fn func(ctx context.Context, append AppendFunc) error) error {
	return s.store.InTransaction(ctx, func(ctx context.Context, appendRecord func(persistence.OutboxEventRecord) error) error {
		return fn(ctx, func(ev Event) error {
			if err := ev.Validate(); err != nil {
				return err
			}
			rec, err := toRecord(ev)
			if err != nil {
				return err
			}
			return appendRecord(rec)
		})
	})
}

func (s *PostgresStore) MarkAcknowledged(ctx context.Context, eventID uuid.UUID, consumerID string) (bool, error) {
	return s.store.MarkAcknowledged(ctx, eventID, consumerID)
}

func (s *PostgresStore) CompleteFullyAcknowledged(ctx context.Context, consumerIDs []string) (int, error) {
	return s.store.CompleteFullyAcknowledged(ctx, consumerIDs)
}

func (s *PostgresStore) PendingOlderThan(ctx context.Context, age time.Duration, consumerIDs []string) ([]PendingEvent, error) {
	records, err := s.store.PendingOlderThan(ctx, time.Now().UTC().Add(-age), consumerIDs)
	if err != nil {
		return nil, err
	}

	pending := make([]PendingEvent, 0, len(records))
	for _, rec := range records {
		ev, err := fromRecord(rec.OutboxEventRecord)
		if err != nil {
			return nil, err
		}
		pending = append(pending, PendingEvent{Event: ev, Missing: rec.MissingConsumers})
	}
	return pending, nil
}

func toRecord(ev Event) (persistence.OutboxEventRecord, error) {
	rec := persistence.OutboxEventRecord{
		ID:             ev.ID,
		OrganizationID: ev.OrganizationID(),
		EventType:      string(ev.Type),
		Source:         ev.Source,
		RecordedAt:     ev.RecordedAt,
	}

	var err error
	if ev.Before != nil {
		if rec.Before, err = json.Marshal(ev.Before); err != nil {
			return persistence.OutboxEventRecord{}, fmt.Errorf("marshal before snapshot: %w", err)
		}
	}
	if ev.After != nil {
		if rec.After, err = json.Marshal(ev.After); err != nil {
			return persistence.OutboxEventRecord{}, fmt.Errorf("marshal after snapshot: %w", err)
		}
	}
	return rec, nil
}

func fromRecord(rec persistence.OutboxEventRecord) (Event, error) {
	ev := Event{
		ID:         rec.ID,
		Type:       EventType(rec.EventType),
		Source:     rec.Source,
		RecordedAt: rec.RecordedAt,
	}

	if len(rec.Before) > 0 {
		ev.Before = &Snapshot{}
		if err := json.Unmarshal(rec.Before, ev.Before); err != nil {
			return Event{}, fmt.Errorf("unmarshal before snapshot: %w", err)
		}
	}
	if len(rec.After) > 0 {
		ev.After = &Snapshot{}
		if err := json.Unmarshal(rec.After, ev.After); err != nil {
			return Event{}, fmt.Errorf("unmarshal after snapshot: %w", err)
		}
	}

	if err := ev.Validate(); err != nil {
		return Event{}, fmt.Errorf("stored event %s: %w", rec.ID, err)
	}
	return ev, nil
}

var _ Store = (*PostgresStore)(nil)
