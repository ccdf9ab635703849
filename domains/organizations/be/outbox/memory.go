package outbox

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory Store for tests and local development. It keeps
// the same transactional visibility rule as the postgres implementation:
// events appended inside InTransaction become visible only when the callback
// returns nil.
type MemoryStore struct {
	mu        sync.Mutex
	events    []Event
	acks      map[uuid.UUID]map[string]struct{}
	completed map[uuid.UUID]struct{}
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		acks:      make(map[uuid.UUID]map[string]struct{}),
		completed: make(map[uuid.UUID]struct{}),
	}
}

func (s *MemoryStore) InTransaction(ctx context.Context, fn func(ctx context.Context, append AppendFunc) error) error {
	var staged []Event
	appendFn := func(ev Event) error {
		if err := ev.Validate(); err != nil {
			return err
		}
		staged = append(staged, ev)
		return nil
	}

	if err := fn(ctx, appendFn); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, staged...)
	return nil
}

func (s *MemoryStore) MarkAcknowledged(ctx context.Context, eventID uuid.UUID, consumerID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	acks, ok := s.acks[eventID]
	if !ok {
		acks = make(map[string]struct{})
		s.acks[eventID] = acks
	}
	if _, exists := acks[consumerID]; exists {
		return false, nil
	}
	acks[consumerID] = struct{}{}
	return true, nil
}

func (s *MemoryStore) CompleteFullyAcknowledged(ctx context.Context, consumerIDs []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	completed := 0
	for _, ev := range s.events {
		if _, done := s.completed[ev.ID]; done {
			continue
		}
		if len(s.missingLocked(ev.ID, consumerIDs)) == 0 {
			s.completed[ev.ID] = struct{}{}
			completed++
		}
	}
	return completed, nil
}

func (s *MemoryStore) PendingOlderThan(ctx context.Context, age time.Duration, consumerIDs []string) ([]PendingEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cutoff := time.Now().UTC().Add(-age)
	var pending []PendingEvent
	for _, ev := range s.events {
		if _, done := s.completed[ev.ID]; done {
			continue
		}
		if ev.RecordedAt.After(cutoff) {
			continue
		}
		missing := s.missingLocked(ev.ID, consumerIDs)
		if len(missing) == 0 {
			continue
		}
		pending = append(pending, PendingEvent{Event: ev, Missing: missing})
	}

	sort.SliceStable(pending, func(i, j int) bool {
		return pending[i].Event.RecordedAt.Before(pending[j].Event.RecordedAt)
	})
	return pending, nil
}

// Events returns a copy of all committed events in append order.
func (s *MemoryStore) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// Acknowledged reports whether the consumer has acknowledged the event.
func (s *MemoryStore) Acknowledged(eventID uuid.UUID, consumerID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.acks[eventID][consumerID]
	return ok
}

func (s *MemoryStore) missingLocked(eventID uuid.UUID, consumerIDs []string) []string {
	var missing []string
	for _, id := range consumerIDs {
		if _, ok := s.acks[eventID][id]; !ok {
			missing = append(missing, id)
		}
	}
	return missing
}

var _ Store = (*MemoryStore)(nil)
