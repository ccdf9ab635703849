package outbox

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestMemoryStoreAppendVisibility(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ev := Created("organizations", testSnapshot("org-1", "acme"))
	err := store.InTransaction(ctx, func(ctx context.Context, append AppendFunc) error {
		require.NoError(t, append(ev))
		require.Empty(t, store.Events(), "appended events must not be visible before commit")
		return nil
	})
	require.NoError(t, err)
	require.Len(t, store.Events(), 1)
	require.Equal(t, ev.ID, store.Events()[0].ID)
}

func TestMemoryStoreRollbackDiscardsAppends(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	boom := errors.New("directory unavailable")
	err := store.InTransaction(ctx, func(ctx context.Context, append AppendFunc) error {
		require.NoError(t, append(Created("organizations", testSnapshot("org-1", "acme"))))
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.Empty(t, store.Events())
}

func TestMemoryStoreAppendRejectsInvalidEvent(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	err := store.InTransaction(ctx, func(ctx context.Context, append AppendFunc) error {
		return append(Event{Type: EventTypeCreated})
	})
	require.Error(t, err)
	require.Empty(t, store.Events())
}

func TestMemoryStoreMarkAcknowledgedIsCAS(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	ev := Created("organizations", testSnapshot("org-1", "acme"))
	require.NoError(t, store.InTransaction(ctx, func(ctx context.Context, append AppendFunc) error {
		return append(ev)
	}))

	won, err := store.MarkAcknowledged(ctx, ev.ID, "state-publisher")
	require.NoError(t, err)
	require.True(t, won)

	won, err = store.MarkAcknowledged(ctx, ev.ID, "state-publisher")
	require.NoError(t, err)
	require.False(t, won, "second acknowledgment of the same pair must lose the race")

	won, err = store.MarkAcknowledged(ctx, ev.ID, "client-reconciler")
	require.NoError(t, err)
	require.True(t, won, "a different consumer acknowledges independently")
}

func TestMemoryStorePendingAndCompletion(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	consumers := []string{"state-publisher", "client-reconciler"}

	old := Created("organizations", testSnapshot("org-1", "acme"))
	old.RecordedAt = time.Now().UTC().Add(-time.Minute)
	fresh := Created("organizations", testSnapshot("org-2", "globex"))

	require.NoError(t, store.InTransaction(ctx, func(ctx context.Context, append AppendFunc) error {
		if err := append(old); err != nil {
			return err
		}
		return append(fresh)
	}))

	// Only the event past the grace window is eligible, and only the
	// consumers that have not acknowledged it are listed.
	_, err := store.MarkAcknowledged(ctx, old.ID, "state-publisher")
	require.NoError(t, err)

	pending, err := store.PendingOlderThan(ctx, 5*time.Second, consumers)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	require.Equal(t, old.ID, pending[0].Event.ID)
	require.Equal(t, []string{"client-reconciler"}, pending[0].Missing)

	// Completion closes events acknowledged by every consumer and removes
	// them from future sweeps.
	_, err = store.MarkAcknowledged(ctx, old.ID, "client-reconciler")
	require.NoError(t, err)

	completed, err := store.CompleteFullyAcknowledged(ctx, consumers)
	require.NoError(t, err)
	require.Equal(t, 1, completed)

	pending, err = store.PendingOlderThan(ctx, 5*time.Second, consumers)
	require.NoError(t, err)
	require.Empty(t, pending)

	completed, err = store.CompleteFullyAcknowledged(ctx, consumers)
	require.NoError(t, err)
	require.Zero(t, completed, "completion is idempotent")
}

func TestMemoryStorePendingOrderedByRecordedAt(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	second := Created("organizations", testSnapshot("org-2", "globex"))
	second.RecordedAt = time.Now().UTC().Add(-time.Minute)
	first := Created("organizations", testSnapshot("org-1", "acme"))
	first.RecordedAt = time.Now().UTC().Add(-2 * time.Minute)

	require.NoError(t, store.InTransaction(ctx, func(ctx context.Context, append AppendFunc) error {
		if err := append(second); err != nil {
			return err
		}
		return append(first)
	}))

	pending, err := store.PendingOlderThan(ctx, 5*time.Second, []string{"state-publisher"})
	require.NoError(t, err)
	require.Len(t, pending, 2)
	require.Equal(t, first.ID, pending[0].Event.ID)
	require.Equal(t, second.ID, pending[1].Event.ID)
}
