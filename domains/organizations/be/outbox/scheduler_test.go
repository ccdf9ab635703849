package outbox

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestScheduler(store Store, consumers ...Consumer) *Scheduler {
	d := NewDispatcher(store, zap.NewNop(), consumers...)
	return NewScheduler(store, d, time.Hour, 5*time.Second, zap.NewNop())
}

func appendAged(t *testing.T, store *MemoryStore, ev Event, age time.Duration) Event {
	t.Helper()
	ev.RecordedAt = time.Now().UTC().Add(-age)
	require.NoError(t, store.InTransaction(context.Background(), func(ctx context.Context, append AppendFunc) error {
		return append(ev)
	}))
	return ev
}

func TestSchedulerRedeliversToMissingConsumers(t *testing.T) {
	store := NewMemoryStore()
	publisher := &recordingConsumer{name: "state-publisher"}
	reconciler := &recordingConsumer{name: "client-reconciler"}
	s := newTestScheduler(store, publisher, reconciler)

	ev := appendAged(t, store, Created("organizations", testSnapshot("org-1", "acme")), time.Minute)
	_, err := store.MarkAcknowledged(context.Background(), ev.ID, "state-publisher")
	require.NoError(t, err)

	s.Sweep(context.Background())

	require.Empty(t, publisher.events(), "acknowledged consumers are not redelivered to")
	require.Len(t, reconciler.events(), 1)
	require.True(t, store.Acknowledged(ev.ID, "client-reconciler"))

	pending, err := store.PendingOlderThan(context.Background(), 0, []string{"state-publisher", "client-reconciler"})
	require.NoError(t, err)
	require.Empty(t, pending, "a fully acknowledged event is closed by the sweep")
}

func TestSchedulerRetriesWithoutCap(t *testing.T) {
	store := NewMemoryStore()
	consumer := &recordingConsumer{name: "state-publisher", failures: 3}
	s := newTestScheduler(store, consumer)

	ev := appendAged(t, store, Created("organizations", testSnapshot("org-1", "acme")), time.Minute)

	// Three failing sweeps keep the event pending; the fourth succeeds.
	for i := 0; i < 3; i++ {
		s.Sweep(context.Background())
		require.False(t, store.Acknowledged(ev.ID, "state-publisher"))
	}
	s.Sweep(context.Background())
	require.True(t, store.Acknowledged(ev.ID, "state-publisher"))
	require.Len(t, consumer.events(), 1)
}

func TestSchedulerHonorsGraceWindow(t *testing.T) {
	store := NewMemoryStore()
	consumer := &recordingConsumer{name: "state-publisher"}
	s := newTestScheduler(store, consumer)

	appendAged(t, store, Created("organizations", testSnapshot("org-1", "acme")), 0)

	s.Sweep(context.Background())
	require.Empty(t, consumer.events(), "fresh events stay with the post-commit dispatch")
}

func TestSchedulerRedeliversInCreationOrder(t *testing.T) {
	store := NewMemoryStore()
	consumer := &recordingConsumer{name: "state-publisher"}
	s := newTestScheduler(store, consumer)

	first := appendAged(t, store, Created("organizations", testSnapshot("org-1", "acme")), 2*time.Minute)
	second := appendAged(t, store, Updated("organizations", testSnapshot("org-1", "acme"), testSnapshot("org-1", "acme")), time.Minute)

	s.Sweep(context.Background())

	handled := consumer.events()
	require.Len(t, handled, 2)
	require.Equal(t, first.ID, handled[0].ID)
	require.Equal(t, second.ID, handled[1].ID)
}

// blockingConsumer parks inside Handle until released.
type blockingConsumer struct {
	name     string
	entered  chan struct{}
	release  chan struct{}
	enterOne sync.Once
}

func (c *blockingConsumer) Name() string { return c.name }

func (c *blockingConsumer) Handle(ctx context.Context, ev Event) error {
	c.enterOne.Do(func() { close(c.entered) })
	<-c.release
	return nil
}

func TestSchedulerSkipsOverlappingSweep(t *testing.T) {
	store := NewMemoryStore()
	consumer := &blockingConsumer{
		name:    "state-publisher",
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	s := newTestScheduler(store, consumer)

	ev := appendAged(t, store, Created("organizations", testSnapshot("org-1", "acme")), time.Minute)

	done := make(chan struct{})
	go func() {
		defer close(done)
		s.Sweep(context.Background())
	}()
	<-consumer.entered

	// The second sweep returns immediately instead of queueing behind the
	// blocked one.
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		s.Sweep(context.Background())
	}()
	select {
	case <-finished:
	case <-time.After(time.Second):
		require.Fail(t, "overlapping sweep did not return")
	}

	close(consumer.release)
	<-done
	require.True(t, store.Acknowledged(ev.ID, "state-publisher"))
}
