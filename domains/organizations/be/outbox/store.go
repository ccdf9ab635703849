package outbox

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AppendFunc records one event in the transaction it was handed out for.
type AppendFunc func(ev Event) error

// PendingEvent is an incompletely delivered event together with the ids of
// the registered consumers that have not acknowledged it yet.
type PendingEvent struct {
	Event   Event
	Missing []string
}

// Store is the durable outbox shared between the mutating transaction, the
// post-commit dispatch and the redelivery sweep. Append is only reachable
// through InTransaction so an event can never be recorded outside the unit of
// work that caused it.
type Store interface {
	// InTransaction runs fn inside one transaction and hands it an AppendFunc
	// bound to that transaction. Events become visible to consumers only after
	// fn returns nil and the transaction commits.
	InTransaction(ctx context.Context, fn func(ctx context.Context, append AppendFunc) error) error

	// MarkAcknowledged records that one consumer finished the event. The write
	// is a compare-and-set: it reports true only for the first acknowledgment
	// of the (event, consumer) pair.
	MarkAcknowledged(ctx context.Context, eventID uuid.UUID, consumerID string) (bool, error)

	// CompleteFullyAcknowledged marks every event acknowledged by all given
	// consumers as complete and returns how many events were closed.
	CompleteFullyAcknowledged(ctx context.Context, consumerIDs []string) (int, error)

	// PendingOlderThan returns incomplete events recorded before now-age, in
	// creation order, each with the consumers still missing an acknowledgment.
	PendingOlderThan(ctx context.Context, age time.Duration, consumerIDs []string) ([]PendingEvent, error)
}
