package outbox

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Consumer processes committed lifecycle events. Handle must be idempotent:
// the pipeline delivers at-least-once, so a consumer can see the same event
// again after a partial failure or a redelivery sweep.
type Consumer interface {
	// Name identifies the consumer for acknowledgment bookkeeping. It must be
	// stable across restarts.
	Name() string
	Handle(ctx context.Context, ev Event) error
}

const queueCapacity = 256

// Dispatcher fans committed events out to the registered consumers. Each
// consumer runs on its own goroutine and drains its own in-order queue, so a
// slow consumer never delays another and per-consumer delivery order matches
// commit order. A consumer failure leaves the event unacknowledged for the
// redelivery scheduler to pick up.
type Dispatcher struct {
	store     Store
	consumers []Consumer
	logger    *zap.Logger

	mu      sync.Mutex
	queues  map[string]chan Event
	wg      sync.WaitGroup
	started bool
	closed  bool
}

// NewDispatcher constructs a Dispatcher with the given consumers.
func NewDispatcher(store Store, logger *zap.Logger, consumers ...Consumer) *Dispatcher {
	if store == nil {
		panic("outbox store is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if len(consumers) == 0 {
		panic("at least one consumer is required")
	}

	seen := make(map[string]struct{}, len(consumers))
	for _, c := range consumers {
		if _, dup := seen[c.Name()]; dup {
			panic("duplicate consumer name: " + c.Name())
		}
		seen[c.Name()] = struct{}{}
	}

	return &Dispatcher{
		store:     store,
		consumers: consumers,
		logger:    logger,
		queues:    make(map[string]chan Event, len(consumers)),
	}
}

// ConsumerNames returns the registered consumer ids in registration order.
func (d *Dispatcher) ConsumerNames() []string {
	names := make([]string, 0, len(d.consumers))
	for _, c := range d.consumers {
		names = append(names, c.Name())
	}
	return names
}

// Start launches one worker goroutine per consumer. The workers run until
// Close is called; ctx bounds the individual Handle invocations.
func (d *Dispatcher) Start(ctx context.Context) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.started = true

	for _, c := range d.consumers {
		queue := make(chan Event, queueCapacity)
		d.queues[c.Name()] = queue
		d.wg.Add(1)
		go d.runWorker(ctx, c, queue)
	}
}

// Dispatch hands a committed event to every consumer queue. The send never
// blocks: if a queue is full the event is skipped for that consumer and the
// redelivery scheduler delivers it later.
func (d *Dispatcher) Dispatch(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started || d.closed {
		d.logger.Warn("dispatcher not running, event left for redelivery",
			zap.String("event_id", ev.ID.String()))
		return
	}

	for _, c := range d.consumers {
		select {
		case d.queues[c.Name()] <- ev:
		default:
			d.logger.Warn("consumer queue full, event left for redelivery",
				zap.String("consumer", c.Name()),
				zap.String("event_id", ev.ID.String()))
		}
	}
}

// Close stops accepting events and waits for the workers to drain.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	if d.closed || !d.started {
		d.closed = true
		d.mu.Unlock()
		return
	}
	d.closed = true
	for _, queue := range d.queues {
		close(queue)
	}
	d.mu.Unlock()

	d.wg.Wait()
}

func (d *Dispatcher) runWorker(ctx context.Context, c Consumer, queue <-chan Event) {
	defer d.wg.Done()

	logger := d.logger.With(zap.String("consumer", c.Name()))
	for ev := range queue {
		d.deliver(ctx, logger, c, ev)
	}
}

func (d *Dispatcher) deliver(ctx context.Context, logger *zap.Logger, c Consumer, ev Event) {
	if err := c.Handle(ctx, ev); err != nil {
		logger.Error("consumer failed, event stays pending",
			zap.String("event_id", ev.ID.String()),
			zap.String("event_type", string(ev.Type)),
			zap.String("organization_id", ev.OrganizationID()),
			zap.Error(err))
		return
	}

	if _, err := d.store.MarkAcknowledged(ctx, ev.ID, c.Name()); err != nil {
		// The consumer succeeded; a lost acknowledgment only causes a
		// redundant redelivery to an idempotent consumer.
		logger.Warn("recording acknowledgment failed",
			zap.String("event_id", ev.ID.String()),
			zap.Error(err))
	}
}
