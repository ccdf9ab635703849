package outbox

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

const (
	// DefaultRepublishInterval is how often the redelivery sweep runs.
	DefaultRepublishInterval = 5 * time.Second
	// DefaultRepublishAge is the grace window before an incomplete event is
	// eligible for resubmission. It keeps the sweep from racing the initial
	// post-commit dispatch.
	DefaultRepublishAge = 5 * time.Second
)

// Scheduler periodically resubmits incomplete outbox events to the consumers
// that have not acknowledged them. It is the sole retry mechanism: sweeps run
// at a fixed interval with no backoff and no retry cap, so a permanently
// failing consumer is retried forever. A sweep that is still running when the
// next tick fires is skipped, not queued.
type Scheduler struct {
	store     Store
	consumers map[string]Consumer
	order     []string
	interval  time.Duration
	age       time.Duration
	logger    *zap.Logger

	sweeping atomic.Bool
	stop     chan struct{}
	done     chan struct{}
}

// NewScheduler constructs a Scheduler over the dispatcher's consumers. Zero
// interval or age fall back to the defaults.
func NewScheduler(store Store, dispatcher *Dispatcher, interval, age time.Duration, logger *zap.Logger) *Scheduler {
	if store == nil {
		panic("outbox store is required")
	}
	if dispatcher == nil {
		panic("dispatcher is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if interval <= 0 {
		interval = DefaultRepublishInterval
	}
	if age <= 0 {
		age = DefaultRepublishAge
	}

	consumers := make(map[string]Consumer, len(dispatcher.consumers))
	order := make([]string, 0, len(dispatcher.consumers))
	for _, c := range dispatcher.consumers {
		consumers[c.Name()] = c
		order = append(order, c.Name())
	}

	return &Scheduler{
		store:     store,
		consumers: consumers,
		order:     order,
		interval:  interval,
		age:       age,
		logger:    logger,
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start launches the periodic sweep on a dedicated goroutine.
func (s *Scheduler) Start(ctx context.Context) {
	go func() {
		defer close(s.done)
		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				s.Sweep(ctx)
			case <-s.stop:
				return
			case <-ctx.Done():
				return
			}
		}
	}()
}

// Close stops the periodic sweep and waits for it to finish.
func (s *Scheduler) Close() {
	close(s.stop)
	<-s.done
}

// Sweep resubmits every incomplete event older than the grace window to the
// consumers missing an acknowledgment, in creation order. Overlapping sweeps
// are skipped.
func (s *Scheduler) Sweep(ctx context.Context) {
	if !s.sweeping.CompareAndSwap(false, true) {
		s.logger.Debug("previous sweep still running, skipping")
		return
	}
	defer s.sweeping.Store(false)

	if _, err := s.store.CompleteFullyAcknowledged(ctx, s.order); err != nil {
		s.logger.Error("closing acknowledged events failed", zap.Error(err))
		return
	}

	pending, err := s.store.PendingOlderThan(ctx, s.age, s.order)
	if err != nil {
		s.logger.Error("loading pending events failed", zap.Error(err))
		return
	}
	if len(pending) == 0 {
		return
	}

	s.logger.Debug("republishing incomplete events", zap.Int("count", len(pending)))
	for _, p := range pending {
		s.redeliver(ctx, p)
	}

	if _, err := s.store.CompleteFullyAcknowledged(ctx, s.order); err != nil {
		s.logger.Error("closing acknowledged events failed", zap.Error(err))
	}
}

func (s *Scheduler) redeliver(ctx context.Context, p PendingEvent) {
	for _, name := range p.Missing {
		c, ok := s.consumers[name]
		if !ok {
			continue
		}

		if err := c.Handle(ctx, p.Event); err != nil {
			s.logger.Warn("redelivery failed, event stays pending",
				zap.String("consumer", name),
				zap.String("event_id", p.Event.ID.String()),
				zap.Error(err))
			continue
		}

		if _, err := s.store.MarkAcknowledged(ctx, p.Event.ID, name); err != nil {
			s.logger.Warn("recording acknowledgment failed",
				zap.String("consumer", name),
				zap.String("event_id", p.Event.ID.String()),
				zap.Error(err))
		}
	}
}
