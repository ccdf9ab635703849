// Package publisher forwards committed organization lifecycle events to the
// external event broker's organization-state topic.
package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/zenGate-Global/orgsync/domains/organizations/be/outbox"
	"github.com/zenGate-Global/orgsync/platform/go/broker"
)

// ConsumerName identifies the publisher in outbox acknowledgments.
const ConsumerName = "state-publisher"

// DefaultTopic is the broker topic organization state is published to.
const DefaultTopic = "persistent://orgsync/platform/organization.state"

// StateMessage is the wire format of one published organization state change.
type StateMessage struct {
	ID        string       `json:"id"`
	EventType string       `json:"eventType"`
	Timestamp string       `json:"timestamp"`
	Source    string       `json:"source"`
	Payload   StatePayload `json:"payload"`
}

// StatePayload carries the organization snapshots around the transition.
type StatePayload struct {
	Before *outbox.Snapshot `json:"before"`
	After  *outbox.Snapshot `json:"after"`
}

// Publisher is the outbox consumer that serializes events and sends them to
// the broker, keyed by organization id so per-organization order survives
// partitioning. It acknowledges only after the broker confirmed receipt.
type Publisher struct {
	pub    broker.Publisher
	topic  string
	logger *zap.Logger
}

// New constructs a Publisher. An empty topic falls back to DefaultTopic.
func New(pub broker.Publisher, topic string, logger *zap.Logger) *Publisher {
	if pub == nil {
		panic("broker publisher is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	if topic == "" {
		topic = DefaultTopic
	}
	return &Publisher{pub: pub, topic: topic, logger: logger}
}

func (p *Publisher) Name() string {
	return ConsumerName
}

func (p *Publisher) Handle(ctx context.Context, ev outbox.Event) error {
	msg := StateMessage{
		ID:        ev.ID.String(),
		EventType: string(ev.Type),
		Timestamp: ev.RecordedAt.Format(time.RFC3339Nano),
		Source:    ev.Source,
		Payload:   StatePayload{Before: ev.Before, After: ev.After},
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal organization state: %w", err)
	}

	key := ev.OrganizationID()
	if err := p.pub.Publish(ctx, p.topic, key, payload); err != nil {
		return fmt.Errorf("publish organization state: %w", err)
	}

	p.logger.Debug("published organization state",
		zap.String("event_id", msg.ID),
		zap.String("event_type", msg.EventType),
		zap.String("organization_id", key))
	return nil
}

var _ outbox.Consumer = (*Publisher)(nil)
