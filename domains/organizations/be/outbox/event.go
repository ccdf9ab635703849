package outbox

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventType discriminates the lifecycle transition carried by an Event.
type EventType string

const (
	EventTypeCreated EventType = "CREATED"
	EventTypeUpdated EventType = "UPDATED"
	EventTypeDeleted EventType = "DELETED"
)

// Snapshot is the immutable organization state carried in event payloads.
// It is decoupled from the aggregate type so consumers and the wire format
// do not depend on the service layer.
type Snapshot struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	DisplayName string   `json:"displayName"`
	Aliases     []string `json:"aliases"`
	Region      string   `json:"region"`
	Enabled     bool     `json:"enabled"`
}

// Event is one captured lifecycle transition of an organization. Events are
// built through Created/Updated/Deleted so the payload invariants hold by
// construction: Created has only After, Deleted has only Before, Updated has
// both.
type Event struct {
	ID         uuid.UUID
	Type       EventType
	Source     string
	Before     *Snapshot
	After      *Snapshot
	RecordedAt time.Time
}

// Created builds the event for a newly created organization.
func Created(source string, after Snapshot) Event {
	return newEvent(EventTypeCreated, source, nil, &after)
}

// Updated builds the event for a modified organization.
func Updated(source string, before, after Snapshot) Event {
	return newEvent(EventTypeUpdated, source, &before, &after)
}

// Deleted builds the event for a removed organization.
func Deleted(source string, before Snapshot) Event {
	return newEvent(EventTypeDeleted, source, &before, nil)
}

func newEvent(t EventType, source string, before, after *Snapshot) Event {
	return Event{
		ID:         uuid.New(),
		Type:       t,
		Source:     source,
		Before:     before,
		After:      after,
		RecordedAt: time.Now().UTC(),
	}
}

// OrganizationID returns the id of the organization the event belongs to.
// It is used as the ordering key for dispatch and broker publication.
func (e Event) OrganizationID() string {
	if e.After != nil {
		return e.After.ID
	}
	if e.Before != nil {
		return e.Before.ID
	}
	return ""
}

// Validate checks the payload invariants for the event type. Events built via
// the constructors always pass; stored events are validated after decoding.
func (e Event) Validate() error {
	if e.ID == uuid.Nil {
		return fmt.Errorf("event id is required")
	}
	switch e.Type {
	case EventTypeCreated:
		if e.Before != nil || e.After == nil {
			return fmt.Errorf("created event must carry only an after snapshot")
		}
	case EventTypeUpdated:
		if e.Before == nil || e.After == nil {
			return fmt.Errorf("updated event must carry both snapshots")
		}
	case EventTypeDeleted:
		if e.Before == nil || e.After != nil {
			return fmt.Errorf("deleted event must carry only a before snapshot")
		}
	default:
		return fmt.Errorf("unknown event type %q", e.Type)
	}
	if e.OrganizationID() == "" {
		return fmt.Errorf("event snapshot is missing the organization id")
	}
	return nil
}
