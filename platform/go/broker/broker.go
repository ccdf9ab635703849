// Package broker talks to the external event broker: topic publication with
// a per-message ordering key, and tenant administration.
package broker

import (
	"context"
	"errors"
)

var (
	// ErrTenantExists indicates a tenant with that name is already present.
	ErrTenantExists = errors.New("broker: tenant already exists")
	// ErrTenantNotFound indicates no tenant with that name exists.
	ErrTenantNotFound = errors.New("broker: tenant not found")
)

// Publisher publishes messages to a broker topic. Publish returns only after
// the broker confirmed receipt; messages with the same key keep their
// publication order on the topic.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload []byte) error
}

// TenantAdmin manages broker tenants.
type TenantAdmin interface {
	CreateTenant(ctx context.Context, name string) error
	DeleteTenant(ctx context.Context, name string) error
}
