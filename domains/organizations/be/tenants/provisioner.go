// Package tenants binds broker tenants to the organization lifecycle: one
// tenant per organization, named after the immutable organization name.
package tenants

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zenGate-Global/orgsync/domains/organizations/be/outbox"
	"github.com/zenGate-Global/orgsync/platform/go/broker"
)

// ConsumerName identifies the provisioner in outbox acknowledgments.
const ConsumerName = "tenant-provisioner"

// Provisioner is the outbox consumer that creates a broker tenant when an
// organization is created and removes it when the organization is deleted.
// Updates are ignored: tenant identity is bound to the immutable name.
type Provisioner struct {
	admin  broker.TenantAdmin
	logger *zap.Logger
}

// New constructs a Provisioner.
func New(admin broker.TenantAdmin, logger *zap.Logger) *Provisioner {
	if admin == nil {
		panic("broker tenant admin is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Provisioner{admin: admin, logger: logger}
}

func (p *Provisioner) Name() string {
	return ConsumerName
}

func (p *Provisioner) Handle(ctx context.Context, ev outbox.Event) error {
	switch ev.Type {
	case outbox.EventTypeCreated:
		return p.createTenant(ctx, ev.After.Name)
	case outbox.EventTypeDeleted:
		return p.deleteTenant(ctx, ev.Before.Name)
	case outbox.EventTypeUpdated:
		return nil
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

// createTenant is idempotent: an already existing tenant satisfies a
// redelivered Created event.
func (p *Provisioner) createTenant(ctx context.Context, name string) error {
	p.logger.Info("creating broker tenant for organization", zap.String("tenant", name))
	if err := p.admin.CreateTenant(ctx, name); err != nil {
		if errors.Is(err, broker.ErrTenantExists) {
			p.logger.Debug("broker tenant already exists", zap.String("tenant", name))
			return nil
		}
		return err
	}
	return nil
}

func (p *Provisioner) deleteTenant(ctx context.Context, name string) error {
	p.logger.Info("deleting broker tenant for organization", zap.String("tenant", name))
	if err := p.admin.DeleteTenant(ctx, name); err != nil {
		if errors.Is(err, broker.ErrTenantNotFound) {
			p.logger.Debug("broker tenant already gone", zap.String("tenant", name))
			return nil
		}
		return err
	}
	return nil
}

var _ outbox.Consumer = (*Provisioner)(nil)
