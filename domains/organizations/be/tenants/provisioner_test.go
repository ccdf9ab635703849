package tenants

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zenGate-Global/orgsync/domains/organizations/be/outbox"
	"github.com/zenGate-Global/orgsync/platform/go/broker"
)

func testSnapshot(name string) outbox.Snapshot {
	return outbox.Snapshot{
		ID:          "org-1",
		Name:        name,
		DisplayName: "Test " + name,
		Aliases:     []string{name},
		Region:      "eu",
		Enabled:     true,
	}
}

func TestProvisionerLifecycle(t *testing.T) {
	mem := broker.NewMemory()
	p := New(mem, zap.NewNop())
	ctx := context.Background()
	require.Equal(t, ConsumerName, p.Name())

	require.NoError(t, p.Handle(ctx, outbox.Created("organizations", testSnapshot("acme"))))
	require.True(t, mem.HasTenant("acme"))

	require.NoError(t, p.Handle(ctx, outbox.Deleted("organizations", testSnapshot("acme"))))
	require.False(t, mem.HasTenant("acme"))
}

func TestProvisionerCreateIsIdempotent(t *testing.T) {
	mem := broker.NewMemory()
	p := New(mem, zap.NewNop())
	ctx := context.Background()

	ev := outbox.Created("organizations", testSnapshot("acme"))
	require.NoError(t, p.Handle(ctx, ev))
	require.NoError(t, p.Handle(ctx, ev), "a redelivered Created event must not fail on the existing tenant")
	require.True(t, mem.HasTenant("acme"))
}

func TestProvisionerDeleteToleratesMissingTenant(t *testing.T) {
	mem := broker.NewMemory()
	p := New(mem, zap.NewNop())

	ev := outbox.Deleted("organizations", testSnapshot("acme"))
	require.NoError(t, p.Handle(context.Background(), ev))
}

func TestProvisionerIgnoresUpdates(t *testing.T) {
	mem := broker.NewMemory()
	p := New(mem, zap.NewNop())

	before := testSnapshot("acme")
	after := testSnapshot("acme")
	after.DisplayName = "Acme International"

	require.NoError(t, p.Handle(context.Background(), outbox.Updated("organizations", before, after)))
	require.False(t, mem.HasTenant("acme"), "updates must not provision tenants")
}
