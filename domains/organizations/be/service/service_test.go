package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zenGate-Global/orgsync/domains/organizations/be/outbox"
	"github.com/zenGate-Global/orgsync/platform/go/directory"
)

// captureDispatcher records dispatched events instead of running consumers.
type captureDispatcher struct {
	mu     sync.Mutex
	events []outbox.Event
}

func (d *captureDispatcher) Dispatch(ev outbox.Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func (d *captureDispatcher) dispatched() []outbox.Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]outbox.Event, len(d.events))
	copy(out, d.events)
	return out
}

type fixture struct {
	svc        *Service
	dir        *directory.Memory
	store      *outbox.MemoryStore
	dispatcher *captureDispatcher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := directory.NewMemory()
	store := outbox.NewMemoryStore()
	dispatcher := &captureDispatcher{}
	svc := New(dir, store, dispatcher, "organizations", zap.NewNop())
	return &fixture{svc: svc, dir: dir, store: store, dispatcher: dispatcher}
}

func validOrganization() Organization {
	return Organization{
		Name:        "acme",
		DisplayName: "Acme Inc.",
		Aliases:     []string{"acme", "acme-labs"},
		Region:      "eu",
		Enabled:     true,
	}
}

func TestCreateRoundTrip(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, validOrganization())
	require.NoError(t, err)
	require.NotEmpty(t, created.ID)

	found, err := f.svc.FindByID(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, found)

	byName, err := f.svc.FindByName(ctx, "acme")
	require.NoError(t, err)
	require.Equal(t, created, byName)
}

func TestCreateCapturesCreatedEvent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, validOrganization())
	require.NoError(t, err)

	events := f.store.Events()
	require.Len(t, events, 1)
	require.Equal(t, outbox.EventTypeCreated, events[0].Type)
	require.Equal(t, "organizations", events[0].Source)
	require.Nil(t, events[0].Before)
	require.Equal(t, created.ID, events[0].After.ID)
	require.Equal(t, []string{"acme", "acme-labs"}, events[0].After.Aliases)

	dispatched := f.dispatcher.dispatched()
	require.Len(t, dispatched, 1)
	require.Equal(t, events[0].ID, dispatched[0].ID)
}

func TestCreateDefaultsAliasesToName(t *testing.T) {
	f := newFixture(t)

	candidate := validOrganization()
	candidate.Aliases = nil

	created, err := f.svc.Create(context.Background(), candidate)
	require.NoError(t, err)
	require.Equal(t, []string{"acme"}, created.Aliases)
}

func TestCreateValidatesFields(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name      string
		mutate    func(*Organization)
		wantField string
	}{
		{"invalid name", func(o *Organization) { o.Name = "Acme!" }, "name"},
		{"blank display name", func(o *Organization) { o.DisplayName = "  " }, "displayName"},
		{"invalid alias", func(o *Organization) { o.Aliases = []string{"ok", "Not OK"} }, "aliases"},
		{"blank region", func(o *Organization) { o.Region = "" }, "region"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			candidate := validOrganization()
			tt.mutate(&candidate)

			_, err := f.svc.Create(context.Background(), candidate)
			var constraintErr *ConstraintError
			require.ErrorAs(t, err, &constraintErr)
			require.Equal(t, tt.wantField, constraintErr.Violations[0].Field)
			require.Empty(t, f.store.Events(), "rejected candidates must not produce events")
		})
	}
}

func TestCreateRejectsDuplicateNameAndAlias(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.Create(ctx, validOrganization())
	require.NoError(t, err)

	dupName := validOrganization()
	_, err = f.svc.Create(ctx, dupName)
	var conflictErr *ConflictError
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, "name", conflictErr.Field)

	dupAlias := validOrganization()
	dupAlias.Name = "globex"
	dupAlias.Aliases = []string{"globex", "acme-labs"}
	_, err = f.svc.Create(ctx, dupAlias)
	require.ErrorAs(t, err, &conflictErr)
	require.Equal(t, "aliases", conflictErr.Field)
	require.Equal(t, "acme-labs", conflictErr.Value)
}

func TestUpdateCapturesBothSnapshots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, validOrganization())
	require.NoError(t, err)

	modified := created
	modified.DisplayName = "Acme International"
	modified.Aliases = []string{"acme", "acme-labs", "acme-intl"}

	updated, err := f.svc.Update(ctx, modified)
	require.NoError(t, err)
	require.Equal(t, "Acme International", updated.DisplayName)

	events := f.store.Events()
	require.Len(t, events, 2)
	ev := events[1]
	require.Equal(t, outbox.EventTypeUpdated, ev.Type)
	require.Equal(t, "Acme Inc.", ev.Before.DisplayName)
	require.Equal(t, "Acme International", ev.After.DisplayName)
}

func TestUpdateNameIsImmutable(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, validOrganization())
	require.NoError(t, err)

	renamed := created
	renamed.Name = "acme-renamed"

	_, err = f.svc.Update(ctx, renamed)
	var constraintErr *ConstraintError
	require.ErrorAs(t, err, &constraintErr)
	require.Equal(t, "name", constraintErr.Violations[0].Field)
	require.Len(t, f.store.Events(), 1, "rejected updates must not produce events")
}

func TestUpdateUnknownOrganization(t *testing.T) {
	f := newFixture(t)

	candidate := validOrganization()
	candidate.ID = "missing"

	_, err := f.svc.Update(context.Background(), candidate)
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
	require.Equal(t, "missing", notFoundErr.ID)
}

func TestUpdateKeepingOwnNameAndAliasesIsNotAConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, validOrganization())
	require.NoError(t, err)

	created.Region = "us"
	_, err = f.svc.Update(ctx, created)
	require.NoError(t, err)
}

func TestDeleteCapturesLastState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.Create(ctx, validOrganization())
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(ctx, created.ID))

	_, err = f.svc.FindByID(ctx, created.ID)
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)

	events := f.store.Events()
	require.Len(t, events, 2)
	ev := events[1]
	require.Equal(t, outbox.EventTypeDeleted, ev.Type)
	require.Nil(t, ev.After)
	require.Equal(t, created.ID, ev.Before.ID)
	require.Equal(t, "acme", ev.Before.Name)
}

func TestDeleteUnknownOrganization(t *testing.T) {
	f := newFixture(t)

	err := f.svc.Delete(context.Background(), "missing")
	var notFoundErr *NotFoundError
	require.ErrorAs(t, err, &notFoundErr)
}

func TestFindByRegionAndSearch(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	acme := validOrganization()
	_, err := f.svc.Create(ctx, acme)
	require.NoError(t, err)

	globex := Organization{
		Name:        "globex",
		DisplayName: "Globex Corp",
		Aliases:     []string{"globex"},
		Region:      "us",
		Enabled:     true,
	}
	_, err = f.svc.Create(ctx, globex)
	require.NoError(t, err)

	inEU, err := f.svc.FindByRegion(ctx, "eu")
	require.NoError(t, err)
	require.Len(t, inEU, 1)
	require.Equal(t, "acme", inEU[0].Name)

	matched, err := f.svc.Search(ctx, "GLOB")
	require.NoError(t, err)
	require.Len(t, matched, 1)
	require.Equal(t, "globex", matched[0].Name)

	all, err := f.svc.FindAll(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
}
