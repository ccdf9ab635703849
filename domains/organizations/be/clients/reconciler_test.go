package clients

import (
	"context"
	"sort"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/zenGate-Global/orgsync/domains/organizations/be/outbox"
	"github.com/zenGate-Global/orgsync/platform/go/directory"
)

func newTestReconciler(t *testing.T) (*Reconciler, *Service) {
	t.Helper()
	svc := NewService(directory.NewMemory().ClientAPI(), zap.NewNop())
	r := NewReconciler(svc, ReconcilerConfig{
		ClientIDPrefix:      "app-",
		RedirectURIPatterns: []string{"https://%{alias}%.example.com/*", "https://login.example.com/%{alias}%/callback"},
	}, zap.NewNop())
	return r, svc
}

func snapshot(id string, aliases ...string) outbox.Snapshot {
	return outbox.Snapshot{
		ID:          id,
		Name:        "acme",
		DisplayName: "Acme Inc.",
		Aliases:     aliases,
		Region:      "eu",
		Enabled:     true,
	}
}

func clientIDs(clients []Client) []string {
	ids := make([]string, 0, len(clients))
	for _, c := range clients {
		ids = append(ids, c.ClientID)
	}
	sort.Strings(ids)
	return ids
}

func TestReconcileCreatesClientPerAlias(t *testing.T) {
	r, svc := newTestReconciler(t)
	ctx := context.Background()

	ev := outbox.Created("organizations", snapshot("org-1", "acme", "acme-labs"))
	require.NoError(t, r.Handle(ctx, ev))

	owned, err := svc.FindByOrganizationID(ctx, "org-1")
	require.NoError(t, err)
	require.Equal(t, []string{"app-acme", "app-acme-labs"}, clientIDs(owned))

	for _, c := range owned {
		alias := c.ClientID[len("app-"):]
		require.Equal(t, "Acme Inc.: ["+alias+"]", c.Name)
		require.ElementsMatch(t, []string{
			"https://" + alias + ".example.com/*",
			"https://login.example.com/" + alias + "/callback",
		}, c.RedirectURIs)
		require.Equal(t, "org-1", c.OrganizationID)
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	r, svc := newTestReconciler(t)
	ctx := context.Background()

	ev := outbox.Created("organizations", snapshot("org-1", "acme", "acme-labs"))
	require.NoError(t, r.Handle(ctx, ev))
	require.NoError(t, r.Handle(ctx, ev))

	owned, err := svc.FindByOrganizationID(ctx, "org-1")
	require.NoError(t, err)
	require.Equal(t, []string{"app-acme", "app-acme-labs"}, clientIDs(owned))
	for _, c := range owned {
		require.Len(t, c.RedirectURIs, 2, "repeated reconciliation must not duplicate uris")
	}
}

func TestReconcileConvergesToDesiredAliasSet(t *testing.T) {
	r, svc := newTestReconciler(t)
	ctx := context.Background()

	before := snapshot("org-1", "a", "b", "c1")
	require.NoError(t, r.Handle(ctx, outbox.Created("organizations", before)))

	after := snapshot("org-1", "b", "c1", "d2")
	require.NoError(t, r.Handle(ctx, outbox.Updated("organizations", before, after)))

	owned, err := svc.FindByOrganizationID(ctx, "org-1")
	require.NoError(t, err)
	require.Equal(t, []string{"app-b", "app-c1", "app-d2"}, clientIDs(owned))
}

func TestReconcileRenamesClientsOnDisplayNameChange(t *testing.T) {
	r, svc := newTestReconciler(t)
	ctx := context.Background()

	before := snapshot("org-1", "acme")
	require.NoError(t, r.Handle(ctx, outbox.Created("organizations", before)))

	after := before
	after.DisplayName = "Acme International"
	require.NoError(t, r.Handle(ctx, outbox.Updated("organizations", before, after)))

	owned, err := svc.FindByOrganizationID(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	require.Equal(t, "Acme International: [acme]", owned[0].Name)
}

func TestReconcilePreservesGrantedRedirectURIs(t *testing.T) {
	r, svc := newTestReconciler(t)
	ctx := context.Background()

	before := snapshot("org-1", "acme")
	require.NoError(t, r.Handle(ctx, outbox.Created("organizations", before)))

	// An operator grants an extra URI out of band.
	owned, err := svc.FindByOrganizationID(ctx, "org-1")
	require.NoError(t, err)
	require.Len(t, owned, 1)
	granted := owned[0]
	granted.RedirectURIs = append(granted.RedirectURIs, "https://legacy.example.com/callback")
	_, err = svc.Update(ctx, granted)
	require.NoError(t, err)

	after := before
	after.DisplayName = "Acme International"
	require.NoError(t, r.Handle(ctx, outbox.Updated("organizations", before, after)))

	owned, err = svc.FindByOrganizationID(ctx, "org-1")
	require.NoError(t, err)
	require.Contains(t, owned[0].RedirectURIs, "https://legacy.example.com/callback",
		"reconciliation must never revoke a granted uri")
	require.Len(t, owned[0].RedirectURIs, 3)
}

func TestReconcileAliasSwap(t *testing.T) {
	r, svc := newTestReconciler(t)
	ctx := context.Background()

	before := snapshot("org-1", "x1")
	require.NoError(t, r.Handle(ctx, outbox.Created("organizations", before)))

	after := snapshot("org-1", "x2")
	require.NoError(t, r.Handle(ctx, outbox.Updated("organizations", before, after)))

	owned, err := svc.FindByOrganizationID(ctx, "org-1")
	require.NoError(t, err)
	require.Equal(t, []string{"app-x2"}, clientIDs(owned))
}

func TestDeletedEventRemovesAllClients(t *testing.T) {
	r, svc := newTestReconciler(t)
	ctx := context.Background()

	state := snapshot("org-1", "acme", "acme-labs")
	require.NoError(t, r.Handle(ctx, outbox.Created("organizations", state)))

	require.NoError(t, r.Handle(ctx, outbox.Deleted("organizations", state)))

	owned, err := svc.FindByOrganizationID(ctx, "org-1")
	require.NoError(t, err)
	require.Empty(t, owned)

	// Redelivery of the same deletion is a no-op.
	require.NoError(t, r.Handle(ctx, outbox.Deleted("organizations", state)))
}

func TestReconcileLeavesForeignClientsAlone(t *testing.T) {
	r, svc := newTestReconciler(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, Client{
		ClientID:       "app-globex",
		Name:           "Globex Corp: [globex]",
		OrganizationID: "org-2",
		RedirectURIs:   []string{"https://globex.example.com/*"},
	})
	require.NoError(t, err)

	require.NoError(t, r.Handle(ctx, outbox.Created("organizations", snapshot("org-1", "acme"))))

	foreign, err := svc.FindByOrganizationID(ctx, "org-2")
	require.NoError(t, err)
	require.Equal(t, []string{"app-globex"}, clientIDs(foreign))
}
