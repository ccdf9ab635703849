package clients

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zenGate-Global/orgsync/domains/organizations/be/outbox"
)

// ConsumerName identifies the reconciler in outbox acknowledgments.
const ConsumerName = "client-reconciler"

// aliasPlaceholder is substituted with the alias in redirect URI templates.
const aliasPlaceholder = "%{alias}%"

// ReconcilerConfig configures the derivation of managed clients from aliases.
type ReconcilerConfig struct {
	// ClientIDPrefix prefixes every managed client id: clientId = prefix + alias.
	ClientIDPrefix string
	// RedirectURIPatterns are URI templates; each occurrence of %{alias}% is
	// replaced with the alias.
	RedirectURIPatterns []string
}

// Reconciler converges the set of managed clients for an organization to its
// current alias set. It is an outbox consumer and must stay idempotent: an
// unchanged alias set reconciles to a no-op.
type Reconciler struct {
	service *Service
	cfg     ReconcilerConfig
	logger  *zap.Logger
}

// NewReconciler constructs a Reconciler.
func NewReconciler(service *Service, cfg ReconcilerConfig, logger *zap.Logger) *Reconciler {
	if service == nil {
		panic("client service is required")
	}
	if cfg.ClientIDPrefix == "" {
		panic("client id prefix is required")
	}
	if len(cfg.RedirectURIPatterns) == 0 {
		panic("at least one redirect uri pattern is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Reconciler{service: service, cfg: cfg, logger: logger}
}

func (r *Reconciler) Name() string {
	return ConsumerName
}

// Handle converges managed clients for the event's organization. Created and
// Updated events reconcile against the after snapshot; Deleted events remove
// every client of the organization.
func (r *Reconciler) Handle(ctx context.Context, ev outbox.Event) error {
	switch ev.Type {
	case outbox.EventTypeCreated, outbox.EventTypeUpdated:
		return r.reconcile(ctx, *ev.After)
	case outbox.EventTypeDeleted:
		return r.removeAll(ctx, *ev.Before)
	default:
		return fmt.Errorf("unknown event type %q", ev.Type)
	}
}

func (r *Reconciler) reconcile(ctx context.Context, org outbox.Snapshot) error {
	r.logger.Info("reconciling clients for organization",
		zap.String("organization_id", org.ID),
		zap.Strings("aliases", org.Aliases))

	existing, err := r.service.FindByOrganizationID(ctx, org.ID)
	if err != nil {
		return err
	}

	desired := make(map[string]struct{}, len(org.Aliases))
	for _, alias := range org.Aliases {
		desired[alias] = struct{}{}
	}

	var toUpdate, toDelete []Client
	for _, client := range existing {
		if _, ok := desired[r.aliasFor(client)]; ok {
			toUpdate = append(toUpdate, client)
		} else {
			toDelete = append(toDelete, client)
		}
	}

	if err := r.updateClients(ctx, org, toUpdate); err != nil {
		return err
	}
	r.deleteClients(ctx, toDelete)

	// Aliases without a client yet, matched by the derived client-id suffix.
	// Suffix matching can misread an alias that is a suffix of another alias;
	// the global alias uniqueness invariant keeps the derived ids disjoint.
	var newAliases []string
	for _, alias := range org.Aliases {
		if !hasClientForAlias(existing, alias) {
			newAliases = append(newAliases, alias)
		}
	}
	return r.createClients(ctx, org, newAliases)
}

func (r *Reconciler) removeAll(ctx context.Context, org outbox.Snapshot) error {
	r.logger.Info("deleting all clients for organization", zap.String("organization_id", org.ID))
	existing, err := r.service.FindByOrganizationID(ctx, org.ID)
	if err != nil {
		return err
	}
	r.deleteClients(ctx, existing)
	return nil
}

// updateClients recomputes name and redirect URIs for clients whose alias is
// still desired. Redirect URIs only ever grow: pattern-derived URIs are
// unioned into the existing set, previously granted URIs are never removed.
// Clients already in the desired state are skipped to keep reconciliation
// idempotent.
func (r *Reconciler) updateClients(ctx context.Context, org outbox.Snapshot, clients []Client) error {
	for _, client := range clients {
		alias := r.aliasFor(client)

		merged := unionURIs(client.RedirectURIs, r.redirectURIsFor(alias))
		name := r.clientNameFor(org, alias)
		if name == client.Name && len(merged) == len(client.RedirectURIs) {
			continue
		}

		client.Name = name
		client.RedirectURIs = merged
		if _, err := r.service.Update(ctx, client); err != nil {
			return fmt.Errorf("update client %q: %w", client.ClientID, err)
		}
	}
	return nil
}

// deleteClients removes clients whose alias is no longer desired. Each
// deletion is attempted independently: a failure on one client is logged and
// does not abort the others, the redelivery sweep retries the whole set.
func (r *Reconciler) deleteClients(ctx context.Context, clients []Client) {
	for _, client := range clients {
		if err := r.service.Delete(ctx, client.ID); err != nil {
			r.logger.Error("failed to delete client for removed alias",
				zap.String("client_id", client.ClientID),
				zap.Error(err))
		}
	}
}

// createClients registers one client per new alias. A creation failure stops
// the remaining creations of this invocation; the redelivery sweep finishes
// the set.
func (r *Reconciler) createClients(ctx context.Context, org outbox.Snapshot, aliases []string) error {
	if len(aliases) == 0 {
		return nil
	}

	r.logger.Info("creating clients for new aliases",
		zap.String("organization_id", org.ID),
		zap.Strings("aliases", aliases))
	for _, alias := range aliases {
		client := Client{
			ClientID:       r.cfg.ClientIDPrefix + alias,
			Name:           r.clientNameFor(org, alias),
			OrganizationID: org.ID,
			RedirectURIs:   r.redirectURIsFor(alias),
		}
		if _, err := r.service.Create(ctx, client); err != nil {
			return fmt.Errorf("create client for alias %q: %w", alias, err)
		}
	}
	return nil
}

func (r *Reconciler) aliasFor(client Client) string {
	return strings.TrimPrefix(client.ClientID, r.cfg.ClientIDPrefix)
}

func (r *Reconciler) clientNameFor(org outbox.Snapshot, alias string) string {
	return fmt.Sprintf("%s: [%s]", org.DisplayName, alias)
}

func (r *Reconciler) redirectURIsFor(alias string) []string {
	uris := make([]string, 0, len(r.cfg.RedirectURIPatterns))
	for _, pattern := range r.cfg.RedirectURIPatterns {
		uris = append(uris, strings.ReplaceAll(pattern, aliasPlaceholder, alias))
	}
	return uris
}

func hasClientForAlias(clients []Client, alias string) bool {
	for _, client := range clients {
		if strings.HasSuffix(client.ClientID, "-"+alias) {
			return true
		}
	}
	return false
}

func unionURIs(existing, derived []string) []string {
	seen := make(map[string]struct{}, len(existing))
	merged := append([]string(nil), existing...)
	for _, uri := range existing {
		seen[uri] = struct{}{}
	}
	for _, uri := range derived {
		if _, ok := seen[uri]; !ok {
			seen[uri] = struct{}{}
			merged = append(merged, uri)
		}
	}
	return merged
}

var _ outbox.Consumer = (*Reconciler)(nil)
