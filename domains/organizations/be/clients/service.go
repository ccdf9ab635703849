package clients

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/zenGate-Global/orgsync/platform/go/directory"
)

// organizationIDAttribute marks a directory client record as managed for an
// organization.
const organizationIDAttribute = "organizationId"

// Errors returned by the client service.
var (
	ErrNotFound = errors.New("client not found")
)

// Service provides CRUD over managed client registrations in the directory.
type Service struct {
	clients directory.Clients
	logger  *zap.Logger
}

// NewService constructs a Service with required dependencies.
func NewService(clients directory.Clients, logger *zap.Logger) *Service {
	if clients == nil {
		panic("directory clients API is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Service{clients: clients, logger: logger}
}

// FindByID returns the client with the given directory id.
func (s *Service) FindByID(ctx context.Context, id string) (Client, error) {
	rec, err := s.clients.Get(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("get client: %w", err)
	}
	return fromRecord(rec), nil
}

// FindByClientID returns the client matching the given OAuth client id.
func (s *Service) FindByClientID(ctx context.Context, clientID string) (Client, error) {
	rec, err := s.clients.FindByClientID(ctx, clientID)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("find client by client-id: %w", err)
	}
	return fromRecord(rec), nil
}

// FindByOrganizationID returns all managed clients that belong to the
// organization.
func (s *Service) FindByOrganizationID(ctx context.Context, organizationID string) ([]Client, error) {
	records, err := s.clients.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list clients: %w", err)
	}

	var owned []Client
	for _, rec := range records {
		if directory.Attribute(rec.Attributes, organizationIDAttribute) == organizationID {
			owned = append(owned, fromRecord(rec))
		}
	}
	s.logger.Debug("loaded clients for organization",
		zap.String("organization_id", organizationID),
		zap.Int("count", len(owned)))
	return owned, nil
}

// Create registers a new managed client in the directory. The client id must
// not be in use by another registration.
func (s *Service) Create(ctx context.Context, client Client) (Client, error) {
	if violations := client.Validate(); len(violations) > 0 {
		return Client{}, fmt.Errorf("client has invalid values: %v", violations)
	}

	existing, err := s.FindByClientID(ctx, client.ClientID)
	if err == nil && existing.ID != client.ID {
		return Client{}, fmt.Errorf("client with client-id %q already exists", client.ClientID)
	}
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Client{}, err
	}

	rec, err := s.clients.Create(ctx, toRecord(client))
	if err != nil {
		return Client{}, fmt.Errorf("create client %q: %w", client.ClientID, err)
	}

	created := fromRecord(rec)
	s.logger.Info("created client", zap.String("client_id", created.ClientID))
	return created, nil
}

// Update persists new values for an existing managed client.
func (s *Service) Update(ctx context.Context, client Client) (Client, error) {
	if violations := client.Validate(); len(violations) > 0 {
		return Client{}, fmt.Errorf("client has invalid values: %v", violations)
	}

	if err := s.clients.Update(ctx, toRecord(client)); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Client{}, ErrNotFound
		}
		return Client{}, fmt.Errorf("update client %q: %w", client.ClientID, err)
	}

	s.logger.Info("updated client", zap.String("client_id", client.ClientID))
	return client, nil
}

// Delete removes the managed client with the given directory id.
func (s *Service) Delete(ctx context.Context, id string) error {
	if err := s.clients.Delete(ctx, id); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return ErrNotFound
		}
		return fmt.Errorf("delete client: %w", err)
	}
	s.logger.Info("deleted client", zap.String("id", id))
	return nil
}

func toRecord(c Client) directory.ClientRecord {
	rec := directory.ClientRecord{
		ID:           c.ID,
		ClientID:     c.ClientID,
		Name:         c.Name,
		RedirectURIs: append([]string(nil), c.RedirectURIs...),
	}
	if c.OrganizationID != "" {
		rec.Attributes = map[string][]string{organizationIDAttribute: {c.OrganizationID}}
	}
	return rec
}

func fromRecord(rec directory.ClientRecord) Client {
	return Client{
		ID:             rec.ID,
		ClientID:       rec.ClientID,
		Name:           rec.Name,
		OrganizationID: directory.Attribute(rec.Attributes, organizationIDAttribute),
		RedirectURIs:   append([]string(nil), rec.RedirectURIs...),
	}
}
