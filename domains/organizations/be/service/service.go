package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/zenGate-Global/orgsync/domains/organizations/be/outbox"
	"github.com/zenGate-Global/orgsync/platform/go/directory"
)

// Dispatcher hands committed events to the registered consumers.
type Dispatcher interface {
	Dispatch(ev outbox.Event)
}

// Service owns the organization aggregate: it validates candidates, persists
// them through the identity directory and captures every lifecycle transition
// in the outbox. The directory mutation and the outbox append form one unit
// of work: the append commits only after the directory accepted the change,
// and a directory failure surfaces before any event exists.
type Service struct {
	orgs       directory.Organizations
	store      outbox.Store
	dispatcher Dispatcher
	source     string
	logger     *zap.Logger
}

// New constructs a Service with required dependencies. source names this
// component in captured events.
func New(orgs directory.Organizations, store outbox.Store, dispatcher Dispatcher, source string, logger *zap.Logger) *Service {
	if orgs == nil {
		panic("directory organizations client is required")
	}
	if store == nil {
		panic("outbox store is required")
	}
	if dispatcher == nil {
		panic("dispatcher is required")
	}
	if source == "" {
		panic("event source is required")
	}
	if logger == nil {
		panic("logger is required")
	}
	return &Service{orgs: orgs, store: store, dispatcher: dispatcher, source: source, logger: logger}
}

// FindAll returns every organization known to the directory.
func (s *Service) FindAll(ctx context.Context) ([]Organization, error) {
	records, err := s.orgs.List(ctx)
	if err != nil {
		return nil, &ExternalError{Op: "list organizations", Err: err}
	}
	return mapRecords(records), nil
}

// FindByID returns the organization with the given id.
func (s *Service) FindByID(ctx context.Context, id string) (Organization, error) {
	rec, err := s.orgs.Get(ctx, id)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Organization{}, &NotFoundError{ID: id}
		}
		return Organization{}, &ExternalError{Op: "get organization", Err: err}
	}
	return fromRecord(rec), nil
}

// FindByName returns the organization with the given name.
func (s *Service) FindByName(ctx context.Context, name string) (Organization, error) {
	rec, err := s.orgs.FindByName(ctx, name)
	if err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Organization{}, &NotFoundError{ID: "name=" + name}
		}
		return Organization{}, &ExternalError{Op: "find organization by name", Err: err}
	}
	return fromRecord(rec), nil
}

// FindByRegion returns all organizations in the given region.
func (s *Service) FindByRegion(ctx context.Context, region string) ([]Organization, error) {
	records, err := s.orgs.SearchByAttribute(ctx, regionAttribute, region)
	if err != nil {
		return nil, &ExternalError{Op: "search organizations by region", Err: err}
	}
	return mapRecords(records), nil
}

// Search returns all organizations whose name or display name contains the
// term, case-insensitively.
func (s *Service) Search(ctx context.Context, term string) ([]Organization, error) {
	all, err := s.FindAll(ctx)
	if err != nil {
		return nil, err
	}

	term = strings.ToLower(term)
	var matched []Organization
	for _, o := range all {
		if strings.Contains(strings.ToLower(o.Name), term) || strings.Contains(strings.ToLower(o.DisplayName), term) {
			matched = append(matched, o)
		}
	}
	return matched, nil
}

// Create validates the candidate, persists it in the directory and captures a
// Created event. Empty aliases default to the organization name.
func (s *Service) Create(ctx context.Context, candidate Organization) (Organization, error) {
	if len(candidate.Aliases) == 0 {
		candidate.Aliases = []string{candidate.Name}
	}

	s.logger.Info("creating organization", zap.String("name", candidate.Name))
	if err := s.validate(ctx, candidate); err != nil {
		return Organization{}, err
	}

	rec, err := s.orgs.Create(ctx, toRecord(candidate))
	if err != nil {
		return Organization{}, &ExternalError{Op: "create organization", Err: err}
	}
	created := fromRecord(rec)

	ev := outbox.Created(s.source, toSnapshot(created))
	if err := s.capture(ctx, ev); err != nil {
		return Organization{}, err
	}

	s.logger.Info("created organization", zap.String("id", created.ID), zap.String("name", created.Name))
	return created, nil
}

// Update persists new values for an existing organization and captures an
// Updated event with both snapshots. The name is immutable: it keys the
// broker tenant.
func (s *Service) Update(ctx context.Context, candidate Organization) (Organization, error) {
	existing, err := s.FindByID(ctx, candidate.ID)
	if err != nil {
		return Organization{}, err
	}

	s.logger.Info("updating organization", zap.String("id", candidate.ID), zap.String("name", existing.Name))
	if candidate.Name != existing.Name {
		return Organization{}, &ConstraintError{Violations: []Violation{
			{Field: "name", Message: "is immutable"},
		}}
	}
	if err := s.validate(ctx, candidate); err != nil {
		return Organization{}, err
	}

	if err := s.orgs.Update(ctx, toRecord(candidate)); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return Organization{}, &NotFoundError{ID: candidate.ID}
		}
		return Organization{}, &ExternalError{Op: "update organization", Err: err}
	}

	ev := outbox.Updated(s.source, toSnapshot(existing), toSnapshot(candidate))
	if err := s.capture(ctx, ev); err != nil {
		return Organization{}, err
	}

	s.logger.Info("updated organization", zap.String("id", candidate.ID))
	return candidate, nil
}

// Delete removes the organization from the directory and captures a Deleted
// event carrying the last known state.
func (s *Service) Delete(ctx context.Context, id string) error {
	existing, err := s.FindByID(ctx, id)
	if err != nil {
		return err
	}

	s.logger.Info("deleting organization", zap.String("id", id), zap.String("name", existing.Name))
	if err := s.orgs.Delete(ctx, id); err != nil {
		if errors.Is(err, directory.ErrNotFound) {
			return &NotFoundError{ID: id}
		}
		return &ExternalError{Op: "delete organization", Err: err}
	}

	ev := outbox.Deleted(s.source, toSnapshot(existing))
	if err := s.capture(ctx, ev); err != nil {
		return err
	}

	s.logger.Info("deleted organization", zap.String("id", id))
	return nil
}

// capture appends the event in its own committed transaction and hands it to
// the dispatcher. A capture failure after a successful directory mutation is
// surfaced: the mutation is durable but no event exists for it.
func (s *Service) capture(ctx context.Context, ev outbox.Event) error {
	err := s.store.InTransaction(ctx, func(ctx context.Context, append outbox.AppendFunc) error {
		return append(ev)
	})
	if err != nil {
		return &ExternalError{Op: "capture lifecycle event", Err: err}
	}

	s.dispatcher.Dispatch(ev)
	return nil
}

// validate checks field constraints and global name/alias uniqueness. The
// uniqueness check is read-then-write and racy under concurrent creation of
// the same name from two callers; the directory has no unique constraint to
// lean on, so the window is accepted.
func (s *Service) validate(ctx context.Context, candidate Organization) error {
	if violations := candidate.Validate(); len(violations) > 0 {
		return &ConstraintError{Violations: violations}
	}

	existing, err := s.orgs.FindByName(ctx, candidate.Name)
	if err == nil && existing.ID != candidate.ID {
		return &ConflictError{Field: "name", Value: candidate.Name}
	}
	if err != nil && !errors.Is(err, directory.ErrNotFound) {
		return &ExternalError{Op: "check name uniqueness", Err: err}
	}

	for _, alias := range candidate.Aliases {
		holders, err := s.orgs.SearchByAttribute(ctx, aliasesAttribute, alias)
		if err != nil {
			return &ExternalError{Op: fmt.Sprintf("check alias %q uniqueness", alias), Err: err}
		}
		for _, holder := range holders {
			if holder.ID != candidate.ID {
				return &ConflictError{Field: "aliases", Value: alias}
			}
		}
	}
	return nil
}

func mapRecords(records []directory.OrganizationRecord) []Organization {
	organizations := make([]Organization, 0, len(records))
	for _, rec := range records {
		organizations = append(organizations, fromRecord(rec))
	}
	return organizations
}
