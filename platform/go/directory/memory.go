package directory

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// Memory is an in-memory directory for tests and local development. Reads see
// writes immediately, matching the consistency the pipeline assumes from the
// real directory.
type Memory struct {
	mu      sync.RWMutex
	orgs    map[string]OrganizationRecord
	clients map[string]ClientRecord
}

// NewMemory constructs an empty in-memory directory.
func NewMemory() *Memory {
	return &Memory{
		orgs:    make(map[string]OrganizationRecord),
		clients: make(map[string]ClientRecord),
	}
}

func (m *Memory) List(ctx context.Context) ([]OrganizationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	records := make([]OrganizationRecord, 0, len(m.orgs))
	for _, rec := range m.orgs {
		records = append(records, cloneOrganization(rec))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

func (m *Memory) Get(ctx context.Context, id string) (OrganizationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	rec, ok := m.orgs[id]
	if !ok {
		return OrganizationRecord{}, ErrNotFound
	}
	return cloneOrganization(rec), nil
}

func (m *Memory) FindByName(ctx context.Context, name string) (OrganizationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, rec := range m.orgs {
		if rec.Name == name {
			return cloneOrganization(rec), nil
		}
	}
	return OrganizationRecord{}, ErrNotFound
}

func (m *Memory) SearchByAttribute(ctx context.Context, attribute, value string) ([]OrganizationRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var records []OrganizationRecord
	for _, rec := range m.orgs {
		for _, v := range rec.Attributes[attribute] {
			if v == value {
				records = append(records, cloneOrganization(rec))
				break
			}
		}
	}
	sort.Slice(records, func(i, j int) bool { return records[i].Name < records[j].Name })
	return records, nil
}

func (m *Memory) Create(ctx context.Context, rec OrganizationRecord) (OrganizationRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	m.orgs[rec.ID] = cloneOrganization(rec)
	return cloneOrganization(rec), nil
}

func (m *Memory) Update(ctx context.Context, rec OrganizationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orgs[rec.ID]; !ok {
		return ErrNotFound
	}
	m.orgs[rec.ID] = cloneOrganization(rec)
	return nil
}

func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.orgs[id]; !ok {
		return ErrNotFound
	}
	delete(m.orgs, id)
	return nil
}

// ClientAPI returns the Clients surface of the in-memory directory.
func (m *Memory) ClientAPI() Clients {
	return memoryClients{m: m}
}

type memoryClients struct {
	m *Memory
}

func (mc memoryClients) List(ctx context.Context) ([]ClientRecord, error) {
	mc.m.mu.RLock()
	defer mc.m.mu.RUnlock()

	records := make([]ClientRecord, 0, len(mc.m.clients))
	for _, rec := range mc.m.clients {
		records = append(records, cloneClient(rec))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].ClientID < records[j].ClientID })
	return records, nil
}

func (mc memoryClients) Get(ctx context.Context, id string) (ClientRecord, error) {
	mc.m.mu.RLock()
	defer mc.m.mu.RUnlock()

	rec, ok := mc.m.clients[id]
	if !ok {
		return ClientRecord{}, ErrNotFound
	}
	return cloneClient(rec), nil
}

func (mc memoryClients) FindByClientID(ctx context.Context, clientID string) (ClientRecord, error) {
	mc.m.mu.RLock()
	defer mc.m.mu.RUnlock()

	for _, rec := range mc.m.clients {
		if rec.ClientID == clientID {
			return cloneClient(rec), nil
		}
	}
	return ClientRecord{}, ErrNotFound
}

func (mc memoryClients) Create(ctx context.Context, rec ClientRecord) (ClientRecord, error) {
	mc.m.mu.Lock()
	defer mc.m.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	mc.m.clients[rec.ID] = cloneClient(rec)
	return cloneClient(rec), nil
}

func (mc memoryClients) Update(ctx context.Context, rec ClientRecord) error {
	mc.m.mu.Lock()
	defer mc.m.mu.Unlock()

	if _, ok := mc.m.clients[rec.ID]; !ok {
		return ErrNotFound
	}
	mc.m.clients[rec.ID] = cloneClient(rec)
	return nil
}

func (mc memoryClients) Delete(ctx context.Context, id string) error {
	mc.m.mu.Lock()
	defer mc.m.mu.Unlock()

	if _, ok := mc.m.clients[id]; !ok {
		return ErrNotFound
	}
	delete(mc.m.clients, id)
	return nil
}

func cloneOrganization(rec OrganizationRecord) OrganizationRecord {
	out := rec
	out.Attributes = cloneAttributes(rec.Attributes)
	return out
}

func cloneClient(rec ClientRecord) ClientRecord {
	out := rec
	out.RedirectURIs = append([]string(nil), rec.RedirectURIs...)
	out.Attributes = cloneAttributes(rec.Attributes)
	return out
}

func cloneAttributes(attrs map[string][]string) map[string][]string {
	if attrs == nil {
		return nil
	}
	out := make(map[string][]string, len(attrs))
	for k, v := range attrs {
		out[k] = append([]string(nil), v...)
	}
	return out
}

var (
	_ Organizations = (*Memory)(nil)
	_ Clients       = memoryClients{}
)
