package broker

import (
	"context"
	"sync"
)

// Message is one recorded publication.
type Message struct {
	Topic   string
	Key     string
	Payload []byte
}

// Memory is an in-memory broker for tests: it records publications per topic
// and keeps a tenant set with the same exists/not-found semantics as the real
// admin API.
type Memory struct {
	mu       sync.Mutex
	messages []Message
	tenants  map[string]struct{}

	// PublishErr, when set, fails the next Publish calls until cleared.
	PublishErr error
}

// NewMemory constructs an empty in-memory broker.
func NewMemory() *Memory {
	return &Memory{tenants: make(map[string]struct{})}
}

func (m *Memory) Publish(ctx context.Context, topic, key string, payload []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.PublishErr != nil {
		return m.PublishErr
	}
	m.messages = append(m.messages, Message{
		Topic:   topic,
		Key:     key,
		Payload: append([]byte(nil), payload...),
	})
	return nil
}

func (m *Memory) CreateTenant(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[name]; ok {
		return ErrTenantExists
	}
	m.tenants[name] = struct{}{}
	return nil
}

func (m *Memory) DeleteTenant(ctx context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.tenants[name]; !ok {
		return ErrTenantNotFound
	}
	delete(m.tenants, name)
	return nil
}

// Messages returns all recorded publications in order.
func (m *Memory) Messages() []Message {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Message, len(m.messages))
	copy(out, m.messages)
	return out
}

// HasTenant reports whether the named tenant exists.
func (m *Memory) HasTenant(name string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.tenants[name]
	return ok
}

// SetPublishErr makes subsequent Publish calls fail with err (nil clears).
func (m *Memory) SetPublishErr(err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PublishErr = err
}

var (
	_ Publisher   = (*Memory)(nil)
	_ TenantAdmin = (*Memory)(nil)
)
