package docstore

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
)

type memRecord struct {
	data      json.RawMessage
	createdAt time.Time
	updatedAt time.Time
}

// Memory is an in-process Gateway used by tests, the seed dry-run and local development.
type Memory struct {
	mu     sync.RWMutex
	data   map[string]map[string]memRecord
	hub    *hub
	now    func() time.Time
	closed bool
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{
		data: make(map[string]map[string]memRecord),
		hub:  newHub(),
		now:  func() time.Time { return time.Now().UTC() },
	}
}

// Watchers reports how many subscriptions are currently registered.
func (m *Memory) Watchers() int {
	return m.hub.count()
}

func (m *Memory) FetchAll(ctx context.Context, collection string) ([]Document, error) {
	return m.Query(ctx, collection)
}

func (m *Memory) Query(ctx context.Context, collection string, conds ...Condition) ([]Document, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()

	docs := make([]Document, 0, len(m.data[collection]))
	for id, rec := range m.data[collection] {
		if !matches(rec.data, conds) {
			continue
		}
		docs = append(docs, rec.document(id))
	}
	sortByID(docs)
	return docs, nil
}

func (m *Memory) FetchByID(ctx context.Context, collection, id string) (*Document, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	rec, ok := m.data[collection][id]
	if !ok {
		return nil, fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	doc := rec.document(id)
	return &doc, nil
}

func (m *Memory) Add(ctx context.Context, collection string, data json.RawMessage) (string, error) {
	id := uuid.NewString()
	if err := m.write(ctx, collection, id, data, false); err != nil {
		return "", err
	}
	return id, nil
}

func (m *Memory) Set(ctx context.Context, collection, id string, data json.RawMessage) error {
	return m.write(ctx, collection, id, data, true)
}

func (m *Memory) Update(ctx context.Context, collection, id string, patch map[string]any) error {
	if err := m.check(ctx); err != nil {
		return err
	}
	if err := validateKey(collection, id); err != nil {
		return err
	}
	m.mu.Lock()
	rec, ok := m.data[collection][id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	fields, err := normalise(rec.data)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	merge(fields, patch)
	raw, err := encode(fields)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	rec.data = raw
	rec.updatedAt = m.now()
	m.data[collection][id] = rec
	m.mu.Unlock()

	m.hub.publish(collection)
	return nil
}

func (m *Memory) Delete(ctx context.Context, collection, id string) error {
	if err := m.check(ctx); err != nil {
		return err
	}
	m.mu.Lock()
	if _, ok := m.data[collection][id]; !ok {
		m.mu.Unlock()
		return fmt.Errorf("%s/%s: %w", collection, id, ErrNotFound)
	}
	delete(m.data[collection], id)
	m.mu.Unlock()

	m.hub.publish(collection)
	return nil
}

func (m *Memory) Subscribe(ctx context.Context, collection string, conds ...Condition) (*Subscription, error) {
	if err := m.check(ctx); err != nil {
		return nil, err
	}
	return newSubscription(ctx, m.hub, collection, func(ctx context.Context) ([]Document, error) {
		return m.Query(ctx, collection, conds...)
	}), nil
}

// Close marks the store closed; subsequent calls fail with ErrClosed.
func (m *Memory) Close() error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()
	return nil
}

func (m *Memory) write(ctx context.Context, collection, id string, data json.RawMessage, upsert bool) error {
	if err := m.check(ctx); err != nil {
		return err
	}
	if err := validateKey(collection, id); err != nil {
		return err
	}
	fields, err := normalise(data)
	if err != nil {
		return err
	}
	raw, err := encode(fields)
	if err != nil {
		return err
	}

	now := m.now()
	m.mu.Lock()
	set, ok := m.data[collection]
	if !ok {
		set = make(map[string]memRecord)
		m.data[collection] = set
	}
	rec := memRecord{data: raw, createdAt: now, updatedAt: now}
	if existing, exists := set[id]; exists {
		if !upsert {
			m.mu.Unlock()
			return fmt.Errorf("%w: duplicate id %s", ErrInvalidDocument, id)
		}
		rec.createdAt = existing.createdAt
	}
	set[id] = rec
	m.mu.Unlock()

	m.hub.publish(collection)
	return nil
}

func (m *Memory) check(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return mapContextErr(err)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return fmt.Errorf("%w: %v", ErrUnavailable, ErrClosed)
	}
	return nil
}

func (r memRecord) document(id string) Document {
	data := make(json.RawMessage, len(r.data))
	copy(data, r.data)
	return Document{ID: id, Data: data, CreatedAt: r.createdAt, UpdatedAt: r.updatedAt}
}
