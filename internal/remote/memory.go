package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"tts/api/internal/util"
)

// Memory is an in-process Store. Listeners are invoked synchronously after
// each committed write, outside the store lock, and must not write back to
// the store from inside the callback.
type Memory struct {
	notifyMu    sync.Mutex
	mu          sync.Mutex
	collections map[string]*memoryCollection
	listeners   map[string]map[int]Listener
	nextID      int
}

type memoryCollection struct {
	order []string
	data  map[string]json.RawMessage
}

func NewMemory() *Memory {
	return &Memory{
		collections: map[string]*memoryCollection{
			CollectionSentences: newMemoryCollection(),
			CollectionGroups:    newMemoryCollection(),
		},
		listeners: make(map[string]map[int]Listener),
	}
}

func newMemoryCollection() *memoryCollection {
	return &memoryCollection{data: make(map[string]json.RawMessage)}
}

func (m *Memory) Subscribe(_ context.Context, collection string, listener Listener) (func(), error) {
	if err := validCollection(collection); err != nil {
		return nil, err
	}
	// Held through the first delivery so a concurrent write cannot reach the
	// listener before its initial snapshot.
	m.notifyMu.Lock()
	m.mu.Lock()
	m.nextID++
	token := m.nextID
	if m.listeners[collection] == nil {
		m.listeners[collection] = make(map[int]Listener)
	}
	m.listeners[collection][token] = listener
	snapshot := m.snapshotLocked(collection)
	m.mu.Unlock()

	listener(snapshot)
	m.notifyMu.Unlock()

	return func() {
		m.mu.Lock()
		delete(m.listeners[collection], token)
		m.mu.Unlock()
	}, nil
}

func (m *Memory) Create(_ context.Context, collection string, record any) (string, error) {
	if err := validCollection(collection); err != nil {
		return "", err
	}
	data, err := json.Marshal(record)
	if err != nil {
		return "", fmt.Errorf("encode record: %w", err)
	}
	id := util.NewID("")

	m.mu.Lock()
	c := m.collections[collection]
	c.order = append(c.order, id)
	c.data[id] = data
	m.mu.Unlock()

	m.notify(collection)
	return id, nil
}

func (m *Memory) Update(_ context.Context, collection, id string, fields map[string]any) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	m.mu.Lock()
	c := m.collections[collection]
	current, ok := c.data[id]
	if !ok {
		m.mu.Unlock()
		return fmt.Errorf("update %s/%s: %w", collection, id, ErrNotFound)
	}
	merged, err := mergeFields(current, fields)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("merge %s/%s: %w", collection, id, err)
	}
	c.data[id] = merged
	m.mu.Unlock()

	m.notify(collection)
	return nil
}

// Delete of a missing id succeeds, like removing an absent path.
func (m *Memory) Delete(_ context.Context, collection, id string) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	m.mu.Lock()
	c := m.collections[collection]
	if _, ok := c.data[id]; !ok {
		m.mu.Unlock()
		return nil
	}
	delete(c.data, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
	m.mu.Unlock()

	m.notify(collection)
	return nil
}

func (m *Memory) Transaction(_ context.Context, collection string, fn TransactionFunc) error {
	if err := validCollection(collection); err != nil {
		return err
	}
	m.mu.Lock()
	next, err := fn(m.snapshotLocked(collection))
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if next == nil {
		m.mu.Unlock()
		return nil
	}
	c := newMemoryCollection()
	for _, entry := range next.Entries {
		if _, dup := c.data[entry.ID]; !dup {
			c.order = append(c.order, entry.ID)
		}
		c.data[entry.ID] = append(json.RawMessage(nil), entry.Data...)
	}
	m.collections[collection] = c
	m.mu.Unlock()

	m.notify(collection)
	return nil
}

func (m *Memory) snapshotLocked(collection string) *Snapshot {
	c := m.collections[collection]
	if len(c.order) == 0 {
		return nil
	}
	out := &Snapshot{Collection: collection, Entries: make([]Entry, 0, len(c.order))}
	for _, id := range c.order {
		out.Entries = append(out.Entries, Entry{ID: id, Data: append(json.RawMessage(nil), c.data[id]...)})
	}
	return out
}

// notify always captures the latest state, so concurrent writers cannot leave
// a listener holding an older snapshot.
func (m *Memory) notify(collection string) {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	m.mu.Lock()
	snapshot := m.snapshotLocked(collection)
	listeners := make([]Listener, 0, len(m.listeners[collection]))
	for _, listener := range m.listeners[collection] {
		listeners = append(listeners, listener)
	}
	m.mu.Unlock()

	for _, listener := range listeners {
		listener(snapshot.Clone())
	}
}
