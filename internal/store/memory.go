package store

import (
	"sync"
	"time"
)

const subscriberBuffer = 100

// MemoryStore is an in-memory implementation of [Store].
//
// The set of elements is fixed at construction, mirroring the elements that
// exist on a rendered page. Subscribers receive updates via buffered
// channels; if a subscriber's buffer is full, the update is dropped for that
// subscriber to keep the write path non-blocking.
type MemoryStore struct {
	mu          sync.RWMutex
	order       []string
	elements    map[string]Element
	subscribers map[chan Element]struct{}
	subMu       sync.RWMutex
	now         func() time.Time
}

// NewMemoryStore creates a store holding one element per ID. Duplicate and
// empty IDs are ignored.
func NewMemoryStore(ids ...string) *MemoryStore {
	m := &MemoryStore{
		elements:    make(map[string]Element, len(ids)),
		subscribers: make(map[chan Element]struct{}),
		now:         time.Now,
	}
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, exists := m.elements[id]; exists {
			continue
		}
		m.order = append(m.order, id)
		m.elements[id] = Element{ID: id}
	}
	return m
}

// HasTarget reports whether the element exists.
func (m *MemoryStore) HasTarget(id string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.elements[id]
	return ok
}

// SetText stores the element's text and notifies all subscribers.
// Unknown IDs are ignored.
func (m *MemoryStore) SetText(id, text string) {
	m.mu.Lock()
	if _, ok := m.elements[id]; !ok {
		m.mu.Unlock()
		return
	}
	el := Element{ID: id, Text: text, Rendered: true, UpdatedAt: m.now()}
	m.elements[id] = el
	m.mu.Unlock()

	m.notifySubscribers(el)
}

// Get returns a single element.
func (m *MemoryStore) Get(id string) (Element, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	el, ok := m.elements[id]
	return el, ok
}

// GetAll returns a snapshot of all elements in declaration order.
func (m *MemoryStore) GetAll() []Element {
	m.mu.RLock()
	defer m.mu.RUnlock()

	results := make([]Element, 0, len(m.order))
	for _, id := range m.order {
		results = append(results, m.elements[id])
	}
	return results
}

// Subscribe creates a new subscription and returns a channel for receiving
// updates. The channel has a buffer of 100 messages.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan Element {
	ch := make(chan Element, subscriberBuffer)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
// Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan Element) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the element to all active subscribers without
// blocking; full buffers drop the message.
func (m *MemoryStore) notifySubscribers(el Element) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- el:
		default:
			// subscriber is slow, drop the message
		}
	}
}
