package store

import (
	"sync"
)

// MemoryStore is an in-memory implementation of [Store].
//
// MemoryStore provides thread-safe storage with a publish-subscribe mechanism
// for real-time updates. Feed statuses are keyed by source, with new statuses
// replacing previous values.
//
// Subscribers receive updates via buffered channels (buffer size 100). Updates
// are sent non-blocking; if a subscriber's buffer is full, the update is dropped
// for that subscriber to prevent blocking the entire system.
type MemoryStore struct {
	mu          sync.RWMutex
	statuses    map[string]FeedStatus
	subscribers map[chan FeedStatus]struct{}
	subMu       sync.RWMutex
}

// NewMemoryStore creates a new in-memory [Store] implementation.
//
// The store is immediately ready for use. No cleanup is required when done.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		statuses:    make(map[string]FeedStatus),
		subscribers: make(map[chan FeedStatus]struct{}),
	}
}

// Update stores a [FeedStatus] and notifies all subscribers.
//
// The status is stored using its Source as the key. Subsequent updates with
// the same source replace the previous value. All subscribers receive the
// update (unless their buffer is full).
func (m *MemoryStore) Update(status FeedStatus) {
	m.mu.Lock()
	m.statuses[status.Source] = status
	m.mu.Unlock()

	m.notifySubscribers(status)
}

// GetAll returns a snapshot of all currently stored feed statuses.
//
// The returned slice is a copy; modifications do not affect the store.
// Order is not guaranteed.
func (m *MemoryStore) GetAll() []FeedStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	statuses := make([]FeedStatus, 0, len(m.statuses))
	for _, status := range m.statuses {
		statuses = append(statuses, status)
	}
	return statuses
}

// Subscribe creates a new subscription and returns a channel for receiving updates.
//
// The returned channel has a buffer of 100 messages. If the buffer fills
// (slow consumer), new updates are dropped for this subscriber.
//
// Caller must call [MemoryStore.Unsubscribe] when done to prevent resource leaks.
func (m *MemoryStore) Subscribe() <-chan FeedStatus {
	ch := make(chan FeedStatus, 100)

	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()

	return ch
}

// Unsubscribe removes a subscription and closes its channel.
//
// After calling Unsubscribe, the channel will be closed and no further
// updates will be sent. Safe to call multiple times or with an unknown channel.
func (m *MemoryStore) Unsubscribe(ch <-chan FeedStatus) {
	m.subMu.Lock()
	defer m.subMu.Unlock()

	// find and delete the channel (need to convert to the right type)
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// notifySubscribers sends the status to all active subscribers.
//
// This is non-blocking: if a subscriber's channel buffer is full, the message
// is dropped for that subscriber rather than blocking the update path.
func (m *MemoryStore) notifySubscribers(status FeedStatus) {
	m.subMu.RLock()
	defer m.subMu.RUnlock()

	for ch := range m.subscribers {
		select {
		case ch <- status:
		default:
			// subscriber is slow, drop the message
		}
	}
}
