package store

import "time"

// FeedStatus represents the current status of a watched feed in storage.
//
// FeedStatus is the storage representation of feed progress, optimized for
// JSON serialization (used by the REST API and SSE). It is decoupled from
// the poller's internal types to allow independent evolution.
type FeedStatus struct {
	// Source is the feed's canonical "owner/name" identifier.
	Source string `json:"source"`

	// State is the feed's lifecycle state ("idle", "polling", "stopped").
	State string `json:"state"`

	// LastPollAt is the timestamp of the most recent poll.
	LastPollAt time.Time `json:"last_poll_at"`

	// ItemsDelivered counts items accepted by the sink since start.
	ItemsDelivered int64 `json:"items_delivered"`

	// LastEventID is the newest committed item identifier.
	LastEventID string `json:"last_event_id"`

	// Remaining is the shared rate budget's last observed remaining count,
	// or -1 when no response has reported one yet.
	Remaining int `json:"remaining"`

	// Error contains the error message if the last poll failed.
	// nil indicates the last poll succeeded.
	Error *string `json:"error"`
}

// Store defines the interface for storing and subscribing to feed status
// updates.
//
// Store implementations must be safe for concurrent access. The pub/sub
// mechanism allows real-time updates to be pushed to connected clients
// (e.g., via Server-Sent Events).
type Store interface {
	// Update stores a new feed status and notifies all subscribers.
	// The status is keyed by Source, so subsequent updates replace
	// previous values.
	Update(status FeedStatus)

	// GetAll returns all currently stored feed statuses.
	// The returned slice is a snapshot; modifications do not affect the store.
	GetAll() []FeedStatus

	// Subscribe returns a channel that receives status updates.
	// The returned channel has a buffer; slow consumers may miss updates.
	// Caller must call Unsubscribe when done to prevent resource leaks.
	Subscribe() <-chan FeedStatus

	// Unsubscribe removes a subscription and closes the channel.
	// Safe to call with a channel that was already unsubscribed.
	Unsubscribe(ch <-chan FeedStatus)
}
