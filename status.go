package repowatch

import "time"

// FeedState represents the lifecycle state of a watched feed.
//
// FeedState is a string type that can hold one of three predefined values:
// [FeedIdle], [FeedPolling], or [FeedStopped]. Using a string type allows
// for easy JSON serialization and human-readable logging while maintaining
// type safety through the defined constants.
type FeedState string

const (
	// FeedIdle indicates the feed is waiting out its pacing delay.
	FeedIdle FeedState = "idle"

	// FeedPolling indicates a poll is currently in flight for the feed.
	FeedPolling FeedState = "polling"

	// FeedStopped indicates the feed has stopped, either because it failed
	// permanently or because the watcher is shutting down.
	FeedStopped FeedState = "stopped"
)

// String returns the string representation of the state.
// This implements the fmt.Stringer interface.
func (s FeedState) String() string {
	return string(s)
}

// FeedStatus holds a snapshot of one feed's polling progress.
//
// FeedStatus is immutable after creation and is delivered to status
// callbacks registered via [WithStatusCallback] after every poll, and served
// by the status API when one is configured via [WithStatusPort].
type FeedStatus struct {
	// Source is the "owner/name" identifier of the feed.
	Source string

	// State is the feed's lifecycle state.
	State FeedState

	// LastPollAt is the timestamp of the most recent poll.
	LastPollAt time.Time

	// ItemsDelivered counts items the sink has accepted since the watcher
	// started.
	ItemsDelivered int64

	// LastEventID is the identifier of the newest delivered event.
	LastEventID string

	// Remaining is the most recently observed rate-limit budget, or -1 if
	// no response has reported one yet. The budget is shared by all feeds
	// of one watcher.
	Remaining int

	// LastError contains the most recent poll failure, empty when the
	// last poll succeeded.
	LastError string
}
