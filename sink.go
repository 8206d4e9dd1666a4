package repowatch

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"
)

// Item is one activity event delivered from a watched feed.
//
// Item is immutable after creation. The identifier is opaque: repowatch
// compares identifiers only for equality and never interprets their
// contents. The payload is the raw type-specific event body, passed through
// untouched for the consumer to decode as needed.
type Item struct {
	// ID is the server-assigned event identifier, unique within a feed.
	ID string

	// Type is the activity kind (e.g. "PushEvent", "ReleaseEvent").
	Type string

	// Actor is the login that produced the activity.
	Actor string

	// Repo is the "owner/name" the activity belongs to.
	Repo string

	// CreatedAt is the server-side creation timestamp.
	CreatedAt time.Time

	// Payload is the raw type-specific body. May be nil.
	Payload json.RawMessage
}

// NoticeKind identifies what a [Notice] reports.
type NoticeKind string

const (
	// NoticeIdle means a poll completed and found nothing new.
	NoticeIdle NoticeKind = "idle"

	// NoticeNewItems means a poll delivered new items to the sink.
	NoticeNewItems NoticeKind = "new_items"

	// NoticeSeeded means a feed established its starting position.
	NoticeSeeded NoticeKind = "seeded"
)

// Notice is a per-poll heartbeat, emitted after every completed poll
// regardless of whether it found new items.
type Notice struct {
	// Source is the "owner/name" of the feed the notice is about.
	Source string

	// Kind identifies what happened on the poll.
	Kind NoticeKind

	// NewItems is the number of items delivered ([NoticeNewItems]) or the
	// backlog size observed while seeding ([NoticeSeeded]).
	NewItems int

	// Remaining is the most recently observed rate-limit budget, or -1 if
	// no response has reported one yet.
	Remaining int

	// At is when the poll completed.
	At time.Time
}

// Sink consumes the events and heartbeats produced by a [Watcher].
//
// Deliver participates in the watcher's commit ordering: a feed's position
// only advances after Deliver has accepted every item of a poll, so a sink
// that cannot accept an item must return an error rather than drop it
// silently. A returned error causes the poll to be retried; persistent
// failures eventually stop the feed.
//
// Notify is best-effort: failures are not observable and notices never
// affect the feed's position. Notify implementations must not block.
//
// Both methods are called from the goroutine of the feed the event belongs
// to, so a sink shared by several feeds must be safe for concurrent use.
//
// # Panic Safety
//
// Sink methods are called within a panic recovery boundary. If Deliver
// panics, the panic is logged with a correlation ID and treated as a
// delivery failure; the feed's position does not advance. A misbehaving
// sink cannot crash the watcher.
type Sink interface {
	// Deliver hands one new event to the consumer, in feed order.
	Deliver(ctx context.Context, source string, item Item) error

	// Notify reports a per-poll heartbeat.
	Notify(ctx context.Context, notice Notice)
}

// LogSink is a [Sink] that writes every event and heartbeat to a
// [slog.Logger]. It is the default sink when none is configured, and a
// convenient starting point when trying the library out.
type LogSink struct {
	logger *slog.Logger
}

// NewLogSink creates a [LogSink]. A nil logger means [slog.Default].
func NewLogSink(logger *slog.Logger) *LogSink {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogSink{logger: logger}
}

// Deliver logs the event at INFO level. It never fails.
func (s *LogSink) Deliver(ctx context.Context, source string, item Item) error {
	s.logger.InfoContext(ctx, "event",
		"feed", source,
		"id", item.ID,
		"type", item.Type,
		"actor", item.Actor,
		"created_at", item.CreatedAt,
	)
	return nil
}

// Notify logs the heartbeat at DEBUG level to keep idle polls quiet.
func (s *LogSink) Notify(ctx context.Context, notice Notice) {
	s.logger.DebugContext(ctx, "poll heartbeat",
		"feed", notice.Source,
		"kind", string(notice.Kind),
		"new_items", notice.NewItems,
		"remaining", notice.Remaining,
	)
}
