package feed

import (
	"context"
	"time"
)

// Sink consumes delivered items and heartbeat notices for the feeds.
//
// This is the engine-internal sink contract; the main repowatch package
// adapts user-provided sinks onto it. Deliver participates in the poller's
// commit ordering: a cursor is only advanced after Deliver accepted every
// item of a page, so a failing sink must return an error rather than drop
// items silently. Notify is best-effort and must not block.
type Sink interface {
	// Deliver hands one new item to the consumer, in feed order.
	// An error prevents the poller from committing the page's cursor.
	Deliver(ctx context.Context, source string, item Item) error

	// Notify reports a per-poll heartbeat. Failures are not observable;
	// notices never participate in cursor commit.
	Notify(ctx context.Context, notice Notice)
}

// NoticeKind identifies what a heartbeat notice reports.
type NoticeKind string

const (
	// NoticeIdle means a poll completed and found nothing new.
	NoticeIdle NoticeKind = "idle"

	// NoticeNewItems means a poll delivered new items to the sink.
	NoticeNewItems NoticeKind = "new_items"

	// NoticeSeeded means a feed established its starting cursor.
	NoticeSeeded NoticeKind = "seeded"
)

// Notice is a periodic status heartbeat emitted after each poll.
type Notice struct {
	// Source is the owner/name of the feed the notice is about.
	Source string

	// Kind identifies what happened on the poll.
	Kind NoticeKind

	// NewItems is the number of items delivered (new_items) or seen
	// while seeding (seeded).
	NewItems int

	// Remaining is the shared budget's last observed remaining-request
	// count, or -1 if no response has reported one yet.
	Remaining int

	// At is when the poll completed.
	At time.Time
}
