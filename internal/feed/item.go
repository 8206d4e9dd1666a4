package feed

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// Item is one unit of feed content.
//
// The engine treats the payload as opaque; only the identifier participates
// in engine logic (duplicate suppression at page boundaries). The remaining
// fields are carried through to the sink for display and filtering.
type Item struct {
	// ID is the server-assigned identifier, unique within a feed.
	ID string

	// Type is the activity kind (e.g. "PushEvent").
	Type string

	// Actor is the login that produced the activity.
	Actor string

	// Repo is the owner/name the activity belongs to.
	Repo string

	// CreatedAt is the server-side creation timestamp.
	CreatedAt time.Time

	// Payload is the raw type-specific body, passed through untouched.
	Payload json.RawMessage
}

// Source contains the configuration needed to poll a single feed.
//
// This is the engine-internal representation of a watched resource,
// decoupled from the main repowatch type to avoid circular dependencies.
type Source struct {
	// Owner is the account that owns the watched resource.
	Owner string

	// Name is the resource name within the owner's namespace.
	Name string

	// Interval is the base delay between polls for this feed.
	Interval time.Duration

	// Filter selects which items are emitted to the sink. A nil filter
	// keeps every item. Filtered items still advance the cursor.
	Filter func(Item) bool
}

// String returns the canonical "owner/name" form of the source.
func (s Source) String() string {
	return s.Owner + "/" + s.Name
}

// Page is the result of one fetch against a feed.
//
// Either the server had nothing past the supplied cursor (Unchanged), or it
// returned new items together with the cursor that marks them as seen.
type Page struct {
	// Unchanged reports that no new items exist past the supplied cursor.
	// The Cursor may still carry a refreshed validator.
	Unchanged bool

	// Items holds the new items, oldest to newest. Empty iff Unchanged.
	Items []Item

	// Cursor is the resumption token to commit once Items are delivered.
	Cursor Cursor
}

// ErrorKind classifies a fetch failure by how the poller must react.
type ErrorKind int

const (
	// KindTransient marks a retryable failure: a network error or a
	// 5xx-class response. Retried with backoff, bounded by a retry count.
	KindTransient ErrorKind = iota

	// KindRateLimited marks a request the service refused because the
	// budget is exhausted. A signal to pause, never to abort.
	KindRateLimited

	// KindFatal marks a permanent per-feed failure: bad resource name,
	// rejected credentials, or a resource that does not exist.
	KindFatal
)

// FetchError is the typed error returned by [Client.Fetch].
type FetchError struct {
	// Kind classifies the failure.
	Kind ErrorKind

	// StatusCode is the HTTP status, or 0 when the request never
	// produced a response.
	StatusCode int

	// Err is the underlying cause, if any.
	Err error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	kind := "transient"
	switch e.Kind {
	case KindRateLimited:
		kind = "rate limited"
	case KindFatal:
		kind = "fatal"
	}
	if e.Err != nil {
		return fmt.Sprintf("fetch failed (%s): %v", kind, e.Err)
	}
	return fmt.Sprintf("fetch failed (%s): status %d", kind, e.StatusCode)
}

// Unwrap returns the underlying cause.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// IsRateLimited reports whether err is a rate-limited fetch failure.
func IsRateLimited(err error) bool {
	return hasKind(err, KindRateLimited)
}

// IsTransient reports whether err is a retryable fetch failure.
func IsTransient(err error) bool {
	return hasKind(err, KindTransient)
}

// IsFatal reports whether err is a permanent per-feed failure.
func IsFatal(err error) bool {
	return hasKind(err, KindFatal)
}

func hasKind(err error, kind ErrorKind) bool {
	var fe *FetchError
	return errors.As(err, &fe) && fe.Kind == kind
}
