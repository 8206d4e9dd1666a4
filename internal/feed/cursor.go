package feed

// Cursor marks the newest item boundary already delivered for one feed.
//
// A Cursor carries two pieces of server-issued state: a validator (ETag) the
// next conditional fetch presents so the server can answer "nothing new"
// without resending data, and the identifier of the newest item delivered so
// far, used to cut pages at the boundary and to suppress the one duplicate a
// server-side race may legitimately redeliver.
//
// Both fields are opaque: the engine compares them only for equality and
// never interprets their contents.
//
// A Cursor is exclusively owned by its [Poller]. It is replaced wholesale
// after every successful poll that returned new data and retained unchanged
// otherwise, so cursor values observed over a feed's lifetime are monotonic:
// a later cursor never marks an earlier boundary than an earlier one.
type Cursor struct {
	// ETag is the cache validator from the most recent 200 response.
	ETag string

	// LastID is the identifier of the newest item delivered to the sink.
	LastID string
}

// Zero reports whether the cursor represents "no items observed yet".
// A freshly started feed begins with a zero cursor.
func (c Cursor) Zero() bool {
	return c.ETag == "" && c.LastID == ""
}
