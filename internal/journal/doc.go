// Package journal provides the durable delivery journal backed by SQLite.
//
// This package is internal to repowatch. Every item accepted by the sink can
// optionally be recorded here, giving the history command something to show
// across process restarts. Redelivered boundary items are absorbed by a
// uniqueness constraint on (source, event_id), so the journal stays
// duplicate-free even when a poll is retried after a partial failure.
//
// The driver is modernc.org/sqlite (pure Go, no cgo).
package journal
