// Package feed implements the incremental feed-polling engine for repowatch.
//
// This package is internal to repowatch and contains the polling state
// machine: conditional fetching against a paginated, rate-limited activity
// API, cursor-based resumption, pacing and backoff, and the per-feed
// supervision loop.
//
// The main components are:
//
//   - [Budget]: shared rate-limit budget with pacing and backoff policy
//   - [Cursor]: opaque resumption token marking items already delivered
//   - [Client]: performs one conditional fetch, returning a [Page]
//   - [Poller]: per-feed state machine driving fetch, emit, and commit
//   - [Supervisor]: runs one Poller per feed and aggregates failures
//
// Users of the repowatch library should not need to interact with this
// package directly. Configuration is done through the main repowatch package.
package feed
