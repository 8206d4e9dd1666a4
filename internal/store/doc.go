// Package store provides storage and pub/sub functionality for feed statuses.
//
// This package is internal to repowatch and manages the in-memory storage of
// per-feed polling status. It implements a publish-subscribe pattern for
// real-time updates to connected status API clients.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [FeedStatus]: Storage representation of a feed's polling status
//
// The store is designed for concurrent access with proper synchronization.
// Subscribers receive updates via channels with non-blocking sends (slow
// subscribers will miss updates rather than block the system).
//
// Users of the repowatch library should not need to interact with this
// package directly. Storage is managed internally by the watcher.
package store
