// Package server provides the HTTP status API for repowatch.
//
// This package is internal to repowatch and handles all HTTP concerns:
//
//   - REST API: JSON endpoint at "/api/feeds" for current status snapshot
//   - Server-Sent Events: Real-time updates at "/api/sse"
//
// The server supports graceful shutdown via context cancellation, with a
// 5-second timeout for in-flight requests.
//
// Users of the repowatch library should not need to interact with this
// package directly. The server is started by the watcher when a status port
// is configured.
package server
