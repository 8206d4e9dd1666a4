package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"
)

// mockFeed serves a synthetic activity feed shaped like the real events API:
// newest-first pages, ETag validators, Link pagination, and rate-limit
// headers. A new event appears roughly every emitEvery.
type mockFeed struct {
	mu        sync.Mutex
	start     time.Time
	backlog   int
	emitEvery time.Duration
	remaining int
	resetAt   time.Time
}

type mockEvent struct {
	ID    string `json:"id"`
	Type  string `json:"type"`
	Actor struct {
		Login string `json:"login"`
	} `json:"actor"`
	Repo struct {
		Name string `json:"name"`
	} `json:"repo"`
	CreatedAt time.Time `json:"created_at"`
}

var eventTypes = []string{"PushEvent", "IssuesEvent", "PullRequestEvent", "ReleaseEvent", "WatchEvent"}
var actors = []string{"alice", "bob", "gopherbot", "carol"}

// StartMockFeedServer runs a mock events API on addr.
// Call this in a goroutine before starting the watcher against it.
func StartMockFeedServer(addr string) {
	feed := &mockFeed{
		start:     time.Now(),
		backlog:   8,
		emitEvery: 10 * time.Second,
		remaining: 60,
		resetAt:   time.Now().Add(time.Hour),
	}

	http.HandleFunc("/repos/", feed.handle)

	if err := http.ListenAndServe(addr, nil); err != nil {
		slog.Error("mock server error", "error", err)
	}
}

// count returns how many events exist right now: the initial backlog plus
// one per elapsed emit period.
func (f *mockFeed) count() int {
	return f.backlog + int(time.Since(f.start)/f.emitEvery)
}

// eventAt builds event number n (1-based; higher numbers are newer).
func (f *mockFeed) eventAt(repo string, n int) mockEvent {
	var ev mockEvent
	ev.ID = strconv.Itoa(n)
	ev.Type = eventTypes[n%len(eventTypes)]
	ev.Actor.Login = actors[n%len(actors)]
	ev.Repo.Name = repo
	ev.CreatedAt = f.start.Add(time.Duration(n-f.backlog) * f.emitEvery)
	return ev
}

func (f *mockFeed) handle(w http.ResponseWriter, r *http.Request) {
	repo := parseRepoPath(r.URL.Path)
	if repo == "" {
		http.NotFound(w, r)
		return
	}

	f.mu.Lock()
	if time.Now().After(f.resetAt) {
		f.remaining = 60
		f.resetAt = time.Now().Add(time.Hour)
	}
	if f.remaining > 0 {
		f.remaining--
	}
	remaining := f.remaining
	resetAt := f.resetAt
	total := f.count()
	f.mu.Unlock()

	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))

	etag := fmt.Sprintf(`"feed-%s-%d"`, repo, total)
	w.Header().Set("ETag", etag)

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	perPage := 30
	if raw := r.URL.Query().Get("per_page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			perPage = n
		}
	}
	page := 1
	if raw := r.URL.Query().Get("page"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			page = n
		}
	}

	// newest first: event `total` is the top of page 1
	first := total - (page-1)*perPage
	events := make([]mockEvent, 0, perPage)
	for n := first; n > 0 && n > first-perPage; n-- {
		events = append(events, f.eventAt(repo, n))
	}

	if first-perPage > 0 {
		next := fmt.Sprintf("http://%s%s?per_page=%d&page=%d", r.Host, r.URL.Path, perPage, page+1)
		w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
	}

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(events); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}

// parseRepoPath extracts "owner/name" from "/repos/owner/name/events".
func parseRepoPath(path string) string {
	const prefix = "/repos/"
	const suffix = "/events"
	if len(path) <= len(prefix)+len(suffix) {
		return ""
	}
	if path[:len(prefix)] != prefix || path[len(path)-len(suffix):] != suffix {
		return ""
	}
	return path[len(prefix) : len(path)-len(suffix)]
}
