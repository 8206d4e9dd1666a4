// Standalone mock feed server for testing the CLI.
//
// Usage:
//
//	go run ./example/cmd/mockserver
//
// Then in another terminal:
//
//	go run ./cmd/repowatch watch -c example/config.yaml
package main

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

var eventTypes = []string{"PushEvent", "IssuesEvent", "PullRequestEvent", "ReleaseEvent", "WatchEvent"}
var actors = []string{"alice", "bob", "gopherbot", "carol"}

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

func main() {
	fmt.Println("Mock feed server starting on :9999")
	fmt.Println("Serves /repos/{owner}/{name}/events with ETag and rate-limit headers")
	fmt.Println("A new event appears roughly every 10 seconds")
	fmt.Println("Press Ctrl+C to stop")
	fmt.Println()

	var (
		mu        sync.Mutex
		start     = time.Now()
		backlog   = 8
		emitEvery = 10 * time.Second
		remaining = 60
		resetAt   = time.Now().Add(time.Hour)
	)

	http.HandleFunc("/repos/", func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/repos/")
		repo, ok := strings.CutSuffix(path, "/events")
		if !ok || strings.Count(repo, "/") != 1 {
			http.NotFound(w, r)
			return
		}

		mu.Lock()
		if time.Now().After(resetAt) {
			remaining = 60
			resetAt = time.Now().Add(time.Hour)
		}
		if remaining > 0 {
			remaining--
		}
		rem := remaining
		reset := resetAt
		total := backlog + int(time.Since(start)/emitEvery)
		mu.Unlock()

		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(rem))
		w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(reset.Unix(), 10))

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

		// newest first
		first := total - (page-1)*perPage
		events := make([]mockEvent, 0, perPage)
		for n := first; n > 0 && n > first-perPage; n-- {
			var ev mockEvent
			ev.ID = strconv.Itoa(n)
			ev.Type = eventTypes[n%len(eventTypes)]
			ev.Actor.Login = actors[n%len(actors)]
			ev.Repo.Name = repo
			ev.CreatedAt = start.Add(time.Duration(n-backlog) * emitEvery)
			events = append(events, ev)
		}

		if first-perPage > 0 {
			next := fmt.Sprintf("http://%s%s?per_page=%d&page=%d", r.Host, r.URL.Path, perPage, page+1)
			w.Header().Set("Link", fmt.Sprintf(`<%s>; rel="next"`, next))
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(events)
	})

	if err := http.ListenAndServe(":9999", nil); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}
