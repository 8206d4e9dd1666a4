package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"runtime"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jpalmerr/repowatch/internal/store"
)

// testLogger returns a logger that discards all output for clean test output.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// mockStore implements store.Store for testing.
type mockStore struct {
	mu          sync.RWMutex
	statuses    []store.FeedStatus
	subscribers map[chan store.FeedStatus]struct{}
	subMu       sync.Mutex
}

func newMockStore() *mockStore {
	return &mockStore{
		statuses:    []store.FeedStatus{},
		subscribers: make(map[chan store.FeedStatus]struct{}),
	}
}

func (m *mockStore) Update(status store.FeedStatus) {
	m.mu.Lock()
	// replace if exists, otherwise append
	found := false
	for i, s := range m.statuses {
		if s.Source == status.Source {
			m.statuses[i] = status
			found = true
			break
		}
	}
	if !found {
		m.statuses = append(m.statuses, status)
	}
	m.mu.Unlock()

	m.subMu.Lock()
	for ch := range m.subscribers {
		select {
		case ch <- status:
		default:
		}
	}
	m.subMu.Unlock()
}

func (m *mockStore) GetAll() []store.FeedStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()
	result := make([]store.FeedStatus, len(m.statuses))
	copy(result, m.statuses)
	return result
}

func (m *mockStore) Subscribe() <-chan store.FeedStatus {
	ch := make(chan store.FeedStatus, 100)
	m.subMu.Lock()
	m.subscribers[ch] = struct{}{}
	m.subMu.Unlock()
	return ch
}

func (m *mockStore) Unsubscribe(ch <-chan store.FeedStatus) {
	m.subMu.Lock()
	defer m.subMu.Unlock()
	for subCh := range m.subscribers {
		if subCh == ch {
			delete(m.subscribers, subCh)
			close(subCh)
			break
		}
	}
}

// --- /api/feeds tests ---

func TestHandleFeeds_ReturnsJSON(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.FeedStatus{Source: "golang/go", State: "idle", ItemsDelivered: 7})
	ms.Update(store.FeedStatus{Source: "golang/tools", State: "polling"})

	srv := NewServer(ms, 0, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/feeds", nil)
	rec := httptest.NewRecorder()

	srv.handleFeeds(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want %q", ct, "application/json")
	}

	var statuses []store.FeedStatus
	if err := json.Unmarshal(rec.Body.Bytes(), &statuses); err != nil {
		t.Fatalf("failed to parse JSON: %v", err)
	}
	if len(statuses) != 2 {
		t.Fatalf("got %d statuses, want 2", len(statuses))
	}

	found := false
	for _, s := range statuses {
		if s.Source == "golang/go" && s.ItemsDelivered == 7 {
			found = true
		}
	}
	if !found {
		t.Errorf("golang/go status not found in response: %s", rec.Body.String())
	}
}

func TestHandleFeeds_MethodNotAllowed(t *testing.T) {
	ms := newMockStore()
	srv := NewServer(ms, 0, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/feeds", nil)
	rec := httptest.NewRecorder()

	srv.handleFeeds(rec, req)

	if rec.Code != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusMethodNotAllowed)
	}
}

// --- SSE tests ---

func TestHandleSSE_BasicFlow(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.FeedStatus{Source: "golang/go", State: "idle"})
	ms.Update(store.FeedStatus{Source: "golang/tools", State: "polling"})

	srv := NewServer(ms, 0, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	// run handler with a deadline since it blocks
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	req = req.WithContext(ctx)

	srv.handleSSE(rec, req)

	body := rec.Body.String()

	// should contain initial statuses
	if !strings.Contains(body, "golang/go") {
		t.Errorf("response should contain golang/go, got: %s", body)
	}
	if !strings.Contains(body, "golang/tools") {
		t.Errorf("response should contain golang/tools, got: %s", body)
	}
}

func TestHandleSSE_StreamsUpdates(t *testing.T) {
	ms := newMockStore()
	srv := NewServer(ms, 0, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to subscribe
	time.Sleep(50 * time.Millisecond)

	// send an update
	ms.Update(store.FeedStatus{Source: "kubernetes/kubernetes", State: "polling"})

	// give time for update to be written
	time.Sleep(50 * time.Millisecond)

	// cancel to stop handler
	cancel()

	select {
	case <-done:
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}

	body := rec.Body.String()
	if !strings.Contains(body, "kubernetes/kubernetes") {
		t.Errorf("response should contain streamed update, got: %s", body)
	}
}

func TestHandleSSE_ClientDisconnect(t *testing.T) {
	ms := newMockStore()
	srv := NewServer(ms, 0, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	rec := httptest.NewRecorder()

	ctx, cancel := context.WithCancel(context.Background())
	req = req.WithContext(ctx)

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// simulate client disconnect
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case <-done:
		// handler exited as expected
	case <-time.After(1 * time.Second):
		t.Fatal("handler did not exit after client disconnect")
	}
}

func TestHandleSSE_ServerShutdown(t *testing.T) {
	ms := newMockStore()
	srv := NewServer(ms, 0, testLogger())

	// create a server context that we'll cancel to simulate shutdown
	serverCtx, serverCancel := context.WithCancel(context.Background())

	// when calling handleSSE directly (not through http.Server), we must
	// manually derive the request context from the server context to simulate
	// BaseContext behavior. In production, BaseContext does this automatically.
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	req = req.WithContext(serverCtx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to subscribe and start waiting
	time.Sleep(50 * time.Millisecond)

	// trigger server shutdown by cancelling context
	serverCancel()

	select {
	case <-done:
		// handler exited as expected
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after server shutdown")
	}
}

func TestHandleSSE_NoGoroutineLeaks(t *testing.T) {
	// allow existing goroutines to settle
	runtime.GC()
	time.Sleep(100 * time.Millisecond)
	before := runtime.NumGoroutine()

	ms := newMockStore()
	srv := NewServer(ms, 0, testLogger())

	// run multiple SSE connections
	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
			defer cancel()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			req = req.WithContext(ctx)
			rec := httptest.NewRecorder()

			srv.handleSSE(rec, req)
		}()
	}

	wg.Wait()

	// allow cleanup
	runtime.GC()
	time.Sleep(200 * time.Millisecond)

	after := runtime.NumGoroutine()
	if after > before+2 { // small tolerance for runtime variance
		t.Errorf("potential goroutine leak: before=%d, after=%d", before, after)
	}
}

func TestHandleSSE_ConcurrentClientsShutdown(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.FeedStatus{Source: "golang/go", State: "idle"})

	srv := NewServer(ms, 0, testLogger())

	serverCtx, serverCancel := context.WithCancel(context.Background())

	numClients := 10
	var wg sync.WaitGroup
	started := make(chan struct{})
	var startedCount atomic.Int32

	// start multiple SSE clients
	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
			req = req.WithContext(serverCtx)
			rec := httptest.NewRecorder()

			// use Add's return value to ensure only one goroutine closes the channel
			if startedCount.Add(1) == int32(numClients) {
				close(started)
			}

			srv.handleSSE(rec, req)
		}()
	}

	// wait for all clients to start
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("clients did not start in time")
	}

	// give handlers time to subscribe
	time.Sleep(100 * time.Millisecond)

	// trigger shutdown
	serverCancel()

	// all should exit promptly
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		// all handlers exited
	case <-time.After(3 * time.Second):
		t.Fatal("not all handlers exited after shutdown")
	}
}

func TestHandleSSE_SSENotSupported(t *testing.T) {
	ms := newMockStore()
	srv := NewServer(ms, 0, testLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)

	// use a writer that doesn't support flushing
	w := &nonFlushWriter{header: make(http.Header)}

	srv.handleSSE(w, req)

	if w.statusCode != http.StatusInternalServerError {
		t.Errorf("expected status %d, got %d", http.StatusInternalServerError, w.statusCode)
	}
}

type nonFlushWriter struct {
	header     http.Header
	statusCode int
	body       []byte
}

func (n *nonFlushWriter) Header() http.Header {
	return n.header
}

func (n *nonFlushWriter) Write(b []byte) (int, error) {
	n.body = append(n.body, b...)
	return len(b), nil
}

func (n *nonFlushWriter) WriteHeader(statusCode int) {
	n.statusCode = statusCode
}

func TestHandleSSE_Headers(t *testing.T) {
	ms := newMockStore()
	srv := NewServer(ms, 0, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, req)

	expectedHeaders := map[string]string{
		"Content-Type":                "text/event-stream",
		"Cache-Control":               "no-cache",
		"Connection":                  "keep-alive",
		"Access-Control-Allow-Origin": "*",
	}

	for key, expected := range expectedHeaders {
		if got := rec.Header().Get(key); got != expected {
			t.Errorf("header %s = %q, want %q", key, got, expected)
		}
	}
}

func TestHandleSSE_JSONFormat(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.FeedStatus{
		Source:         "golang/go",
		State:          "idle",
		ItemsDelivered: 42,
		LastEventID:    "314",
		Remaining:      55,
		LastPollAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	})

	srv := NewServer(ms, 0, testLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, req)

	body := rec.Body.String()

	// extract JSON from "data: {...}\n\n" format
	lines := strings.Split(body, "\n")
	var jsonData string
	for _, line := range lines {
		if strings.HasPrefix(line, "data: ") {
			jsonData = strings.TrimPrefix(line, "data: ")
			break
		}
	}

	if jsonData == "" {
		t.Fatalf("no SSE data found in response: %s", body)
	}

	var status store.FeedStatus
	if err := json.Unmarshal([]byte(jsonData), &status); err != nil {
		t.Fatalf("failed to parse JSON: %v, data: %s", err, jsonData)
	}

	if status.Source != "golang/go" {
		t.Errorf("Source = %q, want %q", status.Source, "golang/go")
	}
	if status.ItemsDelivered != 42 {
		t.Errorf("ItemsDelivered = %v, want %v", status.ItemsDelivered, 42)
	}
}

// --- Integration tests for slow client / shutdown behavior ---
//
// These tests use httptest.Server to create real HTTP connections that support
// write deadlines. Mock ResponseWriters don't support SetWriteDeadline, so we
// can't unit test deadline behavior with mocks.

// TestHandleSSE_ServerShutdownIntegration tests that SSE handlers exit cleanly
// when the server is shut down, using a real HTTP connection.
func TestHandleSSE_ServerShutdownIntegration(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.FeedStatus{Source: "golang/go", State: "idle"})

	srv := NewServer(ms, 0, testLogger())

	serverCtx, serverCancel := context.WithCancel(context.Background())

	// create HTTP handler that respects server context
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// derive request context from server context (simulates BaseContext)
		r = r.WithContext(serverCtx)
		srv.handleSSE(w, r)
	})

	ts := httptest.NewServer(handler)
	defer ts.Close()

	// start SSE connection
	client := ts.Client()
	req, err := http.NewRequest(http.MethodGet, ts.URL, nil)
	if err != nil {
		t.Fatalf("failed to create request: %v", err)
	}

	connDone := make(chan error, 1)
	go func() {
		resp, err := client.Do(req)
		if err != nil {
			connDone <- err
			return
		}
		defer func() { _ = resp.Body.Close() }()

		// read until connection closes
		buf := make([]byte, 1024)
		for {
			_, err := resp.Body.Read(buf)
			if err != nil {
				connDone <- nil // expected - connection closed
				return
			}
		}
	}()

	// give connection time to establish
	time.Sleep(100 * time.Millisecond)

	// trigger server shutdown
	serverCancel()

	// connection should close promptly
	select {
	case <-connDone:
		// success
	case <-time.After(3 * time.Second):
		t.Fatal("SSE connection did not close after server shutdown")
	}
}

// TestHandleSSE_MultipleClientsShutdownIntegration tests shutdown with multiple
// concurrent SSE clients.
func TestHandleSSE_MultipleClientsShutdownIntegration(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.FeedStatus{Source: "golang/go", State: "idle"})

	srv := NewServer(ms, 0, testLogger())

	serverCtx, serverCancel := context.WithCancel(context.Background())

	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		r = r.WithContext(serverCtx)
		srv.handleSSE(w, r)
	})

	ts := httptest.NewServer(handler)
	defer ts.Close()

	numClients := 5
	var wg sync.WaitGroup
	started := make(chan struct{})
	var startedCount atomic.Int32

	// start multiple SSE clients
	for i := 0; i < numClients; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			client := ts.Client()
			resp, err := client.Get(ts.URL)
			if err != nil {
				return // server might have shut down
			}
			defer func() { _ = resp.Body.Close() }()

			if startedCount.Add(1) == int32(numClients) {
				close(started)
			}

			// read until closed
			buf := make([]byte, 1024)
			for {
				_, err := resp.Body.Read(buf)
				if err != nil {
					return
				}
			}
		}()
	}

	// wait for clients to start
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Log("not all clients started, continuing anyway")
	}

	// give handlers time to subscribe
	time.Sleep(100 * time.Millisecond)

	// shutdown
	serverCancel()

	// all should exit
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("not all SSE clients disconnected after shutdown")
	}
}

// TestHandleSSE_WriteDeadlineProtection documents that write deadlines protect
// against slow clients. This test verifies the code path exists but can't fully
// test deadline behavior without a slow network simulation.
//
// The key behavior being tested:
// 1. SetWriteDeadline is called before each write
// 2. If deadline is not supported, handler logs once and continues
// 3. Handler still exits on context cancellation
func TestHandleSSE_WriteDeadlineProtection(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.FeedStatus{Source: "golang/go", State: "idle"})

	srv := NewServer(ms, 0, testLogger())

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	// Use httptest.ResponseRecorder which doesn't support deadlines.
	// This tests the fallback path where deadlines are not supported.
	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	req = req.WithContext(serverCtx)
	rec := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		srv.handleSSE(rec, req)
		close(done)
	}()

	// give handler time to write initial data
	time.Sleep(100 * time.Millisecond)

	// cancel context
	serverCancel()

	// handler should exit (even without deadline support, context cancellation works)
	select {
	case <-done:
		// verify data was written
		body := rec.Body.String()
		if !strings.Contains(body, "golang/go") {
			t.Errorf("expected golang/go in response, got: %s", body)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not exit after context cancellation")
	}
}

// --- Helper to read SSE events from response ---

func parseSSEEvents(body string) []store.FeedStatus {
	var statuses []store.FeedStatus
	lines := strings.Split(body, "\n")
	for _, line := range lines {
		if strings.HasPrefix(line, "data: ") {
			jsonData := strings.TrimPrefix(line, "data: ")
			var status store.FeedStatus
			if err := json.Unmarshal([]byte(jsonData), &status); err == nil {
				statuses = append(statuses, status)
			}
		}
	}
	return statuses
}

// --- Integration test with real HTTP server ---

func TestServer_SSEIntegration(t *testing.T) {
	ms := newMockStore()
	ms.Update(store.FeedStatus{Source: "golang/go", State: "idle"})

	srv := NewServer(ms, 0, testLogger())

	serverCtx, serverCancel := context.WithCancel(context.Background())
	defer serverCancel()

	if err := srv.Start(serverCtx); err != nil {
		t.Fatalf("failed to start server: %v", err)
	}

	// give server time to start
	time.Sleep(50 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
	req = req.WithContext(ctx)
	rec := httptest.NewRecorder()

	srv.handleSSE(rec, req)

	events := parseSSEEvents(rec.Body.String())
	if len(events) == 0 {
		t.Fatal("expected at least one SSE event")
	}

	found := false
	for _, e := range events {
		if e.Source == "golang/go" {
			found = true
			break
		}
	}
	if !found {
		t.Error("golang/go not found in SSE events")
	}
}

// --- Server Start tests ---

func TestStart_AvailablePort_ReturnsNil(t *testing.T) {
	ms := newMockStore()
	// port 0 = OS assigns available port. Valid for the internal server,
	// though the public API treats 0 as "status server disabled".
	srv := NewServer(ms, 0, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := srv.Start(ctx)
	if err != nil {
		t.Errorf("Start() on available port returned error: %v", err)
	}
	// cleanup verified by context cancellation via defer; shutdown behaviour
	// is covered by TestHandleSSE_ServerShutdownIntegration
}

func TestStart_PortInUse_ReturnsError(t *testing.T) {
	// occupy a port
	ln, err := net.Listen("tcp", ":0")
	if err != nil {
		t.Fatalf("failed to create listener: %v", err)
	}
	defer func() { _ = ln.Close() }()

	port := ln.Addr().(*net.TCPAddr).Port

	// try to start server on same port
	ms := newMockStore()
	srv := NewServer(ms, port, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err = srv.Start(ctx)
	if err == nil {
		t.Fatal("Start() on occupied port should return error")
	}
	// verify error is from our code path, not some other failure
	if !strings.Contains(err.Error(), "failed to bind") {
		t.Errorf("expected bind error, got: %v", err)
	}
}

func TestStart_InvalidPort_ReturnsError(t *testing.T) {
	ms := newMockStore()
	srv := NewServer(ms, -1, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	err := srv.Start(ctx)
	if err == nil {
		t.Fatal("Start() with invalid port should return error")
	}
}

// --- Benchmark ---

func BenchmarkHandleSSE_SingleClient(b *testing.B) {
	ms := newMockStore()
	for i := 0; i < 10; i++ {
		ms.Update(store.FeedStatus{Source: "org/repo-" + string(rune('A'+i)), State: "idle"})
	}

	srv := NewServer(ms, 0, testLogger())

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
		req := httptest.NewRequest(http.MethodGet, "/api/sse", nil)
		req = req.WithContext(ctx)
		rec := httptest.NewRecorder()

		srv.handleSSE(rec, req)
		cancel()
	}
}
