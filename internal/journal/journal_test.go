package journal

import (
	"context"
	"path/filepath"
	"testing"
	"time"
)

func openTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := Open(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	t.Cleanup(func() { _ = j.Close() })
	return j
}

func testEntry(source, eventID string, deliveredAt time.Time) Entry {
	return Entry{
		Source:      source,
		EventID:     eventID,
		Type:        "PushEvent",
		Actor:       "alice",
		Repo:        source,
		CreatedAt:   deliveredAt.Add(-time.Minute),
		DeliveredAt: deliveredAt,
	}
}

func TestOpen_EmptyPath(t *testing.T) {
	if _, err := Open(""); err == nil {
		t.Error("Open(\"\") error = nil, want error")
	}
	if _, err := Open("   "); err == nil {
		t.Error("Open with blank path error = nil, want error")
	}
}

func TestOpen_CreatesParentDir(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dir", "journal.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	defer func() { _ = j.Close() }()

	if err := j.Record(context.Background(), testEntry("golang/go", "1", time.Now())); err != nil {
		t.Errorf("Record() error = %v", err)
	}
}

func TestJournal_RecordAndRecent(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		e := testEntry("golang/go", string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute))
		if err := j.Record(ctx, e); err != nil {
			t.Fatalf("Record() error = %v", err)
		}
	}

	entries, err := j.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 3 {
		t.Fatalf("len(entries) = %d, want 3", len(entries))
	}

	// newest first
	for i, want := range []string{"c", "b", "a"} {
		if entries[i].EventID != want {
			t.Errorf("entries[%d].EventID = %q, want %q", i, entries[i].EventID, want)
		}
	}

	e := entries[0]
	if e.Source != "golang/go" {
		t.Errorf("Source = %q, want %q", e.Source, "golang/go")
	}
	if e.Type != "PushEvent" {
		t.Errorf("Type = %q, want %q", e.Type, "PushEvent")
	}
	if e.Actor != "alice" {
		t.Errorf("Actor = %q, want %q", e.Actor, "alice")
	}
	if !e.DeliveredAt.Equal(base.Add(2 * time.Minute)) {
		t.Errorf("DeliveredAt = %v, want %v", e.DeliveredAt, base.Add(2*time.Minute))
	}
}

func TestJournal_Record_DuplicateIgnored(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	e := testEntry("golang/go", "42", time.Now())
	if err := j.Record(ctx, e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	// a boundary item redelivered after a partial failure
	if err := j.Record(ctx, e); err != nil {
		t.Fatalf("Record() duplicate error = %v, want nil", err)
	}

	entries, err := j.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want 1 after duplicate insert", len(entries))
	}
}

func TestJournal_Record_SameIDDifferentSources(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	if err := j.Record(ctx, testEntry("golang/go", "1", time.Now())); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := j.Record(ctx, testEntry("golang/tools", "1", time.Now())); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := j.Recent(ctx, "", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Errorf("len(entries) = %d, want 2 (dedup is per source)", len(entries))
	}
}

func TestJournal_Record_Validation(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	if err := j.Record(ctx, Entry{EventID: "1"}); err == nil {
		t.Error("Record() without source: error = nil, want error")
	}
	if err := j.Record(ctx, Entry{Source: "golang/go"}); err == nil {
		t.Error("Record() without event_id: error = nil, want error")
	}
}

func TestJournal_Record_DefaultsDeliveredAt(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	e := testEntry("golang/go", "1", time.Time{})
	e.DeliveredAt = time.Time{}
	before := time.Now().Add(-time.Second)

	if err := j.Record(ctx, e); err != nil {
		t.Fatalf("Record() error = %v", err)
	}

	entries, err := j.Recent(ctx, "", 1)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if entries[0].DeliveredAt.Before(before) {
		t.Errorf("DeliveredAt = %v, want defaulted to now", entries[0].DeliveredAt)
	}
}

func TestJournal_Recent_SourceFilter(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	now := time.Now()
	_ = j.Record(ctx, testEntry("golang/go", "1", now))
	_ = j.Record(ctx, testEntry("golang/tools", "2", now))
	_ = j.Record(ctx, testEntry("golang/go", "3", now))

	entries, err := j.Recent(ctx, "golang/go", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	for _, e := range entries {
		if e.Source != "golang/go" {
			t.Errorf("entry source = %q, want golang/go", e.Source)
		}
	}
}

func TestJournal_Recent_Limit(t *testing.T) {
	j := openTestJournal(t)
	ctx := context.Background()

	base := time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		_ = j.Record(ctx, testEntry("golang/go", string(rune('a'+i)), base.Add(time.Duration(i)*time.Minute)))
	}

	entries, err := j.Recent(ctx, "", 2)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("len(entries) = %d, want 2", len(entries))
	}
	// the two newest
	if entries[0].EventID != "e" || entries[1].EventID != "d" {
		t.Errorf("entries = [%s %s], want [e d]", entries[0].EventID, entries[1].EventID)
	}
}

func TestJournal_Recent_EmptyJournal(t *testing.T) {
	j := openTestJournal(t)

	entries, err := j.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("len(entries) = %d, want 0", len(entries))
	}
}

func TestJournal_Reopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")

	j, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error = %v", err)
	}
	if err := j.Record(context.Background(), testEntry("golang/go", "1", time.Now())); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	// recorded entries survive reopening
	j2, err := Open(path)
	if err != nil {
		t.Fatalf("Open() after close error = %v", err)
	}
	defer func() { _ = j2.Close() }()

	entries, err := j2.Recent(context.Background(), "", 10)
	if err != nil {
		t.Fatalf("Recent() error = %v", err)
	}
	if len(entries) != 1 {
		t.Errorf("len(entries) = %d, want 1 after reopen", len(entries))
	}
}

func TestJournal_NilSafe(t *testing.T) {
	var j *Journal

	if err := j.Close(); err != nil {
		t.Errorf("nil Close() error = %v, want nil", err)
	}
	if err := j.Record(context.Background(), testEntry("golang/go", "1", time.Now())); err == nil {
		t.Error("nil Record() error = nil, want error")
	}
	if _, err := j.Recent(context.Background(), "", 1); err == nil {
		t.Error("nil Recent() error = nil, want error")
	}
}
