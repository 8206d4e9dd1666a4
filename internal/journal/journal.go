package journal

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "embed"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// Entry is one delivered item as recorded in the journal.
type Entry struct {
	ID          int64
	Source      string
	EventID     string
	Type        string
	Actor       string
	Repo        string
	CreatedAt   time.Time
	DeliveredAt time.Time
}

// Journal records delivered items in a SQLite database.
//
// Safe for concurrent use; database/sql serializes access to the underlying
// connection pool.
type Journal struct {
	db *sql.DB
}

// Open opens (creating if necessary) the journal database at path and
// applies the schema.
func Open(path string) (*Journal, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("journal path is required")
	}

	dir := filepath.Dir(path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create journal dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.ExecContext(context.Background(), schemaSQL); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close releases the underlying database handle.
func (j *Journal) Close() error {
	if j == nil || j.db == nil {
		return nil
	}
	return j.db.Close()
}

// Record inserts one delivered item.
//
// An entry with the same (source, event_id) as an existing row is silently
// ignored; a poll retried after a partial sink failure may legitimately
// redeliver its boundary item.
func (j *Journal) Record(ctx context.Context, e Entry) error {
	if j == nil || j.db == nil {
		return errors.New("journal is not initialized")
	}
	if e.Source == "" {
		return errors.New("source is required")
	}
	if e.EventID == "" {
		return errors.New("event_id is required")
	}

	deliveredAt := e.DeliveredAt
	if deliveredAt.IsZero() {
		deliveredAt = time.Now()
	}

	_, err := j.db.ExecContext(ctx, `
		INSERT INTO events (source, event_id, type, actor, repo, created_at, delivered_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(source, event_id) DO NOTHING
	`,
		e.Source,
		e.EventID,
		e.Type,
		e.Actor,
		e.Repo,
		formatTime(e.CreatedAt),
		formatTime(deliveredAt),
	)
	if err != nil {
		return fmt.Errorf("record event: %w", err)
	}
	return nil
}

// Recent returns the most recently delivered entries, newest first,
// optionally restricted to one source. A non-positive limit defaults to 50.
func (j *Journal) Recent(ctx context.Context, source string, limit int) ([]Entry, error) {
	if j == nil || j.db == nil {
		return nil, errors.New("journal is not initialized")
	}
	if limit <= 0 {
		limit = 50
	}

	query := `
		SELECT id, source, event_id, type, actor, repo, created_at, delivered_at
		FROM events`
	args := []any{}
	if source != "" {
		query += " WHERE source = ?"
		args = append(args, source)
	}
	query += " ORDER BY delivered_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []Entry
	for rows.Next() {
		var (
			e                    Entry
			createdAt, delivered string
		)
		if err := rows.Scan(&e.ID, &e.Source, &e.EventID, &e.Type, &e.Actor, &e.Repo, &createdAt, &delivered); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if e.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at: %w", err)
		}
		if e.DeliveredAt, err = parseTime(delivered); err != nil {
			return nil, fmt.Errorf("parse delivered_at: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}

	return entries, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	if ts, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return ts, nil
	}
	return time.Parse(time.RFC3339, value)
}
