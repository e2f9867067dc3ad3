package history

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Journal records lifecycle events (starts, stops, status passes) in a
// SQLite file (modernc.org/sqlite driver, CGO-free). Use ":memory:" for
// an in-memory journal.

// EventKind labels journal entries.
type EventKind string

const (
	EventStart  EventKind = "start"
	EventStop   EventKind = "stop"
	EventStatus EventKind = "status"
)

// Event is one journal entry. Service and Port may be empty for
// stack-wide events such as a full shutdown.
type Event struct {
	ID      int64     `json:"id"`
	Kind    EventKind `json:"kind"`
	Service string    `json:"service,omitempty"`
	Port    int       `json:"port,omitempty"`
	Outcome string    `json:"outcome"`
	Detail  string    `json:"detail,omitempty"`
	At      time.Time `json:"at"`
}

type Journal struct {
	db *sql.DB
}

// Open opens (creating if needed) the journal at path.
func Open(path string) (*Journal, error) {
	p := strings.TrimSpace(path)
	if p == "" {
		return nil, errors.New("empty journal path")
	}
	d, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	// busy timeout helps with short concurrent locks
	_, _ = d.Exec("PRAGMA busy_timeout=3000;")
	return &Journal{db: d}, nil
}

func (j *Journal) EnsureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS lifecycle_event(
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			kind TEXT NOT NULL,
			service TEXT NOT NULL DEFAULT '',
			port INTEGER NOT NULL DEFAULT 0,
			outcome TEXT NOT NULL,
			detail TEXT NOT NULL DEFAULT '',
			at TIMESTAMP NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_event_service ON lifecycle_event(service);`,
		`CREATE INDEX IF NOT EXISTS idx_lifecycle_event_at ON lifecycle_event(at);`,
	}
	for _, q := range stmts {
		if _, err := j.db.ExecContext(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func (j *Journal) Close() error { return j.db.Close() }

// Append stores one event. A zero At is stamped with the current time.
func (j *Journal) Append(ctx context.Context, ev Event) error {
	if ev.At.IsZero() {
		ev.At = time.Now()
	}
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO lifecycle_event(kind, service, port, outcome, detail, at)
		VALUES(?, ?, ?, ?, ?, ?);`,
		string(ev.Kind), ev.Service, ev.Port, ev.Outcome, ev.Detail, ev.At.UTC())
	return err
}

// Recent returns the newest events, most recent first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, kind, service, port, outcome, detail, at
		FROM lifecycle_event
		ORDER BY at DESC, id DESC
		LIMIT ?;`, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

// RecentByService returns the newest events for one service.
func (j *Journal) RecentByService(ctx context.Context, service string, limit int) ([]Event, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, kind, service, port, outcome, detail, at
		FROM lifecycle_event
		WHERE service=?
		ORDER BY at DESC, id DESC
		LIMIT ?;`, service, limit)
	if err != nil {
		return nil, err
	}
	defer func() { _ = rows.Close() }()
	return scanEvents(rows)
}

// PurgeOlderThan removes events older than the cutoff and reports how many
// rows were deleted.
func (j *Journal) PurgeOlderThan(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, `DELETE FROM lifecycle_event WHERE at < ?;`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

func scanEvents(rows *sql.Rows) ([]Event, error) {
	out := make([]Event, 0)
	for rows.Next() {
		var e Event
		var kind string
		if err := rows.Scan(&e.ID, &kind, &e.Service, &e.Port, &e.Outcome, &e.Detail, &e.At); err != nil {
			return nil, err
		}
		e.Kind = EventKind(kind)
		out = append(out, e)
	}
	return out, rows.Err()
}
