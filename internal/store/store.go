// Package store persists CRM appointments in sqlite and implements the
// async move/resize/create mutation contract the drag engine commits
// against.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"crmcal/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when an event id does not exist.
var ErrNotFound = errors.New("store: event not found")

// ErrInvalidRange is returned when a proposed range is not strictly
// start < end.
var ErrInvalidRange = errors.New("store: end must be after start")

// Store wraps the sqlite database holding appointments.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the sqlite database at dbPath and
// runs migrations. Use ":memory:" for tests.
func Open(dbPath string) (*Store, error) {
	if dbPath != ":memory:" {
		dir := filepath.Dir(dbPath)
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("store: create db dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("store: open db: %w", err)
	}
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("store: ping db: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("store: migrate: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			description TEXT DEFAULT '',
			location TEXT DEFAULT '',
			status TEXT DEFAULT '',
			kind TEXT DEFAULT '',
			start_at DATETIME NOT NULL,
			end_at DATETIME NOT NULL,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_events_start_at ON events(start_at)`,
		`CREATE INDEX IF NOT EXISTS idx_events_end_at ON events(end_at)`,
	}
	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			return err
		}
	}
	return nil
}

// Create inserts a new appointment and returns it with its id set.
func (s *Store) Create(ctx context.Context, ev model.Event) (model.Event, error) {
	if !ev.End.After(ev.Start) {
		return model.Event{}, ErrInvalidRange
	}
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO events (title, description, location, status, kind, start_at, end_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.Title, ev.Description, ev.Location, ev.Status, ev.Kind,
		ev.Start.UTC(), ev.End.UTC(),
	)
	if err != nil {
		return model.Event{}, fmt.Errorf("store: insert event: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Event{}, fmt.Errorf("store: last insert id: %w", err)
	}
	ev.ID = id
	return ev, nil
}

// Get returns a single appointment by id.
func (s *Store) Get(ctx context.Context, id int64) (model.Event, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, title, description, location, status, kind, start_at, end_at
		 FROM events WHERE id = ?`, id)
	return scanEvent(row)
}

// ListRange returns all appointments intersecting the half-open window
// [from, to), ordered by start time.
func (s *Store) ListRange(ctx context.Context, from, to time.Time) ([]model.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, title, description, location, status, kind, start_at, end_at
		 FROM events
		 WHERE start_at < ? AND end_at > ?
		 ORDER BY start_at`, to.UTC(), from.UTC())
	if err != nil {
		return nil, fmt.Errorf("store: list events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		ev, err := scanEvent(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// Move reschedules an event to a new range, preserving everything
// else. It is the moveEvent contract of the drag engine.
func (s *Store) Move(ctx context.Context, id int64, start, end time.Time) error {
	return s.reschedule(ctx, id, start, end)
}

// Resize changes an event's range like Move; kept as a separate method
// so callers and logs distinguish the two intents.
func (s *Store) Resize(ctx context.Context, id int64, start, end time.Time) error {
	return s.reschedule(ctx, id, start, end)
}

func (s *Store) reschedule(ctx context.Context, id int64, start, end time.Time) error {
	if !end.After(start) {
		return ErrInvalidRange
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE events SET start_at = ?, end_at = ?, updated_at = CURRENT_TIMESTAMP
		 WHERE id = ?`, start.UTC(), end.UTC(), id)
	if err != nil {
		return fmt.Errorf("store: reschedule event %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes an appointment.
func (s *Store) Delete(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("store: delete event %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(r rowScanner) (model.Event, error) {
	var ev model.Event
	err := r.Scan(&ev.ID, &ev.Title, &ev.Description, &ev.Location,
		&ev.Status, &ev.Kind, &ev.Start, &ev.End)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Event{}, ErrNotFound
	}
	if err != nil {
		return model.Event{}, fmt.Errorf("store: scan event: %w", err)
	}
	return ev, nil
}
