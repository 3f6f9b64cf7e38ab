// Package store persists diagram pan/zoom state in a SQLite database.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/rjkroege/markpane/rich"
)

// ErrNotFound is returned by Get for a diagram with no saved state.
var ErrNotFound = errors.New("store: not found")

const schemaVersion = 1

// Store is a key-value table of diagram transforms keyed by diagram id.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open opens or creates the database at path. ":memory:" gives a private
// in-memory database.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening transform store %s: %w", path, err)
	}
	// An in-memory database lives only as long as its connection.
	db.SetMaxOpenConns(1)
	for _, pragma := range []string{"PRAGMA journal_mode = WAL", "PRAGMA busy_timeout = 2000"} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("configuring transform store %s: %w", path, err)
		}
	}
	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing transform store %s: %w", path, err)
	}
	return &Store{db: db, now: time.Now}, nil
}

func initSchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("reading schema version: %w", err)
	}
	if version == schemaVersion {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	if _, err := tx.Exec(`CREATE TABLE IF NOT EXISTS transforms (
		id TEXT PRIMARY KEY,
		pan_x REAL NOT NULL,
		pan_y REAL NOT NULL,
		zoom REAL NOT NULL,
		updated INTEGER NOT NULL
	)`); err != nil {
		return fmt.Errorf("creating transforms table: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", schemaVersion)); err != nil {
		return fmt.Errorf("updating schema version: %w", err)
	}
	return tx.Commit()
}

// Get returns the saved transform for id.
func (s *Store) Get(ctx context.Context, id string) (rich.Transform, error) {
	var t rich.Transform
	err := s.db.QueryRowContext(ctx,
		"SELECT pan_x, pan_y, zoom FROM transforms WHERE id = ?", id,
	).Scan(&t.PanX, &t.PanY, &t.Zoom)
	if errors.Is(err, sql.ErrNoRows) {
		return rich.Transform{}, ErrNotFound
	}
	if err != nil {
		return rich.Transform{}, fmt.Errorf("reading transform %s: %w", id, err)
	}
	return t, nil
}

// Put saves the transform for id, replacing any earlier one.
func (s *Store) Put(ctx context.Context, id string, t rich.Transform) error {
	_, err := s.db.ExecContext(ctx, `INSERT INTO transforms (id, pan_x, pan_y, zoom, updated)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			pan_x = excluded.pan_x,
			pan_y = excluded.pan_y,
			zoom = excluded.zoom,
			updated = excluded.updated`,
		id, t.PanX, t.PanY, t.Zoom, s.now().Unix())
	if err != nil {
		return fmt.Errorf("saving transform %s: %w", id, err)
	}
	return nil
}

// Delete forgets the transform for id. Deleting a missing id is not an
// error.
func (s *Store) Delete(ctx context.Context, id string) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM transforms WHERE id = ?", id); err != nil {
		return fmt.Errorf("deleting transform %s: %w", id, err)
	}
	return nil
}

// Len returns the number of saved transforms.
func (s *Store) Len(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM transforms").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting transforms: %w", err)
	}
	return n, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
