// Package store persists session snapshots in SQLite so games survive process
// restarts. Each committed mutation overwrites the session's snapshot row;
// replay after a crash restores from the snapshot instead of re-invoking any
// external call.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	_ "modernc.org/sqlite"

	"github.com/rilhia/the-hallucinated-truth/internal/game"
)

// ErrNotFound is returned when no snapshot exists for a session id.
var ErrNotFound = errors.New("session snapshot not found")

// Store is a SQLite-backed snapshot store.
type Store struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// New initializes the SQLite database at the given path.
func New(path string) (*Store, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// initialize creates the required tables.
func (s *Store) initialize() error {
	schema := `
	CREATE TABLE IF NOT EXISTS sessions (
		id TEXT PRIMARY KEY,
		snapshot TEXT NOT NULL,
		stage INTEGER NOT NULL DEFAULT 0,
		finished INTEGER NOT NULL DEFAULT 0,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_sessions_finished ON sessions(finished);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create tables: %w", err)
	}
	return nil
}

// SaveSnapshot upserts a session's snapshot.
func (s *Store) SaveSnapshot(ctx context.Context, snap game.Snapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	finished := 0
	if snap.Finished {
		finished = 1
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO sessions (id, snapshot, stage, finished, updated_at)
		 VALUES (?, ?, ?, ?, CURRENT_TIMESTAMP)
		 ON CONFLICT(id) DO UPDATE SET
		   snapshot = excluded.snapshot,
		   stage = excluded.stage,
		   finished = excluded.finished,
		   updated_at = CURRENT_TIMESTAMP`,
		snap.ID, string(data), int(snap.Stage), finished,
	)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// LoadSnapshot returns the snapshot for a session id.
func (s *Store) LoadSnapshot(ctx context.Context, id string) (game.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var data string
	err := s.db.QueryRowContext(ctx,
		"SELECT snapshot FROM sessions WHERE id = ?", id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return game.Snapshot{}, ErrNotFound
	}
	if err != nil {
		return game.Snapshot{}, fmt.Errorf("failed to load snapshot: %w", err)
	}

	var snap game.Snapshot
	if err := json.Unmarshal([]byte(data), &snap); err != nil {
		return game.Snapshot{}, fmt.Errorf("failed to unmarshal snapshot: %w", err)
	}
	return snap, nil
}

// LoadAllSnapshots returns every persisted snapshot, oldest first.
func (s *Store) LoadAllSnapshots(ctx context.Context) ([]game.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT snapshot FROM sessions ORDER BY updated_at ASC")
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []game.Snapshot
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			continue
		}
		var snap game.Snapshot
		if err := json.Unmarshal([]byte(data), &snap); err != nil {
			continue
		}
		snaps = append(snaps, snap)
	}
	return snaps, rows.Err()
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
