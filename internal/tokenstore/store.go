// Package tokenstore persists the two things an HTTP-backed stage needs
// across process restarts: the bearer token used to authenticate against a
// stage's remote backend, and the output artifact paths a completed task
// produced. Nothing in the core imports this package — only
// internal/stages/httpstage does, matching spec.md's exclusion of
// persistence for the HTTP decorator from the DAG core itself.
//
// Grounded on the teacher's internal/persistence/store.go and schema.go,
// generalized from the task/session/conversation-history shape to a
// backend-token/task-artifact shape.
package tokenstore

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"
)

// Store persists backend tokens and per-task output artifacts.
type Store interface {
	SetToken(ctx context.Context, backend, token string) error
	GetToken(ctx context.Context, backend string) (string, bool, error)

	RecordArtifact(ctx context.Context, taskID, key, value string) error
	GetArtifact(ctx context.Context, taskID, key string) (string, bool, error)

	Close() error
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// Open creates a new SQLite-backed store at dbPath, creating parent
// directories and the schema if needed.
func Open(ctx context.Context, dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating parent directories: %w", err)
	}

	connStr := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

// OpenMemory creates an in-memory SQLite store for testing, using a shared
// cache so multiple connections see the same database.
func OpenMemory(ctx context.Context) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", "file::memory:?mode=memory&cache=shared")
	if err != nil {
		return nil, fmt.Errorf("opening memory database: %w", err)
	}
	db.SetMaxOpenConns(2)

	store := &SQLiteStore{db: db}
	if err := store.initSchema(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("initializing schema: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) initSchema(ctx context.Context) error {
	schema := `
	CREATE TABLE IF NOT EXISTS backend_tokens (
		backend TEXT PRIMARY KEY,
		token TEXT NOT NULL,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS task_artifacts (
		task_id TEXT NOT NULL,
		output_key TEXT NOT NULL,
		output_value TEXT NOT NULL,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		PRIMARY KEY (task_id, output_key)
	);
	`
	_, err := s.db.ExecContext(ctx, schema)
	return err
}

// SetToken upserts the bearer token for backend.
func (s *SQLiteStore) SetToken(ctx context.Context, backend, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO backend_tokens (backend, token, updated_at) VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(backend) DO UPDATE SET token = excluded.token, updated_at = CURRENT_TIMESTAMP
	`, backend, token)
	if err != nil {
		return fmt.Errorf("setting token for %q: %w", backend, err)
	}
	return nil
}

// GetToken returns the stored token for backend, or (_, false, nil) if none
// has been set.
func (s *SQLiteStore) GetToken(ctx context.Context, backend string) (string, bool, error) {
	var token string
	err := s.db.QueryRowContext(ctx, `SELECT token FROM backend_tokens WHERE backend = ?`, backend).Scan(&token)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting token for %q: %w", backend, err)
	}
	return token, true, nil
}

// RecordArtifact upserts the output value a task produced for key.
func (s *SQLiteStore) RecordArtifact(ctx context.Context, taskID, key, value string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO task_artifacts (task_id, output_key, output_value, created_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(task_id, output_key) DO UPDATE SET output_value = excluded.output_value, created_at = CURRENT_TIMESTAMP
	`, taskID, key, value)
	if err != nil {
		return fmt.Errorf("recording artifact %s/%s: %w", taskID, key, err)
	}
	return nil
}

// GetArtifact returns the recorded output value for taskID/key, or
// (_, false, nil) if none exists.
func (s *SQLiteStore) GetArtifact(ctx context.Context, taskID, key string) (string, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `
		SELECT output_value FROM task_artifacts WHERE task_id = ? AND output_key = ?
	`, taskID, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting artifact %s/%s: %w", taskID, key, err)
	}
	return value, true, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
