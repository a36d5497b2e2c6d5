// Package onboarding provides the reference handlers for the delegated
// onboarding and memory tools, backed by a local SQLite database.
package onboarding

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"neurodeck/internal/logging"
)

// Store persists onboarding checkpoints, provider credentials and memory
// notes. Credentials never leave the store in tool results.
type Store struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS settings (
	key   TEXT PRIMARY KEY,
	value TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS provider_keys (
	provider   TEXT PRIMARY KEY,
	api_key    TEXT NOT NULL,
	updated_at TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS memories (
	id         TEXT PRIMARY KEY,
	content    TEXT NOT NULL,
	tags       TEXT NOT NULL DEFAULT '',
	created_at TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_memories_created ON memories(created_at);
`

// Setting keys.
const (
	keyWorkspaceRoot = "workspace_root"
	keyProvider      = "preferred_provider"
	keyModel         = "preferred_model"
	keyCompleted     = "onboarding_completed"
)

// Open opens (creating if needed) the state database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	// modernc sqlite serializes at the driver level; a single connection
	// avoids SQLITE_BUSY on concurrent handler calls.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	logging.Onboarding("state database opened: %s", path)
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) setSetting(ctx context.Context, key, value string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO settings (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	return err
}

// getSetting returns "" for a missing key.
func (s *Store) getSetting(ctx context.Context, key string) (string, error) {
	var value string
	err := s.db.QueryRowContext(ctx, `SELECT value FROM settings WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SaveProviderKey upserts a provider credential.
func (s *Store) SaveProviderKey(ctx context.Context, provider, apiKey string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO provider_keys (provider, api_key, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(provider) DO UPDATE SET api_key = excluded.api_key, updated_at = excluded.updated_at`,
		provider, apiKey, time.Now().UTC().Format(time.RFC3339))
	return err
}

// ProviderKey returns the stored key for provider, or "" if none.
func (s *Store) ProviderKey(ctx context.Context, provider string) (string, error) {
	var key string
	err := s.db.QueryRowContext(ctx, `SELECT api_key FROM provider_keys WHERE provider = ?`, provider).Scan(&key)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return key, err
}

func (s *Store) providerCount(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM provider_keys`).Scan(&n)
	return n, err
}

// Memory is one durable memory note.
type Memory struct {
	ID        string
	Content   string
	Tags      string
	CreatedAt string
}

// AppendMemory inserts a memory note.
func (s *Store) AppendMemory(ctx context.Context, m Memory) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, content, tags, created_at) VALUES (?, ?, ?, ?)`,
		m.ID, m.Content, m.Tags, m.CreatedAt)
	return err
}

// SearchMemories returns up to limit notes whose content or tags match the
// query, newest first.
func (s *Store) SearchMemories(ctx context.Context, query string, limit int) ([]Memory, error) {
	pattern := "%" + query + "%"
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, content, tags, created_at FROM memories
		 WHERE content LIKE ? OR tags LIKE ?
		 ORDER BY created_at DESC LIMIT ?`, pattern, pattern, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Memory
	for rows.Next() {
		var m Memory
		if err := rows.Scan(&m.ID, &m.Content, &m.Tags, &m.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

// GetMemory fetches one note by id. Returns sql.ErrNoRows when absent.
func (s *Store) GetMemory(ctx context.Context, id string) (Memory, error) {
	var m Memory
	err := s.db.QueryRowContext(ctx,
		`SELECT id, content, tags, created_at FROM memories WHERE id = ?`, id).
		Scan(&m.ID, &m.Content, &m.Tags, &m.CreatedAt)
	return m, err
}
