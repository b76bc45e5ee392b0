// Package store persists fabricated resources, their embeddings, audit
// interactions, and honeypot users in sqlite. Vector nearest-neighbor
// lookup rides on the sqlite-vec extension.
package store

import (
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
)

// Store wraps the sqlite handle. All methods are safe for concurrent use;
// sqlite serializes writes underneath.
type Store struct {
	db     *sqlx.DB
	dims   int
	vec    bool
	logger *slog.Logger
}

// Open opens (creating if needed) the honeypot database. dims fixes the
// embedding width of the vec0 virtual table and must match the embedding
// collaborator's output.
func Open(path string, dims int, logger *slog.Logger) (*Store, error) {
	db, err := sqlx.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL; PRAGMA foreign_keys=ON; PRAGMA busy_timeout=5000;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply pragmas: %w", err)
	}

	s := &Store{db: db, dims: dims, logger: logger}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}

	return s, nil
}

func (s *Store) initSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS resources (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			canonical_key TEXT UNIQUE,
			path TEXT UNIQUE,
			response_body BLOB,
			response_status INTEGER NOT NULL DEFAULT 200,
			response_headers BLOB,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			client_ip TEXT,
			method TEXT NOT NULL,
			path TEXT NOT NULL,
			query_params TEXT,
			semantic_key TEXT,
			headers_json TEXT,
			request_body TEXT,
			response_body TEXT,
			response_status INTEGER NOT NULL,
			response_headers TEXT,
			requested_at TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS users (
			username TEXT PRIMARY KEY,
			password TEXT NOT NULL,
			client_ip TEXT,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_path ON interactions(path)`,
		`CREATE INDEX IF NOT EXISTS idx_interactions_client ON interactions(client_ip)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("execute schema statement: %w", err)
		}
	}

	vecTable := fmt.Sprintf(
		`CREATE VIRTUAL TABLE IF NOT EXISTS resource_embeddings USING vec0(embedding float[%d])`, s.dims)
	if _, err := s.db.Exec(vecTable); err != nil {
		// Degrade to exact lookups only when sqlite-vec is unavailable.
		s.logger.Warn("vec0 table unavailable, vector lookup disabled", slog.String("error", err.Error()))
		s.vec = false
	} else {
		s.vec = true
	}

	return nil
}

// VectorEnabled reports whether the sqlite-vec extension registered.
func (s *Store) VectorEnabled() bool { return s.vec }

func (s *Store) Close() error { return s.db.Close() }
