package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite data access layer for the result cache.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use in transactions.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Migrate creates the cache tables and indexes. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS cache_entries (
  id              INTEGER PRIMARY KEY,
  project         TEXT NOT NULL,
  finder          TEXT NOT NULL,
  fingerprint     TEXT NOT NULL,
  corpus_hash     TEXT NOT NULL DEFAULT '',
  run_id          TEXT,
  written_at      TIMESTAMP,
  UNIQUE (project, finder)
);

CREATE TABLE IF NOT EXISTS cache_findings (
  id              INTEGER PRIMARY KEY,
  entry_id        INTEGER NOT NULL REFERENCES cache_entries(id) ON DELETE CASCADE,
  ordinal         INTEGER NOT NULL,
  path            TEXT NOT NULL,
  start_line      INTEGER,
  end_line        INTEGER,
  snippet         TEXT
);

CREATE INDEX IF NOT EXISTS idx_cache_entries_project ON cache_entries(project);
CREATE INDEX IF NOT EXISTS idx_cache_findings_entry ON cache_findings(entry_id, ordinal);
`
