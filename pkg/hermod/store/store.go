// Package store provides the central SQLite database for Hermod.
// A single hermod.db file holds chat sessions and their transcripts,
// skills, the config override table, application logs, and cron jobs.
package store

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/mattn/go-sqlite3" // SQLite driver.
)

// Sentinel errors returned by store operations.
var (
	ErrSessionNotFound = errors.New("session not found")
	ErrSkillNotFound   = errors.New("skill not found")
)

// DefaultTitle is the placeholder title given to new sessions until
// AutoTitle derives one from the first user message.
const DefaultTitle = "New Chat"

// schema is the DDL executed on every startup (idempotent via IF NOT EXISTS).
const schema = `
-- Chat sessions (one row per conversation).
CREATE TABLE IF NOT EXISTS sessions (
    id         TEXT PRIMARY KEY,
    title      TEXT NOT NULL DEFAULT 'New Chat',
    created_at TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Transcript messages (append-only, ordered by created_at then id).
CREATE TABLE IF NOT EXISTS messages (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    session_id TEXT NOT NULL,
    role       TEXT NOT NULL,
    content    TEXT NOT NULL,
    tool_calls TEXT,
    created_at TEXT NOT NULL,
    FOREIGN KEY (session_id) REFERENCES sessions(id) ON DELETE CASCADE
);
CREATE INDEX IF NOT EXISTS idx_messages_sid ON messages(session_id);
CREATE INDEX IF NOT EXISTS idx_messages_created ON messages(created_at);
CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions(updated_at DESC);

-- Config overrides (key/value, shadow the YAML config).
CREATE TABLE IF NOT EXISTS config (
    key        TEXT PRIMARY KEY,
    value      TEXT NOT NULL,
    updated_at TEXT NOT NULL
);

-- Application logs surfaced by the /api/logs viewer.
CREATE TABLE IF NOT EXISTS logs (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    level      TEXT NOT NULL,
    logger     TEXT DEFAULT '',
    message    TEXT NOT NULL,
    created_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_logs_created ON logs(created_at DESC);
CREATE INDEX IF NOT EXISTS idx_logs_level ON logs(level);

-- Skills (prompt snippets managed over REST).
CREATE TABLE IF NOT EXISTS skills (
    id          TEXT PRIMARY KEY,
    name        TEXT NOT NULL,
    description TEXT DEFAULT '',
    content     TEXT DEFAULT '',
    enabled     INTEGER DEFAULT 1,
    created_at  TEXT NOT NULL,
    updated_at  TEXT NOT NULL
);

-- Scheduled jobs executed through the engine.
CREATE TABLE IF NOT EXISTS cron_jobs (
    id         TEXT PRIMARY KEY,
    name       TEXT NOT NULL,
    schedule   TEXT NOT NULL,
    command    TEXT NOT NULL,
    enabled    INTEGER DEFAULT 1,
    last_run   TEXT,
    next_run   TEXT,
    last_error TEXT DEFAULT '',
    run_count  INTEGER DEFAULT 0,
    created_at TEXT NOT NULL
);
`

// Store owns the database handle shared by all connection handlers.
// database/sql pools connections internally; every write here is a single
// transaction, so concurrent handlers never observe partial writes.
type Store struct {
	db     *sql.DB
	logger *slog.Logger

	// TitleMaxLen is the truncation boundary used by AutoTitle.
	TitleMaxLen int
}

// Open opens (or creates) the hermod.db at the given path.
// It enables WAL mode for concurrent read performance and creates all tables.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if path == "" {
		path = "./data/hermod.db"
	}
	if logger == nil {
		logger = slog.Default()
	}

	// Ensure parent directory exists.
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create database directory %q: %w", dir, err)
	}

	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=ON"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", path, err)
	}

	// Verify connectivity.
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	// Create schema (idempotent).
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	return &Store{
		db:          db,
		logger:      logger.With("component", "store"),
		TitleMaxLen: 60,
	}, nil
}

// DB exposes the underlying handle for components that manage their own
// tables in the shared database (scheduler job storage).
func (s *Store) DB() *sql.DB {
	return s.db
}

// Close closes the database handle.
func (s *Store) Close() error {
	return s.db.Close()
}
