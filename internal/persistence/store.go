// Package persistence provides the SQLite-backed store shared by every
// service instance: application records, conversation threads, and the
// stream session registry that enforces the one-generation-per-app rule.
package persistence

import (
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// Store provides durable state backed by SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// Open creates or opens a SQLite database at the given path.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", fmt.Sprintf("file:%s?cache=shared&mode=rwc&_journal_mode=WAL", dbPath))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// SQLite tuning for concurrent writers across request handlers
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set WAL mode: %w", err)
	}
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("set busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return store, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate applies schema migrations.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER NOT NULL
		)
	`); err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	var version int
	err := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	migrations := []func(*sql.DB) error{
		migrateV1,
		migrateV2,
		migrateV3,
	}

	for i := version; i < len(migrations); i++ {
		slog.Info("Applying persistence migration", "version", i+1)
		if err := migrations[i](s.db); err != nil {
			return fmt.Errorf("migration v%d: %w", i+1, err)
		}
		if _, err := s.db.Exec("INSERT INTO schema_version (version) VALUES (?)", i+1); err != nil {
			return fmt.Errorf("record migration v%d: %w", i+1, err)
		}
	}

	return nil
}

// migrateV1 creates the application tables: apps, access grants, conversation
// threads and messages.
func migrateV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS apps (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL DEFAULT 'Unnamed App',
			description TEXT NOT NULL DEFAULT 'No description',
			git_repo TEXT NOT NULL,
			preview_domain TEXT UNIQUE,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS app_users (
			user_id TEXT NOT NULL,
			app_id TEXT NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
			permissions TEXT NOT NULL DEFAULT 'admin',
			git_identity TEXT NOT NULL DEFAULT '',
			git_access_token TEXT NOT NULL DEFAULT '',
			git_access_token_id TEXT NOT NULL DEFAULT '',
			created_at TEXT NOT NULL,
			PRIMARY KEY (user_id, app_id)
		);
		CREATE TABLE IF NOT EXISTS threads (
			app_id TEXT PRIMARY KEY REFERENCES apps(id) ON DELETE CASCADE,
			resource_id TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			app_id TEXT NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_messages_app ON messages(app_id, created_at);
	`)
	return err
}

// migrateV2 creates the stream session registry. One row per app id; the
// single-row-per-app primary key is what serializes concurrent starts.
func migrateV2(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS stream_sessions (
			app_id TEXT PRIMARY KEY,
			owner TEXT NOT NULL,
			status TEXT NOT NULL,
			stop_requested INTEGER NOT NULL DEFAULT 0,
			last_seq INTEGER NOT NULL DEFAULT 0,
			started_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		)
	`)
	return err
}

// migrateV3 creates deployment and asset metadata tables. Both are written by
// collaborators outside this service; they participate in app delete cascades.
func migrateV3(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS app_deployments (
			app_id TEXT NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
			deployment_id TEXT NOT NULL,
			commit_sha TEXT NOT NULL,
			created_at TEXT NOT NULL
		);
		CREATE TABLE IF NOT EXISTS assets (
			id TEXT PRIMARY KEY,
			app_id TEXT NOT NULL REFERENCES apps(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			type TEXT NOT NULL,
			file_path TEXT NOT NULL,
			mime_type TEXT NOT NULL,
			file_size INTEGER NOT NULL DEFAULT 0,
			created_at TEXT NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_assets_app ON assets(app_id);
	`)
	return err
}

func nowRFC3339() string {
	return time.Now().UTC().Format(time.RFC3339Nano)
}
