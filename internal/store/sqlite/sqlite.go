// Package sqlite provides a single-file store for local runs.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store/sqlstore"
)

// Open opens (or creates) a SQLite database at the given path and enables WAL journal mode.
func Open(path string) (*sql.DB, error) {
	// ensure parent directory exists to avoid SQLITE_CANTOPEN errors
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=foreign_keys(ON)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	// SQLite allows a single writer.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// EnsureSchema creates the tables if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("sqlite schema: %w", err)
		}
	}
	return nil
}

// NewWithDB wraps an open, migrated connection.
func NewWithDB(db *sql.DB) store.Store { return sqlstore.New(db, sqlstore.SQLite) }

var schema = []string{
	`CREATE TABLE IF NOT EXISTS robots (
        robot_id            TEXT PRIMARY KEY,
        name                TEXT NOT NULL,
        description         TEXT NOT NULL DEFAULT '',
        platform_email      TEXT NOT NULL,
        platform_api_key    TEXT NOT NULL,
        platform_type       TEXT NOT NULL DEFAULT 'CLOUD',
        cloud_session_token TEXT NOT NULL DEFAULT '',
        active              BOOLEAN NOT NULL DEFAULT 0,
        schedule_days       INTEGER NOT NULL DEFAULT 0,
        last_active_days    INTEGER NOT NULL DEFAULT 0,
        check_double_name   BOOLEAN NOT NULL DEFAULT 0,
        check_double_email  BOOLEAN NOT NULL DEFAULT 0,
        check_active_status BOOLEAN NOT NULL DEFAULT 0,
        last_updated        TIMESTAMP NULL,
        creation_time       TIMESTAMP NOT NULL
    )`,
	`CREATE TABLE IF NOT EXISTS purge_records (
        robot_id             TEXT NOT NULL REFERENCES robots(robot_id) ON DELETE CASCADE,
        user_id              TEXT NOT NULL,
        display_name         TEXT NOT NULL DEFAULT '',
        email                TEXT NOT NULL DEFAULT '',
        last_active          TIMESTAMP NOT NULL,
        reasons              TEXT NOT NULL,
        scheduled_removal_at TIMESTAMP NOT NULL,
        last_alert_at        TIMESTAMP NULL,
        creation_time        TIMESTAMP NOT NULL,
        PRIMARY KEY (robot_id, user_id)
    )`,
	`CREATE TABLE IF NOT EXISTS purge_log (
        log_id     TEXT PRIMARY KEY,
        robot_id   TEXT NOT NULL,
        robot_name TEXT NOT NULL DEFAULT '',
        user_id    TEXT NOT NULL,
        user_json  TEXT NOT NULL,
        reasons    TEXT NOT NULL,
        removed_at TIMESTAMP NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS purge_log_robot_idx ON purge_log (robot_id, removed_at)`,
}
