package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store"
	"github.com/Project-Jira-Connector/Bot-Back-End/internal/store/sqlstore"
)

// Open opens a PostgreSQL connection using the pgx stdlib driver and verifies connectivity.
func Open(dsn string) (*sql.DB, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres DSN is empty")
	}
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

// NewWithDB constructs a Postgres store backed directly by database/sql.
func NewWithDB(db *sql.DB) store.Store { return sqlstore.New(db, sqlstore.Postgres) }

// EnsureSchema creates the tables if they are missing.
func EnsureSchema(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("postgres schema: %w", err)
		}
	}
	return nil
}

// Bootstrap performs a connectivity check and applies the schema.
func Bootstrap(ctx context.Context, dsn string) error {
	db, err := Open(dsn)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()
	return EnsureSchema(ctx, db)
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS robots (
        robot_id            TEXT PRIMARY KEY,
        name                TEXT NOT NULL,
        description         TEXT NOT NULL DEFAULT '',
        platform_email      TEXT NOT NULL,
        platform_api_key    TEXT NOT NULL,
        platform_type       TEXT NOT NULL DEFAULT 'CLOUD',
        cloud_session_token TEXT NOT NULL DEFAULT '',
        active              BOOLEAN NOT NULL DEFAULT FALSE,
        schedule_days       INTEGER NOT NULL DEFAULT 0,
        last_active_days    INTEGER NOT NULL DEFAULT 0,
        check_double_name   BOOLEAN NOT NULL DEFAULT FALSE,
        check_double_email  BOOLEAN NOT NULL DEFAULT FALSE,
        check_active_status BOOLEAN NOT NULL DEFAULT FALSE,
        last_updated        TIMESTAMPTZ NULL,
        creation_time       TIMESTAMPTZ NOT NULL DEFAULT now()
    )`,
	`CREATE TABLE IF NOT EXISTS purge_records (
        robot_id             TEXT NOT NULL REFERENCES robots(robot_id) ON DELETE CASCADE,
        user_id              TEXT NOT NULL,
        display_name         TEXT NOT NULL DEFAULT '',
        email                TEXT NOT NULL DEFAULT '',
        last_active          TIMESTAMPTZ NOT NULL,
        reasons              TEXT NOT NULL,
        scheduled_removal_at TIMESTAMPTZ NOT NULL,
        last_alert_at        TIMESTAMPTZ NULL,
        creation_time        TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (robot_id, user_id)
    )`,
	`CREATE TABLE IF NOT EXISTS purge_log (
        log_id     TEXT PRIMARY KEY,
        robot_id   TEXT NOT NULL,
        robot_name TEXT NOT NULL DEFAULT '',
        user_id    TEXT NOT NULL,
        user_json  JSONB NOT NULL,
        reasons    TEXT NOT NULL,
        removed_at TIMESTAMPTZ NOT NULL
    )`,
	`CREATE INDEX IF NOT EXISTS purge_log_robot_idx ON purge_log (robot_id, removed_at)`,
}
