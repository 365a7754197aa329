package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// schema is shared by both dialects; {{ts}} and {{bool}} are substituted per dialect.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id TEXT PRIMARY KEY,
		email TEXT NOT NULL DEFAULT '',
		created_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS subscriptions (
		user_id TEXT PRIMARY KEY REFERENCES users(id) ON DELETE CASCADE,
		tier TEXT NOT NULL,
		status TEXT NOT NULL,
		updated_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
	`CREATE TABLE IF NOT EXISTS download_events (
		id TEXT PRIMARY KEY,
		user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		exercise_id TEXT NOT NULL,
		downloaded_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_download_events_user_time
		ON download_events (user_id, downloaded_at)`,
	`CREATE TABLE IF NOT EXISTS exercises (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		category TEXT NOT NULL DEFAULT '',
		is_premium {{bool}} NOT NULL DEFAULT FALSE,
		created_at {{ts}} NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`,
}

// Migrate creates any missing tables. It is safe to run repeatedly.
func Migrate(ctx context.Context, db *sql.DB, dialect Dialect) error {
	ts, boolean := "TIMESTAMPTZ", "BOOLEAN"
	if dialect == DialectSQLite {
		ts = "TIMESTAMP"
	}
	replacer := strings.NewReplacer("{{ts}}", ts, "{{bool}}", boolean)

	for i, stmt := range schema {
		if _, err := db.ExecContext(ctx, replacer.Replace(stmt)); err != nil {
			return fmt.Errorf("failed to apply schema statement %d: %w", i+1, err)
		}
	}
	return nil
}
