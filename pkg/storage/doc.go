// Package storage opens the relational database and Redis connections used by
// practicehub and owns the schema.
//
// Two SQL dialects are supported. PostgreSQL (lib/pq) is the production backend;
// SQLite (mattn/go-sqlite3) backs local development and tests:
//
//	db, dialect, err := storage.OpenDatabase(ctx, storage.DatabaseConfig{
//		Driver: "sqlite3",
//		URL:    "file:dev.db?_txlock=immediate",
//	})
//	if err != nil {
//		return err
//	}
//	if err := storage.Migrate(ctx, db, dialect); err != nil {
//		return err
//	}
//
// Both dialects accept $N placeholders, so queries are shared. Timestamps are
// always written in UTC; SQLite compares them as text.
//
// Redis is optional and only used for the shared response cache:
//
//	client, err := storage.NewRedisClient(ctx, "redis://localhost:6379/0")
package storage
