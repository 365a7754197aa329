package usage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/speechkit/practicehub/pkg/storage"
)

// Store is the persistence the tracker depends on.
type Store interface {
	// GetUser returns ErrUserNotFound when no such user exists.
	GetUser(ctx context.Context, userID string) (*User, error)
	CountDownloadsSince(ctx context.Context, userID string, since time.Time) (int, error)
	InsertDownload(ctx context.Context, event *DownloadEvent) error
	// ListDownloads returns every event for the user, oldest first.
	ListDownloads(ctx context.Context, userID string) ([]DownloadEvent, error)
	DeleteDownloadsBefore(ctx context.Context, userID string, before time.Time) (int64, error)
	// ListFreeUserIDs returns users without an active pro subscription.
	ListFreeUserIDs(ctx context.Context) ([]string, error)
	// WithUserLock runs fn against a Store bound to a single transaction that
	// holds an exclusive lock for userID. fn returning an error rolls back.
	WithUserLock(ctx context.Context, userID string, fn func(Store) error) error
}

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// SQLStore implements Store over database/sql for PostgreSQL and SQLite.
type SQLStore struct {
	db      *sql.DB
	q       querier
	tx      *sql.Tx
	dialect storage.Dialect
}

// NewSQLStore creates a new SQLStore
func NewSQLStore(db *sql.DB, dialect storage.Dialect) *SQLStore {
	return &SQLStore{db: db, q: db, dialect: dialect}
}

// GetUser loads a user with its subscription, if any.
func (s *SQLStore) GetUser(ctx context.Context, userID string) (*User, error) {
	query := `
		SELECT u.id, s.tier, s.status
		FROM users u
		LEFT JOIN subscriptions s ON s.user_id = u.id
		WHERE u.id = $1
	`
	var (
		user         User
		tier, status sql.NullString
	)
	err := s.q.QueryRowContext(ctx, query, userID).Scan(&user.ID, &tier, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	if tier.Valid {
		user.Subscription = &Subscription{
			UserID: user.ID,
			Tier:   Tier(tier.String),
			Status: SubscriptionStatus(status.String),
		}
	}
	return &user, nil
}

// CountDownloadsSince counts events at or after since.
func (s *SQLStore) CountDownloadsSince(ctx context.Context, userID string, since time.Time) (int, error) {
	query := `SELECT COUNT(*) FROM download_events WHERE user_id = $1 AND downloaded_at >= $2`

	var count int
	if err := s.q.QueryRowContext(ctx, query, userID, since.UTC()).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count downloads: %w", err)
	}
	return count, nil
}

// InsertDownload stores a download event.
func (s *SQLStore) InsertDownload(ctx context.Context, event *DownloadEvent) error {
	query := `
		INSERT INTO download_events (id, user_id, exercise_id, downloaded_at)
		VALUES ($1, $2, $3, $4)
	`
	_, err := s.q.ExecContext(ctx, query, event.ID, event.UserID, event.ExerciseID, event.DownloadedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to insert download event: %w", err)
	}
	return nil
}

// ListDownloads returns all events for a user ordered by time.
func (s *SQLStore) ListDownloads(ctx context.Context, userID string) ([]DownloadEvent, error) {
	query := `
		SELECT id, user_id, exercise_id, downloaded_at
		FROM download_events
		WHERE user_id = $1
		ORDER BY downloaded_at, id
	`
	rows, err := s.q.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list downloads: %w", err)
	}
	defer rows.Close()

	var events []DownloadEvent
	for rows.Next() {
		var ev DownloadEvent
		if err := rows.Scan(&ev.ID, &ev.UserID, &ev.ExerciseID, &ev.DownloadedAt); err != nil {
			return nil, fmt.Errorf("failed to scan download event: %w", err)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate download events: %w", err)
	}
	return events, nil
}

// DeleteDownloadsBefore removes events strictly before the given instant.
func (s *SQLStore) DeleteDownloadsBefore(ctx context.Context, userID string, before time.Time) (int64, error) {
	query := `DELETE FROM download_events WHERE user_id = $1 AND downloaded_at < $2`

	result, err := s.q.ExecContext(ctx, query, userID, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to delete downloads: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// ListFreeUserIDs returns the ids of users on the free tier.
func (s *SQLStore) ListFreeUserIDs(ctx context.Context) ([]string, error) {
	query := `
		SELECT u.id
		FROM users u
		LEFT JOIN subscriptions s ON s.user_id = u.id
		WHERE s.user_id IS NULL OR s.status <> $1 OR s.tier <> $2
		ORDER BY u.id
	`
	rows, err := s.q.QueryContext(ctx, query, string(StatusActive), string(TierPro))
	if err != nil {
		return nil, fmt.Errorf("failed to list free users: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan user id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return ids, nil
}

// WithUserLock runs fn in a transaction. On PostgreSQL the transaction takes a
// per-user advisory lock; SQLite relies on its database-level write lock.
func (s *SQLStore) WithUserLock(ctx context.Context, userID string, fn func(Store) error) (err error) {
	if s.tx != nil {
		return fn(s)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if s.dialect == storage.DialectPostgres {
		if _, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, userID); err != nil {
			return fmt.Errorf("failed to acquire user lock: %w", err)
		}
	}

	if err = fn(&SQLStore{db: s.db, q: tx, tx: tx, dialect: s.dialect}); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}
