package exercises

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrExerciseNotFound is returned when no exercise has the requested id.
var ErrExerciseNotFound = errors.New("exercise not found")

// Exercise is a downloadable practice worksheet.
type Exercise struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Category  string    `json:"category"`
	IsPremium bool      `json:"isPremium"`
	CreatedAt time.Time `json:"createdAt"`
}

// Catalog is the read side used by the HTTP handlers.
type Catalog interface {
	List(ctx context.Context) ([]Exercise, error)
	Get(ctx context.Context, id string) (*Exercise, error)
}

// Repository reads and writes exercises over database/sql.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new Repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// List returns every exercise, oldest first.
func (r *Repository) List(ctx context.Context) ([]Exercise, error) {
	query := `
		SELECT id, title, category, is_premium, created_at
		FROM exercises
		ORDER BY created_at, id
	`
	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list exercises: %w", err)
	}
	defer rows.Close()

	list := make([]Exercise, 0)
	for rows.Next() {
		var e Exercise
		if err := rows.Scan(&e.ID, &e.Title, &e.Category, &e.IsPremium, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan exercise: %w", err)
		}
		list = append(list, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list exercises: %w", err)
	}
	return list, nil
}

// Get returns a single exercise.
func (r *Repository) Get(ctx context.Context, id string) (*Exercise, error) {
	query := `
		SELECT id, title, category, is_premium, created_at
		FROM exercises
		WHERE id = $1
	`
	var e Exercise
	err := r.db.QueryRowContext(ctx, query, id).Scan(&e.ID, &e.Title, &e.Category, &e.IsPremium, &e.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrExerciseNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get exercise: %w", err)
	}
	return &e, nil
}

// Create inserts an exercise. A zero CreatedAt is set to now.
func (r *Repository) Create(ctx context.Context, e *Exercise) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO exercises (id, title, category, is_premium, created_at)
		VALUES ($1, $2, $3, $4, $5)
	`
	if _, err := r.db.ExecContext(ctx, query, e.ID, e.Title, e.Category, e.IsPremium, e.CreatedAt); err != nil {
		return fmt.Errorf("failed to create exercise: %w", err)
	}
	return nil
}

// FilterByCategory returns the exercises in category, case-insensitively.
// An empty category returns list unchanged.
func FilterByCategory(list []Exercise, category string) []Exercise {
	if category == "" {
		return list
	}
	out := make([]Exercise, 0, len(list))
	for _, e := range list {
		if strings.EqualFold(e.Category, category) {
			out = append(out, e)
		}
	}
	return out
}
