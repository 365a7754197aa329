//go:build integration

package usage

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/speechkit/practicehub/pkg/storage"
)

func TestPostgres_StrictEnforcementUnderConcurrency(t *testing.T) {
	ctx := context.Background()

	container, err := postgres.Run(ctx, "postgres:16-alpine",
		postgres.WithDatabase("practicehub"),
		postgres.WithUsername("practicehub"),
		postgres.WithPassword("practicehub"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		cleanupCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := container.Terminate(cleanupCtx); err != nil {
			t.Logf("Warning: failed to terminate container: %v", err)
		}
	})

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	db, dialect, err := storage.OpenDatabase(ctx, storage.DatabaseConfig{
		Driver:       "postgres",
		URL:          dsn,
		MaxOpenConns: 16,
	})
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, storage.Migrate(ctx, db, dialect))

	_, err = db.ExecContext(ctx, `INSERT INTO users (id) VALUES ($1)`, "u1")
	require.NoError(t, err)

	tracker := NewTracker(NewSQLStore(db, dialect),
		WithClock(clockwork.NewFakeClockAt(time.Date(2025, 3, 15, 12, 0, 0, 0, time.UTC))))

	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		successes int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := tracker.RecordDownload(ctx, "u1", "ex")
			if err == nil && res.Success {
				mu.Lock()
				successes++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, FreeLimit, successes)

	usage, err := tracker.GetUserUsage(ctx, "u1")
	require.NoError(t, err)
	assert.Equal(t, FreeLimit, usage.DownloadsUsed)
	assert.False(t, usage.CanDownload)
}
