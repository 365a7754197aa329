package usage

import (
	"bytes"
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/speechkit/practicehub/pkg/observability"
)

func TestRetentionJob_Run(t *testing.T) {
	f := newFixture(t)
	old := time.Date(2025, 1, 10, 0, 0, 0, 0, time.UTC)
	current := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)

	f.addUser(t, "free-1", nil)
	f.addUser(t, "free-2", &Subscription{Tier: TierPro, Status: StatusInactive})
	f.addUser(t, "pro-1", activePro("pro-1"))

	f.addDownload(t, "free-1", "a", old)
	f.addDownload(t, "free-1", "b", old.Add(time.Hour))
	f.addDownload(t, "free-1", "c", current)
	f.addDownload(t, "free-2", "a", old)
	f.addDownload(t, "pro-1", "a", old)

	var out bytes.Buffer
	job := NewRetentionJob(f.tracker, 2, time.Second, observability.NewTextLogger(observability.InfoLevel, &out))

	report, err := job.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, report.Users)
	assert.Equal(t, int64(3), report.Purged)
	assert.Zero(t, report.Failed)
	assert.Contains(t, out.String(), "retention run finished")

	events, err := f.store.ListDownloads(context.Background(), "pro-1")
	require.NoError(t, err)
	assert.Len(t, events, 1, "pro history is kept")

	events, err = f.store.ListDownloads(context.Background(), "free-1")
	require.NoError(t, err)
	assert.Len(t, events, 1)

	report, err = job.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, report.Purged)
}

type failingDeleteStore struct {
	Store
	failFor string
}

func (s failingDeleteStore) DeleteDownloadsBefore(ctx context.Context, userID string, before time.Time) (int64, error) {
	if userID == s.failFor {
		return 0, errors.New("statement timeout")
	}
	return s.Store.DeleteDownloadsBefore(ctx, userID, before)
}

func TestRetentionJob_PartialFailure(t *testing.T) {
	f := newFixture(t)
	f.addUser(t, "a", nil)
	f.addUser(t, "b", nil)
	f.addDownload(t, "a", "x", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	f.addDownload(t, "b", "x", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))

	tracker := NewTracker(failingDeleteStore{Store: f.store, failFor: "b"}, WithClock(f.clock))
	job := NewRetentionJob(tracker, 0, 0, observability.NewTextLogger(observability.ErrorLevel, &bytes.Buffer{}))

	report, err := job.Run(context.Background())
	require.Error(t, err)
	assert.ErrorContains(t, err, "user b")
	assert.Equal(t, 2, report.Users)
	assert.Equal(t, int64(1), report.Purged)
	assert.Equal(t, 1, report.Failed)
}
