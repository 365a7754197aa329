package usage

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/speechkit/practicehub/pkg/async"
	"github.com/speechkit/practicehub/pkg/observability"
)

// RetentionReport summarizes one retention run.
type RetentionReport struct {
	Users    int           `json:"users"`
	Purged   int64         `json:"purged"`
	Failed   int           `json:"failed"`
	Duration time.Duration `json:"duration"`
}

// RetentionJob purges pre-month download history for every free user.
type RetentionJob struct {
	tracker *Tracker
	workers int
	timeout time.Duration
	logger  *observability.Logger
}

// NewRetentionJob creates a job that resets usage with up to workers users in parallel.
func NewRetentionJob(tracker *Tracker, workers int, timeout time.Duration, logger *observability.Logger) *RetentionJob {
	if workers < 1 {
		workers = 1
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &RetentionJob{tracker: tracker, workers: workers, timeout: timeout, logger: logger}
}

// Run executes one purge pass. Per-user failures don't stop the pass; they are
// joined into the returned error.
func (j *RetentionJob) Run(ctx context.Context) (*RetentionReport, error) {
	started := j.tracker.clock.Now()

	ids, err := j.tracker.store.ListFreeUserIDs(ctx)
	if err != nil {
		return nil, err
	}

	var purged atomic.Int64
	errs := async.Batch(ctx, ids, j.workers, "usage retention", j.timeout, func(ctx context.Context, userID string) error {
		result, err := j.tracker.ResetUsage(ctx, userID)
		if err != nil {
			return fmt.Errorf("user %s: %w", userID, err)
		}
		if result.Success {
			purged.Add(result.DeletedCount)
		}
		return nil
	})

	report := &RetentionReport{
		Users:    len(ids),
		Purged:   purged.Load(),
		Failed:   len(errs),
		Duration: j.tracker.clock.Since(started),
	}

	logger := j.logger
	if logger == nil {
		logger = observability.FromContext(ctx)
	}
	logger = logger.WithFields(map[string]interface{}{
		"users":  report.Users,
		"purged": report.Purged,
		"failed": report.Failed,
	})

	if len(errs) > 0 {
		err := errors.Join(errs...)
		logger.WithError(err).Warn("retention run finished with errors")
		return report, err
	}
	logger.Info("retention run finished")
	return report, nil
}
