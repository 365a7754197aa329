package usage

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/speechkit/practicehub/pkg/observability"
)

const tracerName = "practicehub/usage"

// Tracker answers quota questions and records downloads.
type Tracker struct {
	store       Store
	clock       clockwork.Clock
	loc         *time.Location
	enforcement Enforcement
	recorder    Recorder
	logger      *observability.Logger
	tracer      trace.Tracer
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithClock sets the clock used for month boundaries and event timestamps.
func WithClock(clock clockwork.Clock) Option {
	return func(t *Tracker) { t.clock = clock }
}

// WithLocation sets the time zone calendar months are computed in.
func WithLocation(loc *time.Location) Option {
	return func(t *Tracker) {
		if loc != nil {
			t.loc = loc
		}
	}
}

// WithEnforcement selects strict or best-effort quota enforcement.
func WithEnforcement(e Enforcement) Option {
	return func(t *Tracker) { t.enforcement = e }
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(t *Tracker) {
		if r != nil {
			t.recorder = r
		}
	}
}

// WithLogger sets the base logger. Without it the logger is taken from the request context.
func WithLogger(l *observability.Logger) Option {
	return func(t *Tracker) { t.logger = l }
}

// NewTracker creates a tracker. Defaults: real clock, UTC, strict enforcement.
func NewTracker(store Store, opts ...Option) *Tracker {
	t := &Tracker{
		store:       store,
		clock:       clockwork.NewRealClock(),
		loc:         time.UTC,
		enforcement: EnforcementStrict,
		recorder:    nopRecorder{},
		tracer:      otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Enforcement returns the configured enforcement mode.
func (t *Tracker) Enforcement() Enforcement {
	return t.enforcement
}

func (t *Tracker) log(ctx context.Context) *observability.Logger {
	if t.logger == nil {
		return observability.FromContext(ctx)
	}
	logger := t.logger
	if id := observability.GetRequestID(ctx); id != "" {
		logger = logger.WithField("request_id", id)
	}
	return logger
}

func (t *Tracker) startSpan(ctx context.Context, name, userID string) (context.Context, trace.Span) {
	return t.tracer.Start(ctx, name, trace.WithAttributes(attribute.String("user.id", userID)))
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// GetUserUsage returns the current-month quota snapshot.
func (t *Tracker) GetUserUsage(ctx context.Context, userID string) (usage *UsageData, err error) {
	ctx, span := t.startSpan(ctx, "usage.GetUserUsage", userID)
	defer func() { endSpan(span, err) }()

	usage, _, err = t.load(ctx, t.store, userID)
	if err != nil {
		return nil, err
	}
	return usage, nil
}

// CanDownload reports whether the user may download now.
func (t *Tracker) CanDownload(ctx context.Context, userID string) (bool, error) {
	usage, err := t.GetUserUsage(ctx, userID)
	if err != nil {
		return false, err
	}
	return usage.CanDownload, nil
}

// RecordDownload re-checks the quota and stores a download event.
func (t *Tracker) RecordDownload(ctx context.Context, userID, exerciseID string) (result *DownloadResult, err error) {
	ctx, span := t.startSpan(ctx, "usage.RecordDownload", userID)
	span.SetAttributes(
		attribute.String("exercise.id", exerciseID),
		attribute.String("usage.enforcement", string(t.enforcement)),
	)
	defer func() {
		if result != nil {
			span.SetAttributes(attribute.Bool("usage.success", result.Success))
		}
		endSpan(span, err)
	}()

	if t.enforcement == EnforcementBestEffort {
		return t.recordBestEffort(ctx, userID, exerciseID)
	}
	return t.recordStrict(ctx, userID, exerciseID)
}

func (t *Tracker) recordStrict(ctx context.Context, userID, exerciseID string) (*DownloadResult, error) {
	var (
		result    *DownloadResult
		insertErr error
	)

	err := t.store.WithUserLock(ctx, userID, func(tx Store) error {
		usage, user, err := t.load(ctx, tx, userID)
		if err != nil {
			return err
		}
		if !usage.CanDownload {
			result = t.rejected(ctx, user, usage)
			return nil
		}

		if err := t.insert(ctx, tx, userID, exerciseID); err != nil {
			insertErr = err
			return err
		}
		after, err := t.usageFor(ctx, tx, user)
		if err != nil {
			insertErr = err
			return err
		}
		result = t.recorded(ctx, user, exerciseID, after.DownloadsRemaining)
		return nil
	})

	switch {
	case insertErr != nil:
		return t.failed(ctx, userID, exerciseID, insertErr), nil
	case err != nil && result != nil && result.Success:
		// Commit failed, so the event was not stored.
		return t.failed(ctx, userID, exerciseID, err), nil
	case err != nil:
		return nil, err
	}
	return result, nil
}

func (t *Tracker) recordBestEffort(ctx context.Context, userID, exerciseID string) (*DownloadResult, error) {
	usage, user, err := t.load(ctx, t.store, userID)
	if err != nil {
		return nil, err
	}
	if !usage.CanDownload {
		return t.rejected(ctx, user, usage), nil
	}

	if err := t.insert(ctx, t.store, userID, exerciseID); err != nil {
		return t.failed(ctx, userID, exerciseID, err), nil
	}

	remaining := usage.DownloadsRemaining
	if !usage.IsPro {
		remaining = max(0, remaining-1)
	}
	if after, err := t.usageFor(ctx, t.store, user); err == nil {
		remaining = after.DownloadsRemaining
	} else {
		t.log(ctx).WithError(err).WithField("user_id", userID).
			Warn("download recorded but usage re-query failed")
	}
	return t.recorded(ctx, user, exerciseID, remaining), nil
}

func (t *Tracker) insert(ctx context.Context, store Store, userID, exerciseID string) error {
	event := &DownloadEvent{
		ID:           uuid.NewString(),
		UserID:       userID,
		ExerciseID:   exerciseID,
		DownloadedAt: t.clock.Now().UTC(),
	}
	if err := store.InsertDownload(ctx, event); err != nil {
		t.recorder.StoreError("insert_download")
		return err
	}
	return nil
}

func (t *Tracker) rejected(ctx context.Context, user *User, usage *UsageData) *DownloadResult {
	t.recorder.DownloadRejected(string(user.Tier()))
	t.log(ctx).WithFields(map[string]interface{}{
		"user_id":        user.ID,
		"downloads_used": usage.DownloadsUsed,
		"limit":          usage.DownloadsLimit,
	}).Info("download rejected: monthly limit reached")

	return &DownloadResult{Success: false, Error: DownloadLimitReached, RemainingDownloads: 0}
}

func (t *Tracker) recorded(ctx context.Context, user *User, exerciseID string, remaining int) *DownloadResult {
	t.recorder.DownloadRecorded(string(user.Tier()))
	t.log(ctx).WithFields(map[string]interface{}{
		"user_id":     user.ID,
		"exercise_id": exerciseID,
		"remaining":   remaining,
	}).Debug("download recorded")

	return &DownloadResult{Success: true, RemainingDownloads: remaining}
}

func (t *Tracker) failed(ctx context.Context, userID, exerciseID string, err error) *DownloadResult {
	t.log(ctx).WithError(err).WithFields(map[string]interface{}{
		"user_id":     userID,
		"exercise_id": exerciseID,
	}).Error("failed to record download")

	return &DownloadResult{Success: false, Error: DownloadFailed}
}

// GetUsageStats summarizes the user's complete download history.
func (t *Tracker) GetUsageStats(ctx context.Context, userID string) (stats *UsageStats, err error) {
	ctx, span := t.startSpan(ctx, "usage.GetUsageStats", userID)
	defer func() { endSpan(span, err) }()

	usage, _, err := t.load(ctx, t.store, userID)
	if err != nil {
		return nil, err
	}

	events, err := t.store.ListDownloads(ctx, userID)
	if err != nil {
		t.recorder.StoreError("list_downloads")
		return nil, err
	}

	start, _ := MonthBounds(t.clock.Now(), t.loc)
	stats = &UsageStats{
		TotalDownloads:     len(events),
		DailyDownloads:     make(map[string]int),
		IsPro:              usage.IsPro,
		DownloadsLimit:     usage.DownloadsLimit,
		DownloadsRemaining: usage.DownloadsRemaining,
	}

	counts := make(map[string]int)
	var order []string
	for _, ev := range events {
		if !ev.DownloadedAt.Before(start) {
			stats.DownloadsThisMonth++
		}
		stats.DailyDownloads[dayKey(ev.DownloadedAt, t.loc)]++
		if _, seen := counts[ev.ExerciseID]; !seen {
			order = append(order, ev.ExerciseID)
		}
		counts[ev.ExerciseID]++
	}

	best := 0
	for _, id := range order {
		if counts[id] > best {
			best = counts[id]
			stats.MostDownloadedExercise = id
		}
	}

	return stats, nil
}

// ResetUsage purges a free user's events from before the current month. It
// does not change the current month's count.
func (t *Tracker) ResetUsage(ctx context.Context, userID string) (result *ResetResult, err error) {
	ctx, span := t.startSpan(ctx, "usage.ResetUsage", userID)
	defer func() { endSpan(span, err) }()

	user, err := t.getUser(ctx, t.store, userID)
	if err != nil {
		return nil, err
	}

	if user.IsPro() {
		t.recorder.UsageReset("pro_rejected")
		return &ResetResult{Success: false, Error: ProResetNotNeeded}, nil
	}

	start, _ := MonthBounds(t.clock.Now(), t.loc)
	deleted, err := t.store.DeleteDownloadsBefore(ctx, userID, start)
	if err != nil {
		t.recorder.StoreError("delete_downloads")
		t.recorder.UsageReset("error")
		return nil, err
	}

	t.recorder.UsageReset("success")
	t.recorder.EventsPurged(deleted)
	span.SetAttributes(attribute.Int64("usage.deleted", deleted))
	if deleted > 0 {
		t.log(ctx).WithFields(map[string]interface{}{
			"user_id": userID,
			"deleted": deleted,
		}).Info("purged download history")
	}

	return &ResetResult{Success: true, DeletedCount: deleted}, nil
}

func (t *Tracker) getUser(ctx context.Context, store Store, userID string) (*User, error) {
	user, err := store.GetUser(ctx, userID)
	if err != nil {
		if !errors.Is(err, ErrUserNotFound) {
			t.recorder.StoreError("get_user")
		}
		return nil, err
	}
	return user, nil
}

func (t *Tracker) load(ctx context.Context, store Store, userID string) (*UsageData, *User, error) {
	user, err := t.getUser(ctx, store, userID)
	if err != nil {
		return nil, nil, err
	}
	usage, err := t.usageFor(ctx, store, user)
	if err != nil {
		return nil, nil, err
	}
	return usage, user, nil
}

func (t *Tracker) usageFor(ctx context.Context, store Store, user *User) (*UsageData, error) {
	start, next := MonthBounds(t.clock.Now(), t.loc)

	used, err := store.CountDownloadsSince(ctx, user.ID, start)
	if err != nil {
		t.recorder.StoreError("count_downloads")
		return nil, err
	}

	isPro := user.IsPro()
	limit := user.Limit()
	remaining := max(0, limit-used)
	if isPro {
		remaining = ProLimit
	}

	return &UsageData{
		IsPro:              isPro,
		DownloadsUsed:      used,
		DownloadsRemaining: remaining,
		DownloadsLimit:     limit,
		CanDownload:        isPro || used < limit,
		ResetDate:          next,
	}, nil
}
