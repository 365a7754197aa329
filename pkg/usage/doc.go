// Package usage enforces the monthly download quota for practicehub users.
//
// A user's tier comes from their subscription: an ACTIVE PRO subscription grants
// ProLimit downloads, anything else (no subscription, INACTIVE, PAST_DUE) grants
// FreeLimit. Usage is counted per calendar month in the tracker's time zone (UTC
// unless configured otherwise) and resets on the first instant of the next month.
//
// # Enforcement
//
// RecordDownload supports two modes. EnforcementStrict counts and inserts inside a
// single transaction that holds a per-user lock (pg_advisory_xact_lock on
// PostgreSQL, the database write lock on SQLite), so concurrent downloads for the
// same user can never exceed the limit. EnforcementBestEffort checks and writes in
// two round trips; two racing requests may both pass the check.
//
// # Errors
//
// Business outcomes (limit reached, pro users resetting usage, failed inserts) are
// reported through DownloadResult and ResetResult. Lookup failures such as
// ErrUserNotFound and database errors outside the insert are returned as errors.
//
// # Usage
//
//	tracker := usage.NewTracker(usage.NewSQLStore(db, dialect),
//		usage.WithLogger(logger),
//		usage.WithRecorder(metrics),
//	)
//
//	result, err := tracker.RecordDownload(ctx, userID, exerciseID)
//	if err != nil {
//		return err
//	}
//	if !result.Success {
//		// result.Error is DownloadLimitReached or DownloadFailed
//	}
package usage
