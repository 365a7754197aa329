// Package api exposes the usage tracker, the exercise catalog and cache
// diagnostics over HTTP.
//
// All routes live under /api/v1 and require the X-User-ID header set by the
// identity provider in front of the service:
//
//	GET    /api/v1/usage                              current month quota
//	GET    /api/v1/usage/stats                        download history summary
//	POST   /api/v1/usage/reset                        purge pre-month history (free users)
//	GET    /api/v1/exercises                          catalog, optional ?category=
//	GET    /api/v1/exercises/{exerciseID}             single exercise
//	POST   /api/v1/exercises/{exerciseID}/download    record a download
//	GET    /api/v1/cache/stats                        response cache diagnostics
//	DELETE /api/v1/cache                              clear caches, optional ?pattern=
//
// Download outcomes map to status codes: 200 recorded, 403 monthly limit
// reached, 500 the event could not be stored. The JSON body is the
// usage.DownloadResult in every case.
//
// Usage snapshots are read through the shared QueryCache under
// "usage:<userID>:" keys and invalidated whenever a download or reset succeeds.
package api
