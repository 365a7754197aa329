// Package middleware provides the HTTP middleware that sits in front of the
// practicehub API handlers.
//
// Ordering (outer to inner):
//  1. httputil.RequestIDMiddleware and LoggingMiddleware - request id and logger in context
//  2. RequireUser - rejects requests without X-User-ID and stores the id in context
//  3. RateLimit - keys on the user id set by RequireUser, falling back to client IP
//  4. WithCaching - per-route response caching
//
// RateLimit placed before RequireUser still works but limits by IP only.
package middleware
