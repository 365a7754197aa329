// Package httputil provides the JSON response helpers, request parsing and
// cross-cutting middleware shared by the practicehub HTTP handlers.
//
// # Responses
//
//	httputil.WriteSuccess(w, usage)
//	httputil.WriteJSON(w, http.StatusForbidden, result)
//	httputil.WriteNotFoundError(w, "user not found")
//	httputil.WriteInternalError(w, err)
//
// # Requests
//
//	exerciseID, ok := httputil.ParsePathStringOrError(w, r, "exerciseID")
//	if !ok {
//		return // 400 already written
//	}
//	category := httputil.ParseQueryString(r, "category", "")
//
// # Middleware
//
//	handler := httputil.Chain(
//		httputil.RequestIDMiddleware,
//		httputil.LoggingMiddleware(logger),
//		httputil.RecoveryMiddleware,
//		httputil.MaxBytesMiddleware(1<<20),
//	)(router)
//
// RequestIDMiddleware must run before LoggingMiddleware so log lines carry the id.
package httputil
