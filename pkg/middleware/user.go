package middleware

import (
	"net/http"
	"strings"

	"github.com/speechkit/practicehub/pkg/httputil"
	"github.com/speechkit/practicehub/pkg/observability"
)

// UserIDHeader carries the user id set by the identity provider in front of the API.
const UserIDHeader = "X-User-ID"

// RequireUser rejects requests without a user id with 401 and stores the id in
// the request context for handlers and loggers.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		if userID == "" {
			httputil.WriteUnauthorized(w, "missing user identity")
			return
		}

		ctx := observability.WithUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
