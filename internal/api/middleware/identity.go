package middleware

import (
	"net/http"
	"strings"

	pkgmw "github.com/agentoven/agentdesk/pkg/middleware"
)

// UserIDHeader carries the caller identity resolved by the upstream
// authentication layer.
const UserIDHeader = "X-User-Id"

// Identity resolves the caller's user id from the X-User-Id header and falls
// back to the guest identity. It never rejects a request.
func Identity(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID := strings.TrimSpace(r.Header.Get(UserIDHeader))
		ctx := pkgmw.SetUserID(r.Context(), userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
