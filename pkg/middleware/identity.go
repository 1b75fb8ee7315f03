// Package middleware provides request identity helpers shared by the HTTP
// layer and anything embedding agentdesk behind its own authentication.
package middleware

import "context"

type contextKey string

const userIDKey contextKey = "user_id"

// GuestUserID is the identity of requests that carry no user.
const GuestUserID = "guest"

// SetUserID stores the caller's user id in the context. An empty id is
// stored as the guest identity.
func SetUserID(ctx context.Context, userID string) context.Context {
	if userID == "" {
		userID = GuestUserID
	}
	return context.WithValue(ctx, userIDKey, userID)
}

// GetUserID returns the caller's user id, or GuestUserID if none is set.
func GetUserID(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok && v != "" {
		return v
	}
	return GuestUserID
}
