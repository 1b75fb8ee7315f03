package middleware_test

import (
	"context"
	"testing"

	"github.com/agentoven/agentdesk/pkg/middleware"
)

func TestUserID(t *testing.T) {
	ctx := context.Background()
	if got := middleware.GetUserID(ctx); got != middleware.GuestUserID {
		t.Errorf("GetUserID(empty) = %q, want %q", got, middleware.GuestUserID)
	}
	if got := middleware.GetUserID(middleware.SetUserID(ctx, "")); got != middleware.GuestUserID {
		t.Errorf("GetUserID(SetUserID(\"\")) = %q, want %q", got, middleware.GuestUserID)
	}
	if got := middleware.GetUserID(middleware.SetUserID(ctx, "user-42")); got != "user-42" {
		t.Errorf("GetUserID() = %q, want %q", got, "user-42")
	}
}
