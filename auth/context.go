package auth

import (
	"context"

	"github.com/user/opinion-manager/store"
)

// contextKey is unexported so no other package can collide with these keys.
type contextKey string

const (
	userIDContextKey contextKey = "auth_user_id"
	userContextKey   contextKey = "auth_user"
)

// NewContextWithUser stores the authenticated user and its id.
func NewContextWithUser(ctx context.Context, user *store.User) context.Context {
	ctx = context.WithValue(ctx, userIDContextKey, user.ID)
	return context.WithValue(ctx, userContextKey, user)
}

// UserIDFromContext returns the id attached by Authenticate.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDContextKey).(string)
	return id, ok && id != ""
}

func UserFromContext(ctx context.Context) (*store.User, bool) {
	u, ok := ctx.Value(userContextKey).(*store.User)
	return u, ok
}

