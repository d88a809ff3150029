package middleware

import (
	"context"

	"github.com/google/uuid"

	"github.com/gosuda/orim/internal/auth"
)

type contextKey string

const (
	ContextKeyUserID      contextKey = "user_id"
	ContextKeyEmail       contextKey = "email"
	ContextKeyDisplayName contextKey = "display_name"
	ContextKeySuperuser   contextKey = "superuser"
)

// WithIdentity stores the authenticated caller in ctx.
func WithIdentity(ctx context.Context, id auth.Identity) context.Context {
	ctx = context.WithValue(ctx, ContextKeyUserID, id.UserID)
	ctx = context.WithValue(ctx, ContextKeyEmail, id.Email)
	ctx = context.WithValue(ctx, ContextKeyDisplayName, id.DisplayName)
	ctx = context.WithValue(ctx, ContextKeySuperuser, id.Superuser)
	return ctx
}

func UserIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	v, ok := ctx.Value(ContextKeyUserID).(uuid.UUID)
	return v, ok
}

func EmailFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ContextKeyEmail).(string)
	return v, ok
}

func DisplayNameFromContext(ctx context.Context) string {
	v, _ := ctx.Value(ContextKeyDisplayName).(string)
	return v
}

func SuperuserFromContext(ctx context.Context) bool {
	v, _ := ctx.Value(ContextKeySuperuser).(bool)
	return v
}
