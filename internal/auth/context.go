package auth

import (
	"context"

	"github.com/framez/backend/internal/models"
)

type userKey struct{}

// WithUser stores the authenticated caller on ctx.
func WithUser(ctx context.Context, user models.SessionUser) context.Context {
	return context.WithValue(ctx, userKey{}, user)
}

// UserFromContext returns the authenticated caller, if any.
func UserFromContext(ctx context.Context) (models.SessionUser, bool) {
	user, ok := ctx.Value(userKey{}).(models.SessionUser)
	if !ok || user.ID == "" {
		return models.SessionUser{}, false
	}
	return user, true
}
