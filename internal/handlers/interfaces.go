package handlers

import (
	"context"
	"io"

	"github.com/framez/backend/internal/diagnostics"
	"github.com/framez/backend/internal/models"
	"github.com/framez/backend/internal/realtime"
	"github.com/framez/backend/internal/repositories"
)

// UserStore captures the persistence operations required by the auth handlers.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
}

// SessionManager issues, refreshes, revokes and verifies authentication tokens.
type SessionManager interface {
	Issue(ctx context.Context, user models.SessionUser) (models.SessionTokens, error)
	Refresh(ctx context.Context, refreshToken string, lookup func(ctx context.Context, userID string) (models.SessionUser, error)) (models.SessionTokens, models.SessionUser, error)
	Revoke(ctx context.Context, refreshToken string) error
	Verify(accessToken string) (models.SessionUser, error)
}

// PostStore captures persistence for posts and the feed.
type PostStore interface {
	Create(ctx context.Context, post models.Post) error
	FindByID(ctx context.Context, id string) (models.FeedItem, error)
	ListFeed(ctx context.Context, query repositories.FeedQuery) ([]models.FeedItem, error)
	ListByUser(ctx context.Context, userID string) ([]models.Post, error)
	Delete(ctx context.Context, id, ownerID string) (models.Post, error)
}

// ProfileStore reads public profiles.
type ProfileStore interface {
	FindByID(ctx context.Context, id string) (models.Profile, error)
}

// ImageStore stores post images and maps their public URLs back to keys.
type ImageStore interface {
	Upload(ctx context.Context, key string, r io.Reader, contentType string) (string, error)
	KeyFromURL(url string) (string, bool)
}

// ObjectCleaner removes objects that no longer back a post.
type ObjectCleaner interface {
	Enqueue(ctx context.Context, key string) error
}

// ChangeFeed hands out subscriptions to post change events.
type ChangeFeed interface {
	Subscribe(filter realtime.Filter) *realtime.Subscription
}

// StorageChecker runs object store diagnostics.
type StorageChecker interface {
	Check(ctx context.Context, userID string) diagnostics.Report
	UploadTest(ctx context.Context, userID string) diagnostics.UploadResult
}
