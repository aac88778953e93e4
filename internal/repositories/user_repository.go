package repositories

import (
	"context"
	"time"

	"github.com/framez/backend/internal/models"
)

// UserRepository defines the data access contract for users.
type UserRepository interface {
	Create(ctx context.Context, user models.User) error
	FindByEmail(ctx context.Context, email string) (models.User, error)
	FindByID(ctx context.Context, id string) (models.User, error)
}

// ProfileRepository exposes read access to public profiles.
type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (models.Profile, error)
}

// Feed page sizes.
const (
	DefaultFeedLimit = 50
	MaxFeedLimit     = 100
)

// FeedQuery bounds a feed read. Before, when set, returns posts strictly
// older than it. BeforeID narrows the cursor to (Before, BeforeID) in feed
// order so posts sharing the cursor's timestamp are not skipped.
type FeedQuery struct {
	Limit    int
	Before   *time.Time
	BeforeID string
}

// EffectiveLimit clamps Limit to (0, MaxFeedLimit], defaulting to DefaultFeedLimit.
func (q FeedQuery) EffectiveLimit() int {
	if q.Limit <= 0 {
		return DefaultFeedLimit
	}
	return min(q.Limit, MaxFeedLimit)
}

// PostRepository defines the data access contract for posts.
type PostRepository interface {
	Create(ctx context.Context, post models.Post) error
	FindByID(ctx context.Context, id string) (models.FeedItem, error)
	ListFeed(ctx context.Context, query FeedQuery) ([]models.FeedItem, error)
	ListByUser(ctx context.Context, userID string) ([]models.Post, error)
	Delete(ctx context.Context, id, ownerID string) (models.Post, error)
}
