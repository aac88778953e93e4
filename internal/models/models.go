package models

import "time"

// User represents an account within the Framez platform.
type User struct {
	ID        string
	Email     string
	Password  string
	FullName  string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Profile is the public face of a user. Its ID matches the owning user.
type Profile struct {
	ID        string    `json:"id"`
	FullName  string    `json:"full_name"`
	AvatarURL string    `json:"avatar_url"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"created_at"`
}

// Post is a single feed entry. Content and ImageURL are both optional but a
// stored post always carries at least one of them.
type Post struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	Content   *string   `json:"content"`
	ImageURL  *string   `json:"image_url"`
	CreatedAt time.Time `json:"created_at"`
}

// Author is the slice of a profile embedded into feed rows.
type Author struct {
	FullName  string `json:"full_name"`
	AvatarURL string `json:"avatar_url"`
}

// FeedItem joins a post with its author's profile.
type FeedItem struct {
	Post
	Author *Author `json:"profiles"`
}

// Change event types emitted on the posts change feed.
const (
	ChangeInsert = "INSERT"
	ChangeUpdate = "UPDATE"
	ChangeDelete = "DELETE"
)

// TablePosts names the only table that currently emits change events.
const TablePosts = "posts"

// PostChange describes a row-level change to a post.
type PostChange struct {
	Type            string    `json:"type"`
	Table           string    `json:"table"`
	Record          *Post     `json:"record,omitempty"`
	OldRecord       *Post     `json:"old_record,omitempty"`
	CommitTimestamp time.Time `json:"commit_timestamp"`
}

// OwnerID returns the user that owns the changed row.
func (c PostChange) OwnerID() string {
	if c.Record != nil {
		return c.Record.UserID
	}
	if c.OldRecord != nil {
		return c.OldRecord.UserID
	}
	return ""
}

// SessionTokens groups the bearer credentials issued to authenticated users.
type SessionTokens struct {
	AccessToken      string    `json:"accessToken"`
	AccessExpiresAt  time.Time `json:"accessExpiresAt"`
	RefreshToken     string    `json:"refreshToken"`
	RefreshExpiresAt time.Time `json:"refreshExpiresAt"`
}

// SessionUser is the authenticated identity returned alongside tokens.
type SessionUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	FullName string `json:"fullName,omitempty"`
}

// StringPtr returns nil for empty strings so optional columns stay NULL.
func StringPtr(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

// StringValue dereferences an optional column.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
