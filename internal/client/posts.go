package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/framez/backend/internal/cards"
	"github.com/framez/backend/internal/diagnostics"
	"github.com/framez/backend/internal/models"
	"github.com/framez/backend/internal/validation"
)

// FeedOptions pages through the feed. Zero values use the server defaults.
type FeedOptions struct {
	Limit    int
	Before   time.Time
	BeforeID string
}

// FeedPage is one page of the feed, newest first.
type FeedPage struct {
	Posts        []cards.Card `json:"posts"`
	NextBefore   *time.Time   `json:"nextBefore,omitempty"`
	NextBeforeID string       `json:"nextBeforeId,omitempty"`
}

// Next returns the options for the page after p, or false on the last page.
func (p FeedPage) Next(limit int) (FeedOptions, bool) {
	if p.NextBefore == nil {
		return FeedOptions{}, false
	}
	return FeedOptions{Limit: limit, Before: *p.NextBefore, BeforeID: p.NextBeforeID}, true
}

// Feed loads posts from everyone.
func (c *Client) Feed(ctx context.Context, opts FeedOptions) (FeedPage, error) {
	query := url.Values{}
	if opts.Limit > 0 {
		query.Set("limit", strconv.Itoa(opts.Limit))
	}
	if !opts.Before.IsZero() {
		query.Set("before", opts.Before.UTC().Format(time.RFC3339Nano))
		if opts.BeforeID != "" {
			query.Set("beforeId", opts.BeforeID)
		}
	}

	var page FeedPage
	err := c.authorized(ctx, request{method: http.MethodGet, path: "/api/v1/feed", query: query}, &page)
	return page, err
}

// CreatePostInput describes a new post. Image is optional; ImageName is used
// for its extension.
type CreatePostInput struct {
	Content   string
	ImageName string
	Image     io.Reader
}

// CreatePost publishes a post and returns its card.
func (c *Client) CreatePost(ctx context.Context, input CreatePostInput) (cards.Card, error) {
	var card cards.Card
	if strings.TrimSpace(input.Content) == "" && input.Image == nil {
		return card, validation.ErrEmptyPost
	}

	if input.Image == nil {
		req, err := jsonRequest(http.MethodPost, "/api/v1/posts", map[string]string{"content": input.Content})
		if err != nil {
			return card, err
		}
		err = c.authorized(ctx, req, &card)
		return card, err
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	if input.Content != "" {
		if err := form.WriteField("content", input.Content); err != nil {
			return card, fmt.Errorf("write content field: %w", err)
		}
	}
	name := filepath.Base(input.ImageName)
	if name == "." || name == string(filepath.Separator) {
		name = "image"
	}
	part, err := form.CreateFormFile("image", name)
	if err != nil {
		return card, fmt.Errorf("create image part: %w", err)
	}
	if _, err := io.Copy(part, input.Image); err != nil {
		return card, fmt.Errorf("read image: %w", err)
	}
	if err := form.Close(); err != nil {
		return card, fmt.Errorf("finish form: %w", err)
	}

	req := request{
		method:      http.MethodPost,
		path:        "/api/v1/posts",
		body:        &body,
		contentType: form.FormDataContentType(),
	}
	err = c.authorized(ctx, req, &card)
	return card, err
}

// DeletePost removes one of the caller's posts.
func (c *Client) DeletePost(ctx context.Context, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return errors.New("post id is required")
	}
	return c.authorized(ctx, request{method: http.MethodDelete, path: "/api/v1/posts/" + url.PathEscape(id)}, nil)
}

// ProfileStats summarizes the caller's posts.
type ProfileStats struct {
	Posts  int `json:"posts"`
	Images int `json:"images"`
}

// ProfilePage is the caller's profile with their posts.
type ProfilePage struct {
	Profile models.Profile `json:"profile"`
	Posts   []cards.Card   `json:"posts"`
	Stats   ProfileStats   `json:"stats"`
}

// Profile loads the signed-in user's profile.
func (c *Client) Profile(ctx context.Context) (ProfilePage, error) {
	var page ProfilePage
	err := c.authorized(ctx, request{method: http.MethodGet, path: "/api/v1/profile"}, &page)
	return page, err
}

// StorageDiagnostics runs the server side object store checks.
func (c *Client) StorageDiagnostics(ctx context.Context) (diagnostics.Report, error) {
	var report diagnostics.Report
	err := c.authorized(ctx, request{method: http.MethodGet, path: "/api/v1/storage/diagnostics"}, &report)
	return report, err
}

// StorageUploadTest uploads and removes a test object under the caller's prefix.
func (c *Client) StorageUploadTest(ctx context.Context) (diagnostics.UploadResult, error) {
	var result diagnostics.UploadResult
	err := c.authorized(ctx, request{method: http.MethodPost, path: "/api/v1/storage/diagnostics/upload"}, &result)
	return result, err
}
