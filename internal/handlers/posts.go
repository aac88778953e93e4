package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/framez/backend/internal/auth"
	"github.com/framez/backend/internal/cards"
	"github.com/framez/backend/internal/logging"
	"github.com/framez/backend/internal/models"
	"github.com/framez/backend/internal/realtime"
	"github.com/framez/backend/internal/repositories"
	"github.com/framez/backend/internal/storage"
	"github.com/framez/backend/internal/validation"
)

// multipartOverhead leaves room for form fields around the image part.
const multipartOverhead = 1 << 20

// PostHandler serves the feed and post mutations.
type PostHandler struct {
	Posts         PostStore
	Images        ImageStore
	Cleaner       ObjectCleaner
	Publisher     realtime.Publisher
	MaxImageBytes int64
	NowFunc       func() time.Time
}

type feedResponse struct {
	Posts        []cards.Card `json:"posts"`
	NextBefore   *time.Time   `json:"nextBefore,omitempty"`
	NextBeforeID string       `json:"nextBeforeId,omitempty"`
}

// Feed handles GET /api/v1/feed.
func (h PostHandler) Feed(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	caller, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if h.Posts == nil {
		logger.Error("post store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "feed unavailable")
		return
	}

	query, err := parseFeedQuery(r)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, span := logging.StartSpan(ctx, "posts.list_feed", "limit", query.Limit)
	items, err := h.Posts.ListFeed(ctx, query)
	span.End(err)
	if err != nil {
		respondError(ctx, w, http.StatusInternalServerError, "failed to load posts")
		return
	}

	resp := feedResponse{Posts: cards.BuildAll(items, caller.ID)}
	if n := len(items); n > 0 && n == query.Limit {
		last := items[n-1]
		resp.NextBefore = &last.CreatedAt
		resp.NextBeforeID = last.ID
	}

	respondJSON(ctx, w, http.StatusOK, resp)
}

func parseFeedQuery(r *http.Request) (repositories.FeedQuery, error) {
	var query repositories.FeedQuery
	values := r.URL.Query()

	if raw := strings.TrimSpace(values.Get("limit")); raw != "" {
		limit, err := strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			return query, errors.New("limit must be a positive integer")
		}
		query.Limit = limit
	}
	query.Limit = query.EffectiveLimit()

	if raw := strings.TrimSpace(values.Get("before")); raw != "" {
		before, err := time.Parse(time.RFC3339Nano, raw)
		if err != nil {
			return query, errors.New("before must be an RFC3339 timestamp")
		}
		query.Before = &before
	}
	if raw := strings.TrimSpace(values.Get("beforeId")); raw != "" {
		if query.Before == nil {
			return query, errors.New("beforeId requires before")
		}
		query.BeforeID = raw
	}

	return query, nil
}

// Create handles POST /api/v1/posts with either a multipart form carrying
// content and an image, or a JSON body carrying content only.
func (h PostHandler) Create(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	caller, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "You must be logged in to create a post.")
		return
	}
	if h.Posts == nil {
		logger.Error("post store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "posting unavailable")
		return
	}

	input, status, err := h.readCreateInput(w, r)
	if err != nil {
		logger.Warn("invalid post payload", "error", err)
		respondError(ctx, w, status, err.Error())
		return
	}

	content, err := validation.Content(input.content, input.image != nil)
	if err != nil {
		respondError(ctx, w, http.StatusBadRequest, err.Error())
		return
	}

	now := h.now()
	post := models.Post{
		ID:        uuid.NewString(),
		UserID:    caller.ID,
		Content:   models.StringPtr(content),
		CreatedAt: now,
	}

	var objectKey string
	if input.image != nil {
		if h.Images == nil {
			logger.Error("image store unavailable")
			respondError(ctx, w, http.StatusInternalServerError, "image uploads unavailable")
			return
		}

		objectKey = fmt.Sprintf("%s_%d.%s", caller.ID, now.UnixMilli(), input.image.Extension)
		uploadCtx, span := logging.StartSpan(ctx, "storage.upload", "key", objectKey, "bytes", input.image.Size())
		url, err := h.Images.Upload(uploadCtx, objectKey, input.image.Reader(), input.image.ContentType)
		span.End(err)
		if err != nil {
			status := http.StatusBadGateway
			if errors.Is(err, storage.ErrObjectExists) {
				status = http.StatusConflict
			}
			respondError(ctx, w, status, "Upload Error: failed to upload image")
			return
		}
		post.ImageURL = models.StringPtr(url)
	}

	if err := h.Posts.Create(ctx, post); err != nil {
		h.discardObject(ctx, objectKey)
		if errors.Is(err, repositories.ErrNotFound) {
			logger.Warn("post author has no profile", "userId", caller.ID)
			respondError(ctx, w, http.StatusConflict, "profile not found for current user")
			return
		}
		logger.Error("failed to create post", "error", err, "userId", caller.ID)
		respondError(ctx, w, http.StatusInternalServerError, "Failed to create post. Please try again.")
		return
	}

	h.publish(ctx, models.PostChange{Type: models.ChangeInsert, Table: models.TablePosts, Record: &post, CommitTimestamp: now})

	item, err := h.Posts.FindByID(ctx, post.ID)
	if err != nil {
		logger.Warn("reload created post failed", "postId", post.ID, "error", err)
		item = models.FeedItem{Post: post, Author: &models.Author{FullName: caller.FullName}}
	}

	logger.Info("post created", "postId", post.ID, "hasImage", post.ImageURL != nil)
	respondJSON(ctx, w, http.StatusCreated, cards.Build(item, caller.ID))
}

type createInput struct {
	content string
	image   *validation.Image
}

type createPostRequest struct {
	Content string `json:"content"`
}

func (h PostHandler) readCreateInput(w http.ResponseWriter, r *http.Request) (createInput, int, error) {
	maxImage := h.MaxImageBytes
	if maxImage <= 0 {
		maxImage = validation.DefaultMaxImageBytes
	}

	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if mediaType != "multipart/form-data" {
		var req createPostRequest
		dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, multipartOverhead))
		if err := dec.Decode(&req); err != nil {
			return createInput{}, http.StatusBadRequest, errors.New("invalid request body")
		}
		return createInput{content: req.Content}, 0, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxImage+multipartOverhead)
	if err := r.ParseMultipartForm(multipartOverhead); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return createInput{}, http.StatusRequestEntityTooLarge, fmt.Errorf("image is too large: maximum size is %d MB", maxImage>>20)
		}
		return createInput{}, http.StatusBadRequest, errors.New("invalid multipart form")
	}

	input := createInput{content: r.FormValue("content")}

	file, header, err := r.FormFile("image")
	switch {
	case errors.Is(err, http.ErrMissingFile):
		return input, 0, nil
	case err != nil:
		return createInput{}, http.StatusBadRequest, errors.New("invalid image upload")
	}
	defer file.Close()

	img, err := validation.ReadImage(file, header.Filename, maxImage)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, validation.ErrImageTooLarge) {
			status = http.StatusRequestEntityTooLarge
		} else if errors.Is(err, validation.ErrImageType) {
			status = http.StatusUnsupportedMediaType
		}
		return createInput{}, status, err
	}
	input.image = &img
	return input, 0, nil
}

// Delete handles DELETE /api/v1/posts/{id}. Only the author can delete a post.
func (h PostHandler) Delete(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	caller, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if h.Posts == nil {
		logger.Error("post store unavailable")
		respondError(ctx, w, http.StatusInternalServerError, "posting unavailable")
		return
	}

	postID := strings.TrimSpace(mux.Vars(r)["id"])
	if postID == "" {
		respondError(ctx, w, http.StatusBadRequest, "post id is required")
		return
	}

	deleted, err := h.Posts.Delete(ctx, postID, caller.ID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			respondError(ctx, w, http.StatusNotFound, "post not found")
			return
		}
		logger.Error("failed to delete post", "postId", postID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to delete post")
		return
	}

	if url := models.StringValue(deleted.ImageURL); url != "" && h.Images != nil {
		if key, ok := h.Images.KeyFromURL(url); ok {
			h.discardObject(ctx, key)
		}
	}

	h.publish(ctx, models.PostChange{Type: models.ChangeDelete, Table: models.TablePosts, OldRecord: &deleted, CommitTimestamp: h.now()})

	logger.Info("post deleted", "postId", postID)
	w.WriteHeader(http.StatusNoContent)
}

func (h PostHandler) discardObject(ctx context.Context, key string) {
	if key == "" || h.Cleaner == nil {
		return
	}
	if err := h.Cleaner.Enqueue(context.WithoutCancel(ctx), key); err != nil {
		logging.FromContext(ctx).Warn("could not schedule object removal", "key", key, "error", err)
	}
}

func (h PostHandler) publish(ctx context.Context, change models.PostChange) {
	if h.Publisher == nil {
		return
	}
	if err := h.Publisher.Publish(ctx, change); err != nil {
		logging.FromContext(ctx).Error("publish post change", "type", change.Type, "error", err)
	}
}

func (h PostHandler) now() time.Time {
	if h.NowFunc != nil {
		return h.NowFunc()
	}
	return time.Now().UTC()
}
