package handlers

import (
	"errors"
	"net/http"

	"github.com/framez/backend/internal/auth"
	"github.com/framez/backend/internal/cards"
	"github.com/framez/backend/internal/logging"
	"github.com/framez/backend/internal/models"
	"github.com/framez/backend/internal/repositories"
)

// ProfileHandler serves the caller's own profile page.
type ProfileHandler struct {
	Profiles ProfileStore
	Posts    PostStore
}

type profileStats struct {
	Posts  int `json:"posts"`
	Images int `json:"images"`
}

type profileResponse struct {
	Profile models.Profile `json:"profile"`
	Posts   []cards.Card   `json:"posts"`
	Stats   profileStats   `json:"stats"`
}

// Get handles GET /api/v1/profile. A missing profile row is not fatal: the
// caller's identity from the session fills in.
func (h ProfileHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := logging.FromContext(ctx)

	caller, ok := auth.UserFromContext(ctx)
	if !ok {
		respondError(ctx, w, http.StatusUnauthorized, "not authenticated")
		return
	}
	if h.Profiles == nil || h.Posts == nil {
		logger.Error("profile dependencies unavailable", "hasProfiles", h.Profiles != nil, "hasPosts", h.Posts != nil)
		respondError(ctx, w, http.StatusInternalServerError, "profile unavailable")
		return
	}

	profile, err := h.Profiles.FindByID(ctx, caller.ID)
	switch {
	case errors.Is(err, repositories.ErrNotFound):
		logger.Warn("profile row missing", "userId", caller.ID)
		profile = models.Profile{ID: caller.ID, FullName: caller.FullName}
	case err != nil:
		logger.Error("profile lookup failed", "userId", caller.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load profile")
		return
	}
	if profile.Email == "" {
		profile.Email = caller.Email
	}

	posts, err := h.Posts.ListByUser(ctx, caller.ID)
	if err != nil {
		logger.Error("profile posts lookup failed", "userId", caller.ID, "error", err)
		respondError(ctx, w, http.StatusInternalServerError, "failed to load posts")
		return
	}

	author := &models.Author{FullName: profile.FullName, AvatarURL: profile.AvatarURL}
	resp := profileResponse{Profile: profile, Posts: make([]cards.Card, 0, len(posts))}
	for _, post := range posts {
		resp.Posts = append(resp.Posts, cards.Build(models.FeedItem{Post: post, Author: author}, caller.ID))
		if post.ImageURL != nil {
			resp.Stats.Images++
		}
	}
	resp.Stats.Posts = len(posts)

	respondJSON(ctx, w, http.StatusOK, resp)
}
