package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/framez/backend/internal/models"
)

type failingProfileStore struct{ err error }

func (s failingProfileStore) FindByID(context.Context, string) (models.Profile, error) {
	return models.Profile{}, s.err
}

func TestProfileHandlerGet(t *testing.T) {
	posts := newInMemoryPostStore()
	posts.posts["p1"] = models.Post{ID: "p1", UserID: ada.ID, Content: models.StringPtr("first"), CreatedAt: fixedNow()}
	posts.posts["p2"] = models.Post{ID: "p2", UserID: ada.ID, ImageURL: models.StringPtr(testImageBase + "a.png"), CreatedAt: fixedNow().Add(time.Minute)}
	posts.posts["p3"] = models.Post{ID: "p3", UserID: linus.ID, Content: models.StringPtr("not yours"), CreatedAt: fixedNow()}

	profiles := inMemoryProfileStore{profiles: map[string]models.Profile{
		ada.ID: {ID: ada.ID, FullName: "Ada L.", AvatarURL: "https://cdn.framez.dev/avatars/ada.png"},
	}}
	handler := ProfileHandler{Profiles: profiles, Posts: posts}

	rec := httptest.NewRecorder()
	handler.Get(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil), ada))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d: %s", rec.Code, rec.Body.String())
	}

	var resp profileResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Profile.FullName != "Ada L." || resp.Profile.Email != ada.Email {
		t.Fatalf("unexpected profile %+v", resp.Profile)
	}
	if resp.Stats.Posts != 2 || resp.Stats.Images != 1 {
		t.Fatalf("unexpected stats %+v", resp.Stats)
	}
	if len(resp.Posts) != 2 || resp.Posts[0].ID != "p2" {
		t.Fatalf("expected own posts newest first, got %+v", resp.Posts)
	}
	for _, card := range resp.Posts {
		if card.AuthorName != "Ada L." || card.AuthorAvatar == "" || !card.CanDelete {
			t.Fatalf("expected profile as author, got %+v", card)
		}
	}
}

func TestProfileHandlerMissingProfileFallsBackToSession(t *testing.T) {
	handler := ProfileHandler{Profiles: inMemoryProfileStore{}, Posts: newInMemoryPostStore()}

	rec := httptest.NewRecorder()
	handler.Get(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil), ada))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", rec.Code)
	}
	var resp profileResponse
	if err := json.NewDecoder(rec.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Profile.ID != ada.ID || resp.Profile.FullName != ada.FullName || resp.Profile.Email != ada.Email {
		t.Fatalf("unexpected fallback profile %+v", resp.Profile)
	}
	if resp.Posts == nil || len(resp.Posts) != 0 || resp.Stats.Posts != 0 {
		t.Fatalf("expected empty post list, got %+v", resp)
	}
}

func TestProfileHandlerErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	ProfileHandler{Profiles: inMemoryProfileStore{}, Posts: newInMemoryPostStore()}.
		Get(rec, httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", rec.Code)
	}

	rec = httptest.NewRecorder()
	ProfileHandler{Profiles: failingProfileStore{err: errors.New("timeout")}, Posts: newInMemoryPostStore()}.
		Get(rec, asUser(httptest.NewRequest(http.MethodGet, "/api/v1/profile", nil), ada))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", rec.Code)
	}
}
