package handlers

import (
	"context"
	"io"
	"net/http"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/framez/backend/internal/auth"
	"github.com/framez/backend/internal/models"
	"github.com/framez/backend/internal/repositories"
)

type inMemoryUserStore struct {
	mu    sync.Mutex
	users map[string]models.User
}

func newInMemoryUserStore() *inMemoryUserStore {
	return &inMemoryUserStore{users: make(map[string]models.User)}
}

func (s *inMemoryUserStore) Create(_ context.Context, user models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[user.Email]; exists {
		return repositories.ErrConflict
	}
	s.users[user.Email] = user
	return nil
}

func (s *inMemoryUserStore) FindByEmail(_ context.Context, email string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.users[email]
	if !ok {
		return models.User{}, repositories.ErrNotFound
	}
	return user, nil
}

func (s *inMemoryUserStore) FindByID(_ context.Context, id string) (models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, user := range s.users {
		if user.ID == id {
			return user, nil
		}
	}
	return models.User{}, repositories.ErrNotFound
}

type inMemoryPostStore struct {
	mu        sync.Mutex
	posts     map[string]models.Post
	authors   map[string]models.Author
	createErr error
	lastQuery repositories.FeedQuery
}

func newInMemoryPostStore() *inMemoryPostStore {
	return &inMemoryPostStore{posts: make(map[string]models.Post), authors: make(map[string]models.Author)}
}

func (s *inMemoryPostStore) Create(_ context.Context, post models.Post) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return s.createErr
	}
	s.posts[post.ID] = post
	return nil
}

func (s *inMemoryPostStore) item(post models.Post) models.FeedItem {
	item := models.FeedItem{Post: post}
	if author, ok := s.authors[post.UserID]; ok {
		item.Author = &author
	}
	return item
}

func (s *inMemoryPostStore) FindByID(_ context.Context, id string) (models.FeedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	if !ok {
		return models.FeedItem{}, repositories.ErrNotFound
	}
	return s.item(post), nil
}

func (s *inMemoryPostStore) sorted() []models.Post {
	out := make([]models.Post, 0, len(s.posts))
	for _, post := range s.posts {
		out = append(out, post)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out
}

func (s *inMemoryPostStore) ListFeed(_ context.Context, query repositories.FeedQuery) ([]models.FeedItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastQuery = query

	var items []models.FeedItem
	for _, post := range s.sorted() {
		if query.Before != nil && !beforeCursor(post, *query.Before, query.BeforeID) {
			continue
		}
		items = append(items, s.item(post))
		if len(items) == query.EffectiveLimit() {
			break
		}
	}
	return items, nil
}

// beforeCursor mirrors the (created_at, id) < (before, beforeID) row comparison.
func beforeCursor(post models.Post, before time.Time, beforeID string) bool {
	if post.CreatedAt.Equal(before) {
		return beforeID != "" && post.ID < beforeID
	}
	return post.CreatedAt.Before(before)
}

func (s *inMemoryPostStore) ListByUser(_ context.Context, userID string) ([]models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []models.Post
	for _, post := range s.sorted() {
		if post.UserID == userID {
			out = append(out, post)
		}
	}
	return out, nil
}

func (s *inMemoryPostStore) Delete(_ context.Context, id, ownerID string) (models.Post, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	post, ok := s.posts[id]
	if !ok || post.UserID != ownerID {
		return models.Post{}, repositories.ErrNotFound
	}
	delete(s.posts, id)
	return post, nil
}

type inMemoryProfileStore struct {
	profiles map[string]models.Profile
}

func (s inMemoryProfileStore) FindByID(_ context.Context, id string) (models.Profile, error) {
	profile, ok := s.profiles[id]
	if !ok {
		return models.Profile{}, repositories.ErrNotFound
	}
	return profile, nil
}

const testImageBase = "https://cdn.framez.dev/posts/"

type fakeImageStore struct {
	mu      sync.Mutex
	objects map[string][]byte
	types   map[string]string
	err     error
}

func newFakeImageStore() *fakeImageStore {
	return &fakeImageStore{objects: make(map[string][]byte), types: make(map[string]string)}
}

func (s *fakeImageStore) Upload(_ context.Context, key string, r io.Reader, contentType string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.objects[key] = data
	s.types[key] = contentType
	return testImageBase + key, nil
}

func (s *fakeImageStore) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, testImageBase) {
		return "", false
	}
	return strings.TrimPrefix(url, testImageBase), true
}

type recordingCleaner struct {
	mu   sync.Mutex
	keys []string
}

func (c *recordingCleaner) Enqueue(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.keys = append(c.keys, key)
	return nil
}

type recordingPublisher struct {
	mu      sync.Mutex
	changes []models.PostChange
}

func (p *recordingPublisher) Publish(_ context.Context, change models.PostChange) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.changes = append(p.changes, change)
	return nil
}

func newTestSessions(t *testing.T) *auth.Manager {
	t.Helper()
	signer, err := auth.NewTokenSigner("handler-test-secret")
	if err != nil {
		t.Fatalf("signer: %v", err)
	}
	return auth.NewManager(time.Minute, time.Hour, auth.NewInMemorySessionStore(), signer)
}

func asUser(r *http.Request, user models.SessionUser) *http.Request {
	return r.WithContext(auth.WithUser(r.Context(), user))
}
