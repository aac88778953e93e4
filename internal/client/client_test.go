package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/framez/backend/internal/cards"
	"github.com/framez/backend/internal/models"
)

var testNow = time.Date(2024, time.May, 1, 12, 0, 0, 0, time.UTC)

type fakeAPI struct {
	t      *testing.T
	mux    *http.ServeMux
	server *httptest.Server

	mu       sync.Mutex
	requests []*http.Request
	bodies   []string
}

func newFakeAPI(t *testing.T) *fakeAPI {
	t.Helper()
	api := &fakeAPI{t: t, mux: http.NewServeMux()}
	api.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		api.mu.Lock()
		api.requests = append(api.requests, r)
		api.bodies = append(api.bodies, string(body))
		api.mu.Unlock()
		r.Body = io.NopCloser(strings.NewReader(string(body)))
		api.mux.ServeHTTP(w, r)
	}))
	t.Cleanup(api.server.Close)
	return api
}

func (a *fakeAPI) last() (*http.Request, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.requests) == 0 {
		a.t.Fatal("expected a request")
	}
	n := len(a.requests) - 1
	return a.requests[n], a.bodies[n]
}

func (a *fakeAPI) count() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.requests)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func tokensFor(suffix string) models.SessionTokens {
	return models.SessionTokens{
		AccessToken:      "access-" + suffix,
		AccessExpiresAt:  testNow.Add(15 * time.Minute),
		RefreshToken:     "refresh-" + suffix,
		RefreshExpiresAt: testNow.Add(24 * time.Hour),
	}
}

var testUser = models.SessionUser{ID: "user-1", Email: "ada@example.com", FullName: "Ada"}

type recordedEvent struct {
	event   AuthEvent
	session *Session
}

func newTestClient(t *testing.T, api *fakeAPI, store TokenStore) (*Client, *[]recordedEvent) {
	t.Helper()
	c, err := New(api.server.URL, WithTokenStore(store), WithClock(func() time.Time { return testNow }))
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	var events []recordedEvent
	c.OnAuthStateChange(func(event AuthEvent, session *Session) {
		events = append(events, recordedEvent{event: event, session: session})
	})
	return c, &events
}

func signedIn(t *testing.T, api *fakeAPI, store TokenStore) *Client {
	t.Helper()
	if store == nil {
		store = NewMemoryTokenStore()
	}
	if err := store.Save(&Session{SessionTokens: tokensFor("1"), User: testUser}); err != nil {
		t.Fatalf("save: %v", err)
	}
	c, _ := newTestClient(t, api, store)
	if err := c.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	return c
}

func TestNew(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("expected missing url to be tolerated: %v", err)
	}
	if err := c.SignIn(context.Background(), "a@example.com", "password"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}

	if _, err := New("ftp://example.com"); err == nil {
		t.Fatal("expected unsupported scheme to fail")
	}
	if _, err := New("http://[::1"); err == nil {
		t.Fatal("expected malformed url to fail")
	}
}

func TestSignInPersistsSessionAndNotifies(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /api/v1/auth/login", func(w http.ResponseWriter, r *http.Request) {
		var body map[string]string
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["email"] != "ada@example.com" || body["password"] != "supersafe" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "invalid credentials"})
			return
		}
		writeJSON(w, http.StatusOK, authPayload{Tokens: tokensFor("1"), User: testUser})
	})

	store := NewMemoryTokenStore()
	c, events := newTestClient(t, api, store)

	if err := c.SignIn(context.Background(), "  ada@example.com ", "supersafe"); err != nil {
		t.Fatalf("sign in: %v", err)
	}

	req, _ := api.last()
	if got := req.Header.Get(ClientInfoHeader); got != DefaultClientInfo {
		t.Fatalf("expected client info header, got %q", got)
	}
	if len(*events) != 1 || (*events)[0].event != EventSignedIn || (*events)[0].session.User.ID != testUser.ID {
		t.Fatalf("unexpected events %+v", *events)
	}
	if user := c.User(); user == nil || user.Email != testUser.Email {
		t.Fatalf("unexpected user %+v", user)
	}
	stored, _ := store.Load()
	if stored == nil || stored.RefreshToken != "refresh-1" {
		t.Fatalf("expected session persisted, got %+v", stored)
	}

	err := c.SignIn(context.Background(), "ada@example.com", "wrong")
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.Status != http.StatusUnauthorized || apiErr.Message != "invalid credentials" {
		t.Fatalf("expected api error, got %v", err)
	}
	if c.Session() == nil {
		t.Fatal("expected failed sign in to keep the existing session")
	}
}

func TestSignUpSendsFullName(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /api/v1/auth/signup", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, authPayload{Tokens: tokensFor("1"), User: testUser})
	})

	c, events := newTestClient(t, api, NewMemoryTokenStore())
	if err := c.SignUp(context.Background(), "ada@example.com", "supersafe", " Ada "); err != nil {
		t.Fatalf("sign up: %v", err)
	}

	_, body := api.last()
	if !strings.Contains(body, `"fullName":"Ada"`) {
		t.Fatalf("expected trimmed full name in body, got %s", body)
	}
	if len(*events) != 1 || (*events)[0].event != EventSignedIn {
		t.Fatalf("unexpected events %+v", *events)
	}
}

func TestInit(t *testing.T) {
	t.Run("no stored session", func(t *testing.T) {
		api := newFakeAPI(t)
		c, events := newTestClient(t, api, NewMemoryTokenStore())
		if err := c.Init(context.Background()); err != nil {
			t.Fatalf("init: %v", err)
		}
		if len(*events) != 1 || (*events)[0].event != EventInitialSession || (*events)[0].session != nil {
			t.Fatalf("unexpected events %+v", *events)
		}
		if api.count() != 0 {
			t.Fatal("expected no requests")
		}
	})

	t.Run("expired access token is refreshed", func(t *testing.T) {
		api := newFakeAPI(t)
		api.mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusOK, authPayload{Tokens: tokensFor("2"), User: testUser})
		})

		stale := &Session{SessionTokens: tokensFor("1"), User: testUser}
		stale.AccessExpiresAt = testNow.Add(-time.Minute)
		store := NewMemoryTokenStore()
		_ = store.Save(stale)

		c, events := newTestClient(t, api, store)
		if err := c.Init(context.Background()); err != nil {
			t.Fatalf("init: %v", err)
		}

		if len(*events) != 2 || (*events)[0].event != EventInitialSession || (*events)[1].event != EventTokenRefreshed {
			t.Fatalf("unexpected events %+v", *events)
		}
		_, body := api.last()
		if !strings.Contains(body, "refresh-1") {
			t.Fatalf("expected stored refresh token to be sent, got %s", body)
		}
		if got := c.Session().AccessToken; got != "access-2" {
			t.Fatalf("expected refreshed access token, got %q", got)
		}
	})

	t.Run("rejected refresh token signs out", func(t *testing.T) {
		api := newFakeAPI(t)
		api.mux.HandleFunc("POST /api/v1/auth/refresh", func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "session expired"})
		})

		stale := &Session{SessionTokens: tokensFor("1"), User: testUser}
		stale.AccessExpiresAt = testNow.Add(-time.Minute)
		store := NewMemoryTokenStore()
		_ = store.Save(stale)

		c, events := newTestClient(t, api, store)
		if err := c.Init(context.Background()); err != nil {
			t.Fatalf("init: %v", err)
		}
		if c.Session() != nil {
			t.Fatal("expected session cleared")
		}
		if stored, _ := store.Load(); stored != nil {
			t.Fatal("expected stored session cleared")
		}
		if n := len(*events); n != 2 || (*events)[1].event != EventSignedOut {
			t.Fatalf("unexpected events %+v", *events)
		}
	})

	t.Run("fully expired session is dropped", func(t *testing.T) {
		api := newFakeAPI(t)
		dead := &Session{SessionTokens: tokensFor("1"), User: testUser}
		dead.AccessExpiresAt = testNow.Add(-time.Hour)
		dead.RefreshExpiresAt = testNow.Add(-time.Minute)
		store := NewMemoryTokenStore()
		_ = store.Save(dead)

		c, events := newTestClient(t, api, store)
		if err := c.Init(context.Background()); err != nil {
			t.Fatalf("init: %v", err)
		}
		if c.Session() != nil || (*events)[0].session != nil || api.count() != 0 {
			t.Fatal("expected expired session to be discarded without a request")
		}
	})
}

func TestSignOut(t *testing.T) {
	cases := []struct {
		name        string
		status      int
		wantErr     bool
		wantCleared bool
	}{
		{name: "success", status: http.StatusOK, wantCleared: true},
		{name: "no current session on server", status: http.StatusUnauthorized, wantCleared: true},
		{name: "server error keeps session", status: http.StatusInternalServerError, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			api := newFakeAPI(t)
			api.mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
				writeJSON(w, tc.status, map[string]string{"error": "nope", "status": "signed out"})
			})

			store := NewMemoryTokenStore()
			c := signedIn(t, api, store)
			var got []AuthEvent
			c.OnAuthStateChange(func(event AuthEvent, _ *Session) { got = append(got, event) })

			err := c.SignOut(context.Background())
			if (err != nil) != tc.wantErr {
				t.Fatalf("unexpected error %v", err)
			}

			stored, _ := store.Load()
			if tc.wantCleared {
				if c.Session() != nil || stored != nil {
					t.Fatal("expected session cleared")
				}
				if len(got) != 1 || got[0] != EventSignedOut {
					t.Fatalf("expected SIGNED_OUT, got %v", got)
				}
			} else {
				if c.Session() == nil || stored == nil {
					t.Fatal("expected session kept")
				}
				if len(got) != 0 {
					t.Fatalf("expected no events, got %v", got)
				}
			}
		})
	}

	c, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("expected signing out without a session to succeed: %v", err)
	}
}

func TestOnAuthStateChangeUnsubscribe(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /api/v1/auth/logout", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "signed out"})
	})
	c := signedIn(t, api, nil)

	var order []string
	stopFirst := c.OnAuthStateChange(func(AuthEvent, *Session) { order = append(order, "first") })
	c.OnAuthStateChange(func(AuthEvent, *Session) { order = append(order, "second") })
	stopFirst()
	stopFirst()

	if err := c.SignOut(context.Background()); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if len(order) != 1 || order[0] != "second" {
		t.Fatalf("unexpected listener calls %v", order)
	}
}

func TestFeedSendsBearerAndQuery(t *testing.T) {
	api := newFakeAPI(t)
	next := testNow.Add(-time.Hour)
	api.mux.HandleFunc("GET /api/v1/feed", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, FeedPage{Posts: []cards.Card{{ID: "p1", AuthorName: "Ada"}}, NextBefore: &next, NextBeforeID: "p1"})
	})
	c := signedIn(t, api, nil)

	page, err := c.Feed(context.Background(), FeedOptions{Limit: 10, Before: testNow, BeforeID: "p9"})
	if err != nil {
		t.Fatalf("feed: %v", err)
	}
	if len(page.Posts) != 1 || page.NextBefore == nil || !page.NextBefore.Equal(next) {
		t.Fatalf("unexpected page %+v", page)
	}

	req, _ := api.last()
	if got := req.Header.Get("Authorization"); got != "Bearer access-1" {
		t.Fatalf("unexpected authorization %q", got)
	}
	if req.URL.Query().Get("limit") != "10" || req.URL.Query().Get("before") != testNow.Format(time.RFC3339Nano) {
		t.Fatalf("unexpected query %s", req.URL.RawQuery)
	}
	if req.URL.Query().Get("beforeId") != "p9" {
		t.Fatalf("expected beforeId in query, got %s", req.URL.RawQuery)
	}

	nextOpts, ok := page.Next(10)
	if !ok || !nextOpts.Before.Equal(next) || nextOpts.BeforeID != "p1" || nextOpts.Limit != 10 {
		t.Fatalf("unexpected next page options %+v %v", nextOpts, ok)
	}
	if _, ok := (FeedPage{}).Next(10); ok {
		t.Fatal("expected no next page without a cursor")
	}
}

func TestAuthorizedCallRequiresSession(t *testing.T) {
	api := newFakeAPI(t)
	c, _ := newTestClient(t, api, NewMemoryTokenStore())

	if _, err := c.Profile(context.Background()); !errors.Is(err, ErrNotSignedIn) {
		t.Fatalf("expected ErrNotSignedIn, got %v", err)
	}
	if api.count() != 0 {
		t.Fatal("expected no request without a session")
	}
}

func TestCreatePost(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("POST /api/v1/posts", func(w http.ResponseWriter, r *http.Request) {
		card := cards.Card{ID: "p1", CanDelete: true}
		if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
			if err := r.ParseMultipartForm(1 << 20); err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
				return
			}
			file, header, err := r.FormFile("image")
			if err != nil {
				writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing image"})
				return
			}
			defer file.Close()
			data, _ := io.ReadAll(file)
			card.Content = r.FormValue("content")
			card.ImageURL = "https://cdn.framez.dev/posts/" + header.Filename + "?" + string(data)
		} else {
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			card.Content = body["content"]
		}
		writeJSON(w, http.StatusCreated, card)
	})
	c := signedIn(t, api, nil)

	card, err := c.CreatePost(context.Background(), CreatePostInput{Content: "hello"})
	if err != nil || card.Content != "hello" {
		t.Fatalf("text post: %+v %v", card, err)
	}

	card, err = c.CreatePost(context.Background(), CreatePostInput{Content: "pic", ImageName: "/tmp/photos/beach.png", Image: strings.NewReader("bytes")})
	if err != nil {
		t.Fatalf("image post: %v", err)
	}
	if card.Content != "pic" || card.ImageURL != "https://cdn.framez.dev/posts/beach.png?bytes" {
		t.Fatalf("unexpected card %+v", card)
	}

	before := api.count()
	if _, err := c.CreatePost(context.Background(), CreatePostInput{Content: "   "}); err == nil {
		t.Fatal("expected empty post to be rejected locally")
	}
	if api.count() != before {
		t.Fatal("expected no request for empty post")
	}
}

func TestDeletePostReturnsAPIError(t *testing.T) {
	api := newFakeAPI(t)
	api.mux.HandleFunc("DELETE /api/v1/posts/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.PathValue("id") == "mine" {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "post not found"})
	})
	c := signedIn(t, api, nil)

	if err := c.DeletePost(context.Background(), "mine"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	err := c.DeletePost(context.Background(), "theirs")
	if !IsStatus(err, http.StatusNotFound) || err.Error() != "post not found" {
		t.Fatalf("expected 404 api error, got %v", err)
	}
}

func TestSubscribeOwnPosts(t *testing.T) {
	api := newFakeAPI(t)
	upgrader := websocket.Upgrader{}
	serverClosed := make(chan struct{})
	api.mux.HandleFunc("GET /api/v1/realtime/posts", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("access_token") != "access-1" {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "missing access token"})
			return
		}
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		post := models.Post{ID: "p1", UserID: testUser.ID}
		_ = conn.WriteJSON(models.PostChange{Type: models.ChangeInsert, Table: models.TablePosts, Record: &post})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				close(serverClosed)
				return
			}
		}
	})
	c := signedIn(t, api, nil)

	received := make(chan models.PostChange, 1)
	sub, err := c.SubscribeOwnPosts(context.Background(), func(change models.PostChange) {
		received <- change
	})
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}

	select {
	case change := <-received:
		if change.Type != models.ChangeInsert || change.Record.ID != "p1" {
			t.Fatalf("unexpected change %+v", change)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for change")
	}

	sub.Unsubscribe()
	sub.Unsubscribe()

	for _, ch := range []<-chan struct{}{sub.Done(), serverClosed} {
		select {
		case <-ch:
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for close")
		}
	}
	if err := sub.Err(); err != nil {
		t.Fatalf("expected clean close, got %v", err)
	}
}

func TestSubscribeOwnPostsCancel(t *testing.T) {
	api := newFakeAPI(t)
	upgrader := websocket.Upgrader{}
	api.mux.HandleFunc("GET /api/v1/realtime/posts", func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	})
	c := signedIn(t, api, nil)

	ctx, cancel := context.WithCancel(context.Background())
	sub, err := c.SubscribeOwnPosts(ctx, nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	cancel()

	select {
	case <-sub.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("expected cancel to end the subscription")
	}
}

func TestFileTokenStore(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	store := NewFileTokenStore(path)

	if session, err := store.Load(); err != nil || session != nil {
		t.Fatalf("expected empty store, got %+v %v", session, err)
	}

	want := &Session{SessionTokens: tokensFor("1"), User: testUser}
	if err := store.Save(want); err != nil {
		t.Fatalf("save: %v", err)
	}

	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if runtime.GOOS != "windows" && info.Mode().Perm() != 0o600 {
		t.Fatalf("expected 0600 permissions, got %v", info.Mode().Perm())
	}

	got, err := store.Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.RefreshToken != want.RefreshToken || got.User != want.User || !got.AccessExpiresAt.Equal(want.AccessExpiresAt) {
		t.Fatalf("round trip mismatch: %+v", got)
	}

	if err := store.Clear(); err != nil {
		t.Fatalf("clear: %v", err)
	}
	if err := store.Clear(); err != nil {
		t.Fatalf("clear twice: %v", err)
	}
	if session, _ := store.Load(); session != nil {
		t.Fatal("expected cleared store")
	}

	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := store.Load(); err == nil {
		t.Fatal("expected corrupt session file to fail")
	}
}
