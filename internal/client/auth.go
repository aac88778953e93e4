package client

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/framez/backend/internal/models"
)

// AuthEvent names a change in authentication state.
type AuthEvent string

const (
	EventInitialSession AuthEvent = "INITIAL_SESSION"
	EventSignedIn       AuthEvent = "SIGNED_IN"
	EventSignedOut      AuthEvent = "SIGNED_OUT"
	EventTokenRefreshed AuthEvent = "TOKEN_REFRESHED"
)

// AuthListener observes auth state changes. session is nil after sign out.
type AuthListener func(event AuthEvent, session *Session)

type listenerEntry struct {
	id int
	fn AuthListener
}

type authPayload struct {
	Tokens models.SessionTokens `json:"tokens"`
	User   models.SessionUser   `json:"user"`
}

func (p authPayload) session() *Session {
	return &Session{SessionTokens: p.Tokens, User: p.User}
}

// OnAuthStateChange registers fn and returns a function that removes it.
// Listeners run synchronously, in registration order.
func (c *Client) OnAuthStateChange(fn AuthListener) (unsubscribe func()) {
	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.listeners = append(c.listeners, listenerEntry{id: id, fn: fn})
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, entry := range c.listeners {
			if entry.id == id {
				c.listeners = append(c.listeners[:i:i], c.listeners[i+1:]...)
				return
			}
		}
	}
}

func (c *Client) emit(event AuthEvent, session *Session) {
	c.mu.Lock()
	listeners := append([]listenerEntry(nil), c.listeners...)
	c.mu.Unlock()

	for _, entry := range listeners {
		entry.fn(event, session.clone())
	}
}

// setSession replaces the current session and mirrors it to the token store.
// A failure to persist is logged; the in-memory session still changes.
func (c *Client) setSession(session *Session) {
	c.mu.Lock()
	c.session = session.clone()
	c.mu.Unlock()

	var err error
	if session == nil {
		err = c.tokens.Clear()
	} else {
		err = c.tokens.Save(session)
	}
	if err != nil {
		c.logger.Warn("could not persist session", "error", err)
	}
}

// Session returns a copy of the current session, or nil.
func (c *Client) Session() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.session.clone()
}

// User returns the signed-in user, or nil.
func (c *Client) User() *models.SessionUser {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	user := c.session.User
	return &user
}

// Init restores the persisted session and emits INITIAL_SESSION. An expired
// access token is refreshed when the refresh token is still usable; a
// refresh token the server no longer accepts signs the user out.
func (c *Client) Init(ctx context.Context) error {
	stored, err := c.tokens.Load()
	if err != nil {
		c.logger.Warn("could not load persisted session", "error", err)
		stored = nil
	}

	now := c.now()
	if stored != nil && !stored.accessValid(now) && !stored.refreshValid(now) {
		stored = nil
		if err := c.tokens.Clear(); err != nil {
			c.logger.Warn("could not clear expired session", "error", err)
		}
	}

	c.mu.Lock()
	c.session = stored.clone()
	c.mu.Unlock()
	c.emit(EventInitialSession, stored)

	if stored == nil || stored.accessValid(now) {
		return nil
	}

	if err := c.RefreshSession(ctx); err != nil {
		if IsStatus(err, http.StatusUnauthorized) {
			c.setSession(nil)
			c.emit(EventSignedOut, nil)
			return nil
		}
		return err
	}
	return nil
}

// SignUp creates an account and signs it in.
func (c *Client) SignUp(ctx context.Context, email, password, fullName string) error {
	req, err := jsonRequest(http.MethodPost, "/api/v1/auth/signup", map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
		"fullName": strings.TrimSpace(fullName),
	})
	if err != nil {
		return err
	}

	var payload authPayload
	if err := c.do(ctx, req, &payload); err != nil {
		return err
	}
	session := payload.session()
	c.setSession(session)
	c.emit(EventSignedIn, session)
	return nil
}

// SignIn authenticates with email and password.
func (c *Client) SignIn(ctx context.Context, email, password string) error {
	req, err := jsonRequest(http.MethodPost, "/api/v1/auth/login", map[string]string{
		"email":    strings.TrimSpace(email),
		"password": password,
	})
	if err != nil {
		return err
	}

	var payload authPayload
	if err := c.do(ctx, req, &payload); err != nil {
		return err
	}
	session := payload.session()
	c.setSession(session)
	c.emit(EventSignedIn, session)
	return nil
}

// RefreshSession exchanges the refresh token for a new session.
func (c *Client) RefreshSession(ctx context.Context) error {
	current := c.Session()
	if current == nil || current.RefreshToken == "" {
		return ErrNotSignedIn
	}

	req, err := jsonRequest(http.MethodPost, "/api/v1/auth/refresh", map[string]string{"refreshToken": current.RefreshToken})
	if err != nil {
		return err
	}

	var payload authPayload
	if err := c.do(ctx, req, &payload); err != nil {
		return err
	}
	session := payload.session()
	c.setSession(session)
	c.emit(EventTokenRefreshed, session)
	return nil
}

// SignOut revokes the refresh token and clears the local session. When the
// server rejects the call for a reason other than a missing session, the
// local session is kept and the error returned.
func (c *Client) SignOut(ctx context.Context) error {
	current := c.Session()
	if current != nil && current.RefreshToken != "" {
		req, err := jsonRequest(http.MethodPost, "/api/v1/auth/logout", map[string]string{"refreshToken": current.RefreshToken})
		if err != nil {
			return err
		}
		if err := c.do(ctx, req, nil); err != nil && !IsStatus(err, http.StatusUnauthorized) {
			return err
		}
	}

	c.setSession(nil)
	c.emit(EventSignedOut, nil)
	return nil
}

// accessToken returns a usable access token, refreshing it when needed.
func (c *Client) accessToken(ctx context.Context) (string, error) {
	current := c.Session()
	if current == nil {
		return "", ErrNotSignedIn
	}
	if current.accessValid(c.now()) {
		return current.AccessToken, nil
	}
	if !current.refreshValid(c.now()) {
		return "", ErrNotSignedIn
	}

	if err := c.RefreshSession(ctx); err != nil {
		if IsStatus(err, http.StatusUnauthorized) {
			c.setSession(nil)
			c.emit(EventSignedOut, nil)
			return "", errors.Join(ErrNotSignedIn, err)
		}
		return "", err
	}
	return c.Session().AccessToken, nil
}
