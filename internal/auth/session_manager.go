package auth

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"time"

	"github.com/framez/backend/internal/models"
)

var (
	// ErrSessionNotFound indicates the provided refresh token does not map to an active session.
	ErrSessionNotFound = errors.New("session not found")
	// ErrRefreshTokenExpired indicates the refresh token has expired and cannot be used.
	ErrRefreshTokenExpired = errors.New("refresh token expired")
)

// SessionStore persists issued refresh tokens so they can survive process restarts.
type SessionStore interface {
	Save(ctx context.Context, session Session) error
	Find(ctx context.Context, refreshToken string) (Session, error)
	Delete(ctx context.Context, refreshToken string) error
}

// Session represents a refresh token issued to a user.
type Session struct {
	RefreshToken string
	UserID       string
	ExpiresAt    time.Time
}

// Manager manages the lifecycle of issued session tokens. Access tokens are
// signed and stateless; refresh tokens are opaque and live in the store.
type Manager struct {
	accessTTL  time.Duration
	refreshTTL time.Duration

	store  SessionStore
	signer *TokenSigner
	now    func() time.Time
}

// NewManager constructs a Manager that issues access and refresh tokens with the provided TTLs.
func NewManager(accessTTL, refreshTTL time.Duration, store SessionStore, signer *TokenSigner) *Manager {
	if store == nil {
		panic("auth: session store must not be nil")
	}
	if signer == nil {
		panic("auth: token signer must not be nil")
	}
	return &Manager{
		accessTTL:  accessTTL,
		refreshTTL: refreshTTL,
		store:      store,
		signer:     signer,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Issue creates a new pair of access and refresh tokens for the provided user.
func (m *Manager) Issue(ctx context.Context, user models.SessionUser) (models.SessionTokens, error) {
	if user.ID == "" {
		return models.SessionTokens{}, errors.New("user id must be provided")
	}

	now := m.now()
	accessExpiresAt := now.Add(m.accessTTL)
	accessToken, err := m.signer.Sign(user, now, accessExpiresAt)
	if err != nil {
		return models.SessionTokens{}, err
	}

	refreshToken, err := randomToken()
	if err != nil {
		return models.SessionTokens{}, err
	}

	tokens := models.SessionTokens{
		AccessToken:      accessToken,
		AccessExpiresAt:  accessExpiresAt,
		RefreshToken:     refreshToken,
		RefreshExpiresAt: now.Add(m.refreshTTL),
	}

	if err := m.store.Save(ctx, Session{
		RefreshToken: refreshToken,
		UserID:       user.ID,
		ExpiresAt:    tokens.RefreshExpiresAt,
	}); err != nil {
		return models.SessionTokens{}, err
	}

	return tokens, nil
}

// Refresh exchanges a refresh token for a new session token pair. The old
// refresh token is consumed. lookup resolves the user for the new access token.
func (m *Manager) Refresh(ctx context.Context, refreshToken string, lookup func(ctx context.Context, userID string) (models.SessionUser, error)) (models.SessionTokens, models.SessionUser, error) {
	if refreshToken == "" {
		return models.SessionTokens{}, models.SessionUser{}, ErrSessionNotFound
	}

	session, err := m.store.Find(ctx, refreshToken)
	if err != nil {
		return models.SessionTokens{}, models.SessionUser{}, err
	}

	if m.now().After(session.ExpiresAt) {
		_ = m.store.Delete(ctx, refreshToken)
		return models.SessionTokens{}, models.SessionUser{}, ErrRefreshTokenExpired
	}

	if err := m.store.Delete(ctx, refreshToken); err != nil {
		return models.SessionTokens{}, models.SessionUser{}, err
	}

	user := models.SessionUser{ID: session.UserID}
	if lookup != nil {
		user, err = lookup(ctx, session.UserID)
		if err != nil {
			return models.SessionTokens{}, models.SessionUser{}, err
		}
	}

	tokens, err := m.Issue(ctx, user)
	if err != nil {
		return models.SessionTokens{}, models.SessionUser{}, err
	}
	return tokens, user, nil
}

// Revoke removes the provided refresh token from the active session store.
// Unknown tokens are not an error: the caller is signed out either way.
func (m *Manager) Revoke(ctx context.Context, refreshToken string) error {
	if refreshToken == "" {
		return nil
	}
	if err := m.store.Delete(ctx, refreshToken); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return err
	}
	return nil
}

// Verify validates an access token and returns the identity it carries.
func (m *Manager) Verify(accessToken string) (models.SessionUser, error) {
	return m.signer.Verify(accessToken, m.now())
}

func randomToken() (string, error) {
	const size = 32
	buf := make([]byte, size)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
