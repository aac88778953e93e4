package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/framez/backend/internal/models"
)

// ErrInvalidAccessToken indicates the bearer token is malformed, expired or forged.
var ErrInvalidAccessToken = errors.New("invalid access token")

const tokenIssuer = "framez"

// TokenSigner issues and verifies HS256 access tokens.
type TokenSigner struct {
	secret []byte
}

type accessClaims struct {
	Email    string `json:"email,omitempty"`
	FullName string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// NewTokenSigner returns a signer using the provided shared secret.
func NewTokenSigner(secret string) (*TokenSigner, error) {
	if secret == "" {
		return nil, errors.New("auth: jwt secret must not be empty")
	}
	return &TokenSigner{secret: []byte(secret)}, nil
}

// Sign produces an access token for user valid from issuedAt until expiresAt.
func (s *TokenSigner) Sign(user models.SessionUser, issuedAt, expiresAt time.Time) (string, error) {
	claims := accessClaims{
		Email:    user.Email,
		FullName: user.FullName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   user.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign access token: %w", err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of an access token as of now.
func (s *TokenSigner) Verify(tokenString string, now time.Time) (models.SessionUser, error) {
	if tokenString == "" {
		return models.SessionUser{}, ErrInvalidAccessToken
	}

	var claims accessClaims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(tokenIssuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return now }),
	)
	if err != nil {
		return models.SessionUser{}, fmt.Errorf("%w: %v", ErrInvalidAccessToken, err)
	}

	if claims.Subject == "" {
		return models.SessionUser{}, ErrInvalidAccessToken
	}

	return models.SessionUser{ID: claims.Subject, Email: claims.Email, FullName: claims.FullName}, nil
}
