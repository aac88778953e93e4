package middleware

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/framez/backend/internal/auth"
	"github.com/framez/backend/internal/logging"
	"github.com/framez/backend/internal/models"
)

// AccessTokenQueryParam carries the bearer token for clients that cannot set
// headers, such as browser websockets.
const AccessTokenQueryParam = "access_token"

// TokenVerifier validates access tokens.
type TokenVerifier interface {
	Verify(accessToken string) (models.SessionUser, error)
}

// Authenticate requires a valid bearer token and stores the caller on the
// request context.
func Authenticate(verifier TokenVerifier) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			logger := logging.FromContext(ctx)

			token := BearerToken(r)
			if token == "" {
				unauthorized(w, "missing access token")
				return
			}

			user, err := verifier.Verify(token)
			if err != nil {
				logger.Warn("access token rejected", "error", err)
				unauthorized(w, "invalid or expired access token")
				return
			}

			ctx = auth.WithUser(ctx, user)
			ctx = logging.With(ctx, "user_id", user.ID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// BearerToken extracts the access token from the Authorization header or,
// failing that, the access_token query parameter.
func BearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if scheme, token, ok := strings.Cut(header, " "); ok && strings.EqualFold(scheme, "Bearer") {
		return strings.TrimSpace(token)
	}
	return strings.TrimSpace(r.URL.Query().Get(AccessTokenQueryParam))
}

func unauthorized(w http.ResponseWriter, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("WWW-Authenticate", `Bearer realm="framez"`)
	w.WriteHeader(http.StatusUnauthorized)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
