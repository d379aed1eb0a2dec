package middleware

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	h "bouncer/internal/delivery/http/helpers"
	"bouncer/internal/domain"
)

// Cookie names shared by the auth controller and the middleware.
const (
	SessionCookie = "bouncer_session"
	RefreshCookie = "bouncer_refresh"
)

type contextKey string

const sessionKey contextKey = "session"

// SetSession returns a context carrying the verified session.
func SetSession(ctx context.Context, s *domain.Session) context.Context {
	return context.WithValue(ctx, sessionKey, s)
}

// SessionFromContext returns the session set by RequireAuth, if present.
func SessionFromContext(ctx context.Context) (*domain.Session, bool) {
	s, ok := ctx.Value(sessionKey).(*domain.Session)
	return s, ok && s != nil
}

// UserIDFromContext returns the authenticated user ID from the context, if present.
func UserIDFromContext(ctx context.Context) (string, bool) {
	s, ok := SessionFromContext(ctx)
	if !ok {
		return "", false
	}
	return s.UserID, true
}

// TokenFromRequest returns the bearer token, falling back to the session cookie.
// An Authorization header that is present but not a Bearer credential yields "".
func TokenFromRequest(r *http.Request) string {
	if auth := r.Header.Get("Authorization"); auth != "" {
		const prefix = "Bearer "
		if !strings.HasPrefix(auth, prefix) {
			return ""
		}
		return strings.TrimSpace(auth[len(prefix):])
	}
	if c, err := r.Cookie(SessionCookie); err == nil {
		return c.Value
	}
	return ""
}

var errNotAccessToken = errors.New("not an access token")

// verifyAccess accepts only access tokens; refresh tokens are good for /api/auth/refresh alone.
func verifyAccess(verifier domain.TokenVerifier, token string) (*domain.Session, error) {
	session, err := verifier.Verify(token)
	if err != nil {
		return nil, err
	}
	if session.Kind != domain.TokenKindAccess {
		return nil, errNotAccessToken
	}
	return session, nil
}

// RequireAuth returns a wrapper that validates the session token and stores the session in the
// request context. If the token is missing or invalid, it responds with 401 and does not call next.
func RequireAuth(verifier domain.TokenVerifier, logger *slog.Logger) func(http.HandlerFunc) http.HandlerFunc {
	return func(next http.HandlerFunc) http.HandlerFunc {
		return func(w http.ResponseWriter, r *http.Request) {
			token := TokenFromRequest(r)
			if token == "" {
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "missing session token")
				return
			}
			session, err := verifyAccess(verifier, token)
			if err != nil {
				logger.DebugContext(r.Context(), "token rejected", "path", r.URL.Path, "err", err)
				h.WriteJSONError(w, http.StatusUnauthorized, h.ErrCodeUnauthorized, "invalid or expired token")
				return
			}
			next(w, r.WithContext(SetSession(r.Context(), session)))
		}
	}
}
