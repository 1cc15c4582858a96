package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/hugh/tubelink/internal/auth"
)

// SessionCookieName is the cookie carrying the opaque session token.
const SessionCookieName = "session_token"

type contextKey string

const (
	SessionKey contextKey = "session"
)

// SessionToken extracts the bearer from the Authorization header or the
// session cookie.
func SessionToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimPrefix(h, "Bearer ")
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

func Auth(sessions auth.SessionAuthenticator) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r)
			if token == "" {
				http.Error(w, "Unauthorized", http.StatusUnauthorized)
				return
			}

			sess, err := sessions.Authenticate(r.Context(), token)
			if err != nil {
				if errors.Is(err, auth.ErrInvalidSession) || errors.Is(err, auth.ErrSessionExpired) {
					http.Error(w, "Unauthorized", http.StatusUnauthorized)
					return
				}
				http.Error(w, "Internal Server Error", http.StatusInternalServerError)
				return
			}

			ctx := context.WithValue(r.Context(), SessionKey, sess)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireOwner rejects delegated sessions with 403. It must run after Auth.
func RequireOwner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		err := auth.RequireOwner(GetSession(r.Context()))
		switch {
		case err == nil:
			next.ServeHTTP(w, r)
		case errors.Is(err, auth.ErrDelegationForbidden):
			http.Error(w, "Forbidden", http.StatusForbidden)
		default:
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
		}
	})
}

func GetSession(ctx context.Context) *auth.Session {
	if sess, ok := ctx.Value(SessionKey).(*auth.Session); ok {
		return sess
	}
	return nil
}

func GetUserID(ctx context.Context) uuid.UUID {
	if sess := GetSession(ctx); sess != nil {
		return sess.UserID
	}
	return uuid.Nil
}

// WithSession returns a context carrying sess, for handlers mounted without
// the Auth middleware in tests.
func WithSession(ctx context.Context, sess *auth.Session) context.Context {
	return context.WithValue(ctx, SessionKey, sess)
}
