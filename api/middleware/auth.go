package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/seramic/shop-backend/api/responses"
	pkgAuth "github.com/seramic/shop-backend/pkg/auth"
	"github.com/seramic/shop-backend/pkg/db/models"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/logger"
)

// SessionVerifier resolves a session token to a live account.
type SessionVerifier interface {
	VerifySession(ctx context.Context, token string) (*models.User, error)
}

// Auth accepts a bearer token or the session cookie and seeds the request
// context with the caller.
func Auth(verifier SessionVerifier, cookieName string, logg *logger.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token := SessionToken(r, cookieName)
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "You are not logged in! Please log in to get access."))
				return
			}

			user, err := verifier.VerifySession(r.Context(), token)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}

			actor := pkgAuth.Actor{UserID: user.ID, Role: user.Role}
			ctx := WithActor(r.Context(), actor)
			if logg != nil {
				ctx = logg.WithUserID(ctx, actor.UserID.String())
				ctx = logg.WithActorRole(ctx, actor.Role.String())
			}

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// SessionToken reads the Authorization header first, then the cookie.
func SessionToken(r *http.Request, cookieName string) string {
	raw := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(raw) > 7 && strings.EqualFold(raw[:7], "bearer ") {
		if token := strings.TrimSpace(raw[7:]); token != "" {
			return token
		}
	}
	if cookieName == "" {
		return ""
	}
	cookie, err := r.Cookie(cookieName)
	if err != nil {
		return ""
	}
	// logout overwrites the cookie with this placeholder
	if cookie.Value == "" || cookie.Value == LoggedOutCookieValue {
		return ""
	}
	return cookie.Value
}

// LoggedOutCookieValue replaces the session cookie on logout.
const LoggedOutCookieValue = "loggedout"
