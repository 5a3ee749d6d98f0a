package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"

	pkgAuth "github.com/seramic/shop-backend/pkg/auth"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
)

type stubVerifier struct {
	tokens map[string]*models.User
	err    error
}

func (s stubVerifier) VerifySession(_ context.Context, token string) (*models.User, error) {
	if s.err != nil {
		return nil, s.err
	}
	if user, ok := s.tokens[token]; ok {
		return user, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "invalid or expired session token")
}

func captureActor(t *testing.T, got *string) http.Handler {
	t.Helper()
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got = UserIDFromContext(r.Context()) + "/" + RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthRejectsMissingToken(t *testing.T) {
	var got string
	handler := Auth(stubVerifier{}, "jwt", nil)(captureActor(t, &got))

	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, httptest.NewRequest(http.MethodGet, "/", nil))
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
	if got != "" {
		t.Fatal("handler should not run")
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	var got string
	handler := Auth(stubVerifier{}, "jwt", nil)(captureActor(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAcceptsHeaderOrCookie(t *testing.T) {
	user := &models.User{ID: uuid.New(), Role: enums.RoleModerator}
	verifier := stubVerifier{tokens: map[string]*models.User{"good": user}}
	want := user.ID.String() + "/moderator"

	var got string
	handler := Auth(verifier, "jwt", nil)(captureActor(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "bearer good")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || got != want {
		t.Fatalf("header auth: status %d actor %q", resp.Code, got)
	}

	got = ""
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: "good"})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK || got != want {
		t.Fatalf("cookie auth: status %d actor %q", resp.Code, got)
	}

	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: "jwt", Value: LoggedOutCookieValue})
	resp = httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("logged out cookie should be rejected, got %d", resp.Code)
	}
}

func TestAuthPassesThroughLockedOrDeactivated(t *testing.T) {
	var got string
	verifier := stubVerifier{err: pkgerrors.New(pkgerrors.CodeUnauthorized, "Your account has been deactivated. Please contact support.")}
	handler := Auth(verifier, "jwt", nil)(captureActor(t, &got))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer whatever")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestRequireCapability(t *testing.T) {
	tests := []struct {
		name   string
		role   enums.Role
		cap    Capability
		status int
	}{
		{"customer shops", enums.RoleCustomer, CapShop, http.StatusOK},
		{"customer cannot moderate", enums.RoleCustomer, CapModerate, http.StatusForbidden},
		{"moderator moderates", enums.RoleModerator, CapModerate, http.StatusOK},
		{"moderator cannot manage catalog", enums.RoleModerator, CapManageCatalog, http.StatusForbidden},
		{"admin manages orders", enums.RoleAdmin, CapManageOrders, http.StatusOK},
		{"unknown capability", enums.RoleAdmin, Capability("nope"), http.StatusForbidden},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			handler := Require(tt.cap, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req = req.WithContext(WithActor(req.Context(), actorFor(tt.role)))
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != tt.status {
				t.Fatalf("expected %d got %d", tt.status, resp.Code)
			}
		})
	}

	anonymous := httptest.NewRecorder()
	Require(CapShop, nil)(http.NotFoundHandler()).ServeHTTP(anonymous, httptest.NewRequest(http.MethodGet, "/", nil))
	if anonymous.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for anonymous caller got %d", anonymous.Code)
	}
}

func actorFor(role enums.Role) pkgAuth.Actor {
	return pkgAuth.Actor{UserID: uuid.New(), Role: role}
}
