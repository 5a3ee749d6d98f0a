package controllers

import (
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/seramic/shop-backend/api/middleware"
	"github.com/seramic/shop-backend/api/responses"
	"github.com/seramic/shop-backend/api/validators"
	"github.com/seramic/shop-backend/internal/auth"
	"github.com/seramic/shop-backend/internal/users"
	"github.com/seramic/shop-backend/pkg/config"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/logger"
)

func AuthRegister(svc auth.Service, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.RegisterRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Register(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSession(w, r, jwtCfg, session, http.StatusCreated)
	}
}

// AuthLogin wires the login endpoint into the HTTP layer.
func AuthLogin(svc auth.Service, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.LoginRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		session, err := svc.Login(r.Context(), body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSession(w, r, jwtCfg, session, http.StatusOK)
	}
}

// AuthLogout overwrites the session cookie. Bearer tokens stay valid until
// they expire.
func AuthLogout(jwtCfg config.JWTConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{
			Name:     cookieName(jwtCfg),
			Value:    middleware.LoggedOutCookieValue,
			Path:     "/",
			Expires:  time.Now().Add(10 * time.Second),
			HttpOnly: true,
			Secure:   jwtCfg.CookieSecure,
			SameSite: http.SameSiteStrictMode,
		})
		responses.WriteSuccess(w, nil)
	}
}

func AuthMe(svc users.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		user, err := svc.Get(r.Context(), actor.UserID)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]any{"user": user})
	}
}

// AuthForgotPassword answers the same way whether or not the email exists.
func AuthForgotPassword(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var body auth.ForgotPasswordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		if err := svc.ForgotPassword(r.Context(), body.Email); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "If that email is registered, a reset link has been sent."})
	}
}

func AuthResetPassword(svc auth.Service, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimSpace(chi.URLParam(r, "token"))
		var body auth.ResetPasswordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.ResetPassword(r.Context(), token, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSession(w, r, jwtCfg, session, http.StatusOK)
	}
}

func AuthVerifyEmail(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := svc.VerifyEmail(r.Context(), strings.TrimSpace(chi.URLParam(r, "token"))); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "Email verified successfully"})
	}
}

func AuthResendVerification(svc auth.Service, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		if err := svc.ResendVerification(r.Context(), actor.UserID); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"message": "Verification email sent"})
	}
}

func AuthUpdatePassword(svc auth.Service, jwtCfg config.JWTConfig, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		actor, ok := requireActor(w, r, logg)
		if !ok {
			return
		}
		var body auth.UpdatePasswordRequest
		if err := validators.DecodeJSONBody(r, &body); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		session, err := svc.UpdatePassword(r.Context(), actor.UserID, body)
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}
		writeSession(w, r, jwtCfg, session, http.StatusOK)
	}
}

// writeSession sets the HttpOnly cookie and returns the token in the body for
// clients that prefer the Authorization header.
func writeSession(w http.ResponseWriter, r *http.Request, jwtCfg config.JWTConfig, session *auth.Session, status int) {
	if session == nil {
		responses.WriteError(r.Context(), nil, w, pkgerrors.New(pkgerrors.CodeInternal, "session missing"))
		return
	}
	http.SetCookie(w, &http.Cookie{
		Name:     cookieName(jwtCfg),
		Value:    session.Token,
		Path:     "/",
		Expires:  session.ExpiresAt,
		HttpOnly: true,
		Secure:   jwtCfg.CookieSecure,
		SameSite: http.SameSiteStrictMode,
	})
	responses.WriteSuccessStatus(w, status, session)
}

func cookieName(jwtCfg config.JWTConfig) string {
	if jwtCfg.CookieName == "" {
		return "jwt"
	}
	return jwtCfg.CookieName
}
