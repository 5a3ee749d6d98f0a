package auth

import pkgerrors "github.com/seramic/shop-backend/pkg/errors"

const (
	invalidCredentialsMessage = "Incorrect email or password"
	lockedMessage             = "Account temporarily locked due to too many failed login attempts. Please try again later."
	deactivatedMessage        = "Your account has been deactivated. Please contact support."
)

func ErrInvalidCredentials() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, invalidCredentialsMessage)
}

func ErrAccountLocked() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeAccountLocked, lockedMessage)
}

func ErrAccountDeactivated() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, deactivatedMessage)
}

// ErrTokenInvalid covers bad signatures and tokens whose account is gone.
func ErrTokenInvalid() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "Invalid token. Please log in again.")
}

func ErrSessionExpired() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "Your token has expired! Please log in again.")
}

func ErrPasswordChangedSinceIssue() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeUnauthorized, "User recently changed password! Please log in again.")
}

// ErrTokenInvalidOrExpired is returned for reset and verification tokens.
func ErrTokenInvalidOrExpired() *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeValidation, "Token is invalid or has expired")
}
