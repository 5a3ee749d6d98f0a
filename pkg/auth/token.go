package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/seramic/shop-backend/pkg/config"
)

var signingMethod = jwt.SigningMethodHS256

var (
	// ErrSessionExpired is returned for a well-signed token past its exp.
	ErrSessionExpired = errors.New("session token expired")
	// ErrSessionInvalid covers every other reason a token is refused.
	ErrSessionInvalid = errors.New("session token invalid")
)

func checkSigningConfig(cfg config.JWTConfig) error {
	switch {
	case cfg.Secret == "":
		return errors.New("jwt secret is required")
	case cfg.Issuer == "":
		return errors.New("jwt issuer is required")
	}
	return nil
}

// MintSessionToken signs an HS256 session for identity, valid from now for
// cfg.Expiration().
func MintSessionToken(cfg config.JWTConfig, now time.Time, identity SessionIdentity) (string, error) {
	if err := checkSigningConfig(cfg); err != nil {
		return "", err
	}
	ttl := cfg.Expiration()
	if ttl <= 0 {
		return "", errors.New("jwt expiration minutes must be positive")
	}
	if identity.ID == uuid.Nil {
		return "", errors.New("identity id is required")
	}
	if !identity.Role.IsValid() {
		return "", fmt.Errorf("invalid role %q", identity.Role)
	}

	claims := SessionClaims{User: identity}
	claims.ID = uuid.NewString()
	claims.Issuer = cfg.Issuer
	claims.Subject = identity.ID.String()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(ttl))

	signed, err := jwt.NewWithClaims(signingMethod, claims).SignedString([]byte(cfg.Secret))
	if err != nil {
		return "", fmt.Errorf("sign session: %w", err)
	}
	return signed, nil
}

// ParseSessionToken verifies signature, algorithm, issuer and expiry. The
// returned error wraps ErrSessionExpired or ErrSessionInvalid.
func ParseSessionToken(cfg config.JWTConfig, raw string) (*SessionClaims, error) {
	if err := checkSigningConfig(cfg); err != nil {
		return nil, err
	}
	var claims SessionClaims
	_, err := jwt.ParseWithClaims(raw, &claims,
		func(*jwt.Token) (any, error) { return []byte(cfg.Secret), nil },
		jwt.WithValidMethods([]string{signingMethod.Alg()}),
		jwt.WithIssuer(cfg.Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
	)
	switch {
	case errors.Is(err, jwt.ErrTokenExpired):
		return nil, fmt.Errorf("%w: %v", ErrSessionExpired, err)
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrSessionInvalid, err)
	case claims.User.ID == uuid.Nil || claims.Subject != claims.User.ID.String():
		return nil, fmt.Errorf("%w: subject does not match identity", ErrSessionInvalid)
	}
	return &claims, nil
}

// IssuedBefore compares at second resolution, the precision of iat. Claims
// without iat count as issued before anything.
func (c *SessionClaims) IssuedBefore(t time.Time) bool {
	if c == nil || c.IssuedAt == nil {
		return true
	}
	return c.IssuedAt.Unix() < t.Unix()
}
