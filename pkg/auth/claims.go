package auth

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/seramic/shop-backend/pkg/enums"
)

// SessionIdentity is the minimal account view embedded in a session token.
type SessionIdentity struct {
	ID    uuid.UUID  `json:"id"`
	Name  string     `json:"name"`
	Email string     `json:"email"`
	Role  enums.Role `json:"role"`
}

// SessionClaims represents the typed JWT issued to clients.
type SessionClaims struct {
	User SessionIdentity `json:"user"`
	jwt.RegisteredClaims
}
