package auth

import (
	"github.com/google/uuid"

	"github.com/seramic/shop-backend/pkg/enums"
)

// Actor is the authenticated caller a service operation runs on behalf of.
type Actor struct {
	UserID uuid.UUID
	Role   enums.Role
}

func (a Actor) IsAdmin() bool {
	return a.Role == enums.RoleAdmin
}

// IsStaff reports whether the caller may moderate content.
func (a Actor) IsStaff() bool {
	return a.Role == enums.RoleAdmin || a.Role == enums.RoleModerator
}

// Owns reports whether the caller is the given account.
func (a Actor) Owns(userID uuid.UUID) bool {
	return a.UserID != uuid.Nil && a.UserID == userID
}

// Ref returns a pointer suitable for audit columns.
func (a Actor) Ref() *uuid.UUID {
	if a.UserID == uuid.Nil {
		return nil
	}
	id := a.UserID
	return &id
}
