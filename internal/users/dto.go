package users

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/pagination"
)

// UserDTO is the transport shape that omits credentials and token state.
type UserDTO struct {
	ID              uuid.UUID              `json:"id"`
	Email           string                 `json:"email"`
	FirstName       string                 `json:"firstName"`
	LastName        string                 `json:"lastName"`
	FullName        string                 `json:"fullName"`
	Role            enums.Role             `json:"role"`
	Phone           *string                `json:"phone,omitempty"`
	DateOfBirth     *time.Time             `json:"dateOfBirth,omitempty"`
	Gender          *string                `json:"gender,omitempty"`
	Avatar          *string                `json:"avatar,omitempty"`
	Preferences     models.UserPreferences `json:"preferences"`
	IsActive        bool                   `json:"isActive"`
	IsEmailVerified bool                   `json:"isEmailVerified"`
	LastLoginAt     *time.Time             `json:"lastLogin,omitempty"`
	TotalSpent      decimal.Decimal        `json:"totalSpent"`
	OrderCount      int                    `json:"orderCount"`
	CreatedAt       time.Time              `json:"createdAt"`
	UpdatedAt       time.Time              `json:"updatedAt"`
}

func FromModel(u *models.User) *UserDTO {
	if u == nil {
		return nil
	}
	return &UserDTO{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		FullName:        u.FullName(),
		Role:            u.Role,
		Phone:           u.Phone,
		DateOfBirth:     u.DateOfBirth,
		Gender:          u.Gender,
		Avatar:          u.AvatarURL,
		Preferences:     u.Preferences,
		IsActive:        u.IsActive,
		IsEmailVerified: u.IsEmailVerified,
		LastLoginAt:     u.LastLoginAt,
		TotalSpent:      u.TotalSpent,
		OrderCount:      u.OrderCount,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// UpdateProfileInput is the self-service profile patch. Nil fields are left untouched.
type UpdateProfileInput struct {
	FirstName   *string                 `json:"firstName" validate:"omitempty,min=1,max=50"`
	LastName    *string                 `json:"lastName" validate:"omitempty,min=1,max=50"`
	Phone       *string                 `json:"phone" validate:"omitempty,max=32"`
	DateOfBirth *time.Time              `json:"dateOfBirth"`
	Gender      *string                 `json:"gender" validate:"omitempty,oneof=male female other prefer_not_to_say"`
	Preferences *models.UserPreferences `json:"preferences"`
}

func (in UpdateProfileInput) fields() map[string]any {
	fields := map[string]any{}
	if in.FirstName != nil {
		fields["first_name"] = *in.FirstName
	}
	if in.LastName != nil {
		fields["last_name"] = *in.LastName
	}
	if in.Phone != nil {
		fields["phone"] = *in.Phone
	}
	if in.DateOfBirth != nil {
		fields["date_of_birth"] = *in.DateOfBirth
	}
	if in.Gender != nil {
		fields["gender"] = *in.Gender
	}
	if in.Preferences != nil {
		fields["preferences"] = *in.Preferences
	}
	return fields
}

// UserList is one admin listing page.
type UserList struct {
	Users []UserDTO           `json:"users"`
	Meta  pagination.PageMeta `json:"pagination"`
}
