package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/enums"
)

// UserPreferences holds opt-ins persisted as JSON.
type UserPreferences struct {
	Newsletter    bool   `json:"newsletter"`
	Notifications bool   `json:"notifications"`
	Currency      string `json:"currency"`
}

// Value stores preferences as JSON so partial map updates can write them too.
func (p UserPreferences) Value() (driver.Value, error) {
	b, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (p *UserPreferences) Scan(src any) error {
	switch v := src.(type) {
	case nil:
		*p = UserPreferences{}
		return nil
	case []byte:
		return json.Unmarshal(v, p)
	case string:
		return json.Unmarshal([]byte(v), p)
	default:
		return fmt.Errorf("unsupported preferences type %T", src)
	}
}

// User is the account record, including its login security state.
type User struct {
	ID                         uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	Email                      string          `gorm:"column:email;type:text;not null;uniqueIndex:ux_users_email"`
	PasswordHash               string          `gorm:"column:password_hash;not null"`
	FirstName                  string          `gorm:"column:first_name;not null"`
	LastName                   string          `gorm:"column:last_name;not null"`
	Role                       enums.Role      `gorm:"column:role;type:text;not null;default:'customer'"`
	Phone                      *string         `gorm:"column:phone"`
	DateOfBirth                *time.Time      `gorm:"column:date_of_birth"`
	Gender                     *string         `gorm:"column:gender"`
	AvatarURL                  *string         `gorm:"column:avatar_url"`
	Preferences                UserPreferences `gorm:"column:preferences;type:jsonb"`
	IsActive                   bool            `gorm:"column:is_active;not null;default:true"`
	IsEmailVerified            bool            `gorm:"column:is_email_verified;not null;default:false"`
	LoginAttempts              int             `gorm:"column:login_attempts;not null;default:0"`
	LockUntil                  *time.Time      `gorm:"column:lock_until"`
	LastLoginAt                *time.Time      `gorm:"column:last_login_at"`
	PasswordChangedAt          *time.Time      `gorm:"column:password_changed_at"`
	PasswordResetTokenHash     *string         `gorm:"column:password_reset_token_hash;index:idx_users_password_reset_token_hash"`
	PasswordResetExpires       *time.Time      `gorm:"column:password_reset_expires"`
	EmailVerificationTokenHash *string         `gorm:"column:email_verification_token_hash;index:idx_users_email_verification_token_hash"`
	EmailVerificationExpires   *time.Time      `gorm:"column:email_verification_expires"`
	TotalSpent                 decimal.Decimal `gorm:"column:total_spent;type:numeric(12,2);not null;default:0"`
	OrderCount                 int             `gorm:"column:order_count;not null;default:0"`
	CreatedAt                  time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt                  time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}

func (u *User) BeforeCreate(*gorm.DB) error {
	return ensureID(&u.ID)
}

// FullName is the display name embedded in session tokens.
func (u *User) FullName() string {
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
