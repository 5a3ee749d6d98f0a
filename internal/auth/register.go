package auth

import (
	"context"
	"errors"
	"strings"

	"gorm.io/gorm"

	"github.com/seramic/shop-backend/internal/users"
	"github.com/seramic/shop-backend/pkg/db"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/security"
)

const emailUniqueIndex = "ux_users_email"

// Register creates a customer account, queues its email verification token
// and logs the new account in.
func (s *service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	email := users.NormalizeEmail(req.Email)
	if email == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "email is required")
	}
	if err := validateNewPassword(req.Password, req.PasswordConfirm); err != nil {
		return nil, err
	}

	if _, err := s.users.FindByEmail(ctx, email); err == nil {
		return nil, pkgerrors.New(pkgerrors.CodeConflict, "User with this email already exists")
	} else if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	passwordHash, err := security.HashPassword(req.Password, s.passwordCfg)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}

	user := &models.User{
		Email:        email,
		PasswordHash: passwordHash,
		FirstName:    strings.TrimSpace(req.FirstName),
		LastName:     strings.TrimSpace(req.LastName),
		Role:         enums.RoleCustomer,
		Phone:        req.Phone,
		IsActive:     true,
		Preferences:  models.UserPreferences{Newsletter: true, Notifications: true, Currency: "USD"},
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.users.WithTx(tx)
		if err := repo.Create(ctx, user); err != nil {
			if db.IsUniqueViolation(err, emailUniqueIndex) {
				return pkgerrors.New(pkgerrors.CodeConflict, "User with this email already exists")
			}
			return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create user")
		}
		return s.issueSingleUseToken(ctx, tx, repo, user, enums.TokenKindEmailVerification)
	})
	if err != nil {
		return nil, err
	}

	return s.issueSession(user)
}
