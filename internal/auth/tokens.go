package auth

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/internal/users"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/outbox"
	"github.com/seramic/shop-backend/pkg/outbox/payloads"
	"github.com/seramic/shop-backend/pkg/security"
)

func (s *service) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "There is no user with that email address.")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.issueSingleUseToken(ctx, tx, s.users.WithTx(tx), user, enums.TokenKindPasswordReset)
	})
}

func (s *service) ResendVerification(ctx context.Context, userID uuid.UUID) error {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "user not found")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}
	if user.IsEmailVerified {
		return pkgerrors.New(pkgerrors.CodeStateConflict, "email is already verified")
	}
	return s.db.WithTx(ctx, func(tx *gorm.DB) error {
		return s.issueSingleUseToken(ctx, tx, s.users.WithTx(tx), user, enums.TokenKindEmailVerification)
	})
}

func (s *service) ResetPassword(ctx context.Context, token string, req ResetPasswordRequest) (*Session, error) {
	user, err := s.lookupToken(ctx, enums.TokenKindPasswordReset, token)
	if err != nil {
		return nil, err
	}
	if err := s.changePassword(user, req.Password, req.PasswordConfirm); err != nil {
		return nil, err
	}
	err = s.consume(ctx, enums.TokenKindPasswordReset, user.ID, token, map[string]any{
		"password_hash":       user.PasswordHash,
		"password_changed_at": user.PasswordChangedAt,
		"login_attempts":      0,
		"lock_until":          nil,
	})
	if err != nil {
		return nil, err
	}
	user.PasswordResetTokenHash = nil
	user.PasswordResetExpires = nil
	user.LoginAttempts = 0
	user.LockUntil = nil
	return s.issueSession(user)
}

func (s *service) VerifyEmail(ctx context.Context, token string) error {
	user, err := s.lookupToken(ctx, enums.TokenKindEmailVerification, token)
	if err != nil {
		return err
	}
	return s.consume(ctx, enums.TokenKindEmailVerification, user.ID, token, map[string]any{
		"is_email_verified": true,
	})
}

// lookupToken resolves a plaintext single-use token to the account holding
// its unexpired hash. It does not use the token up.
func (s *service) lookupToken(ctx context.Context, kind enums.TokenKind, token string) (*models.User, error) {
	if token == "" {
		return nil, ErrTokenInvalidOrExpired()
	}
	user, err := s.users.FindByTokenHash(ctx, kind, security.HashToken(token), s.now())
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenInvalidOrExpired()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup token")
	}
	return user, nil
}

// consume clears the token and writes fields in one conditional update, so
// of two requests racing on the same token only one applies its effect.
func (s *service) consume(ctx context.Context, kind enums.TokenKind, userID uuid.UUID, token string, fields map[string]any) error {
	ok, err := s.users.ConsumeToken(ctx, kind, userID, security.HashToken(token), s.now(), fields)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "consume token")
	}
	if !ok {
		return ErrTokenInvalidOrExpired()
	}
	return nil
}

// issueSingleUseToken stores the hash of a fresh token on the account and
// queues the plaintext for out-of-band delivery in the same transaction.
func (s *service) issueSingleUseToken(ctx context.Context, tx *gorm.DB, repo *users.Repository, user *models.User, kind enums.TokenKind) error {
	plain, err := security.GenerateToken(security.SingleUseTokenBytes)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generate token")
	}
	hash := security.HashToken(plain)
	expires := s.now().UTC().Add(s.tokenTTL(kind))

	eventType := enums.EventPasswordResetRequested
	if kind == enums.TokenKindEmailVerification {
		user.EmailVerificationTokenHash = &hash
		user.EmailVerificationExpires = &expires
		eventType = enums.EventEmailVerificationRequested
	} else {
		user.PasswordResetTokenHash = &hash
		user.PasswordResetExpires = &expires
	}
	if err := repo.SaveTokenState(ctx, user); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save token")
	}

	err = s.outbox.Emit(ctx, tx, outbox.DomainEvent{
		EventType:     eventType,
		AggregateType: enums.AggregateAccount,
		AggregateID:   user.ID,
		Actor:         &outbox.ActorRef{UserID: user.ID, Role: user.Role.String()},
		Data: payloads.AccountTokenEvent{
			UserID:    user.ID,
			Email:     user.Email,
			FirstName: user.FirstName,
			Kind:      kind,
			Token:     plain,
			ExpiresAt: expires,
		},
	})
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "queue token event")
	}
	return nil
}

func (s *service) tokenTTL(kind enums.TokenKind) time.Duration {
	if kind == enums.TokenKindEmailVerification {
		if s.tokensCfg.EmailVerificationTTL > 0 {
			return s.tokensCfg.EmailVerificationTTL
		}
		return 24 * time.Hour
	}
	if s.tokensCfg.PasswordResetTTL > 0 {
		return s.tokensCfg.PasswordResetTTL
	}
	return 10 * time.Minute
}
