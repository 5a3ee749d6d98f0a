package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/internal/accounts"
	"github.com/seramic/shop-backend/internal/users"
	pkgAuth "github.com/seramic/shop-backend/pkg/auth"
	"github.com/seramic/shop-backend/pkg/config"
	"github.com/seramic/shop-backend/pkg/db"
	"github.com/seramic/shop-backend/pkg/db/models"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/logger"
	"github.com/seramic/shop-backend/pkg/metrics"
	"github.com/seramic/shop-backend/pkg/outbox"
	"github.com/seramic/shop-backend/pkg/security"
)

// Service defines the behavior needed by the auth controller and middleware.
type Service interface {
	Register(ctx context.Context, req RegisterRequest) (*Session, error)
	Login(ctx context.Context, req LoginRequest) (*Session, error)
	VerifySession(ctx context.Context, token string) (*models.User, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, token string, req ResetPasswordRequest) (*Session, error)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, userID uuid.UUID) error
	UpdatePassword(ctx context.Context, userID uuid.UUID, req UpdatePasswordRequest) (*Session, error)
}

// ServiceParams bundles the dependencies required to build an auth service.
type ServiceParams struct {
	DB             *db.Client
	Outbox         outbox.Emitter
	JWTConfig      config.JWTConfig
	PasswordConfig config.PasswordConfig
	TokensConfig   config.TokensConfig
	Lockout        config.LockoutConfig
	Metrics        *metrics.DomainMetrics
	Logger         *logger.Logger
}

type service struct {
	db          *db.Client
	users       *users.Repository
	tracker     *accounts.Tracker
	outbox      outbox.Emitter
	jwtCfg      config.JWTConfig
	passwordCfg config.PasswordConfig
	tokensCfg   config.TokensConfig
	metrics     *metrics.DomainMetrics
	logg        *logger.Logger
	now         func() time.Time
}

// NewService constructs the credential and token issuer.
func NewService(params ServiceParams) (Service, error) {
	if params.DB == nil {
		return nil, fmt.Errorf("database client required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox emitter required")
	}
	if params.JWTConfig.Secret == "" {
		return nil, fmt.Errorf("jwt secret required")
	}
	repo := users.NewRepository(params.DB.DB())
	tracker, err := accounts.NewTracker(repo, accounts.PolicyFromConfig(params.Lockout))
	if err != nil {
		return nil, err
	}
	svc := &service{
		db:          params.DB,
		users:       repo,
		outbox:      params.Outbox,
		jwtCfg:      params.JWTConfig,
		passwordCfg: params.PasswordConfig,
		tokensCfg:   params.TokensConfig,
		metrics:     params.Metrics,
		logg:        params.Logger,
		now:         time.Now,
	}
	svc.tracker = tracker.WithClock(func() time.Time { return svc.now() })
	return svc, nil
}

func (s *service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	if req.Email == "" || req.Password == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "Please provide email and password!")
	}

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			s.metrics.LoginAttempt(metrics.LoginInvalid)
			return nil, ErrInvalidCredentials()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "lookup user")
	}

	if s.tracker.IsLocked(user) {
		s.metrics.LoginAttempt(metrics.LoginLocked)
		return nil, ErrAccountLocked()
	}

	ok, err := security.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil && !errors.Is(err, security.ErrInvalidHash) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		lockedNow, err := s.tracker.RecordFailedLogin(ctx, user)
		if err != nil {
			return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "record failed login")
		}
		s.metrics.LoginAttempt(metrics.LoginInvalid)
		if lockedNow {
			s.metrics.AccountLocked()
			s.warn(ctx, user.ID, "account locked after failed logins")
		}
		return nil, ErrInvalidCredentials()
	}

	if !user.IsActive {
		s.metrics.LoginAttempt(metrics.LoginDeactivated)
		return nil, ErrAccountDeactivated()
	}

	if err := s.tracker.ResetOnSuccess(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "reset login state")
	}
	if security.NeedsRehash(user.PasswordHash, s.passwordCfg) {
		s.upgradeHash(ctx, user, req.Password)
	}
	s.metrics.LoginAttempt(metrics.LoginSuccess)

	return s.issueSession(user)
}

// upgradeHash replaces an imported bcrypt hash, or one made with weaker
// argon2 settings, after a successful login. A failure only costs the
// upgrade, never the login.
func (s *service) upgradeHash(ctx context.Context, user *models.User, password string) {
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err == nil {
		err = s.users.UpdatePasswordHash(ctx, user.ID, hash)
	}
	if err != nil {
		if s.logg != nil {
			s.logg.Error(s.logg.WithUserID(ctx, user.ID.String()), "password rehash failed", err)
		}
		return
	}
	user.PasswordHash = hash
}

func (s *service) VerifySession(ctx context.Context, token string) (*models.User, error) {
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "You are not logged in! Please log in to get access.")
	}
	claims, err := pkgAuth.ParseSessionToken(s.jwtCfg, token)
	if errors.Is(err, pkgAuth.ErrSessionExpired) {
		return nil, ErrSessionExpired()
	}
	if err != nil {
		return nil, ErrTokenInvalid()
	}

	user, err := s.users.FindByID(ctx, claims.User.ID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenInvalid()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load session user")
	}
	if user.PasswordChangedAt != nil && claims.IssuedBefore(*user.PasswordChangedAt) {
		return nil, ErrPasswordChangedSinceIssue()
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated()
	}
	return user, nil
}

func (s *service) UpdatePassword(ctx context.Context, userID uuid.UUID, req UpdatePasswordRequest) (*Session, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTokenInvalid()
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "load user")
	}
	ok, err := security.VerifyPassword(req.PasswordCurrent, user.PasswordHash)
	if err != nil && !errors.Is(err, security.ErrInvalidHash) {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "verify password")
	}
	if !ok {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "Your current password is wrong.")
	}
	if err := s.changePassword(user, req.Password, req.PasswordConfirm); err != nil {
		return nil, err
	}
	if err := s.users.SaveCredentials(ctx, user); err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "save password")
	}
	return s.issueSession(user)
}

// changePassword validates and hashes the new password and stamps
// passwordChangedAt one second in the past so the session minted right after
// still passes the issued-at check.
func (s *service) changePassword(user *models.User, password, confirm string) error {
	if err := validateNewPassword(password, confirm); err != nil {
		return err
	}
	hash, err := security.HashPassword(password, s.passwordCfg)
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "hash password")
	}
	changedAt := s.now().UTC().Add(-time.Second)
	user.PasswordHash = hash
	user.PasswordChangedAt = &changedAt
	return nil
}

func validateNewPassword(password, confirm string) error {
	if password != confirm {
		return pkgerrors.New(pkgerrors.CodeValidation, "Passwords are not the same!").
			WithDetails(map[string]string{"passwordConfirm": "must match password"})
	}
	if err := security.ValidatePasswordStrength(password); err != nil {
		return pkgerrors.New(pkgerrors.CodeValidation, err.Error()).
			WithDetails(map[string]string{"password": err.Error()})
	}
	return nil
}

func (s *service) issueSession(user *models.User) (*Session, error) {
	now := s.now()
	token, err := pkgAuth.MintSessionToken(s.jwtCfg, now, pkgAuth.SessionIdentity{
		ID:    user.ID,
		Name:  user.FullName(),
		Email: user.Email,
		Role:  user.Role,
	})
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mint session token")
	}
	return &Session{
		Token:     token,
		ExpiresAt: now.Add(s.jwtCfg.Expiration()),
		User: SessionUser{
			ID:    user.ID.String(),
			Name:  user.FullName(),
			Email: user.Email,
			Role:  user.Role.String(),
		},
		Account: users.FromModel(user),
	}, nil
}

func (s *service) warn(ctx context.Context, userID uuid.UUID, msg string) {
	if s.logg == nil {
		return
	}
	s.logg.Warn(s.logg.WithUserID(ctx, userID.String()), msg)
}
