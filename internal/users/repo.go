package users

import (
	"context"
	"maps"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/pagination"
)

// Repository exposes user-related persistence operations.
type Repository struct {
	db *gorm.DB
}

// NewRepository constructs a users repo bound to the provided GORM DB.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// WithTx returns a repository bound to tx.
func (r *Repository) WithTx(tx *gorm.DB) *Repository {
	return &Repository{db: tx}
}

// Create inserts a new user. Email is normalized to lower case.
func (r *Repository) Create(ctx context.Context, user *models.User) error {
	user.Email = NormalizeEmail(user.Email)
	return r.db.WithContext(ctx).Create(user).Error
}

// FindByEmail retrieves the user matching the provided email, case-insensitively.
func (r *Repository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).Where("email = ?", NormalizeEmail(email)).First(&user).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by their UUID.
func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	var user models.User
	if err := r.db.WithContext(ctx).First(&user, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByTokenHash returns the account holding an unexpired token of kind.
func (r *Repository) FindByTokenHash(ctx context.Context, kind enums.TokenKind, hash string, now time.Time) (*models.User, error) {
	hashCol, expCol := tokenColumns(kind)
	var user models.User
	err := r.db.WithContext(ctx).
		Where(hashCol+" = ? AND "+expCol+" > ?", hash, now.UTC()).
		First(&user).Error
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ConsumeToken clears the token of kind on account id and applies fields in
// the same statement, but only while hash is still stored and unexpired. It
// reports false when another request already used it or it lapsed.
func (r *Repository) ConsumeToken(ctx context.Context, kind enums.TokenKind, id uuid.UUID, hash string, now time.Time, fields map[string]any) (bool, error) {
	hashCol, expCol := tokenColumns(kind)
	updates := map[string]any{hashCol: nil, expCol: nil}
	maps.Copy(updates, fields)
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ? AND "+hashCol+" = ? AND "+expCol+" > ?", id, hash, now.UTC()).
		Updates(updates)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

// SaveSecurityState persists the login counter, lock and last login.
func (r *Repository) SaveSecurityState(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]any{
			"login_attempts": u.LoginAttempts,
			"lock_until":     u.LockUntil,
			"last_login_at":  u.LastLoginAt,
		}).Error
}

// SaveTokenState persists both single-use token slots.
func (r *Repository) SaveTokenState(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]any{
			"password_reset_token_hash":     u.PasswordResetTokenHash,
			"password_reset_expires":        u.PasswordResetExpires,
			"email_verification_token_hash": u.EmailVerificationTokenHash,
			"email_verification_expires":    u.EmailVerificationExpires,
			"is_email_verified":             u.IsEmailVerified,
		}).Error
}

// SaveCredentials persists a password change.
func (r *Repository) SaveCredentials(ctx context.Context, u *models.User) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", u.ID).
		Updates(map[string]any{
			"password_hash":       u.PasswordHash,
			"password_changed_at": u.PasswordChangedAt,
		}).Error
}

// UpdatePasswordHash swaps the stored hash without touching passwordChangedAt,
// used when an imported bcrypt hash is upgraded on login.
func (r *Repository) UpdatePasswordHash(ctx context.Context, id uuid.UUID, hash string) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		UpdateColumn("password_hash", hash).Error
}

// UpdateFields applies a partial profile update.
func (r *Repository) UpdateFields(ctx context.Context, id uuid.UUID, fields map[string]any) error {
	if len(fields) == 0 {
		return nil
	}
	res := r.db.WithContext(ctx).Model(&models.User{}).Where("id = ?", id).Updates(fields)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// RecordOrderPayment adds a paid order to the account totals.
func (r *Repository) RecordOrderPayment(ctx context.Context, id uuid.UUID, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"total_spent": gorm.Expr("total_spent + ?", amount),
			"order_count": gorm.Expr("order_count + 1"),
		}).Error
}

// ListFilters narrows the admin account listing.
type ListFilters struct {
	Role   *enums.Role
	Active *bool
	Search string
}

// List returns one page of accounts, newest first, plus the total count.
func (r *Repository) List(ctx context.Context, filters ListFilters, page pagination.Page) ([]models.User, int64, error) {
	q := r.db.WithContext(ctx).Model(&models.User{})
	if filters.Role != nil {
		q = q.Where("role = ?", *filters.Role)
	}
	if filters.Active != nil {
		q = q.Where("is_active = ?", *filters.Active)
	}
	if s := strings.TrimSpace(filters.Search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		q = q.Where("LOWER(email) LIKE ? OR LOWER(first_name) LIKE ? OR LOWER(last_name) LIKE ?", like, like, like)
	}

	var total int64
	if err := q.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.User
	page = page.Normalize()
	err := q.Order("created_at DESC").
		Offset(page.Offset()).
		Limit(page.Limit).
		Find(&rows).Error
	return rows, total, err
}

// ClearExpiredTokens drops token hashes of kind whose expiry is at or before now.
func (r *Repository) ClearExpiredTokens(ctx context.Context, kind enums.TokenKind, now time.Time) (int64, error) {
	hashCol, expCol := tokenColumns(kind)
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where(hashCol+" IS NOT NULL AND "+expCol+" <= ?", now.UTC()).
		Updates(map[string]any{hashCol: nil, expCol: nil})
	return res.RowsAffected, res.Error
}

// ReleaseExpiredLocks resets the failed-login counter on accounts whose lock
// has lapsed.
func (r *Repository) ReleaseExpiredLocks(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).
		Model(&models.User{}).
		Where("lock_until IS NOT NULL AND lock_until <= ?", now.UTC()).
		Updates(map[string]any{"login_attempts": 0, "lock_until": nil})
	return res.RowsAffected, res.Error
}

// NormalizeEmail is the canonical, case-insensitive form of an email.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func tokenColumns(kind enums.TokenKind) (string, string) {
	if kind == enums.TokenKindEmailVerification {
		return "email_verification_token_hash", "email_verification_expires"
	}
	return "password_reset_token_hash", "password_reset_expires"
}

// AccountTotals records paid orders on the buyer inside the caller's transaction.
type AccountTotals struct {
	repo *Repository
}

func NewAccountTotals(repo *Repository) AccountTotals {
	return AccountTotals{repo: repo}
}

func (a AccountTotals) RecordOrderPayment(ctx context.Context, tx *gorm.DB, userID uuid.UUID, amount decimal.Decimal) error {
	return a.repo.WithTx(tx).RecordOrderPayment(ctx, userID, amount)
}
