package users

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/pkg/db/dbtest"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/pagination"
)

func newUser(email string) *models.User {
	return &models.User{
		Email:        email,
		PasswordHash: "hash",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Role:         enums.RoleCustomer,
		IsActive:     true,
	}
}

func TestRepositoryCreateNormalizesEmail(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()

	user := newUser("  Ada@Example.COM ")
	require.NoError(t, repo.Create(ctx, user))
	assert.NotEqual(t, uuid.Nil, user.ID)

	found, err := repo.FindByEmail(ctx, "ADA@example.com")
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", found.Email)

	_, err = repo.FindByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositorySecurityAndTokenState(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	user := newUser("grace@example.com")
	require.NoError(t, repo.Create(ctx, user))

	lock := time.Now().Add(time.Hour).UTC()
	user.LoginAttempts = 5
	user.LockUntil = &lock
	require.NoError(t, repo.SaveSecurityState(ctx, user))

	hash := "abc123"
	expires := time.Now().Add(10 * time.Minute).UTC()
	user.PasswordResetTokenHash = &hash
	user.PasswordResetExpires = &expires
	require.NoError(t, repo.SaveTokenState(ctx, user))

	found, err := repo.FindByTokenHash(ctx, enums.TokenKindPasswordReset, hash, time.Now())
	require.NoError(t, err)
	assert.Equal(t, user.ID, found.ID)
	assert.Equal(t, 5, found.LoginAttempts)
	require.NotNil(t, found.LockUntil)

	_, err = repo.FindByTokenHash(ctx, enums.TokenKindPasswordReset, hash, time.Now().Add(time.Hour))
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "expired tokens must not match")

	_, err = repo.FindByTokenHash(ctx, enums.TokenKindEmailVerification, hash, time.Now())
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound, "token kinds are separate slots")
}

func TestRepositoryConsumeTokenOnlyOnce(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	user := newUser("clay@example.com")
	require.NoError(t, repo.Create(ctx, user))

	now := time.Now().UTC()
	hash := "reset-hash"
	expires := now.Add(10 * time.Minute)
	user.PasswordResetTokenHash = &hash
	user.PasswordResetExpires = &expires
	require.NoError(t, repo.SaveTokenState(ctx, user))

	// both callers resolved the token before either consumed it
	for _, name := range []string{"first", "second"} {
		found, err := repo.FindByTokenHash(ctx, enums.TokenKindPasswordReset, hash, now)
		require.NoError(t, err, name)
		assert.Equal(t, user.ID, found.ID)
	}

	ok, err := repo.ConsumeToken(ctx, enums.TokenKindPasswordReset, user.ID, hash, now, map[string]any{"password_hash": "first"})
	require.NoError(t, err)
	assert.True(t, ok)
	ok, err = repo.ConsumeToken(ctx, enums.TokenKindPasswordReset, user.ID, hash, now, map[string]any{"password_hash": "second"})
	require.NoError(t, err)
	assert.False(t, ok)

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "first", stored.PasswordHash)
	assert.Nil(t, stored.PasswordResetTokenHash)
	assert.Nil(t, stored.PasswordResetExpires)
}

func TestRepositoryConsumeTokenRejectsExpiredAndWrongKind(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	user := newUser("glaze@example.com")
	require.NoError(t, repo.Create(ctx, user))

	now := time.Now().UTC()
	hash := "verify-hash"
	expires := now.Add(time.Minute)
	user.EmailVerificationTokenHash = &hash
	user.EmailVerificationExpires = &expires
	require.NoError(t, repo.SaveTokenState(ctx, user))

	ok, err := repo.ConsumeToken(ctx, enums.TokenKindPasswordReset, user.ID, hash, now, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ConsumeToken(ctx, enums.TokenKindEmailVerification, user.ID, hash, now.Add(2*time.Minute), nil)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = repo.ConsumeToken(ctx, enums.TokenKindEmailVerification, user.ID, hash, now, map[string]any{"is_email_verified": true})
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsEmailVerified)
	assert.Nil(t, stored.EmailVerificationTokenHash)
}

func TestRepositoryRecordOrderPayment(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	user := newUser("buyer@example.com")
	require.NoError(t, repo.Create(ctx, user))

	require.NoError(t, repo.RecordOrderPayment(ctx, user.ID, decimal.RequireFromString("19.50")))
	require.NoError(t, repo.RecordOrderPayment(ctx, user.ID, decimal.RequireFromString("5.50")))

	found, err := repo.FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, found.TotalSpent.Equal(decimal.NewFromInt(25)), "got %s", found.TotalSpent)
	assert.Equal(t, 2, found.OrderCount)
}

func TestRepositoryListFiltersAndPages(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	for _, email := range []string{"a@example.com", "b@example.com", "c@example.com"} {
		require.NoError(t, repo.Create(ctx, newUser(email)))
	}
	admin := newUser("boss@example.com")
	admin.Role = enums.RoleAdmin
	require.NoError(t, repo.Create(ctx, admin))
	require.NoError(t, repo.UpdateFields(ctx, admin.ID, map[string]any{"is_active": false}))

	rows, total, err := repo.List(ctx, ListFilters{}, pagination.Page{Page: 1, Limit: 2})
	require.NoError(t, err)
	assert.EqualValues(t, 4, total)
	assert.Len(t, rows, 2)

	role := enums.RoleAdmin
	rows, total, err = repo.List(ctx, ListFilters{Role: &role}, pagination.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
	assert.Equal(t, admin.ID, rows[0].ID)
	assert.False(t, rows[0].IsActive)

	active := true
	_, total, err = repo.List(ctx, ListFilters{Active: &active, Search: "B@"}, pagination.Page{})
	require.NoError(t, err)
	assert.EqualValues(t, 1, total)
}

func TestRepositoryUpdateFieldsMissingUser(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	err := repo.UpdateFields(context.Background(), uuid.New(), map[string]any{"first_name": "x"})
	assert.ErrorIs(t, err, gorm.ErrRecordNotFound)
}

func TestRepositorySweepsExpiredTokensAndLocks(t *testing.T) {
	repo := NewRepository(dbtest.Open(t))
	ctx := context.Background()
	now := time.Now().UTC()
	past, future := now.Add(-time.Hour), now.Add(time.Hour)
	stale, fresh := "stale", "fresh"

	expired := newUser("expired@example.com")
	require.NoError(t, repo.Create(ctx, expired))
	expired.PasswordResetTokenHash, expired.PasswordResetExpires = &stale, &past
	expired.LoginAttempts, expired.LockUntil = 5, &past
	require.NoError(t, repo.SaveTokenState(ctx, expired))
	require.NoError(t, repo.SaveSecurityState(ctx, expired))

	live := newUser("live@example.com")
	require.NoError(t, repo.Create(ctx, live))
	live.PasswordResetTokenHash, live.PasswordResetExpires = &fresh, &future
	live.LoginAttempts, live.LockUntil = 5, &future
	require.NoError(t, repo.SaveTokenState(ctx, live))
	require.NoError(t, repo.SaveSecurityState(ctx, live))

	cleared, err := repo.ClearExpiredTokens(ctx, enums.TokenKindPasswordReset, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, cleared)

	released, err := repo.ReleaseExpiredLocks(ctx, now)
	require.NoError(t, err)
	assert.EqualValues(t, 1, released)

	got, err := repo.FindByID(ctx, expired.ID)
	require.NoError(t, err)
	assert.Nil(t, got.PasswordResetTokenHash)
	assert.Nil(t, got.LockUntil)
	assert.Zero(t, got.LoginAttempts)

	got, err = repo.FindByID(ctx, live.ID)
	require.NoError(t, err)
	require.NotNil(t, got.PasswordResetTokenHash)
	assert.Equal(t, fresh, *got.PasswordResetTokenHash)
	assert.Equal(t, 5, got.LoginAttempts)
}
