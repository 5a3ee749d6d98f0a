package auth

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/seramic/shop-backend/internal/users"
	pkgAuth "github.com/seramic/shop-backend/pkg/auth"
	"github.com/seramic/shop-backend/pkg/config"
	"github.com/seramic/shop-backend/pkg/db/dbtest"
	"github.com/seramic/shop-backend/pkg/db/models"
	"github.com/seramic/shop-backend/pkg/enums"
	pkgerrors "github.com/seramic/shop-backend/pkg/errors"
	"github.com/seramic/shop-backend/pkg/outbox"
	"github.com/seramic/shop-backend/pkg/outbox/payloads"
)

const strongPassword = "Ceramic123"

type harness struct {
	svc  *service
	conn *gorm.DB
	jwt  config.JWTConfig
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	client := dbtest.Client(t)
	jwtCfg := config.JWTConfig{Secret: "test-secret", Issuer: "seramic", ExpirationMinutes: 600}
	built, err := NewService(ServiceParams{
		DB:             client,
		Outbox:         outbox.NewService(outbox.NewRepository(client.DB()), nil),
		JWTConfig:      jwtCfg,
		PasswordConfig: config.PasswordConfig{ArgonMemoryKB: 64, ArgonTime: 1, ArgonParallelism: 1, ArgonSaltLen: 16, ArgonKeyLen: 32},
		TokensConfig:   config.TokensConfig{PasswordResetTTL: 10 * time.Minute, EmailVerificationTTL: 24 * time.Hour},
		Lockout:        config.LockoutConfig{MaxAttempts: 5, LockDuration: 2 * time.Hour},
	})
	require.NoError(t, err)
	return &harness{svc: built.(*service), conn: client.DB(), jwt: jwtCfg}
}

func (h *harness) setClock(t time.Time) {
	h.svc.now = func() time.Time { return t }
}

func (h *harness) register(t *testing.T, email string) *Session {
	t.Helper()
	session, err := h.svc.Register(context.Background(), RegisterRequest{
		FirstName:       "Mira",
		LastName:        "Potter",
		Email:           email,
		Password:        strongPassword,
		PasswordConfirm: strongPassword,
	})
	require.NoError(t, err)
	return session
}

func (h *harness) tokenEvents(t *testing.T, eventType enums.OutboxEventType) []payloads.AccountTokenEvent {
	t.Helper()
	var rows []models.OutboxEvent
	require.NoError(t, h.conn.Where("event_type = ?", eventType).Order("created_at ASC").Find(&rows).Error)
	out := make([]payloads.AccountTokenEvent, 0, len(rows))
	for _, row := range rows {
		var env outbox.PayloadEnvelope
		require.NoError(t, json.Unmarshal(row.Payload, &env))
		var ev payloads.AccountTokenEvent
		require.NoError(t, json.Unmarshal(env.Data, &ev))
		out = append(out, ev)
	}
	return out
}

func requireCode(t *testing.T, err error, code pkgerrors.Code) {
	t.Helper()
	require.Error(t, err)
	typed := pkgerrors.As(err)
	require.NotNil(t, typed, "expected typed error, got %v", err)
	assert.Equal(t, code, typed.Code())
}

func TestRegisterIssuesSessionAndVerificationToken(t *testing.T) {
	h := newHarness(t)
	session := h.register(t, "  Mira@Example.com ")

	claims, err := pkgAuth.ParseSessionToken(h.jwt, session.Token)
	require.NoError(t, err)
	assert.Equal(t, "mira@example.com", claims.User.Email)
	assert.Equal(t, "Mira Potter", claims.User.Name)
	assert.Equal(t, enums.RoleCustomer, claims.User.Role)

	events := h.tokenEvents(t, enums.EventEmailVerificationRequested)
	require.Len(t, events, 1)
	assert.Equal(t, enums.TokenKindEmailVerification, events[0].Kind)
	assert.Len(t, events[0].Token, 64)

	stored, err := users.NewRepository(h.conn).FindByEmail(context.Background(), "mira@example.com")
	require.NoError(t, err)
	require.NotNil(t, stored.EmailVerificationTokenHash)
	assert.NotEqual(t, events[0].Token, *stored.EmailVerificationTokenHash)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
	assert.Nil(t, stored.PasswordChangedAt)
}

func TestRegisterValidation(t *testing.T) {
	h := newHarness(t)
	h.register(t, "taken@example.com")

	cases := []struct {
		name string
		req  RegisterRequest
		code pkgerrors.Code
	}{
		{"mismatch", RegisterRequest{FirstName: "A", LastName: "B", Email: "a@example.com", Password: strongPassword, PasswordConfirm: "Ceramic124"}, pkgerrors.CodeValidation},
		{"weak", RegisterRequest{FirstName: "A", LastName: "B", Email: "a@example.com", Password: "ceramics", PasswordConfirm: "ceramics"}, pkgerrors.CodeValidation},
		{"duplicate", RegisterRequest{FirstName: "A", LastName: "B", Email: "TAKEN@example.com", Password: strongPassword, PasswordConfirm: strongPassword}, pkgerrors.CodeConflict},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := h.svc.Register(context.Background(), tc.req)
			requireCode(t, err, tc.code)
		})
	}
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	h := newHarness(t)
	h.register(t, "lock@example.com")
	ctx := context.Background()
	start := time.Now().Add(-3 * time.Hour).UTC()
	h.setClock(start)

	for i := 0; i < 5; i++ {
		_, err := h.svc.Login(ctx, LoginRequest{Email: "lock@example.com", Password: "Wrong1234"})
		requireCode(t, err, pkgerrors.CodeUnauthorized)
	}

	_, err := h.svc.Login(ctx, LoginRequest{Email: "lock@example.com", Password: strongPassword})
	requireCode(t, err, pkgerrors.CodeAccountLocked)

	// lock expires two hours after the fifth failure
	h.setClock(start.Add(2*time.Hour + time.Minute))
	session, err := h.svc.Login(ctx, LoginRequest{Email: "LOCK@example.com", Password: strongPassword})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	stored, err := users.NewRepository(h.conn).FindByEmail(ctx, "lock@example.com")
	require.NoError(t, err)
	assert.Equal(t, 0, stored.LoginAttempts)
	assert.Nil(t, stored.LockUntil)
	assert.NotNil(t, stored.LastLoginAt)
}

func TestLoginUnknownEmailAndDeactivated(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	_, err := h.svc.Login(ctx, LoginRequest{Email: "ghost@example.com", Password: strongPassword})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	h.register(t, "inactive@example.com")
	require.NoError(t, h.conn.Model(&models.User{}).Where("email = ?", "inactive@example.com").Update("is_active", false).Error)

	_, err = h.svc.Login(ctx, LoginRequest{Email: "inactive@example.com", Password: strongPassword})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	assert.Equal(t, deactivatedMessage, pkgerrors.As(err).Message())
}

func TestLoginUpgradesBcryptHash(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	legacy, err := bcrypt.GenerateFromPassword([]byte(strongPassword), bcrypt.MinCost)
	require.NoError(t, err)
	require.NoError(t, users.NewRepository(h.conn).Create(ctx, &models.User{
		Email:        "legacy@example.com",
		PasswordHash: string(legacy),
		FirstName:    "Old",
		LastName:     "Account",
		Role:         enums.RoleCustomer,
		IsActive:     true,
	}))

	_, err = h.svc.Login(ctx, LoginRequest{Email: "legacy@example.com", Password: strongPassword})
	require.NoError(t, err)

	stored, err := users.NewRepository(h.conn).FindByEmail(ctx, "legacy@example.com")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stored.PasswordHash, "$argon2id$"))
}

func TestUpdatePasswordInvalidatesOlderSessions(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.setClock(time.Now().Add(-time.Hour))
	old := h.register(t, "rotate@example.com")

	user, err := h.svc.VerifySession(ctx, old.Token)
	require.NoError(t, err)

	_, err = h.svc.UpdatePassword(ctx, user.ID, UpdatePasswordRequest{
		PasswordCurrent: "NotMine123",
		Password:        "Glazed4567",
		PasswordConfirm: "Glazed4567",
	})
	requireCode(t, err, pkgerrors.CodeUnauthorized)

	h.setClock(time.Now())
	fresh, err := h.svc.UpdatePassword(ctx, user.ID, UpdatePasswordRequest{
		PasswordCurrent: strongPassword,
		Password:        "Glazed4567",
		PasswordConfirm: "Glazed4567",
	})
	require.NoError(t, err)

	_, err = h.svc.VerifySession(ctx, old.Token)
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	assert.Contains(t, pkgerrors.As(err).Message(), "recently changed password")

	_, err = h.svc.VerifySession(ctx, fresh.Token)
	require.NoError(t, err)
}

func TestVerifySessionRejectsGarbage(t *testing.T) {
	h := newHarness(t)
	_, err := h.svc.VerifySession(context.Background(), "not-a-jwt")
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	assert.Equal(t, ErrTokenInvalid().Message(), pkgerrors.As(err).Message())
}

func TestVerifySessionExpired(t *testing.T) {
	h := newHarness(t)
	h.setClock(time.Now().Add(-24 * time.Hour))
	session := h.register(t, "kiln@example.com")

	_, err := h.svc.VerifySession(context.Background(), session.Token)
	requireCode(t, err, pkgerrors.CodeUnauthorized)
	assert.Equal(t, ErrSessionExpired().Message(), pkgerrors.As(err).Message())
}

func TestForgotAndResetPassword(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "reset@example.com")

	requireCode(t, h.svc.ForgotPassword(ctx, "nobody@example.com"), pkgerrors.CodeNotFound)
	require.NoError(t, h.svc.ForgotPassword(ctx, "Reset@example.com"))

	events := h.tokenEvents(t, enums.EventPasswordResetRequested)
	require.Len(t, events, 1)
	token := events[0].Token

	_, err := h.svc.ResetPassword(ctx, token, ResetPasswordRequest{Password: "Kiln98765", PasswordConfirm: "Kiln9876"})
	requireCode(t, err, pkgerrors.CodeValidation)

	session, err := h.svc.ResetPassword(ctx, token, ResetPasswordRequest{Password: "Kiln98765", PasswordConfirm: "Kiln98765"})
	require.NoError(t, err)
	require.NotEmpty(t, session.Token)

	_, err = h.svc.ResetPassword(ctx, token, ResetPasswordRequest{Password: "Kiln98765", PasswordConfirm: "Kiln98765"})
	requireCode(t, err, pkgerrors.CodeValidation)
	assert.Equal(t, "Token is invalid or has expired", pkgerrors.As(err).Message())

	_, err = h.svc.Login(ctx, LoginRequest{Email: "reset@example.com", Password: "Kiln98765"})
	require.NoError(t, err)
}

func TestConcurrentResetsConsumeTokenOnce(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "race@example.com")
	require.NoError(t, h.svc.ForgotPassword(ctx, "race@example.com"))
	token := h.tokenEvents(t, enums.EventPasswordResetRequested)[0].Token

	passwords := []string{"Kiln11111", "Kiln22222"}
	errs := make([]error, len(passwords))
	var wg sync.WaitGroup
	for i, password := range passwords {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, errs[i] = h.svc.ResetPassword(ctx, token, ResetPasswordRequest{Password: password, PasswordConfirm: password})
		}()
	}
	wg.Wait()

	winner := -1
	for i, err := range errs {
		if err == nil {
			require.Equal(t, -1, winner, "token was consumed twice")
			winner = i
			continue
		}
		requireCode(t, err, pkgerrors.CodeValidation)
		assert.Equal(t, "Token is invalid or has expired", pkgerrors.As(err).Message())
	}
	require.NotEqual(t, -1, winner)

	_, err := h.svc.Login(ctx, LoginRequest{Email: "race@example.com", Password: passwords[winner]})
	require.NoError(t, err)
	_, err = h.svc.Login(ctx, LoginRequest{Email: "race@example.com", Password: passwords[1-winner]})
	requireCode(t, err, pkgerrors.CodeUnauthorized)
}

func TestResetTokenExpires(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.register(t, "late@example.com")
	issued := time.Now().UTC()
	h.setClock(issued)
	require.NoError(t, h.svc.ForgotPassword(ctx, "late@example.com"))
	token := h.tokenEvents(t, enums.EventPasswordResetRequested)[0].Token

	h.setClock(issued.Add(11 * time.Minute))
	_, err := h.svc.ResetPassword(ctx, token, ResetPasswordRequest{Password: "Kiln98765", PasswordConfirm: "Kiln98765"})
	requireCode(t, err, pkgerrors.CodeValidation)
}

func TestVerifyEmailAndResend(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	session := h.register(t, "verify@example.com")
	user, err := h.svc.VerifySession(ctx, session.Token)
	require.NoError(t, err)

	require.NoError(t, h.svc.ResendVerification(ctx, user.ID))
	events := h.tokenEvents(t, enums.EventEmailVerificationRequested)
	require.Len(t, events, 2)

	// the resend replaced the first token
	requireCode(t, h.svc.VerifyEmail(ctx, events[0].Token), pkgerrors.CodeValidation)
	require.NoError(t, h.svc.VerifyEmail(ctx, events[1].Token))

	stored, err := users.NewRepository(h.conn).FindByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, stored.IsEmailVerified)
	assert.Nil(t, stored.EmailVerificationTokenHash)

	requireCode(t, h.svc.ResendVerification(ctx, user.ID), pkgerrors.CodeStateConflict)
}
