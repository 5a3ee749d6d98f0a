// Package accounts holds the login security state machine: failed attempt
// counting, temporary lockout and reset on success.
package accounts

import (
	"context"
	"errors"
	"time"

	"github.com/seramic/shop-backend/pkg/config"
	"github.com/seramic/shop-backend/pkg/db/models"
)

const (
	DefaultMaxAttempts  = 5
	DefaultLockDuration = 2 * time.Hour
)

// Policy is the lockout threshold and duration.
type Policy struct {
	MaxAttempts  int
	LockDuration time.Duration
}

func PolicyFromConfig(cfg config.LockoutConfig) Policy {
	p := Policy{MaxAttempts: cfg.MaxAttempts, LockDuration: cfg.LockDuration}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = DefaultMaxAttempts
	}
	if p.LockDuration <= 0 {
		p.LockDuration = DefaultLockDuration
	}
	return p
}

// IsLocked reports whether the account has a lock expiring after now.
func IsLocked(u *models.User, now time.Time) bool {
	return u != nil && u.LockUntil != nil && u.LockUntil.After(now)
}

// ApplyFailedLogin mutates the security state for one failed attempt and
// reports whether this attempt placed a new lock.
func (p Policy) ApplyFailedLogin(u *models.User, now time.Time) bool {
	if u.LockUntil != nil && !u.LockUntil.After(now) {
		u.LockUntil = nil
		u.LoginAttempts = 1
		return false
	}
	u.LoginAttempts++
	if u.LoginAttempts >= p.MaxAttempts && !IsLocked(u, now) {
		until := now.Add(p.LockDuration)
		u.LockUntil = &until
		return true
	}
	return false
}

// ApplySuccessfulLogin clears the counter and lock and stamps the login time.
func ApplySuccessfulLogin(u *models.User, now time.Time) {
	u.LoginAttempts = 0
	u.LockUntil = nil
	at := now
	u.LastLoginAt = &at
}

// StateStore persists the security columns of an account.
type StateStore interface {
	SaveSecurityState(ctx context.Context, u *models.User) error
}

// Tracker applies the policy and persists the result.
type Tracker struct {
	store  StateStore
	policy Policy
	now    func() time.Time
}

func NewTracker(store StateStore, policy Policy) (*Tracker, error) {
	if store == nil {
		return nil, errors.New("security state store is required")
	}
	return &Tracker{store: store, policy: policy, now: time.Now}, nil
}

// RecordFailedLogin counts a failed attempt; lockedNow is true when this
// attempt crossed the threshold.
func (t *Tracker) RecordFailedLogin(ctx context.Context, u *models.User) (lockedNow bool, err error) {
	lockedNow = t.policy.ApplyFailedLogin(u, t.now().UTC())
	return lockedNow, t.store.SaveSecurityState(ctx, u)
}

// WithClock returns a copy of the tracker reading time from now.
func (t *Tracker) WithClock(now func() time.Time) *Tracker {
	cp := *t
	cp.now = now
	return &cp
}

func (t *Tracker) IsLocked(u *models.User) bool {
	return IsLocked(u, t.now())
}

func (t *Tracker) ResetOnSuccess(ctx context.Context, u *models.User) error {
	ApplySuccessfulLogin(u, t.now().UTC())
	return t.store.SaveSecurityState(ctx, u)
}
