package housekeeping

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/multierr"

	"github.com/seramic/shop-backend/pkg/enums"
	"github.com/seramic/shop-backend/pkg/logger"
)

type accountSweeper interface {
	ClearExpiredTokens(ctx context.Context, kind enums.TokenKind, now time.Time) (int64, error)
	ReleaseExpiredLocks(ctx context.Context, now time.Time) (int64, error)
}

// AccountSweepJob clears expired single-use token hashes and lapsed login
// locks so stale credentials do not linger on account rows.
type AccountSweepJob struct {
	logg     *logger.Logger
	accounts accountSweeper
	now      func() time.Time
}

func NewAccountSweepJob(logg *logger.Logger, accounts accountSweeper) (*AccountSweepJob, error) {
	if logg == nil {
		return nil, errors.New("logger required")
	}
	if accounts == nil {
		return nil, errors.New("account repository required")
	}
	return &AccountSweepJob{logg: logg, accounts: accounts, now: time.Now}, nil
}

func (j *AccountSweepJob) Name() string { return "account-sweep" }

// Run attempts every sweep even if an earlier one fails and reports the
// combined error.
func (j *AccountSweepJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	fields := map[string]any{}
	var errs error

	for _, kind := range []enums.TokenKind{enums.TokenKindPasswordReset, enums.TokenKindEmailVerification} {
		n, err := j.accounts.ClearExpiredTokens(ctx, kind, now)
		if err != nil {
			errs = multierr.Append(errs, fmt.Errorf("clear %s tokens: %w", kind, err))
			continue
		}
		fields[kind.String()+"_cleared"] = n
	}

	n, err := j.accounts.ReleaseExpiredLocks(ctx, now)
	if err != nil {
		errs = multierr.Append(errs, fmt.Errorf("release login locks: %w", err))
	} else {
		fields["locks_released"] = n
	}

	if errs != nil {
		return errs
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "account sweep complete")
	return nil
}
