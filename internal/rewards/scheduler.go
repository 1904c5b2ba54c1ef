package rewards

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"reel/internal/clock"
	"reel/internal/config"
	"reel/internal/ledger"
	"reel/internal/logging"
	"reel/internal/notifications"
)

const grantPerInterval = 1000

// checkEvery is how often the background loop looks for due rewards.
// The grant math itself works off persisted timestamps, so a coarse
// cadence loses nothing.
const checkEvery = time.Hour

// SubscriptionVerifier re-verifies the live entitlement state before a
// grant. A lapsed or revoked subscription must not accrue rewards off
// the stale cached flag.
type SubscriptionVerifier interface {
	RefreshSubscriptionStatus(ctx context.Context) error
}

// Scheduler grants the recurring subscription reward, catching up every
// missed interval since the recorded next-reward timestamp.
type Scheduler struct {
	accounts *ledger.Store
	verifier SubscriptionVerifier
	clk      clock.Clock
	notifier notifications.Service
	interval time.Duration
	logger   *slog.Logger
}

// NewScheduler constructs a scheduler with the default notifier and
// system clock.
func NewScheduler(cfg *config.Config, accounts *ledger.Store, verifier SubscriptionVerifier, logger *slog.Logger) *Scheduler {
	return NewSchedulerWithOptions(cfg, accounts, verifier, logger, notifications.NewService(cfg), clock.System())
}

// NewSchedulerWithOptions constructs a scheduler with explicit
// collaborators (used in tests).
func NewSchedulerWithOptions(cfg *config.Config, accounts *ledger.Store, verifier SubscriptionVerifier, logger *slog.Logger, notifier notifications.Service, clk clock.Clock) *Scheduler {
	if clk == nil {
		clk = clock.System()
	}
	return &Scheduler{
		accounts: accounts,
		verifier: verifier,
		clk:      clk,
		notifier: notifier,
		interval: cfg.Rewards.Interval(),
		logger:   logging.NewComponentLogger(logger, "rewards"),
	}
}

// CheckDue grants any rewards that have come due. It is a no-op unless
// a session is active, the cached subscription flag is set, and a
// next-reward timestamp exists; the flag is then re-verified against
// live entitlements before anything is granted.
func (s *Scheduler) CheckDue(ctx context.Context) error {
	account, signedIn := s.accounts.Snapshot()
	if !signedIn || !account.SubscriptionActive || account.NextRewardAt == nil {
		return nil
	}

	if err := s.verifier.RefreshSubscriptionStatus(ctx); err != nil {
		return err
	}
	account, signedIn = s.accounts.Snapshot()
	if !signedIn || !account.SubscriptionActive || account.NextRewardAt == nil {
		return nil
	}

	now := s.clk.Now()
	next := *account.NextRewardAt
	elapsed := now.Sub(next)
	if elapsed < 0 {
		return nil
	}

	periods := int64(elapsed/s.interval) + 1
	grant := int64(grantPerInterval) * periods
	if _, err := s.accounts.AddCredits(ctx, grant); err != nil {
		return err
	}

	advanced := next.Add(s.interval * time.Duration(periods+1))
	if !advanced.After(now) {
		advanced = now.Add(s.interval)
	}
	if _, err := s.accounts.SetNextReward(ctx, advanced); err != nil {
		return err
	}

	s.logger.Info("reward granted",
		logging.String(logging.FieldIdentity, account.Identity),
		logging.Int64("credits_granted", grant),
		logging.Int64("periods", periods),
		logging.Time("next_reward", advanced))
	if s.notifier != nil {
		if err := s.notifier.Publish(ctx, notifications.EventRewardGranted, notifications.Payload{
			"credits": strconv.FormatInt(grant, 10),
		}); err != nil {
			s.logger.Warn("notification failed", logging.Error(err))
		}
	}
	return nil
}

// Run checks immediately and then on a coarse cadence until ctx is
// cancelled. Check failures are logged and retried on the next tick.
func (s *Scheduler) Run(ctx context.Context) {
	s.checkAndLog(ctx)
	ticker := time.NewTicker(checkEvery)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.checkAndLog(ctx)
		}
	}
}

func (s *Scheduler) checkAndLog(ctx context.Context) {
	if err := s.CheckDue(ctx); err != nil {
		s.logger.Warn("reward check failed", logging.Error(err))
	}
}
