package rewards_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"reel/internal/clock"
	"reel/internal/ledger"
	"reel/internal/logging"
	"reel/internal/rewards"
	"reel/internal/store"
	"reel/internal/testsupport"
)

type fakeVerifier struct {
	calls      int
	err        error
	deactivate *ledger.Store
}

func (f *fakeVerifier) RefreshSubscriptionStatus(ctx context.Context) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	if f.deactivate != nil {
		if _, err := f.deactivate.SetSubscriptionActive(ctx, false); err != nil {
			return err
		}
	}
	return nil
}

type fixture struct {
	scheduler *rewards.Scheduler
	accounts  *ledger.Store
	verifier  *fakeVerifier
	clk       *clock.Manual
	interval  time.Duration
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	accounts := ledger.New(store.NewMemory(), logging.NewNop())
	if _, err := accounts.SignIn(context.Background(), "id-1", ""); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	verifier := &fakeVerifier{}
	clk := clock.NewManual(time.Date(2026, 2, 1, 12, 0, 0, 0, time.UTC))
	scheduler := rewards.NewSchedulerWithOptions(cfg, accounts, verifier, logging.NewNop(), nil, clk)
	return &fixture{
		scheduler: scheduler,
		accounts:  accounts,
		verifier:  verifier,
		clk:       clk,
		interval:  cfg.Rewards.Interval(),
	}
}

func (fx *fixture) activateWithNextReward(t *testing.T, next time.Time) {
	t.Helper()
	ctx := context.Background()
	if _, err := fx.accounts.SetSubscriptionActive(ctx, true); err != nil {
		t.Fatalf("SetSubscriptionActive failed: %v", err)
	}
	if _, err := fx.accounts.SetNextReward(ctx, next); err != nil {
		t.Fatalf("SetNextReward failed: %v", err)
	}
}

func TestCheckDueGrantsCatchUpForMissedIntervals(t *testing.T) {
	fx := newFixture(t)
	now := fx.clk.Now()

	// Two and a half intervals overdue: three grants owed, schedule
	// advances four intervals past the original timestamp.
	original := now.Add(-(fx.interval*2 + fx.interval/2))
	fx.activateWithNextReward(t, original)

	if err := fx.scheduler.CheckDue(context.Background()); err != nil {
		t.Fatalf("CheckDue failed: %v", err)
	}

	account, _ := fx.accounts.Snapshot()
	if account.Credits != 3000 {
		t.Fatalf("expected 3000 credits granted, got %d", account.Credits)
	}
	wantNext := original.Add(4 * fx.interval)
	if account.NextRewardAt == nil || !account.NextRewardAt.Equal(wantNext) {
		t.Fatalf("next reward: got %v want %v", account.NextRewardAt, wantNext)
	}
	if fx.verifier.calls != 1 {
		t.Fatalf("expected one live verification, got %d", fx.verifier.calls)
	}
}

func TestCheckDueSingleIntervalOverdue(t *testing.T) {
	fx := newFixture(t)
	now := fx.clk.Now()

	original := now.Add(-time.Hour)
	fx.activateWithNextReward(t, original)

	if err := fx.scheduler.CheckDue(context.Background()); err != nil {
		t.Fatalf("CheckDue failed: %v", err)
	}

	account, _ := fx.accounts.Snapshot()
	if account.Credits != 1000 {
		t.Fatalf("expected single grant of 1000, got %d", account.Credits)
	}
	wantNext := original.Add(2 * fx.interval)
	if account.NextRewardAt == nil || !account.NextRewardAt.Equal(wantNext) {
		t.Fatalf("next reward: got %v want %v", account.NextRewardAt, wantNext)
	}
}

func TestCheckDueNotYetDue(t *testing.T) {
	fx := newFixture(t)
	fx.activateWithNextReward(t, fx.clk.Now().Add(time.Hour))

	if err := fx.scheduler.CheckDue(context.Background()); err != nil {
		t.Fatalf("CheckDue failed: %v", err)
	}
	account, _ := fx.accounts.Snapshot()
	if account.Credits != 0 {
		t.Fatalf("nothing should be granted before due time, got %d", account.Credits)
	}
	if fx.verifier.calls != 0 {
		t.Fatal("verification should be skipped when gate conditions fail")
	}
}

func TestCheckDueSkipsInactiveSubscription(t *testing.T) {
	fx := newFixture(t)
	ctx := context.Background()
	if _, err := fx.accounts.SetNextReward(ctx, fx.clk.Now().Add(-time.Hour)); err != nil {
		t.Fatalf("SetNextReward failed: %v", err)
	}

	if err := fx.scheduler.CheckDue(ctx); err != nil {
		t.Fatalf("CheckDue failed: %v", err)
	}
	account, _ := fx.accounts.Snapshot()
	if account.Credits != 0 {
		t.Fatalf("inactive subscription must not accrue rewards, got %d", account.Credits)
	}
}

func TestCheckDueHonorsLiveVerification(t *testing.T) {
	fx := newFixture(t)
	fx.activateWithNextReward(t, fx.clk.Now().Add(-time.Hour))
	fx.verifier.deactivate = fx.accounts

	if err := fx.scheduler.CheckDue(context.Background()); err != nil {
		t.Fatalf("CheckDue failed: %v", err)
	}
	account, _ := fx.accounts.Snapshot()
	if account.Credits != 0 {
		t.Fatalf("lapsed subscription must not be granted, got %d", account.Credits)
	}
	if fx.verifier.calls != 1 {
		t.Fatalf("expected one live verification, got %d", fx.verifier.calls)
	}
}

func TestCheckDueVerificationFailureBlocksGrant(t *testing.T) {
	fx := newFixture(t)
	fx.activateWithNextReward(t, fx.clk.Now().Add(-time.Hour))
	fx.verifier.err = errors.New("entitlement service down")

	if err := fx.scheduler.CheckDue(context.Background()); err == nil {
		t.Fatal("expected verification error to propagate")
	}
	account, _ := fx.accounts.Snapshot()
	if account.Credits != 0 {
		t.Fatalf("failed verification must not grant, got %d", account.Credits)
	}
}

func TestCheckDueSkipsWhenSignedOut(t *testing.T) {
	fx := newFixture(t)
	fx.activateWithNextReward(t, fx.clk.Now().Add(-time.Hour))
	if err := fx.accounts.SignOut(context.Background()); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}

	if err := fx.scheduler.CheckDue(context.Background()); err != nil {
		t.Fatalf("CheckDue failed: %v", err)
	}
	if fx.verifier.calls != 0 {
		t.Fatal("signed-out session should skip verification entirely")
	}
}
