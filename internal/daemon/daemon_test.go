package daemon_test

import (
	"context"
	"strings"
	"testing"

	"reel/internal/billing"
	"reel/internal/config"
	"reel/internal/daemon"
	"reel/internal/generation"
	"reel/internal/ledger"
	"reel/internal/logging"
	"reel/internal/rewards"
	"reel/internal/sora"
	"reel/internal/testsupport"
)

func newDaemon(t *testing.T, cfg *config.Config) *daemon.Daemon {
	t.Helper()
	st := testsupport.MustOpenStore(t, cfg)
	logger := logging.NewNop()
	accounts := ledger.New(st, logger)
	coordinator := generation.NewCoordinator(cfg, sora.NewClient(cfg, logger), accounts, st, logger)
	reconciler := billing.NewReconciler(cfg, billing.NewProvider(cfg, logger), accounts, st, logger)
	scheduler := rewards.NewScheduler(cfg, accounts, reconciler, logger)

	d, err := daemon.New(cfg, st, logger, daemon.Services{
		Accounts:    accounts,
		Coordinator: coordinator,
		Reconciler:  reconciler,
		Scheduler:   scheduler,
	})
	if err != nil {
		t.Fatalf("daemon.New: %v", err)
	}
	t.Cleanup(func() {
		d.Close()
	})
	return d
}

func TestDaemonStartStop(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBillingBaseURL(""))
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	status := d.Status()
	if !status.Running {
		t.Fatal("expected daemon to report running")
	}
	if status.PID <= 0 {
		t.Fatalf("expected pid, got %d", status.PID)
	}

	// Second start should fail
	if err := d.Start(ctx); err == nil {
		t.Fatal("expected second start to fail")
	}

	d.Stop()
	if d.Status().Running {
		t.Fatal("expected daemon to be stopped")
	}
}

func TestDaemonRequiresComponents(t *testing.T) {
	cfg := testsupport.NewConfig(t)
	st := testsupport.MustOpenStore(t, cfg)
	if _, err := daemon.New(cfg, st, logging.NewNop(), daemon.Services{}); err == nil {
		t.Fatal("expected error for missing services")
	}
}

func TestDaemonRejectsOperationsWhenStopped(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBillingBaseURL(""))
	d := newDaemon(t, cfg)

	ctx := context.Background()
	if _, err := d.SignIn(ctx, "id-1", ""); err == nil || !strings.Contains(err.Error(), "not running") {
		t.Fatalf("expected not-running error, got %v", err)
	}
	if _, err := d.Submit(ctx, generation.SubmitParams{}); err == nil || !strings.Contains(err.Error(), "not running") {
		t.Fatalf("expected not-running error, got %v", err)
	}
}

func TestDaemonRestoresSessionAcrossRestart(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBillingBaseURL(""))
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	account, err := d.SignIn(ctx, "id-restart", "user@example.com")
	if err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if account.Email != "user@example.com" {
		t.Fatalf("unexpected email %q", account.Email)
	}
	d.Stop()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	status := d.Status()
	if !status.SignedIn || status.Account.Identity != "id-restart" {
		t.Fatalf("expected restored session, got %#v", status.Account)
	}
}

func TestDaemonSignOutEndsSession(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBillingBaseURL(""))
	d := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := d.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if _, err := d.SignIn(ctx, "id-out", ""); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	if err := d.SignOut(ctx); err != nil {
		t.Fatalf("SignOut failed: %v", err)
	}
	if _, signedIn := d.Account(); signedIn {
		t.Fatal("expected signed-out account")
	}

	// A restart must not resurrect the session.
	d.Stop()
	if err := d.Start(ctx); err != nil {
		t.Fatalf("restart failed: %v", err)
	}
	if status := d.Status(); status.SignedIn {
		t.Fatal("expected no session after sign-out and restart")
	}
}

func TestDaemonLockExcludesSecondInstance(t *testing.T) {
	cfg := testsupport.NewConfig(t, testsupport.WithBillingBaseURL(""))
	first := newDaemon(t, cfg)
	second := newDaemon(t, cfg)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := first.Start(ctx); err != nil {
		t.Fatalf("first Start failed: %v", err)
	}
	err := second.Start(ctx)
	if err == nil || !strings.Contains(err.Error(), "already running") {
		t.Fatalf("expected lock contention error, got %v", err)
	}

	first.Stop()
	if err := second.Start(ctx); err != nil {
		t.Fatalf("second Start after release failed: %v", err)
	}
	second.Stop()
}
