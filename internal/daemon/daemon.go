package daemon

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"log/slog"

	"github.com/gofrs/flock"

	"reel/internal/billing"
	"reel/internal/config"
	"reel/internal/generation"
	"reel/internal/ledger"
	"reel/internal/logging"
	"reel/internal/notifications"
	"reel/internal/rewards"
	"reel/internal/services"
	"reel/internal/store"
)

// Services bundles the domain components the daemon coordinates.
type Services struct {
	Accounts    *ledger.Store
	Coordinator *generation.Coordinator
	Reconciler  *billing.Reconciler
	Scheduler   *rewards.Scheduler
}

// Daemon owns the process lifecycle and enforces single-instance execution.
type Daemon struct {
	cfg         *config.Config
	logger      *slog.Logger
	store       *store.SQLite
	accounts    *ledger.Store
	coordinator *generation.Coordinator
	reconciler  *billing.Reconciler
	scheduler   *rewards.Scheduler
	logPath     string

	lockPath string
	lock     *flock.Flock

	running   atomic.Bool
	startedAt time.Time
	ctx       context.Context
	cancel    context.CancelFunc
}

// Status represents daemon runtime information.
type Status struct {
	Running      bool
	PID          int
	StartedAt    time.Time
	DatabasePath string
	LockPath     string
	SignedIn     bool
	Account      ledger.Account
	Generation   generation.Snapshot
}

// New constructs a daemon with initialized dependencies.
func New(cfg *config.Config, st *store.SQLite, logger *slog.Logger, svcs Services) (*Daemon, error) {
	if cfg == nil || st == nil {
		return nil, errors.New("daemon requires config and store")
	}
	if svcs.Accounts == nil || svcs.Coordinator == nil || svcs.Reconciler == nil || svcs.Scheduler == nil {
		return nil, errors.New("daemon requires ledger, coordinator, reconciler, and scheduler")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	lockPath := cfg.LockPath()
	return &Daemon{
		cfg:         cfg,
		logger:      logger,
		store:       st,
		accounts:    svcs.Accounts,
		coordinator: svcs.Coordinator,
		reconciler:  svcs.Reconciler,
		scheduler:   svcs.Scheduler,
		logPath:     filepath.Join(cfg.Paths.LogDir, "reel.log"),
		lockPath:    lockPath,
		lock:        flock.New(lockPath),
	}, nil
}

// Start acquires the daemon lock, restores persisted session state, and
// launches the background listeners. The sequence is restore, reconcile,
// reward check, job resume; network failures during the refresh steps are
// logged and do not abort startup.
func (d *Daemon) Start(ctx context.Context) error {
	if d.running.Load() {
		return errors.New("daemon already running")
	}

	ok, err := d.lock.TryLock()
	if err != nil {
		return fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		return errors.New("another reel daemon instance is already running")
	}

	d.ctx, d.cancel = context.WithCancel(ctx)

	account, restored, err := d.accounts.Restore(d.ctx)
	if err != nil {
		_ = d.lock.Unlock()
		d.cancel()
		d.ctx = nil
		d.cancel = nil
		return fmt.Errorf("restore session: %w", err)
	}
	if restored {
		d.logger.Info("session restored",
			logging.String(logging.FieldIdentity, account.Identity),
			logging.Int64("credits", account.Credits))
		d.refreshAccount(d.ctx)
		if err := d.coordinator.Resume(d.ctx); err != nil {
			d.logger.Warn("pending job resume failed", logging.Error(err))
		}
	}

	if err := d.reconciler.ListenForTransactionUpdates(d.ctx); err != nil && !errors.Is(err, services.ErrConfiguration) {
		d.logger.Warn("transaction update stream unavailable", logging.Error(err))
	}
	go d.scheduler.Run(d.ctx)

	d.startedAt = time.Now()
	d.running.Store(true)
	d.logger.Info("reel daemon started", logging.String("lock", d.lockPath))
	return nil
}

// Stop suspends generation timers, stops background listeners, and releases
// the daemon lock. Persisted job state survives for the next Start.
func (d *Daemon) Stop() {
	if !d.running.Load() {
		return
	}

	if d.cancel != nil {
		d.cancel()
		d.cancel = nil
	}
	d.coordinator.Suspend()
	if err := d.lock.Unlock(); err != nil {
		d.logger.Warn("failed to release daemon lock", logging.Error(err))
	}
	d.ctx = nil
	d.running.Store(false)
	d.logger.Info("reel daemon stopped")
}

// Close releases resources held by the daemon.
func (d *Daemon) Close() error {
	d.Stop()
	if d.store != nil {
		return d.store.Close()
	}
	return nil
}

// Status returns the current daemon status snapshot.
func (d *Daemon) Status() Status {
	account, signedIn := d.accounts.Snapshot()
	return Status{
		Running:      d.running.Load(),
		PID:          os.Getpid(),
		StartedAt:    d.startedAt,
		DatabasePath: d.store.Path(),
		LockPath:     d.lockPath,
		SignedIn:     signedIn,
		Account:      account,
		Generation:   d.coordinator.Status(),
	}
}

// SignIn establishes the session and recovers any pending job persisted for
// the identity. Entitlement reconciliation is a separate operation so sign-in
// stays local and fast.
func (d *Daemon) SignIn(ctx context.Context, identity, email string) (ledger.Account, error) {
	if err := d.requireRunning(); err != nil {
		return ledger.Account{}, err
	}
	account, err := d.accounts.SignIn(ctx, identity, email)
	if err != nil {
		return ledger.Account{}, err
	}
	if err := d.coordinator.Resume(ctx); err != nil {
		d.logger.Warn("pending job resume failed", logging.Error(err))
	}
	return account, nil
}

// SignOut suspends generation timers and clears the session. The account
// snapshot stays persisted for the next sign-in.
func (d *Daemon) SignOut(ctx context.Context) error {
	if err := d.requireRunning(); err != nil {
		return err
	}
	d.coordinator.Suspend()
	return d.accounts.SignOut(ctx)
}

// DeleteAccount suspends timers and removes every persisted key for the
// signed-in identity.
func (d *Daemon) DeleteAccount(ctx context.Context) error {
	if err := d.requireRunning(); err != nil {
		return err
	}
	d.coordinator.Suspend()
	return d.accounts.DeleteAccount(ctx)
}

// Account returns the signed-in account snapshot.
func (d *Daemon) Account() (ledger.Account, bool) {
	return d.accounts.Snapshot()
}

// Submit starts a generation job for the signed-in account.
func (d *Daemon) Submit(ctx context.Context, params generation.SubmitParams) (string, error) {
	if err := d.requireRunning(); err != nil {
		return "", err
	}
	return d.coordinator.Submit(ctx, params)
}

// Generation returns the coordinator's current snapshot.
func (d *Daemon) Generation() generation.Snapshot {
	return d.coordinator.Status()
}

// History returns resolved videos for this daemon session, most recent first.
func (d *Daemon) History() []generation.GeneratedVideo {
	return d.coordinator.History()
}

// Catalog returns the storefront product catalog.
func (d *Daemon) Catalog(ctx context.Context) ([]billing.Product, error) {
	return d.reconciler.LoadCatalog(ctx)
}

// Purchase runs a storefront purchase and applies the result to the ledger.
func (d *Daemon) Purchase(ctx context.Context, productID string) (billing.PurchaseResult, error) {
	if err := d.requireRunning(); err != nil {
		return billing.PurchaseResult{}, err
	}
	return d.reconciler.Purchase(ctx, productID)
}

// SyncAccount reconciles current entitlements and then checks for due rewards.
func (d *Daemon) SyncAccount(ctx context.Context) error {
	if err := d.requireRunning(); err != nil {
		return err
	}
	if err := d.reconciler.Sync(ctx); err != nil {
		return err
	}
	return d.scheduler.CheckDue(ctx)
}

// LogPath returns the path to the daemon log file.
func (d *Daemon) LogPath() string {
	return d.logPath
}

// TestNotification sends a test push using the current configuration.
func (d *Daemon) TestNotification(ctx context.Context) (bool, string, error) {
	if d.cfg.Notifications.NtfyTopic == "" {
		return false, "ntfy topic not configured", nil
	}
	notifier := notifications.NewService(d.cfg)
	if err := notifier.Publish(ctx, notifications.EventTest, nil); err != nil {
		return false, "failed to send notification", err
	}
	return true, "test notification sent", nil
}

func (d *Daemon) requireRunning() error {
	if !d.running.Load() {
		return errors.New("daemon not running")
	}
	return nil
}

// refreshAccount reconciles entitlements and rewards after a session restore.
// A storefront that is not configured is skipped silently.
func (d *Daemon) refreshAccount(ctx context.Context) {
	if err := d.reconciler.Sync(ctx); err != nil {
		if !errors.Is(err, services.ErrConfiguration) {
			d.logger.Warn("entitlement sync failed", logging.Error(err))
		}
		return
	}
	if err := d.scheduler.CheckDue(ctx); err != nil {
		d.logger.Warn("reward check failed", logging.Error(err))
	}
}
