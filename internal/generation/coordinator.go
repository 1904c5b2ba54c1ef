package generation

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"reel/internal/clock"
	"reel/internal/config"
	"reel/internal/ledger"
	"reel/internal/logging"
	"reel/internal/notifications"
	"reel/internal/services"
	"reel/internal/sora"
	"reel/internal/store"
)

const timeoutMessage = "generation timed out"

// StatusClient is the slice of the generation API the coordinator
// depends on.
type StatusClient interface {
	SubmitJob(ctx context.Context, req sora.SubmitRequest) error
	JobStatus(ctx context.Context, jobID string) (sora.StatusResult, error)
}

// jobSnapshot is the persisted form of the in-flight job. It is written
// before the submission request fires so a crash at any later point is
// recoverable, and its ReservedCredits field is zeroed immediately
// after the one debit so a crash mid-resolution cannot charge twice.
type jobSnapshot struct {
	JobID           string    `json:"job_id"`
	Prompt          string    `json:"prompt"`
	AspectRatio     string    `json:"aspect_ratio"`
	DurationSeconds int       `json:"duration_seconds"`
	Image           string    `json:"image,omitempty"`
	ReservedCredits int64     `json:"reserved_credits"`
	StartedAt       time.Time `json:"started_at"`
}

// Coordinator drives one generation job per account from submission
// through delayed polling to terminal resolution. All state mutations
// happen under one lock; network calls run outside it and re-validate
// the job identity afterwards, so stale timer callbacks are inert.
type Coordinator struct {
	client   StatusClient
	accounts *ledger.Store
	kv       store.KV
	clk      clock.Clock
	notifier notifications.Service
	logger   *slog.Logger

	initialDelay time.Duration
	pollInterval time.Duration
	maxWait      time.Duration

	mu         sync.Mutex
	state      State
	job        *jobSnapshot
	timer      clock.Timer
	lastResult *Result
	history    []GeneratedVideo
}

// NewCoordinator constructs a coordinator with the default notifier and
// system clock.
func NewCoordinator(cfg *config.Config, client StatusClient, accounts *ledger.Store, kv store.KV, logger *slog.Logger) *Coordinator {
	return NewCoordinatorWithOptions(cfg, client, accounts, kv, logger, notifications.NewService(cfg), clock.System())
}

// NewCoordinatorWithOptions constructs a coordinator with explicit
// collaborators (used in tests).
func NewCoordinatorWithOptions(cfg *config.Config, client StatusClient, accounts *ledger.Store, kv store.KV, logger *slog.Logger, notifier notifications.Service, clk clock.Clock) *Coordinator {
	if clk == nil {
		clk = clock.System()
	}
	return &Coordinator{
		client:       client,
		accounts:     accounts,
		kv:           kv,
		clk:          clk,
		notifier:     notifier,
		logger:       logging.NewComponentLogger(logger, "generation"),
		initialDelay: cfg.Generation.InitialDelay(),
		pollInterval: cfg.Generation.PollInterval(),
		maxWait:      cfg.Generation.MaxWait(),
		state:        StateIdle,
	}
}

// SubmitParams carries a validated generation request.
type SubmitParams struct {
	Prompt      string
	AspectRatio AspectRatio
	Duration    Duration
	ImageBase64 string
}

// Submit starts a new job. The pending snapshot is persisted before the
// submission request fires; the credit cost is reserved but not debited
// until the job resolves successfully.
func (c *Coordinator) Submit(ctx context.Context, params SubmitParams) (string, error) {
	if params.Prompt == "" {
		return "", services.Wrap(services.ErrValidation, "generation", "submit", "prompt is required", nil)
	}
	if params.AspectRatio != AspectLandscape && params.AspectRatio != AspectPortrait {
		return "", services.Wrap(services.ErrValidation, "generation", "submit",
			fmt.Sprintf("unsupported aspect ratio %q", params.AspectRatio), nil)
	}
	cost := params.Duration.Cost()
	if cost == 0 {
		return "", services.Wrap(services.ErrValidation, "generation", "submit",
			fmt.Sprintf("unsupported duration %ds", int(params.Duration)), nil)
	}

	c.mu.Lock()
	if c.job != nil {
		c.mu.Unlock()
		return "", services.Wrap(services.ErrRejected, "generation", "submit",
			"a generation job is already in progress", nil)
	}
	account, signedIn := c.accounts.Snapshot()
	if !signedIn {
		c.mu.Unlock()
		return "", services.Wrap(services.ErrValidation, "generation", "submit", "sign in required", nil)
	}
	if account.Credits < cost {
		c.mu.Unlock()
		return "", services.Wrap(services.ErrValidation, "generation", "submit",
			fmt.Sprintf("insufficient credits: need %d, have %d", cost, account.Credits), nil)
	}

	c.cancelTimerLocked()
	snap := &jobSnapshot{
		JobID:           uuid.NewString(),
		Prompt:          params.Prompt,
		AspectRatio:     string(params.AspectRatio),
		DurationSeconds: params.Duration.Seconds(),
		Image:           params.ImageBase64,
		ReservedCredits: cost,
		StartedAt:       c.clk.Now().UTC(),
	}
	ctx = services.WithIdentity(services.WithJobID(ctx, snap.JobID), account.Identity)
	if err := store.PutJSON(ctx, c.kv, store.PendingJobKey(account.Identity), snap); err != nil {
		c.mu.Unlock()
		return "", fmt.Errorf("persist pending job: %w", err)
	}
	c.job = snap
	c.state = StateSubmitting
	jobID := snap.JobID
	c.mu.Unlock()

	err := c.client.SubmitJob(ctx, sora.SubmitRequest{
		JobID:           jobID,
		Prompt:          params.Prompt,
		AspectRatio:     string(params.AspectRatio),
		StartImage:      params.ImageBase64,
		DurationSeconds: params.Duration.Seconds(),
	})

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil || c.job.JobID != jobID {
		return "", services.Wrap(services.ErrRejected, "generation", "submit", "job cancelled during submission", nil)
	}
	if err != nil {
		c.discardJobLocked(ctx)
		return "", services.Wrap(services.ErrTransport, "generation", "submit", "submission failed", err)
	}

	c.state = StateScheduledWait
	c.scheduleLocked(c.initialDelay, jobID)
	logging.WithContext(ctx, c.logger).Info("job scheduled",
		logging.Duration("first_check_in", c.initialDelay))
	return jobID, nil
}

// Resume rehydrates a persisted pending job at launch. The remaining
// wait is shortened by the time already elapsed; a job already past the
// maximum wait resolves to timeout immediately, with no network call.
func (c *Coordinator) Resume(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	account, signedIn := c.accounts.Snapshot()
	if !signedIn {
		return nil
	}

	var result Result
	if found, err := store.GetJSON(ctx, c.kv, store.LastResultKey(account.Identity), &result); err == nil && found {
		c.lastResult = &result
	}

	var snap jobSnapshot
	found, err := store.GetJSON(ctx, c.kv, store.PendingJobKey(account.Identity), &snap)
	if err != nil {
		return fmt.Errorf("load pending job: %w", err)
	}
	if !found {
		return nil
	}

	c.job = &snap
	elapsed := c.clk.Now().Sub(snap.StartedAt)
	if elapsed > c.maxWait {
		c.logger.Info("resumed job already past deadline", logging.String(logging.FieldJobID, snap.JobID))
		c.resolveFailureLocked(ctx, timeoutMessage)
		return nil
	}

	remaining := c.initialDelay - elapsed
	if remaining < 0 {
		remaining = 0
	}
	c.state = StateScheduledWait
	c.scheduleLocked(remaining, snap.JobID)
	c.logger.Info("job resumed",
		logging.String(logging.FieldJobID, snap.JobID),
		logging.Duration("elapsed", elapsed),
		logging.Duration("next_check_in", remaining))
	return nil
}

// Status returns a copy of the published coordinator state.
func (c *Coordinator) Status() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()

	snap := Snapshot{State: c.state}
	if c.job != nil {
		snap.Job = &JobInfo{
			JobID:           c.job.JobID,
			Prompt:          c.job.Prompt,
			AspectRatio:     c.job.AspectRatio,
			DurationSeconds: c.job.DurationSeconds,
			ReservedCredits: c.job.ReservedCredits,
			StartedAt:       c.job.StartedAt,
			Elapsed:         c.clk.Now().Sub(c.job.StartedAt),
		}
	}
	if c.lastResult != nil {
		result := *c.lastResult
		snap.LastResult = &result
	}
	if len(c.history) > 0 {
		snap.History = append([]GeneratedVideo(nil), c.history...)
	}
	return snap
}

// History returns the session's generated videos, most recent first.
func (c *Coordinator) History() []GeneratedVideo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]GeneratedVideo(nil), c.history...)
}

// Suspend stops any outstanding timer and drops session-scoped display
// state. The persisted job snapshot is left alone, so the job remains
// resumable; used on sign-out and account deletion.
func (c *Coordinator) Suspend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.cancelTimerLocked()
	c.job = nil
	c.state = StateIdle
	c.lastResult = nil
	c.history = nil
}

// pollNow runs one scheduled status check. Stale callbacks (from a
// cancelled or replaced job) detect the mismatch and return without
// touching anything.
func (c *Coordinator) pollNow(jobID string) {
	ctx := services.WithJobID(context.Background(), jobID)

	c.mu.Lock()
	if c.job == nil || c.job.JobID != jobID {
		c.mu.Unlock()
		return
	}
	if c.clk.Now().Sub(c.job.StartedAt) > c.maxWait {
		c.resolveFailureLocked(ctx, timeoutMessage)
		c.mu.Unlock()
		return
	}
	c.state = StatePolling
	c.mu.Unlock()

	status, err := c.client.JobStatus(ctx, jobID)

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.job == nil || c.job.JobID != jobID {
		return
	}
	switch {
	case err != nil || !status.Terminal():
		// Transport failures are indistinguishable from "not ready";
		// only the elapsed-time deadline gives up.
		if err != nil {
			logging.WithContext(ctx, c.logger).Debug("status check failed, retrying",
				logging.Error(err))
		}
		c.scheduleLocked(c.pollInterval, jobID)
	case status.VideoURL != "":
		c.resolveSuccessLocked(ctx, status.VideoURL)
	default:
		c.resolveFailureLocked(ctx, status.ErrorMessage)
	}
}

func (c *Coordinator) scheduleLocked(delay time.Duration, jobID string) {
	c.cancelTimerLocked()
	c.timer = c.clk.AfterFunc(delay, func() {
		c.pollNow(jobID)
	})
}

func (c *Coordinator) cancelTimerLocked() {
	if c.timer != nil {
		c.timer.Stop()
		c.timer = nil
	}
}

// resolveSuccessLocked debits the reserved cost exactly once: the
// reserve is zeroed and the zeroed snapshot persisted before the
// pending key is cleared, so a crash in between re-clears without
// re-debiting.
func (c *Coordinator) resolveSuccessLocked(ctx context.Context, videoURL string) {
	job := c.job
	account, signedIn := c.accounts.Snapshot()

	if signedIn && job.ReservedCredits > 0 {
		if _, err := c.accounts.DebitCredits(ctx, job.ReservedCredits); err != nil {
			c.logger.Error("debit failed", logging.String(logging.FieldJobID, job.JobID), logging.Error(err))
			c.publish(ctx, notifications.EventError, notifications.Payload{
				"context": "credit settlement",
				"error":   err.Error(),
			})
		}
		job.ReservedCredits = 0
		if err := store.PutJSON(ctx, c.kv, store.PendingJobKey(account.Identity), job); err != nil {
			c.logger.Error("persist zeroed reserve failed", logging.Error(err))
		}
	}

	result := &Result{VideoURL: videoURL, ResolvedAt: c.clk.Now().UTC()}
	c.lastResult = result
	if signedIn {
		if err := store.PutJSON(ctx, c.kv, store.LastResultKey(account.Identity), result); err != nil {
			c.logger.Error("persist result failed", logging.Error(err))
		}
	}

	record := GeneratedVideo{
		Prompt:          job.Prompt,
		AspectRatio:     job.AspectRatio,
		DurationSeconds: job.DurationSeconds,
		VideoURL:        videoURL,
		CreatedAt:       result.ResolvedAt,
	}
	c.history = append([]GeneratedVideo{record}, c.history...)

	c.clearJobLocked(ctx, account.Identity, signedIn)
	c.logger.Info("job resolved",
		logging.String(logging.FieldJobID, job.JobID),
		logging.String("video_url", videoURL))
	c.publish(ctx, notifications.EventGenerationCompleted, notifications.Payload{
		"prompt":   job.Prompt,
		"videoUrl": videoURL,
	})
}

// resolveFailureLocked discards the reserve without charging it.
func (c *Coordinator) resolveFailureLocked(ctx context.Context, message string) {
	job := c.job
	account, signedIn := c.accounts.Snapshot()

	result := &Result{ErrorMessage: message, ResolvedAt: c.clk.Now().UTC()}
	c.lastResult = result
	if signedIn {
		if err := store.PutJSON(ctx, c.kv, store.LastResultKey(account.Identity), result); err != nil {
			c.logger.Error("persist result failed", logging.Error(err))
		}
	}

	c.clearJobLocked(ctx, account.Identity, signedIn)
	c.logger.Info("job failed",
		logging.String(logging.FieldJobID, job.JobID),
		logging.String("reason", message))
	c.publish(ctx, notifications.EventGenerationFailed, notifications.Payload{
		"prompt": job.Prompt,
		"reason": message,
	})
}

// discardJobLocked clears a job that never made it past submission.
func (c *Coordinator) discardJobLocked(ctx context.Context) {
	account, signedIn := c.accounts.Snapshot()
	c.clearJobLocked(ctx, account.Identity, signedIn)
}

func (c *Coordinator) clearJobLocked(ctx context.Context, identity string, signedIn bool) {
	if signedIn {
		if err := c.kv.Delete(ctx, store.PendingJobKey(identity)); err != nil {
			c.logger.Error("clear pending job failed", logging.Error(err))
		}
	}
	c.cancelTimerLocked()
	c.job = nil
	c.state = StateIdle
}

func (c *Coordinator) publish(ctx context.Context, event notifications.Event, payload notifications.Payload) {
	if c.notifier == nil {
		return
	}
	if err := c.notifier.Publish(ctx, event, payload); err != nil {
		c.logger.Warn("notification failed", logging.Error(err))
	}
}
