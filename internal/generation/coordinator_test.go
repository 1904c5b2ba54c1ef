package generation_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"reel/internal/clock"
	"reel/internal/generation"
	"reel/internal/ledger"
	"reel/internal/logging"
	"reel/internal/services"
	"reel/internal/sora"
	"reel/internal/store"
	"reel/internal/testsupport"
)

type statusReply struct {
	result sora.StatusResult
	err    error
}

type fakeClient struct {
	mu          sync.Mutex
	submitErr   error
	submitCalls []sora.SubmitRequest
	onSubmit    func()
	replies     []statusReply
	statusCalls int
}

func (f *fakeClient) SubmitJob(_ context.Context, req sora.SubmitRequest) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.submitCalls = append(f.submitCalls, req)
	if f.onSubmit != nil {
		f.onSubmit()
	}
	return f.submitErr
}

func (f *fakeClient) JobStatus(context.Context, string) (sora.StatusResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statusCalls++
	if len(f.replies) == 0 {
		return sora.StatusResult{}, nil
	}
	reply := f.replies[0]
	f.replies = f.replies[1:]
	return reply.result, reply.err
}

func (f *fakeClient) statusCallCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.statusCalls
}

type fixture struct {
	coordinator *generation.Coordinator
	accounts    *ledger.Store
	client      *fakeClient
	clk         *clock.Manual
	kv          *store.Memory
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	cfg := testsupport.NewConfig(t)
	kv := store.NewMemory()
	accounts := ledger.New(kv, logging.NewNop())
	if _, err := accounts.SignIn(context.Background(), "id-1", ""); err != nil {
		t.Fatalf("SignIn failed: %v", err)
	}
	client := &fakeClient{}
	clk := clock.NewManual(time.Date(2026, 3, 10, 8, 0, 0, 0, time.UTC))
	coordinator := generation.NewCoordinatorWithOptions(cfg, client, accounts, kv, logging.NewNop(), nil, clk)
	return &fixture{coordinator: coordinator, accounts: accounts, client: client, clk: clk, kv: kv}
}

func (fx *fixture) fund(t *testing.T, amount int64) {
	t.Helper()
	if _, err := fx.accounts.AddCredits(context.Background(), amount); err != nil {
		t.Fatalf("AddCredits failed: %v", err)
	}
}

func (fx *fixture) balance(t *testing.T) int64 {
	t.Helper()
	account, ok := fx.accounts.Snapshot()
	if !ok {
		t.Fatal("expected signed-in account")
	}
	return account.Credits
}

func (fx *fixture) pendingJobExists(t *testing.T) bool {
	t.Helper()
	_, found, err := fx.kv.Get(context.Background(), store.PendingJobKey("id-1"))
	if err != nil {
		t.Fatalf("kv get failed: %v", err)
	}
	return found
}

func defaultParams() generation.SubmitParams {
	return generation.SubmitParams{
		Prompt:      "a corgi surfing at sunset",
		AspectRatio: generation.AspectLandscape,
		Duration:    generation.DurationShort,
		ImageBase64: "aW1hZ2U=",
	}
}

func TestSubmitInsufficientCreditsLeavesEverythingUntouched(t *testing.T) {
	fx := newFixture(t)
	fx.fund(t, 40)

	_, err := fx.coordinator.Submit(context.Background(), defaultParams())
	if !errors.Is(err, services.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if got := fx.balance(t); got != 40 {
		t.Fatalf("balance must be unchanged, got %d", got)
	}
	if fx.pendingJobExists(t) {
		t.Fatal("no job snapshot should be persisted")
	}
	if len(fx.client.submitCalls) != 0 {
		t.Fatal("no submission request should be issued")
	}
	if snap := fx.coordinator.Status(); snap.State != generation.StateIdle {
		t.Fatalf("expected idle state, got %s", snap.State)
	}
}

func TestSubmitPersistsSnapshotBeforeNetworkCall(t *testing.T) {
	fx := newFixture(t)
	fx.fund(t, 100)

	persistedAtSubmit := false
	fx.client.onSubmit = func() {
		_, found, err := fx.kv.Get(context.Background(), store.PendingJobKey("id-1"))
		if err == nil && found {
			persistedAtSubmit = true
		}
	}

	jobID, err := fx.coordinator.Submit(context.Background(), defaultParams())
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if jobID == "" {
		t.Fatal("expected a job id")
	}
	if !persistedAtSubmit {
		t.Fatal("job snapshot must be persisted before the submission request fires")
	}
	if len(fx.client.submitCalls) != 1 {
		t.Fatalf("expected one submission, got %d", len(fx.client.submitCalls))
	}
	req := fx.client.submitCalls[0]
	if req.JobID != jobID || req.Prompt != "a corgi surfing at sunset" || req.DurationSeconds != 10 {
		t.Fatalf("unexpected submit request: %+v", req)
	}
}

func TestSubmitTransportFailureClearsState(t *testing.T) {
	fx := newFixture(t)
	fx.fund(t, 100)
	fx.client.submitErr = errors.New("connection refused")

	_, err := fx.coordinator.Submit(context.Background(), defaultParams())
	if !errors.Is(err, services.ErrTransport) {
		t.Fatalf("expected transport error, got %v", err)
	}
	if fx.pendingJobExists(t) {
		t.Fatal("failed submission must clear the persisted snapshot")
	}
	if got := fx.balance(t); got != 100 {
		t.Fatalf("failed submission must not touch balance, got %d", got)
	}
	if snap := fx.coordinator.Status(); snap.State != generation.StateIdle {
		t.Fatalf("expected idle state, got %s", snap.State)
	}
}

func TestErrorResolutionDiscardsReserveWithoutDebit(t *testing.T) {
	fx := newFixture(t)
	fx.fund(t, 100)
	fx.client.replies = []statusReply{
		{result: sora.StatusResult{ErrorMessage: "content policy violation"}},
	}

	if _, err := fx.coordinator.Submit(context.Background(), defaultParams()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	// Before the initial delay elapses no status call may fire.
	fx.clk.Advance(179 * time.Second)
	if got := fx.client.statusCallCount(); got != 0 {
		t.Fatalf("no status check before the initial delay, got %d", got)
	}

	fx.clk.Advance(2 * time.Second)
	if got := fx.client.statusCallCount(); got != 1 {
		t.Fatalf("expected the first status check after the delay, got %d", got)
	}

	if got := fx.balance(t); got != 100 {
		t.Fatalf("error resolution must not debit, got %d", got)
	}
	if fx.pendingJobExists(t) {
		t.Fatal("persisted job state must be cleared on error")
	}
	snap := fx.coordinator.Status()
	if snap.State != generation.StateIdle {
		t.Fatalf("expected idle state, got %s", snap.State)
	}
	if snap.LastResult == nil || snap.LastResult.ErrorMessage != "content policy violation" {
		t.Fatalf("unexpected last result: %+v", snap.LastResult)
	}
	if len(snap.History) != 0 {
		t.Fatal("failed jobs must not enter history")
	}
}

func TestSuccessDebitsExactlyOnceAndAppendsHistory(t *testing.T) {
	fx := newFixture(t)
	fx.fund(t, 100)
	fx.client.replies = []statusReply{
		{result: sora.StatusResult{VideoURL: "https://cdn.example/clip.mp4"}},
	}

	params := defaultParams()
	params.Duration = generation.DurationLong // cost 70
	if _, err := fx.coordinator.Submit(context.Background(), params); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	fx.clk.Advance(181 * time.Second)

	if got := fx.balance(t); got != 30 {
		t.Fatalf("expected balance 30 after debit, got %d", got)
	}
	if fx.pendingJobExists(t) {
		t.Fatal("persisted job state must be cleared on success")
	}
	snap := fx.coordinator.Status()
	if snap.State != generation.StateIdle {
		t.Fatalf("expected idle state, got %s", snap.State)
	}
	if snap.LastResult == nil || snap.LastResult.VideoURL != "https://cdn.example/clip.mp4" {
		t.Fatalf("unexpected last result: %+v", snap.LastResult)
	}
	if len(snap.History) != 1 {
		t.Fatalf("expected one history record, got %d", len(snap.History))
	}
	record := snap.History[0]
	if record.VideoURL != "https://cdn.example/clip.mp4" || record.DurationSeconds != 15 {
		t.Fatalf("unexpected history record: %+v", record)
	}
}

func TestPollingRepeatsUntilTerminal(t *testing.T) {
	fx := newFixture(t)
	fx.fund(t, 100)
	fx.client.replies = []statusReply{
		{result: sora.StatusResult{}},
		{err: errors.New("gateway timeout")},
		{result: sora.StatusResult{VideoURL: "https://cdn.example/clip.mp4"}},
	}

	if _, err := fx.coordinator.Submit(context.Background(), defaultParams()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	fx.clk.Advance(181 * time.Second)
	if got := fx.client.statusCallCount(); got != 1 {
		t.Fatalf("expected 1 call after initial delay, got %d", got)
	}
	if snap := fx.coordinator.Status(); snap.State == generation.StateIdle {
		t.Fatal("job should still be in flight after a not-ready response")
	}

	// A transport error during polling is just "not ready".
	fx.clk.Advance(30 * time.Second)
	if got := fx.client.statusCallCount(); got != 2 {
		t.Fatalf("expected 2 calls, got %d", got)
	}
	if snap := fx.coordinator.Status(); snap.State == generation.StateIdle {
		t.Fatal("transport error must not resolve the job")
	}

	fx.clk.Advance(30 * time.Second)
	if got := fx.client.statusCallCount(); got != 3 {
		t.Fatalf("expected 3 calls, got %d", got)
	}
	snap := fx.coordinator.Status()
	if snap.State != generation.StateIdle {
		t.Fatalf("expected resolution, state %s", snap.State)
	}
	if got := fx.balance(t); got != 50 {
		t.Fatalf("expected balance 50 after 10s debit, got %d", got)
	}
}

func TestPollingGivesUpAfterMaxWait(t *testing.T) {
	fx := newFixture(t)
	fx.fund(t, 100)
	// Never ready: replies stays empty so every poll reports not ready.

	if _, err := fx.coordinator.Submit(context.Background(), defaultParams()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}

	fx.clk.Advance(500 * time.Second)

	snap := fx.coordinator.Status()
	if snap.State != generation.StateIdle {
		t.Fatalf("expected timeout resolution, state %s", snap.State)
	}
	if snap.LastResult == nil || snap.LastResult.ErrorMessage == "" {
		t.Fatalf("expected timeout message in last result: %+v", snap.LastResult)
	}
	if got := fx.balance(t); got != 100 {
		t.Fatalf("timeout must not debit, got %d", got)
	}
	if fx.pendingJobExists(t) {
		t.Fatal("timeout must clear persisted job state")
	}
	// Checks fire at 180s then every 30s through 360s; the 390s
	// callback times out before any network call.
	if got := fx.client.statusCallCount(); got != 7 {
		t.Fatalf("expected 7 status calls before giving up, got %d", got)
	}
}

func TestSubmitWhileJobInFlightIsRejected(t *testing.T) {
	fx := newFixture(t)
	fx.fund(t, 200)

	if _, err := fx.coordinator.Submit(context.Background(), defaultParams()); err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	_, err := fx.coordinator.Submit(context.Background(), defaultParams())
	if !errors.Is(err, services.ErrRejected) {
		t.Fatalf("expected rejection while in flight, got %v", err)
	}
	if got := len(fx.client.submitCalls); got != 1 {
		t.Fatalf("second submission must not reach the network, got %d calls", got)
	}
}

func seedPendingJob(t *testing.T, kv store.KV, startedAt time.Time, reserved int64) {
	t.Helper()
	snap := map[string]any{
		"job_id":           "job-resume",
		"prompt":           "resumed prompt",
		"aspect_ratio":     "portrait",
		"duration_seconds": 10,
		"reserved_credits": reserved,
		"started_at":       startedAt,
	}
	if err := store.PutJSON(context.Background(), kv, store.PendingJobKey("id-1"), snap); err != nil {
		t.Fatalf("seed pending job: %v", err)
	}
}

func TestResumeShortensRemainingDelay(t *testing.T) {
	fx := newFixture(t)
	fx.fund(t, 100)
	seedPendingJob(t, fx.kv, fx.clk.Now().Add(-100*time.Second), 50)

	if err := fx.coordinator.Resume(context.Background()); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if snap := fx.coordinator.Status(); snap.State != generation.StateScheduledWait {
		t.Fatalf("expected scheduled wait, got %s", snap.State)
	}

	// 100s already elapsed of the 180s delay: the check fires at 80s.
	fx.clk.Advance(79 * time.Second)
	if got := fx.client.statusCallCount(); got != 0 {
		t.Fatalf("check fired too early: %d", got)
	}
	fx.clk.Advance(2 * time.Second)
	if got := fx.client.statusCallCount(); got != 1 {
		t.Fatalf("expected first check 80s after resume, got %d", got)
	}
}

func TestResumePastInitialDelayPollsImmediately(t *testing.T) {
	fx := newFixture(t)
	fx.fund(t, 100)
	seedPendingJob(t, fx.kv, fx.clk.Now().Add(-200*time.Second), 50)

	if err := fx.coordinator.Resume(context.Background()); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	fx.clk.Advance(0)
	if got := fx.client.statusCallCount(); got != 1 {
		t.Fatalf("expected immediate check, got %d", got)
	}
}

func TestResumePastMaxWaitTimesOutWithoutNetwork(t *testing.T) {
	fx := newFixture(t)
	fx.fund(t, 100)
	seedPendingJob(t, fx.kv, fx.clk.Now().Add(-400*time.Second), 50)

	if err := fx.coordinator.Resume(context.Background()); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}

	snap := fx.coordinator.Status()
	if snap.State != generation.StateIdle {
		t.Fatalf("expected immediate timeout, state %s", snap.State)
	}
	if snap.LastResult == nil || snap.LastResult.ErrorMessage == "" {
		t.Fatalf("expected timeout message: %+v", snap.LastResult)
	}
	if got := fx.client.statusCallCount(); got != 0 {
		t.Fatalf("expired resume must not hit the network, got %d calls", got)
	}
	if fx.pendingJobExists(t) {
		t.Fatal("expired resume must clear persisted state")
	}
	if got := fx.balance(t); got != 100 {
		t.Fatalf("expired resume must not debit, got %d", got)
	}
}

func TestResumeWithoutPendingJobIsNoOp(t *testing.T) {
	fx := newFixture(t)
	if err := fx.coordinator.Resume(context.Background()); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	if snap := fx.coordinator.Status(); snap.State != generation.StateIdle {
		t.Fatalf("expected idle, got %s", snap.State)
	}
}

func TestResumeRehydratesLastResult(t *testing.T) {
	fx := newFixture(t)
	result := generation.Result{VideoURL: "https://cdn.example/old.mp4", ResolvedAt: fx.clk.Now()}
	if err := store.PutJSON(context.Background(), fx.kv, store.LastResultKey("id-1"), result); err != nil {
		t.Fatalf("seed result: %v", err)
	}

	if err := fx.coordinator.Resume(context.Background()); err != nil {
		t.Fatalf("Resume failed: %v", err)
	}
	snap := fx.coordinator.Status()
	if snap.LastResult == nil || snap.LastResult.VideoURL != "https://cdn.example/old.mp4" {
		t.Fatalf("last result not rehydrated: %+v", snap.LastResult)
	}
}

func TestSuspendStopsTimersButKeepsPersistedJob(t *testing.T) {
	fx := newFixture(t)
	fx.fund(t, 100)

	if _, err := fx.coordinator.Submit(context.Background(), defaultParams()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	fx.coordinator.Suspend()

	fx.clk.Advance(600 * time.Second)
	if got := fx.client.statusCallCount(); got != 0 {
		t.Fatalf("suspended coordinator must not poll, got %d calls", got)
	}
	if !fx.pendingJobExists(t) {
		t.Fatal("suspend must keep the persisted snapshot for later resume")
	}
	snap := fx.coordinator.Status()
	if snap.State != generation.StateIdle || snap.Job != nil {
		t.Fatalf("expected cleared session state: %+v", snap)
	}
}

func TestStatusSnapshotTracksElapsed(t *testing.T) {
	fx := newFixture(t)
	fx.fund(t, 100)

	if _, err := fx.coordinator.Submit(context.Background(), defaultParams()); err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	fx.clk.Advance(60 * time.Second)

	snap := fx.coordinator.Status()
	if snap.Job == nil {
		t.Fatal("expected job info while in flight")
	}
	if snap.Job.Elapsed != 60*time.Second {
		t.Fatalf("unexpected elapsed: %v", snap.Job.Elapsed)
	}
	if snap.Job.ReservedCredits != 50 {
		t.Fatalf("unexpected reserve: %d", snap.Job.ReservedCredits)
	}
}
