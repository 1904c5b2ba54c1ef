package ipc

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"os"
	"sync"
	"time"

	"log/slog"

	"github.com/google/uuid"

	"reel/internal/billing"
	"reel/internal/daemon"
	"reel/internal/generation"
	"reel/internal/ledger"
	"reel/internal/logging"
	"reel/internal/logs"
	"reel/internal/services"
)

// Server exposes daemon control via JSON-RPC over a Unix domain socket.
type Server struct {
	path      string
	daemon    *daemon.Daemon
	logger    *slog.Logger
	listener  net.Listener
	rpcServer *rpc.Server

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewServer configures the IPC server at the given socket path.
func NewServer(ctx context.Context, path string, d *daemon.Daemon, logger *slog.Logger) (*Server, error) {
	if d == nil {
		return nil, errors.New("ipc server requires daemon")
	}
	if logger == nil {
		logger = logging.NewNop()
	}

	if err := os.RemoveAll(path); err != nil {
		return nil, fmt.Errorf("remove existing socket: %w", err)
	}

	listener, err := net.Listen("unix", path)
	if err != nil {
		return nil, fmt.Errorf("listen on socket: %w", err)
	}

	rpcServer := rpc.NewServer()
	srv := &service{daemon: d, logger: logger, ctx: ctx}
	if err := rpcServer.RegisterName("Reel", srv); err != nil {
		listener.Close()
		return nil, fmt.Errorf("register rpc service: %w", err)
	}

	serverCtx, cancel := context.WithCancel(ctx)
	return &Server{
		path:      path,
		daemon:    d,
		logger:    logger,
		listener:  listener,
		rpcServer: rpcServer,
		ctx:       serverCtx,
		cancel:    cancel,
	}, nil
}

// Serve starts accepting RPC connections until the context is canceled.
func (s *Server) Serve() {
	s.logger.Debug("IPC server listening", logging.String("socket", s.path))
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			conn, err := s.listener.Accept()
			if err != nil {
				select {
				case <-s.ctx.Done():
					return
				default:
				}
				s.logger.Warn("accept failed",
					logging.Error(err),
					logging.String(logging.FieldEventType, "ipc_accept_failed"),
					logging.String("impact", "IPC clients may fail to connect"),
					logging.String(logging.FieldErrorHint, "Check socket permissions and restart the daemon if needed"))
				continue
			}
			s.wg.Add(1)
			go func(c net.Conn) {
				defer s.wg.Done()
				s.rpcServer.ServeCodec(jsonrpc.NewServerCodec(c))
			}(conn)
		}
	}()
}

// Close stops the server and removes the socket file.
func (s *Server) Close() {
	s.cancel()
	if s.listener != nil {
		_ = s.listener.Close()
	}
	s.wg.Wait()
	if err := os.RemoveAll(s.path); err != nil {
		s.logger.Warn("failed to remove socket",
			logging.String("socket", s.path),
			logging.Error(err),
			logging.String(logging.FieldEventType, "ipc_socket_cleanup_failed"),
			logging.String("impact", "stale IPC socket may block future starts"),
			logging.String(logging.FieldErrorHint, "Remove the socket file manually or rerun reel stop"))
	}
}

type service struct {
	daemon *daemon.Daemon
	logger *slog.Logger
	ctx    context.Context
}

func (s *service) log() *slog.Logger {
	if s.logger == nil {
		return logging.NewNop()
	}
	return s.logger.With(logging.String(logging.FieldComponent, "ipc"))
}

// reqCtx stamps a fresh correlation identifier onto the server context so
// log lines from the daemon and its components can be tied back to the
// RPC call that triggered them.
func (s *service) reqCtx() (context.Context, *slog.Logger) {
	ctx := services.WithRequestID(s.ctx, uuid.NewString())
	return ctx, logging.WithContext(ctx, s.log())
}

// rpcError prefixes handler errors with their stable classification code so
// the client can recover it; sentinel errors do not survive net/rpc.
func rpcError(err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("[%s] %s", services.Code(err), err.Error())
}

func accountView(account ledger.Account) *AccountView {
	return &AccountView{
		Identity:           account.Identity,
		Email:              account.Email,
		Credits:            account.Credits,
		SubscriptionActive: account.SubscriptionActive,
		NextRewardAt:       account.NextRewardAt,
	}
}

func jobView(job *generation.JobInfo) *JobView {
	if job == nil {
		return nil
	}
	return &JobView{
		JobID:           job.JobID,
		Prompt:          job.Prompt,
		AspectRatio:     job.AspectRatio,
		DurationSeconds: job.DurationSeconds,
		ReservedCredits: job.ReservedCredits,
		StartedAt:       job.StartedAt,
		ElapsedSeconds:  int64(job.Elapsed / time.Second),
	}
}

func resultView(result *generation.Result) *ResultView {
	if result == nil {
		return nil
	}
	return &ResultView{
		VideoURL:     result.VideoURL,
		ErrorMessage: result.ErrorMessage,
		ResolvedAt:   result.ResolvedAt,
	}
}

func (s *service) Start(_ StartRequest, resp *StartResponse) error {
	ctx, logger := s.reqCtx()
	logger.Debug("daemon start requested")
	if err := s.daemon.Start(ctx); err != nil {
		resp.Started = false
		resp.Message = err.Error()
		return nil
	}
	resp.Started = true
	resp.Message = "daemon started"
	logger.Info("daemon started via IPC",
		logging.String(logging.FieldEventType, "daemon_start"))
	return nil
}

func (s *service) Stop(_ StopRequest, resp *StopResponse) error {
	s.log().Debug("daemon stop requested")
	s.daemon.Stop()
	resp.Stopped = true
	s.log().Info("daemon stopped via IPC",
		logging.String(logging.FieldEventType, "daemon_stop"))
	return nil
}

func (s *service) Status(_ StatusRequest, resp *StatusResponse) error {
	status := s.daemon.Status()
	resp.Running = status.Running
	resp.PID = status.PID
	resp.StartedAt = status.StartedAt
	resp.DatabasePath = status.DatabasePath
	resp.LockPath = status.LockPath
	resp.LogPath = s.daemon.LogPath()
	resp.SignedIn = status.SignedIn
	if status.SignedIn {
		resp.Account = accountView(status.Account)
	}
	resp.JobState = string(status.Generation.State)
	resp.Job = jobView(status.Generation.Job)
	resp.LastResult = resultView(status.Generation.LastResult)
	return nil
}

func (s *service) SignIn(req SignInRequest, resp *SignInResponse) error {
	ctx, logger := s.reqCtx()
	account, err := s.daemon.SignIn(ctx, req.Identity, req.Email)
	if err != nil {
		return rpcError(err)
	}
	resp.Account = *accountView(account)
	logger.Info("signed in via IPC",
		logging.String(logging.FieldEventType, "account_sign_in"),
		logging.String(logging.FieldIdentity, account.Identity))
	return nil
}

func (s *service) SignOut(_ SignOutRequest, resp *SignOutResponse) error {
	ctx, logger := s.reqCtx()
	if err := s.daemon.SignOut(ctx); err != nil {
		return rpcError(err)
	}
	resp.SignedOut = true
	logger.Info("signed out via IPC",
		logging.String(logging.FieldEventType, "account_sign_out"))
	return nil
}

func (s *service) DeleteAccount(_ DeleteAccountRequest, resp *DeleteAccountResponse) error {
	ctx, logger := s.reqCtx()
	if err := s.daemon.DeleteAccount(ctx); err != nil {
		return rpcError(err)
	}
	resp.Deleted = true
	logger.Info("account deleted via IPC",
		logging.String(logging.FieldEventType, "account_delete"))
	return nil
}

func (s *service) Account(_ AccountRequest, resp *AccountResponse) error {
	account, signedIn := s.daemon.Account()
	resp.SignedIn = signedIn
	if signedIn {
		resp.Account = accountView(account)
	}
	return nil
}

func (s *service) Submit(req SubmitRequest, resp *SubmitResponse) error {
	duration, err := generation.ParseDuration(req.DurationSeconds)
	if err != nil {
		return rpcError(err)
	}
	aspect, err := generation.ParseAspectRatio(req.AspectRatio)
	if err != nil {
		return rpcError(err)
	}
	ctx, _ := s.reqCtx()
	jobID, err := s.daemon.Submit(ctx, generation.SubmitParams{
		Prompt:      req.Prompt,
		AspectRatio: aspect,
		Duration:    duration,
		ImageBase64: req.ImageBase64,
	})
	if err != nil {
		return rpcError(err)
	}
	resp.JobID = jobID
	snapshot := s.daemon.Generation()
	if snapshot.Job != nil && snapshot.Job.JobID == jobID {
		resp.Job = jobView(snapshot.Job)
	}
	return nil
}

func (s *service) JobStatus(_ JobStatusRequest, resp *JobStatusResponse) error {
	snapshot := s.daemon.Generation()
	resp.State = string(snapshot.State)
	resp.Job = jobView(snapshot.Job)
	resp.LastResult = resultView(snapshot.LastResult)
	return nil
}

func (s *service) History(_ HistoryRequest, resp *HistoryResponse) error {
	videos := s.daemon.History()
	resp.Videos = make([]VideoView, 0, len(videos))
	for _, video := range videos {
		resp.Videos = append(resp.Videos, VideoView{
			Prompt:          video.Prompt,
			AspectRatio:     video.AspectRatio,
			DurationSeconds: video.DurationSeconds,
			VideoURL:        video.VideoURL,
			CreatedAt:       video.CreatedAt,
		})
	}
	return nil
}

func (s *service) Catalog(_ CatalogRequest, resp *CatalogResponse) error {
	products, err := s.daemon.Catalog(s.ctx)
	if err != nil {
		return rpcError(err)
	}
	resp.Products = make([]ProductView, 0, len(products))
	for _, product := range products {
		view := ProductView{
			ID:          product.ID,
			DisplayName: product.DisplayName,
			Description: product.Description,
			Price:       product.Price,
			Kind:        string(product.Kind),
		}
		if credits, ok := billing.CreditsForPack(product.ID); ok {
			view.Credits = credits
		}
		resp.Products = append(resp.Products, view)
	}
	return nil
}

func (s *service) Purchase(req PurchaseRequest, resp *PurchaseResponse) error {
	ctx, logger := s.reqCtx()
	result, err := s.daemon.Purchase(ctx, req.ProductID)
	if err != nil {
		return rpcError(err)
	}
	resp.Outcome = string(result.Outcome)
	resp.Message = result.Message
	if account, signedIn := s.daemon.Account(); signedIn {
		resp.Account = accountView(account)
	}
	logger.Info("purchase processed via IPC",
		logging.String(logging.FieldEventType, "purchase"),
		logging.String(logging.FieldProduct, req.ProductID),
		logging.String("outcome", resp.Outcome))
	return nil
}

func (s *service) SyncEntitlements(_ SyncRequest, resp *SyncResponse) error {
	ctx, _ := s.reqCtx()
	if err := s.daemon.SyncAccount(ctx); err != nil {
		return rpcError(err)
	}
	if account, signedIn := s.daemon.Account(); signedIn {
		resp.Account = accountView(account)
	}
	return nil
}

func (s *service) TestNotification(_ TestNotificationRequest, resp *TestNotificationResponse) error {
	ctx, _ := s.reqCtx()
	sent, message, err := s.daemon.TestNotification(ctx)
	resp.Sent = sent
	resp.Message = message
	if err != nil {
		return rpcError(err)
	}
	return nil
}

func (s *service) LogTail(req LogTailRequest, resp *LogTailResponse) error {
	logPath := s.daemon.LogPath()
	if logPath == "" {
		resp.Offset = 0
		return nil
	}
	wait := time.Duration(req.WaitMillis) * time.Millisecond
	if wait <= 0 && req.Follow {
		wait = time.Second
	}
	options := logs.TailOptions{
		Offset: req.Offset,
		Limit:  req.Limit,
		Follow: req.Follow,
		Wait:   wait,
	}
	ctx := s.ctx
	if req.Follow && wait > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(s.ctx, wait+500*time.Millisecond)
		defer cancel()
	}
	result, err := logs.Tail(ctx, logPath, options)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			resp.Offset = result.Offset
			return nil
		}
		return err
	}
	resp.Lines = result.Lines
	resp.Offset = result.Offset
	return nil
}
