package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"reel/internal/billing"
	"reel/internal/config"
	"reel/internal/daemon"
	"reel/internal/generation"
	"reel/internal/ipc"
	"reel/internal/ledger"
	"reel/internal/logging"
	"reel/internal/rewards"
	"reel/internal/sora"
	"reel/internal/store"
)

type cliTestEnv struct {
	cfg        *config.Config
	daemon     *daemon.Daemon
	server     *ipc.Server
	socketPath string
	configPath string
	baseDir    string
	logPath    string
	cancel     context.CancelFunc
}

// stubSora serves the two generation endpoints: submissions always
// succeed and every status poll reports a finished video.
func stubSora(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/submit", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{}`)
	})
	mux.HandleFunc("/status", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			JobID string `json:"jobId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{
			"urlVideo": "https://cdn.reel.invalid/videos/" + req.JobID + ".mp4",
		})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

// stubStorefront serves a two-product catalog and verifies every
// purchase with a fresh transaction id.
func stubStorefront(t *testing.T) *httptest.Server {
	t.Helper()
	var purchases atomic.Int64
	mux := http.NewServeMux()
	mux.HandleFunc("/products", func(w http.ResponseWriter, r *http.Request) {
		products := []billing.Product{
			{ID: billing.ProductSubscription, DisplayName: "Reel Plus", Price: "$9.99", Kind: billing.KindSubscription},
			{ID: billing.ProductPackSmall, DisplayName: "Small Credit Pack", Price: "$4.99", Kind: billing.KindCreditPack},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(products)
	})
	mux.HandleFunc("/purchase", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ProductID string `json:"productId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		result := billing.PurchaseResult{
			Outcome: billing.OutcomeSuccess,
			Transaction: &billing.Transaction{
				ID:          fmt.Sprintf("txn-%d", purchases.Add(1)),
				ProductID:   req.ProductID,
				PurchasedAt: time.Now().UTC(),
			},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(result)
	})
	mux.HandleFunc("/entitlements", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `[]`)
	})
	mux.HandleFunc("/updates", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(100 * time.Millisecond):
		}
		w.WriteHeader(http.StatusNoContent)
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func setupCLITestEnv(t *testing.T, tweaks ...func(*config.Config)) *cliTestEnv {
	t.Helper()

	base := t.TempDir()
	soraSrv := stubSora(t)
	storeSrv := stubStorefront(t)

	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Sora.BaseURL = soraSrv.URL
	cfgVal.Sora.APIKey = "test-key"
	cfgVal.Billing.BaseURL = storeSrv.URL
	cfgVal.Billing.APIKey = "test-key"
	cfgVal.Generation.InitialDelaySeconds = 1
	cfgVal.Generation.PollIntervalSeconds = 1
	cfgVal.Generation.MaxWaitSeconds = 10
	for _, tweak := range tweaks {
		tweak(&cfgVal)
	}
	cfg := &cfgVal

	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)

	st, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}

	logger := logging.NewNop()
	accounts := ledger.New(st, logger)
	soraClient := sora.NewClient(cfg, logger)
	coordinator := generation.NewCoordinator(cfg, soraClient, accounts, st, logger)
	provider := billing.NewProvider(cfg, logger)
	reconciler := billing.NewReconciler(cfg, provider, accounts, st, logger)
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

	ctx, cancel := context.WithCancel(context.Background())
	socketPath := cfg.SocketPath()
	srv, err := ipc.NewServer(ctx, socketPath, d, logger)
	if err != nil {
		cancel()
		t.Fatalf("ipc.NewServer: %v", err)
	}
	srv.Serve()

	if err := d.Start(ctx); err != nil {
		cancel()
		srv.Close()
		t.Fatalf("daemon.Start: %v", err)
	}

	logPath := filepath.Join(cfg.Paths.LogDir, "reel.log")
	if err := os.WriteFile(logPath, nil, 0o644); err != nil {
		t.Fatalf("create log file: %v", err)
	}

	env := &cliTestEnv{
		cfg:        cfg,
		daemon:     d,
		server:     srv,
		socketPath: socketPath,
		configPath: configPath,
		baseDir:    base,
		logPath:    logPath,
		cancel:     cancel,
	}

	t.Cleanup(func() {
		cancel()
		srv.Close()
		_ = d.Close()
	})

	return env
}

// writeOfflineConfig writes a config whose daemon socket has no listener.
func writeOfflineConfig(t *testing.T) (string, *config.Config) {
	t.Helper()
	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Sora.BaseURL = "http://127.0.0.1:9"
	cfgVal.Sora.APIKey = "test-key"
	cfgVal.Billing.BaseURL = ""
	cfgVal.Billing.APIKey = ""
	cfg := &cfgVal
	configPath := filepath.Join(base, "config.toml")
	writeTestConfig(t, configPath, cfg)
	return configPath, cfg
}

func writeTestConfig(t *testing.T, path string, cfg *config.Config) {
	t.Helper()
	content := fmt.Sprintf(`[paths]
data_dir = %q
log_dir = %q

[sora]
base_url = %q
api_key = %q

[billing]
base_url = %q
api_key = %q

[generation]
initial_delay_seconds = %d
poll_interval_seconds = %d
max_wait_seconds = %d

[logging]
level = "error"
format = "console"
`,
		cfg.Paths.DataDir,
		cfg.Paths.LogDir,
		cfg.Sora.BaseURL,
		cfg.Sora.APIKey,
		cfg.Billing.BaseURL,
		cfg.Billing.APIKey,
		cfg.Generation.InitialDelaySeconds,
		cfg.Generation.PollIntervalSeconds,
		cfg.Generation.MaxWaitSeconds,
	)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
}

func runCLI(t *testing.T, args []string, configPath string) (string, string, error) {
	t.Helper()
	cmd := newRootCommand()
	var stdout, stderr bytes.Buffer
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cliArgs := args
	if configPath != "" {
		cliArgs = append([]string{"--config", configPath}, args...)
	}
	cmd.SetArgs(cliArgs)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	_, err = f.WriteString(line + "\n")
	return err
}

func waitFor(t *testing.T, duration time.Duration, fn func() bool) {
	t.Helper()
	deadline := time.Now().Add(duration)
	for time.Now().Before(deadline) {
		if fn() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", duration)
}

func requireContains(t *testing.T, output, substr string) {
	t.Helper()
	if !strings.Contains(output, substr) {
		t.Fatalf("expected %q to contain %q", output, substr)
	}
}
