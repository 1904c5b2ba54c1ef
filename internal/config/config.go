package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Sora contains configuration for the remote video-generation service.
type Sora struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	CallbackURL    string `toml:"callback_url"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Billing contains configuration for the storefront purchase service.
type Billing struct {
	BaseURL        string `toml:"base_url"`
	APIKey         string `toml:"api_key"`
	RequestTimeout int    `toml:"request_timeout"`
}

// Generation contains timing configuration for the job lifecycle.
// The delays are business tuning for the remote pipeline's known latency,
// not derivable values.
type Generation struct {
	InitialDelaySeconds int `toml:"initial_delay_seconds"`
	PollIntervalSeconds int `toml:"poll_interval_seconds"`
	MaxWaitSeconds      int `toml:"max_wait_seconds"`
}

// Rewards contains configuration for the subscriber reward schedule.
type Rewards struct {
	IntervalDays int `toml:"interval_days"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout"`
	Generation     bool   `toml:"generation"`
	Purchases      bool   `toml:"purchases"`
	Errors         bool   `toml:"errors"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for reel.
//
// Configuration sections by subsystem:
//   - Paths: data and log directories
//   - Sora: remote generation endpoints and credentials
//   - Billing: storefront endpoints and credentials
//   - Generation: poll schedule tuning
//   - Rewards: subscriber reward interval
//   - Notifications: ntfy push notification settings
//   - Logging: log format, level, and retention
type Config struct {
	Paths         Paths         `toml:"paths"`
	Sora          Sora          `toml:"sora"`
	Billing       Billing       `toml:"billing"`
	Generation    Generation    `toml:"generation"`
	Rewards       Rewards       `toml:"rewards"`
	Notifications Notifications `toml:"notifications"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/reel/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config
// has all path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs("reel.toml")
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates required directories for daemon operation.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.DataDir, c.Paths.LogDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// DatabasePath returns the location of the daemon's state database.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.Paths.DataDir, "reel.db")
}

// SocketPath returns the location of the daemon's IPC socket.
func (c *Config) SocketPath() string {
	return filepath.Join(c.Paths.DataDir, "reel.sock")
}

// PIDPath returns the location of the daemon's pid file.
func (c *Config) PIDPath() string {
	return filepath.Join(c.Paths.DataDir, "reel.pid")
}

// LockPath returns the location of the daemon's single-instance lock file.
func (c *Config) LockPath() string {
	return filepath.Join(c.Paths.DataDir, "reel.lock")
}

// InitialDelay returns the wait before the first status poll.
func (g Generation) InitialDelay() time.Duration {
	return time.Duration(g.InitialDelaySeconds) * time.Second
}

// PollInterval returns the wait between status polls.
func (g Generation) PollInterval() time.Duration {
	return time.Duration(g.PollIntervalSeconds) * time.Second
}

// MaxWait returns the total elapsed time after which a job times out.
func (g Generation) MaxWait() time.Duration {
	return time.Duration(g.MaxWaitSeconds) * time.Second
}

// Interval returns the reward period as a duration.
func (r Rewards) Interval() time.Duration {
	return time.Duration(r.IntervalDays) * 24 * time.Hour
}

// Timeout returns the per-request deadline for generation service calls.
func (s Sora) Timeout() time.Duration {
	return time.Duration(s.RequestTimeout) * time.Second
}

// Timeout returns the per-request deadline for storefront calls.
func (b Billing) Timeout() time.Duration {
	return time.Duration(b.RequestTimeout) * time.Second
}

// Timeout returns the per-request deadline for notification publishes.
func (n Notifications) Timeout() time.Duration {
	return time.Duration(n.RequestTimeout) * time.Second
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
