package config

import (
	"fmt"
	"os"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeSora()
	c.normalizeBilling()
	c.normalizeGeneration()
	c.normalizeRewards()
	c.normalizeNotifications()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = expandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeSora() {
	c.Sora.BaseURL = strings.TrimRight(strings.TrimSpace(c.Sora.BaseURL), "/")
	c.Sora.CallbackURL = strings.TrimSpace(c.Sora.CallbackURL)
	c.Sora.APIKey = strings.TrimSpace(c.Sora.APIKey)
	if c.Sora.APIKey == "" {
		if value, ok := os.LookupEnv("SORA_API_KEY"); ok {
			c.Sora.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Sora.RequestTimeout <= 0 {
		c.Sora.RequestTimeout = defaultSoraRequestTimeout
	}
}

func (c *Config) normalizeBilling() {
	c.Billing.BaseURL = strings.TrimRight(strings.TrimSpace(c.Billing.BaseURL), "/")
	c.Billing.APIKey = strings.TrimSpace(c.Billing.APIKey)
	if c.Billing.APIKey == "" {
		if value, ok := os.LookupEnv("STOREFRONT_API_KEY"); ok {
			c.Billing.APIKey = strings.TrimSpace(value)
		}
	}
	if c.Billing.RequestTimeout <= 0 {
		c.Billing.RequestTimeout = defaultBillingRequestTimeout
	}
}

func (c *Config) normalizeGeneration() {
	if c.Generation.InitialDelaySeconds < 0 {
		c.Generation.InitialDelaySeconds = defaultInitialDelaySeconds
	}
	if c.Generation.PollIntervalSeconds <= 0 {
		c.Generation.PollIntervalSeconds = defaultPollIntervalSeconds
	}
	if c.Generation.MaxWaitSeconds <= 0 {
		c.Generation.MaxWaitSeconds = defaultMaxWaitSeconds
	}
}

func (c *Config) normalizeRewards() {
	if c.Rewards.IntervalDays <= 0 {
		c.Rewards.IntervalDays = defaultRewardIntervalDays
	}
}

func (c *Config) normalizeNotifications() {
	c.Notifications.NtfyTopic = strings.TrimSpace(c.Notifications.NtfyTopic)
	if c.Notifications.RequestTimeout <= 0 {
		c.Notifications.RequestTimeout = defaultNotifyRequestTimeout
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}
