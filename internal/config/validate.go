package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateSora(); err != nil {
		return err
	}
	if err := c.validateGeneration(); err != nil {
		return err
	}
	if err := c.validateTimeouts(); err != nil {
		return err
	}
	if c.Rewards.IntervalDays <= 0 {
		return errors.New("rewards.interval_days must be positive")
	}
	return nil
}

func (c *Config) validateSora() error {
	if strings.TrimSpace(c.Sora.BaseURL) == "" {
		defaultPath, err := DefaultConfigPath()
		if err != nil {
			defaultPath = "~/.config/reel/config.toml"
		}
		return fmt.Errorf("sora.base_url is required. Edit %s (create with 'reel config init')", defaultPath)
	}
	return nil
}

func (c *Config) validateGeneration() error {
	if c.Generation.InitialDelaySeconds < 0 {
		return errors.New("generation.initial_delay_seconds must not be negative")
	}
	if c.Generation.PollIntervalSeconds <= 0 {
		return errors.New("generation.poll_interval_seconds must be positive")
	}
	if c.Generation.MaxWaitSeconds <= 0 {
		return errors.New("generation.max_wait_seconds must be positive")
	}
	if c.Generation.MaxWaitSeconds <= c.Generation.InitialDelaySeconds {
		return errors.New("generation.max_wait_seconds must be greater than generation.initial_delay_seconds")
	}
	return nil
}

func (c *Config) validateTimeouts() error {
	return ensurePositiveMap(map[string]int{
		"sora.request_timeout":          c.Sora.RequestTimeout,
		"billing.request_timeout":       c.Billing.RequestTimeout,
		"notifications.request_timeout": c.Notifications.RequestTimeout,
	})
}

func ensurePositiveMap(values map[string]int) error {
	for name, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}
	return nil
}
