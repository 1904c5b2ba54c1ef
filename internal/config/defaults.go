package config

const (
	defaultDataDir                 = "~/.local/share/reel"
	defaultLogDir                  = "~/.local/share/reel/logs"
	defaultLogFormat               = "console"
	defaultLogLevel                = "info"
	defaultLogRetentionDays        = 60
	defaultSoraRequestTimeout      = 30
	defaultBillingRequestTimeout   = 30
	defaultNotifyRequestTimeout    = 10
	defaultInitialDelaySeconds     = 180
	defaultPollIntervalSeconds     = 30
	defaultMaxWaitSeconds          = 360
	defaultRewardIntervalDays      = 7
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Sora: Sora{
			RequestTimeout: defaultSoraRequestTimeout,
		},
		Billing: Billing{
			RequestTimeout: defaultBillingRequestTimeout,
		},
		Generation: Generation{
			InitialDelaySeconds: defaultInitialDelaySeconds,
			PollIntervalSeconds: defaultPollIntervalSeconds,
			MaxWaitSeconds:      defaultMaxWaitSeconds,
		},
		Rewards: Rewards{
			IntervalDays: defaultRewardIntervalDays,
		},
		Notifications: Notifications{
			RequestTimeout: defaultNotifyRequestTimeout,
			Generation:     true,
			Purchases:      true,
			Errors:         true,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
