package config

// Config holds runtime configuration for the service.
type Config struct {
	Port               string
	PollInterval       Duration
	PollConcurrency    int
	TrailingWindowDays int
	DefaultMinimumTime int // minutes, used when challenge creation omits one
	Database           DatabaseConfig
	Hackatime          HackatimeConfig
	Metrics            MetricsConfig
}

// Load reads configuration from environment variables with sensible defaults.
// Database settings may additionally come from an optional config.yaml.
func Load() Config {
	return Config{
		Port:               envOrDefault(envPort, defaultPort),
		PollInterval:       durationEnvOrDefault(envPollInterval, defaultPollInterval),
		PollConcurrency:    intEnvOrDefault(envPollConcurrency, defaultPollConcurrency),
		TrailingWindowDays: intEnvOrDefault(envTrailingWindow, defaultTrailingWindowDays),
		DefaultMinimumTime: intEnvOrDefault(envDefaultMinimum, defaultMinimumTimeMinutes),
		Database:           loadDatabase(),
		Hackatime:          loadHackatime(),
		Metrics:            loadMetrics(),
	}
}
