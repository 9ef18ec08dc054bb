package config

import "time"

const (
	envPort           = "PORT"
	envPollInterval   = "POLL_INTERVAL"
	envPollConcurrency = "POLL_CONCURRENCY"
	envTrailingWindow = "TRAILING_WINDOW_DAYS"
	envDefaultMinimum = "DEFAULT_MINIMUM_TIME_MINUTES"
	envMetricsPort    = "METRICS_PORT"
	envMetricsOn      = "METRICS_ENABLED"
	envOtelEndpoint   = "OTEL_EXPORTER_OTLP_ENDPOINT"
	envOtelService    = "OTEL_SERVICE_NAME"
	envOtelInsecure   = "OTEL_EXPORTER_OTLP_INSECURE"
	envConfigFile     = "CONFIG_FILE"

	defaultPort = "3000"
	// Conservative default so a slow upstream cannot overlap too many cycles.
	defaultPollInterval = 30 * Duration(time.Second)
	// Cap on concurrent per-user refreshes within one poll cycle.
	defaultPollConcurrency = 4
	// How long after a challenge ends we keep resynchronizing late heartbeats.
	defaultTrailingWindowDays = 7
	defaultMinimumTimeMinutes = 30
	defaultMetricsPort        = "9090"
	defaultConfigFile         = "config.yaml"
)
