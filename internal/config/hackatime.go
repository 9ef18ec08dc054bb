package config

const (
	envHackatimeBaseURL     = "HACKATIME_BASE_URL"
	envHackatimeDatabaseURL = "HACKATIME_DATABASE_URL"

	defaultHackatimeBaseURL = "https://waka.hackclub.com"
)

// HackatimeConfig controls how we reach the external time-tracking service:
// its summary API over HTTP and its heartbeat database directly.
type HackatimeConfig struct {
	BaseURL     string
	DatabaseURL string
}

func loadHackatime() HackatimeConfig {
	return HackatimeConfig{
		BaseURL:     envOrDefault(envHackatimeBaseURL, defaultHackatimeBaseURL),
		DatabaseURL: envOrDefault(envHackatimeDatabaseURL, ""),
	}
}
