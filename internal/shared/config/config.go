package config

import (
	"os"
	"strings"
	"time"
)

// Config holds application configuration.
type Config struct {
	APIBaseURL    string
	PollInterval  time.Duration
	HTTPTimeout   time.Duration
	DownloadDir   string
	StubPort      string
	StubStepDelay time.Duration
	Env           string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() Config {
	return Config{
		APIBaseURL:    strings.TrimRight(getEnv("ANALYZER_API_URL", "http://localhost:8000"), "/"),
		PollInterval:  getEnvDuration("POLL_INTERVAL", 2*time.Second),
		HTTPTimeout:   getEnvDuration("HTTP_TIMEOUT", 30*time.Second),
		DownloadDir:   getEnv("DOWNLOAD_DIR", "."),
		StubPort:      getEnv("STUB_PORT", "8000"),
		StubStepDelay: getEnvDuration("STUB_STEP_DELAY", 300*time.Millisecond),
		Env:           normalizeEnv(getEnv("ENV", "dev")),
	}
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvDuration(key string, def time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil && d > 0 {
			return d
		}
	}
	return def
}

func normalizeEnv(raw string) string {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "production", "prod":
		return "production"
	case "staging":
		return "staging"
	case "local":
		return "local"
	default:
		return "dev"
	}
}
