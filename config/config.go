// Package config loads environment variables and provides a typed Config used across the service.
// It applies sensible defaults so the binary can run locally with minimal setup.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

type Config struct {
	// YouTube Data API
	YouTubeAPIKey string
	YTAccessToken string

	// Chat fetch tuning
	ChatMaxPageSize  int64
	FetchMaxAttempts int
	FetchBackoff     time.Duration

	// InnerTube fallback pacing (requests per second)
	InnerTubeRPS float64

	// HTTP
	HTTPAddr string
}

// Load reads environment variables and applies defaults. Missing credentials
// don't fail the load; without a Data API key the service falls back to the
// InnerTube source.
func Load() (*Config, error) {
	cfg := &Config{}

	cfg.YouTubeAPIKey = os.Getenv("YOUTUBE_API_KEY")
	cfg.YTAccessToken = os.Getenv("YT_ACCESS_TOKEN")

	cfg.ChatMaxPageSize = 2000
	if v := os.Getenv("CHAT_MAX_PAGE_SIZE"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid CHAT_MAX_PAGE_SIZE %q", v)
		}
		cfg.ChatMaxPageSize = n
	}

	cfg.FetchMaxAttempts = 3
	if v := os.Getenv("FETCH_MAX_ATTEMPTS"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid FETCH_MAX_ATTEMPTS %q", v)
		}
		cfg.FetchMaxAttempts = n
	}

	cfg.FetchBackoff = 500 * time.Millisecond
	if v := os.Getenv("FETCH_BACKOFF"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return nil, fmt.Errorf("invalid FETCH_BACKOFF %q", v)
		}
		cfg.FetchBackoff = d
	}

	cfg.InnerTubeRPS = 3
	if v := os.Getenv("INNERTUBE_RPS"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil || f <= 0 {
			return nil, fmt.Errorf("invalid INNERTUBE_RPS %q", v)
		}
		cfg.InnerTubeRPS = f
	}

	cfg.HTTPAddr = os.Getenv("HTTP_ADDR")
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	return cfg, nil
}

// HasAPIAccess reports whether the Data API source can be used.
func (c *Config) HasAPIAccess() bool {
	return c.YouTubeAPIKey != "" || c.YTAccessToken != ""
}
