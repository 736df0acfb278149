package config

import (
	"testing"
	"time"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"YOUTUBE_API_KEY", "YT_ACCESS_TOKEN", "CHAT_MAX_PAGE_SIZE",
		"FETCH_MAX_ATTEMPTS", "FETCH_BACKOFF", "INNERTUBE_RPS", "HTTP_ADDR",
	} {
		t.Setenv(key, "")
	}
	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.ChatMaxPageSize != 2000 {
		t.Errorf("ChatMaxPageSize = %d", cfg.ChatMaxPageSize)
	}
	if cfg.FetchMaxAttempts != 3 {
		t.Errorf("FetchMaxAttempts = %d", cfg.FetchMaxAttempts)
	}
	if cfg.FetchBackoff != 500*time.Millisecond {
		t.Errorf("FetchBackoff = %v", cfg.FetchBackoff)
	}
	if cfg.InnerTubeRPS != 3 {
		t.Errorf("InnerTubeRPS = %v", cfg.InnerTubeRPS)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if cfg.HasAPIAccess() {
		t.Error("HasAPIAccess() should be false without credentials")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("YOUTUBE_API_KEY", "key-123")
	t.Setenv("CHAT_MAX_PAGE_SIZE", "500")
	t.Setenv("FETCH_MAX_ATTEMPTS", "5")
	t.Setenv("FETCH_BACKOFF", "2s")
	t.Setenv("INNERTUBE_RPS", "1.5")
	t.Setenv("HTTP_ADDR", ":9090")

	cfg, err := Load()
	if err != nil {
		t.Fatal(err)
	}
	if cfg.YouTubeAPIKey != "key-123" {
		t.Errorf("YouTubeAPIKey = %q", cfg.YouTubeAPIKey)
	}
	if cfg.ChatMaxPageSize != 500 {
		t.Errorf("ChatMaxPageSize = %d", cfg.ChatMaxPageSize)
	}
	if cfg.FetchMaxAttempts != 5 {
		t.Errorf("FetchMaxAttempts = %d", cfg.FetchMaxAttempts)
	}
	if cfg.FetchBackoff != 2*time.Second {
		t.Errorf("FetchBackoff = %v", cfg.FetchBackoff)
	}
	if cfg.InnerTubeRPS != 1.5 {
		t.Errorf("InnerTubeRPS = %v", cfg.InnerTubeRPS)
	}
	if cfg.HTTPAddr != ":9090" {
		t.Errorf("HTTPAddr = %q", cfg.HTTPAddr)
	}
	if !cfg.HasAPIAccess() {
		t.Error("HasAPIAccess() should be true with an API key")
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"CHAT_MAX_PAGE_SIZE", "zero"},
		{"CHAT_MAX_PAGE_SIZE", "-1"},
		{"FETCH_MAX_ATTEMPTS", "0"},
		{"FETCH_BACKOFF", "fast"},
		{"FETCH_BACKOFF", "-1s"},
		{"INNERTUBE_RPS", "lots"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Load() with %s=%q should fail", tt.key, tt.value)
			}
		})
	}
}

func TestHasAPIAccessToken(t *testing.T) {
	cfg := &Config{YTAccessToken: "ya29.token"}
	if !cfg.HasAPIAccess() {
		t.Error("bearer token should grant API access")
	}
}
