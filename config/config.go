// Package config exposes the fixed set of knobs the feed subsystem
// recognizes. Values come from the environment (after dotenv loading) and
// fall back to the documented defaults; no other knobs are read.
package config

import (
	"os"
	"strconv"
	"time"
)

type Config struct {
	// Feed read path.
	FeedPageDefaultSize int
	FeedPageMaxSize     int
	FeedIndexBound      int

	// Fan-out.
	FanoutBatchSize   int
	CommentCacheCount int

	// Warm-up.
	ActiveWindow   time.Duration
	WarmupInterval time.Duration

	// Resilience monitor.
	ProbeInterval              time.Duration
	ReconnectAttempts          int
	ReconnectBackoffBase       time.Duration
	ReconnectBackoffMultiplier float64
}

// FromEnv builds the config with defaults applied for every unset knob.
func FromEnv() *Config {
	return &Config{
		FeedPageDefaultSize: getInt("FEED_PAGE_DEFAULT_SIZE", 20),
		FeedPageMaxSize:     getInt("FEED_PAGE_MAX_SIZE", 50),
		FeedIndexBound:      getInt("FEED_INDEX_BOUND", 500),

		FanoutBatchSize:   getInt("FANOUT_BATCH_SIZE", 1000),
		CommentCacheCount: getInt("COMMENT_CACHE_COUNT", 3),

		ActiveWindow:   getDuration("ACTIVE_WINDOW", 7*24*time.Hour),
		WarmupInterval: getDuration("WARMUP_INTERVAL", time.Hour),

		ProbeInterval:              getDuration("PROBE_INTERVAL", 30*time.Second),
		ReconnectAttempts:          getInt("RECONNECT_ATTEMPTS", 5),
		ReconnectBackoffBase:       getDuration("RECONNECT_BACKOFF_BASE", time.Second),
		ReconnectBackoffMultiplier: getFloat("RECONNECT_BACKOFF_MULTIPLIER", 2),
	}
}

func getInt(name string, fallback int) int {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return v
}

func getFloat(name string, fallback float64) float64 {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return fallback
	}
	return v
}

func getDuration(name string, fallback time.Duration) time.Duration {
	raw := os.Getenv(name)
	if raw == "" {
		return fallback
	}
	v, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}
	return v
}
