package config

import (
	"os"
	"strconv"
	"time"
)

// RateLimitConfig controls the Redis token-bucket limiter.  The callback
// endpoints get their own tighter bucket (see LoadCallbackRateLimit)
// because a gateway retrying an IPN is the only legitimate repeat caller
// there.
type RateLimitConfig struct {
	Enabled        bool
	Capacity       int
	RefillTokens   int
	RefillInterval time.Duration
	TTL            time.Duration
	Prefix         string
	Debug          bool
}

// LoadRateLimitConfig reads the limiter settings for the authenticated
// API group.
func LoadRateLimitConfig() RateLimitConfig {
	return normalize(RateLimitConfig{
		Enabled:        envBool("RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("RATE_LIMIT_CAPACITY", 60),
		RefillTokens:   envInt("RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("RATE_LIMIT_TTL", 10*time.Minute),
		Prefix:         envStr("RATE_LIMIT_PREFIX", "rl"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	})
}

// LoadCallbackRateLimit reads the limiter settings for the unauthenticated
// gateway callback endpoints.
func LoadCallbackRateLimit() RateLimitConfig {
	return normalize(RateLimitConfig{
		Enabled:        envBool("CALLBACK_RATE_LIMIT_ENABLED", true),
		Capacity:       envInt("CALLBACK_RATE_LIMIT_CAPACITY", 20),
		RefillTokens:   envInt("CALLBACK_RATE_LIMIT_REFILL_TOKENS", 1),
		RefillInterval: envDur("CALLBACK_RATE_LIMIT_REFILL_INTERVAL", time.Second),
		TTL:            envDur("CALLBACK_RATE_LIMIT_TTL", 10*time.Minute),
		Prefix:         envStr("CALLBACK_RATE_LIMIT_PREFIX", "rl:cb"),
		Debug:          envBool("RATE_LIMIT_DEBUG", false),
	})
}

func normalize(cfg RateLimitConfig) RateLimitConfig {
	if cfg.Capacity < 1 {
		cfg.Capacity = 1
	}
	if cfg.RefillTokens < 1 {
		cfg.RefillTokens = 1
	}
	if cfg.RefillInterval <= 0 {
		cfg.RefillInterval = time.Second
	}
	if minTTL := 5 * cfg.RefillInterval; cfg.TTL < minTTL {
		cfg.TTL = minTTL
	}
	return cfg
}

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
