package redis

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/getevo/evo/v2"
	"github.com/getevo/evo/v2/lib/log"
	"github.com/talkbase-io/talkbase-backend/apps/models"
	"github.com/talkbase-io/talkbase-backend/lib/response"
)

// RateLimitConfig holds the configuration for a rate limit rule
type RateLimitConfig struct {
	MaxRequests int
	Window      time.Duration
	Enabled     bool
}

// DefaultRateLimitConfig returns a default rate limit configuration
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		MaxRequests: 60,              // 60 requests
		Window:      1 * time.Minute, // per minute
		Enabled:     true,
	}
}

// rateLimitCache stores rate limit configurations in memory
var rateLimitCache sync.Map

// SetRateLimitConfig sets a rate limit configuration for a key
func SetRateLimitConfig(key string, config RateLimitConfig) {
	rateLimitCache.Store(key, config)
}

// GetRateLimitConfig gets a rate limit configuration for a key
func GetRateLimitConfig(key string) RateLimitConfig {
	if cached, ok := rateLimitCache.Load(key); ok {
		return cached.(RateLimitConfig)
	}
	return DefaultRateLimitConfig()
}

// LoadRateLimitSettings loads per-endpoint rate limit overrides from the
// settings table. Keys follow RATE_LIMIT.<endpoint>.MAX_REQUESTS /
// WINDOW_SECONDS / ENABLED.
func LoadRateLimitSettings(keys ...string) {
	for _, key := range keys {
		config := DefaultRateLimitConfig()
		prefix := "RATE_LIMIT." + key

		if v := models.GetSettingValue(prefix+".MAX_REQUESTS", ""); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				config.MaxRequests = n
			}
		}
		if v := models.GetSettingValue(prefix+".WINDOW_SECONDS", ""); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				config.Window = time.Duration(n) * time.Second
			}
		}
		if v := models.GetSettingValue(prefix+".ENABLED", ""); v != "" {
			config.Enabled = v != "false" && v != "0"
		}

		SetRateLimitConfig(key, config)
	}
}

// EvoRateLimitMiddleware creates an evo-compatible rate limiting middleware
func EvoRateLimitMiddleware(key string) func(*evo.Request) error {
	return func(req *evo.Request) error {
		// Skip if Redis is not available
		if !IsAvailable() {
			return req.Next()
		}

		config := GetRateLimitConfig(key)
		if !config.Enabled {
			return req.Next()
		}

		// Client identifier (IP address)
		clientIP := req.IP()
		if forwarded := req.Header("X-Forwarded-For"); forwarded != "" {
			clientIP = forwarded
		}

		redisKey := fmt.Sprintf("rate_limit:%s:%s", key, clientIP)

		ctx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
		defer cancel()

		count, err := Client.Incr(ctx, redisKey).Result()
		if err != nil {
			log.Warning("Redis rate limit error: %v", err)
			return req.Next() // Allow request on Redis error
		}

		// Set expiry on first request
		if count == 1 {
			Client.Expire(ctx, redisKey, config.Window)
		}

		if int(count) > config.MaxRequests {
			return response.NewError("rate_limited", "Too many requests. Please try again later.", 429)
		}

		return req.Next()
	}
}
