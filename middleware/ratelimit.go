package middleware

import (
	"context"
	"fmt"
	"time"

	"github.com/ariebrainware/medelle-reminder/config"
	"github.com/ariebrainware/medelle-reminder/util"
	"github.com/gin-gonic/gin"
	cache "github.com/patrickmn/go-cache"
	"github.com/redis/go-redis/v9"
)

const (
	defaultRateLimit  = 5
	defaultRateWindow = time.Minute
)

// RateLimitConfig holds configuration for rate limiting.
// A nil Client falls back to the shared client from config.GetRedisClient,
// and to an in-process counter when Redis is not configured at all.
type RateLimitConfig struct {
	Limit  int
	Window time.Duration
	Client *redis.Client
}

// RateLimiter counts requests per client IP and path in a fixed window.
// A failing Redis lets requests through.
func RateLimiter(cfg RateLimitConfig) gin.HandlerFunc {
	if cfg.Limit <= 0 {
		cfg.Limit = defaultRateLimit
	}
	if cfg.Window <= 0 {
		cfg.Window = defaultRateWindow
	}
	local := cache.New(cfg.Window, 2*cfg.Window)

	return func(c *gin.Context) {
		clientIP := c.ClientIP()
		endpoint := c.Request.URL.Path
		key := rateLimitKey(endpoint, clientIP)

		rdb := cfg.Client
		if rdb == nil {
			rdb = config.GetRedisClient()
		}

		var allowed bool
		if rdb == nil {
			allowed = checkLocalRateLimit(local, key, cfg.Limit, cfg.Window)
		} else {
			var err error
			allowed, err = checkRateLimit(c.Request.Context(), rdb, key, cfg.Limit, cfg.Window)
			if err != nil {
				util.Logger().Warn().Err(err).Str("ip", clientIP).Str("path", endpoint).Msg("rate limit check failed")
				c.Next()
				return
			}
		}

		if !allowed {
			util.Logger().Warn().Str("ip", clientIP).Str("path", endpoint).Msg("rate limit exceeded")
			c.Header("Retry-After", fmt.Sprintf("%d", int(cfg.Window.Seconds())))
			util.CallTooManyRequests(c, util.APIErrorParams{
				Msg: "Muitas tentativas. Tente novamente em instantes.",
				Err: fmt.Errorf("rate limit exceeded"),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

func rateLimitKey(endpoint, clientIP string) string {
	return fmt.Sprintf("ratelimit:%s:%s", endpoint, clientIP)
}

// checkRateLimit returns true while the counter for key stays within limit.
// The window starts with the first request.
func checkRateLimit(ctx context.Context, rdb *redis.Client, key string, limit int, window time.Duration) (bool, error) {
	count, err := rdb.Incr(ctx, key).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if count == 1 {
		if err := rdb.Expire(ctx, key, window).Err(); err != nil {
			return false, fmt.Errorf("failed to set rate limit window: %w", err)
		}
	}
	return count <= int64(limit), nil
}

// checkLocalRateLimit is the single-process counterpart of checkRateLimit.
func checkLocalRateLimit(local *cache.Cache, key string, limit int, window time.Duration) bool {
	for i := 0; i < 2; i++ {
		if err := local.Add(key, 1, window); err == nil {
			return 1 <= limit
		}
		// The entry can expire between Add and IncrementInt; retry once.
		if count, err := local.IncrementInt(key, 1); err == nil {
			return count <= limit
		}
	}
	return true
}
