package middleware

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/cp-duel/cp-duel-backend/pkg/logger"
	"github.com/cp-duel/cp-duel-backend/pkg/ratelimit"
)

// RateLimitConfig in-process rate limit configuration
type RateLimitConfig struct {
	Limit   int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
}

// RedisRateLimitConfig Redis 기반 분산 Rate Limit 설정
type RedisRateLimitConfig struct {
	Limiter *ratelimit.RedisLimiter
	Limit   int
	Window  time.Duration
	KeyFunc func(*gin.Context) string
}

// DefaultKeyFunc uses user ID if authenticated, otherwise IP address
func DefaultKeyFunc(c *gin.Context) string {
	if userID, exists := c.Get("userId"); exists {
		return fmt.Sprintf("user:%v", userID)
	}
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// IPKeyFunc uses only IP address (for public endpoints)
func IPKeyFunc(c *gin.Context) string {
	return fmt.Sprintf("ip:%s", c.ClientIP())
}

// UserKeyFunc uses only user ID (requires authentication)
func UserKeyFunc(c *gin.Context) string {
	if userID, exists := c.Get("userId"); exists {
		return fmt.Sprintf("user:%v", userID)
	}
	return ""
}

// RateLimit creates an in-process rate limiting middleware.
func RateLimit(config RateLimitConfig) gin.HandlerFunc {
	limiter := ratelimit.NewLimiter(config.Limit, config.Window)

	if config.KeyFunc == nil {
		config.KeyFunc = DefaultKeyFunc
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required for rate limiting",
			})
			c.Abort()
			return
		}

		if !limiter.Allow(key) {
			c.Header("X-RateLimit-Limit", strconv.Itoa(config.Limit))
			c.Header("X-RateLimit-Remaining", "0")
			c.Header("Retry-After", "1")

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":   "Rate limit exceeded",
				"message": fmt.Sprintf("Too many requests. Limit: %d per %v", config.Limit, config.Window),
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// RedisRateLimit Redis 기반 분산 Rate Limiting 미들웨어
func RedisRateLimit(config RedisRateLimitConfig) gin.HandlerFunc {
	if config.KeyFunc == nil {
		config.KeyFunc = DefaultKeyFunc
	}
	if config.Limit <= 0 {
		config.Limit = 60
	}
	if config.Window <= 0 {
		config.Window = time.Minute
	}

	return func(c *gin.Context) {
		key := config.KeyFunc(c)
		if key == "" {
			c.JSON(http.StatusUnauthorized, gin.H{
				"error": "Authentication required for rate limiting",
			})
			c.Abort()
			return
		}

		allowed, info, err := config.Limiter.Allow(c.Request.Context(), key, config.Limit, config.Window)
		if err != nil {
			// Redis 오류 시 요청 허용 (fail-open)
			logger.Warn("Rate limit check failed", "key", key, "error", err)
			c.Next()
			return
		}

		c.Header("X-RateLimit-Limit", strconv.Itoa(info.Limit))
		c.Header("X-RateLimit-Remaining", strconv.Itoa(info.Remaining))
		c.Header("X-RateLimit-Reset", strconv.FormatInt(info.ResetTime.Unix(), 10))

		if !allowed {
			retryAfter := int(time.Until(info.ResetTime).Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			c.Header("Retry-After", strconv.Itoa(retryAfter))

			c.JSON(http.StatusTooManyRequests, gin.H{
				"error":       "Rate limit exceeded",
				"message":     fmt.Sprintf("Too many requests. Limit: %d per %v", config.Limit, config.Window),
				"retry_after": retryAfter,
			})
			c.Abort()
			return
		}

		c.Next()
	}
}

// Redis 기반 프리셋

// SubmissionRateLimit 제출 Rate Limit (5회/분, 사용자 기준)
func SubmissionRateLimit(limiter *ratelimit.RedisLimiter) gin.HandlerFunc {
	return RedisRateLimit(RedisRateLimitConfig{
		Limiter: limiter,
		Limit:   5,
		Window:  time.Minute,
		KeyFunc: UserKeyFunc,
	})
}

// MatchRateLimit 매치 생성 Rate Limit (10회/분, 사용자 기준)
func MatchRateLimit(limiter *ratelimit.RedisLimiter) gin.HandlerFunc {
	return RedisRateLimit(RedisRateLimitConfig{
		Limiter: limiter,
		Limit:   10,
		Window:  time.Minute,
		KeyFunc: UserKeyFunc,
	})
}

// AuthRateLimit 로그인/가입 Rate Limit (5회/분, IP 기준 - 인증 전이므로)
func AuthRateLimit(limiter *ratelimit.RedisLimiter) gin.HandlerFunc {
	return RedisRateLimit(RedisRateLimitConfig{
		Limiter: limiter,
		Limit:   5,
		Window:  time.Minute,
		KeyFunc: IPKeyFunc,
	})
}
