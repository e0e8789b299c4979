package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisLimiter 여러 서버 인스턴스가 공유하는 고정 윈도우 Rate Limiter
type RedisLimiter struct {
	client    *redis.Client
	keyPrefix string
}

// NewRedisLimiter Redis 기반 Rate Limiter 생성
func NewRedisLimiter(client *redis.Client, keyPrefix string) *RedisLimiter {
	if keyPrefix == "" {
		keyPrefix = "ratelimit:"
	}
	return &RedisLimiter{
		client:    client,
		keyPrefix: keyPrefix,
	}
}

// Info Rate Limit 상태 정보 (응답 헤더용)
type Info struct {
	Limit     int
	Remaining int
	ResetTime time.Time
}

// Allow 윈도우 내 요청 허용 여부 확인
// INCR + EXPIRE를 원자적으로 실행하여 인스턴스 간 경합 없이 카운트
func (r *RedisLimiter) Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, *Info, error) {
	// 윈도우 시작 시각을 키에 포함시켜 고정 윈도우 구성
	windowStart := time.Now().Truncate(window)
	redisKey := fmt.Sprintf("%s%s:%d", r.keyPrefix, key, windowStart.Unix())

	pipe := r.client.TxPipeline()
	incr := pipe.Incr(ctx, redisKey)
	pipe.Expire(ctx, redisKey, window)
	if _, err := pipe.Exec(ctx); err != nil {
		return false, nil, fmt.Errorf("failed to check rate limit: %w", err)
	}

	count := int(incr.Val())
	remaining := limit - count
	if remaining < 0 {
		remaining = 0
	}

	info := &Info{
		Limit:     limit,
		Remaining: remaining,
		ResetTime: windowStart.Add(window),
	}

	return count <= limit, info, nil
}
