// Package ratelimit provides per-client request rate limiting.
// This package is internal and should not be imported by external projects.
package ratelimit

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Limiter decides whether a request identified by key may proceed.
// A non-nil error means the decision could not be made; callers choose
// whether to fail open.
type Limiter interface {
	Allow(ctx context.Context, key string) (bool, error)
}

// =============================================================================
// 🪣 进程内令牌桶
// =============================================================================

const (
	cleanupInterval = time.Minute
	visitorIdleTTL  = 3 * time.Minute
)

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// Local 进程内限流器，每个 key 一个令牌桶
type Local struct {
	rps   rate.Limit
	burst int
	now   func() time.Time

	mu       sync.Mutex
	visitors map[string]*visitor
}

// NewLocal 创建进程内限流器，并在 ctx 结束前定期清理空闲 key
func NewLocal(ctx context.Context, rps float64, burst int) *Local {
	l := &Local{
		rps:      rate.Limit(rps),
		burst:    burst,
		now:      time.Now,
		visitors: make(map[string]*visitor),
	}
	go l.cleanupLoop(ctx)
	return l
}

// Allow 消耗 key 对应桶中的一个令牌
func (l *Local) Allow(_ context.Context, key string) (bool, error) {
	now := l.now()

	l.mu.Lock()
	v, ok := l.visitors[key]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[key] = v
	}
	v.lastSeen = now
	l.mu.Unlock()

	return v.limiter.AllowN(now, 1), nil
}

// Cleanup 删除空闲超过 maxIdle 的 key，返回删除数量
func (l *Local) Cleanup(maxIdle time.Duration) int {
	now := l.now()

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for key, v := range l.visitors {
		if now.Sub(v.lastSeen) > maxIdle {
			delete(l.visitors, key)
			removed++
		}
	}
	return removed
}

// Len 返回当前跟踪的 key 数量
func (l *Local) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.visitors)
}

func (l *Local) cleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(cleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			l.Cleanup(visitorIdleTTL)
		}
	}
}

// =============================================================================
// 🌐 Redis 固定窗口
// =============================================================================

// DefaultKeyPrefix Redis 限流 key 前缀
const DefaultKeyPrefix = "agents:ratelimit:"

// Redis 基于 Redis 的固定窗口限流器，多实例共享计数。
// 每个窗口允许 burst 个请求，窗口长度为 burst/rps 秒，平均速率与令牌桶一致。
type Redis struct {
	client redis.Cmdable
	prefix string
	limit  int64
	window time.Duration
	logger *zap.Logger
}

// NewRedis 创建 Redis 限流器
func NewRedis(client redis.Cmdable, rps float64, burst int, logger *zap.Logger) (*Redis, error) {
	if rps <= 0 || burst <= 0 {
		return nil, fmt.Errorf("ratelimit: rps and burst must be positive (rps=%v, burst=%d)", rps, burst)
	}
	window := time.Duration(math.Ceil(float64(burst) / rps * float64(time.Second)))
	if window < time.Millisecond {
		window = time.Millisecond
	}
	return &Redis{
		client: client,
		prefix: DefaultKeyPrefix,
		limit:  int64(burst),
		window: window,
		logger: logger.With(zap.String("component", "ratelimit")),
	}, nil
}

// Window 返回窗口长度
func (r *Redis) Window() time.Duration { return r.window }

// windowScript increments the window counter and arms its expiry in one
// round trip. A counter found without a TTL is re-armed.
var windowScript = redis.NewScript(`
local count = redis.call("INCR", KEYS[1])
if redis.call("PTTL", KEYS[1]) < 0 then
	redis.call("PEXPIRE", KEYS[1], ARGV[1])
end
return count
`)

// Allow 对 key 的当前窗口计数加一，超过上限时拒绝
func (r *Redis) Allow(ctx context.Context, key string) (bool, error) {
	redisKey := r.prefix + key

	count, err := windowScript.Run(ctx, r.client, []string{redisKey}, r.window.Milliseconds()).Int64()
	if err != nil {
		return false, fmt.Errorf("ratelimit: incr %s: %w", redisKey, err)
	}

	if count > r.limit {
		r.logger.Debug("rate limit exceeded",
			zap.String("key", key),
			zap.Int64("count", count),
			zap.Int64("limit", r.limit),
		)
		return false, nil
	}
	return true, nil
}
