package middleware

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/commerce/service"
	"github.com/tienbob/Tubex-sub002/internal/shared/apperr"
	"github.com/tienbob/Tubex-sub002/internal/tenant"
	"go.uber.org/zap"
)

// CounterStore holds fixed window request counters.
type CounterStore interface {
	// Incr counts one hit for key and returns the count in the current window and when it resets.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error)
}

type windowCounter struct {
	count   int64
	resetAt time.Time
}

// MemoryCounterStore 进程内计数，只适用于单实例部署
type MemoryCounterStore struct {
	mu       sync.Mutex
	counters map[string]*windowCounter
	now      func() time.Time
}

func NewMemoryCounterStore() *MemoryCounterStore {
	return &MemoryCounterStore{counters: make(map[string]*windowCounter), now: time.Now}
}

func (s *MemoryCounterStore) Incr(_ context.Context, key string, window time.Duration) (int64, time.Time, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	wc, ok := s.counters[key]
	if !ok || !now.Before(wc.resetAt) {
		wc = &windowCounter{resetAt: now.Add(window)}
		s.counters[key] = wc
	}
	wc.count++
	return wc.count, wc.resetAt, nil
}

// Sweep 清理已过期窗口
func (s *MemoryCounterStore) Sweep() {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, wc := range s.counters {
		if !now.Before(wc.resetAt) {
			delete(s.counters, k)
		}
	}
}

// 首次命中时设置过期，整个窗口内计数原子递增
var incrWindowScript = redis.NewScript(`
local n = redis.call('INCR', KEYS[1])
if n == 1 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
end
local ttl = redis.call('PTTL', KEYS[1])
if ttl < 0 then
  redis.call('PEXPIRE', KEYS[1], ARGV[1])
  ttl = tonumber(ARGV[1])
end
return {n, ttl}
`)

// RedisCounterStore shares counters between server instances.
type RedisCounterStore struct {
	rdb    *redis.Client
	prefix string
}

func NewRedisCounterStore(rdb *redis.Client, prefix string) *RedisCounterStore {
	if prefix == "" {
		prefix = "tubex:ratelimit:"
	}
	return &RedisCounterStore{rdb: rdb, prefix: prefix}
}

func (s *RedisCounterStore) Incr(ctx context.Context, key string, window time.Duration) (int64, time.Time, error) {
	res, err := incrWindowScript.Run(ctx, s.rdb, []string{s.prefix + key}, window.Milliseconds()).Int64Slice()
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("rate limit counter: %w", err)
	}
	if len(res) != 2 {
		return 0, time.Time{}, fmt.Errorf("rate limit counter: unexpected reply %v", res)
	}
	return res[0], time.Now().Add(time.Duration(res[1]) * time.Millisecond), nil
}

// RateLimitOptions 限流配置
type RateLimitOptions struct {
	MaxRequests int
	Window      time.Duration
	Store       CounterStore
	Audit       *service.AuditService
	Logger      *zap.Logger
}

// CompanyRateLimit allows MaxRequests per Window per company. A failing counter store lets
// the request through and logs the error.
func CompanyRateLimit(opts RateLimitOptions) gin.HandlerFunc {
	if opts.Store == nil {
		opts.Store = NewMemoryCounterStore()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	limit := int64(opts.MaxRequests)

	return func(c *gin.Context) {
		tc, ok := tenant.FromGin(c)
		key := "ip:" + c.ClientIP()
		if ok {
			key = "company:" + tc.CompanyID()
		}

		count, resetAt, err := opts.Store.Incr(c.Request.Context(), key, opts.Window)
		if err != nil {
			opts.Logger.Error("rate limit store failed", zap.String("key", key), zap.Error(err))
			c.Next()
			return
		}

		remaining := limit - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.FormatInt(limit, 10))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count <= limit {
			c.Next()
			return
		}

		retryAfter := int64(math.Ceil(time.Until(resetAt).Seconds()))
		if retryAfter < 1 {
			retryAfter = 1
		}
		c.Header("Retry-After", strconv.FormatInt(retryAfter, 10))

		// 每个窗口只审计第一次超限
		if count == limit+1 && opts.Audit != nil {
			opts.Audit.Record(c.Request.Context(), tc, auditEvent(c, entity.SecurityEventRateLimited, map[string]interface{}{
				"limit":          limit,
				"window_seconds": opts.Window.Seconds(),
			}))
		}
		abortWithError(c, fmt.Errorf("%w: retry after %ds", apperr.ErrRateLimited, retryAfter))
	}
}
