package middleware

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/tienbob/Tubex-sub002/internal/commerce/entity"
	"github.com/tienbob/Tubex-sub002/internal/commerce/repository"
	"github.com/tienbob/Tubex-sub002/internal/commerce/service"
	"github.com/tienbob/Tubex-sub002/internal/commerce/testutil"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMemoryCounterStore_WindowResets(t *testing.T) {
	store := NewMemoryCounterStore()
	now := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)
	store.now = func() time.Time { return now }
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, resetAt, err := store.Incr(ctx, "company:c1", time.Minute)
		if err != nil || n != i {
			t.Fatalf("hit %d: got %d (%v)", i, n, err)
		}
		if !resetAt.Equal(now.Add(time.Minute)) {
			t.Errorf("unexpected reset %v", resetAt)
		}
	}
	if n, _, _ := store.Incr(ctx, "company:c2", time.Minute); n != 1 {
		t.Errorf("companies must not share counters, got %d", n)
	}

	now = now.Add(time.Minute)
	if n, _, _ := store.Incr(ctx, "company:c1", time.Minute); n != 1 {
		t.Errorf("Expected new window to start at 1, got %d", n)
	}

	now = now.Add(2 * time.Minute)
	store.Sweep()
	if len(store.counters) != 0 {
		t.Errorf("Expected sweep to drop expired windows, %d left", len(store.counters))
	}
}

func TestRedisCounterStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	store := NewRedisCounterStore(rdb, "")
	ctx := context.Background()

	for i := int64(1); i <= 3; i++ {
		n, resetAt, err := store.Incr(ctx, "company:c1", time.Minute)
		if err != nil {
			t.Fatalf("Incr failed: %v", err)
		}
		if n != i {
			t.Fatalf("Expected %d, got %d", i, n)
		}
		if until := time.Until(resetAt); until <= 0 || until > time.Minute {
			t.Errorf("unexpected reset in %v", until)
		}
	}
	if ttl := mr.TTL("tubex:ratelimit:company:c1"); ttl <= 0 || ttl > time.Minute {
		t.Errorf("Expected key to expire within the window, ttl %v", ttl)
	}

	mr.FastForward(time.Minute + time.Second)
	if n, _, _ := store.Incr(ctx, "company:c1", time.Minute); n != 1 {
		t.Errorf("Expected counter to restart after the window, got %d", n)
	}
}

type failingStore struct{}

func (failingStore) Incr(context.Context, string, time.Duration) (int64, time.Time, error) {
	return 0, time.Time{}, errors.New("redis down")
}

func setupRateLimitTest(t *testing.T, store CounterStore, limit int) (*gin.Engine, *gorm.DB) {
	db := testutil.SetupTestDB(t)
	repos := repository.NewRepositories(db)
	audit := service.NewAuditService(repos.SecurityLog, zap.NewNop())

	r := testutil.SetupRouter()
	api := r.Group("/api")
	api.Use(JWTAuth(testutil.JWTSecret))
	api.Use(CompanyRateLimit(RateLimitOptions{
		MaxRequests: limit,
		Window:      time.Minute,
		Store:       store,
		Audit:       audit,
		Logger:      zap.NewNop(),
	}))
	api.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"code": 0, "message": "pong"})
	})
	return r, db
}

func TestCompanyRateLimit(t *testing.T) {
	r, db := setupRateLimitTest(t, NewMemoryCounterStore(), 2)
	token := testutil.GenerateTestToken("u1", "c1", entity.UserRoleStaff, "u1@test.com")
	otherToken := testutil.GenerateTestToken("u2", "c2", entity.UserRoleStaff, "u2@test.com")

	for i := 0; i < 2; i++ {
		w := testutil.DoRequest(r, "GET", "/api/ping", nil, token)
		if w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i+1, w.Code)
		}
		if w.Header().Get("X-RateLimit-Limit") != "2" {
			t.Errorf("missing limit header")
		}
	}

	w := testutil.DoRequest(r, "GET", "/api/ping", nil, token)
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d: %s", w.Code, w.Body.String())
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
	if w.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("Expected 0 remaining, got %s", w.Header().Get("X-RateLimit-Remaining"))
	}
	resp := testutil.ParseResponse(w)
	if resp["code"] != float64(42900) {
		t.Errorf("Expected code 42900, got %v", resp["code"])
	}

	// 第二次超限不再审计
	testutil.DoRequest(r, "GET", "/api/ping", nil, token)
	var audits int64
	db.Model(&entity.SecurityAuditLog{}).
		Where("event = ? AND company_id = ?", entity.SecurityEventRateLimited, "c1").
		Count(&audits)
	if audits != 1 {
		t.Errorf("Expected exactly one audit row per window, got %d", audits)
	}

	// 其他公司不受影响
	if w := testutil.DoRequest(r, "GET", "/api/ping", nil, otherToken); w.Code != http.StatusOK {
		t.Errorf("other company: expected 200, got %d", w.Code)
	}
}

func TestCompanyRateLimit_RedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()

	r, _ := setupRateLimitTest(t, NewRedisCounterStore(rdb, "test:"), 1)
	token := testutil.GenerateTestToken("u1", "c1", entity.UserRoleStaff, "u1@test.com")

	if w := testutil.DoRequest(r, "GET", "/api/ping", nil, token); w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w := testutil.DoRequest(r, "GET", "/api/ping", nil, token); w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}
	mr.FastForward(2 * time.Minute)
	if w := testutil.DoRequest(r, "GET", "/api/ping", nil, token); w.Code != http.StatusOK {
		t.Fatalf("Expected 200 after window, got %d", w.Code)
	}
}

func TestCompanyRateLimit_FailsOpen(t *testing.T) {
	r, _ := setupRateLimitTest(t, failingStore{}, 1)
	token := testutil.GenerateTestToken("u1", "c1", entity.UserRoleStaff, "u1@test.com")

	for i := 0; i < 3; i++ {
		if w := testutil.DoRequest(r, "GET", "/api/ping", nil, token); w.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200 when the store fails, got %d", i+1, w.Code)
		}
	}
}
