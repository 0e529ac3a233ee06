// AngelaMos | 2026
// ratelimit.go

package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"golang.org/x/time/rate"

	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/plan"
)

// TierLimits is the per-account request budget for each plan tier.
var TierLimits = map[string]redis_rate.Limit{
	plan.TierFree:    PerMinute(60, 10),
	plan.TierCreator: PerMinute(300, 50),
	plan.TierPro:     PerMinute(900, 150),
}

// Limiter counts requests in Redis with a GCRA window and falls back to an
// in-process token bucket per key while Redis is unreachable.
type Limiter struct {
	store    *redis_rate.Limiter
	fallback *localLimiter
}

func NewLimiter(rdb *redis.Client) *Limiter {
	return &Limiter{
		store:    redis_rate.NewLimiter(rdb),
		fallback: newLocalLimiter(),
	}
}

// PerIP limits every request by client address.
func (l *Limiter) PerIP(limit redis_rate.Limit) func(http.Handler) http.Handler {
	return l.middleware(func(r *http.Request) (string, redis_rate.Limit, string) {
		return "ratelimit:ip:" + ClientIP(r), limit, ""
	})
}

// PerTier limits authenticated requests by account, using the budget of
// the tier on the verified claims. Unknown tiers get the free budget.
func (l *Limiter) PerTier(limits map[string]redis_rate.Limit) func(http.Handler) http.Handler {
	return l.middleware(func(r *http.Request) (string, redis_rate.Limit, string) {
		tier := GetUserTier(r.Context())
		limit, ok := limits[tier]
		if !ok {
			tier = plan.TierFree
			limit = limits[plan.TierFree]
		}

		key := "ratelimit:user:" + GetUserID(r.Context())
		if GetUserID(r.Context()) == "" {
			key = "ratelimit:ip:" + ClientIP(r)
		}
		return key, limit, tier
	})
}

type resolveFunc func(r *http.Request) (key string, limit redis_rate.Limit, tier string)

func (l *Limiter) middleware(resolve resolveFunc) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key, limit, tier := resolve(r)
			if limit.Rate <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			res := l.allow(r.Context(), key, limit)

			if tier != "" {
				w.Header().Set("X-RateLimit-Tier", tier)
			}
			setRateLimitHeaders(w, res, limit)

			if res.Allowed == 0 {
				writeRateLimitExceeded(w, res)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func (l *Limiter) allow(
	ctx context.Context,
	key string,
	limit redis_rate.Limit,
) *redis_rate.Result {
	res, err := l.store.Allow(ctx, key, limit)
	if err == nil {
		return res
	}

	slog.Warn("rate limit store unavailable, using local limiter",
		"error", err,
		"key", key,
	)
	return l.fallback.allow(key, limit)
}

// ClientIP returns the caller's address, preferring the last hop appended
// by the fronting proxy.
func ClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		hops := strings.Split(xff, ",")
		return strings.TrimSpace(hops[len(hops)-1])
	}

	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}

	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func setRateLimitHeaders(
	w http.ResponseWriter,
	res *redis_rate.Result,
	limit redis_rate.Limit,
) {
	h := w.Header()
	h.Set("X-RateLimit-Limit", strconv.Itoa(limit.Rate))
	h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
	h.Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(res.ResetAfter).Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, res *redis_rate.Result) {
	retryAfter := max(int(res.RetryAfter.Seconds()), 1)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	core.JSONError(w, core.NewAppError(
		nil,
		fmt.Sprintf("rate limit exceeded, retry after %d seconds", retryAfter),
		http.StatusTooManyRequests,
		"RATE_LIMITED",
	))
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// localLimiter holds one token bucket per key. Idle buckets are dropped
// lazily on access once the sweep interval has passed.
type localLimiter struct {
	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

const bucketIdleTTL = 10 * time.Minute

func newLocalLimiter() *localLimiter {
	return &localLimiter{
		buckets:   make(map[string]*bucket),
		lastSweep: time.Now(),
	}
}

func (l *localLimiter) allow(key string, limit redis_rate.Limit) *redis_rate.Result {
	perSecond := float64(limit.Rate) / limit.Period.Seconds()
	interval := time.Duration(float64(time.Second) / perSecond)
	now := time.Now()

	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > bucketIdleTTL {
		for k, b := range l.buckets {
			if now.Sub(b.lastSeen) > bucketIdleTTL {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b, ok := l.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(perSecond), max(limit.Burst, 1))}
		l.buckets[key] = b
	}
	b.lastSeen = now

	res := &redis_rate.Result{
		Limit:      limit,
		Remaining:  max(int(b.limiter.TokensAt(now)), 0),
		ResetAfter: interval,
		RetryAfter: -1,
	}
	if b.limiter.AllowN(now, 1) {
		res.Allowed = 1
		res.Remaining = max(res.Remaining-1, 0)
	} else {
		res.RetryAfter = interval
	}

	return res
}

func PerMinute(rate, burst int) redis_rate.Limit {
	return redis_rate.Limit{Rate: rate, Burst: burst, Period: time.Minute}
}
