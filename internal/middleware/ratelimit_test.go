// AngelaMos | 2026
// ratelimit_test.go

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	redis_rate "github.com/go-redis/redis_rate/v10"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// unreachableRedis forces every limiter call onto the local fallback.
func unreachableRedis(t *testing.T) *redis.Client {
	t.Helper()
	rdb := redis.NewClient(&redis.Options{
		Addr:        "127.0.0.1:1",
		DialTimeout: 50 * time.Millisecond,
		MaxRetries:  -1,
	})
	t.Cleanup(func() { _ = rdb.Close() })
	return rdb
}

var okHandler = http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
})

func TestPerIPFallsBackToLocalLimiter(t *testing.T) {
	limiter := NewLimiter(unreachableRedis(t))
	h := limiter.PerIP(PerMinute(1, 1))(okHandler)

	send := func(ip string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/plans", nil)
		req.RemoteAddr = ip + ":5123"
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("198.51.100.1")
	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, "1", first.Header().Get("X-RateLimit-Limit"))

	second := send("198.51.100.1")
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.NotEmpty(t, second.Header().Get("Retry-After"))
	assert.Contains(t, second.Body.String(), "RATE_LIMITED")

	assert.Equal(t, http.StatusOK, send("198.51.100.2").Code)
}

func TestPerTierUsesClaimsTier(t *testing.T) {
	limiter := NewLimiter(unreachableRedis(t))
	limits := map[string]redis_rate.Limit{
		"free": PerMinute(1, 1),
		"pro":  PerMinute(100, 5),
	}
	h := limiter.PerTier(limits)(okHandler)

	send := func(userID, tier string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodGet, "/v1/analytics", nil)
		req = req.WithContext(withClaims(context.Background(), &AccessTokenClaims{
			UserID: userID,
			Tier:   tier,
		}))
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	for range 3 {
		rec := send("pro-user", "pro")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "pro", rec.Header().Get("X-RateLimit-Tier"))
	}

	assert.Equal(t, http.StatusOK, send("free-user", "free").Code)
	assert.Equal(t, http.StatusTooManyRequests, send("free-user", "free").Code)

	unknown := send("odd-user", "platinum")
	assert.Equal(t, http.StatusOK, unknown.Code)
	assert.Equal(t, "free", unknown.Header().Get("X-RateLimit-Tier"))
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		remote  string
		want    string
	}{
		{"remote addr", nil, "192.0.2.9:4000", "192.0.2.9"},
		{"forwarded last hop", map[string]string{"X-Forwarded-For": "10.0.0.1, 192.0.2.10"}, "127.0.0.1:1", "192.0.2.10"},
		{"real ip", map[string]string{"X-Real-IP": "192.0.2.11"}, "127.0.0.1:1", "192.0.2.11"},
		{"bare remote", nil, "192.0.2.12", "192.0.2.12"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			req.RemoteAddr = tt.remote
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
