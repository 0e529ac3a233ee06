// AngelaMos | 2026
// handler.go

package admin

import (
	"context"
	"database/sql"
	"net/http"
	"runtime"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/jobs"
	"github.com/auramanager/aura-api/internal/payment"
	"github.com/auramanager/aura-api/internal/subscription"
)

type SubscriptionReporter interface {
	SummaryByTier(ctx context.Context) ([]subscription.TierSummary, error)
}

type RevenueReporter interface {
	RevenueSummary(ctx context.Context) ([]payment.RevenueRow, error)
}

type JobRunner interface {
	Jobs() []jobs.Status
	Trigger(name string) (int64, error)
}

type Handler struct {
	dbStats       func() sql.DBStats
	redisStats    func() *redis.PoolStats
	redisPing     func(ctx context.Context) error
	dbPing        func(ctx context.Context) error
	subscriptions SubscriptionReporter
	revenue       RevenueReporter
	jobs          JobRunner
}

type HandlerConfig struct {
	DBStats       func() sql.DBStats
	RedisStats    func() *redis.PoolStats
	RedisPing     func(ctx context.Context) error
	DBPing        func(ctx context.Context) error
	Subscriptions SubscriptionReporter
	Revenue       RevenueReporter
	Jobs          JobRunner
}

func NewHandler(cfg HandlerConfig) *Handler {
	return &Handler{
		dbStats:       cfg.DBStats,
		redisStats:    cfg.RedisStats,
		redisPing:     cfg.RedisPing,
		dbPing:        cfg.DBPing,
		subscriptions: cfg.Subscriptions,
		revenue:       cfg.Revenue,
		jobs:          cfg.Jobs,
	}
}

func (h *Handler) RegisterRoutes(
	r chi.Router,
	authenticator, adminOnly func(http.Handler) http.Handler,
) {
	r.Route("/admin", func(r chi.Router) {
		r.Use(authenticator)
		r.Use(adminOnly)

		r.Get("/stats", h.GetSystemStats)
		r.Get("/stats/db", h.GetDatabaseStats)
		r.Get("/stats/redis", h.GetRedisStats)
		r.Get("/stats/runtime", h.GetRuntimeStats)
		r.Get("/billing", h.GetBillingSummary)
		r.Get("/jobs", h.ListJobs)
		r.Post("/jobs/{name}/run", h.RunJob)
	})
}

func (h *Handler) GetSystemStats(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	response := SystemStatsResponse{
		Database: DatabaseStatus{
			Healthy: ping(ctx, h.dbPing),
			Stats:   h.getDBStats(),
		},
		Redis: RedisStatus{
			Healthy: ping(ctx, h.redisPing),
			Stats:   h.getRedisStats(),
		},
		Runtime: readRuntimeStats(),
	}

	core.OK(w, response)
}

func (h *Handler) GetDatabaseStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getDBStats())
}

func (h *Handler) GetRedisStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, h.getRedisStats())
}

func (h *Handler) GetRuntimeStats(w http.ResponseWriter, r *http.Request) {
	core.OK(w, readRuntimeStats())
}

// GetBillingSummary reports paying subscriptions per tier and completed
// revenue per provider and currency.
func (h *Handler) GetBillingSummary(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	resp := BillingSummaryResponse{
		Subscriptions: []subscription.TierSummary{},
		Revenue:       []RevenueLine{},
	}

	if h.subscriptions != nil {
		tiers, err := h.subscriptions.SummaryByTier(ctx)
		if err != nil {
			core.HandleError(w, err)
			return
		}
		if tiers != nil {
			resp.Subscriptions = tiers
		}
		for _, t := range tiers {
			resp.ActiveSubscriptions += t.Active
		}
	}

	if h.revenue != nil {
		rows, err := h.revenue.RevenueSummary(ctx)
		if err != nil {
			core.HandleError(w, err)
			return
		}
		resp.Revenue = toRevenueLines(rows)
	}

	core.OK(w, resp)
}

func (h *Handler) ListJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		core.OK(w, []jobs.Status{})
		return
	}
	core.OK(w, h.jobs.Jobs())
}

func (h *Handler) RunJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		core.HandleError(w, core.UnavailableError("jobs are disabled"))
		return
	}

	name := chi.URLParam(r, "name")
	affected, err := h.jobs.Trigger(name)
	if err != nil {
		core.HandleError(w, err)
		return
	}

	core.OK(w, JobRunResponse{Name: name, Affected: affected})
}

func (h *Handler) getDBStats() *DBPoolStats {
	if h.dbStats == nil {
		return nil
	}

	stats := h.dbStats()
	return &DBPoolStats{
		MaxOpenConnections: stats.MaxOpenConnections,
		OpenConnections:    stats.OpenConnections,
		InUse:              stats.InUse,
		Idle:               stats.Idle,
		WaitCount:          stats.WaitCount,
		WaitDuration:       stats.WaitDuration.String(),
		MaxIdleClosed:      stats.MaxIdleClosed,
		MaxIdleTimeClosed:  stats.MaxIdleTimeClosed,
		MaxLifetimeClosed:  stats.MaxLifetimeClosed,
	}
}

func (h *Handler) getRedisStats() *RedisPoolStats {
	if h.redisStats == nil {
		return nil
	}

	stats := h.redisStats()
	return &RedisPoolStats{
		Hits:       stats.Hits,
		Misses:     stats.Misses,
		Timeouts:   stats.Timeouts,
		TotalConns: stats.TotalConns,
		IdleConns:  stats.IdleConns,
		StaleConns: stats.StaleConns,
	}
}

func ping(ctx context.Context, fn func(ctx context.Context) error) bool {
	if fn == nil {
		return true
	}
	return fn(ctx) == nil
}

func readRuntimeStats() RuntimeStats {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return RuntimeStats{
		GoVersion:    runtime.Version(),
		NumGoroutine: runtime.NumGoroutine(),
		NumCPU:       runtime.NumCPU(),
		MemAlloc:     memStats.Alloc,
		MemSys:       memStats.Sys,
		NumGC:        memStats.NumGC,
	}
}
