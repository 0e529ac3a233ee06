// AngelaMos | 2026
// dto.go

package admin

import (
	"github.com/auramanager/aura-api/internal/payment"
	"github.com/auramanager/aura-api/internal/plan"
	"github.com/auramanager/aura-api/internal/subscription"
)

type SystemStatsResponse struct {
	Database DatabaseStatus `json:"database"`
	Redis    RedisStatus    `json:"redis"`
	Runtime  RuntimeStats   `json:"runtime"`
}

type DatabaseStatus struct {
	Healthy bool         `json:"healthy"`
	Stats   *DBPoolStats `json:"stats,omitempty"`
}

type RedisStatus struct {
	Healthy bool            `json:"healthy"`
	Stats   *RedisPoolStats `json:"stats,omitempty"`
}

type DBPoolStats struct {
	MaxOpenConnections int    `json:"max_open_connections"`
	OpenConnections    int    `json:"open_connections"`
	InUse              int    `json:"in_use"`
	Idle               int    `json:"idle"`
	WaitCount          int64  `json:"wait_count"`
	WaitDuration       string `json:"wait_duration"`
	MaxIdleClosed      int64  `json:"max_idle_closed"`
	MaxIdleTimeClosed  int64  `json:"max_idle_time_closed"`
	MaxLifetimeClosed  int64  `json:"max_lifetime_closed"`
}

type RedisPoolStats struct {
	Hits       uint32 `json:"hits"`
	Misses     uint32 `json:"misses"`
	Timeouts   uint32 `json:"timeouts"`
	TotalConns uint32 `json:"total_conns"`
	IdleConns  uint32 `json:"idle_conns"`
	StaleConns uint32 `json:"stale_conns"`
}

type RuntimeStats struct {
	GoVersion    string `json:"go_version"`
	NumGoroutine int    `json:"num_goroutine"`
	NumCPU       int    `json:"num_cpu"`
	MemAlloc     uint64 `json:"mem_alloc_bytes"`
	MemSys       uint64 `json:"mem_sys_bytes"`
	NumGC        uint32 `json:"num_gc"`
}

type BillingSummaryResponse struct {
	ActiveSubscriptions int                        `json:"active_subscriptions"`
	Subscriptions       []subscription.TierSummary `json:"subscriptions"`
	Revenue             []RevenueLine              `json:"revenue"`
}

type RevenueLine struct {
	Provider    string `json:"provider"`
	Currency    string `json:"currency"`
	Payments    int    `json:"payments"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
}

type JobRunResponse struct {
	Name     string `json:"name"`
	Affected int64  `json:"affected"`
}

func toRevenueLines(rows []payment.RevenueRow) []RevenueLine {
	out := make([]RevenueLine, 0, len(rows))
	for _, r := range rows {
		out = append(out, RevenueLine{
			Provider:    r.Provider,
			Currency:    r.Currency,
			Payments:    r.Payments,
			AmountCents: r.AmountCents,
			Amount:      plan.FormatCents(r.AmountCents, r.Currency),
		})
	}
	return out
}
