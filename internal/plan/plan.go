// AngelaMos | 2026
// plan.go

package plan

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/auramanager/aura-api/internal/core"
)

const (
	TierFree    = "free"
	TierCreator = "creator"
	TierPro     = "pro"
)

const (
	CycleMonthly = "monthly"
	CycleYearly  = "yearly"
)

// Unlimited marks a tier without a platform connection cap.
const Unlimited = -1

type Plan struct {
	Tier          string   `json:"tier"`
	Name          string   `json:"name"`
	Description   string   `json:"description"`
	MonthlyCents  int64    `json:"monthly_cents"`
	YearlyCents   int64    `json:"yearly_cents"`
	PlatformLimit int      `json:"platform_limit"`
	Features      []string `json:"features"`
}

var catalog = []Plan{
	{
		Tier:          TierFree,
		Name:          "Free",
		Description:   "Get started with one connected platform.",
		PlatformLimit: 1,
		Features: []string{
			"1 connected platform",
			"Weekly analytics snapshot",
			"20 assistant messages per day",
		},
	},
	{
		Tier:          TierCreator,
		Name:          "Creator",
		Description:   "For artists growing across a few platforms.",
		MonthlyCents:  999,
		YearlyCents:   9900,
		PlatformLimit: 3,
		Features: []string{
			"3 connected platforms",
			"Daily analytics",
			"Upload analysis",
			"Unlimited assistant chat",
		},
	},
	{
		Tier:          TierPro,
		Name:          "Pro",
		Description:   "Every platform, every insight.",
		MonthlyCents:  1999,
		YearlyCents:   19900,
		PlatformLimit: Unlimited,
		Features: []string{
			"Unlimited connected platforms",
			"Real-time analytics",
			"Upload analysis",
			"Priority assistant",
		},
	},
}

func All() []Plan {
	out := make([]Plan, len(catalog))
	copy(out, catalog)
	return out
}

func Lookup(tier string) (Plan, bool) {
	tier = strings.ToLower(strings.TrimSpace(tier))
	for _, p := range catalog {
		if p.Tier == tier {
			return p, true
		}
	}
	return Plan{}, false
}

func IsValidTier(tier string) bool {
	_, ok := Lookup(tier)
	return ok
}

func IsValidCycle(cycle string) bool {
	return cycle == CycleMonthly || cycle == CycleYearly
}

// Price returns the charge in cents for tier over cycle.
func Price(tier, cycle string) (int64, error) {
	p, ok := Lookup(tier)
	if !ok {
		return 0, fmt.Errorf("unknown tier %q: %w", tier, core.ErrInvalidInput)
	}

	switch cycle {
	case CycleMonthly:
		return p.MonthlyCents, nil
	case CycleYearly:
		return p.YearlyCents, nil
	default:
		return 0, fmt.Errorf(
			"unknown billing cycle %q: %w",
			cycle,
			core.ErrInvalidInput,
		)
	}
}

// PlatformLimit returns how many platforms tier may connect. Unknown tiers
// fall back to the free allowance.
func PlatformLimit(tier string) int {
	if p, ok := Lookup(tier); ok {
		return p.PlatformLimit
	}
	free, _ := Lookup(TierFree)
	return free.PlatformLimit
}

// AllowsConnections reports whether tier can hold count connections.
func AllowsConnections(tier string, count int) bool {
	limit := PlatformLimit(tier)
	return limit == Unlimited || count <= limit
}

// Rank orders tiers so upgrades and downgrades can be told apart.
func Rank(tier string) int {
	switch tier {
	case TierCreator:
		return 1
	case TierPro:
		return 2
	default:
		return 0
	}
}

func FormatCents(cents int64, currency string) string {
	return fmt.Sprintf("%d.%02d %s", cents/100, cents%100, currency)
}

type Handler struct{}

func NewHandler() *Handler {
	return &Handler{}
}

func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/plans", h.List)
	r.Get("/plans/{tier}", h.Get)
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	core.OK(w, All())
}

func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	p, ok := Lookup(chi.URLParam(r, "tier"))
	if !ok {
		core.NotFound(w, "plan")
		return
	}
	core.OK(w, p)
}
