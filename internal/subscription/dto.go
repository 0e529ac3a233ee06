// AngelaMos | 2026
// dto.go

package subscription

import (
	"time"

	"github.com/auramanager/aura-api/internal/plan"
)

// ActivateParams describes a paid period purchased by a completed payment.
type ActivateParams struct {
	UserID      string
	Tier        string
	Cycle       string
	PriceCents  int64
	Currency    string
	Provider    string
	ProviderRef string
}

type DowngradeRequest struct {
	Tier string `json:"tier" validate:"required,oneof=free"`
}

type SubscriptionResponse struct {
	Tier               string     `json:"tier"`
	EffectiveTier      string     `json:"effective_tier"`
	PlanName           string     `json:"plan_name"`
	BillingCycle       string     `json:"billing_cycle"`
	PriceCents         int64      `json:"price_cents"`
	Price              string     `json:"price"`
	Currency           string     `json:"currency"`
	Status             string     `json:"status"`
	CurrentPeriodStart *time.Time `json:"current_period_start,omitempty"`
	RenewsAt           *time.Time `json:"renews_at,omitempty"`
	CancelAtPeriodEnd  bool       `json:"cancel_at_period_end"`
	PlatformLimit      int        `json:"platform_limit"`
	Provider           string     `json:"provider,omitempty"`
}

type TierSummary struct {
	Tier   string `json:"tier" db:"tier"`
	Active int    `json:"active" db:"active"`
}

func ToSubscriptionResponse(s *Subscription, now time.Time) SubscriptionResponse {
	effective := s.EffectiveTier(now)
	p, _ := plan.Lookup(s.Tier)

	return SubscriptionResponse{
		Tier:               s.Tier,
		EffectiveTier:      effective,
		PlanName:           p.Name,
		BillingCycle:       s.BillingCycle,
		PriceCents:         s.PriceCents,
		Price:              plan.FormatCents(s.PriceCents, s.Currency),
		Currency:           s.Currency,
		Status:             s.Status,
		CurrentPeriodStart: s.CurrentPeriodStart,
		RenewsAt:           s.CurrentPeriodEnd,
		CancelAtPeriodEnd:  s.CancelAtPeriodEnd,
		PlatformLimit:      plan.PlatformLimit(effective),
		Provider:           s.Provider,
	}
}
