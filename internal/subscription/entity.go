// AngelaMos | 2026
// entity.go

package subscription

import (
	"time"

	"github.com/auramanager/aura-api/internal/plan"
)

const (
	StatusActive   = "active"
	StatusCanceled = "canceled"
	StatusExpired  = "expired"
	StatusPending  = "pending"
)

const DefaultCurrency = "USD"

type Subscription struct {
	ID                 string     `db:"id"`
	UserID             string     `db:"user_id"`
	Tier               string     `db:"tier"`
	BillingCycle       string     `db:"billing_cycle"`
	PriceCents         int64      `db:"price_cents"`
	Currency           string     `db:"currency"`
	Status             string     `db:"status"`
	CurrentPeriodStart *time.Time `db:"current_period_start"`
	CurrentPeriodEnd   *time.Time `db:"current_period_end"`
	CancelAtPeriodEnd  bool       `db:"cancel_at_period_end"`
	Provider           string     `db:"provider"`
	ProviderRef        string     `db:"provider_ref"`
	CreatedAt          time.Time  `db:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at"`
}

// EffectiveTier is the tier whose limits currently apply. Canceled
// subscriptions keep their tier until the paid period ends.
func (s *Subscription) EffectiveTier(now time.Time) string {
	switch s.Status {
	case StatusActive:
		return s.Tier
	case StatusCanceled:
		if s.CurrentPeriodEnd != nil && now.Before(*s.CurrentPeriodEnd) {
			return s.Tier
		}
	}
	return plan.TierFree
}

func (s *Subscription) IsPaid() bool {
	return s.Tier != plan.TierFree
}

// Lapsed reports whether a paid period has ended without renewal.
func (s *Subscription) Lapsed(now time.Time) bool {
	if !s.IsPaid() || s.CurrentPeriodEnd == nil {
		return false
	}
	if s.Status != StatusActive && s.Status != StatusCanceled {
		return false
	}
	return !now.Before(*s.CurrentPeriodEnd)
}

func periodEnd(start time.Time, cycle string) time.Time {
	if cycle == plan.CycleYearly {
		return start.AddDate(1, 0, 0)
	}
	return start.AddDate(0, 1, 0)
}

func freeSubscription(userID string) *Subscription {
	return &Subscription{
		UserID:       userID,
		Tier:         plan.TierFree,
		BillingCycle: plan.CycleMonthly,
		Currency:     DefaultCurrency,
		Status:       StatusActive,
	}
}
