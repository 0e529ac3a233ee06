// AngelaMos | 2026
// repository.go

package subscription

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/auramanager/aura-api/internal/core"
)

type Repository interface {
	CreateIfMissing(ctx context.Context, sub *Subscription) error
	GetByUser(ctx context.Context, userID string) (*Subscription, error)
	Upsert(ctx context.Context, sub *Subscription) error
	ListLapsed(ctx context.Context, now time.Time, limit int) ([]Subscription, error)
	SummaryByTier(ctx context.Context) ([]TierSummary, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const subscriptionColumns = `
	id, user_id, tier, billing_cycle, price_cents, currency, status,
	current_period_start, current_period_end, cancel_at_period_end,
	provider, provider_ref, created_at, updated_at`

func (r *repository) CreateIfMissing(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, user_id, tier, billing_cycle, price_cents, currency, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id) DO NOTHING`

	_, err := r.db.ExecContext(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Tier,
		sub.BillingCycle,
		sub.PriceCents,
		sub.Currency,
		sub.Status,
	)
	if err != nil {
		return fmt.Errorf("create subscription: %w", err)
	}

	return nil
}

func (r *repository) GetByUser(ctx context.Context, userID string) (*Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE user_id = $1`

	var sub Subscription
	err := r.db.GetContext(ctx, &sub, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get subscription: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get subscription: %w", err)
	}

	return &sub, nil
}

// Upsert writes the user's single subscription row.
func (r *repository) Upsert(ctx context.Context, sub *Subscription) error {
	query := `
		INSERT INTO subscriptions (
			id, user_id, tier, billing_cycle, price_cents, currency, status,
			current_period_start, current_period_end, cancel_at_period_end,
			provider, provider_ref
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (user_id) DO UPDATE SET
			tier = EXCLUDED.tier,
			billing_cycle = EXCLUDED.billing_cycle,
			price_cents = EXCLUDED.price_cents,
			currency = EXCLUDED.currency,
			status = EXCLUDED.status,
			current_period_start = EXCLUDED.current_period_start,
			current_period_end = EXCLUDED.current_period_end,
			cancel_at_period_end = EXCLUDED.cancel_at_period_end,
			provider = EXCLUDED.provider,
			provider_ref = EXCLUDED.provider_ref,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, query,
		sub.ID,
		sub.UserID,
		sub.Tier,
		sub.BillingCycle,
		sub.PriceCents,
		sub.Currency,
		sub.Status,
		sub.CurrentPeriodStart,
		sub.CurrentPeriodEnd,
		sub.CancelAtPeriodEnd,
		sub.Provider,
		sub.ProviderRef,
	)
	if err := row.Scan(&sub.ID, &sub.CreatedAt, &sub.UpdatedAt); err != nil {
		return fmt.Errorf("upsert subscription: %w", err)
	}

	return nil
}

func (r *repository) ListLapsed(
	ctx context.Context,
	now time.Time,
	limit int,
) ([]Subscription, error) {
	query := `SELECT ` + subscriptionColumns + `
		FROM subscriptions
		WHERE tier <> 'free'
		  AND status IN ('active', 'canceled')
		  AND current_period_end IS NOT NULL
		  AND current_period_end <= $1
		ORDER BY current_period_end
		LIMIT $2`

	var subs []Subscription
	if err := r.db.SelectContext(ctx, &subs, query, now, limit); err != nil {
		return nil, fmt.Errorf("list lapsed subscriptions: %w", err)
	}

	return subs, nil
}

func (r *repository) SummaryByTier(ctx context.Context) ([]TierSummary, error) {
	query := `
		SELECT tier, COUNT(*) AS active
		FROM subscriptions
		WHERE status IN ('active', 'canceled')
		GROUP BY tier
		ORDER BY tier`

	var out []TierSummary
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("summarize subscriptions: %w", err)
	}

	return out, nil
}
