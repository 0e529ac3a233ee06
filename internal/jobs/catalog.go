// AngelaMos | 2026
// catalog.go

package jobs

import (
	"context"

	"github.com/auramanager/aura-api/internal/config"
)

type SubscriptionExpirer interface {
	ExpireLapsed(ctx context.Context) (int, error)
}

type TokenPurger interface {
	PurgeExpiredTokens(ctx context.Context) (int64, error)
}

type UploadJanitor interface {
	FailStale(ctx context.Context) (int64, error)
}

// PlanApplier activates plans for completed payments left unapplied.
type PlanApplier interface {
	ApplyPendingPlans(ctx context.Context) (int64, error)
}

type Targets struct {
	Subscriptions SubscriptionExpirer
	Tokens        TokenPurger
	Uploads       UploadJanitor
	Payments      PlanApplier
}

const (
	JobExpireSubscriptions = "expire_subscriptions"
	JobPurgeRefreshTokens  = "purge_refresh_tokens"
	JobFailStaleUploads    = "fail_stale_uploads"
	JobApplyPaidPlans      = "apply_paid_plans"
)

// Catalog returns the maintenance jobs with their configured schedules.
func Catalog(cfg config.JobsConfig, t Targets) []Job {
	return []Job{
		{
			Name:     JobExpireSubscriptions,
			Schedule: cfg.ExpireSubscriptions,
			Run: func(ctx context.Context) (int64, error) {
				n, err := t.Subscriptions.ExpireLapsed(ctx)
				return int64(n), err
			},
		},
		{
			Name:     JobPurgeRefreshTokens,
			Schedule: cfg.PurgeRefreshTokens,
			Run:      t.Tokens.PurgeExpiredTokens,
		},
		{
			Name:     JobFailStaleUploads,
			Schedule: cfg.FailStaleUploads,
			Run:      t.Uploads.FailStale,
		},
		{
			Name:     JobApplyPaidPlans,
			Schedule: cfg.ApplyPaidPlans,
			Run:      t.Payments.ApplyPendingPlans,
		},
	}
}
