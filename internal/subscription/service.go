// AngelaMos | 2026
// service.go

package subscription

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/notification"
	"github.com/auramanager/aura-api/internal/plan"
)

// TierSetter updates the tier recorded on the account.
type TierSetter interface {
	SetTier(ctx context.Context, userID, tier string) error
}

// ConnectionCounter reports how many platforms a user has connected.
type ConnectionCounter interface {
	CountConnected(ctx context.Context, userID string) (int, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID, category, title, message string) error
}

type Service struct {
	repo        Repository
	tiers       TierSetter
	connections ConnectionCounter
	notifier    Notifier
	logger      *slog.Logger
	now         func() time.Time
}

func NewService(
	repo Repository,
	tiers TierSetter,
	notifier Notifier,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:     repo,
		tiers:    tiers,
		notifier: notifier,
		logger:   logger.With("component", "subscription"),
		now:      time.Now,
	}
}

// UseConnectionCounter enables the platform-limit check on tier changes.
func (s *Service) UseConnectionCounter(c ConnectionCounter) {
	s.connections = c
}

// InitializeAccount gives a new account its free subscription.
func (s *Service) InitializeAccount(ctx context.Context, userID string) error {
	sub := freeSubscription(userID)
	sub.ID = uuid.New().String()
	return s.repo.CreateIfMissing(ctx, sub)
}

// Current returns the user's subscription, or an implicit free one.
func (s *Service) Current(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := s.repo.GetByUser(ctx, userID)
	if errors.Is(err, core.ErrNotFound) {
		return freeSubscription(userID), nil
	}
	if err != nil {
		return nil, err
	}
	return sub, nil
}

// CheckTierChange rejects moving to a tier whose platform limit is below
// the user's current connection count. Payment flows call it before
// charging.
func (s *Service) CheckTierChange(ctx context.Context, userID, tier string) error {
	if !plan.IsValidTier(tier) {
		return fmt.Errorf("change tier: unknown tier %q: %w", tier, core.ErrInvalidInput)
	}
	if s.connections == nil {
		return nil
	}

	count, err := s.connections.CountConnected(ctx, userID)
	if err != nil {
		return fmt.Errorf("count connections: %w", err)
	}

	if !plan.AllowsConnections(tier, count) {
		return core.ConflictError(fmt.Sprintf(
			"the %s plan allows %d connected platforms but %d are connected; disconnect some first",
			tier,
			plan.PlatformLimit(tier),
			count,
		))
	}

	return nil
}

// Activate starts or extends a paid period. Renewing the same tier
// extends from the end of the current period.
func (s *Service) Activate(ctx context.Context, p ActivateParams) (*Subscription, error) {
	if !plan.IsValidTier(p.Tier) || p.Tier == plan.TierFree {
		return nil, fmt.Errorf("activate: invalid tier %q: %w", p.Tier, core.ErrInvalidInput)
	}
	if !plan.IsValidCycle(p.Cycle) {
		return nil, fmt.Errorf("activate: invalid cycle %q: %w", p.Cycle, core.ErrInvalidInput)
	}

	if err := s.CheckTierChange(ctx, p.UserID, p.Tier); err != nil {
		return nil, err
	}

	current, err := s.Current(ctx, p.UserID)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	start := now
	if current.Tier == p.Tier &&
		current.EffectiveTier(now) == p.Tier &&
		current.CurrentPeriodEnd != nil &&
		current.CurrentPeriodEnd.After(now) {
		start = *current.CurrentPeriodEnd
	}
	end := periodEnd(start, p.Cycle)

	currency := p.Currency
	if currency == "" {
		currency = DefaultCurrency
	}

	sub := &Subscription{
		ID:                 current.ID,
		UserID:             p.UserID,
		Tier:               p.Tier,
		BillingCycle:       p.Cycle,
		PriceCents:         p.PriceCents,
		Currency:           currency,
		Status:             StatusActive,
		CurrentPeriodStart: &now,
		CurrentPeriodEnd:   &end,
		Provider:           p.Provider,
		ProviderRef:        p.ProviderRef,
	}
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}

	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.tiers.SetTier(ctx, p.UserID, p.Tier); err != nil {
		return nil, fmt.Errorf("set account tier: %w", err)
	}

	s.logger.Info("subscription activated",
		"user_id", p.UserID,
		"tier", p.Tier,
		"cycle", p.Cycle,
		"period_end", end,
	)

	return sub, nil
}

// Cancel stops renewal. The paid tier stays in effect until the period ends.
func (s *Service) Cancel(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}

	if !sub.IsPaid() || sub.Status != StatusActive {
		return nil, core.ConflictError("no active paid subscription to cancel")
	}

	sub.Status = StatusCanceled
	sub.CancelAtPeriodEnd = true

	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	s.notify(ctx, userID,
		"Subscription canceled",
		fmt.Sprintf("Your %s plan stays active until %s.", sub.Tier, formatDate(sub.CurrentPeriodEnd)),
	)

	return sub, nil
}

// Resume undoes a cancellation while the paid period is still running.
func (s *Service) Resume(ctx context.Context, userID string) (*Subscription, error) {
	sub, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}

	if sub.Status != StatusCanceled || sub.EffectiveTier(s.now()) != sub.Tier {
		return nil, core.ConflictError("subscription is not pending cancellation")
	}

	sub.Status = StatusActive
	sub.CancelAtPeriodEnd = false

	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	return sub, nil
}

// Downgrade moves the user to the free tier immediately.
func (s *Service) Downgrade(ctx context.Context, userID, tier string) (*Subscription, error) {
	if tier != plan.TierFree {
		return nil, fmt.Errorf("downgrade: paid tiers are purchased: %w", core.ErrInvalidInput)
	}

	if err := s.CheckTierChange(ctx, userID, tier); err != nil {
		return nil, err
	}

	current, err := s.Current(ctx, userID)
	if err != nil {
		return nil, err
	}

	sub := freeSubscription(userID)
	sub.ID = current.ID
	if sub.ID == "" {
		sub.ID = uuid.New().String()
	}

	if err := s.repo.Upsert(ctx, sub); err != nil {
		return nil, err
	}

	if err := s.tiers.SetTier(ctx, userID, plan.TierFree); err != nil {
		return nil, fmt.Errorf("set account tier: %w", err)
	}

	return sub, nil
}

// ExpireLapsed ends every paid period that has run out and moves those
// accounts back to free. It returns how many subscriptions expired.
func (s *Service) ExpireLapsed(ctx context.Context) (int, error) {
	now := s.now().UTC()

	subs, err := s.repo.ListLapsed(ctx, now, 500)
	if err != nil {
		return 0, err
	}

	expired := 0
	for i := range subs {
		sub := &subs[i]
		if !sub.Lapsed(now) {
			continue
		}

		sub.Status = StatusExpired
		sub.CancelAtPeriodEnd = false
		if err := s.repo.Upsert(ctx, sub); err != nil {
			s.logger.Error("expire subscription", "user_id", sub.UserID, "error", err)
			continue
		}

		if err := s.tiers.SetTier(ctx, sub.UserID, plan.TierFree); err != nil {
			s.logger.Error("reset account tier", "user_id", sub.UserID, "error", err)
			continue
		}

		s.notify(ctx, sub.UserID, "Subscription expired", s.expiryMessage(ctx, sub))
		expired++
	}

	return expired, nil
}

// expiryMessage tells the user when their connected platforms exceed the
// free allowance. Existing connections stay in place; new ones are refused
// until the count is back under the limit.
func (s *Service) expiryMessage(ctx context.Context, sub *Subscription) string {
	msg := fmt.Sprintf("Your %s plan has ended and your account is now on the Free plan.", sub.Tier)
	if s.connections == nil {
		return msg
	}

	count, err := s.connections.CountConnected(ctx, sub.UserID)
	if err != nil {
		s.logger.Warn("count connections for expiry notice", "user_id", sub.UserID, "error", err)
		return msg
	}
	if plan.AllowsConnections(plan.TierFree, count) {
		return msg
	}

	return fmt.Sprintf(
		"%s You have %d connected platforms; disconnect platforms to stay within the Free plan's limit of %d.",
		msg,
		count,
		plan.PlatformLimit(plan.TierFree),
	)
}

func (s *Service) SummaryByTier(ctx context.Context) ([]TierSummary, error) {
	return s.repo.SummaryByTier(ctx)
}

func (s *Service) notify(ctx context.Context, userID, title, message string) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, userID, notification.CategoryBilling, title, message); err != nil {
		s.logger.Warn("send billing notification", "user_id", userID, "error", err)
	}
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "the end of the billing period"
	}
	return t.Format("January 2, 2006")
}
