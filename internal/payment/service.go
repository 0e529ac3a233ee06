// AngelaMos | 2026
// service.go

package payment

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/metrics"
	"github.com/auramanager/aura-api/internal/notification"
	"github.com/auramanager/aura-api/internal/paypal"
	"github.com/auramanager/aura-api/internal/plan"
	"github.com/auramanager/aura-api/internal/subscription"
)

// ClaimTimeout is how long a capture may hold a payment in processing
// before another request can take it over.
const ClaimTimeout = 2 * time.Minute

// SubscriptionManager applies a paid plan once money has moved.
type SubscriptionManager interface {
	Current(ctx context.Context, userID string) (*subscription.Subscription, error)
	CheckTierChange(ctx context.Context, userID, tier string) error
	Activate(
		ctx context.Context,
		p subscription.ActivateParams,
	) (*subscription.Subscription, error)
}

type PayPalClient interface {
	Currency() string
	CreateOrder(ctx context.Context, req paypal.OrderRequest) (*paypal.Order, error)
	CaptureOrder(ctx context.Context, orderID string) (*paypal.Capture, error)
	GetOrder(ctx context.Context, orderID string) (*paypal.Capture, error)
}

type Notifier interface {
	Notify(ctx context.Context, userID, category, title, message string) error
}

// Deps wires the service. PayPal is nil when PayPal checkout is disabled
// and Cards defaults to the simulated gateway.
type Deps struct {
	Repo          Repository
	Cards         CardGateway
	PayPal        PayPalClient
	Subscriptions SubscriptionManager
	Notifier      Notifier
	Metrics       *metrics.Metrics
	Logger        *slog.Logger
}

type Service struct {
	Deps
	now func() time.Time
}

func NewService(deps Deps) *Service {
	if deps.Cards == nil {
		deps.Cards = SimulatedGateway{}
	}
	deps.Logger = deps.Logger.With("component", "payment")

	return &Service{Deps: deps, now: time.Now}
}

// CheckoutResult is a settled payment with the invoice and subscription it
// produced. Subscription is nil when replaying a capture whose plan was
// already applied.
type CheckoutResult struct {
	Payment      *Payment
	Invoice      *Invoice
	Subscription *subscription.Subscription
}

// CheckoutCard charges a card through the gateway and activates the plan.
// Only brand and last four digits are kept.
func (s *Service) CheckoutCard(
	ctx context.Context,
	userID string,
	req CardCheckoutRequest,
) (*CheckoutResult, error) {
	number := normalizeCardNumber(req.CardNumber)
	if len(number) != 16 || !luhnValid(number) {
		return nil, core.ValidationError("card_number is not a valid card number")
	}
	if err := parseExpiry(req.Expiry, s.now()); err != nil {
		return nil, err
	}

	amount, err := plan.Price(req.Tier, req.Cycle)
	if err != nil {
		return nil, err
	}
	if err := s.Subscriptions.CheckTierChange(ctx, userID, req.Tier); err != nil {
		return nil, err
	}

	p := &Payment{
		ID:           uuid.New().String(),
		UserID:       userID,
		Provider:     ProviderCard,
		Tier:         req.Tier,
		BillingCycle: req.Cycle,
		AmountCents:  amount,
		Currency:     subscription.DefaultCurrency,
		Status:       StatusProcessing,
		CardBrand:    cardBrand(number),
		CardLast4:    number[len(number)-4:],
	}

	ref, err := s.Cards.Charge(ctx, CardCharge{
		Number:      number,
		AmountCents: amount,
		Currency:    p.Currency,
		Description: describe(req.Tier, req.Cycle),
	})
	if err != nil {
		p.ProviderRef = "declined_" + p.ID
		p.Status = StatusFailed
		p.Failure = core.FromError(err).Message
		if cerr := s.Repo.Create(ctx, p); cerr != nil {
			s.Logger.Error("record declined payment", "user_id", userID, "error", cerr)
		}
		s.Metrics.PaymentRecorded(ProviderCard, StatusFailed)
		s.Logger.Info("card payment declined",
			"user_id", userID,
			"brand", p.CardBrand,
			"last4", p.CardLast4,
		)
		return nil, err
	}

	p.ProviderRef = ref
	if err := s.Repo.Create(ctx, p); err != nil {
		return nil, err
	}

	return s.settle(ctx, p)
}

// CreatePayPalOrder opens a PayPal order for the plan and records a
// pending payment keyed by the order id.
func (s *Service) CreatePayPalOrder(
	ctx context.Context,
	userID string,
	req CreateOrderRequest,
) (*OrderResponse, error) {
	if s.PayPal == nil {
		return nil, core.UnavailableError("PayPal payments are not configured")
	}

	amount, err := plan.Price(req.Tier, req.Cycle)
	if err != nil {
		return nil, err
	}
	if err := s.Subscriptions.CheckTierChange(ctx, userID, req.Tier); err != nil {
		return nil, err
	}

	paymentID := uuid.New().String()
	currency := s.PayPal.Currency()

	order, err := s.PayPal.CreateOrder(ctx, paypal.OrderRequest{
		AmountCents: amount,
		Currency:    currency,
		Description: describe(req.Tier, req.Cycle),
		ReferenceID: paymentID,
		CustomID:    userID,
	})
	if err != nil {
		return nil, err
	}

	p := &Payment{
		ID:           paymentID,
		UserID:       userID,
		Provider:     ProviderPayPal,
		ProviderRef:  order.ID,
		Tier:         req.Tier,
		BillingCycle: req.Cycle,
		AmountCents:  amount,
		Currency:     currency,
		Status:       StatusPending,
	}
	if err := s.Repo.Create(ctx, p); err != nil {
		return nil, err
	}
	s.Metrics.PaymentRecorded(ProviderPayPal, StatusPending)

	return &OrderResponse{
		PaymentID:   p.ID,
		OrderID:     order.ID,
		Status:      order.Status,
		ApproveURL:  order.ApproveURL,
		AmountCents: amount,
		Amount:      plan.FormatCents(amount, currency),
		Currency:    currency,
	}, nil
}

// CapturePayPalOrder captures an approved order owned by userID. An order
// that was already settled returns the stored payment without calling
// PayPal again, applying its plan first if that never happened. The tier
// limit is checked before any money moves.
func (s *Service) CapturePayPalOrder(
	ctx context.Context,
	userID, orderID string,
) (*CheckoutResult, error) {
	if s.PayPal == nil {
		return nil, core.UnavailableError("PayPal payments are not configured")
	}

	p, err := s.Repo.GetByProviderRef(ctx, ProviderPayPal, orderID)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.NotFoundError("order")
	}
	if err != nil {
		return nil, err
	}
	if p.UserID != userID {
		return nil, core.ForbiddenError("this order belongs to another account")
	}
	if p.Status == StatusCompleted {
		return s.replay(ctx, p)
	}
	if err := s.Subscriptions.CheckTierChange(ctx, userID, p.Tier); err != nil {
		return nil, err
	}

	claimed, err := s.Repo.Claim(ctx, p.ID, s.now().Add(-ClaimTimeout))
	if err != nil {
		return nil, err
	}
	if !claimed {
		current, err := s.Repo.GetByProviderRef(ctx, ProviderPayPal, orderID)
		if err != nil {
			return nil, err
		}
		if current.Status == StatusCompleted {
			return s.replay(ctx, current)
		}
		return nil, core.ConflictError("this order is already being captured")
	}

	capture, err := s.PayPal.CaptureOrder(ctx, orderID)
	if errors.Is(err, paypal.ErrAlreadyCaptured) {
		capture, err = s.PayPal.GetOrder(ctx, orderID)
	}
	if err != nil {
		if errors.Is(err, paypal.ErrNotApproved) {
			s.fail(ctx, p, "order not approved by payer")
			return nil, core.ConflictError("the order has not been approved in PayPal yet")
		}
		s.release(ctx, p)
		return nil, err
	}

	if capture.Status != paypal.StatusCompleted {
		s.fail(ctx, p, "capture status "+strings.ToLower(capture.Status))
		return nil, core.PaymentDeclinedError("PayPal did not complete the payment")
	}
	if capture.AmountCents != p.AmountCents ||
		!strings.EqualFold(capture.Currency, p.Currency) {
		s.fail(ctx, p, "captured amount does not match the order")
		return nil, fmt.Errorf(
			"capture %s: got %d %s, want %d %s: %w",
			orderID,
			capture.AmountCents,
			capture.Currency,
			p.AmountCents,
			p.Currency,
			core.ErrUpstream,
		)
	}

	result, err := s.settle(ctx, p)
	if err != nil && p.Status != StatusCompleted {
		s.release(ctx, p)
	}
	return result, err
}

func (s *Service) ListPayments(
	ctx context.Context,
	userID string,
	page core.PageParams,
) ([]Payment, int, error) {
	return s.Repo.ListByUser(ctx, userID, page)
}

func (s *Service) ListInvoices(
	ctx context.Context,
	userID string,
	page core.PageParams,
) ([]Invoice, int, error) {
	return s.Repo.ListInvoices(ctx, userID, page)
}

func (s *Service) GetInvoice(ctx context.Context, userID, id string) (*Invoice, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, core.NotFoundError("invoice")
	}

	inv, err := s.Repo.GetInvoice(ctx, userID, id)
	if errors.Is(err, core.ErrNotFound) {
		return nil, core.NotFoundError("invoice")
	}
	return inv, err
}

func (s *Service) RevenueSummary(ctx context.Context) ([]RevenueRow, error) {
	return s.Repo.RevenueSummary(ctx)
}

// settle issues the invoice, activates the plan and tells the user.
func (s *Service) settle(ctx context.Context, p *Payment) (result *CheckoutResult, err error) {
	ctx, span := core.StartSpan(ctx, "payment.settle",
		attribute.String("payment.provider", p.Provider),
		attribute.String("payment.tier", p.Tier),
	)
	defer func() { core.EndSpan(span, err) }()

	inv, err := s.newInvoice(p)
	if err != nil {
		return nil, err
	}
	if err := s.Repo.Complete(ctx, p.ID, inv); err != nil {
		return nil, err
	}
	p.Status = StatusCompleted
	p.Failure = ""

	s.Metrics.PaymentRecorded(p.Provider, StatusCompleted)
	s.Metrics.PaymentCaptured(p.Provider, p.Currency, p.AmountCents)

	sub, err := s.applyPlan(ctx, p)
	if err != nil {
		return nil, err
	}

	s.Logger.Info("payment completed",
		"payment_id", p.ID,
		"provider", p.Provider,
		"user_id", p.UserID,
		"tier", p.Tier,
		"invoice", inv.Number,
	)

	if s.Notifier != nil {
		message := fmt.Sprintf("%s paid. Invoice %s is available in billing.",
			plan.FormatCents(p.AmountCents, p.Currency), inv.Number)
		if err := s.Notifier.Notify(ctx, p.UserID, notification.CategoryBilling,
			"Payment received", message); err != nil {
			s.Logger.Warn("payment notification failed", "user_id", p.UserID, "error", err)
		}
	}

	return &CheckoutResult{Payment: p, Invoice: inv, Subscription: sub}, nil
}

// applyPlan activates the plan a completed payment bought and records that
// it did. A subscription already carrying this payment's reference is only
// marked, so a lost mark never extends the period twice.
func (s *Service) applyPlan(ctx context.Context, p *Payment) (*subscription.Subscription, error) {
	current, err := s.Subscriptions.Current(ctx, p.UserID)
	if err != nil {
		return nil, fmt.Errorf("load subscription: %w", err)
	}

	sub := current
	if current.Provider != p.Provider || current.ProviderRef != p.ProviderRef {
		sub, err = s.Subscriptions.Activate(ctx, subscription.ActivateParams{
			UserID:      p.UserID,
			Tier:        p.Tier,
			Cycle:       p.BillingCycle,
			PriceCents:  p.AmountCents,
			Currency:    p.Currency,
			Provider:    p.Provider,
			ProviderRef: p.ProviderRef,
		})
		if err != nil {
			s.Logger.Error("activate subscription after payment",
				"payment_id", p.ID,
				"user_id", p.UserID,
				"error", err,
			)
			return nil, fmt.Errorf("activate subscription: %w", err)
		}
	}

	if err := s.Repo.MarkApplied(ctx, p.ID); err != nil {
		s.Logger.Warn("mark plan applied", "payment_id", p.ID, "error", err)
	} else {
		applied := s.now().UTC()
		p.PlanAppliedAt = &applied
	}

	return sub, nil
}

// replay answers a repeated capture. A payment whose plan was never applied
// gets it applied now.
func (s *Service) replay(ctx context.Context, p *Payment) (*CheckoutResult, error) {
	inv, err := s.Repo.GetInvoiceByPayment(ctx, p.ID)
	if err != nil && !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	result := &CheckoutResult{Payment: p, Invoice: inv}
	if p.PlanAppliedAt == nil {
		sub, err := s.applyPlan(ctx, p)
		if err != nil {
			return nil, err
		}
		result.Subscription = sub
	}

	return result, nil
}

// ApplyPendingPlans activates plans for completed payments that were left
// unapplied, for example when activation failed after the capture. It
// returns how many were applied.
func (s *Service) ApplyPendingPlans(ctx context.Context) (int64, error) {
	pending, err := s.Repo.ListUnapplied(ctx, s.now().Add(-ClaimTimeout), 200)
	if err != nil {
		return 0, err
	}

	var applied int64
	for i := range pending {
		if _, err := s.applyPlan(ctx, &pending[i]); err != nil {
			continue
		}
		applied++
	}

	return applied, nil
}

func (s *Service) fail(ctx context.Context, p *Payment, reason string) {
	p.Status = StatusFailed
	p.Failure = reason
	if err := s.Repo.SetStatus(ctx, p.ID, StatusFailed, reason); err != nil {
		s.Logger.Error("mark payment failed", "payment_id", p.ID, "error", err)
	}
	s.Metrics.PaymentRecorded(p.Provider, StatusFailed)
	s.Logger.Warn("payment failed", "payment_id", p.ID, "reason", reason)
}

// release returns a claimed payment to pending after a transient error.
func (s *Service) release(ctx context.Context, p *Payment) {
	if err := s.Repo.SetStatus(ctx, p.ID, StatusPending, ""); err != nil {
		s.Logger.Error("release payment claim", "payment_id", p.ID, "error", err)
	}
}

func (s *Service) newInvoice(p *Payment) (*Invoice, error) {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return nil, fmt.Errorf("generate invoice number: %w", err)
	}
	now := s.now().UTC()

	return &Invoice{
		ID:          uuid.New().String(),
		UserID:      p.UserID,
		PaymentID:   p.ID,
		Number:      invoiceNumber(now, b),
		Description: describe(p.Tier, p.BillingCycle),
		AmountCents: p.AmountCents,
		Currency:    p.Currency,
		Status:      InvoiceStatusPaid,
		IssuedAt:    now,
	}, nil
}

func describe(tier, cycle string) string {
	name := tier
	if pl, ok := plan.Lookup(tier); ok {
		name = pl.Name
	}
	return fmt.Sprintf("Aura Manager %s plan (%s)", name, cycle)
}

func invoiceNumber(at time.Time, suffix [4]byte) string {
	return fmt.Sprintf(
		"INV-%s-%s",
		at.Format("200601"),
		strings.ToUpper(hex.EncodeToString(suffix[:])),
	)
}
