// AngelaMos | 2026
// dto.go

package payment

import (
	"time"

	"github.com/auramanager/aura-api/internal/plan"
	"github.com/auramanager/aura-api/internal/subscription"
)

type CardCheckoutRequest struct {
	CardNumber string `json:"card_number" validate:"required,len=16,numeric,luhn_checksum"`
	HolderName string `json:"holder_name" validate:"required,min=2,max=100"`
	Expiry     string `json:"expiry"      validate:"required,len=5"`
	CVC        string `json:"cvc"         validate:"required,numeric,min=3,max=4"`
	Email      string `json:"email"       validate:"omitempty,email,max=255"`
	Tier       string `json:"tier"        validate:"required,oneof=creator pro"`
	Cycle      string `json:"cycle"       validate:"required,oneof=monthly yearly"`
}

type CreateOrderRequest struct {
	Tier  string `json:"tier"  validate:"required,oneof=creator pro"`
	Cycle string `json:"cycle" validate:"required,oneof=monthly yearly"`
}

// PayPalActionRequest is the single-endpoint form used by /api/paypal.
type PayPalActionRequest struct {
	Action  string `json:"action"   validate:"required,oneof=create capture"`
	Tier    string `json:"tier"     validate:"required_if=Action create,omitempty,oneof=creator pro"`
	Cycle   string `json:"cycle"    validate:"required_if=Action create,omitempty,oneof=monthly yearly"`
	OrderID string `json:"order_id" validate:"required_if=Action capture,max=64"`
}

type PaymentResponse struct {
	ID           string    `json:"id"`
	Provider     string    `json:"provider"`
	ProviderRef  string    `json:"provider_ref"`
	Tier         string    `json:"tier"`
	BillingCycle string    `json:"billing_cycle"`
	AmountCents  int64     `json:"amount_cents"`
	Amount       string    `json:"amount"`
	Currency     string    `json:"currency"`
	Status       string    `json:"status"`
	CardBrand    string    `json:"card_brand,omitempty"`
	CardLast4    string    `json:"card_last4,omitempty"`
	Failure      string    `json:"failure,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

type InvoiceResponse struct {
	ID          string    `json:"id"`
	Number      string    `json:"number"`
	PaymentID   string    `json:"payment_id"`
	Description string    `json:"description"`
	AmountCents int64     `json:"amount_cents"`
	Amount      string    `json:"amount"`
	Currency    string    `json:"currency"`
	Status      string    `json:"status"`
	IssuedAt    time.Time `json:"issued_at"`
}

type CheckoutResponse struct {
	Payment      PaymentResponse                    `json:"payment"`
	Invoice      *InvoiceResponse                   `json:"invoice,omitempty"`
	Subscription *subscription.SubscriptionResponse `json:"subscription,omitempty"`
}

type OrderResponse struct {
	PaymentID   string `json:"payment_id"`
	OrderID     string `json:"order_id"`
	Status      string `json:"status"`
	ApproveURL  string `json:"approve_url"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount"`
	Currency    string `json:"currency"`
}

func ToPaymentResponse(p *Payment) PaymentResponse {
	return PaymentResponse{
		ID:           p.ID,
		Provider:     p.Provider,
		ProviderRef:  p.ProviderRef,
		Tier:         p.Tier,
		BillingCycle: p.BillingCycle,
		AmountCents:  p.AmountCents,
		Amount:       plan.FormatCents(p.AmountCents, p.Currency),
		Currency:     p.Currency,
		Status:       p.Status,
		CardBrand:    p.CardBrand,
		CardLast4:    p.CardLast4,
		Failure:      p.Failure,
		CreatedAt:    p.CreatedAt,
	}
}

func ToPaymentResponseList(items []Payment) []PaymentResponse {
	out := make([]PaymentResponse, 0, len(items))
	for i := range items {
		out = append(out, ToPaymentResponse(&items[i]))
	}
	return out
}

func ToInvoiceResponse(inv *Invoice) InvoiceResponse {
	return InvoiceResponse{
		ID:          inv.ID,
		Number:      inv.Number,
		PaymentID:   inv.PaymentID,
		Description: inv.Description,
		AmountCents: inv.AmountCents,
		Amount:      plan.FormatCents(inv.AmountCents, inv.Currency),
		Currency:    inv.Currency,
		Status:      inv.Status,
		IssuedAt:    inv.IssuedAt,
	}
}

func ToInvoiceResponseList(items []Invoice) []InvoiceResponse {
	out := make([]InvoiceResponse, 0, len(items))
	for i := range items {
		out = append(out, ToInvoiceResponse(&items[i]))
	}
	return out
}

func ToCheckoutResponse(r *CheckoutResult, now time.Time) CheckoutResponse {
	out := CheckoutResponse{Payment: ToPaymentResponse(r.Payment)}
	if r.Invoice != nil {
		inv := ToInvoiceResponse(r.Invoice)
		out.Invoice = &inv
	}
	if r.Subscription != nil {
		sub := subscription.ToSubscriptionResponse(r.Subscription, now)
		out.Subscription = &sub
	}
	return out
}
