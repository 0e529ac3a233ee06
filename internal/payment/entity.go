// AngelaMos | 2026
// entity.go

package payment

import (
	"time"
)

const (
	ProviderCard   = "card"
	ProviderPayPal = "paypal"
)

const (
	StatusPending    = "pending"
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

const InvoiceStatusPaid = "paid"

// Payment is one checkout attempt. Card payments keep only brand and last
// four digits. PlanAppliedAt is set once the paid plan has been activated.
type Payment struct {
	ID            string     `db:"id"`
	UserID        string     `db:"user_id"`
	Provider      string     `db:"provider"`
	ProviderRef   string     `db:"provider_ref"`
	Tier          string     `db:"tier"`
	BillingCycle  string     `db:"billing_cycle"`
	AmountCents   int64      `db:"amount_cents"`
	Currency      string     `db:"currency"`
	Status        string     `db:"status"`
	CardBrand     string     `db:"card_brand"`
	CardLast4     string     `db:"card_last4"`
	Failure       string     `db:"failure"`
	PlanAppliedAt *time.Time `db:"plan_applied_at"`
	CreatedAt     time.Time  `db:"created_at"`
	UpdatedAt     time.Time  `db:"updated_at"`
}

type Invoice struct {
	ID          string    `db:"id"`
	UserID      string    `db:"user_id"`
	PaymentID   string    `db:"payment_id"`
	Number      string    `db:"number"`
	Description string    `db:"description"`
	AmountCents int64     `db:"amount_cents"`
	Currency    string    `db:"currency"`
	Status      string    `db:"status"`
	IssuedAt    time.Time `db:"issued_at"`
}

type RevenueRow struct {
	Provider    string `db:"provider" json:"provider"`
	Currency    string `db:"currency" json:"currency"`
	Payments    int    `db:"payments" json:"payments"`
	AmountCents int64  `db:"amount_cents" json:"amount_cents"`
}
