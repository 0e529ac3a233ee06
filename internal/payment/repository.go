// AngelaMos | 2026
// repository.go

package payment

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"

	"github.com/auramanager/aura-api/internal/core"
)

type Repository interface {
	Create(ctx context.Context, p *Payment) error
	GetByProviderRef(ctx context.Context, provider, ref string) (*Payment, error)
	Claim(ctx context.Context, id string, staleBefore time.Time) (bool, error)
	SetStatus(ctx context.Context, id, status, failure string) error
	Complete(ctx context.Context, paymentID string, inv *Invoice) error
	MarkApplied(ctx context.Context, id string) error
	ListUnapplied(ctx context.Context, before time.Time, limit int) ([]Payment, error)
	ListByUser(ctx context.Context, userID string, page core.PageParams) ([]Payment, int, error)
	ListInvoices(ctx context.Context, userID string, page core.PageParams) ([]Invoice, int, error)
	GetInvoice(ctx context.Context, userID, id string) (*Invoice, error)
	GetInvoiceByPayment(ctx context.Context, paymentID string) (*Invoice, error)
	RevenueSummary(ctx context.Context) ([]RevenueRow, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

const paymentColumns = `
	id, user_id, provider, provider_ref, tier, billing_cycle, amount_cents,
	currency, status, card_brand, card_last4, failure, plan_applied_at,
	created_at, updated_at`

const invoiceColumns = `
	id, user_id, payment_id, number, description, amount_cents, currency,
	status, issued_at`

func (r *repository) Create(ctx context.Context, p *Payment) error {
	query := `
		INSERT INTO payment_history (
			id, user_id, provider, provider_ref, tier, billing_cycle,
			amount_cents, currency, status, card_brand, card_last4, failure
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, query,
		p.ID,
		p.UserID,
		p.Provider,
		p.ProviderRef,
		p.Tier,
		p.BillingCycle,
		p.AmountCents,
		p.Currency,
		p.Status,
		p.CardBrand,
		p.CardLast4,
		p.Failure,
	)
	if err := row.Scan(&p.CreatedAt, &p.UpdatedAt); err != nil {
		if isDuplicateKeyError(err) {
			return fmt.Errorf("create payment: %w", core.ErrDuplicateKey)
		}
		return fmt.Errorf("create payment: %w", err)
	}

	return nil
}

func (r *repository) GetByProviderRef(
	ctx context.Context,
	provider, ref string,
) (*Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payment_history
		WHERE provider = $1 AND provider_ref = $2`

	var p Payment
	err := r.db.GetContext(ctx, &p, query, provider, ref)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get payment: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get payment: %w", err)
	}

	return &p, nil
}

// Claim moves a pending or failed payment to processing. A processing row
// last touched before staleBefore is taken over from a capture that never
// finished. Only one caller wins; the rest get false.
func (r *repository) Claim(ctx context.Context, id string, staleBefore time.Time) (bool, error) {
	query := `
		UPDATE payment_history
		SET status = 'processing', updated_at = NOW()
		WHERE id = $1
		  AND (status IN ('pending', 'failed')
		       OR (status = 'processing' AND updated_at < $2))`

	res, err := r.db.ExecContext(ctx, query, id, staleBefore)
	if err != nil {
		return false, fmt.Errorf("claim payment: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("claim payment: %w", err)
	}

	return n == 1, nil
}

func (r *repository) SetStatus(ctx context.Context, id, status, failure string) error {
	query := `
		UPDATE payment_history
		SET status = $2, failure = $3, updated_at = NOW()
		WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id, status, failure)
	if err != nil {
		return fmt.Errorf("set payment status: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set payment status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set payment status: %w", core.ErrNotFound)
	}

	return nil
}

// Complete marks the payment completed and issues its invoice in one
// transaction. A payment already holding an invoice keeps the original.
func (r *repository) Complete(ctx context.Context, paymentID string, inv *Invoice) error {
	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		_, err := tx.ExecContext(ctx, `
			UPDATE payment_history
			SET status = 'completed', failure = '', updated_at = NOW()
			WHERE id = $1`,
			paymentID,
		)
		if err != nil {
			return fmt.Errorf("complete payment: %w", err)
		}

		row := tx.QueryRowxContext(ctx, `
			INSERT INTO invoices (
				id, user_id, payment_id, number, description,
				amount_cents, currency, status
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			ON CONFLICT (payment_id) DO NOTHING
			RETURNING issued_at`,
			inv.ID,
			inv.UserID,
			paymentID,
			inv.Number,
			inv.Description,
			inv.AmountCents,
			inv.Currency,
			inv.Status,
		)
		err = row.Scan(&inv.IssuedAt)
		if errors.Is(err, sql.ErrNoRows) {
			existing := Invoice{}
			if err := tx.GetContext(ctx, &existing,
				`SELECT `+invoiceColumns+` FROM invoices WHERE payment_id = $1`,
				paymentID,
			); err != nil {
				return fmt.Errorf("load invoice: %w", err)
			}
			*inv = existing
			return nil
		}
		if err != nil {
			return fmt.Errorf("create invoice: %w", err)
		}

		inv.PaymentID = paymentID
		return nil
	})
}

func (r *repository) MarkApplied(ctx context.Context, id string) error {
	query := `
		UPDATE payment_history
		SET plan_applied_at = NOW()
		WHERE id = $1 AND plan_applied_at IS NULL`

	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("mark plan applied: %w", err)
	}
	return nil
}

// ListUnapplied returns completed payments whose plan was never activated,
// oldest first.
func (r *repository) ListUnapplied(
	ctx context.Context,
	before time.Time,
	limit int,
) ([]Payment, error) {
	query := `SELECT ` + paymentColumns + `
		FROM payment_history
		WHERE status = 'completed'
		  AND plan_applied_at IS NULL
		  AND updated_at < $1
		ORDER BY updated_at ASC
		LIMIT $2`

	var out []Payment
	if err := r.db.SelectContext(ctx, &out, query, before, limit); err != nil {
		return nil, fmt.Errorf("list unapplied payments: %w", err)
	}
	return out, nil
}

func (r *repository) ListByUser(
	ctx context.Context,
	userID string,
	page core.PageParams,
) ([]Payment, int, error) {
	page.Normalize()

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM payment_history WHERE user_id = $1`,
		userID,
	); err != nil {
		return nil, 0, fmt.Errorf("count payments: %w", err)
	}

	query := `SELECT ` + paymentColumns + `
		FROM payment_history
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	var out []Payment
	if err := r.db.SelectContext(ctx, &out, query,
		userID, page.PageSize, page.Offset(),
	); err != nil {
		return nil, 0, fmt.Errorf("list payments: %w", err)
	}

	return out, total, nil
}

func (r *repository) ListInvoices(
	ctx context.Context,
	userID string,
	page core.PageParams,
) ([]Invoice, int, error) {
	page.Normalize()

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM invoices WHERE user_id = $1`,
		userID,
	); err != nil {
		return nil, 0, fmt.Errorf("count invoices: %w", err)
	}

	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE user_id = $1
		ORDER BY issued_at DESC
		LIMIT $2 OFFSET $3`

	var out []Invoice
	if err := r.db.SelectContext(ctx, &out, query,
		userID, page.PageSize, page.Offset(),
	); err != nil {
		return nil, 0, fmt.Errorf("list invoices: %w", err)
	}

	return out, total, nil
}

func (r *repository) GetInvoice(ctx context.Context, userID, id string) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE id = $1 AND user_id = $2`

	var inv Invoice
	err := r.db.GetContext(ctx, &inv, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get invoice: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	return &inv, nil
}

func (r *repository) GetInvoiceByPayment(
	ctx context.Context,
	paymentID string,
) (*Invoice, error) {
	query := `SELECT ` + invoiceColumns + `
		FROM invoices
		WHERE payment_id = $1`

	var inv Invoice
	err := r.db.GetContext(ctx, &inv, query, paymentID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get invoice: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get invoice: %w", err)
	}

	return &inv, nil
}

func (r *repository) RevenueSummary(ctx context.Context) ([]RevenueRow, error) {
	query := `
		SELECT provider, currency, COUNT(*) AS payments,
		       COALESCE(SUM(amount_cents), 0) AS amount_cents
		FROM payment_history
		WHERE status = 'completed'
		GROUP BY provider, currency
		ORDER BY provider, currency`

	var out []RevenueRow
	if err := r.db.SelectContext(ctx, &out, query); err != nil {
		return nil, fmt.Errorf("summarize revenue: %w", err)
	}

	return out, nil
}

func isDuplicateKeyError(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}
