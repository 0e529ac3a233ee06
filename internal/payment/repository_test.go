// AngelaMos | 2026
// repository_test.go

package payment

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestRepositoryClaim(t *testing.T) {
	repo, mock := newMockRepo(t)
	staleBefore := time.Date(2026, 3, 15, 11, 58, 0, 0, time.UTC)

	mock.ExpectExec(`(?s)UPDATE payment_history\s+SET status = 'processing'.+updated_at < \$2`).
		WithArgs("p1", staleBefore).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE payment_history\s+SET status = 'processing'`).
		WithArgs("p1", staleBefore).
		WillReturnResult(sqlmock.NewResult(0, 0))

	won, err := repo.Claim(context.Background(), "p1", staleBefore)
	require.NoError(t, err)
	assert.True(t, won)

	won, err = repo.Claim(context.Background(), "p1", staleBefore)
	require.NoError(t, err)
	assert.False(t, won)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryMarkApplied(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`UPDATE payment_history\s+SET plan_applied_at = NOW\(\)\s+WHERE id = \$1 AND plan_applied_at IS NULL`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.MarkApplied(context.Background(), "p1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListUnapplied(t *testing.T) {
	repo, mock := newMockRepo(t)
	before := time.Date(2026, 3, 15, 11, 58, 0, 0, time.UTC)
	at := before.Add(-time.Hour)

	mock.ExpectQuery(`FROM payment_history\s+WHERE status = 'completed'\s+AND plan_applied_at IS NULL`).
		WithArgs(before, 50).
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "provider", "provider_ref", "tier", "billing_cycle",
			"amount_cents", "currency", "status", "card_brand", "card_last4",
			"failure", "plan_applied_at", "created_at", "updated_at",
		}).AddRow(
			"p1", "u1", ProviderPayPal, "ORDER-1", "pro", "yearly",
			int64(19900), "USD", StatusCompleted, "", "",
			"", nil, at, at,
		))

	out, err := repo.ListUnapplied(context.Background(), before, 50)
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.Equal(t, "ORDER-1", out[0].ProviderRef)
	assert.Nil(t, out[0].PlanAppliedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCompleteIssuesInvoice(t *testing.T) {
	repo, mock := newMockRepo(t)
	issued := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE payment_history\s+SET status = 'completed'`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO invoices`).
		WillReturnRows(sqlmock.NewRows([]string{"issued_at"}).AddRow(issued))
	mock.ExpectCommit()

	inv := &Invoice{ID: "i1", UserID: "u1", Number: "INV-202603-00000001", Currency: "USD"}
	require.NoError(t, repo.Complete(context.Background(), "p1", inv))
	assert.Equal(t, issued, inv.IssuedAt)
	assert.Equal(t, "p1", inv.PaymentID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCompleteKeepsExistingInvoice(t *testing.T) {
	repo, mock := newMockRepo(t)
	issued := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE payment_history`).
		WithArgs("p1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectQuery(`INSERT INTO invoices`).
		WillReturnRows(sqlmock.NewRows([]string{"issued_at"}))
	mock.ExpectQuery(`SELECT .+ FROM invoices WHERE payment_id = \$1`).
		WithArgs("p1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "payment_id", "number", "description",
			"amount_cents", "currency", "status", "issued_at",
		}).AddRow("i0", "u1", "p1", "INV-202603-AAAAAAAA", "Pro", 1999, "USD", "paid", issued))
	mock.ExpectCommit()

	inv := &Invoice{ID: "i1", UserID: "u1", Number: "INV-202603-BBBBBBBB"}
	require.NoError(t, repo.Complete(context.Background(), "p1", inv))
	assert.Equal(t, "i0", inv.ID)
	assert.Equal(t, "INV-202603-AAAAAAAA", inv.Number)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCompleteRollsBack(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE payment_history`).
		WithArgs("p1").
		WillReturnError(assert.AnError)
	mock.ExpectRollback()

	err := repo.Complete(context.Background(), "p1", &Invoice{})
	assert.ErrorIs(t, err, assert.AnError)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRevenueSummary(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM payment_history\s+WHERE status = 'completed'`).
		WillReturnRows(sqlmock.NewRows([]string{"provider", "currency", "payments", "amount_cents"}).
			AddRow("card", "USD", 3, 2997).
			AddRow("paypal", "USD", 1, 19900))

	rows, err := repo.RevenueSummary(context.Background())
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, int64(19900), rows[1].AmountCents)
	assert.NoError(t, mock.ExpectationsWereMet())
}
