// AngelaMos | 2026
// repository_test.go

package auth

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auramanager/aura-api/internal/core"
)

func newMockRepo(t *testing.T) (Repository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return NewRepository(sqlx.NewDb(db, "sqlmock")), mock
}

func TestRepositoryFindByHash(t *testing.T) {
	repo, mock := newMockRepo(t)
	exp := time.Now().Add(time.Hour)

	mock.ExpectQuery(`FROM refresh_tokens WHERE token_hash = \$1`).
		WithArgs("h1").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "user_id", "token_hash", "family_id", "expires_at", "created_at",
			"is_used", "used_at", "revoked_at", "replaced_by_id", "user_agent", "ip_address",
		}).AddRow("t1", "u1", "h1", "f1", exp, time.Now(), false, nil, nil, nil, "ua", "198.51.100.4"))
	mock.ExpectQuery(`FROM refresh_tokens WHERE token_hash = \$1`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	tok, err := repo.FindByHash(context.Background(), "h1")
	require.NoError(t, err)
	assert.Equal(t, "f1", tok.FamilyID)
	assert.True(t, tok.IsValid())

	_, err = repo.FindByHash(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryMarkAsUsedOnlyOnce(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`SET is_used = TRUE, used_at = NOW\(\), replaced_by_id = \$2\s+WHERE id = \$1 AND is_used = FALSE`).
		WithArgs("t1", "t2").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`WHERE id = \$1 AND is_used = FALSE`).
		WithArgs("t1", "t3").
		WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.MarkAsUsed(context.Background(), "t1", "t2"))
	assert.ErrorIs(t, repo.MarkAsUsed(context.Background(), "t1", "t3"), core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryRevokeFamily(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`WHERE family_id = \$1 AND revoked_at IS NULL`).
		WithArgs("f1").
		WillReturnResult(sqlmock.NewResult(0, 3))

	require.NoError(t, repo.RevokeByFamilyID(context.Background(), "f1"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryDeleteExpired(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`DELETE FROM refresh_tokens WHERE expires_at < \$1`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 7))

	n, err := repo.DeleteExpired(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(7), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}
