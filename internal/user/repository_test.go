// AngelaMos | 2026
// repository_test.go

package user

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
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

var userCols = []string{
	"id", "email", "password_hash", "name", "role", "tier", "token_version",
	"created_at", "updated_at", "deleted_at",
}

func userRow(id, role, tier string, version int) *sqlmock.Rows {
	now := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	return sqlmock.NewRows(userCols).
		AddRow(id, id+"@aura.test", "hash", "Nova", role, tier, version, now, now, nil)
}

func TestRepositoryCreateDuplicateEmail(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`INSERT INTO users`).
		WillReturnError(&pgconn.PgError{Code: "23505"})

	err := repo.Create(context.Background(), &User{ID: "u1", Email: "a@b.c"})
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryGetByIDNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`FROM users\s+WHERE id = \$1 AND deleted_at IS NULL`).
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(userCols))

	_, err := repo.GetByID(context.Background(), "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySetRoleBumpsTokenVersion(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SET role = \$2, token_version = token_version \+ 1`).
		WithArgs("u1", RoleAdmin).
		WillReturnRows(userRow("u1", RoleAdmin, TierFree, 3))

	u, err := repo.SetRole(context.Background(), "u1", RoleAdmin)
	require.NoError(t, err)
	assert.Equal(t, RoleAdmin, u.Role)
	assert.Equal(t, 3, u.TokenVersion)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositorySoftDeleteMissing(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectExec(`SET deleted_at = NOW\(\), token_version = token_version \+ 1`).
		WithArgs("gone").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.SoftDelete(context.Background(), "gone")
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryListFilters(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM users WHERE deleted_at IS NULL AND \(email ILIKE \$1 OR name ILIKE \$1\) AND tier = \$2`).
		WithArgs(`%nova\_x%`, TierPro).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`LIMIT \$3 OFFSET \$4`).
		WithArgs(`%nova\_x%`, TierPro, 10, 10).
		WillReturnRows(userRow("u2", RoleUser, TierPro, 0))

	users, total, err := repo.List(context.Background(), ListUsersParams{
		PageParams: core.PageParams{Page: 2, PageSize: 10},
		Search:     "nova_x",
		Tier:       TierPro,
	})
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	require.Len(t, users, 1)
	assert.Equal(t, "u2", users[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
