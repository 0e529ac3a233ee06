// AngelaMos | 2026
// repository_test.go

package assistant

import (
	"context"
	"errors"
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

func exchange() (*Message, *Message) {
	at := time.Date(2026, 3, 15, 12, 0, 0, 0, time.UTC)
	q := &Message{ID: "m1", UserID: "u1", Role: RoleUser, Content: "hi", CreatedAt: at}
	a := &Message{ID: "m2", UserID: "u1", Role: RoleAssistant, Content: "hello", CreatedAt: at.Add(time.Millisecond)}
	return q, a
}

func TestRepositoryCreateCommitsExchange(t *testing.T) {
	repo, mock := newMockRepo(t)
	q, a := exchange()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO chat_messages`).
		WithArgs("m1", "u1", RoleUser, "hi", q.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO chat_messages`).
		WithArgs("m2", "u1", RoleAssistant, "hello", a.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, repo.Create(context.Background(), q, a))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestRepositoryCreateRollsBackHalfExchange(t *testing.T) {
	repo, mock := newMockRepo(t)
	q, a := exchange()

	mock.ExpectBegin()
	mock.ExpectExec(`INSERT INTO chat_messages`).
		WithArgs("m1", "u1", RoleUser, "hi", q.CreatedAt).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO chat_messages`).
		WithArgs("m2", "u1", RoleAssistant, "hello", a.CreatedAt).
		WillReturnError(errors.New("connection reset"))
	mock.ExpectRollback()

	err := repo.Create(context.Background(), q, a)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "create chat message")
	assert.NoError(t, mock.ExpectationsWereMet())
}
