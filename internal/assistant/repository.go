// AngelaMos | 2026
// repository.go

package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/auramanager/aura-api/internal/core"
)

type Repository interface {
	Create(ctx context.Context, msgs ...*Message) error
	Recent(ctx context.Context, userID string, limit int) ([]Message, error)
	List(ctx context.Context, userID string, page core.PageParams) ([]Message, int, error)
	CountSince(ctx context.Context, userID, role string, since time.Time) (int, error)
	DeleteAll(ctx context.Context, userID string) (int64, error)
}

type repository struct {
	db *sqlx.DB
}

func NewRepository(db *sqlx.DB) Repository {
	return &repository{db: db}
}

// Create stores the messages of one exchange together or not at all.
func (r *repository) Create(ctx context.Context, msgs ...*Message) error {
	query := `
		INSERT INTO chat_messages (id, user_id, role, content, created_at)
		VALUES ($1, $2, $3, $4, $5)`

	return core.InTx(ctx, r.db, func(tx *sqlx.Tx) error {
		for _, m := range msgs {
			if _, err := tx.ExecContext(ctx, query,
				m.ID,
				m.UserID,
				m.Role,
				m.Content,
				m.CreatedAt,
			); err != nil {
				return fmt.Errorf("create chat message: %w", err)
			}
		}
		return nil
	})
}

// Recent returns the newest limit messages in chronological order.
func (r *repository) Recent(ctx context.Context, userID string, limit int) ([]Message, error) {
	query := `
		SELECT id, user_id, role, content, created_at FROM (
			SELECT id, user_id, role, content, created_at
			FROM chat_messages
			WHERE user_id = $1
			ORDER BY created_at DESC
			LIMIT $2
		) recent
		ORDER BY created_at ASC`

	var out []Message
	if err := r.db.SelectContext(ctx, &out, query, userID, limit); err != nil {
		return nil, fmt.Errorf("list recent chat messages: %w", err)
	}

	return out, nil
}

func (r *repository) List(
	ctx context.Context,
	userID string,
	page core.PageParams,
) ([]Message, int, error) {
	page.Normalize()

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM chat_messages WHERE user_id = $1`,
		userID,
	); err != nil {
		return nil, 0, fmt.Errorf("count chat messages: %w", err)
	}

	query := `
		SELECT id, user_id, role, content, created_at
		FROM chat_messages
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	var out []Message
	if err := r.db.SelectContext(ctx, &out, query,
		userID, page.PageSize, page.Offset(),
	); err != nil {
		return nil, 0, fmt.Errorf("list chat messages: %w", err)
	}

	return out, total, nil
}

func (r *repository) CountSince(
	ctx context.Context,
	userID, role string,
	since time.Time,
) (int, error) {
	query := `
		SELECT COUNT(*) FROM chat_messages
		WHERE user_id = $1 AND role = $2 AND created_at >= $3`

	var n int
	if err := r.db.GetContext(ctx, &n, query, userID, role, since); err != nil {
		return 0, fmt.Errorf("count chat messages: %w", err)
	}

	return n, nil
}

func (r *repository) DeleteAll(ctx context.Context, userID string) (int64, error) {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_messages WHERE user_id = $1`,
		userID,
	)
	if err != nil {
		return 0, fmt.Errorf("clear chat messages: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("clear chat messages: %w", err)
	}

	return n, nil
}
