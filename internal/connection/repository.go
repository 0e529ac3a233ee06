// AngelaMos | 2026
// repository.go

package connection

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/auramanager/aura-api/internal/core"
)

type Repository interface {
	Upsert(ctx context.Context, t *Token) error
	Get(ctx context.Context, userID, platform string) (*Token, error)
	ListByUser(ctx context.Context, userID string) ([]Token, error)
	CountByUser(ctx context.Context, userID string) (int, error)
	Delete(ctx context.Context, userID, platform string) error
	DeleteAllByUser(ctx context.Context, userID string) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) Upsert(ctx context.Context, t *Token) error {
	query := `
		INSERT INTO oauth_tokens (
			id, user_id, platform, access_token, refresh_token,
			token_type, scope, expires_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (user_id, platform) DO UPDATE SET
			access_token = EXCLUDED.access_token,
			refresh_token = COALESCE(EXCLUDED.refresh_token, oauth_tokens.refresh_token),
			token_type = EXCLUDED.token_type,
			scope = EXCLUDED.scope,
			expires_at = EXCLUDED.expires_at,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, query,
		t.ID,
		t.UserID,
		t.Platform,
		t.AccessToken,
		t.RefreshToken,
		t.TokenType,
		t.Scope,
		t.ExpiresAt,
	)
	if err := row.Scan(&t.ID, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return fmt.Errorf("upsert oauth token: %w", err)
	}

	return nil
}

func (r *repository) Get(ctx context.Context, userID, platform string) (*Token, error) {
	query := `
		SELECT id, user_id, platform, access_token, refresh_token, token_type,
		       scope, expires_at, created_at, updated_at
		FROM oauth_tokens
		WHERE user_id = $1 AND platform = $2`

	var t Token
	err := r.db.GetContext(ctx, &t, query, userID, platform)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get oauth token: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get oauth token: %w", err)
	}

	return &t, nil
}

// ListByUser returns connection metadata only; sealed token bytes are not
// selected.
func (r *repository) ListByUser(ctx context.Context, userID string) ([]Token, error) {
	query := `
		SELECT id, user_id, platform, token_type, scope, expires_at,
		       created_at, updated_at
		FROM oauth_tokens
		WHERE user_id = $1
		ORDER BY created_at`

	var tokens []Token
	if err := r.db.SelectContext(ctx, &tokens, query, userID); err != nil {
		return nil, fmt.Errorf("list oauth tokens: %w", err)
	}

	return tokens, nil
}

func (r *repository) CountByUser(ctx context.Context, userID string) (int, error) {
	query := `SELECT COUNT(*) FROM oauth_tokens WHERE user_id = $1`

	var n int
	if err := r.db.GetContext(ctx, &n, query, userID); err != nil {
		return 0, fmt.Errorf("count oauth tokens: %w", err)
	}
	return n, nil
}

func (r *repository) Delete(ctx context.Context, userID, platform string) error {
	query := `DELETE FROM oauth_tokens WHERE user_id = $1 AND platform = $2`

	result, err := r.db.ExecContext(ctx, query, userID, platform)
	if err != nil {
		return fmt.Errorf("delete oauth token: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete oauth token: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("delete oauth token: %w", core.ErrNotFound)
	}

	return nil
}

func (r *repository) DeleteAllByUser(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM oauth_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return 0, fmt.Errorf("delete oauth tokens: %w", err)
	}
	return result.RowsAffected()
}
