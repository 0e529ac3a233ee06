// AngelaMos | 2026
// repository.go

package profile

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/auramanager/aura-api/internal/core"
)

type Repository interface {
	CreateIfMissing(ctx context.Context, userID string) error
	GetByUser(ctx context.Context, userID string) (*Profile, error)
	Update(ctx context.Context, p *Profile) error
	SetAvatar(ctx context.Context, userID, url string) error
	AddPlatform(ctx context.Context, userID, platform string) error
	RemovePlatform(ctx context.Context, userID, platform string) error
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

func (r *repository) CreateIfMissing(ctx context.Context, userID string) error {
	query := `
		INSERT INTO profiles (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("create profile: %w", err)
	}
	return nil
}

func (r *repository) GetByUser(ctx context.Context, userID string) (*Profile, error) {
	query := `
		SELECT user_id, display_name, bio, avatar_url, selected_platforms,
		       preferences, created_at, updated_at
		FROM profiles
		WHERE user_id = $1`

	var p Profile
	err := r.db.GetContext(ctx, &p, query, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get profile: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}

	return &p, nil
}

func (r *repository) Update(ctx context.Context, p *Profile) error {
	query := `
		UPDATE profiles
		SET display_name = $2, bio = $3, selected_platforms = $4,
		    preferences = $5, updated_at = NOW()
		WHERE user_id = $1
		RETURNING updated_at`

	err := r.db.GetContext(ctx, &p.UpdatedAt, query,
		p.UserID,
		p.DisplayName,
		p.Bio,
		p.SelectedPlatforms,
		p.Preferences,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("update profile: %w", core.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}

	return nil
}

func (r *repository) SetAvatar(ctx context.Context, userID, url string) error {
	query := `
		UPDATE profiles
		SET avatar_url = $2, updated_at = NOW()
		WHERE user_id = $1`

	return r.execOne(ctx, "set avatar", query, userID, url)
}

func (r *repository) AddPlatform(ctx context.Context, userID, platform string) error {
	query := `
		UPDATE profiles
		SET selected_platforms = CASE
		        WHEN selected_platforms @> jsonb_build_array($2::text)
		        THEN selected_platforms
		        ELSE selected_platforms || jsonb_build_array($2::text)
		    END,
		    updated_at = NOW()
		WHERE user_id = $1`

	return r.execOne(ctx, "add platform", query, userID, platform)
}

func (r *repository) RemovePlatform(ctx context.Context, userID, platform string) error {
	query := `
		UPDATE profiles
		SET selected_platforms = selected_platforms - $2::text,
		    updated_at = NOW()
		WHERE user_id = $1`

	return r.execOne(ctx, "remove platform", query, userID, platform)
}

func (r *repository) execOne(ctx context.Context, op, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if rows == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}
