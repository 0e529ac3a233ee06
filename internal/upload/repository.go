// AngelaMos | 2026
// repository.go

package upload

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/auramanager/aura-api/internal/core"
)

type Repository interface {
	Create(ctx context.Context, u *Upload) error
	Get(ctx context.Context, userID, id string) (*Upload, error)
	List(ctx context.Context, userID string, page core.PageParams) ([]Upload, int, error)
	SetStatus(ctx context.Context, id, status string) error
	SetAnalysis(ctx context.Context, id string, analysis json.RawMessage) error
	MarkFailed(ctx context.Context, id, reason string) error
	Delete(ctx context.Context, userID, id string) error
	FailStale(ctx context.Context, before time.Time) (int64, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const uploadColumns = `
	id, user_id, file_name, content_type, size_bytes, storage_path, status,
	analysis, failure, created_at, updated_at`

func (r *repository) Create(ctx context.Context, u *Upload) error {
	query := `
		INSERT INTO uploads (
			id, user_id, file_name, content_type, size_bytes, storage_path, status
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`

	row := r.db.QueryRowxContext(ctx, query,
		u.ID,
		u.UserID,
		u.FileName,
		u.ContentType,
		u.SizeBytes,
		u.StoragePath,
		u.Status,
	)
	if err := row.Scan(&u.CreatedAt, &u.UpdatedAt); err != nil {
		return fmt.Errorf("create upload: %w", err)
	}

	return nil
}

func (r *repository) Get(ctx context.Context, userID, id string) (*Upload, error) {
	query := `SELECT ` + uploadColumns + `
		FROM uploads
		WHERE id = $1 AND user_id = $2`

	var u Upload
	err := r.db.GetContext(ctx, &u, query, id, userID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("get upload: %w", core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get upload: %w", err)
	}

	return &u, nil
}

func (r *repository) List(
	ctx context.Context,
	userID string,
	page core.PageParams,
) ([]Upload, int, error) {
	page.Normalize()

	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT COUNT(*) FROM uploads WHERE user_id = $1`,
		userID,
	); err != nil {
		return nil, 0, fmt.Errorf("count uploads: %w", err)
	}

	query := `SELECT ` + uploadColumns + `
		FROM uploads
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`

	var out []Upload
	if err := r.db.SelectContext(ctx, &out, query,
		userID, page.PageSize, page.Offset(),
	); err != nil {
		return nil, 0, fmt.Errorf("list uploads: %w", err)
	}

	return out, total, nil
}

func (r *repository) SetStatus(ctx context.Context, id, status string) error {
	return r.update(ctx, "set upload status", `
		UPDATE uploads
		SET status = $2, failure = '', updated_at = NOW()
		WHERE id = $1`,
		id, status,
	)
}

func (r *repository) SetAnalysis(ctx context.Context, id string, analysis json.RawMessage) error {
	return r.update(ctx, "store upload analysis", `
		UPDATE uploads
		SET status = 'analyzed', analysis = $2, failure = '', updated_at = NOW()
		WHERE id = $1`,
		id, []byte(analysis),
	)
}

func (r *repository) MarkFailed(ctx context.Context, id, reason string) error {
	return r.update(ctx, "mark upload failed", `
		UPDATE uploads
		SET status = 'failed', failure = $2, updated_at = NOW()
		WHERE id = $1`,
		id, reason,
	)
}

func (r *repository) Delete(ctx context.Context, userID, id string) error {
	return r.update(ctx, "delete upload",
		`DELETE FROM uploads WHERE id = $1 AND user_id = $2`,
		id, userID,
	)
}

// FailStale fails uploads stuck in processing since before.
func (r *repository) FailStale(ctx context.Context, before time.Time) (int64, error) {
	query := `
		UPDATE uploads
		SET status = 'failed', failure = 'analysis timed out', updated_at = NOW()
		WHERE status = 'processing' AND updated_at < $1`

	res, err := r.db.ExecContext(ctx, query, before)
	if err != nil {
		return 0, fmt.Errorf("fail stale uploads: %w", err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail stale uploads: %w", err)
	}

	return n, nil
}

func (r *repository) update(ctx context.Context, op, query string, args ...any) error {
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, core.ErrNotFound)
	}

	return nil
}
