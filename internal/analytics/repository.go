// AngelaMos | 2026
// repository.go

package analytics

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/auramanager/aura-api/internal/core"
)

type Repository interface {
	Create(ctx context.Context, s *Snapshot) error
	List(ctx context.Context, userID string, params ListParams) ([]Snapshot, int, error)
	// LatestTwo returns up to the two newest snapshots per platform, newest
	// first within each platform.
	LatestTwo(ctx context.Context, userID string) (map[string][]Snapshot, error)
}

type repository struct {
	db core.DBTX
}

func NewRepository(db core.DBTX) Repository {
	return &repository{db: db}
}

const snapshotColumns = `
	id, user_id, platform, followers, monthly_listeners, streams,
	engagement_rate, captured_at`

func (r *repository) Create(ctx context.Context, s *Snapshot) error {
	query := `
		INSERT INTO analytics_snapshots (
			id, user_id, platform, followers, monthly_listeners, streams,
			engagement_rate, captured_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`

	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.UserID,
		s.Platform,
		s.Followers,
		s.MonthlyListeners,
		s.Streams,
		s.EngagementRate,
		s.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("create snapshot: %w", err)
	}

	return nil
}

func (r *repository) List(
	ctx context.Context,
	userID string,
	params ListParams,
) ([]Snapshot, int, error) {
	params.Normalize()

	conds := []string{"user_id = $1"}
	args := []any{userID}
	add := func(cond string, v any) {
		args = append(args, v)
		conds = append(conds, strings.Replace(cond, "?", "$"+strconv.Itoa(len(args)), 1))
	}

	if params.Platform != "" {
		add("platform = ?", params.Platform)
	}
	if !params.From.IsZero() {
		add("captured_at >= ?", params.From)
	}
	if !params.To.IsZero() {
		add("captured_at < ?", params.To)
	}
	where := strings.Join(conds, " AND ")

	var total int
	if err := r.db.GetContext(ctx, &total,
		"SELECT COUNT(*) FROM analytics_snapshots WHERE "+where,
		args...,
	); err != nil {
		return nil, 0, fmt.Errorf("count snapshots: %w", err)
	}

	query := fmt.Sprintf(`SELECT %s
		FROM analytics_snapshots
		WHERE %s
		ORDER BY captured_at DESC
		LIMIT $%d OFFSET $%d`,
		snapshotColumns, where, len(args)+1, len(args)+2,
	)
	args = append(args, params.PageSize, params.Offset())

	var out []Snapshot
	if err := r.db.SelectContext(ctx, &out, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list snapshots: %w", err)
	}

	return out, total, nil
}

func (r *repository) LatestTwo(ctx context.Context, userID string) (map[string][]Snapshot, error) {
	query := `
		SELECT ` + snapshotColumns + `, rank FROM (
			SELECT ` + snapshotColumns + `,
			       ROW_NUMBER() OVER (
			           PARTITION BY platform ORDER BY captured_at DESC
			       ) AS rank
			FROM analytics_snapshots
			WHERE user_id = $1
		) ranked
		WHERE rank <= 2
		ORDER BY platform, rank`

	var rows []rankedSnapshot
	if err := r.db.SelectContext(ctx, &rows, query, userID); err != nil {
		return nil, fmt.Errorf("latest snapshots: %w", err)
	}

	out := make(map[string][]Snapshot)
	for _, row := range rows {
		out[row.Platform] = append(out[row.Platform], row.Snapshot)
	}
	return out, nil
}
