// AngelaMos | 2026
// service.go

package analytics

import (
	"context"
	"log/slog"
	"math"
	"slices"
	"time"

	"github.com/google/uuid"

	"github.com/auramanager/aura-api/internal/core"
)

const CacheTTL = 5 * time.Minute

type PlatformLister interface {
	ConnectedPlatforms(ctx context.Context, userID string) ([]string, error)
}

type Cache interface {
	GetJSON(ctx context.Context, key string, dest any) (bool, error)
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
}

type Service struct {
	repo      Repository
	platforms PlatformLister
	cache     Cache
	logger    *slog.Logger
	now       func() time.Time
}

func NewService(
	repo Repository,
	platforms PlatformLister,
	cache Cache,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		platforms: platforms,
		cache:     cache,
		logger:    logger.With("component", "analytics"),
		now:       time.Now,
	}
}

func dashboardKey(userID string) string {
	return "analytics:dashboard:" + userID
}

// Record stores a snapshot and drops the cached dashboard.
func (s *Service) Record(
	ctx context.Context,
	userID string,
	req RecordSnapshotRequest,
) (*Snapshot, error) {
	now := s.now().UTC()
	captured := now
	if req.CapturedAt != nil {
		captured = req.CapturedAt.UTC()
		if captured.After(now.Add(5 * time.Minute)) {
			return nil, core.ValidationError("captured_at cannot be in the future")
		}
	}

	snap := &Snapshot{
		ID:               uuid.New().String(),
		UserID:           userID,
		Platform:         req.Platform,
		Followers:        req.Followers,
		MonthlyListeners: req.MonthlyListeners,
		Streams:          req.Streams,
		EngagementRate:   req.EngagementRate,
		CapturedAt:       captured,
	}
	if err := s.repo.Create(ctx, snap); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, dashboardKey(userID)); err != nil {
			s.logger.Warn("invalidate dashboard cache", "user_id", userID, "error", err)
		}
	}

	return snap, nil
}

func (s *Service) List(
	ctx context.Context,
	userID string,
	params ListParams,
) ([]Snapshot, int, error) {
	return s.repo.List(ctx, userID, params)
}

// Dashboard summarises the latest snapshot of each connected platform. The
// result is cached until a snapshot is recorded, the set of connected
// platforms changes or CacheTTL passes.
func (s *Service) Dashboard(ctx context.Context, userID string) (*Dashboard, error) {
	connected, err := s.platforms.ConnectedPlatforms(ctx, userID)
	if err != nil {
		return nil, err
	}
	slices.Sort(connected)

	if s.cache != nil {
		var cached Dashboard
		found, err := s.cache.GetJSON(ctx, dashboardKey(userID), &cached)
		if err != nil {
			s.logger.Warn("read dashboard cache", "user_id", userID, "error", err)
		}
		if found && slices.Equal(cached.ConnectedPlatforms, connected) {
			return &cached, nil
		}
	}

	latest, err := s.repo.LatestTwo(ctx, userID)
	if err != nil {
		return nil, err
	}

	d := buildDashboard(connected, latest, s.now().UTC())

	if s.cache != nil {
		if err := s.cache.SetJSON(ctx, dashboardKey(userID), d, CacheTTL); err != nil {
			s.logger.Warn("write dashboard cache", "user_id", userID, "error", err)
		}
	}

	return d, nil
}

func buildDashboard(connected []string, latest map[string][]Snapshot, now time.Time) *Dashboard {
	d := &Dashboard{
		ConnectedPlatforms: connected,
		Platforms:          make([]PlatformSummary, 0, len(connected)),
		GeneratedAt:        now,
	}
	if d.ConnectedPlatforms == nil {
		d.ConnectedPlatforms = []string{}
	}

	withData := 0
	for _, platform := range connected {
		summary := PlatformSummary{Platform: platform}
		snaps := latest[platform]

		if len(snaps) > 0 {
			current := figuresOf(&snaps[0])
			captured := snaps[0].CapturedAt
			summary.Current = &current
			summary.CapturedAt = &captured
			d.Totals.add(current)
			withData++

			if len(snaps) > 1 {
				change := current.minus(figuresOf(&snaps[1]))
				summary.Change = &change
				d.TotalsChange.add(change)
			}
		}

		d.Platforms = append(d.Platforms, summary)
	}

	if withData > 0 {
		d.Totals.EngagementRate = round2(d.Totals.EngagementRate / float64(withData))
		d.TotalsChange.EngagementRate = round2(d.TotalsChange.EngagementRate / float64(withData))
	}

	return d
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
