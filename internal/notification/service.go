// AngelaMos | 2026
// service.go

package notification

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/metrics"
)

// Publisher hands an event to whatever eventually persists it.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

type Service struct {
	repo      Repository
	publisher Publisher
	metrics   *metrics.Metrics
	logger    *slog.Logger
}

// NewService returns a service that stores events directly until a
// publisher is attached with UsePublisher.
func NewService(repo Repository, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		metrics: m,
		logger:  logger.With("component", "notification"),
	}
}

func (s *Service) UsePublisher(p Publisher) {
	s.publisher = p
}

// Notify emits a notification for userID. When the broker is unavailable
// the event is written straight to the database instead.
func (s *Service) Notify(
	ctx context.Context,
	userID, category, title, message string,
) error {
	if !IsValidCategory(category) {
		return fmt.Errorf("notify: unknown category %q: %w", category, core.ErrInvalidInput)
	}

	ev := Event{
		ID:         uuid.New().String(),
		UserID:     userID,
		Category:   category,
		Title:      title,
		Message:    message,
		OccurredAt: time.Now().UTC(),
	}

	if s.publisher != nil {
		err := s.publisher.Publish(ctx, ev)
		if err == nil {
			s.metrics.NotificationEvent("amqp", "published")
			return nil
		}
		s.metrics.NotificationEvent("amqp", "failed")
		s.logger.Warn("publish notification failed, storing directly",
			"user_id", userID,
			"error", err,
		)
	}

	if err := s.Store(ctx, ev); err != nil {
		s.metrics.NotificationEvent("direct", "failed")
		return err
	}
	s.metrics.NotificationEvent("direct", "stored")
	return nil
}

// Store persists an event as an unread notification.
func (s *Service) Store(ctx context.Context, ev Event) error {
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	if ev.OccurredAt.IsZero() {
		ev.OccurredAt = time.Now().UTC()
	}

	n := &Notification{
		ID:        ev.ID,
		UserID:    ev.UserID,
		Category:  ev.Category,
		Title:     ev.Title,
		Message:   ev.Message,
		CreatedAt: ev.OccurredAt,
	}

	if err := s.repo.Create(ctx, n); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

func (s *Service) List(
	ctx context.Context,
	userID string,
	params ListParams,
) ([]Notification, int, error) {
	params.Normalize()
	return s.repo.List(ctx, userID, params)
}

func (s *Service) UnreadCount(ctx context.Context, userID string) (int, error) {
	return s.repo.CountUnread(ctx, userID)
}

func (s *Service) MarkRead(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("mark read: %w", core.ErrNotFound)
	}
	return s.repo.MarkRead(ctx, userID, id)
}

func (s *Service) MarkAllRead(ctx context.Context, userID string) (int64, error) {
	return s.repo.MarkAllRead(ctx, userID)
}

func (s *Service) Delete(ctx context.Context, userID, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("delete notification: %w", core.ErrNotFound)
	}
	return s.repo.Delete(ctx, userID, id)
}
