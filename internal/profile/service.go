// AngelaMos | 2026
// service.go

package profile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/auramanager/aura-api/internal/core"
)

const MaxAvatarBytes = 5 << 20

var avatarExtensions = map[string]string{
	"image/png":  "png",
	"image/jpeg": "jpg",
	"image/webp": "webp",
}

// ObjectStore is the blob storage used for avatars.
type ObjectStore interface {
	Put(ctx context.Context, bucket, path, contentType string, data []byte) error
	Delete(ctx context.Context, bucket, path string) error
	PublicURL(bucket, path string) string
}

type Service struct {
	repo   Repository
	store  ObjectStore
	bucket string
	logger *slog.Logger
}

func NewService(
	repo Repository,
	store ObjectStore,
	bucket string,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:   repo,
		store:  store,
		bucket: bucket,
		logger: logger.With("component", "profile"),
	}
}

// InitializeAccount creates the empty profile for a new account.
func (s *Service) InitializeAccount(ctx context.Context, userID string) error {
	return s.repo.CreateIfMissing(ctx, userID)
}

// Get returns the user's profile, creating an empty one on first access.
func (s *Service) Get(ctx context.Context, userID string) (*Profile, error) {
	p, err := s.repo.GetByUser(ctx, userID)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		return nil, err
	}

	if err := s.repo.CreateIfMissing(ctx, userID); err != nil {
		return nil, err
	}
	return s.repo.GetByUser(ctx, userID)
}

func (s *Service) Update(
	ctx context.Context,
	userID string,
	req UpdateProfileRequest,
) (*Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.DisplayName != nil {
		p.DisplayName = strings.TrimSpace(*req.DisplayName)
	}
	if req.Bio != nil {
		p.Bio = strings.TrimSpace(*req.Bio)
	}
	if req.SelectedPlatforms != nil {
		p.SelectedPlatforms = dedupe(*req.SelectedPlatforms)
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

func (s *Service) CompleteOnboarding(
	ctx context.Context,
	userID string,
	req OnboardingRequest,
) (*Profile, error) {
	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	p.DisplayName = strings.TrimSpace(req.DisplayName)
	p.SelectedPlatforms = dedupe(req.SelectedPlatforms)
	p.Preferences = Preferences{
		Genre:               strings.TrimSpace(req.Genre),
		Goals:               req.Goals,
		ExperienceLevel:     req.ExperienceLevel,
		OnboardingCompleted: true,
	}

	if err := s.repo.Update(ctx, p); err != nil {
		return nil, err
	}

	return p, nil
}

// UploadAvatar stores an image and points the profile at it. The content
// type is sniffed from the data, not taken from the client.
func (s *Service) UploadAvatar(
	ctx context.Context,
	userID string,
	data []byte,
) (*Profile, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("upload avatar: empty file: %w", core.ErrInvalidInput)
	}
	if len(data) > MaxAvatarBytes {
		return nil, fmt.Errorf("upload avatar: file exceeds 5 MB: %w", core.ErrInvalidInput)
	}

	contentType := http.DetectContentType(data)
	ext, ok := avatarExtensions[contentType]
	if !ok {
		return nil, fmt.Errorf(
			"upload avatar: unsupported image type %s: %w",
			contentType,
			core.ErrInvalidInput,
		)
	}

	p, err := s.Get(ctx, userID)
	if err != nil {
		return nil, err
	}

	path := fmt.Sprintf("%s/%s.%s", userID, uuid.New().String(), ext)
	if err := s.store.Put(ctx, s.bucket, path, contentType, data); err != nil {
		return nil, fmt.Errorf("store avatar: %w", err)
	}

	url := s.store.PublicURL(s.bucket, path)
	if err := s.repo.SetAvatar(ctx, userID, url); err != nil {
		return nil, err
	}

	if old := s.objectPath(p.AvatarURL); old != "" {
		if err := s.store.Delete(ctx, s.bucket, old); err != nil {
			s.logger.Warn("delete previous avatar", "user_id", userID, "error", err)
		}
	}

	p.AvatarURL = url
	return p, nil
}

// AddPlatform records a connected platform on the profile.
func (s *Service) AddPlatform(ctx context.Context, userID, platform string) error {
	if err := s.repo.CreateIfMissing(ctx, userID); err != nil {
		return err
	}
	return s.repo.AddPlatform(ctx, userID, platform)
}

func (s *Service) RemovePlatform(ctx context.Context, userID, platform string) error {
	err := s.repo.RemovePlatform(ctx, userID, platform)
	if errors.Is(err, core.ErrNotFound) {
		return nil
	}
	return err
}

func (s *Service) objectPath(url string) string {
	prefix := s.store.PublicURL(s.bucket, "")
	if url == "" || !strings.HasPrefix(url, prefix) {
		return ""
	}
	return strings.TrimPrefix(url, prefix)
}

func dedupe(in []string) StringList {
	out := make(StringList, 0, len(in))
	for _, v := range in {
		if !out.Contains(v) {
			out = append(out, v)
		}
	}
	return out
}
