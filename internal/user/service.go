// AngelaMos | 2026
// service.go

package user

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"

	"github.com/auramanager/aura-api/internal/auth"
	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/plan"
)

// AccountCleaner removes data owned by a deleted account that lives
// outside the users table.
type AccountCleaner interface {
	PurgeAccount(ctx context.Context, userID string) error
}

type Service struct {
	repo     Repository
	logger   *slog.Logger
	cleaners []AccountCleaner
}

func NewService(repo Repository, logger *slog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

// OnDelete registers cleaners run after an account is soft deleted.
func (s *Service) OnDelete(cleaners ...AccountCleaner) {
	s.cleaners = append(s.cleaners, cleaners...)
}

func (s *Service) GetByID(ctx context.Context, id string) (*auth.UserInfo, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return toUserInfo(user), nil
}

func (s *Service) GetByEmail(ctx context.Context, email string) (*auth.UserInfo, error) {
	user, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		return nil, err
	}
	return toUserInfo(user), nil
}

func (s *Service) Create(
	ctx context.Context,
	email, passwordHash, name string,
) (*auth.UserInfo, error) {
	user := &User{
		ID:           uuid.New().String(),
		Email:        normalizeEmail(email),
		PasswordHash: passwordHash,
		Name:         strings.TrimSpace(name),
		Role:         RoleUser,
		Tier:         TierFree,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, err
	}

	return toUserInfo(user), nil
}

func (s *Service) IncrementTokenVersion(ctx context.Context, userID string) error {
	return s.repo.IncrementTokenVersion(ctx, userID)
}

func (s *Service) UpdatePassword(ctx context.Context, userID, passwordHash string) error {
	return s.repo.UpdatePassword(ctx, userID, passwordHash)
}

func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetByID(ctx, id)
}

func (s *Service) UpdateUser(
	ctx context.Context,
	id string,
	req UpdateUserRequest,
) (*User, error) {
	if req.Name == nil {
		return s.repo.GetByID(ctx, id)
	}

	name := strings.TrimSpace(*req.Name)
	if name == "" {
		return nil, core.ValidationError("name must not be blank")
	}

	return s.repo.UpdateName(ctx, id, name)
}

// UpdateUserRole changes an account's role. Existing sessions are cut off
// so the new role applies immediately.
func (s *Service) UpdateUserRole(ctx context.Context, id, role string) (*User, error) {
	if role != RoleUser && role != RoleAdmin {
		return nil, core.ValidationError(fmt.Sprintf("invalid role %q", role))
	}

	user, err := s.repo.SetRole(ctx, id, role)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user role changed", "user_id", id, "role", role)
	return user, nil
}

func (s *Service) UpdateUserTier(ctx context.Context, id, tier string) (*User, error) {
	if !plan.IsValidTier(tier) {
		return nil, core.ValidationError(fmt.Sprintf("invalid tier %q", tier))
	}

	user, err := s.repo.SetTier(ctx, id, tier)
	if err != nil {
		return nil, err
	}

	s.logger.Info("user tier changed", "user_id", id, "tier", tier)
	return user, nil
}

// SetTier moves an account to tier. Subscription activation and expiry
// call this; verified requests read the tier from the account row.
func (s *Service) SetTier(ctx context.Context, id, tier string) error {
	_, err := s.UpdateUserTier(ctx, id, tier)
	return err
}

func (s *Service) GetTier(ctx context.Context, id string) (string, error) {
	user, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return "", err
	}
	return user.Tier, nil
}

func (s *Service) ListUsers(ctx context.Context, params ListUsersParams) ([]User, int, error) {
	return s.repo.List(ctx, params)
}

func (s *Service) GetMe(ctx context.Context, userID string) (*User, error) {
	if userID == "" {
		return nil, core.UnauthorizedError("")
	}
	return s.repo.GetByID(ctx, userID)
}

func (s *Service) UpdateMe(
	ctx context.Context,
	userID string,
	req UpdateUserRequest,
) (*User, error) {
	if userID == "" {
		return nil, core.UnauthorizedError("")
	}
	return s.UpdateUser(ctx, userID, req)
}

func (s *Service) DeleteMe(ctx context.Context, userID string) error {
	if userID == "" {
		return core.UnauthorizedError("")
	}
	return s.DeleteUser(ctx, userID)
}

// DeleteUser soft deletes the account and then purges data held by other
// components. Cleaner failures are logged; the account stays deleted.
func (s *Service) DeleteUser(ctx context.Context, id string) error {
	if err := s.repo.SoftDelete(ctx, id); err != nil {
		return err
	}

	for _, cleaner := range s.cleaners {
		if err := cleaner.PurgeAccount(ctx, id); err != nil {
			s.logger.Error("account cleanup failed",
				"user_id", id,
				"cleaner", fmt.Sprintf("%T", cleaner),
				"error", err,
			)
		}
	}

	s.logger.Info("account deleted", "user_id", id)
	return nil
}

// CanDeleteUser allows self deletion and lets admins delete non-admin
// accounts.
func (s *Service) CanDeleteUser(ctx context.Context, requesterID, targetID string) error {
	if requesterID == targetID {
		return nil
	}

	requester, err := s.repo.GetByID(ctx, requesterID)
	if err != nil {
		return err
	}
	if !requester.IsAdmin() {
		return core.ForbiddenError("insufficient permissions")
	}

	target, err := s.repo.GetByID(ctx, targetID)
	if err != nil {
		return err
	}
	if target.IsAdmin() {
		return core.ForbiddenError("admin accounts cannot be deleted by another admin")
	}

	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func toUserInfo(u *User) *auth.UserInfo {
	return &auth.UserInfo{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Tier:         u.Tier,
		TokenVersion: u.TokenVersion,
		CreatedAt:    u.CreatedAt,
	}
}

var _ auth.UserProvider = (*Service)(nil)
