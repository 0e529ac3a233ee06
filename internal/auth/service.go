// AngelaMos | 2026
// service.go

package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/middleware"
)

var (
	ErrInvalidCredentials = core.NewAppError(
		core.ErrUnauthorized,
		"invalid email or password",
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
	)
	ErrWrongPassword = core.NewAppError(
		core.ErrUnauthorized,
		"current password is incorrect",
		http.StatusUnauthorized,
		"INVALID_CREDENTIALS",
	)
	ErrTokenReuse = core.NewAppError(
		core.ErrTokenRevoked,
		"token reuse detected, all sessions in this family were revoked",
		http.StatusUnauthorized,
		"TOKEN_REUSE_DETECTED",
	)
	ErrEmailExists = core.NewAppError(
		core.ErrDuplicateKey,
		"email already registered",
		http.StatusConflict,
		"EMAIL_EXISTS",
	)
)

type UserInfo struct {
	ID           string
	Email        string
	Name         string
	PasswordHash string
	Role         string
	Tier         string
	TokenVersion int
	CreatedAt    time.Time
}

type UserProvider interface {
	GetByEmail(ctx context.Context, email string) (*UserInfo, error)
	GetByID(ctx context.Context, id string) (*UserInfo, error)
	Create(
		ctx context.Context,
		email, passwordHash, name string,
	) (*UserInfo, error)
	IncrementTokenVersion(ctx context.Context, userID string) error
	UpdatePassword(ctx context.Context, userID, passwordHash string) error
}

// AccountInitializer provisions rows that belong to a new account but live
// outside the users table, such as the empty profile and free subscription.
type AccountInitializer interface {
	InitializeAccount(ctx context.Context, userID string) error
}

type Service struct {
	repo         Repository
	jwt          *JWTManager
	users        UserProvider
	blacklist    Blacklist
	logger       *slog.Logger
	initializers []AccountInitializer
}

func NewService(
	repo Repository,
	jwt *JWTManager,
	users UserProvider,
	blacklist Blacklist,
	logger *slog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		jwt:       jwt,
		users:     users,
		blacklist: blacklist,
		logger:    logger,
	}
}

// OnRegister adds initializers run, in order, after a new account is created.
func (s *Service) OnRegister(initializers ...AccountInitializer) {
	s.initializers = append(s.initializers, initializers...)
}

func (s *Service) Login(
	ctx context.Context,
	req LoginRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	user, err := s.users.GetByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			core.BurnPasswordCheck(req.Password)
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	valid, newHash, err := core.VerifyPassword(req.Password, user.PasswordHash)
	if err != nil {
		s.logger.Error("stored password hash unreadable", "user_id", user.ID, "error", err)
		return nil, ErrInvalidCredentials
	}
	if !valid {
		return nil, ErrInvalidCredentials
	}

	if newHash != "" {
		if err := s.users.UpdatePassword(ctx, user.ID, newHash); err != nil {
			s.logger.Warn("password rehash failed", "user_id", user.ID, "error", err)
		}
	}

	return s.issue(ctx, user, userAgent, ipAddress, "", "")
}

func (s *Service) Register(
	ctx context.Context,
	req RegisterRequest,
	userAgent, ipAddress string,
) (*AuthResponse, error) {
	passwordHash, err := core.HashPassword(req.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user, err := s.users.Create(ctx, req.Email, passwordHash, req.Name)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateKey) {
			return nil, ErrEmailExists
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	// Profile and subscription reads fall back to empty defaults, so a
	// failed initializer leaves a usable account.
	for _, initializer := range s.initializers {
		if err := initializer.InitializeAccount(ctx, user.ID); err != nil {
			s.logger.Error("account initializer failed",
				"user_id", user.ID,
				"error", err,
			)
		}
	}

	s.logger.Info("account registered", "user_id", user.ID)

	return s.issue(ctx, user, userAgent, ipAddress, "", "")
}

func (s *Service) Refresh(
	ctx context.Context,
	refreshToken, userAgent, ipAddress string,
) (*AuthResponse, error) {
	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.TokenInvalidError()
		}
		return nil, fmt.Errorf("find token: %w", err)
	}

	if stored.IsUsed {
		if err := s.repo.RevokeByFamilyID(ctx, stored.FamilyID); err != nil {
			s.logger.Error("revoke token family failed",
				"family_id", stored.FamilyID,
				"error", err,
			)
		}
		s.logger.Warn("refresh token reuse detected",
			"user_id", stored.UserID,
			"family_id", stored.FamilyID,
		)
		return nil, ErrTokenReuse
	}

	if stored.IsRevoked() {
		return nil, core.TokenRevokedError()
	}
	if stored.IsExpired() {
		return nil, core.TokenExpiredError()
	}

	user, err := s.users.GetByID(ctx, stored.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.TokenRevokedError()
		}
		return nil, fmt.Errorf("get user: %w", err)
	}

	return s.issue(ctx, user, userAgent, ipAddress, stored.FamilyID, stored.ID)
}

// VerifyAccessToken checks the signature, the blacklist and the account's
// token version, then refreshes role and tier from the account row.
func (s *Service) VerifyAccessToken(
	ctx context.Context,
	token string,
) (*middleware.AccessTokenClaims, error) {
	claims, err := s.jwt.VerifyAccessToken(ctx, token)
	if err != nil {
		return nil, err
	}

	if claims.ID != "" {
		revoked, err := s.blacklist.IsRevoked(ctx, claims.ID)
		switch {
		case err != nil:
			s.logger.Warn("token blacklist unavailable", "error", err)
		case revoked:
			return nil, core.TokenRevokedError()
		}
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil, core.TokenRevokedError()
		}
		return nil, fmt.Errorf("load token subject: %w", err)
	}

	if claims.TokenVersion != user.TokenVersion {
		return nil, core.TokenRevokedError()
	}

	claims.Role = user.Role
	claims.Tier = user.Tier

	return claims, nil
}

// Logout revokes the presented refresh token and blacklists the access
// token until it expires.
func (s *Service) Logout(
	ctx context.Context,
	claims *middleware.AccessTokenClaims,
	refreshToken string,
) error {
	if claims.ID != "" {
		if err := s.blacklist.Revoke(ctx, claims.ID, time.Until(claims.ExpiresAt)); err != nil {
			s.logger.Warn("blacklist access token failed", "error", err)
		}
	}

	if refreshToken == "" {
		return nil
	}

	stored, err := s.repo.FindByHash(ctx, core.HashToken(refreshToken))
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return nil
		}
		return fmt.Errorf("find token: %w", err)
	}

	if stored.UserID != claims.UserID {
		return core.ForbiddenError("cannot revoke another user's token")
	}

	if err := s.repo.RevokeByID(ctx, stored.ID); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("revoke token: %w", err)
	}

	return nil
}

// LogoutAll revokes every refresh token and bumps the token version, which
// invalidates all outstanding access tokens.
func (s *Service) LogoutAll(ctx context.Context, userID string) error {
	if err := s.repo.RevokeAllForUser(ctx, userID); err != nil {
		return fmt.Errorf("revoke all tokens: %w", err)
	}

	if err := s.users.IncrementTokenVersion(ctx, userID); err != nil {
		return fmt.Errorf("increment token version: %w", err)
	}

	return nil
}

// PurgeExpiredTokens deletes refresh tokens past their expiry.
func (s *Service) PurgeExpiredTokens(ctx context.Context) (int64, error) {
	n, err := s.repo.DeleteExpired(ctx)
	if err != nil {
		return 0, fmt.Errorf("purge expired tokens: %w", err)
	}
	return n, nil
}

func (s *Service) GetActiveSessions(
	ctx context.Context,
	userID string,
) ([]SessionInfo, error) {
	tokens, err := s.repo.GetActiveSessionsForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get sessions: %w", err)
	}

	sessions := make([]SessionInfo, 0, len(tokens))
	for _, t := range tokens {
		sessions = append(sessions, SessionInfo{
			ID:        t.ID,
			UserAgent: t.UserAgent,
			IPAddress: t.IPAddress,
			CreatedAt: t.CreatedAt,
			ExpiresAt: t.ExpiresAt,
		})
	}

	return sessions, nil
}

func (s *Service) RevokeSession(
	ctx context.Context,
	userID, sessionID string,
) error {
	token, err := s.repo.FindByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NotFoundError("session")
		}
		return fmt.Errorf("find session: %w", err)
	}

	if token.UserID != userID {
		return core.ForbiddenError("cannot revoke another user's session")
	}

	if err := s.repo.RevokeByID(ctx, sessionID); err != nil &&
		!errors.Is(err, core.ErrNotFound) {
		return fmt.Errorf("revoke session: %w", err)
	}

	return nil
}

func (s *Service) ChangePassword(
	ctx context.Context,
	userID, currentPassword, newPassword string,
) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return fmt.Errorf("get user: %w", err)
	}

	valid, _, err := core.VerifyPassword(currentPassword, user.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !valid {
		return ErrWrongPassword
	}

	newHash, err := core.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.users.UpdatePassword(ctx, userID, newHash); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	return s.LogoutAll(ctx, userID)
}

func (s *Service) GetCurrentUser(
	ctx context.Context,
	userID string,
) (*UserResponse, error) {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	resp := toUserResponse(user)
	return &resp, nil
}

// issue mints an access/refresh pair. When rotating, familyID and
// previousID name the refresh token being replaced.
func (s *Service) issue(
	ctx context.Context,
	user *UserInfo,
	userAgent, ipAddress, familyID, previousID string,
) (*AuthResponse, error) {
	accessToken, expiresAt, err := s.jwt.CreateAccessToken(AccessTokenClaims{
		UserID:       user.ID,
		Role:         user.Role,
		Tier:         user.Tier,
		TokenVersion: user.TokenVersion,
	})
	if err != nil {
		return nil, fmt.Errorf("create access token: %w", err)
	}

	refresh, err := s.jwt.CreateRefreshToken(familyID)
	if err != nil {
		return nil, fmt.Errorf("create refresh token: %w", err)
	}

	record := &RefreshToken{
		ID:        uuid.New().String(),
		UserID:    user.ID,
		TokenHash: refresh.Hash,
		FamilyID:  refresh.FamilyID,
		ExpiresAt: refresh.ExpiresAt,
		UserAgent: userAgent,
		IPAddress: ipAddress,
	}

	if err := s.repo.Create(ctx, record); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	if previousID != "" {
		if err := s.repo.MarkAsUsed(ctx, previousID, record.ID); err != nil {
			s.logger.Warn("mark refresh token used failed",
				"token_id", previousID,
				"error", err,
			)
		}
	}

	return &AuthResponse{
		User: toUserResponse(user),
		Tokens: TokenResponse{
			AccessToken:  accessToken,
			RefreshToken: refresh.Token,
			TokenType:    "Bearer",
			ExpiresIn:    int(s.jwt.AccessTokenTTL() / time.Second),
			ExpiresAt:    expiresAt,
		},
	}, nil
}
