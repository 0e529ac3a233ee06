// AngelaMos | 2026
// service.go

package connection

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"github.com/auramanager/aura-api/internal/auth"
	"github.com/auramanager/aura-api/internal/config"
	"github.com/auramanager/aura-api/internal/core"
	"github.com/auramanager/aura-api/internal/metrics"
	"github.com/auramanager/aura-api/internal/notification"
	"github.com/auramanager/aura-api/internal/plan"
)

// StateSigner mints and verifies the signed OAuth state parameter.
type StateSigner interface {
	SignState(claims auth.StateClaims, ttl time.Duration) (string, error)
	VerifyState(state string) (*auth.StateClaims, error)
}

// StateStore keeps single-use values with a TTL.
type StateStore interface {
	SetJSON(ctx context.Context, key string, value any, ttl time.Duration) error
	TakeJSON(ctx context.Context, key string, dest any) (bool, error)
}

type TierLookup interface {
	GetTier(ctx context.Context, userID string) (string, error)
}

// ProfileLinker mirrors connected platforms onto the user's profile.
type ProfileLinker interface {
	AddPlatform(ctx context.Context, userID, platform string) error
	RemovePlatform(ctx context.Context, userID, platform string) error
}

type Notifier interface {
	Notify(ctx context.Context, userID, category, title, message string) error
}

type Deps struct {
	Repo     Repository
	Registry *Registry
	Signer   StateSigner
	States   StateStore
	Tiers    TierLookup
	Profiles ProfileLinker
	Notifier Notifier
	Sealer   *core.Sealer
	Metrics  *metrics.Metrics
	Logger   *slog.Logger
	// HTTPClient is used for token exchange. Defaults to a 15s client.
	HTTPClient *http.Client
}

type Service struct {
	Deps
	callbackBase string
	frontendURL  string
	stateTTL     time.Duration
}

func NewService(cfg config.OAuthConfig, deps Deps) *Service {
	if deps.HTTPClient == nil {
		deps.HTTPClient = &http.Client{Timeout: 15 * time.Second}
	}
	deps.Logger = deps.Logger.With("component", "connection")

	ttl := cfg.StateTTL
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}

	return &Service{
		Deps:         deps,
		callbackBase: strings.TrimRight(cfg.CallbackBaseURL, "/"),
		frontendURL:  cfg.FrontendURL,
		stateTTL:     ttl,
	}
}

const stateKeyPrefix = "oauth:state:"

func (s *Service) redirectURL(platform string) string {
	return fmt.Sprintf("%s/connections/%s/callback", s.callbackBase, platform)
}

// Connect starts the authorization flow for platform and returns the
// provider URL the browser should be sent to.
func (s *Service) Connect(ctx context.Context, userID, platform string) (*ConnectResponse, error) {
	provider, ok := s.Registry.Get(platform)
	if !ok {
		return nil, core.ValidationError(fmt.Sprintf("unsupported platform %q", platform))
	}
	if !provider.Configured() {
		return nil, core.UnavailableError(provider.DisplayName + " connections are not configured")
	}

	if err := s.checkLimit(ctx, userID, provider.Platform); err != nil {
		return nil, err
	}

	nonce := uuid.New().String()
	pending := pendingAuth{UserID: userID, Platform: provider.Platform}
	if provider.PKCE {
		pending.Verifier = oauth2.GenerateVerifier()
	}

	state, err := s.Signer.SignState(auth.StateClaims{
		UserID:   userID,
		Platform: provider.Platform,
		Nonce:    nonce,
	}, s.stateTTL)
	if err != nil {
		return nil, fmt.Errorf("sign state: %w", err)
	}

	if err := s.States.SetJSON(ctx, stateKeyPrefix+nonce, pending, s.stateTTL); err != nil {
		return nil, fmt.Errorf("store state: %w", err)
	}

	opts := provider.authOptions()
	if pending.Verifier != "" {
		opts = append(opts, oauth2.S256ChallengeOption(pending.Verifier))
	}

	authURL := provider.oauthConfig(s.redirectURL(provider.Platform)).AuthCodeURL(state, opts...)
	s.Metrics.ConnectionEvent(provider.Platform, "authorize")

	return &ConnectResponse{Platform: provider.Platform, AuthorizeURL: authURL}, nil
}

// Callback completes the flow and returns the frontend URL to redirect the
// browser to. The returned error, if any, is for logging; the URL already
// carries a user-facing reason.
func (s *Service) Callback(ctx context.Context, p CallbackParams) (string, error) {
	provider, ok := s.Registry.Get(p.Platform)
	if !ok {
		return s.frontendRedirect("", "unsupported_platform"), core.ErrInvalidInput
	}
	platform := provider.Platform

	claims, err := s.Signer.VerifyState(p.State)
	if err != nil {
		reason := "invalid_state"
		if errors.Is(err, core.ErrTokenExpired) {
			reason = "state_expired"
		}
		return s.fail(platform, reason, err)
	}
	if claims.Platform != platform {
		return s.fail(platform, "invalid_state", errors.New("state minted for another platform"))
	}

	var pending pendingAuth
	found, err := s.States.TakeJSON(ctx, stateKeyPrefix+claims.Nonce, &pending)
	if err != nil {
		return s.fail(platform, "server_error", err)
	}
	if !found || pending.UserID != claims.UserID || pending.Platform != platform {
		return s.fail(platform, "invalid_state", errors.New("state already used or unknown"))
	}

	if p.Error != "" {
		return s.fail(platform, sanitizeReason(p.Error), fmt.Errorf("provider error: %s %s", p.Error, p.ErrorDescription))
	}
	if p.Code == "" {
		return s.fail(platform, "missing_code", errors.New("callback without code"))
	}

	if err := s.checkLimit(ctx, claims.UserID, platform); err != nil {
		return s.fail(platform, "plan_limit_reached", err)
	}

	var opts []oauth2.AuthCodeOption
	if pending.Verifier != "" {
		opts = append(opts, oauth2.VerifierOption(pending.Verifier))
	}
	if provider.ClientKeyParam {
		opts = append(opts, oauth2.SetAuthURLParam("client_key", provider.clientID))
	}

	exchangeCtx := context.WithValue(ctx, oauth2.HTTPClient, s.HTTPClient)
	tok, err := provider.oauthConfig(s.redirectURL(platform)).Exchange(exchangeCtx, p.Code, opts...)
	if err != nil {
		return s.fail(platform, "exchange_failed", err)
	}

	if err := s.store(ctx, claims.UserID, platform, tok); err != nil {
		return s.fail(platform, "server_error", err)
	}

	if err := s.Profiles.AddPlatform(ctx, claims.UserID, platform); err != nil {
		s.Logger.Warn("link platform to profile", "user_id", claims.UserID, "platform", platform, "error", err)
	}

	s.notify(ctx, claims.UserID,
		provider.DisplayName+" connected",
		fmt.Sprintf("Your %s account is now connected to Aura.", provider.DisplayName),
	)
	s.Metrics.ConnectionEvent(platform, "connected")
	s.Logger.Info("platform connected", "user_id", claims.UserID, "platform", platform)

	return s.frontendRedirect(platform, ""), nil
}

func (s *Service) store(ctx context.Context, userID, platform string, tok *oauth2.Token) error {
	ad := associatedData(userID, platform)

	access, err := s.Sealer.Seal([]byte(tok.AccessToken), ad)
	if err != nil {
		return fmt.Errorf("seal access token: %w", err)
	}

	var refresh []byte
	if tok.RefreshToken != "" {
		refresh, err = s.Sealer.Seal([]byte(tok.RefreshToken), ad)
		if err != nil {
			return fmt.Errorf("seal refresh token: %w", err)
		}
	}

	record := &Token{
		ID:           uuid.New().String(),
		UserID:       userID,
		Platform:     platform,
		AccessToken:  access,
		RefreshToken: refresh,
		TokenType:    tok.Type(),
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		record.Scope = scope
	}
	if !tok.Expiry.IsZero() {
		exp := tok.Expiry.UTC()
		record.ExpiresAt = &exp
	}

	return s.Repo.Upsert(ctx, record)
}

// AccessToken returns the decrypted provider access token.
func (s *Service) AccessToken(ctx context.Context, userID, platform string) (string, error) {
	t, err := s.Repo.Get(ctx, userID, platform)
	if err != nil {
		return "", err
	}

	plain, err := s.Sealer.Open(t.AccessToken, associatedData(userID, platform))
	if err != nil {
		return "", fmt.Errorf("open access token: %w", err)
	}
	return string(plain), nil
}

func (s *Service) Disconnect(ctx context.Context, userID, platform string) error {
	provider, ok := s.Registry.Get(platform)
	if !ok {
		return core.ValidationError(fmt.Sprintf("unsupported platform %q", platform))
	}

	if err := s.Repo.Delete(ctx, userID, provider.Platform); err != nil {
		if errors.Is(err, core.ErrNotFound) {
			return core.NotFoundError(provider.DisplayName + " connection")
		}
		return err
	}

	if err := s.Profiles.RemovePlatform(ctx, userID, provider.Platform); err != nil {
		s.Logger.Warn("unlink platform from profile", "user_id", userID, "platform", provider.Platform, "error", err)
	}

	s.notify(ctx, userID,
		provider.DisplayName+" disconnected",
		fmt.Sprintf("Aura no longer has access to your %s account.", provider.DisplayName),
	)
	s.Metrics.ConnectionEvent(provider.Platform, "disconnected")

	return nil
}

func (s *Service) List(ctx context.Context, userID string) (*ListResponse, error) {
	tokens, err := s.Repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	tier, err := s.Tiers.GetTier(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("get tier: %w", err)
	}

	byPlatform := make(map[string]Token, len(tokens))
	for _, t := range tokens {
		byPlatform[t.Platform] = t
	}

	resp := &ListResponse{
		Tier:      tier,
		Limit:     plan.PlatformLimit(tier),
		Connected: len(tokens),
	}

	for _, name := range s.Registry.Platforms() {
		provider, _ := s.Registry.Get(name)
		status := PlatformStatus{
			Platform:    name,
			DisplayName: provider.DisplayName,
			Configured:  provider.Configured(),
		}
		if t, ok := byPlatform[name]; ok {
			created := t.CreatedAt
			status.Connected = true
			status.ConnectedAt = &created
			status.ExpiresAt = t.ExpiresAt
			status.Scope = t.Scope
		}
		resp.Platforms = append(resp.Platforms, status)
	}

	if resp.Limit == plan.Unlimited {
		resp.Remaining = plan.Unlimited
	} else {
		resp.Remaining = max(resp.Limit-resp.Connected, 0)
	}

	return resp, nil
}

// CountConnected reports how many platforms the user has connected.
func (s *Service) CountConnected(ctx context.Context, userID string) (int, error) {
	return s.Repo.CountByUser(ctx, userID)
}

// ConnectedPlatforms lists the platforms the user has connected, in
// connection order.
func (s *Service) ConnectedPlatforms(ctx context.Context, userID string) ([]string, error) {
	tokens, err := s.Repo.ListByUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make([]string, 0, len(tokens))
	for _, t := range tokens {
		out = append(out, t.Platform)
	}
	return out, nil
}

// PurgeAccount drops every stored platform token for a deleted account.
func (s *Service) PurgeAccount(ctx context.Context, userID string) error {
	n, err := s.Repo.DeleteAllByUser(ctx, userID)
	if err != nil {
		return err
	}
	if n > 0 {
		s.Logger.Info("platform tokens purged", "user_id", userID, "count", n)
	}
	return nil
}

// checkLimit allows reconnecting an already connected platform; a new
// platform needs a free slot in the user's tier.
func (s *Service) checkLimit(ctx context.Context, userID, platform string) error {
	if _, err := s.Repo.Get(ctx, userID, platform); err == nil {
		return nil
	} else if !errors.Is(err, core.ErrNotFound) {
		return err
	}

	tier, err := s.Tiers.GetTier(ctx, userID)
	if err != nil {
		return fmt.Errorf("get tier: %w", err)
	}

	count, err := s.Repo.CountByUser(ctx, userID)
	if err != nil {
		return err
	}

	if !plan.AllowsConnections(tier, count+1) {
		limit := plan.PlatformLimit(tier)
		noun := "platforms"
		if limit == 1 {
			noun = "platform"
		}
		return core.LimitExceededError(fmt.Sprintf(
			"your %s plan allows %d connected %s; upgrade to connect more",
			tier,
			limit,
			noun,
		))
	}

	return nil
}

func (s *Service) fail(platform, reason string, err error) (string, error) {
	s.Metrics.ConnectionEvent(platform, "failed")
	s.Logger.Warn("platform connection failed",
		"platform", platform,
		"reason", reason,
		"error", err,
	)
	return s.frontendRedirect(platform, reason), err
}

func (s *Service) frontendRedirect(platform, reason string) string {
	u, err := url.Parse(s.frontendURL)
	if err != nil || s.frontendURL == "" {
		u = &url.URL{Path: "/"}
	}

	q := u.Query()
	if reason == "" {
		q.Set("connected", platform)
	} else {
		q.Set("error", reason)
		if platform != "" {
			q.Set("platform", platform)
		}
	}
	u.RawQuery = q.Encode()

	return u.String()
}

func (s *Service) notify(ctx context.Context, userID, title, message string) {
	if s.Notifier == nil {
		return
	}
	if err := s.Notifier.Notify(ctx, userID, notification.CategoryConnection, title, message); err != nil {
		s.Logger.Warn("send connection notification", "user_id", userID, "error", err)
	}
}

func associatedData(userID, platform string) []byte {
	return []byte(userID + ":" + platform)
}

var reasonPattern = regexp.MustCompile(`[^a-z0-9_]+`)

func sanitizeReason(raw string) string {
	r := reasonPattern.ReplaceAllString(strings.ToLower(raw), "_")
	r = strings.Trim(r, "_")
	if r == "" || len(r) > 40 {
		return "access_denied"
	}
	return r
}
