// AngelaMos | 2026
// service_test.go

package auth

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/auramanager/aura-api/internal/config"
	"github.com/auramanager/aura-api/internal/core"
)

type memTokens struct {
	mu     sync.Mutex
	byID   map[string]*RefreshToken
	byHash map[string]*RefreshToken
}

func newMemTokens() *memTokens {
	return &memTokens{
		byID:   make(map[string]*RefreshToken),
		byHash: make(map[string]*RefreshToken),
	}
}

func (m *memTokens) Create(_ context.Context, t *RefreshToken) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t.CreatedAt = time.Now()
	m.byID[t.ID] = t
	m.byHash[t.TokenHash] = t
	return nil
}

func (m *memTokens) FindByHash(_ context.Context, hash string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byHash[hash]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTokens) FindByID(_ context.Context, id string) (*RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *t
	return &cp, nil
}

func (m *memTokens) MarkAsUsed(_ context.Context, id, replacedBy string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || t.IsUsed {
		return core.ErrNotFound
	}
	t.MarkAsUsed(replacedBy)
	return nil
}

func (m *memTokens) RevokeByID(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.byID[id]
	if !ok || t.IsRevoked() {
		return core.ErrNotFound
	}
	t.Revoke()
	return nil
}

func (m *memTokens) revokeWhere(match func(*RefreshToken) bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.byID {
		if match(t) && !t.IsRevoked() {
			t.Revoke()
		}
	}
}

func (m *memTokens) RevokeByFamilyID(_ context.Context, familyID string) error {
	m.revokeWhere(func(t *RefreshToken) bool { return t.FamilyID == familyID })
	return nil
}

func (m *memTokens) RevokeAllForUser(_ context.Context, userID string) error {
	m.revokeWhere(func(t *RefreshToken) bool { return t.UserID == userID })
	return nil
}

func (m *memTokens) GetActiveSessionsForUser(_ context.Context, userID string) ([]RefreshToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []RefreshToken
	for _, t := range m.byID {
		if t.UserID == userID && t.IsValid() {
			out = append(out, *t)
		}
	}
	return out, nil
}

func (m *memTokens) DeleteExpired(context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.byID {
		if t.IsExpired() {
			delete(m.byID, id)
			delete(m.byHash, t.TokenHash)
			n++
		}
	}
	return n, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*UserInfo
}

func (u *memUsers) GetByEmail(_ context.Context, email string) (*UserInfo, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, info := range u.users {
		if info.Email == email {
			cp := *info
			return &cp, nil
		}
	}
	return nil, core.ErrNotFound
}

func (u *memUsers) GetByID(_ context.Context, id string) (*UserInfo, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	info, ok := u.users[id]
	if !ok {
		return nil, core.ErrNotFound
	}
	cp := *info
	return &cp, nil
}

func (u *memUsers) Create(_ context.Context, email, hash, name string) (*UserInfo, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, info := range u.users {
		if info.Email == email {
			return nil, core.ErrDuplicateKey
		}
	}
	info := &UserInfo{
		ID:           "u" + string(rune('0'+len(u.users)+1)),
		Email:        email,
		Name:         name,
		PasswordHash: hash,
		Role:         "user",
		Tier:         "free",
		CreatedAt:    time.Now(),
	}
	u.users[info.ID] = info
	cp := *info
	return &cp, nil
}

func (u *memUsers) IncrementTokenVersion(_ context.Context, id string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.users[id].TokenVersion++
	return nil
}

func (u *memUsers) UpdatePassword(_ context.Context, id, hash string) error {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.users[id].PasswordHash = hash
	return nil
}

func (u *memUsers) set(id string, fn func(*UserInfo)) {
	u.mu.Lock()
	defer u.mu.Unlock()
	fn(u.users[id])
}

type memBlacklist struct {
	mu      sync.Mutex
	revoked map[string]time.Duration
	err     error
}

func (b *memBlacklist) Revoke(_ context.Context, id string, ttl time.Duration) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.revoked[id] = ttl
	return nil
}

func (b *memBlacklist) IsRevoked(_ context.Context, id string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.err != nil {
		return false, b.err
	}
	_, ok := b.revoked[id]
	return ok, nil
}

type initializerFunc func(ctx context.Context, userID string) error

func (f initializerFunc) InitializeAccount(ctx context.Context, userID string) error {
	return f(ctx, userID)
}

type fixture struct {
	svc       *Service
	tokens    *memTokens
	users     *memUsers
	blacklist *memBlacklist
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	dir := t.TempDir()
	priv := filepath.Join(dir, "private.pem")
	pub := filepath.Join(dir, "public.pem")
	require.NoError(t, GenerateKeyPair(priv, pub))

	jwtManager, err := NewJWTManager(config.JWTConfig{
		PrivateKeyPath:     priv,
		PublicKeyPath:      pub,
		AccessTokenExpire:  15 * time.Minute,
		RefreshTokenExpire: 24 * time.Hour,
		Issuer:             "aura-test",
		Audience:           "aura-test-api",
	})
	require.NoError(t, err)

	f := &fixture{
		tokens:    newMemTokens(),
		users:     &memUsers{users: make(map[string]*UserInfo)},
		blacklist: &memBlacklist{revoked: make(map[string]time.Duration)},
	}
	f.svc = NewService(
		f.tokens,
		jwtManager,
		f.users,
		f.blacklist,
		slog.New(slog.NewTextHandler(io.Discard, nil)),
	)
	return f
}

func (f *fixture) register(t *testing.T) *AuthResponse {
	t.Helper()
	resp, err := f.svc.Register(context.Background(), RegisterRequest{
		Email:    "nova@aura.test",
		Password: "correct-horse",
		Name:     "Nova",
	}, "test-agent", "203.0.113.7")
	require.NoError(t, err)
	return resp
}

func TestRegisterRunsInitializersAndIssuesTokens(t *testing.T) {
	f := newFixture(t)

	var initialized []string
	f.svc.OnRegister(
		initializerFunc(func(_ context.Context, id string) error {
			initialized = append(initialized, "profile:"+id)
			return nil
		}),
		initializerFunc(func(context.Context, string) error {
			return errors.New("subscription store down")
		}),
	)

	resp := f.register(t)

	assert.Equal(t, []string{"profile:" + resp.User.ID}, initialized)
	assert.Equal(t, "free", resp.User.Tier)
	assert.Equal(t, "Free", resp.User.PlanName)
	assert.Equal(t, 1, resp.User.PlatformLimit)
	assert.Equal(t, "Bearer", resp.Tokens.TokenType)
	assert.NotEmpty(t, resp.Tokens.RefreshToken)

	claims, err := f.svc.VerifyAccessToken(context.Background(), resp.Tokens.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, resp.User.ID, claims.UserID)
	assert.NotEmpty(t, claims.ID)
	assert.WithinDuration(t, resp.Tokens.ExpiresAt, claims.ExpiresAt, time.Second)
}

func TestRegisterDuplicateEmail(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	_, err := f.svc.Register(context.Background(), RegisterRequest{
		Email:    "nova@aura.test",
		Password: "another-pass",
		Name:     "Nova Again",
	}, "", "")
	assert.ErrorIs(t, err, core.ErrDuplicateKey)
	assert.Equal(t, 409, core.FromError(err).StatusCode)
}

func TestLoginRejectsWrongPassword(t *testing.T) {
	f := newFixture(t)
	f.register(t)

	_, err := f.svc.Login(context.Background(), LoginRequest{
		Email:    "nova@aura.test",
		Password: "wrong-horse",
	}, "", "")
	assert.ErrorIs(t, err, core.ErrUnauthorized)

	_, err = f.svc.Login(context.Background(), LoginRequest{
		Email:    "nobody@aura.test",
		Password: "correct-horse",
	}, "", "")
	assert.Equal(t, "INVALID_CREDENTIALS", core.FromError(err).Code)

	resp, err := f.svc.Login(context.Background(), LoginRequest{
		Email:    "nova@aura.test",
		Password: "correct-horse",
	}, "", "")
	require.NoError(t, err)
	assert.Equal(t, "nova@aura.test", resp.User.Email)
}

func TestRefreshRotatesAndDetectsReuse(t *testing.T) {
	f := newFixture(t)
	first := f.register(t)
	ctx := context.Background()

	second, err := f.svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	require.NoError(t, err)
	assert.NotEqual(t, first.Tokens.RefreshToken, second.Tokens.RefreshToken)

	_, err = f.svc.Refresh(ctx, first.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
	assert.Equal(t, "TOKEN_REUSE_DETECTED", core.FromError(err).Code)

	_, err = f.svc.Refresh(ctx, second.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestRefreshUnknownToken(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.Refresh(context.Background(), "not-a-token", "", "")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestVerifyAccessTokenReadsAccountState(t *testing.T) {
	f := newFixture(t)
	resp := f.register(t)
	ctx := context.Background()
	token := resp.Tokens.AccessToken

	f.users.set(resp.User.ID, func(u *UserInfo) { u.Tier = "pro" })
	claims, err := f.svc.VerifyAccessToken(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, "pro", claims.Tier)

	f.blacklist.err = errors.New("redis down")
	_, err = f.svc.VerifyAccessToken(ctx, token)
	require.NoError(t, err)
	f.blacklist.err = nil

	f.users.set(resp.User.ID, func(u *UserInfo) { u.TokenVersion++ })
	_, err = f.svc.VerifyAccessToken(ctx, token)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestVerifyAccessTokenRejectsGarbage(t *testing.T) {
	f := newFixture(t)

	_, err := f.svc.VerifyAccessToken(context.Background(), "a.b.c")
	assert.ErrorIs(t, err, core.ErrTokenInvalid)
}

func TestLogoutBlacklistsAccessToken(t *testing.T) {
	f := newFixture(t)
	resp := f.register(t)
	ctx := context.Background()

	claims, err := f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	require.NoError(t, err)

	require.NoError(t, f.svc.Logout(ctx, claims, resp.Tokens.RefreshToken))

	_, err = f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	_, err = f.svc.Refresh(ctx, resp.Tokens.RefreshToken, "", "")
	assert.ErrorIs(t, err, core.ErrTokenRevoked)
}

func TestChangePasswordEndsSessions(t *testing.T) {
	f := newFixture(t)
	resp := f.register(t)
	ctx := context.Background()

	err := f.svc.ChangePassword(ctx, resp.User.ID, "wrong-horse", "new-password")
	assert.Equal(t, "INVALID_CREDENTIALS", core.FromError(err).Code)

	require.NoError(t, f.svc.ChangePassword(ctx, resp.User.ID, "correct-horse", "new-password"))

	_, err = f.svc.VerifyAccessToken(ctx, resp.Tokens.AccessToken)
	assert.ErrorIs(t, err, core.ErrTokenRevoked)

	sessions, err := f.svc.GetActiveSessions(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = f.svc.Login(ctx, LoginRequest{Email: "nova@aura.test", Password: "new-password"}, "", "")
	assert.NoError(t, err)
}

func TestRevokeSessionOwnership(t *testing.T) {
	f := newFixture(t)
	resp := f.register(t)
	ctx := context.Background()

	sessions, err := f.svc.GetActiveSessions(ctx, resp.User.ID)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	assert.Equal(t, "203.0.113.7", sessions[0].IPAddress)

	err = f.svc.RevokeSession(ctx, "someone-else", sessions[0].ID)
	assert.ErrorIs(t, err, core.ErrForbidden)

	err = f.svc.RevokeSession(ctx, resp.User.ID, "missing")
	assert.ErrorIs(t, err, core.ErrNotFound)

	require.NoError(t, f.svc.RevokeSession(ctx, resp.User.ID, sessions[0].ID))
	sessions, err = f.svc.GetActiveSessions(ctx, resp.User.ID)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}
