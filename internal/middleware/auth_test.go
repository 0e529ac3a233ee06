// AngelaMos | 2026
// auth_test.go

package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/auramanager/aura-api/internal/core"
)

type verifierFunc func(ctx context.Context, token string) (*AccessTokenClaims, error)

func (f verifierFunc) VerifyAccessToken(ctx context.Context, token string) (*AccessTokenClaims, error) {
	return f(ctx, token)
}

var stubVerifier = verifierFunc(func(_ context.Context, token string) (*AccessTokenClaims, error) {
	switch token {
	case "member":
		return &AccessTokenClaims{UserID: "u1", Role: "user", Tier: "creator"}, nil
	case "admin":
		return &AccessTokenClaims{UserID: "a1", Role: RoleAdmin, Tier: "pro"}, nil
	case "expired":
		return nil, core.TokenExpiredError()
	}
	return nil, core.TokenInvalidError()
})

func echoUser(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("X-User", GetUserID(r.Context()))
	w.Header().Set("X-Tier", GetUserTier(r.Context()))
	w.WriteHeader(http.StatusOK)
}

func call(h http.Handler, authz string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/v1/users/me", nil)
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestAuthenticator(t *testing.T) {
	h := Authenticator(stubVerifier)(http.HandlerFunc(echoUser))

	tests := []struct {
		name     string
		authz    string
		wantCode int
		wantBody string
		wantUser string
	}{
		{"missing header", "", http.StatusUnauthorized, "UNAUTHORIZED", ""},
		{"wrong scheme", "Basic member", http.StatusUnauthorized, "UNAUTHORIZED", ""},
		{"expired", "Bearer expired", http.StatusUnauthorized, "TOKEN_EXPIRED", ""},
		{"invalid", "Bearer junk", http.StatusUnauthorized, "TOKEN_INVALID", ""},
		{"valid", "bearer member", http.StatusOK, "", "u1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := call(h, tt.authz)
			assert.Equal(t, tt.wantCode, rec.Code)
			if tt.wantBody != "" {
				assert.Contains(t, rec.Body.String(), tt.wantBody)
			}
			assert.Equal(t, tt.wantUser, rec.Header().Get("X-User"))
		})
	}
}

func TestOptionalAuthLetsAnonymousThrough(t *testing.T) {
	h := OptionalAuth(stubVerifier)(http.HandlerFunc(echoUser))

	anon := call(h, "")
	assert.Equal(t, http.StatusOK, anon.Code)
	assert.Empty(t, anon.Header().Get("X-User"))

	bad := call(h, "Bearer junk")
	assert.Equal(t, http.StatusOK, bad.Code)
	assert.Empty(t, bad.Header().Get("X-User"))

	member := call(h, "Bearer member")
	assert.Equal(t, "creator", member.Header().Get("X-Tier"))
}

func TestRequireAdmin(t *testing.T) {
	h := Authenticator(stubVerifier)(RequireAdmin(http.HandlerFunc(echoUser)))

	assert.Equal(t, http.StatusForbidden, call(h, "Bearer member").Code)
	assert.Equal(t, http.StatusOK, call(h, "Bearer admin").Code)

	bare := RequireAdmin(http.HandlerFunc(echoUser))
	assert.Equal(t, http.StatusUnauthorized, call(bare, "").Code)
}
