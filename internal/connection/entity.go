// AngelaMos | 2026
// entity.go

package connection

import (
	"time"
)

// Token is a stored provider credential. AccessToken and RefreshToken
// hold sealed bytes, never plaintext.
type Token struct {
	ID           string     `db:"id"`
	UserID       string     `db:"user_id"`
	Platform     string     `db:"platform"`
	AccessToken  []byte     `db:"access_token"`
	RefreshToken []byte     `db:"refresh_token"`
	TokenType    string     `db:"token_type"`
	Scope        string     `db:"scope"`
	ExpiresAt    *time.Time `db:"expires_at"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
}

// pendingAuth is kept in Redis between Connect and Callback, keyed by the
// state nonce.
type pendingAuth struct {
	UserID   string `json:"user_id"`
	Platform string `json:"platform"`
	Verifier string `json:"verifier,omitempty"`
}
