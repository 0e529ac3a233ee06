// AngelaMos | 2026
// dto.go

package connection

import (
	"time"
)

type ConnectResponse struct {
	Platform     string `json:"platform"`
	AuthorizeURL string `json:"authorize_url"`
}

// CallbackParams are the query parameters a provider sends back.
type CallbackParams struct {
	Platform         string
	State            string
	Code             string
	Error            string
	ErrorDescription string
}

type PlatformStatus struct {
	Platform    string     `json:"platform"`
	DisplayName string     `json:"display_name"`
	Configured  bool       `json:"configured"`
	Connected   bool       `json:"connected"`
	ConnectedAt *time.Time `json:"connected_at,omitempty"`
	ExpiresAt   *time.Time `json:"expires_at,omitempty"`
	Scope       string     `json:"scope,omitempty"`
}

type ListResponse struct {
	Platforms []PlatformStatus `json:"platforms"`
	Tier      string           `json:"tier"`
	Limit     int              `json:"limit"`
	Connected int              `json:"connected"`
	// Remaining is -1 when the tier is unlimited.
	Remaining int `json:"remaining"`
}
