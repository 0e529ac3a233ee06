// AngelaMos | 2026
// provider.go

package connection

import (
	"sort"
	"strings"

	"golang.org/x/oauth2"

	"github.com/auramanager/aura-api/internal/config"
)

const (
	PlatformSpotify    = "spotify"
	PlatformInstagram  = "instagram"
	PlatformTikTok     = "tiktok"
	PlatformYouTube    = "youtube"
	PlatformSoundCloud = "soundcloud"
	PlatformTwitter    = "twitter"
)

// Provider describes how to run the authorization code flow against one
// platform.
type Provider struct {
	Platform    string
	DisplayName string
	Endpoint    oauth2.Endpoint
	Scopes      []string
	PKCE        bool
	// AuthParams are appended to the authorize URL.
	AuthParams map[string]string
	// ClientKeyParam sends the client id as client_key, as TikTok expects.
	ClientKeyParam bool

	clientID     string
	clientSecret string
}

func (p *Provider) Configured() bool {
	return p.clientID != "" && p.clientSecret != ""
}

func (p *Provider) oauthConfig(redirectURL string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     p.clientID,
		ClientSecret: p.clientSecret,
		Endpoint:     p.Endpoint,
		RedirectURL:  redirectURL,
		Scopes:       p.Scopes,
	}
}

func (p *Provider) authOptions() []oauth2.AuthCodeOption {
	opts := make([]oauth2.AuthCodeOption, 0, len(p.AuthParams)+1)
	for k, v := range p.AuthParams {
		opts = append(opts, oauth2.SetAuthURLParam(k, v))
	}
	if p.ClientKeyParam {
		opts = append(opts, oauth2.SetAuthURLParam("client_key", p.clientID))
	}
	return opts
}

// DefaultProviders returns the supported platforms with their public
// OAuth endpoints.
func DefaultProviders() []Provider {
	return []Provider{
		{
			Platform:    PlatformSpotify,
			DisplayName: "Spotify",
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://accounts.spotify.com/authorize",
				TokenURL:  "https://accounts.spotify.com/api/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			Scopes: []string{
				"user-read-email",
				"user-read-private",
				"user-top-read",
				"user-read-recently-played",
			},
			PKCE: true,
		},
		{
			Platform:    PlatformInstagram,
			DisplayName: "Instagram",
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://www.instagram.com/oauth/authorize",
				TokenURL:  "https://api.instagram.com/oauth/access_token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{"instagram_business_basic,instagram_business_manage_insights"},
		},
		{
			Platform:    PlatformTikTok,
			DisplayName: "TikTok",
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://www.tiktok.com/v2/auth/authorize/",
				TokenURL:  "https://open.tiktokapis.com/v2/oauth/token/",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes:         []string{"user.info.basic,user.info.stats,video.list"},
			ClientKeyParam: true,
		},
		{
			Platform:    PlatformYouTube,
			DisplayName: "YouTube",
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://accounts.google.com/o/oauth2/v2/auth",
				TokenURL:  "https://oauth2.googleapis.com/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			Scopes: []string{
				"https://www.googleapis.com/auth/youtube.readonly",
				"https://www.googleapis.com/auth/yt-analytics.readonly",
			},
			PKCE: true,
			AuthParams: map[string]string{
				"access_type": "offline",
				"prompt":      "consent",
			},
		},
		{
			Platform:    PlatformSoundCloud,
			DisplayName: "SoundCloud",
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://secure.soundcloud.com/authorize",
				TokenURL:  "https://secure.soundcloud.com/oauth/token",
				AuthStyle: oauth2.AuthStyleInParams,
			},
			PKCE: true,
		},
		{
			Platform:    PlatformTwitter,
			DisplayName: "X (Twitter)",
			Endpoint: oauth2.Endpoint{
				AuthURL:   "https://twitter.com/i/oauth2/authorize",
				TokenURL:  "https://api.twitter.com/2/oauth2/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
			Scopes: []string{"tweet.read", "users.read", "offline.access"},
			PKCE:   true,
		},
	}
}

// Registry holds the supported providers with their client credentials.
type Registry struct {
	providers map[string]*Provider
}

func NewRegistry(cfg config.OAuthConfig, providers []Provider) *Registry {
	r := &Registry{providers: make(map[string]*Provider, len(providers))}

	for i := range providers {
		p := providers[i]
		if creds, ok := cfg.Provider(p.Platform); ok {
			p.clientID = creds.ClientID
			p.clientSecret = creds.ClientSecret
		}
		r.providers[p.Platform] = &p
	}

	return r
}

func (r *Registry) Get(platform string) (*Provider, bool) {
	p, ok := r.providers[strings.ToLower(strings.TrimSpace(platform))]
	return p, ok
}

// Platforms lists supported platform names in a stable order.
func (r *Registry) Platforms() []string {
	out := make([]string, 0, len(r.providers))
	for name := range r.providers {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}
