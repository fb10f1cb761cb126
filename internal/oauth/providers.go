package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"

	"classroom/internal/config"
)

var (
	ErrExchange      = errors.New("failed to exchange authorization code")
	ErrUserInfo      = errors.New("failed to fetch user info")
	ErrMissingClaims = errors.New("provider did not return subject and email")
)

// Identity holds the claims a provider asserts about the signed-in user.
// EmailVerified is set only when the provider vouches for the address.
type Identity struct {
	Provider      string
	Subject       string
	Email         string
	EmailVerified bool
	Name          string
	Picture       string
}

// Provider is an OAuth 2.0 / OpenID Connect identity provider
type Provider interface {
	Name() string
	AuthCodeURL(state, redirectURL string) string
	Exchange(ctx context.Context, code, redirectURL string) (*Identity, error)
}

// OAuth2Provider is a Provider backed by golang.org/x/oauth2. Claims come
// from the verified id_token when IDToken is set, otherwise from UserInfoURL.
// VerifiedEmails marks providers whose user info only returns confirmed
// addresses and carries no verification flag.
type OAuth2Provider struct {
	Key            string
	Label          string
	Config         *oauth2.Config
	UserInfoURL    string
	AuthParams     map[string]string
	IDToken        *IDTokenVerifier
	HTTPClient     *http.Client
	VerifiedEmails bool
}

// Name returns the provider key used in URLs
func (p *OAuth2Provider) Name() string {
	return p.Key
}

// Configured reports whether client credentials are present
func (p *OAuth2Provider) Configured() bool {
	return p.Config != nil && p.Config.ClientID != "" && p.Config.ClientSecret != ""
}

// AuthCodeURL returns the consent page URL for the given state
func (p *OAuth2Provider) AuthCodeURL(state, redirectURL string) string {
	cfg := *p.Config
	cfg.RedirectURL = redirectURL

	options := []oauth2.AuthCodeOption{oauth2.AccessTypeOnline}
	for key, value := range p.AuthParams {
		options = append(options, oauth2.SetAuthURLParam(key, value))
	}
	return cfg.AuthCodeURL(state, options...)
}

// Exchange trades the authorization code for tokens and returns the identity
func (p *OAuth2Provider) Exchange(ctx context.Context, code, redirectURL string) (*Identity, error) {
	if p.HTTPClient != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, p.HTTPClient)
	}

	cfg := *p.Config
	cfg.RedirectURL = redirectURL

	token, err := cfg.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExchange, err)
	}

	var identity *Identity
	if rawIDToken, _ := token.Extra("id_token").(string); rawIDToken != "" && p.IDToken != nil {
		claims, err := p.IDToken.Verify(ctx, rawIDToken, p.Config.ClientID)
		if err != nil {
			return nil, err
		}
		identity = &Identity{
			Subject:       claims.Subject,
			Email:         claims.Email,
			EmailVerified: bool(claims.EmailVerified),
			Name:          claims.Name,
			Picture:       claims.Picture,
		}
	} else if p.UserInfoURL != "" {
		identity, err = p.fetchUserInfo(ctx, &cfg, token)
		if err != nil {
			return nil, err
		}
	} else {
		return nil, fmt.Errorf("%w: no id_token from %s", ErrUserInfo, p.Key)
	}

	identity.Provider = p.Key
	if p.VerifiedEmails {
		identity.EmailVerified = true
	}
	identity.Email = strings.ToLower(strings.TrimSpace(identity.Email))
	if identity.Subject == "" || identity.Email == "" {
		return nil, ErrMissingClaims
	}
	return identity, nil
}

type userInfoPayload struct {
	ID            string          `json:"id"`
	Sub           string          `json:"sub"`
	Email         string          `json:"email"`
	EmailVerified VerifiedFlag    `json:"email_verified"`
	VerifiedEmail VerifiedFlag    `json:"verified_email"`
	Name          string          `json:"name"`
	Picture       json.RawMessage `json:"picture"`
}

func (p *OAuth2Provider) fetchUserInfo(ctx context.Context, cfg *oauth2.Config, token *oauth2.Token) (*Identity, error) {
	client := cfg.Client(ctx, token)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUserInfo, resp.StatusCode)
	}

	var payload userInfoPayload
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUserInfo, err)
	}

	subject := payload.ID
	if subject == "" {
		subject = payload.Sub
	}
	return &Identity{
		Subject:       subject,
		Email:         payload.Email,
		EmailVerified: bool(payload.EmailVerified || payload.VerifiedEmail),
		Name:          payload.Name,
		Picture:       pictureURL(payload.Picture),
	}, nil
}

// pictureURL accepts a plain URL string or the Graph API
// {"data": {"url": ...}} shape
func pictureURL(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var graph struct {
		Data struct {
			URL string `json:"url"`
		} `json:"data"`
	}
	if err := json.Unmarshal(raw, &graph); err == nil {
		return graph.Data.URL
	}
	return ""
}

// Registry holds the configured providers by key
type Registry struct {
	providers map[string]Provider
}

// NewRegistry builds a registry from providers
func NewRegistry(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.providers[p.Name()] = p
	}
	return r
}

// Get returns the provider with the given key
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[strings.ToLower(name)]
	return p, ok
}

// Names returns the configured provider keys in sorted order
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const (
	googleJWKSURL = "https://www.googleapis.com/oauth2/v3/certs"
	appleJWKSURL  = "https://appleid.apple.com/auth/keys"
)

// FromConfig returns the providers that have client credentials configured
func FromConfig(cfg *config.Config) *Registry {
	candidates := []*OAuth2Provider{
		{
			Key:   "google",
			Label: "Google",
			Config: &oauth2.Config{
				ClientID:     cfg.GoogleClientID,
				ClientSecret: cfg.GoogleClientSecret,
				Endpoint:     google.Endpoint,
				Scopes:       []string{"openid", "email", "profile"},
			},
			UserInfoURL: "https://www.googleapis.com/oauth2/v2/userinfo",
			IDToken:     NewIDTokenVerifier(googleJWKSURL, "https://accounts.google.com", "accounts.google.com"),
		},
		{
			Key:   "facebook",
			Label: "Facebook",
			Config: &oauth2.Config{
				ClientID:     cfg.FacebookClientID,
				ClientSecret: cfg.FacebookClientSecret,
				Endpoint:     facebook.Endpoint,
				Scopes:       []string{"email", "public_profile"},
			},
			UserInfoURL:    "https://graph.facebook.com/me?fields=id,name,email,picture.type(large)",
			VerifiedEmails: true,
		},
		{
			Key:   "apple",
			Label: "Apple",
			Config: &oauth2.Config{
				ClientID:     cfg.AppleClientID,
				ClientSecret: cfg.AppleClientSecret,
				Endpoint: oauth2.Endpoint{
					AuthURL:  "https://appleid.apple.com/auth/authorize",
					TokenURL: "https://appleid.apple.com/auth/token",
				},
				Scopes: []string{"name", "email"},
			},
			AuthParams: map[string]string{
				"response_mode": "query",
			},
			IDToken: NewIDTokenVerifier(appleJWKSURL, "https://appleid.apple.com"),
		},
	}

	var providers []Provider
	for _, p := range candidates {
		if p.Configured() {
			providers = append(providers, p)
		}
	}
	return NewRegistry(providers...)
}
