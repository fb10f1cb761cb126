package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"classroom/internal/metrics"
	"classroom/internal/models"
	"classroom/internal/oauth"
	"classroom/internal/security"
)

// OAuthResult is the outcome of a completed OAuth callback
type OAuthResult struct {
	User    *models.User
	IsNew   bool
	Session *IssuedSession
}

// CallbackRequest carries the parameters of a provider callback
type CallbackRequest struct {
	Provider    string
	Code        string
	State       string
	IssuedState string
	RedirectURL string
}

// OAuthBridge turns provider authorizations into local users and sessions
type OAuthBridge struct {
	providers   *oauth.Registry
	states      *security.StateSigner
	credentials *CredentialStore
	sessions    *SessionManager
	logger      *zap.SugaredLogger
	metrics     *metrics.Metrics
}

// NewOAuthBridge creates a new OAuth bridge
func NewOAuthBridge(providers *oauth.Registry, states *security.StateSigner, credentials *CredentialStore, sessions *SessionManager, logger *zap.SugaredLogger, m *metrics.Metrics) *OAuthBridge {
	return &OAuthBridge{
		providers:   providers,
		states:      states,
		credentials: credentials,
		sessions:    sessions,
		logger:      logger,
		metrics:     m,
	}
}

// Providers returns the keys of the configured providers
func (b *OAuthBridge) Providers() []string {
	return b.providers.Names()
}

// BuildAuthorizationURL returns the provider consent URL and the signed state
// the caller must hand back on the callback
func (b *OAuthBridge) BuildAuthorizationURL(providerName, redirectURL string) (string, string, error) {
	provider, ok := b.providers.Get(providerName)
	if !ok {
		return "", "", fmt.Errorf("provider %q: %w", providerName, ErrNotFound)
	}
	state, err := b.states.Issue()
	if err != nil {
		return "", "", err
	}
	return provider.AuthCodeURL(state, redirectURL), state, nil
}

// CompleteCallback verifies the state, exchanges the code and resolves the
// identity to a user: an already linked user first, then an active user with
// the same verified email, otherwise a new OAuth-only student. A session is issued
// for the resolved user.
func (b *OAuthBridge) CompleteCallback(ctx context.Context, req CallbackRequest) (*OAuthResult, error) {
	provider, ok := b.providers.Get(req.Provider)
	if !ok {
		return nil, fmt.Errorf("provider %q: %w", req.Provider, ErrNotFound)
	}

	if req.State == "" || req.State != req.IssuedState {
		b.metrics.OAuthLogins.WithLabelValues(provider.Name(), "invalid_state").Inc()
		return nil, ErrInvalidState
	}
	if err := b.states.Verify(req.State); err != nil {
		b.metrics.OAuthLogins.WithLabelValues(provider.Name(), "invalid_state").Inc()
		return nil, fmt.Errorf("%w: %v", ErrInvalidState, err)
	}
	if req.Code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", ErrProviderError)
	}

	identity, err := provider.Exchange(ctx, req.Code, req.RedirectURL)
	if err != nil {
		b.metrics.OAuthLogins.WithLabelValues(provider.Name(), "provider_error").Inc()
		b.logger.Warnw("OAuth exchange failed", "provider", provider.Name(), "error", err)
		return nil, fmt.Errorf("%w: %v", ErrProviderError, err)
	}

	user, outcome, err := b.resolveUser(ctx, identity)
	if err != nil {
		return nil, err
	}

	session, err := b.sessions.Issue(ctx, user.ID, b.sessions.TTL())
	if err != nil {
		return nil, err
	}

	b.metrics.OAuthLogins.WithLabelValues(provider.Name(), outcome).Inc()
	b.logger.Infow("OAuth login", "provider", provider.Name(), "user_id", user.ID, "outcome", outcome)
	return &OAuthResult{User: user, IsNew: outcome == "created", Session: session}, nil
}

func (b *OAuthBridge) resolveUser(ctx context.Context, identity *oauth.Identity) (*models.User, string, error) {
	external := models.ExternalIdentity{Provider: identity.Provider, Subject: identity.Subject}

	user, err := b.credentials.GetUserByExternalID(ctx, external)
	if err == nil {
		if !user.IsActive {
			b.metrics.OAuthLogins.WithLabelValues(identity.Provider, "deactivated").Inc()
			return nil, "", ErrAccountDeactivated
		}
		return user, "existing", nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}

	user, err = b.credentials.GetUserByEmail(ctx, identity.Email)
	if err == nil {
		// An unverified address proves nothing about who owns the account
		if !identity.EmailVerified {
			b.metrics.OAuthLogins.WithLabelValues(identity.Provider, "unverified_email").Inc()
			return nil, "", ErrDuplicateEmail
		}
		linked, err := b.credentials.LinkExternalIdentity(ctx, user.ID, external, ExternalProfile{Name: identity.Name, Picture: identity.Picture})
		if err != nil {
			return nil, "", err
		}
		return linked, "linked", nil
	}
	if !errors.Is(err, ErrNotFound) {
		return nil, "", err
	}

	created, err := b.credentials.CreateUser(ctx, NewUserInput{
		Name:           displayName(identity),
		Email:          identity.Email,
		External:       external,
		ProfilePicture: identity.Picture,
	})
	if err != nil {
		return nil, "", err
	}
	return created, "created", nil
}

// displayName falls back to the local part of the email, since Apple only
// sends the name on the first authorization
func displayName(identity *oauth.Identity) string {
	name := strings.TrimSpace(identity.Name)
	if len(name) >= 2 {
		return name
	}
	local, _, _ := strings.Cut(identity.Email, "@")
	if len(local) < 2 {
		return "Student"
	}
	return local
}
