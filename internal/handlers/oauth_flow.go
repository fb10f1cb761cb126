package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"classroom/internal/security"
	"classroom/internal/service"
)

// OAuthHandler drives the provider redirect and callback
type OAuthHandler struct {
	bridge          *service.OAuthBridge
	redirectBaseURL string
	logger          *zap.SugaredLogger
}

// NewOAuthHandler creates a new OAuth handler. An empty redirectBaseURL
// derives the callback URL from the incoming request.
func NewOAuthHandler(bridge *service.OAuthBridge, redirectBaseURL string, logger *zap.SugaredLogger) *OAuthHandler {
	return &OAuthHandler{
		bridge:          bridge,
		redirectBaseURL: redirectBaseURL,
		logger:          logger,
	}
}

// Providers lists the configured provider keys
func (h *OAuthHandler) Providers(w http.ResponseWriter, r *http.Request) {
	writeSuccess(w, http.StatusOK, "", map[string]any{"providers": h.bridge.Providers()})
}

// StartOAuth returns the provider consent URL and binds the signed state to
// the browser with a short-lived cookie
func (h *OAuthHandler) StartOAuth(w http.ResponseWriter, r *http.Request) {
	providerKey := strings.ToLower(chi.URLParam(r, "provider"))

	authURL, state, err := h.bridge.BuildAuthorizationURL(providerKey, h.oauthRedirectURL(r, providerKey))
	if err != nil {
		respondWithError(w, h.logger, "failed to start oauth", err)
		return
	}

	http.SetCookie(w, security.CreateTempCookie(r, OAuthStateCookieName, state, oauthStateTTL))
	writeSuccess(w, http.StatusOK, "", map[string]any{
		"authorization_url": authURL,
		"provider":          providerKey,
	})
}

// OAuthCallback completes the flow and issues a session
func (h *OAuthHandler) OAuthCallback(w http.ResponseWriter, r *http.Request) {
	providerKey := strings.ToLower(chi.URLParam(r, "provider"))
	query := r.URL.Query()

	// The state cookie is single use whatever the outcome
	var issued string
	if cookie, err := r.Cookie(OAuthStateCookieName); err == nil {
		issued = cookie.Value
	}
	http.SetCookie(w, security.CreateDeleteCookie(r, OAuthStateCookieName))

	if providerErr := query.Get("error"); providerErr != "" {
		h.logger.Warnw("OAuth provider returned an error", "provider", providerKey, "error", providerErr, "description", query.Get("error_description"))
		writeFailure(w, http.StatusBadGateway, ErrProviderFailed)
		return
	}

	result, err := h.bridge.CompleteCallback(r.Context(), service.CallbackRequest{
		Provider:    providerKey,
		Code:        query.Get("code"),
		State:       query.Get("state"),
		IssuedState: issued,
		RedirectURL: h.oauthRedirectURL(r, providerKey),
	})
	if err != nil {
		respondWithError(w, h.logger, "oauth callback failed", err)
		return
	}

	writeSuccess(w, http.StatusOK, "Login successful", map[string]any{
		"token":       result.Session.Token,
		"expires_at":  result.Session.ExpiresAt,
		"user":        newUserView(result.User),
		"is_new_user": result.IsNew,
	})
}

func (h *OAuthHandler) oauthRedirectURL(r *http.Request, providerKey string) string {
	baseURL := strings.TrimSpace(h.redirectBaseURL)
	if baseURL == "" {
		scheme := "http"
		if security.IsSecureRequest(r) {
			scheme = "https"
		}
		baseURL = fmt.Sprintf("%s://%s", scheme, r.Host)
	}
	return fmt.Sprintf("%s/api/auth/%s/callback", strings.TrimRight(baseURL, "/"), providerKey)
}
