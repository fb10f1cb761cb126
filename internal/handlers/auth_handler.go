package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"classroom/internal/security"
	"classroom/internal/service"
)

// WelcomeMailer sends the optional welcome email after registration
type WelcomeMailer interface {
	SendWelcomeEmail(ctx context.Context, toEmail, toName, role string) error
}

// AuthHandler handles registration, login and password reset requests
type AuthHandler struct {
	credentials *service.CredentialStore
	sessions    *service.SessionManager
	resets      *service.PasswordResetFlow
	mailer      WelcomeMailer
	logger      *zap.SugaredLogger

	// resetTokenInResponse echoes reset tokens to the client for local development
	resetTokenInResponse bool
}

// NewAuthHandler creates a new auth handler. mailer may be nil.
func NewAuthHandler(credentials *service.CredentialStore, sessions *service.SessionManager, resets *service.PasswordResetFlow, mailer WelcomeMailer, resetTokenInResponse bool, logger *zap.SugaredLogger) *AuthHandler {
	return &AuthHandler{
		credentials:          credentials,
		sessions:             sessions,
		resets:               resets,
		mailer:               mailer,
		resetTokenInResponse: resetTokenInResponse,
		logger:               logger,
	}
}

type signUpRequest struct {
	Name     string `json:"name"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// SignUp registers a password user
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	name := req.Name
	if strings.TrimSpace(name) == "" {
		name = req.Username
	}
	if strings.TrimSpace(name) == "" || req.Email == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, ErrMissingFields)
		return
	}
	role := req.Role
	if role == "" {
		role = "student"
	}

	user, err := h.credentials.CreateUser(r.Context(), service.NewUserInput{
		Name:     name,
		Email:    req.Email,
		Password: req.Password,
		Role:     role,
	})
	if err != nil {
		respondWithError(w, h.logger, "sign up failed", err)
		return
	}

	h.logger.Infow("User registered", "user_id", user.ID, "role", user.Role)
	if h.mailer != nil {
		if err := h.mailer.SendWelcomeEmail(r.Context(), user.Email, user.Name, string(user.Role)); err != nil {
			h.logger.Errorw("Failed to send welcome email", "user_id", user.ID, "error", err)
		}
	}

	writeSuccess(w, http.StatusCreated, "User registered successfully", map[string]any{
		"user_id": user.ID,
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login verifies the password and issues a session token
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	if req.Email == "" || req.Password == "" {
		writeFailure(w, http.StatusBadRequest, "Email and password required")
		return
	}

	user, err := h.credentials.VerifyPassword(r.Context(), req.Email, req.Password)
	if err != nil {
		// Unknown emails and wrong passwords look the same to the client
		if errors.Is(err, service.ErrNotFound) {
			err = service.ErrInvalidCredentials
		}
		respondWithError(w, h.logger, "login failed", err)
		return
	}

	session, err := h.sessions.Issue(r.Context(), user.ID, h.sessions.TTL())
	if err != nil {
		respondWithError(w, h.logger, "failed to create session", err)
		return
	}

	writeSuccess(w, http.StatusOK, "Login successful", map[string]any{
		"token":      session.Token,
		"expires_at": session.ExpiresAt,
		"user":       newUserView(user),
	})
}

type tokenRequest struct {
	Token string `json:"token"`
}

// Logout revokes the bearer token, or the token in the body. Revoking an
// unknown token still succeeds.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	token := bearerOrBodyToken(r)
	if token == "" {
		writeFailure(w, http.StatusBadRequest, ErrTokenRequired)
		return
	}

	if err := h.sessions.Revoke(r.Context(), token); err != nil {
		respondWithError(w, h.logger, "logout failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Logged out successfully", nil)
}

func bearerOrBodyToken(r *http.Request) string {
	if token := security.BearerToken(r); token != "" {
		return token
	}
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		return ""
	}
	return strings.TrimSpace(req.Token)
}

type forgotPasswordRequest struct {
	Email string `json:"email"`
}

// ForgotPassword starts a password reset. The response is the same whether
// or not the email is registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req forgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil || req.Email == "" {
		writeFailure(w, http.StatusBadRequest, "Email required")
		return
	}

	token, err := h.resets.RequestReset(r.Context(), req.Email)
	if err != nil {
		respondWithError(w, h.logger, "password reset request failed", err)
		return
	}

	fields := map[string]any{}
	if h.resetTokenInResponse && token != "" {
		fields["reset_token"] = token
	}
	writeSuccess(w, http.StatusOK, "If that email is registered, a reset link has been sent.", fields)
}

// CheckResetToken reports whether the token in the query string is redeemable
func (h *AuthHandler) CheckResetToken(w http.ResponseWriter, r *http.Request) {
	token := r.URL.Query().Get("token")
	if token == "" {
		writeFailure(w, http.StatusBadRequest, ErrTokenRequired)
		return
	}
	if err := h.resets.CheckResetToken(r.Context(), token); err != nil {
		respondWithError(w, h.logger, "reset token check failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Token is valid", nil)
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

// ResetPassword redeems a reset token and sets the new password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req resetPasswordRequest
	if err := decodeJSON(r, &req); err != nil || req.Token == "" || req.NewPassword == "" {
		writeFailure(w, http.StatusBadRequest, "Token and new password required")
		return
	}

	if err := h.resets.CompleteReset(r.Context(), req.Token, req.NewPassword); err != nil {
		respondWithError(w, h.logger, "password reset failed", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Password reset successfully", nil)
}
