package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"classroom/internal/metrics"
	"classroom/internal/models"
	"classroom/internal/repository"
	"classroom/internal/security"
	"classroom/internal/validation"
)

// Mailer delivers password reset links
type Mailer interface {
	SendPasswordResetEmail(ctx context.Context, toEmail, toName, token string, ttl time.Duration) error
}

// PasswordResetFlow issues and redeems single-use password reset tokens
type PasswordResetFlow struct {
	tokens   repository.ResetTokenStore
	users    repository.UserStore
	sessions *SessionManager
	mailer   Mailer
	ttl      time.Duration
	logger   *zap.SugaredLogger
	metrics  *metrics.Metrics
	now      func() time.Time
}

// NewPasswordResetFlow creates a new password reset flow
func NewPasswordResetFlow(tokens repository.ResetTokenStore, users repository.UserStore, sessions *SessionManager, mailer Mailer, ttl time.Duration, logger *zap.SugaredLogger, m *metrics.Metrics) *PasswordResetFlow {
	return &PasswordResetFlow{
		tokens:   tokens,
		users:    users,
		sessions: sessions,
		mailer:   mailer,
		ttl:      ttl,
		logger:   logger,
		metrics:  m,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// RequestReset creates a reset token for the active user with the given email
// and mails it. Unknown emails and accounts without a password succeed
// without a token so the response does not reveal which emails exist.
// The plaintext token is returned for development use only.
func (f *PasswordResetFlow) RequestReset(ctx context.Context, email string) (string, error) {
	if err := validation.ValidateEmail(email); err != nil {
		return "", err
	}
	f.metrics.ResetRequests.Inc()

	user, err := f.users.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			f.logger.Infow("Password reset requested for unknown email")
			return "", nil
		}
		return "", storeError("get user by email", err)
	}

	// OAuth-only accounts sign in through their provider
	if !user.HasPassword() {
		f.logger.Infow("Password reset skipped for account without password", "user_id", user.ID)
		return "", nil
	}

	// Only the newest token is redeemable
	if err := f.tokens.DeleteUserResetTokens(ctx, user.ID); err != nil {
		return "", storeError("delete previous reset tokens", err)
	}

	token, err := security.GenerateToken()
	if err != nil {
		return "", err
	}
	now := f.now()
	record := &models.PasswordResetToken{
		TokenHash: security.HashToken(token),
		UserID:    user.ID,
		ExpiresAt: now.Add(f.ttl),
		CreatedAt: now,
	}
	if err := f.tokens.CreateResetToken(ctx, record); err != nil {
		return "", storeError("create reset token", err)
	}

	if f.mailer != nil {
		if err := f.mailer.SendPasswordResetEmail(ctx, user.Email, user.Name, token, f.ttl); err != nil {
			f.logger.Errorw("Failed to send password reset email", "user_id", user.ID, "error", err)
		}
	}

	return token, nil
}

// CheckResetToken reports whether a token can still be redeemed
func (f *PasswordResetFlow) CheckResetToken(ctx context.Context, token string) error {
	if token == "" {
		return ErrInvalidOrExpiredToken
	}
	record, err := f.tokens.GetResetToken(ctx, security.HashToken(token))
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return storeError("get reset token", err)
	}
	if record.Used || record.IsExpired(f.now()) {
		return ErrInvalidOrExpiredToken
	}
	return nil
}

// CompleteReset redeems the token, sets the new password and revokes every
// session of the user. A token succeeds at most once even under concurrent
// use. An unusable token is reported before the new password is validated,
// and a rejected password leaves the token redeemable.
func (f *PasswordResetFlow) CompleteReset(ctx context.Context, token, newPassword string) error {
	if err := f.CheckResetToken(ctx, token); err != nil {
		return err
	}
	if err := validation.ValidatePassword(newPassword); err != nil {
		return err
	}

	record, err := f.tokens.ConsumeResetToken(ctx, security.HashToken(token), f.now())
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrInvalidOrExpiredToken
		}
		return storeError("consume reset token", err)
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}
	if err := f.users.UpdatePassword(ctx, record.UserID, hash, f.now()); err != nil {
		return storeError("update password", err)
	}

	revoked, err := f.sessions.RevokeAll(ctx, record.UserID)
	if err != nil {
		return err
	}

	f.metrics.ResetsCompleted.Inc()
	f.logger.Infow("Password reset completed", "user_id", record.UserID, "sessions_revoked", revoked)
	return nil
}

// Sweep deletes expired reset tokens
func (f *PasswordResetFlow) Sweep(ctx context.Context) (int64, error) {
	n, err := f.tokens.DeleteExpiredResetTokens(ctx, f.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep reset tokens: %w", err)
	}
	f.metrics.ResetTokensSwept.Add(float64(n))
	return n, nil
}
