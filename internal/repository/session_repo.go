package repository

import (
	"context"
	"time"

	"classroom/internal/database"
	"classroom/internal/models"
)

// SessionRepository handles SQL operations for sessions
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// CreateSession stores a new session
func (r *SessionRepository) CreateSession(ctx context.Context, session *models.Session) error {
	query := `
		INSERT INTO sessions (token_hash, user_id, created_at, expires_at)
		VALUES (?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, session.TokenHash, session.UserID, session.CreatedAt.UTC(), session.ExpiresAt.UTC())
	if err != nil {
		return sqlError(r.db.Dialect, "create session", err)
	}
	return nil
}

// GetSession retrieves a session by token digest. Expiry is left to the caller.
func (r *SessionRepository) GetSession(ctx context.Context, tokenHash string) (*models.Session, error) {
	query := `
		SELECT token_hash, user_id, created_at, expires_at
		FROM sessions
		WHERE token_hash = ?
	`
	session := &models.Session{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&session.TokenHash,
		&session.UserID,
		&session.CreatedAt,
		&session.ExpiresAt,
	)
	if err != nil {
		return nil, sqlError(r.db.Dialect, "get session", err)
	}
	return session, nil
}

// DeleteSession removes a session. Deleting a missing session is not an error.
func (r *SessionRepository) DeleteSession(ctx context.Context, tokenHash string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE token_hash = ?", tokenHash)
	if err != nil {
		return sqlError(r.db.Dialect, "delete session", err)
	}
	return nil
}

// DeleteUserSessions removes every session of a user
func (r *SessionRepository) DeleteUserSessions(ctx context.Context, userID string) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE user_id = ?", userID)
	if err != nil {
		return 0, sqlError(r.db.Dialect, "delete user sessions", err)
	}
	return result.RowsAffected()
}

// DeleteExpiredSessions removes all sessions expired at now
func (r *SessionRepository) DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM sessions WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, sqlError(r.db.Dialect, "delete expired sessions", err)
	}
	return result.RowsAffected()
}

// ResetTokenRepository handles SQL operations for password reset tokens
type ResetTokenRepository struct {
	db *database.DB
}

// NewResetTokenRepository creates a new reset token repository
func NewResetTokenRepository(db *database.DB) *ResetTokenRepository {
	return &ResetTokenRepository{db: db}
}

// CreateResetToken stores a new reset token
func (r *ResetTokenRepository) CreateResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	query := `
		INSERT INTO password_reset_tokens (token_hash, user_id, created_at, expires_at, used)
		VALUES (?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, token.TokenHash, token.UserID, token.CreatedAt.UTC(), token.ExpiresAt.UTC(), token.Used)
	if err != nil {
		return sqlError(r.db.Dialect, "create reset token", err)
	}
	return nil
}

// GetResetToken retrieves a reset token by digest
func (r *ResetTokenRepository) GetResetToken(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error) {
	query := `
		SELECT token_hash, user_id, created_at, expires_at, used
		FROM password_reset_tokens
		WHERE token_hash = ?
	`
	token := &models.PasswordResetToken{}
	err := r.db.QueryRowContext(ctx, query, tokenHash).Scan(
		&token.TokenHash,
		&token.UserID,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.Used,
	)
	if err != nil {
		return nil, sqlError(r.db.Dialect, "get reset token", err)
	}
	return token, nil
}

// ConsumeResetToken marks the token used if it is still unused and unexpired.
// The conditional UPDATE is the single point of consumption.
func (r *ResetTokenRepository) ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error) {
	query := `
		UPDATE password_reset_tokens
		SET used = ` + r.db.Dialect.BoolValue(true) + `
		WHERE token_hash = ? AND used = ` + r.db.Dialect.BoolValue(false) + ` AND expires_at > ?
	`
	result, err := r.db.ExecContext(ctx, query, tokenHash, now.UTC())
	if err != nil {
		return nil, sqlError(r.db.Dialect, "consume reset token", err)
	}
	if err := requireAffected(result); err != nil {
		return nil, err
	}
	return r.GetResetToken(ctx, tokenHash)
}

// DeleteUserResetTokens removes all reset tokens of a user
func (r *ResetTokenRepository) DeleteUserResetTokens(ctx context.Context, userID string) error {
	_, err := r.db.ExecContext(ctx, "DELETE FROM password_reset_tokens WHERE user_id = ?", userID)
	if err != nil {
		return sqlError(r.db.Dialect, "delete user reset tokens", err)
	}
	return nil
}

// DeleteExpiredResetTokens removes all reset tokens expired at now
func (r *ResetTokenRepository) DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, "DELETE FROM password_reset_tokens WHERE expires_at <= ?", now.UTC())
	if err != nil {
		return 0, sqlError(r.db.Dialect, "delete expired reset tokens", err)
	}
	return result.RowsAffected()
}
