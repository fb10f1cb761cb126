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

// IssuedSession is returned to the client once; only the token digest is stored
type IssuedSession struct {
	Token     string
	UserID    string
	ExpiresAt time.Time
}

// SessionManager issues, validates and revokes bearer tokens
type SessionManager struct {
	sessions    repository.SessionStore
	credentials *CredentialStore
	ttl         time.Duration
	logger      *zap.SugaredLogger
	metrics     *metrics.Metrics
	now         func() time.Time
}

// NewSessionManager creates a new session manager
func NewSessionManager(sessions repository.SessionStore, credentials *CredentialStore, ttl time.Duration, logger *zap.SugaredLogger, m *metrics.Metrics) *SessionManager {
	return &SessionManager{
		sessions:    sessions,
		credentials: credentials,
		ttl:         ttl,
		logger:      logger,
		metrics:     m,
		now:         func() time.Time { return time.Now().UTC() },
	}
}

// TTL returns the default session lifetime
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Issue creates a session for the user. A zero ttl yields a session that is
// already expired.
func (m *SessionManager) Issue(ctx context.Context, userID string, ttl time.Duration) (*IssuedSession, error) {
	if ttl < 0 {
		return nil, validation.ValidationError{Field: "ttl", Message: "ttl must not be negative"}
	}
	if userID == "" {
		return nil, validation.ValidationError{Field: "user_id", Message: "user_id is required"}
	}

	token, err := security.GenerateToken()
	if err != nil {
		return nil, err
	}

	now := m.now()
	session := &models.Session{
		TokenHash: security.HashToken(token),
		UserID:    userID,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
	if err := m.sessions.CreateSession(ctx, session); err != nil {
		return nil, storeError("create session", err)
	}

	m.metrics.SessionsIssued.Inc()
	return &IssuedSession{Token: token, UserID: userID, ExpiresAt: session.ExpiresAt}, nil
}

// Validate returns the user id owning a live session. Expired sessions are
// deleted as they are found.
func (m *SessionManager) Validate(ctx context.Context, token string) (string, error) {
	if token == "" {
		m.metrics.AuthFailures.WithLabelValues("missing").Inc()
		return "", ErrUnauthenticated
	}

	tokenHash := security.HashToken(token)
	session, err := m.sessions.GetSession(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			m.metrics.AuthFailures.WithLabelValues("unknown").Inc()
			return "", ErrUnauthenticated
		}
		return "", storeError("get session", err)
	}

	if session.IsExpired(m.now()) {
		if err := m.sessions.DeleteSession(ctx, tokenHash); err != nil {
			m.logger.Warnw("Failed to delete expired session", "user_id", session.UserID, "error", err)
		}
		m.metrics.AuthFailures.WithLabelValues("expired").Inc()
		return "", ErrSessionExpired
	}

	return session.UserID, nil
}

// Authenticate validates the token and loads its active user
func (m *SessionManager) Authenticate(ctx context.Context, token string) (*models.User, error) {
	userID, err := m.Validate(ctx, token)
	if err != nil {
		return nil, err
	}
	user, err := m.credentials.GetUser(ctx, userID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrUnauthenticated
		}
		return nil, err
	}
	if !user.IsActive {
		m.metrics.AuthFailures.WithLabelValues("inactive").Inc()
		return nil, ErrUnauthenticated
	}
	return user, nil
}

// Revoke deletes a session. Unknown tokens are not an error.
func (m *SessionManager) Revoke(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	if err := m.sessions.DeleteSession(ctx, security.HashToken(token)); err != nil {
		return storeError("delete session", err)
	}
	return nil
}

// RevokeAll deletes every session of the user
func (m *SessionManager) RevokeAll(ctx context.Context, userID string) (int64, error) {
	n, err := m.sessions.DeleteUserSessions(ctx, userID)
	if err != nil {
		return 0, storeError("delete user sessions", err)
	}
	return n, nil
}

// Sweep deletes expired sessions
func (m *SessionManager) Sweep(ctx context.Context) (int64, error) {
	n, err := m.sessions.DeleteExpiredSessions(ctx, m.now())
	if err != nil {
		return 0, fmt.Errorf("failed to sweep sessions: %w", err)
	}
	m.metrics.SessionsSwept.Add(float64(n))
	return n, nil
}
