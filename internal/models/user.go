package models

import (
	"errors"
	"strings"
	"time"
)

// Role is the school role of a user
type Role string

const (
	RoleStudent Role = "student"
	RoleTeacher Role = "teacher"
)

// ParseRole normalizes a role string, defaulting to student when empty
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case "", RoleStudent:
		return RoleStudent, nil
	case RoleTeacher:
		return RoleTeacher, nil
	default:
		return "", errors.New("role must be student or teacher")
	}
}

// AuthMethod describes how a user is able to authenticate
type AuthMethod int

const (
	AuthNone AuthMethod = iota
	AuthLocal
	AuthOAuth
	AuthHybrid
)

func (m AuthMethod) String() string {
	switch m {
	case AuthLocal:
		return "local"
	case AuthOAuth:
		return "oauth"
	case AuthHybrid:
		return "hybrid"
	default:
		return "none"
	}
}

// ErrNoAuthMethod is returned when a user has neither a password nor an external identity
var ErrNoAuthMethod = errors.New("user must have a password or a linked external identity")

// ExternalIdentity is an identity asserted by a third-party OAuth provider
type ExternalIdentity struct {
	Provider string
	Subject  string
}

// IsZero reports whether no identity is set
func (e ExternalIdentity) IsZero() bool {
	return e.Provider == "" && e.Subject == ""
}

// User represents a student or teacher account
type User struct {
	ID              string
	Name            string
	Email           string
	PasswordHash    string
	Role            Role
	External        ExternalIdentity
	ProfilePicture  string
	ClassSubject    string
	ProfileComplete bool
	IsActive        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// NewLocalUser builds an active password-only user
func NewLocalUser(name, email, passwordHash string, role Role) (*User, error) {
	u := newUser(name, email, role)
	u.PasswordHash = passwordHash
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

// NewOAuthUser builds an active user that authenticates only through a provider
func NewOAuthUser(name, email string, identity ExternalIdentity, picture string) (*User, error) {
	u := newUser(name, email, RoleStudent)
	u.External = identity
	u.ProfilePicture = picture
	if err := u.Validate(); err != nil {
		return nil, err
	}
	return u, nil
}

func newUser(name, email string, role Role) *User {
	now := time.Now().UTC()
	return &User{
		Name:      strings.TrimSpace(name),
		Email:     NormalizeEmail(email),
		Role:      role,
		IsActive:  true,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// AuthMethod derives the authentication variant of the user
func (u *User) AuthMethod() AuthMethod {
	hasPassword := u.PasswordHash != ""
	hasExternal := u.External.Provider != "" && u.External.Subject != ""
	switch {
	case hasPassword && hasExternal:
		return AuthHybrid
	case hasPassword:
		return AuthLocal
	case hasExternal:
		return AuthOAuth
	default:
		return AuthNone
	}
}

// Validate checks the record invariants before it is persisted
func (u *User) Validate() error {
	if u.Email == "" {
		return errors.New("email is required")
	}
	if u.Role != RoleStudent && u.Role != RoleTeacher {
		return errors.New("role must be student or teacher")
	}
	if u.AuthMethod() == AuthNone {
		return ErrNoAuthMethod
	}
	return nil
}

// HasPassword reports whether the user can log in with a password
func (u *User) HasPassword() bool {
	return u.PasswordHash != ""
}

// NormalizeEmail lowercases and trims an email for storage and lookup
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Session represents an authenticated session. Only the token digest is stored.
type Session struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
}

// IsExpired checks if the session has expired at the given instant
func (s *Session) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// PasswordResetToken represents a token for password reset
type PasswordResetToken struct {
	TokenHash string
	UserID    string
	ExpiresAt time.Time
	CreatedAt time.Time
	Used      bool
}

// IsExpired checks if the reset token has expired at the given instant
func (t *PasswordResetToken) IsExpired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}
