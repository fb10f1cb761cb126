package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"classroom/internal/models"
	"classroom/internal/repository"
	"classroom/internal/security"
	"classroom/internal/validation"
)

// NewUserInput describes an account to create. Either Password or External
// must be set.
type NewUserInput struct {
	Name           string
	Email          string
	Password       string
	Role           string
	External       models.ExternalIdentity
	ProfilePicture string
}

// CredentialStore owns user records and password verification
type CredentialStore struct {
	users repository.UserStore
	now   func() time.Time
}

// NewCredentialStore creates a new credential store
func NewCredentialStore(users repository.UserStore) *CredentialStore {
	return &CredentialStore{
		users: users,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

// CreateUser validates the input, hashes the password and persists the user
func (s *CredentialStore) CreateUser(ctx context.Context, in NewUserInput) (*models.User, error) {
	if err := validation.ValidateName(in.Name); err != nil {
		return nil, err
	}
	if err := validation.ValidateEmail(in.Email); err != nil {
		return nil, err
	}
	role, err := models.ParseRole(in.Role)
	if err != nil {
		return nil, validation.ValidationError{Field: "role", Message: err.Error()}
	}
	if in.Password != "" || in.External.IsZero() {
		if err := validation.ValidatePassword(in.Password); err != nil {
			return nil, err
		}
	}

	var user *models.User
	if in.Password != "" {
		hash, err := security.HashPassword(in.Password)
		if err != nil {
			return nil, fmt.Errorf("failed to hash password: %w", err)
		}
		user, err = models.NewLocalUser(in.Name, in.Email, hash, role)
		if err != nil {
			return nil, validation.ValidationError{Field: "user", Message: err.Error()}
		}
		user.External = in.External
		user.ProfilePicture = in.ProfilePicture
		// Password sign-ups choose their role up front
		user.ProfileComplete = true
	} else {
		user, err = models.NewOAuthUser(in.Name, in.Email, in.External, in.ProfilePicture)
		if err != nil {
			return nil, validation.ValidationError{Field: "user", Message: err.Error()}
		}
		user.Role = role
	}

	if err := s.users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDuplicateEmail
		}
		return nil, storeError("create user", err)
	}
	return user, nil
}

// VerifyPassword returns the active user with the given email when the
// password matches. Users without a password never match.
func (s *CredentialStore) VerifyPassword(ctx context.Context, email, password string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return nil, storeError("get user", err)
	}
	if !security.CheckPassword(password, user.PasswordHash) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

// ExternalProfile is the optional profile data a provider returns with an identity
type ExternalProfile struct {
	Name    string
	Picture string
}

// LinkExternalIdentity attaches a provider identity to an existing user.
// Relinking the same identity is a no-op; a user linked to a different
// identity, or an identity owned by another user, is a conflict.
func (s *CredentialStore) LinkExternalIdentity(ctx context.Context, userID string, identity models.ExternalIdentity, profile ExternalProfile) (*models.User, error) {
	if identity.Provider == "" || identity.Subject == "" {
		return nil, validation.ValidationError{Field: "identity", Message: "provider and subject are required"}
	}
	if err := s.users.LinkExternalIdentity(ctx, userID, identity, profile.Picture, s.now()); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrDuplicateEmail
		}
		return nil, storeError("link external identity", err)
	}
	return s.GetUser(ctx, userID)
}

// GetUser returns a user by id, including deactivated users
func (s *CredentialStore) GetUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeError("get user", err)
	}
	return user, nil
}

// GetUserByEmail returns the active user with the given email
func (s *CredentialStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	user, err := s.users.GetUserByEmail(ctx, models.NormalizeEmail(email))
	if err != nil {
		return nil, storeError("get user by email", err)
	}
	return user, nil
}

// GetUserByExternalID returns the user linked to a provider identity,
// including a deactivated one
func (s *CredentialStore) GetUserByExternalID(ctx context.Context, identity models.ExternalIdentity) (*models.User, error) {
	user, err := s.users.GetUserByExternalID(ctx, identity.Provider, identity.Subject)
	if err != nil {
		return nil, storeError("get user by external id", err)
	}
	return user, nil
}
