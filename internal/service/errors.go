package service

import (
	"errors"
	"fmt"

	"classroom/internal/database"
	"classroom/internal/repository"
)

var (
	ErrDuplicateEmail        = errors.New("email already registered")
	ErrNotFound              = errors.New("not found")
	ErrInvalidCredentials    = errors.New("invalid email or password")
	ErrUnauthenticated       = errors.New("authentication required")
	ErrSessionExpired        = errors.New("session expired")
	ErrInvalidOrExpiredToken = errors.New("invalid or expired token")
	ErrInvalidState          = errors.New("invalid oauth state")
	ErrProviderError         = errors.New("oauth provider error")
	ErrStoreUnavailable      = errors.New("store unavailable")
	ErrForbidden             = errors.New("forbidden")
	ErrAccountDeactivated    = errors.New("account deactivated")
	ErrAlreadyEnrolled       = errors.New("student already enrolled")
	ErrAlreadySubmitted      = errors.New("exam already submitted")
	ErrExamClosed            = errors.New("exam is not open")
	ErrNotReviewed           = errors.New("result not yet reviewed")
)

// storeError translates a repository error into a service error.
// Conflicts are left to the caller, which knows what the unique key means.
func storeError(op string, err error) error {
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return fmt.Errorf("%s: %w", op, ErrNotFound)
	case errors.Is(err, database.ErrUnavailable):
		return fmt.Errorf("failed to %s: %w: %w", op, ErrStoreUnavailable, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}
