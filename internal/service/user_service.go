package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"classroom/internal/models"
	"classroom/internal/repository"
	"classroom/internal/validation"
)

// UpdateUserInput holds the profile fields a user may change. Nil fields are
// left untouched.
type UpdateUserInput struct {
	Name           *string
	Email          *string
	ProfilePicture *string
	ClassSubject   *string
}

// UserService handles profiles, role preferences and the user directory
type UserService struct {
	users    repository.UserStore
	sessions *SessionManager
	logger   *zap.SugaredLogger
	now      func() time.Time
}

// NewUserService creates a new user service
func NewUserService(users repository.UserStore, sessions *SessionManager, logger *zap.SugaredLogger) *UserService {
	return &UserService{
		users:    users,
		sessions: sessions,
		logger:   logger,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// GetProfile returns an active user by id
func (s *UserService) GetProfile(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.GetUserByID(ctx, id)
	if err != nil {
		return nil, storeError("get user", err)
	}
	if !user.IsActive {
		return nil, ErrNotFound
	}
	return user, nil
}

// UpdateProfile applies the changes to the actor's own record
func (s *UserService) UpdateProfile(ctx context.Context, actor *models.User, id string, in UpdateUserInput) (*models.User, error) {
	if actor.ID != id {
		return nil, ErrForbidden
	}
	user, err := s.GetProfile(ctx, id)
	if err != nil {
		return nil, err
	}

	if in.Name != nil {
		if err := validation.ValidateName(*in.Name); err != nil {
			return nil, err
		}
		user.Name = strings.TrimSpace(*in.Name)
	}
	if in.Email != nil {
		if err := validation.ValidateEmail(*in.Email); err != nil {
			return nil, err
		}
		user.Email = models.NormalizeEmail(*in.Email)
	}
	if in.ProfilePicture != nil {
		user.ProfilePicture = strings.TrimSpace(*in.ProfilePicture)
	}
	if in.ClassSubject != nil {
		user.ClassSubject = strings.TrimSpace(*in.ClassSubject)
	}

	return user, s.save(ctx, user)
}

// SetPreferences records the role and class or subject chosen after the
// first OAuth login and marks the profile complete
func (s *UserService) SetPreferences(ctx context.Context, actor *models.User, role, classSubject string) (*models.User, error) {
	if err := validation.ValidateRole(role); err != nil {
		return nil, err
	}
	parsed, err := models.ParseRole(role)
	if err != nil {
		return nil, validation.ValidationError{Field: "role", Message: err.Error()}
	}

	user, err := s.GetProfile(ctx, actor.ID)
	if err != nil {
		return nil, err
	}
	user.Role = parsed
	user.ClassSubject = strings.TrimSpace(classSubject)
	user.ProfileComplete = true

	return user, s.save(ctx, user)
}

func (s *UserService) save(ctx context.Context, user *models.User) error {
	user.UpdatedAt = s.now()
	if err := s.users.UpdateUser(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrDuplicateEmail
		}
		return storeError("update user", err)
	}
	return nil
}

// Deactivate soft-deletes the actor's own account and ends its sessions
func (s *UserService) Deactivate(ctx context.Context, actor *models.User, id string) error {
	if actor.ID != id {
		return ErrForbidden
	}
	if err := s.users.DeactivateUser(ctx, id, s.now()); err != nil {
		return storeError("deactivate user", err)
	}
	revoked, err := s.sessions.RevokeAll(ctx, id)
	if err != nil {
		return err
	}
	s.logger.Infow("User deactivated", "user_id", id, "sessions_revoked", revoked)
	return nil
}

// ListStudents returns the active students
func (s *UserService) ListStudents(ctx context.Context) ([]models.User, error) {
	return s.listByRole(ctx, models.RoleStudent)
}

// ListTeachers returns the active teachers
func (s *UserService) ListTeachers(ctx context.Context) ([]models.User, error) {
	return s.listByRole(ctx, models.RoleTeacher)
}

func (s *UserService) listByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	users, err := s.users.ListUsersByRole(ctx, role)
	if err != nil {
		return nil, storeError("list users", err)
	}
	return users, nil
}

// ExportUsers returns every user record, including deactivated ones
func (s *UserService) ExportUsers(ctx context.Context) ([]models.User, error) {
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, storeError("export users", err)
	}
	return users, nil
}
