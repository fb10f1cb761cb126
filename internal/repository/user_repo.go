package repository

import (
	"context"
	"fmt"
	"strings"
	"time"

	"classroom/internal/database"
	"classroom/internal/models"
)

const userColumns = `
	id, name, email, COALESCE(password_hash, ''), role,
	COALESCE(oauth_provider, ''), COALESCE(oauth_id, ''),
	profile_picture, class_subject, profile_complete, is_active, created_at, updated_at`

// UserRepository handles SQL operations for users
type UserRepository struct {
	db *database.DB
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *database.DB) *UserRepository {
	return &UserRepository{db: db}
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*models.User, error) {
	user := &models.User{}
	var role string
	err := row.Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.PasswordHash,
		&role,
		&user.External.Provider,
		&user.External.Subject,
		&user.ProfilePicture,
		&user.ClassSubject,
		&user.ProfileComplete,
		&user.IsActive,
		&user.CreatedAt,
		&user.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	user.Role = models.Role(role)
	return user, nil
}

// CreateUser inserts a new user and assigns its ID
func (r *UserRepository) CreateUser(ctx context.Context, user *models.User) error {
	if err := user.Validate(); err != nil {
		return err
	}

	id := newID()
	query := `
		INSERT INTO users (id, name, email, password_hash, role, oauth_provider, oauth_id,
			profile_picture, class_subject, profile_complete, is_active, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		id,
		user.Name,
		user.Email,
		nullString(user.PasswordHash),
		string(user.Role),
		nullString(user.External.Provider),
		nullString(user.External.Subject),
		user.ProfilePicture,
		user.ClassSubject,
		user.ProfileComplete,
		user.IsActive,
		user.CreatedAt.UTC(),
		user.UpdatedAt.UTC(),
	)
	if err != nil {
		return sqlError(r.db.Dialect, "create user", err)
	}

	user.ID = id
	return nil
}

// GetUserByID retrieves a user by ID, active or not
func (r *UserRepository) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := "SELECT " + userColumns + " FROM users WHERE id = ?"
	user, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		return nil, sqlError(r.db.Dialect, "get user", err)
	}
	return user, nil
}

// GetUserByEmail retrieves the active user with the given normalized email
func (r *UserRepository) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE email = ? AND is_active = " + r.db.Dialect.BoolValue(true)
	user, err := scanUser(r.db.QueryRowContext(ctx, query, models.NormalizeEmail(email)))
	if err != nil {
		return nil, sqlError(r.db.Dialect, "get user by email", err)
	}
	return user, nil
}

// GetUserByExternalID retrieves the user linked to a provider identity,
// active or not
func (r *UserRepository) GetUserByExternalID(ctx context.Context, provider, subject string) (*models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE oauth_provider = ? AND oauth_id = ?"
	user, err := scanUser(r.db.QueryRowContext(ctx, query, provider, subject))
	if err != nil {
		return nil, sqlError(r.db.Dialect, "get user by external id", err)
	}
	return user, nil
}

// UpdateUser updates the profile fields of a user
func (r *UserRepository) UpdateUser(ctx context.Context, user *models.User) error {
	if !validID(user.ID) {
		return ErrNotFound
	}
	query := `
		UPDATE users
		SET name = ?, email = ?, role = ?, profile_picture = ?, class_subject = ?, profile_complete = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		user.Name,
		models.NormalizeEmail(user.Email),
		string(user.Role),
		user.ProfilePicture,
		user.ClassSubject,
		user.ProfileComplete,
		user.UpdatedAt.UTC(),
		user.ID,
	)
	if err != nil {
		return sqlError(r.db.Dialect, "update user", err)
	}
	return requireAffected(result)
}

// UpdatePassword replaces the password hash of a user
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error {
	if !validID(id) {
		return ErrNotFound
	}
	query := "UPDATE users SET password_hash = ?, updated_at = ? WHERE id = ?"
	result, err := r.db.ExecContext(ctx, query, passwordHash, at.UTC(), id)
	if err != nil {
		return sqlError(r.db.Dialect, "update password", err)
	}
	return requireAffected(result)
}

// LinkExternalIdentity links a user to a provider identity. It fails with
// ErrConflict when the user is already linked to a different identity.
func (r *UserRepository) LinkExternalIdentity(ctx context.Context, id string, identity models.ExternalIdentity, picture string, at time.Time) error {
	if !validID(id) {
		return ErrNotFound
	}
	query := `
		UPDATE users
		SET oauth_provider = ?, oauth_id = ?,
			profile_picture = CASE WHEN ? <> '' THEN ? ELSE profile_picture END,
			updated_at = ?
		WHERE id = ?
		AND (oauth_id IS NULL OR (oauth_provider = ? AND oauth_id = ?))
	`
	result, err := r.db.ExecContext(ctx, query,
		identity.Provider, identity.Subject,
		picture, picture,
		at.UTC(),
		id,
		identity.Provider, identity.Subject,
	)
	if err != nil {
		return sqlError(r.db.Dialect, "link external identity", err)
	}

	if err := requireAffected(result); err != nil {
		// Distinguish a missing user from one linked elsewhere
		if _, getErr := r.GetUserByID(ctx, id); getErr != nil {
			return getErr
		}
		return fmt.Errorf("user already linked to another identity: %w", ErrConflict)
	}
	return nil
}

// DeactivateUser soft-deletes a user
func (r *UserRepository) DeactivateUser(ctx context.Context, id string, at time.Time) error {
	if !validID(id) {
		return ErrNotFound
	}
	query := "UPDATE users SET is_active = " + r.db.Dialect.BoolValue(false) + ", updated_at = ? WHERE id = ?"
	result, err := r.db.ExecContext(ctx, query, at.UTC(), id)
	if err != nil {
		return sqlError(r.db.Dialect, "deactivate user", err)
	}
	return requireAffected(result)
}

// ListUsersByRole retrieves all active users with a role
func (r *UserRepository) ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error) {
	query := "SELECT " + userColumns + " FROM users WHERE role = ? AND is_active = " + r.db.Dialect.BoolValue(true) + " ORDER BY name"
	return r.queryUsers(ctx, query, string(role))
}

// ListUsers retrieves every user, including inactive ones
func (r *UserRepository) ListUsers(ctx context.Context) ([]models.User, error) {
	return r.queryUsers(ctx, "SELECT "+userColumns+" FROM users ORDER BY created_at")
}

// SearchStudentsByEmail retrieves up to limit active students whose email
// contains fragment, ignoring case
func (r *UserRepository) SearchStudentsByEmail(ctx context.Context, fragment string, limit int) ([]models.User, error) {
	pattern := "%" + likeEscaper.Replace(strings.ToLower(fragment)) + "%"
	query := "SELECT " + userColumns + " FROM users WHERE role = ? AND is_active = " + r.db.Dialect.BoolValue(true) +
		" AND LOWER(email) LIKE ? ESCAPE '!' ORDER BY email LIMIT ?"
	return r.queryUsers(ctx, query, string(models.RoleStudent), pattern, limit)
}

// likeEscaper quotes LIKE wildcards with '!', which no dialect treats
// specially inside string literals
var likeEscaper = strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")

func (r *UserRepository) queryUsers(ctx context.Context, query string, args ...interface{}) ([]models.User, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlError(r.db.Dialect, "query users", err)
	}
	defer rows.Close()

	users := []models.User{}
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, *user)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError(r.db.Dialect, "iterate users", err)
	}
	return users, nil
}

type rowsAffecter interface {
	RowsAffected() (int64, error)
}

// requireAffected turns an update that touched no rows into ErrNotFound
func requireAffected(result rowsAffecter) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
