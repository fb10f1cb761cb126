package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"classroom/internal/database"
)

var (
	_ UserStore       = (*UserRepository)(nil)
	_ SessionStore    = (*SessionRepository)(nil)
	_ ResetTokenStore = (*ResetTokenRepository)(nil)
	_ ClassroomStore  = (*ClassroomRepository)(nil)
	_ CourseStore     = (*CourseRepository)(nil)
	_ ExamStore       = (*ExamRepository)(nil)
)

// NewSQLStore builds the repositories backed by a SQL database
func NewSQLStore(db *database.DB) *Store {
	return &Store{
		Users:       NewUserRepository(db),
		Sessions:    NewSessionRepository(db),
		ResetTokens: NewResetTokenRepository(db),
		Classroom:   NewClassroomRepository(db),
		Courses:     NewCourseRepository(db),
		Exams:       NewExamRepository(db),
		ping: func(ctx context.Context) error {
			if err := db.PingContext(ctx); err != nil {
				return fmt.Errorf("%w: %v", database.ErrUnavailable, err)
			}
			return nil
		},
	}
}

// newID returns a random UUID for a new SQL record
func newID() string {
	return uuid.NewString()
}

// validID reports whether id can identify a SQL record. Foreign ids, such as
// Mongo object ids, never match and would make PostgreSQL reject the query.
func validID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

// sqlError translates a driver error into a repository error
func sqlError(dialect database.Dialect, op string, err error) error {
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return ErrNotFound
	case dialect.IsUniqueViolation(err):
		return fmt.Errorf("failed to %s: %w", op, ErrConflict)
	case database.IsUnavailable(err):
		return fmt.Errorf("failed to %s: %w: %v", op, database.ErrUnavailable, err)
	default:
		return fmt.Errorf("failed to %s: %w", op, err)
	}
}

// nullString maps "" to SQL NULL
func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nullTime maps a nil time to SQL NULL
func nullTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.UTC()
}

// placeholders returns "?, ?, ?" for n arguments
func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}
