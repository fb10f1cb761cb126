package repository

import (
	"context"
	"errors"
	"time"

	"classroom/internal/models"
)

var (
	// ErrNotFound is returned when no record matches the lookup
	ErrNotFound = errors.New("record not found")
	// ErrConflict is returned when a write violates a unique index
	ErrConflict = errors.New("record conflicts with an existing one")
)

// UserStore persists user records. Lookups by email only consider active
// users; lookups by id or external identity return inactive users too, since
// the identity stays bound to its account.
type UserStore interface {
	CreateUser(ctx context.Context, user *models.User) error
	GetUserByID(ctx context.Context, id string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	GetUserByExternalID(ctx context.Context, provider, subject string) (*models.User, error)
	UpdateUser(ctx context.Context, user *models.User) error
	UpdatePassword(ctx context.Context, id, passwordHash string, at time.Time) error
	LinkExternalIdentity(ctx context.Context, id string, identity models.ExternalIdentity, picture string, at time.Time) error
	DeactivateUser(ctx context.Context, id string, at time.Time) error
	ListUsersByRole(ctx context.Context, role models.Role) ([]models.User, error)
	ListUsers(ctx context.Context) ([]models.User, error)
	SearchStudentsByEmail(ctx context.Context, fragment string, limit int) ([]models.User, error)
}

// SessionStore persists sessions keyed by the digest of their bearer token
type SessionStore interface {
	CreateSession(ctx context.Context, session *models.Session) error
	GetSession(ctx context.Context, tokenHash string) (*models.Session, error)
	DeleteSession(ctx context.Context, tokenHash string) error
	DeleteUserSessions(ctx context.Context, userID string) (int64, error)
	DeleteExpiredSessions(ctx context.Context, now time.Time) (int64, error)
}

// ResetTokenStore persists password reset tokens keyed by digest
type ResetTokenStore interface {
	CreateResetToken(ctx context.Context, token *models.PasswordResetToken) error
	GetResetToken(ctx context.Context, tokenHash string) (*models.PasswordResetToken, error)
	// ConsumeResetToken atomically marks an unused, unexpired token as used
	// and returns it. It returns ErrNotFound when no such token exists, so
	// concurrent callers cannot both consume the same token.
	ConsumeResetToken(ctx context.Context, tokenHash string, now time.Time) (*models.PasswordResetToken, error)
	DeleteUserResetTokens(ctx context.Context, userID string) error
	DeleteExpiredResetTokens(ctx context.Context, now time.Time) (int64, error)
}

// ClassroomStore persists classes, assignments, submissions, grades and announcements
type ClassroomStore interface {
	CreateClass(ctx context.Context, class *models.Class) error
	GetClass(ctx context.Context, id string) (*models.Class, error)
	// AddStudentToClass is idempotent: adding an enrolled student is not an error
	AddStudentToClass(ctx context.Context, classID, studentID string, at time.Time) error
	ListClassesByTeacher(ctx context.Context, teacherID string) ([]models.Class, error)
	ListClassesByStudent(ctx context.Context, studentID string) ([]models.Class, error)

	CreateAssignment(ctx context.Context, assignment *models.Assignment) error
	GetAssignment(ctx context.Context, id string) (*models.Assignment, error)
	CreateSubmission(ctx context.Context, submission *models.Submission) error
	ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error)

	// UpsertGrade inserts or replaces the grade of a student for an assignment
	UpsertGrade(ctx context.Context, grade *models.Grade) error
	ListGradesByStudent(ctx context.Context, studentID string) ([]models.Grade, error)

	CreateAnnouncement(ctx context.Context, announcement *models.Announcement) error
	ListAnnouncements(ctx context.Context, classID string, limit int) ([]models.Announcement, error)
}

// CourseStore persists courses and their enrollments
type CourseStore interface {
	CreateCourse(ctx context.Context, course *models.Course) error
	GetCourse(ctx context.Context, id string) (*models.Course, error)
	ListCoursesByOwner(ctx context.Context, ownerID string) ([]models.Course, error)
	UpdateCourse(ctx context.Context, course *models.Course) error
	// DeleteCourse removes the course with its enrollments, exams and results
	DeleteCourse(ctx context.Context, id string) error

	// Enroll fails with ErrConflict when the student is already enrolled
	Enroll(ctx context.Context, enrollment *models.Enrollment) error
	// Unenroll fails with ErrNotFound when the student is not enrolled
	Unenroll(ctx context.Context, courseID, studentID string) error
	IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error)
	ListEnrollments(ctx context.Context, courseID string) ([]models.Enrollment, error)
	ListStudentEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error)
}

// ExamStore persists exams and exam results
type ExamStore interface {
	CreateExam(ctx context.Context, exam *models.Exam) error
	GetExam(ctx context.Context, id string) (*models.Exam, error)
	ListExamsByCourse(ctx context.Context, courseID string) ([]models.Exam, error)
	ListExamsByCreator(ctx context.Context, creatorID string) ([]models.Exam, error)
	// ListOpenExams returns the non-public exams of the courses that are open at now
	ListOpenExams(ctx context.Context, courseIDs []string, now time.Time) ([]models.Exam, error)
	// DeleteExam removes the exam with its results
	DeleteExam(ctx context.Context, id string) error

	// CreateResult fails with ErrConflict when the student already has a
	// result for the exam. Guest results are never in conflict.
	CreateResult(ctx context.Context, result *models.ExamResult) error
	GetResult(ctx context.Context, id string) (*models.ExamResult, error)
	// ListResultsByExam returns every result of an exam, highest score first
	ListResultsByExam(ctx context.Context, examID string) ([]models.ExamResult, error)
	ListStudentResults(ctx context.Context, courseID, studentID string) ([]models.ExamResult, error)
	// ReviewResult replaces the score and answers of a result and records the review
	ReviewResult(ctx context.Context, result *models.ExamResult) error
}

// Store groups the repositories of one storage backend
type Store struct {
	Users       UserStore
	Sessions    SessionStore
	ResetTokens ResetTokenStore
	Classroom   ClassroomStore
	Courses     CourseStore
	Exams       ExamStore

	ping func(ctx context.Context) error
}

// Ping checks that the backend is reachable
func (s *Store) Ping(ctx context.Context) error {
	if s.ping == nil {
		return nil
	}
	return s.ping(ctx)
}
