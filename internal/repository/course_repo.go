package repository

import (
	"context"
	"fmt"

	"classroom/internal/database"
	"classroom/internal/models"
)

const courseColumns = `
	id, owner_id, name, teacher_name, subject, schedule, location,
	contact_info, fees, description, created_at, updated_at`

// CourseRepository handles SQL operations for courses and enrollments
type CourseRepository struct {
	db *database.DB
}

// NewCourseRepository creates a new course repository
func NewCourseRepository(db *database.DB) *CourseRepository {
	return &CourseRepository{db: db}
}

// CreateCourse inserts a new course and assigns its ID
func (r *CourseRepository) CreateCourse(ctx context.Context, c *models.Course) error {
	id := newID()
	query := `
		INSERT INTO courses (id, owner_id, name, teacher_name, subject, schedule, location,
			contact_info, fees, description, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		id, c.OwnerID, c.Name, c.TeacherName, c.Subject, c.Schedule, c.Location,
		c.ContactInfo, c.Fees, c.Description, c.CreatedAt.UTC(), c.UpdatedAt.UTC())
	if err != nil {
		return sqlError(r.db.Dialect, "create course", err)
	}
	c.ID = id
	return nil
}

// GetCourse retrieves a course by ID
func (r *CourseRepository) GetCourse(ctx context.Context, id string) (*models.Course, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	courses, err := r.queryCourses(ctx, "SELECT "+courseColumns+" FROM courses WHERE id = ?", id)
	if err != nil {
		return nil, err
	}
	if len(courses) == 0 {
		return nil, ErrNotFound
	}
	return &courses[0], nil
}

// ListCoursesByOwner retrieves the courses of a teacher, newest first
func (r *CourseRepository) ListCoursesByOwner(ctx context.Context, ownerID string) ([]models.Course, error) {
	if !validID(ownerID) {
		return []models.Course{}, nil
	}
	return r.queryCourses(ctx, "SELECT "+courseColumns+" FROM courses WHERE owner_id = ? ORDER BY created_at DESC", ownerID)
}

// UpdateCourse replaces the descriptive fields of a course
func (r *CourseRepository) UpdateCourse(ctx context.Context, c *models.Course) error {
	if !validID(c.ID) {
		return ErrNotFound
	}
	query := `
		UPDATE courses
		SET name = ?, teacher_name = ?, subject = ?, schedule = ?, location = ?,
			contact_info = ?, fees = ?, description = ?, updated_at = ?
		WHERE id = ?
	`
	result, err := r.db.ExecContext(ctx, query,
		c.Name, c.TeacherName, c.Subject, c.Schedule, c.Location,
		c.ContactInfo, c.Fees, c.Description, c.UpdatedAt.UTC(), c.ID)
	if err != nil {
		return sqlError(r.db.Dialect, "update course", err)
	}
	return requireAffected(result)
}

// DeleteCourse removes a course. Enrollments, exams and exam results go with
// it through ON DELETE CASCADE.
func (r *CourseRepository) DeleteCourse(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, "DELETE FROM courses WHERE id = ?", id)
	if err != nil {
		return sqlError(r.db.Dialect, "delete course", err)
	}
	return requireAffected(result)
}

// Enroll adds a student to a course
func (r *CourseRepository) Enroll(ctx context.Context, e *models.Enrollment) error {
	if !validID(e.CourseID) || !validID(e.StudentID) {
		return ErrNotFound
	}
	query := "INSERT INTO course_enrollments (course_id, student_id, teacher_id, enrolled_at) VALUES (?, ?, ?, ?)"
	if _, err := r.db.ExecContext(ctx, query, e.CourseID, e.StudentID, e.TeacherID, e.EnrolledAt.UTC()); err != nil {
		return sqlError(r.db.Dialect, "enroll student", err)
	}
	return nil
}

// Unenroll removes a student from a course
func (r *CourseRepository) Unenroll(ctx context.Context, courseID, studentID string) error {
	if !validID(courseID) || !validID(studentID) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, "DELETE FROM course_enrollments WHERE course_id = ? AND student_id = ?", courseID, studentID)
	if err != nil {
		return sqlError(r.db.Dialect, "unenroll student", err)
	}
	return requireAffected(result)
}

// IsEnrolled reports whether a student is enrolled in a course
func (r *CourseRepository) IsEnrolled(ctx context.Context, courseID, studentID string) (bool, error) {
	if !validID(courseID) || !validID(studentID) {
		return false, nil
	}
	var n int
	query := "SELECT COUNT(*) FROM course_enrollments WHERE course_id = ? AND student_id = ?"
	if err := r.db.QueryRowContext(ctx, query, courseID, studentID).Scan(&n); err != nil {
		return false, sqlError(r.db.Dialect, "check enrollment", err)
	}
	return n > 0, nil
}

// ListEnrollments retrieves the enrollments of a course in enrollment order
func (r *CourseRepository) ListEnrollments(ctx context.Context, courseID string) ([]models.Enrollment, error) {
	if !validID(courseID) {
		return []models.Enrollment{}, nil
	}
	return r.queryEnrollments(ctx, `
		SELECT course_id, student_id, teacher_id, enrolled_at
		FROM course_enrollments WHERE course_id = ?
		ORDER BY enrolled_at`, courseID)
}

// ListStudentEnrollments retrieves the enrollments of a student, newest first
func (r *CourseRepository) ListStudentEnrollments(ctx context.Context, studentID string) ([]models.Enrollment, error) {
	if !validID(studentID) {
		return []models.Enrollment{}, nil
	}
	return r.queryEnrollments(ctx, `
		SELECT course_id, student_id, teacher_id, enrolled_at
		FROM course_enrollments WHERE student_id = ?
		ORDER BY enrolled_at DESC`, studentID)
}

func (r *CourseRepository) queryCourses(ctx context.Context, query string, args ...interface{}) ([]models.Course, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlError(r.db.Dialect, "query courses", err)
	}
	defer rows.Close()

	courses := []models.Course{}
	for rows.Next() {
		var c models.Course
		err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.TeacherName, &c.Subject, &c.Schedule, &c.Location,
			&c.ContactInfo, &c.Fees, &c.Description, &c.CreatedAt, &c.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan course: %w", err)
		}
		courses = append(courses, c)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError(r.db.Dialect, "iterate courses", err)
	}
	return courses, nil
}

func (r *CourseRepository) queryEnrollments(ctx context.Context, query string, args ...interface{}) ([]models.Enrollment, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlError(r.db.Dialect, "query enrollments", err)
	}
	defer rows.Close()

	enrollments := []models.Enrollment{}
	for rows.Next() {
		var e models.Enrollment
		if err := rows.Scan(&e.CourseID, &e.StudentID, &e.TeacherID, &e.EnrolledAt); err != nil {
			return nil, fmt.Errorf("failed to scan enrollment: %w", err)
		}
		enrollments = append(enrollments, e)
	}
	return enrollments, rows.Err()
}
