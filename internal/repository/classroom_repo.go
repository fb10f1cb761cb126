package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"classroom/internal/database"
	"classroom/internal/models"
)

// ClassroomRepository handles SQL operations for classes and their coursework
type ClassroomRepository struct {
	db *database.DB
}

// NewClassroomRepository creates a new classroom repository
func NewClassroomRepository(db *database.DB) *ClassroomRepository {
	return &ClassroomRepository{db: db}
}

// CreateClass inserts a class together with its initial students
func (r *ClassroomRepository) CreateClass(ctx context.Context, class *models.Class) error {
	id := newID()
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		query := `
			INSERT INTO classes (id, name, teacher_id, description, subject, created_at)
			VALUES (?, ?, ?, ?, ?, ?)
		`
		if _, err := tx.ExecContext(ctx, query, id, class.Name, class.TeacherID, class.Description, class.Subject, class.CreatedAt.UTC()); err != nil {
			return err
		}
		for _, studentID := range class.StudentIDs {
			if err := addStudent(ctx, tx, id, studentID, class.CreatedAt); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return sqlError(r.db.Dialect, "create class", err)
	}

	class.ID = id
	return nil
}

func addStudent(ctx context.Context, db database.DBTX, classID, studentID string, at time.Time) error {
	query := "INSERT INTO class_students (class_id, student_id, added_at) VALUES (?, ?, ?)"
	_, err := db.ExecContext(ctx, query, classID, studentID, at.UTC())
	if err != nil && db.GetDialect().IsUniqueViolation(err) {
		return nil
	}
	return err
}

// GetClass retrieves a class with its student IDs
func (r *ClassroomRepository) GetClass(ctx context.Context, id string) (*models.Class, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	classes, err := r.queryClasses(ctx, `
		SELECT id, name, teacher_id, description, subject, created_at
		FROM classes WHERE id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(classes) == 0 {
		return nil, ErrNotFound
	}
	return &classes[0], nil
}

// AddStudentToClass enrolls a student; enrolling twice is a no-op
func (r *ClassroomRepository) AddStudentToClass(ctx context.Context, classID, studentID string, at time.Time) error {
	if !validID(classID) || !validID(studentID) {
		return ErrNotFound
	}
	if err := addStudent(ctx, r.db, classID, studentID, at); err != nil {
		return sqlError(r.db.Dialect, "add student to class", err)
	}
	return nil
}

// ListClassesByTeacher retrieves the classes taught by a teacher
func (r *ClassroomRepository) ListClassesByTeacher(ctx context.Context, teacherID string) ([]models.Class, error) {
	if !validID(teacherID) {
		return []models.Class{}, nil
	}
	return r.queryClasses(ctx, `
		SELECT id, name, teacher_id, description, subject, created_at
		FROM classes WHERE teacher_id = ?
		ORDER BY created_at`, teacherID)
}

// ListClassesByStudent retrieves the classes a student is enrolled in
func (r *ClassroomRepository) ListClassesByStudent(ctx context.Context, studentID string) ([]models.Class, error) {
	if !validID(studentID) {
		return []models.Class{}, nil
	}
	return r.queryClasses(ctx, `
		SELECT c.id, c.name, c.teacher_id, c.description, c.subject, c.created_at
		FROM classes c
		JOIN class_students cs ON cs.class_id = c.id
		WHERE cs.student_id = ?
		ORDER BY c.created_at`, studentID)
}

func (r *ClassroomRepository) queryClasses(ctx context.Context, query string, args ...interface{}) ([]models.Class, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlError(r.db.Dialect, "query classes", err)
	}
	defer rows.Close()

	classes := []models.Class{}
	for rows.Next() {
		var c models.Class
		if err := rows.Scan(&c.ID, &c.Name, &c.TeacherID, &c.Description, &c.Subject, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan class: %w", err)
		}
		c.StudentIDs = []string{}
		classes = append(classes, c)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError(r.db.Dialect, "iterate classes", err)
	}
	if err := r.loadStudents(ctx, classes); err != nil {
		return nil, err
	}
	return classes, nil
}

// loadStudents fills StudentIDs for a batch of classes with one query
func (r *ClassroomRepository) loadStudents(ctx context.Context, classes []models.Class) error {
	if len(classes) == 0 {
		return nil
	}
	index := make(map[string]int, len(classes))
	args := make([]interface{}, len(classes))
	for i, c := range classes {
		index[c.ID] = i
		args[i] = c.ID
	}

	query := "SELECT class_id, student_id FROM class_students WHERE class_id IN (" + placeholders(len(args)) + ") ORDER BY added_at"
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return sqlError(r.db.Dialect, "query class students", err)
	}
	defer rows.Close()

	for rows.Next() {
		var classID, studentID string
		if err := rows.Scan(&classID, &studentID); err != nil {
			return fmt.Errorf("failed to scan class student: %w", err)
		}
		if i, ok := index[classID]; ok {
			classes[i].StudentIDs = append(classes[i].StudentIDs, studentID)
		}
	}
	return rows.Err()
}

// CreateAssignment inserts a new assignment
func (r *ClassroomRepository) CreateAssignment(ctx context.Context, a *models.Assignment) error {
	id := newID()
	query := `
		INSERT INTO assignments (id, class_id, teacher_id, title, description, due_date, max_points, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, id, a.ClassID, a.TeacherID, a.Title, a.Description, nullTime(a.DueDate), a.MaxPoints, a.CreatedAt.UTC())
	if err != nil {
		return sqlError(r.db.Dialect, "create assignment", err)
	}
	a.ID = id
	return nil
}

// GetAssignment retrieves an assignment by ID
func (r *ClassroomRepository) GetAssignment(ctx context.Context, id string) (*models.Assignment, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	query := `
		SELECT id, class_id, teacher_id, title, description, due_date, max_points, created_at
		FROM assignments WHERE id = ?
	`
	a := &models.Assignment{}
	var due sql.NullTime
	err := r.db.QueryRowContext(ctx, query, id).Scan(&a.ID, &a.ClassID, &a.TeacherID, &a.Title, &a.Description, &due, &a.MaxPoints, &a.CreatedAt)
	if err != nil {
		return nil, sqlError(r.db.Dialect, "get assignment", err)
	}
	if due.Valid {
		a.DueDate = &due.Time
	}
	return a, nil
}

// CreateSubmission inserts a student's submission
func (r *ClassroomRepository) CreateSubmission(ctx context.Context, s *models.Submission) error {
	id := newID()
	query := `
		INSERT INTO submissions (id, assignment_id, student_id, content, file_url, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, id, s.AssignmentID, s.StudentID, s.Content, s.FileURL, s.SubmittedAt.UTC())
	if err != nil {
		return sqlError(r.db.Dialect, "create submission", err)
	}
	s.ID = id
	return nil
}

// ListSubmissions retrieves the submissions of an assignment, newest first
func (r *ClassroomRepository) ListSubmissions(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	if !validID(assignmentID) {
		return []models.Submission{}, nil
	}
	query := `
		SELECT id, assignment_id, student_id, content, file_url, submitted_at
		FROM submissions WHERE assignment_id = ?
		ORDER BY submitted_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, assignmentID)
	if err != nil {
		return nil, sqlError(r.db.Dialect, "query submissions", err)
	}
	defer rows.Close()

	submissions := []models.Submission{}
	for rows.Next() {
		var s models.Submission
		if err := rows.Scan(&s.ID, &s.AssignmentID, &s.StudentID, &s.Content, &s.FileURL, &s.SubmittedAt); err != nil {
			return nil, fmt.Errorf("failed to scan submission: %w", err)
		}
		submissions = append(submissions, s)
	}
	return submissions, rows.Err()
}

// UpsertGrade inserts the grade or replaces the existing one for the same
// student and assignment
func (r *ClassroomRepository) UpsertGrade(ctx context.Context, g *models.Grade) error {
	var id string
	err := r.db.WithTx(ctx, func(tx *database.Tx) error {
		err := tx.QueryRowContext(ctx,
			"SELECT id FROM grades WHERE student_id = ? AND assignment_id = ?",
			g.StudentID, g.AssignmentID,
		).Scan(&id)

		switch {
		case errors.Is(err, sql.ErrNoRows):
			id = newID()
			_, err = tx.ExecContext(ctx, `
				INSERT INTO grades (id, student_id, assignment_id, points, max_points, feedback, graded_by, graded_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				id, g.StudentID, g.AssignmentID, g.Points, g.MaxPoints, g.Feedback, g.GradedBy, g.GradedAt.UTC())
			return err
		case err != nil:
			return err
		default:
			_, err = tx.ExecContext(ctx, `
				UPDATE grades
				SET points = ?, max_points = ?, feedback = ?, graded_by = ?, graded_at = ?
				WHERE id = ?`,
				g.Points, g.MaxPoints, g.Feedback, g.GradedBy, g.GradedAt.UTC(), id)
			return err
		}
	})
	if err != nil {
		return sqlError(r.db.Dialect, "upsert grade", err)
	}
	g.ID = id
	return nil
}

// ListGradesByStudent retrieves all grades of a student
func (r *ClassroomRepository) ListGradesByStudent(ctx context.Context, studentID string) ([]models.Grade, error) {
	if !validID(studentID) {
		return []models.Grade{}, nil
	}
	query := `
		SELECT id, student_id, assignment_id, points, max_points, feedback, graded_by, graded_at
		FROM grades WHERE student_id = ?
		ORDER BY graded_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, studentID)
	if err != nil {
		return nil, sqlError(r.db.Dialect, "query grades", err)
	}
	defer rows.Close()

	grades := []models.Grade{}
	for rows.Next() {
		var g models.Grade
		if err := rows.Scan(&g.ID, &g.StudentID, &g.AssignmentID, &g.Points, &g.MaxPoints, &g.Feedback, &g.GradedBy, &g.GradedAt); err != nil {
			return nil, fmt.Errorf("failed to scan grade: %w", err)
		}
		grades = append(grades, g)
	}
	return grades, rows.Err()
}

// CreateAnnouncement inserts a class announcement
func (r *ClassroomRepository) CreateAnnouncement(ctx context.Context, a *models.Announcement) error {
	id := newID()
	query := `
		INSERT INTO announcements (id, class_id, teacher_id, title, content, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query, id, a.ClassID, a.TeacherID, a.Title, a.Content, a.CreatedAt.UTC())
	if err != nil {
		return sqlError(r.db.Dialect, "create announcement", err)
	}
	a.ID = id
	return nil
}

// ListAnnouncements retrieves the most recent announcements of a class
func (r *ClassroomRepository) ListAnnouncements(ctx context.Context, classID string, limit int) ([]models.Announcement, error) {
	if !validID(classID) {
		return []models.Announcement{}, nil
	}
	query := `
		SELECT id, class_id, teacher_id, title, content, created_at
		FROM announcements WHERE class_id = ?
		ORDER BY created_at DESC
		LIMIT ?
	`
	rows, err := r.db.QueryContext(ctx, query, classID, limit)
	if err != nil {
		return nil, sqlError(r.db.Dialect, "query announcements", err)
	}
	defer rows.Close()

	announcements := []models.Announcement{}
	for rows.Next() {
		var a models.Announcement
		if err := rows.Scan(&a.ID, &a.ClassID, &a.TeacherID, &a.Title, &a.Content, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		announcements = append(announcements, a)
	}
	return announcements, rows.Err()
}
