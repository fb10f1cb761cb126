package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"classroom/internal/database"
	"classroom/internal/models"
)

const examColumns = `
	id, course_id, created_by, title, description, subject, instructions,
	duration_minutes, total_marks, start_date, end_date, questions, is_public,
	created_at, updated_at`

const resultColumns = `
	id, exam_id, course_id, student_id, guest_name, guest_email, guest_phone,
	score, total_marks, answers, reviewed, reviewed_at, submitted_at`

// ExamRepository handles SQL operations for exams and their results
type ExamRepository struct {
	db *database.DB
}

// NewExamRepository creates a new exam repository
func NewExamRepository(db *database.DB) *ExamRepository {
	return &ExamRepository{db: db}
}

// jsonText stores raw JSON as text, defaulting to an empty array
func jsonText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return "[]"
	}
	return string(raw)
}

func scanExam(row rowScanner) (*models.Exam, error) {
	e := &models.Exam{}
	var courseID sql.NullString
	var start, end sql.NullTime
	var questions string
	err := row.Scan(&e.ID, &courseID, &e.CreatedBy, &e.Title, &e.Description, &e.Subject, &e.Instructions,
		&e.DurationMinutes, &e.TotalMarks, &start, &end, &questions, &e.IsPublic,
		&e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return nil, err
	}
	e.CourseID = courseID.String
	if start.Valid {
		e.StartDate = &start.Time
	}
	if end.Valid {
		e.EndDate = &end.Time
	}
	e.Questions = json.RawMessage(questions)
	return e, nil
}

func scanResult(row rowScanner) (*models.ExamResult, error) {
	r := &models.ExamResult{}
	var courseID, studentID sql.NullString
	var reviewedAt sql.NullTime
	var answers string
	err := row.Scan(&r.ID, &r.ExamID, &courseID, &studentID, &r.Guest.Name, &r.Guest.Email, &r.Guest.Phone,
		&r.Score, &r.TotalMarks, &answers, &r.Reviewed, &reviewedAt, &r.SubmittedAt)
	if err != nil {
		return nil, err
	}
	r.CourseID = courseID.String
	r.StudentID = studentID.String
	if reviewedAt.Valid {
		r.ReviewedAt = &reviewedAt.Time
	}
	r.Answers = json.RawMessage(answers)
	return r, nil
}

// CreateExam inserts a new exam and assigns its ID
func (r *ExamRepository) CreateExam(ctx context.Context, e *models.Exam) error {
	id := newID()
	query := `
		INSERT INTO exams (id, course_id, created_by, title, description, subject, instructions,
			duration_minutes, total_marks, start_date, end_date, questions, is_public, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		id, nullString(e.CourseID), e.CreatedBy, e.Title, e.Description, e.Subject, e.Instructions,
		e.DurationMinutes, e.TotalMarks, nullTime(e.StartDate), nullTime(e.EndDate), jsonText(e.Questions),
		e.IsPublic, e.CreatedAt.UTC(), e.UpdatedAt.UTC())
	if err != nil {
		return sqlError(r.db.Dialect, "create exam", err)
	}
	e.ID = id
	return nil
}

// GetExam retrieves an exam by ID
func (r *ExamRepository) GetExam(ctx context.Context, id string) (*models.Exam, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	exam, err := scanExam(r.db.QueryRowContext(ctx, "SELECT "+examColumns+" FROM exams WHERE id = ?", id))
	if err != nil {
		return nil, sqlError(r.db.Dialect, "get exam", err)
	}
	return exam, nil
}

// ListExamsByCourse retrieves the exams of a course, latest start first
func (r *ExamRepository) ListExamsByCourse(ctx context.Context, courseID string) ([]models.Exam, error) {
	if !validID(courseID) {
		return []models.Exam{}, nil
	}
	return r.queryExams(ctx, "SELECT "+examColumns+" FROM exams WHERE course_id = ? ORDER BY start_date DESC", courseID)
}

// ListExamsByCreator retrieves every exam a teacher created, newest first
func (r *ExamRepository) ListExamsByCreator(ctx context.Context, creatorID string) ([]models.Exam, error) {
	if !validID(creatorID) {
		return []models.Exam{}, nil
	}
	return r.queryExams(ctx, "SELECT "+examColumns+" FROM exams WHERE created_by = ? ORDER BY created_at DESC", creatorID)
}

// ListOpenExams retrieves the course exams open at now, soonest ending first
func (r *ExamRepository) ListOpenExams(ctx context.Context, courseIDs []string, now time.Time) ([]models.Exam, error) {
	args := make([]interface{}, 0, len(courseIDs)+2)
	for _, id := range courseIDs {
		if validID(id) {
			args = append(args, id)
		}
	}
	if len(args) == 0 {
		return []models.Exam{}, nil
	}
	n := len(args)
	args = append(args, now.UTC(), now.UTC())
	query := "SELECT " + examColumns + " FROM exams" +
		" WHERE course_id IN (" + placeholders(n) + ")" +
		" AND is_public = " + r.db.Dialect.BoolValue(false) +
		" AND (start_date IS NULL OR start_date <= ?)" +
		" AND (end_date IS NULL OR end_date >= ?)" +
		" ORDER BY end_date"
	return r.queryExams(ctx, query, args...)
}

// DeleteExam removes an exam; its results go through ON DELETE CASCADE
func (r *ExamRepository) DeleteExam(ctx context.Context, id string) error {
	if !validID(id) {
		return ErrNotFound
	}
	result, err := r.db.ExecContext(ctx, "DELETE FROM exams WHERE id = ?", id)
	if err != nil {
		return sqlError(r.db.Dialect, "delete exam", err)
	}
	return requireAffected(result)
}

func (r *ExamRepository) queryExams(ctx context.Context, query string, args ...interface{}) ([]models.Exam, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlError(r.db.Dialect, "query exams", err)
	}
	defer rows.Close()

	exams := []models.Exam{}
	for rows.Next() {
		exam, err := scanExam(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exam: %w", err)
		}
		exams = append(exams, *exam)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError(r.db.Dialect, "iterate exams", err)
	}
	return exams, nil
}

// CreateResult inserts an exam result and assigns its ID
func (r *ExamRepository) CreateResult(ctx context.Context, res *models.ExamResult) error {
	id := newID()
	query := `
		INSERT INTO exam_results (id, exam_id, course_id, student_id, guest_name, guest_email, guest_phone,
			score, total_marks, answers, reviewed, reviewed_at, submitted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		id, res.ExamID, nullString(res.CourseID), nullString(res.StudentID),
		res.Guest.Name, res.Guest.Email, res.Guest.Phone,
		res.Score, res.TotalMarks, jsonText(res.Answers), res.Reviewed, nullTime(res.ReviewedAt),
		res.SubmittedAt.UTC())
	if err != nil {
		return sqlError(r.db.Dialect, "create exam result", err)
	}
	res.ID = id
	return nil
}

// GetResult retrieves an exam result by ID
func (r *ExamRepository) GetResult(ctx context.Context, id string) (*models.ExamResult, error) {
	if !validID(id) {
		return nil, ErrNotFound
	}
	res, err := scanResult(r.db.QueryRowContext(ctx, "SELECT "+resultColumns+" FROM exam_results WHERE id = ?", id))
	if err != nil {
		return nil, sqlError(r.db.Dialect, "get exam result", err)
	}
	return res, nil
}

// ListResultsByExam retrieves the results of an exam, highest score first
func (r *ExamRepository) ListResultsByExam(ctx context.Context, examID string) ([]models.ExamResult, error) {
	if !validID(examID) {
		return []models.ExamResult{}, nil
	}
	return r.queryResults(ctx, "SELECT "+resultColumns+" FROM exam_results WHERE exam_id = ? ORDER BY score DESC, submitted_at", examID)
}

// ListStudentResults retrieves a student's results in a course, newest first
func (r *ExamRepository) ListStudentResults(ctx context.Context, courseID, studentID string) ([]models.ExamResult, error) {
	if !validID(courseID) || !validID(studentID) {
		return []models.ExamResult{}, nil
	}
	return r.queryResults(ctx,
		"SELECT "+resultColumns+" FROM exam_results WHERE course_id = ? AND student_id = ? ORDER BY submitted_at DESC",
		courseID, studentID)
}

// ReviewResult replaces the score and answers of a result and records the review
func (r *ExamRepository) ReviewResult(ctx context.Context, res *models.ExamResult) error {
	if !validID(res.ID) {
		return ErrNotFound
	}
	query := "UPDATE exam_results SET score = ?, answers = ?, reviewed = ?, reviewed_at = ? WHERE id = ?"
	result, err := r.db.ExecContext(ctx, query, res.Score, jsonText(res.Answers), res.Reviewed, nullTime(res.ReviewedAt), res.ID)
	if err != nil {
		return sqlError(r.db.Dialect, "review exam result", err)
	}
	return requireAffected(result)
}

func (r *ExamRepository) queryResults(ctx context.Context, query string, args ...interface{}) ([]models.ExamResult, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, sqlError(r.db.Dialect, "query exam results", err)
	}
	defer rows.Close()

	results := []models.ExamResult{}
	for rows.Next() {
		res, err := scanResult(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan exam result: %w", err)
		}
		results = append(results, *res)
	}
	if err := rows.Err(); err != nil {
		return nil, sqlError(r.db.Dialect, "iterate exam results", err)
	}
	return results, nil
}
