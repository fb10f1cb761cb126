package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"go.uber.org/zap"

	"classroom/internal/metrics"
	"classroom/internal/models"
	"classroom/internal/repository"
	"classroom/internal/validation"
)

// ReportMailer delivers grade reports
type ReportMailer interface {
	SendGradeReport(ctx context.Context, toEmail string, report *GradeReport) error
}

// Report delivery methods
const (
	ContactEmail    = "email"
	ContactWhatsApp = "whatsapp"
)

// ExamInput describes an exam to create
type ExamInput struct {
	CourseID        string
	Title           string
	Description     string
	Subject         string
	Instructions    string
	DurationMinutes int
	TotalMarks      float64
	StartDate       *time.Time
	EndDate         *time.Time
	Questions       json.RawMessage
}

// ResultInput is a student's scored attempt at an exam
type ResultInput struct {
	Score   float64
	Answers json.RawMessage
}

// ReviewInput is a teacher's correction of a result. Reviewed defaults to true.
type ReviewInput struct {
	ResultID string
	Score    float64
	Answers  json.RawMessage
	Reviewed *bool
}

// GuestSubmissionInput is an attempt at a public exam by someone without an account
type GuestSubmissionInput struct {
	ExamID  string
	Guest   models.GuestInfo
	Score   float64
	Answers json.RawMessage
}

// PublicExamSummary is a public exam with the number of guest submissions
type PublicExamSummary struct {
	Exam            models.Exam
	SubmissionCount int
}

// ExamService handles exams, results, grade reports and public exams
type ExamService struct {
	exams   repository.ExamStore
	courses repository.CourseStore
	users   repository.UserStore
	mailer  ReportMailer
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
	now     func() time.Time
}

// NewExamService creates a new exam service
func NewExamService(exams repository.ExamStore, courses repository.CourseStore, users repository.UserStore, mailer ReportMailer, logger *zap.SugaredLogger, m *metrics.Metrics) *ExamService {
	return &ExamService{
		exams:   exams,
		courses: courses,
		users:   users,
		mailer:  mailer,
		logger:  logger,
		metrics: m,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

func validateExam(in ExamInput, public bool) error {
	if err := validation.Required("title", in.Title); err != nil {
		return err
	}
	if in.DurationMinutes <= 0 {
		return validation.ValidationError{Field: "duration", Message: "duration must be a positive number of minutes"}
	}
	if in.TotalMarks <= 0 {
		return validation.ValidationError{Field: "total_marks", Message: "total_marks must be positive"}
	}
	if !public {
		if in.StartDate == nil {
			return validation.ValidationError{Field: "start_date", Message: "start_date is required"}
		}
		if in.EndDate == nil {
			return validation.ValidationError{Field: "end_date", Message: "end_date is required"}
		}
	}
	if in.StartDate != nil && in.EndDate != nil && in.EndDate.Before(*in.StartDate) {
		return validation.ValidationError{Field: "end_date", Message: "end_date must not be before start_date"}
	}
	return validateJSON("questions", in.Questions)
}

func validateJSON(field string, raw json.RawMessage) error {
	if len(raw) > 0 && !json.Valid(raw) {
		return validation.ValidationError{Field: field, Message: field + " must be valid JSON"}
	}
	return nil
}

func validateScore(score, total float64) error {
	if score < 0 || score > total {
		return validation.ValidationError{Field: "score", Message: "score must be between 0 and total_marks"}
	}
	return nil
}

func (s *ExamService) newExam(actor *models.User, in ExamInput) *models.Exam {
	now := s.now()
	return &models.Exam{
		CourseID:        in.CourseID,
		CreatedBy:       actor.ID,
		Title:           strings.TrimSpace(in.Title),
		Description:     strings.TrimSpace(in.Description),
		Subject:         strings.TrimSpace(in.Subject),
		Instructions:    strings.TrimSpace(in.Instructions),
		DurationMinutes: in.DurationMinutes,
		TotalMarks:      in.TotalMarks,
		StartDate:       in.StartDate,
		EndDate:         in.EndDate,
		Questions:       in.Questions,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
}

// ownedExam returns the exam when the actor created it
func (s *ExamService) ownedExam(ctx context.Context, actor *models.User, examID string) (*models.Exam, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, storeError("get exam", err)
	}
	if exam.CreatedBy != actor.ID {
		return nil, ErrForbidden
	}
	return exam, nil
}

// courseMember reports whether the actor runs the course or is enrolled in it
func (s *ExamService) courseMember(ctx context.Context, actor *models.User, courseID string) error {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return storeError("get course", err)
	}
	if course.OwnerID == actor.ID {
		return nil
	}
	enrolled, err := s.courses.IsEnrolled(ctx, courseID, actor.ID)
	if err != nil {
		return storeError("check enrollment", err)
	}
	if !enrolled {
		return ErrForbidden
	}
	return nil
}

// CreateExam schedules an exam in a course the actor runs
func (s *ExamService) CreateExam(ctx context.Context, actor *models.User, in ExamInput) (*models.Exam, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	if err := validation.Required("course_id", in.CourseID); err != nil {
		return nil, err
	}
	if err := validateExam(in, false); err != nil {
		return nil, err
	}
	course, err := s.courses.GetCourse(ctx, in.CourseID)
	if err != nil {
		return nil, storeError("get course", err)
	}
	if course.OwnerID != actor.ID {
		return nil, ErrForbidden
	}

	exam := s.newExam(actor, in)
	if exam.Subject == "" {
		exam.Subject = course.Subject
	}
	if err := s.exams.CreateExam(ctx, exam); err != nil {
		return nil, storeError("create exam", err)
	}
	s.logger.Infow("Exam created", "exam_id", exam.ID, "course_id", course.ID)
	return exam, nil
}

// CourseExams lists the exams of a course to its teacher and enrolled students
func (s *ExamService) CourseExams(ctx context.Context, actor *models.User, courseID string) ([]models.Exam, error) {
	if err := s.courseMember(ctx, actor, courseID); err != nil {
		return nil, err
	}
	exams, err := s.exams.ListExamsByCourse(ctx, courseID)
	if err != nil {
		return nil, storeError("list exams", err)
	}
	return exams, nil
}

// CourseExam returns one exam of a course to its teacher and enrolled students
func (s *ExamService) CourseExam(ctx context.Context, actor *models.User, courseID, examID string) (*models.Exam, error) {
	if err := s.courseMember(ctx, actor, courseID); err != nil {
		return nil, err
	}
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, storeError("get exam", err)
	}
	if exam.CourseID != courseID {
		return nil, ErrNotFound
	}
	return exam, nil
}

// AvailableExams lists the exams open now in the courses the actor is enrolled in
func (s *ExamService) AvailableExams(ctx context.Context, actor *models.User) ([]models.Exam, error) {
	if actor.Role != models.RoleStudent {
		return nil, ErrForbidden
	}
	enrollments, err := s.courses.ListStudentEnrollments(ctx, actor.ID)
	if err != nil {
		return nil, storeError("list enrollments", err)
	}
	courseIDs := make([]string, 0, len(enrollments))
	for _, e := range enrollments {
		courseIDs = append(courseIDs, e.CourseID)
	}
	exams, err := s.exams.ListOpenExams(ctx, courseIDs, s.now())
	if err != nil {
		return nil, storeError("list open exams", err)
	}
	return exams, nil
}

// DeleteExam removes an exam the actor created, with its results
func (s *ExamService) DeleteExam(ctx context.Context, actor *models.User, examID string) error {
	if _, err := s.ownedExam(ctx, actor, examID); err != nil {
		return err
	}
	if err := s.exams.DeleteExam(ctx, examID); err != nil {
		return storeError("delete exam", err)
	}
	s.logger.Infow("Exam deleted", "exam_id", examID, "created_by", actor.ID)
	return nil
}

// SubmitResult records the actor's attempt at an open exam of a course they
// are enrolled in. Each student submits once.
func (s *ExamService) SubmitResult(ctx context.Context, actor *models.User, examID string, in ResultInput) (*models.ExamResult, error) {
	if actor.Role != models.RoleStudent {
		return nil, ErrForbidden
	}
	if err := validateJSON("answers", in.Answers); err != nil {
		return nil, err
	}
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, storeError("get exam", err)
	}
	if exam.IsPublic || exam.CourseID == "" {
		return nil, ErrNotFound
	}
	enrolled, err := s.courses.IsEnrolled(ctx, exam.CourseID, actor.ID)
	if err != nil {
		return nil, storeError("check enrollment", err)
	}
	if !enrolled {
		return nil, ErrForbidden
	}
	now := s.now()
	if !exam.IsOpen(now) {
		return nil, ErrExamClosed
	}
	if err := validateScore(in.Score, exam.TotalMarks); err != nil {
		return nil, err
	}

	result := &models.ExamResult{
		ExamID:      exam.ID,
		CourseID:    exam.CourseID,
		StudentID:   actor.ID,
		Score:       in.Score,
		TotalMarks:  exam.TotalMarks,
		Answers:     in.Answers,
		SubmittedAt: now,
	}
	if err := s.exams.CreateResult(ctx, result); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return nil, ErrAlreadySubmitted
		}
		return nil, storeError("submit exam result", err)
	}
	s.metrics.ExamSubmissions.WithLabelValues(models.SubmissionRegistered).Inc()
	return result, nil
}

// StudentResults lists a student's results in a course. Students may only
// read their own; the course teacher may read anyone's.
func (s *ExamService) StudentResults(ctx context.Context, actor *models.User, courseID, studentID string) ([]models.ExamResult, error) {
	if actor.ID != studentID {
		course, err := s.courses.GetCourse(ctx, courseID)
		if err != nil {
			return nil, storeError("get course", err)
		}
		if course.OwnerID != actor.ID {
			return nil, ErrForbidden
		}
	}
	results, err := s.exams.ListStudentResults(ctx, courseID, studentID)
	if err != nil {
		return nil, storeError("list results", err)
	}
	return results, nil
}

// ExamResults lists every result of an exam the actor created, registered
// and guest alike, highest score first
func (s *ExamService) ExamResults(ctx context.Context, actor *models.User, examID string) ([]models.ExamResult, error) {
	if _, err := s.ownedExam(ctx, actor, examID); err != nil {
		return nil, err
	}
	results, err := s.exams.ListResultsByExam(ctx, examID)
	if err != nil {
		return nil, storeError("list results", err)
	}
	return results, nil
}

// ownedResult returns a result of an exam the actor created
func (s *ExamService) ownedResult(ctx context.Context, actor *models.User, examID, resultID string) (*models.Exam, *models.ExamResult, error) {
	if err := validation.Required("result_id", resultID); err != nil {
		return nil, nil, err
	}
	exam, err := s.ownedExam(ctx, actor, examID)
	if err != nil {
		return nil, nil, err
	}
	result, err := s.exams.GetResult(ctx, resultID)
	if err != nil {
		return nil, nil, storeError("get result", err)
	}
	if result.ExamID != exam.ID {
		return nil, nil, ErrNotFound
	}
	return exam, result, nil
}

// ReviewResult replaces the score and answers of a result after the teacher
// who set the exam has marked it
func (s *ExamService) ReviewResult(ctx context.Context, actor *models.User, examID string, in ReviewInput) (*models.ExamResult, error) {
	if err := validateJSON("answers", in.Answers); err != nil {
		return nil, err
	}
	_, result, err := s.ownedResult(ctx, actor, examID, in.ResultID)
	if err != nil {
		return nil, err
	}
	if err := validateScore(in.Score, result.TotalMarks); err != nil {
		return nil, err
	}

	reviewed := true
	if in.Reviewed != nil {
		reviewed = *in.Reviewed
	}
	result.Score = in.Score
	if len(in.Answers) > 0 {
		result.Answers = in.Answers
	}
	result.Reviewed = reviewed
	result.ReviewedAt = nil
	if reviewed {
		at := s.now()
		result.ReviewedAt = &at
	}
	if err := s.exams.ReviewResult(ctx, result); err != nil {
		return nil, storeError("review result", err)
	}
	return result, nil
}

func (s *ExamService) buildReport(ctx context.Context, exam *models.Exam, result *models.ExamResult) (*GradeReport, error) {
	report := &GradeReport{
		ResultID:     result.ID,
		StudentName:  result.Guest.Name,
		StudentEmail: result.Guest.Email,
		ExamTitle:    exam.Title,
		Score:        result.Score,
		TotalMarks:   result.TotalMarks,
		Percentage:   result.Percentage(),
		Reviewed:     result.Reviewed,
		GeneratedAt:  s.now(),
	}
	if result.StudentID != "" {
		student, err := s.users.GetUserByID(ctx, result.StudentID)
		if err != nil {
			return nil, storeError("get student", err)
		}
		report.StudentName = student.Name
		report.StudentEmail = student.Email
	}
	return report, nil
}

// GradeReport builds the report of a result. The teacher who set the exam may
// build it at any time; the student who sat it only once it is reviewed.
func (s *ExamService) GradeReport(ctx context.Context, actor *models.User, examID, resultID string) (*GradeReport, error) {
	if err := validation.Required("result_id", resultID); err != nil {
		return nil, err
	}
	result, err := s.exams.GetResult(ctx, resultID)
	if err != nil {
		return nil, storeError("get result", err)
	}
	if result.ExamID != examID {
		return nil, ErrNotFound
	}
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, storeError("get exam", err)
	}

	switch {
	case exam.CreatedBy == actor.ID:
	case result.StudentID != "" && result.StudentID == actor.ID:
		if !result.Reviewed {
			return nil, ErrNotReviewed
		}
	default:
		return nil, ErrForbidden
	}
	return s.buildReport(ctx, exam, result)
}

// SendReport mails the report of a result to the student who sat the exam.
// Only email delivery is supported.
func (s *ExamService) SendReport(ctx context.Context, actor *models.User, examID, resultID, method string) (*GradeReport, error) {
	switch strings.ToLower(strings.TrimSpace(method)) {
	case "", ContactEmail:
	case ContactWhatsApp:
		return nil, validation.ValidationError{Field: "contact_method", Message: "WhatsApp delivery is not supported"}
	default:
		return nil, validation.ValidationError{Field: "contact_method", Message: "contact_method must be Email"}
	}

	exam, result, err := s.ownedResult(ctx, actor, examID, resultID)
	if err != nil {
		return nil, err
	}
	report, err := s.buildReport(ctx, exam, result)
	if err != nil {
		return nil, err
	}
	if report.StudentEmail == "" {
		return nil, validation.ValidationError{Field: "contact_method", Message: "student has no email address"}
	}

	if err := s.mailer.SendGradeReport(ctx, report.StudentEmail, report); err != nil {
		s.logger.Errorw("Failed to send grade report", "result_id", result.ID, "error", err)
		return nil, err
	}
	s.logger.Infow("Grade report sent", "result_id", result.ID, "exam_id", exam.ID)
	return report, nil
}

// TeacherTests lists every exam the actor created, course and public, newest first
func (s *ExamService) TeacherTests(ctx context.Context, actor *models.User, teacherID string) ([]models.Exam, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	if actor.ID != teacherID {
		return nil, ErrForbidden
	}
	exams, err := s.exams.ListExamsByCreator(ctx, teacherID)
	if err != nil {
		return nil, storeError("list tests", err)
	}
	return exams, nil
}

// DuplicateTest copies an exam the actor created. The copy keeps the course
// and questions, and its title is marked as a copy.
func (s *ExamService) DuplicateTest(ctx context.Context, actor *models.User, examID string) (*models.Exam, error) {
	original, err := s.ownedExam(ctx, actor, examID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	copied := *original
	copied.ID = ""
	copied.Title = original.Title + " (Copy)"
	copied.CreatedAt = now
	copied.UpdatedAt = now
	if err := s.exams.CreateExam(ctx, &copied); err != nil {
		return nil, storeError("duplicate test", err)
	}
	return &copied, nil
}

// CreatePublicExam creates an exam anyone with its link can take without an account
func (s *ExamService) CreatePublicExam(ctx context.Context, actor *models.User, in ExamInput) (*models.Exam, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	if err := validateExam(in, true); err != nil {
		return nil, err
	}

	exam := s.newExam(actor, in)
	exam.CourseID = ""
	exam.IsPublic = true
	if err := s.exams.CreateExam(ctx, exam); err != nil {
		return nil, storeError("create public exam", err)
	}
	s.logger.Infow("Public exam created", "exam_id", exam.ID, "created_by", actor.ID)
	return exam, nil
}

// publicExam returns a public exam that is open now
func (s *ExamService) publicExam(ctx context.Context, examID string) (*models.Exam, error) {
	exam, err := s.exams.GetExam(ctx, examID)
	if err != nil {
		return nil, storeError("get exam", err)
	}
	if !exam.IsPublic {
		return nil, ErrNotFound
	}
	if !exam.IsOpen(s.now()) {
		return nil, ErrExamClosed
	}
	return exam, nil
}

// PublicExam returns an open public exam to anyone
func (s *ExamService) PublicExam(ctx context.Context, examID string) (*models.Exam, error) {
	return s.publicExam(ctx, examID)
}

// SubmitGuest records an attempt at an open public exam. The guest gives a
// name and at least one of an email address or phone number.
func (s *ExamService) SubmitGuest(ctx context.Context, in GuestSubmissionInput) (*models.ExamResult, error) {
	if err := validation.Required("exam_id", in.ExamID); err != nil {
		return nil, err
	}
	guest := models.GuestInfo{
		Name:  strings.TrimSpace(in.Guest.Name),
		Email: models.NormalizeEmail(in.Guest.Email),
		Phone: strings.TrimSpace(in.Guest.Phone),
	}
	if err := validation.Required("name", guest.Name); err != nil {
		return nil, err
	}
	if guest.Email == "" && guest.Phone == "" {
		return nil, validation.ValidationError{Field: "student_info", Message: "email or phone is required"}
	}
	if guest.Email != "" {
		if err := validation.ValidateEmail(guest.Email); err != nil {
			return nil, err
		}
	}
	if err := validateJSON("answers", in.Answers); err != nil {
		return nil, err
	}

	exam, err := s.publicExam(ctx, in.ExamID)
	if err != nil {
		return nil, err
	}
	if err := validateScore(in.Score, exam.TotalMarks); err != nil {
		return nil, err
	}

	result := &models.ExamResult{
		ExamID:      exam.ID,
		Guest:       guest,
		Score:       in.Score,
		TotalMarks:  exam.TotalMarks,
		Answers:     in.Answers,
		SubmittedAt: s.now(),
	}
	if err := s.exams.CreateResult(ctx, result); err != nil {
		return nil, storeError("submit guest exam", err)
	}
	s.metrics.ExamSubmissions.WithLabelValues(models.SubmissionGuest).Inc()
	return result, nil
}

// GuestSubmissions lists the guest attempts at a public exam the actor created
func (s *ExamService) GuestSubmissions(ctx context.Context, actor *models.User, examID string) ([]models.ExamResult, error) {
	exam, err := s.ownedExam(ctx, actor, examID)
	if err != nil {
		return nil, err
	}
	if !exam.IsPublic {
		return nil, ErrNotFound
	}
	results, err := s.exams.ListResultsByExam(ctx, examID)
	if err != nil {
		return nil, storeError("list guest submissions", err)
	}
	guests := make([]models.ExamResult, 0, len(results))
	for _, r := range results {
		if r.SubmissionType() == models.SubmissionGuest {
			guests = append(guests, r)
		}
	}
	return guests, nil
}

// TeacherPublicExams lists the public exams the actor created with their
// submission counts
func (s *ExamService) TeacherPublicExams(ctx context.Context, actor *models.User, teacherID string) ([]PublicExamSummary, error) {
	exams, err := s.TeacherTests(ctx, actor, teacherID)
	if err != nil {
		return nil, err
	}
	summaries := []PublicExamSummary{}
	for _, exam := range exams {
		if !exam.IsPublic {
			continue
		}
		results, err := s.exams.ListResultsByExam(ctx, exam.ID)
		if err != nil {
			return nil, storeError("count submissions", err)
		}
		summaries = append(summaries, PublicExamSummary{Exam: exam, SubmissionCount: len(results)})
	}
	return summaries, nil
}
