package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"classroom/internal/models"
	"classroom/internal/repository"
	"classroom/internal/validation"
)

const (
	DefaultAnnouncementLimit = 10
	MaxAnnouncementLimit     = 100
	DefaultMaxPoints         = 100
)

// ClassInput describes a class to create
type ClassInput struct {
	Name        string
	Description string
	Subject     string
}

// AssignmentInput describes an assignment to create
type AssignmentInput struct {
	ClassID     string
	Title       string
	Description string
	DueDate     *time.Time
	MaxPoints   float64
}

// SubmissionInput is a student's answer
type SubmissionInput struct {
	Content string
	FileURL string
}

// GradeInput records points for a student on an assignment
type GradeInput struct {
	StudentID    string
	AssignmentID string
	Points       float64
	MaxPoints    float64
	Feedback     string
}

// AnnouncementInput describes a class announcement
type AnnouncementInput struct {
	ClassID string
	Title   string
	Content string
}

// ClassroomService handles classes, assignments, grades and announcements
type ClassroomService struct {
	classroom repository.ClassroomStore
	users     repository.UserStore
	logger    *zap.SugaredLogger
	now       func() time.Time
}

// NewClassroomService creates a new classroom service
func NewClassroomService(classroom repository.ClassroomStore, users repository.UserStore, logger *zap.SugaredLogger) *ClassroomService {
	return &ClassroomService{
		classroom: classroom,
		users:     users,
		logger:    logger,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func requireTeacher(actor *models.User) error {
	if actor.Role != models.RoleTeacher {
		return ErrForbidden
	}
	return nil
}

// ownedClass returns the class when the actor teaches it
func (s *ClassroomService) ownedClass(ctx context.Context, actor *models.User, classID string) (*models.Class, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	class, err := s.classroom.GetClass(ctx, classID)
	if err != nil {
		return nil, storeError("get class", err)
	}
	if class.TeacherID != actor.ID {
		return nil, ErrForbidden
	}
	return class, nil
}

// ownedAssignment returns the assignment when the actor set it
func (s *ClassroomService) ownedAssignment(ctx context.Context, actor *models.User, assignmentID string) (*models.Assignment, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	assignment, err := s.classroom.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, storeError("get assignment", err)
	}
	if assignment.TeacherID != actor.ID {
		return nil, ErrForbidden
	}
	return assignment, nil
}

// CreateClass creates a class taught by the actor
func (s *ClassroomService) CreateClass(ctx context.Context, actor *models.User, in ClassInput) (*models.Class, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	if err := validation.Required("name", in.Name); err != nil {
		return nil, err
	}

	class := &models.Class{
		Name:        strings.TrimSpace(in.Name),
		TeacherID:   actor.ID,
		Description: strings.TrimSpace(in.Description),
		Subject:     strings.TrimSpace(in.Subject),
		StudentIDs:  []string{},
		CreatedAt:   s.now(),
	}
	if err := s.classroom.CreateClass(ctx, class); err != nil {
		return nil, storeError("create class", err)
	}
	return class, nil
}

// AddStudent enrolls an active student in a class the actor teaches
func (s *ClassroomService) AddStudent(ctx context.Context, actor *models.User, classID, studentID string) error {
	if _, err := s.ownedClass(ctx, actor, classID); err != nil {
		return err
	}

	student, err := s.users.GetUserByID(ctx, studentID)
	if err != nil {
		return storeError("get student", err)
	}
	if !student.IsActive {
		return ErrNotFound
	}
	if student.Role != models.RoleStudent {
		return validation.ValidationError{Field: "student_id", Message: "user is not a student"}
	}

	if err := s.classroom.AddStudentToClass(ctx, classID, studentID, s.now()); err != nil {
		return storeError("add student to class", err)
	}
	return nil
}

// TeacherClasses lists the classes a teacher teaches
func (s *ClassroomService) TeacherClasses(ctx context.Context, teacherID string) ([]models.Class, error) {
	classes, err := s.classroom.ListClassesByTeacher(ctx, teacherID)
	if err != nil {
		return nil, storeError("list classes", err)
	}
	return classes, nil
}

// StudentClasses lists the classes a student is enrolled in
func (s *ClassroomService) StudentClasses(ctx context.Context, studentID string) ([]models.Class, error) {
	classes, err := s.classroom.ListClassesByStudent(ctx, studentID)
	if err != nil {
		return nil, storeError("list classes", err)
	}
	return classes, nil
}

// CreateAssignment sets work for a class the actor teaches
func (s *ClassroomService) CreateAssignment(ctx context.Context, actor *models.User, in AssignmentInput) (*models.Assignment, error) {
	if err := validation.Required("class_id", in.ClassID); err != nil {
		return nil, err
	}
	if err := validation.Required("title", in.Title); err != nil {
		return nil, err
	}
	if in.MaxPoints < 0 {
		return nil, validation.ValidationError{Field: "max_points", Message: "max_points must not be negative"}
	}
	if _, err := s.ownedClass(ctx, actor, in.ClassID); err != nil {
		return nil, err
	}

	maxPoints := in.MaxPoints
	if maxPoints == 0 {
		maxPoints = DefaultMaxPoints
	}
	assignment := &models.Assignment{
		ClassID:     in.ClassID,
		TeacherID:   actor.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: strings.TrimSpace(in.Description),
		DueDate:     in.DueDate,
		MaxPoints:   maxPoints,
		CreatedAt:   s.now(),
	}
	if err := s.classroom.CreateAssignment(ctx, assignment); err != nil {
		return nil, storeError("create assignment", err)
	}
	return assignment, nil
}

// SubmitAssignment records the actor's answer to an assignment of a class
// they are enrolled in
func (s *ClassroomService) SubmitAssignment(ctx context.Context, actor *models.User, assignmentID string, in SubmissionInput) (*models.Submission, error) {
	if actor.Role != models.RoleStudent {
		return nil, ErrForbidden
	}
	if strings.TrimSpace(in.Content) == "" && strings.TrimSpace(in.FileURL) == "" {
		return nil, validation.ValidationError{Field: "content", Message: "content or file_url is required"}
	}

	assignment, err := s.classroom.GetAssignment(ctx, assignmentID)
	if err != nil {
		return nil, storeError("get assignment", err)
	}
	class, err := s.classroom.GetClass(ctx, assignment.ClassID)
	if err != nil {
		return nil, storeError("get class", err)
	}
	if !class.HasStudent(actor.ID) {
		return nil, ErrForbidden
	}

	submission := &models.Submission{
		AssignmentID: assignment.ID,
		StudentID:    actor.ID,
		Content:      in.Content,
		FileURL:      strings.TrimSpace(in.FileURL),
		SubmittedAt:  s.now(),
	}
	if err := s.classroom.CreateSubmission(ctx, submission); err != nil {
		return nil, storeError("create submission", err)
	}
	return submission, nil
}

// Submissions lists the answers to an assignment the actor set
func (s *ClassroomService) Submissions(ctx context.Context, actor *models.User, assignmentID string) ([]models.Submission, error) {
	if _, err := s.ownedAssignment(ctx, actor, assignmentID); err != nil {
		return nil, err
	}
	submissions, err := s.classroom.ListSubmissions(ctx, assignmentID)
	if err != nil {
		return nil, storeError("list submissions", err)
	}
	return submissions, nil
}

// GradeStudent records or replaces the grade of a student on an assignment
// the actor set
func (s *ClassroomService) GradeStudent(ctx context.Context, actor *models.User, in GradeInput) (*models.Grade, error) {
	if err := validation.Required("student_id", in.StudentID); err != nil {
		return nil, err
	}
	if err := validation.Required("assignment_id", in.AssignmentID); err != nil {
		return nil, err
	}
	assignment, err := s.ownedAssignment(ctx, actor, in.AssignmentID)
	if err != nil {
		return nil, err
	}

	maxPoints := in.MaxPoints
	if maxPoints == 0 {
		maxPoints = assignment.MaxPoints
	}
	if in.Points < 0 || in.Points > maxPoints {
		return nil, validation.ValidationError{Field: "points", Message: "points must be between 0 and max_points"}
	}

	grade := &models.Grade{
		StudentID:    in.StudentID,
		AssignmentID: in.AssignmentID,
		Points:       in.Points,
		MaxPoints:    maxPoints,
		Feedback:     strings.TrimSpace(in.Feedback),
		GradedBy:     actor.ID,
		GradedAt:     s.now(),
	}
	if err := s.classroom.UpsertGrade(ctx, grade); err != nil {
		return nil, storeError("save grade", err)
	}
	return grade, nil
}

// StudentGrades lists a student's grades. Students may only read their own.
func (s *ClassroomService) StudentGrades(ctx context.Context, actor *models.User, studentID string) ([]models.Grade, error) {
	if actor.Role != models.RoleTeacher && actor.ID != studentID {
		return nil, ErrForbidden
	}
	grades, err := s.classroom.ListGradesByStudent(ctx, studentID)
	if err != nil {
		return nil, storeError("list grades", err)
	}
	return grades, nil
}

// PostAnnouncement posts a message to a class the actor teaches
func (s *ClassroomService) PostAnnouncement(ctx context.Context, actor *models.User, in AnnouncementInput) (*models.Announcement, error) {
	if err := validation.Required("class_id", in.ClassID); err != nil {
		return nil, err
	}
	if err := validation.Required("title", in.Title); err != nil {
		return nil, err
	}
	if err := validation.Required("content", in.Content); err != nil {
		return nil, err
	}
	if _, err := s.ownedClass(ctx, actor, in.ClassID); err != nil {
		return nil, err
	}

	announcement := &models.Announcement{
		ClassID:   in.ClassID,
		TeacherID: actor.ID,
		Title:     strings.TrimSpace(in.Title),
		Content:   in.Content,
		CreatedAt: s.now(),
	}
	if err := s.classroom.CreateAnnouncement(ctx, announcement); err != nil {
		return nil, storeError("create announcement", err)
	}
	return announcement, nil
}

// Announcements returns the newest announcements of a class to its teacher
// and enrolled students. A non-positive limit means the default.
func (s *ClassroomService) Announcements(ctx context.Context, actor *models.User, classID string, limit int) ([]models.Announcement, error) {
	class, err := s.classroom.GetClass(ctx, classID)
	if err != nil {
		return nil, storeError("get class", err)
	}
	if class.TeacherID != actor.ID && !class.HasStudent(actor.ID) {
		return nil, ErrForbidden
	}

	if limit <= 0 {
		limit = DefaultAnnouncementLimit
	}
	if limit > MaxAnnouncementLimit {
		limit = MaxAnnouncementLimit
	}
	announcements, err := s.classroom.ListAnnouncements(ctx, classID, limit)
	if err != nil {
		return nil, storeError("list announcements", err)
	}
	return announcements, nil
}
