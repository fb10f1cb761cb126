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

// StudentSearchLimit caps the matches of a student search
const StudentSearchLimit = 10

// CourseInput describes a course to create or the new state of one
type CourseInput struct {
	Name        string
	TeacherName string
	Subject     string
	Schedule    string
	Location    string
	ContactInfo string
	Fees        string
	Description string
}

func (in CourseInput) validate() error {
	if err := validation.Required("name", in.Name); err != nil {
		return err
	}
	return validation.Required("subject", in.Subject)
}

// EnrolledStudent is a student of a course with the time they joined
type EnrolledStudent struct {
	Student    models.User
	EnrolledAt time.Time
}

// CourseService handles courses and enrollment
type CourseService struct {
	courses repository.CourseStore
	users   repository.UserStore
	logger  *zap.SugaredLogger
	now     func() time.Time
}

// NewCourseService creates a new course service
func NewCourseService(courses repository.CourseStore, users repository.UserStore, logger *zap.SugaredLogger) *CourseService {
	return &CourseService{
		courses: courses,
		users:   users,
		logger:  logger,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// ownedCourse returns the course when the actor runs it
func (s *CourseService) ownedCourse(ctx context.Context, actor *models.User, courseID string) (*models.Course, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, storeError("get course", err)
	}
	if course.OwnerID != actor.ID {
		return nil, ErrForbidden
	}
	return course, nil
}

// CreateCourse creates a course run by the actor. The teacher name defaults
// to the actor's name.
func (s *CourseService) CreateCourse(ctx context.Context, actor *models.User, in CourseInput) (*models.Course, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := s.now()
	course := &models.Course{OwnerID: actor.ID, CreatedAt: now}
	applyCourseInput(course, in, now)
	if course.TeacherName == "" {
		course.TeacherName = actor.Name
	}
	if err := s.courses.CreateCourse(ctx, course); err != nil {
		return nil, storeError("create course", err)
	}
	s.logger.Infow("Course created", "course_id", course.ID, "owner_id", actor.ID)
	return course, nil
}

func applyCourseInput(course *models.Course, in CourseInput, now time.Time) {
	course.Name = strings.TrimSpace(in.Name)
	course.TeacherName = strings.TrimSpace(in.TeacherName)
	course.Subject = strings.TrimSpace(in.Subject)
	course.Schedule = strings.TrimSpace(in.Schedule)
	course.Location = strings.TrimSpace(in.Location)
	course.ContactInfo = strings.TrimSpace(in.ContactInfo)
	course.Fees = strings.TrimSpace(in.Fees)
	course.Description = strings.TrimSpace(in.Description)
	course.UpdatedAt = now
}

// TeacherCourses lists the courses the actor runs, newest first
func (s *CourseService) TeacherCourses(ctx context.Context, actor *models.User) ([]models.Course, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	courses, err := s.courses.ListCoursesByOwner(ctx, actor.ID)
	if err != nil {
		return nil, storeError("list courses", err)
	}
	return courses, nil
}

// Course returns a course to its teacher or an enrolled student
func (s *CourseService) Course(ctx context.Context, actor *models.User, courseID string) (*models.Course, error) {
	course, err := s.courses.GetCourse(ctx, courseID)
	if err != nil {
		return nil, storeError("get course", err)
	}
	if course.OwnerID == actor.ID {
		return course, nil
	}
	enrolled, err := s.courses.IsEnrolled(ctx, courseID, actor.ID)
	if err != nil {
		return nil, storeError("check enrollment", err)
	}
	if !enrolled {
		return nil, ErrForbidden
	}
	return course, nil
}

// UpdateCourse replaces the details of a course the actor runs
func (s *CourseService) UpdateCourse(ctx context.Context, actor *models.User, courseID string, in CourseInput) (*models.Course, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	course, err := s.ownedCourse(ctx, actor, courseID)
	if err != nil {
		return nil, err
	}

	applyCourseInput(course, in, s.now())
	if course.TeacherName == "" {
		course.TeacherName = actor.Name
	}
	if err := s.courses.UpdateCourse(ctx, course); err != nil {
		return nil, storeError("update course", err)
	}
	return course, nil
}

// DeleteCourse removes a course the actor runs along with its enrollments,
// exams and results
func (s *CourseService) DeleteCourse(ctx context.Context, actor *models.User, courseID string) error {
	if _, err := s.ownedCourse(ctx, actor, courseID); err != nil {
		return err
	}
	if err := s.courses.DeleteCourse(ctx, courseID); err != nil {
		return storeError("delete course", err)
	}
	s.logger.Infow("Course deleted", "course_id", courseID, "owner_id", actor.ID)
	return nil
}

// Enroll adds an active student to a course the actor runs
func (s *CourseService) Enroll(ctx context.Context, actor *models.User, courseID, studentID string) error {
	if err := validation.Required("student_id", studentID); err != nil {
		return err
	}
	if _, err := s.ownedCourse(ctx, actor, courseID); err != nil {
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

	enrollment := &models.Enrollment{
		CourseID:   courseID,
		StudentID:  studentID,
		TeacherID:  actor.ID,
		EnrolledAt: s.now(),
	}
	if err := s.courses.Enroll(ctx, enrollment); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return ErrAlreadyEnrolled
		}
		return storeError("enroll student", err)
	}
	return nil
}

// Unenroll removes a student from a course the actor runs
func (s *CourseService) Unenroll(ctx context.Context, actor *models.User, courseID, studentID string) error {
	if err := validation.Required("student_id", studentID); err != nil {
		return err
	}
	if _, err := s.ownedCourse(ctx, actor, courseID); err != nil {
		return err
	}
	if err := s.courses.Unenroll(ctx, courseID, studentID); err != nil {
		return storeError("unenroll student", err)
	}
	return nil
}

// EnrolledStudents lists the students of a course the actor runs, in the
// order they joined. Accounts removed since enrolling are skipped.
func (s *CourseService) EnrolledStudents(ctx context.Context, actor *models.User, courseID string) ([]EnrolledStudent, error) {
	if _, err := s.ownedCourse(ctx, actor, courseID); err != nil {
		return nil, err
	}
	enrollments, err := s.courses.ListEnrollments(ctx, courseID)
	if err != nil {
		return nil, storeError("list enrollments", err)
	}

	students := make([]EnrolledStudent, 0, len(enrollments))
	for _, e := range enrollments {
		user, err := s.users.GetUserByID(ctx, e.StudentID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storeError("get student", err)
		}
		if !user.IsActive {
			continue
		}
		students = append(students, EnrolledStudent{Student: *user, EnrolledAt: e.EnrolledAt})
	}
	return students, nil
}

// StudentCourses lists the courses the actor is enrolled in, most recently
// joined first
func (s *CourseService) StudentCourses(ctx context.Context, actor *models.User) ([]models.Course, error) {
	if actor.Role != models.RoleStudent {
		return nil, ErrForbidden
	}
	enrollments, err := s.courses.ListStudentEnrollments(ctx, actor.ID)
	if err != nil {
		return nil, storeError("list enrollments", err)
	}

	courses := make([]models.Course, 0, len(enrollments))
	for _, e := range enrollments {
		course, err := s.courses.GetCourse(ctx, e.CourseID)
		if errors.Is(err, repository.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, storeError("get course", err)
		}
		courses = append(courses, *course)
	}
	return courses, nil
}

// SearchStudents finds active students whose email contains query
func (s *CourseService) SearchStudents(ctx context.Context, actor *models.User, query string) ([]models.User, error) {
	if err := requireTeacher(actor); err != nil {
		return nil, err
	}
	if err := validation.Required("email", query); err != nil {
		return nil, err
	}
	students, err := s.users.SearchStudentsByEmail(ctx, strings.TrimSpace(query), StudentSearchLimit)
	if err != nil {
		return nil, storeError("search students", err)
	}
	return students, nil
}
