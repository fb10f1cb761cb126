package handlers

import (
	"encoding/json"
	"time"

	"classroom/internal/models"
	"classroom/internal/service"
)

// UserView is the public JSON form of a user. It never carries the password hash.
type UserView struct {
	ID              string    `json:"_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Role            string    `json:"role"`
	AuthMethod      string    `json:"auth_method"`
	OAuthProvider   string    `json:"oauth_provider,omitempty"`
	ProfilePicture  string    `json:"profile_picture,omitempty"`
	ClassSubject    string    `json:"class_subject,omitempty"`
	ProfileComplete bool      `json:"profile_complete"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

func newUserView(u *models.User) UserView {
	return UserView{
		ID:              u.ID,
		Name:            u.Name,
		Email:           u.Email,
		Role:            string(u.Role),
		AuthMethod:      u.AuthMethod().String(),
		OAuthProvider:   u.External.Provider,
		ProfilePicture:  u.ProfilePicture,
		ClassSubject:    u.ClassSubject,
		ProfileComplete: u.ProfileComplete,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

func newUserViews(users []models.User) []UserView {
	views := make([]UserView, 0, len(users))
	for i := range users {
		views = append(views, newUserView(&users[i]))
	}
	return views
}

type ClassView struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	TeacherID   string    `json:"teacher_id"`
	Description string    `json:"description,omitempty"`
	Subject     string    `json:"subject,omitempty"`
	Students    []string  `json:"students"`
	CreatedAt   time.Time `json:"created_at"`
}

func newClassViews(classes []models.Class) []ClassView {
	views := make([]ClassView, 0, len(classes))
	for _, c := range classes {
		students := c.StudentIDs
		if students == nil {
			students = []string{}
		}
		views = append(views, ClassView{
			ID:          c.ID,
			Name:        c.Name,
			TeacherID:   c.TeacherID,
			Description: c.Description,
			Subject:     c.Subject,
			Students:    students,
			CreatedAt:   c.CreatedAt,
		})
	}
	return views
}

type SubmissionView struct {
	ID           string    `json:"_id"`
	AssignmentID string    `json:"assignment_id"`
	StudentID    string    `json:"student_id"`
	Content      string    `json:"content"`
	FileURL      string    `json:"file_url,omitempty"`
	SubmittedAt  time.Time `json:"submitted_at"`
}

func newSubmissionViews(subs []models.Submission) []SubmissionView {
	views := make([]SubmissionView, 0, len(subs))
	for _, s := range subs {
		views = append(views, SubmissionView{
			ID:           s.ID,
			AssignmentID: s.AssignmentID,
			StudentID:    s.StudentID,
			Content:      s.Content,
			FileURL:      s.FileURL,
			SubmittedAt:  s.SubmittedAt,
		})
	}
	return views
}

type GradeView struct {
	ID           string    `json:"_id"`
	StudentID    string    `json:"student_id"`
	AssignmentID string    `json:"assignment_id"`
	Points       float64   `json:"points"`
	MaxPoints    float64   `json:"max_points"`
	Percentage   float64   `json:"percentage"`
	Feedback     string    `json:"feedback,omitempty"`
	GradedBy     string    `json:"graded_by"`
	GradedAt     time.Time `json:"graded_at"`
}

func newGradeViews(grades []models.Grade) []GradeView {
	views := make([]GradeView, 0, len(grades))
	for i := range grades {
		g := &grades[i]
		views = append(views, GradeView{
			ID:           g.ID,
			StudentID:    g.StudentID,
			AssignmentID: g.AssignmentID,
			Points:       g.Points,
			MaxPoints:    g.MaxPoints,
			Percentage:   g.Percentage(),
			Feedback:     g.Feedback,
			GradedBy:     g.GradedBy,
			GradedAt:     g.GradedAt,
		})
	}
	return views
}

type AnnouncementView struct {
	ID        string    `json:"_id"`
	ClassID   string    `json:"class_id"`
	TeacherID string    `json:"teacher_id"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	CreatedAt time.Time `json:"created_at"`
}

func newAnnouncementViews(items []models.Announcement) []AnnouncementView {
	views := make([]AnnouncementView, 0, len(items))
	for _, a := range items {
		views = append(views, AnnouncementView{
			ID:        a.ID,
			ClassID:   a.ClassID,
			TeacherID: a.TeacherID,
			Title:     a.Title,
			Content:   a.Content,
			CreatedAt: a.CreatedAt,
		})
	}
	return views
}

type CourseView struct {
	ID          string    `json:"_id"`
	Name        string    `json:"name"`
	TeacherName string    `json:"teacher_name"`
	Subject     string    `json:"subject"`
	Schedule    string    `json:"schedule,omitempty"`
	Location    string    `json:"location,omitempty"`
	ContactInfo string    `json:"contact_info,omitempty"`
	Fees        string    `json:"fees,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedBy   string    `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func newCourseView(c *models.Course) CourseView {
	return CourseView{
		ID:          c.ID,
		Name:        c.Name,
		TeacherName: c.TeacherName,
		Subject:     c.Subject,
		Schedule:    c.Schedule,
		Location:    c.Location,
		ContactInfo: c.ContactInfo,
		Fees:        c.Fees,
		Description: c.Description,
		CreatedBy:   c.OwnerID,
		CreatedAt:   c.CreatedAt,
		UpdatedAt:   c.UpdatedAt,
	}
}

func newCourseViews(courses []models.Course) []CourseView {
	views := make([]CourseView, 0, len(courses))
	for i := range courses {
		views = append(views, newCourseView(&courses[i]))
	}
	return views
}

type EnrolledStudentView struct {
	ID         string    `json:"_id"`
	Name       string    `json:"name"`
	Email      string    `json:"email"`
	EnrolledAt time.Time `json:"enrolled_at"`
}

func newEnrolledStudentViews(students []service.EnrolledStudent) []EnrolledStudentView {
	views := make([]EnrolledStudentView, 0, len(students))
	for _, s := range students {
		views = append(views, EnrolledStudentView{
			ID:         s.Student.ID,
			Name:       s.Student.Name,
			Email:      s.Student.Email,
			EnrolledAt: s.EnrolledAt,
		})
	}
	return views
}

type ExamView struct {
	ID              string          `json:"_id"`
	CourseID        string          `json:"course_id,omitempty"`
	Title           string          `json:"title"`
	Description     string          `json:"description,omitempty"`
	Subject         string          `json:"subject,omitempty"`
	Instructions    string          `json:"instructions,omitempty"`
	Duration        int             `json:"duration"`
	TotalMarks      float64         `json:"total_marks"`
	StartDate       *time.Time      `json:"start_date,omitempty"`
	EndDate         *time.Time      `json:"end_date,omitempty"`
	Questions       json.RawMessage `json:"questions"`
	IsPublic        bool            `json:"is_public"`
	CreatedBy       string          `json:"created_by"`
	SubmissionCount *int            `json:"submission_count,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
}

func newExamView(e *models.Exam) ExamView {
	questions := e.Questions
	if len(questions) == 0 {
		questions = json.RawMessage("[]")
	}
	return ExamView{
		ID:           e.ID,
		CourseID:     e.CourseID,
		Title:        e.Title,
		Description:  e.Description,
		Subject:      e.Subject,
		Instructions: e.Instructions,
		Duration:     e.DurationMinutes,
		TotalMarks:   e.TotalMarks,
		StartDate:    e.StartDate,
		EndDate:      e.EndDate,
		Questions:    questions,
		IsPublic:     e.IsPublic,
		CreatedBy:    e.CreatedBy,
		CreatedAt:    e.CreatedAt,
	}
}

func newExamViews(exams []models.Exam) []ExamView {
	views := make([]ExamView, 0, len(exams))
	for i := range exams {
		views = append(views, newExamView(&exams[i]))
	}
	return views
}

func newPublicExamViews(summaries []service.PublicExamSummary) []ExamView {
	views := make([]ExamView, 0, len(summaries))
	for i := range summaries {
		view := newExamView(&summaries[i].Exam)
		count := summaries[i].SubmissionCount
		view.SubmissionCount = &count
		views = append(views, view)
	}
	return views
}

type GuestView struct {
	Name  string `json:"name"`
	Email string `json:"email,omitempty"`
	Phone string `json:"phone,omitempty"`
}

type ExamResultView struct {
	ID             string          `json:"_id"`
	ExamID         string          `json:"exam_id"`
	CourseID       string          `json:"course_id,omitempty"`
	StudentID      string          `json:"student_id,omitempty"`
	StudentInfo    *GuestView      `json:"student_info,omitempty"`
	SubmissionType string          `json:"submission_type"`
	Score          float64         `json:"score"`
	TotalMarks     float64         `json:"total_marks"`
	Percentage     float64         `json:"percentage"`
	Answers        json.RawMessage `json:"answers"`
	Reviewed       bool            `json:"reviewed"`
	ReviewedAt     *time.Time      `json:"reviewed_at,omitempty"`
	SubmittedAt    time.Time       `json:"submitted_at"`
}

func newExamResultView(r *models.ExamResult) ExamResultView {
	answers := r.Answers
	if len(answers) == 0 {
		answers = json.RawMessage("[]")
	}
	view := ExamResultView{
		ID:             r.ID,
		ExamID:         r.ExamID,
		CourseID:       r.CourseID,
		StudentID:      r.StudentID,
		SubmissionType: r.SubmissionType(),
		Score:          r.Score,
		TotalMarks:     r.TotalMarks,
		Percentage:     r.Percentage(),
		Answers:        answers,
		Reviewed:       r.Reviewed,
		ReviewedAt:     r.ReviewedAt,
		SubmittedAt:    r.SubmittedAt,
	}
	if view.SubmissionType == models.SubmissionGuest {
		view.StudentInfo = &GuestView{Name: r.Guest.Name, Email: r.Guest.Email, Phone: r.Guest.Phone}
	}
	return view
}

func newExamResultViews(results []models.ExamResult) []ExamResultView {
	views := make([]ExamResultView, 0, len(results))
	for i := range results {
		views = append(views, newExamResultView(&results[i]))
	}
	return views
}
