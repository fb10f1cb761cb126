package models

import (
	"encoding/json"
	"math"
	"time"
)

// Course is a private course a teacher runs and enrolls students in
type Course struct {
	ID          string
	OwnerID     string
	Name        string
	TeacherName string
	Subject     string
	Schedule    string
	Location    string
	ContactInfo string
	Fees        string
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Enrollment links a student to a course. A student is enrolled at most
// once per course.
type Enrollment struct {
	CourseID   string
	StudentID  string
	TeacherID  string
	EnrolledAt time.Time
}

// Exam is a timed test. Course exams belong to a course and are open between
// StartDate and EndDate; public exams have no course and are taken by guests
// through a shared link.
type Exam struct {
	ID              string
	CourseID        string
	CreatedBy       string
	Title           string
	Description     string
	Subject         string
	Instructions    string
	DurationMinutes int
	TotalMarks      float64
	StartDate       *time.Time
	EndDate         *time.Time
	Questions       json.RawMessage
	IsPublic        bool
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// IsOpen reports whether students can sit the exam at now
func (e *Exam) IsOpen(now time.Time) bool {
	if e.StartDate != nil && now.Before(*e.StartDate) {
		return false
	}
	if e.EndDate != nil && now.After(*e.EndDate) {
		return false
	}
	return true
}

// GuestInfo identifies a student without an account
type GuestInfo struct {
	Name  string
	Email string
	Phone string
}

// Submission types of an exam result
const (
	SubmissionRegistered = "registered"
	SubmissionGuest      = "guest"
)

// ExamResult is one sitting of an exam. Registered results carry the
// student's user ID; guest results carry GuestInfo instead.
type ExamResult struct {
	ID          string
	ExamID      string
	CourseID    string
	StudentID   string
	Guest       GuestInfo
	Score       float64
	TotalMarks  float64
	Answers     json.RawMessage
	Reviewed    bool
	ReviewedAt  *time.Time
	SubmittedAt time.Time
}

// SubmissionType returns "guest" for results without a student account
func (r *ExamResult) SubmissionType() string {
	if r.StudentID == "" {
		return SubmissionGuest
	}
	return SubmissionRegistered
}

// Percentage returns the score as a percentage of the total marks, rounded
// to two decimals
func (r *ExamResult) Percentage() float64 {
	if r.TotalMarks <= 0 {
		return 0
	}
	return math.Round(r.Score/r.TotalMarks*10000) / 100
}
