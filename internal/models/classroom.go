package models

import "time"

// Class is a teacher's class or subject with its enrolled students
type Class struct {
	ID          string
	Name        string
	TeacherID   string
	Description string
	Subject     string
	StudentIDs  []string
	CreatedAt   time.Time
}

// HasStudent reports whether the student is enrolled
func (c *Class) HasStudent(studentID string) bool {
	for _, id := range c.StudentIDs {
		if id == studentID {
			return true
		}
	}
	return false
}

// Assignment is work set for a class
type Assignment struct {
	ID          string
	ClassID     string
	TeacherID   string
	Title       string
	Description string
	DueDate     *time.Time
	MaxPoints   float64
	CreatedAt   time.Time
}

// Submission is a student's answer to an assignment
type Submission struct {
	ID           string
	AssignmentID string
	StudentID    string
	Content      string
	FileURL      string
	SubmittedAt  time.Time
}

// Grade records the points a student earned on an assignment.
// There is at most one grade per student and assignment.
type Grade struct {
	ID           string
	StudentID    string
	AssignmentID string
	Points       float64
	MaxPoints    float64
	Feedback     string
	GradedBy     string
	GradedAt     time.Time
}

// Percentage returns the grade as a percentage of the maximum points
func (g *Grade) Percentage() float64 {
	if g.MaxPoints <= 0 {
		return 0
	}
	return g.Points / g.MaxPoints * 100
}

// Announcement is a message posted to a class
type Announcement struct {
	ID        string
	ClassID   string
	TeacherID string
	Title     string
	Content   string
	CreatedAt time.Time
}
