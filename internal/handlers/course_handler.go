package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"classroom/internal/service"
)

// CourseHandler serves course and enrollment requests
type CourseHandler struct {
	courses *service.CourseService
	logger  *zap.SugaredLogger
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(courses *service.CourseService, logger *zap.SugaredLogger) *CourseHandler {
	return &CourseHandler{courses: courses, logger: logger}
}

type courseRequest struct {
	Name        string `json:"name"`
	TeacherName string `json:"teacher_name"`
	Subject     string `json:"subject"`
	Schedule    string `json:"schedule"`
	Location    string `json:"location"`
	ContactInfo string `json:"contact_info"`
	Fees        string `json:"fees"`
	Description string `json:"description"`
}

func (req courseRequest) input() service.CourseInput {
	return service.CourseInput{
		Name:        req.Name,
		TeacherName: req.TeacherName,
		Subject:     req.Subject,
		Schedule:    req.Schedule,
		Location:    req.Location,
		ContactInfo: req.ContactInfo,
		Fees:        req.Fees,
		Description: req.Description,
	}
}

// CreateCourse creates a course run by the caller
func (h *CourseHandler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	course, err := h.courses.CreateCourse(r.Context(), GetUserFromContext(r.Context()), req.input())
	if err != nil {
		respondWithError(w, h.logger, "failed to create course", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Course created successfully", map[string]any{
		"course_id": course.ID,
		"course":    newCourseView(course),
	})
}

// ListCourses lists the caller's courses
func (h *CourseHandler) ListCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.TeacherCourses(r.Context(), GetUserFromContext(r.Context()))
	if err != nil {
		respondWithError(w, h.logger, "failed to list courses", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"courses": newCourseViews(courses)})
}

// GetCourse returns a course to its teacher or an enrolled student
func (h *CourseHandler) GetCourse(w http.ResponseWriter, r *http.Request) {
	course, err := h.courses.Course(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to get course", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"course": newCourseView(course)})
}

// UpdateCourse replaces the details of one of the caller's courses
func (h *CourseHandler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	course, err := h.courses.UpdateCourse(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), req.input())
	if err != nil {
		respondWithError(w, h.logger, "failed to update course", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Course updated successfully", map[string]any{"course": newCourseView(course)})
}

// DeleteCourse removes one of the caller's courses
func (h *CourseHandler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	if err := h.courses.DeleteCourse(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondWithError(w, h.logger, "failed to delete course", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Course deleted successfully", nil)
}

type enrollmentRequest struct {
	StudentID string `json:"student_id"`
}

// Enroll adds a student to one of the caller's courses
func (h *CourseHandler) Enroll(w http.ResponseWriter, r *http.Request) {
	var req enrollmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	if req.StudentID == "" {
		writeFailure(w, http.StatusBadRequest, ErrMissingFields)
		return
	}

	if err := h.courses.Enroll(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), req.StudentID); err != nil {
		respondWithError(w, h.logger, "failed to enroll student", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Student enrolled successfully", nil)
}

// Unenroll removes a student from one of the caller's courses
func (h *CourseHandler) Unenroll(w http.ResponseWriter, r *http.Request) {
	var req enrollmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	if req.StudentID == "" {
		writeFailure(w, http.StatusBadRequest, ErrMissingFields)
		return
	}

	if err := h.courses.Unenroll(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), req.StudentID); err != nil {
		respondWithError(w, h.logger, "failed to unenroll student", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Student removed from course", nil)
}

// EnrolledStudents lists the students of one of the caller's courses
func (h *CourseHandler) EnrolledStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.courses.EnrolledStudents(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list enrolled students", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"students": newEnrolledStudentViews(students)})
}

// StudentCourses lists the courses the caller is enrolled in
func (h *CourseHandler) StudentCourses(w http.ResponseWriter, r *http.Request) {
	courses, err := h.courses.StudentCourses(r.Context(), GetUserFromContext(r.Context()))
	if err != nil {
		respondWithError(w, h.logger, "failed to list enrolled courses", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"courses": newCourseViews(courses)})
}

// SearchStudents finds students by a fragment of their email address
func (h *CourseHandler) SearchStudents(w http.ResponseWriter, r *http.Request) {
	students, err := h.courses.SearchStudents(r.Context(), GetUserFromContext(r.Context()), r.URL.Query().Get("email"))
	if err != nil {
		respondWithError(w, h.logger, "failed to search students", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"students": newUserViews(students)})
}
