package handlers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"classroom/internal/service"
)

// ClassroomHandler serves class, assignment, grade and announcement requests
type ClassroomHandler struct {
	classroom *service.ClassroomService
	logger    *zap.SugaredLogger
}

// NewClassroomHandler creates a new classroom handler
func NewClassroomHandler(classroom *service.ClassroomService, logger *zap.SugaredLogger) *ClassroomHandler {
	return &ClassroomHandler{classroom: classroom, logger: logger}
}

type createClassRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Subject     string `json:"subject"`
}

// CreateClass creates a class taught by the caller
func (h *ClassroomHandler) CreateClass(w http.ResponseWriter, r *http.Request) {
	var req createClassRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	class, err := h.classroom.CreateClass(r.Context(), GetUserFromContext(r.Context()), service.ClassInput{
		Name:        req.Name,
		Description: req.Description,
		Subject:     req.Subject,
	})
	if err != nil {
		respondWithError(w, h.logger, "failed to create class", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Class created successfully", map[string]any{"class_id": class.ID})
}

// AddStudent enrolls a student in one of the caller's classes
func (h *ClassroomHandler) AddStudent(w http.ResponseWriter, r *http.Request) {
	err := h.classroom.AddStudent(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "studentId"))
	if err != nil {
		respondWithError(w, h.logger, "failed to add student", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Student added to class", nil)
}

// TeacherClasses lists the classes of a teacher
func (h *ClassroomHandler) TeacherClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.classroom.TeacherClasses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list teacher classes", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"classes": newClassViews(classes)})
}

// StudentClasses lists the classes a student is enrolled in
func (h *ClassroomHandler) StudentClasses(w http.ResponseWriter, r *http.Request) {
	classes, err := h.classroom.StudentClasses(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list student classes", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"classes": newClassViews(classes)})
}

type createAssignmentRequest struct {
	ClassID     string     `json:"class_id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	DueDate     *time.Time `json:"due_date"`
	MaxPoints   float64    `json:"max_points"`
}

// CreateAssignment sets work for one of the caller's classes
func (h *ClassroomHandler) CreateAssignment(w http.ResponseWriter, r *http.Request) {
	var req createAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	if req.ClassID == "" || req.Title == "" {
		writeFailure(w, http.StatusBadRequest, ErrMissingFields)
		return
	}

	assignment, err := h.classroom.CreateAssignment(r.Context(), GetUserFromContext(r.Context()), service.AssignmentInput{
		ClassID:     req.ClassID,
		Title:       req.Title,
		Description: req.Description,
		DueDate:     req.DueDate,
		MaxPoints:   req.MaxPoints,
	})
	if err != nil {
		respondWithError(w, h.logger, "failed to create assignment", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Assignment created successfully", map[string]any{"assignment_id": assignment.ID})
}

type submitAssignmentRequest struct {
	Content string `json:"content"`
	FileURL string `json:"file_url"`
}

// SubmitAssignment records the caller's answer
func (h *ClassroomHandler) SubmitAssignment(w http.ResponseWriter, r *http.Request) {
	var req submitAssignmentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	submission, err := h.classroom.SubmitAssignment(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), service.SubmissionInput{
		Content: req.Content,
		FileURL: req.FileURL,
	})
	if err != nil {
		respondWithError(w, h.logger, "failed to submit assignment", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Assignment submitted successfully", map[string]any{"submission_id": submission.ID})
}

// Submissions lists the answers to one of the caller's assignments
func (h *ClassroomHandler) Submissions(w http.ResponseWriter, r *http.Request) {
	submissions, err := h.classroom.Submissions(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list submissions", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"submissions": newSubmissionViews(submissions)})
}

type gradeRequest struct {
	StudentID    string   `json:"student_id"`
	AssignmentID string   `json:"assignment_id"`
	Points       *float64 `json:"points"`
	MaxPoints    float64  `json:"max_points"`
	Feedback     string   `json:"feedback"`
}

// Grade records or replaces a student's grade
func (h *ClassroomHandler) Grade(w http.ResponseWriter, r *http.Request) {
	var req gradeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	if req.StudentID == "" || req.AssignmentID == "" || req.Points == nil {
		writeFailure(w, http.StatusBadRequest, ErrMissingFields)
		return
	}

	grade, err := h.classroom.GradeStudent(r.Context(), GetUserFromContext(r.Context()), service.GradeInput{
		StudentID:    req.StudentID,
		AssignmentID: req.AssignmentID,
		Points:       *req.Points,
		MaxPoints:    req.MaxPoints,
		Feedback:     req.Feedback,
	})
	if err != nil {
		respondWithError(w, h.logger, "failed to save grade", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Grade saved successfully", map[string]any{"grade_id": grade.ID})
}

// StudentGrades lists a student's grades
func (h *ClassroomHandler) StudentGrades(w http.ResponseWriter, r *http.Request) {
	grades, err := h.classroom.StudentGrades(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list grades", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"grades": newGradeViews(grades)})
}

type announcementRequest struct {
	ClassID string `json:"class_id"`
	Title   string `json:"title"`
	Content string `json:"content"`
}

// CreateAnnouncement posts a message to one of the caller's classes
func (h *ClassroomHandler) CreateAnnouncement(w http.ResponseWriter, r *http.Request) {
	var req announcementRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	if req.ClassID == "" || req.Title == "" || req.Content == "" {
		writeFailure(w, http.StatusBadRequest, ErrMissingFields)
		return
	}

	announcement, err := h.classroom.PostAnnouncement(r.Context(), GetUserFromContext(r.Context()), service.AnnouncementInput{
		ClassID: req.ClassID,
		Title:   req.Title,
		Content: req.Content,
	})
	if err != nil {
		respondWithError(w, h.logger, "failed to create announcement", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Announcement posted successfully", map[string]any{"announcement_id": announcement.ID})
}

// Announcements lists the newest announcements of a class
func (h *ClassroomHandler) Announcements(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			writeFailure(w, http.StatusBadRequest, "limit must be a number")
			return
		}
		limit = n
	}

	announcements, err := h.classroom.Announcements(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), limit)
	if err != nil {
		respondWithError(w, h.logger, "failed to list announcements", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"announcements": newAnnouncementViews(announcements)})
}
