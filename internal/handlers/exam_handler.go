package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"classroom/internal/models"
	"classroom/internal/service"
)

// ExamHandler serves exam, result, report and public exam requests
type ExamHandler struct {
	exams  *service.ExamService
	logger *zap.SugaredLogger
}

// NewExamHandler creates a new exam handler
func NewExamHandler(exams *service.ExamService, logger *zap.SugaredLogger) *ExamHandler {
	return &ExamHandler{exams: exams, logger: logger}
}

type examRequest struct {
	Title        string          `json:"title"`
	Description  string          `json:"description"`
	Subject      string          `json:"subject"`
	Instructions string          `json:"instructions"`
	Duration     int             `json:"duration"`
	TotalMarks   float64         `json:"total_marks"`
	StartDate    *time.Time      `json:"start_date"`
	EndDate      *time.Time      `json:"end_date"`
	Questions    json.RawMessage `json:"questions"`
}

func (req examRequest) input(courseID string) service.ExamInput {
	return service.ExamInput{
		CourseID:        courseID,
		Title:           req.Title,
		Description:     req.Description,
		Subject:         req.Subject,
		Instructions:    req.Instructions,
		DurationMinutes: req.Duration,
		TotalMarks:      req.TotalMarks,
		StartDate:       req.StartDate,
		EndDate:         req.EndDate,
		Questions:       req.Questions,
	}
}

// CreateExam schedules an exam in one of the caller's courses
func (h *ExamHandler) CreateExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	exam, err := h.exams.CreateExam(r.Context(), GetUserFromContext(r.Context()), req.input(chi.URLParam(r, "id")))
	if err != nil {
		respondWithError(w, h.logger, "failed to create exam", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Exam created successfully", map[string]any{
		"exam_id": exam.ID,
		"exam":    newExamView(exam),
	})
}

// CourseExams lists the exams of a course
func (h *ExamHandler) CourseExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.exams.CourseExams(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list course exams", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"exams": newExamViews(exams)})
}

// CourseExam returns one exam of a course
func (h *ExamHandler) CourseExam(w http.ResponseWriter, r *http.Request) {
	exam, err := h.exams.CourseExam(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "examId"))
	if err != nil {
		respondWithError(w, h.logger, "failed to get exam", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"exam": newExamView(exam)})
}

// AvailableExams lists the exams open now in the caller's courses
func (h *ExamHandler) AvailableExams(w http.ResponseWriter, r *http.Request) {
	exams, err := h.exams.AvailableExams(r.Context(), GetUserFromContext(r.Context()))
	if err != nil {
		respondWithError(w, h.logger, "failed to list available exams", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"exams": newExamViews(exams)})
}

// DeleteExam removes an exam the caller created
func (h *ExamHandler) DeleteExam(w http.ResponseWriter, r *http.Request) {
	if err := h.exams.DeleteExam(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id")); err != nil {
		respondWithError(w, h.logger, "failed to delete exam", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Exam deleted successfully", nil)
}

type submitExamRequest struct {
	Score   *float64        `json:"score"`
	Answers json.RawMessage `json:"answers"`
}

// SubmitExam records the caller's attempt at an exam
func (h *ExamHandler) SubmitExam(w http.ResponseWriter, r *http.Request) {
	var req submitExamRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	if req.Score == nil {
		writeFailure(w, http.StatusBadRequest, ErrMissingFields)
		return
	}

	result, err := h.exams.SubmitResult(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), service.ResultInput{
		Score:   *req.Score,
		Answers: req.Answers,
	})
	if err != nil {
		respondWithError(w, h.logger, "failed to submit exam", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Exam submitted successfully", map[string]any{"result_id": result.ID})
}

// StudentResults lists a student's results in a course
func (h *ExamHandler) StudentResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.exams.StudentResults(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "studentId"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list student results", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"results": newExamResultViews(results)})
}

// ExamResults lists every result of an exam the caller created
func (h *ExamHandler) ExamResults(w http.ResponseWriter, r *http.Request) {
	results, err := h.exams.ExamResults(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list exam results", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"results": newExamResultViews(results)})
}

type updateResultRequest struct {
	ResultID string          `json:"result_id"`
	Score    *float64        `json:"score"`
	Answers  json.RawMessage `json:"answers"`
	Reviewed *bool           `json:"reviewed"`
}

// UpdateResult records the teacher's review of a result
func (h *ExamHandler) UpdateResult(w http.ResponseWriter, r *http.Request) {
	var req updateResultRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	if req.ResultID == "" || req.Score == nil {
		writeFailure(w, http.StatusBadRequest, ErrMissingFields)
		return
	}

	result, err := h.exams.ReviewResult(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), service.ReviewInput{
		ResultID: req.ResultID,
		Score:    *req.Score,
		Answers:  req.Answers,
		Reviewed: req.Reviewed,
	})
	if err != nil {
		respondWithError(w, h.logger, "failed to update result", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Result updated successfully", map[string]any{"result": newExamResultView(result)})
}

type reportRequest struct {
	ResultID      string `json:"result_id"`
	ContactMethod string `json:"contact_method"`
}

// writeReport sends the rendered report as an HTML attachment
func (h *ExamHandler) writeReport(w http.ResponseWriter, report *service.GradeReport) {
	htmlBody, _, err := report.Render()
	if err != nil {
		respondWithError(w, h.logger, "failed to render grade report", err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", report.Filename()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(htmlBody))
}

// GenerateReport returns the grade report of a result
func (h *ExamHandler) GenerateReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	if req.ResultID == "" {
		writeFailure(w, http.StatusBadRequest, ErrMissingFields)
		return
	}

	report, err := h.exams.GradeReport(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), req.ResultID)
	if err != nil {
		respondWithError(w, h.logger, "failed to generate report", err)
		return
	}
	h.writeReport(w, report)
}

// DownloadReport returns the grade report of a result named in the path
func (h *ExamHandler) DownloadReport(w http.ResponseWriter, r *http.Request) {
	report, err := h.exams.GradeReport(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), chi.URLParam(r, "resultId"))
	if err != nil {
		respondWithError(w, h.logger, "failed to download report", err)
		return
	}
	h.writeReport(w, report)
}

// SendReport mails the grade report of a result to its student
func (h *ExamHandler) SendReport(w http.ResponseWriter, r *http.Request) {
	var req reportRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	if req.ResultID == "" {
		writeFailure(w, http.StatusBadRequest, ErrMissingFields)
		return
	}

	report, err := h.exams.SendReport(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"), req.ResultID, req.ContactMethod)
	if err != nil {
		respondWithError(w, h.logger, "failed to send report", err)
		return
	}
	writeSuccess(w, http.StatusOK, "Report sent successfully", map[string]any{"sent_to": report.StudentEmail})
}

// TeacherTests lists every exam a teacher created
func (h *ExamHandler) TeacherTests(w http.ResponseWriter, r *http.Request) {
	exams, err := h.exams.TeacherTests(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list tests", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"tests": newExamViews(exams)})
}

// DuplicateTest copies an exam the caller created
func (h *ExamHandler) DuplicateTest(w http.ResponseWriter, r *http.Request) {
	exam, err := h.exams.DuplicateTest(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to duplicate test", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Test duplicated successfully", map[string]any{
		"test_id": exam.ID,
		"test":    newExamView(exam),
	})
}

// CreatePublicExam creates an exam guests can take through a shared link
func (h *ExamHandler) CreatePublicExam(w http.ResponseWriter, r *http.Request) {
	var req examRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}

	exam, err := h.exams.CreatePublicExam(r.Context(), GetUserFromContext(r.Context()), req.input(""))
	if err != nil {
		respondWithError(w, h.logger, "failed to create public exam", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Public exam created successfully", map[string]any{
		"exam_id": exam.ID,
		"exam":    newExamView(exam),
	})
}

// PublicExam returns an open public exam without authentication
func (h *ExamHandler) PublicExam(w http.ResponseWriter, r *http.Request) {
	exam, err := h.exams.PublicExam(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to get public exam", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"exam": newExamView(exam)})
}

type guestSubmissionRequest struct {
	ExamID      string          `json:"exam_id"`
	StudentInfo GuestView       `json:"student_info"`
	Score       *float64        `json:"score"`
	Answers     json.RawMessage `json:"answers"`
}

// SubmitPublicExam records a guest's attempt at a public exam
func (h *ExamHandler) SubmitPublicExam(w http.ResponseWriter, r *http.Request) {
	var req guestSubmissionRequest
	if err := decodeJSON(r, &req); err != nil {
		writeFailure(w, http.StatusBadRequest, ErrInvalidBody)
		return
	}
	if req.ExamID == "" || req.Score == nil {
		writeFailure(w, http.StatusBadRequest, ErrMissingFields)
		return
	}

	result, err := h.exams.SubmitGuest(r.Context(), service.GuestSubmissionInput{
		ExamID: req.ExamID,
		Guest: models.GuestInfo{
			Name:  req.StudentInfo.Name,
			Email: req.StudentInfo.Email,
			Phone: req.StudentInfo.Phone,
		},
		Score:   *req.Score,
		Answers: req.Answers,
	})
	if err != nil {
		respondWithError(w, h.logger, "failed to submit public exam", err)
		return
	}
	writeSuccess(w, http.StatusCreated, "Exam submitted successfully", map[string]any{
		"result_id":  result.ID,
		"percentage": result.Percentage(),
	})
}

// GuestSubmissions lists the guest attempts at a public exam the caller created
func (h *ExamHandler) GuestSubmissions(w http.ResponseWriter, r *http.Request) {
	results, err := h.exams.GuestSubmissions(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list guest submissions", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"submissions": newExamResultViews(results)})
}

// TeacherPublicExams lists a teacher's public exams with submission counts
func (h *ExamHandler) TeacherPublicExams(w http.ResponseWriter, r *http.Request) {
	summaries, err := h.exams.TeacherPublicExams(r.Context(), GetUserFromContext(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		respondWithError(w, h.logger, "failed to list public exams", err)
		return
	}
	writeSuccess(w, http.StatusOK, "", map[string]any{"exams": newPublicExamViews(summaries)})
}
