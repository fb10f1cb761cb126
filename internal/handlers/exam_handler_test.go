package handlers

import (
	"net/http"
	"strings"
	"testing"
	"time"
)

// createExam schedules an exam in the fixture course open between start and end
func (f *courseFixture) createExam(t *testing.T, title string, start, end time.Time) string {
	t.Helper()
	rec := f.s.do(t, http.MethodPost, "/api/courses/"+f.courseID+"/exams", map[string]any{
		"title":       title,
		"duration":    45,
		"total_marks": 50,
		"start_date":  start.UTC().Format(time.RFC3339),
		"end_date":    end.UTC().Format(time.RFC3339),
		"questions":   []map[string]any{{"q": "What is magma?", "marks": 50}},
	}, f.teacherToken)
	body := expectStatus(t, rec, http.StatusCreated)
	return body["exam_id"].(string)
}

func TestExamEndToEnd(t *testing.T) {
	f := newCourseFixture(t)
	s := f.s
	now := time.Now()
	examID := f.createExam(t, "Rocks quiz", now.Add(-time.Hour), now.Add(time.Hour))

	rec := s.do(t, http.MethodGet, "/api/exams/available", nil, f.studentToken)
	body := expectStatus(t, rec, http.StatusOK)
	exams := body["exams"].([]any)
	if len(exams) != 1 || exams[0].(map[string]any)["_id"] != examID {
		t.Fatalf("available exams = %v", exams)
	}

	rec = s.do(t, http.MethodGet, "/api/courses/"+f.courseID+"/exams/"+examID, nil, f.studentToken)
	body = expectStatus(t, rec, http.StatusOK)
	if subject := body["exam"].(map[string]any)["subject"]; subject != "science" {
		t.Errorf("exam subject = %v, want course subject", subject)
	}

	submission := map[string]any{"score": 30, "answers": []string{"molten rock"}}
	rec = s.do(t, http.MethodPost, "/api/exams/"+examID+"/submit", submission, f.studentToken)
	body = expectStatus(t, rec, http.StatusCreated)
	resultID := body["result_id"].(string)

	rec = s.do(t, http.MethodPost, "/api/exams/"+examID+"/submit", submission, f.studentToken)
	expectStatus(t, rec, http.StatusConflict)

	rec = s.do(t, http.MethodGet, "/api/exams/"+examID+"/download-report/"+resultID, nil, f.studentToken)
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do(t, http.MethodPut, "/api/exams/"+examID+"/update-result", map[string]any{"result_id": resultID, "score": 40}, f.teacherToken)
	body = expectStatus(t, rec, http.StatusOK)
	result := body["result"].(map[string]any)
	if result["reviewed"] != true || result["percentage"] != 80.0 {
		t.Errorf("reviewed result = %v", result)
	}

	rec = s.do(t, http.MethodGet, "/api/courses/"+f.courseID+"/results/"+f.studentID, nil, f.studentToken)
	body = expectStatus(t, rec, http.StatusOK)
	if results := body["results"].([]any); len(results) != 1 {
		t.Errorf("student results = %d, want 1", len(results))
	}

	rec = s.do(t, http.MethodGet, "/api/exams/"+examID+"/download-report/"+resultID, nil, f.studentToken)
	if rec.Code != http.StatusOK {
		t.Fatalf("download status = %d (body %s)", rec.Code, rec.Body.String())
	}
	if cd := rec.Header().Get("Content-Disposition"); !strings.Contains(cd, "grade-report-"+resultID+".html") {
		t.Errorf("Content-Disposition = %q", cd)
	}
	if !strings.Contains(rec.Body.String(), "Rocks quiz") || !strings.Contains(rec.Body.String(), "Arnold") {
		t.Errorf("report body = %s", rec.Body.String())
	}

	rec = s.do(t, http.MethodPost, "/api/exams/"+examID+"/generate-report", map[string]string{"result_id": resultID}, f.teacherToken)
	if rec.Code != http.StatusOK || !strings.HasPrefix(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("generate-report = %d %q", rec.Code, rec.Header().Get("Content-Type"))
	}

	rec = s.do(t, http.MethodPost, "/api/exams/"+examID+"/send-report", map[string]string{"result_id": resultID, "contact_method": "Email"}, f.teacherToken)
	body = expectStatus(t, rec, http.StatusOK)
	if body["sent_to"] != "arnold@example.com" {
		t.Errorf("sent_to = %v", body["sent_to"])
	}
	rec = s.do(t, http.MethodPost, "/api/exams/"+examID+"/send-report", map[string]string{"result_id": resultID, "contact_method": "WhatsApp"}, f.teacherToken)
	expectStatus(t, rec, http.StatusBadRequest)

	rec = s.do(t, http.MethodGet, "/api/exams/"+examID+"/results", nil, f.teacherToken)
	body = expectStatus(t, rec, http.StatusOK)
	if results := body["results"].([]any); len(results) != 1 || results[0].(map[string]any)["submission_type"] != "registered" {
		t.Errorf("exam results = %v", results)
	}

	rec = s.do(t, http.MethodDelete, "/api/exams/"+examID, nil, f.teacherToken)
	expectStatus(t, rec, http.StatusOK)
	rec = s.do(t, http.MethodGet, "/api/exams/"+examID+"/results", nil, f.teacherToken)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestExamErrors(t *testing.T) {
	f := newCourseFixture(t)
	now := time.Now()
	openID := f.createExam(t, "Open", now.Add(-time.Hour), now.Add(time.Hour))
	closedID := f.createExam(t, "Closed", now.Add(-2*time.Hour), now.Add(-time.Hour))

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		token  string
		want   int
	}{
		{name: "closed exam", method: http.MethodPost, path: "/api/exams/" + closedID + "/submit", body: map[string]any{"score": 10}, token: f.studentToken, want: http.StatusForbidden},
		{name: "missing score", method: http.MethodPost, path: "/api/exams/" + openID + "/submit", body: map[string]any{}, token: f.studentToken, want: http.StatusBadRequest},
		{name: "score above total", method: http.MethodPost, path: "/api/exams/" + openID + "/submit", body: map[string]any{"score": 51}, token: f.studentToken, want: http.StatusBadRequest},
		{name: "teacher submits", method: http.MethodPost, path: "/api/exams/" + openID + "/submit", body: map[string]any{"score": 10}, token: f.teacherToken, want: http.StatusForbidden},
		{name: "student reads results", method: http.MethodGet, path: "/api/exams/" + openID + "/results", token: f.studentToken, want: http.StatusForbidden},
		{name: "other teacher creates exam", method: http.MethodPost, path: "/api/courses/" + f.courseID + "/exams", body: map[string]any{"title": "X", "duration": 10, "total_marks": 10, "start_date": now.UTC().Format(time.RFC3339), "end_date": now.Add(time.Hour).UTC().Format(time.RFC3339)}, token: f.otherToken, want: http.StatusForbidden},
		{name: "exam without dates", method: http.MethodPost, path: "/api/courses/" + f.courseID + "/exams", body: map[string]any{"title": "X", "duration": 10, "total_marks": 10}, token: f.teacherToken, want: http.StatusBadRequest},
		{name: "update without result", method: http.MethodPut, path: "/api/exams/" + openID + "/update-result", body: map[string]any{"score": 1}, token: f.teacherToken, want: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.s.do(t, tt.method, tt.path, tt.body, tt.token)
			expectStatus(t, rec, tt.want)
		})
	}
}

func TestTeacherTestsAndDuplicate(t *testing.T) {
	f := newCourseFixture(t)
	s := f.s
	now := time.Now()
	examID := f.createExam(t, "Rocks quiz", now.Add(-time.Hour), now.Add(time.Hour))

	rec := s.do(t, http.MethodPost, "/api/tests/"+examID+"/duplicate", nil, f.teacherToken)
	body := expectStatus(t, rec, http.StatusCreated)
	copyID := body["test_id"].(string)
	if title := body["test"].(map[string]any)["title"]; title != "Rocks quiz (Copy)" {
		t.Errorf("copy title = %v", title)
	}

	rec = s.do(t, http.MethodGet, "/api/teacher/"+f.teacherID+"/tests", nil, f.teacherToken)
	body = expectStatus(t, rec, http.StatusOK)
	if tests := body["tests"].([]any); len(tests) != 2 {
		t.Errorf("tests = %d, want 2", len(tests))
	}
	rec = s.do(t, http.MethodGet, "/api/teacher/"+f.teacherID+"/tests", nil, f.otherToken)
	expectStatus(t, rec, http.StatusForbidden)
	rec = s.do(t, http.MethodPost, "/api/tests/"+examID+"/duplicate", nil, f.otherToken)
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do(t, http.MethodDelete, "/api/tests/"+copyID, nil, f.teacherToken)
	expectStatus(t, rec, http.StatusOK)
	rec = s.do(t, http.MethodGet, "/api/teacher/"+f.teacherID+"/tests", nil, f.teacherToken)
	body = expectStatus(t, rec, http.StatusOK)
	if tests := body["tests"].([]any); len(tests) != 1 {
		t.Errorf("tests after delete = %d, want 1", len(tests))
	}
}

func TestPublicExamGuestFlow(t *testing.T) {
	f := newCourseFixture(t)
	s := f.s

	rec := s.do(t, http.MethodPost, "/api/public-exams", map[string]any{
		"title":       "Open day quiz",
		"duration":    20,
		"total_marks": 10,
		"questions":   []string{"Name a mineral"},
	}, f.teacherToken)
	body := expectStatus(t, rec, http.StatusCreated)
	examID := body["exam_id"].(string)

	rec = s.do(t, http.MethodGet, "/api/public-exams/"+examID, nil, "")
	body = expectStatus(t, rec, http.StatusOK)
	if body["exam"].(map[string]any)["is_public"] != true {
		t.Errorf("public exam = %v", body["exam"])
	}

	tests := []struct {
		name string
		body map[string]any
		want int
	}{
		{name: "email guest", body: map[string]any{"exam_id": examID, "score": 7, "student_info": map[string]string{"name": "Dorothy", "email": "Dorothy@Example.com"}}, want: http.StatusCreated},
		{name: "phone guest", body: map[string]any{"exam_id": examID, "score": 9, "student_info": map[string]string{"name": "Phoebe", "phone": "+44 7700 900000"}}, want: http.StatusCreated},
		{name: "no contact", body: map[string]any{"exam_id": examID, "score": 5, "student_info": map[string]string{"name": "Nobody"}}, want: http.StatusBadRequest},
		{name: "no name", body: map[string]any{"exam_id": examID, "score": 5, "student_info": map[string]string{"email": "x@example.com"}}, want: http.StatusBadRequest},
		{name: "missing exam", body: map[string]any{"score": 5, "student_info": map[string]string{"name": "A", "email": "a@example.com"}}, want: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/api/public-exams/submit", tt.body, "")
			expectStatus(t, rec, tt.want)
		})
	}

	rec = s.do(t, http.MethodGet, "/api/public-exams/"+examID+"/submissions", nil, f.teacherToken)
	body = expectStatus(t, rec, http.StatusOK)
	subs := body["submissions"].([]any)
	if len(subs) != 2 {
		t.Fatalf("submissions = %d, want 2", len(subs))
	}
	top := subs[0].(map[string]any)
	if top["submission_type"] != "guest" || top["student_info"].(map[string]any)["name"] != "Phoebe" {
		t.Errorf("top submission = %v", top)
	}

	rec = s.do(t, http.MethodGet, "/api/teacher/"+f.teacherID+"/public-exams", nil, f.teacherToken)
	body = expectStatus(t, rec, http.StatusOK)
	exams := body["exams"].([]any)
	if len(exams) != 1 || exams[0].(map[string]any)["submission_count"] != 2.0 {
		t.Errorf("public exams = %v", exams)
	}

	rec = s.do(t, http.MethodGet, "/api/public-exams/"+examID+"/submissions", nil, "")
	expectStatus(t, rec, http.StatusUnauthorized)
}
