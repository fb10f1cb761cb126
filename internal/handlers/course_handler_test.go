package handlers

import (
	"net/http"
	"testing"
)

type courseFixture struct {
	s            *testServer
	teacherID    string
	teacherToken string
	otherToken   string
	studentID    string
	studentToken string
	courseID     string
}

func newCourseFixture(t *testing.T) *courseFixture {
	t.Helper()
	s := newTestServer(t)
	f := &courseFixture{s: s}

	f.teacherID = s.signUp(t, "Ms Frizzle", "frizzle@example.com", "secret1", "teacher")
	f.teacherToken = s.login(t, "frizzle@example.com", "secret1")
	s.signUp(t, "Mr Ratburn", "ratburn@example.com", "secret1", "teacher")
	f.otherToken = s.login(t, "ratburn@example.com", "secret1")
	f.studentID = s.signUp(t, "Arnold", "arnold@example.com", "secret1", "student")
	f.studentToken = s.login(t, "arnold@example.com", "secret1")

	rec := s.do(t, http.MethodPost, "/api/courses", map[string]string{
		"name":     "Geology",
		"subject":  "science",
		"schedule": "Mon 9am",
	}, f.teacherToken)
	body := expectStatus(t, rec, http.StatusCreated)
	f.courseID = body["course_id"].(string)

	rec = s.do(t, http.MethodPost, "/api/courses/"+f.courseID+"/enroll", map[string]string{"student_id": f.studentID}, f.teacherToken)
	expectStatus(t, rec, http.StatusOK)
	return f
}

func TestCourseEndToEnd(t *testing.T) {
	f := newCourseFixture(t)
	s := f.s

	rec := s.do(t, http.MethodGet, "/api/courses", nil, f.teacherToken)
	body := expectStatus(t, rec, http.StatusOK)
	courses := body["courses"].([]any)
	if len(courses) != 1 {
		t.Fatalf("courses = %d, want 1", len(courses))
	}
	course := courses[0].(map[string]any)
	if course["teacher_name"] != "Ms Frizzle" || course["created_by"] != f.teacherID {
		t.Errorf("course = %v", course)
	}

	rec = s.do(t, http.MethodGet, "/api/courses/"+f.courseID, nil, f.studentToken)
	body = expectStatus(t, rec, http.StatusOK)
	if got := body["course"].(map[string]any)["name"]; got != "Geology" {
		t.Errorf("course name = %v", got)
	}

	rec = s.do(t, http.MethodGet, "/api/students/enrolled-courses", nil, f.studentToken)
	body = expectStatus(t, rec, http.StatusOK)
	if got := body["courses"].([]any); len(got) != 1 {
		t.Errorf("enrolled courses = %d, want 1", len(got))
	}

	rec = s.do(t, http.MethodGet, "/api/courses/"+f.courseID+"/students", nil, f.teacherToken)
	body = expectStatus(t, rec, http.StatusOK)
	students := body["students"].([]any)
	if len(students) != 1 || students[0].(map[string]any)["_id"] != f.studentID {
		t.Errorf("students = %v", students)
	}

	rec = s.do(t, http.MethodPut, "/api/courses/"+f.courseID, map[string]string{"name": "Geology II", "subject": "science"}, f.teacherToken)
	body = expectStatus(t, rec, http.StatusOK)
	if got := body["course"].(map[string]any)["name"]; got != "Geology II" {
		t.Errorf("updated name = %v", got)
	}

	rec = s.do(t, http.MethodPost, "/api/courses/"+f.courseID+"/unenroll", map[string]string{"student_id": f.studentID}, f.teacherToken)
	expectStatus(t, rec, http.StatusOK)
	rec = s.do(t, http.MethodGet, "/api/courses/"+f.courseID, nil, f.studentToken)
	expectStatus(t, rec, http.StatusForbidden)

	rec = s.do(t, http.MethodDelete, "/api/courses/"+f.courseID, nil, f.teacherToken)
	expectStatus(t, rec, http.StatusOK)
	rec = s.do(t, http.MethodGet, "/api/courses/"+f.courseID, nil, f.teacherToken)
	expectStatus(t, rec, http.StatusNotFound)
}

func TestCourseErrors(t *testing.T) {
	f := newCourseFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
		token  string
		want   int
	}{
		{name: "no session", method: http.MethodGet, path: "/api/courses", want: http.StatusUnauthorized},
		{name: "student creates course", method: http.MethodPost, path: "/api/courses", body: map[string]string{"name": "Art", "subject": "art"}, token: f.studentToken, want: http.StatusForbidden},
		{name: "missing subject", method: http.MethodPost, path: "/api/courses", body: map[string]string{"name": "Art"}, token: f.teacherToken, want: http.StatusBadRequest},
		{name: "empty body", method: http.MethodPost, path: "/api/courses", token: f.teacherToken, want: http.StatusBadRequest},
		{name: "enroll twice", method: http.MethodPost, path: "/api/courses/" + f.courseID + "/enroll", body: map[string]string{"student_id": f.studentID}, token: f.teacherToken, want: http.StatusConflict},
		{name: "enroll without student", method: http.MethodPost, path: "/api/courses/" + f.courseID + "/enroll", body: map[string]string{}, token: f.teacherToken, want: http.StatusBadRequest},
		{name: "other teacher enrolls", method: http.MethodPost, path: "/api/courses/" + f.courseID + "/enroll", body: map[string]string{"student_id": f.studentID}, token: f.otherToken, want: http.StatusForbidden},
		{name: "other teacher deletes", method: http.MethodDelete, path: "/api/courses/" + f.courseID, token: f.otherToken, want: http.StatusForbidden},
		{name: "unknown course", method: http.MethodGet, path: "/api/courses/00000000-0000-0000-0000-000000000000", token: f.teacherToken, want: http.StatusNotFound},
		{name: "student lists roster", method: http.MethodGet, path: "/api/courses/" + f.courseID + "/students", token: f.studentToken, want: http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.s.do(t, tt.method, tt.path, tt.body, tt.token)
			body := expectStatus(t, rec, tt.want)
			if body["success"] != false {
				t.Errorf("success = %v, want false", body["success"])
			}
		})
	}
}

func TestSearchStudentsByEmail(t *testing.T) {
	f := newCourseFixture(t)
	s := f.s

	rec := s.do(t, http.MethodGet, "/api/students/search?email=ARNOLD", nil, f.teacherToken)
	body := expectStatus(t, rec, http.StatusOK)
	students := body["students"].([]any)
	if len(students) != 1 || students[0].(map[string]any)["email"] != "arnold@example.com" {
		t.Errorf("search = %v, want arnold only", students)
	}

	rec = s.do(t, http.MethodGet, "/api/students/search", nil, f.teacherToken)
	expectStatus(t, rec, http.StatusBadRequest)
	rec = s.do(t, http.MethodGet, "/api/students/search?email=arn", nil, f.studentToken)
	expectStatus(t, rec, http.StatusForbidden)
}
