package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// Routes bundles the handlers mounted by NewRouter
type Routes struct {
	Middleware *Middleware
	Auth       *AuthHandler
	OAuth      *OAuthHandler
	Users      *UserHandler
	Classroom  *ClassroomHandler
	Courses    *CourseHandler
	Exams      *ExamHandler
	Health     *HealthHandler
	Metrics    http.Handler
}

// NewRouter builds the HTTP routing table
func NewRouter(rt Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(rt.Middleware.Logging)

	r.Get("/health", rt.Health.Health)
	if rt.Metrics != nil {
		r.Handle("/metrics", rt.Metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(rt.Middleware.RateLimit)
			r.Post("/sign_up", rt.Auth.SignUp)
			r.Post("/login", rt.Auth.Login)
			r.Post("/forgot_password", rt.Auth.ForgotPassword)
			r.Post("/reset_password", rt.Auth.ResetPassword)
			r.Post("/public-exams/submit", rt.Exams.SubmitPublicExam)
		})
		r.Post("/logout", rt.Auth.Logout)
		r.Get("/reset_password", rt.Auth.CheckResetToken)

		r.Get("/auth/providers", rt.OAuth.Providers)
		r.Get("/auth/{provider}", rt.OAuth.StartOAuth)
		r.Get("/auth/{provider}/callback", rt.OAuth.OAuthCallback)
		r.Get("/public-exams/{id}", rt.Exams.PublicExam)

		r.Group(func(r chi.Router) {
			r.Use(rt.Middleware.RequireAuth)

			r.Get("/user/profile", rt.Users.Profile)
			r.Get("/user/{id}", rt.Users.GetUser)
			r.Put("/user/{id}", rt.Users.UpdateUser)
			r.Delete("/user/{id}", rt.Users.DeleteUser)
			r.Post("/preferences", rt.Users.Preferences)
			r.Get("/students", rt.Users.Students)
			r.Get("/teachers", rt.Users.Teachers)

			r.Post("/class", rt.Classroom.CreateClass)
			r.Post("/class/{id}/student/{studentId}", rt.Classroom.AddStudent)
			r.Get("/class/{id}/announcements", rt.Classroom.Announcements)
			r.Get("/teacher/{id}/classes", rt.Classroom.TeacherClasses)
			r.Get("/student/{id}/classes", rt.Classroom.StudentClasses)
			r.Get("/student/{id}/grades", rt.Classroom.StudentGrades)
			r.Post("/assignment", rt.Classroom.CreateAssignment)
			r.Post("/assignment/{id}/submit", rt.Classroom.SubmitAssignment)
			r.Get("/assignment/{id}/submissions", rt.Classroom.Submissions)
			r.Post("/grade", rt.Classroom.Grade)
			r.Post("/announcement", rt.Classroom.CreateAnnouncement)

			r.Post("/courses", rt.Courses.CreateCourse)
			r.Get("/courses", rt.Courses.ListCourses)
			r.Get("/courses/{id}", rt.Courses.GetCourse)
			r.Put("/courses/{id}", rt.Courses.UpdateCourse)
			r.Delete("/courses/{id}", rt.Courses.DeleteCourse)
			r.Post("/courses/{id}/enroll", rt.Courses.Enroll)
			r.Post("/courses/{id}/unenroll", rt.Courses.Unenroll)
			r.Get("/courses/{id}/students", rt.Courses.EnrolledStudents)
			r.Get("/students/enrolled-courses", rt.Courses.StudentCourses)
			r.Get("/students/search", rt.Courses.SearchStudents)

			r.Post("/courses/{id}/exams", rt.Exams.CreateExam)
			r.Get("/courses/{id}/exams", rt.Exams.CourseExams)
			r.Get("/courses/{id}/exams/{examId}", rt.Exams.CourseExam)
			r.Get("/courses/{id}/results/{studentId}", rt.Exams.StudentResults)
			r.Get("/exams/available", rt.Exams.AvailableExams)
			r.Delete("/exams/{id}", rt.Exams.DeleteExam)
			r.Post("/exams/{id}/submit", rt.Exams.SubmitExam)
			r.Get("/exams/{id}/results", rt.Exams.ExamResults)
			r.Put("/exams/{id}/update-result", rt.Exams.UpdateResult)
			r.Post("/exams/{id}/generate-report", rt.Exams.GenerateReport)
			r.Post("/exams/{id}/send-report", rt.Exams.SendReport)
			r.Get("/exams/{id}/download-report/{resultId}", rt.Exams.DownloadReport)

			r.Get("/teacher/{id}/tests", rt.Exams.TeacherTests)
			r.Post("/tests/{id}/duplicate", rt.Exams.DuplicateTest)
			r.Delete("/tests/{id}", rt.Exams.DeleteExam)

			r.Post("/public-exams", rt.Exams.CreatePublicExam)
			r.Get("/public-exams/{id}/submissions", rt.Exams.GuestSubmissions)
			r.Get("/teacher/{id}/public-exams", rt.Exams.TeacherPublicExams)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusNotFound, ErrNotFoundMsg)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeFailure(w, http.StatusMethodNotAllowed, "Method not allowed")
	})
	return r
}
