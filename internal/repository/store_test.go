package repository

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"classroom/internal/database"
	"classroom/internal/models"
	"classroom/internal/utils"
)

func newSQLiteStore(t *testing.T) *Store {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "repo.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })

	if err := db.RunMigrations("../../migrations", utils.NewNopLogger()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}
	return NewSQLStore(db)
}

func TestSQLiteStore(t *testing.T) {
	runStoreContract(t, func(t *testing.T) *Store { return newSQLiteStore(t) })
}

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("MONGODB_TEST_URI")
	if uri == "" {
		t.Skip("MONGODB_TEST_URI not set")
	}

	runStoreContract(t, func(t *testing.T) *Store {
		ctx := context.Background()
		name := "classroom_repo_" + strconv.FormatInt(time.Now().UnixNano(), 36)
		db, client, err := database.ConnectMongo(ctx, uri, name, utils.NewNopLogger())
		if err != nil {
			t.Fatalf("ConnectMongo() error = %v", err)
		}
		t.Cleanup(func() {
			_ = db.Drop(context.Background())
			_ = client.Disconnect(context.Background())
		})
		if err := database.EnsureIndexes(ctx, db); err != nil {
			t.Fatalf("EnsureIndexes() error = %v", err)
		}
		return NewMongoStore(db)
	})
}

// runStoreContract checks the behavior every storage backend must share
func runStoreContract(t *testing.T, newStore func(t *testing.T) *Store) {
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	newUser := func(t *testing.T, s *Store, email string, role models.Role) *models.User {
		t.Helper()
		u, err := models.NewLocalUser("User "+email, email, "hash", role)
		if err != nil {
			t.Fatalf("NewLocalUser() error = %v", err)
		}
		if err := s.Users.CreateUser(ctx, u); err != nil {
			t.Fatalf("CreateUser(%s) error = %v", email, err)
		}
		return u
	}

	t.Run("users", func(t *testing.T) {
		s := newStore(t)
		alice := newUser(t, s, "alice@example.com", models.RoleStudent)
		if alice.ID == "" {
			t.Fatal("CreateUser() did not assign an ID")
		}

		got, err := s.Users.GetUserByEmail(ctx, "ALICE@example.com")
		if err != nil {
			t.Fatalf("GetUserByEmail() error = %v", err)
		}
		if got.ID != alice.ID || got.AuthMethod() != models.AuthLocal {
			t.Errorf("GetUserByEmail() = %+v", got)
		}

		dup, _ := models.NewLocalUser("Alice Again", "Alice@Example.com", "hash", models.RoleStudent)
		if err := s.Users.CreateUser(ctx, dup); !errors.Is(err, ErrConflict) {
			t.Errorf("duplicate CreateUser() error = %v, want ErrConflict", err)
		}

		if _, err := s.Users.GetUserByID(ctx, "not-an-id"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetUserByID(malformed) error = %v, want ErrNotFound", err)
		}

		if err := s.Users.DeactivateUser(ctx, alice.ID, now); err != nil {
			t.Fatalf("DeactivateUser() error = %v", err)
		}
		if _, err := s.Users.GetUserByEmail(ctx, "alice@example.com"); !errors.Is(err, ErrNotFound) {
			t.Errorf("inactive user found by email, error = %v", err)
		}
		// The address is free again once the old account is inactive
		newUser(t, s, "alice@example.com", models.RoleStudent)
	})

	t.Run("external identity", func(t *testing.T) {
		s := newStore(t)
		bob := newUser(t, s, "bob@example.com", models.RoleTeacher)
		google := models.ExternalIdentity{Provider: "google", Subject: "g-1"}

		if err := s.Users.LinkExternalIdentity(ctx, bob.ID, google, "https://pic", now); err != nil {
			t.Fatalf("LinkExternalIdentity() error = %v", err)
		}
		// Relinking the same identity is allowed
		if err := s.Users.LinkExternalIdentity(ctx, bob.ID, google, "", now); err != nil {
			t.Fatalf("relink error = %v", err)
		}
		other := models.ExternalIdentity{Provider: "google", Subject: "g-2"}
		if err := s.Users.LinkExternalIdentity(ctx, bob.ID, other, "", now); !errors.Is(err, ErrConflict) {
			t.Errorf("link to second identity error = %v, want ErrConflict", err)
		}

		got, err := s.Users.GetUserByExternalID(ctx, "google", "g-1")
		if err != nil {
			t.Fatalf("GetUserByExternalID() error = %v", err)
		}
		if got.ID != bob.ID || got.AuthMethod() != models.AuthHybrid || got.ProfilePicture != "https://pic" {
			t.Errorf("GetUserByExternalID() = %+v", got)
		}

		// The identity stays bound to the account after deactivation
		if err := s.Users.DeactivateUser(ctx, bob.ID, now); err != nil {
			t.Fatalf("DeactivateUser() error = %v", err)
		}
		got, err = s.Users.GetUserByExternalID(ctx, "google", "g-1")
		if err != nil {
			t.Fatalf("GetUserByExternalID(inactive) error = %v", err)
		}
		if got.ID != bob.ID || got.IsActive {
			t.Errorf("GetUserByExternalID(inactive) = %+v", got)
		}

		oauthOnly, _ := models.NewOAuthUser("Carol", "carol@example.com", models.ExternalIdentity{Provider: "facebook", Subject: "f-1"}, "")
		if err := s.Users.CreateUser(ctx, oauthOnly); err != nil {
			t.Fatalf("CreateUser(oauth) error = %v", err)
		}
		loaded, err := s.Users.GetUserByID(ctx, oauthOnly.ID)
		if err != nil {
			t.Fatalf("GetUserByID() error = %v", err)
		}
		if loaded.HasPassword() || loaded.AuthMethod() != models.AuthOAuth {
			t.Errorf("oauth-only user loaded as %v", loaded.AuthMethod())
		}
	})

	t.Run("sessions", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "dave@example.com", models.RoleStudent)

		live := &models.Session{TokenHash: "live", UserID: u.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
		old := &models.Session{TokenHash: "old", UserID: u.ID, CreatedAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour)}
		for _, sess := range []*models.Session{live, old} {
			if err := s.Sessions.CreateSession(ctx, sess); err != nil {
				t.Fatalf("CreateSession() error = %v", err)
			}
		}

		got, err := s.Sessions.GetSession(ctx, "live")
		if err != nil {
			t.Fatalf("GetSession() error = %v", err)
		}
		if got.UserID != u.ID || !got.ExpiresAt.Equal(live.ExpiresAt) {
			t.Errorf("GetSession() = %+v", got)
		}

		n, err := s.Sessions.DeleteExpiredSessions(ctx, now)
		if err != nil || n != 1 {
			t.Errorf("DeleteExpiredSessions() = %d, %v; want 1, nil", n, err)
		}

		if err := s.Sessions.DeleteSession(ctx, "live"); err != nil {
			t.Fatalf("DeleteSession() error = %v", err)
		}
		if err := s.Sessions.DeleteSession(ctx, "live"); err != nil {
			t.Errorf("second DeleteSession() error = %v", err)
		}
		if _, err := s.Sessions.GetSession(ctx, "live"); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetSession() after delete error = %v, want ErrNotFound", err)
		}
	})

	t.Run("reset tokens are consumed once", func(t *testing.T) {
		s := newStore(t)
		u := newUser(t, s, "erin@example.com", models.RoleStudent)

		token := &models.PasswordResetToken{TokenHash: "reset", UserID: u.ID, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
		if err := s.ResetTokens.CreateResetToken(ctx, token); err != nil {
			t.Fatalf("CreateResetToken() error = %v", err)
		}
		expired := &models.PasswordResetToken{TokenHash: "expired", UserID: u.ID, CreatedAt: now, ExpiresAt: now.Add(-time.Minute)}
		if err := s.ResetTokens.CreateResetToken(ctx, expired); err != nil {
			t.Fatalf("CreateResetToken() error = %v", err)
		}

		got, err := s.ResetTokens.ConsumeResetToken(ctx, "reset", now)
		if err != nil {
			t.Fatalf("ConsumeResetToken() error = %v", err)
		}
		if got.UserID != u.ID || !got.Used {
			t.Errorf("ConsumeResetToken() = %+v", got)
		}
		if _, err := s.ResetTokens.ConsumeResetToken(ctx, "reset", now); !errors.Is(err, ErrNotFound) {
			t.Errorf("second ConsumeResetToken() error = %v, want ErrNotFound", err)
		}
		if _, err := s.ResetTokens.ConsumeResetToken(ctx, "expired", now); !errors.Is(err, ErrNotFound) {
			t.Errorf("ConsumeResetToken(expired) error = %v, want ErrNotFound", err)
		}
	})

	t.Run("classroom", func(t *testing.T) {
		s := newStore(t)
		teacher := newUser(t, s, "teach@example.com", models.RoleTeacher)
		student := newUser(t, s, "stud@example.com", models.RoleStudent)

		class := &models.Class{Name: "Algebra", TeacherID: teacher.ID, Subject: "math", CreatedAt: now}
		if err := s.Classroom.CreateClass(ctx, class); err != nil {
			t.Fatalf("CreateClass() error = %v", err)
		}
		for i := 0; i < 2; i++ {
			if err := s.Classroom.AddStudentToClass(ctx, class.ID, student.ID, now); err != nil {
				t.Fatalf("AddStudentToClass() #%d error = %v", i+1, err)
			}
		}
		byStudent, err := s.Classroom.ListClassesByStudent(ctx, student.ID)
		if err != nil {
			t.Fatalf("ListClassesByStudent() error = %v", err)
		}
		if len(byStudent) != 1 || len(byStudent[0].StudentIDs) != 1 {
			t.Fatalf("ListClassesByStudent() = %+v, want one class with one student", byStudent)
		}

		assignment := &models.Assignment{ClassID: class.ID, TeacherID: teacher.ID, Title: "HW1", MaxPoints: 50, CreatedAt: now}
		if err := s.Classroom.CreateAssignment(ctx, assignment); err != nil {
			t.Fatalf("CreateAssignment() error = %v", err)
		}
		loaded, err := s.Classroom.GetAssignment(ctx, assignment.ID)
		if err != nil {
			t.Fatalf("GetAssignment() error = %v", err)
		}
		if loaded.DueDate != nil || loaded.MaxPoints != 50 {
			t.Errorf("GetAssignment() = %+v", loaded)
		}

		grade := &models.Grade{StudentID: student.ID, AssignmentID: assignment.ID, Points: 30, MaxPoints: 50, GradedBy: teacher.ID, GradedAt: now}
		if err := s.Classroom.UpsertGrade(ctx, grade); err != nil {
			t.Fatalf("UpsertGrade() error = %v", err)
		}
		regrade := &models.Grade{StudentID: student.ID, AssignmentID: assignment.ID, Points: 45, MaxPoints: 50, GradedBy: teacher.ID, GradedAt: now}
		if err := s.Classroom.UpsertGrade(ctx, regrade); err != nil {
			t.Fatalf("second UpsertGrade() error = %v", err)
		}
		if regrade.ID != grade.ID {
			t.Errorf("regrade created a new record: %s vs %s", regrade.ID, grade.ID)
		}
		grades, err := s.Classroom.ListGradesByStudent(ctx, student.ID)
		if err != nil {
			t.Fatalf("ListGradesByStudent() error = %v", err)
		}
		if len(grades) != 1 || grades[0].Points != 45 {
			t.Errorf("ListGradesByStudent() = %+v", grades)
		}

		for i := 0; i < 3; i++ {
			a := &models.Announcement{ClassID: class.ID, TeacherID: teacher.ID, Title: "News", Content: "c", CreatedAt: now.Add(time.Duration(i) * time.Minute)}
			if err := s.Classroom.CreateAnnouncement(ctx, a); err != nil {
				t.Fatalf("CreateAnnouncement() error = %v", err)
			}
		}
		recent, err := s.Classroom.ListAnnouncements(ctx, class.ID, 2)
		if err != nil {
			t.Fatalf("ListAnnouncements() error = %v", err)
		}
		if len(recent) != 2 || !recent[0].CreatedAt.After(recent[1].CreatedAt) {
			t.Errorf("ListAnnouncements() = %+v, want two newest first", recent)
		}
	})

	t.Run("student search", func(t *testing.T) {
		s := newStore(t)
		newUser(t, s, "ann.lee@school.org", models.RoleStudent)
		newUser(t, s, "annabel@school.org", models.RoleStudent)
		newUser(t, s, "anne@school.org", models.RoleTeacher)
		gone := newUser(t, s, "annie@school.org", models.RoleStudent)
		if err := s.Users.DeactivateUser(ctx, gone.ID, now); err != nil {
			t.Fatalf("DeactivateUser() error = %v", err)
		}

		tests := []struct {
			fragment string
			limit    int
			want     int
		}{
			{fragment: "ANN", limit: 10, want: 2},
			{fragment: "ann", limit: 1, want: 1},
			{fragment: "ann.", limit: 10, want: 1},
			{fragment: "%", limit: 10, want: 0},
			{fragment: "nobody", limit: 10, want: 0},
		}
		for _, tt := range tests {
			got, err := s.Users.SearchStudentsByEmail(ctx, tt.fragment, tt.limit)
			if err != nil {
				t.Fatalf("SearchStudentsByEmail(%q) error = %v", tt.fragment, err)
			}
			if len(got) != tt.want {
				t.Errorf("SearchStudentsByEmail(%q, %d) returned %d users, want %d", tt.fragment, tt.limit, len(got), tt.want)
			}
		}
	})

	t.Run("courses and enrollment", func(t *testing.T) {
		s := newStore(t)
		teacher := newUser(t, s, "owner@example.com", models.RoleTeacher)
		student := newUser(t, s, "learner@example.com", models.RoleStudent)

		course := &models.Course{OwnerID: teacher.ID, Name: "Physics", Subject: "science", Fees: "100", CreatedAt: now, UpdatedAt: now}
		if err := s.Courses.CreateCourse(ctx, course); err != nil {
			t.Fatalf("CreateCourse() error = %v", err)
		}
		course.Location = "Room 4"
		course.UpdatedAt = now.Add(time.Minute)
		if err := s.Courses.UpdateCourse(ctx, course); err != nil {
			t.Fatalf("UpdateCourse() error = %v", err)
		}
		loaded, err := s.Courses.GetCourse(ctx, course.ID)
		if err != nil {
			t.Fatalf("GetCourse() error = %v", err)
		}
		if loaded.Location != "Room 4" || loaded.OwnerID != teacher.ID {
			t.Errorf("GetCourse() = %+v", loaded)
		}

		enrollment := &models.Enrollment{CourseID: course.ID, StudentID: student.ID, TeacherID: teacher.ID, EnrolledAt: now}
		if err := s.Courses.Enroll(ctx, enrollment); err != nil {
			t.Fatalf("Enroll() error = %v", err)
		}
		if err := s.Courses.Enroll(ctx, enrollment); !errors.Is(err, ErrConflict) {
			t.Errorf("second Enroll() error = %v, want ErrConflict", err)
		}
		if ok, err := s.Courses.IsEnrolled(ctx, course.ID, student.ID); err != nil || !ok {
			t.Errorf("IsEnrolled() = %v, %v", ok, err)
		}
		mine, err := s.Courses.ListStudentEnrollments(ctx, student.ID)
		if err != nil || len(mine) != 1 || mine[0].CourseID != course.ID {
			t.Errorf("ListStudentEnrollments() = %+v, %v", mine, err)
		}

		if err := s.Courses.Unenroll(ctx, course.ID, student.ID); err != nil {
			t.Fatalf("Unenroll() error = %v", err)
		}
		if err := s.Courses.Unenroll(ctx, course.ID, student.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("second Unenroll() error = %v, want ErrNotFound", err)
		}

		if err := s.Courses.Enroll(ctx, enrollment); err != nil {
			t.Fatalf("re-Enroll() error = %v", err)
		}
		exam := &models.Exam{CourseID: course.ID, CreatedBy: teacher.ID, Title: "Quiz", DurationMinutes: 30, TotalMarks: 10, CreatedAt: now, UpdatedAt: now}
		if err := s.Exams.CreateExam(ctx, exam); err != nil {
			t.Fatalf("CreateExam() error = %v", err)
		}
		if err := s.Courses.DeleteCourse(ctx, course.ID); err != nil {
			t.Fatalf("DeleteCourse() error = %v", err)
		}
		if _, err := s.Exams.GetExam(ctx, exam.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetExam() after DeleteCourse error = %v, want ErrNotFound", err)
		}
		if left, _ := s.Courses.ListEnrollments(ctx, course.ID); len(left) != 0 {
			t.Errorf("ListEnrollments() after DeleteCourse = %+v", left)
		}
	})

	t.Run("exams and results", func(t *testing.T) {
		s := newStore(t)
		teacher := newUser(t, s, "examiner@example.com", models.RoleTeacher)
		student := newUser(t, s, "sitter@example.com", models.RoleStudent)
		course := &models.Course{OwnerID: teacher.ID, Name: "History", Subject: "history", CreatedAt: now, UpdatedAt: now}
		if err := s.Courses.CreateCourse(ctx, course); err != nil {
			t.Fatalf("CreateCourse() error = %v", err)
		}

		start, end := now.Add(-time.Hour), now.Add(time.Hour)
		later := now.Add(24 * time.Hour)
		open := &models.Exam{CourseID: course.ID, CreatedBy: teacher.ID, Title: "Open", DurationMinutes: 60, TotalMarks: 20,
			StartDate: &start, EndDate: &end, Questions: []byte(`[{"q":"1+1"}]`), CreatedAt: now, UpdatedAt: now}
		future := &models.Exam{CourseID: course.ID, CreatedBy: teacher.ID, Title: "Future", DurationMinutes: 60, TotalMarks: 20,
			StartDate: &later, EndDate: &later, CreatedAt: now, UpdatedAt: now}
		public := &models.Exam{CreatedBy: teacher.ID, Title: "Public", DurationMinutes: 15, TotalMarks: 5, IsPublic: true,
			CreatedAt: now.Add(time.Minute), UpdatedAt: now}
		for _, e := range []*models.Exam{open, future, public} {
			if err := s.Exams.CreateExam(ctx, e); err != nil {
				t.Fatalf("CreateExam(%s) error = %v", e.Title, err)
			}
		}

		loaded, err := s.Exams.GetExam(ctx, open.ID)
		if err != nil {
			t.Fatalf("GetExam() error = %v", err)
		}
		if string(loaded.Questions) != `[{"q":"1+1"}]` || loaded.StartDate == nil || !loaded.StartDate.Equal(start) {
			t.Errorf("GetExam() = %+v", loaded)
		}
		pub, err := s.Exams.GetExam(ctx, public.ID)
		if err != nil || pub.CourseID != "" || !pub.IsPublic || string(pub.Questions) != "[]" {
			t.Errorf("GetExam(public) = %+v, %v", pub, err)
		}

		available, err := s.Exams.ListOpenExams(ctx, []string{course.ID}, now)
		if err != nil {
			t.Fatalf("ListOpenExams() error = %v", err)
		}
		if len(available) != 1 || available[0].ID != open.ID {
			t.Errorf("ListOpenExams() = %+v, want only the open exam", available)
		}
		byCourse, _ := s.Exams.ListExamsByCourse(ctx, course.ID)
		if len(byCourse) != 2 {
			t.Errorf("ListExamsByCourse() returned %d exams, want 2", len(byCourse))
		}
		byCreator, _ := s.Exams.ListExamsByCreator(ctx, teacher.ID)
		if len(byCreator) != 3 || byCreator[0].ID != public.ID {
			t.Errorf("ListExamsByCreator() = %+v, want public exam first", byCreator)
		}

		result := &models.ExamResult{ExamID: open.ID, CourseID: course.ID, StudentID: student.ID, Score: 12, TotalMarks: 20, SubmittedAt: now}
		if err := s.Exams.CreateResult(ctx, result); err != nil {
			t.Fatalf("CreateResult() error = %v", err)
		}
		again := &models.ExamResult{ExamID: open.ID, CourseID: course.ID, StudentID: student.ID, Score: 20, TotalMarks: 20, SubmittedAt: now}
		if err := s.Exams.CreateResult(ctx, again); !errors.Is(err, ErrConflict) {
			t.Errorf("second CreateResult() error = %v, want ErrConflict", err)
		}
		for i := 0; i < 2; i++ {
			guest := &models.ExamResult{ExamID: open.ID, Guest: models.GuestInfo{Name: "Guest", Email: "g@example.com"},
				Score: float64(15 + i), TotalMarks: 20, SubmittedAt: now}
			if err := s.Exams.CreateResult(ctx, guest); err != nil {
				t.Fatalf("guest CreateResult() #%d error = %v", i+1, err)
			}
		}

		results, err := s.Exams.ListResultsByExam(ctx, open.ID)
		if err != nil {
			t.Fatalf("ListResultsByExam() error = %v", err)
		}
		if len(results) != 3 || results[0].Score != 16 || results[2].StudentID != student.ID {
			t.Errorf("ListResultsByExam() = %+v, want three by score", results)
		}
		if results[0].Guest.Email != "g@example.com" || results[0].SubmissionType() != models.SubmissionGuest {
			t.Errorf("guest result = %+v", results[0])
		}

		reviewedAt := now.Add(time.Hour)
		result.Score = 14
		result.Reviewed = true
		result.ReviewedAt = &reviewedAt
		if err := s.Exams.ReviewResult(ctx, result); err != nil {
			t.Fatalf("ReviewResult() error = %v", err)
		}
		reviewed, err := s.Exams.GetResult(ctx, result.ID)
		if err != nil {
			t.Fatalf("GetResult() error = %v", err)
		}
		if !reviewed.Reviewed || reviewed.Score != 14 || reviewed.ReviewedAt == nil {
			t.Errorf("GetResult() after review = %+v", reviewed)
		}
		mine, _ := s.Exams.ListStudentResults(ctx, course.ID, student.ID)
		if len(mine) != 1 {
			t.Errorf("ListStudentResults() returned %d results, want 1", len(mine))
		}

		if err := s.Exams.DeleteExam(ctx, open.ID); err != nil {
			t.Fatalf("DeleteExam() error = %v", err)
		}
		if _, err := s.Exams.GetResult(ctx, result.ID); !errors.Is(err, ErrNotFound) {
			t.Errorf("GetResult() after DeleteExam error = %v, want ErrNotFound", err)
		}
	})
}
