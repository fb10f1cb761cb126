package service

import (
	"context"
	"errors"
	"net/url"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"classroom/internal/database"
	"classroom/internal/metrics"
	"classroom/internal/models"
	"classroom/internal/oauth"
	"classroom/internal/repository"
	"classroom/internal/security"
	"classroom/internal/utils"
)

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type sentMail struct {
	to    string
	name  string
	token string
	ttl   time.Duration
}

type recordingMailer struct {
	mu      sync.Mutex
	sent    []sentMail
	reports []sentMail
	err     error
}

func (m *recordingMailer) SendPasswordResetEmail(ctx context.Context, toEmail, toName, token string, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, sentMail{to: toEmail, name: toName, token: token, ttl: ttl})
	return m.err
}

func (m *recordingMailer) SendGradeReport(ctx context.Context, toEmail string, report *GradeReport) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reports = append(m.reports, sentMail{to: toEmail, name: report.StudentName})
	return m.err
}

func (m *recordingMailer) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sent)
}

// fakeProvider resolves authorization codes to fixed identities
type fakeProvider struct {
	codes map[string]oauth.Identity
	err   error
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) AuthCodeURL(state, redirectURL string) string {
	return "https://idp.example.com/authorize?" + url.Values{
		"state":        {state},
		"redirect_uri": {redirectURL},
	}.Encode()
}

func (p *fakeProvider) Exchange(ctx context.Context, code, redirectURL string) (*oauth.Identity, error) {
	if p.err != nil {
		return nil, p.err
	}
	identity, ok := p.codes[code]
	if !ok {
		return nil, errors.New("invalid_grant")
	}
	identity.Provider = "fake"
	return &identity, nil
}

type testEnv struct {
	store    *repository.Store
	clock    *testClock
	metrics  *metrics.Metrics
	mailer   *recordingMailer
	provider *fakeProvider
	states   *security.StateSigner

	credentials *CredentialStore
	sessions    *SessionManager
	resets      *PasswordResetFlow
	bridge      *OAuthBridge
	users       *UserService
	classroom   *ClassroomService
	courses     *CourseService
	exams       *ExamService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "service.db"))
	if err != nil {
		t.Fatalf("Failed to initialize database: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.RunMigrations("../../migrations", utils.NewNopLogger()); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	states, err := security.NewStateSigner("test-secret", 10*time.Minute)
	if err != nil {
		t.Fatalf("NewStateSigner() error = %v", err)
	}

	logger := utils.NewNopLogger()
	env := &testEnv{
		store:    repository.NewSQLStore(db),
		clock:    &testClock{now: time.Now().UTC().Truncate(time.Second)},
		metrics:  metrics.NewNop(),
		mailer:   &recordingMailer{},
		provider: &fakeProvider{codes: map[string]oauth.Identity{}},
		states:   states,
	}

	env.credentials = NewCredentialStore(env.store.Users)
	env.sessions = NewSessionManager(env.store.Sessions, env.credentials, 24*time.Hour, logger, env.metrics)
	env.resets = NewPasswordResetFlow(env.store.ResetTokens, env.store.Users, env.sessions, env.mailer, time.Hour, logger, env.metrics)
	env.bridge = NewOAuthBridge(oauth.NewRegistry(env.provider), states, env.credentials, env.sessions, logger, env.metrics)
	env.users = NewUserService(env.store.Users, env.sessions, logger)
	env.classroom = NewClassroomService(env.store.Classroom, env.store.Users, logger)
	env.courses = NewCourseService(env.store.Courses, env.store.Users, logger)
	env.exams = NewExamService(env.store.Exams, env.store.Courses, env.store.Users, env.mailer, logger, env.metrics)

	env.credentials.now = env.clock.Now
	env.sessions.now = env.clock.Now
	env.resets.now = env.clock.Now
	env.users.now = env.clock.Now
	env.classroom.now = env.clock.Now
	env.courses.now = env.clock.Now
	env.exams.now = env.clock.Now
	return env
}

func (e *testEnv) createUser(t *testing.T, name, email, password string, role models.Role) *models.User {
	t.Helper()
	user, err := e.credentials.CreateUser(context.Background(), NewUserInput{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     string(role),
	})
	if err != nil {
		t.Fatalf("CreateUser(%s) error = %v", email, err)
	}
	return user
}
