package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"path/filepath"
	"testing"
	"time"

	"classroom/internal/database"
	"classroom/internal/metrics"
	"classroom/internal/oauth"
	"classroom/internal/repository"
	"classroom/internal/security"
	"classroom/internal/service"
	"classroom/internal/utils"
)

// fakeProvider resolves authorization codes to fixed identities
type fakeProvider struct {
	codes map[string]oauth.Identity
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) AuthCodeURL(state, redirectURL string) string {
	return "https://idp.example.com/authorize?" + url.Values{
		"state":        {state},
		"redirect_uri": {redirectURL},
	}.Encode()
}

func (p *fakeProvider) Exchange(ctx context.Context, code, redirectURL string) (*oauth.Identity, error) {
	identity, ok := p.codes[code]
	if !ok {
		return nil, errors.New("invalid_grant")
	}
	identity.Provider = "fake"
	return &identity, nil
}

type testServer struct {
	handler  http.Handler
	store    *repository.Store
	provider *fakeProvider
	metrics  *metrics.Metrics
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	db, err := database.Initialize(filepath.Join(t.TempDir(), "handlers.db"))
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
	m := metrics.NewNop()
	store := repository.NewSQLStore(db)
	provider := &fakeProvider{codes: map[string]oauth.Identity{}}

	credentials := service.NewCredentialStore(store.Users)
	sessions := service.NewSessionManager(store.Sessions, credentials, 24*time.Hour, logger, m)
	resets := service.NewPasswordResetFlow(store.ResetTokens, store.Users, sessions, nil, time.Hour, logger, m)
	bridge := service.NewOAuthBridge(oauth.NewRegistry(provider), states, credentials, sessions, logger, m)
	users := service.NewUserService(store.Users, sessions, logger)
	classroom := service.NewClassroomService(store.Classroom, store.Users, logger)
	courses := service.NewCourseService(store.Courses, store.Users, logger)
	mailer, err := service.NewEmailService(context.Background(), "", "", "", "http://classroom.test", false, logger)
	if err != nil {
		t.Fatalf("NewEmailService() error = %v", err)
	}
	exams := service.NewExamService(store.Exams, store.Courses, store.Users, mailer, logger, m)

	status := NewStartupStatus()
	status.MarkReady()

	handler := NewRouter(Routes{
		Middleware: NewMiddleware(sessions, security.NewRateLimiter(1000), m, logger),
		Auth:       NewAuthHandler(credentials, sessions, resets, nil, true, logger),
		OAuth:      NewOAuthHandler(bridge, "http://classroom.test", logger),
		Users:      NewUserHandler(users, logger),
		Classroom:  NewClassroomHandler(classroom, logger),
		Courses:    NewCourseHandler(courses, logger),
		Exams:      NewExamHandler(exams, logger),
		Health:     NewHealthHandler(status, store.Ping),
		Metrics:    m.Handler(),
	})

	return &testServer{handler: handler, store: store, provider: provider, metrics: m}
}

// do sends a JSON request, with a bearer token when token is not empty
func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode body: %v", err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("response is not JSON: %v (%q)", err, rec.Body.String())
	}
	return body
}

func expectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) map[string]any {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d (body %s)", rec.Code, want, rec.Body.String())
	}
	return decodeResponse(t, rec)
}

// signUp registers a user and returns its id
func (s *testServer) signUp(t *testing.T, name, email, password, role string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/sign_up", map[string]string{
		"name":     name,
		"email":    email,
		"password": password,
		"role":     role,
	}, "")
	body := expectStatus(t, rec, http.StatusCreated)
	id, _ := body["user_id"].(string)
	if id == "" {
		t.Fatalf("sign_up returned no user_id: %v", body)
	}
	return id
}

// login returns the session token for the credentials
func (s *testServer) login(t *testing.T, email, password string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/login", map[string]string{
		"email":    email,
		"password": password,
	}, "")
	body := expectStatus(t, rec, http.StatusOK)
	token, _ := body["token"].(string)
	if token == "" {
		t.Fatalf("login returned no token: %v", body)
	}
	return token
}
