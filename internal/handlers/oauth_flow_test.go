package handlers

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"classroom/internal/oauth"
)

// startOAuth begins the flow and returns the state cookie and the state echoed in the consent URL
func (s *testServer) startOAuth(t *testing.T) (*http.Cookie, string) {
	t.Helper()
	rec := s.do(t, http.MethodGet, "/api/auth/fake", nil, "")
	body := expectStatus(t, rec, http.StatusOK)

	authURL, err := url.Parse(body["authorization_url"].(string))
	if err != nil {
		t.Fatalf("authorization_url is not a URL: %v", err)
	}
	if got := authURL.Query().Get("redirect_uri"); got != "http://classroom.test/api/auth/fake/callback" {
		t.Errorf("redirect_uri = %q", got)
	}

	var stateCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		if c.Name == OAuthStateCookieName {
			stateCookie = c
		}
	}
	if stateCookie == nil {
		t.Fatal("no oauth_state cookie set")
	}
	if !stateCookie.HttpOnly {
		t.Error("oauth_state cookie should be HttpOnly")
	}
	return stateCookie, authURL.Query().Get("state")
}

func (s *testServer) callback(t *testing.T, cookie *http.Cookie, state, code string) *httptest.ResponseRecorder {
	t.Helper()
	query := url.Values{"state": {state}, "code": {code}}
	req := httptest.NewRequest(http.MethodGet, "/api/auth/fake/callback?"+query.Encode(), nil)
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	return rec
}

func TestOAuthFlowCreatesThenReusesUser(t *testing.T) {
	s := newTestServer(t)
	s.provider.codes["code-1"] = oauth.Identity{Subject: "sub-1", Email: "kim@example.com", Name: "Kim"}

	cookie, state := s.startOAuth(t)
	if cookie.Value != state {
		t.Fatalf("cookie state %q differs from URL state %q", cookie.Value, state)
	}

	rec := s.callback(t, cookie, state, "code-1")
	body := expectStatus(t, rec, http.StatusOK)
	if body["is_new_user"] != true {
		t.Errorf("is_new_user = %v, want true", body["is_new_user"])
	}
	user := body["user"].(map[string]any)
	if user["auth_method"] != "oauth" || user["role"] != "student" {
		t.Errorf("user = %v, want oauth student", user)
	}

	token := body["token"].(string)
	rec = s.do(t, http.MethodGet, "/api/user/profile", nil, token)
	expectStatus(t, rec, http.StatusOK)

	cookie, state = s.startOAuth(t)
	rec = s.callback(t, cookie, state, "code-1")
	body = expectStatus(t, rec, http.StatusOK)
	if body["is_new_user"] != false {
		t.Errorf("second login is_new_user = %v, want false", body["is_new_user"])
	}
	if body["user"].(map[string]any)["_id"] != user["_id"] {
		t.Error("second login resolved to a different user")
	}
}

func TestOAuthCallbackLinksExistingEmail(t *testing.T) {
	s := newTestServer(t)
	userID := s.signUp(t, "Alice", "alice@example.com", "secret1", "teacher")
	s.provider.codes["code-a"] = oauth.Identity{Subject: "sub-a", Email: "ALICE@example.com", EmailVerified: true, Name: "Alice G"}

	cookie, state := s.startOAuth(t)
	rec := s.callback(t, cookie, state, "code-a")
	body := expectStatus(t, rec, http.StatusOK)

	user := body["user"].(map[string]any)
	if user["_id"] != userID {
		t.Errorf("linked user id = %v, want %s", user["_id"], userID)
	}
	if user["auth_method"] != "hybrid" {
		t.Errorf("auth_method = %v, want hybrid", user["auth_method"])
	}
	if body["is_new_user"] != false {
		t.Error("linking an existing account is not a new user")
	}
	s.login(t, "alice@example.com", "secret1")
}

func TestOAuthCallbackRejectsBadState(t *testing.T) {
	s := newTestServer(t)
	s.provider.codes["code-1"] = oauth.Identity{Subject: "sub-1", Email: "kim@example.com"}

	tests := []struct {
		name   string
		cookie func(c *http.Cookie) *http.Cookie
		state  func(state string) string
		code   string
		status int
	}{
		{
			name:   "missing cookie",
			cookie: func(c *http.Cookie) *http.Cookie { return nil },
			state:  func(s string) string { return s },
			code:   "code-1",
			status: http.StatusBadRequest,
		},
		{
			name:   "state does not match cookie",
			cookie: func(c *http.Cookie) *http.Cookie { return c },
			state:  func(s string) string { return s + "x" },
			code:   "code-1",
			status: http.StatusBadRequest,
		},
		{
			name: "forged state in both",
			cookie: func(c *http.Cookie) *http.Cookie {
				return &http.Cookie{Name: OAuthStateCookieName, Value: "nonce.9999999999.deadbeef"}
			},
			state:  func(s string) string { return "nonce.9999999999.deadbeef" },
			code:   "code-1",
			status: http.StatusBadRequest,
		},
		{
			name:   "unknown code",
			cookie: func(c *http.Cookie) *http.Cookie { return c },
			state:  func(s string) string { return s },
			code:   "bad-code",
			status: http.StatusBadGateway,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cookie, state := s.startOAuth(t)
			rec := s.callback(t, tt.cookie(cookie), tt.state(state), tt.code)
			body := expectStatus(t, rec, tt.status)
			if body["success"] != false {
				t.Errorf("success = %v, want false", body["success"])
			}
		})
	}
}

func TestOAuthUnknownProvider(t *testing.T) {
	s := newTestServer(t)
	rec := s.do(t, http.MethodGet, "/api/auth/myspace", nil, "")
	expectStatus(t, rec, http.StatusNotFound)

	rec = s.do(t, http.MethodGet, "/api/auth/providers", nil, "")
	body := expectStatus(t, rec, http.StatusOK)
	providers := body["providers"].([]any)
	if len(providers) != 1 || providers[0] != "fake" {
		t.Errorf("providers = %v, want [fake]", providers)
	}
}

func TestOAuthProviderErrorParameter(t *testing.T) {
	s := newTestServer(t)
	cookie, _ := s.startOAuth(t)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/fake/callback?error=access_denied", nil)
	req.AddCookie(cookie)
	rec := httptest.NewRecorder()
	s.handler.ServeHTTP(rec, req)
	expectStatus(t, rec, http.StatusBadGateway)
}
