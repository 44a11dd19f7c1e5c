package authapi

import (
	"bytes"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/identity"
	"github.com/hamdanahmadkhan101-tech/VidTube-sub001/cmd/internal/auth/session"
)

type testEnv struct {
	handler *Handler
	mux     *http.ServeMux
	users   *identity.MemoryStore
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	// Keep Argon2id cheap in tests.
	t.Setenv("VIDTUBE_ARGON2_MEMORY_KIB", "8192")
	t.Setenv("VIDTUBE_ARGON2_ITERATIONS", "1")

	users := identity.NewMemoryStore()
	verifier, err := identity.NewVerifier(users)
	if err != nil {
		t.Fatalf("NewVerifier: %v", err)
	}

	sessCfg := session.DefaultConfig()
	sessCfg.AccessSecret = []byte(strings.Repeat("a", 32))
	sessCfg.RefreshSecret = []byte(strings.Repeat("r", 32))
	codec, err := session.NewCodec(sessCfg)
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	sessions, err := session.NewManager(sessCfg, codec, verifier, session.NewMemoryStore(), log)
	if err != nil {
		t.Fatalf("NewManager: %v", err)
	}

	cfg := LoadConfigFromEnv()
	cfg.CookieSecure = false // httptest is plain HTTP
	h, err := NewHandler(log, cfg, users, verifier, sessions, NewMetrics(nil))
	if err != nil {
		t.Fatalf("NewHandler: %v", err)
	}

	mux := http.NewServeMux()
	h.Register(mux)
	return &testEnv{handler: h, mux: mux, users: users}
}

func (e *testEnv) do(t *testing.T, method, path string, body any, mod func(*http.Request)) *httptest.ResponseRecorder {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if mod != nil {
		mod(req)
	}
	rec := httptest.NewRecorder()
	e.mux.ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) signup(t *testing.T, username, pw string) loginResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/signup", signupRequest{
		Username: username,
		Email:    username + "@example.com",
		Password: pw,
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("signup: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode signup response: %v", err)
	}
	return resp
}

func (e *testEnv) login(t *testing.T, username, pw string) loginResponse {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/auth/login", loginRequest{Username: username, Password: pw}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode login response: %v", err)
	}
	return resp
}

func errorCode(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var resp errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode error response: %v (body %s)", err, rec.Body.String())
	}
	return resp.Error.Code
}

func TestSignupAndLogin(t *testing.T) {
	e := newTestEnv(t)

	resp := e.signup(t, "alice", "correct-password-123")
	if resp.User.ID == "" || resp.Session.AccessToken == "" || resp.Session.RefreshToken == "" {
		t.Fatalf("incomplete signup response: %+v", resp)
	}

	rec := e.do(t, http.MethodPost, "/auth/signup", signupRequest{
		Username: "ALICE",
		Email:    "else@example.com",
		Password: "another-password-123",
	}, nil)
	if rec.Code != http.StatusConflict {
		t.Fatalf("duplicate signup: status %d", rec.Code)
	}

	login := e.login(t, "alice", "correct-password-123")
	if login.User.ID != resp.User.ID {
		t.Fatalf("login resolved a different user")
	}
}

func TestLoginFailuresAreUniform(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "correct-password-123")

	for _, tc := range []loginRequest{
		{Username: "alice", Password: "wrong-password-456"},
		{Username: "nobody", Password: "correct-password-123"},
	} {
		rec := e.do(t, http.MethodPost, "/auth/login", tc, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("login %q: status %d", tc.Username, rec.Code)
		}
		if code := errorCode(t, rec); code != "invalid_credentials" {
			t.Fatalf("login %q: code %q", tc.Username, code)
		}
	}

	// Both identifiers at once is a malformed request, not an auth failure.
	rec := e.do(t, http.MethodPost, "/auth/login", loginRequest{
		Username: "alice", Email: "alice@example.com", Password: "correct-password-123",
	}, nil)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("ambiguous identifier: status %d", rec.Code)
	}
}

func TestRefreshBodyTransport(t *testing.T) {
	e := newTestEnv(t)
	login := e.signup(t, "alice", "correct-password-123")

	rec := e.do(t, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: login.Session.RefreshToken}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("refresh: status %d body %s", rec.Code, rec.Body.String())
	}
	var resp refreshResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Session.RefreshToken == "" || resp.Session.RefreshToken == login.Session.RefreshToken {
		t.Fatalf("rotation must return a fresh refresh token")
	}

	// The consumed token is now rejected.
	rec = e.do(t, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: login.Session.RefreshToken}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("reuse: status %d", rec.Code)
	}
	if code := errorCode(t, rec); code != "token_reuse_or_revoked" {
		t.Fatalf("reuse: code %q", code)
	}
}

func TestWebCookieTransport(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "correct-password-123")

	rec := e.do(t, http.MethodPost, "/auth/login", loginRequest{
		Username: "alice", Password: "correct-password-123", Platform: "web",
	}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("web login: status %d", rec.Code)
	}

	var resp loginResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Session.RefreshToken != "" {
		t.Fatalf("web transport must not echo the refresh token in the body")
	}

	var refreshCookie, csrfCookie *http.Cookie
	for _, c := range rec.Result().Cookies() {
		switch c.Name {
		case "refresh_token":
			refreshCookie = c
		case "csrf_token":
			csrfCookie = c
		}
	}
	if refreshCookie == nil || csrfCookie == nil {
		t.Fatalf("missing session cookies")
	}
	if !refreshCookie.HttpOnly {
		t.Fatalf("refresh cookie must be HttpOnly")
	}
	if csrfCookie.HttpOnly {
		t.Fatalf("csrf cookie must be readable by the page")
	}

	// Cookie without the CSRF header is rejected.
	rec = e.do(t, http.MethodPost, "/auth/refresh", nil, func(r *http.Request) {
		r.AddCookie(refreshCookie)
		r.AddCookie(csrfCookie)
	})
	if rec.Code != http.StatusForbidden {
		t.Fatalf("refresh without csrf header: status %d", rec.Code)
	}

	// Double submit passes.
	rec = e.do(t, http.MethodPost, "/auth/refresh", nil, func(r *http.Request) {
		r.AddCookie(refreshCookie)
		r.AddCookie(csrfCookie)
		r.Header.Set("X-CSRF-Token", csrfCookie.Value)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("cookie refresh: status %d body %s", rec.Code, rec.Body.String())
	}
	var rresp refreshResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &rresp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if rresp.Session.RefreshToken != "" {
		t.Fatalf("cookie transport must keep the refresh token out of the body")
	}
}

func TestLogoutRevokesOnlyOneSession(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "correct-password-123")
	phone := e.login(t, "alice", "correct-password-123")
	laptop := e.login(t, "alice", "correct-password-123")

	logout := func() *httptest.ResponseRecorder {
		return e.do(t, http.MethodPost, "/auth/logout", logoutRequest{RefreshToken: phone.Session.RefreshToken}, func(r *http.Request) {
			r.Header.Set("Authorization", "Bearer "+phone.Session.AccessToken)
		})
	}
	if rec := logout(); rec.Code != http.StatusNoContent {
		t.Fatalf("logout: status %d", rec.Code)
	}
	// Idempotent.
	if rec := logout(); rec.Code != http.StatusNoContent {
		t.Fatalf("second logout: status %d", rec.Code)
	}

	rec := e.do(t, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: phone.Session.RefreshToken}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("refresh after logout: status %d", rec.Code)
	}
	rec = e.do(t, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: laptop.Session.RefreshToken}, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("laptop session must survive phone logout: status %d", rec.Code)
	}
}

func TestLogoutAll(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "correct-password-123")
	s1 := e.login(t, "alice", "correct-password-123")
	s2 := e.login(t, "alice", "correct-password-123")

	rec := e.do(t, http.MethodPost, "/auth/logout_all", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+s1.Session.AccessToken)
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("logout_all: status %d", rec.Code)
	}

	for i, s := range []loginResponse{s1, s2} {
		rec := e.do(t, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: s.Session.RefreshToken}, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("session %d survived logout_all: status %d", i, rec.Code)
		}
	}
}

func TestChangePassword(t *testing.T) {
	e := newTestEnv(t)
	e.signup(t, "alice", "correct-password-123")
	s1 := e.login(t, "alice", "correct-password-123")
	s2 := e.login(t, "alice", "correct-password-123")

	// Wrong current password.
	rec := e.do(t, http.MethodPost, "/auth/change_password", changePasswordRequest{
		CurrentPassword: "wrong-password-456",
		NewPassword:     "rotated-password-789",
	}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+s1.Session.AccessToken)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("wrong current password: status %d", rec.Code)
	}

	// Policy-violating new password.
	rec = e.do(t, http.MethodPost, "/auth/change_password", changePasswordRequest{
		CurrentPassword: "correct-password-123",
		NewPassword:     "short",
	}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+s1.Session.AccessToken)
	})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("weak new password: status %d", rec.Code)
	}

	rec = e.do(t, http.MethodPost, "/auth/change_password", changePasswordRequest{
		CurrentPassword: "correct-password-123",
		NewPassword:     "rotated-password-789",
	}, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+s1.Session.AccessToken)
	})
	if rec.Code != http.StatusNoContent {
		t.Fatalf("change_password: status %d body %s", rec.Code, rec.Body.String())
	}

	// Every refresh session is gone.
	for i, s := range []loginResponse{s1, s2} {
		rec := e.do(t, http.MethodPost, "/auth/refresh", refreshRequest{RefreshToken: s.Session.RefreshToken}, nil)
		if rec.Code != http.StatusUnauthorized {
			t.Fatalf("session %d survived password change: status %d", i, rec.Code)
		}
	}

	// Old credential is dead; new one works.
	rec = e.do(t, http.MethodPost, "/auth/login", loginRequest{Username: "alice", Password: "correct-password-123"}, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("old password still accepted: status %d", rec.Code)
	}
	e.login(t, "alice", "rotated-password-789")
}

func TestMe(t *testing.T) {
	e := newTestEnv(t)
	s := e.signup(t, "alice", "correct-password-123")

	rec := e.do(t, http.MethodGet, "/me", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+s.Session.AccessToken)
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("/me: status %d", rec.Code)
	}
	var resp meResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.User.ID != s.User.ID || resp.User.Username != "alice" {
		t.Fatalf("unexpected /me payload: %+v", resp)
	}

	rec = e.do(t, http.MethodGet, "/me", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer not-a-token")
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("/me with garbage token: status %d", rec.Code)
	}
	rec = e.do(t, http.MethodGet, "/me", nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("/me without token: status %d", rec.Code)
	}

	// A refresh token is not a bearer credential.
	rec = e.do(t, http.MethodGet, "/me", nil, func(r *http.Request) {
		r.Header.Set("Authorization", "Bearer "+s.Session.RefreshToken)
	})
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("/me with refresh token: status %d", rec.Code)
	}
}
