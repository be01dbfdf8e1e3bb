package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"

	"github.com/hitoshi/bookstore/internal/auth"
	"github.com/hitoshi/bookstore/internal/middleware"
	"github.com/hitoshi/bookstore/internal/model"
	"github.com/hitoshi/bookstore/internal/repository"
)

// --- モック定義 ---

type mockAuthService struct {
	getLoginURLFn    func(state string) string
	registerFn       func(ctx context.Context, username, password, email string) error
	loginFn          func(ctx context.Context, username, password, previousSessionID string) (*model.Session, error)
	handleCallbackFn func(ctx context.Context, code, previousSessionID string) (*model.Session, error)
	logoutFn         func(ctx context.Context, sessionID string) error
}

func (m *mockAuthService) GetLoginURL(state string) string {
	if m.getLoginURLFn != nil {
		return m.getLoginURLFn(state)
	}
	return ""
}

func (m *mockAuthService) Register(ctx context.Context, username, password, email string) error {
	if m.registerFn != nil {
		return m.registerFn(ctx, username, password, email)
	}
	return nil
}

func (m *mockAuthService) Login(ctx context.Context, username, password, previousSessionID string) (*model.Session, error) {
	if m.loginFn != nil {
		return m.loginFn(ctx, username, password, previousSessionID)
	}
	return nil, auth.ErrRejected
}

func (m *mockAuthService) HandleCallback(ctx context.Context, code, previousSessionID string) (*model.Session, error) {
	if m.handleCallbackFn != nil {
		return m.handleCallbackFn(ctx, code, previousSessionID)
	}
	return nil, errors.New("not configured")
}

func (m *mockAuthService) Logout(ctx context.Context, sessionID string) error {
	if m.logoutFn != nil {
		return m.logoutFn(ctx, sessionID)
	}
	return nil
}

var _ AuthServiceInterface = (*mockAuthService)(nil)

var testCookies = CookieConfig{SessionMaxAge: 86400}

// formRequest はフォーム送信のリクエストを生成するテストヘルパー。
func formRequest(method, path string, values url.Values) *http.Request {
	req := httptest.NewRequest(method, path, strings.NewReader(values.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

// withSession はリクエストコンテキストにセッションを注入する。
func withSession(req *http.Request, session *model.Session) *http.Request {
	return req.WithContext(middleware.ContextWithSession(req.Context(), session))
}

func sessionCookie(resp *http.Response) *http.Cookie {
	for _, c := range resp.Cookies() {
		if c.Name == middleware.SessionCookieName {
			return c
		}
	}
	return nil
}

func assertRedirect(t *testing.T, w *httptest.ResponseRecorder, location string) {
	t.Helper()
	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusFound)
	}
	if got := w.Header().Get("Location"); got != location {
		t.Errorf("Location = %q, want %q", got, location)
	}
}

// --- サインイン ---

func TestAuthHandler_Login_Success_SetsCookieAndRedirectsHome(t *testing.T) {
	var gotPrev string
	svc := &mockAuthService{
		loginFn: func(ctx context.Context, username, password, prev string) (*model.Session, error) {
			if username != "alice" || password != "secret1" {
				t.Errorf("credentials = (%q, %q)", username, password)
			}
			gotPrev = prev
			return &model.Session{ID: "new-session"}, nil
		},
	}
	h := NewAuthHandler(svc, testCookies)

	req := formRequest(http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"secret1"}})
	req = withSession(req, &model.Session{ID: "anon-session"})
	w := httptest.NewRecorder()

	h.Login(w, req)

	assertRedirect(t, w, "/home")
	if gotPrev != "anon-session" {
		t.Errorf("previous session = %q, want %q", gotPrev, "anon-session")
	}
	c := sessionCookie(w.Result())
	if c == nil || c.Value != "new-session" {
		t.Fatalf("session cookie = %+v, want new-session", c)
	}
	if !c.HttpOnly {
		t.Error("session cookie should be HttpOnly")
	}
	if c.MaxAge != 86400 {
		t.Errorf("MaxAge = %d, want 86400", c.MaxAge)
	}
}

func TestAuthHandler_Login_FailuresRedirectToLoginWithoutCookie(t *testing.T) {
	for _, svcErr := range []error{auth.ErrRejected, errors.New("db down")} {
		t.Run(svcErr.Error(), func(t *testing.T) {
			h := NewAuthHandler(&mockAuthService{
				loginFn: func(ctx context.Context, username, password, prev string) (*model.Session, error) {
					return nil, svcErr
				},
			}, testCookies)

			w := httptest.NewRecorder()
			h.Login(w, formRequest(http.MethodPost, "/login", url.Values{"username": {"alice"}, "password": {"x"}}))

			assertRedirect(t, w, "/login")
			if sessionCookie(w.Result()) != nil {
				t.Error("no session cookie should be set on failure")
			}
		})
	}
}

// --- 登録 ---

func TestAuthHandler_Signup(t *testing.T) {
	tests := []struct {
		name         string
		err          error
		wantStatus   int
		wantLocation string
		wantMsg      string
	}{
		{name: "success", wantStatus: http.StatusFound, wantLocation: "/login"},
		{
			name:       "validation error",
			err:        &auth.ValidationError{Message: "Username minlength is 5 and max 15!"},
			wantStatus: http.StatusUnprocessableEntity,
			wantMsg:    "Username minlength is 5 and max 15!",
		},
		{
			name:       "duplicate username",
			err:        fmt.Errorf("failed to create account: %w", repository.ErrDuplicateUsername),
			wantStatus: http.StatusUnprocessableEntity,
			wantMsg:    "Username already exists!",
		},
		{name: "persistence error", err: errors.New("insert failed"), wantStatus: http.StatusFound, wantLocation: "/signup"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got [3]string
			h := NewAuthHandler(&mockAuthService{
				registerFn: func(ctx context.Context, username, password, email string) error {
					got = [3]string{username, password, email}
					return tt.err
				},
			}, testCookies)

			w := httptest.NewRecorder()
			h.Signup(w, formRequest(http.MethodPost, "/signup", url.Values{
				"username": {"alice"}, "password": {"secret1"}, "email": {"a@example.com"},
			}))

			if got != [3]string{"alice", "secret1", "a@example.com"} {
				t.Errorf("register args = %v", got)
			}
			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if got := w.Header().Get("Location"); got != tt.wantLocation {
				t.Errorf("Location = %q, want %q", got, tt.wantLocation)
			}
			if tt.wantMsg != "" {
				var body formView
				if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
					t.Fatalf("failed to decode: %v", err)
				}
				if body.View != "signup" || body.ErrorMsg != tt.wantMsg {
					t.Errorf("body = %+v", body)
				}
			}
		})
	}
}

func TestAuthHandler_Forms(t *testing.T) {
	h := NewAuthHandler(&mockAuthService{}, testCookies)

	for path, fn := range map[string]http.HandlerFunc{"login": h.LoginForm, "signup": h.SignupForm} {
		w := httptest.NewRecorder()
		fn(w, httptest.NewRequest(http.MethodGet, "/"+path, nil))

		var body formView
		if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
			t.Fatalf("%s: failed to decode: %v", path, err)
		}
		if body.View != path || body.ErrorMsg != "" {
			t.Errorf("%s: body = %+v", path, body)
		}
	}
}

// --- Google ---

func TestAuthHandler_GoogleLogin_SetsStateAndRedirects(t *testing.T) {
	var gotState string
	h := NewAuthHandler(&mockAuthService{
		getLoginURLFn: func(state string) string {
			gotState = state
			return "https://accounts.google.com/o/oauth2/auth?state=" + state
		},
	}, testCookies)

	w := httptest.NewRecorder()
	h.GoogleLogin(w, httptest.NewRequest(http.MethodGet, "/auth/google", nil))

	if w.Code != http.StatusFound {
		t.Errorf("status = %d, want %d", w.Code, http.StatusFound)
	}
	if !strings.HasPrefix(w.Header().Get("Location"), "https://accounts.google.com/") {
		t.Errorf("Location = %q", w.Header().Get("Location"))
	}

	var stateCookie *http.Cookie
	for _, c := range w.Result().Cookies() {
		if c.Name == oauthStateCookie {
			stateCookie = c
		}
	}
	if stateCookie == nil || stateCookie.Value != gotState || len(gotState) != 32 {
		t.Errorf("state cookie = %+v, state = %q", stateCookie, gotState)
	}
}

func TestAuthHandler_GoogleCallback(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		cookie       string
		svcErr       error
		wantLocation string
		wantSession  bool
	}{
		{name: "success", query: "code=c1&state=s1", cookie: "s1", wantLocation: "/home", wantSession: true},
		{name: "state mismatch", query: "code=c1&state=s1", cookie: "other", wantLocation: "/login"},
		{name: "no state cookie", query: "code=c1&state=s1", wantLocation: "/login"},
		{name: "empty state", query: "code=c1&state=", cookie: "", wantLocation: "/login"},
		{name: "denied by user", query: "error=access_denied&state=s1", cookie: "s1", wantLocation: "/login"},
		{name: "provider error", query: "code=c1&state=s1", cookie: "s1", svcErr: errors.New("exchange failed"), wantLocation: "/login"},
		{name: "provider conflict", query: "code=c1&state=s1", cookie: "s1", svcErr: auth.ErrProviderConflict, wantLocation: "/login"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			h := NewAuthHandler(&mockAuthService{
				handleCallbackFn: func(ctx context.Context, code, prev string) (*model.Session, error) {
					called = true
					if code != "c1" {
						t.Errorf("code = %q, want c1", code)
					}
					if tt.svcErr != nil {
						return nil, tt.svcErr
					}
					return &model.Session{ID: "google-session"}, nil
				},
			}, testCookies)

			req := httptest.NewRequest(http.MethodGet, "/auth/google/callback?"+tt.query, nil)
			if tt.cookie != "" {
				req.AddCookie(&http.Cookie{Name: oauthStateCookie, Value: tt.cookie})
			}
			w := httptest.NewRecorder()

			h.GoogleCallback(w, req)

			assertRedirect(t, w, tt.wantLocation)
			c := sessionCookie(w.Result())
			if tt.wantSession && (c == nil || c.Value != "google-session") {
				t.Errorf("session cookie = %+v, want google-session", c)
			}
			if !tt.wantSession && c != nil {
				t.Error("no session cookie should be set on failure")
			}
			if tt.wantLocation == "/login" && tt.svcErr == nil && called {
				t.Error("service should not be called when the state check fails")
			}
		})
	}
}

// --- サインアウト ---

func TestAuthHandler_Logout(t *testing.T) {
	tests := []struct {
		name       string
		session    *model.Session
		logoutErr  error
		wantLogout string
	}{
		{name: "signed in", session: &model.Session{ID: "s1"}, wantLogout: "s1"},
		{name: "delete fails still clears cookie", session: &model.Session{ID: "s1"}, logoutErr: errors.New("db down"), wantLogout: "s1"},
		{name: "no session"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var deleted string
			h := NewAuthHandler(&mockAuthService{
				logoutFn: func(ctx context.Context, sessionID string) error {
					deleted = sessionID
					return tt.logoutErr
				},
			}, testCookies)

			req := httptest.NewRequest(http.MethodGet, "/logout", nil)
			if tt.session != nil {
				req = withSession(req, tt.session)
			}
			w := httptest.NewRecorder()

			h.Logout(w, req)

			assertRedirect(t, w, "/login")
			if deleted != tt.wantLogout {
				t.Errorf("deleted session = %q, want %q", deleted, tt.wantLogout)
			}
			c := sessionCookie(w.Result())
			if c == nil || c.MaxAge >= 0 {
				t.Errorf("session cookie should be cleared, got %+v", c)
			}
		})
	}
}
