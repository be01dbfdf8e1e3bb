// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"log/slog"
	"net/http"

	"github.com/hitoshi/bookstore/internal/auth"
	"github.com/hitoshi/bookstore/internal/middleware"
	"github.com/hitoshi/bookstore/internal/model"
	"github.com/hitoshi/bookstore/internal/repository"
)

const oauthStateCookie = "oauth_state"

// duplicateUsernameMessage は登録済みusernameでの登録時にフォームへ表示するメッセージ。
const duplicateUsernameMessage = "Username already exists!"

// 画面遷移先。
const (
	pathLogin   = "/login"
	pathSignup  = "/signup"
	pathHome    = "/home"
	pathCart    = "/cart"
	pathProfile = "/profile"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	GetLoginURL(state string) string
	Register(ctx context.Context, username, password, email string) error
	Login(ctx context.Context, username, password, previousSessionID string) (*model.Session, error)
	HandleCallback(ctx context.Context, code, previousSessionID string) (*model.Session, error)
	Logout(ctx context.Context, sessionID string) error
}

// formView はサインイン・登録フォームのJSONビュー。
type formView struct {
	View     string `json:"view"`
	ErrorMsg string `json:"errormsg,omitempty"`
}

// AuthHandler はサインイン・登録・サインアウトのHTTPハンドラー。
type AuthHandler struct {
	service AuthServiceInterface
	cookies CookieConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{
		service: service,
		cookies: cookies,
	}
}

// LoginForm はサインインフォームを返す。
// GET /login
func (h *AuthHandler) LoginForm(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, formView{View: "login"})
}

// SignupForm は登録フォームを返す。
// GET /signup
func (h *AuthHandler) SignupForm(w http.ResponseWriter, r *http.Request) {
	middleware.WriteJSON(w, http.StatusOK, formView{View: "signup"})
}

// Login はローカル資格情報でサインインする。
// POST /login
// 失敗理由（username不明・パスワード不一致）は区別せずサインインフォームへ戻す。
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	username := r.PostFormValue("username")
	password := r.PostFormValue("password")

	session, err := h.service.Login(r.Context(), username, password, middleware.SessionIDFromContext(r.Context()))
	if err != nil {
		if !errors.Is(err, auth.ErrRejected) {
			slog.Error("local sign-in failed", slog.String("error", err.Error()))
		}
		http.Redirect(w, r, pathLogin, http.StatusFound)
		return
	}

	setSessionCookie(w, session.ID, h.cookies)
	http.Redirect(w, r, pathHome, http.StatusFound)
}

// Signup はローカルアカウントを登録する。
// POST /signup
// 入力検証エラーとusername重複はメッセージ付きでフォームを返し、保存失敗は登録フォームへ戻す。
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	err := h.service.Register(r.Context(),
		r.PostFormValue("username"),
		r.PostFormValue("password"),
		r.PostFormValue("email"),
	)

	var verr *auth.ValidationError
	switch {
	case err == nil:
		http.Redirect(w, r, pathLogin, http.StatusFound)
	case errors.As(err, &verr):
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, formView{View: "signup", ErrorMsg: verr.Message})
	case errors.Is(err, repository.ErrDuplicateUsername):
		middleware.WriteJSON(w, http.StatusUnprocessableEntity, formView{View: "signup", ErrorMsg: duplicateUsernameMessage})
	default:
		slog.Error("signup failed", slog.String("error", err.Error()))
		http.Redirect(w, r, pathSignup, http.StatusFound)
	}
}

// GoogleLogin はGoogle OAuthフローを開始する。
// GET /auth/google
func (h *AuthHandler) GoogleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := generateState()
	if err != nil {
		slog.Error("failed to generate oauth state", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	// stateをCookieに保存（CSRF対策）
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600, // 10分
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	http.Redirect(w, r, h.service.GetLoginURL(state), http.StatusFound)
}

// GoogleCallback はOAuthコールバックを処理する。
// GET /auth/google/callback?code=xxx&state=yyy
// 成功時はホームへ、失敗時はサインインフォームへリダイレクトする。
func (h *AuthHandler) GoogleCallback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || state == "" || subtle.ConstantTimeCompare([]byte(stateCookie.Value), []byte(state)) != 1 {
		slog.Warn("oauth state mismatch")
		http.Redirect(w, r, pathLogin, http.StatusFound)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.cookies.Secure,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		slog.Warn("oauth callback without code", slog.String("error", r.URL.Query().Get("error")))
		http.Redirect(w, r, pathLogin, http.StatusFound)
		return
	}

	session, err := h.service.HandleCallback(r.Context(), code, middleware.SessionIDFromContext(r.Context()))
	if err != nil {
		slog.Error("oauth callback failed", slog.String("error", err.Error()))
		http.Redirect(w, r, pathLogin, http.StatusFound)
		return
	}

	setSessionCookie(w, session.ID, h.cookies)
	http.Redirect(w, r, pathHome, http.StatusFound)
}

// Logout はセッションを破棄してサインインフォームへ戻す。
// GET /logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if sessionID := middleware.SessionIDFromContext(r.Context()); sessionID != "" {
		if err := h.service.Logout(r.Context(), sessionID); err != nil {
			// 失敗してもCookieはクリアする
			slog.Error("failed to logout", slog.String("error", err.Error()))
		}
	}

	clearSessionCookie(w, h.cookies)
	http.Redirect(w, r, pathLogin, http.StatusFound)
}

// generateState はCSRF対策用のランダムなstate値を生成する。
func generateState() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
