// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/cakeshop/internal/auth"
	"github.com/hitoshi/cakeshop/internal/middleware"
	"github.com/hitoshi/cakeshop/internal/model"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	Signup(ctx context.Context, in auth.SignupInput) (*model.User, error)
	Login(ctx context.Context, email, password string) (*auth.LoginResult, error)
	Profile(ctx context.Context, email string) (*model.User, error)
	UpgradeToSeller(ctx context.Context, email string) (string, error)
	HomePage() auth.HomePage
}

// AuthHandlerConfig は認証ハンドラーの設定。
type AuthHandlerConfig struct {
	CookieDomain string
	CookieSecure bool
	TokenTTL     time.Duration // トークンCookieの有効期間
}

// AuthHandler はアカウント関連のHTTPハンドラー。
type AuthHandler struct {
	service AccountServiceInterface
	config  AuthHandlerConfig
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AccountServiceInterface, config AuthHandlerConfig) *AuthHandler {
	if config.TokenTTL <= 0 {
		config.TokenTTL = 24 * time.Hour
	}
	return &AuthHandler{
		service: service,
		config:  config,
	}
}

// signupRequest はサインアップリクエストのボディ。
type signupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// loginRequest はログインリクエストのボディ。
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HomePage はトップページの案内文を返す。
// GET /api/auth/homepage
func (h *AuthHandler) HomePage(w http.ResponseWriter, r *http.Request) {
	page := h.service.HomePage()
	writeSuccess(w, "Home page loaded", homePageResponse{
		Title:   page.Title,
		Tagline: page.Tagline,
	})
}

// Signup はユーザーをCUSTOMERとして登録する。
// POST /api/auth/signup
func (h *AuthHandler) Signup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Request body must be valid JSON")
		return
	}

	user, err := h.service.Signup(r.Context(), auth.SignupInput{
		Name:     req.Name,
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, "Signup successful", toUserResponse(user))
}

// Login は資格情報を検証し、トークンをHttpOnly Cookieに設定する。
// トークンはボディには含めない。
// POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeBadRequest(w, "Request body must be valid JSON")
		return
	}

	result, err := h.service.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setTokenCookie(w, result.Token)
	writeSuccess(w, "Login successful", toUserResponse(result.User))
}

// Logout はトークンCookieを削除する。トークン自体は期限まで有効なまま。
// POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    "",
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   -1,
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})

	writeSuccess(w, "Logout successful", nil)
}

// Profile は現在のログインユーザー情報を返す。
// GET /api/auth/profile
func (h *AuthHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	user, err := h.service.Profile(r.Context(), p.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	writeSuccess(w, "Profile loaded", toUserResponse(user))
}

// UpgradeToSeller はCUSTOMERをSELLERに昇格させ、新しいトークンをCookieに設定する。
// POST /api/auth/upgrade-to-seller
func (h *AuthHandler) UpgradeToSeller(w http.ResponseWriter, r *http.Request) {
	p, ok := principal(w, r)
	if !ok {
		return
	}

	tok, err := h.service.UpgradeToSeller(r.Context(), p.Email)
	if err != nil {
		handleServiceError(w, r, err)
		return
	}

	h.setTokenCookie(w, tok)
	writeSuccess(w, "Role upgraded to SELLER successfully", nil)
}

// setTokenCookie はトークンCookieを設定する。
func (h *AuthHandler) setTokenCookie(w http.ResponseWriter, tok string) {
	http.SetCookie(w, &http.Cookie{
		Name:     middleware.TokenCookieName,
		Value:    tok,
		Path:     "/",
		Domain:   h.config.CookieDomain,
		MaxAge:   int(h.config.TokenTTL / time.Second),
		HttpOnly: true,
		Secure:   h.config.CookieSecure,
		SameSite: http.SameSiteLaxMode,
	})
}
