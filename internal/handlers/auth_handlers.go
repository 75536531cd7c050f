package handlers

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/peakscape/tours-api/internal/domain"
	"github.com/peakscape/tours-api/internal/service"
	"github.com/peakscape/tours-api/pkg/config"
)

type AuthHandlers struct {
	auth   service.AuthService
	config *config.Config
}

func NewAuthHandlers(auth service.AuthService, cfg *config.Config) *AuthHandlers {
	return &AuthHandlers{auth: auth, config: cfg}
}

func (h *AuthHandlers) Signup(w http.ResponseWriter, r *http.Request) {
	var req domain.SignupRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, token, err := h.auth.Signup(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.sendToken(w, http.StatusCreated, user, token)
}

func (h *AuthHandlers) Login(w http.ResponseWriter, r *http.Request) {
	var req domain.LoginRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, token, err := h.auth.Login(r.Context(), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.sendToken(w, http.StatusOK, user, token)
}

// Logout replaces the session cookie with a short-lived dummy value. The JWT
// itself stays valid until expiry; only the cookie is dropped.
func (h *AuthHandlers) Logout(w http.ResponseWriter, r *http.Request) {
	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    "loggedout",
		Expires:  time.Now().Add(10 * time.Second),
		HttpOnly: true,
		Path:     "/",
	})
	writeJSON(w, http.StatusOK, map[string]string{"status": "success"})
}

func (h *AuthHandlers) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ForgotPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	if err := h.auth.ForgotPassword(r.Context(), req.Email); err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "success",
		"message": "token sent to email",
	})
}

func (h *AuthHandlers) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req domain.ResetPasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, token, err := h.auth.ResetPassword(r.Context(), chi.URLParam(r, "token"), &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.sendToken(w, http.StatusOK, user, token)
}

func (h *AuthHandlers) UpdatePassword(w http.ResponseWriter, r *http.Request) {
	var req domain.UpdatePasswordRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	user, token, err := h.auth.UpdatePassword(r.Context(), CurrentUser(r).ID, &req)
	if err != nil {
		writeError(w, r, err)
		return
	}

	h.sendToken(w, http.StatusOK, user, token)
}

// sendToken writes the session cookie and the token-bearing response body in
// one place so every auth endpoint behaves identically.
func (h *AuthHandlers) sendToken(w http.ResponseWriter, statusCode int, user *domain.User, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     "jwt",
		Value:    token,
		Expires:  time.Now().Add(h.config.Auth.CookieTTL),
		HttpOnly: true,
		Secure:   h.config.IsProduction(),
		SameSite: http.SameSiteLaxMode,
		Path:     "/",
	})

	writeJSON(w, statusCode, map[string]interface{}{
		"status": "success",
		"token":  token,
		"data":   user,
	})
}
