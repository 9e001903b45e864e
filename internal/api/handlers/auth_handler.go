package handlers

import (
	"encoding/json"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"nefrit/internal/pkg/errors"
	"nefrit/internal/platform/auth"
	"nefrit/internal/platform/config"
)

type AuthHandler struct {
	cfg      config.AdminConfig
	tokenSvc *auth.TokenService
}

func NewAuthHandler(cfg config.AdminConfig, tokenSvc *auth.TokenService) *AuthHandler {
	return &AuthHandler{cfg: cfg, tokenSvc: tokenSvc}
}

// Login exchanges the configured administrator credentials for a bearer
// token. There is exactly one administrator; no user table backs this.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	if req.Username != h.cfg.Username ||
		bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(req.Password)) != nil {
		errors.WriteError(w, http.StatusUnauthorized, errors.ErrCodeUnauthorized, "Invalid credentials", nil)
		return
	}

	token, err := h.tokenSvc.GenerateToken(req.Username)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to issue token", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Token string `json:"token"`
	}{Token: token})
}
