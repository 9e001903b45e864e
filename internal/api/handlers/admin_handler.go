package handlers

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/julienschmidt/httprouter"

	apiContext "nefrit/internal/api/context"
	"nefrit/internal/engine/lifecycle"
	"nefrit/internal/pkg/errors"
	"nefrit/internal/platform/models"
)

const keyListLimit = 20

type AdminHandler struct {
	svc       *lifecycle.Service
	restarter lifecycle.Restarter
}

func NewAdminHandler(svc *lifecycle.Service, restarter lifecycle.Restarter) *AdminHandler {
	return &AdminHandler{svc: svc, restarter: restarter}
}

func (h *AdminHandler) CreateKey(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Days int `json:"days"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	key, err := h.svc.CreateKey(req.Days)
	if err != nil {
		if err == lifecycle.ErrInvalidDuration {
			errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, err.Error(), nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to create key", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	json.NewEncoder(w).Encode(struct {
		ID    int64  `json:"id"`
		Token string `json:"token"`
		Days  int    `json:"days"`
	}{ID: key.ID, Token: key.Token, Days: key.Days})
}

// Activate consumes a key on behalf of an external identity. This is the
// endpoint the chat front-end calls when a user submits a key; the four
// activation outcomes map onto distinct status codes.
func (h *AdminHandler) Activate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token  string `json:"token"`
		UserID int64  `json:"user_id"`
		Label  string `json:"label"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Token == "" || req.UserID == 0 {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	path, err := h.svc.Activate(req.Token, req.UserID, req.Label)
	if err != nil {
		switch err {
		case lifecycle.ErrKeyNotFound:
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Key not found", nil)
		case lifecycle.ErrKeyRevoked:
			errors.WriteError(w, http.StatusForbidden, errors.ErrCodeKeyRevoked, "Key has been revoked", nil)
		case lifecycle.ErrKeyAlreadyUsed:
			errors.WriteError(w, http.StatusConflict, errors.ErrCodeKeyUsed, "Key has already been used", nil)
		default:
			errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Activation failed", nil)
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Path string `json:"path"`
	}{Path: path})
}

// AccountStatus reports the subscription state for an external identity,
// reconciling expiries first.
func (h *AdminHandler) AccountStatus(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	userID, err := strconv.ParseInt(params.ByName("user_id"), 10, 64)
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid user id", nil)
		return
	}

	acct, err := h.svc.AccountStatus(userID)
	if err != nil {
		if err == lifecycle.ErrAccountNotFound {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Account not found", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to load account", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(acct)
}

func (h *AdminHandler) ListKeys(w http.ResponseWriter, r *http.Request) {
	keys, err := h.svc.ListKeys(keyListLimit)
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to list keys", nil)
		return
	}

	type keyView struct {
		ID     int64  `json:"id"`
		Token  string `json:"token"`
		Days   int    `json:"days"`
		Status string `json:"status"`
		UsedBy string `json:"used_by,omitempty"`
		Expiry string `json:"expiry"`
	}

	views := make([]keyView, 0, len(keys))
	for _, key := range keys {
		views = append(views, keyView{
			ID:     key.ID,
			Token:  key.Token,
			Days:   key.Days,
			Status: keyStatus(key),
			UsedBy: key.UsedByLabel,
			Expiry: formatExpiry(key.ExpiresAt, key.IsRevoked),
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(views)
}

func (h *AdminHandler) RevokeKey(w http.ResponseWriter, r *http.Request) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	keyID, err := strconv.ParseInt(params.ByName("key_id"), 10, 64)
	if err != nil {
		errors.WriteError(w, http.StatusBadRequest, errors.ErrCodeInvalidInput, "Invalid key id", nil)
		return
	}

	if err := h.svc.Revoke(keyID); err != nil {
		if err == lifecycle.ErrKeyNotFound {
			errors.WriteError(w, http.StatusNotFound, errors.ErrCodeNotFound, "Key not found", nil)
			return
		}
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to revoke key", nil)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (h *AdminHandler) Stats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.svc.Stats()
	if err != nil {
		errors.WriteError(w, http.StatusInternalServerError, errors.ErrCodeInternal, "Failed to collect stats", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(stats)
}

// Restart triggers a manual engine restart. It serializes with every other
// restart trigger inside the supervisor.
func (h *AdminHandler) Restart(w http.ResponseWriter, r *http.Request) {
	if err := h.restarter.Restart(); err != nil {
		errors.WriteError(w, http.StatusBadGateway, errors.ErrCodeEngineDown, "Engine restart failed", nil)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(struct {
		Restarted bool `json:"restarted"`
	}{Restarted: true})
}

func keyStatus(key *models.AccessKey) string {
	switch {
	case key.IsRevoked:
		return "revoked"
	case key.IsUsed:
		return "used"
	default:
		return "free"
	}
}

// formatExpiry renders the remaining lifetime of a consumed key the way
// operators read it: days if at least one remains, hours under that.
func formatExpiry(expiresAt *int64, revoked bool) string {
	if revoked {
		return "revoked"
	}
	if expiresAt == nil {
		return "unlimited"
	}

	remaining := time.Until(time.Unix(*expiresAt, 0))
	if remaining <= 0 {
		return "expired"
	}
	if days := int(remaining.Hours() / 24); days > 0 {
		return fmt.Sprintf("%dd", days)
	}
	return fmt.Sprintf("%dh", int(remaining.Hours()))
}
