package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/julienschmidt/httprouter"

	apiContext "nefrit/internal/api/context"
)

func TestAdminCreateKey(t *testing.T) {
	svc, _ := setupLifecycle(t)
	handler := NewAdminHandler(svc, noopRestarter{})

	t.Run("Valid duration", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/admin/keys", strings.NewReader(`{"days": 7}`))
		handler.CreateKey(rr, req)

		if rr.Code != http.StatusCreated {
			t.Fatalf("Expected 201, got %d", rr.Code)
		}
		var resp struct {
			ID    int64  `json:"id"`
			Token string `json:"token"`
			Days  int    `json:"days"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.ID == 0 || !strings.HasPrefix(resp.Token, "NEFRIT-") || resp.Days != 7 {
			t.Errorf("Unexpected response: %+v", resp)
		}
	})

	t.Run("Negative duration", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/admin/keys", strings.NewReader(`{"days": -3}`))
		handler.CreateKey(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rr.Code)
		}
	})

	t.Run("Malformed body", func(t *testing.T) {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/admin/keys", strings.NewReader(`{"days": "week"}`))
		handler.CreateKey(rr, req)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rr.Code)
		}
	})
}

func TestAdminActivate(t *testing.T) {
	svc, _ := setupLifecycle(t)
	handler := NewAdminHandler(svc, noopRestarter{})

	key, _ := svc.CreateKey(7)

	activate := func(body string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/api/v1/admin/activate", strings.NewReader(body))
		handler.Activate(rr, req)
		return rr
	}

	t.Run("Valid key", func(t *testing.T) {
		rr := activate(`{"token": "` + key.Token + `", "user_id": 42, "label": "alice"}`)
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d: %s", rr.Code, rr.Body.String())
		}
		var resp struct {
			Path string `json:"path"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if resp.Path != "u42" {
			t.Errorf("Expected path u42, got %s", resp.Path)
		}
	})

	t.Run("Used key", func(t *testing.T) {
		rr := activate(`{"token": "` + key.Token + `", "user_id": 43}`)
		if rr.Code != http.StatusConflict {
			t.Errorf("Expected 409 for consumed key, got %d", rr.Code)
		}
	})

	t.Run("Unknown key", func(t *testing.T) {
		rr := activate(`{"token": "NEFRIT-DOESNOTEXIST00", "user_id": 43}`)
		if rr.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rr.Code)
		}
	})

	t.Run("Revoked key", func(t *testing.T) {
		revoked, _ := svc.CreateKey(7)
		if err := svc.Revoke(revoked.ID); err != nil {
			t.Fatalf("Revoke failed: %v", err)
		}
		rr := activate(`{"token": "` + revoked.Token + `", "user_id": 43}`)
		if rr.Code != http.StatusForbidden {
			t.Errorf("Expected 403, got %d", rr.Code)
		}
	})

	t.Run("Missing fields", func(t *testing.T) {
		rr := activate(`{"token": ""}`)
		if rr.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rr.Code)
		}
	})
}

func TestAdminAccountStatus(t *testing.T) {
	svc, _ := setupLifecycle(t)
	handler := NewAdminHandler(svc, noopRestarter{})

	key, _ := svc.CreateKey(7)
	if _, err := svc.Activate(key.Token, 42, "alice"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	status := func(id string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/api/v1/admin/accounts/"+id, nil)
		params := httprouter.Params{{Key: "user_id", Value: id}}
		req = req.WithContext(context.WithValue(req.Context(), apiContext.Params, params))
		handler.AccountStatus(rr, req)
		return rr
	}

	t.Run("Known identity", func(t *testing.T) {
		rr := status("42")
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rr.Code)
		}
		var acct struct {
			UserID   int64  `json:"user_id"`
			Path     string `json:"path"`
			IsActive bool   `json:"is_active"`
		}
		if err := json.NewDecoder(rr.Body).Decode(&acct); err != nil {
			t.Fatalf("Failed to decode response: %v", err)
		}
		if acct.UserID != 42 || acct.Path != "u42" || !acct.IsActive {
			t.Errorf("Unexpected account: %+v", acct)
		}
	})

	t.Run("Unknown identity", func(t *testing.T) {
		if rr := status("9999"); rr.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rr.Code)
		}
	})

	t.Run("Malformed id", func(t *testing.T) {
		if rr := status("banana"); rr.Code != http.StatusBadRequest {
			t.Errorf("Expected 400, got %d", rr.Code)
		}
	})
}

func TestAdminListKeys(t *testing.T) {
	svc, _ := setupLifecycle(t)
	handler := NewAdminHandler(svc, noopRestarter{})

	used, _ := svc.CreateKey(7)
	if _, err := svc.Activate(used.Token, 42, "alice"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if _, err := svc.CreateKey(0); err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}

	rr := httptest.NewRecorder()
	handler.ListKeys(rr, httptest.NewRequest("GET", "/api/v1/admin/keys", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var views []struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
		UsedBy string `json:"used_by"`
		Expiry string `json:"expiry"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&views); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if len(views) != 2 {
		t.Fatalf("Expected 2 keys, got %d", len(views))
	}

	// Newest first: the unlimited key, then the consumed one.
	if views[0].Status != "free" || views[0].Expiry != "unlimited" {
		t.Errorf("Unexpected first entry: %+v", views[0])
	}
	if views[1].Status != "used" || views[1].UsedBy != "alice" {
		t.Errorf("Unexpected second entry: %+v", views[1])
	}
	if views[1].Expiry != "6d" && views[1].Expiry != "7d" {
		t.Errorf("Expected a ~7 day remaining label, got %s", views[1].Expiry)
	}
}

func TestAdminRevokeKey(t *testing.T) {
	svc, _ := setupLifecycle(t)
	handler := NewAdminHandler(svc, noopRestarter{})

	key, _ := svc.CreateKey(7)

	revoke := func(id string) *httptest.ResponseRecorder {
		rr := httptest.NewRecorder()
		req := httptest.NewRequest("DELETE", "/api/v1/admin/keys/"+id, nil)
		params := httprouter.Params{{Key: "key_id", Value: id}}
		req = req.WithContext(context.WithValue(req.Context(), apiContext.Params, params))
		handler.RevokeKey(rr, req)
		return rr
	}

	if rr := revoke("1"); rr.Code != http.StatusOK {
		t.Errorf("Expected 200, got %d", rr.Code)
	}
	if rr := revoke("9999"); rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404 for unknown key, got %d", rr.Code)
	}
	if rr := revoke("banana"); rr.Code != http.StatusBadRequest {
		t.Errorf("Expected 400 for malformed id, got %d", rr.Code)
	}

	keys, err := svc.ListKeys(10)
	if err != nil {
		t.Fatalf("ListKeys failed: %v", err)
	}
	if keys[0].ID != key.ID || !keys[0].IsRevoked {
		t.Error("Key not revoked")
	}
}

func TestAdminStats(t *testing.T) {
	svc, _ := setupLifecycle(t)
	handler := NewAdminHandler(svc, noopRestarter{})

	key, _ := svc.CreateKey(7)
	if _, err := svc.Activate(key.Token, 42, "alice"); err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	rr := httptest.NewRecorder()
	handler.Stats(rr, httptest.NewRequest("GET", "/api/v1/admin/stats", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}

	var stats struct {
		ActiveAccounts int64 `json:"active_accounts"`
		TotalKeys      int64 `json:"total_keys"`
	}
	if err := json.NewDecoder(rr.Body).Decode(&stats); err != nil {
		t.Fatalf("Failed to decode response: %v", err)
	}
	if stats.ActiveAccounts != 1 || stats.TotalKeys != 1 {
		t.Errorf("Unexpected stats: %+v", stats)
	}
}
