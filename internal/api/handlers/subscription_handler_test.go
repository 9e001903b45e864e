package handlers

import (
	"context"
	"database/sql"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/julienschmidt/httprouter"
	_ "github.com/mattn/go-sqlite3"

	apiContext "nefrit/internal/api/context"
	"nefrit/internal/engine/lifecycle"
	"nefrit/internal/platform/config"
	"nefrit/internal/platform/database"
	"nefrit/internal/platform/repositories"
)

type noopRestarter struct{}

func (noopRestarter) Restart() error { return nil }

func setupLifecycle(t *testing.T) (*lifecycle.Service, *sql.DB) {
	t.Helper()

	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("Failed to open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if err := database.EnsureSchema(db); err != nil {
		t.Fatalf("Failed to create schema: %v", err)
	}

	svc := lifecycle.NewService(db, repositories.NewKeyRepository(db), repositories.NewAccountRepository(db), noopRestarter{})
	return svc, db
}

func subRequest(path string) *http.Request {
	req := httptest.NewRequest("GET", "/sub/"+path, nil)
	params := httprouter.Params{{Key: "path", Value: path}}
	return req.WithContext(context.WithValue(req.Context(), apiContext.Params, params))
}

func TestSubscriptionFetch(t *testing.T) {
	svc, db := setupLifecycle(t)
	handler := NewSubscriptionHandler(svc, config.SubscriptionConfig{Host: "vpn.example.com", UpdateInterval: 6}, "/tunnel")

	key, err := svc.CreateKey(7)
	if err != nil {
		t.Fatalf("CreateKey failed: %v", err)
	}
	path, err := svc.Activate(key.Token, 42, "alice")
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	t.Run("Unknown path", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.Fetch(rr, subRequest("nope"))
		if rr.Code != http.StatusNotFound {
			t.Errorf("Expected 404, got %d", rr.Code)
		}
	})

	t.Run("Active account", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.Fetch(rr, subRequest(path))
		if rr.Code != http.StatusOK {
			t.Fatalf("Expected 200, got %d", rr.Code)
		}
		if rr.Header().Get("Profile-Update-Interval") != "6" {
			t.Error("Missing refresh-interval hint header")
		}

		decoded, err := base64.StdEncoding.DecodeString(rr.Body.String())
		if err != nil {
			t.Fatalf("Body is not base64: %v", err)
		}
		uri := string(decoded)
		if !strings.HasPrefix(uri, "vless://") || !strings.Contains(uri, "@vpn.example.com:443") {
			t.Errorf("Unexpected connection URI: %s", uri)
		}
		if !strings.HasSuffix(uri, "#Nefrit-u42") {
			t.Errorf("Missing label suffix: %s", uri)
		}
	})

	t.Run("Expired account", func(t *testing.T) {
		if _, err := db.Exec(`UPDATE accounts SET expires_at = ? WHERE user_id = 42`, time.Now().Unix()-10); err != nil {
			t.Fatalf("Failed to backdate expiry: %v", err)
		}

		rr := httptest.NewRecorder()
		handler.Fetch(rr, subRequest(path))
		if rr.Code != http.StatusForbidden {
			t.Errorf("Expected 403 for expired account, got %d", rr.Code)
		}
	})
}

func TestSubscriptionFetch_RevokedKey(t *testing.T) {
	svc, _ := setupLifecycle(t)
	handler := NewSubscriptionHandler(svc, config.SubscriptionConfig{Host: "vpn.example.com", UpdateInterval: 6}, "/tunnel")

	key, _ := svc.CreateKey(7)
	path, err := svc.Activate(key.Token, 42, "alice")
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}
	if err := svc.Revoke(key.ID); err != nil {
		t.Fatalf("Revoke failed: %v", err)
	}

	rr := httptest.NewRecorder()
	handler.Fetch(rr, subRequest(path))
	if rr.Code != http.StatusForbidden {
		t.Errorf("Expected 403 after revocation, got %d", rr.Code)
	}
}

func TestSubscriptionQRCode(t *testing.T) {
	svc, _ := setupLifecycle(t)
	handler := NewSubscriptionHandler(svc, config.SubscriptionConfig{Host: "vpn.example.com", UpdateInterval: 6}, "/tunnel")

	key, _ := svc.CreateKey(0)
	path, err := svc.Activate(key.Token, 7, "bob")
	if err != nil {
		t.Fatalf("Activate failed: %v", err)
	}

	rr := httptest.NewRecorder()
	handler.QRCode(rr, subRequest(path))
	if rr.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "image/png" {
		t.Errorf("Expected PNG response, got %s", rr.Header().Get("Content-Type"))
	}

	rr = httptest.NewRecorder()
	handler.QRCode(rr, subRequest("nope"))
	if rr.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rr.Code)
	}
}
