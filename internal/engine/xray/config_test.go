package xray

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"

	"nefrit/internal/platform/config"
	"nefrit/internal/platform/models"
)

type stubLister struct {
	accounts []*models.Account
}

func (s *stubLister) ListActive(now int64) ([]*models.Account, error) {
	return s.accounts, nil
}

func testXrayConfig(t *testing.T) config.XrayConfig {
	t.Helper()
	return config.XrayConfig{
		ConfigPath: filepath.Join(t.TempDir(), "xray_config.json"),
		Port:       10001,
		TunnelPath: "/tunnel",
	}
}

func readArtifact(t *testing.T, path string) map[string]interface{} {
	t.Helper()

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("Failed to read artifact: %v", err)
	}
	var conf map[string]interface{}
	if err := json.Unmarshal(data, &conf); err != nil {
		t.Fatalf("Artifact is not valid JSON: %v", err)
	}
	return conf
}

func artifactClients(t *testing.T, conf map[string]interface{}) []interface{} {
	t.Helper()

	inbounds := conf["inbounds"].([]interface{})
	if len(inbounds) != 1 {
		t.Fatalf("Expected 1 inbound, got %d", len(inbounds))
	}
	settings := inbounds[0].(map[string]interface{})["settings"].(map[string]interface{})
	return settings["clients"].([]interface{})
}

func TestGenerator_WriteActiveClients(t *testing.T) {
	cfg := testXrayConfig(t)
	lister := &stubLister{accounts: []*models.Account{
		{ClientUUID: "11111111-1111-1111-1111-111111111111"},
		{ClientUUID: "22222222-2222-2222-2222-222222222222"},
	}}

	if err := NewGenerator(lister, cfg).Write(); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	conf := readArtifact(t, cfg.ConfigPath)
	clients := artifactClients(t, conf)
	if len(clients) != 2 {
		t.Fatalf("Expected 2 clients, got %d", len(clients))
	}
	first := clients[0].(map[string]interface{})
	if first["id"] != "11111111-1111-1111-1111-111111111111" {
		t.Errorf("Unexpected client id: %v", first["id"])
	}

	in := conf["inbounds"].([]interface{})[0].(map[string]interface{})
	if in["listen"] != "127.0.0.1" || in["protocol"] != "vless" {
		t.Errorf("Unexpected inbound parameters: %v", in)
	}
	if in["port"].(float64) != 10001 {
		t.Errorf("Expected port 10001, got %v", in["port"])
	}
}

func TestGenerator_EmptySetGetsPlaceholder(t *testing.T) {
	cfg := testXrayConfig(t)
	gen := NewGenerator(&stubLister{}, cfg)

	if err := gen.Write(); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	clients := artifactClients(t, readArtifact(t, cfg.ConfigPath))
	if len(clients) != 1 {
		t.Fatalf("Empty active set must yield exactly 1 placeholder client, got %d", len(clients))
	}

	id := clients[0].(map[string]interface{})["id"].(string)
	if _, err := uuid.Parse(id); err != nil {
		t.Errorf("Placeholder id is not a uuid: %v", id)
	}

	// A fresh placeholder per generation
	if err := gen.Write(); err != nil {
		t.Fatalf("Second write failed: %v", err)
	}
	second := artifactClients(t, readArtifact(t, cfg.ConfigPath))[0].(map[string]interface{})["id"].(string)
	if second == id {
		t.Error("Placeholder client must be random per generation")
	}
}
