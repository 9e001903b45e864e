package xray

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"nefrit/internal/platform/config"
	"nefrit/internal/platform/models"
)

// ActiveLister supplies the accounts eligible for the engine client list.
type ActiveLister interface {
	ListActive(now int64) ([]*models.Account, error)
}

// Generator turns the active-account set into the xray config artifact on
// disk. The artifact is derived state: regenerated on every restart, never
// hand-edited.
type Generator struct {
	accounts ActiveLister
	cfg      config.XrayConfig
}

func NewGenerator(accounts ActiveLister, cfg config.XrayConfig) *Generator {
	return &Generator{accounts: accounts, cfg: cfg}
}

type engineConfig struct {
	Log       logSettings `json:"log"`
	Inbounds  []inbound   `json:"inbounds"`
	Outbounds []outbound  `json:"outbounds"`
	DNS       dnsSettings `json:"dns"`
}

type logSettings struct {
	LogLevel string `json:"loglevel"`
}

type inbound struct {
	Port           int            `json:"port"`
	Listen         string         `json:"listen"`
	Protocol       string         `json:"protocol"`
	Settings       vlessSettings  `json:"settings"`
	StreamSettings streamSettings `json:"streamSettings"`
}

type vlessSettings struct {
	Clients    []client `json:"clients"`
	Decryption string   `json:"decryption"`
}

type client struct {
	ID    string `json:"id"`
	Level int    `json:"level"`
}

type streamSettings struct {
	Network    string     `json:"network"`
	WSSettings wsSettings `json:"wsSettings"`
}

type wsSettings struct {
	Path string `json:"path"`
}

type outbound struct {
	Protocol string `json:"protocol"`
	Tag      string `json:"tag"`
}

type dnsSettings struct {
	Servers []string `json:"servers"`
}

// Write regenerates the artifact at the configured path. An empty active
// set produces one throwaway client: xray refuses a vless inbound with an
// empty client list, and that must never stop the engine from starting.
func (g *Generator) Write() error {
	accounts, err := g.accounts.ListActive(time.Now().Unix())
	if err != nil {
		return err
	}

	clients := make([]client, 0, len(accounts))
	for _, acct := range accounts {
		clients = append(clients, client{ID: acct.ClientUUID})
	}
	if len(clients) == 0 {
		clients = append(clients, client{ID: uuid.New().String()})
	}

	conf := engineConfig{
		Log: logSettings{LogLevel: "warning"},
		Inbounds: []inbound{{
			Port:     g.cfg.Port,
			Listen:   "127.0.0.1",
			Protocol: "vless",
			Settings: vlessSettings{Clients: clients, Decryption: "none"},
			StreamSettings: streamSettings{
				Network:    "ws",
				WSSettings: wsSettings{Path: g.cfg.TunnelPath},
			},
		}},
		Outbounds: []outbound{{Protocol: "freedom", Tag: "direct"}},
		DNS:       dnsSettings{Servers: []string{"8.8.8.8", "1.1.1.1"}},
	}

	data, err := json.MarshalIndent(conf, "", "  ")
	if err != nil {
		return err
	}

	if dir := filepath.Dir(g.cfg.ConfigPath); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}
	if err := os.WriteFile(g.cfg.ConfigPath, data, 0644); err != nil {
		return err
	}

	log.Debug().Int("clients", len(clients)).Str("path", g.cfg.ConfigPath).Msg("xray config written")
	return nil
}
