package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"nefrit/internal/engine/relay"
	"nefrit/internal/platform/config"
)

// EngineHealth gates new bridged connections on the engine being alive.
type EngineHealth interface {
	IsHealthy() bool
}

type TunnelHandler struct {
	upstreamURL string
	health      EngineHealth
	upgrader    websocket.Upgrader
	dialer      *websocket.Dialer
}

func NewTunnelHandler(cfg config.XrayConfig, health EngineHealth) *TunnelHandler {
	return &TunnelHandler{
		upstreamURL: fmt.Sprintf("ws://127.0.0.1:%d%s", cfg.Port, cfg.TunnelPath),
		health:      health,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  32 * 1024,
			WriteBufferSize: 32 * 1024,
			// The relay carries opaque tunnel traffic, not browser sessions;
			// origin checks add nothing here.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		dialer: &websocket.Dialer{HandshakeTimeout: 30 * time.Second},
	}
}

// Handle upgrades the inbound connection and bridges it to the engine's
// loopback inbound. Failures affect only this connection.
func (h *TunnelHandler) Handle(w http.ResponseWriter, r *http.Request) {
	if !h.health.IsHealthy() {
		http.Error(w, "Engine unavailable", http.StatusServiceUnavailable)
		return
	}

	client, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade already wrote the HTTP error response.
		log.Debug().Err(err).Str("remote", r.RemoteAddr).Msg("tunnel upgrade failed")
		return
	}

	upstream, _, err := h.dialer.Dial(h.upstreamURL, nil)
	if err != nil {
		log.Error().Err(err).Str("remote", r.RemoteAddr).Msg("engine dial failed")
		client.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseInternalServerErr, "engine unavailable"),
		)
		client.Close()
		return
	}

	log.Debug().Str("remote", r.RemoteAddr).Msg("tunnel connection bridged")
	relay.Bridge(client, upstream)
	log.Debug().Str("remote", r.RemoteAddr).Msg("tunnel connection closed")
}
