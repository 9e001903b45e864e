package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/julienschmidt/httprouter"
	"github.com/rs/zerolog/log"

	apiContext "nefrit/internal/api/context"
	"nefrit/internal/engine/lifecycle"
	"nefrit/internal/engine/subscription"
	"nefrit/internal/platform/config"
	"nefrit/internal/platform/models"
)

type SubscriptionHandler struct {
	svc        *lifecycle.Service
	cfg        config.SubscriptionConfig
	tunnelPath string
}

func NewSubscriptionHandler(svc *lifecycle.Service, cfg config.SubscriptionConfig, tunnelPath string) *SubscriptionHandler {
	return &SubscriptionHandler{svc: svc, cfg: cfg, tunnelPath: tunnelPath}
}

// Fetch serves the base64 connection descriptor for a subscription path.
// The lifecycle service sweeps expiries before the lookup, so an account
// past its expiry is refused even between scheduler ticks.
func (h *SubscriptionHandler) Fetch(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.resolve(w, r)
	if !ok {
		return
	}

	body := subscription.Encode(subscription.URI(acct.ClientUUID, acct.Path, h.cfg.Host, h.tunnelPath))

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Profile-Update-Interval", fmt.Sprintf("%d", h.cfg.UpdateInterval))
	w.Write([]byte(body))
}

// QRCode serves the connection descriptor as a PNG QR image.
func (h *SubscriptionHandler) QRCode(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.resolve(w, r)
	if !ok {
		return
	}

	png, err := subscription.QRCode(subscription.URI(acct.ClientUUID, acct.Path, h.cfg.Host, h.tunnelPath), 0)
	if err != nil {
		log.Error().Err(err).Str("path", acct.Path).Msg("qr generation failed")
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

func (h *SubscriptionHandler) resolve(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	params := r.Context().Value(apiContext.Params).(httprouter.Params)
	path := params.ByName("path")

	acct, err := h.svc.AccountByPath(path)
	if err != nil {
		if err == lifecycle.ErrAccountNotFound {
			http.Error(w, "Not found", http.StatusNotFound)
		} else {
			log.Error().Err(err).Str("path", path).Msg("subscription lookup failed")
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
		return nil, false
	}

	if !acct.Eligible(time.Now().Unix()) {
		http.Error(w, "Subscription expired", http.StatusForbidden)
		return nil, false
	}

	return acct, true
}
