package handlers

import (
	"encoding/json"
	"net/http"
	"time"
)

type HealthHandler struct {
	engine EngineHealth
}

func NewHealthHandler(engine EngineHealth) *HealthHandler {
	return &HealthHandler{engine: engine}
}

// Check reports service liveness plus whether the engine child process is
// currently running. The service itself answering is the liveness signal;
// a stopped engine degrades the response but does not fail it.
func (h *HealthHandler) Check(w http.ResponseWriter, r *http.Request) {
	response := struct {
		Status    string `json:"status"`
		Xray      bool   `json:"xray"`
		Timestamp int64  `json:"timestamp"`
	}{
		Status:    "ok",
		Xray:      h.engine.IsHealthy(),
		Timestamp: time.Now().Unix(),
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(response)
}
