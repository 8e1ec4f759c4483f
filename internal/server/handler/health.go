package handler

import (
	"net/http"
	"time"
)

// serviceName identifies this backend in health responses and alerts.
const serviceName = "oxgame-backend"

// HealthHandler serves the liveness endpoint.
type HealthHandler struct {
	channels []string
}

// NewHealthHandler creates a HealthHandler reporting the given game channels.
func NewHealthHandler(channels []string) *HealthHandler {
	return &HealthHandler{channels: channels}
}

// HealthCheck reports liveness together with the service identity and the
// channels games run on, so probes can verify the deployment shape and not
// just that something answers on the port.
// GET /api/health
func (h *HealthHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"service":  serviceName,
		"channels": h.channels,
		"time":     time.Now().UTC().Format(time.RFC3339),
	})
}
