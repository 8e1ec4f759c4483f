package handler

import (
	"net/http"
	"time"
)

// StatusHandler serves the backend status for dashboards.
type StatusHandler struct {
	Mode      string
	Channels  []string
	StartedAt time.Time
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, channels []string, startedAt time.Time) *StatusHandler {
	return &StatusHandler{Mode: mode, Channels: channels, StartedAt: startedAt}
}

// GetStatus responds with the current backend mode, configured channels, and
// uptime.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.Mode,
		"channels":       h.Channels,
		"uptime_seconds": int64(time.Since(h.StartedAt).Seconds()),
	})
}
