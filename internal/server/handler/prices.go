package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

// PriceHandler serves the mirrored latest prices.
type PriceHandler struct {
	cache    domain.PriceCache
	channels []string
	logger   *slog.Logger
}

// NewPriceHandler creates a PriceHandler over the configured channels.
func NewPriceHandler(cache domain.PriceCache, channels []string, logger *slog.Logger) *PriceHandler {
	return &PriceHandler{cache: cache, channels: channels, logger: logger}
}

// ListPrices returns the latest price for every configured channel.
// GET /api/prices
func (h *PriceHandler) ListPrices(w http.ResponseWriter, r *http.Request) {
	prices, err := h.cache.GetPrices(r.Context(), h.channels)
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list prices failed", slog.String("error", err.Error()))
		writeError(w, http.StatusInternalServerError, "price lookup failed")
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"prices": prices})
}

// GetPrice returns one channel's latest price and observation time.
// GET /api/prices/{channel}
func (h *PriceHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")

	price, ts, err := h.cache.GetPrice(r.Context(), channel)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "no price for channel "+channel)
			return
		}
		h.logger.ErrorContext(r.Context(), "get price failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "price lookup failed")
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"channel":     channel,
		"price":       price,
		"observed_at": ts.UTC().Format(time.RFC3339Nano),
	})
}
