package handler

import (
	"log/slog"
	"net/http"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

// GameState exposes the settlement core's in-memory view of a channel's run.
// *game.Settler implements it.
type GameState interface {
	Snapshot(channel string) (round uint64, lastPrice float64, ok bool)
}

// PoolHandler serves pool status: the on-ledger snapshot merged with the
// local round number and round-open price.
type PoolHandler struct {
	ledger   domain.Ledger
	game     GameState
	channels []string
	logger   *slog.Logger
}

// NewPoolHandler creates a PoolHandler. game may be nil when no settlement
// runs in this process; the response then carries the ledger view only.
func NewPoolHandler(ledger domain.Ledger, game GameState, channels []string, logger *slog.Logger) *PoolHandler {
	return &PoolHandler{ledger: ledger, game: game, channels: channels, logger: logger}
}

// ListPools returns a status per configured channel. Channels whose ledger
// read fails appear with available=false.
// GET /api/pools
func (h *PoolHandler) ListPools(w http.ResponseWriter, r *http.Request) {
	pools := make([]map[string]any, 0, len(h.channels))
	for _, channel := range h.channels {
		pools = append(pools, h.poolBody(r, channel))
	}
	writeJSON(w, http.StatusOK, map[string]any{"pools": pools})
}

// GetPool returns one channel's pool status. When the ledger read fails the
// response degrades to available=false instead of erroring, so dashboards
// render something during chain hiccups; the local round state is still
// included when the settler runs in this process.
// GET /api/pools/{channel}
func (h *PoolHandler) GetPool(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.poolBody(r, r.PathValue("channel")))
}

func (h *PoolHandler) poolBody(r *http.Request, channel string) map[string]any {
	body := map[string]any{
		"channel":   channel,
		"available": false,
	}

	if info, ok := h.ledger.PoolInfo(r.Context(), channel); ok {
		body["available"] = true
		body["total_deposit"] = info.TotalDeposit
		body["current_round"] = info.CurrentRound
		body["last_round_time"] = info.LastRoundTime
		body["active"] = info.Active
		body["active_players"] = info.ActivePlayers
		body["total_players"] = info.TotalPlayers
	}

	if h.game != nil {
		if round, lastPrice, ok := h.game.Snapshot(channel); ok {
			body["round_number"] = round
			body["last_price"] = lastPrice
		}
	}
	return body
}
