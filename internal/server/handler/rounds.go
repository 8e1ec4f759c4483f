package handler

import (
	"log/slog"
	"net/http"

	"github.com/oxgamehq/oxgame-backend/internal/domain"
)

// RoundHandler serves the settlement journal for reconciliation tooling.
type RoundHandler struct {
	journal domain.JournalStore
	logger  *slog.Logger
}

// NewRoundHandler creates a RoundHandler over the given journal store.
func NewRoundHandler(journal domain.JournalStore, logger *slog.Logger) *RoundHandler {
	return &RoundHandler{journal: journal, logger: logger}
}

// ListRounds returns the channel's most recent settlements, newest first.
// Entries with a non-empty ledger_error mark rounds whose on-chain write
// failed and needs manual reconciliation.
// GET /api/rounds/{channel}
func (h *RoundHandler) ListRounds(w http.ResponseWriter, r *http.Request) {
	channel := r.PathValue("channel")

	entries, err := h.journal.ListRecent(r.Context(), channel, parseLimit(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "list rounds failed",
			slog.String("channel", channel),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "round lookup failed")
		return
	}

	out := make([]map[string]any, 0, len(entries))
	for _, e := range entries {
		out = append(out, map[string]any{
			"id":             e.ID,
			"channel":        e.Channel,
			"round":          e.Round,
			"went_up":        e.WentUp,
			"previous_price": e.PreviousPrice,
			"current_price":  e.CurrentPrice,
			"tx_hash":        e.TxHash,
			"ledger_error":   e.LedgerError,
			"created_at":     e.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"rounds": out})
}
