package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// MarketCounter reports how many markets the store holds.
type MarketCounter interface {
	Count(ctx context.Context) (int64, error)
}

// StatusHandler serves backend status for the dashboard.
type StatusHandler struct {
	mode      string
	chainID   int64
	startedAt time.Time
	markets   MarketCounter
	logger    *slog.Logger
}

// NewStatusHandler creates a StatusHandler.
func NewStatusHandler(mode string, chainID int64, startedAt time.Time, markets MarketCounter, logger *slog.Logger) *StatusHandler {
	return &StatusHandler{
		mode:      mode,
		chainID:   chainID,
		startedAt: startedAt,
		markets:   markets,
		logger:    logger,
	}
}

// GetStatus responds with the current backend mode, chain, uptime, and market
// count.
// GET /api/status
func (h *StatusHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	var count int64
	if h.markets != nil {
		n, err := h.markets.Count(r.Context())
		if err != nil {
			h.logger.WarnContext(r.Context(), "handler: status market count failed",
				slog.String("error", err.Error()),
			)
		} else {
			count = n
		}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"mode":           h.mode,
		"chain_id":       h.chainID,
		"uptime_seconds": int64(time.Since(h.startedAt).Seconds()),
		"markets":        count,
	})
}
