package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
)

// MarketService defines the methods that the market handler requires from the
// service layer.
type MarketService interface {
	GetMarket(ctx context.Context, id string) (domain.Market, error)
	GetMarketBySlug(ctx context.Context, slug string) (domain.Market, error)
	ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error)
	ListDeposits(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Deposit, error)
	Count(ctx context.Context) (int64, error)
}

// PriceService prices the spot endpoint.
type PriceService interface {
	SpotPrice(ctx context.Context, marketID string) (decimal.Decimal, time.Time, error)
}

// MarketHandler serves market-related HTTP endpoints.
type MarketHandler struct {
	markets MarketService
	prices  PriceService
	logger  *slog.Logger
}

// NewMarketHandler creates a MarketHandler with the given services and logger.
func NewMarketHandler(markets MarketService, prices PriceService, logger *slog.Logger) *MarketHandler {
	return &MarketHandler{
		markets: markets,
		prices:  prices,
		logger:  logger,
	}
}

// marketResponse is the wire shape of a market.
type marketResponse struct {
	ID            string   `json:"id"`
	Question      string   `json:"question"`
	Slug          string   `json:"slug,omitempty"`
	MarketType    string   `json:"market_type"`
	Outcomes      []string `json:"outcomes"`
	StakeToken    string   `json:"stake_token"`
	FeeBps        int64    `json:"fee_bps"`
	CreatorFeeBps int64    `json:"creator_fee_bps"`
	TimeDecayBps  int64    `json:"time_decay_bps"`
	CreatedAt     string   `json:"created_at"`
	CutoffTime    string   `json:"cutoff_time"`
	Resolved      bool     `json:"resolved"`
	Winner        *string  `json:"winner,omitempty"`
	Volume        string   `json:"volume"`
	Status        string   `json:"status"`
	UpdatedAt     string   `json:"updated_at"`
}

func toMarketResponse(m domain.Market) marketResponse {
	resp := marketResponse{
		ID:            m.ID,
		Question:      m.Question,
		Slug:          m.Slug,
		MarketType:    string(m.MarketType),
		Outcomes:      []string{m.Outcomes[0], m.Outcomes[1]},
		StakeToken:    m.StakeToken,
		FeeBps:        m.FeeBps,
		CreatorFeeBps: m.CreatorFeeBps,
		TimeDecayBps:  m.TimeDecayBps,
		CreatedAt:     m.CreatedAt.UTC().Format(time.RFC3339),
		CutoffTime:    m.CutoffTime.UTC().Format(time.RFC3339),
		Resolved:      m.Resolved,
		Volume:        m.Volume.String(),
		Status:        string(m.Status),
		UpdatedAt:     m.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if m.Winner != nil {
		w := m.Winner.String()
		resp.Winner = &w
	}
	return resp
}

// listMarketsResponse wraps the list endpoint output with metadata.
type listMarketsResponse struct {
	Markets []marketResponse `json:"markets"`
	Total   int64            `json:"total"`
	Limit   int              `json:"limit"`
	Offset  int              `json:"offset"`
}

// ListMarkets returns markets with pagination. Defaults to active markets;
// pass ?status=all to include closed and resolved ones.
// GET /api/markets?limit=50&offset=0
func (h *MarketHandler) ListMarkets(w http.ResponseWriter, r *http.Request) {
	opts := parseListOpts(r)

	var (
		markets []domain.Market
		err     error
	)
	if r.URL.Query().Get("status") == "all" {
		markets, err = h.markets.List(r.Context(), opts)
	} else {
		markets, err = h.markets.ListActive(r.Context(), opts)
	}
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list markets")
		return
	}

	total, err := h.markets.Count(r.Context())
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: count markets failed",
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to count markets")
		return
	}

	out := make([]marketResponse, 0, len(markets))
	for _, m := range markets {
		out = append(out, toMarketResponse(m))
	}

	writeJSON(w, http.StatusOK, listMarketsResponse{
		Markets: out,
		Total:   total,
		Limit:   opts.Limit,
		Offset:  opts.Offset,
	})
}

// resolveMarket looks a market up by contract address, falling back to slug so
// pretty URLs work.
func (h *MarketHandler) resolveMarket(ctx context.Context, id string) (domain.Market, error) {
	m, err := h.markets.GetMarket(ctx, id)
	if err == nil || !errors.Is(err, domain.ErrNotFound) {
		return m, err
	}
	return h.markets.GetMarketBySlug(ctx, id)
}

// GetMarket returns a single market by its contract address or slug.
// GET /api/markets/{id}
func (h *MarketHandler) GetMarket(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	market, err := h.resolveMarket(r.Context(), id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			writeError(w, http.StatusNotFound, "market not found")
			return
		}
		h.logger.ErrorContext(r.Context(), "handler: get market failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to get market")
		return
	}

	writeJSON(w, http.StatusOK, toMarketResponse(market))
}

// GetPrice returns the probability-style YES price for a market.
// GET /api/markets/{id}/price
func (h *MarketHandler) GetPrice(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	price, ts, err := h.prices.SpotPrice(r.Context(), id)
	if err != nil {
		writePricingError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"market_id": id,
		"price":     price.String(),
		"as_of":     ts.UTC().Format(time.RFC3339Nano),
	})
}

// depositResponse is the wire shape of a parimutuel deposit event.
type depositResponse struct {
	ID        string `json:"id"`
	Account   string `json:"account"`
	Side      string `json:"side"`
	Amount    string `json:"amount"`
	TxHash    string `json:"tx_hash"`
	Timestamp string `json:"timestamp"`
}

// ListDeposits returns the deposit history of a parimutuel market.
// GET /api/markets/{id}/deposits
func (h *MarketHandler) ListDeposits(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	deposits, err := h.markets.ListDeposits(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list deposits failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list deposits")
		return
	}

	out := make([]depositResponse, 0, len(deposits))
	for _, d := range deposits {
		out = append(out, depositResponse{
			ID:        d.ID,
			Account:   d.Account,
			Side:      d.Side.String(),
			Amount:    d.Amount.String(),
			TxHash:    d.TxHash,
			Timestamp: d.Timestamp.UTC().Format(time.RFC3339),
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{"deposits": out})
}
