package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
	"github.com/predyx-labs/predyxd/internal/fixedpoint"
)

// QuoteService defines the methods the quote handler requires from the
// service layer.
type QuoteService interface {
	Quote(ctx context.Context, marketID string, kind domain.QuoteKind, side domain.Outcome, amount decimal.Decimal) (domain.Quote, error)
	History(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Quote, error)
}

// QuoteHandler serves the pricing preview endpoints.
type QuoteHandler struct {
	quotes QuoteService
	logger *slog.Logger
}

// NewQuoteHandler creates a QuoteHandler with the given service and logger.
func NewQuoteHandler(quotes QuoteService, logger *slog.Logger) *QuoteHandler {
	return &QuoteHandler{
		quotes: quotes,
		logger: logger,
	}
}

// quoteRequest is the request body shared by the three quote endpoints.
// Amount is a decimal string in display units of the stake token (shares for
// sell quotes).
type quoteRequest struct {
	MarketID string `json:"market_id"`
	Side     string `json:"side"`
	Amount   string `json:"amount"`
}

// quoteResponse is the wire shape of a priced preview. Monetary fields are
// decimal strings; estimate marks payout projections that assume the
// disclosed multiplier approximation.
type quoteResponse struct {
	ID          string `json:"id"`
	MarketID    string `json:"market_id"`
	Kind        string `json:"kind"`
	Side        string `json:"side"`
	AmountIn    string `json:"amount_in"`
	AmountOut   string `json:"amount_out"`
	EffPrice    string `json:"eff_price,omitempty"`
	PriceImpact string `json:"price_impact,omitempty"`
	ROI         string `json:"roi,omitempty"`
	Estimate    bool   `json:"estimate"`
	BlockNumber uint64 `json:"block_number"`
	CreatedAt   string `json:"created_at"`
}

func toQuoteResponse(q domain.Quote) quoteResponse {
	resp := quoteResponse{
		ID:          q.ID,
		MarketID:    q.MarketID,
		Kind:        string(q.Kind),
		Side:        q.Side.String(),
		AmountIn:    fixedpoint.FormatAmount(q.AmountIn, fixedpoint.StakeDecimals),
		AmountOut:   fixedpoint.FormatAmount(q.AmountOut, fixedpoint.StakeDecimals),
		Estimate:    q.Estimate,
		BlockNumber: q.BlockNumber,
		CreatedAt:   q.CreatedAt.UTC().Format(time.RFC3339Nano),
	}
	switch q.Kind {
	case domain.QuoteKindPayout:
		resp.ROI = q.ROI.String()
	default:
		resp.EffPrice = q.EffPrice.String()
		resp.PriceImpact = q.PriceImpact.String()
	}
	return resp
}

// decodeQuoteRequest parses and validates the shared request body, converting
// the display-unit amount to smallest units.
func decodeQuoteRequest(r *http.Request) (string, domain.Outcome, decimal.Decimal, error) {
	var req quoteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		return "", 0, decimal.Zero, err
	}
	if req.MarketID == "" {
		return "", 0, decimal.Zero, errors.New("missing required field market_id")
	}
	side, err := domain.ParseOutcome(req.Side)
	if err != nil {
		return "", 0, decimal.Zero, err
	}
	amount, err := fixedpoint.ParseAmount(req.Amount, fixedpoint.StakeDecimals)
	if err != nil {
		return "", 0, decimal.Zero, err
	}
	return req.MarketID, side, amount, nil
}

// quote runs one preview request end to end for the given kind.
func (h *QuoteHandler) quote(w http.ResponseWriter, r *http.Request, kind domain.QuoteKind) {
	marketID, side, amount, err := decodeQuoteRequest(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	q, err := h.quotes.Quote(r.Context(), marketID, kind, side, amount)
	if err != nil {
		writePricingError(w, h.logger, r, err)
		return
	}

	writeJSON(w, http.StatusOK, toQuoteResponse(q))
}

// QuoteBuy prices a buy preview.
// POST /api/quotes/buy
func (h *QuoteHandler) QuoteBuy(w http.ResponseWriter, r *http.Request) {
	h.quote(w, r, domain.QuoteKindBuy)
}

// QuoteSell prices a sell preview. Only constant-product markets support it.
// POST /api/quotes/sell
func (h *QuoteHandler) QuoteSell(w http.ResponseWriter, r *http.Request) {
	h.quote(w, r, domain.QuoteKindSell)
}

// QuotePayout prices a parimutuel payout projection.
// POST /api/quotes/payout
func (h *QuoteHandler) QuotePayout(w http.ResponseWriter, r *http.Request) {
	h.quote(w, r, domain.QuoteKindPayout)
}

// ListQuotes returns the stored quote history of a market, newest first.
// GET /api/markets/{id}/quotes
func (h *QuoteHandler) ListQuotes(w http.ResponseWriter, r *http.Request) {
	id := pathParam(r, "id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing market id")
		return
	}

	quotes, err := h.quotes.History(r.Context(), id, parseListOpts(r))
	if err != nil {
		h.logger.ErrorContext(r.Context(), "handler: list quotes failed",
			slog.String("market_id", id),
			slog.String("error", err.Error()),
		)
		writeError(w, http.StatusInternalServerError, "failed to list quotes")
		return
	}

	out := make([]quoteResponse, 0, len(quotes))
	for _, q := range quotes {
		out = append(out, toQuoteResponse(q))
	}

	writeJSON(w, http.StatusOK, map[string]any{"quotes": out})
}
