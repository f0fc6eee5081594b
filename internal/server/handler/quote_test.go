package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type stubQuoteService struct {
	quote   domain.Quote
	err     error
	history []domain.Quote

	gotMarketID string
	gotKind     domain.QuoteKind
	gotSide     domain.Outcome
	gotAmount   decimal.Decimal
}

func (s *stubQuoteService) Quote(ctx context.Context, marketID string, kind domain.QuoteKind, side domain.Outcome, amount decimal.Decimal) (domain.Quote, error) {
	s.gotMarketID, s.gotKind, s.gotSide, s.gotAmount = marketID, kind, side, amount
	return s.quote, s.err
}

func (s *stubQuoteService) History(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Quote, error) {
	return s.history, s.err
}

func sampleQuote() domain.Quote {
	return domain.Quote{
		ID:          "3f1c2c9e-0000-0000-0000-000000000001",
		MarketID:    "0xaaaa000000000000000000000000000000000001",
		Kind:        domain.QuoteKindBuy,
		Side:        domain.OutcomeYes,
		AmountIn:    decimal.NewFromInt(10_000_000),
		AmountOut:   decimal.NewFromInt(18_500_000),
		EffPrice:    decimal.RequireFromString("0.5405"),
		PriceImpact: decimal.RequireFromString("0.021"),
		BlockNumber: 100,
		CreatedAt:   time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}
}

func postQuote(t *testing.T, h http.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/api/quotes/buy", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestQuoteBuy_OK(t *testing.T) {
	svc := &stubQuoteService{quote: sampleQuote()}
	h := NewQuoteHandler(svc, discardLogger())

	rec := postQuote(t, h.QuoteBuy, `{
		"market_id": "0xaaaa000000000000000000000000000000000001",
		"side": "yes",
		"amount": "10"
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	if svc.gotKind != domain.QuoteKindBuy {
		t.Errorf("kind = %s", svc.gotKind)
	}
	if svc.gotSide != domain.OutcomeYes {
		t.Errorf("side = %v", svc.gotSide)
	}
	// "10" display units at 6 decimals -> 10000000 smallest units.
	if svc.gotAmount.String() != "10000000" {
		t.Errorf("amount = %s, want 10000000", svc.gotAmount)
	}

	var resp quoteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.AmountIn != "10" {
		t.Errorf("amount_in = %q, want display units", resp.AmountIn)
	}
	if resp.AmountOut != "18.5" {
		t.Errorf("amount_out = %q, want 18.5", resp.AmountOut)
	}
	if resp.EffPrice == "" || resp.PriceImpact == "" {
		t.Error("buy quote should carry eff_price and price_impact")
	}
	if resp.ROI != "" {
		t.Error("buy quote must not carry roi")
	}
}

func TestQuotePayout_CarriesROIOnly(t *testing.T) {
	q := sampleQuote()
	q.Kind = domain.QuoteKindPayout
	q.ROI = decimal.RequireFromString("42.5")
	q.Estimate = true
	svc := &stubQuoteService{quote: q}
	h := NewQuoteHandler(svc, discardLogger())

	rec := postQuote(t, h.QuotePayout, `{
		"market_id": "0xaaaa000000000000000000000000000000000001",
		"side": "no",
		"amount": "5.25"
	}`)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp quoteResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.ROI != "42.5" {
		t.Errorf("roi = %q, want 42.5", resp.ROI)
	}
	if resp.EffPrice != "" || resp.PriceImpact != "" {
		t.Error("payout quote must not carry eff_price/price_impact")
	}
	if !resp.Estimate {
		t.Error("payout projection should be flagged as estimate")
	}
}

func TestQuote_BadRequests(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"malformed json", `{`},
		{"missing market_id", `{"side":"yes","amount":"10"}`},
		{"bad side", `{"market_id":"0x01","side":"maybe","amount":"10"}`},
		{"negative amount", `{"market_id":"0x01","side":"yes","amount":"-5"}`},
		{"non-numeric amount", `{"market_id":"0x01","side":"yes","amount":"ten"}`},
	}

	h := NewQuoteHandler(&stubQuoteService{quote: sampleQuote()}, discardLogger())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postQuote(t, h.QuoteBuy, tt.body)
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want 400 (body %s)", rec.Code, rec.Body)
			}
		})
	}
}

func TestQuote_ErrorMapping(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{domain.ErrNotFound, http.StatusNotFound},
		{fmt.Errorf("svc: %w", domain.ErrMarketClosed), http.StatusConflict},
		{domain.ErrInvalidAmount, http.StatusBadRequest},
		{fmt.Errorf("svc: %w", domain.ErrUninitializedPool), http.StatusUnprocessableEntity},
		{domain.ErrInsufficientLiquidity, http.StatusUnprocessableEntity},
		{fmt.Errorf("pool cache down"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.err.Error(), func(t *testing.T) {
			h := NewQuoteHandler(&stubQuoteService{err: tt.err}, discardLogger())
			rec := postQuote(t, h.QuoteBuy, `{"market_id":"0x01","side":"yes","amount":"10"}`)
			if rec.Code != tt.want {
				t.Errorf("status = %d, want %d", rec.Code, tt.want)
			}
		})
	}
}

func TestListQuotes(t *testing.T) {
	svc := &stubQuoteService{history: []domain.Quote{sampleQuote(), sampleQuote()}}
	h := NewQuoteHandler(svc, discardLogger())

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/markets/{id}/quotes", h.ListQuotes)

	req := httptest.NewRequest(http.MethodGet, "/api/markets/0xaaaa000000000000000000000000000000000001/quotes", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body)
	}

	var resp struct {
		Quotes []quoteResponse `json:"quotes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Quotes) != 2 {
		t.Errorf("quotes = %d, want 2", len(resp.Quotes))
	}
}
