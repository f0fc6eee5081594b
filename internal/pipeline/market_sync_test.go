package pipeline

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/predyx-labs/predyxd/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeSyncer struct {
	markets      []domain.Market
	deposits     []domain.Deposit
	lastDeposit  time.Time
	marketErr    error
	lastTimeErr  error
	syncedCounts []int
}

func (f *fakeSyncer) SyncMarkets(ctx context.Context, ms []domain.Market) error {
	if f.marketErr != nil {
		return f.marketErr
	}
	f.markets = append(f.markets, ms...)
	f.syncedCounts = append(f.syncedCounts, len(ms))
	return nil
}

func (f *fakeSyncer) SyncDeposits(ctx context.Context, ds []domain.Deposit) error {
	f.deposits = append(f.deposits, ds...)
	if n := len(ds); n > 0 {
		f.lastDeposit = ds[n-1].Timestamp
	}
	return nil
}

func (f *fakeSyncer) LastDepositTime(ctx context.Context) (time.Time, error) {
	return f.lastDeposit, f.lastTimeErr
}

type fakeIndexer struct {
	markets  []domain.Market
	deposits []domain.Deposit
	block    int64
	err      error

	marketSince  []time.Time
	depositSince []time.Time
}

func (f *fakeIndexer) FetchMarkets(ctx context.Context, since time.Time, first int) ([]domain.Market, error) {
	f.marketSince = append(f.marketSince, since)
	if f.err != nil {
		return nil, f.err
	}
	return f.markets, nil
}

func (f *fakeIndexer) FetchDeposits(ctx context.Context, since time.Time, first int) ([]domain.Deposit, error) {
	f.depositSince = append(f.depositSince, since)
	if f.err != nil {
		return nil, f.err
	}
	var out []domain.Deposit
	for _, d := range f.deposits {
		if !d.Timestamp.Before(since) {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeIndexer) FetchLatestBlock(ctx context.Context) (int64, error) {
	return f.block, f.err
}

func syncMarket(id string) domain.Market {
	return domain.Market{
		ID:         id,
		MarketType: domain.MarketTypeCPMM,
		Status:     domain.MarketStatusActive,
		CutoffTime: time.Now().Add(24 * time.Hour),
	}
}

func TestMarketSync_Run(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	idx := &fakeIndexer{
		markets: []domain.Market{syncMarket("0x01"), syncMarket("0x02")},
		deposits: []domain.Deposit{
			{ID: "0xd:0", MarketID: "0x01", Amount: decimal.NewFromInt(100), Timestamp: base},
			{ID: "0xd:1", MarketID: "0x01", Amount: decimal.NewFromInt(200), Timestamp: base.Add(time.Minute)},
		},
	}
	syncer := &fakeSyncer{}
	sync := NewMarketSync(syncer, idx, nil, 100, testLogger())

	if err := sync.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if len(syncer.markets) != 2 {
		t.Errorf("synced markets = %d, want 2", len(syncer.markets))
	}
	if len(syncer.deposits) != 2 {
		t.Errorf("synced deposits = %d, want 2", len(syncer.deposits))
	}

	// First pass starts from the zero time.
	if !idx.marketSince[0].IsZero() {
		t.Errorf("first market fetch since = %s, want zero time", idx.marketSince[0])
	}
	if !idx.depositSince[0].IsZero() {
		t.Errorf("first deposit fetch since = %s, want zero time", idx.depositSince[0])
	}
}

func TestMarketSync_HighWaterMarksAdvance(t *testing.T) {
	base := time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC)
	idx := &fakeIndexer{
		markets: []domain.Market{syncMarket("0x01")},
		deposits: []domain.Deposit{
			{ID: "0xd:0", MarketID: "0x01", Amount: decimal.NewFromInt(100), Timestamp: base},
		},
	}
	syncer := &fakeSyncer{}
	sync := NewMarketSync(syncer, idx, nil, 100, testLogger())

	before := time.Now().UTC()
	if err := sync.Run(context.Background()); err != nil {
		t.Fatalf("first run: %v", err)
	}
	if err := sync.Run(context.Background()); err != nil {
		t.Fatalf("second run: %v", err)
	}

	// The second market fetch resumes from the first pass's start time.
	if len(idx.marketSince) != 2 {
		t.Fatalf("market fetches = %d, want 2", len(idx.marketSince))
	}
	if idx.marketSince[1].Before(before) {
		t.Errorf("second fetch since = %s, want >= %s", idx.marketSince[1], before)
	}

	// The second deposit fetch resumes from the stored deposit timestamp.
	if !idx.depositSince[1].Equal(base) {
		t.Errorf("second deposit since = %s, want %s", idx.depositSince[1], base)
	}
}

func TestMarketSync_IndexerErrorPropagates(t *testing.T) {
	idx := &fakeIndexer{err: errors.New("subgraph unavailable")}
	sync := NewMarketSync(&fakeSyncer{}, idx, nil, 100, testLogger())

	if err := sync.Run(context.Background()); err == nil {
		t.Fatal("expected error from failed indexer fetch")
	}

	// A failed pass must not advance the high-water mark.
	idx.err = nil
	if err := sync.Run(context.Background()); err != nil {
		t.Fatalf("recovery run: %v", err)
	}
	if !idx.marketSince[1].IsZero() {
		t.Errorf("since after failed pass = %s, want zero time", idx.marketSince[1])
	}
}
