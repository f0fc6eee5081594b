package service

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

// ---------------------------------------------------------------------------
// In-memory fakes
// ---------------------------------------------------------------------------

type fakeMarketStore struct {
	markets map[string]domain.Market
}

func (f *fakeMarketStore) Upsert(ctx context.Context, m domain.Market) error {
	f.markets[m.ID] = m
	return nil
}

func (f *fakeMarketStore) UpsertBatch(ctx context.Context, ms []domain.Market) error {
	for _, m := range ms {
		f.markets[m.ID] = m
	}
	return nil
}

func (f *fakeMarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	m, ok := f.markets[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarketStore) GetBySlug(ctx context.Context, slug string) (domain.Market, error) {
	for _, m := range f.markets {
		if m.Slug == slug {
			return m, nil
		}
	}
	return domain.Market{}, domain.ErrNotFound
}

func (f *fakeMarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range f.markets {
		if m.Status == domain.MarketStatusActive {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeMarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	var out []domain.Market
	for _, m := range f.markets {
		out = append(out, m)
	}
	return out, nil
}

func (f *fakeMarketStore) Count(ctx context.Context) (int64, error) {
	return int64(len(f.markets)), nil
}

type fakeDepositStore struct {
	deposits []domain.Deposit
}

func (f *fakeDepositStore) InsertBatch(ctx context.Context, ds []domain.Deposit) error {
	f.deposits = append(f.deposits, ds...)
	return nil
}

func (f *fakeDepositStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Deposit, error) {
	var out []domain.Deposit
	for _, d := range f.deposits {
		if d.MarketID == marketID {
			out = append(out, d)
		}
	}
	return out, nil
}

func (f *fakeDepositStore) GetLastTimestamp(ctx context.Context) (time.Time, error) {
	var latest time.Time
	for _, d := range f.deposits {
		if d.Timestamp.After(latest) {
			latest = d.Timestamp
		}
	}
	return latest, nil
}

type fakeMarketCache struct {
	entries map[string]domain.Market
	sets    int
}

func (f *fakeMarketCache) Set(ctx context.Context, m domain.Market) error {
	f.entries[m.ID] = m
	f.sets++
	return nil
}

func (f *fakeMarketCache) Get(ctx context.Context, id string) (domain.Market, error) {
	m, ok := f.entries[id]
	if !ok {
		return domain.Market{}, domain.ErrNotFound
	}
	return m, nil
}

func (f *fakeMarketCache) Invalidate(ctx context.Context, id string) error {
	delete(f.entries, id)
	return nil
}

type fakePoolCache struct {
	snap domain.PoolSnapshot
	ok   bool
	sets int
}

func (f *fakePoolCache) SetSnapshot(ctx context.Context, snap domain.PoolSnapshot) error {
	f.snap = snap
	f.ok = true
	f.sets++
	return nil
}

func (f *fakePoolCache) GetSnapshot(ctx context.Context, marketID string) (domain.PoolSnapshot, error) {
	if !f.ok {
		return domain.PoolSnapshot{}, domain.ErrNotFound
	}
	return f.snap, nil
}

type fakePriceCache struct {
	price decimal.Decimal
	ts    time.Time
	ok    bool
}

func (f *fakePriceCache) SetPrice(ctx context.Context, marketID string, price decimal.Decimal, ts time.Time) error {
	f.price, f.ts, f.ok = price, ts, true
	return nil
}

func (f *fakePriceCache) GetPrice(ctx context.Context, marketID string) (decimal.Decimal, time.Time, error) {
	if !f.ok {
		return decimal.Zero, time.Time{}, domain.ErrNotFound
	}
	return f.price, f.ts, nil
}

type fakeBus struct {
	published map[string]int
	appended  map[string]int
}

func newFakeBus() *fakeBus {
	return &fakeBus{published: map[string]int{}, appended: map[string]int{}}
}

func (f *fakeBus) Publish(ctx context.Context, channel string, payload []byte) error {
	f.published[channel]++
	return nil
}

func (f *fakeBus) Subscribe(ctx context.Context, channel string) (<-chan []byte, error) {
	ch := make(chan []byte)
	close(ch)
	return ch, nil
}

func (f *fakeBus) StreamAppend(ctx context.Context, stream string, payload []byte) error {
	f.appended[stream]++
	return nil
}

func (f *fakeBus) StreamRead(ctx context.Context, stream, lastID string, count int) ([]domain.StreamMessage, error) {
	return nil, nil
}

type fakeQuoteStore struct {
	inserted []domain.Quote
}

func (f *fakeQuoteStore) Insert(ctx context.Context, q domain.Quote) error {
	f.inserted = append(f.inserted, q)
	return nil
}

func (f *fakeQuoteStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Quote, error) {
	var out []domain.Quote
	for _, q := range f.inserted {
		if q.MarketID == marketID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (f *fakeQuoteStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Quote, error) {
	return nil, nil
}

func (f *fakeQuoteStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	return 0, nil
}

type fakeReader struct {
	snap  domain.PoolSnapshot
	calls int
	err   error
}

func (f *fakeReader) PoolSnapshot(ctx context.Context, market domain.Market) (domain.PoolSnapshot, error) {
	f.calls++
	if f.err != nil {
		return domain.PoolSnapshot{}, f.err
	}
	return f.snap, nil
}

// ---------------------------------------------------------------------------
// Fixtures
// ---------------------------------------------------------------------------

const testMarketID = "0xaaaa000000000000000000000000000000000001"

func cpmmMarket() domain.Market {
	now := time.Now().UTC()
	return domain.Market{
		ID:         testMarketID,
		Question:   "Will it rain tomorrow?",
		Slug:       "rain-tomorrow",
		MarketType: domain.MarketTypeCPMM,
		Outcomes:   [2]string{"No", "Yes"},
		FeeBps:     300,
		CreatedAt:  now.Add(-24 * time.Hour),
		CutoffTime: now.Add(24 * time.Hour),
		Status:     domain.MarketStatusActive,
	}
}

func cpmmSnapshot(age time.Duration) domain.PoolSnapshot {
	return domain.PoolSnapshot{
		MarketID:    testMarketID,
		MarketType:  domain.MarketTypeCPMM,
		Yes:         decimal.NewFromInt(750_000),
		No:          decimal.NewFromInt(250_000),
		BlockNumber: 100,
		FetchedAt:   time.Now().UTC().Add(-age),
	}
}

type quoteFixture struct {
	svc    *QuoteService
	pools  *fakePoolCache
	prices *fakePriceCache
	quotes *fakeQuoteStore
	bus    *fakeBus
	reader *fakeReader
	cache  *fakeMarketCache
}

func newQuoteFixture(market domain.Market, reader SnapshotReader) *quoteFixture {
	store := &fakeMarketStore{markets: map[string]domain.Market{market.ID: market}}
	cache := &fakeMarketCache{entries: map[string]domain.Market{}}
	bus := newFakeBus()
	marketSvc := NewMarketService(store, &fakeDepositStore{}, cache, bus, testLogger())

	pools := &fakePoolCache{}
	prices := &fakePriceCache{}
	quotes := &fakeQuoteStore{}

	var fr *fakeReader
	if r, ok := reader.(*fakeReader); ok {
		fr = r
	}

	return &quoteFixture{
		svc:    NewQuoteService(marketSvc, quotes, pools, prices, reader, bus, testLogger(), 30*time.Second),
		pools:  pools,
		prices: prices,
		quotes: quotes,
		bus:    bus,
		reader: fr,
		cache:  cache,
	}
}

// ---------------------------------------------------------------------------
// Tests
// ---------------------------------------------------------------------------

func TestGetMarket_CacheMissBackfills(t *testing.T) {
	fix := newQuoteFixture(cpmmMarket(), nil)

	m, err := fix.svc.markets.GetMarket(context.Background(), testMarketID)
	if err != nil {
		t.Fatalf("GetMarket: %v", err)
	}
	if m.ID != testMarketID {
		t.Errorf("id = %s", m.ID)
	}
	if fix.cache.sets != 1 {
		t.Errorf("cache sets = %d, want 1 (back-fill on miss)", fix.cache.sets)
	}

	// Second read is served from cache without another back-fill.
	if _, err := fix.svc.markets.GetMarket(context.Background(), testMarketID); err != nil {
		t.Fatalf("GetMarket (cached): %v", err)
	}
	if fix.cache.sets != 1 {
		t.Errorf("cache sets = %d after cached read, want 1", fix.cache.sets)
	}
}

func TestQuote_FreshSnapshotSkipsChain(t *testing.T) {
	reader := &fakeReader{snap: cpmmSnapshot(0)}
	fix := newQuoteFixture(cpmmMarket(), reader)
	fix.pools.SetSnapshot(context.Background(), cpmmSnapshot(time.Second))
	fix.pools.sets = 0

	q, err := fix.svc.Quote(context.Background(), testMarketID, domain.QuoteKindBuy, domain.OutcomeYes, decimal.NewFromInt(10_000))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if reader.calls != 0 {
		t.Errorf("reader calls = %d, want 0 for fresh snapshot", reader.calls)
	}
	if !q.AmountOut.IsPositive() {
		t.Errorf("amount out = %s, want > 0", q.AmountOut)
	}
	if q.BlockNumber != 100 {
		t.Errorf("block = %d, want 100", q.BlockNumber)
	}
	if len(fix.quotes.inserted) != 1 {
		t.Errorf("inserted quotes = %d, want 1", len(fix.quotes.inserted))
	}
	if fix.bus.published["quotes:"+testMarketID] != 1 {
		t.Errorf("quote events published = %d, want 1", fix.bus.published["quotes:"+testMarketID])
	}
	if fix.bus.appended["quotes"] != 1 {
		t.Errorf("stream appends = %d, want 1", fix.bus.appended["quotes"])
	}
}

func TestQuote_StaleSnapshotRefreshesFromChain(t *testing.T) {
	fresh := cpmmSnapshot(0)
	fresh.BlockNumber = 200
	reader := &fakeReader{snap: fresh}

	fix := newQuoteFixture(cpmmMarket(), reader)
	fix.pools.SetSnapshot(context.Background(), cpmmSnapshot(5*time.Minute))
	fix.pools.sets = 0

	q, err := fix.svc.Quote(context.Background(), testMarketID, domain.QuoteKindBuy, domain.OutcomeYes, decimal.NewFromInt(10_000))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}

	if reader.calls != 1 {
		t.Errorf("reader calls = %d, want 1 for stale snapshot", reader.calls)
	}
	if q.BlockNumber != 200 {
		t.Errorf("block = %d, want 200 (refreshed)", q.BlockNumber)
	}
	if fix.pools.sets != 1 {
		t.Errorf("pool cache sets = %d, want 1 (fresh snapshot cached)", fix.pools.sets)
	}
}

func TestQuote_NilReaderServesStaleSnapshot(t *testing.T) {
	fix := newQuoteFixture(cpmmMarket(), nil)
	fix.pools.SetSnapshot(context.Background(), cpmmSnapshot(10*time.Minute))

	q, err := fix.svc.Quote(context.Background(), testMarketID, domain.QuoteKindBuy, domain.OutcomeYes, decimal.NewFromInt(10_000))
	if err != nil {
		t.Fatalf("Quote: %v", err)
	}
	if !q.AmountOut.IsPositive() {
		t.Errorf("amount out = %s, want > 0", q.AmountOut)
	}
}

func TestQuote_NilReaderNoSnapshotFails(t *testing.T) {
	fix := newQuoteFixture(cpmmMarket(), nil)

	_, err := fix.svc.Quote(context.Background(), testMarketID, domain.QuoteKindBuy, domain.OutcomeYes, decimal.NewFromInt(10_000))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("err = %v, want ErrNotFound", err)
	}
}

func TestQuote_ClosedMarketRejected(t *testing.T) {
	closed := cpmmMarket()
	closed.CutoffTime = time.Now().UTC().Add(-time.Hour)
	closed.Status = domain.MarketStatusClosed

	fix := newQuoteFixture(closed, &fakeReader{snap: cpmmSnapshot(0)})

	_, err := fix.svc.Quote(context.Background(), testMarketID, domain.QuoteKindBuy, domain.OutcomeYes, decimal.NewFromInt(10_000))
	if !errors.Is(err, domain.ErrMarketClosed) {
		t.Fatalf("err = %v, want ErrMarketClosed", err)
	}
}

func TestSpotPrice_PublishesOnlyOnChange(t *testing.T) {
	fix := newQuoteFixture(cpmmMarket(), &fakeReader{snap: cpmmSnapshot(0)})
	fix.pools.SetSnapshot(context.Background(), cpmmSnapshot(0))

	price, _, err := fix.svc.SpotPrice(context.Background(), testMarketID)
	if err != nil {
		t.Fatalf("SpotPrice: %v", err)
	}
	if !price.IsPositive() || price.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		t.Errorf("price = %s, want in (0, 1)", price)
	}
	if fix.bus.published["prices"] != 1 {
		t.Errorf("price events = %d, want 1", fix.bus.published["prices"])
	}

	// Same pool state: the cache holds an equal price, so no second event.
	if _, _, err := fix.svc.SpotPrice(context.Background(), testMarketID); err != nil {
		t.Fatalf("SpotPrice (repeat): %v", err)
	}
	if fix.bus.published["prices"] != 1 {
		t.Errorf("price events = %d after unchanged repeat, want 1", fix.bus.published["prices"])
	}
}

func TestHistory_ReturnsStoredQuotes(t *testing.T) {
	fix := newQuoteFixture(cpmmMarket(), &fakeReader{snap: cpmmSnapshot(0)})
	fix.pools.SetSnapshot(context.Background(), cpmmSnapshot(0))

	for i := 0; i < 3; i++ {
		if _, err := fix.svc.Quote(context.Background(), testMarketID, domain.QuoteKindBuy, domain.OutcomeYes, decimal.NewFromInt(10_000)); err != nil {
			t.Fatalf("Quote %d: %v", i, err)
		}
	}

	history, err := fix.svc.History(context.Background(), testMarketID, domain.ListOpts{Limit: 10})
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(history) != 3 {
		t.Errorf("history = %d quotes, want 3", len(history))
	}
}
