package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predyx-labs/predyxd/internal/domain"
)

// MarketStore implements domain.MarketStore using PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore creates a new MarketStore backed by the given connection pool.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

const upsertMarketSQL = `
	INSERT INTO markets (
		id, question, slug, market_type, outcome_no, outcome_yes,
		stake_token, fee_bps, creator_fee_bps, time_decay_bps,
		created_at, cutoff_time, resolved, winner, volume, status, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6,
		$7, $8, $9, $10,
		$11, $12, $13, $14, $15, $16, NOW()
	)
	ON CONFLICT (id) DO UPDATE SET
		question        = EXCLUDED.question,
		slug            = EXCLUDED.slug,
		market_type     = EXCLUDED.market_type,
		outcome_no      = EXCLUDED.outcome_no,
		outcome_yes     = EXCLUDED.outcome_yes,
		stake_token     = EXCLUDED.stake_token,
		fee_bps         = EXCLUDED.fee_bps,
		creator_fee_bps = EXCLUDED.creator_fee_bps,
		time_decay_bps  = EXCLUDED.time_decay_bps,
		cutoff_time     = EXCLUDED.cutoff_time,
		resolved        = EXCLUDED.resolved,
		winner          = EXCLUDED.winner,
		volume          = EXCLUDED.volume,
		status          = EXCLUDED.status,
		updated_at      = NOW()`

// upsertArgs flattens a market into the argument list for upsertMarketSQL.
func upsertArgs(m domain.Market) []any {
	var winner *int16
	if m.Winner != nil {
		w := int16(*m.Winner)
		winner = &w
	}
	return []any{
		m.ID, m.Question, m.Slug, string(m.MarketType),
		m.Outcomes[0], m.Outcomes[1],
		m.StakeToken, m.FeeBps, m.CreatorFeeBps, m.TimeDecayBps,
		m.CreatedAt, m.CutoffTime, m.Resolved, winner,
		m.Volume, string(m.Status),
	}
}

// Upsert inserts or updates a single market.
func (s *MarketStore) Upsert(ctx context.Context, m domain.Market) error {
	_, err := s.pool.Exec(ctx, upsertMarketSQL, upsertArgs(m)...)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: %w", m.ID, err)
	}
	return nil
}

// UpsertBatch inserts or updates multiple markets in a single batch operation.
func (s *MarketStore) UpsertBatch(ctx context.Context, markets []domain.Market) error {
	if len(markets) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, m := range markets {
		batch.Queue(upsertMarketSQL, upsertArgs(m)...)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range markets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: upsert market batch item %d: %w", i, err)
		}
	}
	return nil
}

const marketCols = `id, question, slug, market_type, outcome_no, outcome_yes,
	stake_token, fee_bps, creator_fee_bps, time_decay_bps,
	created_at, cutoff_time, resolved, winner, volume, status, updated_at`

// scanMarket scans a single market row into a domain.Market.
func scanMarket(row pgx.Row) (domain.Market, error) {
	var (
		m          domain.Market
		marketType string
		status     string
		winner     *int16
	)
	err := row.Scan(
		&m.ID, &m.Question, &m.Slug, &marketType,
		&m.Outcomes[0], &m.Outcomes[1],
		&m.StakeToken, &m.FeeBps, &m.CreatorFeeBps, &m.TimeDecayBps,
		&m.CreatedAt, &m.CutoffTime, &m.Resolved, &winner,
		&m.Volume, &status, &m.UpdatedAt,
	)
	if err != nil {
		return domain.Market{}, err
	}
	m.MarketType = domain.MarketType(marketType)
	m.Status = domain.MarketStatus(status)
	if winner != nil {
		w := domain.Outcome(*winner)
		m.Winner = &w
	}
	return m, nil
}

// GetByID retrieves a market by its contract address.
func (s *MarketStore) GetByID(ctx context.Context, id string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE id = $1`, id)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market %s: %w", id, err)
	}
	return m, nil
}

// GetBySlug retrieves a market by its URL slug.
func (s *MarketStore) GetBySlug(ctx context.Context, slug string) (domain.Market, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+marketCols+` FROM markets WHERE slug = $1`, slug)
	m, err := scanMarket(row)
	if err != nil {
		if err == pgx.ErrNoRows {
			return domain.Market{}, domain.ErrNotFound
		}
		return domain.Market{}, fmt.Errorf("postgres: get market by slug %s: %w", slug, err)
	}
	return m, nil
}

// list runs a market query with the shared filtering/pagination clauses.
func (s *MarketStore) list(ctx context.Context, where string, opts domain.ListOpts) ([]domain.Market, error) {
	query := `SELECT ` + marketCols + ` FROM markets` + where
	args := []any{}
	argIdx := 1

	joiner := " WHERE"
	if where != "" {
		joiner = " AND"
	}

	if opts.Since != nil {
		query += fmt.Sprintf("%s created_at >= $%d", joiner, argIdx)
		args = append(args, *opts.Since)
		argIdx++
		joiner = " AND"
	}
	if opts.Until != nil {
		query += fmt.Sprintf("%s created_at <= $%d", joiner, argIdx)
		args = append(args, *opts.Until)
		argIdx++
	}

	query += " ORDER BY created_at DESC"

	if opts.Limit > 0 {
		query += fmt.Sprintf(" LIMIT $%d", argIdx)
		args = append(args, opts.Limit)
		argIdx++
	}
	if opts.Offset > 0 {
		query += fmt.Sprintf(" OFFSET $%d", argIdx)
		args = append(args, opts.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("postgres: list markets: %w", err)
	}
	defer rows.Close()

	var markets []domain.Market
	for rows.Next() {
		m, err := scanMarket(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		markets = append(markets, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list markets rows: %w", err)
	}
	return markets, nil
}

// ListActive returns active markets with pagination and optional time filtering.
func (s *MarketStore) ListActive(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	return s.list(ctx, ` WHERE status = 'active'`, opts)
}

// List returns markets of any status with pagination and optional time
// filtering.
func (s *MarketStore) List(ctx context.Context, opts domain.ListOpts) ([]domain.Market, error) {
	return s.list(ctx, "", opts)
}

// Count returns the total number of markets in the database.
func (s *MarketStore) Count(ctx context.Context) (int64, error) {
	var count int64
	err := s.pool.QueryRow(ctx, "SELECT COUNT(*) FROM markets").Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("postgres: count markets: %w", err)
	}
	return count, nil
}
