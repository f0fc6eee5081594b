package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predyx-labs/predyxd/internal/domain"
)

// QuoteStore implements domain.QuoteStore using PostgreSQL.
type QuoteStore struct {
	pool *pgxpool.Pool
}

// NewQuoteStore creates a new QuoteStore backed by the given connection pool.
func NewQuoteStore(pool *pgxpool.Pool) *QuoteStore {
	return &QuoteStore{pool: pool}
}

const quoteCols = `id, market_id, kind, side, amount_in, amount_out,
	eff_price, price_impact, roi, estimate, block_number, created_at`

// Insert persists a single advisory quote.
func (s *QuoteStore) Insert(ctx context.Context, q domain.Quote) error {
	const query = `
		INSERT INTO quotes (
			id, market_id, kind, side, amount_in, amount_out,
			eff_price, price_impact, roi, estimate, block_number, created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11, $12
		)`

	_, err := s.pool.Exec(ctx, query,
		q.ID, q.MarketID, string(q.Kind), int16(q.Side),
		q.AmountIn, q.AmountOut,
		q.EffPrice, q.PriceImpact, q.ROI,
		q.Estimate, int64(q.BlockNumber), q.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert quote %s: %w", q.ID, err)
	}
	return nil
}

// scanQuote scans a single quote row into a domain.Quote.
func scanQuote(row pgx.Row) (domain.Quote, error) {
	var (
		q     domain.Quote
		kind  string
		side  int16
		block int64
	)
	err := row.Scan(
		&q.ID, &q.MarketID, &kind, &side,
		&q.AmountIn, &q.AmountOut,
		&q.EffPrice, &q.PriceImpact, &q.ROI,
		&q.Estimate, &block, &q.CreatedAt,
	)
	if err != nil {
		return domain.Quote{}, err
	}
	q.Kind = domain.QuoteKind(kind)
	q.Side = domain.Outcome(side)
	q.BlockNumber = uint64(block)
	return q, nil
}

// ListByMarket returns quotes for a market, newest first.
func (s *QuoteStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Quote, error) {
	query := `SELECT ` + quoteCols + ` FROM quotes WHERE market_id = $1`
	args := []any{marketID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND created_at >= $%d", argIdx)
		args = append(args, *opts.Since)
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
		return nil, fmt.Errorf("postgres: list quotes for %s: %w", marketID, err)
	}
	defer rows.Close()

	var quotes []domain.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list quotes rows: %w", err)
	}
	return quotes, nil
}

// ListBefore returns up to limit quotes created before cutoff, oldest first.
// The archiver drains retention batches through this.
func (s *QuoteStore) ListBefore(ctx context.Context, cutoff time.Time, limit int) ([]domain.Quote, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+quoteCols+` FROM quotes WHERE created_at < $1 ORDER BY created_at ASC LIMIT $2`,
		cutoff, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("postgres: list quotes before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	defer rows.Close()

	var quotes []domain.Quote
	for rows.Next() {
		q, err := scanQuote(rows)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan quote: %w", err)
		}
		quotes = append(quotes, q)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list quotes before rows: %w", err)
	}
	return quotes, nil
}

// DeleteByIDs removes exactly the quotes with the given IDs and reports how
// many rows were deleted. The archiver deletes through this so rows that were
// never uploaded can never be swept up by a timestamp-range delete.
func (s *QuoteStore) DeleteByIDs(ctx context.Context, ids []string) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}
	tag, err := s.pool.Exec(ctx, `DELETE FROM quotes WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete %d quotes by id: %w", len(ids), err)
	}
	return tag.RowsAffected(), nil
}
