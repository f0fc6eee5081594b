package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/predyx-labs/predyxd/internal/domain"
)

// DepositStore implements domain.DepositStore using PostgreSQL.
type DepositStore struct {
	pool *pgxpool.Pool
}

// NewDepositStore creates a new DepositStore backed by the given connection
// pool.
func NewDepositStore(pool *pgxpool.Pool) *DepositStore {
	return &DepositStore{pool: pool}
}

// InsertBatch persists deposit events idempotently. Re-synced events hit the
// primary key and are skipped.
func (s *DepositStore) InsertBatch(ctx context.Context, deposits []domain.Deposit) error {
	if len(deposits) == 0 {
		return nil
	}

	const query = `
		INSERT INTO deposits (id, market_id, account, side, amount, tx_hash, ts)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING`

	batch := &pgx.Batch{}
	for _, d := range deposits {
		batch.Queue(query,
			d.ID, d.MarketID, d.Account, int16(d.Side),
			d.Amount, d.TxHash, d.Timestamp,
		)
	}

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := range deposits {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("postgres: insert deposit batch item %d: %w", i, err)
		}
	}
	return nil
}

// ListByMarket returns deposits for a market ordered by event time ascending.
func (s *DepositStore) ListByMarket(ctx context.Context, marketID string, opts domain.ListOpts) ([]domain.Deposit, error) {
	query := `SELECT id, market_id, account, side, amount, tx_hash, ts
		FROM deposits WHERE market_id = $1`
	args := []any{marketID}
	argIdx := 2

	if opts.Since != nil {
		query += fmt.Sprintf(" AND ts >= $%d", argIdx)
		args = append(args, *opts.Since)
		argIdx++
	}

	query += " ORDER BY ts ASC"

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
		return nil, fmt.Errorf("postgres: list deposits for %s: %w", marketID, err)
	}
	defer rows.Close()

	var deposits []domain.Deposit
	for rows.Next() {
		var (
			d    domain.Deposit
			side int16
		)
		if err := rows.Scan(&d.ID, &d.MarketID, &d.Account, &side, &d.Amount, &d.TxHash, &d.Timestamp); err != nil {
			return nil, fmt.Errorf("postgres: scan deposit: %w", err)
		}
		d.Side = domain.Outcome(side)
		deposits = append(deposits, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list deposits rows: %w", err)
	}
	return deposits, nil
}

// GetLastTimestamp returns the newest deposit event time, or the zero time
// when no deposits are stored. The sync pipeline resumes from here.
func (s *DepositStore) GetLastTimestamp(ctx context.Context) (time.Time, error) {
	var ts *time.Time
	err := s.pool.QueryRow(ctx, `SELECT MAX(ts) FROM deposits`).Scan(&ts)
	if err != nil {
		return time.Time{}, fmt.Errorf("postgres: last deposit timestamp: %w", err)
	}
	if ts == nil {
		return time.Time{}, nil
	}
	return ts.UTC(), nil
}
