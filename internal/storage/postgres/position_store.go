package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/storage"
)

// PositionStore implements storage.PositionStore using PostgreSQL.
// Decimals travel as text so no precision is lost in either direction.
type PositionStore struct {
	pool *Pool
}

// NewPositionStore creates a new PositionStore.
func NewPositionStore(pool *Pool) *PositionStore {
	return &PositionStore{pool: pool}
}

// Compile-time interface check.
var _ storage.PositionStore = (*PositionStore)(nil)

const positionColumns = `
	wallet, mint, quantity, avg_entry_price::text, cost_basis, realized_pnl::text,
	status, opened_by, fills, opened_at, updated_at`

// Upsert inserts or replaces the position for its (wallet, mint).
func (s *PositionStore) Upsert(ctx context.Context, p *domain.Position) (err error) {
	if p == nil || p.Wallet == "" || p.Mint == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("postgres", "upsert_position", time.Since(start).Seconds(), err) }()

	query := `
		INSERT INTO positions (
			wallet, mint, quantity, avg_entry_price, cost_basis, realized_pnl,
			status, opened_by, fills, opened_at, updated_at
		) VALUES ($1, $2, $3, $4::text::numeric, $5, $6::text::numeric, $7, $8, $9, $10, $11)
		ON CONFLICT (wallet, mint) DO UPDATE SET
			quantity        = EXCLUDED.quantity,
			avg_entry_price = EXCLUDED.avg_entry_price,
			cost_basis      = EXCLUDED.cost_basis,
			realized_pnl    = EXCLUDED.realized_pnl,
			status          = EXCLUDED.status,
			opened_by       = EXCLUDED.opened_by,
			fills           = EXCLUDED.fills,
			opened_at       = EXCLUDED.opened_at,
			updated_at      = EXCLUDED.updated_at
	`

	_, err = s.pool.Exec(ctx, query,
		p.Wallet,
		p.Mint,
		int64(p.Quantity),
		p.AvgEntryPrice.String(),
		int64(p.CostBasis),
		p.RealizedPnL.String(),
		string(p.Status),
		p.OpenedBy,
		p.Fills,
		p.OpenedAt.UTC(),
		p.UpdatedAt.UTC(),
	)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("upsert position %s/%s: %w", p.Wallet, p.Mint, storage.ErrInvalidInput)
		}
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// Get retrieves one position. Returns ErrNotFound if not exists.
func (s *PositionStore) Get(ctx context.Context, wallet, mint string) (*domain.Position, error) {
	query := `SELECT` + positionColumns + `
		FROM positions
		WHERE wallet = $1 AND mint = $2
	`

	p, err := scanPosition(s.pool.QueryRow(ctx, query, wallet, mint))
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// List retrieves every position ordered by wallet, mint.
func (s *PositionStore) List(ctx context.Context) ([]*domain.Position, error) {
	return s.query(ctx, `SELECT`+positionColumns+`
		FROM positions
		ORDER BY wallet ASC, mint ASC
	`)
}

// ListOpen retrieves open positions ordered by wallet, mint.
func (s *PositionStore) ListOpen(ctx context.Context) ([]*domain.Position, error) {
	return s.query(ctx, `SELECT`+positionColumns+`
		FROM positions
		WHERE status = 'open'
		ORDER BY wallet ASC, mint ASC
	`)
}

func (s *PositionStore) query(ctx context.Context, query string) ([]*domain.Position, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var result []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		result = append(result, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate positions: %w", err)
	}
	return result, nil
}

// scanPosition scans a single row into Position.
func scanPosition(row pgx.Row) (*domain.Position, error) {
	var (
		p                  domain.Position
		qty, costBasis     int64
		avgEntry, realized string
		status             string
	)

	err := row.Scan(
		&p.Wallet,
		&p.Mint,
		&qty,
		&avgEntry,
		&costBasis,
		&realized,
		&status,
		&p.OpenedBy,
		&p.Fills,
		&p.OpenedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if p.AvgEntryPrice, err = decimal.NewFromString(avgEntry); err != nil {
		return nil, fmt.Errorf("parse avg_entry_price: %w", err)
	}
	if p.RealizedPnL, err = decimal.NewFromString(realized); err != nil {
		return nil, fmt.Errorf("parse realized_pnl: %w", err)
	}
	p.Quantity = uint64(qty)
	p.CostBasis = uint64(costBasis)
	p.Status = domain.PositionStatus(status)
	return &p, nil
}
