package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/storage"
)

// PositionStore implements storage.PositionStore on SQLite. Timestamps are
// stored as unix milliseconds and decimals as text.
type PositionStore struct {
	db *sql.DB
}

// NewPositionStore creates a store on an opened database.
func NewPositionStore(db *sql.DB) *PositionStore {
	return &PositionStore{db: db}
}

var _ storage.PositionStore = (*PositionStore)(nil)

const selectPositions = `
	SELECT wallet, mint, quantity, avg_entry_price, cost_basis, realized_pnl,
	       status, opened_by, fills, opened_at, updated_at
	FROM positions`

// Upsert inserts or replaces the position for its (wallet, mint).
func (s *PositionStore) Upsert(ctx context.Context, p *domain.Position) (err error) {
	if p == nil || p.Wallet == "" || p.Mint == "" {
		return storage.ErrInvalidInput
	}
	start := time.Now()
	defer func() { observability.RecordDBQuery("sqlite", "upsert_position", time.Since(start).Seconds(), err) }()

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO positions (
			wallet, mint, quantity, avg_entry_price, cost_basis, realized_pnl,
			status, opened_by, fills, opened_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (wallet, mint) DO UPDATE SET
			quantity = excluded.quantity,
			avg_entry_price = excluded.avg_entry_price,
			cost_basis = excluded.cost_basis,
			realized_pnl = excluded.realized_pnl,
			status = excluded.status,
			opened_by = excluded.opened_by,
			fills = excluded.fills,
			opened_at = excluded.opened_at,
			updated_at = excluded.updated_at`,
		p.Wallet, p.Mint, int64(p.Quantity), p.AvgEntryPrice.String(), int64(p.CostBasis), p.RealizedPnL.String(),
		string(p.Status), p.OpenedBy, p.Fills, toMillis(p.OpenedAt), toMillis(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("upsert position: %w", err)
	}
	return nil
}

// Get retrieves one position. Returns ErrNotFound if not exists.
func (s *PositionStore) Get(ctx context.Context, wallet, mint string) (*domain.Position, error) {
	row := s.db.QueryRowContext(ctx, selectPositions+` WHERE wallet = ? AND mint = ?`, wallet, mint)
	p, err := scanPosition(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get position: %w", err)
	}
	return p, nil
}

// List retrieves every position ordered by wallet, mint.
func (s *PositionStore) List(ctx context.Context) ([]*domain.Position, error) {
	return s.query(ctx, selectPositions+` ORDER BY wallet, mint`)
}

// ListOpen retrieves open positions ordered by wallet, mint.
func (s *PositionStore) ListOpen(ctx context.Context) ([]*domain.Position, error) {
	return s.query(ctx, selectPositions+` WHERE status = 'open' ORDER BY wallet, mint`)
}

func (s *PositionStore) query(ctx context.Context, query string) ([]*domain.Position, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query positions: %w", err)
	}
	defer rows.Close()

	var out []*domain.Position
	for rows.Next() {
		p, err := scanPosition(rows)
		if err != nil {
			return nil, fmt.Errorf("scan position: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanPosition(row scanner) (*domain.Position, error) {
	var (
		p                        domain.Position
		qty, costBasis           int64
		avgEntry, realized, stat string
		openedAt, updatedAt      int64
	)
	if err := row.Scan(&p.Wallet, &p.Mint, &qty, &avgEntry, &costBasis, &realized,
		&stat, &p.OpenedBy, &p.Fills, &openedAt, &updatedAt); err != nil {
		return nil, err
	}

	var err error
	if p.AvgEntryPrice, err = decimal.NewFromString(avgEntry); err != nil {
		return nil, fmt.Errorf("parse avg_entry_price: %w", err)
	}
	if p.RealizedPnL, err = decimal.NewFromString(realized); err != nil {
		return nil, fmt.Errorf("parse realized_pnl: %w", err)
	}
	p.Quantity = uint64(qty)
	p.CostBasis = uint64(costBasis)
	p.Status = domain.PositionStatus(stat)
	p.OpenedAt = fromMillis(openedAt)
	p.UpdatedAt = fromMillis(updatedAt)
	return &p, nil
}

func toMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms).UTC()
}
