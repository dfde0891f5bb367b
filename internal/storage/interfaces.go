package storage

import (
	"context"
	"time"

	"solana-copy-trader/internal/domain"
)

// PositionStore persists ledger positions keyed by (wallet, mint).
type PositionStore interface {
	// Upsert inserts or replaces the position for its (wallet, mint).
	Upsert(ctx context.Context, p *domain.Position) error

	// Get retrieves one position. Returns ErrNotFound if not exists.
	Get(ctx context.Context, wallet, mint string) (*domain.Position, error)

	// List retrieves every position ordered by wallet, mint.
	List(ctx context.Context) ([]*domain.Position, error)

	// ListOpen retrieves open positions ordered by wallet, mint.
	ListOpen(ctx context.Context) ([]*domain.Position, error)
}

// AttemptStore records submission attempts. Append-only.
type AttemptStore interface {
	// InsertBulk adds attempts. Returns ErrDuplicateKey if an attempt ID exists.
	InsertBulk(ctx context.Context, attempts []*domain.SubmissionAttempt) error

	// GetByPlanID retrieves attempts for a plan ordered by submitted_at ASC.
	GetByPlanID(ctx context.Context, planID string) ([]*domain.SubmissionAttempt, error)
}

// TraceStore records per-signal pipeline traces. Append-only.
type TraceStore interface {
	// Insert adds a trace. Returns ErrDuplicateKey if the signal ID exists.
	Insert(ctx context.Context, t *domain.SignalTrace) error

	// GetByMint retrieves traces for a mint ordered by observed_at ASC.
	GetByMint(ctx context.Context, mint string) ([]*domain.SignalTrace, error)
}

// StreamMessage is one entry of a durable event stream.
type StreamMessage struct {
	ID      string
	Payload []byte
}

// EventBus appends to and reads from ordered event streams.
type EventBus interface {
	// StreamAppend appends payload to stream.
	StreamAppend(ctx context.Context, stream string, payload []byte) error

	// StreamRead returns up to count messages after lastID, blocking up to
	// block for new ones. Returns an empty slice when none arrive.
	StreamRead(ctx context.Context, stream, lastID string, count int, block time.Duration) ([]StreamMessage, error)
}
