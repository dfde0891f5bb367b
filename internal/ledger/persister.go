package ledger

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/storage"
)

// Persister writes ledger changes to a PositionStore off the hot path.
// Changes to the same (wallet, mint) coalesce: only the latest state is
// written.
type Persister struct {
	store   storage.PositionStore
	timeout time.Duration
	log     zerolog.Logger

	mu      sync.Mutex
	pending map[domain.PositionKey]domain.Position
	notify  chan struct{}
}

// NewPersister creates a persister for store. Pass Offer as Options.OnChange.
func NewPersister(store storage.PositionStore, timeout time.Duration, logger zerolog.Logger) *Persister {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Persister{
		store:   store,
		timeout: timeout,
		log:     logger.With().Str("component", "ledger_persister").Logger(),
		pending: make(map[domain.PositionKey]domain.Position),
		notify:  make(chan struct{}, 1),
	}
}

// Offer queues a position for writing. Never blocks.
func (p *Persister) Offer(pos domain.Position) {
	p.mu.Lock()
	p.pending[pos.Key()] = pos
	p.mu.Unlock()

	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Pending returns the number of positions waiting to be written.
func (p *Persister) Pending() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}

// Run writes queued positions until ctx is done, then drains what is left.
func (p *Persister) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			p.Flush(context.Background())
			return nil
		case <-p.notify:
			p.Flush(ctx)
		}
	}
}

// Flush writes every queued position. Failed writes are re-queued unless a
// newer state arrived meanwhile.
func (p *Persister) Flush(ctx context.Context) {
	p.mu.Lock()
	batch := p.pending
	p.pending = make(map[domain.PositionKey]domain.Position, len(batch))
	p.mu.Unlock()

	for key, pos := range batch {
		pos := pos
		wctx, cancel := context.WithTimeout(ctx, p.timeout)
		start := time.Now()
		err := p.store.Upsert(wctx, &pos)
		cancel()
		observability.RecordPersist(time.Since(start), err)

		if err != nil {
			p.log.Error().Err(err).Str("wallet", key.Wallet).Str("mint", key.Mint).Msg("persist position")
			p.mu.Lock()
			if _, newer := p.pending[key]; !newer {
				p.pending[key] = pos
			}
			p.mu.Unlock()
		}
	}
}

// Load restores l from the store.
func Load(ctx context.Context, l *Ledger, store storage.PositionStore) (int, error) {
	stored, err := store.List(ctx)
	if err != nil {
		return 0, err
	}
	positions := make([]domain.Position, 0, len(stored))
	for _, p := range stored {
		positions = append(positions, *p)
	}
	l.Restore(positions)
	observability.SetOpenPositions(len(l.Open()))
	return len(positions), nil
}
