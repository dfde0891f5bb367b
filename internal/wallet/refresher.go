package wallet

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
)

// BalanceFetcher reads a lamport balance. Satisfied by solana.RPCClient.
type BalanceFetcher interface {
	GetBalance(ctx context.Context, pubkey string) (uint64, error)
}

// Refresher keeps a BalanceBook current by polling.
type Refresher struct {
	book     *BalanceBook
	rpc      BalanceFetcher
	wallets  []domain.TrackedWallet
	interval time.Duration
	timeout  time.Duration
	log      zerolog.Logger
}

// NewRefresher creates a refresher for the enabled wallets.
func NewRefresher(book *BalanceBook, rpc BalanceFetcher, wallets []domain.TrackedWallet, interval time.Duration, logger zerolog.Logger) *Refresher {
	if interval <= 0 {
		interval = 10 * time.Second
	}
	var enabled []domain.TrackedWallet
	for _, w := range wallets {
		if w.Enabled {
			enabled = append(enabled, w)
		}
	}
	return &Refresher{
		book:     book,
		rpc:      rpc,
		wallets:  enabled,
		interval: interval,
		timeout:  5 * time.Second,
		log:      logger.With().Str("component", "balance_refresher").Logger(),
	}
}

// RefreshOnce fetches every balance. Failures keep the previous value.
// Returns the number of wallets refreshed.
func (r *Refresher) RefreshOnce(ctx context.Context) int {
	n := 0
	for _, w := range r.wallets {
		cctx, cancel := context.WithTimeout(ctx, r.timeout)
		bal, err := r.rpc.GetBalance(cctx, w.Address)
		cancel()
		if err != nil {
			r.log.Warn().Err(err).Str("wallet", w.Name).Msg("balance refresh failed")
			continue
		}
		r.book.Set(w.Address, bal)
		observability.SetWalletBalance(w.Name, bal)
		n++
	}
	return n
}

// Run refreshes immediately and then every interval until ctx is done.
func (r *Refresher) Run(ctx context.Context) error {
	r.RefreshOnce(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			r.RefreshOnce(ctx)
		}
	}
}
