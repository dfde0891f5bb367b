// Package wallet decides which execution wallets act on a signal.
package wallet

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"solana-copy-trader/internal/domain"
)

// PositionReader reports open positions. Satisfied by *ledger.Ledger.
type PositionReader interface {
	HasOpen(wallet, mint string) bool
}

// InflightGuard bounds concurrent buys per (wallet, mint) to one.
type InflightGuard interface {
	// TryAcquire claims (wallet, mint). False means a buy is already in flight.
	TryAcquire(ctx context.Context, wallet, mint string) (bool, error)
	// Release frees (wallet, mint).
	Release(ctx context.Context, wallet, mint string)
}

// Coordinator filters the configured wallets for a signal.
type Coordinator struct {
	wallets   []domain.TrackedWallet
	balances  *BalanceBook
	positions PositionReader
	guard     InflightGuard
	log       zerolog.Logger

	mu       sync.Mutex
	reserved map[string]uint64 // wallet|mint -> lamports held for the buy
}

// NewCoordinator creates a coordinator. wallets are kept in the given order.
func NewCoordinator(wallets []domain.TrackedWallet, balances *BalanceBook, positions PositionReader, guard InflightGuard, logger zerolog.Logger) *Coordinator {
	if guard == nil {
		guard = NewMemoryGuard(0)
	}
	ws := make([]domain.TrackedWallet, len(wallets))
	copy(ws, wallets)
	return &Coordinator{
		wallets:   ws,
		balances:  balances,
		positions: positions,
		guard:     guard,
		reserved:  make(map[string]uint64),
		log:       logger.With().Str("component", "wallet_coordinator").Logger(),
	}
}

// Wallets returns the configured wallets.
func (c *Coordinator) Wallets() []domain.TrackedWallet {
	return c.wallets
}

// Eligible returns the wallets that should act on sig, in configuration order.
//
// Buys require the enabled flag, an unreserved balance covering both
// MinBalance and TradeSize, no open position in the mint and no buy already
// in flight. Each returned buy wallet holds the in-flight claim for the mint
// and a TradeSize balance reservation until Release is called. Sells require
// the enabled flag and an open position.
func (c *Coordinator) Eligible(ctx context.Context, sig domain.TradeSignal) []domain.TrackedWallet {
	var out []domain.TrackedWallet
	for _, w := range c.wallets {
		if !w.Enabled {
			continue
		}
		hasOpen := c.positions.HasOpen(w.Address, sig.Mint)

		if sig.Direction == domain.Sell {
			if hasOpen {
				out = append(out, w)
			}
			continue
		}

		if hasOpen {
			continue
		}
		avail, ok := c.balances.Reserve(w.Address, w.MinBalance, w.TradeSize)
		if !ok {
			c.log.Debug().Str("wallet", w.Name).Uint64("available", avail).Msg("below balance gate")
			continue
		}
		acquired, err := c.guard.TryAcquire(ctx, w.Address, sig.Mint)
		if err != nil || !acquired {
			c.balances.Unreserve(w.Address, w.TradeSize)
			if err != nil {
				c.log.Warn().Err(err).Str("wallet", w.Name).Msg("inflight guard unavailable")
			} else {
				c.log.Debug().Str("wallet", w.Name).Str("mint", sig.Mint).Msg("buy already in flight")
			}
			continue
		}
		c.mu.Lock()
		c.reserved[guardKey(w.Address, sig.Mint)] = w.TradeSize
		c.mu.Unlock()
		out = append(out, w)
	}
	return out
}

// Release frees the in-flight claim and balance reservation taken by
// Eligible for a buy.
func (c *Coordinator) Release(ctx context.Context, wallet, mint string) {
	key := guardKey(wallet, mint)
	c.mu.Lock()
	amount, ok := c.reserved[key]
	delete(c.reserved, key)
	c.mu.Unlock()
	if ok {
		c.balances.Unreserve(wallet, amount)
	}
	c.guard.Release(ctx, wallet, mint)
}
