// Package strategy sizes the operator's replica of a followed trade.
package strategy

import (
	"errors"

	"solana-copy-trader/internal/domain"
)

// Sizing errors. Each wraps domain.ErrBuild so the engine treats them as
// per-wallet planning failures.
var (
	ErrWrongDirection = errors.New("policy does not handle this direction")
	ErrBelowMinTrade  = errors.New("source trade below minimum")
	ErrZeroSize       = errors.New("computed size is zero")
	ErrNoPosition     = errors.New("no open position to sell")
)

// Sizer decides how much one wallet trades in response to a signal.
type Sizer interface {
	// Size returns lamports to spend on a buy or token base units to sell.
	// pos is the wallet's current position in the signal's mint, nil if none.
	Size(sig domain.TradeSignal, wallet domain.TrackedWallet, pos *domain.Position) (uint64, error)

	// ID returns the policy identifier (includes parameters).
	ID() string
}

// sizingError reports a sizing failure as a gating BuildError.
func sizingError(sig domain.TradeSignal, wallet domain.TrackedWallet, reason string, cause error) error {
	return &domain.BuildError{
		Reason: reason,
		Wallet: wallet.Address,
		Mint:   sig.Mint,
		Detail: cause.Error(),
	}
}
