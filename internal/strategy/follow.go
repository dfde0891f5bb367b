package strategy

import (
	"fmt"
	"math/bits"

	"solana-copy-trader/internal/domain"
)

const (
	bpsDenominator = 10_000

	// DefaultFullExitBps is the share of the source's balance past which a
	// sell is treated as a full exit.
	DefaultFullExitBps = 9_000
)

// FollowBuy spends each wallet's configured trade size when a followed
// wallet buys at least its minimum trade.
type FollowBuy struct {
	// MinTrade maps source address to the lamport floor of a followed buy.
	MinTrade map[string]uint64
}

// NewFollowBuy creates the buy policy for sources.
func NewFollowBuy(sources []domain.SourceWallet) *FollowBuy {
	m := make(map[string]uint64, len(sources))
	for _, s := range sources {
		m[s.Address] = s.MinTrade
	}
	return &FollowBuy{MinTrade: m}
}

// ID implements Sizer.
func (f *FollowBuy) ID() string { return "FOLLOW_BUY" }

// Size implements Sizer.
func (f *FollowBuy) Size(sig domain.TradeSignal, wallet domain.TrackedWallet, _ *domain.Position) (uint64, error) {
	if sig.Direction != domain.Buy {
		return 0, sizingError(sig, wallet, domain.ReasonGating, ErrWrongDirection)
	}
	if min, ok := f.MinTrade[sig.Source]; ok && sig.SolAmount < min {
		return 0, sizingError(sig, wallet, domain.ReasonGating,
			fmt.Errorf("%w: %d < %d lamports", ErrBelowMinTrade, sig.SolAmount, min))
	}
	if wallet.TradeSize == 0 {
		return 0, sizingError(sig, wallet, domain.ReasonGating, ErrZeroSize)
	}
	return wallet.TradeSize, nil
}

// FollowSell sells the same share of the wallet's position that the source
// sold of its own balance.
type FollowSell struct {
	// FullExitBps rounds larger source sells up to the whole position.
	FullExitBps uint64
	// MaxBps caps the share sold per signal.
	MaxBps uint64
}

// NewFollowSell creates the sell policy with the default full-exit rule.
func NewFollowSell() *FollowSell {
	return &FollowSell{FullExitBps: DefaultFullExitBps, MaxBps: bpsDenominator}
}

// ID implements Sizer.
func (f *FollowSell) ID() string {
	return fmt.Sprintf("FOLLOW_SELL_full%d_max%d", f.FullExitBps, f.MaxBps)
}

// Size implements Sizer.
func (f *FollowSell) Size(sig domain.TradeSignal, wallet domain.TrackedWallet, pos *domain.Position) (uint64, error) {
	if sig.Direction != domain.Sell {
		return 0, sizingError(sig, wallet, domain.ReasonGating, ErrWrongDirection)
	}
	if pos == nil || !pos.IsOpen() || pos.Quantity == 0 {
		return 0, sizingError(sig, wallet, domain.ReasonNoPosition, ErrNoPosition)
	}

	pct := f.SellBps(sig.PctOfBalance)
	if pct >= bpsDenominator {
		return pos.Quantity, nil
	}
	hi, lo := bits.Mul64(pos.Quantity, pct)
	qty, _ := bits.Div64(hi, lo, bpsDenominator)
	if qty == 0 {
		return 0, sizingError(sig, wallet, domain.ReasonGating, ErrZeroSize)
	}
	return qty, nil
}

// SellBps maps the source's sold share to the share the wallet sells.
func (f *FollowSell) SellBps(sourceBps uint64) uint64 {
	pct := sourceBps
	if f.FullExitBps > 0 && pct >= f.FullExitBps {
		pct = bpsDenominator
	}
	if f.MaxBps > 0 && pct > f.MaxBps {
		pct = f.MaxBps
	}
	if pct > bpsDenominator {
		pct = bpsDenominator
	}
	return pct
}
