package strategy

import (
	"errors"

	"solana-copy-trader/internal/domain"
)

// Factory errors
var (
	ErrInvalidFullExit = errors.New("full exit threshold must be within (0, 10000] bps")
	ErrInvalidMaxSell  = errors.New("max sell share must be within (0, 10000] bps")
)

// Config holds the sizing knobs.
type Config struct {
	FullExitBps uint64
	MaxSellBps  uint64
}

// Policy pairs the buy and sell sizers.
type Policy struct {
	Buy  *FollowBuy
	Sell *FollowSell
}

// FromConfig creates the policy for sources.
// Zero values take the defaults.
func FromConfig(cfg Config, sources []domain.SourceWallet) (*Policy, error) {
	sell := NewFollowSell()
	if cfg.FullExitBps != 0 {
		if cfg.FullExitBps > bpsDenominator {
			return nil, ErrInvalidFullExit
		}
		sell.FullExitBps = cfg.FullExitBps
	}
	if cfg.MaxSellBps != 0 {
		if cfg.MaxSellBps > bpsDenominator {
			return nil, ErrInvalidMaxSell
		}
		sell.MaxBps = cfg.MaxSellBps
	}
	return &Policy{Buy: NewFollowBuy(sources), Sell: sell}, nil
}

// For returns the sizer handling dir.
func (p *Policy) For(dir domain.Direction) Sizer {
	if dir == domain.Sell {
		return p.Sell
	}
	return p.Buy
}
