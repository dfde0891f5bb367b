// Package builder turns trade signals into unsigned, venue-specific
// transaction plans. Every account is derived locally; builders never
// perform I/O.
package builder

import (
	"time"

	"github.com/google/uuid"

	"solana-copy-trader/internal/domain"
)

// Default execution parameters.
const (
	DefaultComputeUnitLimit = 250_000
	DefaultSlippageBps      = 50
	bpsDenominator          = 10_000
)

// Params are the per-trade knobs a builder needs besides the signal.
type Params struct {
	// Amount is lamports to spend on a buy or token base units to sell.
	Amount uint64
	// SlippageBps bounds both the price band and min-output.
	SlippageBps uint64
	// PriorityFee is the total priority fee in lamports.
	PriorityFee uint64
	// ComputeUnitLimit defaults to DefaultComputeUnitLimit.
	ComputeUnitLimit uint32
	// MinSellOutput is the lamport floor for a sell's min-output.
	MinSellOutput uint64
	// PlanID overrides the generated plan ID.
	PlanID string
}

// Builder constructs plans for one venue.
type Builder interface {
	Venue() domain.Venue
	Build(sig domain.TradeSignal, st domain.VenueState, wallet domain.TrackedWallet, p Params) (*domain.BuildPlan, error)
}

// Registry is the closed set of builders keyed by venue.
type Registry struct {
	builders map[domain.Venue]Builder
	now      func() time.Time
}

// NewRegistry creates a registry from builders.
func NewRegistry(builders ...Builder) *Registry {
	r := &Registry{
		builders: make(map[domain.Venue]Builder, len(builders)),
		now:      time.Now,
	}
	for _, b := range builders {
		r.builders[b.Venue()] = b
	}
	return r
}

// DefaultRegistry returns builders for every supported venue.
func DefaultRegistry() *Registry {
	return NewRegistry(
		PumpFun{},
		PumpSwap{},
		Moonshot{},
		RaydiumLaunchpad{},
		RaydiumCPMM{},
		Meteora{},
	)
}

// Has reports whether a builder exists for v.
func (r *Registry) Has(v domain.Venue) bool {
	_, ok := r.builders[v]
	return ok
}

// Build dispatches to the builder for st.Venue.
func (r *Registry) Build(sig domain.TradeSignal, st domain.VenueState, wallet domain.TrackedWallet, p Params) (*domain.BuildPlan, error) {
	b, ok := r.builders[st.Venue]
	if !ok {
		return nil, buildErr(domain.ReasonUnsupportedVenue, st.Venue, wallet, sig, "")
	}
	if p.Amount == 0 {
		return nil, buildErr(domain.ReasonGating, st.Venue, wallet, sig, "zero amount")
	}
	if p.ComputeUnitLimit == 0 {
		p.ComputeUnitLimit = DefaultComputeUnitLimit
	}
	if p.SlippageBps >= bpsDenominator {
		return nil, buildErr(domain.ReasonSlippage, st.Venue, wallet, sig, "slippage must be below 100%")
	}

	plan, err := b.Build(sig, st, wallet, p)
	if err != nil {
		return nil, err
	}
	if plan.ID == "" {
		plan.ID = uuid.NewString()
	}
	plan.CreatedAt = r.now()
	return plan, nil
}

func buildErr(reason string, v domain.Venue, wallet domain.TrackedWallet, sig domain.TradeSignal, detail string) error {
	return &domain.BuildError{
		Reason: reason,
		Venue:  v,
		Wallet: wallet.Address,
		Mint:   sig.Mint,
		Detail: detail,
	}
}

// newPlan creates a plan prefixed with compute-budget instructions.
func newPlan(v domain.Venue, sig domain.TradeSignal, wallet domain.TrackedWallet, p Params) *domain.BuildPlan {
	limit := p.ComputeUnitLimit
	if limit == 0 {
		limit = DefaultComputeUnitLimit
	}
	price := ComputeUnitPrice(p.PriorityFee, limit)
	return &domain.BuildPlan{
		ID:               p.PlanID,
		SignalID:         sig.ID,
		Wallet:           wallet.Address,
		Mint:             sig.Mint,
		Venue:            v,
		Direction:        sig.Direction,
		ComputeUnitLimit: limit,
		ComputeUnitPrice: price,
		Instructions: []domain.Instruction{
			setComputeUnitLimit(limit),
			setComputeUnitPrice(price),
		},
	}
}
