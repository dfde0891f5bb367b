// Package reporting renders ledger positions and their signal history as
// Markdown or CSV for operators.
package reporting

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/shopspring/decimal"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// Report is a point-in-time summary of the ledger.
type Report struct {
	GeneratedAt time.Time
	Summary     Summary
	// Positions are sorted open first, then by wallet, mint.
	Positions []PositionRow
}

// Summary aggregates across every position.
type Summary struct {
	Wallets         int
	OpenPositions   int
	ClosedPositions int
	// OpenCostBasis is the lamports currently committed to open positions.
	OpenCostBasis uint64
	// RealizedPnL is in lamports.
	RealizedPnL decimal.Decimal
}

// PositionRow is one position plus the signals seen for its mint.
type PositionRow struct {
	Wallet        string
	Mint          string
	Status        domain.PositionStatus
	Quantity      uint64
	AvgEntryPrice decimal.Decimal
	CostBasis     uint64
	RealizedPnL   decimal.Decimal
	Fills         int
	UpdatedAt     time.Time

	// Signal counts for the mint, zero when no trace store is configured.
	Signals  int
	Settled  int
	Filtered int
}

// Generator builds reports from the stores.
type Generator struct {
	positions storage.PositionStore
	traces    storage.TraceStore
	now       func() time.Time
}

// NewGenerator creates a generator. traces may be nil.
func NewGenerator(positions storage.PositionStore, traces storage.TraceStore) *Generator {
	return &Generator{positions: positions, traces: traces, now: time.Now}
}

// Generate reads every position and builds the report.
func (g *Generator) Generate(ctx context.Context) (*Report, error) {
	positions, err := g.positions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list positions: %w", err)
	}

	r := &Report{
		GeneratedAt: g.now().UTC(),
		Summary:     Summary{RealizedPnL: decimal.Zero},
	}
	wallets := make(map[string]struct{})
	traceCounts := make(map[string][3]int)

	for _, p := range positions {
		wallets[p.Wallet] = struct{}{}
		if p.IsOpen() {
			r.Summary.OpenPositions++
			r.Summary.OpenCostBasis += p.CostBasis
		} else {
			r.Summary.ClosedPositions++
		}
		r.Summary.RealizedPnL = r.Summary.RealizedPnL.Add(p.RealizedPnL)

		row := PositionRow{
			Wallet:        p.Wallet,
			Mint:          p.Mint,
			Status:        p.Status,
			Quantity:      p.Quantity,
			AvgEntryPrice: p.AvgEntryPrice,
			CostBasis:     p.CostBasis,
			RealizedPnL:   p.RealizedPnL,
			Fills:         p.Fills,
			UpdatedAt:     p.UpdatedAt,
		}
		if g.traces != nil {
			counts, ok := traceCounts[p.Mint]
			if !ok {
				counts, err = g.countTraces(ctx, p.Mint)
				if err != nil {
					return nil, err
				}
				traceCounts[p.Mint] = counts
			}
			row.Signals, row.Settled, row.Filtered = counts[0], counts[1], counts[2]
		}
		r.Positions = append(r.Positions, row)
	}
	r.Summary.Wallets = len(wallets)

	sort.SliceStable(r.Positions, func(i, j int) bool {
		a, b := r.Positions[i], r.Positions[j]
		if (a.Status == domain.PositionOpen) != (b.Status == domain.PositionOpen) {
			return a.Status == domain.PositionOpen
		}
		if a.Wallet != b.Wallet {
			return a.Wallet < b.Wallet
		}
		return a.Mint < b.Mint
	})
	return r, nil
}

// countTraces returns total, settled and filtered-before-classification
// signal counts for mint.
func (g *Generator) countTraces(ctx context.Context, mint string) ([3]int, error) {
	traces, err := g.traces.GetByMint(ctx, mint)
	if err != nil {
		return [3]int{}, fmt.Errorf("traces for %s: %w", mint, err)
	}
	var c [3]int
	c[0] = len(traces)
	for _, t := range traces {
		switch t.FinalState {
		case domain.StateSettled:
			c[1]++
		case domain.StateObserved:
			c[2]++
		}
	}
	return c, nil
}

// lamportsToSOL formats a lamport decimal as SOL.
func lamportsToSOL(d decimal.Decimal) string {
	return d.Shift(-9).StringFixed(6)
}
