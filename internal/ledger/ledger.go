// Package ledger tracks per-wallet, per-mint positions from confirmed fills.
package ledger

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
)

// Options configures a Ledger.
type Options struct {
	// AllowPyramiding lets buys from other plans add to an open position.
	AllowPyramiding bool
	// OnChange receives every new position state. Must not block.
	OnChange func(domain.Position)
	Logger   *zerolog.Logger
	Now      func() time.Time
}

// entry serializes all mutations of one (wallet, mint).
type entry struct {
	mu    sync.Mutex
	pos   domain.Position
	fills map[string]struct{}
}

// Ledger is the only writer of positions. Mutations lock a single
// (wallet, mint) entry; unrelated keys never contend.
type Ledger struct {
	entries sync.Map // domain.PositionKey -> *entry

	allowPyramiding bool
	onChange        func(domain.Position)
	now             func() time.Time
	log             zerolog.Logger
}

// New creates an empty ledger.
func New(opts Options) *Ledger {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		allowPyramiding: opts.AllowPyramiding,
		onChange:        opts.OnChange,
		now:             now,
		log:             logger.With().Str("component", "ledger").Logger(),
	}
}

func (l *Ledger) entryFor(key domain.PositionKey) *entry {
	if e, ok := l.entries.Load(key); ok {
		return e.(*entry)
	}
	e, _ := l.entries.LoadOrStore(key, &entry{
		pos:   domain.Position{Wallet: key.Wallet, Mint: key.Mint, Status: domain.PositionClosed},
		fills: make(map[string]struct{}),
	})
	return e.(*entry)
}

// Restore seeds the ledger with previously persisted positions.
// Intended for startup, before any fill is applied.
func (l *Ledger) Restore(positions []domain.Position) {
	for _, p := range positions {
		e := l.entryFor(p.Key())
		e.mu.Lock()
		e.pos = p
		e.mu.Unlock()
	}
}

// OnConfirmed applies a confirmed fill and returns the resulting position.
//
// A duplicate fill ID returns the current position with
// domain.ErrDuplicateFill and changes nothing. Fills that would violate the
// one-open-position rule, oversell or sell a closed position return
// domain.ErrLedgerConflict and change nothing.
func (l *Ledger) OnConfirmed(fill domain.Fill) (domain.Position, error) {
	e := l.entryFor(domain.PositionKey{Wallet: fill.Wallet, Mint: fill.Mint})
	e.mu.Lock()

	if fill.ID != "" {
		if _, seen := e.fills[fill.ID]; seen {
			pos := e.pos
			e.mu.Unlock()
			return pos, domain.ErrDuplicateFill
		}
	}

	next, err := l.apply(e.pos, fill)
	if err != nil {
		pos := e.pos
		e.mu.Unlock()
		observability.RecordLedgerConflict()
		l.log.Warn().Err(err).
			Str("wallet", fill.Wallet).Str("mint", fill.Mint).Str("plan_id", fill.PlanID).
			Msg("fill rejected")
		return pos, err
	}

	e.pos = next
	if fill.ID != "" {
		e.fills[fill.ID] = struct{}{}
	}
	e.mu.Unlock()
	observability.RecordFill(string(fill.Direction))

	if l.onChange != nil {
		l.onChange(next)
	}
	return next, nil
}

func (l *Ledger) apply(pos domain.Position, fill domain.Fill) (domain.Position, error) {
	if fill.Quantity == 0 {
		return pos, fmt.Errorf("%w: zero quantity fill", domain.ErrLedgerConflict)
	}
	if fill.Price.IsNegative() {
		return pos, fmt.Errorf("%w: negative price", domain.ErrLedgerConflict)
	}

	at := fill.At
	if at.IsZero() {
		at = l.now()
	}
	qty := decimal.NewFromUint64(fill.Quantity)

	switch fill.Direction {
	case domain.Buy:
		if !pos.IsOpen() {
			pos.Quantity = fill.Quantity
			pos.AvgEntryPrice = fill.Price
			pos.Status = domain.PositionOpen
			pos.OpenedBy = fill.PlanID
			pos.OpenedAt = at
			pos.Fills = 0
		} else {
			if fill.PlanID != pos.OpenedBy && !l.allowPyramiding {
				return pos, fmt.Errorf("%w: %s already open by plan %s", domain.ErrLedgerConflict, pos.Mint, pos.OpenedBy)
			}
			held := decimal.NewFromUint64(pos.Quantity)
			total := held.Add(qty)
			pos.AvgEntryPrice = pos.AvgEntryPrice.Mul(held).Add(fill.Price.Mul(qty)).Div(total)
			pos.Quantity += fill.Quantity
		}

	case domain.Sell:
		if !pos.IsOpen() {
			return pos, fmt.Errorf("%w: no open position in %s", domain.ErrLedgerConflict, pos.Mint)
		}
		if fill.Quantity > pos.Quantity {
			return pos, fmt.Errorf("%w: sell %d exceeds held %d", domain.ErrLedgerConflict, fill.Quantity, pos.Quantity)
		}
		pos.RealizedPnL = pos.RealizedPnL.Add(fill.Price.Sub(pos.AvgEntryPrice).Mul(qty))
		pos.Quantity -= fill.Quantity
		if pos.Quantity == 0 {
			pos.Status = domain.PositionClosed
		}

	default:
		return pos, fmt.Errorf("%w: unknown direction %q", domain.ErrLedgerConflict, fill.Direction)
	}

	pos.CostBasis = uint64(pos.AvgEntryPrice.Mul(decimal.NewFromUint64(pos.Quantity)).Round(0).IntPart())
	pos.Fills++
	pos.UpdatedAt = at
	return pos, nil
}

// Get returns the position for (wallet, mint).
func (l *Ledger) Get(wallet, mint string) (domain.Position, bool) {
	v, ok := l.entries.Load(domain.PositionKey{Wallet: wallet, Mint: mint})
	if !ok {
		return domain.Position{}, false
	}
	e := v.(*entry)
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.pos.Fills == 0 && !e.pos.IsOpen() {
		return domain.Position{}, false
	}
	return e.pos, true
}

// HasOpen reports whether wallet holds an open position in mint.
func (l *Ledger) HasOpen(wallet, mint string) bool {
	p, ok := l.Get(wallet, mint)
	return ok && p.IsOpen()
}

// Positions returns every known position ordered by wallet then mint.
func (l *Ledger) Positions() []domain.Position {
	var out []domain.Position
	l.entries.Range(func(_, v any) bool {
		e := v.(*entry)
		e.mu.Lock()
		if e.pos.Fills > 0 || e.pos.IsOpen() {
			out = append(out, e.pos)
		}
		e.mu.Unlock()
		return true
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Wallet != out[j].Wallet {
			return out[i].Wallet < out[j].Wallet
		}
		return out[i].Mint < out[j].Mint
	})
	return out
}

// Open returns the open positions of every wallet.
func (l *Ledger) Open() []domain.Position {
	all := l.Positions()
	out := all[:0]
	for _, p := range all {
		if p.IsOpen() {
			out = append(out, p)
		}
	}
	return out
}
