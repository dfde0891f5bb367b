package domain

import "time"

// Direction is the side of a trade.
type Direction string

const (
	Buy  Direction = "buy"
	Sell Direction = "sell"
)

// Opposite returns the other side.
func (d Direction) Opposite() Direction {
	if d == Buy {
		return Sell
	}
	return Buy
}

// VenueHints carries venue details extracted from an observed transaction.
// All fields are optional.
type VenueHints struct {
	Curve       *CurveParams
	Pool        *PoolParams
	Creator     string
	MintCreated bool  // the observed transaction created the mint
	MigratedTo  Venue // the observed transaction migrated the mint
}

// TradeSignal is a venue-agnostic copy of an observed counterparty trade.
// Immutable once created.
type TradeSignal struct {
	ID           string
	Source       string // counterparty wallet address
	SourceLabel  string
	Mint         string
	Direction    Direction
	Amount       uint64 // token base units traded by the source
	SolAmount    uint64 // lamports paid (buy) or received (sell) by the source
	PctOfBalance uint64 // bps of the source's token balance sold, sells only
	ProgramRefs  []string
	Slot         uint64
	ObservedAt   time.Time
	Signature    string
	Hints        VenueHints
}

// ImpliedPriceOK reports whether the signal carries both legs of the trade,
// so an implied lamports-per-unit price exists.
func (s TradeSignal) ImpliedPriceOK() bool {
	return s.Amount > 0 && s.SolAmount > 0
}

// SignalState is a stage of the per-signal state machine.
type SignalState string

const (
	StateObserved   SignalState = "observed"
	StateClassified SignalState = "classified"
	StatePlanned    SignalState = "planned"
	StateSubmitted  SignalState = "submitted"
	StateSettled    SignalState = "settled"
)
