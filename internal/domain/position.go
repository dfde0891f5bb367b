package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// PositionStatus is open while quantity is held.
type PositionStatus string

const (
	PositionOpen   PositionStatus = "open"
	PositionClosed PositionStatus = "closed"
)

// Position is the holding of one wallet in one mint.
// Prices are lamports per token base unit.
type Position struct {
	Wallet        string
	Mint          string
	Quantity      uint64
	AvgEntryPrice decimal.Decimal
	CostBasis     uint64 // lamports
	RealizedPnL   decimal.Decimal
	Status        PositionStatus
	OpenedBy      string // plan that opened the current holding
	Fills         int
	OpenedAt      time.Time
	UpdatedAt     time.Time
}

// IsOpen reports whether the position holds tokens.
func (p Position) IsOpen() bool {
	return p.Status == PositionOpen
}

// Fill is a confirmed trade applied to the ledger.
type Fill struct {
	ID        string // attempt or signature; duplicate IDs are suppressed
	PlanID    string
	Wallet    string
	Mint      string
	Direction Direction
	Quantity  uint64          // token base units
	Price     decimal.Decimal // lamports per token base unit
	Slot      uint64
	At        time.Time
}

// PositionKey identifies a position.
type PositionKey struct {
	Wallet string
	Mint   string
}

// Key returns the (wallet, mint) key.
func (p Position) Key() PositionKey {
	return PositionKey{Wallet: p.Wallet, Mint: p.Mint}
}
