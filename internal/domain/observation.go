package domain

import "time"

// Observation is a normalized record from the ingestion feed, before it is
// matched against configured source wallets.
type Observation struct {
	Signature   string
	Slot        uint64
	BlockTime   time.Time
	Wallet      string
	Mint        string
	Direction   Direction
	Amount      uint64 // token base units
	SolAmount   uint64 // lamports
	PreBalance  uint64 // wallet token balance before the trade
	ProgramRefs []string
	Hints       VenueHints
}
