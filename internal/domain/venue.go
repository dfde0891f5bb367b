package domain

import "time"

// Venue identifies an on-chain exchange protocol.
type Venue string

// Supported venues. The set is closed: adding one means adding a constant,
// a router table row and a builder.
const (
	VenueUnknown          Venue = ""
	VenuePumpFun          Venue = "pumpfun"
	VenuePumpSwap         Venue = "pumpswap"
	VenueMoonshot         Venue = "moonshot"
	VenueRaydiumLaunchpad Venue = "raydium_launchpad"
	VenueRaydiumCPMM      Venue = "raydium_cpmm"
	VenueMeteora          Venue = "meteora"
)

// AllVenues lists known venues in router priority order.
var AllVenues = []Venue{
	VenuePumpFun,
	VenuePumpSwap,
	VenueMoonshot,
	VenueRaydiumLaunchpad,
	VenueRaydiumCPMM,
	VenueMeteora,
}

// String returns the venue identifier or "unknown".
func (v Venue) String() string {
	if v == VenueUnknown {
		return "unknown"
	}
	return string(v)
}

// CurveParams holds bonding-curve reserves (PumpFun, Moonshot, Raydium Launchpad).
type CurveParams struct {
	VirtualSolReserves   uint64
	VirtualTokenReserves uint64
	RealSolReserves      uint64
	RealTokenReserves    uint64
	Complete             bool
}

// PoolParams holds AMM pool state (PumpSwap, Raydium CPMM, Meteora).
// Accounts carries named pool accounts that cannot be derived from the mint
// alone, learned from observed transactions.
type PoolParams struct {
	Address      string
	BaseReserve  uint64 // token side
	QuoteReserve uint64 // SOL side
	FeeBps       uint64
	Accounts     map[string]string
}

// VenueState is the cached knowledge about one mint. It only ever gains
// detail; venue-specific params are dropped only by an explicit migration.
type VenueState struct {
	Mint         string
	Venue        Venue
	Curve        *CurveParams
	Pool         *PoolParams
	Creator      string
	Migrated     bool
	MigratedFrom Venue
	CreatedAt    time.Time // zero when the mint's creation was never observed
	UpdatedAt    time.Time
}

// HasCurve reports whether usable bonding-curve reserves are cached.
func (s VenueState) HasCurve() bool {
	return s.Curve != nil && s.Curve.VirtualSolReserves > 0 && s.Curve.VirtualTokenReserves > 0
}

// HasPool reports whether usable pool reserves are cached.
func (s VenueState) HasPool() bool {
	return s.Pool != nil && s.Pool.BaseReserve > 0 && s.Pool.QuoteReserve > 0
}

// Clone returns a deep copy safe to hand to callers.
func (s VenueState) Clone() VenueState {
	out := s
	if s.Curve != nil {
		c := *s.Curve
		out.Curve = &c
	}
	if s.Pool != nil {
		p := *s.Pool
		if s.Pool.Accounts != nil {
			p.Accounts = make(map[string]string, len(s.Pool.Accounts))
			for k, v := range s.Pool.Accounts {
				p.Accounts[k] = v
			}
		}
		out.Pool = &p
	}
	return out
}
