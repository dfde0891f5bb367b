// Package router maps observed trades to the venue that executed them.
package router

import (
	"github.com/rs/zerolog"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/venue"
)

// entry is one row of the priority table.
type entry struct {
	venue   domain.Venue
	program string
	name    string
}

// table is ordered by priority; the first venue whose program appears in a
// transaction wins regardless of where it appears.
var table = []entry{
	{domain.VenuePumpFun, venue.PumpFunProgram, "Pump.fun"},
	{domain.VenuePumpSwap, venue.PumpSwapProgram, "PumpSwap"},
	{domain.VenueMoonshot, venue.MoonshotProgram, "Moonshot"},
	{domain.VenueRaydiumLaunchpad, venue.RaydiumLaunchpadProgram, "Raydium Launchpad"},
	{domain.VenueRaydiumCPMM, venue.RaydiumCPMMProgram, "Raydium CPMM"},
	{domain.VenueMeteora, venue.MeteoraDynamicProgram, "Meteora Dynamic AMM"},
	{domain.VenueMeteora, venue.MeteoraDLMMProgram, "Meteora DLMM"},
}

// VenueCache is the cache surface the router needs.
type VenueCache interface {
	Get(mint string) (domain.VenueState, bool)
	Upsert(st domain.VenueState) domain.VenueState
	MarkMigrated(mint string, to domain.Venue) domain.VenueState
}

// Router classifies signals and records what it learns in the venue cache.
type Router struct {
	cache VenueCache
	log   zerolog.Logger
}

// New creates a router writing to cache.
func New(cache VenueCache, logger zerolog.Logger) *Router {
	return &Router{
		cache: cache,
		log:   logger.With().Str("component", "router").Logger(),
	}
}

// Match returns the highest-priority venue referenced by programs.
func Match(programs []string) domain.Venue {
	if len(programs) == 0 {
		return domain.VenueUnknown
	}
	seen := make(map[string]struct{}, len(programs))
	for _, p := range programs {
		seen[p] = struct{}{}
	}
	for _, e := range table {
		if _, ok := seen[e.program]; ok {
			return e.venue
		}
	}
	return domain.VenueUnknown
}

// Classify determines the venue of sig and merges its hints into the cache.
// Returns domain.ErrClassificationMiss when no venue can be determined.
func (r *Router) Classify(sig domain.TradeSignal) (domain.Venue, error) {
	matched := Match(sig.ProgramRefs)
	cached, known := r.cache.Get(sig.Mint)

	v := matched
	switch {
	case sig.Hints.MigratedTo != domain.VenueUnknown:
		cached = r.cache.MarkMigrated(sig.Mint, sig.Hints.MigratedTo)
		v = cached.Venue

	case known && cached.Migrated && matched != domain.VenueUnknown:
		// A cached migration wins over a stale program match, but never
		// turns an unmatched transaction into a trade.
		v = cached.Venue

	case known && graduated(cached.Venue, matched):
		cached = r.cache.MarkMigrated(sig.Mint, matched)
	}

	if v == domain.VenueUnknown {
		r.log.Debug().Str("mint", sig.Mint).Str("signature", sig.Signature).Msg("classification miss")
		return domain.VenueUnknown, domain.ErrClassificationMiss
	}

	st := domain.VenueState{
		Mint:    sig.Mint,
		Venue:   v,
		Creator: sig.Hints.Creator,
		Curve:   sig.Hints.Curve,
		Pool:    sig.Hints.Pool,
	}
	if sig.Hints.MintCreated {
		st.CreatedAt = sig.ObservedAt
	}
	r.cache.Upsert(st)
	return v, nil
}

// graduated reports whether a mint cached on a bonding curve now trades on
// a pool venue, which only happens after migration.
func graduated(cached, matched domain.Venue) bool {
	return cached != domain.VenueUnknown &&
		matched != domain.VenueUnknown &&
		cached != matched &&
		venue.IsCurveVenue(cached) &&
		!venue.IsCurveVenue(matched)
}

// Name returns a human-readable venue name for a program ID.
func Name(programID string) string {
	for _, e := range table {
		if e.program == programID {
			return e.name
		}
	}
	return "Unknown"
}

// KnownPrograms lists every program ID the router recognizes, in priority order.
func KnownPrograms() []string {
	out := make([]string, len(table))
	for i, e := range table {
		out[i] = e.program
	}
	return out
}
