package router

import (
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/venue"
)

func newRouter() (*Router, *venue.Cache) {
	c := venue.NewCache(venue.Options{})
	return New(c, zerolog.Nop()), c
}

func TestMatch_Priority(t *testing.T) {
	tests := []struct {
		name     string
		programs []string
		want     domain.Venue
	}{
		{"empty", nil, domain.VenueUnknown},
		{"unknown only", []string{"11111111111111111111111111111111"}, domain.VenueUnknown},
		{"pumpfun", []string{venue.PumpFunProgram}, domain.VenuePumpFun},
		{"table order beats appearance order", []string{venue.RaydiumCPMMProgram, venue.MoonshotProgram}, domain.VenueMoonshot},
		{"pumpfun over pumpswap", []string{venue.PumpSwapProgram, venue.PumpFunProgram}, domain.VenuePumpFun},
		{"meteora dlmm", []string{venue.MeteoraDLMMProgram}, domain.VenueMeteora},
		{"launchpad over cpmm", []string{venue.RaydiumCPMMProgram, venue.RaydiumLaunchpadProgram}, domain.VenueRaydiumLaunchpad},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Match(tt.programs); got != tt.want {
				t.Errorf("Match() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_MissNeverCaches(t *testing.T) {
	r, c := newRouter()
	_, err := r.Classify(domain.TradeSignal{Mint: "m", ProgramRefs: []string{"other"}})
	if !errors.Is(err, domain.ErrClassificationMiss) {
		t.Fatalf("expected classification miss, got %v", err)
	}
	if c.Len() != 0 {
		t.Errorf("miss must not insert state")
	}
}

func TestClassify_InsertsAndMergesHints(t *testing.T) {
	r, c := newRouter()
	now := time.Unix(1700000000, 0)
	v, err := r.Classify(domain.TradeSignal{
		Mint:        "m",
		ProgramRefs: []string{venue.PumpFunProgram},
		ObservedAt:  now,
		Hints: domain.VenueHints{
			Curve:       &domain.CurveParams{VirtualSolReserves: 30e9, VirtualTokenReserves: 1e15},
			Creator:     "creator",
			MintCreated: true,
		},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v != domain.VenuePumpFun {
		t.Errorf("expected pumpfun, got %v", v)
	}

	st, ok := c.Get("m")
	if !ok {
		t.Fatal("expected cached state")
	}
	if !st.HasCurve() || st.Creator != "creator" || !st.CreatedAt.Equal(now) {
		t.Errorf("hints not merged: %+v", st)
	}
}

func TestClassify_CachedMigrationWins(t *testing.T) {
	r, c := newRouter()
	c.Upsert(domain.VenueState{Mint: "m", Venue: domain.VenuePumpFun})
	c.MarkMigrated("m", domain.VenuePumpSwap)

	v, err := r.Classify(domain.TradeSignal{Mint: "m", ProgramRefs: []string{venue.PumpFunProgram}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v != domain.VenuePumpSwap {
		t.Errorf("expected pumpswap after migration, got %v", v)
	}
}

func TestClassify_CachedMigrationNeedsProgramMatch(t *testing.T) {
	r, c := newRouter()
	c.Upsert(domain.VenueState{Mint: "m", Venue: domain.VenuePumpFun})
	c.MarkMigrated("m", domain.VenuePumpSwap)

	v, err := r.Classify(domain.TradeSignal{Mint: "m", ProgramRefs: []string{"11111111111111111111111111111111"}})
	if !errors.Is(err, domain.ErrClassificationMiss) {
		t.Fatalf("expected classification miss, got %v (%v)", err, v)
	}
	if v != domain.VenueUnknown {
		t.Errorf("expected unknown venue, got %v", v)
	}
	st, _ := c.Get("m")
	if st.Venue != domain.VenuePumpSwap || !st.Migrated {
		t.Errorf("miss must leave cached migration intact: %+v", st)
	}
}

func TestClassify_MigrationHint(t *testing.T) {
	r, c := newRouter()
	c.Upsert(domain.VenueState{
		Mint:  "m",
		Venue: domain.VenuePumpFun,
		Curve: &domain.CurveParams{VirtualSolReserves: 1, VirtualTokenReserves: 1},
	})

	v, err := r.Classify(domain.TradeSignal{
		Mint:        "m",
		ProgramRefs: []string{venue.PumpFunProgram},
		Hints:       domain.VenueHints{MigratedTo: domain.VenuePumpSwap},
	})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v != domain.VenuePumpSwap {
		t.Errorf("expected pumpswap, got %v", v)
	}
	st, _ := c.Get("m")
	if !st.Migrated || st.Curve != nil {
		t.Errorf("expected migrated state without curve: %+v", st)
	}
}

func TestClassify_GraduationObserved(t *testing.T) {
	r, c := newRouter()
	c.Upsert(domain.VenueState{Mint: "m", Venue: domain.VenueRaydiumLaunchpad})

	v, err := r.Classify(domain.TradeSignal{Mint: "m", ProgramRefs: []string{venue.RaydiumCPMMProgram}})
	if err != nil {
		t.Fatalf("Classify: %v", err)
	}
	if v != domain.VenueRaydiumCPMM {
		t.Errorf("expected cpmm, got %v", v)
	}
	st, _ := c.Get("m")
	if st.MigratedFrom != domain.VenueRaydiumLaunchpad {
		t.Errorf("expected migration from launchpad, got %v", st.MigratedFrom)
	}
}

func TestName(t *testing.T) {
	if got := Name(venue.MoonshotProgram); got != "Moonshot" {
		t.Errorf("Name() = %s", got)
	}
	if got := Name("x"); got != "Unknown" {
		t.Errorf("Name() = %s", got)
	}
	if len(KnownPrograms()) != 7 {
		t.Errorf("expected 7 known programs")
	}
}
