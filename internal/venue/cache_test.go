package venue

import (
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
)

func TestCache_GetMiss(t *testing.T) {
	c := NewCache(Options{})
	_, ok := c.Get("mint")
	assert.False(t, ok)
}

func TestCache_UpsertNeverErases(t *testing.T) {
	c := NewCache(Options{})

	c.Upsert(domain.VenueState{
		Mint:    "mint",
		Venue:   domain.VenuePumpFun,
		Curve:   &domain.CurveParams{VirtualSolReserves: 30e9, VirtualTokenReserves: 1_073e12},
		Creator: "creator",
	})
	// Later observation without curve or creator.
	got := c.Upsert(domain.VenueState{Mint: "mint", Venue: domain.VenuePumpFun})

	require.NotNil(t, got.Curve)
	assert.Equal(t, uint64(30e9), got.Curve.VirtualSolReserves)
	assert.Equal(t, "creator", got.Creator)
	assert.Equal(t, domain.VenuePumpFun, got.Venue)
}

func TestCache_UpsertOverwritesPresentFields(t *testing.T) {
	c := NewCache(Options{})
	c.Upsert(domain.VenueState{Mint: "m", Curve: &domain.CurveParams{VirtualSolReserves: 1, VirtualTokenReserves: 1}})
	got := c.Upsert(domain.VenueState{Mint: "m", Curve: &domain.CurveParams{VirtualSolReserves: 2, VirtualTokenReserves: 3}})

	assert.Equal(t, uint64(2), got.Curve.VirtualSolReserves)
	assert.Equal(t, uint64(3), got.Curve.VirtualTokenReserves)
}

func TestCache_PartialCurveKeepsKnownReserves(t *testing.T) {
	c := NewCache(Options{})
	c.Upsert(domain.VenueState{Mint: "m", Venue: domain.VenuePumpFun, Curve: &domain.CurveParams{
		VirtualSolReserves:   30e9,
		VirtualTokenReserves: 1_073e12,
		RealSolReserves:      1e9,
		RealTokenReserves:    793e12,
	}})
	got := c.Upsert(domain.VenueState{Mint: "m", Curve: &domain.CurveParams{RealSolReserves: 5e9}})

	require.NotNil(t, got.Curve)
	assert.Equal(t, uint64(30e9), got.Curve.VirtualSolReserves)
	assert.Equal(t, uint64(1_073e12), got.Curve.VirtualTokenReserves)
	assert.Equal(t, uint64(5e9), got.Curve.RealSolReserves)
	assert.Equal(t, uint64(793e12), got.Curve.RealTokenReserves)
	assert.True(t, got.HasCurve())

	got = c.Upsert(domain.VenueState{Mint: "m", Curve: &domain.CurveParams{Complete: true}})
	assert.True(t, got.Curve.Complete)
	got = c.Upsert(domain.VenueState{Mint: "m", Curve: &domain.CurveParams{VirtualSolReserves: 31e9}})
	assert.True(t, got.Curve.Complete, "complete is sticky")
	assert.Equal(t, uint64(31e9), got.Curve.VirtualSolReserves)
}

func TestCache_PoolAccountsMerge(t *testing.T) {
	c := NewCache(Options{})
	c.Upsert(domain.VenueState{Mint: "m", Pool: &domain.PoolParams{Address: "pool", Accounts: map[string]string{"a_vault": "va"}}})
	got := c.Upsert(domain.VenueState{Mint: "m", Pool: &domain.PoolParams{BaseReserve: 10, Accounts: map[string]string{"b_vault": "vb"}}})

	assert.Equal(t, "pool", got.Pool.Address)
	assert.Equal(t, uint64(10), got.Pool.BaseReserve)
	assert.Equal(t, map[string]string{"a_vault": "va", "b_vault": "vb"}, got.Pool.Accounts)
}

func TestCache_CreatedAtKeepsEarliest(t *testing.T) {
	c := NewCache(Options{})
	early := time.Unix(1000, 0)
	c.Upsert(domain.VenueState{Mint: "m", CreatedAt: early})
	got := c.Upsert(domain.VenueState{Mint: "m", CreatedAt: early.Add(time.Hour)})
	assert.Equal(t, early, got.CreatedAt)
}

func TestCache_MarkMigrated(t *testing.T) {
	c := NewCache(Options{})
	c.Upsert(domain.VenueState{
		Mint:  "m",
		Venue: domain.VenuePumpFun,
		Curve: &domain.CurveParams{VirtualSolReserves: 1, VirtualTokenReserves: 1},
	})

	got := c.MarkMigrated("m", domain.VenuePumpSwap)
	assert.True(t, got.Migrated)
	assert.Equal(t, domain.VenuePumpSwap, got.Venue)
	assert.Equal(t, domain.VenuePumpFun, got.MigratedFrom)
	assert.Nil(t, got.Curve)

	// A stale PumpFun observation must not revert the migration.
	got = c.Upsert(domain.VenueState{
		Mint:  "m",
		Venue: domain.VenuePumpFun,
		Curve: &domain.CurveParams{VirtualSolReserves: 5, VirtualTokenReserves: 5},
	})
	assert.Equal(t, domain.VenuePumpSwap, got.Venue)
	assert.Nil(t, got.Curve)

	got = c.Upsert(domain.VenueState{Mint: "m", Venue: domain.VenuePumpSwap, Pool: &domain.PoolParams{BaseReserve: 7, QuoteReserve: 9}})
	assert.True(t, got.HasPool())
}

func TestCache_MarkMigratedIdempotent(t *testing.T) {
	var updates int
	c := NewCache(Options{OnUpdate: func(domain.VenueState) { updates++ }})
	c.Upsert(domain.VenueState{Mint: "m", Venue: domain.VenuePumpFun})
	c.MarkMigrated("m", domain.VenuePumpSwap)
	got := c.MarkMigrated("m", domain.VenuePumpSwap)

	assert.Equal(t, domain.VenuePumpFun, got.MigratedFrom)
	assert.Equal(t, 2, updates)
}

func TestCache_GetReturnsCopy(t *testing.T) {
	c := NewCache(Options{})
	c.Upsert(domain.VenueState{Mint: "m", Pool: &domain.PoolParams{Accounts: map[string]string{"k": "v"}}})

	st, _ := c.Get("m")
	st.Pool.Accounts["k"] = "changed"

	again, _ := c.Get("m")
	assert.Equal(t, "v", again.Pool.Accounts["k"])
}

// Completeness only ever grows under concurrent writers.
func TestCache_ConcurrentMonotonic(t *testing.T) {
	c := NewCache(Options{Shards: 4})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			mint := fmt.Sprintf("mint-%d", i%5)
			st := domain.VenueState{Mint: mint, Venue: domain.VenuePumpFun}
			if i%2 == 0 {
				st.Creator = "creator"
			} else {
				st.Curve = &domain.CurveParams{VirtualSolReserves: 1, VirtualTokenReserves: 1}
			}
			c.Upsert(st)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 5, c.Len())
	for _, st := range c.Snapshot() {
		assert.Equal(t, "creator", st.Creator, st.Mint)
		assert.True(t, st.HasCurve(), st.Mint)
	}
}
