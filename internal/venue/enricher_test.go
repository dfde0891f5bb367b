package venue

import (
	"context"
	"encoding/base64"
	"encoding/binary"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/solana/stub"
)

const testMint = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"

func curveAccount(vtr, vsr uint64, complete bool, creator []byte) []byte {
	data := make([]byte, 81)
	le := binary.LittleEndian
	le.PutUint64(data[8:], vtr)
	le.PutUint64(data[16:], vsr)
	le.PutUint64(data[24:], vtr-279_900_000_000_000)
	le.PutUint64(data[32:], vsr-30_000_000_000)
	le.PutUint64(data[40:], 1_000_000_000_000_000)
	if complete {
		data[48] = 1
	}
	copy(data[49:], creator)
	return data
}

func TestDecodeBondingCurve(t *testing.T) {
	creator := make([]byte, 32)
	creator[0] = 9
	p, c, err := DecodeBondingCurve(curveAccount(1_073_000_000_000_000, 30_000_000_000, true, creator))
	require.NoError(t, err)

	assert.Equal(t, uint64(1_073_000_000_000_000), p.VirtualTokenReserves)
	assert.Equal(t, uint64(30_000_000_000), p.VirtualSolReserves)
	assert.True(t, p.Complete)
	assert.Equal(t, solana.EncodeAddress(creator), c)
}

func TestDecodeBondingCurve_Short(t *testing.T) {
	_, _, err := DecodeBondingCurve(make([]byte, 20))
	assert.ErrorIs(t, err, ErrShortAccount)
}

func TestEnricher_FillsMiss(t *testing.T) {
	rpc := stub.NewRPCClient()
	addr, err := BondingCurveAddress(testMint)
	require.NoError(t, err)

	creator := make([]byte, 32)
	creator[5] = 1
	rpc.Accounts[addr] = &solana.AccountInfo{
		Owner: PumpFunProgram,
		Data:  base64.StdEncoding.EncodeToString(curveAccount(1_000_000_000_000_000, 40_000_000_000, false, creator)),
	}

	cache := NewCache(Options{})
	e := NewEnricher(cache, rpc, EnricherConfig{})
	require.NoError(t, e.Enrich(context.Background(), testMint))

	st, ok := cache.Get(testMint)
	require.True(t, ok)
	assert.Equal(t, domain.VenuePumpFun, st.Venue)
	assert.True(t, st.HasCurve())
	assert.Equal(t, solana.EncodeAddress(creator), st.Creator)
}

func TestEnricher_SkipsNonCurveVenue(t *testing.T) {
	rpc := stub.NewRPCClient()
	cache := NewCache(Options{})
	cache.Upsert(domain.VenueState{Mint: testMint, Venue: domain.VenueRaydiumCPMM})

	e := NewEnricher(cache, rpc, EnricherConfig{})
	require.NoError(t, e.Enrich(context.Background(), testMint))

	st, _ := cache.Get(testMint)
	assert.Nil(t, st.Curve)
}

func TestEnricher_RequestDedup(t *testing.T) {
	e := NewEnricher(NewCache(Options{}), stub.NewRPCClient(), EnricherConfig{QueueSize: 1})
	assert.True(t, e.Request("a"))
	assert.False(t, e.Request("a"), "already queued")
	assert.False(t, e.Request("b"), "queue full")
}

type recordingPublisher struct {
	got chan domain.VenueState
}

func (p *recordingPublisher) PublishVenue(_ context.Context, st domain.VenueState) error {
	p.got <- st
	return nil
}

func TestMirror_ForwardsUpdates(t *testing.T) {
	pub := &recordingPublisher{got: make(chan domain.VenueState, 1)}
	m := NewMirror(pub, 4, zerolog.Nop())
	cache := NewCache(Options{OnUpdate: m.Offer})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go m.Run(ctx)

	cache.Upsert(domain.VenueState{Mint: "m", Venue: domain.VenueMoonshot})
	st := <-pub.got
	assert.Equal(t, "m", st.Mint)
	assert.Equal(t, domain.VenueMoonshot, st.Venue)
}
