package ingestion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/idhash"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/storage"
)

type sliceSource struct {
	name string
	obs  []domain.Observation
}

func (s *sliceSource) Name() string { return s.name }

func (s *sliceSource) Subscribe(ctx context.Context) (<-chan domain.Observation, error) {
	ch := make(chan domain.Observation, len(s.obs))
	for _, o := range s.obs {
		ch <- o
	}
	close(ch)
	return ch, nil
}

var followed = []domain.SourceWallet{
	{Label: "whale", Address: "SRC1", Enabled: true, MinTrade: 1_000_000},
	{Label: "muted", Address: "SRC2", Enabled: false},
}

func observation(wallet string, dir domain.Direction, amount, sol uint64) domain.Observation {
	return domain.Observation{
		Signature: "sig-" + wallet,
		Slot:      100,
		Wallet:    wallet,
		Mint:      "MINT",
		Direction: dir,
		Amount:    amount,
		SolAmount: sol,
	}
}

func TestListener_ToSignal(t *testing.T) {
	now := time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)
	l := NewListener(nil, followed, ListenerOptions{Now: func() time.Time { return now }})

	sig, ok := l.ToSignal(observation("SRC1", domain.Buy, 5_000, 2_000_000))
	require.True(t, ok)
	assert.Equal(t, idhash.ComputeSignalID("sig-SRC1", "SRC1", "MINT", domain.Buy), sig.ID)
	assert.Equal(t, "whale", sig.SourceLabel)
	assert.Equal(t, now, sig.ObservedAt)
	assert.Equal(t, uint64(0), sig.PctOfBalance)

	_, ok = l.ToSignal(observation("SRC1", domain.Buy, 5_000, 999_999))
	assert.False(t, ok, "below minimum trade")

	_, ok = l.ToSignal(observation("SRC2", domain.Buy, 5_000, 2_000_000))
	assert.False(t, ok, "disabled source")

	_, ok = l.ToSignal(observation("OTHER", domain.Buy, 5_000, 2_000_000))
	assert.False(t, ok, "unknown wallet")

	_, ok = l.ToSignal(observation("SRC1", domain.Buy, 0, 2_000_000))
	assert.False(t, ok, "no token leg")
}

func TestListener_SellPct(t *testing.T) {
	l := NewListener(nil, followed, ListenerOptions{})

	o := observation("SRC1", domain.Sell, 250, 10)
	o.PreBalance = 1_000
	sig, ok := l.ToSignal(o)
	require.True(t, ok)
	assert.Equal(t, uint64(2_500), sig.PctOfBalance)

	// Sells are not gated on the minimum trade.
	o = observation("SRC1", domain.Sell, 1_000, 1)
	o.PreBalance = 1_000
	sig, ok = l.ToSignal(o)
	require.True(t, ok)
	assert.Equal(t, uint64(10_000), sig.PctOfBalance)

	assert.Equal(t, uint64(10_000), sellPct(5, 0))
	assert.Equal(t, uint64(3_333), sellPct(1, 3))
}

func TestListener_StartMergesAndDedups(t *testing.T) {
	buy := observation("SRC1", domain.Buy, 5_000, 2_000_000)
	sell := observation("SRC1", domain.Sell, 10, 1)
	sell.Signature = "sig-sell"

	l := NewListener([]Source{
		&sliceSource{name: "a", obs: []domain.Observation{buy, sell}},
		&sliceSource{name: "b", obs: []domain.Observation{buy, observation("OTHER", domain.Buy, 1, 1)}},
	}, followed, ListenerOptions{})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := l.Start(ctx)
	require.NoError(t, err)

	var got []domain.TradeSignal
	for s := range out {
		got = append(got, s)
	}
	require.Len(t, got, 2)
	dirs := map[domain.Direction]bool{}
	for _, s := range got {
		dirs[s.Direction] = true
	}
	assert.True(t, dirs[domain.Buy])
	assert.True(t, dirs[domain.Sell])
}

type failingSource struct{}

func (failingSource) Name() string { return "broken" }
func (failingSource) Subscribe(context.Context) (<-chan domain.Observation, error) {
	return nil, errors.New("dial failed")
}

func TestListener_StartSubscribeError(t *testing.T) {
	l := NewListener([]Source{failingSource{}}, followed, ListenerOptions{})
	_, err := l.Start(context.Background())
	assert.Error(t, err)
}

type blockingSource struct {
	ctx chan context.Context
}

func (b *blockingSource) Name() string { return "open" }
func (b *blockingSource) Subscribe(ctx context.Context) (<-chan domain.Observation, error) {
	b.ctx <- ctx
	return make(chan domain.Observation), nil
}

func TestListener_StartSubscribeErrorStopsEarlierSources(t *testing.T) {
	first := &blockingSource{ctx: make(chan context.Context, 1)}
	l := NewListener([]Source{first, failingSource{}}, followed, ListenerOptions{})

	_, err := l.Start(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken")

	subCtx := <-first.ctx
	select {
	case <-subCtx.Done():
	case <-time.After(time.Second):
		t.Fatal("earlier source still subscribed after Start failed")
	}
}

func TestDedup(t *testing.T) {
	d := NewDedup(time.Second)
	now := time.Unix(0, 0)
	d.now = func() time.Time { return now }

	assert.False(t, d.IsDuplicate("k"))
	assert.True(t, d.IsDuplicate("k"))

	now = now.Add(time.Second)
	d.Cleanup()
	assert.Equal(t, 0, d.Len())
	assert.False(t, d.IsDuplicate("k"))
}

type fakeWS struct {
	filters []solana.LogsFilter
	chans   map[string]chan solana.LogNotification
}

func (f *fakeWS) SubscribeLogs(_ context.Context, filter solana.LogsFilter) (<-chan solana.LogNotification, error) {
	f.filters = append(f.filters, filter)
	ch := make(chan solana.LogNotification, 4)
	f.chans[filter.Mentions[0]] = ch
	return ch, nil
}

func (f *fakeWS) Close() error { return nil }

type fakeFetcher struct {
	txs   map[string]*solana.Transaction
	calls map[string]int
	// missing makes the first N lookups of every signature return nil.
	missing int
}

func (f *fakeFetcher) GetTransaction(_ context.Context, sig string) (*solana.Transaction, error) {
	f.calls[sig]++
	if f.calls[sig] <= f.missing {
		return nil, nil
	}
	return f.txs[sig], nil
}

func TestWSSource_FetchesAndNormalizes(t *testing.T) {
	wallet, mint := addr(4), addr(1)
	tx := pumpBuyTx(wallet, mint)

	ws := &fakeWS{chans: map[string]chan solana.LogNotification{}}
	rpc := &fakeFetcher{txs: map[string]*solana.Transaction{"sigBuy": tx}, calls: map[string]int{}, missing: 1}

	src := NewWSSource(ws, rpc, []string{wallet}, zerologNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := src.Subscribe(ctx)
	require.NoError(t, err)
	require.Len(t, ws.filters, 1)
	assert.Equal(t, []string{wallet}, ws.filters[0].Mentions)

	ws.chans[wallet] <- solana.LogNotification{Signature: "failed", Err: "boom"}
	ws.chans[wallet] <- solana.LogNotification{Signature: "sigBuy"}

	select {
	case obs := <-out:
		assert.Equal(t, "sigBuy", obs.Signature)
		assert.Equal(t, domain.Buy, obs.Direction)
		assert.Equal(t, mint, obs.Mint)
	case <-ctx.Done():
		t.Fatal("no observation")
	}
	assert.Equal(t, 2, rpc.calls["sigBuy"])
	assert.Zero(t, rpc.calls["failed"])
}

type fakeStream struct {
	msgs  []storage.StreamMessage
	reads []string
}

func (f *fakeStream) StreamRead(ctx context.Context, _ string, lastID string, _ int, _ time.Duration) ([]storage.StreamMessage, error) {
	f.reads = append(f.reads, lastID)
	if len(f.msgs) > 0 {
		m := f.msgs
		f.msgs = nil
		return m, nil
	}
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestRedisStreamSource(t *testing.T) {
	reader := &fakeStream{msgs: []storage.StreamMessage{
		{ID: "1-0", Payload: []byte(`{"signature":"s1","slot":7,"block_time":1700000000,"wallet":"SRC1","mint":"M","side":"buy","token_amount":10,"sol_amount":20,"programs":["P"],"mint_created":true,"curve":{"virtual_sol":1,"virtual_token":2}}`)},
		{ID: "2-0", Payload: []byte(`not json`)},
		{ID: "3-0", Payload: []byte(`{"signature":"s3","wallet":"SRC1","mint":"M","side":"sell","token_amount":5,"pre_balance":10}`)},
	}}

	src := NewRedisStreamSource(reader, "", zerologNop())
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	out, err := src.Subscribe(ctx)
	require.NoError(t, err)

	first := <-out
	assert.Equal(t, "s1", first.Signature)
	assert.Equal(t, uint64(7), first.Slot)
	assert.Equal(t, domain.Buy, first.Direction)
	assert.True(t, first.Hints.MintCreated)
	require.NotNil(t, first.Hints.Curve)
	assert.Equal(t, uint64(2), first.Hints.Curve.VirtualTokenReserves)
	assert.Equal(t, int64(1700000000), first.BlockTime.Unix())

	second := <-out
	assert.Equal(t, "s3", second.Signature)
	assert.Equal(t, domain.Sell, second.Direction)
	assert.Equal(t, uint64(10), second.PreBalance)

	cancel()
	for range out {
	}
	assert.Equal(t, "$", reader.reads[0])
	assert.Equal(t, "3-0", src.lastID)
}
