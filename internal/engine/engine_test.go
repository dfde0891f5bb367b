package engine

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-copy-trader/internal/builder"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/ledger"
	"solana-copy-trader/internal/router"
	"solana-copy-trader/internal/storage/memory"
	"solana-copy-trader/internal/submit"
	"solana-copy-trader/internal/venue"
	"solana-copy-trader/internal/wallet"
)

const (
	testWallet  = "9WzDXwBbmkg8ZTbNMqUxvQRAyrZzDsGYdLVL9zYtAWWM"
	testMint    = "4k3Dyjzvzp8eMZWUXbBCjEvwSkkk59S5iCNLY3QrkX6R"
	testCreator = "7xKXtg2CW87d97TXJSDpbD5jBkheTqA83TZRuJosgAsU"
	testSource  = "SRCwallet"
)

type fakeSigner struct{}

func (fakeSigner) SignPlan(_ context.Context, plan *domain.BuildPlan) (*submit.SignedTx, error) {
	return &submit.SignedTx{Signature: "sig-" + plan.ID, Encoded: "AA==", Payer: plan.Wallet}, nil
}

func (fakeSigner) SignInstructions(_ context.Context, payer string, _ []domain.Instruction, blockhash string) (*submit.SignedTx, error) {
	return &submit.SignedTx{Signature: "tip", Payer: payer, Blockhash: blockhash}, nil
}

// channel lands at slot after delay, fails with err, or never lands when
// neither is set.
type channel struct {
	name  string
	slot  uint64
	delay time.Duration
	err   error

	mu    sync.Mutex
	plans []*domain.BuildPlan
}

func (c *channel) Name() string { return c.name }

func (c *channel) Submit(ctx context.Context, plan *domain.BuildPlan, tx *submit.SignedTx) (submit.Landing, error) {
	c.mu.Lock()
	c.plans = append(c.plans, plan)
	c.mu.Unlock()

	if c.slot == 0 && c.err == nil {
		<-ctx.Done()
		return submit.Landing{}, ctx.Err()
	}
	select {
	case <-time.After(c.delay):
	case <-ctx.Done():
		return submit.Landing{}, ctx.Err()
	}
	if c.err != nil {
		return submit.Landing{}, c.err
	}
	return submit.Landing{Signature: tx.Signature, Slot: c.slot}, nil
}

func (c *channel) calls() []*domain.BuildPlan {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*domain.BuildPlan(nil), c.plans...)
}

type publisher struct {
	mu       sync.Mutex
	payloads map[string][]string
}

func (p *publisher) StreamAppend(_ context.Context, stream string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.payloads == nil {
		p.payloads = make(map[string][]string)
	}
	p.payloads[stream] = append(p.payloads[stream], string(payload))
	return nil
}

type harness struct {
	engine   *Engine
	cache    *venue.Cache
	ledger   *ledger.Ledger
	balances *wallet.BalanceBook
	guard    *wallet.MemoryGuard
	traces   *memory.TraceStore
	events   *publisher
	enricher *enrichRecorder
	now      time.Time
}

type enrichRecorder struct {
	mu    sync.Mutex
	mints []string
}

func (r *enrichRecorder) Request(mint string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.mints = append(r.mints, mint)
	return true
}

func newHarness(t *testing.T, cfg Config, channels ...submit.Channel) *harness {
	t.Helper()
	h := &harness{now: time.Date(2026, 10, 19, 12, 0, 0, 0, time.UTC)}
	clock := func() time.Time { return h.now }

	h.cache = venue.NewCache(venue.Options{Now: clock})
	h.ledger = ledger.New(ledger.Options{Now: clock})
	h.balances = wallet.NewBalanceBook()
	h.balances.Set(testWallet, 1_000_000_000)
	h.guard = wallet.NewMemoryGuard(time.Minute)
	h.traces = memory.NewTraceStore()
	h.events = &publisher{}
	h.enricher = &enrichRecorder{}

	wallets := []domain.TrackedWallet{{
		Name:       "w1",
		Address:    testWallet,
		Enabled:    true,
		MinBalance: 10_000_000,
		TradeSize:  3_000_000,
	}}
	coord := wallet.NewCoordinator(wallets, h.balances, h.ledger, h.guard, zerolog.Nop())
	orch := submit.NewOrchestrator(submit.Options{
		Channels: channels,
		Signer:   fakeSigner{},
		Deadline: time.Second,
	})

	h.engine = New(Options{
		Router:    router.New(h.cache, zerolog.Nop()),
		Venues:    h.cache,
		Builders:  builder.DefaultRegistry(),
		Wallets:   coord,
		Ledger:    h.ledger,
		Submitter: orch,
		Balances:  h.balances,
		Traces:    h.traces,
		Events:    h.events,
		Enricher:  h.enricher,
		Config:    cfg,
		Now:       clock,
	})
	return h
}

func curveHints() domain.VenueHints {
	return domain.VenueHints{
		Creator: testCreator,
		Curve: &domain.CurveParams{
			VirtualSolReserves:   30_000_000_000,
			VirtualTokenReserves: 1_073_000_000_000_000,
			RealTokenReserves:    793_100_000_000_000,
		},
	}
}

func pumpSignal(id string, dir domain.Direction) domain.TradeSignal {
	sig := domain.TradeSignal{
		ID:          id,
		Source:      testSource,
		Mint:        testMint,
		Direction:   dir,
		Amount:      1_000_000_000_000,
		SolAmount:   30_000_000,
		ProgramRefs: []string{venue.PumpFunProgram},
		Slot:        99,
		ObservedAt:  time.Date(2026, 10, 19, 11, 59, 59, 0, time.UTC),
		Signature:   "src-" + id,
		Hints:       curveHints(),
	}
	if dir == domain.Sell {
		sig.SolAmount = 27_000_000
		sig.PctOfBalance = 10_000
	}
	return sig
}

func TestHandle_HappyPath(t *testing.T) {
	relay := &channel{name: submit.ChannelRelay, slot: 100}
	h := newHarness(t, Config{}, relay)

	trace := h.engine.Handle(context.Background(), pumpSignal("s1", domain.Buy))

	assert.Equal(t, domain.StateSettled, trace.FinalState)
	assert.Equal(t, domain.VenuePumpFun, trace.Venue)
	assert.Equal(t, 1, trace.Eligible)
	assert.Equal(t, 1, trace.Planned)
	assert.Equal(t, 1, trace.Confirmed)
	assert.Empty(t, trace.Reason)

	plans := relay.calls()
	require.Len(t, plans, 1)
	plan := plans[0]
	assert.Equal(t, uint64(3_000_000), plan.InputAmount)

	pos, ok := h.ledger.Get(testWallet, testMint)
	require.True(t, ok)
	assert.True(t, pos.IsOpen())
	assert.Equal(t, plan.ExpectedOutput, pos.Quantity)
	assert.Equal(t, plan.ID, pos.OpenedBy)

	bal, _ := h.balances.Get(testWallet)
	assert.Equal(t, uint64(997_000_000), bal)

	// The in-flight claim is released after settlement.
	ok, err := h.guard.TryAcquire(context.Background(), testWallet, testMint)
	require.NoError(t, err)
	assert.True(t, ok)

	stored, err := h.traces.GetByMint(context.Background(), testMint)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, domain.StateSettled, stored[0].FinalState)

	events := h.events.payloads[DefaultSettlementStream]
	require.Len(t, events, 1)
	assert.Contains(t, events[0], `"status":"confirmed"`)
	assert.Contains(t, events[0], `"slot":100`)
}

func TestHandle_BuyThenSellClosesPosition(t *testing.T) {
	relay := &channel{name: submit.ChannelRelay, slot: 100}
	h := newHarness(t, Config{}, relay)

	buy := h.engine.Handle(context.Background(), pumpSignal("s1", domain.Buy))
	require.Equal(t, 1, buy.Confirmed)

	// A second buy is refused while the position is open.
	again := h.engine.Handle(context.Background(), pumpSignal("s2", domain.Buy))
	assert.Equal(t, domain.StateClassified, again.FinalState)
	assert.Equal(t, ReasonNoWallets, again.Reason)

	sell := h.engine.Handle(context.Background(), pumpSignal("s3", domain.Sell))
	assert.Equal(t, domain.StateSettled, sell.FinalState)
	assert.Equal(t, 1, sell.Confirmed)

	pos, ok := h.ledger.Get(testWallet, testMint)
	require.True(t, ok)
	assert.False(t, pos.IsOpen())
	assert.Zero(t, pos.Quantity)
	assert.Equal(t, 2, pos.Fills)
}

func TestHandle_CacheMiss(t *testing.T) {
	relay := &channel{name: submit.ChannelRelay, slot: 100}
	h := newHarness(t, Config{}, relay)

	sig := pumpSignal("s1", domain.Buy)
	sig.Hints = domain.VenueHints{} // nothing known about the curve

	trace := h.engine.Handle(context.Background(), sig)

	assert.Equal(t, domain.StateClassified, trace.FinalState)
	assert.Equal(t, ReasonNothingPlanned, trace.Reason)
	assert.Equal(t, 1, trace.Failed)
	assert.Empty(t, relay.calls())

	_, ok := h.ledger.Get(testWallet, testMint)
	assert.False(t, ok)

	ok, err := h.guard.TryAcquire(context.Background(), testWallet, testMint)
	require.NoError(t, err)
	assert.True(t, ok, "claim must be released after a build failure")
	assert.Equal(t, []string{testMint}, h.enricher.mints)
}

func TestHandle_ClassificationMiss(t *testing.T) {
	relay := &channel{name: submit.ChannelRelay, slot: 100}
	h := newHarness(t, Config{}, relay)

	sig := pumpSignal("s1", domain.Buy)
	sig.ProgramRefs = []string{"11111111111111111111111111111111"}

	trace := h.engine.Handle(context.Background(), sig)
	assert.Equal(t, domain.StateObserved, trace.FinalState)
	assert.Equal(t, ReasonUnclassified, trace.Reason)
	assert.Empty(t, relay.calls())
}

func TestHandle_BundleTimeoutRelayConfirms(t *testing.T) {
	bundle := &channel{name: submit.ChannelBundle} // never lands
	relay := &channel{name: submit.ChannelRelay, slot: 101, delay: 20 * time.Millisecond}
	h := newHarness(t, Config{}, bundle, relay)

	trace := h.engine.Handle(context.Background(), pumpSignal("s1", domain.Buy))

	assert.Equal(t, domain.StateSettled, trace.FinalState)
	assert.Equal(t, 1, trace.Confirmed)
	assert.Len(t, bundle.calls(), 1)

	pos, ok := h.ledger.Get(testWallet, testMint)
	require.True(t, ok)
	assert.Equal(t, relay.calls()[0].ExpectedOutput, pos.Quantity)

	events := h.events.payloads[DefaultSettlementStream]
	require.Len(t, events, 1)
	assert.Contains(t, events[0], `"channel":"relay"`)
	assert.Contains(t, events[0], `"slot":101`)
}

func TestHandle_AllChannelsFailLeavesLedger(t *testing.T) {
	relay := &channel{name: submit.ChannelRelay, slot: 1, err: errors.New("rejected")}
	h := newHarness(t, Config{}, relay)

	trace := h.engine.Handle(context.Background(), pumpSignal("s1", domain.Buy))
	assert.Equal(t, domain.StateSettled, trace.FinalState)
	assert.Equal(t, 0, trace.Confirmed)
	assert.Equal(t, 1, trace.Failed)

	_, ok := h.ledger.Get(testWallet, testMint)
	assert.False(t, ok)
	bal, _ := h.balances.Get(testWallet)
	assert.Equal(t, uint64(1_000_000_000), bal)
}

func TestHandle_FreshMint(t *testing.T) {
	relay := &channel{name: submit.ChannelRelay, slot: 100}
	h := newHarness(t, Config{FreshMintWindow: time.Minute}, relay)

	created := pumpSignal("s1", domain.Buy)
	created.Hints.MintCreated = true
	trace := h.engine.Handle(context.Background(), created)
	assert.Equal(t, domain.StateObserved, trace.FinalState)
	assert.Equal(t, ReasonFreshMint, trace.Reason)

	// Later trades of the mint stay filtered inside the window.
	h.now = h.now.Add(30 * time.Second)
	trace = h.engine.Handle(context.Background(), pumpSignal("s2", domain.Buy))
	assert.Equal(t, ReasonFreshMint, trace.Reason)
	assert.Empty(t, relay.calls())

	h.now = h.now.Add(time.Minute)
	trace = h.engine.Handle(context.Background(), pumpSignal("s3", domain.Buy))
	assert.Equal(t, domain.StateSettled, trace.FinalState)
	assert.Len(t, relay.calls(), 1)
}

func TestHandle_DryRun(t *testing.T) {
	relay := &channel{name: submit.ChannelRelay, slot: 100}
	h := newHarness(t, Config{DryRun: true}, relay)

	trace := h.engine.Handle(context.Background(), pumpSignal("s1", domain.Buy))
	assert.Equal(t, domain.StatePlanned, trace.FinalState)
	assert.Equal(t, ReasonDryRun, trace.Reason)
	assert.Equal(t, 1, trace.Planned)
	assert.Empty(t, relay.calls())

	ok, err := h.guard.TryAcquire(context.Background(), testWallet, testMint)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRun_ProcessesUntilClosed(t *testing.T) {
	relay := &channel{name: submit.ChannelRelay, slot: 100, delay: 10 * time.Millisecond}
	h := newHarness(t, Config{}, relay)

	signals := make(chan domain.TradeSignal, 2)
	signals <- pumpSignal("s1", domain.Buy)
	miss := pumpSignal("s2", domain.Buy)
	miss.ProgramRefs = nil
	signals <- miss
	close(signals)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, h.engine.Run(ctx, signals))

	assert.Equal(t, 2, h.traces.Len())
	_, ok := h.ledger.Get(testWallet, testMint)
	assert.True(t, ok)
}

func TestFreshMints(t *testing.T) {
	f := NewFreshMints(time.Minute, 2)
	t0 := time.Unix(1_000, 0)

	f.Note("a", t0)
	f.Note("a", t0.Add(time.Second)) // later sighting keeps the earliest
	got, ok := f.CreatedAt("a")
	require.True(t, ok)
	assert.Equal(t, t0, got)

	f.Note("b", t0.Add(2*time.Second))
	f.Note("c", t0.Add(3*time.Second)) // evicts "a"
	_, ok = f.CreatedAt("a")
	assert.False(t, ok)
	assert.Equal(t, 2, f.Len())

	assert.True(t, f.IsFresh(t0, t0.Add(59*time.Second)))
	assert.False(t, f.IsFresh(t0, t0.Add(time.Minute)))
	assert.False(t, f.IsFresh(time.Time{}, t0))

	f.Cleanup(t0.Add(time.Minute + 2*time.Second))
	assert.Equal(t, 1, f.Len())
}

type slowTraceStore struct {
	*memory.TraceStore
	delay time.Duration
}

func (s *slowTraceStore) Insert(ctx context.Context, t *domain.SignalTrace) error {
	select {
	case <-time.After(s.delay):
	case <-ctx.Done():
		return ctx.Err()
	}
	return s.TraceStore.Insert(ctx, t)
}

func TestRun_TraceWritesDoNotDelayNextSignal(t *testing.T) {
	cache := venue.NewCache(venue.Options{})
	store := &slowTraceStore{TraceStore: memory.NewTraceStore(), delay: 200 * time.Millisecond}
	e := New(Options{
		Router: router.New(cache, zerolog.Nop()),
		Venues: cache,
		Traces: store,
	})

	signals := make(chan domain.TradeSignal)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx, signals) }()

	start := time.Now()
	for _, id := range []string{"m1", "m2", "m3", "m4", "m5"} {
		miss := pumpSignal(id, domain.Buy)
		miss.ProgramRefs = nil
		signals <- miss
	}
	accepted := time.Since(start)
	close(signals)

	require.NoError(t, <-done)
	assert.Less(t, accepted, 400*time.Millisecond, "unclassified signals waited on trace writes")
	assert.Equal(t, 5, store.Len(), "Run drains queued traces before returning")
}

func TestTraceWriter_DropsWhenFull(t *testing.T) {
	store := memory.NewTraceStore()
	w := NewTraceWriter(store, 2, time.Second, zerolog.Nop())

	assert.True(t, w.Offer(domain.SignalTrace{SignalID: "a"}))
	assert.True(t, w.Offer(domain.SignalTrace{SignalID: "b"}))
	assert.False(t, w.Offer(domain.SignalTrace{SignalID: "c"}))
	assert.Equal(t, 2, w.Pending())

	w.Flush(context.Background())
	assert.Equal(t, 0, w.Pending())
	assert.Equal(t, 2, store.Len())

	// Duplicates are ignored rather than retried.
	assert.True(t, w.Offer(domain.SignalTrace{SignalID: "a"}))
	w.Flush(context.Background())
	assert.Equal(t, 2, store.Len())
}

func TestTraceWriter_RunDrainsOnCancel(t *testing.T) {
	store := memory.NewTraceStore()
	w := NewTraceWriter(store, 0, time.Second, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	w.Offer(domain.SignalTrace{SignalID: "late"})
	require.NoError(t, w.Run(ctx))
	assert.Equal(t, 1, store.Len())
}
