// Package engine drives each trade signal through classification, wallet
// selection, planning, submission and settlement.
package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"solana-copy-trader/internal/builder"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/idhash"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/storage"
	"solana-copy-trader/internal/strategy"
)

// Classifier determines a signal's venue. Satisfied by *router.Router.
type Classifier interface {
	Classify(sig domain.TradeSignal) (domain.Venue, error)
}

// VenueReader reads cached venue state. Satisfied by *venue.Cache.
type VenueReader interface {
	Get(mint string) (domain.VenueState, bool)
}

// Planner builds unsigned plans. Satisfied by *builder.Registry.
type Planner interface {
	Build(sig domain.TradeSignal, st domain.VenueState, wallet domain.TrackedWallet, p builder.Params) (*domain.BuildPlan, error)
}

// WalletSelector picks the wallets that act on a signal. Satisfied by
// *wallet.Coordinator.
type WalletSelector interface {
	Eligible(ctx context.Context, sig domain.TradeSignal) []domain.TrackedWallet
	Release(ctx context.Context, wallet, mint string)
}

// PositionBook reads and mutates positions. Satisfied by *ledger.Ledger.
type PositionBook interface {
	Get(wallet, mint string) (domain.Position, bool)
	OnConfirmed(fill domain.Fill) (domain.Position, error)
}

// Submitter lands plans. Satisfied by *submit.Orchestrator.
type Submitter interface {
	Submit(ctx context.Context, plan *domain.BuildPlan) (domain.SubmissionOutcome, error)
}

// BalanceDebiter adjusts the cached balance after a buy. Satisfied by
// *wallet.BalanceBook.
type BalanceDebiter interface {
	Debit(wallet string, lamports uint64)
}

// Enricher fills venue cache misses in the background.
type Enricher interface {
	Request(mint string) bool
}

// ExecParams are the per-direction execution knobs.
type ExecParams struct {
	SlippageBps uint64
	PriorityFee uint64 // lamports
	// MinSolOut is the lamport floor of a sell's min-output.
	MinSolOut uint64
}

// Config holds the engine's tunables.
type Config struct {
	// FreshMintWindow skips mints created more recently than this.
	// Zero disables the filter.
	FreshMintWindow  time.Duration
	DryRun           bool
	Buy              ExecParams
	Sell             ExecParams
	ComputeUnitLimit uint32
	SettlementStream string
}

// Options configures an Engine.
type Options struct {
	Router    Classifier
	Venues    VenueReader
	Builders  Planner
	Wallets   WalletSelector
	Ledger    PositionBook
	Submitter Submitter
	Balances  BalanceDebiter
	Policy    *strategy.Policy

	// Optional sinks.
	Traces storage.TraceStore
	// TraceQueue bounds traces waiting to be written. Zero uses a default.
	TraceQueue int
	Events     Publisher
	// Enricher is asked to fetch venue params after a cache miss. Optional.
	Enricher Enricher

	Config Config
	Logger *zerolog.Logger
	Now    func() time.Time
}

// Engine is the per-signal state machine.
type Engine struct {
	router    Classifier
	venues    VenueReader
	builders  Planner
	wallets   WalletSelector
	ledger    PositionBook
	submitter Submitter
	balances  BalanceDebiter
	policy    *strategy.Policy
	traces    *TraceWriter
	events    Publisher
	enricher  Enricher
	fresh     *FreshMints

	cfg Config
	now func() time.Time
	log zerolog.Logger
}

// New creates an engine.
func New(opts Options) *Engine {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	policy := opts.Policy
	if policy == nil {
		policy, _ = strategy.FromConfig(strategy.Config{}, nil)
	}
	cfg := opts.Config
	if cfg.SettlementStream == "" {
		cfg.SettlementStream = DefaultSettlementStream
	}
	if cfg.Buy.SlippageBps == 0 {
		cfg.Buy.SlippageBps = builder.DefaultSlippageBps
	}
	if cfg.Sell.SlippageBps == 0 {
		cfg.Sell.SlippageBps = builder.DefaultSlippageBps
	}
	var traces *TraceWriter
	if opts.Traces != nil {
		traces = NewTraceWriter(opts.Traces, opts.TraceQueue, 0, logger)
	}
	return &Engine{
		router:    opts.Router,
		venues:    opts.Venues,
		builders:  opts.Builders,
		wallets:   opts.Wallets,
		ledger:    opts.Ledger,
		submitter: opts.Submitter,
		balances:  opts.Balances,
		policy:    policy,
		traces:    traces,
		events:    opts.Events,
		enricher:  opts.Enricher,
		fresh:     NewFreshMints(cfg.FreshMintWindow, 0),
		cfg:       cfg,
		now:       now,
		log:       logger.With().Str("component", "engine").Logger(),
	}
}

// Trace stop reasons.
const (
	ReasonFreshMint      = "fresh_mint"
	ReasonUnclassified   = "classification_miss"
	ReasonNoWallets      = "no_eligible_wallets"
	ReasonNothingPlanned = "no_plans"
	ReasonDryRun         = "dry_run"
)

// pending is a signal that has been planned and awaits submission.
type pending struct {
	sig   domain.TradeSignal
	trace *domain.SignalTrace
	plans []*domain.BuildPlan
}

// Handle processes sig to completion, including recording its trace, and
// returns the trace. Per-signal failures end in the trace, never in an error.
func (e *Engine) Handle(ctx context.Context, sig domain.TradeSignal) domain.SignalTrace {
	p := e.plan(ctx, sig)
	if p.plans != nil {
		e.submitAll(ctx, p)
	}
	e.finish(p.trace)
	if e.traces != nil {
		e.traces.Flush(context.WithoutCancel(ctx))
	}
	return *p.trace
}

// Run consumes signals until the channel closes or ctx is cancelled.
// Classification, wallet selection and planning happen in arrival order;
// each signal's submissions then proceed in their own goroutine so a slow
// landing never delays the next signal. Traces are written in the
// background. Run waits for in-flight submissions and queued traces before
// returning.
func (e *Engine) Run(ctx context.Context, signals <-chan domain.TradeSignal) error {
	if e.traces != nil {
		wctx, stop := context.WithCancel(context.WithoutCancel(ctx))
		done := make(chan struct{})
		go func() {
			defer close(done)
			_ = e.traces.Run(wctx)
		}()
		defer func() {
			stop()
			<-done
		}()
	}

	var wg sync.WaitGroup
	defer wg.Wait()

	cleanup := time.NewTicker(time.Minute)
	defer cleanup.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-cleanup.C:
			e.fresh.Cleanup(e.now())
		case sig, ok := <-signals:
			if !ok {
				return nil
			}
			p := e.plan(ctx, sig)
			if p.plans == nil {
				e.finish(p.trace)
				continue
			}
			wg.Add(1)
			go func(p *pending) {
				defer wg.Done()
				e.submitAll(ctx, p)
				e.finish(p.trace)
			}(p)
		}
	}
}

// plan runs the synchronous part of the state machine: fresh-mint filter,
// classification, eligibility and building. plans is nil when the signal
// stops before submission.
func (e *Engine) plan(ctx context.Context, sig domain.TradeSignal) *pending {
	trace := &domain.SignalTrace{
		SignalID:   sig.ID,
		Source:     sig.Source,
		Mint:       sig.Mint,
		Direction:  sig.Direction,
		FinalState: domain.StateObserved,
		ObservedAt: sig.ObservedAt,
	}
	p := &pending{sig: sig, trace: trace}
	observability.RecordSignalState(string(domain.StateObserved))

	log := e.log.With().Str("signal_id", sig.ID).Str("mint", sig.Mint).Str("side", string(sig.Direction)).Logger()

	if e.isFresh(sig) {
		trace.Reason = ReasonFreshMint
		observability.RecordFreshMintSkip()
		log.Debug().Msg("fresh mint skipped")
		return p
	}

	v, err := e.router.Classify(sig)
	if err != nil {
		trace.Reason = ReasonUnclassified
		observability.RecordClassificationMiss()
		log.Debug().Err(err).Msg("not classified")
		return p
	}
	trace.Venue = v
	trace.FinalState = domain.StateClassified
	observability.RecordSignalState(string(domain.StateClassified))

	st, _ := e.venues.Get(sig.Mint)
	st.Mint = sig.Mint
	st.Venue = v

	eligible := e.wallets.Eligible(ctx, sig)
	trace.Eligible = len(eligible)
	if len(eligible) == 0 {
		trace.Reason = ReasonNoWallets
		log.Debug().Msg("no eligible wallets")
		return p
	}

	sizer := e.policy.For(sig.Direction)
	exec := e.cfg.Buy
	if sig.Direction == domain.Sell {
		exec = e.cfg.Sell
	}

	enrichRequested := false
	for _, w := range eligible {
		start := time.Now()
		plan, err := e.buildFor(sig, st, w, sizer, exec)
		if err != nil {
			reason := "error"
			var be *domain.BuildError
			if errors.As(err, &be) {
				reason = be.Reason
			}
			if reason == domain.ReasonCacheMiss && e.enricher != nil && !enrichRequested {
				enrichRequested = true
				e.enricher.Request(sig.Mint)
			}
			observability.RecordBuild(string(v), time.Since(start), reason)
			trace.Failed++
			e.release(ctx, sig, w.Address)
			log.Info().Err(err).Str("wallet", w.Name).Msg("build failed")
			continue
		}
		observability.RecordBuild(string(v), time.Since(start), "")
		p.plans = append(p.plans, plan)
	}

	trace.Planned = len(p.plans)
	if len(p.plans) == 0 {
		trace.Reason = ReasonNothingPlanned
		p.plans = nil
		return p
	}
	trace.FinalState = domain.StatePlanned
	observability.RecordSignalState(string(domain.StatePlanned))

	if e.cfg.DryRun {
		for _, plan := range p.plans {
			log.Info().
				Str("wallet", plan.Wallet).
				Str("venue", string(plan.Venue)).
				Uint64("input", plan.InputAmount).
				Uint64("expected_output", plan.ExpectedOutput).
				Uint64("min_output", plan.MinOutput).
				Msg("dry run plan")
			e.release(ctx, sig, plan.Wallet)
		}
		trace.Reason = ReasonDryRun
		p.plans = nil
	}
	return p
}

func (e *Engine) buildFor(sig domain.TradeSignal, st domain.VenueState, w domain.TrackedWallet, sizer strategy.Sizer, exec ExecParams) (*domain.BuildPlan, error) {
	var pos *domain.Position
	if cur, ok := e.ledger.Get(w.Address, sig.Mint); ok {
		pos = &cur
	}
	amount, err := sizer.Size(sig, w, pos)
	if err != nil {
		var be *domain.BuildError
		if errors.As(err, &be) && be.Venue == domain.VenueUnknown {
			be.Venue = st.Venue
		}
		return nil, err
	}
	return e.builders.Build(sig, st, w, builder.Params{
		Amount:           amount,
		SlippageBps:      exec.SlippageBps,
		PriorityFee:      exec.PriorityFee,
		ComputeUnitLimit: e.cfg.ComputeUnitLimit,
		MinSellOutput:    exec.MinSolOut,
	})
}

// isFresh applies the fresh-mint policy. A creation observed on this
// signal is remembered so later trades of the mint are filtered too.
func (e *Engine) isFresh(sig domain.TradeSignal) bool {
	if e.cfg.FreshMintWindow <= 0 {
		return false
	}
	now := e.now()
	if sig.Hints.MintCreated {
		created := sig.ObservedAt
		if created.IsZero() {
			created = now
		}
		e.fresh.Note(sig.Mint, created)
	}

	if created, ok := e.fresh.CreatedAt(sig.Mint); ok && e.fresh.IsFresh(created, now) {
		return true
	}
	if st, ok := e.venues.Get(sig.Mint); ok && e.fresh.IsFresh(st.CreatedAt, now) {
		return true
	}
	return false
}

// submitAll submits every plan concurrently and settles each outcome.
func (e *Engine) submitAll(ctx context.Context, p *pending) {
	p.trace.FinalState = domain.StateSubmitted
	observability.RecordSignalState(string(domain.StateSubmitted))

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for _, plan := range p.plans {
		g.Go(func() error {
			confirmed := e.submitOne(ctx, p.sig, plan)
			mu.Lock()
			if confirmed {
				p.trace.Confirmed++
			} else {
				p.trace.Failed++
			}
			mu.Unlock()
			return nil
		})
	}
	_ = g.Wait()

	p.trace.FinalState = domain.StateSettled
	observability.RecordSignalState(string(domain.StateSettled))
	if !p.sig.ObservedAt.IsZero() {
		observability.RecordSignalLatency(e.now().Sub(p.sig.ObservedAt))
	}
}

// submitOne lands one plan and applies a confirmation to the ledger.
func (e *Engine) submitOne(ctx context.Context, sig domain.TradeSignal, plan *domain.BuildPlan) bool {
	defer e.release(ctx, sig, plan.Wallet)

	log := e.log.With().
		Str("plan_id", plan.ID).
		Str("wallet", plan.Wallet).
		Str("mint", plan.Mint).
		Str("venue", string(plan.Venue)).
		Logger()

	out, err := e.submitter.Submit(ctx, plan)
	e.publish(plan, out)
	if err != nil || !out.Confirmed() {
		log.Warn().Err(err).Str("status", string(out.Status)).Msg("plan not landed")
		return false
	}

	fill, err := fillFor(plan, out, e.now())
	if err != nil {
		log.Error().Err(err).Msg("cannot price fill")
		return true
	}
	pos, err := e.ledger.OnConfirmed(fill)
	switch {
	case errors.Is(err, domain.ErrDuplicateFill):
		log.Debug().Msg("fill already applied")
	case err != nil:
		log.Error().Err(err).Msg("ledger rejected fill")
	default:
		log.Info().
			Str("channel", out.Channel).
			Uint64("slot", out.Slot).
			Uint64("quantity", pos.Quantity).
			Str("realized_pnl", pos.RealizedPnL.String()).
			Msg("plan confirmed")
	}

	if plan.Direction == domain.Buy && e.balances != nil {
		e.balances.Debit(plan.Wallet, plan.InputAmount)
	}
	return true
}

// fillFor converts a confirmed plan into a ledger fill priced at the plan's
// expected amounts.
func fillFor(plan *domain.BuildPlan, out domain.SubmissionOutcome, at time.Time) (domain.Fill, error) {
	qty := plan.TokenQty()
	if qty == 0 {
		return domain.Fill{}, fmt.Errorf("plan %s has no token quantity", plan.ID)
	}
	price := decimal.NewFromUint64(plan.SolQty()).Div(decimal.NewFromUint64(qty))
	return domain.Fill{
		ID:        idhash.ComputeFillID(plan.ID, out.Signature),
		PlanID:    plan.ID,
		Wallet:    plan.Wallet,
		Mint:      plan.Mint,
		Direction: plan.Direction,
		Quantity:  qty,
		Price:     price,
		Slot:      out.Slot,
		At:        at,
	}, nil
}

// release frees the in-flight buy claim taken during eligibility.
func (e *Engine) release(ctx context.Context, sig domain.TradeSignal, wallet string) {
	if sig.Direction != domain.Buy {
		return
	}
	e.wallets.Release(context.WithoutCancel(ctx), wallet, sig.Mint)
}

// finish stamps the trace and queues it for writing.
func (e *Engine) finish(t *domain.SignalTrace) {
	t.FinishedAt = e.now()
	e.log.Debug().
		Str("signal_id", t.SignalID).
		Str("state", string(t.FinalState)).
		Str("reason", t.Reason).
		Int("planned", t.Planned).
		Int("confirmed", t.Confirmed).
		Msg("signal finished")

	if e.traces != nil && !e.traces.Offer(*t) {
		e.log.Warn().Str("signal_id", t.SignalID).Msg("trace queue full, trace dropped")
	}
}
