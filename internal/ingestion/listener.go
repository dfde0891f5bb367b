package ingestion

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/idhash"
	"solana-copy-trader/internal/observability"
)

// ListenerOptions configures a Listener.
type ListenerOptions struct {
	DedupTTL time.Duration
	Logger   *zerolog.Logger
	Now      func() time.Time
}

// Listener merges every Source into one ordered stream of trade signals for
// the followed wallets.
type Listener struct {
	sources []Source
	wallets map[string]domain.SourceWallet
	dedup   *Dedup
	log     zerolog.Logger
	now     func() time.Time
}

// NewListener creates a listener following the enabled wallets.
func NewListener(sources []Source, wallets []domain.SourceWallet, opts ListenerOptions) *Listener {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	byAddr := make(map[string]domain.SourceWallet, len(wallets))
	for _, w := range wallets {
		if w.Enabled {
			byAddr[w.Address] = w
		}
	}

	return &Listener{
		sources: sources,
		wallets: byAddr,
		dedup:   NewDedup(opts.DedupTTL),
		log:     logger.With().Str("component", "listener").Logger(),
		now:     opts.Now,
	}
}

// Addresses returns the followed wallet addresses.
func (l *Listener) Addresses() []string {
	out := make([]string, 0, len(l.wallets))
	for addr := range l.wallets {
		out = append(out, addr)
	}
	return out
}

// Start subscribes every source and returns the merged signal stream. The
// stream is closed once all sources are exhausted or ctx is cancelled.
func (l *Listener) Start(ctx context.Context) (<-chan domain.TradeSignal, error) {
	type tagged struct {
		source string
		obs    domain.Observation
	}

	// Sources subscribed before a failing one are stopped through cancel.
	ctx, cancel := context.WithCancel(ctx)

	merged := make(chan tagged, 1000)
	var wg sync.WaitGroup
	for _, src := range l.sources {
		ch, err := src.Subscribe(ctx)
		if err != nil {
			cancel()
			return nil, fmt.Errorf("subscribe %s: %w", src.Name(), err)
		}
		l.log.Info().Str("source", src.Name()).Msg("source subscribed")

		wg.Add(1)
		go func(name string, ch <-chan domain.Observation) {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case obs, ok := <-ch:
					if !ok {
						return
					}
					select {
					case merged <- tagged{source: name, obs: obs}:
					case <-ctx.Done():
						return
					}
				}
			}
		}(src.Name(), ch)
	}
	go func() {
		wg.Wait()
		close(merged)
	}()

	out := make(chan domain.TradeSignal, 100)
	go func() {
		defer close(out)
		defer cancel()
		cleanup := time.NewTicker(time.Minute)
		defer cleanup.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-cleanup.C:
				l.dedup.Cleanup()
			case t, ok := <-merged:
				if !ok {
					return
				}
				observability.RecordObservation(t.source, t.obs.Slot)

				sig, ok := l.ToSignal(t.obs)
				if !ok {
					continue
				}
				if l.dedup.IsDuplicate(sig.ID) {
					observability.RecordDuplicate()
					continue
				}
				observability.RecordSignal(string(sig.Direction))

				select {
				case out <- sig:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

// ToSignal converts an observation into a trade signal. It returns false for
// wallets that are not followed, incomplete observations and buys below the
// wallet's minimum trade.
func (l *Listener) ToSignal(obs domain.Observation) (domain.TradeSignal, bool) {
	src, ok := l.wallets[obs.Wallet]
	if !ok {
		return domain.TradeSignal{}, false
	}
	if obs.Mint == "" || obs.Signature == "" || obs.Amount == 0 {
		return domain.TradeSignal{}, false
	}

	var pct uint64
	switch obs.Direction {
	case domain.Buy:
		if obs.SolAmount < src.MinTrade {
			l.log.Debug().
				Str("source", src.Label).
				Str("mint", obs.Mint).
				Uint64("sol", obs.SolAmount).
				Msg("below minimum trade")
			return domain.TradeSignal{}, false
		}
	case domain.Sell:
		pct = sellPct(obs.Amount, obs.PreBalance)
	default:
		return domain.TradeSignal{}, false
	}

	observed := obs.BlockTime
	if observed.IsZero() {
		observed = l.now().UTC()
	}

	return domain.TradeSignal{
		ID:           idhash.ComputeSignalID(obs.Signature, obs.Wallet, obs.Mint, obs.Direction),
		Source:       obs.Wallet,
		SourceLabel:  src.Label,
		Mint:         obs.Mint,
		Direction:    obs.Direction,
		Amount:       obs.Amount,
		SolAmount:    obs.SolAmount,
		PctOfBalance: pct,
		ProgramRefs:  obs.ProgramRefs,
		Slot:         obs.Slot,
		ObservedAt:   observed,
		Signature:    obs.Signature,
		Hints:        obs.Hints,
	}, true
}

// sellPct is the share of the pre-trade balance sold, in bps. An unknown
// balance counts as a full exit.
func sellPct(amount, pre uint64) uint64 {
	if pre == 0 || amount >= pre {
		return 10_000
	}
	return mulDivFloor(amount, 10_000, pre)
}
