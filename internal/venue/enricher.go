package venue

import (
	"context"
	"encoding/base64"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// AccountFetcher reads raw account data.
type AccountFetcher interface {
	GetAccountInfo(ctx context.Context, pubkey string) (*solana.AccountInfo, error)
}

// EnricherConfig configures an Enricher.
type EnricherConfig struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration // per fetch
	Logger    *zerolog.Logger
}

// Enricher fills cache misses asynchronously. Requesters never wait: a
// lookup issued while the fetch is in flight still sees the miss.
type Enricher struct {
	cache   *Cache
	rpc     AccountFetcher
	queue   chan string
	workers int
	timeout time.Duration
	log     zerolog.Logger

	inflight sync.Map // mint -> struct{}
}

// NewEnricher creates an enricher bound to cache.
func NewEnricher(cache *Cache, rpc AccountFetcher, cfg EnricherConfig) *Enricher {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1024
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 3 * time.Second
	}
	logger := zerolog.Nop()
	if cfg.Logger != nil {
		logger = *cfg.Logger
	}
	return &Enricher{
		cache:   cache,
		rpc:     rpc,
		queue:   make(chan string, cfg.QueueSize),
		workers: cfg.Workers,
		timeout: cfg.Timeout,
		log:     logger.With().Str("component", "enricher").Logger(),
	}
}

// Request enqueues mint for enrichment. Returns false when the mint is
// already queued or the queue is full.
func (e *Enricher) Request(mint string) bool {
	if _, loaded := e.inflight.LoadOrStore(mint, struct{}{}); loaded {
		return false
	}
	select {
	case e.queue <- mint:
		return true
	default:
		e.inflight.Delete(mint)
		e.log.Debug().Str("mint", mint).Msg("enrich queue full, dropping")
		return false
	}
}

// Run processes requests until ctx is done.
func (e *Enricher) Run(ctx context.Context) error {
	var wg sync.WaitGroup
	for i := 0; i < e.workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-ctx.Done():
					return
				case mint := <-e.queue:
					if err := e.Enrich(ctx, mint); err != nil && ctx.Err() == nil {
						e.log.Debug().Err(err).Str("mint", mint).Msg("enrich failed")
					}
					e.inflight.Delete(mint)
				}
			}
		}()
	}
	wg.Wait()
	return nil
}

// Enrich fetches on-chain state for mint and merges it into the cache.
// Only bonding-curve venues can be enriched from the mint alone.
func (e *Enricher) Enrich(ctx context.Context, mint string) error {
	st, ok := e.cache.Get(mint)
	if ok && st.Venue != domain.VenuePumpFun && st.Venue != domain.VenueUnknown {
		return nil
	}

	addr, err := BondingCurveAddress(mint)
	if err != nil {
		return err
	}

	fctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	info, err := e.rpc.GetAccountInfo(fctx, addr)
	if err != nil {
		return fmt.Errorf("fetch bonding curve %s: %w", addr, err)
	}
	if info == nil {
		return nil
	}
	if info.Owner != "" && info.Owner != PumpFunProgram {
		return fmt.Errorf("bonding curve %s owned by %s", addr, info.Owner)
	}

	data, err := base64.StdEncoding.DecodeString(info.Data)
	if err != nil {
		return fmt.Errorf("decode bonding curve data: %w", err)
	}
	curve, creator, err := DecodeBondingCurve(data)
	if err != nil {
		return err
	}

	e.cache.Upsert(domain.VenueState{
		Mint:    mint,
		Venue:   domain.VenuePumpFun,
		Curve:   &curve,
		Creator: creator,
	})
	e.log.Debug().Str("mint", mint).Uint64("vsr", curve.VirtualSolReserves).Msg("enriched")
	return nil
}
