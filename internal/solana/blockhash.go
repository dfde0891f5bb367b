package solana

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ErrNoBlockhash is returned before the first successful refresh.
var ErrNoBlockhash = errors.New("no recent blockhash")

// BlockhashSource is the subset of RPCClient the cache needs.
type BlockhashSource interface {
	GetLatestBlockhash(ctx context.Context) (*Blockhash, error)
}

// BlockhashCache keeps a recent blockhash warm so signing never waits on RPC.
type BlockhashCache struct {
	src      BlockhashSource
	interval time.Duration
	maxAge   time.Duration
	log      zerolog.Logger

	mu        sync.RWMutex
	current   Blockhash
	fetchedAt time.Time
}

// NewBlockhashCache creates a cache refreshed every interval. Hashes older
// than maxAge are rejected; a blockhash is valid for roughly 60 seconds.
func NewBlockhashCache(src BlockhashSource, interval, maxAge time.Duration, logger zerolog.Logger) *BlockhashCache {
	if interval <= 0 {
		interval = 2 * time.Second
	}
	if maxAge <= 0 {
		maxAge = 45 * time.Second
	}
	return &BlockhashCache{
		src:      src,
		interval: interval,
		maxAge:   maxAge,
		log:      logger.With().Str("component", "blockhash").Logger(),
	}
}

// Refresh fetches a new blockhash once.
func (c *BlockhashCache) Refresh(ctx context.Context) error {
	bh, err := c.src.GetLatestBlockhash(ctx)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.current = *bh
	c.fetchedAt = time.Now()
	c.mu.Unlock()
	return nil
}

// Get returns the cached blockhash, falling back to a synchronous fetch when
// the cached one is missing or too old.
func (c *BlockhashCache) Get(ctx context.Context) (Blockhash, error) {
	c.mu.RLock()
	bh, at := c.current, c.fetchedAt
	c.mu.RUnlock()

	if bh.Hash != "" && time.Since(at) < c.maxAge {
		return bh, nil
	}
	if err := c.Refresh(ctx); err != nil {
		return Blockhash{}, errors.Join(ErrNoBlockhash, err)
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current, nil
}

// Run refreshes on the interval until ctx is done.
func (c *BlockhashCache) Run(ctx context.Context) error {
	if err := c.Refresh(ctx); err != nil {
		c.log.Warn().Err(err).Msg("initial blockhash fetch failed")
	}

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if err := c.Refresh(ctx); err != nil && ctx.Err() == nil {
				c.log.Warn().Err(err).Msg("blockhash refresh failed")
			}
		}
	}
}
