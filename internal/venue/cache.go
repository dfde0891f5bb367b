package venue

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"solana-copy-trader/internal/domain"
)

const defaultShards = 32

// Options configures a Cache.
type Options struct {
	Shards int
	Logger *zerolog.Logger
	// OnUpdate is called after every successful mutation with a copy of the
	// new state. It runs on the caller's goroutine and must not block.
	OnUpdate func(domain.VenueState)
	// Now overrides the clock in tests.
	Now func() time.Time
}

type shard struct {
	mu     sync.RWMutex
	states map[string]*domain.VenueState
}

// Cache is the in-memory per-mint venue knowledge base. Lookups take a read
// lock on one shard and never perform I/O.
type Cache struct {
	shards   []*shard
	onUpdate func(domain.VenueState)
	now      func() time.Time
	log      zerolog.Logger
}

// NewCache creates an empty cache.
func NewCache(opts Options) *Cache {
	n := opts.Shards
	if n <= 0 {
		n = defaultShards
	}
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}

	c := &Cache{
		shards:   make([]*shard, n),
		onUpdate: opts.OnUpdate,
		now:      now,
		log:      logger.With().Str("component", "venue_cache").Logger(),
	}
	for i := range c.shards {
		c.shards[i] = &shard{states: make(map[string]*domain.VenueState)}
	}
	return c
}

func (c *Cache) shardFor(mint string) *shard {
	h := fnv.New32a()
	h.Write([]byte(mint))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

// Get returns a copy of the state for mint.
func (c *Cache) Get(mint string) (domain.VenueState, bool) {
	s := c.shardFor(mint)
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.states[mint]
	if !ok {
		return domain.VenueState{}, false
	}
	return st.Clone(), true
}

// Upsert merges incoming into the cached state and returns the result.
// Fields absent from incoming never erase cached ones. Observations of the
// venue a mint migrated away from are ignored except for creator and
// creation time.
func (c *Cache) Upsert(incoming domain.VenueState) domain.VenueState {
	if incoming.Mint == "" {
		return incoming
	}

	s := c.shardFor(incoming.Mint)
	s.mu.Lock()
	cur, ok := s.states[incoming.Mint]
	if !ok {
		cur = &domain.VenueState{Mint: incoming.Mint}
		s.states[incoming.Mint] = cur
	}
	merge(cur, incoming)
	cur.UpdatedAt = c.now()
	out := cur.Clone()
	s.mu.Unlock()

	c.notify(out)
	return out
}

// MarkMigrated moves mint to venue to, dropping the previous venue's params.
// Repeated calls with the same target are no-ops.
func (c *Cache) MarkMigrated(mint string, to domain.Venue) domain.VenueState {
	s := c.shardFor(mint)
	s.mu.Lock()
	cur, ok := s.states[mint]
	if !ok {
		cur = &domain.VenueState{Mint: mint}
		s.states[mint] = cur
	}
	if cur.Migrated && cur.Venue == to {
		out := cur.Clone()
		s.mu.Unlock()
		return out
	}

	from := cur.Venue
	cur.MigratedFrom = from
	cur.Venue = to
	cur.Migrated = true
	cur.Curve = nil
	cur.Pool = nil
	cur.UpdatedAt = c.now()
	out := cur.Clone()
	s.mu.Unlock()

	c.log.Info().Str("mint", mint).Stringer("from", from).Stringer("to", to).Msg("mint migrated")
	c.notify(out)
	return out
}

// Len returns the number of cached mints.
func (c *Cache) Len() int {
	n := 0
	for _, s := range c.shards {
		s.mu.RLock()
		n += len(s.states)
		s.mu.RUnlock()
	}
	return n
}

// Snapshot returns copies of every cached state.
func (c *Cache) Snapshot() []domain.VenueState {
	var out []domain.VenueState
	for _, s := range c.shards {
		s.mu.RLock()
		for _, st := range s.states {
			out = append(out, st.Clone())
		}
		s.mu.RUnlock()
	}
	return out
}

func (c *Cache) notify(st domain.VenueState) {
	if c.onUpdate != nil {
		c.onUpdate(st)
	}
}

func merge(cur *domain.VenueState, in domain.VenueState) {
	if in.Creator != "" {
		cur.Creator = in.Creator
	}
	if !in.CreatedAt.IsZero() && (cur.CreatedAt.IsZero() || in.CreatedAt.Before(cur.CreatedAt)) {
		cur.CreatedAt = in.CreatedAt
	}

	stale := cur.Migrated && in.Venue != domain.VenueUnknown && in.Venue == cur.MigratedFrom
	if stale {
		return
	}

	if in.Venue != domain.VenueUnknown && !cur.Migrated {
		cur.Venue = in.Venue
	}
	if in.Curve != nil {
		cur.Curve = mergeCurve(cur.Curve, in.Curve)
	}
	if in.Pool != nil {
		cur.Pool = mergePool(cur.Pool, in.Pool)
	}
}

// mergeCurve overwrites only the reserves present in the update. Complete is
// sticky.
func mergeCurve(cur, in *domain.CurveParams) *domain.CurveParams {
	out := &domain.CurveParams{}
	if cur != nil {
		*out = *cur
	}
	if in.VirtualSolReserves > 0 {
		out.VirtualSolReserves = in.VirtualSolReserves
	}
	if in.VirtualTokenReserves > 0 {
		out.VirtualTokenReserves = in.VirtualTokenReserves
	}
	if in.RealSolReserves > 0 {
		out.RealSolReserves = in.RealSolReserves
	}
	if in.RealTokenReserves > 0 {
		out.RealTokenReserves = in.RealTokenReserves
	}
	if in.Complete {
		out.Complete = true
	}
	return out
}

func mergePool(cur, in *domain.PoolParams) *domain.PoolParams {
	out := &domain.PoolParams{}
	if cur != nil {
		*out = *cur
	}
	if in.Address != "" {
		out.Address = in.Address
	}
	if in.BaseReserve > 0 {
		out.BaseReserve = in.BaseReserve
	}
	if in.QuoteReserve > 0 {
		out.QuoteReserve = in.QuoteReserve
	}
	if in.FeeBps > 0 {
		out.FeeBps = in.FeeBps
	}
	if len(in.Accounts) > 0 {
		accounts := make(map[string]string, len(out.Accounts)+len(in.Accounts))
		for k, v := range out.Accounts {
			accounts[k] = v
		}
		for k, v := range in.Accounts {
			if v != "" {
				accounts[k] = v
			}
		}
		out.Accounts = accounts
	} else if out.Accounts != nil {
		accounts := make(map[string]string, len(out.Accounts))
		for k, v := range out.Accounts {
			accounts[k] = v
		}
		out.Accounts = accounts
	}
	return out
}
