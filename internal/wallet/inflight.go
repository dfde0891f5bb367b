package wallet

import (
	"context"
	"sync"
	"time"
)

// DefaultInflightTTL bounds how long a buy claim survives without Release.
// Claims are released at settlement; the TTL only recovers claims whose
// holder never settled, so it must outlast a submission deadline.
const DefaultInflightTTL = 30 * time.Second

// MemoryGuard is a process-local InflightGuard with expiring claims.
type MemoryGuard struct {
	mu   sync.Mutex
	held map[string]time.Time // wallet|mint -> claimed at
	ttl  time.Duration
	now  func() time.Time
}

// NewMemoryGuard creates a guard whose claims expire after ttl.
func NewMemoryGuard(ttl time.Duration) *MemoryGuard {
	if ttl <= 0 {
		ttl = DefaultInflightTTL
	}
	return &MemoryGuard{
		held: make(map[string]time.Time),
		ttl:  ttl,
		now:  time.Now,
	}
}

func guardKey(wallet, mint string) string {
	return wallet + "|" + mint
}

// TryAcquire claims (wallet, mint) unless an unexpired claim exists.
func (g *MemoryGuard) TryAcquire(_ context.Context, wallet, mint string) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	key := guardKey(wallet, mint)
	now := g.now()
	if at, ok := g.held[key]; ok && now.Sub(at) < g.ttl {
		return false, nil
	}
	g.held[key] = now
	return true, nil
}

// Release frees (wallet, mint).
func (g *MemoryGuard) Release(_ context.Context, wallet, mint string) {
	g.mu.Lock()
	delete(g.held, guardKey(wallet, mint))
	g.mu.Unlock()
}

// Cleanup removes expired claims.
func (g *MemoryGuard) Cleanup() {
	g.mu.Lock()
	defer g.mu.Unlock()

	now := g.now()
	for k, at := range g.held {
		if now.Sub(at) >= g.ttl {
			delete(g.held, k)
		}
	}
}

var _ InflightGuard = (*MemoryGuard)(nil)
