package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// unlockLua deletes the key only while it still holds the caller's token, so
// an expired claim re-taken elsewhere is never released by the old holder.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// InflightLock bounds concurrent buys per (wallet, mint) across processes.
// Claims expire after ttl so a crashed holder cannot block a pair forever.
type InflightLock struct {
	rdb    *redis.Client
	unlock *redis.Script
	ttl    time.Duration

	mu     sync.Mutex
	tokens map[string]string
}

// NewInflightLock creates a lock whose claims expire after ttl.
func NewInflightLock(c *Client, ttl time.Duration) *InflightLock {
	if ttl <= 0 {
		ttl = time.Second
	}
	return &InflightLock{
		rdb:    c.Underlying(),
		unlock: redis.NewScript(unlockLua),
		ttl:    ttl,
		tokens: make(map[string]string),
	}
}

func inflightKey(wallet, mint string) string {
	return "copytrader:inflight:" + wallet + ":" + mint
}

// TryAcquire claims (wallet, mint). False means another buy holds it.
func (l *InflightLock) TryAcquire(ctx context.Context, wallet, mint string) (bool, error) {
	key := inflightKey(wallet, mint)
	token := uuid.New().String()

	ok, err := l.rdb.SetNX(ctx, key, token, l.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("redis: acquire %s: %w", key, err)
	}
	if !ok {
		return false, nil
	}

	l.mu.Lock()
	l.tokens[key] = token
	l.mu.Unlock()
	return true, nil
}

// Release frees (wallet, mint) if this process still holds it.
func (l *InflightLock) Release(ctx context.Context, wallet, mint string) {
	key := inflightKey(wallet, mint)

	l.mu.Lock()
	token, ok := l.tokens[key]
	delete(l.tokens, key)
	l.mu.Unlock()
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
	defer cancel()
	_ = l.unlock.Run(ctx, l.rdb, []string{key}, token).Err()
}
