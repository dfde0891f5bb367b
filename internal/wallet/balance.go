package wallet

import (
	"sync"
	"time"
)

// BalanceBook is an eventually consistent snapshot of wallet balances.
// Buys in flight reserve their size so concurrent gates see what is left.
type BalanceBook struct {
	mu       sync.RWMutex
	balances map[string]uint64
	reserved map[string]uint64
	updated  map[string]time.Time
}

// NewBalanceBook creates an empty book.
func NewBalanceBook() *BalanceBook {
	return &BalanceBook{
		balances: make(map[string]uint64),
		reserved: make(map[string]uint64),
		updated:  make(map[string]time.Time),
	}
}

// Set records the balance of wallet in lamports.
func (b *BalanceBook) Set(wallet string, lamports uint64) {
	b.mu.Lock()
	b.balances[wallet] = lamports
	b.updated[wallet] = time.Now()
	b.mu.Unlock()
}

// Get returns the last known balance. ok is false if never refreshed.
func (b *BalanceBook) Get(wallet string) (uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.balances[wallet]
	return v, ok
}

// Debit lowers the snapshot after a confirmed spend, until the next refresh.
func (b *BalanceBook) Debit(wallet string, lamports uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.balances[wallet] = sub(b.balances[wallet], lamports)
}

// UpdatedAt returns when wallet was last refreshed.
func (b *BalanceBook) UpdatedAt(wallet string) time.Time {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.updated[wallet]
}

// Available returns the known balance minus reservations.
func (b *BalanceBook) Available(wallet string) (uint64, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	v, ok := b.balances[wallet]
	if !ok {
		return 0, false
	}
	return sub(v, b.reserved[wallet]), true
}

// Reserve earmarks amount for an in-flight buy if the unreserved balance
// covers both floor and amount. It returns the unreserved balance seen.
func (b *BalanceBook) Reserve(wallet string, floor, amount uint64) (uint64, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	v, ok := b.balances[wallet]
	if !ok {
		return 0, false
	}
	avail := sub(v, b.reserved[wallet])
	if avail < floor || avail < amount {
		return avail, false
	}
	b.reserved[wallet] += amount
	return avail, true
}

// Unreserve returns a reservation taken by Reserve.
func (b *BalanceBook) Unreserve(wallet string, amount uint64) {
	b.mu.Lock()
	b.reserved[wallet] = sub(b.reserved[wallet], amount)
	if b.reserved[wallet] == 0 {
		delete(b.reserved, wallet)
	}
	b.mu.Unlock()
}

func sub(a, b uint64) uint64 {
	if a > b {
		return a - b
	}
	return 0
}
