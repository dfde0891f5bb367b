package engine

import (
	"sync"
	"time"
)

// FreshMints remembers when mints were seen being created. Entries older
// than the window are useless and are dropped by Cleanup; the set is
// bounded by max, evicting the oldest entry.
type FreshMints struct {
	mu      sync.Mutex
	created map[string]time.Time
	window  time.Duration
	max     int
}

// NewFreshMints creates a tracker for the given window.
func NewFreshMints(window time.Duration, max int) *FreshMints {
	if max <= 0 {
		max = 10_000
	}
	return &FreshMints{
		created: make(map[string]time.Time),
		window:  window,
		max:     max,
	}
}

// Note records that mint was created at t. The earliest time wins.
func (f *FreshMints) Note(mint string, t time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if cur, ok := f.created[mint]; ok && !t.Before(cur) {
		return
	}
	if len(f.created) >= f.max {
		f.evictOldest()
	}
	f.created[mint] = t
}

// CreatedAt returns when mint was seen being created.
func (f *FreshMints) CreatedAt(mint string) (time.Time, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.created[mint]
	return t, ok
}

// IsFresh reports whether created lies within the window before now.
// A zero window disables the filter.
func (f *FreshMints) IsFresh(created, now time.Time) bool {
	if f.window <= 0 || created.IsZero() {
		return false
	}
	return now.Sub(created) < f.window
}

// Cleanup drops entries that can no longer be fresh.
func (f *FreshMints) Cleanup(now time.Time) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for m, t := range f.created {
		if now.Sub(t) >= f.window {
			delete(f.created, m)
		}
	}
}

// Len returns the number of tracked mints.
func (f *FreshMints) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

func (f *FreshMints) evictOldest() {
	var (
		oldest string
		at     time.Time
	)
	for m, t := range f.created {
		if oldest == "" || t.Before(at) {
			oldest, at = m, t
		}
	}
	delete(f.created, oldest)
}
