package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// PositionStore is an in-memory implementation of storage.PositionStore.
type PositionStore struct {
	mu   sync.RWMutex
	data map[domain.PositionKey]*domain.Position
}

// NewPositionStore creates a new in-memory position store.
func NewPositionStore() *PositionStore {
	return &PositionStore{
		data: make(map[domain.PositionKey]*domain.Position),
	}
}

// Upsert inserts or replaces the position for its (wallet, mint).
func (s *PositionStore) Upsert(_ context.Context, p *domain.Position) error {
	if p == nil || p.Wallet == "" || p.Mint == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	copy := *p
	s.data[p.Key()] = &copy
	return nil
}

// Get retrieves one position. Returns ErrNotFound if not exists.
func (s *PositionStore) Get(_ context.Context, wallet, mint string) (*domain.Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, exists := s.data[domain.PositionKey{Wallet: wallet, Mint: mint}]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *p
	return &copy, nil
}

// List retrieves every position ordered by wallet, mint.
func (s *PositionStore) List(_ context.Context) ([]*domain.Position, error) {
	return s.list(false), nil
}

// ListOpen retrieves open positions ordered by wallet, mint.
func (s *PositionStore) ListOpen(_ context.Context) ([]*domain.Position, error) {
	return s.list(true), nil
}

func (s *PositionStore) list(openOnly bool) []*domain.Position {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Position, 0, len(s.data))
	for _, p := range s.data {
		if openOnly && !p.IsOpen() {
			continue
		}
		copy := *p
		result = append(result, &copy)
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].Wallet != result[j].Wallet {
			return result[i].Wallet < result[j].Wallet
		}
		return result[i].Mint < result[j].Mint
	})
	return result
}

var _ storage.PositionStore = (*PositionStore)(nil)
