package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// TraceStore is an in-memory implementation of storage.TraceStore.
type TraceStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SignalTrace // keyed by signal ID
}

// NewTraceStore creates a new in-memory trace store.
func NewTraceStore() *TraceStore {
	return &TraceStore{
		data: make(map[string]*domain.SignalTrace),
	}
}

// Insert adds a trace. Returns ErrDuplicateKey if the signal ID exists.
func (s *TraceStore) Insert(_ context.Context, t *domain.SignalTrace) error {
	if t == nil || t.SignalID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[t.SignalID]; exists {
		return storage.ErrDuplicateKey
	}

	copy := *t
	s.data[t.SignalID] = &copy
	return nil
}

// GetByMint retrieves traces for a mint ordered by observed_at ASC.
func (s *TraceStore) GetByMint(_ context.Context, mint string) ([]*domain.SignalTrace, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SignalTrace
	for _, t := range s.data {
		if t.Mint == mint {
			copy := *t
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].ObservedAt.Before(result[j].ObservedAt)
	})
	return result, nil
}

// Len returns the number of stored traces.
func (s *TraceStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}

var _ storage.TraceStore = (*TraceStore)(nil)
