package memory

import (
	"context"
	"sort"
	"sync"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/storage"
)

// AttemptStore is an in-memory implementation of storage.AttemptStore.
type AttemptStore struct {
	mu   sync.RWMutex
	data map[string]*domain.SubmissionAttempt // keyed by attempt ID
}

// NewAttemptStore creates a new in-memory attempt store.
func NewAttemptStore() *AttemptStore {
	return &AttemptStore{
		data: make(map[string]*domain.SubmissionAttempt),
	}
}

// InsertBulk adds attempts atomically. Fails entire batch on any duplicate.
func (s *AttemptStore) InsertBulk(_ context.Context, attempts []*domain.SubmissionAttempt) error {
	if len(attempts) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	batchKeys := make(map[string]struct{}, len(attempts))
	for _, a := range attempts {
		if a == nil || a.ID == "" || a.PlanID == "" {
			return storage.ErrInvalidInput
		}
		if _, exists := s.data[a.ID]; exists {
			return storage.ErrDuplicateKey
		}
		if _, exists := batchKeys[a.ID]; exists {
			return storage.ErrDuplicateKey
		}
		batchKeys[a.ID] = struct{}{}
	}

	for _, a := range attempts {
		copy := *a
		s.data[a.ID] = &copy
	}
	return nil
}

// GetByPlanID retrieves attempts for a plan ordered by submitted_at ASC.
func (s *AttemptStore) GetByPlanID(_ context.Context, planID string) ([]*domain.SubmissionAttempt, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.SubmissionAttempt
	for _, a := range s.data {
		if a.PlanID == planID {
			copy := *a
			result = append(result, &copy)
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if result[i].SubmittedAt.Equal(result[j].SubmittedAt) {
			return result[i].Channel < result[j].Channel
		}
		return result[i].SubmittedAt.Before(result[j].SubmittedAt)
	})
	return result, nil
}

var _ storage.AttemptStore = (*AttemptStore)(nil)
