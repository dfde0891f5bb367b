package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sugawarayuuta/sonnet"

	"solana-copy-trader/internal/domain"
)

const venuePrefix = "copytrader:venue:"

// VenueStore mirrors venue cache entries so a restarted process, or a peer,
// can warm its cache without re-observing every mint.
type VenueStore struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewVenueStore creates a store whose entries expire after ttl. A zero ttl
// keeps entries forever.
func NewVenueStore(c *Client, ttl time.Duration) *VenueStore {
	return &VenueStore{rdb: c.Underlying(), ttl: ttl}
}

// PublishVenue stores st under its mint.
func (s *VenueStore) PublishVenue(ctx context.Context, st domain.VenueState) error {
	data, err := sonnet.Marshal(st)
	if err != nil {
		return fmt.Errorf("redis: encode venue %s: %w", st.Mint, err)
	}
	if err := s.rdb.Set(ctx, venuePrefix+st.Mint, data, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set venue %s: %w", st.Mint, err)
	}
	return nil
}

// GetVenue returns the stored state for mint. ok is false when absent.
func (s *VenueStore) GetVenue(ctx context.Context, mint string) (domain.VenueState, bool, error) {
	data, err := s.rdb.Get(ctx, venuePrefix+mint).Bytes()
	if err == redis.Nil {
		return domain.VenueState{}, false, nil
	}
	if err != nil {
		return domain.VenueState{}, false, fmt.Errorf("redis: get venue %s: %w", mint, err)
	}
	var st domain.VenueState
	if err := sonnet.Unmarshal(data, &st); err != nil {
		return domain.VenueState{}, false, fmt.Errorf("redis: decode venue %s: %w", mint, err)
	}
	return st, true, nil
}

// LoadVenues returns every stored state. Malformed entries are skipped.
func (s *VenueStore) LoadVenues(ctx context.Context) ([]domain.VenueState, error) {
	var out []domain.VenueState
	iter := s.rdb.Scan(ctx, 0, venuePrefix+"*", 500).Iterator()
	for iter.Next(ctx) {
		data, err := s.rdb.Get(ctx, iter.Val()).Bytes()
		if err == redis.Nil {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("redis: get %s: %w", iter.Val(), err)
		}
		var st domain.VenueState
		if sonnet.Unmarshal(data, &st) != nil {
			continue
		}
		out = append(out, st)
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("redis: scan venues: %w", err)
	}
	return out, nil
}
