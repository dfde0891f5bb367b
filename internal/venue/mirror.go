package venue

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"solana-copy-trader/internal/domain"
)

// StatePublisher writes venue state to a shared store.
type StatePublisher interface {
	PublishVenue(ctx context.Context, st domain.VenueState) error
}

// Mirror forwards cache updates to a StatePublisher off the hot path.
// Updates are dropped when the buffer is full.
type Mirror struct {
	pub     StatePublisher
	updates chan domain.VenueState
	timeout time.Duration
	log     zerolog.Logger
}

// NewMirror creates a mirror with the given buffer size.
func NewMirror(pub StatePublisher, buffer int, logger zerolog.Logger) *Mirror {
	if buffer <= 0 {
		buffer = 1024
	}
	return &Mirror{
		pub:     pub,
		updates: make(chan domain.VenueState, buffer),
		timeout: 2 * time.Second,
		log:     logger.With().Str("component", "venue_mirror").Logger(),
	}
}

// Offer queues st without blocking. Suitable as Options.OnUpdate.
func (m *Mirror) Offer(st domain.VenueState) {
	select {
	case m.updates <- st:
	default:
		m.log.Debug().Str("mint", st.Mint).Msg("mirror buffer full")
	}
}

// Run publishes queued updates until ctx is done.
func (m *Mirror) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case st := <-m.updates:
			pctx, cancel := context.WithTimeout(ctx, m.timeout)
			if err := m.pub.PublishVenue(pctx, st); err != nil && ctx.Err() == nil {
				m.log.Warn().Err(err).Str("mint", st.Mint).Msg("publish venue state")
			}
			cancel()
		}
	}
}
