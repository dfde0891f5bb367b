// Package ingestion turns the live transaction feed into trade signals.
package ingestion

import (
	"context"

	"solana-copy-trader/internal/domain"
)

// Source provides normalized observations from an external feed.
type Source interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Subscribe returns a channel of observations in feed order.
	// The channel is closed when ctx is cancelled or the feed ends.
	Subscribe(ctx context.Context) (<-chan domain.Observation, error)
}
