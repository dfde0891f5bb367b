package submit

import (
	"context"
	"fmt"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
)

// RelayChannel sends the transaction straight to a fast relay endpoint,
// skipping preflight, with node-side retries disabled.
type RelayChannel struct {
	sender    solana.Sender
	confirmer *Confirmer
}

// NewRelayChannel creates a relay channel.
func NewRelayChannel(sender solana.Sender, confirmer *Confirmer) *RelayChannel {
	return &RelayChannel{sender: sender, confirmer: confirmer}
}

// Name implements Channel.
func (r *RelayChannel) Name() string { return ChannelRelay }

// Submit implements Channel.
func (r *RelayChannel) Submit(ctx context.Context, _ *domain.BuildPlan, tx *SignedTx) (Landing, error) {
	var noRetries uint
	sig, err := r.sender.SendTransaction(ctx, tx.Encoded, solana.SendOpts{
		SkipPreflight: true,
		MaxRetries:    &noRetries,
	})
	if err != nil {
		return Landing{Signature: tx.Signature}, fmt.Errorf("relay send: %w", err)
	}
	if sig == "" {
		sig = tx.Signature
	}
	slot, err := r.confirmer.Wait(ctx, sig)
	if err != nil {
		return Landing{Signature: sig}, err
	}
	return Landing{Signature: sig, Slot: slot}, nil
}
