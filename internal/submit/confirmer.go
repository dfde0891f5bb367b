package submit

import (
	"context"
	"fmt"
	"time"

	"solana-copy-trader/internal/solana"
)

// StatusSource reads signature statuses. Satisfied by solana.RPCClient.
type StatusSource interface {
	GetSignatureStatuses(ctx context.Context, signatures []string) ([]*solana.SignatureStatus, error)
}

// Confirmer polls signature statuses until a transaction lands.
type Confirmer struct {
	rpc      StatusSource
	interval time.Duration
}

// NewConfirmer creates a confirmer polling every interval.
func NewConfirmer(rpc StatusSource, interval time.Duration) *Confirmer {
	if interval <= 0 {
		interval = 400 * time.Millisecond
	}
	return &Confirmer{rpc: rpc, interval: interval}
}

// Wait blocks until signature is confirmed and returns its slot.
// Transient RPC errors are ignored; ctx bounds the wait.
func (c *Confirmer) Wait(ctx context.Context, signature string) (uint64, error) {
	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()

	for {
		statuses, err := c.rpc.GetSignatureStatuses(ctx, []string{signature})
		if err == nil && len(statuses) == 1 {
			st := statuses[0]
			switch {
			case st.Failed():
				return st.Slot, fmt.Errorf("%w: %v", ErrTransactionFailed, st.Err)
			case st.Landed():
				return st.Slot, nil
			}
		}

		select {
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-ticker.C:
		}
	}
}
