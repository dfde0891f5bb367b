package submit

import (
	"context"
	"errors"

	"solana-copy-trader/internal/domain"
)

// Channel names.
const (
	ChannelBundle = "bundle"
	ChannelRelay  = "relay"
)

// ErrTransactionFailed means the transaction landed with an error.
var ErrTransactionFailed = errors.New("transaction failed on chain")

// Landing is where a channel's transaction was confirmed.
type Landing struct {
	Signature string
	Slot      uint64
}

// Channel delivers a signed plan and blocks until it is confirmed, fails,
// or ctx ends. Implementations must return promptly when ctx is done.
type Channel interface {
	Name() string
	Submit(ctx context.Context, plan *domain.BuildPlan, tx *SignedTx) (Landing, error)
}

// attemptStatus maps a channel result to an attempt status.
func attemptStatus(err error) domain.AttemptStatus {
	switch {
	case err == nil:
		return domain.AttemptConfirmed
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return domain.AttemptTimedOut
	default:
		return domain.AttemptFailed
	}
}
