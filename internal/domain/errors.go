package domain

import (
	"errors"
	"fmt"
)

// Pipeline error taxonomy. Only ErrConfiguration is fatal.
var (
	// ErrClassificationMiss means no known venue matched the transaction.
	ErrClassificationMiss = errors.New("classification miss")

	// ErrBuild is a recoverable per-wallet planning failure.
	ErrBuild = errors.New("build error")

	// ErrSubmissionFailed means every channel failed for a plan.
	ErrSubmissionFailed = errors.New("submission failed")

	// ErrSubmissionTimeout means no channel confirmed before the deadline.
	ErrSubmissionTimeout = errors.New("submission timed out")

	// ErrLedgerConflict means a position mutation would break ledger invariants.
	ErrLedgerConflict = errors.New("ledger conflict")

	// ErrDuplicateFill means the fill was already applied and was ignored.
	ErrDuplicateFill = errors.New("duplicate fill")

	// ErrPlanConsumed means the plan was already handed to the orchestrator.
	ErrPlanConsumed = errors.New("plan already submitted")

	// ErrConfiguration means settings are malformed or missing.
	ErrConfiguration = errors.New("configuration fault")
)

// Build error reasons.
const (
	ReasonCacheMiss        = "cache_miss"
	ReasonMinOutput        = "min_output"
	ReasonSlippage         = "slippage"
	ReasonGating           = "gating"
	ReasonUnsupportedVenue = "unsupported_venue"
	ReasonNoPosition       = "no_position"
)

// BuildError describes why a plan could not be built for one wallet.
type BuildError struct {
	Reason string
	Venue  Venue
	Wallet string
	Mint   string
	Detail string
}

func (e *BuildError) Error() string {
	msg := fmt.Sprintf("build %s for %s on %s: %s", e.Mint, e.Wallet, e.Venue, e.Reason)
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	return msg
}

// Unwrap lets errors.Is match ErrBuild.
func (e *BuildError) Unwrap() error { return ErrBuild }

// IsBuildReason reports whether err is a BuildError with the given reason.
func IsBuildReason(err error, reason string) bool {
	var be *BuildError
	return errors.As(err, &be) && be.Reason == reason
}

// ConfigError names the offending setting.
type ConfigError struct {
	Field string
	Msg   string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config %s: %s", e.Field, e.Msg)
}

// Unwrap lets errors.Is match ErrConfiguration.
func (e *ConfigError) Unwrap() error { return ErrConfiguration }
