package domain

import "time"

// AttemptStatus is the lifecycle state of one channel attempt.
type AttemptStatus string

const (
	AttemptPending    AttemptStatus = "pending"
	AttemptConfirmed  AttemptStatus = "confirmed"
	AttemptFailed     AttemptStatus = "failed"
	AttemptTimedOut   AttemptStatus = "timed_out"
	AttemptSuperseded AttemptStatus = "superseded"
)

// SubmissionAttempt records one channel's try at landing a plan.
type SubmissionAttempt struct {
	ID          string
	PlanID      string
	Wallet      string
	Mint        string
	Venue       Venue
	Direction   Direction
	Channel     string
	Signature   string
	SubmittedAt time.Time
	FinishedAt  time.Time
	Status      AttemptStatus
	Slot        uint64
	Error       string
}

// OutcomeStatus is the terminal result of a plan submission.
type OutcomeStatus string

const (
	OutcomeConfirmed OutcomeStatus = "confirmed"
	OutcomeAllFailed OutcomeStatus = "all_failed"
	OutcomeTimedOut  OutcomeStatus = "timed_out"
)

// SubmissionOutcome is what the orchestrator reports for a plan.
type SubmissionOutcome struct {
	PlanID    string
	Status    OutcomeStatus
	Slot      uint64
	Channel   string // winning channel, Confirmed only
	Signature string
	Attempts  []SubmissionAttempt
}

// Confirmed reports whether the plan landed.
func (o SubmissionOutcome) Confirmed() bool {
	return o.Status == OutcomeConfirmed
}
