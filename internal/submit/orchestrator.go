package submit

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/observability"
	"solana-copy-trader/internal/storage"
)

// DefaultDeadline bounds a plan's submission when Options.Deadline is unset.
const DefaultDeadline = 10 * time.Second

// Options configures an Orchestrator.
type Options struct {
	Channels []Channel
	Signer   TxSigner
	// Deadline bounds the whole race, sending and confirmation included.
	Deadline time.Duration
	// Attempts receives every attempt once the outcome is known. Optional.
	Attempts storage.AttemptStore
	Logger   *zerolog.Logger
	Now      func() time.Time
}

// Orchestrator races a signed plan across every channel and accepts at most
// one confirmation per plan. Nothing is ever retried.
type Orchestrator struct {
	channels []Channel
	signer   TxSigner
	deadline time.Duration
	attempts storage.AttemptStore
	now      func() time.Time
	log      zerolog.Logger

	consumed sync.Map // plan ID -> struct{}
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(opts Options) *Orchestrator {
	logger := zerolog.Nop()
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = DefaultDeadline
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &Orchestrator{
		channels: opts.Channels,
		signer:   opts.Signer,
		deadline: deadline,
		attempts: opts.Attempts,
		now:      now,
		log:      logger.With().Str("component", "orchestrator").Logger(),
	}
}

// Channels returns the configured channel names.
func (o *Orchestrator) Channels() []string {
	names := make([]string, len(o.channels))
	for i, ch := range o.channels {
		names[i] = ch.Name()
	}
	return names
}

type channelResult struct {
	idx     int
	landing Landing
	err     error
	at      time.Time
}

// Submit signs plan once and dispatches it to every channel concurrently.
//
// The first channel to confirm wins; attempts still pending at that moment
// become superseded and their results are discarded. If every channel fails
// the outcome is AllFailed and the error wraps domain.ErrSubmissionFailed.
// If the deadline passes first the outcome is TimedOut and the error wraps
// domain.ErrSubmissionTimeout. A plan ID can be submitted only once;
// repeats return domain.ErrPlanConsumed.
func (o *Orchestrator) Submit(ctx context.Context, plan *domain.BuildPlan) (domain.SubmissionOutcome, error) {
	outcome := domain.SubmissionOutcome{PlanID: plan.ID}
	if _, dup := o.consumed.LoadOrStore(plan.ID, struct{}{}); dup {
		return outcome, fmt.Errorf("%w: %s", domain.ErrPlanConsumed, plan.ID)
	}

	observability.SubmissionStarted()
	defer observability.SubmissionFinished()

	log := o.log.With().Str("plan_id", plan.ID).Str("wallet", plan.Wallet).Str("mint", plan.Mint).Logger()

	if len(o.channels) == 0 {
		outcome.Status = domain.OutcomeAllFailed
		return outcome, fmt.Errorf("%w: no channels configured", domain.ErrSubmissionFailed)
	}

	raceCtx, cancel := context.WithTimeout(ctx, o.deadline)
	defer cancel()

	tx, err := o.signer.SignPlan(raceCtx, plan)
	if err != nil {
		outcome.Status = domain.OutcomeAllFailed
		log.Error().Err(err).Msg("sign plan")
		return outcome, fmt.Errorf("%w: sign: %v", domain.ErrSubmissionFailed, err)
	}
	outcome.Signature = tx.Signature

	started := o.now()
	attempts := make([]domain.SubmissionAttempt, len(o.channels))
	results := make(chan channelResult, len(o.channels))
	for i, ch := range o.channels {
		attempts[i] = domain.SubmissionAttempt{
			ID:          uuid.NewString(),
			PlanID:      plan.ID,
			Wallet:      plan.Wallet,
			Mint:        plan.Mint,
			Venue:       plan.Venue,
			Direction:   plan.Direction,
			Channel:     ch.Name(),
			Signature:   tx.Signature,
			SubmittedAt: started,
			Status:      domain.AttemptPending,
		}
		go func(i int, ch Channel) {
			landing, err := ch.Submit(raceCtx, plan, tx)
			results <- channelResult{idx: i, landing: landing, err: err, at: o.now()}
		}(i, ch)
	}

	winner := -1
	pending := len(o.channels)
	var lastErr error

collect:
	for pending > 0 {
		select {
		case r := <-results:
			pending--
			a := &attempts[r.idx]
			a.FinishedAt = r.at
			if r.landing.Signature != "" {
				a.Signature = r.landing.Signature
			}
			a.Status = attemptStatus(r.err)
			if r.err != nil {
				a.Error = r.err.Error()
				lastErr = r.err
				observability.RecordAttempt(a.Channel, string(a.Status), r.at.Sub(started))
				log.Debug().Err(r.err).Str("channel", a.Channel).Msg("attempt failed")
				continue
			}
			a.Slot = r.landing.Slot
			observability.RecordAttempt(a.Channel, string(a.Status), r.at.Sub(started))
			winner = r.idx
			break collect

		case <-raceCtx.Done():
			break collect
		}
	}
	cancel()

	switch {
	case winner >= 0:
		w := attempts[winner]
		outcome.Status = domain.OutcomeConfirmed
		outcome.Slot = w.Slot
		outcome.Channel = w.Channel
		outcome.Signature = w.Signature
		o.finish(attempts, domain.AttemptSuperseded)
		err = nil
		log.Info().Str("channel", w.Channel).Uint64("slot", w.Slot).Str("signature", w.Signature).Msg("plan confirmed")

	case pending == 0:
		outcome.Status = domain.OutcomeAllFailed
		err = fmt.Errorf("%w: %v", domain.ErrSubmissionFailed, lastErr)
		log.Warn().Err(lastErr).Msg("all channels failed")

	default:
		outcome.Status = domain.OutcomeTimedOut
		o.finish(attempts, domain.AttemptTimedOut)
		err = fmt.Errorf("%w after %s", domain.ErrSubmissionTimeout, o.deadline)
		log.Warn().Dur("deadline", o.deadline).Msg("submission timed out")
	}

	outcome.Attempts = attempts
	observability.RecordOutcome(string(outcome.Status), outcome.Channel)
	o.record(ctx, attempts)
	return outcome, err
}

// finish moves every still-pending attempt to status.
func (o *Orchestrator) finish(attempts []domain.SubmissionAttempt, status domain.AttemptStatus) {
	at := o.now()
	for i := range attempts {
		if attempts[i].Status == domain.AttemptPending {
			attempts[i].Status = status
			attempts[i].FinishedAt = at
		}
	}
}

func (o *Orchestrator) record(ctx context.Context, attempts []domain.SubmissionAttempt) {
	if o.attempts == nil {
		return
	}
	rows := make([]*domain.SubmissionAttempt, len(attempts))
	for i := range attempts {
		a := attempts[i]
		rows[i] = &a
	}
	// Recording must survive the caller's cancellation.
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := o.attempts.InsertBulk(wctx, rows); err != nil && !errors.Is(err, storage.ErrDuplicateKey) {
		o.log.Error().Err(err).Msg("record attempts")
	}
}
