package engine

import (
	"context"
	"time"

	"github.com/sugawarayuuta/sonnet"

	"solana-copy-trader/internal/domain"
)

// DefaultSettlementStream receives one entry per settled plan.
const DefaultSettlementStream = "copytrader:settlements"

// Publisher appends to a durable stream. Satisfied by the Redis event bus.
type Publisher interface {
	StreamAppend(ctx context.Context, stream string, payload []byte) error
}

// settlement is the published record of a settled plan.
type settlement struct {
	PlanID         string `json:"plan_id"`
	SignalID       string `json:"signal_id"`
	Wallet         string `json:"wallet"`
	Mint           string `json:"mint"`
	Venue          string `json:"venue"`
	Side           string `json:"side"`
	Status         string `json:"status"`
	Channel        string `json:"channel,omitempty"`
	Signature      string `json:"signature,omitempty"`
	Slot           uint64 `json:"slot,omitempty"`
	InputAmount    uint64 `json:"input_amount"`
	ExpectedOutput uint64 `json:"expected_output"`
	SettledAt      int64  `json:"settled_at_ms"`
}

func newSettlement(plan *domain.BuildPlan, out domain.SubmissionOutcome, at time.Time) settlement {
	return settlement{
		PlanID:         plan.ID,
		SignalID:       plan.SignalID,
		Wallet:         plan.Wallet,
		Mint:           plan.Mint,
		Venue:          string(plan.Venue),
		Side:           string(plan.Direction),
		Status:         string(out.Status),
		Channel:        out.Channel,
		Signature:      out.Signature,
		Slot:           out.Slot,
		InputAmount:    plan.InputAmount,
		ExpectedOutput: plan.ExpectedOutput,
		SettledAt:      at.UnixMilli(),
	}
}

func (e *Engine) publish(plan *domain.BuildPlan, out domain.SubmissionOutcome) {
	if e.events == nil {
		return
	}
	payload, err := sonnet.Marshal(newSettlement(plan, out, e.now()))
	if err != nil {
		e.log.Warn().Err(err).Str("plan_id", plan.ID).Msg("encode settlement")
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := e.events.StreamAppend(ctx, e.cfg.SettlementStream, payload); err != nil {
		e.log.Warn().Err(err).Str("plan_id", plan.ID).Msg("publish settlement")
	}
}
