package domain

import "time"

// AccountMeta references one account used by an instruction.
type AccountMeta struct {
	Pubkey   string
	Signer   bool
	Writable bool
}

// Instruction is an unsigned program invocation.
type Instruction struct {
	ProgramID string
	Accounts  []AccountMeta
	Data      []byte
}

// BuildPlan is the unsigned output of a builder, consumed exactly once by
// the submission orchestrator.
type BuildPlan struct {
	ID               string
	SignalID         string
	Wallet           string
	Mint             string
	Venue            Venue
	Direction        Direction
	Instructions     []Instruction
	ComputeUnitLimit uint32
	ComputeUnitPrice uint64 // micro-lamports per CU
	InputAmount      uint64 // lamports in (buy) or tokens in (sell)
	ExpectedOutput   uint64 // tokens out (buy) or lamports out (sell)
	MinOutput        uint64
	CreatedAt        time.Time
}

// TokenQty returns the token leg of the plan.
func (p *BuildPlan) TokenQty() uint64 {
	if p.Direction == Buy {
		return p.ExpectedOutput
	}
	return p.InputAmount
}

// SolQty returns the lamport leg of the plan.
func (p *BuildPlan) SolQty() uint64 {
	if p.Direction == Buy {
		return p.InputAmount
	}
	return p.ExpectedOutput
}
