package builder

import (
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/venue"
)

// PumpFunFeeRecipient receives the protocol fee on curve trades.
const PumpFunFeeRecipient = "CebN5WGQ4jvEPvsVU4EoHEpgzq1VV7AbicfhtW4xC9iM"

const pumpFunFeeBps = 100

// Anchor discriminators for "global:buy" and "global:sell".
var (
	anchorBuy  = []byte{102, 6, 61, 18, 1, 218, 235, 234}
	anchorSell = []byte{51, 230, 133, 164, 1, 127, 131, 173}
)

// PumpFun builds trades against a pump.fun bonding curve.
type PumpFun struct{}

func (PumpFun) Venue() domain.Venue { return domain.VenuePumpFun }

func (b PumpFun) Build(sig domain.TradeSignal, st domain.VenueState, wallet domain.TrackedWallet, p Params) (*domain.BuildPlan, error) {
	v := b.Venue()
	if !st.HasCurve() || st.Creator == "" {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, "curve reserves or creator unknown")
	}
	if st.Curve.Complete {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, "bonding curve complete")
	}

	const prog = venue.PumpFunProgram
	var d deriver
	mint := d.key(sig.Mint)
	curve := d.pda(prog, []byte("bonding-curve"), mint)
	global := d.pda(prog, []byte("global"))
	creatorVault := d.pda(prog, []byte("creator-vault"), d.key(st.Creator))
	eventAuthority := d.pda(prog, []byte("__event_authority"))
	curveATA := d.ata(curve, sig.Mint)
	userATA := d.ata(wallet.Address, sig.Mint)
	if d.err != nil {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, d.err.Error())
	}

	plan := newPlan(v, sig, wallet, p)
	vsr, vtr := st.Curve.VirtualSolReserves, st.Curve.VirtualTokenReserves

	switch sig.Direction {
	case domain.Buy:
		tokens := ConstantProductOut(afterFee(p.Amount, pumpFunFeeBps), vsr, vtr)
		if rtr := st.Curve.RealTokenReserves; rtr > 0 && tokens > rtr {
			tokens = rtr
		}
		minTokens, err := quoteCheck(v, sig, wallet, p, p.Amount, tokens, tokens)
		if err != nil {
			return nil, err
		}
		maxCost := MaxInput(p.Amount, p.SlippageBps)

		plan.Instructions = append(plan.Instructions,
			createATAIdempotent(wallet.Address, userATA, wallet.Address, sig.Mint),
			domain.Instruction{
				ProgramID: prog,
				Accounts: []domain.AccountMeta{
					ro(global),
					rw(PumpFunFeeRecipient),
					ro(sig.Mint),
					rw(curve),
					rw(curveATA),
					rw(userATA),
					payer(wallet.Address),
					ro(solana.SystemProgram),
					ro(solana.TokenProgram),
					rw(creatorVault),
					ro(eventAuthority),
					ro(prog),
				},
				Data: newData(anchorBuy).u64(tokens).u64(maxCost).bytes(),
			},
		)
		plan.InputAmount = p.Amount
		plan.ExpectedOutput = tokens
		plan.MinOutput = minTokens

	case domain.Sell:
		tokens := p.Amount
		lamports := lessFee(ConstantProductOut(tokens, vtr, vsr), pumpFunFeeBps)
		minSol, err := quoteCheck(v, sig, wallet, p, lamports, tokens, lamports)
		if err != nil {
			return nil, err
		}

		plan.Instructions = append(plan.Instructions, domain.Instruction{
			ProgramID: prog,
			Accounts: []domain.AccountMeta{
				ro(global),
				rw(PumpFunFeeRecipient),
				ro(sig.Mint),
				rw(curve),
				rw(curveATA),
				rw(userATA),
				payer(wallet.Address),
				ro(solana.SystemProgram),
				rw(creatorVault),
				ro(solana.TokenProgram),
				ro(eventAuthority),
				ro(prog),
			},
			Data: newData(anchorSell).u64(tokens).u64(minSol).bytes(),
		})
		plan.InputAmount = tokens
		plan.ExpectedOutput = lamports
		plan.MinOutput = minSol
	}

	return plan, nil
}
