package builder

import (
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/venue"
)

// Moonshot fee accounts.
const (
	MoonshotDexFee   = "3udvfL24waJcLhskRAsStNMoNUvtyXdxrWQz4hgi953N"
	MoonshotHelioFee = "5K5RtTWzzLp4P8Npi84ocf7F1vBsAu29N1irG4iiUnzt"
)

const moonshotFeeBps = 100

// Moonshot trade sides: the fixed leg of TradeParams.
const (
	moonshotExactOut uint8 = 0
	moonshotExactIn  uint8 = 1
)

// Moonshot builds trades against a moonshot bonding curve. Reserves are
// approximated as a virtual constant product.
type Moonshot struct{}

func (Moonshot) Venue() domain.Venue { return domain.VenueMoonshot }

func (b Moonshot) Build(sig domain.TradeSignal, st domain.VenueState, wallet domain.TrackedWallet, p Params) (*domain.BuildPlan, error) {
	v := b.Venue()
	if !st.HasCurve() {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, "curve reserves unknown")
	}

	const prog = venue.MoonshotProgram
	var d deriver
	curve := d.pda(prog, []byte("token"), d.key(sig.Mint))
	config := d.pda(prog, []byte("config_account"))
	curveATA := d.ata(curve, sig.Mint)
	userATA := d.ata(wallet.Address, sig.Mint)
	if d.err != nil {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, d.err.Error())
	}

	accounts := []domain.AccountMeta{
		payer(wallet.Address),
		rw(userATA),
		rw(curve),
		rw(curveATA),
		rw(MoonshotDexFee),
		rw(MoonshotHelioFee),
		ro(sig.Mint),
		ro(config),
		ro(solana.TokenProgram),
		ro(solana.AssociatedTokenProgram),
		ro(solana.SystemProgram),
	}

	plan := newPlan(v, sig, wallet, p)
	vsr, vtr := st.Curve.VirtualSolReserves, st.Curve.VirtualTokenReserves

	switch sig.Direction {
	case domain.Buy:
		tokens := ConstantProductOut(afterFee(p.Amount, moonshotFeeBps), vsr, vtr)
		minTokens, err := quoteCheck(v, sig, wallet, p, p.Amount, tokens, tokens)
		if err != nil {
			return nil, err
		}
		maxCost := MaxInput(p.Amount, p.SlippageBps)
		plan.Instructions = append(plan.Instructions,
			createATAIdempotent(wallet.Address, userATA, wallet.Address, sig.Mint),
			domain.Instruction{
				ProgramID: prog,
				Accounts:  accounts,
				Data: newData(anchorBuy).
					u64(tokens).u64(maxCost).u8(moonshotExactOut).u64(p.SlippageBps).bytes(),
			},
		)
		plan.InputAmount = p.Amount
		plan.ExpectedOutput = tokens
		plan.MinOutput = minTokens

	case domain.Sell:
		tokens := p.Amount
		lamports := lessFee(ConstantProductOut(tokens, vtr, vsr), moonshotFeeBps)
		minSol, err := quoteCheck(v, sig, wallet, p, lamports, tokens, lamports)
		if err != nil {
			return nil, err
		}
		plan.Instructions = append(plan.Instructions, domain.Instruction{
			ProgramID: prog,
			Accounts:  accounts,
			Data: newData(anchorSell).
				u64(tokens).u64(minSol).u8(moonshotExactIn).u64(p.SlippageBps).bytes(),
		})
		plan.InputAmount = tokens
		plan.ExpectedOutput = lamports
		plan.MinOutput = minSol
	}

	return plan, nil
}
