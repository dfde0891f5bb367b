package builder

import (
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/venue"
)

// PumpSwapProtocolFeeRecipient is used when the pool's observed fee
// recipient is unknown.
const PumpSwapProtocolFeeRecipient = "62qc2CNXwrYqQScmEdiZFFAnJR262PxWEuNQtxfafNgV"

const pumpSwapFeeBps = 25

// PumpSwap builds trades against the canonical pump AMM pool of a
// graduated mint. Base is the token, quote is WSOL.
type PumpSwap struct{}

func (PumpSwap) Venue() domain.Venue { return domain.VenuePumpSwap }

// PumpSwapPool returns the canonical pool address for mint.
func PumpSwapPool(mint string) (string, error) {
	var d deriver
	m := d.key(mint)
	authority := d.pda(venue.PumpFunProgram, []byte("pool-authority"), m)
	pool := d.pda(venue.PumpSwapProgram, []byte("pool"), u16LE(0), d.key(authority), m, d.key(solana.WrappedSOLMint))
	return pool, d.err
}

func (b PumpSwap) Build(sig domain.TradeSignal, st domain.VenueState, wallet domain.TrackedWallet, p Params) (*domain.BuildPlan, error) {
	v := b.Venue()
	if !st.HasPool() || st.Creator == "" {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, "pool reserves or coin creator unknown")
	}

	pool := st.Pool.Address
	if pool == "" {
		var err error
		if pool, err = PumpSwapPool(sig.Mint); err != nil {
			return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, err.Error())
		}
	}
	feeRecipient := st.Pool.Accounts["protocol_fee_recipient"]
	if feeRecipient == "" {
		feeRecipient = PumpSwapProtocolFeeRecipient
	}
	feeBps := st.Pool.FeeBps
	if feeBps == 0 {
		feeBps = pumpSwapFeeBps
	}

	const prog = venue.PumpSwapProgram
	var d deriver
	globalConfig := d.pda(prog, []byte("global_config"))
	eventAuthority := d.pda(prog, []byte("__event_authority"))
	creatorAuthority := d.pda(prog, []byte("creator_vault"), d.key(st.Creator))
	creatorATA := d.ata(creatorAuthority, solana.WrappedSOLMint)
	poolBase := d.ata(pool, sig.Mint)
	poolQuote := d.ata(pool, solana.WrappedSOLMint)
	feeATA := d.ata(feeRecipient, solana.WrappedSOLMint)
	userBase := d.ata(wallet.Address, sig.Mint)
	userQuote := d.ata(wallet.Address, solana.WrappedSOLMint)
	if d.err != nil {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, d.err.Error())
	}

	accounts := []domain.AccountMeta{
		ro(pool),
		payer(wallet.Address),
		ro(globalConfig),
		ro(sig.Mint),
		ro(solana.WrappedSOLMint),
		rw(userBase),
		rw(userQuote),
		rw(poolBase),
		rw(poolQuote),
		ro(feeRecipient),
		rw(feeATA),
		ro(solana.TokenProgram),
		ro(solana.TokenProgram),
		ro(solana.SystemProgram),
		ro(solana.AssociatedTokenProgram),
		ro(eventAuthority),
		ro(prog),
		rw(creatorATA),
		ro(creatorAuthority),
	}

	plan := newPlan(v, sig, wallet, p)
	base, quote := st.Pool.BaseReserve, st.Pool.QuoteReserve

	switch sig.Direction {
	case domain.Buy:
		tokens := ConstantProductOut(afterFee(p.Amount, feeBps), quote, base)
		minTokens, err := quoteCheck(v, sig, wallet, p, p.Amount, tokens, tokens)
		if err != nil {
			return nil, err
		}
		maxQuote := MaxInput(p.Amount, p.SlippageBps)

		plan.Instructions = append(plan.Instructions,
			createATAIdempotent(wallet.Address, userBase, wallet.Address, sig.Mint))
		plan.Instructions = append(plan.Instructions, wrapSOL(wallet.Address, userQuote, maxQuote)...)
		plan.Instructions = append(plan.Instructions,
			domain.Instruction{
				ProgramID: prog,
				Accounts:  accounts,
				Data:      newData(anchorBuy).u64(tokens).u64(maxQuote).bytes(),
			},
			closeAccount(userQuote, wallet.Address, wallet.Address),
		)
		plan.InputAmount = p.Amount
		plan.ExpectedOutput = tokens
		plan.MinOutput = minTokens

	case domain.Sell:
		tokens := p.Amount
		lamports := lessFee(ConstantProductOut(tokens, base, quote), feeBps)
		minSol, err := quoteCheck(v, sig, wallet, p, lamports, tokens, lamports)
		if err != nil {
			return nil, err
		}

		plan.Instructions = append(plan.Instructions,
			createATAIdempotent(wallet.Address, userQuote, wallet.Address, solana.WrappedSOLMint),
			domain.Instruction{
				ProgramID: prog,
				Accounts:  accounts,
				Data:      newData(anchorSell).u64(tokens).u64(minSol).bytes(),
			},
			closeAccount(userQuote, wallet.Address, wallet.Address),
		)
		plan.InputAmount = tokens
		plan.ExpectedOutput = lamports
		plan.MinOutput = minSol
	}

	return plan, nil
}
