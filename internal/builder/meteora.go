package builder

import (
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/venue"
)

const meteoraFeeBps = 25

var meteoraSwap = []byte{248, 198, 158, 145, 225, 117, 135, 200}

// MeteoraPoolAccounts are the Pool.Accounts keys a dynamic AMM swap needs.
// They are learned from an observed swap; none can be derived from the mint.
var MeteoraPoolAccounts = []string{
	"a_vault",
	"b_vault",
	"a_token_vault",
	"b_token_vault",
	"a_vault_lp_mint",
	"b_vault_lp_mint",
	"a_vault_lp",
	"b_vault_lp",
}

// Protocol fees accrue in the input token, so the fee account depends on
// the trade side.
const (
	MeteoraProtocolFeeSOL   = "protocol_token_fee_sol"
	MeteoraProtocolFeeToken = "protocol_token_fee_token"
)

// Meteora builds swaps against a Meteora dynamic AMM pool.
type Meteora struct{}

func (Meteora) Venue() domain.Venue { return domain.VenueMeteora }

func (b Meteora) Build(sig domain.TradeSignal, st domain.VenueState, wallet domain.TrackedWallet, p Params) (*domain.BuildPlan, error) {
	v := b.Venue()
	if !st.HasPool() || st.Pool.Address == "" {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, "pool unknown")
	}
	acc := st.Pool.Accounts
	feeKey := MeteoraProtocolFeeSOL
	if sig.Direction == domain.Sell {
		feeKey = MeteoraProtocolFeeToken
	}
	for _, k := range append(MeteoraPoolAccounts, feeKey) {
		if acc[k] == "" {
			return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, "missing pool account "+k)
		}
	}

	var d deriver
	userToken := d.ata(wallet.Address, sig.Mint)
	userWSOL := d.ata(wallet.Address, solana.WrappedSOLMint)
	if d.err != nil {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, d.err.Error())
	}

	feeBps := st.Pool.FeeBps
	if feeBps == 0 {
		feeBps = meteoraFeeBps
	}

	swap := func(src, dst string, in, minOut uint64) domain.Instruction {
		return domain.Instruction{
			ProgramID: venue.MeteoraDynamicProgram,
			Accounts: []domain.AccountMeta{
				rw(st.Pool.Address),
				rw(src),
				rw(dst),
				rw(acc["a_vault"]),
				rw(acc["b_vault"]),
				rw(acc["a_token_vault"]),
				rw(acc["b_token_vault"]),
				rw(acc["a_vault_lp_mint"]),
				rw(acc["b_vault_lp_mint"]),
				rw(acc["a_vault_lp"]),
				rw(acc["b_vault_lp"]),
				rw(acc[feeKey]),
				signerRO(wallet.Address),
				ro(venue.MeteoraVaultProgram),
				ro(solana.TokenProgram),
			},
			Data: newData(meteoraSwap).u64(in).u64(minOut).bytes(),
		}
	}

	plan := newPlan(v, sig, wallet, p)
	base, quote := st.Pool.BaseReserve, st.Pool.QuoteReserve

	switch sig.Direction {
	case domain.Buy:
		tokens := ConstantProductOut(lessFee(p.Amount, feeBps), quote, base)
		minTokens, err := quoteCheck(v, sig, wallet, p, p.Amount, tokens, tokens)
		if err != nil {
			return nil, err
		}
		plan.Instructions = append(plan.Instructions,
			createATAIdempotent(wallet.Address, userToken, wallet.Address, sig.Mint))
		plan.Instructions = append(plan.Instructions, wrapSOL(wallet.Address, userWSOL, p.Amount)...)
		plan.Instructions = append(plan.Instructions,
			swap(userWSOL, userToken, p.Amount, minTokens),
			closeAccount(userWSOL, wallet.Address, wallet.Address),
		)
		plan.InputAmount = p.Amount
		plan.ExpectedOutput = tokens
		plan.MinOutput = minTokens

	case domain.Sell:
		tokens := p.Amount
		lamports := ConstantProductOut(lessFee(tokens, feeBps), base, quote)
		minSol, err := quoteCheck(v, sig, wallet, p, lamports, tokens, lamports)
		if err != nil {
			return nil, err
		}
		plan.Instructions = append(plan.Instructions,
			createATAIdempotent(wallet.Address, userWSOL, wallet.Address, solana.WrappedSOLMint),
			swap(userToken, userWSOL, tokens, minSol),
			closeAccount(userWSOL, wallet.Address, wallet.Address),
		)
		plan.InputAmount = tokens
		plan.ExpectedOutput = lamports
		plan.MinOutput = minSol
	}

	return plan, nil
}
