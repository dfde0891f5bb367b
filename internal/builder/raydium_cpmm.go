package builder

import (
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/venue"
)

const raydiumCPMMFeeBps = 25

var cpmmSwapBaseInput = []byte{143, 190, 90, 218, 196, 30, 51, 222}

// RaydiumCPMM builds swap_base_input against a Raydium constant-product pool
// pairing the mint with WSOL.
type RaydiumCPMM struct{}

func (RaydiumCPMM) Venue() domain.Venue { return domain.VenueRaydiumCPMM }

func (b RaydiumCPMM) Build(sig domain.TradeSignal, st domain.VenueState, wallet domain.TrackedWallet, p Params) (*domain.BuildPlan, error) {
	v := b.Venue()
	if !st.HasPool() {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, "pool reserves unknown")
	}

	const prog = venue.RaydiumCPMMProgram
	var d deriver

	config := st.Pool.Accounts["amm_config"]
	if config == "" {
		config = d.pda(prog, []byte("amm_config"), u16BE(0))
	}
	pool := st.Pool.Address
	if pool == "" {
		token0, token1 := d.sortMints(sig.Mint, solana.WrappedSOLMint)
		pool = d.pda(prog, []byte("pool"), d.key(config), d.key(token0), d.key(token1))
	}
	authority := d.pda(prog, []byte("vault_and_lp_mint_auth_seed"))
	tokenVault := d.pda(prog, []byte("pool_vault"), d.key(pool), d.key(sig.Mint))
	wsolVault := d.pda(prog, []byte("pool_vault"), d.key(pool), d.key(solana.WrappedSOLMint))
	observation := d.pda(prog, []byte("observation"), d.key(pool))
	userToken := d.ata(wallet.Address, sig.Mint)
	userWSOL := d.ata(wallet.Address, solana.WrappedSOLMint)
	if d.err != nil {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, d.err.Error())
	}

	feeBps := st.Pool.FeeBps
	if feeBps == 0 {
		feeBps = raydiumCPMMFeeBps
	}

	swap := func(inAcct, outAcct, inVault, outVault, inMint, outMint string, in, minOut uint64) domain.Instruction {
		return domain.Instruction{
			ProgramID: prog,
			Accounts: []domain.AccountMeta{
				payer(wallet.Address),
				ro(authority),
				ro(config),
				rw(pool),
				rw(inAcct),
				rw(outAcct),
				rw(inVault),
				rw(outVault),
				ro(solana.TokenProgram),
				ro(solana.TokenProgram),
				ro(inMint),
				ro(outMint),
				rw(observation),
			},
			Data: newData(cpmmSwapBaseInput).u64(in).u64(minOut).bytes(),
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
			swap(userWSOL, userToken, wsolVault, tokenVault, solana.WrappedSOLMint, sig.Mint, p.Amount, minTokens),
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
			swap(userToken, userWSOL, tokenVault, wsolVault, sig.Mint, solana.WrappedSOLMint, tokens, minSol),
			closeAccount(userWSOL, wallet.Address, wallet.Address),
		)
		plan.InputAmount = tokens
		plan.ExpectedOutput = lamports
		plan.MinOutput = minSol
	}

	return plan, nil
}
