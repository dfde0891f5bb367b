package builder

import (
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/venue"
)

// LaunchpadGlobalConfig is the SOL-quoted constant-product global config.
const LaunchpadGlobalConfig = "6s1xP3hpbAfFoNtUNF8mfHsjr2Bd97JxFJRWLbL6aHuX"

const launchpadFeeBps = 100

var (
	launchpadBuyExactIn  = []byte{250, 234, 13, 123, 213, 156, 19, 236}
	launchpadSellExactIn = []byte{149, 39, 222, 155, 211, 124, 152, 26}
)

// RaydiumLaunchpad builds exact-in trades against a LaunchLab bonding curve.
// The platform config cannot be derived from the mint and must have been
// observed.
type RaydiumLaunchpad struct{}

func (RaydiumLaunchpad) Venue() domain.Venue { return domain.VenueRaydiumLaunchpad }

func (b RaydiumLaunchpad) Build(sig domain.TradeSignal, st domain.VenueState, wallet domain.TrackedWallet, p Params) (*domain.BuildPlan, error) {
	v := b.Venue()
	if !st.HasCurve() || st.Pool == nil || st.Pool.Accounts["platform_config"] == "" {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, "curve or platform config unknown")
	}
	if st.Curve.Complete {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, "curve complete")
	}

	const prog = venue.RaydiumLaunchpadProgram
	var d deriver

	globalConfig := st.Pool.Accounts["global_config"]
	if globalConfig == "" {
		globalConfig = LaunchpadGlobalConfig
	}
	pool := st.Pool.Address
	if pool == "" {
		pool = d.pda(prog, []byte("pool"), d.key(sig.Mint), d.key(solana.WrappedSOLMint))
	}
	authority := d.pda(prog, []byte("vault_auth_seed"))
	eventAuthority := d.pda(prog, []byte("__event_authority"))
	baseVault := d.pda(prog, []byte("pool_vault"), d.key(pool), d.key(sig.Mint))
	quoteVault := d.pda(prog, []byte("pool_vault"), d.key(pool), d.key(solana.WrappedSOLMint))
	userBase := d.ata(wallet.Address, sig.Mint)
	userQuote := d.ata(wallet.Address, solana.WrappedSOLMint)
	if d.err != nil {
		return nil, buildErr(domain.ReasonCacheMiss, v, wallet, sig, d.err.Error())
	}

	accounts := []domain.AccountMeta{
		signerRO(wallet.Address),
		ro(authority),
		ro(globalConfig),
		ro(st.Pool.Accounts["platform_config"]),
		rw(pool),
		rw(userBase),
		rw(userQuote),
		rw(baseVault),
		rw(quoteVault),
		ro(sig.Mint),
		ro(solana.WrappedSOLMint),
		ro(solana.TokenProgram),
		ro(solana.TokenProgram),
		ro(eventAuthority),
		ro(prog),
	}

	feeBps := uint64(launchpadFeeBps)
	if st.Pool.FeeBps > 0 {
		feeBps = st.Pool.FeeBps
	}

	plan := newPlan(v, sig, wallet, p)
	vsr, vtr := st.Curve.VirtualSolReserves, st.Curve.VirtualTokenReserves

	switch sig.Direction {
	case domain.Buy:
		tokens := ConstantProductOut(lessFee(p.Amount, feeBps), vsr, vtr)
		minTokens, err := quoteCheck(v, sig, wallet, p, p.Amount, tokens, tokens)
		if err != nil {
			return nil, err
		}
		plan.Instructions = append(plan.Instructions,
			createATAIdempotent(wallet.Address, userBase, wallet.Address, sig.Mint))
		plan.Instructions = append(plan.Instructions, wrapSOL(wallet.Address, userQuote, p.Amount)...)
		plan.Instructions = append(plan.Instructions,
			domain.Instruction{
				ProgramID: prog,
				Accounts:  accounts,
				Data:      newData(launchpadBuyExactIn).u64(p.Amount).u64(minTokens).u64(0).bytes(),
			},
			closeAccount(userQuote, wallet.Address, wallet.Address),
		)
		plan.InputAmount = p.Amount
		plan.ExpectedOutput = tokens
		plan.MinOutput = minTokens

	case domain.Sell:
		tokens := p.Amount
		lamports := lessFee(ConstantProductOut(tokens, vtr, vsr), feeBps)
		minSol, err := quoteCheck(v, sig, wallet, p, lamports, tokens, lamports)
		if err != nil {
			return nil, err
		}
		plan.Instructions = append(plan.Instructions,
			createATAIdempotent(wallet.Address, userQuote, wallet.Address, solana.WrappedSOLMint),
			domain.Instruction{
				ProgramID: prog,
				Accounts:  accounts,
				Data:      newData(launchpadSellExactIn).u64(tokens).u64(minSol).u64(0).bytes(),
			},
			closeAccount(userQuote, wallet.Address, wallet.Address),
		)
		plan.InputAmount = tokens
		plan.ExpectedOutput = lamports
		plan.MinOutput = minSol
	}

	return plan, nil
}
