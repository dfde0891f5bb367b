package ingestion

import (
	"math"
	"math/bits"
	"sort"
	"time"

	"solana-copy-trader/internal/builder"
	"solana-copy-trader/internal/domain"
	"solana-copy-trader/internal/solana"
	"solana-copy-trader/internal/venue"
)

// poolAccountSlots maps instruction account positions to Pool.Accounts keys
// for venues whose pool accounts cannot be derived from the mint.
var poolAccountSlots = map[string]map[int]string{
	venue.PumpSwapProgram: {
		0: "pool",
		9: "protocol_fee_recipient",
	},
	venue.RaydiumCPMMProgram: {
		2: "amm_config",
		3: "pool",
	},
	venue.RaydiumLaunchpadProgram: {
		2: "global_config",
		3: "platform_config",
		4: "pool",
	},
	venue.MeteoraDynamicProgram: {
		0:  "pool",
		3:  "a_vault",
		4:  "b_vault",
		5:  "a_token_vault",
		6:  "b_token_vault",
		7:  "a_vault_lp_mint",
		8:  "b_vault_lp_mint",
		9:  "a_vault_lp",
		10: "b_vault_lp",
		11: "protocol_token_fee",
	},
}

type tokenDelta struct {
	pre, post uint64
}

// Normalize extracts wallet's trades from a fetched transaction: one
// observation per non-WSOL mint whose balance changed for wallet.
// Failed transactions yield nothing.
func Normalize(tx *solana.Transaction, wallet string) []domain.Observation {
	if tx == nil || tx.Meta == nil || tx.Meta.Err != nil || tx.Message == nil {
		return nil
	}

	scan := scanLogs(tx.Meta.LogMessages)
	programs := mergePrograms(scan.programs, tx.Message)

	deltas := walletTokenDeltas(tx.Meta, wallet)
	wsol := deltas[solana.WrappedSOLMint]
	delete(deltas, solana.WrappedSOLMint)

	lamportDelta := walletLamportDelta(tx, wallet) + int64(wsol.post) - int64(wsol.pre)

	blockTime := time.Time{}
	if tx.BlockTime > 0 {
		blockTime = time.Unix(tx.BlockTime, 0).UTC()
	}

	mints := make([]string, 0, len(deltas))
	for m := range deltas {
		mints = append(mints, m)
	}
	sort.Strings(mints)

	var out []domain.Observation
	for _, mint := range mints {
		d := deltas[mint]
		if d.post == d.pre {
			continue
		}
		obs := domain.Observation{
			Signature:   tx.Signature,
			Slot:        uint64(tx.Slot),
			BlockTime:   blockTime,
			Wallet:      wallet,
			Mint:        mint,
			PreBalance:  d.pre,
			ProgramRefs: programs,
		}
		if d.post > d.pre {
			obs.Direction = domain.Buy
			obs.Amount = d.post - d.pre
			if lamportDelta < 0 {
				obs.SolAmount = uint64(-lamportDelta)
			}
		} else {
			obs.Direction = domain.Sell
			obs.Amount = d.pre - d.post
			if lamportDelta > 0 {
				obs.SolAmount = uint64(lamportDelta)
			}
		}
		obs.Hints = buildHints(tx, scan, obs)
		out = append(out, obs)
	}
	return out
}

func mergePrograms(fromLogs []string, msg *solana.TransactionMessage) []string {
	seen := make(map[string]struct{}, len(fromLogs))
	out := make([]string, 0, len(fromLogs))
	add := func(p string) {
		if _, ok := seen[p]; !ok && p != "" {
			seen[p] = struct{}{}
			out = append(out, p)
		}
	}
	for _, ix := range msg.Instructions {
		if ix.ProgramIDIndex >= 0 && ix.ProgramIDIndex < len(msg.AccountKeys) {
			add(msg.AccountKeys[ix.ProgramIDIndex])
		}
	}
	for _, p := range fromLogs {
		add(p)
	}
	return out
}

func walletTokenDeltas(meta *solana.TransactionMeta, wallet string) map[string]tokenDelta {
	out := make(map[string]tokenDelta)
	for _, b := range meta.PreTokenBalances {
		if b.Owner == wallet {
			d := out[b.Mint]
			d.pre += b.Amount
			out[b.Mint] = d
		}
	}
	for _, b := range meta.PostTokenBalances {
		if b.Owner == wallet {
			d := out[b.Mint]
			d.post += b.Amount
			out[b.Mint] = d
		}
	}
	return out
}

func walletLamportDelta(tx *solana.Transaction, wallet string) int64 {
	for i, k := range tx.Message.AccountKeys {
		if k != wallet {
			continue
		}
		if i < len(tx.Meta.PreBalances) && i < len(tx.Meta.PostBalances) {
			return int64(tx.Meta.PostBalances[i]) - int64(tx.Meta.PreBalances[i])
		}
	}
	return 0
}

// mulDivFloor returns a*b/c, saturating on overflow.
func mulDivFloor(a, b, c uint64) uint64 {
	hi, lo := bits.Mul64(a, b)
	if hi >= c {
		return math.MaxUint64
	}
	q, _ := bits.Div64(hi, lo, c)
	return q
}

// buildHints collects the venue facts the transaction reveals about mint.
func buildHints(tx *solana.Transaction, scan logScan, obs domain.Observation) domain.VenueHints {
	h := domain.VenueHints{
		MintCreated: scan.mintCreated,
		MigratedTo:  scan.migratedTo,
	}

	for _, ev := range scan.pumpEvents {
		if ev.Mint != obs.Mint {
			continue
		}
		c := ev.Curve()
		h.Curve = &c
		if ev.Creator != "" {
			h.Creator = ev.Creator
		}
	}

	for _, ix := range tx.Message.Instructions {
		if ix.ProgramIDIndex < 0 || ix.ProgramIDIndex >= len(tx.Message.AccountKeys) {
			continue
		}
		program := tx.Message.AccountKeys[ix.ProgramIDIndex]
		slots, ok := poolAccountSlots[program]
		if !ok {
			continue
		}
		pool := &domain.PoolParams{Accounts: make(map[string]string)}
		for pos, name := range slots {
			if pos >= len(ix.Accounts) || ix.Accounts[pos] >= len(tx.Message.AccountKeys) {
				continue
			}
			key := tx.Message.AccountKeys[ix.Accounts[pos]]
			if name == "protocol_token_fee" {
				name = builder.MeteoraProtocolFeeSOL
				if obs.Direction == domain.Sell {
					name = builder.MeteoraProtocolFeeToken
				}
			}
			if name == "pool" {
				pool.Address = key
				continue
			}
			pool.Accounts[name] = key
		}
		pool.BaseReserve, pool.QuoteReserve = vaultReserves(tx.Meta, obs)

		if program == venue.RaydiumLaunchpadProgram {
			// Launchpad trades on a curve; the pool carries its accounts.
			if c := impliedCurve(pool.BaseReserve, obs); c != nil && h.Curve == nil {
				h.Curve = c
			}
		}
		h.Pool = pool
		break
	}

	if h.Curve == nil && containsProgram(obs.ProgramRefs, venue.MoonshotProgram) {
		base, _ := vaultReserves(tx.Meta, obs)
		h.Curve = impliedCurve(base, obs)
	}
	return h
}

// vaultReserves approximates pool reserves as the largest post-trade
// balances of mint and WSOL held by accounts other than the trader.
func vaultReserves(meta *solana.TransactionMeta, obs domain.Observation) (base, quote uint64) {
	for _, b := range meta.PostTokenBalances {
		if b.Owner == obs.Wallet {
			continue
		}
		amt := b.Amount
		switch b.Mint {
		case obs.Mint:
			if amt > base {
				base = amt
			}
		case solana.WrappedSOLMint:
			if amt > quote {
				quote = amt
			}
		}
	}
	return base, quote
}

// impliedCurve synthesizes virtual reserves that reproduce the observed
// trade price at the curve's token balance.
func impliedCurve(tokenReserve uint64, obs domain.Observation) *domain.CurveParams {
	if tokenReserve == 0 || obs.Amount == 0 || obs.SolAmount == 0 {
		return nil
	}
	sol := mulDivFloor(tokenReserve, obs.SolAmount, obs.Amount)
	if sol == 0 {
		return nil
	}
	return &domain.CurveParams{
		VirtualTokenReserves: tokenReserve,
		VirtualSolReserves:   sol,
		RealTokenReserves:    tokenReserve,
	}
}

func containsProgram(refs []string, program string) bool {
	for _, r := range refs {
		if r == program {
			return true
		}
	}
	return false
}
