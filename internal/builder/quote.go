package builder

import (
	"math"
	"math/big"

	"solana-copy-trader/internal/domain"
)

// mulDiv returns a*b/c, saturating at MaxUint64.
func mulDiv(a, b, c uint64) uint64 {
	if c == 0 {
		return 0
	}
	r := new(big.Int).Mul(new(big.Int).SetUint64(a), new(big.Int).SetUint64(b))
	r.Quo(r, new(big.Int).SetUint64(c))
	if !r.IsUint64() {
		return math.MaxUint64
	}
	return r.Uint64()
}

// mulBps scales v by bps/10000.
func mulBps(v, bps uint64) uint64 {
	return mulDiv(v, bps, bpsDenominator)
}

// MinOutput applies slippage to a quote.
func MinOutput(quote, slippageBps uint64) uint64 {
	if slippageBps >= bpsDenominator {
		return 0
	}
	return mulBps(quote, bpsDenominator-slippageBps)
}

// MaxInput applies slippage to an input budget.
func MaxInput(in, slippageBps uint64) uint64 {
	return mulBps(in, bpsDenominator+slippageBps)
}

// afterFee removes a fee charged on top of the traded amount:
// the budget covers amount*(1+fee).
func afterFee(budget, feeBps uint64) uint64 {
	return mulDiv(budget, bpsDenominator, bpsDenominator+feeBps)
}

// lessFee removes a fee taken out of an amount.
func lessFee(amount, feeBps uint64) uint64 {
	if feeBps >= bpsDenominator {
		return 0
	}
	return mulBps(amount, bpsDenominator-feeBps)
}

// ConstantProductOut returns reserveOut*in/(reserveIn+in).
func ConstantProductOut(in, reserveIn, reserveOut uint64) uint64 {
	if in == 0 || reserveIn == 0 || reserveOut == 0 {
		return 0
	}
	num := new(big.Int).Mul(new(big.Int).SetUint64(reserveOut), new(big.Int).SetUint64(in))
	den := new(big.Int).Add(new(big.Int).SetUint64(reserveIn), new(big.Int).SetUint64(in))
	num.Quo(num, den)
	if !num.IsUint64() {
		return math.MaxUint64
	}
	return num.Uint64()
}

// withinBand reports whether the quote's implied price stays inside the
// slippage band around the observed trade's implied price. Buys may not pay
// more per token than observed*(1+s); sells may not receive less than
// observed*(1-s). Signals without both legs pass.
func withinBand(sig domain.TradeSignal, solLeg, tokenLeg, slippageBps uint64) bool {
	if !sig.ImpliedPriceOK() {
		return true
	}
	if tokenLeg == 0 {
		return false
	}

	// ours = solLeg/tokenLeg, observed = sig.SolAmount/sig.Amount
	lhs := new(big.Int).Mul(new(big.Int).SetUint64(solLeg), new(big.Int).SetUint64(sig.Amount))
	lhs.Mul(lhs, big.NewInt(bpsDenominator))
	rhs := new(big.Int).Mul(new(big.Int).SetUint64(sig.SolAmount), new(big.Int).SetUint64(tokenLeg))

	if sig.Direction == domain.Buy {
		rhs.Mul(rhs, new(big.Int).SetUint64(bpsDenominator+slippageBps))
		return lhs.Cmp(rhs) <= 0
	}
	if slippageBps >= bpsDenominator {
		return true
	}
	rhs.Mul(rhs, new(big.Int).SetUint64(bpsDenominator-slippageBps))
	return lhs.Cmp(rhs) >= 0
}

// quoteCheck applies the price band and min-output rules shared by every
// venue. solLeg/tokenLeg describe the quoted trade.
func quoteCheck(v domain.Venue, sig domain.TradeSignal, wallet domain.TrackedWallet, p Params, solLeg, tokenLeg, quoteOut uint64) (uint64, error) {
	if !withinBand(sig, solLeg, tokenLeg, p.SlippageBps) {
		return 0, buildErr(domain.ReasonSlippage, v, wallet, sig, "quote outside price band")
	}
	minOut := MinOutput(quoteOut, p.SlippageBps)
	if minOut == 0 {
		return 0, buildErr(domain.ReasonMinOutput, v, wallet, sig, "zero min output")
	}
	if sig.Direction == domain.Sell && minOut < p.MinSellOutput {
		return 0, buildErr(domain.ReasonMinOutput, v, wallet, sig, "below sell floor")
	}
	return minOut, nil
}
