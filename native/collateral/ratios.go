package collateral

import "math/big"

var bigBase = big.NewInt(BASE)

// ceilDiv divides rounding up. Used for every amount the protocol collects;
// reads round down so the asymmetry always favours solvency.
func ceilDiv(num, den *big.Int) *big.Int {
	out, rem := new(big.Int).QuoRem(num, den, new(big.Int))
	if rem.Sign() > 0 {
		out.Add(out, big.NewInt(1))
	}
	return out
}

// CollateralInTokens values amount of collateral in base currency at the
// sampled (tokens, equivalent) rate, rounding down.
func CollateralInTokens(amount, rateTokens, rateEquivalent *big.Int) *big.Int {
	if amount == nil || amount.Sign() <= 0 {
		return big.NewInt(0)
	}
	if rateTokens == nil || rateEquivalent == nil || rateEquivalent.Sign() == 0 {
		return new(big.Int).Set(amount)
	}
	out := new(big.Int).Mul(amount, rateTokens)
	return out.Quo(out, rateEquivalent)
}

// DebtInTokens converts an obligation into base currency at the supplied
// (tokens, equivalent) rate, rounding up. A (0, 0) rate means no oracle,
// 1:1.
func DebtInTokens(obligation, rateTokens, rateEquivalent *big.Int) *big.Int {
	if obligation == nil || obligation.Sign() <= 0 {
		return big.NewInt(0)
	}
	if rateTokens == nil || rateEquivalent == nil || rateEquivalent.Sign() == 0 {
		return new(big.Int).Set(obligation)
	}
	return ceilDiv(new(big.Int).Mul(obligation, rateTokens), rateEquivalent)
}

// CollateralRatio is collateral*BASE/debt, floored. A zero debt has no
// meaningful ratio; callers must special-case it.
func CollateralRatio(collateralInBase, debtInBase *big.Int) *big.Int {
	if debtInBase == nil || debtInBase.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(collateralInBase, bigBase)
	return out.Quo(out, debtInBase)
}

// LiquidationDeltaRatio is collateralRatio - liquidationRatio, signed.
func LiquidationDeltaRatio(collateralRatio *big.Int, liquidationRatio uint64) *big.Int {
	return new(big.Int).Sub(collateralRatio, new(big.Int).SetUint64(liquidationRatio))
}

// BalanceDeltaRatio is collateralRatio - balanceRatio, signed.
func BalanceDeltaRatio(collateralRatio *big.Int, balanceRatio uint64) *big.Int {
	return new(big.Int).Sub(collateralRatio, new(big.Int).SetUint64(balanceRatio))
}

// CanWithdraw is the entry amount scaled by the headroom above the balance
// ratio, floored; zero when at or below balance.
func CanWithdraw(entryAmount, collateralRatio *big.Int, balanceRatio uint64) *big.Int {
	if entryAmount == nil || entryAmount.Sign() <= 0 {
		return big.NewInt(0)
	}
	if collateralRatio == nil || collateralRatio.Sign() <= 0 {
		return big.NewInt(0)
	}
	delta := BalanceDeltaRatio(collateralRatio, balanceRatio)
	if delta.Sign() <= 0 {
		return big.NewInt(0)
	}
	out := new(big.Int).Mul(entryAmount, delta)
	return out.Quo(out, collateralRatio)
}

// TokensToPay is the base-currency amount that, once paid against the debt
// by selling an equal value of collateral, restores the collateral ratio to
// balanceRatio:
//
//	ceil((balanceRatio*debt - BASE*collateral) / (balanceRatio - BASE))
//
// capped at min(debt, collateral). The cap also covers the fully
// under-water case (collateral <= debt): everything sellable is sold.
func TokensToPay(debtInBase, collateralInBase *big.Int, balanceRatio uint64) *big.Int {
	if debtInBase == nil || debtInBase.Sign() <= 0 {
		return big.NewInt(0)
	}
	if collateralInBase == nil {
		collateralInBase = big.NewInt(0)
	}
	if balanceRatio <= BASE {
		return big.NewInt(0)
	}
	ratio := new(big.Int).SetUint64(balanceRatio)
	num := new(big.Int).Mul(ratio, debtInBase)
	num.Sub(num, new(big.Int).Mul(bigBase, collateralInBase))
	if num.Sign() <= 0 {
		return big.NewInt(0)
	}
	den := new(big.Int).Sub(ratio, bigBase)
	required := ceilDiv(num, den)
	cap := debtInBase
	if collateralInBase.Cmp(cap) < 0 {
		cap = collateralInBase
	}
	if required.Cmp(cap) > 0 {
		return new(big.Int).Set(cap)
	}
	return required
}
