package collateral

import (
	"math/big"
	"testing"
)

func TestCollateralRatioFloors(t *testing.T) {
	ratio := CollateralRatio(big.NewInt(1100), big.NewInt(1000))
	if ratio.Cmp(big.NewInt(11000)) != 0 {
		t.Fatalf("ratio = %s, want 11000", ratio)
	}
	ratio = CollateralRatio(big.NewInt(999), big.NewInt(1000))
	if ratio.Cmp(big.NewInt(9990)) != 0 {
		t.Fatalf("ratio = %s, want 9990", ratio)
	}
}

func TestTokensToPayRestoresBalanceRatio(t *testing.T) {
	// debt 1000, collateral 1100, target 200%: pay 900 so that
	// (1100-900)*BASE/(1000-900) == 20000.
	required := TokensToPay(big.NewInt(1000), big.NewInt(1100), 20000)
	if required.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("required = %s, want 900", required)
	}
	remainingCollateral := new(big.Int).Sub(big.NewInt(1100), required)
	remainingDebt := new(big.Int).Sub(big.NewInt(1000), required)
	ratio := CollateralRatio(remainingCollateral, remainingDebt)
	if ratio.Cmp(big.NewInt(20000)) != 0 {
		t.Fatalf("post-pay ratio = %s, want 20000", ratio)
	}
}

func TestTokensToPayCapsAtUnderwaterCollateral(t *testing.T) {
	// Collateral worth less than the debt: everything sellable is sold.
	required := TokensToPay(big.NewInt(1000), big.NewInt(800), 20000)
	if required.Cmp(big.NewInt(800)) != 0 {
		t.Fatalf("required = %s, want 800", required)
	}
}

func TestTokensToPayZeroWhenHealthy(t *testing.T) {
	required := TokensToPay(big.NewInt(1000), big.NewInt(3000), 20000)
	if required.Sign() != 0 {
		t.Fatalf("required = %s, want 0", required)
	}
}

func TestCanWithdrawHeadroom(t *testing.T) {
	ratio := CollateralRatio(big.NewInt(1100), big.NewInt(500))
	withdrawable := CanWithdraw(big.NewInt(1100), ratio, 15000)
	if withdrawable.Cmp(big.NewInt(350)) != 0 {
		t.Fatalf("withdrawable = %s, want 350", withdrawable)
	}
	// At or below balance: nothing withdrawable.
	if got := CanWithdraw(big.NewInt(1100), big.NewInt(15000), 15000); got.Sign() != 0 {
		t.Fatalf("withdrawable = %s, want 0", got)
	}
}

func TestDebtConversionRoundsUp(t *testing.T) {
	// 10 units at 3 tokens per 7 equivalent: 10*3/7 = 4.28..., collect 5.
	got := DebtInTokens(big.NewInt(10), big.NewInt(3), big.NewInt(7))
	if got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("debt = %s, want 5", got)
	}
	// Collateral valuation rounds down on the same rate.
	if got := CollateralInTokens(big.NewInt(10), big.NewInt(3), big.NewInt(7)); got.Cmp(big.NewInt(4)) != 0 {
		t.Fatalf("collateral = %s, want 4", got)
	}
}

func TestRoundTripDriftBounded(t *testing.T) {
	tokens := big.NewInt(333)
	equivalent := big.NewInt(100)
	for _, amount := range []int64{1, 7, 999, 123457} {
		inBase := CollateralInTokens(big.NewInt(amount), tokens, equivalent)
		back := new(big.Int).Mul(inBase, equivalent)
		back.Quo(back, tokens)
		drift := new(big.Int).Sub(big.NewInt(amount), back)
		if drift.Sign() < 0 || drift.Cmp(big.NewInt(1)) > 0 {
			t.Fatalf("amount %d drift = %s, want 0 or 1", amount, drift)
		}
	}
}
