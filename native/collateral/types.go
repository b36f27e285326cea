package collateral

import (
	"math/big"

	"lendchain/crypto"
)

// BASE is the fixed-point denominator for every ratio and fee: 10000
// represents 100.00%.
const BASE = 10000

// Entry is one collateral position securing an external debt. Amount is the
// live token balance held by the module vault for this entry; it is zeroed
// while an auction is open and restored from the auction leftover on close.
type Entry struct {
	ID             uint64
	Owner          crypto.Address
	Token          string
	OracleCurrency string
	DebtID         [32]byte
	Amount         *big.Int
	// Ratios and fees are BASE-scaled basis points.
	LiquidationRatio uint64
	BalanceRatio     uint64
	BurnFee          uint64
	RewardFee        uint64
}

// Clone returns a deep copy so callers cannot mutate engine state through
// the shared amount.
func (e *Entry) Clone() *Entry {
	if e == nil {
		return nil
	}
	clone := *e
	if e.Amount != nil {
		clone.Amount = new(big.Int).Set(e.Amount)
	}
	return &clone
}
