package auction

import (
	"math/big"

	"lendchain/crypto"
)

// Auction captures one in-progress liquidation sale. The price curve is
// fully determined at creation; PendingBase, Escrow and ReceivedBase track
// settlement progress across partial takes.
type Auction struct {
	ID          uint64
	FromToken   string
	Beneficiary crypto.Address
	// StartTime fixes the origin of the price curve.
	StartTime int64
	// LimitDelta is the elapsed duration in seconds at which the selling
	// curve reaches Limit. Derived once at creation.
	LimitDelta uint64
	// StartOffer is the discounted opening quantity of FromToken offered.
	StartOffer *big.Int
	// RefOffer is the fair-market quantity reached at the market window.
	RefOffer *big.Int
	// Limit caps how much FromToken the auction may sell.
	Limit *big.Int
	// Amount is the base-currency total the auction was asked to raise.
	Amount *big.Int
	// PendingBase is the base-currency amount still to be raised.
	PendingBase *big.Int
	// Escrow is the FromToken quantity still held by the engine.
	Escrow *big.Int
	// ReceivedBase accumulates base currency collected across takes.
	ReceivedBase *big.Int
}

// Clone returns a deep copy so callers cannot mutate engine state through
// shared big integers.
func (a *Auction) Clone() *Auction {
	if a == nil {
		return nil
	}
	clone := &Auction{
		ID:          a.ID,
		FromToken:   a.FromToken,
		Beneficiary: a.Beneficiary,
		StartTime:   a.StartTime,
		LimitDelta:  a.LimitDelta,
	}
	clone.StartOffer = cloneBig(a.StartOffer)
	clone.RefOffer = cloneBig(a.RefOffer)
	clone.Limit = cloneBig(a.Limit)
	clone.Amount = cloneBig(a.Amount)
	clone.PendingBase = cloneBig(a.PendingBase)
	clone.Escrow = cloneBig(a.Escrow)
	clone.ReceivedBase = cloneBig(a.ReceivedBase)
	return clone
}

func cloneBig(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
