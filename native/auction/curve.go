package auction

import "math/big"

// marketDelta is the elapsed time at which the selling curve crosses the
// reference (fair market) offer.
const marketDelta = 600

// depletionWindow is the length of one requested-amount decay epoch past the
// selling plateau. Within a window the requested base amount shrinks
// linearly toward zero; at the window boundary it restarts at the full
// amount so an auction can never become permanently unsellable.
const depletionWindow = 86400

// limitDeltaFor derives the duration at which the selling curve reaches the
// limit: the curve climbs linearly from startOffer at the protocol rate that
// places refOffer exactly at the market point.
func limitDeltaFor(startOffer, refOffer, limit *big.Int) (uint64, bool) {
	span := new(big.Int).Sub(limit, startOffer)
	span.Mul(span, big.NewInt(marketDelta))
	ramp := new(big.Int).Sub(refOffer, startOffer)
	if ramp.Sign() <= 0 {
		return 0, false
	}
	span.Quo(span, ramp)
	if !span.IsUint64() {
		return 0, false
	}
	return span.Uint64(), true
}

// sellingAt returns the FromToken quantity offered after elapsed seconds,
// before partial-fill scaling.
func sellingAt(a *Auction, elapsed int64) *big.Int {
	if elapsed < 0 {
		elapsed = 0
	}
	if a.LimitDelta == 0 || uint64(elapsed) >= a.LimitDelta {
		return new(big.Int).Set(a.Limit)
	}
	climb := new(big.Int).Sub(a.Limit, a.StartOffer)
	climb.Mul(climb, big.NewInt(elapsed))
	climb.Quo(climb, new(big.Int).SetUint64(a.LimitDelta))
	return climb.Add(climb, a.StartOffer)
}

// requestingAt returns the base-currency amount the auction demands after
// elapsed seconds, before partial-fill scaling. Until the selling plateau it
// is the full requested amount; afterwards it decays linearly within each
// depletion window and restarts at the window boundary.
func requestingAt(a *Auction, elapsed int64) *big.Int {
	if elapsed < 0 {
		elapsed = 0
	}
	if uint64(elapsed) <= a.LimitDelta {
		return new(big.Int).Set(a.Amount)
	}
	sinceLimit := uint64(elapsed) - a.LimitDelta
	window := sinceLimit % depletionWindow
	decay := new(big.Int).Mul(a.Amount, new(big.Int).SetUint64(window))
	decay.Quo(decay, big.NewInt(depletionWindow))
	return new(big.Int).Sub(a.Amount, decay)
}

// offerAt computes the current (selling, requesting) pair, scaled down by
// the pending fraction after partial takes. The selling leg rounds down so
// the protocol never sells more collateral than the curve mandates; the
// requesting leg is floored at one base unit to keep the auction takeable.
func offerAt(a *Auction, elapsed int64) (*big.Int, *big.Int) {
	selling := sellingAt(a, elapsed)
	requesting := requestingAt(a, elapsed)
	if a.PendingBase.Cmp(a.Amount) < 0 {
		selling.Mul(selling, a.PendingBase)
		selling.Quo(selling, a.Amount)
		requesting.Mul(requesting, a.PendingBase)
		requesting.Quo(requesting, a.Amount)
	}
	if selling.Cmp(a.Escrow) > 0 {
		selling = new(big.Int).Set(a.Escrow)
	}
	if requesting.Cmp(a.PendingBase) > 0 {
		requesting = new(big.Int).Set(a.PendingBase)
	}
	if requesting.Sign() <= 0 {
		requesting = big.NewInt(1)
	}
	return selling, requesting
}
