package auction

import (
	"math/big"
	"testing"
)

func referenceAuction() *Auction {
	return &Auction{
		ID:           1,
		FromToken:    "COL",
		StartTime:    0,
		LimitDelta:   12600,
		StartOffer:   big.NewInt(950),
		RefOffer:     big.NewInt(1000),
		Limit:        big.NewInt(2000),
		Amount:       big.NewInt(50),
		PendingBase:  big.NewInt(50),
		Escrow:       big.NewInt(2000),
		ReceivedBase: big.NewInt(0),
	}
}

func TestLimitDeltaFor(t *testing.T) {
	delta, ok := limitDeltaFor(big.NewInt(950), big.NewInt(1000), big.NewInt(2000))
	if !ok {
		t.Fatalf("limitDeltaFor failed")
	}
	if delta != 12600 {
		t.Fatalf("limitDelta = %d, want 12600", delta)
	}
	if _, ok := limitDeltaFor(big.NewInt(1000), big.NewInt(1000), big.NewInt(2000)); ok {
		t.Fatalf("flat ramp should be rejected")
	}
}

func TestOfferCurveReferenceVectors(t *testing.T) {
	a := referenceAuction()
	vectors := []struct {
		elapsed    int64
		selling    int64
		requesting int64
	}{
		{0, 950, 50},
		{600, 1000, 50},
		{6600, 1500, 50},
		{12600, 2000, 50},
		{55800, 2000, 25},
		{99000 - 1, 2000, 1},
		{99000 + 43200, 2000, 25},
	}
	for _, v := range vectors {
		selling, requesting := offerAt(a, v.elapsed)
		if selling.Cmp(big.NewInt(v.selling)) != 0 {
			t.Fatalf("t=%d selling = %s, want %d", v.elapsed, selling, v.selling)
		}
		if requesting.Cmp(big.NewInt(v.requesting)) != 0 {
			t.Fatalf("t=%d requesting = %s, want %d", v.elapsed, requesting, v.requesting)
		}
	}
}

func TestSellingCurveMonotoneUntilLimit(t *testing.T) {
	a := referenceAuction()
	prev := sellingAt(a, 0)
	for elapsed := int64(60); elapsed <= int64(a.LimitDelta); elapsed += 60 {
		cur := sellingAt(a, elapsed)
		if cur.Cmp(prev) < 0 {
			t.Fatalf("selling decreased at t=%d: %s < %s", elapsed, cur, prev)
		}
		prev = cur
	}
	if prev.Cmp(a.Limit) != 0 {
		t.Fatalf("selling at limitDelta = %s, want %s", prev, a.Limit)
	}
}

func TestRequestingNonIncreasingWithinWindow(t *testing.T) {
	a := referenceAuction()
	start := int64(a.LimitDelta)
	prev := requestingAt(a, start)
	for elapsed := start + 600; elapsed < start+depletionWindow; elapsed += 600 {
		cur := requestingAt(a, elapsed)
		if cur.Cmp(prev) > 0 {
			t.Fatalf("requesting increased at t=%d: %s > %s", elapsed, cur, prev)
		}
		prev = cur
	}
	// Window boundary restarts at the full amount.
	if got := requestingAt(a, start+depletionWindow); got.Cmp(a.Amount) != 0 {
		t.Fatalf("requesting at window boundary = %s, want %s", got, a.Amount)
	}
}

func TestOfferScalesWithPendingFraction(t *testing.T) {
	a := referenceAuction()
	a.PendingBase = big.NewInt(25)
	a.Escrow = big.NewInt(2000)
	selling, requesting := offerAt(a, 0)
	if selling.Cmp(big.NewInt(475)) != 0 {
		t.Fatalf("scaled selling = %s, want 475", selling)
	}
	if requesting.Cmp(big.NewInt(25)) != 0 {
		t.Fatalf("scaled requesting = %s, want 25", requesting)
	}
}
