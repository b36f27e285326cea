package collateral

import (
	"math/big"
	"testing"
)

func TestClaimHealthyEntryTakesNoAction(t *testing.T) {
	fix := newCollateralFixture(t)
	fix.createEntry(t, 3000, 12000, 20000, 0, 0)
	fix.debts.obligation = big.NewInt(1000)

	claimed, err := fix.engine.Claim(fix.owner, fix.debtID, nil)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if claimed {
		t.Fatalf("healthy entry was claimed")
	}
	if fix.auctions.calls != 0 {
		t.Fatalf("auction opened for healthy entry")
	}
}

func TestClaimUnknownDebtFails(t *testing.T) {
	fix := newCollateralFixture(t)
	var unknown [32]byte
	unknown[0] = 0xFF
	if _, err := fix.engine.Claim(fix.owner, unknown, nil); err != errNoEntryForDebt {
		t.Fatalf("err = %v, want %v", err, errNoEntryForDebt)
	}
}

func TestClaimConvertPayRestoresBalanceRatio(t *testing.T) {
	fix := newCollateralFixture(t)
	id := fix.createEntry(t, 1100, 12000, 20000, 0, 0)
	fix.debts.obligation = big.NewInt(1000)
	fix.engine.SetConverter(&passthroughConverter{ledger: fix.ledger})

	claimed, err := fix.engine.Claim(fix.owner, fix.debtID, nil)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatalf("under-collateralised entry was not claimed")
	}
	entry, _ := fix.engine.Get(id)
	if entry.Amount.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("entry amount = %s, want 200", entry.Amount)
	}
	if fix.debts.obligation.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("obligation = %s, want 100", fix.debts.obligation)
	}
	if fix.auctions.calls != 0 {
		t.Fatalf("auction opened despite converter")
	}
	// Ratio is restored to the balance target: 200*BASE/100 = 20000.
	ratio := CollateralRatio(entry.Amount, fix.debts.obligation)
	if ratio.Cmp(big.NewInt(20000)) != 0 {
		t.Fatalf("post-claim ratio = %s, want 20000", ratio)
	}
}

func TestClaimConvertPayCollectsFees(t *testing.T) {
	fix := newCollateralFixture(t)
	burner := testAddr(6)
	fix.engine.SetBurner(burner)
	id, err := fix.engine.Create(fix.owner, fix.owner, fix.debtID, "COL", "",
		big.NewInt(1100), 12000, 20000, 100, 200, // 1% burn, 2% reward
	)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	fix.debts.obligation = big.NewInt(1000)
	fix.engine.SetConverter(&passthroughConverter{ledger: fix.ledger})

	if _, err := fix.engine.Claim(fix.owner, fix.debtID, nil); err != nil {
		t.Fatalf("claim: %v", err)
	}
	// 900 sold, fees on the liquidated amount: burn ceil(900*1%) = 9,
	// reward ceil(900*2%) = 18.
	if got := fix.ledger.balance("COL", burner); got.Cmp(big.NewInt(9)) != 0 {
		t.Fatalf("burner fee = %s, want 9", got)
	}
	if got := fix.ledger.balance("COL", fix.owner); got.Cmp(big.NewInt(8918)) != 0 {
		t.Fatalf("owner reward balance = %s, want 8918", got)
	}
	entry, _ := fix.engine.Get(id)
	if entry.Amount.Cmp(big.NewInt(173)) != 0 {
		t.Fatalf("entry amount = %s, want 173", entry.Amount)
	}
}

func TestClaimExpiredCollectsPenalty(t *testing.T) {
	fix := newCollateralFixture(t)
	id := fix.createEntry(t, 1100, 12000, 20000, 0, 0)
	fix.debts.obligation = big.NewInt(100)
	fix.debts.dueTime = fix.now - 1
	fix.engine.SetConverter(&passthroughConverter{ledger: fix.ledger})

	claimed, err := fix.engine.Claim(fix.owner, fix.debtID, nil)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatalf("expired debt was not claimed")
	}
	// Collect obligation*105/100 = 105; debt absorbs 100, excess 5 goes
	// back to the entry owner in base currency.
	entry, _ := fix.engine.Get(id)
	if entry.Amount.Cmp(big.NewInt(995)) != 0 {
		t.Fatalf("entry amount = %s, want 995", entry.Amount)
	}
	if fix.debts.obligation.Sign() != 0 {
		t.Fatalf("obligation = %s, want 0", fix.debts.obligation)
	}
	if got := fix.ledger.balance("RCN", fix.owner); got.Cmp(big.NewInt(5)) != 0 {
		t.Fatalf("owner excess = %s, want 5", got)
	}
}

func TestClaimOpensAuctionWithoutConverter(t *testing.T) {
	fix := newCollateralFixture(t)
	id := fix.createEntry(t, 1100, 12000, 20000, 0, 0)
	fix.debts.obligation = big.NewInt(1000)

	claimed, err := fix.engine.Claim(fix.owner, fix.debtID, nil)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatalf("entry was not claimed")
	}
	if fix.auctions.calls != 1 {
		t.Fatalf("auction calls = %d, want 1", fix.auctions.calls)
	}
	if fix.auctions.amount.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("auction amount = %s, want 900", fix.auctions.amount)
	}
	if fix.auctions.limit.Cmp(big.NewInt(1100)) != 0 {
		t.Fatalf("auction limit = %s, want 1100", fix.auctions.limit)
	}
	if fix.auctions.refOffer.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("auction refOffer = %s, want 900", fix.auctions.refOffer)
	}
	// 5% opening discount.
	if fix.auctions.startOffer.Cmp(big.NewInt(855)) != 0 {
		t.Fatalf("auction startOffer = %s, want 855", fix.auctions.startOffer)
	}
	entry, _ := fix.engine.Get(id)
	if entry.Amount.Sign() != 0 {
		t.Fatalf("entry amount = %s, want 0 while in auction", entry.Amount)
	}
	if _, ok := fix.state.entryToAuct[id]; !ok {
		t.Fatalf("auction bijection not recorded")
	}

	// Claim is idempotent while the auction is open.
	if _, err := fix.engine.Claim(fix.owner, fix.debtID, nil); err != errAuctionExists {
		t.Fatalf("second claim err = %v, want %v", err, errAuctionExists)
	}
}

type fixedSampler struct {
	tokens     int64
	equivalent int64
}

func (s fixedSampler) ReadSample([]byte) (*big.Int, *big.Int, error) {
	return big.NewInt(s.tokens), big.NewInt(s.equivalent), nil
}

func TestClaimDustEntryCannotAuction(t *testing.T) {
	fix := newCollateralFixture(t)
	id := fix.createEntry(t, 1, 12000, 20000, 0, 0)
	fix.debts.obligation = big.NewInt(1)

	// A one-unit entry cannot host a curve with a strictly discounted
	// opening offer; the claim fails instead of escrowing beyond it.
	if _, err := fix.engine.Claim(fix.owner, fix.debtID, nil); err != errEntryTooSmall {
		t.Fatalf("dust claim err = %v, want %v", err, errEntryTooSmall)
	}
	if fix.auctions.calls != 0 {
		t.Fatalf("auction opened for dust entry")
	}
	entry, _ := fix.engine.Get(id)
	if entry.Amount.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("entry amount = %s, want 1 untouched", entry.Amount)
	}
}

func TestClaimAuctionNeverEscrowsBeyondEntry(t *testing.T) {
	fix := newCollateralFixture(t)
	// One collateral token is worth 1000 base, so a small overdue
	// obligation collapses the reference offer to a single token.
	fix.engine.SetSampler("HVY", fixedSampler{tokens: 1000, equivalent: 1})
	id, err := fix.engine.Create(fix.owner, fix.owner, fix.debtID, "COL", "HVY",
		big.NewInt(2000), 12000, 20000, 0, 0)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	fix.debts.obligation = big.NewInt(900)
	fix.debts.dueTime = fix.now - 1

	claimed, err := fix.engine.Claim(fix.owner, fix.debtID, nil)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatalf("overdue debt was not claimed")
	}
	// Collect 900*105/100 = 945 base; the offers compress around the
	// one-token reference while the limit stays the entry balance.
	if fix.auctions.amount.Cmp(big.NewInt(945)) != 0 {
		t.Fatalf("auction amount = %s, want 945", fix.auctions.amount)
	}
	if fix.auctions.startOffer.Cmp(big.NewInt(1)) != 0 {
		t.Fatalf("auction startOffer = %s, want 1", fix.auctions.startOffer)
	}
	if fix.auctions.refOffer.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("auction refOffer = %s, want 2", fix.auctions.refOffer)
	}
	if fix.auctions.limit.Cmp(big.NewInt(2000)) != 0 {
		t.Fatalf("auction limit = %s, want the entry balance 2000", fix.auctions.limit)
	}
	entry, _ := fix.engine.Get(id)
	if entry.Amount.Sign() != 0 {
		t.Fatalf("entry amount = %s, want 0 while in auction", entry.Amount)
	}
}

func TestAuctionClosedSettlesDebtAndRestoresLeftover(t *testing.T) {
	fix := newCollateralFixture(t)
	id := fix.createEntry(t, 1100, 12000, 20000, 0, 0)
	fix.debts.obligation = big.NewInt(1000)
	if _, err := fix.engine.Claim(fix.owner, fix.debtID, nil); err != nil {
		t.Fatalf("claim: %v", err)
	}
	auctionID := fix.auctions.createdID
	fix.ledger.credit("RCN", fix.engine.ModuleAddress(), 950)

	// Unauthorized close: the auction engine is not settling this id.
	if err := fix.engine.AuctionClosed(auctionID, big.NewInt(200), big.NewInt(950), nil); err != errOnlyAuctionEngine {
		t.Fatalf("unauthorized close err = %v, want %v", err, errOnlyAuctionEngine)
	}

	fix.auctions.settling = auctionID
	if err := fix.engine.AuctionClosed(auctionID, big.NewInt(200), big.NewInt(950), nil); err != nil {
		t.Fatalf("auction closed: %v", err)
	}
	entry, _ := fix.engine.Get(id)
	if entry.Amount.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("restored amount = %s, want 200", entry.Amount)
	}
	if fix.debts.obligation.Cmp(big.NewInt(50)) != 0 {
		t.Fatalf("obligation = %s, want 50", fix.debts.obligation)
	}
	if _, ok := fix.state.entryToAuct[id]; ok {
		t.Fatalf("bijection not cleared")
	}
	// Deposits work again after settlement.
	if err := fix.engine.Deposit(fix.owner, id, big.NewInt(10)); err != nil {
		t.Fatalf("post-close deposit: %v", err)
	}
}

func TestAuctionClosedPaysExcessToOwner(t *testing.T) {
	fix := newCollateralFixture(t)
	id := fix.createEntry(t, 1100, 12000, 20000, 0, 0)
	fix.debts.obligation = big.NewInt(1000)
	if _, err := fix.engine.Claim(fix.owner, fix.debtID, nil); err != nil {
		t.Fatalf("claim: %v", err)
	}
	auctionID := fix.auctions.createdID
	fix.ledger.credit("RCN", fix.engine.ModuleAddress(), 1200)
	fix.auctions.settling = auctionID

	if err := fix.engine.AuctionClosed(auctionID, big.NewInt(0), big.NewInt(1200), nil); err != nil {
		t.Fatalf("auction closed: %v", err)
	}
	if fix.debts.obligation.Sign() != 0 {
		t.Fatalf("obligation = %s, want 0", fix.debts.obligation)
	}
	if got := fix.ledger.balance("RCN", fix.owner); got.Cmp(big.NewInt(200)) != 0 {
		t.Fatalf("owner excess = %s, want 200", got)
	}
	if got := fix.engine.mustEntryAmount(t, id); got.Sign() != 0 {
		t.Fatalf("entry amount = %s, want 0", got)
	}
}

func (e *Engine) mustEntryAmount(t *testing.T, id uint64) *big.Int {
	t.Helper()
	entry, err := e.Get(id)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	return entry.Amount
}
