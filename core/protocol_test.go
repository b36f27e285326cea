package core

import (
	"math/big"
	"testing"

	"lendchain/config"
	"lendchain/crypto"
	"lendchain/native/collateral"
	"lendchain/storage"
)

type stubDebtLedger struct {
	obligation *big.Int
	status     collateral.Status
	dueTime    int64
}

func (s *stubDebtLedger) ClosingObligation([32]byte) (*big.Int, error) {
	return new(big.Int).Set(s.obligation), nil
}

func (s *stubDebtLedger) Status([32]byte) (collateral.Status, error) { return s.status, nil }

func (s *stubDebtLedger) DueTime([32]byte) (int64, error) { return s.dueTime, nil }

func (s *stubDebtLedger) Pay(_ [32]byte, _ crypto.Address, amount *big.Int, _ []byte) (*big.Int, error) {
	paid := new(big.Int).Set(amount)
	if paid.Cmp(s.obligation) > 0 {
		paid.Set(s.obligation)
	}
	s.obligation = new(big.Int).Sub(s.obligation, paid)
	return paid, nil
}

type stubLoanDirectory struct{}

func (stubLoanDirectory) IsOpen([32]byte) (bool, error) { return true, nil }
func (stubLoanDirectory) IsLent([32]byte) (bool, error) { return false, nil }

func testAddr(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.NewAddress(crypto.LendPrefix, raw)
}

// Full liquidation round trip over the assembled protocol: an entry slides
// under its liquidation ratio, a claim opens a discounted auction, a taker
// settles it and the close callback pays the debt and restores the unsold
// leftover to the entry.
func TestLiquidationRoundTrip(t *testing.T) {
	admin := testAddr(8)
	owner := testAddr(1)
	taker := testAddr(2)

	protocol, err := NewProtocol(storage.NewMemDB(), config.Default(), admin)
	if err != nil {
		t.Fatalf("new protocol: %v", err)
	}
	now := int64(1_700_000_000)
	protocol.Auctions.SetNowFunc(func() int64 { return now })
	protocol.Collateral.SetNowFunc(func() int64 { return now })

	debts := &stubDebtLedger{obligation: big.NewInt(1000), dueTime: now + 86400}
	protocol.Collateral.SetDebtLedger(debts)
	protocol.Collateral.SetLoanDirectory(stubLoanDirectory{})

	if err := protocol.Tokens.Mint("COL", owner, big.NewInt(1100)); err != nil {
		t.Fatalf("mint collateral: %v", err)
	}
	if err := protocol.Tokens.Mint("RCN", taker, big.NewInt(900)); err != nil {
		t.Fatalf("mint base: %v", err)
	}

	var debtID [32]byte
	debtID[0] = 0xAB
	entryID, err := protocol.Collateral.Create(owner, owner, debtID, "COL", "",
		big.NewInt(1100), 12000, 20000, 0, 0)
	if err != nil {
		t.Fatalf("create entry: %v", err)
	}

	// 1100 collateral against a 1000 obligation is a 110% ratio, below
	// the 120% liquidation threshold.
	claimed, err := protocol.Collateral.Claim(taker, debtID, nil)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatalf("claim took no action")
	}
	auctionID, ok, err := protocol.State.AuctionForEntry(entryID)
	if err != nil || !ok {
		t.Fatalf("auction link missing: ok=%v err=%v", ok, err)
	}

	selling, requesting, err := protocol.Auctions.Offer(auctionID)
	if err != nil {
		t.Fatalf("offer: %v", err)
	}
	if selling.Cmp(big.NewInt(855)) != 0 || requesting.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("offer = (%s, %s), want (855, 900)", selling, requesting)
	}

	if err := protocol.Tokens.Approve("RCN", taker, protocol.Auctions.ModuleAddress(), big.NewInt(900)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	sold, paid, err := protocol.Auctions.Take(taker, auctionID, nil, true, nil)
	if err != nil {
		t.Fatalf("take: %v", err)
	}
	if sold.Cmp(big.NewInt(855)) != 0 || paid.Cmp(big.NewInt(900)) != 0 {
		t.Fatalf("take = (%s, %s), want (855, 900)", sold, paid)
	}

	// Close callback settled the debt and restored the unsold escrow.
	if debts.obligation.Cmp(big.NewInt(100)) != 0 {
		t.Fatalf("obligation = %s, want 100", debts.obligation)
	}
	entry, err := protocol.Collateral.Get(entryID)
	if err != nil {
		t.Fatalf("get entry: %v", err)
	}
	if entry.Amount.Cmp(big.NewInt(245)) != 0 {
		t.Fatalf("restored entry amount = %s, want 245", entry.Amount)
	}
	if _, ok, _ := protocol.State.AuctionForEntry(entryID); ok {
		t.Fatalf("auction bijection not cleared")
	}
	takerCol, err := protocol.Tokens.BalanceOf("COL", taker)
	if err != nil {
		t.Fatalf("taker balance: %v", err)
	}
	if takerCol.Cmp(big.NewInt(855)) != 0 {
		t.Fatalf("taker collateral = %s, want 855", takerCol)
	}
}
