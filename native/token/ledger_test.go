package token

import (
	"math/big"
	"testing"

	"lendchain/crypto"
)

type mockLedgerState struct {
	balances   map[string]*big.Int
	allowances map[string]*big.Int
}

func newMockLedgerState() *mockLedgerState {
	return &mockLedgerState{
		balances:   make(map[string]*big.Int),
		allowances: make(map[string]*big.Int),
	}
}

func balanceKey(token string, addr crypto.Address) string {
	return token + "/" + addr.String()
}

func allowanceKey(token string, owner, spender crypto.Address) string {
	return token + "/" + owner.String() + "/" + spender.String()
}

func (m *mockLedgerState) TokenBalance(token string, addr crypto.Address) (*big.Int, error) {
	if v, ok := m.balances[balanceKey(token, addr)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *mockLedgerState) SetTokenBalance(token string, addr crypto.Address, amount *big.Int) error {
	m.balances[balanceKey(token, addr)] = new(big.Int).Set(amount)
	return nil
}

func (m *mockLedgerState) TokenAllowance(token string, owner, spender crypto.Address) (*big.Int, error) {
	if v, ok := m.allowances[allowanceKey(token, owner, spender)]; ok {
		return new(big.Int).Set(v), nil
	}
	return big.NewInt(0), nil
}

func (m *mockLedgerState) SetTokenAllowance(token string, owner, spender crypto.Address, amount *big.Int) error {
	m.allowances[allowanceKey(token, owner, spender)] = new(big.Int).Set(amount)
	return nil
}

func testAddr(b byte) crypto.Address {
	raw := make([]byte, 20)
	raw[19] = b
	return crypto.NewAddress(crypto.LendPrefix, raw)
}

func newTestLedger(t *testing.T) (*Ledger, *mockLedgerState) {
	t.Helper()
	state := newMockLedgerState()
	ledger := NewLedger()
	ledger.SetState(state)
	return ledger, state
}

func TestTransferMovesBalance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	alice := testAddr(1)
	bob := testAddr(2)
	if err := ledger.Mint("RCN", alice, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Transfer("RCN", alice, bob, big.NewInt(40)); err != nil {
		t.Fatalf("transfer: %v", err)
	}
	got, err := ledger.BalanceOf("RCN", alice)
	if err != nil {
		t.Fatalf("balance alice: %v", err)
	}
	if got.Cmp(big.NewInt(60)) != 0 {
		t.Fatalf("alice balance = %s, want 60", got)
	}
	got, err = ledger.BalanceOf("rcn", bob)
	if err != nil {
		t.Fatalf("balance bob: %v", err)
	}
	if got.Cmp(big.NewInt(40)) != 0 {
		t.Fatalf("bob balance = %s, want 40", got)
	}
}

func TestTransferInsufficientBalance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	alice := testAddr(1)
	bob := testAddr(2)
	if err := ledger.Mint("RCN", alice, big.NewInt(10)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	err := ledger.Transfer("RCN", alice, bob, big.NewInt(11))
	if err != errInsufficientBalance {
		t.Fatalf("transfer err = %v, want %v", err, errInsufficientBalance)
	}
	got, _ := ledger.BalanceOf("RCN", alice)
	if got.Cmp(big.NewInt(10)) != 0 {
		t.Fatalf("failed transfer mutated balance: %s", got)
	}
}

func TestTransferRejectsInvalidAmount(t *testing.T) {
	ledger, _ := newTestLedger(t)
	alice := testAddr(1)
	bob := testAddr(2)
	if err := ledger.Transfer("RCN", alice, bob, big.NewInt(0)); err != errInvalidAmount {
		t.Fatalf("zero amount err = %v, want %v", err, errInvalidAmount)
	}
	if err := ledger.Transfer("RCN", alice, bob, nil); err != errInvalidAmount {
		t.Fatalf("nil amount err = %v, want %v", err, errInvalidAmount)
	}
}

func TestTransferFromConsumesAllowance(t *testing.T) {
	ledger, _ := newTestLedger(t)
	owner := testAddr(1)
	spender := testAddr(2)
	dest := testAddr(3)
	if err := ledger.Mint("RCN", owner, big.NewInt(100)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Approve("RCN", owner, spender, big.NewInt(50)); err != nil {
		t.Fatalf("approve: %v", err)
	}
	if err := ledger.TransferFrom("RCN", spender, owner, dest, big.NewInt(30)); err != nil {
		t.Fatalf("transferFrom: %v", err)
	}
	remaining, err := ledger.Allowance("RCN", owner, spender)
	if err != nil {
		t.Fatalf("allowance: %v", err)
	}
	if remaining.Cmp(big.NewInt(20)) != 0 {
		t.Fatalf("allowance = %s, want 20", remaining)
	}
	if err := ledger.TransferFrom("RCN", spender, owner, dest, big.NewInt(21)); err != errInsufficientApproval {
		t.Fatalf("over-allowance err = %v, want %v", err, errInsufficientApproval)
	}
}

func TestBurnReducesSupply(t *testing.T) {
	ledger, _ := newTestLedger(t)
	alice := testAddr(1)
	if err := ledger.Mint("RCN", alice, big.NewInt(5)); err != nil {
		t.Fatalf("mint: %v", err)
	}
	if err := ledger.Burn("RCN", alice, big.NewInt(3)); err != nil {
		t.Fatalf("burn: %v", err)
	}
	got, _ := ledger.BalanceOf("RCN", alice)
	if got.Cmp(big.NewInt(2)) != 0 {
		t.Fatalf("balance = %s, want 2", got)
	}
	if err := ledger.Burn("RCN", alice, big.NewInt(3)); err != errInsufficientBalance {
		t.Fatalf("over-burn err = %v, want %v", err, errInsufficientBalance)
	}
}
