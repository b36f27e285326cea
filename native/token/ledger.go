package token

import (
	"errors"
	"math/big"
	"strings"

	"lendchain/crypto"
)

var (
	errNilState             = errors.New("token ledger: state not configured")
	errInvalidToken         = errors.New("token ledger: token symbol required")
	errInvalidAmount        = errors.New("token ledger: amount must be positive")
	errInsufficientBalance  = errors.New("token ledger: insufficient balance")
	errInsufficientApproval = errors.New("token ledger: insufficient allowance")
	errZeroAddress          = errors.New("token ledger: zero address")
)

type ledgerState interface {
	TokenBalance(token string, addr crypto.Address) (*big.Int, error)
	SetTokenBalance(token string, addr crypto.Address, amount *big.Int) error
	TokenAllowance(token string, owner, spender crypto.Address) (*big.Int, error)
	SetTokenAllowance(token string, owner, spender crypto.Address, amount *big.Int) error
}

// Ledger implements ERC20-style accounting for every token the protocol
// touches. Transfers are all-or-nothing: any failed precondition leaves the
// ledger untouched.
type Ledger struct {
	state ledgerState
}

func NewLedger() *Ledger {
	return &Ledger{}
}

// SetState wires the ledger to the external persistence layer.
func (l *Ledger) SetState(state ledgerState) { l.state = state }

func normalizeToken(token string) string {
	return strings.ToUpper(strings.TrimSpace(token))
}

func (l *Ledger) checkTransfer(token string, amount *big.Int) (string, error) {
	if l == nil || l.state == nil {
		return "", errNilState
	}
	sym := normalizeToken(token)
	if sym == "" {
		return "", errInvalidToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return "", errInvalidAmount
	}
	return sym, nil
}

// BalanceOf returns the current balance, zero when the account is unknown.
func (l *Ledger) BalanceOf(token string, addr crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	balance, err := l.state.TokenBalance(normalizeToken(token), addr)
	if err != nil {
		return nil, err
	}
	if balance == nil {
		return big.NewInt(0), nil
	}
	return balance, nil
}

// Allowance returns the remaining amount the spender may pull from owner.
func (l *Ledger) Allowance(token string, owner, spender crypto.Address) (*big.Int, error) {
	if l == nil || l.state == nil {
		return nil, errNilState
	}
	allowance, err := l.state.TokenAllowance(normalizeToken(token), owner, spender)
	if err != nil {
		return nil, err
	}
	if allowance == nil {
		return big.NewInt(0), nil
	}
	return allowance, nil
}

// Mint credits freshly issued units to the recipient. Used by genesis setup
// and tests; the protocol itself never mints.
func (l *Ledger) Mint(token string, to crypto.Address, amount *big.Int) error {
	sym, err := l.checkTransfer(token, amount)
	if err != nil {
		return err
	}
	if to.IsZero() {
		return errZeroAddress
	}
	balance, err := l.BalanceOf(sym, to)
	if err != nil {
		return err
	}
	return l.state.SetTokenBalance(sym, to, new(big.Int).Add(balance, amount))
}

// Burn destroys units held by the given account.
func (l *Ledger) Burn(token string, from crypto.Address, amount *big.Int) error {
	sym, err := l.checkTransfer(token, amount)
	if err != nil {
		return err
	}
	balance, err := l.BalanceOf(sym, from)
	if err != nil {
		return err
	}
	if balance.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	return l.state.SetTokenBalance(sym, from, new(big.Int).Sub(balance, amount))
}

// Transfer moves amount from one account to another.
func (l *Ledger) Transfer(token string, from, to crypto.Address, amount *big.Int) error {
	sym, err := l.checkTransfer(token, amount)
	if err != nil {
		return err
	}
	if to.IsZero() {
		return errZeroAddress
	}
	fromBalance, err := l.BalanceOf(sym, from)
	if err != nil {
		return err
	}
	if fromBalance.Cmp(amount) < 0 {
		return errInsufficientBalance
	}
	toBalance, err := l.BalanceOf(sym, to)
	if err != nil {
		return err
	}
	if err := l.state.SetTokenBalance(sym, from, new(big.Int).Sub(fromBalance, amount)); err != nil {
		return err
	}
	return l.state.SetTokenBalance(sym, to, new(big.Int).Add(toBalance, amount))
}

// Approve grants the spender permission to pull up to amount from owner.
// A zero amount clears the approval.
func (l *Ledger) Approve(token string, owner, spender crypto.Address, amount *big.Int) error {
	if l == nil || l.state == nil {
		return errNilState
	}
	sym := normalizeToken(token)
	if sym == "" {
		return errInvalidToken
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	if spender.IsZero() {
		return errZeroAddress
	}
	return l.state.SetTokenAllowance(sym, owner, spender, new(big.Int).Set(amount))
}

// TransferFrom moves amount from owner to the recipient, consuming the
// spender's allowance.
func (l *Ledger) TransferFrom(token string, spender, owner, to crypto.Address, amount *big.Int) error {
	sym, err := l.checkTransfer(token, amount)
	if err != nil {
		return err
	}
	allowance, err := l.Allowance(sym, owner, spender)
	if err != nil {
		return err
	}
	if allowance.Cmp(amount) < 0 {
		return errInsufficientApproval
	}
	if err := l.Transfer(sym, owner, to, amount); err != nil {
		return err
	}
	return l.state.SetTokenAllowance(sym, owner, spender, new(big.Int).Sub(allowance, amount))
}
