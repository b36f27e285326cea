package converter

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"sync"

	"lendchain/crypto"
)

var (
	errNoConverter    = errors.New("rate converter: no converter registered")
	errNotAdmin       = errors.New("rate converter: sender is not the administrator")
	errInvalidAmount  = errors.New("rate converter: amount must be positive")
	errUnknownPair    = errors.New("rate converter: no rate registered for pair")
	errNilLedger      = errors.New("rate converter: ledger not configured")
	errZeroRate       = errors.New("rate converter: rate must be positive")
	errEmptyLiquidity = errors.New("rate converter: liquidity account not configured")
)

// Converter swaps between two token denominations. GetReturn quotes the
// amount of `to` obtained for selling fromAmount of `from` without moving
// value; Convert executes the swap against the holder's balance.
type Converter interface {
	GetReturn(from, to string, fromAmount *big.Int) (*big.Int, error)
	Convert(from, to string, holder crypto.Address, fromAmount *big.Int) (*big.Int, error)
}

// Registry is the admin-swappable converter reference consumed by the
// collateral engine. Conversion with no registered converter fails loudly;
// a silent zero would let liquidation math treat debt as worthless.
type Registry struct {
	admin     crypto.Address
	converter Converter
}

func NewRegistry(admin crypto.Address) *Registry {
	return &Registry{admin: admin}
}

// SetConverter replaces the active converter. Administrator only.
func (r *Registry) SetConverter(caller crypto.Address, conv Converter) error {
	if r == nil {
		return errNoConverter
	}
	if !caller.Equal(r.admin) {
		return errNotAdmin
	}
	r.converter = conv
	return nil
}

// Registered reports whether a converter is currently available.
func (r *Registry) Registered() bool {
	return r != nil && r.converter != nil
}

func (r *Registry) GetReturn(from, to string, fromAmount *big.Int) (*big.Int, error) {
	if r == nil || r.converter == nil {
		return nil, errNoConverter
	}
	return r.converter.GetReturn(from, to, fromAmount)
}

func (r *Registry) Convert(from, to string, holder crypto.Address, fromAmount *big.Int) (*big.Int, error) {
	if r == nil || r.converter == nil {
		return nil, errNoConverter
	}
	return r.converter.Convert(from, to, holder, fromAmount)
}

type tokenLedger interface {
	Transfer(token string, from, to crypto.Address, amount *big.Int) error
	BalanceOf(token string, addr crypto.Address) (*big.Int, error)
}

type pairRate struct {
	num *big.Int
	den *big.Int
}

// LedgerConverter is a Converter backed by a liquidity account on the token
// ledger and a fixed per-pair rate table. It stands in for the external AMM
// the production deployment would route through.
type LedgerConverter struct {
	mu        sync.RWMutex
	ledger    tokenLedger
	liquidity crypto.Address
	rates     map[string]pairRate
}

func NewLedgerConverter(ledger tokenLedger, liquidity crypto.Address) *LedgerConverter {
	return &LedgerConverter{
		ledger:    ledger,
		liquidity: liquidity,
		rates:     make(map[string]pairRate),
	}
}

func pairKey(from, to string) string {
	return strings.ToUpper(strings.TrimSpace(from)) + "/" + strings.ToUpper(strings.TrimSpace(to))
}

// SetRate registers the pair rate: fromAmount * num / den units of `to` are
// returned per swap. Both legs must be registered explicitly.
func (c *LedgerConverter) SetRate(from, to string, num, den *big.Int) error {
	if c == nil {
		return errNoConverter
	}
	if num == nil || den == nil || num.Sign() <= 0 || den.Sign() <= 0 {
		return errZeroRate
	}
	c.mu.Lock()
	c.rates[pairKey(from, to)] = pairRate{num: new(big.Int).Set(num), den: new(big.Int).Set(den)}
	c.mu.Unlock()
	return nil
}

func (c *LedgerConverter) rate(from, to string) (pairRate, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	rate, ok := c.rates[pairKey(from, to)]
	if !ok {
		return pairRate{}, fmt.Errorf("%w: %s", errUnknownPair, pairKey(from, to))
	}
	return rate, nil
}

func (c *LedgerConverter) GetReturn(from, to string, fromAmount *big.Int) (*big.Int, error) {
	if c == nil {
		return nil, errNoConverter
	}
	if fromAmount == nil || fromAmount.Sign() <= 0 {
		return nil, errInvalidAmount
	}
	rate, err := c.rate(from, to)
	if err != nil {
		return nil, err
	}
	out := new(big.Int).Mul(fromAmount, rate.num)
	return out.Quo(out, rate.den), nil
}

// Convert sells fromAmount of `from` held by the holder against the
// liquidity account and credits the quoted return in `to`.
func (c *LedgerConverter) Convert(from, to string, holder crypto.Address, fromAmount *big.Int) (*big.Int, error) {
	if c == nil {
		return nil, errNoConverter
	}
	if c.ledger == nil {
		return nil, errNilLedger
	}
	if c.liquidity.IsZero() {
		return nil, errEmptyLiquidity
	}
	out, err := c.GetReturn(from, to, fromAmount)
	if err != nil {
		return nil, err
	}
	if out.Sign() <= 0 {
		return nil, errZeroRate
	}
	if err := c.ledger.Transfer(from, holder, c.liquidity, fromAmount); err != nil {
		return nil, err
	}
	if err := c.ledger.Transfer(to, c.liquidity, holder, out); err != nil {
		return nil, err
	}
	return out, nil
}
