package oracle

import (
	"errors"
	"math/big"
)

var errNilSampler = errors.New("oracle sampler: not configured")

// CurrencySampler pins the adapter to a single currency so consumers that
// only speak the legacy ReadSample(data) shape can use the canonical rate
// surface.
type CurrencySampler struct {
	engine   *Engine
	currency string
}

// Sampler returns a per-currency view over the engine.
func (e *Engine) Sampler(currency string) *CurrencySampler {
	return &CurrencySampler{engine: e, currency: normalizeCurrency(currency)}
}

func (s *CurrencySampler) ReadSample(data []byte) (*big.Int, *big.Int, error) {
	if s == nil || s.engine == nil {
		return nil, nil, errNilSampler
	}
	return s.engine.ReadSample(s.currency, data)
}

// StaticSampler serves a fixed (tokens, equivalent) pair regardless of the
// request data. Used for hard-pegged denominations and in tests.
type StaticSampler struct {
	Tokens     *big.Int
	Equivalent *big.Int
}

func (s *StaticSampler) ReadSample([]byte) (*big.Int, *big.Int, error) {
	if s == nil || s.Tokens == nil || s.Equivalent == nil {
		return nil, nil, errNilSampler
	}
	return new(big.Int).Set(s.Tokens), new(big.Int).Set(s.Equivalent), nil
}
