package oracle

import (
	"errors"
	"math/big"
	"strings"
	"time"

	"lendchain/core/events"
	"lendchain/crypto"
	nativecommon "lendchain/native/common"
)

var (
	errNilState        = errors.New("oracle engine: state not configured")
	errNotAdmin        = errors.New("oracle engine: sender is not the administrator")
	errInvalidCurrency = errors.New("oracle engine: currency required")
	errExpiredRate     = errors.New("oracle engine: rate expired")
	errNotDelegate     = errors.New("oracle engine: signature is not from a registered delegate")
	errNoCachedRate    = errors.New("oracle engine: no cached rate for currency")
	errZeroDelegate    = errors.New("oracle engine: delegate address required")
)

const moduleName = "oracle"

// defaultExpiration bounds how old a rate report may be before it is
// rejected outright.
const defaultExpiration = 15 * time.Minute

// CachedRate is the per-currency cache entry serving replayed requests
// without re-validating signatures.
type CachedRate struct {
	Timestamp int64
	Rate      *big.Int
	Decimals  uint64
}

// Clone returns a defensive copy of the cache entry.
func (c *CachedRate) Clone() *CachedRate {
	if c == nil {
		return nil
	}
	clone := &CachedRate{Timestamp: c.Timestamp, Decimals: c.Decimals}
	if c.Rate != nil {
		clone.Rate = new(big.Int).Set(c.Rate)
	}
	return clone
}

type engineState interface {
	RateCache(currency string) (*CachedRate, error)
	PutRateCache(currency string, cached *CachedRate) error
	DeleteRateCache(currency string) error
}

// Oracle is the canonical rate surface: rate scaled by 10^decimals base
// units per quoted-currency unit.
type Oracle interface {
	GetRate(currency string, data []byte) (*big.Int, uint64, error)
}

// Engine normalises signer-attested rate reports and legacy read-sample
// feeds into one canonical surface, caching validated reports per currency.
type Engine struct {
	state      engineState
	admin      crypto.Address
	delegates  map[string]bool
	expiration time.Duration
	fallback   Oracle
	emitter    events.Emitter
	pauses     nativecommon.PauseView
	nowFn      func() int64
}

func NewEngine(admin crypto.Address) *Engine {
	return &Engine{
		admin:      admin,
		delegates:  make(map[string]bool),
		expiration: defaultExpiration,
		emitter:    events.NoopEmitter{},
		nowFn:      func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

func (e *Engine) SetPauses(p nativecommon.PauseView) {
	if e == nil {
		return
	}
	e.pauses = p
}

// SetEmitter configures the event emitter. Passing nil resets it to a no-op.
func (e *Engine) SetEmitter(emitter events.Emitter) {
	if e == nil {
		return
	}
	if emitter == nil {
		e.emitter = events.NoopEmitter{}
		return
	}
	e.emitter = emitter
}

// SetNowFunc overrides the time source. Primarily intended for tests.
func (e *Engine) SetNowFunc(now func() int64) {
	if e == nil {
		return
	}
	if now == nil {
		e.nowFn = func() int64 { return time.Now().Unix() }
		return
	}
	e.nowFn = now
}

func (e *Engine) now() int64 {
	if e == nil || e.nowFn == nil {
		return time.Now().Unix()
	}
	return e.nowFn()
}

func (e *Engine) requireAdmin(caller crypto.Address) error {
	if !caller.Equal(e.admin) {
		return errNotAdmin
	}
	return nil
}

// AddDelegate registers a signer whose rate reports are accepted.
func (e *Engine) AddDelegate(caller crypto.Address, delegate crypto.Address) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if delegate.IsZero() {
		return errZeroDelegate
	}
	e.delegates[delegate.String()] = true
	return nil
}

// RemoveDelegate drops a signer from the delegate set.
func (e *Engine) RemoveDelegate(caller crypto.Address, delegate crypto.Address) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	delete(e.delegates, delegate.String())
	return nil
}

// SetExpiration updates the freshness window applied to incoming reports.
func (e *Engine) SetExpiration(caller crypto.Address, expiration time.Duration) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if expiration <= 0 {
		expiration = defaultExpiration
	}
	e.expiration = expiration
	return nil
}

// SetFallback delegates every request to the given oracle. Passing nil
// restores local validation.
func (e *Engine) SetFallback(caller crypto.Address, fallback Oracle) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	e.fallback = fallback
	return nil
}

// InvalidateCache zeroes the per-currency cache entry, forcing the next
// request to revalidate fully.
func (e *Engine) InvalidateCache(caller crypto.Address, currency string) error {
	if err := e.requireAdmin(caller); err != nil {
		return err
	}
	if e.state == nil {
		return errNilState
	}
	sym := normalizeCurrency(currency)
	if sym == "" {
		return errInvalidCurrency
	}
	if err := e.state.DeleteRateCache(sym); err != nil {
		return err
	}
	e.emit(NewCacheInvalidatedEvent(sym))
	return nil
}

func normalizeCurrency(currency string) string {
	return strings.ToUpper(strings.TrimSpace(currency))
}

// GetRate resolves the canonical (rate, decimals) pair for a currency.
//
// With a fallback configured the request is delegated entirely and flagged
// with a distinguishable event. Otherwise the report is decoded and checked
// for freshness; reports older than the cached observation serve the cached
// value unchanged (request replay without re-signing), while fresher reports
// are signature-checked against the delegate set and stored.
func (e *Engine) GetRate(currency string, data []byte) (*big.Int, uint64, error) {
	if e == nil || e.state == nil {
		return nil, 0, errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, 0, err
	}
	sym := normalizeCurrency(currency)
	if sym == "" {
		return nil, 0, errInvalidCurrency
	}

	if e.fallback != nil {
		rate, decimals, err := e.fallback.GetRate(sym, data)
		if err != nil {
			return nil, 0, err
		}
		e.emit(NewDelegatedRateEvent(sym, rate, decimals))
		return rate, decimals, nil
	}

	if len(data) == 0 {
		return e.cachedRate(sym)
	}

	report, err := DecodeReport(data)
	if err != nil {
		return nil, 0, err
	}
	if e.now()-report.Timestamp > int64(e.expiration/time.Second) {
		return nil, 0, errExpiredRate
	}

	cached, err := e.state.RateCache(sym)
	if err != nil {
		return nil, 0, err
	}
	if cached != nil && cached.Timestamp >= report.Timestamp {
		e.emit(NewCacheHitEvent(sym, cached))
		return new(big.Int).Set(cached.Rate), cached.Decimals, nil
	}

	signer, err := crypto.RecoverAddress(report.Digest(sym), report.Signature)
	if err != nil {
		return nil, 0, err
	}
	if !e.delegates[signer.String()] {
		return nil, 0, errNotDelegate
	}

	fresh := &CachedRate{
		Timestamp: report.Timestamp,
		Rate:      new(big.Int).Set(report.Rate),
		Decimals:  report.Decimals,
	}
	if err := e.state.PutRateCache(sym, fresh); err != nil {
		return nil, 0, err
	}
	e.emit(NewDeliveredRateEvent(sym, fresh, signer))
	return new(big.Int).Set(report.Rate), report.Decimals, nil
}

func (e *Engine) cachedRate(sym string) (*big.Int, uint64, error) {
	cached, err := e.state.RateCache(sym)
	if err != nil {
		return nil, 0, err
	}
	if cached == nil || cached.Rate == nil {
		return nil, 0, errNoCachedRate
	}
	if e.now()-cached.Timestamp > int64(e.expiration/time.Second) {
		return nil, 0, errExpiredRate
	}
	e.emit(NewCacheHitEvent(sym, cached))
	return new(big.Int).Set(cached.Rate), cached.Decimals, nil
}

// ReadSample adapts the canonical rate into the legacy (tokens, equivalent)
// sample shape: tokens base units per equivalent quoted units.
func (e *Engine) ReadSample(currency string, data []byte) (*big.Int, *big.Int, error) {
	rate, decimals, err := e.GetRate(currency, data)
	if err != nil {
		return nil, nil, err
	}
	equivalent := new(big.Int).Exp(big.NewInt(10), new(big.Int).SetUint64(decimals), nil)
	return rate, equivalent, nil
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}
