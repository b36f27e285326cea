package auction

import (
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"lendchain/core/events"
	"lendchain/crypto"
	nativecommon "lendchain/native/common"
)

var (
	errNilState        = errors.New("auction engine: state not configured")
	errNilLedger       = errors.New("auction engine: token ledger not configured")
	errNotFound        = errors.New("auction engine: auction does not exist")
	errInvalidToken    = errors.New("auction engine: from token required")
	errInvalidAmount   = errors.New("auction engine: amount must be positive")
	errStartAboveRef   = errors.New("auction engine: offer should be below reference offer")
	errRefAboveLimit   = errors.New("auction engine: reference offer should be below or equal to limit")
	errBadCurve        = errors.New("auction engine: curve parameters out of range")
	errReentrantTake   = errors.New("auction engine: error during callback")
	errShortAllowance  = errors.New("auction engine: insufficient allowance for full amount")
	errNothingApproved = errors.New("auction engine: taker approved nothing")
	errZeroBeneficiary = errors.New("auction engine: beneficiary required")
)

const moduleName = "auction"

type engineState interface {
	NextAuctionID() (uint64, error)
	GetAuction(id uint64) (*Auction, error)
	PutAuction(a *Auction) error
	DeleteAuction(id uint64) error
}

// TokenLedger is the slice of the token module the auction engine needs.
type TokenLedger interface {
	Transfer(token string, from, to crypto.Address, amount *big.Int) error
	TransferFrom(token string, spender, owner, to crypto.Address, amount *big.Int) error
	Allowance(token string, owner, spender crypto.Address) (*big.Int, error)
}

// OwnerCallback receives control when an auction fully settles. The owner
// may be reassigned while auctions are open; the engine always notifies the
// currently registered owner.
type OwnerCallback interface {
	AuctionClosed(id uint64, leftover, received *big.Int, data []byte) error
}

// TakeCallback lets a taker run logic between receiving the sold collateral
// and paying for it (flash-take). Reentering the engine from the callback
// aborts the whole take.
type TakeCallback interface {
	OnTake(id uint64, sold, requested *big.Int, data []byte) error
}

// Engine owns the auction records and runs the time-decaying settlement
// described by the offer curve.
type Engine struct {
	state         engineState
	ledger        TokenLedger
	moduleAddress crypto.Address
	baseToken     string
	owner         OwnerCallback
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	nowFn         func() int64
	locked        bool
	settling      uint64
}

// NewEngine constructs an auction engine holding escrow at the module
// address and settling takes in the given base token.
func NewEngine(moduleAddr crypto.Address, baseToken string) *Engine {
	return &Engine{
		moduleAddress: moduleAddr,
		baseToken:     strings.ToUpper(strings.TrimSpace(baseToken)),
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the token ledger used for escrow and settlement.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetOwner registers the callback notified when auctions close. All open
// auctions report to the same owner; reassignment takes effect immediately.
func (e *Engine) SetOwner(owner OwnerCallback) {
	if e == nil {
		return
	}
	e.owner = owner
}

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

// SetNowFunc overrides the time source used by the offer curve. Primarily
// intended for tests.
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

// BaseToken returns the settlement token takes are paid in.
func (e *Engine) BaseToken() string { return e.baseToken }

// ModuleAddress returns the escrow vault address.
func (e *Engine) ModuleAddress() crypto.Address { return e.moduleAddress }

// Settling returns the id of the auction currently delivering its close
// callback, zero otherwise. The collateral module uses it to reject
// AuctionClosed calls that did not originate here.
func (e *Engine) Settling() uint64 {
	if e == nil {
		return 0
	}
	return e.settling
}

// Create opens a new auction. The caller transfers in exactly `limit` units
// of fromToken, which becomes the authoritative sellable pool; `amount` is
// the base-currency total the auction should raise.
func (e *Engine) Create(caller, beneficiary crypto.Address, fromToken string, startOffer, refOffer, limit, amount *big.Int) (uint64, error) {
	if e == nil || e.state == nil {
		return 0, errNilState
	}
	if e.ledger == nil {
		return 0, errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	token := strings.ToUpper(strings.TrimSpace(fromToken))
	if token == "" {
		return 0, errInvalidToken
	}
	if beneficiary.IsZero() {
		return 0, errZeroBeneficiary
	}
	if startOffer == nil || refOffer == nil || limit == nil || amount == nil {
		return 0, errInvalidAmount
	}
	if startOffer.Sign() <= 0 || amount.Sign() <= 0 {
		return 0, errInvalidAmount
	}
	if startOffer.Cmp(refOffer) >= 0 {
		return 0, errStartAboveRef
	}
	if refOffer.Cmp(limit) > 0 {
		return 0, errRefAboveLimit
	}
	limitDelta, ok := limitDeltaFor(startOffer, refOffer, limit)
	if !ok {
		return 0, errBadCurve
	}

	if err := e.ledger.Transfer(token, caller, e.moduleAddress, limit); err != nil {
		return 0, fmt.Errorf("auction engine: escrow transfer failed: %w", err)
	}

	id, err := e.state.NextAuctionID()
	if err != nil {
		return 0, err
	}
	created := &Auction{
		ID:           id,
		FromToken:    token,
		Beneficiary:  beneficiary,
		StartTime:    e.now(),
		LimitDelta:   limitDelta,
		StartOffer:   new(big.Int).Set(startOffer),
		RefOffer:     new(big.Int).Set(refOffer),
		Limit:        new(big.Int).Set(limit),
		Amount:       new(big.Int).Set(amount),
		PendingBase:  new(big.Int).Set(amount),
		Escrow:       new(big.Int).Set(limit),
		ReceivedBase: big.NewInt(0),
	}
	if err := e.state.PutAuction(created); err != nil {
		return 0, err
	}
	e.emit(NewCreatedEvent(created))
	return id, nil
}

// Get returns a defensive copy of the auction record.
func (e *Engine) Get(id uint64) (*Auction, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	a, err := e.state.GetAuction(id)
	if err != nil {
		return nil, err
	}
	if a == nil {
		return nil, errNotFound
	}
	return a.Clone(), nil
}

// Exists reports whether the auction record is still open.
func (e *Engine) Exists(id uint64) bool {
	if e == nil || e.state == nil {
		return false
	}
	a, err := e.state.GetAuction(id)
	return err == nil && a != nil
}

// Offer returns the current (selling, requesting) pair for the auction:
// the FromToken quantity released against the base-currency amount due.
func (e *Engine) Offer(id uint64) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	a, err := e.state.GetAuction(id)
	if err != nil {
		return nil, nil, err
	}
	if a == nil {
		return nil, nil, errNotFound
	}
	selling, requesting := offerAt(a, e.now()-a.StartTime)
	return selling, requesting, nil
}

// Take settles the auction at the current offer. The taker receives the
// sold FromToken, then pays the base currency (allowance-capped when
// requireFullAmount is false) straight to the beneficiary. On full
// depletion the record is deleted, leftover escrow returns to the
// beneficiary and the registered owner is called back once with the
// accumulated proceeds. The optional TakeCallback runs between delivery and
// payment; any reentry fails the whole take.
func (e *Engine) Take(taker crypto.Address, id uint64, data []byte, requireFullAmount bool, callback TakeCallback) (*big.Int, *big.Int, error) {
	if e == nil || e.state == nil {
		return nil, nil, errNilState
	}
	if e.ledger == nil {
		return nil, nil, errNilLedger
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return nil, nil, err
	}
	if e.locked {
		return nil, nil, errReentrantTake
	}
	e.locked = true
	defer func() { e.locked = false }()

	a, err := e.state.GetAuction(id)
	if err != nil {
		return nil, nil, err
	}
	if a == nil {
		return nil, nil, errNotFound
	}

	selling, requesting := offerAt(a, e.now()-a.StartTime)

	pay := requesting
	allowance, err := e.ledger.Allowance(e.baseToken, taker, e.moduleAddress)
	if err != nil {
		return nil, nil, err
	}
	if requireFullAmount {
		if allowance.Cmp(requesting) < 0 {
			return nil, nil, errShortAllowance
		}
	} else if allowance.Cmp(requesting) < 0 {
		if allowance.Sign() <= 0 {
			return nil, nil, errNothingApproved
		}
		pay = allowance
	}

	// Proportional FromToken release, floored so a partial take never
	// overdraws the curve.
	sold := new(big.Int).Mul(selling, pay)
	sold.Quo(sold, requesting)
	if sold.Cmp(a.Escrow) > 0 {
		sold = new(big.Int).Set(a.Escrow)
	}

	if sold.Sign() > 0 {
		if err := e.ledger.Transfer(a.FromToken, e.moduleAddress, taker, sold); err != nil {
			return nil, nil, err
		}
	}
	if callback != nil {
		if err := callback.OnTake(id, sold, pay, data); err != nil {
			return nil, nil, fmt.Errorf("auction engine: error during callback: %w", err)
		}
	}
	if err := e.ledger.TransferFrom(e.baseToken, e.moduleAddress, taker, a.Beneficiary, pay); err != nil {
		return nil, nil, err
	}

	a.PendingBase = new(big.Int).Sub(a.PendingBase, pay)
	a.Escrow = new(big.Int).Sub(a.Escrow, sold)
	a.ReceivedBase = new(big.Int).Add(a.ReceivedBase, pay)
	e.emit(NewTakeEvent(a, taker, sold, pay, requireFullAmount))

	if a.PendingBase.Sign() > 0 {
		if err := e.state.PutAuction(a); err != nil {
			return nil, nil, err
		}
		return sold, pay, nil
	}

	leftover := new(big.Int).Set(a.Escrow)
	if leftover.Sign() > 0 {
		if err := e.ledger.Transfer(a.FromToken, e.moduleAddress, a.Beneficiary, leftover); err != nil {
			return nil, nil, err
		}
	}
	if err := e.state.DeleteAuction(id); err != nil {
		return nil, nil, err
	}
	e.emit(NewClosedEvent(a, leftover))

	if e.owner != nil {
		e.settling = id
		err := e.owner.AuctionClosed(id, leftover, a.ReceivedBase, data)
		e.settling = 0
		if err != nil {
			return nil, nil, err
		}
	}
	return sold, pay, nil
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}
