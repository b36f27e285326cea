package collateral

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
	errNilState            = errors.New("collateral engine: state not configured")
	errNilLedger           = errors.New("collateral engine: token ledger not configured")
	errNilDebts            = errors.New("collateral engine: debt ledger not configured")
	errNilLoans            = errors.New("collateral engine: loan directory not configured")
	errNilAuctions         = errors.New("collateral engine: auction house not configured")
	errEntryNotFound       = errors.New("collateral engine: entry does not exist")
	errZeroOwner           = errors.New("collateral engine: owner required")
	errInvalidToken        = errors.New("collateral engine: token required")
	errInvalidAmount       = errors.New("collateral engine: amount must be positive")
	errZeroAmount          = errors.New("collateral engine: amount must not be zero")
	errLiquidationRatio    = errors.New("collateral engine: liquidation ratio should be above the base")
	errBalanceRatio        = errors.New("collateral engine: balance ratio should be above or equal the liquidation ratio")
	errFeeHeadroom         = errors.New("collateral engine: fee should be less than the difference between balance ratio and liquidation ratio")
	errDebtNotOpen         = errors.New("collateral engine: debt request is not open")
	errDebtAlreadyLent     = errors.New("collateral engine: debt request is already lent")
	errLiabilityExists     = errors.New("collateral engine: liability exists for debt")
	errNotAuthorized       = errors.New("collateral engine: sender not authorized")
	errNotAdmin            = errors.New("collateral engine: sender is not the administrator")
	errEntryInAuction      = errors.New("collateral engine: can't deposit during auction")
	errWithdrawInAuction   = errors.New("collateral engine: can't withdraw during auction")
	errNothingWithdrawable = errors.New("collateral engine: don't have collateral to withdraw")
	errWithdrawTooMuch     = errors.New("collateral engine: withdrawable collateral is not enough")
	errDebtNotPaid         = errors.New("collateral engine: debt is not paid")
	errDebtNotInError      = errors.New("collateral engine: debt is not in error status")
	errNoSampler           = errors.New("collateral engine: no sampler for oracle currency")
	errNoEntryForDebt      = errors.New("collateral engine: collateral not found for debtId")
	errEntryTooSmall       = errors.New("collateral engine: entry too small to open an auction")
	errAuctionExists       = errors.New("collateral engine: auction already exists")
	errOnlyAuctionEngine   = errors.New("collateral engine: only the auction engine may close")
	errNoEntryForAuction   = errors.New("collateral engine: no entry recorded for auction")
)

const moduleName = "collateral"

// defaultDiscountBps is the opening discount applied to the market value
// when an auction starts: startOffer = refOffer * (BASE-discount) / BASE.
const defaultDiscountBps = 500

// expiredPenaltyNum/Den is the 5% buffer collected on top of a due
// obligation when claiming an expired debt.
const (
	expiredPenaltyNum = 105
	expiredPenaltyDen = 100
)

type engineState interface {
	NextEntryID() (uint64, error)
	GetEntry(id uint64) (*Entry, error)
	PutEntry(entry *Entry) error
	EntryIDByDebt(debtID [32]byte) (uint64, bool, error)
	SetDebtIndex(debtID [32]byte, entryID uint64) error
	ClearDebtIndex(debtID [32]byte) error
	AuctionForEntry(entryID uint64) (uint64, bool, error)
	EntryForAuction(auctionID uint64) (uint64, bool, error)
	SetAuctionLink(entryID, auctionID uint64) error
	ClearAuctionLink(entryID, auctionID uint64) error
}

// Engine owns the collateral entry table and drives the liquidation flow:
// permissionless claims, the direct convert-pay path and the auction path,
// and the settlement callback when an auction fully closes.
type Engine struct {
	state         engineState
	ledger        TokenLedger
	debts         DebtLedger
	loans         LoanDirectory
	auctions      AuctionHouse
	converter     TokenConverter
	samplers      map[string]Sampler
	moduleAddress crypto.Address
	baseToken     string
	admin         crypto.Address
	burner        crypto.Address
	discountBps   uint64
	strictZeroWd  bool
	emitter       events.Emitter
	pauses        nativecommon.PauseView
	nowFn         func() int64
}

// NewEngine constructs a collateral engine holding entry balances at the
// module vault address and settling debts in the given base token.
func NewEngine(moduleAddr crypto.Address, baseToken string, admin crypto.Address) *Engine {
	return &Engine{
		samplers:      make(map[string]Sampler),
		moduleAddress: moduleAddr,
		baseToken:     strings.ToUpper(strings.TrimSpace(baseToken)),
		admin:         admin,
		discountBps:   defaultDiscountBps,
		emitter:       events.NoopEmitter{},
		nowFn:         func() int64 { return time.Now().Unix() },
	}
}

// SetState wires the engine to the external persistence layer.
func (e *Engine) SetState(state engineState) { e.state = state }

// SetLedger wires the token ledger used to custody collateral.
func (e *Engine) SetLedger(ledger TokenLedger) { e.ledger = ledger }

// SetDebtLedger wires the external debt engine.
func (e *Engine) SetDebtLedger(debts DebtLedger) { e.debts = debts }

// SetLoanDirectory wires the loan request book consulted at creation.
func (e *Engine) SetLoanDirectory(loans LoanDirectory) { e.loans = loans }

// SetAuctionHouse wires the auction engine used by the liquidation flow.
func (e *Engine) SetAuctionHouse(auctions AuctionHouse) { e.auctions = auctions }

// SetConverter registers the direct-pay converter. Passing nil routes every
// liquidation through the auction path.
func (e *Engine) SetConverter(conv TokenConverter) { e.converter = conv }

// SetSampler registers the oracle sampler serving a currency. Entries with
// an empty oracle currency are valued 1:1 and need no sampler.
func (e *Engine) SetSampler(currency string, sampler Sampler) {
	if e == nil {
		return
	}
	sym := strings.ToUpper(strings.TrimSpace(currency))
	if sym == "" {
		return
	}
	if sampler == nil {
		delete(e.samplers, sym)
		return
	}
	e.samplers[sym] = sampler
}

// SetBurner sets the address burn fees are sent to.
func (e *Engine) SetBurner(burner crypto.Address) {
	if e == nil {
		return
	}
	e.burner = burner
}

// SetDiscount overrides the auction opening discount in basis points.
func (e *Engine) SetDiscount(bps uint64) {
	if e == nil {
		return
	}
	if bps == 0 || bps >= BASE {
		bps = defaultDiscountBps
	}
	e.discountBps = bps
}

// SetStrictZeroWithdraw switches zero-amount withdrawals between a silent
// no-op and an explicit rejection.
func (e *Engine) SetStrictZeroWithdraw(strict bool) {
	if e == nil {
		return
	}
	e.strictZeroWd = strict
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

// ModuleAddress returns the vault custodying entry balances.
func (e *Engine) ModuleAddress() crypto.Address { return e.moduleAddress }

// BaseToken returns the debt settlement token.
func (e *Engine) BaseToken() string { return e.baseToken }

func (e *Engine) requireWired() error {
	switch {
	case e == nil || e.state == nil:
		return errNilState
	case e.ledger == nil:
		return errNilLedger
	case e.debts == nil:
		return errNilDebts
	default:
		return nil
	}
}

// sample resolves the entry's oracle rate as (tokens, equivalent): tokens of
// base currency per equivalent units of collateral. An empty oracle currency
// is 1:1 and ignores data.
func (e *Engine) sample(entry *Entry, data []byte) (*big.Int, *big.Int, error) {
	if entry.OracleCurrency == "" {
		return big.NewInt(1), big.NewInt(1), nil
	}
	sampler, ok := e.samplers[entry.OracleCurrency]
	if !ok {
		return nil, nil, fmt.Errorf("%w: %s", errNoSampler, entry.OracleCurrency)
	}
	tokens, equivalent, err := sampler.ReadSample(data)
	if err != nil {
		return nil, nil, err
	}
	if tokens == nil || equivalent == nil || tokens.Sign() <= 0 || equivalent.Sign() <= 0 {
		return nil, nil, fmt.Errorf("collateral engine: invalid sample for %s", entry.OracleCurrency)
	}
	return tokens, equivalent, nil
}

func (e *Engine) inAuction(entryID uint64) (bool, error) {
	_, ok, err := e.state.AuctionForEntry(entryID)
	return ok, err
}

// Create opens a new collateral entry bound to an open, unlent debt request
// and pulls the initial amount from the caller.
func (e *Engine) Create(caller, owner crypto.Address, debtID [32]byte, token, oracleCurrency string, amount *big.Int, liquidationRatio, balanceRatio, burnFee, rewardFee uint64) (uint64, error) {
	if err := e.requireWired(); err != nil {
		return 0, err
	}
	if e.loans == nil {
		return 0, errNilLoans
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return 0, err
	}
	if owner.IsZero() {
		return 0, errZeroOwner
	}
	sym := strings.ToUpper(strings.TrimSpace(token))
	if sym == "" {
		return 0, errInvalidToken
	}
	if amount == nil || amount.Sign() <= 0 {
		return 0, errInvalidAmount
	}
	if liquidationRatio <= BASE {
		return 0, errLiquidationRatio
	}
	if balanceRatio < liquidationRatio {
		return 0, errBalanceRatio
	}
	if burnFee+rewardFee >= balanceRatio-liquidationRatio {
		return 0, errFeeHeadroom
	}
	open, err := e.loans.IsOpen(debtID)
	if err != nil {
		return 0, err
	}
	if !open {
		return 0, errDebtNotOpen
	}
	lent, err := e.loans.IsLent(debtID)
	if err != nil {
		return 0, err
	}
	if lent {
		return 0, errDebtAlreadyLent
	}
	if _, exists, err := e.state.EntryIDByDebt(debtID); err != nil {
		return 0, err
	} else if exists {
		return 0, errLiabilityExists
	}
	currency := strings.ToUpper(strings.TrimSpace(oracleCurrency))
	if currency != "" {
		if _, ok := e.samplers[currency]; !ok {
			return 0, fmt.Errorf("%w: %s", errNoSampler, currency)
		}
	}

	if err := e.ledger.Transfer(sym, caller, e.moduleAddress, amount); err != nil {
		return 0, err
	}

	id, err := e.state.NextEntryID()
	if err != nil {
		return 0, err
	}
	entry := &Entry{
		ID:               id,
		Owner:            owner,
		Token:            sym,
		OracleCurrency:   currency,
		DebtID:           debtID,
		Amount:           new(big.Int).Set(amount),
		LiquidationRatio: liquidationRatio,
		BalanceRatio:     balanceRatio,
		BurnFee:          burnFee,
		RewardFee:        rewardFee,
	}
	if err := e.state.PutEntry(entry); err != nil {
		return 0, err
	}
	if err := e.state.SetDebtIndex(debtID, id); err != nil {
		return 0, err
	}
	e.emit(NewCreatedEvent(entry))
	return id, nil
}

// Get returns a defensive copy of the entry.
func (e *Engine) Get(entryID uint64) (*Entry, error) {
	if e == nil || e.state == nil {
		return nil, errNilState
	}
	entry, err := e.state.GetEntry(entryID)
	if err != nil {
		return nil, err
	}
	if entry == nil {
		return nil, errEntryNotFound
	}
	return entry.Clone(), nil
}

// Deposit adds collateral to an entry, pulled from the caller. Any address
// may top up any entry.
func (e *Engine) Deposit(caller crypto.Address, entryID uint64, amount *big.Int) error {
	if err := e.requireWired(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if amount == nil || amount.Sign() <= 0 {
		return errInvalidAmount
	}
	entry, err := e.state.GetEntry(entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return errEntryNotFound
	}
	if open, err := e.inAuction(entryID); err != nil {
		return err
	} else if open {
		return errEntryInAuction
	}
	if err := e.ledger.Transfer(entry.Token, caller, e.moduleAddress, amount); err != nil {
		return err
	}
	entry.Amount = new(big.Int).Add(entry.Amount, amount)
	if err := e.state.PutEntry(entry); err != nil {
		return err
	}
	e.emit(NewDepositedEvent(entryID, caller, amount))
	return nil
}

// Withdraw releases collateral to the owner-chosen destination, bounded by
// the headroom above the balance ratio at the current oracle rate.
func (e *Engine) Withdraw(caller crypto.Address, entryID uint64, to crypto.Address, amount *big.Int, oracleData []byte) error {
	if err := e.requireWired(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	entry, err := e.state.GetEntry(entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return errEntryNotFound
	}
	if !caller.Equal(entry.Owner) {
		return errNotAuthorized
	}
	if open, err := e.inAuction(entryID); err != nil {
		return err
	} else if open {
		return errWithdrawInAuction
	}
	if amount == nil || amount.Sign() < 0 {
		return errInvalidAmount
	}
	if amount.Sign() == 0 {
		if e.strictZeroWd {
			return errZeroAmount
		}
		return nil
	}

	withdrawable, err := e.withdrawable(entry, oracleData)
	if err != nil {
		return err
	}
	if withdrawable.Sign() <= 0 {
		return errNothingWithdrawable
	}
	if amount.Cmp(withdrawable) > 0 {
		return errWithdrawTooMuch
	}

	if err := e.ledger.Transfer(entry.Token, e.moduleAddress, to, amount); err != nil {
		return err
	}
	entry.Amount = new(big.Int).Sub(entry.Amount, amount)
	if err := e.state.PutEntry(entry); err != nil {
		return err
	}
	e.emit(NewWithdrawEvent(entryID, to, amount))
	return nil
}

// withdrawable computes the headroom above the balance ratio. A fully paid
// debt frees the whole entry.
func (e *Engine) withdrawable(entry *Entry, oracleData []byte) (*big.Int, error) {
	obligation, err := e.debts.ClosingObligation(entry.DebtID)
	if err != nil {
		return nil, err
	}
	if obligation == nil || obligation.Sign() == 0 {
		return new(big.Int).Set(entry.Amount), nil
	}
	tokens, equivalent, err := e.sample(entry, oracleData)
	if err != nil {
		return nil, err
	}
	collateralInBase := CollateralInTokens(entry.Amount, tokens, equivalent)
	debtInBase := DebtInTokens(obligation, nil, nil)
	ratio := CollateralRatio(collateralInBase, debtInBase)
	return CanWithdraw(entry.Amount, ratio, entry.BalanceRatio), nil
}

// TransferEntry reassigns entry ownership. Capability transfer only; the
// collateral itself never moves.
func (e *Engine) TransferEntry(caller crypto.Address, entryID uint64, newOwner crypto.Address) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	if newOwner.IsZero() {
		return errZeroOwner
	}
	entry, err := e.state.GetEntry(entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return errEntryNotFound
	}
	if !caller.Equal(entry.Owner) {
		return errNotAuthorized
	}
	previous := entry.Owner
	entry.Owner = newOwner
	if err := e.state.PutEntry(entry); err != nil {
		return err
	}
	e.emit(NewTransferredEvent(entryID, previous, newOwner))
	return nil
}

// Redeem releases the full entry once the debt is paid, severing ownership.
func (e *Engine) Redeem(caller crypto.Address, entryID uint64, to crypto.Address) error {
	return e.redeem(caller, entryID, to, false)
}

// EmergencyRedeem is the administrator escape hatch for debts stuck in an
// unrecoverable error status.
func (e *Engine) EmergencyRedeem(caller crypto.Address, entryID uint64, to crypto.Address) error {
	return e.redeem(caller, entryID, to, true)
}

func (e *Engine) redeem(caller crypto.Address, entryID uint64, to crypto.Address, emergency bool) error {
	if err := e.requireWired(); err != nil {
		return err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return err
	}
	entry, err := e.state.GetEntry(entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return errEntryNotFound
	}
	if open, err := e.inAuction(entryID); err != nil {
		return err
	} else if open {
		return errEntryInAuction
	}
	status, err := e.debts.Status(entry.DebtID)
	if err != nil {
		return err
	}
	if emergency {
		if !caller.Equal(e.admin) {
			return errNotAdmin
		}
		if status != StatusError {
			return errDebtNotInError
		}
	} else {
		if !caller.Equal(entry.Owner) {
			return errNotAuthorized
		}
		if status != StatusPaid {
			// A request withdrawn before funding leaves no debt behind;
			// the entry is releasable as if the debt were paid.
			released, err := e.requestReleased(entry.DebtID)
			if err != nil {
				return err
			}
			if !released {
				return errDebtNotPaid
			}
		}
	}

	amount := new(big.Int).Set(entry.Amount)
	if amount.Sign() > 0 {
		if err := e.ledger.Transfer(entry.Token, e.moduleAddress, to, amount); err != nil {
			return err
		}
	}
	if err := e.state.ClearDebtIndex(entry.DebtID); err != nil {
		return err
	}
	entry.Amount = big.NewInt(0)
	entry.Owner = crypto.Address{}
	entry.Token = ""
	entry.OracleCurrency = ""
	entry.DebtID = [32]byte{}
	entry.LiquidationRatio = 0
	entry.BalanceRatio = 0
	entry.BurnFee = 0
	entry.RewardFee = 0
	if err := e.state.PutEntry(entry); err != nil {
		return err
	}
	if emergency {
		e.emit(NewEmergencyRedeemedEvent(entryID, to, amount))
	} else {
		e.emit(NewRedeemedEvent(entryID, to, amount))
	}
	return nil
}

// requestReleased reports whether the loan request behind the entry was
// cancelled before funding: no longer open and never lent.
func (e *Engine) requestReleased(debtID [32]byte) (bool, error) {
	if e.loans == nil {
		return false, nil
	}
	open, err := e.loans.IsOpen(debtID)
	if err != nil {
		return false, err
	}
	if open {
		return false, nil
	}
	lent, err := e.loans.IsLent(debtID)
	if err != nil {
		return false, err
	}
	return !lent, nil
}

func (e *Engine) emit(evt events.Event) {
	if e == nil || e.emitter == nil || evt == nil {
		return
	}
	e.emitter.Emit(evt)
}
