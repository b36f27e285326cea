package collateral

import (
	"math/big"
	"strconv"

	"lendchain/core/types"
	"lendchain/crypto"
)

const (
	EventTypeCreated            = "collateral.created"
	EventTypeDeposited          = "collateral.deposited"
	EventTypeWithdraw           = "collateral.withdraw"
	EventTypeTransferred        = "collateral.transferred"
	EventTypeRedeemed           = "collateral.redeemed"
	EventTypeEmergencyRedeemed  = "collateral.emergency_redeemed"
	EventTypeClaimedExpired     = "collateral.claimed_expired"
	EventTypeClaimedLiquidation = "collateral.claimed_liquidation"
	EventTypeBalance            = "collateral.balance"
	EventTypeConvertPay         = "collateral.convert_pay"
	EventTypeTakeFee            = "collateral.take_fee"
	EventTypeAuctionStarted     = "collateral.auction_started"
	EventTypeAuctionClosed      = "collateral.auction_closed"
)

type collateralEvent struct {
	evt *types.Event
}

func (e collateralEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e collateralEvent) Event() *types.Event { return e.evt }

func newEvent(eventType string, entryID uint64, extra map[string]string) collateralEvent {
	attrs := map[string]string{"entryId": strconv.FormatUint(entryID, 10)}
	for k, v := range extra {
		attrs[k] = v
	}
	return collateralEvent{evt: &types.Event{Type: eventType, Attributes: attrs}}
}

func bigAttr(v *big.Int) string {
	if v == nil {
		return "0"
	}
	return v.String()
}

func NewCreatedEvent(e *Entry) collateralEvent {
	return newEvent(EventTypeCreated, e.ID, map[string]string{
		"owner":            e.Owner.String(),
		"token":            e.Token,
		"amount":           bigAttr(e.Amount),
		"liquidationRatio": strconv.FormatUint(e.LiquidationRatio, 10),
		"balanceRatio":     strconv.FormatUint(e.BalanceRatio, 10),
		"burnFee":          strconv.FormatUint(e.BurnFee, 10),
		"rewardFee":        strconv.FormatUint(e.RewardFee, 10),
	})
}

func NewDepositedEvent(entryID uint64, from crypto.Address, amount *big.Int) collateralEvent {
	return newEvent(EventTypeDeposited, entryID, map[string]string{
		"from":   from.String(),
		"amount": bigAttr(amount),
	})
}

func NewWithdrawEvent(entryID uint64, to crypto.Address, amount *big.Int) collateralEvent {
	return newEvent(EventTypeWithdraw, entryID, map[string]string{
		"to":     to.String(),
		"amount": bigAttr(amount),
	})
}

func NewTransferredEvent(entryID uint64, from, to crypto.Address) collateralEvent {
	return newEvent(EventTypeTransferred, entryID, map[string]string{
		"from": from.String(),
		"to":   to.String(),
	})
}

func NewRedeemedEvent(entryID uint64, to crypto.Address, amount *big.Int) collateralEvent {
	return newEvent(EventTypeRedeemed, entryID, map[string]string{
		"to":     to.String(),
		"amount": bigAttr(amount),
	})
}

func NewEmergencyRedeemedEvent(entryID uint64, to crypto.Address, amount *big.Int) collateralEvent {
	return newEvent(EventTypeEmergencyRedeemed, entryID, map[string]string{
		"to":     to.String(),
		"amount": bigAttr(amount),
	})
}

// NewClaimedExpiredEvent records the expired-obligation claim decision:
// the due obligation plus the penalty buffer the protocol will collect.
func NewClaimedExpiredEvent(entryID uint64, obligation, required *big.Int) collateralEvent {
	return newEvent(EventTypeClaimedExpired, entryID, map[string]string{
		"obligation": bigAttr(obligation),
		"required":   bigAttr(required),
	})
}

// NewClaimedLiquidationEvent records the under-collateralisation claim
// decision and the base amount needed to restore the balance ratio.
func NewClaimedLiquidationEvent(entryID uint64, debtInBase, collateralInBase, ratio, required *big.Int) collateralEvent {
	return newEvent(EventTypeClaimedLiquidation, entryID, map[string]string{
		"debt":       bigAttr(debtInBase),
		"collateral": bigAttr(collateralInBase),
		"ratio":      bigAttr(ratio),
		"required":   bigAttr(required),
	})
}

// NewBalanceEvent records the collateral the direct-pay path is about to
// sell against the required base amount.
func NewBalanceEvent(entryID uint64, tokenPayRequired, requiredBase *big.Int) collateralEvent {
	return newEvent(EventTypeBalance, entryID, map[string]string{
		"tokenPayRequired": bigAttr(tokenPayRequired),
		"requiredBase":     bigAttr(requiredBase),
	})
}

func NewConvertPayEvent(entryID uint64, sold, obtained, paid *big.Int) collateralEvent {
	return newEvent(EventTypeConvertPay, entryID, map[string]string{
		"sold":     bigAttr(sold),
		"obtained": bigAttr(obtained),
		"paid":     bigAttr(paid),
	})
}

func NewTakeFeeEvent(entryID uint64, kind string, to crypto.Address, amount *big.Int) collateralEvent {
	return newEvent(EventTypeTakeFee, entryID, map[string]string{
		"kind":   kind,
		"to":     to.String(),
		"amount": bigAttr(amount),
	})
}

func NewAuctionStartedEvent(entryID, auctionID uint64, startOffer, refOffer, limit, amount *big.Int) collateralEvent {
	return newEvent(EventTypeAuctionStarted, entryID, map[string]string{
		"auctionId":  strconv.FormatUint(auctionID, 10),
		"startOffer": bigAttr(startOffer),
		"refOffer":   bigAttr(refOffer),
		"limit":      bigAttr(limit),
		"amount":     bigAttr(amount),
	})
}

func NewAuctionClosedEvent(entryID, auctionID uint64, leftover, received, paid *big.Int) collateralEvent {
	return newEvent(EventTypeAuctionClosed, entryID, map[string]string{
		"auctionId": strconv.FormatUint(auctionID, 10),
		"leftover":  bigAttr(leftover),
		"received":  bigAttr(received),
		"paid":      bigAttr(paid),
	})
}
