package auction

import (
	"math/big"
	"strconv"

	"lendchain/core/types"
	"lendchain/crypto"
)

const (
	EventTypeCreated = "auction.created"
	EventTypeTake    = "auction.take"
	EventTypeClosed  = "auction.closed"
)

type auctionEvent struct {
	evt *types.Event
}

func (e auctionEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e auctionEvent) Event() *types.Event { return e.evt }

// NewCreatedEvent flags a freshly escrowed auction.
func NewCreatedEvent(a *Auction) auctionEvent {
	attrs := map[string]string{
		"auctionId":   strconv.FormatUint(a.ID, 10),
		"fromToken":   a.FromToken,
		"beneficiary": a.Beneficiary.String(),
		"startTime":   strconv.FormatInt(a.StartTime, 10),
		"limitDelta":  strconv.FormatUint(a.LimitDelta, 10),
	}
	putBig(attrs, "startOffer", a.StartOffer)
	putBig(attrs, "refOffer", a.RefOffer)
	putBig(attrs, "limit", a.Limit)
	putBig(attrs, "amount", a.Amount)
	return auctionEvent{evt: &types.Event{Type: EventTypeCreated, Attributes: attrs}}
}

// NewTakeEvent records a settlement step against the current offer.
func NewTakeEvent(a *Auction, taker crypto.Address, sold, paid *big.Int, full bool) auctionEvent {
	attrs := map[string]string{
		"auctionId": strconv.FormatUint(a.ID, 10),
		"taker":     taker.String(),
		"full":      strconv.FormatBool(full),
	}
	putBig(attrs, "sold", sold)
	putBig(attrs, "paid", paid)
	putBig(attrs, "pending", a.PendingBase)
	return auctionEvent{evt: &types.Event{Type: EventTypeTake, Attributes: attrs}}
}

// NewClosedEvent records full depletion and the escrow returned unsold.
func NewClosedEvent(a *Auction, leftover *big.Int) auctionEvent {
	attrs := map[string]string{
		"auctionId": strconv.FormatUint(a.ID, 10),
	}
	putBig(attrs, "leftover", leftover)
	putBig(attrs, "received", a.ReceivedBase)
	return auctionEvent{evt: &types.Event{Type: EventTypeClosed, Attributes: attrs}}
}

func putBig(attrs map[string]string, key string, v *big.Int) {
	if v == nil {
		return
	}
	attrs[key] = v.String()
}
