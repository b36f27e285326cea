package oracle

import (
	"math/big"
	"strconv"

	"lendchain/core/types"
	"lendchain/crypto"
)

const (
	EventTypeDeliveredRate    = "oracle.rate.delivered"
	EventTypeCacheHit         = "oracle.rate.cache_hit"
	EventTypeDelegatedRate    = "oracle.rate.delegated"
	EventTypeCacheInvalidated = "oracle.cache.invalidated"
)

type oracleEvent struct {
	evt *types.Event
}

func (e oracleEvent) EventType() string {
	if e.evt == nil {
		return ""
	}
	return e.evt.Type
}

func (e oracleEvent) Event() *types.Event { return e.evt }

// NewDeliveredRateEvent flags a freshly validated and cached rate report.
func NewDeliveredRateEvent(currency string, cached *CachedRate, signer crypto.Address) oracleEvent {
	attrs := map[string]string{
		"currency": currency,
		"signer":   signer.String(),
	}
	fillCacheAttrs(attrs, cached)
	return oracleEvent{evt: &types.Event{Type: EventTypeDeliveredRate, Attributes: attrs}}
}

// NewCacheHitEvent flags a request served from the per-currency cache.
func NewCacheHitEvent(currency string, cached *CachedRate) oracleEvent {
	attrs := map[string]string{"currency": currency}
	fillCacheAttrs(attrs, cached)
	return oracleEvent{evt: &types.Event{Type: EventTypeCacheHit, Attributes: attrs}}
}

// NewDelegatedRateEvent flags a request answered by the fallback oracle so
// callers can detect the indirection.
func NewDelegatedRateEvent(currency string, rate *big.Int, decimals uint64) oracleEvent {
	attrs := map[string]string{
		"currency": currency,
		"decimals": strconv.FormatUint(decimals, 10),
	}
	if rate != nil {
		attrs["rate"] = rate.String()
	}
	return oracleEvent{evt: &types.Event{Type: EventTypeDelegatedRate, Attributes: attrs}}
}

// NewCacheInvalidatedEvent flags an administrative cache reset.
func NewCacheInvalidatedEvent(currency string) oracleEvent {
	return oracleEvent{evt: &types.Event{
		Type:       EventTypeCacheInvalidated,
		Attributes: map[string]string{"currency": currency},
	}}
}

func fillCacheAttrs(attrs map[string]string, cached *CachedRate) {
	if cached == nil {
		return
	}
	attrs["timestamp"] = strconv.FormatInt(cached.Timestamp, 10)
	attrs["decimals"] = strconv.FormatUint(cached.Decimals, 10)
	if cached.Rate != nil {
		attrs["rate"] = cached.Rate.String()
	}
}
