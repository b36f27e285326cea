package collateral

import (
	"math/big"

	"lendchain/crypto"
	nativecommon "lendchain/native/common"
)

// Claim is the permissionless liquidation trigger. It inspects the debt
// behind the entry and, when the obligation is overdue or the entry is
// under-collateralised, liquidates exactly enough collateral to restore
// solvency: through the registered converter when one is available,
// otherwise by opening a discounted auction. Returns true when a
// liquidation action was taken.
func (e *Engine) Claim(caller crypto.Address, debtID [32]byte, oracleData []byte) (bool, error) {
	if err := e.requireWired(); err != nil {
		return false, err
	}
	if err := nativecommon.Guard(e.pauses, moduleName); err != nil {
		return false, err
	}
	entryID, ok, err := e.state.EntryIDByDebt(debtID)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, errNoEntryForDebt
	}
	entry, err := e.state.GetEntry(entryID)
	if err != nil {
		return false, err
	}
	if entry == nil {
		return false, errNoEntryForDebt
	}
	if open, err := e.inAuction(entryID); err != nil {
		return false, err
	} else if open {
		return false, errAuctionExists
	}

	obligation, err := e.debts.ClosingObligation(entry.DebtID)
	if err != nil {
		return false, err
	}
	if obligation == nil || obligation.Sign() == 0 {
		return false, nil
	}
	dueTime, err := e.debts.DueTime(entry.DebtID)
	if err != nil {
		return false, err
	}
	tokens, equivalent, err := e.sample(entry, oracleData)
	if err != nil {
		return false, err
	}

	if e.now() >= dueTime {
		// Overdue obligation plus the penalty buffer, never more than the
		// entry is worth.
		required := ceilDiv(new(big.Int).Mul(obligation, big.NewInt(expiredPenaltyNum)), big.NewInt(expiredPenaltyDen))
		collateralInBase := CollateralInTokens(entry.Amount, tokens, equivalent)
		if required.Cmp(collateralInBase) > 0 {
			required = collateralInBase
		}
		if required.Sign() == 0 {
			return false, nil
		}
		e.emit(NewClaimedExpiredEvent(entry.ID, obligation, required))
		if err := e.liquidate(caller, entry, required, tokens, equivalent, oracleData); err != nil {
			return false, err
		}
		return true, nil
	}

	collateralInBase := CollateralInTokens(entry.Amount, tokens, equivalent)
	debtInBase := DebtInTokens(obligation, nil, nil)
	ratio := CollateralRatio(collateralInBase, debtInBase)
	if LiquidationDeltaRatio(ratio, entry.LiquidationRatio).Sign() >= 0 {
		return false, nil
	}
	required := TokensToPay(debtInBase, collateralInBase, entry.BalanceRatio)
	if required.Sign() == 0 {
		return false, nil
	}
	e.emit(NewClaimedLiquidationEvent(entry.ID, debtInBase, collateralInBase, ratio, required))
	if err := e.liquidate(caller, entry, required, tokens, equivalent, oracleData); err != nil {
		return false, err
	}
	return true, nil
}

// liquidate raises requiredBase of base currency from the entry, either by
// selling collateral through the converter immediately or by escrowing the
// whole entry into an auction sized to raise it.
func (e *Engine) liquidate(caller crypto.Address, entry *Entry, requiredBase *big.Int, tokens, equivalent *big.Int, oracleData []byte) error {
	if e.converter != nil {
		return e.convertPay(entry, requiredBase, tokens, equivalent, oracleData)
	}
	return e.startAuction(entry, requiredBase, tokens, equivalent)
}

// convertPay sells just enough collateral through the converter to cover
// requiredBase, pays the debt and routes fees and excess.
func (e *Engine) convertPay(entry *Entry, requiredBase, tokens, equivalent *big.Int, oracleData []byte) error {
	sellTokens := ceilDiv(new(big.Int).Mul(requiredBase, equivalent), tokens)
	if sellTokens.Cmp(entry.Amount) > 0 {
		sellTokens = new(big.Int).Set(entry.Amount)
	}
	e.emit(NewBalanceEvent(entry.ID, sellTokens, requiredBase))

	obtained, err := e.converter.Convert(entry.Token, e.baseToken, e.moduleAddress, sellTokens)
	if err != nil {
		return err
	}
	entry.Amount = new(big.Int).Sub(entry.Amount, sellTokens)

	obligation, err := e.debts.ClosingObligation(entry.DebtID)
	if err != nil {
		return err
	}
	payAmount := new(big.Int).Set(obtained)
	if obligation != nil && payAmount.Cmp(obligation) > 0 {
		payAmount = new(big.Int).Set(obligation)
	}
	paid, err := e.debts.Pay(entry.DebtID, e.moduleAddress, payAmount, oracleData)
	if err != nil {
		return err
	}
	excess := new(big.Int).Sub(obtained, paid)
	if excess.Sign() > 0 {
		if err := e.ledger.Transfer(e.baseToken, e.moduleAddress, entry.Owner, excess); err != nil {
			return err
		}
	}

	if err := e.takeFees(entry, sellTokens); err != nil {
		return err
	}
	if err := e.state.PutEntry(entry); err != nil {
		return err
	}
	e.emit(NewConvertPayEvent(entry.ID, sellTokens, obtained, paid))
	return nil
}

// takeFees collects the burn and reward fees in collateral tokens,
// proportional to the amount liquidated, rounding up.
func (e *Engine) takeFees(entry *Entry, liquidated *big.Int) error {
	if err := e.takeFee(entry, liquidated, entry.BurnFee, e.burner, "burn"); err != nil {
		return err
	}
	return e.takeFee(entry, liquidated, entry.RewardFee, entry.Owner, "reward")
}

func (e *Engine) takeFee(entry *Entry, liquidated *big.Int, feeBps uint64, to crypto.Address, kind string) error {
	if feeBps == 0 || to.IsZero() {
		return nil
	}
	fee := ceilDiv(new(big.Int).Mul(liquidated, new(big.Int).SetUint64(feeBps)), bigBase)
	if fee.Cmp(entry.Amount) > 0 {
		fee = new(big.Int).Set(entry.Amount)
	}
	if fee.Sign() == 0 {
		return nil
	}
	if err := e.ledger.Transfer(entry.Token, e.moduleAddress, to, fee); err != nil {
		return err
	}
	entry.Amount = new(big.Int).Sub(entry.Amount, fee)
	e.emit(NewTakeFeeEvent(entry.ID, kind, to, fee))
	return nil
}

// startAuction escrows the full entry into a new auction asked to raise
// requiredBase. The reference offer is the collateral worth exactly
// requiredBase at the sampled rate; the opening offer discounts it.
func (e *Engine) startAuction(entry *Entry, requiredBase, tokens, equivalent *big.Int) error {
	if e.auctions == nil {
		return errNilAuctions
	}
	// The limit is the entry's whole balance and is never raised: the
	// auction escrows exactly limit, and anything above entry.Amount would
	// draw on other entries' collateral pooled in the shared vault.
	limit := new(big.Int).Set(entry.Amount)
	refOffer := ceilDiv(new(big.Int).Mul(requiredBase, equivalent), tokens)
	if refOffer.Cmp(limit) > 0 {
		refOffer = new(big.Int).Set(limit)
	}
	startOffer := new(big.Int).Mul(refOffer, new(big.Int).SetUint64(BASE-e.discountBps))
	startOffer.Quo(startOffer, bigBase)
	if startOffer.Sign() <= 0 {
		startOffer = big.NewInt(1)
	}
	if refOffer.Cmp(startOffer) <= 0 {
		refOffer = new(big.Int).Add(startOffer, big.NewInt(1))
	}
	if refOffer.Cmp(limit) > 0 {
		refOffer = new(big.Int).Set(limit)
		startOffer = new(big.Int).Sub(refOffer, big.NewInt(1))
		if startOffer.Sign() <= 0 {
			return errEntryTooSmall
		}
	}

	auctionID, err := e.auctions.Create(e.moduleAddress, e.moduleAddress, entry.Token, startOffer, refOffer, limit, requiredBase)
	if err != nil {
		return err
	}
	entry.Amount = big.NewInt(0)
	if err := e.state.PutEntry(entry); err != nil {
		return err
	}
	if err := e.state.SetAuctionLink(entry.ID, auctionID); err != nil {
		return err
	}
	e.emit(NewAuctionStartedEvent(entry.ID, auctionID, startOffer, refOffer, limit, requiredBase))
	return nil
}

// AuctionClosed is the settlement callback delivered by the auction engine
// when an auction fully depletes. Only accepted while the auction engine
// reports the auction as settling. Proceeds pay the debt up to the closing
// obligation, excess goes to the entry owner and the unsold leftover is
// restored to the entry.
func (e *Engine) AuctionClosed(auctionID uint64, leftover, received *big.Int, data []byte) error {
	if err := e.requireWired(); err != nil {
		return err
	}
	if e.auctions == nil {
		return errNilAuctions
	}
	if e.auctions.Settling() != auctionID {
		return errOnlyAuctionEngine
	}
	entryID, ok, err := e.state.EntryForAuction(auctionID)
	if err != nil {
		return err
	}
	if !ok {
		return errNoEntryForAuction
	}
	entry, err := e.state.GetEntry(entryID)
	if err != nil {
		return err
	}
	if entry == nil {
		return errEntryNotFound
	}

	if leftover == nil {
		leftover = big.NewInt(0)
	}
	if received == nil {
		received = big.NewInt(0)
	}

	obligation, err := e.debts.ClosingObligation(entry.DebtID)
	if err != nil {
		return err
	}
	payAmount := new(big.Int).Set(received)
	if obligation != nil && payAmount.Cmp(obligation) > 0 {
		payAmount = new(big.Int).Set(obligation)
	}
	paid := big.NewInt(0)
	if payAmount.Sign() > 0 {
		paid, err = e.debts.Pay(entry.DebtID, e.moduleAddress, payAmount, data)
		if err != nil {
			return err
		}
	}
	excess := new(big.Int).Sub(received, paid)
	if excess.Sign() > 0 {
		if err := e.ledger.Transfer(e.baseToken, e.moduleAddress, entry.Owner, excess); err != nil {
			return err
		}
	}

	entry.Amount = new(big.Int).Add(entry.Amount, leftover)
	if err := e.state.PutEntry(entry); err != nil {
		return err
	}
	if err := e.state.ClearAuctionLink(entryID, auctionID); err != nil {
		return err
	}
	e.emit(NewAuctionClosedEvent(entryID, auctionID, leftover, received, paid))
	return nil
}
