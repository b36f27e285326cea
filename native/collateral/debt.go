package collateral

import (
	"math/big"

	"lendchain/crypto"
)

// Status mirrors the lifecycle of the external debt a collateral entry
// secures.
type Status uint8

const (
	StatusOngoing Status = iota
	StatusPaid
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusOngoing:
		return "ongoing"
	case StatusPaid:
		return "paid"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

// DebtLedger is the external debt engine a collateral entry secures. It is
// consumed, never reimplemented here; tests supply mocks.
type DebtLedger interface {
	// ClosingObligation returns the base-currency amount that fully closes
	// the debt right now.
	ClosingObligation(debtID [32]byte) (*big.Int, error)
	Status(debtID [32]byte) (Status, error)
	DueTime(debtID [32]byte) (int64, error)
	// Pay applies up to amount of base currency to the debt on behalf of
	// origin and returns the amount actually absorbed.
	Pay(debtID [32]byte, origin crypto.Address, amount *big.Int, data []byte) (*big.Int, error)
}

// LoanDirectory exposes the loan request book. Collateral may only attach
// to a request that is still open and has not been funded.
type LoanDirectory interface {
	IsOpen(debtID [32]byte) (bool, error)
	IsLent(debtID [32]byte) (bool, error)
}

// Sampler is the per-entry oracle read: tokens of base currency per
// equivalent units of the entry's collateral token.
type Sampler interface {
	ReadSample(data []byte) (tokens *big.Int, equivalent *big.Int, err error)
}

// AuctionHouse is the slice of the auction engine the liquidation flow
// drives. Settling reports the auction currently delivering its close
// callback so AuctionClosed can authenticate the caller.
type AuctionHouse interface {
	Create(caller, beneficiary crypto.Address, fromToken string, startOffer, refOffer, limit, amount *big.Int) (uint64, error)
	Settling() uint64
}

// TokenConverter sells collateral for base currency directly instead of
// opening an auction. GetReturn quotes without moving value; Convert
// executes against the holder's balance.
type TokenConverter interface {
	GetReturn(from, to string, fromAmount *big.Int) (*big.Int, error)
	Convert(from, to string, holder crypto.Address, fromAmount *big.Int) (*big.Int, error)
}

// TokenLedger is the slice of the token module the collateral engine needs.
type TokenLedger interface {
	Transfer(token string, from, to crypto.Address, amount *big.Int) error
}
