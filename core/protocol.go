package core

import (
	"fmt"
	"time"

	"lendchain/config"
	"lendchain/core/events"
	"lendchain/core/state"
	"lendchain/crypto"
	"lendchain/native/auction"
	"lendchain/native/collateral"
	nativecommon "lendchain/native/common"
	"lendchain/native/converter"
	"lendchain/native/oracle"
	"lendchain/native/token"
	"lendchain/storage"
)

// Module vault addresses are fixed principals derived from their names so
// every deployment custodies escrow at the same address.
var (
	collateralVault = moduleAddress("collateral/vault")
	auctionVault    = moduleAddress("auction/vault")
)

func moduleAddress(name string) crypto.Address {
	digest := crypto.Keccak256([]byte("lendchain/module/" + name))
	return crypto.NewAddress(crypto.LendPrefix, digest[12:])
}

// Protocol wires the native engines over one state backend. It is the
// single assembly point used by the daemon and by integration tests.
type Protocol struct {
	State      *state.Manager
	Tokens     *token.Ledger
	Oracle     *oracle.Engine
	Auctions   *auction.Engine
	Collateral *collateral.Engine
	Converters *converter.Registry
	Pauses     *nativecommon.Registry
	Events     *events.Recorder
}

// NewProtocol assembles the full engine graph on top of db. The admin
// address controls oracle delegates, converter registration and emergency
// redemption.
func NewProtocol(db storage.Database, cfg *config.Config, admin crypto.Address) (*Protocol, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	burner, err := cfg.Burner()
	if err != nil {
		return nil, fmt.Errorf("core: %w", err)
	}

	manager := state.NewManager(db)
	recorder := &events.Recorder{}
	pauses := nativecommon.NewRegistry()

	tokens := token.NewLedger()
	tokens.SetState(manager)

	oracleEngine := oracle.NewEngine(admin)
	oracleEngine.SetState(manager)
	oracleEngine.SetEmitter(recorder)
	oracleEngine.SetPauses(pauses)
	if cfg.OracleExpirationSeconds > 0 {
		if err := oracleEngine.SetExpiration(admin, time.Duration(cfg.OracleExpirationSeconds)*time.Second); err != nil {
			return nil, fmt.Errorf("core: %w", err)
		}
	}

	auctions := auction.NewEngine(auctionVault, cfg.BaseToken)
	auctions.SetState(manager)
	auctions.SetLedger(tokens)
	auctions.SetEmitter(recorder)
	auctions.SetPauses(pauses)

	registry := converter.NewRegistry(admin)

	coll := collateral.NewEngine(collateralVault, cfg.BaseToken, admin)
	coll.SetState(manager)
	coll.SetLedger(tokens)
	coll.SetAuctionHouse(auctions)
	coll.SetEmitter(recorder)
	coll.SetPauses(pauses)
	coll.SetBurner(burner)
	coll.SetDiscount(cfg.AuctionDiscountBps)
	coll.SetStrictZeroWithdraw(cfg.StrictZeroWithdraw)

	auctions.SetOwner(coll)

	return &Protocol{
		State:      manager,
		Tokens:     tokens,
		Oracle:     oracleEngine,
		Auctions:   auctions,
		Collateral: coll,
		Converters: registry,
		Pauses:     pauses,
		Events:     recorder,
	}, nil
}

// RegisterOracleCurrency exposes a delegate-attested currency to the
// collateral engine as a per-entry sampler.
func (p *Protocol) RegisterOracleCurrency(currency string) {
	p.Collateral.SetSampler(currency, p.Oracle.Sampler(currency))
}

// EnableConverter routes liquidations through the registry's converter
// instead of the auction path.
func (p *Protocol) EnableConverter() {
	if p.Converters.Registered() {
		p.Collateral.SetConverter(p.Converters)
	}
}
