package state

import (
	"errors"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/rlp"

	"lendchain/crypto"
	"lendchain/native/auction"
	"lendchain/native/collateral"
	"lendchain/native/oracle"
	"lendchain/storage"
)

var errNilDatabase = errors.New("state: database not configured")

// Key layout. Every record family gets its own prefix so backends without
// column support stay collision-free.
var (
	tokenBalancePrefix   = []byte("token/balance/")
	tokenAllowancePrefix = []byte("token/allowance/")
	oracleRatePrefix     = []byte("oracle/rate/")
	auctionRecordPrefix  = []byte("auction/record/")
	auctionSeqKey        = []byte("auction/seq")
	entryRecordPrefix    = []byte("collateral/entry/")
	entrySeqKey          = []byte("collateral/seq")
	debtIndexPrefix      = []byte("collateral/debt/")
	entryAuctionPrefix   = []byte("collateral/entry-auction/")
	auctionEntryPrefix   = []byte("collateral/auction-entry/")
)

// Manager implements every native engine's state interface over a single
// key-value backend with RLP-encoded records.
type Manager struct {
	mu sync.Mutex
	db storage.Database
}

func NewManager(db storage.Database) *Manager {
	return &Manager{db: db}
}

func (m *Manager) getRLP(key []byte, out interface{}) (bool, error) {
	raw, err := m.db.Get(key)
	if errors.Is(err, storage.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := rlp.DecodeBytes(raw, out); err != nil {
		return false, fmt.Errorf("state: decode %q: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putRLP(key []byte, value interface{}) error {
	raw, err := rlp.EncodeToBytes(value)
	if err != nil {
		return fmt.Errorf("state: encode %q: %w", key, err)
	}
	return m.db.Put(key, raw)
}

func (m *Manager) nextSequence(key []byte) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var current uint64
	if _, err := m.getRLP(key, &current); err != nil {
		return 0, err
	}
	current++
	if err := m.putRLP(key, current); err != nil {
		return 0, err
	}
	return current, nil
}

func joinKey(prefix []byte, parts ...[]byte) []byte {
	key := append([]byte(nil), prefix...)
	for i, part := range parts {
		if i > 0 {
			key = append(key, '/')
		}
		key = append(key, part...)
	}
	return key
}

func uint64Key(prefix []byte, id uint64) []byte {
	return append(append([]byte(nil), prefix...), []byte(fmt.Sprintf("%020d", id))...)
}

func addrFromStored(prefix string, raw []byte) crypto.Address {
	if len(raw) == 0 {
		return crypto.Address{}
	}
	return crypto.NewAddress(crypto.AddressPrefix(prefix), raw)
}

func nonNil(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}

// --- token ledger state ---

func (m *Manager) balanceKey(token string, addr crypto.Address) []byte {
	return joinKey(tokenBalancePrefix, []byte(token), addr.Bytes())
}

func (m *Manager) allowanceKey(token string, owner, spender crypto.Address) []byte {
	return joinKey(tokenAllowancePrefix, []byte(token), owner.Bytes(), spender.Bytes())
}

func (m *Manager) TokenBalance(token string, addr crypto.Address) (*big.Int, error) {
	if m == nil || m.db == nil {
		return nil, errNilDatabase
	}
	balance := new(big.Int)
	ok, err := m.getRLP(m.balanceKey(token, addr), balance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return balance, nil
}

func (m *Manager) SetTokenBalance(token string, addr crypto.Address, amount *big.Int) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	return m.putRLP(m.balanceKey(token, addr), nonNil(amount))
}

func (m *Manager) TokenAllowance(token string, owner, spender crypto.Address) (*big.Int, error) {
	if m == nil || m.db == nil {
		return nil, errNilDatabase
	}
	allowance := new(big.Int)
	ok, err := m.getRLP(m.allowanceKey(token, owner, spender), allowance)
	if err != nil {
		return nil, err
	}
	if !ok {
		return big.NewInt(0), nil
	}
	return allowance, nil
}

func (m *Manager) SetTokenAllowance(token string, owner, spender crypto.Address, amount *big.Int) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	key := m.allowanceKey(token, owner, spender)
	if amount == nil || amount.Sign() == 0 {
		return m.db.Delete(key)
	}
	return m.putRLP(key, amount)
}

// --- oracle state ---

type storedRate struct {
	Timestamp uint64
	Rate      *big.Int
	Decimals  uint64
}

func rateKey(currency string) []byte {
	return joinKey(oracleRatePrefix, []byte(currency))
}

func (m *Manager) RateCache(currency string) (*oracle.CachedRate, error) {
	if m == nil || m.db == nil {
		return nil, errNilDatabase
	}
	var stored storedRate
	ok, err := m.getRLP(rateKey(currency), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &oracle.CachedRate{
		Timestamp: int64(stored.Timestamp),
		Rate:      nonNil(stored.Rate),
		Decimals:  stored.Decimals,
	}, nil
}

func (m *Manager) PutRateCache(currency string, cached *oracle.CachedRate) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	if cached == nil {
		return m.db.Delete(rateKey(currency))
	}
	return m.putRLP(rateKey(currency), &storedRate{
		Timestamp: uint64(cached.Timestamp),
		Rate:      nonNil(cached.Rate),
		Decimals:  cached.Decimals,
	})
}

func (m *Manager) DeleteRateCache(currency string) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	return m.db.Delete(rateKey(currency))
}

// --- auction state ---

type storedAuction struct {
	ID                uint64
	FromToken         string
	Beneficiary       []byte
	BeneficiaryPrefix string
	StartTime         uint64
	LimitDelta        uint64
	StartOffer        *big.Int
	RefOffer          *big.Int
	Limit             *big.Int
	Amount            *big.Int
	PendingBase       *big.Int
	Escrow            *big.Int
	ReceivedBase      *big.Int
}

func (m *Manager) NextAuctionID() (uint64, error) {
	if m == nil || m.db == nil {
		return 0, errNilDatabase
	}
	return m.nextSequence(auctionSeqKey)
}

func (m *Manager) GetAuction(id uint64) (*auction.Auction, error) {
	if m == nil || m.db == nil {
		return nil, errNilDatabase
	}
	var stored storedAuction
	ok, err := m.getRLP(uint64Key(auctionRecordPrefix, id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &auction.Auction{
		ID:           stored.ID,
		FromToken:    stored.FromToken,
		Beneficiary:  addrFromStored(stored.BeneficiaryPrefix, stored.Beneficiary),
		StartTime:    int64(stored.StartTime),
		LimitDelta:   stored.LimitDelta,
		StartOffer:   nonNil(stored.StartOffer),
		RefOffer:     nonNil(stored.RefOffer),
		Limit:        nonNil(stored.Limit),
		Amount:       nonNil(stored.Amount),
		PendingBase:  nonNil(stored.PendingBase),
		Escrow:       nonNil(stored.Escrow),
		ReceivedBase: nonNil(stored.ReceivedBase),
	}, nil
}

func (m *Manager) PutAuction(a *auction.Auction) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	if a == nil {
		return errors.New("state: nil auction")
	}
	return m.putRLP(uint64Key(auctionRecordPrefix, a.ID), &storedAuction{
		ID:                a.ID,
		FromToken:         a.FromToken,
		Beneficiary:       a.Beneficiary.Bytes(),
		BeneficiaryPrefix: string(a.Beneficiary.Prefix()),
		StartTime:         uint64(a.StartTime),
		LimitDelta:        a.LimitDelta,
		StartOffer:        nonNil(a.StartOffer),
		RefOffer:          nonNil(a.RefOffer),
		Limit:             nonNil(a.Limit),
		Amount:            nonNil(a.Amount),
		PendingBase:       nonNil(a.PendingBase),
		Escrow:            nonNil(a.Escrow),
		ReceivedBase:      nonNil(a.ReceivedBase),
	})
}

func (m *Manager) DeleteAuction(id uint64) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	return m.db.Delete(uint64Key(auctionRecordPrefix, id))
}

// --- collateral state ---

type storedEntry struct {
	ID               uint64
	Owner            []byte
	OwnerPrefix      string
	Token            string
	OracleCurrency   string
	DebtID           [32]byte
	Amount           *big.Int
	LiquidationRatio uint64
	BalanceRatio     uint64
	BurnFee          uint64
	RewardFee        uint64
}

func (m *Manager) NextEntryID() (uint64, error) {
	if m == nil || m.db == nil {
		return 0, errNilDatabase
	}
	return m.nextSequence(entrySeqKey)
}

func (m *Manager) GetEntry(id uint64) (*collateral.Entry, error) {
	if m == nil || m.db == nil {
		return nil, errNilDatabase
	}
	var stored storedEntry
	ok, err := m.getRLP(uint64Key(entryRecordPrefix, id), &stored)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &collateral.Entry{
		ID:               stored.ID,
		Owner:            addrFromStored(stored.OwnerPrefix, stored.Owner),
		Token:            stored.Token,
		OracleCurrency:   stored.OracleCurrency,
		DebtID:           stored.DebtID,
		Amount:           nonNil(stored.Amount),
		LiquidationRatio: stored.LiquidationRatio,
		BalanceRatio:     stored.BalanceRatio,
		BurnFee:          stored.BurnFee,
		RewardFee:        stored.RewardFee,
	}, nil
}

func (m *Manager) PutEntry(entry *collateral.Entry) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	if entry == nil {
		return errors.New("state: nil entry")
	}
	return m.putRLP(uint64Key(entryRecordPrefix, entry.ID), &storedEntry{
		ID:               entry.ID,
		Owner:            entry.Owner.Bytes(),
		OwnerPrefix:      string(entry.Owner.Prefix()),
		Token:            entry.Token,
		OracleCurrency:   entry.OracleCurrency,
		DebtID:           entry.DebtID,
		Amount:           nonNil(entry.Amount),
		LiquidationRatio: entry.LiquidationRatio,
		BalanceRatio:     entry.BalanceRatio,
		BurnFee:          entry.BurnFee,
		RewardFee:        entry.RewardFee,
	})
}

func debtKey(debtID [32]byte) []byte {
	return joinKey(debtIndexPrefix, debtID[:])
}

func (m *Manager) EntryIDByDebt(debtID [32]byte) (uint64, bool, error) {
	if m == nil || m.db == nil {
		return 0, false, errNilDatabase
	}
	var id uint64
	ok, err := m.getRLP(debtKey(debtID), &id)
	if err != nil {
		return 0, false, err
	}
	return id, ok, nil
}

func (m *Manager) SetDebtIndex(debtID [32]byte, entryID uint64) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	return m.putRLP(debtKey(debtID), entryID)
}

func (m *Manager) ClearDebtIndex(debtID [32]byte) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	return m.db.Delete(debtKey(debtID))
}

func (m *Manager) AuctionForEntry(entryID uint64) (uint64, bool, error) {
	if m == nil || m.db == nil {
		return 0, false, errNilDatabase
	}
	var auctionID uint64
	ok, err := m.getRLP(uint64Key(entryAuctionPrefix, entryID), &auctionID)
	if err != nil {
		return 0, false, err
	}
	return auctionID, ok, nil
}

func (m *Manager) EntryForAuction(auctionID uint64) (uint64, bool, error) {
	if m == nil || m.db == nil {
		return 0, false, errNilDatabase
	}
	var entryID uint64
	ok, err := m.getRLP(uint64Key(auctionEntryPrefix, auctionID), &entryID)
	if err != nil {
		return 0, false, err
	}
	return entryID, ok, nil
}

// SetAuctionLink records both directions of the entry/auction bijection.
func (m *Manager) SetAuctionLink(entryID, auctionID uint64) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	if err := m.putRLP(uint64Key(entryAuctionPrefix, entryID), auctionID); err != nil {
		return err
	}
	return m.putRLP(uint64Key(auctionEntryPrefix, auctionID), entryID)
}

func (m *Manager) ClearAuctionLink(entryID, auctionID uint64) error {
	if m == nil || m.db == nil {
		return errNilDatabase
	}
	if err := m.db.Delete(uint64Key(entryAuctionPrefix, entryID)); err != nil {
		return err
	}
	return m.db.Delete(uint64Key(auctionEntryPrefix, auctionID))
}
