package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"

	"lendchain/crypto"
)

const (
	defaultDataDir            = "./lend-data"
	defaultBaseToken          = "RCN"
	defaultAuctionDiscountBps = 500
	defaultOracleExpiration   = 900
)

// Config carries the node-operator knobs for the collateral protocol.
// Curve constants (market window, depletion window) are protocol ground
// truth and deliberately not configurable.
type Config struct {
	// DataDir is where the LevelDB state lives.
	DataDir string `toml:"DataDir"`
	// BaseToken is the debt settlement denomination.
	BaseToken string `toml:"BaseToken"`
	// AuctionDiscountBps is the opening discount applied to the market
	// value when a liquidation auction starts.
	AuctionDiscountBps uint64 `toml:"AuctionDiscountBps"`
	// OracleExpirationSeconds bounds the age of accepted rate reports.
	OracleExpirationSeconds uint64 `toml:"OracleExpirationSeconds"`
	// BurnerAddress receives burn fees. Empty disables fee burning.
	BurnerAddress string `toml:"BurnerAddress"`
	// StrictZeroWithdraw rejects zero-amount withdrawals instead of
	// treating them as a no-op.
	StrictZeroWithdraw bool `toml:"StrictZeroWithdraw"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.Normalise()
	return cfg
}

// Load reads a TOML config file, fills defaults and validates it.
func Load(path string) (*Config, error) {
	var cfg Config
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := toml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	cfg.Normalise()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Normalise fills unset fields with defaults and canonicalises symbols.
func (c *Config) Normalise() {
	if c == nil {
		return
	}
	if strings.TrimSpace(c.DataDir) == "" {
		c.DataDir = defaultDataDir
	}
	c.BaseToken = strings.ToUpper(strings.TrimSpace(c.BaseToken))
	if c.BaseToken == "" {
		c.BaseToken = defaultBaseToken
	}
	if c.AuctionDiscountBps == 0 {
		c.AuctionDiscountBps = defaultAuctionDiscountBps
	}
	if c.OracleExpirationSeconds == 0 {
		c.OracleExpirationSeconds = defaultOracleExpiration
	}
	c.BurnerAddress = strings.TrimSpace(c.BurnerAddress)
}

// Validate rejects configurations that would misprice liquidations.
func (c *Config) Validate() error {
	if c == nil {
		return fmt.Errorf("config: nil configuration")
	}
	if c.AuctionDiscountBps >= 10000 {
		return fmt.Errorf("config: AuctionDiscountBps must be below 10000, got %d", c.AuctionDiscountBps)
	}
	if c.BurnerAddress != "" {
		if _, err := crypto.DecodeAddress(c.BurnerAddress); err != nil {
			return fmt.Errorf("config: invalid BurnerAddress: %w", err)
		}
	}
	return nil
}

// Burner decodes the configured burner address, zero when unset.
func (c *Config) Burner() (crypto.Address, error) {
	if c == nil || c.BurnerAddress == "" {
		return crypto.Address{}, nil
	}
	return crypto.DecodeAddress(c.BurnerAddress)
}
