// Package config provides configuration management for simnode.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"os"
	"strings"
	"time"

	"github.com/tyler-smith/go-bip39"
)

// Default values.
var (
	DefaultChainID          = uint64(31337)
	DefaultGasLimit         = uint64(30000000)
	DefaultHost             = "127.0.0.1"
	DefaultPort             = 8545
	DefaultAccountCount     = 10
	DefaultBalance          = new(big.Int).Mul(big.NewInt(10000), big.NewInt(1e18)) // 10000 ETH
	DefaultMnemonic         = "test test test test test test test test test test test junk"
	DefaultGenesisTimestamp = uint64(0) // 0 = wall clock at startup
	DefaultBlockTime        = time.Duration(0)
	DefaultAllowOrigin      = "*"
	DefaultLogLevel         = "info"
)

// Valid log levels.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Config defines the simulator configuration.
type Config struct {
	// Network configuration
	ChainID  uint64 `json:"chainId"`
	GasLimit uint64 `json:"gasLimit"`

	// Server configuration
	Host string `json:"host"`
	Port int    `json:"port"`

	// Account configuration
	AccountCount   int      `json:"accountCount"`
	DefaultBalance *big.Int `json:"defaultBalance"`
	Mnemonic       string   `json:"mnemonic"`

	// Chain configuration
	GenesisTimestamp uint64        `json:"genesisTimestamp"`
	BlockTime        time.Duration `json:"blockTime"` // 0 = manual mining only

	// Server behavior
	AllowOrigin string `json:"allowOrigin"`
	LogLevel    string `json:"logLevel"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		ChainID:          DefaultChainID,
		GasLimit:         DefaultGasLimit,
		Host:             DefaultHost,
		Port:             DefaultPort,
		AccountCount:     DefaultAccountCount,
		DefaultBalance:   new(big.Int).Set(DefaultBalance),
		Mnemonic:         DefaultMnemonic,
		GenesisTimestamp: DefaultGenesisTimestamp,
		BlockTime:        DefaultBlockTime,
		AllowOrigin:      DefaultAllowOrigin,
		LogLevel:         DefaultLogLevel,
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	if c.ChainID == 0 {
		errs = append(errs, "chainId must be greater than 0")
	}

	if c.GasLimit == 0 {
		errs = append(errs, "gasLimit must be greater than 0")
	}

	if c.Port <= 0 || c.Port > 65535 {
		errs = append(errs, "port must be between 1 and 65535")
	}

	if c.AccountCount <= 0 {
		errs = append(errs, "accountCount must be greater than 0")
	}

	if c.Mnemonic != "" && !bip39.IsMnemonicValid(c.Mnemonic) {
		errs = append(errs, "mnemonic is invalid")
	}

	if !validLogLevels[c.LogLevel] {
		errs = append(errs, "logLevel must be one of: debug, info, warn, error")
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}

	return nil
}

// LoadFromFile loads configuration from a JSON file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Merge with defaults
	merged := MergeWithDefaults(&cfg)

	return merged, nil
}

// MergeWithDefaults merges partial config with default values.
func MergeWithDefaults(partial *Config) *Config {
	def := Default()

	if partial.ChainID != 0 {
		def.ChainID = partial.ChainID
	}
	if partial.GasLimit != 0 {
		def.GasLimit = partial.GasLimit
	}
	if partial.Host != "" {
		def.Host = partial.Host
	}
	if partial.Port != 0 {
		def.Port = partial.Port
	}
	if partial.AccountCount != 0 {
		def.AccountCount = partial.AccountCount
	}
	if partial.DefaultBalance != nil {
		def.DefaultBalance = partial.DefaultBalance
	}
	if partial.Mnemonic != "" {
		def.Mnemonic = partial.Mnemonic
	}
	if partial.GenesisTimestamp != 0 {
		def.GenesisTimestamp = partial.GenesisTimestamp
	}
	if partial.BlockTime != 0 {
		def.BlockTime = partial.BlockTime
	}
	if partial.AllowOrigin != "" {
		def.AllowOrigin = partial.AllowOrigin
	}
	if partial.LogLevel != "" {
		def.LogLevel = partial.LogLevel
	}

	return def
}

// Copy creates a deep copy of the configuration.
func (c *Config) Copy() *Config {
	copied := *c

	if c.DefaultBalance != nil {
		copied.DefaultBalance = new(big.Int).Set(c.DefaultBalance)
	}

	return &copied
}

// ServerAddr returns the server address string.
func (c *Config) ServerAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// IsIntervalMining returns true if interval mining is enabled.
func (c *Config) IsIntervalMining() bool {
	return c.BlockTime > 0
}
