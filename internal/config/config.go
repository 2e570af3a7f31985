// Package config defines the bridge daemon configuration and its validation.
package config

import (
	"fmt"
	"path"
	"strings"
	"time"

	"bridge/internal/common"
	"bridge/internal/deposit"
	"bridge/internal/manager"
	"bridge/internal/win"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
)

// Config is populated from a TOML file and then overridden by BRIDGE_*
// environment variables.
type Config struct {
	API       ServerConfig    `toml:"api"`
	WS        WSConfig        `toml:"ws"`
	Wallet    WalletConfig    `toml:"wallet"`
	Contracts ContractsConfig `toml:"contracts"`
	Poll      PollConfig      `toml:"poll"`
	Journal   JournalConfig   `toml:"journal"`
	LogLevel  string          `toml:"log_level"`
	LogFormat string          `toml:"log_format"`

	// Networks and Tokens replace the built-in testnet registry when set.
	Networks []common.Network `toml:"networks"`
	Tokens   []common.Token   `toml:"tokens"`
}

type ServerConfig struct {
	Port int `toml:"port"`
}

type WSConfig struct {
	Port int `toml:"port"`
	// AllowedOrigins are host patterns ("app.example.com", "localhost:*")
	// browsers may open the websocket from. Same-host requests are always
	// accepted.
	AllowedOrigins []string `toml:"allowed_origins"`
}

// WalletConfig holds the solver key. Without a key the daemon is read-only.
type WalletConfig struct {
	PrivateKey string `toml:"private_key"`
}

type ContractsConfig struct {
	// Settler receives fill and settle calls.
	Settler string `toml:"settler"`
	// DepositSettler is written into opened orders as destination settler.
	DepositSettler string `toml:"deposit_settler"`
	FillToken      string `toml:"fill_token"`
}

type PollConfig struct {
	PriceInterval    duration `toml:"price_interval"`
	RefreshInterval  duration `toml:"refresh_interval"`
	TTL              duration `toml:"ttl"`
	FetchTimeout     duration `toml:"fetch_timeout"`
	FetchConcurrency int      `toml:"fetch_concurrency"`
}

type JournalConfig struct {
	// Path of the sqlite journal. Empty disables journaling.
	Path string `toml:"path"`
}

// duration wraps time.Duration for TOML strings like "15s".
type duration struct {
	time.Duration
}

func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// DefaultAllowedOrigins admits a front end served from the local machine.
func DefaultAllowedOrigins() []string {
	return []string{"localhost:*", "127.0.0.1:*"}
}

func Defaults() Config {
	return Config{
		API: ServerConfig{Port: 8080},
		WS:  WSConfig{Port: 8081, AllowedOrigins: DefaultAllowedOrigins()},
		Contracts: ContractsConfig{
			Settler:        win.DefaultSettler.Hex(),
			DepositSettler: deposit.DefaultSettler.Hex(),
			FillToken:      win.DefaultFillToken.Hex(),
		},
		Poll: PollConfig{
			PriceInterval:    duration{manager.PriceRefreshInterval},
			RefreshInterval:  duration{manager.FullRefreshInterval},
			TTL:              duration{manager.BookTTL},
			FetchTimeout:     duration{manager.FetchTimeout},
			FetchConcurrency: manager.FetchConcurrency,
		},
		Journal:   JournalConfig{Path: "bridge.db"},
		LogLevel:  "info",
		LogFormat: "console",
		Networks:  common.DefaultNetworks(),
		Tokens:    common.DefaultTokens(),
	}
}

var (
	validLogLevels  = map[string]bool{"trace": true, "debug": true, "info": true, "warn": true, "error": true}
	validLogFormats = map[string]bool{"console": true, "json": true}
)

// Validate checks the configuration and returns every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: trace, debug, info, warn, error)", c.LogLevel))
	}
	if !validLogFormats[strings.ToLower(c.LogFormat)] {
		errs = append(errs, fmt.Sprintf("unknown log_format %q (valid: console, json)", c.LogFormat))
	}

	for name, port := range map[string]int{"api.port": c.API.Port, "ws.port": c.WS.Port} {
		if port <= 0 || port > 65535 {
			errs = append(errs, fmt.Sprintf("%s %d out of range", name, port))
		}
	}
	if c.API.Port == c.WS.Port {
		errs = append(errs, "api.port and ws.port must differ")
	}
	for _, pattern := range c.WS.AllowedOrigins {
		if _, err := path.Match(pattern, ""); err != nil {
			errs = append(errs, fmt.Sprintf("ws.allowed_origins %q is not a valid pattern", pattern))
		}
	}

	if c.Wallet.PrivateKey != "" {
		if _, err := crypto.HexToECDSA(strings.TrimPrefix(c.Wallet.PrivateKey, "0x")); err != nil {
			errs = append(errs, "wallet.private_key is not a valid secp256k1 key")
		}
	}

	for name, addr := range map[string]string{
		"contracts.settler":         c.Contracts.Settler,
		"contracts.deposit_settler": c.Contracts.DepositSettler,
		"contracts.fill_token":      c.Contracts.FillToken,
	} {
		if !ethcommon.IsHexAddress(addr) {
			errs = append(errs, fmt.Sprintf("%s %q is not an address", name, addr))
		}
	}

	if c.Poll.PriceInterval.Duration <= 0 || c.Poll.RefreshInterval.Duration <= 0 {
		errs = append(errs, "poll intervals must be positive")
	}
	if c.Poll.FetchTimeout.Duration <= 0 {
		errs = append(errs, "poll.fetch_timeout must be positive")
	}
	if c.Poll.FetchConcurrency <= 0 {
		errs = append(errs, "poll.fetch_concurrency must be positive")
	}

	for _, n := range c.Networks {
		if n.RPCURL == "" {
			errs = append(errs, fmt.Sprintf("network %s: rpc_url is required", n.ID))
		}
		if !ethcommon.IsHexAddress(n.DutchAuction) {
			errs = append(errs, fmt.Sprintf("network %s: dutch_auction %q is not an address", n.ID, n.DutchAuction))
		}
	}
	if _, err := c.Registry(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// Registry builds the network and token registry.
func (c *Config) Registry() (*common.Registry, error) {
	return common.NewRegistry(c.Networks, c.Tokens)
}

// HasSigner reports whether a private key is configured.
func (c *Config) HasSigner() bool {
	return c.Wallet.PrivateKey != ""
}

func (c *Config) ManagerOptions() manager.Options {
	return manager.Options{
		PriceInterval:    c.Poll.PriceInterval.Duration,
		RefreshInterval:  c.Poll.RefreshInterval.Duration,
		TTL:              c.Poll.TTL.Duration,
		FetchConcurrency: c.Poll.FetchConcurrency,
		FetchTimeout:     c.Poll.FetchTimeout.Duration,
	}
}
