package config

import (
	"errors"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"bridge/internal/common"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load merges the TOML file at path over the defaults, then applies BRIDGE_*
// environment overrides. A missing file is not an error, an empty path skips
// the file. The result is not validated.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	// a file that lists networks or tokens replaces the built-in set
	networks, tokens := cfg.Networks, cfg.Tokens
	cfg.Networks, cfg.Tokens, cfg.WS.AllowedOrigins = nil, nil, nil
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, err
		}
	}
	if len(cfg.Networks) == 0 {
		cfg.Networks = networks
	}
	if len(cfg.Tokens) == 0 {
		cfg.Tokens = tokensOn(tokens, cfg.Networks)
	}
	if len(cfg.WS.AllowedOrigins) == 0 {
		cfg.WS.AllowedOrigins = DefaultAllowedOrigins()
	}

	// .env is optional
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// tokensOn keeps the addresses of tokens on the given networks and drops
// tokens left without any.
func tokensOn(tokens []common.Token, networks []common.Network) []common.Token {
	known := make(map[string]bool, len(networks))
	for _, n := range networks {
		known[n.ID] = true
	}

	out := make([]common.Token, 0, len(tokens))
	for _, t := range tokens {
		addrs := make(map[string]string, len(t.Addresses))
		for id, addr := range t.Addresses {
			if known[id] {
				addrs[id] = addr
			}
		}
		if len(addrs) == 0 {
			continue
		}
		t.Addresses = addrs
		out = append(out, t)
	}
	return out
}

func splitList(v string) []string {
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}

func applyEnvOverrides(cfg *Config) {
	// older deployments used the bare names
	setInt(&cfg.API.Port, "API_PORT")
	setInt(&cfg.WS.Port, "PORT")

	setInt(&cfg.API.Port, "BRIDGE_API_PORT")
	setInt(&cfg.WS.Port, "BRIDGE_WS_PORT")
	if v := os.Getenv("BRIDGE_WS_ORIGINS"); v != "" {
		cfg.WS.AllowedOrigins = splitList(v)
	}

	setStr(&cfg.Wallet.PrivateKey, "BRIDGE_PRIVATE_KEY")

	setStr(&cfg.Contracts.Settler, "BRIDGE_SETTLER_ADDRESS")
	setStr(&cfg.Contracts.DepositSettler, "BRIDGE_DEPOSIT_SETTLER_ADDRESS")
	setStr(&cfg.Contracts.FillToken, "BRIDGE_FILL_TOKEN_ADDRESS")

	setDuration(&cfg.Poll.PriceInterval, "BRIDGE_PRICE_INTERVAL")
	setDuration(&cfg.Poll.RefreshInterval, "BRIDGE_REFRESH_INTERVAL")
	setDuration(&cfg.Poll.TTL, "BRIDGE_BOOK_TTL")
	setDuration(&cfg.Poll.FetchTimeout, "BRIDGE_FETCH_TIMEOUT")
	setInt(&cfg.Poll.FetchConcurrency, "BRIDGE_FETCH_CONCURRENCY")

	setStr(&cfg.Journal.Path, "BRIDGE_JOURNAL_PATH")

	setStr(&cfg.LogLevel, "BRIDGE_LOG_LEVEL")
	setStr(&cfg.LogFormat, "BRIDGE_LOG_FORMAT")

	// BRIDGE_RPC_<NETWORK>, e.g. BRIDGE_RPC_ETHEREUM
	for i := range cfg.Networks {
		n := &cfg.Networks[i]
		setStr(&n.RPCURL, "BRIDGE_RPC_"+strings.ToUpper(n.ID))
	}
}

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}
