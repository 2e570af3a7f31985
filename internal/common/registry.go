package common

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Network is a chain the bridge can read auctions from and submit transactions to.
type Network struct {
	ID           string  `json:"id" toml:"id"`
	Name         string  `json:"name" toml:"name"`
	ChainID      ChainID `json:"chainId" toml:"chain_id"`
	RPCURL       string  `json:"rpcUrl" toml:"rpc_url"`
	ExplorerURL  string  `json:"explorerUrl" toml:"explorer_url"`
	Color        string  `json:"color" toml:"color"`
	DutchAuction string  `json:"dutchAuction" toml:"dutch_auction"`
	Escrow       string  `json:"escrow" toml:"escrow"`
}

// Token is a bridgeable asset and its address on every network it exists on.
type Token struct {
	ID        string            `json:"id" toml:"id"`
	Name      string            `json:"name" toml:"name"`
	Color     string            `json:"color" toml:"color"`
	Decimals  uint8             `json:"decimals" toml:"decimals"`
	Addresses map[string]string `json:"addresses" toml:"addresses"`
}

// ErrUnsupported wraps lookups of networks and tokens the registry does not
// know.
var ErrUnsupported = errors.New("unsupported")

// UnknownToken is returned by TokenByAddress for addresses not in the registry.
var UnknownToken = Token{
	ID:       "unknown",
	Name:     "Unknown",
	Color:    "#6B7280",
	Decimals: DefaultDecimals,
}

// Registry maps network ids to networks and token ids to tokens. It is built
// once at startup and never mutated afterwards, so it is safe for concurrent reads.
type Registry struct {
	networks []Network
	tokens   map[string]Token
}

// DefaultRegistry returns the registry for the testnet deployment.
func DefaultRegistry() *Registry {
	r, _ := NewRegistry(defaultNetworks, defaultTokens)
	return r
}

func NewRegistry(networks []Network, tokens []Token) (*Registry, error) {
	seen := make(map[string]bool, len(networks))
	nets := make([]Network, 0, len(networks))
	for _, n := range networks {
		if n.ID == "" {
			return nil, fmt.Errorf("network without id: %+v", n)
		}
		if seen[n.ID] {
			return nil, fmt.Errorf("duplicate network id: %s", n.ID)
		}
		seen[n.ID] = true
		nets = append(nets, n)
	}

	toks := make(map[string]Token, len(tokens))
	for _, t := range tokens {
		if t.ID == "" {
			return nil, fmt.Errorf("token without id: %+v", t)
		}
		if t.Decimals == 0 {
			t.Decimals = DefaultDecimals
		}
		addrs := make(map[string]string, len(t.Addresses))
		for netID, addr := range t.Addresses {
			if !seen[netID] {
				return nil, fmt.Errorf("token %s references unknown network %s", t.ID, netID)
			}
			addrs[netID] = addr
		}
		t.Addresses = addrs
		toks[t.ID] = t
	}

	return &Registry{networks: nets, tokens: toks}, nil
}

// Networks returns the configured networks in registry order.
func (r *Registry) Networks() []Network {
	out := make([]Network, len(r.networks))
	copy(out, r.networks)
	return out
}

func (r *Registry) NetworkByID(id string) (Network, error) {
	for _, n := range r.networks {
		if n.ID == id {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("%w network: %s", ErrUnsupported, id)
}

func (r *Registry) NetworkByChainID(chainID ChainID) (Network, error) {
	for _, n := range r.networks {
		if n.ChainID == chainID {
			return n, nil
		}
	}
	return Network{}, fmt.Errorf("%w chain ID: %d", ErrUnsupported, chainID)
}

// Tokens returns every token sorted by id.
func (r *Registry) Tokens() []Token {
	out := make([]Token, 0, len(r.tokens))
	for _, t := range r.tokens {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r *Registry) TokenByID(id string) (Token, error) {
	t, ok := r.tokens[id]
	if !ok {
		return Token{}, fmt.Errorf("%w token: %s", ErrUnsupported, id)
	}
	return t, nil
}

// TokensForNetwork lists the tokens that have an address on networkID.
func (r *Registry) TokensForNetwork(networkID string) []Token {
	out := make([]Token, 0)
	for _, t := range r.Tokens() {
		if _, ok := t.Addresses[networkID]; ok {
			out = append(out, t)
		}
	}
	return out
}

// NetworksForToken lists, in registry order, the networks tokenID is deployed on.
func (r *Registry) NetworksForToken(tokenID string) []Network {
	t, ok := r.tokens[tokenID]
	if !ok {
		return nil
	}
	out := make([]Network, 0, len(t.Addresses))
	for _, n := range r.networks {
		if _, ok := t.Addresses[n.ID]; ok {
			out = append(out, n)
		}
	}
	return out
}

// TokenAddress returns the address of tokenID on networkID.
func (r *Registry) TokenAddress(tokenID, networkID string) (ethcommon.Address, error) {
	t, err := r.TokenByID(tokenID)
	if err != nil {
		return ethcommon.Address{}, err
	}
	addr, ok := t.Addresses[networkID]
	if !ok {
		return ethcommon.Address{}, fmt.Errorf("%w: token %s is not available on %s", ErrUnsupported, tokenID, networkID)
	}
	return ethcommon.HexToAddress(addr), nil
}

// TokenByAddress resolves a token for display. Unknown addresses map to UnknownToken.
func (r *Registry) TokenByAddress(address string) Token {
	for _, t := range r.Tokens() {
		for _, addr := range t.Addresses {
			if strings.EqualFold(addr, address) {
				return t
			}
		}
	}
	return UnknownToken
}

// DefaultNetworks returns a copy of the built-in testnet networks.
func DefaultNetworks() []Network {
	return append([]Network(nil), defaultNetworks...)
}

// DefaultTokens returns a copy of the built-in tokens.
func DefaultTokens() []Token {
	out := make([]Token, len(defaultTokens))
	for i, t := range defaultTokens {
		addrs := make(map[string]string, len(t.Addresses))
		for k, v := range t.Addresses {
			addrs[k] = v
		}
		t.Addresses = addrs
		out[i] = t
	}
	return out
}
