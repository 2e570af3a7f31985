// Package chain talks to the Dutch auction, escrow, settler and ERC-20
// contracts of one network over JSON-RPC.
package chain

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"strings"
	"sync"
	"time"

	"bridge/internal/auction"
	"bridge/internal/common"

	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/ethclient"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

// Token detail fallbacks for contracts that do not answer the metadata views.
const (
	FallbackSymbol = "???"
	FallbackName   = "Unknown Token"
)

// Backend is what a Client needs to send transactions and wait for receipts.
// *ethclient.Client satisfies it.
type Backend interface {
	bind.ContractBackend
	bind.DeployBackend
}

type AuctionTokens struct {
	SourceToken   ethcommon.Address
	DestToken     ethcommon.Address
	SourceAmount  *big.Int
	MinDestAmount *big.Int
}

type AuctionTimes struct {
	StartTime *big.Int
	EndTime   *big.Int
}

type AuctionBids struct {
	Winner     ethcommon.Address
	WinningBid *big.Int
	Settled    bool
}

type AuctionParties struct {
	User    ethcommon.Address
	Settler ethcommon.Address
}

type TokenDetails struct {
	Address  ethcommon.Address `json:"address"`
	Symbol   string            `json:"symbol"`
	Name     string            `json:"name"`
	Decimals uint8             `json:"decimals"`
}

// Client is bound to one network. Reads go through caller; writes need a
// backend and a private key.
type Client struct {
	network common.Network
	caller  bind.ContractCaller
	backend Backend
	key     *ecdsa.PrivateKey
	chainID *big.Int
	auction *bind.BoundContract
	logger  zerolog.Logger

	tokensMu sync.Mutex
	tokens   map[ethcommon.Address]TokenDetails

	now func() time.Time
}

// Dial connects to the network's RPC endpoint and checks that it serves the
// expected chain. key may be nil for a read-only client.
func Dial(ctx context.Context, network common.Network, key *ecdsa.PrivateKey, logger zerolog.Logger) (*Client, error) {
	client, err := ethclient.DialContext(ctx, network.RPCURL)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", network.ID, err)
	}

	chainID, err := client.ChainID(ctx)
	if err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to read chain id of %s: %w", network.ID, err)
	}
	if chainID.Int64() != int64(network.ChainID) {
		client.Close()
		return nil, fmt.Errorf("%s rpc serves chain %s, expected %d", network.ID, chainID, network.ChainID)
	}

	return NewClient(network, client, client, key, logger), nil
}

// NewClient builds a client on explicit backends. backend may be nil, in
// which case every write fails.
func NewClient(network common.Network, caller bind.ContractCaller, backend Backend, key *ecdsa.PrivateKey, logger zerolog.Logger) *Client {
	var transactor bind.ContractTransactor
	var filterer bind.ContractFilterer
	if backend != nil {
		transactor, filterer = backend, backend
	}

	return &Client{
		network: network,
		caller:  caller,
		backend: backend,
		key:     key,
		chainID: big.NewInt(int64(network.ChainID)),
		auction: bind.NewBoundContract(ethcommon.HexToAddress(network.DutchAuction), DutchAuctionABI, caller, transactor, filterer),
		logger:  logger.With().Str("network", network.ID).Logger(),
		tokens:  make(map[ethcommon.Address]TokenDetails),
		now:     time.Now,
	}
}

func (c *Client) Network() common.Network {
	return c.network
}

// From is the signer address, the zero address for a read-only client.
func (c *Client) From() ethcommon.Address {
	if c.key == nil {
		return ethcommon.Address{}
	}
	return crypto.PubkeyToAddress(c.key.PublicKey)
}

func (c *Client) callAuction(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	var out []interface{}
	if err := c.auction.Call(&bind.CallOpts{Context: ctx}, &out, method, args...); err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}
	return out, nil
}

func (c *Client) NextAuctionID(ctx context.Context) (uint64, error) {
	out, err := c.callAuction(ctx, "nextAuctionId")
	if err != nil {
		return 0, err
	}
	next := *abiConvert[*big.Int](out[0])
	if !next.IsUint64() {
		return 0, fmt.Errorf("nextAuctionId out of range: %s", next)
	}
	return next.Uint64(), nil
}

func (c *Client) AuctionTokens(ctx context.Context, id uint64) (AuctionTokens, error) {
	out, err := c.callAuction(ctx, "auctionTokens", new(big.Int).SetUint64(id))
	if err != nil {
		return AuctionTokens{}, err
	}
	return AuctionTokens{
		SourceToken:   *abiConvert[ethcommon.Address](out[0]),
		DestToken:     *abiConvert[ethcommon.Address](out[1]),
		SourceAmount:  *abiConvert[*big.Int](out[2]),
		MinDestAmount: *abiConvert[*big.Int](out[3]),
	}, nil
}

func (c *Client) AuctionTimes(ctx context.Context, id uint64) (AuctionTimes, error) {
	out, err := c.callAuction(ctx, "auctionTimes", new(big.Int).SetUint64(id))
	if err != nil {
		return AuctionTimes{}, err
	}
	return AuctionTimes{
		StartTime: *abiConvert[*big.Int](out[0]),
		EndTime:   *abiConvert[*big.Int](out[1]),
	}, nil
}

func (c *Client) AuctionBids(ctx context.Context, id uint64) (AuctionBids, error) {
	out, err := c.callAuction(ctx, "auctionBids", new(big.Int).SetUint64(id))
	if err != nil {
		return AuctionBids{}, err
	}
	return AuctionBids{
		Winner:     *abiConvert[ethcommon.Address](out[0]),
		WinningBid: *abiConvert[*big.Int](out[1]),
		Settled:    *abiConvert[bool](out[2]),
	}, nil
}

func (c *Client) AuctionParties(ctx context.Context, id uint64) (AuctionParties, error) {
	out, err := c.callAuction(ctx, "auctionParties", new(big.Int).SetUint64(id))
	if err != nil {
		return AuctionParties{}, err
	}
	return AuctionParties{
		User:    *abiConvert[ethcommon.Address](out[0]),
		Settler: *abiConvert[ethcommon.Address](out[1]),
	}, nil
}

func (c *Client) CurrentPrice(ctx context.Context, id uint64) (*big.Int, error) {
	out, err := c.callAuction(ctx, "getCurrentPrice", new(big.Int).SetUint64(id))
	if err != nil {
		return nil, err
	}
	return *abiConvert[*big.Int](out[0]), nil
}

// FetchAuction reads the four auction views concurrently and enriches the
// record with token metadata. It returns nil, nil for an empty slot, that is
// an auction whose user is the zero address. The contract price is read only
// while the auction is biddable; a failed price read leaves it nil.
func (c *Client) FetchAuction(ctx context.Context, id uint64) (*auction.Auction, error) {
	var (
		tokens  AuctionTokens
		times   AuctionTimes
		bids    AuctionBids
		parties AuctionParties
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) { tokens, err = c.AuctionTokens(gctx, id); return })
	g.Go(func() (err error) { times, err = c.AuctionTimes(gctx, id); return })
	g.Go(func() (err error) { bids, err = c.AuctionBids(gctx, id); return })
	g.Go(func() (err error) { parties, err = c.AuctionParties(gctx, id); return })
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("failed to fetch auction %d: %w", id, err)
	}

	if parties.User == (ethcommon.Address{}) {
		return nil, nil
	}

	source := c.TokenDetails(ctx, tokens.SourceToken)
	dest := c.TokenDetails(ctx, tokens.DestToken)

	a := &auction.Auction{
		ID:             id,
		Network:        c.network.ID,
		SourceToken:    tokens.SourceToken,
		DestToken:      tokens.DestToken,
		SourceAmount:   tokens.SourceAmount,
		MinDestAmount:  tokens.MinDestAmount,
		SourceSymbol:   source.Symbol,
		DestSymbol:     dest.Symbol,
		SourceDecimals: source.Decimals,
		DestDecimals:   dest.Decimals,
		StartTime:      toInt64(times.StartTime),
		EndTime:        toInt64(times.EndTime),
		StartPrice:     new(big.Int).Set(tokens.SourceAmount),
		EndPrice:       new(big.Int).Set(tokens.MinDestAmount),
		Winner:         bids.Winner,
		WinningBid:     bids.WinningBid,
		Settled:        bids.Settled,
		User:           parties.User,
		Settler:        parties.Settler,
	}

	if a.Biddable(c.now()) {
		price, err := c.CurrentPrice(ctx, id)
		if err != nil {
			c.logger.Warn().Err(err).Uint64("auction_id", id).Msg("failed to read current price")
		} else {
			a.CurrentPrice = price
		}
	}

	return a, nil
}

// TokenDetails returns symbol, name and decimals of token. Each field falls
// back independently when its view call fails. Results are cached per client.
func (c *Client) TokenDetails(ctx context.Context, token ethcommon.Address) TokenDetails {
	c.tokensMu.Lock()
	cached, ok := c.tokens[token]
	c.tokensMu.Unlock()
	if ok {
		return cached
	}

	erc20 := bind.NewBoundContract(token, ERC20ABI, c.caller, nil, nil)
	opts := &bind.CallOpts{Context: ctx}
	details := TokenDetails{Address: token, Symbol: FallbackSymbol, Name: FallbackName, Decimals: common.DefaultDecimals}
	complete := true

	var out []interface{}
	if err := erc20.Call(opts, &out, "symbol"); err == nil {
		details.Symbol = *abiConvert[string](out[0])
	} else {
		complete = false
		c.logger.Debug().Err(err).Str("token", token.Hex()).Msg("symbol lookup failed")
	}

	out = nil
	if err := erc20.Call(opts, &out, "name"); err == nil {
		details.Name = *abiConvert[string](out[0])
	} else {
		complete = false
		c.logger.Debug().Err(err).Str("token", token.Hex()).Msg("name lookup failed")
	}

	out = nil
	if err := erc20.Call(opts, &out, "decimals"); err == nil {
		details.Decimals = *abiConvert[uint8](out[0])
	} else {
		complete = false
		c.logger.Debug().Err(err).Str("token", token.Hex()).Msg("decimals lookup failed")
	}

	// partial answers are retried on the next refresh
	if complete {
		c.tokensMu.Lock()
		c.tokens[token] = details
		c.tokensMu.Unlock()
	}
	return details
}

func (c *Client) BalanceOf(ctx context.Context, token, account ethcommon.Address) (*big.Int, error) {
	erc20 := bind.NewBoundContract(token, ERC20ABI, c.caller, nil, nil)
	var out []interface{}
	if err := erc20.Call(&bind.CallOpts{Context: ctx}, &out, "balanceOf", account); err != nil {
		return nil, fmt.Errorf("balanceOf: %w", err)
	}
	return *abiConvert[*big.Int](out[0]), nil
}

// ExplorerTxURL links a transaction hash on the network's block explorer.
func (c *Client) ExplorerTxURL(txHash ethcommon.Hash) string {
	return strings.TrimRight(c.network.ExplorerURL, "/") + "/tx/" + txHash.Hex()
}

func toInt64(x *big.Int) int64 {
	if x == nil {
		return 0
	}
	if !x.IsInt64() {
		if x.Sign() < 0 {
			return 0
		}
		return int64(^uint64(0) >> 1)
	}
	return x.Int64()
}
