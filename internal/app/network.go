package app

import (
	"context"
	"crypto/ecdsa"
	"math/big"
	"sync"
	"time"

	"bridge/internal/auction"
	"bridge/internal/chain"
	"bridge/internal/common"
	"bridge/internal/hash"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

// NetworkClient stands in for a network's chain client. It dials on first
// use and again after a failed dial, so a network that is down at startup
// fails its refreshes until it answers and then joins the book.
type NetworkClient struct {
	network common.Network
	key     *ecdsa.PrivateKey
	dial    Dialer
	timeout time.Duration
	logger  zerolog.Logger

	mu     sync.Mutex
	client *chain.Client
}

func newNetworkClient(network common.Network, key *ecdsa.PrivateKey, dial Dialer, timeout time.Duration, logger zerolog.Logger) *NetworkClient {
	return &NetworkClient{
		network: network,
		key:     key,
		dial:    dial,
		timeout: timeout,
		logger:  logger.With().Str("network", network.ID).Logger(),
	}
}

// Client returns the connected client, dialing when there is none.
func (n *NetworkClient) Client(ctx context.Context) (*chain.Client, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.client != nil {
		return n.client, nil
	}

	dialCtx, cancel := context.WithTimeout(ctx, n.timeout)
	defer cancel()
	c, err := n.dial(dialCtx, n.network, n.key, n.logger)
	if err != nil {
		return nil, err
	}
	n.client = c
	n.logger.Info().Msg("network connected")
	return c, nil
}

// Connected reports whether a dial has succeeded.
func (n *NetworkClient) Connected() bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.client != nil
}

func (n *NetworkClient) Network() common.Network {
	return n.network
}

// From is the signer address, known without dialing.
func (n *NetworkClient) From() ethcommon.Address {
	if n.key == nil {
		return ethcommon.Address{}
	}
	return crypto.PubkeyToAddress(n.key.PublicKey)
}

func (n *NetworkClient) NextAuctionID(ctx context.Context) (uint64, error) {
	c, err := n.Client(ctx)
	if err != nil {
		return 0, err
	}
	return c.NextAuctionID(ctx)
}

func (n *NetworkClient) FetchAuction(ctx context.Context, id uint64) (*auction.Auction, error) {
	c, err := n.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.FetchAuction(ctx, id)
}

func (n *NetworkClient) CurrentPrice(ctx context.Context, id uint64) (*big.Int, error) {
	c, err := n.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.CurrentPrice(ctx, id)
}

func (n *NetworkClient) BalanceOf(ctx context.Context, token, account ethcommon.Address) (*big.Int, error) {
	c, err := n.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.BalanceOf(ctx, token, account)
}

func (n *NetworkClient) PlaceBid(ctx context.Context, id uint64) (*chain.Receipt, error) {
	c, err := n.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.PlaceBid(ctx, id)
}

func (n *NetworkClient) Approve(ctx context.Context, token, spender ethcommon.Address, amount *big.Int) (*chain.Receipt, error) {
	c, err := n.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Approve(ctx, token, spender, amount)
}

func (n *NetworkClient) Open(ctx context.Context, escrow ethcommon.Address, order hash.OnchainCrossChainOrder) (*chain.Receipt, error) {
	c, err := n.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Open(ctx, escrow, order)
}

func (n *NetworkClient) Fill(ctx context.Context, settler ethcommon.Address, orderID [32]byte, originData, fillerData []byte) (*chain.Receipt, error) {
	c, err := n.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Fill(ctx, settler, orderID, originData, fillerData)
}

func (n *NetworkClient) Settle(ctx context.Context, settler ethcommon.Address, orderIDs [][32]byte) (*chain.Receipt, error) {
	c, err := n.Client(ctx)
	if err != nil {
		return nil, err
	}
	return c.Settle(ctx, settler, orderIDs)
}
