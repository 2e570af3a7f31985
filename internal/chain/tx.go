package chain

import (
	"context"
	"fmt"
	"math/big"

	"bridge/internal/hash"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
)

// Gas limits and attached values of the bridge writes.
const (
	PlaceBidGasLimit = 500_000
	FillGasLimit     = 1_000_000
	SettleGasLimit   = 1_000_000
	OpenGasLimit     = 1_000_000
)

var (
	// SettleValue pays for the cross-chain settlement message.
	SettleValue = new(big.Int).Mul(big.NewInt(3), big.NewInt(params.Ether/1000))
	// OpenValue is attached to escrow open.
	OpenValue = new(big.Int).Mul(big.NewInt(1), big.NewInt(params.Ether/1000))
	// MaxUint256 is the approval amount used for every spender.
	MaxUint256 = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))
)

// Receipt is the outcome of a mined write.
type Receipt struct {
	TxHash      ethcommon.Hash `json:"txHash"`
	BlockNumber uint64         `json:"blockNumber"`
	GasUsed     uint64         `json:"gasUsed"`
	ExplorerURL string         `json:"explorerUrl"`
}

func (c *Client) transactOpts(ctx context.Context, gasLimit uint64, value *big.Int) (*bind.TransactOpts, error) {
	if c.key == nil {
		return nil, ErrNoSigner
	}
	if c.backend == nil {
		return nil, fmt.Errorf("%s client is read-only", c.network.ID)
	}
	opts, err := bind.NewKeyedTransactorWithChainID(c.key, c.chainID)
	if err != nil {
		return nil, fmt.Errorf("failed to build transactor: %w", err)
	}
	opts.Context = ctx
	opts.GasLimit = gasLimit
	opts.Value = value
	return opts, nil
}

// transact sends method on the contract at address and waits for it to be
// mined. A receipt with a failed status is reported as ErrReverted.
func (c *Client) transact(ctx context.Context, address ethcommon.Address, contractABI abi.ABI, gasLimit uint64, value *big.Int, method string, args ...interface{}) (*Receipt, error) {
	opts, err := c.transactOpts(ctx, gasLimit, value)
	if err != nil {
		return nil, err
	}

	contract := bind.NewBoundContract(address, contractABI, c.caller, c.backend, c.backend)
	tx, err := contract.Transact(opts, method, args...)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", method, err)
	}

	c.logger.Info().
		Str("method", method).
		Str("to", address.Hex()).
		Str("tx_hash", tx.Hash().Hex()).
		Msg("transaction sent")

	receipt, err := bind.WaitMined(ctx, c.backend, tx)
	if err != nil {
		return nil, fmt.Errorf("%s: waiting for %s: %w", method, tx.Hash().Hex(), err)
	}
	if receipt.Status != types.ReceiptStatusSuccessful {
		return nil, fmt.Errorf("%s %s: %w", method, tx.Hash().Hex(), ErrReverted)
	}

	c.logger.Info().
		Str("method", method).
		Str("tx_hash", tx.Hash().Hex()).
		Uint64("block", receipt.BlockNumber.Uint64()).
		Uint64("gas_used", receipt.GasUsed).
		Msg("transaction mined")

	return &Receipt{
		TxHash:      tx.Hash(),
		BlockNumber: receipt.BlockNumber.Uint64(),
		GasUsed:     receipt.GasUsed,
		ExplorerURL: c.ExplorerTxURL(tx.Hash()),
	}, nil
}

// PlaceBid accepts the current price of auction id.
func (c *Client) PlaceBid(ctx context.Context, id uint64) (*Receipt, error) {
	address := ethcommon.HexToAddress(c.network.DutchAuction)
	return c.transact(ctx, address, DutchAuctionABI, PlaceBidGasLimit, nil, "placeBid", new(big.Int).SetUint64(id))
}

// Approve lets spender move amount of token on behalf of the signer.
func (c *Client) Approve(ctx context.Context, token, spender ethcommon.Address, amount *big.Int) (*Receipt, error) {
	return c.transact(ctx, token, ERC20ABI, 0, nil, "approve", spender, amount)
}

// Open submits order to escrow.
func (c *Client) Open(ctx context.Context, escrow ethcommon.Address, order hash.OnchainCrossChainOrder) (*Receipt, error) {
	return c.transact(ctx, escrow, EscrowABI, OpenGasLimit, OpenValue, "open", order)
}

// Fill delivers the output of orderID on the destination chain.
func (c *Client) Fill(ctx context.Context, settler ethcommon.Address, orderID [32]byte, originData, fillerData []byte) (*Receipt, error) {
	return c.transact(ctx, settler, SettlerABI, FillGasLimit, nil, "fill", orderID, originData, fillerData)
}

// Settle releases the escrowed input of orderIDs to the filler.
func (c *Client) Settle(ctx context.Context, settler ethcommon.Address, orderIDs [][32]byte) (*Receipt, error) {
	return c.transact(ctx, settler, SettlerABI, SettleGasLimit, SettleValue, "settle", orderIDs)
}

func abiConvert[T any](v interface{}) *T {
	return abi.ConvertType(v, new(T)).(*T)
}
