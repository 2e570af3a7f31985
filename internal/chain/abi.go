package chain

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// Minimal fragments of the Dutch auction contract: the four auction views,
// the live price and placeBid.
const dutchAuctionABI = `[
	{
		"inputs": [],
		"name": "nextAuctionId",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"name": "auctionTokens",
		"outputs": [
			{"internalType": "address", "name": "sourceToken", "type": "address"},
			{"internalType": "address", "name": "destToken", "type": "address"},
			{"internalType": "uint256", "name": "sourceAmount", "type": "uint256"},
			{"internalType": "uint256", "name": "minDestAmount", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"name": "auctionTimes",
		"outputs": [
			{"internalType": "uint256", "name": "startTime", "type": "uint256"},
			{"internalType": "uint256", "name": "endTime", "type": "uint256"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"name": "auctionBids",
		"outputs": [
			{"internalType": "address", "name": "winner", "type": "address"},
			{"internalType": "uint256", "name": "winningBid", "type": "uint256"},
			{"internalType": "bool", "name": "settled", "type": "bool"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"name": "auctionParties",
		"outputs": [
			{"internalType": "address", "name": "user", "type": "address"},
			{"internalType": "address", "name": "settler", "type": "address"}
		],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "auctionId", "type": "uint256"}],
		"name": "getCurrentPrice",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "uint256", "name": "auctionId", "type": "uint256"}],
		"name": "placeBid",
		"outputs": [],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

// Escrow open, taking an OnchainCrossChainOrder.
const escrowABI = `[
	{
		"inputs": [
			{
				"components": [
					{"internalType": "uint32", "name": "fillDeadline", "type": "uint32"},
					{"internalType": "bytes32", "name": "orderDataType", "type": "bytes32"},
					{"internalType": "bytes", "name": "orderData", "type": "bytes"}
				],
				"internalType": "struct OnchainCrossChainOrder",
				"name": "order",
				"type": "tuple"
			}
		],
		"name": "open",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	}
]`

// Settler fill on the destination chain and settle back to the origin.
const settlerABI = `[
	{
		"inputs": [
			{"internalType": "bytes32", "name": "orderId", "type": "bytes32"},
			{"internalType": "bytes", "name": "originData", "type": "bytes"},
			{"internalType": "bytes", "name": "fillerData", "type": "bytes"}
		],
		"name": "fill",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "bytes32[]", "name": "orderIds", "type": "bytes32[]"}],
		"name": "settle",
		"outputs": [],
		"stateMutability": "payable",
		"type": "function"
	}
]`

const erc20ABI = `[
	{
		"inputs": [],
		"name": "symbol",
		"outputs": [{"internalType": "string", "name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "name",
		"outputs": [{"internalType": "string", "name": "", "type": "string"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [],
		"name": "decimals",
		"outputs": [{"internalType": "uint8", "name": "", "type": "uint8"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [{"internalType": "address", "name": "account", "type": "address"}],
		"name": "balanceOf",
		"outputs": [{"internalType": "uint256", "name": "", "type": "uint256"}],
		"stateMutability": "view",
		"type": "function"
	},
	{
		"inputs": [
			{"internalType": "address", "name": "spender", "type": "address"},
			{"internalType": "uint256", "name": "amount", "type": "uint256"}
		],
		"name": "approve",
		"outputs": [{"internalType": "bool", "name": "", "type": "bool"}],
		"stateMutability": "nonpayable",
		"type": "function"
	}
]`

var (
	DutchAuctionABI = mustParseABI(dutchAuctionABI)
	EscrowABI       = mustParseABI(escrowABI)
	SettlerABI      = mustParseABI(settlerABI)
	ERC20ABI        = mustParseABI(erc20ABI)
)

func mustParseABI(s string) abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(s))
	if err != nil {
		panic(err)
	}
	return parsed
}
