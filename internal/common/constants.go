package common

// ChainID represents supported network chain IDs as an enum type
type ChainID int64

const (
	EthereumSepolia  ChainID = 11155111
	RootstockTestnet ChainID = 31
	CitreaTestnet    ChainID = 5115
)

// DefaultDecimals is assumed for tokens whose decimals() call fails
const DefaultDecimals = 18

// Network ids used as keys throughout the registry
const (
	NetworkEthereum  = "ethereum"
	NetworkRootstock = "rootstock"
	NetworkCitrea    = "citrea"
)

const (
	defaultDutchAuction = "0x21654dFbF44125271e87f71633ec1af17d0D685a"
	defaultEscrow       = "0xCF1D0Bd7F6C2A8C05324d5D12fBa3E1eD2aa9451"
)

var defaultNetworks = []Network{
	{
		ID:           NetworkEthereum,
		Name:         "Ethereum Sepolia",
		ChainID:      EthereumSepolia,
		RPCURL:       "https://rpc.sepolia.org",
		ExplorerURL:  "https://sepolia.etherscan.io",
		Color:        "#627EEA",
		DutchAuction: defaultDutchAuction,
		Escrow:       defaultEscrow,
	},
	{
		ID:           NetworkRootstock,
		Name:         "Rootstock Testnet",
		ChainID:      RootstockTestnet,
		RPCURL:       "https://public-node.testnet.rsk.co",
		ExplorerURL:  "https://explorer.testnet.rsk.co",
		Color:        "#FF9900",
		DutchAuction: defaultDutchAuction,
		Escrow:       defaultEscrow,
	},
	{
		ID:           NetworkCitrea,
		Name:         "Citrea Testnet",
		ChainID:      CitreaTestnet,
		RPCURL:       "https://rpc.testnet.citrea.xyz",
		ExplorerURL:  "https://explorer.testnet.citrea.xyz",
		Color:        "#3B82F6",
		DutchAuction: defaultDutchAuction,
		Escrow:       defaultEscrow,
	},
}

var defaultTokens = []Token{
	{
		ID:       "usdc",
		Name:     "USDC",
		Color:    "#2775CA",
		Decimals: DefaultDecimals,
		Addresses: map[string]string{
			NetworkEthereum:  "0xA70638af71aD445D6E899790e327e73A0ba09e4f",
			NetworkRootstock: "0x4F21994B5f8F724839bA574F97E47f8F3f967Cae",
			NetworkCitrea:    "0xC4A0fafFd686C4852020ED50152F6A171b2554ad",
		},
	},
	{
		ID:       "usdt",
		Name:     "USDT",
		Color:    "#26A17B",
		Decimals: DefaultDecimals,
		Addresses: map[string]string{
			NetworkEthereum:  "0x30E9b6B0d161cBd5Ff8cf904Ff4FA43Ce66AC346",
			NetworkRootstock: "0x8aD1b8C4082D7aF6E9C3D9D9Fc95A431Fb3d8A11",
			NetworkCitrea:    "0xb6E3F86a5CE9ac318F54C9C7Bcd6eff368DF0296",
		},
	},
	{
		ID:       "dai",
		Name:     "DAI",
		Color:    "#F5AC37",
		Decimals: DefaultDecimals,
		Addresses: map[string]string{
			NetworkEthereum:  "0x68194a729C2450ad26072b3D33ADaCbcef39D574",
			NetworkRootstock: "0xCF1D0Bd7F6C2A8C05324d5D12fBa3E1eD2aa9451",
			NetworkCitrea:    "0xd393b1E02dA9831Ff419e22eA105aAe4c47E1253",
		},
	},
}
