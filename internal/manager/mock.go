package manager

import (
	"math/big"
	"time"

	"bridge/internal/auction"
	"bridge/internal/common"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

var (
	mockUser    = ethcommon.HexToAddress("0x000000000000000000000000000000000000dEaD")
	mockSettler = ethcommon.HexToAddress("0x94AA7d7A4e249ca9A12A834CeC057e91F886B92a")
	mockUSDT    = ethcommon.HexToAddress("0x30E9b6B0d161cBd5Ff8cf904Ff4FA43Ce66AC346")
	mockUSDC    = ethcommon.HexToAddress("0x1c7D4B196Cb0C7B01d743Fbc6116a902379C7238")
)

func tokens(n int64) *big.Int {
	return new(big.Int).Mul(big.NewInt(n), big.NewInt(1e18))
}

// MockAuctions are shown when no network can be reached, so that the book is
// never empty for lack of RPC access. Times are relative to now.
func MockAuctions(networks []string, now time.Time) []*auction.Auction {
	if len(networks) == 0 {
		networks = []string{common.NetworkEthereum, common.NetworkRootstock, common.NetworkCitrea}
	}
	t := now.Unix()

	templates := []auction.Auction{
		{
			SourceToken: mockUSDT, DestToken: mockUSDT, SourceSymbol: "USDT", DestSymbol: "USDT",
			SourceAmount: tokens(1000), MinDestAmount: tokens(900),
			StartTime: t - 600, EndTime: t + 3000,
		},
		{
			SourceToken: mockUSDC, DestToken: mockUSDT, SourceSymbol: "USDC", DestSymbol: "USDT",
			SourceAmount: tokens(250), MinDestAmount: tokens(240),
			StartTime: t + 1800, EndTime: t + 5400,
		},
		{
			SourceToken: mockUSDT, DestToken: mockUSDC, SourceSymbol: "USDT", DestSymbol: "USDC",
			SourceAmount: tokens(500), MinDestAmount: tokens(450),
			StartTime: t - 7200, EndTime: t - 3600,
			Winner: mockSettler, WinningBid: tokens(470), Settled: true,
		},
	}

	out := make([]*auction.Auction, 0, len(templates))
	for i, tpl := range templates {
		a := tpl
		a.ID = uint64(i)
		a.Network = networks[i%len(networks)]
		a.SourceDecimals = common.DefaultDecimals
		a.DestDecimals = common.DefaultDecimals
		a.StartPrice = new(big.Int).Set(a.SourceAmount)
		a.EndPrice = new(big.Int).Set(a.MinDestAmount)
		a.User = mockUser
		a.Settler = mockSettler
		if a.WinningBid == nil {
			a.WinningBid = big.NewInt(0)
		}
		out = append(out, &a)
	}
	return out
}

func (m *Manager) installMock() {
	for _, k := range m.snapshotKeys() {
		m.deleteAuction(k)
	}
	for _, a := range MockAuctions(m.network, m.now()) {
		if err := m.setAuction(a); err != nil {
			m.logger.Error().Err(err).Msg("failed to store sample auction")
		}
	}

	m.stateMu.Lock()
	m.mock = true
	m.stateMu.Unlock()

	m.logger.Warn().Msg("no network reachable, showing sample auctions")
}

// clearMock drops the sample auctions once any network answers again.
func (m *Manager) clearMock() {
	m.stateMu.Lock()
	wasMock := m.mock
	m.mock = false
	m.stateMu.Unlock()

	if !wasMock {
		return
	}
	for _, k := range m.snapshotKeys() {
		m.deleteAuction(k)
	}
}
