// Package auction holds the auction record read from the Dutch auction
// contract and the pure computations derived from it: the price-decay law,
// status labels, display formatting and list queries.
package auction

import (
	"fmt"
	"math/big"
	"time"

	ethcommon "github.com/ethereum/go-ethereum/common"
)

// Auction mirrors the auctionTokens, auctionTimes, auctionBids and
// auctionParties views of one auction, enriched with token metadata.
type Auction struct {
	ID      uint64 `json:"id"`
	Network string `json:"network"`

	SourceToken    ethcommon.Address `json:"sourceToken"`
	DestToken      ethcommon.Address `json:"destToken"`
	SourceAmount   *big.Int          `json:"sourceAmount"`
	MinDestAmount  *big.Int          `json:"minDestAmount"`
	SourceSymbol   string            `json:"sourceSymbol"`
	DestSymbol     string            `json:"destSymbol"`
	SourceDecimals uint8             `json:"sourceDecimals"`
	DestDecimals   uint8             `json:"destDecimals"`

	StartTime int64 `json:"startTime"`
	EndTime   int64 `json:"endTime"`

	// StartPrice decays linearly to EndPrice over [StartTime, EndTime].
	StartPrice *big.Int `json:"startPrice"`
	EndPrice   *big.Int `json:"endPrice"`

	Winner     ethcommon.Address `json:"winner"`
	WinningBid *big.Int          `json:"winningBid"`
	Settled    bool              `json:"settled"`

	User    ethcommon.Address `json:"user"`
	Settler ethcommon.Address `json:"settler"`

	// CurrentPrice is the contract-reported price, nil when it was not read.
	CurrentPrice *big.Int `json:"currentPrice,omitempty"`
}

// Key identifies an auction across networks.
func Key(network string, id uint64) string {
	return fmt.Sprintf("%s/%d", network, id)
}

func (a *Auction) Key() string {
	return Key(a.Network, a.ID)
}

func (a *Auction) HasWinner() bool {
	return a.Winner != (ethcommon.Address{})
}

// InWindow reports whether now lies in [StartTime, EndTime].
func (a *Auction) InWindow(now time.Time) bool {
	t := now.Unix()
	return t >= a.StartTime && t <= a.EndTime
}

// Biddable reports whether a price refresh or a bid makes sense right now.
func (a *Auction) Biddable(now time.Time) bool {
	return a.InWindow(now) && !a.Settled && !a.HasWinner()
}

// Clone returns a deep copy so that book readers never share big.Int values
// with the poller.
func (a *Auction) Clone() *Auction {
	c := *a
	c.SourceAmount = cloneBig(a.SourceAmount)
	c.MinDestAmount = cloneBig(a.MinDestAmount)
	c.StartPrice = cloneBig(a.StartPrice)
	c.EndPrice = cloneBig(a.EndPrice)
	c.WinningBid = cloneBig(a.WinningBid)
	c.CurrentPrice = cloneBig(a.CurrentPrice)
	return &c
}

func cloneBig(x *big.Int) *big.Int {
	if x == nil {
		return nil
	}
	return new(big.Int).Set(x)
}
