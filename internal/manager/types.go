package manager

import (
	"context"
	"errors"
	"math/big"
	"time"

	"bridge/internal/auction"
	"bridge/internal/chain"
	"bridge/internal/common"
)

var (
	ErrNotFound     = errors.New("auction not found")
	ErrNotBiddable  = errors.New("auction is not accepting bids")
	ErrMockAuction  = errors.New("auction is sample data, no network is reachable")
	ErrUnknownChain = errors.New("network is not configured")
	ErrAllNetworks  = errors.New("no network could be reached")
	// ErrNetworkDown is returned by a partial refresh whose networks all
	// failed. The book is left as it was.
	ErrNetworkDown = errors.New("network could not be reached")
)

// Chain is the per-network contract access the manager polls. *chain.Client
// implements it.
type Chain interface {
	Network() common.Network
	NextAuctionID(ctx context.Context) (uint64, error)
	FetchAuction(ctx context.Context, id uint64) (*auction.Auction, error)
	CurrentPrice(ctx context.Context, id uint64) (*big.Int, error)
	PlaceBid(ctx context.Context, id uint64) (*chain.Receipt, error)
}

// BidJournal records placed bids. It is optional.
type BidJournal interface {
	RecordBid(ctx context.Context, network string, auctionID uint64, receipt *chain.Receipt) error
}

type Options struct {
	PriceInterval    time.Duration
	RefreshInterval  time.Duration
	TTL              time.Duration
	FetchConcurrency int
	FetchTimeout     time.Duration
}

func (o Options) withDefaults() Options {
	if o.PriceInterval <= 0 {
		o.PriceInterval = PriceRefreshInterval
	}
	if o.RefreshInterval <= 0 {
		o.RefreshInterval = FullRefreshInterval
	}
	if o.TTL <= 0 {
		o.TTL = BookTTL
	}
	if o.FetchConcurrency <= 0 {
		o.FetchConcurrency = FetchConcurrency
	}
	if o.FetchTimeout <= 0 {
		o.FetchTimeout = FetchTimeout
	}
	return o
}

// RefreshResult summarizes one full refresh.
type RefreshResult struct {
	Fetched  map[string]int    `json:"fetched"`
	Failed   map[string]string `json:"failed,omitempty"`
	Mock     bool              `json:"mock"`
	Duration time.Duration     `json:"duration"`
	At       time.Time         `json:"at"`
}

// BidResult is returned by PlaceBid.
type BidResult struct {
	Receipt *chain.Receipt   `json:"receipt"`
	Auction *auction.Auction `json:"auction,omitempty"`
}
