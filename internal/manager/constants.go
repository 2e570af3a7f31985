package manager

import (
	"time"
)

// Refresh cadence of the auction book.
const (
	PriceRefreshInterval = time.Second * 15
	FullRefreshInterval  = time.Minute
	// BookTTL drops entries no refresh has rewritten, e.g. auctions of a
	// network whose RPC has been failing for a while.
	BookTTL = time.Minute * 5
	// FetchConcurrency bounds concurrent auction reads per network.
	FetchConcurrency = 8
	FetchTimeout     = time.Second * 30
	// MaxAuctionsPerNetwork bounds one network's reads to its most recent
	// auctions whatever nextAuctionId reports.
	MaxAuctionsPerNetwork = 10_000
)
