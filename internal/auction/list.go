package auction

import (
	"math/big"
	"sort"
	"strconv"
	"strings"
	"time"
)

// PageSize is the number of auctions per listing page.
const PageSize = 9

// AllNetworks selects auctions from every network.
const AllNetworks = "all"

type StatusFilter string

const (
	FilterAll       StatusFilter = "all"
	FilterActive    StatusFilter = "active"
	FilterUpcoming  StatusFilter = "upcoming"
	FilterEnded     StatusFilter = "ended"
	FilterSettled   StatusFilter = "settled"
	FilterBidPlaced StatusFilter = "bidPlaced"
)

type SortOrder string

const (
	SortEndingSoon   SortOrder = "endingSoon"
	SortNewest       SortOrder = "newest"
	SortHighestPrice SortOrder = "highestPrice"
)

// Query selects, orders and pages a set of auctions.
type Query struct {
	Network string       `schema:"network"`
	Search  string       `schema:"search"`
	Status  StatusFilter `schema:"status"`
	Sort    SortOrder    `schema:"sort"`
	Page    int          `schema:"page"`
}

type Page struct {
	Items      []*Auction `json:"items"`
	Page       int        `json:"page"`
	TotalPages int        `json:"totalPages"`
	Total      int        `json:"total"`
}

// Matches applies the network, search and status parts of q.
func (q Query) Matches(a *Auction, now time.Time) bool {
	if q.Network != "" && q.Network != AllNetworks && a.Network != q.Network {
		return false
	}

	if q.Search != "" {
		term := strings.ToLower(q.Search)
		if !strings.Contains(strconv.FormatUint(a.ID, 10), term) &&
			!strings.Contains(strings.ToLower(a.SourceSymbol), term) &&
			!strings.Contains(strings.ToLower(a.DestSymbol), term) {
			return false
		}
	}

	t := now.Unix()
	switch q.Status {
	case FilterActive:
		return a.Biddable(now)
	case FilterUpcoming:
		return t < a.StartTime
	case FilterEnded:
		return t > a.EndTime && !a.Settled
	case FilterSettled:
		return a.Settled
	case FilterBidPlaced:
		return a.HasWinner()
	}
	return true
}

// Apply filters and sorts auctions then cuts out the requested page. Pages
// are 1-based; out of range pages are clamped.
func (q Query) Apply(auctions []*Auction, now time.Time) Page {
	matched := make([]*Auction, 0, len(auctions))
	for _, a := range auctions {
		if q.Matches(a, now) {
			matched = append(matched, a)
		}
	}

	Sort(matched, q.Sort, now)

	totalPages := (len(matched) + PageSize - 1) / PageSize
	page := q.Page
	if page < 1 {
		page = 1
	}
	if totalPages > 0 && page > totalPages {
		page = totalPages
	}

	startIdx := (page - 1) * PageSize
	endIdx := startIdx + PageSize
	if startIdx > len(matched) {
		startIdx = len(matched)
	}
	if endIdx > len(matched) {
		endIdx = len(matched)
	}

	return Page{
		Items:      matched[startIdx:endIdx],
		Page:       page,
		TotalPages: totalPages,
		Total:      len(matched),
	}
}

// Sort orders auctions in place. Unknown orders keep the input order.
func Sort(auctions []*Auction, order SortOrder, now time.Time) {
	switch order {
	case SortEndingSoon, "":
		sort.SliceStable(auctions, func(i, j int) bool {
			ai, aj := auctions[i].InWindow(now), auctions[j].InWindow(now)
			if ai != aj {
				return ai
			}
			return auctions[i].EndTime < auctions[j].EndTime
		})
	case SortNewest:
		sort.SliceStable(auctions, func(i, j int) bool {
			return auctions[i].StartTime > auctions[j].StartTime
		})
	case SortHighestPrice:
		sort.SliceStable(auctions, func(i, j int) bool {
			return reportedPrice(auctions[i]).Cmp(reportedPrice(auctions[j])) > 0
		})
	}
}

func reportedPrice(a *Auction) *big.Int {
	if a.CurrentPrice == nil {
		return new(big.Int)
	}
	return a.CurrentPrice
}

// Stats counts auctions per network, plus the total under AllNetworks.
// Every network in networkIDs is present even with a zero count.
func Stats(auctions []*Auction, networkIDs []string) map[string]int {
	stats := make(map[string]int, len(networkIDs)+1)
	stats[AllNetworks] = len(auctions)
	for _, id := range networkIDs {
		stats[id] = 0
	}
	for _, a := range auctions {
		stats[a.Network]++
	}
	return stats
}
