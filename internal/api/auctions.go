package api

import (
	"errors"
	"net/http"
	"strconv"

	"bridge/internal/auction"
	"bridge/internal/common"
	"bridge/internal/manager"

	"github.com/gin-gonic/gin"
)

// auctionView is an auction with the labels a listing shows.
type auctionView struct {
	*auction.Auction
	Status          auction.Status `json:"status"`
	CanBid          bool           `json:"canBid"`
	TimeRemaining   string         `json:"timeRemaining"`
	SourceAmountFmt string         `json:"sourceAmountFormatted"`
	PriceFmt        string         `json:"currentPriceFormatted"`
	WinningBidFmt   string         `json:"winningBidFormatted,omitempty"`
}

func (s *APIServer) view(a *auction.Auction) auctionView {
	now := s.now()
	v := auctionView{
		Auction:         a,
		Status:          a.Status(now),
		CanBid:          a.CanBid(now),
		TimeRemaining:   a.TimeRemaining(now),
		SourceAmountFmt: auction.FormatPrice(a.SourceAmount, a.SourceDecimals, a.SourceSymbol),
		PriceFmt:        "N/A",
	}
	if v.Status == auction.StatusActive {
		v.PriceFmt = auction.FormatPrice(a.DisplayPrice(now), a.DestDecimals, a.DestSymbol)
	}
	if a.HasWinner() {
		v.WinningBidFmt = auction.FormatPrice(a.WinningBid, a.DestDecimals, a.DestSymbol)
	}
	return v
}

type networkView struct {
	common.Network
	Auctions int  `json:"auctions"`
	Polled   bool `json:"polled"`
}

func (s *APIServer) ListNetworks(c *gin.Context) {
	stats := s.manager.Stats()
	polled := make(map[string]bool)
	for _, id := range s.manager.Networks() {
		polled[id] = true
	}

	networks := s.registry.Networks()
	out := make([]networkView, 0, len(networks))
	for _, n := range networks {
		out = append(out, networkView{Network: n, Auctions: stats[n.ID], Polled: polled[n.ID]})
	}
	c.JSON(http.StatusOK, gin.H{
		"networks": out,
		"total":    stats[auction.AllNetworks],
		"mock":     s.manager.UsingMock(),
	})
}

type supportedQuery struct {
	ChainID int64 `schema:"chainId,required"`
}

// SupportedNetwork reports whether a wallet chain id is one of the bridge
// networks.
func (s *APIServer) SupportedNetwork(c *gin.Context) {
	var q supportedQuery
	if !bindQuery(c, &q) {
		return
	}
	n, err := s.registry.NetworkByChainID(common.ChainID(q.ChainID))
	if err != nil {
		c.JSON(http.StatusOK, gin.H{"supported": false})
		return
	}
	c.JSON(http.StatusOK, gin.H{"supported": true, "network": n})
}

type tokensQuery struct {
	Network string `schema:"network"`
}

func (s *APIServer) ListTokens(c *gin.Context) {
	var q tokensQuery
	if !bindQuery(c, &q) {
		return
	}
	if q.Network == "" {
		c.JSON(http.StatusOK, s.registry.Tokens())
		return
	}
	if _, err := s.registry.NetworkByID(q.Network); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.registry.TokensForNetwork(q.Network))
}

type pageView struct {
	Items      []auctionView  `json:"items"`
	Page       int            `json:"page"`
	TotalPages int            `json:"totalPages"`
	Total      int            `json:"total"`
	Stats      map[string]int `json:"stats"`
	Mock       bool           `json:"mock"`
}

func (s *APIServer) ListAuctions(c *gin.Context) {
	var q auction.Query
	if !bindQuery(c, &q) {
		return
	}

	page := s.manager.Query(q)
	items := make([]auctionView, 0, len(page.Items))
	for _, a := range page.Items {
		items = append(items, s.view(a))
	}
	c.JSON(http.StatusOK, pageView{
		Items:      items,
		Page:       page.Page,
		TotalPages: page.TotalPages,
		Total:      page.Total,
		Stats:      s.manager.Stats(),
		Mock:       s.manager.UsingMock(),
	})
}

func auctionParams(c *gin.Context) (string, uint64, bool) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid auction id"})
		return "", 0, false
	}
	return c.Param("network"), id, true
}

func (s *APIServer) GetAuction(c *gin.Context) {
	network, id, ok := auctionParams(c)
	if !ok {
		return
	}
	a, err := s.manager.Auction(network, id)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, s.view(a))
}

func (s *APIServer) PlaceBid(c *gin.Context) {
	network, id, ok := auctionParams(c)
	if !ok {
		return
	}

	result, err := s.manager.PlaceBid(c.Request.Context(), network, id)
	if err != nil {
		s.writeError(c, err)
		return
	}

	resp := gin.H{"receipt": result.Receipt}
	if result.Auction != nil {
		resp["auction"] = s.view(result.Auction)
	}
	c.JSON(http.StatusOK, resp)
}

type refreshQuery struct {
	Network string `schema:"network"`
}

// RefreshAuctions runs a full refresh now, of one network when given.
func (s *APIServer) RefreshAuctions(c *gin.Context) {
	var q refreshQuery
	if !bindQuery(c, &q) {
		return
	}

	var (
		result manager.RefreshResult
		err    error
	)
	if q.Network == "" || q.Network == auction.AllNetworks {
		result, err = s.manager.Refresh(c.Request.Context())
	} else {
		result, err = s.manager.RefreshNetwork(c.Request.Context(), q.Network)
	}
	// every network down still yields the sample book
	if err != nil && !errors.Is(err, manager.ErrAllNetworks) {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, result)
}
