package api

import (
	"errors"
	"net/http"
	"time"

	"bridge/internal/auction"
	"bridge/internal/chain"
	"bridge/internal/common"
	"bridge/internal/deposit"
	"bridge/internal/hash"
	"bridge/internal/manager"
	"bridge/internal/win"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/schema"
)

func (s *APIServer) RegisterRoutes() http.Handler {
	router := gin.New()
	router.Use(gin.Recovery(), s.requestLogger())

	router.GET("/health", s.Health)

	router.GET("/networks", s.ListNetworks)
	router.GET("/networks/supported", s.SupportedNetwork)
	router.GET("/tokens", s.ListTokens)

	router.GET("/auctions", s.ListAuctions)
	router.POST("/auctions/refresh", s.RefreshAuctions)
	router.GET("/auctions/:network/:id", s.GetAuction)
	router.POST("/auctions/:network/:id/bid", s.PlaceBid)

	router.GET("/deposits/balance", s.GetBalance)
	router.POST("/deposits/plan", s.PlanDeposit)
	router.POST("/deposits", s.SubmitDeposit)

	router.POST("/orders/encode", s.EncodeOrder)
	router.POST("/orders/decode", s.DecodeOrder)

	router.GET("/wins", s.ListWins)
	router.POST("/wins", s.StartWin)
	router.GET("/wins/:id", s.GetWin)
	router.DELETE("/wins/:id", s.CloseWin)
	router.POST("/wins/:id/continue", s.ContinueWin)
	router.POST("/wins/:id/back", s.BackWin)
	router.POST("/wins/:id/fill", s.FillWin)
	router.POST("/wins/:id/settle", s.SettleWin)

	router.GET("/journal/deposits", s.JournalDeposits)
	router.GET("/journal/bids", s.JournalBids)

	// Wrap the router with CORS middleware
	return s.corsMiddleware(router)
}

func (s *APIServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Accept, Authorization, Content-Type, X-CSRF-Token")
		w.Header().Set("Access-Control-Allow-Credentials", "false")

		// Handle preflight OPTIONS requests
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		s.logger.Debug().
			Str("method", c.Request.Method).
			Str("path", c.FullPath()).
			Int("status", c.Writer.Status()).
			Dur("took", time.Since(start)).
			Msg("request")
	}
}

var decoder = func() *schema.Decoder {
	d := schema.NewDecoder()
	d.IgnoreUnknownKeys(true)
	return d
}()

// bindQuery decodes the query string of c into dst.
func bindQuery(c *gin.Context, dst interface{}) bool {
	if err := decoder.Decode(dst, c.Request.URL.Query()); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return false
	}
	return true
}

// statusOf maps a service error to an HTTP status.
func statusOf(err error) int {
	var txErr *chain.TxError
	switch {
	case errors.Is(err, manager.ErrNotFound), errors.Is(err, win.ErrSessionNotFound):
		return http.StatusNotFound
	case errors.Is(err, manager.ErrNotBiddable), errors.Is(err, manager.ErrMockAuction),
		errors.Is(err, win.ErrWrongStep), errors.Is(err, win.ErrBusy):
		return http.StatusConflict
	case errors.Is(err, manager.ErrUnknownChain), errors.Is(err, common.ErrUnsupported),
		errors.Is(err, deposit.ErrMissingNetworks), errors.Is(err, deposit.ErrMissingAmount),
		errors.Is(err, deposit.ErrMinTooHigh), errors.Is(err, deposit.ErrSameNetwork),
		errors.Is(err, deposit.ErrNoSigner),
		errors.Is(err, win.ErrWalletNotConnected), errors.Is(err, win.ErrAuctionMissing),
		errors.Is(err, win.ErrInvalidOriginData), errors.Is(err, win.ErrSettleUnavailable),
		errors.Is(err, win.ErrInvalidOrderID),
		errors.Is(err, auction.ErrEmptyAmount), errors.Is(err, auction.ErrNegativeAmount),
		errors.Is(err, auction.ErrInvalidAmount),
		errors.Is(err, hash.ErrInvalidOriginData), errors.Is(err, hash.ErrInvalidOrder):
		return http.StatusBadRequest
	case errors.Is(err, manager.ErrNetworkDown):
		return http.StatusBadGateway
	case errors.As(err, &txErr):
		if txErr.Kind == chain.KindTimeout {
			return http.StatusGatewayTimeout
		}
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func (s *APIServer) writeError(c *gin.Context, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.FullPath()).Msg("request failed")
	}
	c.JSON(status, gin.H{"error": err.Error()})
}

func (s *APIServer) Health(c *gin.Context) {
	last := s.manager.LastRefresh()
	c.JSON(http.StatusOK, gin.H{
		"mock":             s.manager.UsingMock(),
		"lastRefresh":      last,
		"lastPriceRefresh": s.manager.LastPriceRefresh(),
		"subscribers":      s.manager.Len(),
	})
}
