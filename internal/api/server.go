package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"bridge/internal/common"
	"bridge/internal/deposit"
	"bridge/internal/manager"
	"bridge/internal/store"
	"bridge/internal/win"

	"github.com/rs/zerolog"
)

// History serves journaled deposits and bids. *store.Store implements it.
type History interface {
	Deposits(ctx context.Context) ([]deposit.Record, error)
	Bids(ctx context.Context, network string) ([]store.Bid, error)
}

type APIServer struct {
	port     int
	registry *common.Registry
	manager  *manager.Manager
	deposits *deposit.Service
	wins     *win.Service
	history  History
	logger   zerolog.Logger

	now func() time.Time
}

// Services are the components the API exposes. History may be nil.
type Services struct {
	Registry *common.Registry
	Manager  *manager.Manager
	Deposits *deposit.Service
	Wins     *win.Service
	History  History
}

func newAPIServer(port int, svc Services, logger zerolog.Logger) *APIServer {
	return &APIServer{
		port:     port,
		registry: svc.Registry,
		manager:  svc.Manager,
		deposits: svc.Deposits,
		wins:     svc.Wins,
		history:  svc.History,
		logger:   logger.With().Str("component", "api").Logger(),
		now:      time.Now,
	}
}

func NewAPIServer(port int, svc Services, logger zerolog.Logger) *http.Server {
	s := newAPIServer(port, svc, logger)

	// Declare Server config
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.port),
		Handler:      s.RegisterRoutes(),
		IdleTimeout:  time.Minute,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * time.Minute,
	}

	return server
}
