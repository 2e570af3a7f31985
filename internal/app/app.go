// Package app wires the configured networks, journal and services together
// for the daemon and the command line tool.
package app

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"bridge/internal/api"
	"bridge/internal/chain"
	"bridge/internal/common"
	"bridge/internal/config"
	"bridge/internal/deposit"
	"bridge/internal/manager"
	"bridge/internal/store"
	"bridge/internal/win"

	ethcommon "github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/rs/zerolog"
)

type App struct {
	Config   *config.Config
	Registry *common.Registry
	Store    *store.Store
	Manager  *manager.Manager
	Deposits *deposit.Service
	Wins     *win.Service
	// Networks holds a client for every configured network, connected or not.
	Networks map[string]*NetworkClient

	logger zerolog.Logger
}

// Dialer connects a client to one network. chain.Dial is the default.
type Dialer func(ctx context.Context, network common.Network, key *ecdsa.PrivateKey, logger zerolog.Logger) (*chain.Client, error)

// Build dials every configured network and assembles the services. A
// network that cannot be reached is logged and dialed again on the next
// refresh; the book falls back to sample auctions while none answer.
func Build(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*App, error) {
	return BuildWith(ctx, cfg, chain.Dial, logger)
}

func BuildWith(ctx context.Context, cfg *config.Config, dial Dialer, logger zerolog.Logger) (*App, error) {
	registry, err := cfg.Registry()
	if err != nil {
		return nil, err
	}

	var key *ecdsa.PrivateKey
	if cfg.HasSigner() {
		key, err = crypto.HexToECDSA(strings.TrimPrefix(cfg.Wallet.PrivateKey, "0x"))
		if err != nil {
			return nil, fmt.Errorf("invalid private key: %w", err)
		}
		logger.Info().Str("address", crypto.PubkeyToAddress(key.PublicKey).Hex()).Msg("signer loaded")
	} else {
		logger.Warn().Msg("no private key configured, bids and transactions are disabled")
	}

	a := &App{
		Config:   cfg,
		Registry: registry,
		Networks: make(map[string]*NetworkClient),
		logger:   logger,
	}

	if cfg.Journal.Path != "" {
		st, err := store.Open(cfg.Journal.Path)
		if err != nil {
			return nil, err
		}
		a.Store = st
	}

	var polled []manager.Chain
	depositChains := make(map[string]deposit.Chain)
	winChains := make(map[string]win.Chain)
	timeout := cfg.ManagerOptions().FetchTimeout
	for _, n := range registry.Networks() {
		nc := newNetworkClient(n, key, dial, timeout, logger)
		if _, err := nc.Client(ctx); err != nil {
			logger.Warn().Err(err).Str("network", n.ID).Msg("network unavailable, retrying on refresh")
		}
		a.Networks[n.ID] = nc
		polled = append(polled, nc)
		depositChains[n.ID] = nc
		winChains[n.ID] = nc
	}

	a.Manager = manager.NewManager(polled, common.NewBroadcaster(), cfg.ManagerOptions(), logger)
	a.Deposits = deposit.NewService(registry, depositChains, ethcommon.HexToAddress(cfg.Contracts.DepositSettler), logger)
	a.Wins = win.NewService(winChains, a.Manager, win.Config{
		Settler:   ethcommon.HexToAddress(cfg.Contracts.Settler),
		FillToken: ethcommon.HexToAddress(cfg.Contracts.FillToken),
	}, logger)
	// a settled auction changes state on chain
	a.Wins.OnSuccess(func(win.Session) { a.Manager.RequestRefresh() })

	if a.Store != nil {
		a.Manager.WithJournal(a.Store)
		a.Deposits.WithJournal(a.Store)
		a.Wins.WithJournal(a.Store)

		n, err := a.Wins.Resume(ctx)
		if err != nil {
			a.Close()
			return nil, err
		}
		if n > 0 {
			logger.Info().Int("sessions", n).Msg("resumed win sessions")
		}
	}

	return a, nil
}

// Services exposes the components to the HTTP API.
func (a *App) Services() api.Services {
	svc := api.Services{
		Registry: a.Registry,
		Manager:  a.Manager,
		Deposits: a.Deposits,
		Wins:     a.Wins,
	}
	if a.Store != nil {
		svc.History = a.Store
	}
	return svc
}

func (a *App) Close() {
	a.Manager.Close()
	if a.Store != nil {
		if err := a.Store.Close(); err != nil {
			a.logger.Warn().Err(err).Msg("failed to close journal")
		}
	}
}
