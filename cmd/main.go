package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"bridge/internal/api"
	"bridge/internal/app"
	"bridge/internal/config"
	"bridge/internal/logging"
	"bridge/internal/ws"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func initServer(ctx context.Context, name string, server *http.Server, wg *sync.WaitGroup, logger zerolog.Logger) {
	defer wg.Done()

	errCh := make(chan error, 1)
	go func() {
		logger.Info().Str("server", name).Str("addr", server.Addr).Msg("listening")
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Str("server", name).Msg("server error")
		}
		return
	case <-ctx.Done():
	}

	// The context is used to inform the server it has 5 seconds to finish
	// the request it is currently handling
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn().Err(err).Str("server", name).Msg("server forced to shutdown")
	}

	logger.Info().Str("server", name).Msg("server exiting")
}

func main() {
	configPath := flag.String("config", "config.toml", "path to the config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		bootLogger := logging.New(os.Stderr, "info", "console")
		bootLogger.Fatal().Err(err).Msg("failed to load config")
	}
	logger := logging.New(os.Stdout, cfg.LogLevel, cfg.LogFormat)
	if err := cfg.Validate(); err != nil {
		logger.Fatal().Err(err).Msg("invalid config")
	}
	gin.SetMode(gin.ReleaseMode)

	// Create context that listens for the interrupt signal from the OS.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.Build(ctx, cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to start")
	}

	// create the servers
	apiServer := api.NewAPIServer(cfg.API.Port, a.Services(), logger)
	wsServer := ws.NewWSServer(cfg.WS.Port, cfg.WS.AllowedOrigins, a.Manager, logger)

	var pollerDone sync.WaitGroup
	pollerDone.Add(1)
	go func() {
		defer pollerDone.Done()
		a.Manager.Run(ctx)
	}()

	var servers sync.WaitGroup
	servers.Add(2)
	go initServer(ctx, "api", apiServer, &servers, logger)
	go initServer(ctx, "ws", wsServer, &servers, logger)

	<-ctx.Done()
	logger.Info().Msg("shutting down gracefully, press Ctrl+C again to force")
	stop() // Allow Ctrl+C to force shutdown

	servers.Wait()
	pollerDone.Wait()

	logger.Info().Msg("servers down, closing the manager")
	a.Close()
	logger.Info().Msg("graceful shutdown complete")
}
