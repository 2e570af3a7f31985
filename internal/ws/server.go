package ws

import (
	"fmt"
	"net/http"
	"time"

	"github.com/rs/zerolog"
)

// Hub is the book side of a websocket connection. *manager.Manager
// implements it.
type Hub interface {
	Subscribe() (uint64, <-chan []byte)
	UnregisterReceiver(id uint64)
	HandleReceiveEvent(event []byte) error
}

type WSServer struct {
	port    int
	origins []string
	hub     Hub
	logger  zerolog.Logger
}

// NewWSServer serves hub on port. origins are the host patterns of the pages
// allowed to connect cross-origin.
func NewWSServer(port int, origins []string, hub Hub, logger zerolog.Logger) *http.Server {
	NewWSServer := &WSServer{
		port:    port,
		origins: origins,
		hub:     hub,
		logger:  logger.With().Str("component", "ws").Logger(),
	}

	// Declare Server config
	server := &http.Server{
		Addr:        fmt.Sprintf(":%d", NewWSServer.port),
		Handler:     NewWSServer.Serve(),
		IdleTimeout: time.Minute,
		ReadTimeout: 10 * time.Second,
	}

	return server
}
