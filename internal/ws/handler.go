package ws

import (
	"context"
	"net/http"
	"time"

	"github.com/coder/websocket"
)

// WriteTimeout bounds a single message write to a subscriber.
const WriteTimeout = 5 * time.Second

// ERROR_EVENT answers a subscriber message the hub rejected:
// ERROR <reason>
const ERROR_EVENT = "ERROR"

func (ws *WSServer) Serve() http.Handler {
	mux := http.NewServeMux()

	// main and only route for the WebSocket server
	mux.HandleFunc("/", ws.MainHandler)

	// Wrap the mux with CORS middleware
	return ws.corsMiddleware(mux)
}

func (ws *WSServer) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
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

// MainHandler streams book events to the client and hands every message the
// client sends to the hub.
func (ws *WSServer) MainHandler(w http.ResponseWriter, r *http.Request) {
	ws.logger.Debug().Str("remote", r.RemoteAddr).Msg("websocket connection request")

	c, err := websocket.Accept(w, r, &websocket.AcceptOptions{OriginPatterns: ws.origins})
	if err != nil {
		ws.logger.Warn().Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	defer c.CloseNow()

	id, msgChan := ws.hub.Subscribe()
	defer ws.hub.UnregisterReceiver(id)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	go ws.readLoop(ctx, cancel, c)

	for {
		select {
		case m, ok := <-msgChan:
			if !ok {
				c.Close(websocket.StatusGoingAway, "server shutting down")
				return
			}
			if err := write(ctx, c, m); err != nil {
				ws.logger.Debug().Err(err).Uint64("subscriber", id).Msg("failed to write message")
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (ws *WSServer) readLoop(ctx context.Context, cancel context.CancelFunc, c *websocket.Conn) {
	defer cancel()
	for {
		_, data, err := c.Read(ctx)
		if err != nil {
			return
		}
		if err := ws.hub.HandleReceiveEvent(data); err != nil {
			reply := []byte(ERROR_EVENT + " " + err.Error())
			if err := write(ctx, c, reply); err != nil {
				return
			}
		}
	}
}

func write(ctx context.Context, c *websocket.Conn, msg []byte) error {
	ctx, cancel := context.WithTimeout(ctx, WriteTimeout)
	defer cancel()
	return c.Write(ctx, websocket.MessageText, msg)
}
