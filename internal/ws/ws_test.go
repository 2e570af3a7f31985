package ws

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"bridge/internal/common"

	"github.com/coder/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeHub struct {
	*common.Broadcaster

	mu     sync.Mutex
	events []string
}

func (h *fakeHub) HandleReceiveEvent(event []byte) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !strings.HasPrefix(string(event), "REFRSH") {
		return errors.New("unknown event")
	}
	h.events = append(h.events, string(event))
	return nil
}

func (h *fakeHub) received() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.events...)
}

var testOrigins = []string{"localhost:*", "app.example.com"}

func newTestServer(t *testing.T) (*fakeHub, *httptest.Server) {
	t.Helper()
	hub := &fakeHub{Broadcaster: common.NewBroadcaster()}
	srv := &WSServer{origins: testOrigins, hub: hub, logger: zerolog.Nop()}
	ts := httptest.NewServer(srv.Serve())
	t.Cleanup(ts.Close)
	return hub, ts
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http")
}

func dial(t *testing.T) (*fakeHub, *websocket.Conn) {
	t.Helper()
	hub, ts := newTestServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, wsURL(ts), nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.CloseNow() })

	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)
	return hub, c
}

func read(t *testing.T, c *websocket.Conn) string {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	typ, data, err := c.Read(ctx)
	require.NoError(t, err)
	assert.Equal(t, websocket.MessageText, typ)
	return string(data)
}

func TestBroadcastReachesSubscriber(t *testing.T) {
	hub, c := dial(t)

	assert.Equal(t, 1, hub.Broadcast([]byte("UPDATE {}")))
	assert.Equal(t, "UPDATE {}", read(t, c))
}

func TestInboundEventForwarded(t *testing.T) {
	hub, c := dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("REFRSH citrea")))

	require.Eventually(t, func() bool { return len(hub.received()) == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.Equal(t, []string{"REFRSH citrea"}, hub.received())
}

func TestRejectedEventAnswered(t *testing.T) {
	_, c := dial(t)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, c.Write(ctx, websocket.MessageText, []byte("BOGUS")))

	assert.Equal(t, "ERROR unknown event", read(t, c))
}

func TestDisconnectUnregisters(t *testing.T) {
	hub, c := dial(t)

	require.NoError(t, c.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHubCloseEndsConnection(t *testing.T) {
	hub, c := dial(t)

	hub.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, _, err := c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusGoingAway, websocket.CloseStatus(err))
}

func dialFrom(t *testing.T, ts *httptest.Server, origin string) (*http.Response, error) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, resp, err := websocket.Dial(ctx, wsURL(ts), &websocket.DialOptions{
		HTTPHeader: http.Header{"Origin": []string{origin}},
	})
	if err == nil {
		c.CloseNow()
	}
	return resp, err
}

func TestOriginAllowed(t *testing.T) {
	_, ts := newTestServer(t)

	_, err := dialFrom(t, ts, "http://localhost:3000")
	assert.NoError(t, err)
	_, err = dialFrom(t, ts, "https://app.example.com")
	assert.NoError(t, err)
}

func TestOriginRejected(t *testing.T) {
	hub, ts := newTestServer(t)

	resp, err := dialFrom(t, ts, "https://evil.example.net")
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	assert.Equal(t, 0, hub.Len())
}

func TestPreflight(t *testing.T) {
	srv := &WSServer{hub: &fakeHub{Broadcaster: common.NewBroadcaster()}, logger: zerolog.Nop()}
	rec := httptest.NewRecorder()
	srv.Serve().ServeHTTP(rec, httptest.NewRequest(http.MethodOptions, "/", nil))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "*", rec.Header().Get("Access-Control-Allow-Origin"))
}
