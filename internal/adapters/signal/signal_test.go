package signal

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkeye/devicefarm/internal/app"
	"github.com/dkeye/devicefarm/internal/core"
	"github.com/dkeye/devicefarm/internal/core/coretest"
)

func TestMain(m *testing.M) {
	zerolog.SetGlobalLevel(zerolog.Disabled)
	gin.SetMode(gin.TestMode)
	os.Exit(m.Run())
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

// upgradedPair returns the server side of a live websocket and the client
// that dialed it. No pumps run on either side.
func upgradedPair(t *testing.T) (*websocket.Conn, *websocket.Conn) {
	t.Helper()
	server := make(chan *websocket.Conn, 1)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		server <- ws
	}))
	t.Cleanup(srv.Close)

	client, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/"), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { client.Close() })

	select {
	case ws := <-server:
		t.Cleanup(func() { ws.Close() })
		return ws, client
	case <-time.After(2 * time.Second):
		t.Fatal("server side was never upgraded")
		return nil, nil
	}
}

func TestWsSignalConnBackpressureAndClose(t *testing.T) {
	ws, _ := upgradedPair(t)
	c := &WsSignalConn{id: "slow", conn: ws, send: make(chan core.Frame, 1)}

	require.NoError(t, c.TrySend(core.Frame(`{"type":"offer"}`)))
	assert.ErrorIs(t, c.TrySend(core.Frame(`{"type":"offer"}`)), core.ErrBackpressure)

	c.Close()
	assert.ErrorIs(t, c.TrySend(core.Frame(`{"type":"offer"}`)), core.ErrConnClosed)
	assert.NotPanics(t, c.Close)
}

func TestSlowClientIsKicked(t *testing.T) {
	ws, client := upgradedPair(t)
	relay := app.NewRelay(app.KickPolicy{}, nil)
	sender := coretest.NewConn("A")
	slow := &WsSignalConn{id: "slow", conn: ws, send: make(chan core.Frame, 1)}
	relay.Accept(sender)
	relay.Accept(slow)

	relay.Dispatch("A", core.Frame(`{"type":"ice","payload":{}}`))
	require.Equal(t, 2, relay.Members())

	res := relay.Dispatch("A", core.Frame(`{"type":"ice","payload":{}}`))
	require.Len(t, res.Dropped, 1)
	assert.ErrorIs(t, res.Dropped[0].Err, core.ErrBackpressure)

	assert.Equal(t, []core.ConnID{"A"}, relay.MemberIDs())
	assert.Equal(t, uint64(1), relay.Stats().Kicked)
	assert.ErrorIs(t, slow.TrySend(core.Frame(`{}`)), core.ErrConnClosed)
	assert.False(t, sender.Closed())

	require.NoError(t, client.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := client.ReadMessage()
	assert.Error(t, err, "kicked client socket must be closed")
}

func TestHandleSignalLimitsByAddress(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	relay := app.NewRelay(nil, nil)
	ctl := NewSignalWSController(relay, NewAcceptLimiter(1, time.Minute), Options{SendBuffer: 1})
	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { ctl.HandleSignal(ctx, c) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	first, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { first.Close() })
	require.Eventually(t, func() bool { return relay.Members() == 1 }, 2*time.Second, 5*time.Millisecond)

	// Neither a missing cookie nor a fresh one resets the budget.
	headers := []http.Header{nil, {"Cookie": []string{"DeviceFarmSessions=other"}}}
	for _, h := range headers {
		_, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, "/ws"), h)
		require.ErrorIs(t, err, websocket.ErrBadHandshake)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
		resp.Body.Close()
	}
	assert.Equal(t, 1, relay.Members())
}
