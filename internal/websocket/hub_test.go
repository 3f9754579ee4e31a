package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"orderflow/internal/changefeed"
	"orderflow/internal/model"
	"orderflow/internal/repository"
	"orderflow/internal/service"
	"orderflow/internal/testutil"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type frame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

type hubEnv struct {
	hub    *Hub
	feed   *changefeed.LocalFeed
	srv    *httptest.Server
	orders repository.OrderRepository
	// stop cancels Run and waits for it to return
	stop func()
}

func startHub(t *testing.T) *hubEnv {
	t.Helper()
	db := testutil.SetupTestDB(t)
	testutil.SeedStaff(t, db)

	orders := repository.NewOrderRepository(db)
	feed := changefeed.NewLocalFeed()
	views := service.NewViewService(repository.NewStaffRepository(db))
	bridge := service.NewBridge(orders, feed, 20*time.Millisecond, zap.NewNop())
	hub := NewHub([]byte(testutil.JWTSecret), views, bridge, nil, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	stop := func() {
		cancel()
		<-stopped
	}
	t.Cleanup(stop)

	r := testutil.SetupRouter()
	r.GET("/ws", hub.ServeWs)
	r.GET("/ws/orders", hub.ServeOrders)
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return &hubEnv{hub: hub, feed: feed, srv: srv, orders: orders, stop: stop}
}

func dial(t *testing.T, srv *httptest.Server, path, uid string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + path + "?token=" + testutil.GenerateTestToken(testutil.Actor(uid))
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func read(t *testing.T, conn *websocket.Conn) frame {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var f frame
	require.NoError(t, conn.ReadJSON(&f))
	return f
}

func TestServeOrdersStreamsView(t *testing.T) {
	e := startHub(t)
	feed, srv, orders := e.feed, e.srv, e.orders

	conn := dial(t, srv, "/ws/orders", "s1")
	first := read(t, conn)
	assert.Equal(t, EventOrders, first.Event)
	assert.JSONEq(t, `[]`, string(first.Data))

	o := &model.Order{Status: model.OrderStatusConfirmed, CreatorID: "s1"}
	o.SetItems(model.OrderItems{testutil.Item("X", 1, 10)})
	require.NoError(t, orders.Create(context.Background(), o))
	require.NoError(t, feed.Publish(context.Background(), changefeed.Event{OrderID: o.ID, At: time.Now()}))

	next := read(t, conn)
	assert.Equal(t, EventOrders, next.Event)
	var list []model.Order
	require.NoError(t, json.Unmarshal(next.Data, &list))
	require.Len(t, list, 1)
	assert.Equal(t, o.ID, list[0].ID)
}

func TestBroadcastReachesClients(t *testing.T) {
	e := startHub(t)
	hub, srv := e.hub, e.srv

	conn := dial(t, srv, "/ws", "p1")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, time.Second, 5*time.Millisecond)

	hub.Broadcast(service.EventStockUpdated, []service.StockChange{{ProductID: "X", Size: "M", Quantity: 3}})
	f := read(t, conn)
	assert.Equal(t, service.EventStockUpdated, f.Event)
	assert.JSONEq(t, `[{"product_id":"X","size":"M","quantity":3}]`, string(f.Data))
}

func TestDisconnectReleasesSubscription(t *testing.T) {
	e := startHub(t)
	hub, feed, srv := e.hub, e.feed, e.srv

	conn := dial(t, srv, "/ws/orders", "m1")
	read(t, conn)
	require.Equal(t, 1, feed.Subscribers())

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return feed.Subscribers() == 0 && hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestRejectsMissingToken(t *testing.T) {
	srv := startHub(t).srv

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/orders"
	_, resp, err := websocket.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

// assertClosedByServer expects the connection to end without waiting for the
// read deadline
func assertClosedByServer(t *testing.T, conn *websocket.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	for {
		_, _, err := conn.ReadMessage()
		if err == nil {
			continue
		}
		var ne net.Error
		if errors.As(err, &ne) {
			assert.False(t, ne.Timeout(), "connection left open: %v", err)
		}
		return
	}
}

func TestShutdownClosesConnectedClients(t *testing.T) {
	e := startHub(t)

	conn := dial(t, e.srv, "/ws/orders", "m1")
	read(t, conn)
	require.Equal(t, 1, e.feed.Subscribers())

	e.stop()
	assertClosedByServer(t, conn)
	require.Eventually(t, func() bool { return e.feed.Subscribers() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestConnectAfterShutdownIsClosed(t *testing.T) {
	e := startHub(t)
	e.stop()

	assertClosedByServer(t, dial(t, e.srv, "/ws", "p1"))
	assertClosedByServer(t, dial(t, e.srv, "/ws/orders", "m1"))
	assert.Zero(t, e.feed.Subscribers())
	assert.Zero(t, e.hub.Clients())
}
