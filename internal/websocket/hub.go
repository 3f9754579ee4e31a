// Package websocket pushes live data to browser clients: hub-wide broadcasts
// such as stock updates, and a per-connection role-scoped order list.
package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
	"sync"
	"time"

	"orderflow/internal/middleware"
	"orderflow/internal/model"
	"orderflow/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const (
	EventOrders = "orders"

	sendBuffer     = 256
	broadcastQueue = 256
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
)

// Message is the frame every client receives
type Message struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// Client is one connected socket
type Client struct {
	hub   *Hub
	conn  *websocket.Conn
	send  chan []byte
	actor model.Actor

	mu     sync.Mutex
	closed bool
	// stop releases whatever the connection subscribed to
	stop func()
}

// enqueue drops the frame when the client is gone or too slow
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- msg:
		return true
	default:
		return false
	}
}

func (c *Client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return
	}
	c.closed = true
	close(c.send)
}

// Hub keeps the set of live clients
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	// done is closed when Run returns
	done chan struct{}
	mu   sync.Mutex

	upgrader websocket.Upgrader
	secret   []byte
	views    service.ViewService
	bridge   *service.Bridge
	log      *zap.Logger
}

// NewHub builds a hub. allowedOrigins empty accepts any origin.
func NewHub(secret []byte, views service.ViewService, bridge *service.Bridge, allowedOrigins []string, log *zap.Logger) *Hub {
	h := &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan []byte, broadcastQueue),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		secret:     secret,
		views:      views,
		bridge:     bridge,
		log:        log,
	}
	h.upgrader = websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin:     originChecker(allowedOrigins),
	}
	return h
}

func originChecker(allowed []string) func(r *http.Request) bool {
	return func(r *http.Request) bool {
		if len(allowed) == 0 {
			return true
		}
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, o := range allowed {
			if o == "*" || strings.EqualFold(o, origin) {
				return true
			}
		}
		return false
	}
}

// Run dispatches hub events until ctx ends, then drops every client
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				client.close()
			}
			h.mu.Unlock()
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.log.Debug("WebSocket client connected", zap.String("uid", client.actor.UID))
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				client.close()
				h.log.Debug("WebSocket client disconnected", zap.String("uid", client.actor.UID))
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if !client.enqueue(message) {
					delete(h.clients, client)
					client.close()
				}
			}
			h.mu.Unlock()
		}
	}
}

// add hands the client to Run. It reports false once the hub has stopped.
func (h *Hub) add(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		client.close()
		return false
	}
}

func (h *Hub) remove(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
		client.close()
	}
}

// Clients returns the number of registered clients
func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast queues an event for every client. It never blocks the caller;
// a full queue drops the event.
func (h *Hub) Broadcast(event string, data interface{}) {
	msg, err := json.Marshal(Message{Event: event, Data: data})
	if err != nil {
		h.log.Error("Failed to encode broadcast", zap.String("event", event), zap.Error(err))
		return
	}
	select {
	case h.broadcast <- msg:
	default:
		h.log.Warn("Broadcast queue full, event dropped", zap.String("event", event))
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()
	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// readPump only watches for the peer going away
func (c *Client) readPump() {
	defer func() {
		if c.stop != nil {
			c.stop()
		}
		c.hub.remove(c)
		_ = c.conn.Close()
	}()
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.hub.log.Warn("WebSocket read failed", zap.Error(err))
			}
			return
		}
	}
}

func tokenFrom(c *gin.Context) string {
	if t := c.Query("token"); t != "" {
		return t
	}
	if t, err := c.Cookie("access_token"); err == nil && t != "" {
		return t
	}
	return strings.TrimPrefix(c.GetHeader("Authorization"), "Bearer ")
}

func (h *Hub) accept(c *gin.Context) (*Client, bool) {
	actor, err := middleware.ParseActor(tokenFrom(c), h.secret)
	if err != nil {
		h.log.Info("WebSocket connection rejected", zap.Error(err))
		c.AbortWithStatus(http.StatusUnauthorized)
		return nil, false
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Warn("WebSocket upgrade failed", zap.Error(err))
		return nil, false
	}
	return &Client{hub: h, conn: conn, send: make(chan []byte, sendBuffer), actor: actor}, true
}

// ServeWs attaches a client to hub-wide broadcasts only
func (h *Hub) ServeWs(c *gin.Context) {
	client, ok := h.accept(c)
	if !ok {
		return
	}
	if !h.add(client) {
		_ = client.conn.Close()
		return
	}
	go client.writePump()
	go client.readPump()
}

// ServeOrders attaches a client that also receives the caller's order view
// whenever it changes. The view filter is fixed for the connection.
func (h *Hub) ServeOrders(c *gin.Context) {
	client, ok := h.accept(c)
	if !ok {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	filter, err := h.views.FilterFor(ctx, client.actor)
	if err != nil {
		cancel()
		h.log.Warn("Failed to resolve order view", zap.String("uid", client.actor.UID), zap.Error(err))
		_ = client.conn.Close()
		return
	}

	if !h.add(client) {
		cancel()
		_ = client.conn.Close()
		return
	}
	go client.writePump()

	unsubscribe, err := h.bridge.Subscribe(ctx, filter, func(list []model.Order) {
		msg, err := json.Marshal(Message{Event: EventOrders, Data: list})
		if err != nil {
			h.log.Error("Failed to encode order list", zap.Error(err))
			return
		}
		client.enqueue(msg)
	})
	if err != nil {
		cancel()
		h.log.Warn("Order subscription failed", zap.String("uid", client.actor.UID), zap.Error(err))
		h.remove(client)
		return
	}
	client.stop = func() {
		unsubscribe()
		cancel()
	}
	go client.readPump()
}
