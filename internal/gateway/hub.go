// Package gateway is the server side of the push channel: it relays live
// quote updates from the Redis pubsub namespace to connected websocket
// consumers, filtered per-client by symbol subscription.
package gateway

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strings"
	"sync"
	"time"

	goredis "github.com/go-redis/redis/v8"
	"github.com/gorilla/websocket"

	"tradecoach/internal/markethours"
	"tradecoach/internal/metrics"
)

// QuoteChannelPrefix is the pubsub namespace carrying per-symbol quote
// updates, published by the ingestion side as `pub:quote:<SYMBOL>`.
const QuoteChannelPrefix = "pub:quote:"

const heartbeatInterval = 30 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 4096,
	// The dashboard is served from a different origin in development.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub manages websocket clients and the Redis pubsub relay.
type Hub struct {
	rdb     *goredis.Client
	metrics *metrics.Metrics

	mu      sync.RWMutex
	clients map[*Client]bool
	latest  map[string]json.RawMessage // symbol → last quote payload
}

// NewHub creates a Hub reading from the given Redis client.
func NewHub(rdb *goredis.Client, m *metrics.Metrics) *Hub {
	return &Hub{
		rdb:     rdb,
		metrics: m,
		clients: make(map[*Client]bool),
		latest:  make(map[string]json.RawMessage),
	}
}

// Run subscribes to the quote pubsub namespace and relays messages until
// ctx is cancelled. Reconnects the pubsub on failure.
func (h *Hub) Run(ctx context.Context) {
	for {
		if ctx.Err() != nil {
			return
		}
		h.consume(ctx)
		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Second):
		}
	}
}

func (h *Hub) consume(ctx context.Context) {
	sub := h.rdb.PSubscribe(ctx, QuoteChannelPrefix+"*")
	defer sub.Close()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				log.Println("[gateway] pubsub channel closed, resubscribing")
				return
			}
			symbol := symbolFromChannel(msg.Channel)
			if symbol == "" {
				continue
			}
			h.relay(symbol, []byte(msg.Payload))
		}
	}
}

// relay stores the latest payload for the symbol and fans it out to every
// client subscribed to it. Slow clients are skipped, not waited on.
func (h *Hub) relay(symbol string, payload []byte) {
	frame := buildTradeFrame(symbol, payload, time.Now())
	if frame == nil {
		return
	}

	h.mu.Lock()
	h.latest[symbol] = payload
	h.mu.Unlock()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(symbol) {
			continue
		}
		select {
		case c.send <- frame:
		default: // client buffer full, drop this frame for them
		}
	}
}

// HandleWS upgrades the HTTP request and registers the client.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("[gateway] upgrade failed: %v", err)
		return
	}

	c := &Client{
		conn: conn,
		send: make(chan []byte, 256),
		hub:  h,
		subs: make(map[string]struct{}),
	}

	h.mu.Lock()
	h.clients[c] = true
	count := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetHubClients(count)
	log.Printf("[gateway] ws client connected (%d total)", count)

	c.sendJSON(map[string]interface{}{
		"type":         "connected",
		"marketOpen":   markethours.IsMarketOpen(time.Now()),
		"marketStatus": markethours.StatusString(time.Now()),
	})

	go c.writePump()
	go c.readPump()
}

// RemoveClient unregisters a client and closes its send channel.
func (h *Hub) RemoveClient(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	count := len(h.clients)
	h.mu.Unlock()
	h.metrics.SetHubClients(count)
	close(c.send)
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// LatestQuote returns the last relayed payload for a symbol, if any.
func (h *Hub) LatestQuote(symbol string) (json.RawMessage, bool) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	p, ok := h.latest[symbol]
	return p, ok
}

// symbolFromChannel extracts the symbol from "pub:quote:SPY".
func symbolFromChannel(channel string) string {
	if !strings.HasPrefix(channel, QuoteChannelPrefix) {
		return ""
	}
	sym := channel[len(QuoteChannelPrefix):]
	if sym == "" || strings.Contains(sym, ":") {
		return ""
	}
	return sym
}

// buildTradeFrame wraps a published quote payload in a trade frame. The
// payload is the quote JSON as published; it is embedded verbatim.
func buildTradeFrame(symbol string, payload []byte, now time.Time) []byte {
	if !json.Valid(payload) {
		return nil
	}
	frame, err := json.Marshal(map[string]interface{}{
		"type":   "trade",
		"symbol": symbol,
		"quote":  json.RawMessage(payload),
		"ts":     now.UnixMilli(),
	})
	if err != nil {
		return nil
	}
	return frame
}
