package gateway

import (
	"encoding/json"
	"log"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	readLimit = 4096
)

// Client is a single websocket peer. Its subscription set controls which
// symbols the hub relays to it; an empty set receives nothing.
type Client struct {
	conn *websocket.Conn
	send chan []byte
	hub  *Hub

	// guarded by hub.mu: subs is only read during relay fan-out and only
	// written in readPump under the hub lock
	subs map[string]struct{}
}

// controlMsg is the inbound subscription frame from consumers. Same shape
// as the vendor control protocol so browser clients speak one dialect.
type controlMsg struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

func (c *Client) wants(symbol string) bool {
	_, ok := c.subs[symbol]
	return ok
}

func (c *Client) sendJSON(v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	select {
	case c.send <- b:
	default:
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(heartbeatInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			// Coalesce queued messages into one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
			c.sendJSON(map[string]interface{}{"type": "heartbeat", "ts": time.Now().UnixMilli()})
		}
	}
}

func (c *Client) readPump() {
	defer func() {
		c.hub.RemoveClient(c)
		c.conn.Close()
		log.Println("[gateway] ws client disconnected")
	}()

	c.conn.SetReadLimit(readLimit)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var ctl controlMsg
		if json.Unmarshal(msg, &ctl) != nil {
			continue
		}
		switch ctl.Action {
		case "subscribe":
			c.hub.mu.Lock()
			for _, s := range ctl.Symbols {
				c.subs[s] = struct{}{}
			}
			c.hub.mu.Unlock()
			c.sendJSON(map[string]interface{}{"type": "subscribed", "symbols": ctl.Symbols})
			// replay the latest quote so new subscribers render immediately
			for _, s := range ctl.Symbols {
				if payload, ok := c.hub.LatestQuote(s); ok {
					if frame := buildTradeFrame(s, payload, time.Now()); frame != nil {
						select {
						case c.send <- frame:
						default:
						}
					}
				}
			}
		case "unsubscribe":
			c.hub.mu.Lock()
			for _, s := range ctl.Symbols {
				delete(c.subs, s)
			}
			c.hub.mu.Unlock()
		}
	}
}
