package stream

import (
	"encoding/json"
	"time"

	"tradecoach/internal/model"
)

// Wire message types on the push feed.
const (
	MsgConnected  = "connected"
	MsgHeartbeat  = "heartbeat"
	MsgSubscribed = "subscribed"
	MsgTrade      = "trade"
	MsgBar        = "bar"
	MsgError      = "error"
)

// Control actions sent upstream.
const (
	ActionSubscribe   = "subscribe"
	ActionUnsubscribe = "unsubscribe"
)

// controlRequest is the outbound subscription frame.
type controlRequest struct {
	Action  string   `json:"action"`
	Symbols []string `json:"symbols"`
}

// serverMessage is the inbound frame envelope. Data fields are flattened
// for trade/bar payloads; control frames leave them zero.
type serverMessage struct {
	Type    string   `json:"type"`
	Symbol  string   `json:"symbol,omitempty"`
	Price   float64  `json:"price,omitempty"`
	Size    int64    `json:"size,omitempty"`
	TS      int64    `json:"ts,omitempty"` // epoch millis
	Symbols []string `json:"symbols,omitempty"`
	Message string   `json:"message,omitempty"`
	Bar     *wireBar `json:"bar,omitempty"`
}

type wireBar struct {
	Open   float64 `json:"o"`
	High   float64 `json:"h"`
	Low    float64 `json:"l"`
	Close  float64 `json:"c"`
	Volume int64   `json:"v"`
}

// Tick is one live price observation. The client's price map stores the
// latest Tick per symbol; subscribers receive copied snapshots only.
type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Size   int64     `json:"size"`
	TS     time.Time `json:"ts"`
}

// parseMessage decodes an inbound frame. A trade or bar frame yields a Tick;
// other frame types yield (msg, nil, nil). Malformed frames return an error
// and are skipped by the read loop.
func parseMessage(raw []byte) (*serverMessage, *Tick, error) {
	var m serverMessage
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, nil, err
	}
	switch m.Type {
	case MsgTrade:
		if m.Symbol == "" || m.Price <= 0 {
			return &m, nil, nil
		}
		return &m, &Tick{
			Symbol: m.Symbol,
			Price:  m.Price,
			Size:   m.Size,
			TS:     time.UnixMilli(m.TS),
		}, nil
	case MsgBar:
		if m.Symbol == "" || m.Bar == nil || m.Bar.Close <= 0 {
			return &m, nil, nil
		}
		return &m, &Tick{
			Symbol: m.Symbol,
			Price:  m.Bar.Close,
			Size:   m.Bar.Volume,
			TS:     time.UnixMilli(m.TS),
		}, nil
	}
	return &m, nil, nil
}

// tickFromQuote converts a REST quote into a Tick for the fallback path,
// keeping the live map numerically consistent with cached REST reads.
func tickFromQuote(q *model.Quote) *Tick {
	if q == nil || q.Price <= 0 {
		return nil
	}
	return &Tick{Symbol: q.Symbol, Price: q.Price, Size: q.Volume, TS: q.Timestamp}
}
