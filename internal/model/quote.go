package model

import (
	"encoding/json"
	"time"
)

// Quote represents the latest traded state of a single symbol.
// A zero price or volume means "unknown", never "free" — negative values
// are invalid and rejected by Valid().
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	ChangePercent float64   `json:"changePercent"`
	Open          float64   `json:"open"`
	High          float64   `json:"high"`
	Low           float64   `json:"low"`
	Close         float64   `json:"close"`
	Volume        int64     `json:"volume"`
	VWAP          float64   `json:"vwap"`
	PrevOpen      float64   `json:"prevOpen"`
	PrevHigh      float64   `json:"prevHigh"`
	PrevLow       float64   `json:"prevLow"`
	PrevClose     float64   `json:"prevClose"`
	Timestamp     time.Time `json:"timestamp"`
}

// Valid reports whether the quote carries no negative price or volume fields.
// Zero is the "unknown" sentinel and is allowed everywhere.
func (q *Quote) Valid() bool {
	for _, p := range []float64{q.Price, q.Open, q.High, q.Low, q.Close, q.VWAP,
		q.PrevOpen, q.PrevHigh, q.PrevLow, q.PrevClose} {
		if p < 0 {
			return false
		}
	}
	return q.Volume >= 0
}

// JSON returns the JSON-encoded quote (ignoring errors for hot-path usage).
func (q *Quote) JSON() []byte {
	b, _ := json.Marshal(q)
	return b
}

// MarketSnapshot is a condensed per-symbol view used by dashboard consumers.
// Its Trend field is computed by a simpler heuristic (EMA ordering, else
// ±0.5% change-percent) than the multi-timeframe trend used elsewhere; the
// two are independent signals and may disagree.
type MarketSnapshot struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	ChangePercent float64   `json:"changePercent"`
	Volume        int64     `json:"volume"`
	Trend         string    `json:"trend"` // bullish | bearish | neutral
	Timestamp     time.Time `json:"timestamp"`
}
