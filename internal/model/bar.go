package model

import (
	"math"
	"time"
)

// Bar is a single OHLCV candle for one timeframe bucket.
type Bar struct {
	TS     time.Time `json:"ts"` // bucket start time (UTC)
	Open   float64   `json:"open"`
	High   float64   `json:"high"`
	Low    float64   `json:"low"`
	Close  float64   `json:"close"`
	Volume int64     `json:"volume"`
	VWAP   float64   `json:"vwap,omitempty"`
}

// Body returns the absolute candle body size.
func (b *Bar) Body() float64 {
	return math.Abs(b.Close - b.Open)
}

// Bullish reports whether the bar closed above its open.
func (b *Bar) Bullish() bool { return b.Close > b.Open }

// finite reports whether v is a usable price (not NaN/Inf).
func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// ValidBars reports whether the sequence is usable for analysis:
// strictly non-decreasing by timestamp and all OHLC fields finite.
func ValidBars(bars []Bar) bool {
	for i := range bars {
		b := &bars[i]
		if !finite(b.Open) || !finite(b.High) || !finite(b.Low) || !finite(b.Close) {
			return false
		}
		if i > 0 && b.TS.Before(bars[i-1].TS) {
			return false
		}
	}
	return true
}
