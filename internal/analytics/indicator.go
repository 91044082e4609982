// Package analytics implements the technical-analysis layer: moving
// averages, oscillators, key price levels, multi-timeframe trend, the
// patience-candle heuristic and the LTP confluence grade.
//
// All indicators implement the Indicator interface, receiving closes and
// producing float64 values. Indicators are designed to be composable.
package analytics

import "tradecoach/internal/model"

// Indicator is the interface for all streaming technical indicators.
type Indicator interface {
	// Name returns the indicator name (e.g., "SMA", "EMA", "RSI").
	Name() string

	// Update feeds a new closing price and recalculates.
	Update(close float64)

	// Value returns the current calculated value. Returns 0 if not enough data.
	Value() float64

	// Ready returns true when enough data has been accumulated.
	Ready() bool
}

// Feed runs an indicator over a bar series and returns its final value.
// Returns (0, false) when the series is too short for the indicator.
func Feed(ind Indicator, bars []model.Bar) (float64, bool) {
	for i := range bars {
		ind.Update(bars[i].Close)
	}
	if !ind.Ready() {
		return 0, false
	}
	return ind.Value(), true
}
