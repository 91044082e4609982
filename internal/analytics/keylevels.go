package analytics

import (
	"math"
	"sort"

	"tradecoach/internal/markethours"
	"tradecoach/internal/model"
)

// Fixed strength weights per level type. These encode a specific trading
// methodology; do not tune without domain sign-off.
var levelStrength = map[model.LevelType]int{
	model.LevelSMA200:  95,
	model.LevelVWAP:    90,
	model.LevelPDH:     85,
	model.LevelPDL:     85,
	model.LevelORBHigh: 80,
	model.LevelORBLow:  80,
	model.LevelEMA21:   75,
	model.LevelEMA9:    70,
	model.LevelPMH:     75,
	model.LevelPML:     75,
	model.LevelSwingHigh1H: 70,
	model.LevelSwingLow1H:  70,
	model.LevelSwingHigh4H: 72,
	model.LevelSwingLow4H:  72,
}

// KeyLevelInputs carries everything the extractor needs. Indicator values
// come from the caller's indicator fetches; bars are the current session's
// intraday bars including pre-market.
type KeyLevelInputs struct {
	Quote        *model.Quote
	IntradayBars []model.Bar // today's bars, pre-market included
	HourlyBars   []model.Bar // for 1h swing levels
	FourHourBars []model.Bar // for 4h swing levels
	EMA9         float64
	EMA21        float64
	SMA200       float64
}

// BuildKeyLevels derives all key levels for a symbol. Any non-positive
// computed price is invalid and never surfaced as a level. Results carry
// distances from the quote price and are sorted by |distance| ascending.
func BuildKeyLevels(in KeyLevelInputs) []model.KeyLevel {
	if in.Quote == nil {
		return nil
	}

	levels := make([]model.KeyLevel, 0, 12)
	add := func(t model.LevelType, price float64) {
		if price <= 0 {
			return // invalid computed price, discard
		}
		levels = append(levels, model.KeyLevel{
			Type:     t,
			Price:    price,
			Strength: levelStrength[t],
		})
	}

	// Previous-day and VWAP levels straight from the quote.
	add(model.LevelPDH, in.Quote.PrevHigh)
	add(model.LevelPDL, in.Quote.PrevLow)
	add(model.LevelVWAP, in.Quote.VWAP)

	// Moving averages from indicator calls.
	add(model.LevelEMA9, in.EMA9)
	add(model.LevelEMA21, in.EMA21)
	add(model.LevelSMA200, in.SMA200)

	// Opening range: strictly bars whose exchange-local time falls in the
	// first 30 minutes after session open.
	if hi, lo, ok := openingRange(in.IntradayBars); ok {
		add(model.LevelORBHigh, hi)
		add(model.LevelORBLow, lo)
	}

	// Pre-market extremes from bars before session open.
	if hi, lo, ok := preMarketRange(in.IntradayBars); ok {
		add(model.LevelPMH, hi)
		add(model.LevelPML, lo)
	}

	// Most recent swing pivots on the higher timeframes.
	if hi, ok := lastSwingHigh(in.HourlyBars); ok {
		add(model.LevelSwingHigh1H, hi)
	}
	if lo, ok := lastSwingLow(in.HourlyBars); ok {
		add(model.LevelSwingLow1H, lo)
	}
	if hi, ok := lastSwingHigh(in.FourHourBars); ok {
		add(model.LevelSwingHigh4H, hi)
	}
	if lo, ok := lastSwingLow(in.FourHourBars); ok {
		add(model.LevelSwingLow4H, lo)
	}

	RecomputeDistances(levels, in.Quote.Price)
	return levels
}

// RecomputeDistances refreshes each level's signed distance% and role
// (support below price, resistance at or above) and re-sorts by |distance|
// ascending. Called whenever the current price changes.
func RecomputeDistances(levels []model.KeyLevel, price float64) {
	if price <= 0 {
		return
	}
	for i := range levels {
		levels[i].DistancePct = (levels[i].Price - price) / price * 100
		if levels[i].Price < price {
			levels[i].Role = model.LevelSupport
		} else {
			levels[i].Role = model.LevelResistance
		}
	}
	sort.SliceStable(levels, func(i, j int) bool {
		return math.Abs(levels[i].DistancePct) < math.Abs(levels[j].DistancePct)
	})
}

// openingRange returns the high/low of bars inside the 09:30–10:00 ET window.
func openingRange(bars []model.Bar) (hi, lo float64, ok bool) {
	lo = math.MaxFloat64
	for i := range bars {
		if !markethours.InOpeningRange(bars[i].TS) {
			continue
		}
		ok = true
		if bars[i].High > hi {
			hi = bars[i].High
		}
		if bars[i].Low < lo {
			lo = bars[i].Low
		}
	}
	if !ok {
		return 0, 0, false
	}
	return hi, lo, true
}

// preMarketRange returns the high/low of bars before session open.
func preMarketRange(bars []model.Bar) (hi, lo float64, ok bool) {
	lo = math.MaxFloat64
	for i := range bars {
		if !markethours.InPreMarket(bars[i].TS) {
			continue
		}
		ok = true
		if bars[i].High > hi {
			hi = bars[i].High
		}
		if bars[i].Low < lo {
			lo = bars[i].Low
		}
	}
	if !ok {
		return 0, 0, false
	}
	return hi, lo, true
}

// lastSwingHigh finds the most recent pivot high: a bar whose high exceeds
// the highs of its two neighbors on each side.
func lastSwingHigh(bars []model.Bar) (float64, bool) {
	for i := len(bars) - 3; i >= 2; i-- {
		h := bars[i].High
		if h > bars[i-1].High && h > bars[i-2].High &&
			h > bars[i+1].High && h > bars[i+2].High {
			return h, true
		}
	}
	return 0, false
}

// lastSwingLow finds the most recent pivot low.
func lastSwingLow(bars []model.Bar) (float64, bool) {
	for i := len(bars) - 3; i >= 2; i-- {
		l := bars[i].Low
		if l < bars[i-1].Low && l < bars[i-2].Low &&
			l < bars[i+1].Low && l < bars[i+2].Low {
			return l, true
		}
	}
	return 0, false
}
