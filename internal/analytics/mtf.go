package analytics

import (
	"math"
	"time"

	"tradecoach/internal/model"
)

// minMTFBars is the minimum history required before a timeframe is
// analyzed at all; shorter series omit the timeframe entirely.
const minMTFBars = 21

// emaTolerance is the "at" band for price-vs-EMA classification: within
// 0.1% of the EMA counts as at the level, not above or below it.
const emaTolerance = 0.001

// AnalyzeTimeframe computes the trend read for one timeframe.
// Returns nil when fewer than 21 bars are available.
func AnalyzeTimeframe(tf string, bars []model.Bar, price float64) *model.TimeframeTrend {
	if price <= 0 || len(bars) < minMTFBars || !model.ValidBars(bars) {
		return nil
	}

	ema9, ok9 := Feed(NewEMA(9), bars)
	ema21, ok21 := Feed(NewEMA(21), bars)
	if !ok9 || !ok21 || ema9 <= 0 || ema21 <= 0 {
		return nil
	}

	tt := &model.TimeframeTrend{
		Timeframe:    tf,
		EMA9:         ema9,
		EMA21:        ema21,
		PriceVsEMA9:  classifyPriceVsEMA(price, ema9),
		PriceVsEMA21: classifyPriceVsEMA(price, ema21),
	}

	// A timeframe is trending only when price position and EMA ordering
	// agree: above both with EMA9>EMA21 is bullish, below both with
	// EMA9<EMA21 is bearish, anything else is neutral.
	switch {
	case ema9 > ema21 && tt.PriceVsEMA9 == model.PriceAbove && tt.PriceVsEMA21 == model.PriceAbove:
		tt.Trend = model.TrendBullish
	case ema9 < ema21 && tt.PriceVsEMA9 == model.PriceBelow && tt.PriceVsEMA21 == model.PriceBelow:
		tt.Trend = model.TrendBearish
	default:
		tt.Trend = model.TrendNeutral
	}
	return tt
}

func classifyPriceVsEMA(price, ema float64) string {
	if math.Abs(price-ema)/ema <= emaTolerance {
		return model.PriceAt
	}
	if price > ema {
		return model.PriceAbove
	}
	return model.PriceBelow
}

// BuildMTF assembles the multi-timeframe analysis from per-timeframe bars.
// Timeframes with insufficient history are omitted; the alignment score is
// computed only over the timeframes present. Returns nil when no timeframe
// has enough data.
func BuildMTF(symbol string, price float64, barsByTF map[string][]model.Bar, now time.Time) *model.MTFAnalysis {
	mtf := &model.MTFAnalysis{
		Symbol:     symbol,
		Timeframes: make(map[string]model.TimeframeTrend, len(model.MTFTimeframes)),
		Timestamp:  now,
	}

	bulls, bears := 0, 0
	for _, tf := range model.MTFTimeframes {
		tt := AnalyzeTimeframe(tf, barsByTF[tf], price)
		if tt == nil {
			continue
		}
		mtf.Timeframes[tf] = *tt
		switch tt.Trend {
		case model.TrendBullish:
			bulls++
		case model.TrendBearish:
			bears++
		}
	}
	if len(mtf.Timeframes) == 0 {
		return nil
	}

	// Majority vote; ties go neutral.
	switch {
	case bulls > bears:
		mtf.OverallBias = model.TrendBullish
	case bears > bulls:
		mtf.OverallBias = model.TrendBearish
	default:
		mtf.OverallBias = model.TrendNeutral
	}

	agreeing := 0
	for _, tf := range model.MTFTimeframes {
		tt, ok := mtf.Timeframes[tf]
		if !ok {
			continue
		}
		if tt.Trend == mtf.OverallBias {
			agreeing++
		} else if tt.Trend != model.TrendNeutral {
			mtf.Conflicting = append(mtf.Conflicting, tf)
		}
	}
	mtf.AlignmentScore = float64(agreeing) / float64(len(mtf.Timeframes)) * 100

	return mtf
}
