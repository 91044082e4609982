// Package fvg detects fair value gaps: three-candle price imbalances left
// behind by aggressive moves. Price tends to revisit these zones, so open
// gaps act as targets while partially filled ones act as support/resistance.
package fvg

import (
	"math"

	"tradecoach/internal/analytics"
	"tradecoach/internal/model"
)

// Minimum gap size in percent of the middle candle's close. Intraday noise
// produces tiny imbalances constantly, so intraday timeframes use a tighter
// floor than daily. These thresholds encode the trading methodology; do not
// tune without domain sign-off.
const (
	MinGapIntraday = 0.05
	MinGapDaily    = 0.10

	atrPeriod = 14
	volPeriod = 20
)

// DefaultMinGap returns the per-timeframe minimum gap percent.
func DefaultMinGap(timeframe string) float64 {
	if model.Intraday(timeframe) {
		return MinGapIntraday
	}
	return MinGapDaily
}

// Detect scans bars (ascending by timestamp) for fair value gaps and returns
// the ones still active at currentPrice. A minGapPercent <= 0 selects the
// per-timeframe default. Gaps that price has fully crossed (fill >= 100%)
// are never returned.
func Detect(bars []model.Bar, timeframe string, currentPrice, minGapPercent float64) []model.FairValueGap {
	if len(bars) < 3 || currentPrice <= 0 || !model.ValidBars(bars) {
		return nil
	}
	if minGapPercent <= 0 {
		minGapPercent = DefaultMinGap(timeframe)
	}

	atr := analytics.ATR(bars, atrPeriod)
	avgVol := analytics.AvgVolume(bars, volPeriod)

	var gaps []model.FairValueGap
	for i := 0; i+2 < len(bars); i++ {
		c1, c2, c3 := bars[i], bars[i+1], bars[i+2]

		var gapType model.FVGType
		var top, bottom float64
		switch {
		case c3.Low > c1.High:
			gapType, top, bottom = model.FVGBullish, c3.Low, c1.High
		case c3.High < c1.Low:
			gapType, top, bottom = model.FVGBearish, c1.Low, c3.High
		default:
			continue
		}

		if c2.Close <= 0 {
			continue
		}
		size := top - bottom
		sizePct := size / c2.Close * 100
		if sizePct < minGapPercent {
			continue
		}

		fill := fillPercent(gapType, top, bottom, currentPrice)
		if fill >= 100 {
			continue
		}

		mid := (top + bottom) / 2
		g := model.FairValueGap{
			Type:        gapType,
			Timeframe:   timeframe,
			FormedAt:    c3.TS,
			Top:         top,
			Bottom:      bottom,
			Mid:         mid,
			GapSize:     size,
			GapSizePct:  sizePct,
			FillPct:     fill,
			Strength:    strength(size, atr, float64(c2.Volume), avgVol),
			Candles:     [3]model.Bar{c1, c2, c3},
			LocalTrend:  localTrend(bars, i+2),
			VolumeNote:  volumeNote(float64(c2.Volume), avgVol),
			DistancePct: math.Abs(mid-currentPrice) / currentPrice * 100,
		}
		gaps = append(gaps, g)
	}
	return gaps
}

// fillPercent measures how far price has penetrated the gap range, from the
// side the gap "expects" to be defended. A bullish gap fills top-down as
// price retraces; a bearish gap fills bottom-up. Clamped to [0,100].
func fillPercent(t model.FVGType, top, bottom, price float64) float64 {
	rng := top - bottom
	if rng <= 0 {
		return 100
	}
	var f float64
	if t == model.FVGBullish {
		f = (top - price) / rng * 100
	} else {
		f = (price - bottom) / rng * 100
	}
	return clamp(f, 0, 100)
}

// strength combines gap size relative to ATR with formation volume relative
// to average volume. Either normalizer missing drops its term to zero, which
// biases toward weak rather than inventing a score.
func strength(gapSize, atr, gapVol, avgVol float64) model.FVGStrength {
	var score float64
	if atr > 0 {
		score += 0.6 * (gapSize / atr)
	}
	if avgVol > 0 {
		score += 0.4 * (gapVol / avgVol)
	}
	switch {
	case score > 1.5:
		return model.FVGStrong
	case score > 0.8:
		return model.FVGMedium
	default:
		return model.FVGWeak
	}
}

// localTrend classifies the short-term drift into the formation: the third
// candle's close against the close five bars earlier (or the oldest
// available), with a 0.1% neutral band.
func localTrend(bars []model.Bar, i3 int) string {
	ref := i3 - 5
	if ref < 0 {
		ref = 0
	}
	base := bars[ref].Close
	if base <= 0 {
		return "neutral"
	}
	chg := (bars[i3].Close - base) / base * 100
	switch {
	case chg > 0.1:
		return "bullish"
	case chg < -0.1:
		return "bearish"
	default:
		return "neutral"
	}
}

func volumeNote(gapVol, avgVol float64) string {
	if avgVol > 0 && gapVol > avgVol {
		return "above_average"
	}
	return "below_average"
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
