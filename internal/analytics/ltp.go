package analytics

import (
	"math"
	"time"

	"tradecoach/internal/model"
)

// Level-proximity bands (percent of price).
const (
	atLevelBand   = 0.15
	nearLevelBand = 0.50
)

// LTPInputs carries the pieces assembled by the service layer.
type LTPInputs struct {
	Symbol string
	Price  float64
	Levels []model.KeyLevel
	MTF    *model.MTFAnalysis
	// Bars per timeframe for the patience read (5m and 15m are consulted).
	BarsByTF map[string][]model.Bar
	Now      time.Time
}

// BuildLTP assembles the full Level/Trend/Patience analysis.
// Returns nil when the trend picture is missing entirely — callers treat
// nil as "not enough data", never as failure.
func BuildLTP(in LTPInputs) *model.LTPAnalysis {
	if in.MTF == nil || in.Price <= 0 {
		return nil
	}

	levels := buildLevelsAnalysis(in.Levels, in.Price)
	trend := buildTrendAnalysis(in.MTF)
	patience := buildPatienceAnalysis(in.BarsByTF)

	score, grade := Confluence(levels.Score, trend.Score, patience.Score)

	return &model.LTPAnalysis{
		Symbol:          in.Symbol,
		Levels:          levels,
		Trend:           trend,
		Patience:        patience,
		ConfluenceScore: score,
		Grade:           grade,
		SetupQuality:    SetupQuality(grade),
		Recommendation:  Recommendation(grade, in.MTF.OverallBias),
		Timestamp:       in.Now,
	}
}

// buildLevelsAnalysis scores proximity to the strongest nearby level.
// At a level: the level's own strength carries. Near: discounted. In
// no-man's-land there is nothing to lean on and the score floors at 30.
func buildLevelsAnalysis(levels []model.KeyLevel, price float64) model.LevelsAnalysis {
	la := model.LevelsAnalysis{
		NamedPrices: make(map[string]float64, len(levels)),
		Proximity:   model.ProximityNoMansLand,
		Score:       30,
	}
	if len(levels) == 0 {
		return la
	}

	RecomputeDistances(levels, price)
	for _, l := range levels {
		la.NamedPrices[string(l.Type)] = l.Price
	}

	n := len(levels)
	if n > 5 {
		n = 5
	}
	la.Nearest = append([]model.KeyLevel(nil), levels[:n]...)

	nearest := levels[0]
	dist := math.Abs(nearest.DistancePct)
	switch {
	case dist <= atLevelBand:
		la.Proximity = model.ProximityAtLevel
		la.Score = float64(nearest.Strength)
	case dist <= nearLevelBand:
		la.Proximity = model.ProximityNearLevel
		la.Score = float64(nearest.Strength) * 0.7
	}
	return la
}

// buildTrendAnalysis maps the MTF picture onto a 0–100 trend score:
// the alignment score when there is a directional bias, a flat 40 when
// the timeframes cancel out.
func buildTrendAnalysis(mtf *model.MTFAnalysis) model.TrendAnalysis {
	ta := model.TrendAnalysis{
		MTF:       mtf,
		Alignment: mtf.AlignmentScore,
	}
	if tt, ok := mtf.Timeframes[model.TFDaily]; ok {
		ta.DailyTrend = tt.Trend
	} else {
		ta.DailyTrend = model.TrendNeutral
	}
	intraday := model.TrendNeutral
	for _, tf := range []string{model.TF15m, model.TF5m, model.TF1h} {
		if tt, ok := mtf.Timeframes[tf]; ok && tt.Trend != model.TrendNeutral {
			intraday = tt.Trend
			break
		}
	}
	ta.IntradayTrend = intraday

	if mtf.OverallBias == model.TrendNeutral {
		ta.Score = 40
	} else {
		ta.Score = mtf.AlignmentScore
	}
	return ta
}

// buildPatienceAnalysis reads the patience-candle state on the execution
// timeframes. Confirmed 100, forming 70, none 40; averaged over the
// timeframes with enough bars. No readable timeframe scores 0.
func buildPatienceAnalysis(barsByTF map[string][]model.Bar) model.PatienceAnalysis {
	pa := model.PatienceAnalysis{States: make(map[string]string, 2)}

	total, n := 0.0, 0
	for _, tf := range []string{model.TF5m, model.TF15m} {
		state := PatienceState(barsByTF[tf])
		if state == "" {
			continue
		}
		pa.States[tf] = state
		switch state {
		case model.PatienceConfirmed:
			total += 100
		case model.PatienceForming:
			total += 70
		default:
			total += 40
		}
		n++
	}
	if n > 0 {
		pa.Score = total / float64(n)
	}
	return pa
}
