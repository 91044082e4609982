package model

import "time"

// Trend direction labels shared across the analytics layer.
const (
	TrendBullish = "bullish"
	TrendBearish = "bearish"
	TrendNeutral = "neutral"
)

// Price-vs-EMA classifications. "at" means within the 0.1% tolerance band.
const (
	PriceAbove = "above"
	PriceBelow = "below"
	PriceAt    = "at"
)

// TimeframeTrend is the trend read for a single timeframe.
type TimeframeTrend struct {
	Timeframe    string  `json:"timeframe"`
	EMA9         float64 `json:"ema9"`
	EMA21        float64 `json:"ema21"`
	PriceVsEMA9  string  `json:"priceVsEma9"`
	PriceVsEMA21 string  `json:"priceVsEma21"`
	Trend        string  `json:"trend"` // bullish | bearish | neutral
}

// MTFAnalysis is the multi-timeframe trend picture for one symbol.
// Timeframes with fewer than 21 bars of history are omitted entirely;
// AlignmentScore is computed only over the timeframes present.
type MTFAnalysis struct {
	Symbol         string                    `json:"symbol"`
	Timeframes     map[string]TimeframeTrend `json:"timeframes"`
	OverallBias    string                    `json:"overallBias"`    // majority vote, ties → neutral
	AlignmentScore float64                   `json:"alignmentScore"` // % of timeframes agreeing with majority
	Conflicting    []string                  `json:"conflicting"`    // non-neutral timeframes disagreeing
	Timestamp      time.Time                 `json:"timestamp"`
}

// LevelProximity classes for the levels sub-analysis.
const (
	ProximityAtLevel    = "at_level"
	ProximityNearLevel  = "near_level"
	ProximityNoMansLand = "no_mans_land"
)

// LevelsAnalysis is the "L" of LTP: nearby levels and their score.
type LevelsAnalysis struct {
	Nearest     []KeyLevel         `json:"nearest"`
	NamedPrices map[string]float64 `json:"namedPrices"` // pdh/pdl/vwap/... → price
	Proximity   string             `json:"proximity"`
	Score       float64            `json:"score"` // 0–100
}

// TrendAnalysis is the "T" of LTP.
type TrendAnalysis struct {
	MTF           *MTFAnalysis `json:"mtf,omitempty"`
	DailyTrend    string       `json:"dailyTrend"`
	IntradayTrend string       `json:"intradayTrend"`
	Alignment     float64      `json:"alignment"`
	Score         float64      `json:"score"` // 0–100
}

// Patience-candle states per timeframe.
const (
	PatienceNone      = "none"
	PatienceForming   = "forming"
	PatienceConfirmed = "confirmed"
)

// PatienceAnalysis is the "P" of LTP.
type PatienceAnalysis struct {
	States map[string]string `json:"states"` // timeframe → state
	Score  float64           `json:"score"`  // 0–100
}

// LTPAnalysis is the composite Level/Trend/Patience setup read.
// ConfluenceScore = round(0.35·level + 0.40·trend + 0.25·patience).
type LTPAnalysis struct {
	Symbol          string           `json:"symbol"`
	Levels          LevelsAnalysis   `json:"levels"`
	Trend           TrendAnalysis    `json:"trend"`
	Patience        PatienceAnalysis `json:"patience"`
	ConfluenceScore int              `json:"confluenceScore"` // 0–100
	Grade           string           `json:"grade"`           // A+ … F
	SetupQuality    string           `json:"setupQuality"`
	Recommendation  string           `json:"recommendation"`
	Timestamp       time.Time        `json:"timestamp"`
}
