package model

import "time"

// FVGType is the direction of a fair value gap.
type FVGType string

const (
	FVGBullish FVGType = "bullish"
	FVGBearish FVGType = "bearish"
)

// FVGStrength buckets the weighted gap-size/volume score.
type FVGStrength string

const (
	FVGWeak   FVGStrength = "weak"
	FVGMedium FVGStrength = "medium"
	FVGStrong FVGStrength = "strong"
)

// FairValueGap is a three-candle price imbalance on one timeframe.
// A gap is "filled" once price has fully crossed it; gaps at 100% fill
// are excluded from active result sets.
type FairValueGap struct {
	Type       FVGType     `json:"type"`
	Timeframe  string      `json:"timeframe"`
	FormedAt   time.Time   `json:"formedAt"` // timestamp of the third candle
	Top        float64     `json:"top"`
	Bottom     float64     `json:"bottom"`
	Mid        float64     `json:"mid"`
	GapSize    float64     `json:"gapSize"`    // absolute, Top-Bottom
	GapSizePct float64     `json:"gapSizePct"` // relative to c2 close
	FillPct    float64     `json:"fillPct"`    // 0–100
	Strength   FVGStrength `json:"strength"`
	Candles    [3]Bar      `json:"candles"`       // formation triple c1,c2,c3
	LocalTrend string      `json:"localTrend"`    // trend context at formation
	VolumeNote string      `json:"volumeProfile"` // above_average | below_average
	DistancePct float64    `json:"distancePct"`   // |%| from current price to mid
}

// FVGAnalysis aggregates active gaps across timeframes for one symbol.
type FVGAnalysis struct {
	Symbol         string         `json:"symbol"`
	Active         []FairValueGap `json:"active"` // unfilled, sorted by distance, capped
	NearestBullish *FairValueGap  `json:"nearestBullish,omitempty"`
	NearestBearish *FairValueGap  `json:"nearestBearish,omitempty"`
	BullishTargets []FairValueGap `json:"bullishTargets"` // bearish gaps above price, nearest first
	BearishTargets []FairValueGap `json:"bearishTargets"` // bullish gaps below price, nearest first
	Summary        string         `json:"summary"`
}
