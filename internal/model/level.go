package model

// LevelType identifies the origin of a key price level.
type LevelType string

const (
	LevelSupport    LevelType = "support"
	LevelResistance LevelType = "resistance"
	LevelPDH        LevelType = "pdh"
	LevelPDL        LevelType = "pdl"
	LevelVWAP       LevelType = "vwap"
	LevelORBHigh    LevelType = "orb_high"
	LevelORBLow     LevelType = "orb_low"
	LevelEMA9       LevelType = "ema9"
	LevelEMA21      LevelType = "ema21"
	LevelSMA200     LevelType = "sma200"
	LevelPMH        LevelType = "pmh"
	LevelPML        LevelType = "pml"
	LevelSwingHigh1H LevelType = "swing_high_1h"
	LevelSwingLow1H  LevelType = "swing_low_1h"
	LevelSwingHigh4H LevelType = "swing_high_4h"
	LevelSwingLow4H  LevelType = "swing_low_4h"
)

// KeyLevel is a price level with a fixed strength weight and the signed
// percent distance from the current price. Distance is recomputed whenever
// the current price changes; callers keep levels sorted by |distance|.
type KeyLevel struct {
	Type        LevelType `json:"type"`
	Role        LevelType `json:"role"` // LevelSupport or LevelResistance, by side of price
	Price       float64   `json:"price"`
	Strength    int       `json:"strength"`    // 0–100
	DistancePct float64   `json:"distancePct"` // signed % from current price
}
