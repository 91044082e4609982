package model

// Timeframe labels used by the analytics layer.
const (
	TF5m    = "5m"
	TF15m   = "15m"
	TF1h    = "1h"
	TFDaily = "daily"
)

// MTFTimeframes is the fixed set analyzed for multi-timeframe trend.
var MTFTimeframes = []string{TF5m, TF15m, TF1h, TFDaily}

// TimeframeSpan maps a timeframe label to the vendor's (timespan, multiplier).
func TimeframeSpan(tf string) (timespan string, multiplier int) {
	switch tf {
	case TF5m:
		return "minute", 5
	case TF15m:
		return "minute", 15
	case TF1h:
		return "hour", 1
	case TFDaily:
		return "day", 1
	default:
		return "minute", 1
	}
}

// Intraday reports whether the timeframe is an intraday bucket.
func Intraday(tf string) bool {
	return tf == TF5m || tf == TF15m || tf == TF1h
}
