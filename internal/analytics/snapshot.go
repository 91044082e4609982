package analytics

import (
	"tradecoach/internal/model"
)

// SnapshotTrend computes the dashboard snapshot's trend label using the
// simple heuristic: EMA ordering when both EMAs are available, otherwise a
// ±0.5% change-percent check. This can disagree with the MTF-based trend
// used in LTP analysis; the two are independent signals by design of the
// methodology and must not be unified.
func SnapshotTrend(ema9, ema21, changePercent float64) string {
	if ema9 > 0 && ema21 > 0 {
		if ema9 > ema21 {
			return model.TrendBullish
		}
		if ema9 < ema21 {
			return model.TrendBearish
		}
		return model.TrendNeutral
	}
	if changePercent > 0.5 {
		return model.TrendBullish
	}
	if changePercent < -0.5 {
		return model.TrendBearish
	}
	return model.TrendNeutral
}

// BuildSnapshot condenses a quote plus optional EMAs into a MarketSnapshot.
func BuildSnapshot(q *model.Quote, ema9, ema21 float64) *model.MarketSnapshot {
	if q == nil {
		return nil
	}
	return &model.MarketSnapshot{
		Symbol:        q.Symbol,
		Price:         q.Price,
		ChangePercent: q.ChangePercent,
		Volume:        q.Volume,
		Trend:         SnapshotTrend(ema9, ema21, q.ChangePercent),
		Timestamp:     q.Timestamp,
	}
}
