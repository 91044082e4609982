package analytics

import (
	"math"

	"tradecoach/internal/model"
)

// ATR returns the Average True Range over the trailing period bars
// (simple mean of true ranges). Returns 0 when fewer than two bars.
func ATR(bars []model.Bar, period int) float64 {
	if len(bars) < 2 {
		return 0
	}
	start := len(bars) - period
	if start < 1 {
		start = 1
	}
	sum := 0.0
	n := 0
	for i := start; i < len(bars); i++ {
		cur, prev := &bars[i], &bars[i-1]
		tr := cur.High - cur.Low
		tr = math.Max(tr, math.Abs(cur.High-prev.Close))
		tr = math.Max(tr, math.Abs(cur.Low-prev.Close))
		sum += tr
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// AvgVolume returns the mean volume over the trailing period bars.
func AvgVolume(bars []model.Bar, period int) float64 {
	if len(bars) == 0 {
		return 0
	}
	start := len(bars) - period
	if start < 0 {
		start = 0
	}
	sum := 0.0
	for i := start; i < len(bars); i++ {
		sum += float64(bars[i].Volume)
	}
	return sum / float64(len(bars)-start)
}
