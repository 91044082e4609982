package fvg

import (
	"fmt"
	"sort"

	"tradecoach/internal/model"
)

const (
	maxActive  = 10
	maxTargets = 3
)

// Aggregate merges per-timeframe gap scans into one view for a symbol.
// Active gaps are sorted nearest-first and capped; targets are the gaps
// price would run into moving each direction: unfilled bearish gaps above
// price attract upward moves, unfilled bullish gaps below attract downward
// moves.
func Aggregate(symbol string, currentPrice float64, byTimeframe map[string][]model.FairValueGap) *model.FVGAnalysis {
	a := &model.FVGAnalysis{Symbol: symbol}

	var all []model.FairValueGap
	for _, gaps := range byTimeframe {
		all = append(all, gaps...)
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].DistancePct < all[j].DistancePct
	})

	for i := range all {
		g := all[i]
		switch {
		case g.Type == model.FVGBullish && a.NearestBullish == nil:
			a.NearestBullish = &all[i]
		case g.Type == model.FVGBearish && a.NearestBearish == nil:
			a.NearestBearish = &all[i]
		}
		if g.Type == model.FVGBearish && g.Mid > currentPrice && len(a.BullishTargets) < maxTargets {
			a.BullishTargets = append(a.BullishTargets, g)
		}
		if g.Type == model.FVGBullish && g.Mid < currentPrice && len(a.BearishTargets) < maxTargets {
			a.BearishTargets = append(a.BearishTargets, g)
		}
	}

	if len(all) > maxActive {
		all = all[:maxActive]
	}
	a.Active = all
	a.Summary = summarize(a)
	return a
}

func summarize(a *model.FVGAnalysis) string {
	if len(a.Active) == 0 {
		return "No active fair value gaps."
	}
	bull, bear := 0, 0
	for _, g := range a.Active {
		if g.Type == model.FVGBullish {
			bull++
		} else {
			bear++
		}
	}
	s := fmt.Sprintf("%d active FVGs (%d bullish, %d bearish).", len(a.Active), bull, bear)
	if n := a.NearestBullish; n != nil {
		s += fmt.Sprintf(" Nearest bullish %s gap %.2f–%.2f (%.2f%% away).",
			n.Timeframe, n.Bottom, n.Top, n.DistancePct)
	}
	if n := a.NearestBearish; n != nil {
		s += fmt.Sprintf(" Nearest bearish %s gap %.2f–%.2f (%.2f%% away).",
			n.Timeframe, n.Bottom, n.Top, n.DistancePct)
	}
	return s
}
