package analytics

import "tradecoach/internal/model"

// Patience-candle thresholds. The latest bar must shrink to under half the
// recent average body on under 70% of the recent average volume before a
// setup counts as "waiting". Methodology constants — do not tune.
const (
	patienceBodyRatio   = 0.50
	patienceVolumeRatio = 0.70
)

// PatienceState classifies the last three bars of a series.
// Returns "" when fewer than 3 bars are available (insufficient data, the
// caller treats it as "not enough data", not as PatienceNone).
func PatienceState(bars []model.Bar) string {
	if len(bars) < 3 {
		return ""
	}
	last3 := bars[len(bars)-3:]
	latest := &last3[2]
	prior := &last3[1]

	avgBody := (last3[0].Body() + last3[1].Body() + last3[2].Body()) / 3
	avgVol := float64(last3[0].Volume+last3[1].Volume+last3[2].Volume) / 3

	if avgBody <= 0 || avgVol <= 0 {
		return model.PatienceNone
	}

	forming := latest.Body() < patienceBodyRatio*avgBody &&
		float64(latest.Volume) < patienceVolumeRatio*avgVol
	if !forming {
		return model.PatienceNone
	}

	// Confirmed requires the prior bar's direction to oppose the latest
	// bar's close-open direction.
	if prior.Bullish() != latest.Bullish() {
		return model.PatienceConfirmed
	}
	return model.PatienceForming
}
