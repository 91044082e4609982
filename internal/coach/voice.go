package coach

import (
	"math/rand"
	"time"

	"tradecoach/internal/model"
)

// Voice wraps rule messages in a severity/type-appropriate framing. The
// wrapping is purely textual: it never changes the approve/block decision
// or the severity. Production picks a pseudo-random template; SynthesizeAt
// is the pure function underneath, selectable by index for tests.
type Voice struct {
	rng *rand.Rand
}

func NewVoice() *Voice {
	return &Voice{rng: rand.New(rand.NewSource(time.Now().UnixNano()))}
}

// Prefix templates per severity. Intervention-type specific leads are
// layered on top where they add context.
var severityPrefixes = map[model.Severity][]string{
	model.SeverityBlock: {
		"STOP. ",
		"Hard no. ",
		"Not happening. ",
	},
	model.SeverityWarning: {
		"Heads up: ",
		"Careful here: ",
		"Check yourself: ",
	},
	model.SeverityNudge: {
		"Quick note: ",
		"",
		"For what it's worth: ",
	},
}

var typeLeads = map[string]string{
	model.InterventionMarketBreadth:    "The tape disagrees. ",
	model.InterventionEconomicEvent:    "Calendar risk. ",
	model.InterventionMentalCapital:    "This is about you, not the chart. ",
	model.InterventionUserWeakness:     "You've been here before. ",
	model.InterventionRiskViolation:    "Risk line crossed. ",
	model.InterventionPatternDetection: "Pattern alert. ",
}

// Synthesize wraps the result's message using a pseudo-random template.
func (v *Voice) Synthesize(r model.InterventionResult) model.InterventionResult {
	return SynthesizeAt(r, v.rng.Intn(1<<30))
}

// SynthesizeAt is the deterministic core: identical (result, selector)
// inputs always produce identical output.
func SynthesizeAt(r model.InterventionResult, selector int) model.InterventionResult {
	if selector < 0 {
		selector = -selector
	}
	prefixes := severityPrefixes[r.Severity]
	var prefix string
	if len(prefixes) > 0 {
		prefix = prefixes[selector%len(prefixes)]
	}
	// Approvals read as affirmations, not alarms.
	if r.Approved && r.Severity == model.SeverityNudge && r.Reason == "all_clear" {
		r.Message = prefix + r.Message
		return r
	}
	r.Message = prefix + typeLeads[r.Type] + r.Message
	return r
}
