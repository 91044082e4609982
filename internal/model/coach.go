package model

import "time"

// BreadthGauge is one market-internals reading (ADD/VOLD/TICK).
type BreadthGauge struct {
	Value float64 `json:"value"`
	Trend string  `json:"trend"` // strong_bullish | bullish | neutral | bearish | strong_bearish
}

// MarketBreadth is published by the external breadth worker and consumed
// read-only by the coaching layer.
type MarketBreadth struct {
	ADD       BreadthGauge `json:"add"`
	VOLD      BreadthGauge `json:"vold"`
	TICK      BreadthGauge `json:"tick"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// EconomicEvent is a calendar entry from the external calendar worker.
type EconomicEvent struct {
	Title             string    `json:"title"`
	Impact            string    `json:"impact"` // low | medium | high
	MinutesUntilEvent int       `json:"minutesUntilEvent"`
	ScheduledAt       time.Time `json:"scheduledAt"`
}

// Imminent reports whether the event is close enough ahead to warrant
// blocking new entries.
func (e *EconomicEvent) Imminent() bool {
	return e.MinutesUntilEvent > 0 && e.MinutesUntilEvent <= 15
}

// ProactiveWarning is an out-of-band heads-up produced by the breadth worker.
type ProactiveWarning struct {
	Type      string    `json:"type"`
	Message   string    `json:"message"`
	Severity  string    `json:"severity"`
	CreatedAt time.Time `json:"createdAt"`
}

// Trade directions.
const (
	DirectionLong  = "long"
	DirectionShort = "short"
)

// TradeIntent is a proposed trade submitted for coaching evaluation.
// StopLoss and Target are optional; zero means "not set".
type TradeIntent struct {
	Symbol    string  `json:"symbol"`
	Direction string  `json:"direction"` // long | short
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	StopLoss  float64 `json:"stopLoss,omitempty"`
	Target    float64 `json:"target,omitempty"`
}

// Severity of an intervention, ordered nudge < warning < dumb_shit.
type Severity string

const (
	SeverityNudge   Severity = "nudge"
	SeverityWarning Severity = "warning"
	SeverityBlock   Severity = "dumb_shit"
)

// Rank returns the ordering weight of a severity.
func (s Severity) Rank() int {
	switch s {
	case SeverityBlock:
		return 3
	case SeverityWarning:
		return 2
	case SeverityNudge:
		return 1
	default:
		return 0
	}
}

// Intervention types used for message synthesis and logging.
const (
	InterventionMarketBreadth    = "market_breadth"
	InterventionEconomicEvent    = "economic_event"
	InterventionUserWeakness     = "user_weakness"
	InterventionMentalCapital    = "mental_capital"
	InterventionTradeValidation  = "trade_validation"
	InterventionPatternDetection = "pattern_detection"
	InterventionRiskViolation    = "risk_violation"
	InterventionTiming           = "timing"
)

// InterventionResult is the outcome of evaluating a trade intent.
type InterventionResult struct {
	Approved  bool     `json:"approved"`
	Severity  Severity `json:"severity"`
	Type      string   `json:"type"`
	Message   string   `json:"message"`
	Reason    string   `json:"reason"`    // machine-readable rule id
	Technical string   `json:"technical"` // details for logging
	Warnings  []string `json:"warnings,omitempty"`
}
