// Package coach evaluates proposed trades against market context and the
// trader's own behavior, producing approve/warn/block decisions. The rules
// encode one methodology's discipline guardrails; the engine itself is a
// plain ordered table.
package coach

import (
	"fmt"
	"sort"
	"strings"

	"tradecoach/internal/metrics"
	"tradecoach/internal/model"
)

// InterventionContext is everything a rule may look at. Breadth and events
// come from the external worker and are never mutated here.
type InterventionContext struct {
	Intent model.TradeIntent

	// Behavioral state, usually journal-derived.
	MentalCapital     int // 0–100, self-reported or computed
	DailyTradeCount   int
	ConsecutiveLosses int
	DailyLossPct      float64  // percent of account lost today, positive
	KnownWeaknesses   []string // e.g. WeaknessRevenge

	Breadth *model.MarketBreadth
	Events  []model.EconomicEvent
}

// Known user-weakness tags.
const WeaknessRevenge = "revenge_trading"

// HasWeakness reports whether the tagged weakness is in the profile.
func (c *InterventionContext) HasWeakness(tag string) bool {
	for _, w := range c.KnownWeaknesses {
		if strings.EqualFold(w, tag) {
			return true
		}
	}
	return false
}

// Rule is one entry in the intervention table. Check returns nil when the
// rule has nothing to say; a result with Approved=false is a hard block.
type Rule struct {
	ID       string
	Priority int
	Check    func(*InterventionContext) *model.InterventionResult
}

// Engine runs the rule table against trade intents.
type Engine struct {
	rules   []Rule
	voice   *Voice
	metrics *metrics.Metrics
}

// NewEngine builds an engine with the built-in rules and the given
// thresholds. Rules are kept sorted by descending priority.
func NewEngine(cfg RulesConfig, m *metrics.Metrics) *Engine {
	e := &Engine{
		rules:   builtinRules(cfg),
		voice:   NewVoice(),
		metrics: m,
	}
	sort.SliceStable(e.rules, func(i, j int) bool {
		return e.rules[i].Priority > e.rules[j].Priority
	})
	return e
}

// Evaluate runs the rules in descending priority. The first blocking result
// short-circuits; otherwise warnings are collected and the highest-severity
// one is returned with every warning message attached. No findings at all
// yields an approval.
func (e *Engine) Evaluate(ctx *InterventionContext) model.InterventionResult {
	var findings []model.InterventionResult
	for _, rule := range e.rules {
		r := rule.Check(ctx)
		if r == nil {
			continue
		}
		if r.Reason == "" {
			r.Reason = rule.ID
		}
		if !r.Approved {
			e.metrics.IncIntervention(string(r.Severity))
			return e.voice.Synthesize(*r)
		}
		findings = append(findings, *r)
	}

	if len(findings) == 0 {
		ok := model.InterventionResult{
			Approved: true,
			Severity: model.SeverityNudge,
			Type:     model.InterventionTradeValidation,
			Message:  "Setup checks out. Execute your plan.",
			Reason:   "all_clear",
		}
		return e.voice.Synthesize(ok)
	}

	// Highest severity wins; stable sort preserves priority order on ties.
	sort.SliceStable(findings, func(i, j int) bool {
		return findings[i].Severity.Rank() > findings[j].Severity.Rank()
	})
	top := findings[0]
	for _, f := range findings {
		top.Warnings = append(top.Warnings, f.Message)
	}
	e.metrics.IncIntervention(string(top.Severity))
	return e.voice.Synthesize(top)
}

// builtinRules is the fixed table. Priorities space out in tens so future
// rules can slot between existing ones.
func builtinRules(cfg RulesConfig) []Rule {
	return []Rule{
		{
			ID:       "mental_capital_depleted",
			Priority: 100,
			Check: func(c *InterventionContext) *model.InterventionResult {
				if c.MentalCapital > 30 {
					return nil
				}
				return &model.InterventionResult{
					Approved:  false,
					Severity:  model.SeverityBlock,
					Type:      model.InterventionMentalCapital,
					Message:   "Your mental capital is depleted. No trade survives a tilted operator.",
					Technical: fmt.Sprintf("mentalCapital=%d threshold=30", c.MentalCapital),
				}
			},
		},
		{
			ID:       "economic_event_imminent",
			Priority: 90,
			Check: func(c *InterventionContext) *model.InterventionResult {
				for i := range c.Events {
					ev := &c.Events[i]
					if ev.Impact == "high" && ev.Imminent() {
						return &model.InterventionResult{
							Approved:  false,
							Severity:  model.SeverityBlock,
							Type:      model.InterventionEconomicEvent,
							Message:   fmt.Sprintf("%s hits in %d minutes. Spreads will blow out.", ev.Title, ev.MinutesUntilEvent),
							Technical: fmt.Sprintf("event=%q minutesUntil=%d", ev.Title, ev.MinutesUntilEvent),
						}
					}
				}
				return nil
			},
		},
		{
			ID:       "breadth_against_direction",
			Priority: 80,
			Check: func(c *InterventionContext) *model.InterventionResult {
				if c.Breadth == nil {
					return nil
				}
				trend := c.Breadth.ADD.Trend
				against := (trend == "strong_bearish" && c.Intent.Direction == model.DirectionLong) ||
					(trend == "strong_bullish" && c.Intent.Direction == model.DirectionShort)
				if !against {
					return nil
				}
				return &model.InterventionResult{
					Approved:  false,
					Severity:  model.SeverityBlock,
					Type:      model.InterventionMarketBreadth,
					Message:   fmt.Sprintf("Breadth is %s and you want to go %s. That's fighting the tape.", trend, c.Intent.Direction),
					Technical: fmt.Sprintf("add.trend=%s direction=%s", trend, c.Intent.Direction),
				}
			},
		},
		{
			ID:       "revenge_trading",
			Priority: 70,
			Check: func(c *InterventionContext) *model.InterventionResult {
				if !c.HasWeakness(WeaknessRevenge) || c.ConsecutiveLosses < 2 {
					return nil
				}
				if c.ConsecutiveLosses >= 3 {
					return &model.InterventionResult{
						Approved:  false,
						Severity:  model.SeverityBlock,
						Type:      model.InterventionUserWeakness,
						Message:   "Three losses in a row and you're reaching for the next trade. This is your revenge pattern.",
						Technical: fmt.Sprintf("consecutiveLosses=%d", c.ConsecutiveLosses),
					}
				}
				return &model.InterventionResult{
					Approved:  true,
					Severity:  model.SeverityWarning,
					Type:      model.InterventionUserWeakness,
					Message:   "Two straight losses. One more and you're in revenge territory.",
					Technical: fmt.Sprintf("consecutiveLosses=%d", c.ConsecutiveLosses),
				}
			},
		},
		{
			ID:       "overtrading",
			Priority: 60,
			Check: func(c *InterventionContext) *model.InterventionResult {
				max := cfg.MaxTradesPerDay
				switch {
				case c.DailyTradeCount >= max+2:
					return &model.InterventionResult{
						Approved:  false,
						Severity:  model.SeverityBlock,
						Type:      model.InterventionPatternDetection,
						Message:   fmt.Sprintf("Trade #%d today. You're churning, not trading.", c.DailyTradeCount+1),
						Technical: fmt.Sprintf("dailyTrades=%d max=%d", c.DailyTradeCount, max),
					}
				case c.DailyTradeCount >= max:
					return &model.InterventionResult{
						Approved:  true,
						Severity:  model.SeverityWarning,
						Type:      model.InterventionPatternDetection,
						Message:   fmt.Sprintf("You've hit your %d-trade daily limit. Every trade past here is usually a giveback.", max),
						Technical: fmt.Sprintf("dailyTrades=%d max=%d", c.DailyTradeCount, max),
					}
				}
				return nil
			},
		},
		{
			ID:       "daily_loss_limit",
			Priority: 50,
			Check: func(c *InterventionContext) *model.InterventionResult {
				max := cfg.MaxDailyLossPct
				switch {
				case c.DailyLossPct >= 1.5*max:
					return &model.InterventionResult{
						Approved:  false,
						Severity:  model.SeverityBlock,
						Type:      model.InterventionRiskViolation,
						Message:   fmt.Sprintf("Down %.1f%% on the day. The account comes first; you're done.", c.DailyLossPct),
						Technical: fmt.Sprintf("dailyLoss=%.2f max=%.2f", c.DailyLossPct, max),
					}
				case c.DailyLossPct >= max:
					return &model.InterventionResult{
						Approved:  true,
						Severity:  model.SeverityWarning,
						Type:      model.InterventionRiskViolation,
						Message:   fmt.Sprintf("Daily loss at %.1f%% of your %.1f%% limit. Size down or step away.", c.DailyLossPct, max),
						Technical: fmt.Sprintf("dailyLoss=%.2f max=%.2f", c.DailyLossPct, max),
					}
				}
				return nil
			},
		},
		{
			ID:       "missing_stop_loss",
			Priority: 40,
			Check: func(c *InterventionContext) *model.InterventionResult {
				if c.Intent.StopLoss != 0 {
					return nil
				}
				return &model.InterventionResult{
					Approved:  true,
					Severity:  model.SeverityNudge,
					Type:      model.InterventionTradeValidation,
					Message:   "No stop on this one. Where's your out if you're wrong?",
					Technical: "stopLoss unset",
				}
			},
		},
	}
}
