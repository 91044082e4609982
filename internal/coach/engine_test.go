package coach

import (
	"os"
	"path/filepath"
	"testing"

	"tradecoach/internal/model"
)

func healthyContext() *InterventionContext {
	return &InterventionContext{
		Intent: model.TradeIntent{
			Symbol: "SPY", Direction: model.DirectionLong,
			Price: 512, Size: 100, StopLoss: 509,
		},
		MentalCapital:   80,
		DailyTradeCount: 1,
		Breadth: &model.MarketBreadth{
			ADD: model.BreadthGauge{Value: 1200, Trend: "bullish"},
		},
	}
}

func newTestEngine() *Engine {
	return NewEngine(DefaultRulesConfig(), nil)
}

func TestEvaluate_AllClear(t *testing.T) {
	r := newTestEngine().Evaluate(healthyContext())
	if !r.Approved {
		t.Fatalf("healthy context must be approved: %+v", r)
	}
	if r.Reason != "all_clear" {
		t.Fatalf("reason: %s", r.Reason)
	}
	if len(r.Warnings) != 0 {
		t.Fatalf("unexpected warnings: %v", r.Warnings)
	}
}

func TestEvaluate_MentalCapitalBlocksEverything(t *testing.T) {
	ctx := healthyContext()
	ctx.MentalCapital = 25
	// Stack other triggerable conditions; the priority-100 rule must win.
	ctx.Breadth.ADD.Trend = "strong_bearish"
	ctx.DailyTradeCount = 20
	ctx.Intent.StopLoss = 0

	r := newTestEngine().Evaluate(ctx)
	if r.Approved {
		t.Fatal("must be blocked")
	}
	if r.Severity != model.SeverityBlock {
		t.Fatalf("severity: %s", r.Severity)
	}
	if r.Type != model.InterventionMentalCapital {
		t.Fatalf("expected mental_capital to short-circuit, got %s", r.Type)
	}
	if r.Reason != "mental_capital_depleted" {
		t.Fatalf("reason: %s", r.Reason)
	}
}

func TestEvaluate_MentalCapitalBoundary(t *testing.T) {
	ctx := healthyContext()
	ctx.MentalCapital = 30
	if r := newTestEngine().Evaluate(ctx); r.Approved {
		t.Fatal("mentalCapital=30 must block (threshold is <=30)")
	}
	ctx.MentalCapital = 31
	if r := newTestEngine().Evaluate(ctx); !r.Approved {
		t.Fatalf("mentalCapital=31 must pass, got %+v", r)
	}
}

func TestEvaluate_BreadthAgainstDirection(t *testing.T) {
	ctx := healthyContext()
	ctx.Breadth.ADD.Trend = "strong_bearish"
	r := newTestEngine().Evaluate(ctx)
	if r.Approved || r.Type != model.InterventionMarketBreadth {
		t.Fatalf("strong_bearish vs long must block with market_breadth: %+v", r)
	}

	// Same breadth with a short intent is fine.
	ctx.Intent.Direction = model.DirectionShort
	if r := newTestEngine().Evaluate(ctx); !r.Approved {
		t.Fatalf("strong_bearish vs short must pass: %+v", r)
	}

	// Strong bullish breadth blocks shorts.
	ctx.Breadth.ADD.Trend = "strong_bullish"
	r = newTestEngine().Evaluate(ctx)
	if r.Approved || r.Type != model.InterventionMarketBreadth {
		t.Fatalf("strong_bullish vs short must block: %+v", r)
	}
}

func TestEvaluate_EconomicEvent(t *testing.T) {
	ctx := healthyContext()
	ctx.Events = []model.EconomicEvent{
		{Title: "CPI", Impact: "high", MinutesUntilEvent: 10},
	}
	r := newTestEngine().Evaluate(ctx)
	if r.Approved || r.Type != model.InterventionEconomicEvent {
		t.Fatalf("imminent high-impact event must block: %+v", r)
	}

	// Low impact or already past does not trigger.
	ctx.Events = []model.EconomicEvent{
		{Title: "Consumer Sentiment", Impact: "low", MinutesUntilEvent: 5},
		{Title: "FOMC", Impact: "high", MinutesUntilEvent: -30},
		{Title: "NFP", Impact: "high", MinutesUntilEvent: 120},
	}
	if r := newTestEngine().Evaluate(ctx); !r.Approved {
		t.Fatalf("non-imminent events must pass: %+v", r)
	}
}

func TestEvaluate_RevengeTrading(t *testing.T) {
	ctx := healthyContext()
	ctx.KnownWeaknesses = []string{WeaknessRevenge}

	ctx.ConsecutiveLosses = 3
	r := newTestEngine().Evaluate(ctx)
	if r.Approved || r.Type != model.InterventionUserWeakness {
		t.Fatalf("3 losses with revenge weakness must block: %+v", r)
	}

	ctx.ConsecutiveLosses = 2
	r = newTestEngine().Evaluate(ctx)
	if !r.Approved || r.Severity != model.SeverityWarning {
		t.Fatalf("2 losses must warn, not block: %+v", r)
	}

	// Without the known weakness, losses alone don't trigger.
	ctx.KnownWeaknesses = nil
	ctx.ConsecutiveLosses = 4
	if r := newTestEngine().Evaluate(ctx); !r.Approved {
		t.Fatalf("losses without the weakness tag must pass: %+v", r)
	}
}

func TestEvaluate_Overtrading(t *testing.T) {
	ctx := healthyContext()

	ctx.DailyTradeCount = DefaultMaxTradesPerDay
	r := newTestEngine().Evaluate(ctx)
	if !r.Approved || r.Severity != model.SeverityWarning {
		t.Fatalf("at max trades: expected warning, got %+v", r)
	}

	ctx.DailyTradeCount = DefaultMaxTradesPerDay + 2
	r = newTestEngine().Evaluate(ctx)
	if r.Approved || r.Type != model.InterventionPatternDetection {
		t.Fatalf("max+2 trades must block: %+v", r)
	}
}

func TestEvaluate_DailyLoss(t *testing.T) {
	ctx := healthyContext()

	ctx.DailyLossPct = DefaultMaxDailyLossPct
	r := newTestEngine().Evaluate(ctx)
	if !r.Approved || r.Severity != model.SeverityWarning {
		t.Fatalf("at loss limit: expected warning, got %+v", r)
	}

	ctx.DailyLossPct = 1.5 * DefaultMaxDailyLossPct
	r = newTestEngine().Evaluate(ctx)
	if r.Approved || r.Type != model.InterventionRiskViolation {
		t.Fatalf("1.5x loss limit must block: %+v", r)
	}
}

func TestEvaluate_MissingStopNeverBlocks(t *testing.T) {
	ctx := healthyContext()
	ctx.Intent.StopLoss = 0
	r := newTestEngine().Evaluate(ctx)
	if !r.Approved {
		t.Fatalf("missing stop must never block: %+v", r)
	}
	if r.Severity != model.SeverityNudge {
		t.Fatalf("severity: %s", r.Severity)
	}
}

func TestEvaluate_HighestSeverityWarningWins(t *testing.T) {
	ctx := healthyContext()
	ctx.Intent.StopLoss = 0 // nudge
	ctx.DailyTradeCount = DefaultMaxTradesPerDay // warning
	r := newTestEngine().Evaluate(ctx)
	if !r.Approved {
		t.Fatalf("warnings only, must stay approved: %+v", r)
	}
	if r.Severity != model.SeverityWarning {
		t.Fatalf("warning outranks nudge, got %s", r.Severity)
	}
	if len(r.Warnings) != 2 {
		t.Fatalf("all warning messages must be attached, got %v", r.Warnings)
	}
}

func TestSynthesizeDeterministic(t *testing.T) {
	in := model.InterventionResult{
		Approved: false,
		Severity: model.SeverityBlock,
		Type:     model.InterventionMarketBreadth,
		Message:  "base message",
	}
	first := SynthesizeAt(in, 7)
	for i := 0; i < 20; i++ {
		got := SynthesizeAt(in, 7)
		if got.Message != first.Message || got.Severity != first.Severity || got.Approved != first.Approved {
			t.Fatalf("same selector must give same output: %+v vs %+v", got, first)
		}
	}
	// Synthesis never flips the decision or severity.
	if first.Approved != in.Approved || first.Severity != in.Severity {
		t.Fatalf("synthesis altered the decision: %+v", first)
	}
	if first.Message == in.Message {
		t.Fatal("expected a styled prefix on the message")
	}
}

func TestLoadRulesConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "coach.yaml")
	data := []byte("maxTradesPerDay: 8\nmaxDailyLossPercent: 3.5\n")
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadRulesConfig(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.MaxTradesPerDay != 8 || cfg.MaxDailyLossPct != 3.5 {
		t.Fatalf("cfg: %+v", cfg)
	}

	// Empty path yields defaults, no error.
	cfg, err = LoadRulesConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg != DefaultRulesConfig() {
		t.Fatalf("defaults: %+v", cfg)
	}
}
