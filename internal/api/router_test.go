package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecoach/internal/coach"
	"tradecoach/internal/journal"
	"tradecoach/internal/model"
	"tradecoach/internal/service"
	"tradecoach/internal/vendorapi"
)

// stubVendor serves canned data; configured is toggled per test.
type stubVendor struct {
	configured bool
	quote      *model.Quote
}

func (v *stubVendor) IsConfigured() bool { return v.configured }

func (v *stubVendor) GetQuote(_ context.Context, _ string) (*model.Quote, error) {
	return v.quote, nil
}

func (v *stubVendor) GetAggregates(_ context.Context, _, _ string, _, _ int) ([]model.Bar, error) {
	return nil, nil
}

func (v *stubVendor) GetHistoricalBars(_ context.Context, _ string, _, _ time.Time, _ string, _ int) ([]model.Bar, error) {
	return nil, nil
}

func (v *stubVendor) GetMarketStatus(_ context.Context) (string, error) {
	return "open", nil
}

func (v *stubVendor) GetOptionsChain(_ context.Context, _ string) ([]vendorapi.OptionContract, error) {
	return nil, nil
}

type stubStats struct {
	stats journal.DailyStats
}

func (s *stubStats) StatsFor(_ context.Context, _ time.Time) (journal.DailyStats, error) {
	return s.stats, nil
}

// stubJournal captures writes for assertion.
type stubJournal struct {
	nextID   string
	recorded []model.TradeIntent
	outcomes map[string]float64 // decision id → pnlPct
}

func (j *stubJournal) Record(_ context.Context, intent model.TradeIntent, _ model.InterventionResult) (string, error) {
	j.recorded = append(j.recorded, intent)
	return j.nextID, nil
}

func (j *stubJournal) RecordOutcome(_ context.Context, decisionID string, _, pnlPct float64, _ time.Time) error {
	if j.outcomes == nil {
		j.outcomes = make(map[string]float64)
	}
	j.outcomes[decisionID] = pnlPct
	return nil
}

func (j *stubJournal) Close() error { return nil }

type stubBreadth struct {
	warnings []model.ProactiveWarning
}

func (b *stubBreadth) Latest(_ context.Context) (*model.MarketBreadth, bool) { return nil, false }

func (b *stubBreadth) TodayEvents(_ context.Context) []model.EconomicEvent { return nil }
func (b *stubBreadth) Warnings(_ context.Context) []model.ProactiveWarning {
	return b.warnings
}

func newTestRouter(v *stubVendor, stats StatsProvider) *http.ServeMux {
	return NewRouter(Deps{
		Service: service.New(nil, v, nil),
		Coach:   coach.NewEngine(coach.DefaultRulesConfig(), nil),
		Stats:   stats,
	})
}

func TestUnconfiguredVendorReturns503(t *testing.T) {
	mux := newTestRouter(&stubVendor{configured: false}, nil)

	for _, path := range []string{
		"/api/v1/quote/SPY",
		"/api/v1/levels/SPY",
		"/api/v1/market-status",
	} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		rec := httptest.NewRecorder()
		mux.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusServiceUnavailable, rec.Code, path)
		var body map[string]string
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body), path)
		assert.Contains(t, body["error"], "not configured", path)
	}
}

func TestQuoteEndpoint(t *testing.T) {
	v := &stubVendor{
		configured: true,
		quote:      &model.Quote{Symbol: "SPY", Price: 512.34},
	}
	mux := newTestRouter(v, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/quote/spy", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var got model.Quote
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "SPY", got.Symbol)
	assert.Equal(t, 512.34, got.Price)
}

func TestQuoteMissingSymbol(t *testing.T) {
	mux := newTestRouter(&stubVendor{configured: true}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/quote/", nil))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluateApprovesHealthyIntent(t *testing.T) {
	mux := newTestRouter(&stubVendor{configured: true}, nil)

	body, _ := json.Marshal(EvaluateRequest{
		Intent: model.TradeIntent{
			Symbol:    "SPY",
			Direction: "long",
			Price:     512,
			StopLoss:  510,
		},
		MentalCapital: 80,
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var result model.InterventionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.True(t, result.Approved)
}

func TestEvaluateUsesJournalStats(t *testing.T) {
	// Three consecutive losses recorded in the journal plus the revenge
	// weakness tag block the trade even though the request itself is clean.
	stats := &stubStats{stats: journal.DailyStats{
		TradeCount:        2,
		ConsecutiveLosses: 3,
	}}
	mux := newTestRouter(&stubVendor{configured: true}, stats)

	body, _ := json.Marshal(EvaluateRequest{
		Intent: model.TradeIntent{
			Symbol:    "SPY",
			Direction: "long",
			Price:     512,
			StopLoss:  510,
		},
		MentalCapital:   80,
		KnownWeaknesses: []string{coach.WeaknessRevenge},
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var result model.InterventionResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.False(t, result.Approved)
	assert.Equal(t, "revenge_trading", result.Reason)
}

func TestEvaluateRejectsIncompleteIntent(t *testing.T) {
	mux := newTestRouter(&stubVendor{configured: true}, nil)

	body, _ := json.Marshal(EvaluateRequest{
		Intent:        model.TradeIntent{Symbol: "SPY"},
		MentalCapital: 80,
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestEvaluateRequiresPost(t *testing.T) {
	mux := newTestRouter(&stubVendor{configured: true}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/evaluate", nil))

	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestEvaluateReturnsDecisionID(t *testing.T) {
	jr := &stubJournal{nextID: "dec-42"}
	mux := NewRouter(Deps{
		Service: service.New(nil, &stubVendor{configured: true}, nil),
		Coach:   coach.NewEngine(coach.DefaultRulesConfig(), nil),
		Journal: jr,
	})

	body, _ := json.Marshal(EvaluateRequest{
		Intent: model.TradeIntent{
			Symbol:    "SPY",
			Direction: "long",
			Price:     512,
			StopLoss:  510,
		},
		MentalCapital: 80,
	})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/evaluate", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp EvaluateResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.True(t, resp.Approved)
	assert.Equal(t, "dec-42", resp.DecisionID)
	require.Len(t, jr.recorded, 1)
	assert.Equal(t, "SPY", jr.recorded[0].Symbol)
}

func TestOutcomeEndpoint(t *testing.T) {
	jr := &stubJournal{}
	mux := NewRouter(Deps{
		Service: service.New(nil, &stubVendor{configured: true}, nil),
		Journal: jr,
	})

	body, _ := json.Marshal(OutcomeRequest{DecisionID: "dec-42", PnL: -80, PnLPct: -0.4})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/evaluate/outcome", bytes.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, -0.4, jr.outcomes["dec-42"])
}

func TestOutcomeRequiresDecisionID(t *testing.T) {
	mux := NewRouter(Deps{
		Service: service.New(nil, &stubVendor{configured: true}, nil),
		Journal: &stubJournal{},
	})

	body, _ := json.Marshal(OutcomeRequest{PnL: -80})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/evaluate/outcome", bytes.NewReader(body)))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestOutcomeWithoutJournal(t *testing.T) {
	mux := newTestRouter(&stubVendor{configured: true}, nil)

	body, _ := json.Marshal(OutcomeRequest{DecisionID: "dec-42"})
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/evaluate/outcome", bytes.NewReader(body)))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

type stubHistory struct {
	recs []journal.DecisionRecord
}

func (h *stubHistory) Recent(_ context.Context, _ int) ([]journal.DecisionRecord, error) {
	return h.recs, nil
}

func TestJournalEndpoint(t *testing.T) {
	hist := &stubHistory{recs: []journal.DecisionRecord{
		{ID: "dec-42", Symbol: "SPY", Approved: true},
	}}
	mux := NewRouter(Deps{
		Service: service.New(nil, &stubVendor{configured: true}, nil),
		History: hist,
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/journal", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var recs []journal.DecisionRecord
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &recs))
	require.Len(t, recs, 1)
	assert.Equal(t, "dec-42", recs[0].ID)
}

func TestJournalWithoutHistory(t *testing.T) {
	mux := newTestRouter(&stubVendor{configured: true}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/journal", nil))

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestWarningsEndpoint(t *testing.T) {
	br := &stubBreadth{warnings: []model.ProactiveWarning{
		{Type: "breadth_shift", Message: "Internals rolling over.", Severity: "warning"},
	}}
	mux := NewRouter(Deps{
		Service: service.New(nil, &stubVendor{configured: true}, nil),
		Breadth: br,
	})

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/warnings", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var ws []model.ProactiveWarning
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &ws))
	require.Len(t, ws, 1)
	assert.Equal(t, "breadth_shift", ws[0].Type)
}

func TestWarningsWithoutBreadth(t *testing.T) {
	mux := newTestRouter(&stubVendor{configured: true}, nil)

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/warnings", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, "[]", rec.Body.String())
}

func TestSymbolParam(t *testing.T) {
	cases := map[string]string{
		"/api/v1/quote/spy":  "SPY",
		"/api/v1/quote/SPY/": "SPY",
		"/api/v1/quote/":     "",
		"/api/v1/quote":      "",
	}
	for path, want := range cases {
		assert.Equal(t, want, symbolParam(path), path)
	}
}
