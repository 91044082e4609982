package service

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tradecoach/internal/cache"
	"tradecoach/internal/model"
	"tradecoach/internal/vendorapi"
)

// fakeVendor serves canned data and counts calls.
type fakeVendor struct {
	mu         sync.Mutex
	configured bool
	quote      *model.Quote
	barsByKey  map[string][]model.Bar // "timespan/multiplier" → bars
	quoteCalls int
	aggCalls   int
	status     string
}

func (f *fakeVendor) IsConfigured() bool { return f.configured }

func (f *fakeVendor) GetQuote(_ context.Context, symbol string) (*model.Quote, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.quoteCalls++
	if f.quote == nil {
		return nil, nil
	}
	q := *f.quote
	q.Symbol = symbol
	return &q, nil
}

func (f *fakeVendor) GetAggregates(_ context.Context, _, timespan string, multiplier, _ int) ([]model.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aggCalls++
	return f.barsByKey[aggKey(timespan, multiplier)], nil
}

func (f *fakeVendor) GetHistoricalBars(_ context.Context, _ string, _, _ time.Time, timespan string, multiplier int) ([]model.Bar, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.barsByKey[aggKey(timespan, multiplier)], nil
}

func (f *fakeVendor) GetMarketStatus(context.Context) (string, error) {
	return f.status, nil
}

func (f *fakeVendor) GetOptionsChain(context.Context, string) ([]vendorapi.OptionContract, error) {
	return nil, nil
}

func aggKey(timespan string, multiplier int) string {
	return timespan + "/" + strconv.Itoa(multiplier)
}

func trendBars(n int, start, step float64) []model.Bar {
	bars := make([]model.Bar, n)
	ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	price := start
	for i := range bars {
		bars[i] = model.Bar{
			TS: ts.Add(time.Duration(i) * time.Minute), Open: price,
			High: price + step, Low: price - step, Close: price + step,
			Volume: 1000,
		}
		price += step
	}
	return bars
}

func testService(v Vendor) *Service {
	mem := cache.NewMemoryBackend()
	tiers := cache.NewTiered(cache.NewMemoryBackend(), mem, cache.NewMemoryBackend(), nil)
	return New(tiers, v, nil)
}

func TestGetQuote_CachesResult(t *testing.T) {
	v := &fakeVendor{configured: true, quote: &model.Quote{Price: 512, Volume: 1000}}
	s := testService(v)
	ctx := context.Background()

	q1 := s.GetQuote(ctx, "SPY")
	require.NotNil(t, q1)
	assert.Equal(t, 512.0, q1.Price)

	q2 := s.GetQuote(ctx, "SPY")
	require.NotNil(t, q2)
	assert.Equal(t, 1, v.quoteCalls, "second read must come from cache")
}

func TestGetQuote_NullSoft(t *testing.T) {
	v := &fakeVendor{configured: true} // no quote data
	s := testService(v)
	assert.Nil(t, s.GetQuote(context.Background(), "SPY"))
}

func TestGetMTFAnalysis(t *testing.T) {
	rising := trendBars(40, 100, 0.5)
	v := &fakeVendor{
		configured: true,
		quote:      &model.Quote{Price: rising[len(rising)-1].Close},
		barsByKey: map[string][]model.Bar{
			aggKey("minute", 5):  rising,
			aggKey("minute", 15): rising,
			aggKey("hour", 1):    rising,
			aggKey("day", 1):     rising,
		},
	}
	s := testService(v)

	mtf := s.GetMTFAnalysis(context.Background(), "SPY")
	require.NotNil(t, mtf)
	assert.Equal(t, "SPY", mtf.Symbol)
	assert.Len(t, mtf.Timeframes, 4)
	assert.Equal(t, model.TrendBullish, mtf.OverallBias)
	assert.Equal(t, 100.0, mtf.AlignmentScore)
}

func TestGetMTFAnalysis_OmitsShortTimeframes(t *testing.T) {
	rising := trendBars(40, 100, 0.5)
	v := &fakeVendor{
		configured: true,
		quote:      &model.Quote{Price: rising[len(rising)-1].Close},
		barsByKey: map[string][]model.Bar{
			aggKey("minute", 5): rising,
			aggKey("day", 1):    trendBars(10, 100, 0.5), // under the minimum
		},
	}
	s := testService(v)

	mtf := s.GetMTFAnalysis(context.Background(), "SPY")
	require.NotNil(t, mtf)
	assert.Len(t, mtf.Timeframes, 1)
	_, hasDaily := mtf.Timeframes[model.TFDaily]
	assert.False(t, hasDaily)
}

func TestGetLTPAnalysis_NilWithoutTrendData(t *testing.T) {
	v := &fakeVendor{configured: true, quote: &model.Quote{Price: 512}}
	s := testService(v)
	assert.Nil(t, s.GetLTPAnalysis(context.Background(), "SPY"), "no bars at all means no MTF means no LTP")
}

func TestGetLTPAnalysis_FullComposition(t *testing.T) {
	rising := trendBars(40, 100, 0.5)
	last := rising[len(rising)-1].Close
	v := &fakeVendor{
		configured: true,
		quote: &model.Quote{
			Price: last, VWAP: last - 0.1,
			PrevHigh: last * 1.02, PrevLow: last * 0.97,
		},
		barsByKey: map[string][]model.Bar{
			aggKey("minute", 5):  rising,
			aggKey("minute", 15): rising,
			aggKey("hour", 1):    rising,
			aggKey("hour", 4):    rising,
			aggKey("day", 1):     rising,
		},
	}
	s := testService(v)

	ltp := s.GetLTPAnalysis(context.Background(), "SPY")
	require.NotNil(t, ltp)
	assert.Equal(t, "SPY", ltp.Symbol)
	assert.GreaterOrEqual(t, ltp.ConfluenceScore, 0)
	assert.LessOrEqual(t, ltp.ConfluenceScore, 100)
	assert.NotEmpty(t, ltp.Grade)
	assert.NotEmpty(t, ltp.Recommendation)

	// Deterministic: a second computation over identical inputs agrees.
	again := s.GetLTPAnalysis(context.Background(), "SPY")
	require.NotNil(t, again)
	assert.Equal(t, ltp.ConfluenceScore, again.ConfluenceScore)
	assert.Equal(t, ltp.Grade, again.Grade)
}

func TestGetSnapshot(t *testing.T) {
	rising := trendBars(40, 100, 0.5)
	v := &fakeVendor{
		configured: true,
		quote:      &model.Quote{Price: rising[len(rising)-1].Close, ChangePercent: 1.2},
		barsByKey:  map[string][]model.Bar{aggKey("minute", 5): rising},
	}
	s := testService(v)

	snap := s.GetSnapshot(context.Background(), "SPY")
	require.NotNil(t, snap)
	assert.Equal(t, "SPY", snap.Symbol)
	assert.Equal(t, model.TrendBullish, snap.Trend)
}

func TestGetMarketStatus(t *testing.T) {
	v := &fakeVendor{configured: true, status: "open"}
	s := testService(v)
	assert.Equal(t, "open", s.GetMarketStatus(context.Background()))
}

func TestGetFVGAnalysis_NoQuoteIsNil(t *testing.T) {
	v := &fakeVendor{configured: true}
	s := testService(v)
	assert.Nil(t, s.GetFVGAnalysis(context.Background(), "SPY", 0))
}
