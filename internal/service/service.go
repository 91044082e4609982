// Package service is the composition root for read-side market data: every
// analytics read flows quote/bar fetches through the tiered cache and the
// vendor gateway. One Service is constructed at process start and passed by
// reference; there is no package-level state.
package service

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"tradecoach/internal/analytics"
	"tradecoach/internal/cache"
	"tradecoach/internal/fvg"
	"tradecoach/internal/model"
	"tradecoach/internal/vendorapi"
)

// Bar-count defaults per concern.
const (
	aggLimit      = 60  // MTF/patience reads
	intradayLimit = 210 // full session of 5m bars incl pre-market
	dailyLimit    = 220 // SMA200 needs 200 closes plus slack

	// Concurrent per-timeframe fetches in MTF assembly.
	maxConcurrentFetches = 3
)

// Vendor is the gateway surface the service consumes: the core market-data
// port plus the options chain, whose contract type lives in vendorapi.
// *vendorapi.Client satisfies it; tests substitute a double.
type Vendor interface {
	model.VendorClient
	GetOptionsChain(ctx context.Context, underlying string) ([]vendorapi.OptionContract, error)
}

// Service serves quotes, bars, and derived analytics. All reads are
// null-soft: insufficient or unavailable data yields nil, never an error,
// except for the unconfigured-vendor condition surfaced by IsConfigured.
type Service struct {
	cache  *cache.Tiered
	vendor Vendor
	log    *slog.Logger
}

// New wires a Service. The cache may be nil in tests; every cache touch is
// guarded.
func New(c *cache.Tiered, v Vendor, log *slog.Logger) *Service {
	if log == nil {
		log = slog.Default()
	}
	return &Service{cache: c, vendor: v, log: log.With("component", "service")}
}

// IsConfigured reports whether the vendor gateway has credentials.
func (s *Service) IsConfigured() bool { return s.vendor.IsConfigured() }

// GetQuote returns the freshest quote available: cache tiers first, then
// the vendor, writing through on a miss.
func (s *Service) GetQuote(ctx context.Context, symbol string) *model.Quote {
	key := cache.QuoteKey(symbol)
	var q model.Quote
	if s.cacheGet(ctx, key, &q) && q.Symbol != "" {
		return &q
	}
	fresh, err := s.vendor.GetQuote(ctx, symbol)
	if err != nil || fresh == nil {
		return nil
	}
	s.cacheSet(ctx, key, fresh, cache.TTLQuote)
	return fresh
}

// GetAggregates returns up to limit recent bars for the timespan.
func (s *Service) GetAggregates(ctx context.Context, symbol, timespan string, multiplier, limit int) []model.Bar {
	key := cache.AggsKey(symbol, timespan, multiplier, limit)
	var bars []model.Bar
	if s.cacheGet(ctx, key, &bars) && len(bars) > 0 {
		return bars
	}
	bars, err := s.vendor.GetAggregates(ctx, symbol, timespan, multiplier, limit)
	if err != nil || len(bars) == 0 {
		return nil
	}
	s.cacheSet(ctx, key, bars, cache.TTLAggregates)
	return bars
}

// GetHistoricalBars returns bars for an explicit window, ascending.
func (s *Service) GetHistoricalBars(ctx context.Context, symbol string, from, to time.Time, timespan string, multiplier int) []model.Bar {
	key := cache.HistKey(symbol, from, to, timespan, multiplier)
	var bars []model.Bar
	if s.cacheGet(ctx, key, &bars) && len(bars) > 0 {
		return bars
	}
	bars, err := s.vendor.GetHistoricalBars(ctx, symbol, from, to, timespan, multiplier)
	if err != nil || len(bars) == 0 {
		return nil
	}
	s.cacheSet(ctx, key, bars, cache.TTLHistorical)
	return bars
}

// GetMarketStatus returns the vendor's market status string.
func (s *Service) GetMarketStatus(ctx context.Context) string {
	key := cache.MarketStatusKey()
	var status string
	if s.cacheGet(ctx, key, &status) && status != "" {
		return status
	}
	status, err := s.vendor.GetMarketStatus(ctx)
	if err != nil || status == "" {
		return ""
	}
	s.cacheSet(ctx, key, status, cache.TTLMarketStatus)
	return status
}

// GetOptionsChain returns the option contracts for an underlying.
func (s *Service) GetOptionsChain(ctx context.Context, underlying string) []vendorapi.OptionContract {
	key := cache.OptionsKey(underlying)
	var chain []vendorapi.OptionContract
	if s.cacheGet(ctx, key, &chain) && len(chain) > 0 {
		return chain
	}
	chain, err := s.vendor.GetOptionsChain(ctx, underlying)
	if err != nil || len(chain) == 0 {
		return nil
	}
	s.cacheSet(ctx, key, chain, cache.TTLOptions)
	return chain
}

// GetKeyLevels assembles the key-level set for a symbol. Missing pieces
// degrade the result rather than failing it: no daily bars just means no
// SMA200 level.
func (s *Service) GetKeyLevels(ctx context.Context, symbol string) []model.KeyLevel {
	key := cache.LevelsKey(symbol)
	var cached []model.KeyLevel
	if s.cacheGet(ctx, key, &cached) && len(cached) > 0 {
		if q := s.GetQuote(ctx, symbol); q != nil {
			analytics.RecomputeDistances(cached, q.Price)
		}
		return cached
	}

	quote := s.GetQuote(ctx, symbol)
	if quote == nil {
		return nil
	}

	intraday := s.GetAggregates(ctx, symbol, "minute", 5, intradayLimit)
	hourly := s.GetAggregates(ctx, symbol, "hour", 1, aggLimit)
	fourHour := s.GetAggregates(ctx, symbol, "hour", 4, aggLimit)
	daily := s.GetAggregates(ctx, symbol, "day", 1, dailyLimit)

	in := analytics.KeyLevelInputs{
		Quote:        quote,
		IntradayBars: intraday,
		HourlyBars:   hourly,
		FourHourBars: fourHour,
	}
	if v, ok := analytics.Feed(analytics.NewEMA(9), intraday); ok {
		in.EMA9 = v
	}
	if v, ok := analytics.Feed(analytics.NewEMA(21), intraday); ok {
		in.EMA21 = v
	}
	if v, ok := analytics.Feed(analytics.NewSMA(200), daily); ok {
		in.SMA200 = v
	}

	levels := analytics.BuildKeyLevels(in)
	if len(levels) > 0 {
		s.cacheSet(ctx, key, levels, cache.TTLKeyLevels)
	}
	return levels
}

// GetMTFAnalysis assembles the multi-timeframe trend. Per-timeframe bar
// fetches run concurrently, capped to respect vendor rate limits.
func (s *Service) GetMTFAnalysis(ctx context.Context, symbol string) *model.MTFAnalysis {
	key := cache.MTFKey(symbol)
	var cached model.MTFAnalysis
	if s.cacheGet(ctx, key, &cached) && cached.Symbol != "" {
		return &cached
	}

	quote := s.GetQuote(ctx, symbol)
	if quote == nil {
		return nil
	}

	barsByTF := s.fetchBarsByTimeframe(ctx, symbol, model.MTFTimeframes)
	mtf := analytics.BuildMTF(symbol, quote.Price, barsByTF, time.Now())
	if mtf != nil {
		s.cacheSet(ctx, key, mtf, cache.TTLIndicators)
	}
	return mtf
}

// GetLTPAnalysis composes levels, trend, and patience into the confluence
// grade. Nil when the trend picture is missing.
func (s *Service) GetLTPAnalysis(ctx context.Context, symbol string) *model.LTPAnalysis {
	key := cache.LTPKey(symbol)
	var cached model.LTPAnalysis
	if s.cacheGet(ctx, key, &cached) && cached.Symbol != "" {
		return &cached
	}

	quote := s.GetQuote(ctx, symbol)
	if quote == nil {
		return nil
	}
	mtf := s.GetMTFAnalysis(ctx, symbol)
	if mtf == nil {
		return nil
	}
	levels := s.GetKeyLevels(ctx, symbol)
	barsByTF := s.fetchBarsByTimeframe(ctx, symbol, []string{model.TF5m, model.TF15m})

	ltp := analytics.BuildLTP(analytics.LTPInputs{
		Symbol:   symbol,
		Price:    quote.Price,
		Levels:   levels,
		MTF:      mtf,
		BarsByTF: barsByTF,
		Now:      time.Now(),
	})
	if ltp != nil {
		s.cacheSet(ctx, key, ltp, cache.TTLIndicators)
	}
	return ltp
}

// GetSnapshot returns the condensed dashboard view of a symbol. Its trend
// uses the simpler EMA-order heuristic, independent of the MTF trend.
func (s *Service) GetSnapshot(ctx context.Context, symbol string) *model.MarketSnapshot {
	key := cache.SnapshotKey(symbol)
	var cached model.MarketSnapshot
	if s.cacheGet(ctx, key, &cached) && cached.Symbol != "" {
		return &cached
	}

	quote := s.GetQuote(ctx, symbol)
	if quote == nil {
		return nil
	}
	bars := s.GetAggregates(ctx, symbol, "minute", 5, aggLimit)
	var ema9, ema21 float64
	if v, ok := analytics.Feed(analytics.NewEMA(9), bars); ok {
		ema9 = v
	}
	if v, ok := analytics.Feed(analytics.NewEMA(21), bars); ok {
		ema21 = v
	}
	snap := analytics.BuildSnapshot(quote, ema9, ema21)
	if snap != nil {
		s.cacheSet(ctx, key, snap, cache.TTLSnapshot)
	}
	return snap
}

// GetFVGAnalysis scans every analysis timeframe for fair value gaps and
// aggregates them. minGapPercent <= 0 selects per-timeframe defaults.
func (s *Service) GetFVGAnalysis(ctx context.Context, symbol string, minGapPercent float64) *model.FVGAnalysis {
	quote := s.GetQuote(ctx, symbol)
	if quote == nil {
		return nil
	}
	barsByTF := s.fetchBarsByTimeframe(ctx, symbol, model.MTFTimeframes)

	gaps := make(map[string][]model.FairValueGap, len(barsByTF))
	for tf, bars := range barsByTF {
		if found := fvg.Detect(bars, tf, quote.Price, minGapPercent); len(found) > 0 {
			gaps[tf] = found
		}
	}
	return fvg.Aggregate(symbol, quote.Price, gaps)
}

// fetchBarsByTimeframe pulls aggregates for each timeframe with bounded
// concurrency. Failed timeframes are simply absent from the result.
func (s *Service) fetchBarsByTimeframe(ctx context.Context, symbol string, tfs []string) map[string][]model.Bar {
	var (
		mu  sync.Mutex
		wg  sync.WaitGroup
		sem = make(chan struct{}, maxConcurrentFetches)
		out = make(map[string][]model.Bar, len(tfs))
	)
	for _, tf := range tfs {
		wg.Add(1)
		sem <- struct{}{}
		go func(tf string) {
			defer wg.Done()
			defer func() { <-sem }()
			timespan, multiplier := model.TimeframeSpan(tf)
			bars := s.GetAggregates(ctx, symbol, timespan, multiplier, aggLimit)
			if len(bars) == 0 {
				return
			}
			mu.Lock()
			out[tf] = bars
			mu.Unlock()
		}(tf)
	}
	wg.Wait()
	return out
}

func (s *Service) cacheGet(ctx context.Context, key string, out interface{}) bool {
	if s.cache == nil {
		return false
	}
	return s.cache.GetJSON(ctx, key, out)
}

func (s *Service) cacheSet(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	if s.cache == nil {
		return
	}
	s.cache.SetJSON(ctx, key, v, ttl)
}
