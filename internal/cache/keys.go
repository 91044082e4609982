package cache

import (
	"fmt"
	"time"
)

// TTLs per data class. Historical-range queries use 10× the aggregate TTL.
const (
	TTLQuote        = 5 * time.Second
	TTLSnapshot     = 10 * time.Second
	TTLAggregates   = 60 * time.Second
	TTLKeyLevels    = 30 * time.Second
	TTLMarketStatus = 30 * time.Second
	TTLIndicators   = 60 * time.Second
	TTLOptions      = 30 * time.Second
	TTLIndex        = 10 * time.Second

	TTLHistorical = 10 * TTLAggregates
)

// HotFreshness is the hot-tier staleness window. An entry is usable only
// while age < HotFreshness; at exactly the boundary it is stale.
const HotFreshness = 5000 * time.Millisecond

// hotPrefix is the namespace populated by the out-of-process market worker.
// This process only ever reads it.
const hotPrefix = "hot:"

// HotKey namespaces a key into the worker-owned hot tier.
func HotKey(key string) string { return hotPrefix + key }

// Key builders for the shared cache key schema.

func QuoteKey(symbol string) string { return "quote:" + symbol }

func AggsKey(symbol, timespan string, multiplier, limit int) string {
	return fmt.Sprintf("aggs:%s:%s:%d:%d", symbol, timespan, multiplier, limit)
}

func LevelsKey(symbol string) string { return "levels:" + symbol }

func MTFKey(symbol string) string { return "mtf:" + symbol }

func LTPKey(symbol string) string { return "ltp:" + symbol }

func IndexKey(symbol string) string { return "index:" + symbol }

func OptionsKey(symbol string) string { return "options:" + symbol }

func SnapshotKey(symbol string) string { return "snapshot:" + symbol }

func MarketStatusKey() string { return "market-status" }

func HistKey(symbol string, from, to time.Time, timespan string, multiplier int) string {
	return fmt.Sprintf("hist:%s:%d:%d:%s:%d",
		symbol, from.Unix(), to.Unix(), timespan, multiplier)
}
