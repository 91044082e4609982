package model

import (
	"context"
	"time"
)

// ── Port Interfaces ──
// These interfaces decouple the analytics and coaching layers from concrete
// infrastructure (Redis, the vendor HTTP API, SQLite). Each implementation
// satisfies one or more of these interfaces, enabling test doubles.

// CacheBackend is a single cache tier. Implementations: Redis (shared) and
// an in-process map (local). Both tolerate being unreachable — a failed Get
// is a miss, a failed Set is dropped.
type CacheBackend interface {
	// Get returns the raw cached bytes and true on a hit.
	Get(ctx context.Context, key string) ([]byte, bool)

	// Set stores val under key with the given TTL. Best-effort.
	Set(ctx context.Context, key string, val []byte, ttl time.Duration)

	// Close releases underlying resources.
	Close() error
}

// VendorClient is the upstream market-data gateway. All fetch methods return
// (nil, nil) for expected absence of data; only transport-level problems
// surface as errors, and those are logged and swallowed by callers.
type VendorClient interface {
	// IsConfigured reports whether an API key is present. When false, every
	// boundary that wraps this core must surface "service not configured"
	// (HTTP 503), never a data error.
	IsConfigured() bool

	GetQuote(ctx context.Context, symbol string) (*Quote, error)
	GetAggregates(ctx context.Context, symbol, timespan string, multiplier, limit int) ([]Bar, error)
	GetHistoricalBars(ctx context.Context, symbol string, from, to time.Time, timespan string, multiplier int) ([]Bar, error)
	GetMarketStatus(ctx context.Context) (string, error)
}

// BreadthSource supplies externally produced market context. The breadth
// namespace is written only by the out-of-process worker; this side is
// strictly read-only.
type BreadthSource interface {
	Latest(ctx context.Context) (*MarketBreadth, bool)
	TodayEvents(ctx context.Context) []EconomicEvent
	Warnings(ctx context.Context) []ProactiveWarning
}

// DecisionJournal records coaching decisions and their realized outcomes
// for later review. Record returns the decision id callers use to attach
// an outcome once the trade closes.
type DecisionJournal interface {
	Record(ctx context.Context, intent TradeIntent, result InterventionResult) (string, error)
	RecordOutcome(ctx context.Context, decisionID string, pnl, pnlPct float64, closedAt time.Time) error
	Close() error
}
