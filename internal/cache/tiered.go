// Package cache implements the tiered quote/bar cache:
// hot (externally populated) → shared (Redis) → process-local → miss.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"tradecoach/internal/metrics"
	"tradecoach/internal/model"
)

// hotEnvelope is the wire format the external market worker writes into the
// hot namespace: the payload plus its publish timestamp in unix millis.
type hotEnvelope struct {
	TS   int64           `json:"ts"`
	Data json.RawMessage `json:"data"`
}

// EncodeHot builds the hot-tier envelope. Only the ingest worker calls
// this; the serving side never writes the hot namespace.
func EncodeHot(ts time.Time, data []byte) ([]byte, error) {
	return json.Marshal(hotEnvelope{TS: ts.UnixMilli(), Data: data})
}

// Tiered probes cache tiers in strict priority order on every read.
// The hot tier is never written by this process — it is a one-way,
// read-only dependency on the external market worker. Origin fetch
// results are written through to the shared and local tiers only.
//
// There is no cross-read mutual exclusion: concurrent reads for the same
// key may race to populate the tiers, and the last writer wins. Quote data
// is short-lived and idempotent to overwrite, so duplicate origin fetches
// are tolerated rather than coordinated.
type Tiered struct {
	Hot    model.CacheBackend // may be nil (hot tier disabled)
	Shared model.CacheBackend // may be nil (degraded to local-only)
	Local  model.CacheBackend

	Metrics *metrics.Metrics // optional

	now func() time.Time // test hook
}

// NewTiered assembles the tiered cache. hot and shared may be nil.
func NewTiered(hot, shared model.CacheBackend, local model.CacheBackend, m *metrics.Metrics) *Tiered {
	return &Tiered{
		Hot:     hot,
		Shared:  shared,
		Local:   local,
		Metrics: m,
		now:     time.Now,
	}
}

// Get probes hot → shared → local. Any unreachable tier is skipped, not
// retried, within a single read. Returns the raw payload and true on a hit.
func (t *Tiered) Get(ctx context.Context, key string) ([]byte, bool) {
	if data, ok := t.getHot(ctx, key); ok {
		t.Metrics.IncCacheHit("hot")
		return data, true
	}
	if t.Shared != nil {
		if data, ok := t.Shared.Get(ctx, key); ok {
			t.Metrics.IncCacheHit("shared")
			return data, true
		}
	}
	if data, ok := t.Local.Get(ctx, key); ok {
		t.Metrics.IncCacheHit("local")
		return data, true
	}
	t.Metrics.IncCacheMiss()
	return nil, false
}

// getHot reads the external worker's namespace and validates freshness.
// An entry is usable only while age < HotFreshness: at exactly 5000ms it
// is already stale, at 4999ms it is fresh.
func (t *Tiered) getHot(ctx context.Context, key string) ([]byte, bool) {
	if t.Hot == nil {
		return nil, false
	}
	raw, ok := t.Hot.Get(ctx, hotPrefix+key)
	if !ok {
		return nil, false
	}
	var env hotEnvelope
	if err := json.Unmarshal(raw, &env); err != nil || env.TS == 0 {
		return nil, false
	}
	age := t.now().UnixMilli() - env.TS
	if age >= HotFreshness.Milliseconds() {
		t.Metrics.IncHotStale()
		return nil, false
	}
	return env.Data, true
}

// Set writes through to both writable tiers. A successful origin fetch
// always backfills both, even on a partial miss, to reduce duplicate
// origin calls under load.
func (t *Tiered) Set(ctx context.Context, key string, val []byte, ttl time.Duration) {
	if t.Shared != nil {
		t.Shared.Set(ctx, key, val, ttl)
	}
	t.Local.Set(ctx, key, val, ttl)
}

// GetJSON unmarshals a cached payload into out. Returns false on miss or
// on a payload that no longer parses (treated as a miss, not an error).
func (t *Tiered) GetJSON(ctx context.Context, key string, out interface{}) bool {
	data, ok := t.Get(ctx, key)
	if !ok {
		return false
	}
	return json.Unmarshal(data, out) == nil
}

// SetJSON marshals v and writes it through. Marshal failures are dropped;
// cache writes are always best-effort.
func (t *Tiered) SetJSON(ctx context.Context, key string, v interface{}, ttl time.Duration) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	t.Set(ctx, key, data, ttl)
}

// Close releases every tier. Hot and shared often share one Redis client,
// so the hot tier is only closed when it is a distinct backend.
func (t *Tiered) Close() error {
	if t.Hot != nil && t.Hot != t.Shared {
		t.Hot.Close()
	}
	if t.Shared != nil {
		t.Shared.Close()
	}
	return t.Local.Close()
}
