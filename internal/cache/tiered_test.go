package cache

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"tradecoach/internal/model"
)

// fakeBackend is an always-reachable in-memory tier without expiry,
// used to control exactly what each tier returns.
type fakeBackend struct {
	mu   sync.Mutex
	data map[string][]byte
	sets int
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{data: make(map[string][]byte)}
}

func (f *fakeBackend) Get(_ context.Context, key string) ([]byte, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.data[key]
	return d, ok
}

func (f *fakeBackend) Set(_ context.Context, key string, val []byte, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[key] = val
	f.sets++
}

func (f *fakeBackend) Close() error { return nil }

func hotPayload(t *testing.T, ts time.Time, data string) []byte {
	t.Helper()
	b, err := json.Marshal(hotEnvelope{TS: ts.UnixMilli(), Data: json.RawMessage(data)})
	if err != nil {
		t.Fatal(err)
	}
	return b
}

func newTestTiered(hot, shared, local model.CacheBackend) *Tiered {
	tc := NewTiered(hot, shared, local, nil)
	return tc
}

func TestTiered_ProbeOrder(t *testing.T) {
	hot := newFakeBackend()
	shared := newFakeBackend()
	local := newFakeBackend()
	tc := newTestTiered(hot, shared, local)
	now := time.Now()
	tc.now = func() time.Time { return now }

	ctx := context.Background()
	key := QuoteKey("SPY")

	shared.Set(ctx, key, []byte(`"from-shared"`), 0)
	local.Set(ctx, key, []byte(`"from-local"`), 0)

	// Hot wins when fresh.
	hot.Set(ctx, hotPrefix+key, hotPayload(t, now.Add(-time.Second), `"from-hot"`), 0)
	if data, ok := tc.Get(ctx, key); !ok || string(data) != `"from-hot"` {
		t.Fatalf("expected hot hit, got %q ok=%v", data, ok)
	}

	// Stale hot falls through to shared.
	hot.Set(ctx, hotPrefix+key, hotPayload(t, now.Add(-time.Minute), `"from-hot"`), 0)
	if data, ok := tc.Get(ctx, key); !ok || string(data) != `"from-shared"` {
		t.Fatalf("expected shared hit, got %q ok=%v", data, ok)
	}

	// No shared entry → local.
	delete(shared.data, key)
	if data, ok := tc.Get(ctx, key); !ok || string(data) != `"from-local"` {
		t.Fatalf("expected local hit, got %q ok=%v", data, ok)
	}

	// Nothing anywhere → miss.
	delete(local.data, key)
	delete(hot.data, hotPrefix+key)
	if _, ok := tc.Get(ctx, key); ok {
		t.Fatal("expected miss")
	}
}

func TestTiered_HotStalenessBoundary(t *testing.T) {
	hot := newFakeBackend()
	local := newFakeBackend()
	tc := newTestTiered(hot, nil, local)
	now := time.Now()
	tc.now = func() time.Time { return now }

	ctx := context.Background()
	key := QuoteKey("QQQ")

	// 4999ms old: fresh.
	hot.Set(ctx, hotPrefix+key, hotPayload(t, now.Add(-4999*time.Millisecond), `"fresh"`), 0)
	if _, ok := tc.Get(ctx, key); !ok {
		t.Fatal("entry at 4999ms should be fresh")
	}

	// Exactly 5000ms old: stale (usable only while age < 5000ms).
	hot.Set(ctx, hotPrefix+key, hotPayload(t, now.Add(-5000*time.Millisecond), `"boundary"`), 0)
	if _, ok := tc.Get(ctx, key); ok {
		t.Fatal("entry at exactly 5000ms should be stale")
	}

	// 5001ms old: stale.
	hot.Set(ctx, hotPrefix+key, hotPayload(t, now.Add(-5001*time.Millisecond), `"stale"`), 0)
	if _, ok := tc.Get(ctx, key); ok {
		t.Fatal("entry at 5001ms should be stale")
	}
}

func TestTiered_SetWritesBothWritableTiers(t *testing.T) {
	hot := newFakeBackend()
	shared := newFakeBackend()
	local := newFakeBackend()
	tc := newTestTiered(hot, shared, local)

	ctx := context.Background()
	tc.Set(ctx, QuoteKey("SPY"), []byte(`{}`), TTLQuote)

	if shared.sets != 1 || local.sets != 1 {
		t.Fatalf("expected one write per writable tier, got shared=%d local=%d", shared.sets, local.sets)
	}
	if hot.sets != 0 {
		t.Fatalf("read path must never write the hot tier, got %d writes", hot.sets)
	}
}

func TestTiered_MalformedHotEnvelopeIsMiss(t *testing.T) {
	hot := newFakeBackend()
	local := newFakeBackend()
	tc := newTestTiered(hot, nil, local)

	ctx := context.Background()
	key := QuoteKey("IWM")
	hot.Set(ctx, hotPrefix+key, []byte(`not-json`), 0)

	if _, ok := tc.Get(ctx, key); ok {
		t.Fatal("malformed hot entry must be treated as a miss")
	}
}

func TestMemoryBackend_Expiry(t *testing.T) {
	m := NewMemoryBackend()
	defer m.Close()

	now := time.Now()
	m.now = func() time.Time { return now }

	ctx := context.Background()
	m.Set(ctx, "k", []byte("v"), 10*time.Second)

	if _, ok := m.Get(ctx, "k"); !ok {
		t.Fatal("expected hit before expiry")
	}

	now = now.Add(11 * time.Second)
	if _, ok := m.Get(ctx, "k"); ok {
		t.Fatal("expected miss after expiry")
	}
}

func TestTiered_JSONRoundTrip(t *testing.T) {
	local := newFakeBackend()
	tc := newTestTiered(nil, nil, local)

	ctx := context.Background()
	in := model.Quote{Symbol: "SPY", Price: 512.34, Volume: 1000}
	tc.SetJSON(ctx, QuoteKey("SPY"), &in, TTLQuote)

	var out model.Quote
	if !tc.GetJSON(ctx, QuoteKey("SPY"), &out) {
		t.Fatal("expected hit")
	}
	if out.Symbol != "SPY" || out.Price != 512.34 {
		t.Fatalf("round trip mismatch: %+v", out)
	}
}
